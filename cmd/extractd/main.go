package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/przemyslawpluta/extractd/internal/config"
	"github.com/przemyslawpluta/extractd/pkg/extractd"
)

var (
	appVersion        = "0.1.0"
	cfgFile           string
	dest              string
	includeExt        []string
	exiftoolPath      string
	exiftoolArgs      []string
	logFile           string
	logJSON           bool
	compact           bool
	stream            bool
	base64Out         bool
	dataURI           bool
	verifyOrientation bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "extractd",
	Short: "Extract embedded JPEG previews from camera RAW files",
	Long: `extractd drives a long-running exiftool process to pull the embedded
JPEG preview out of RAW files, keeping the source orientation.`,
}

var extractCmd = &cobra.Command{
	Use:   "extract [files or directories...]",
	Short: "Extract previews and print the results as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExtract,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(appVersion)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(versionCmd)

	extractCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	extractCmd.Flags().StringVarP(&dest, "dest", "d", "", "destination directory for previews (default: OS temp dir)")
	extractCmd.Flags().StringSliceVarP(&includeExt, "include-ext", "e", nil, "RAW extensions picked up from directories")
	extractCmd.Flags().StringVar(&exiftoolPath, "exiftool", "", "exiftool binary path")
	extractCmd.Flags().StringSliceVar(&exiftoolArgs, "exiftool-arg", nil, "extra argument passed to every exiftool command")
	extractCmd.Flags().StringVar(&logFile, "log-file", "", "log file path")
	extractCmd.Flags().BoolVar(&logJSON, "log-json", false, "output JSON logs")
	extractCmd.Flags().BoolVar(&compact, "compact", false, "drop failures and print previews only")
	extractCmd.Flags().BoolVar(&stream, "stream", false, "write preview bytes to stdout instead of JSON")
	extractCmd.Flags().BoolVar(&base64Out, "base64", false, "return previews as base64 text")
	extractCmd.Flags().BoolVar(&dataURI, "datauri", false, "prefix base64 previews with a data URI header")
	extractCmd.Flags().BoolVar(&verifyOrientation, "verify-orientation", false, "read the orientation back from written previews")
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.LoadFromFile(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if dest != "" {
		cfg.Destination = dest
	}
	if len(includeExt) > 0 {
		cfg.IncludeExtensions = includeExt
	}
	if exiftoolPath != "" {
		cfg.ExifToolPath = exiftoolPath
	}
	if len(exiftoolArgs) > 0 {
		cfg.ExifToolArgs = exiftoolArgs
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if cfg.LogFile == "" {
		cfg.LogFile = config.DefaultLogFile()
	}
	if logJSON {
		cfg.LogJSON = true
	}
	if compact {
		cfg.Compact = true
	}
	if stream {
		cfg.Stream = true
	}
	if base64Out {
		cfg.Base64 = true
	}
	if dataURI {
		cfg.DataURI = true
	}
	if verifyOrientation {
		cfg.VerifyOrientation = true
	}

	return cfg, nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := extractd.New(cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	client.SetConsole(os.Stderr)

	sources, err := client.Expand(args...)
	if err != nil {
		return fmt.Errorf("failed to scan sources: %w", err)
	}

	out, err := client.Extract(client.Options(), sources...)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr)

	if cfg.Stream {
		return drain(out, cmd.OutOrStdout())
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// drain copies every streamed preview to w and reports failed items on stderr.
func drain(out *extractd.Output, w io.Writer) error {
	for _, r := range out.Results {
		if !r.OK() {
			fmt.Fprintf(os.Stderr, "%s: %s\n", r.Source, r.Error)
			continue
		}
		_, err := io.Copy(w, r.Preview.Stream)
		r.Preview.Stream.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
