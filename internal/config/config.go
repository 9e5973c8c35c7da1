package config

import (
	"os"
	"path/filepath"

	"github.com/przemyslawpluta/extractd/pkg/types"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Destination       string   `yaml:"destination" json:"destination"`
	Persist           bool     `yaml:"persist" json:"persist"`
	Compact           bool     `yaml:"compact" json:"compact"`
	Stream            bool     `yaml:"stream" json:"stream"`
	Base64            bool     `yaml:"base64" json:"base64"`
	DataURI           bool     `yaml:"datauri" json:"datauri"`
	ExifToolPath      string   `yaml:"exiftool_path" json:"exiftool_path"`
	ExifToolArgs      []string `yaml:"exiftool_args" json:"exiftool_args"`
	IncludeExtensions []string `yaml:"include_extensions" json:"include_extensions"`
	VerifyOrientation bool     `yaml:"verify_orientation" json:"verify_orientation"`
	LogFile           string   `yaml:"log_file" json:"log_file"`
	LogJSON           bool     `yaml:"log_json" json:"log_json"`
	Addr              string   `yaml:"addr" json:"addr"`
}

// RawExtensions are the RAW formats picked up when a directory is given.
var RawExtensions = []string{
	"3fr", "arw", "cr2", "cr3", "crw", "dcr", "dng", "erf", "fff", "iiq",
	"k25", "kdc", "mef", "mos", "mrw", "nef", "nrw", "orf", "pef", "raf",
	"raw", "rw2", "rwl", "sr2", "srf", "srw", "x3f",
}

func DefaultConfig() *Config {
	return &Config{
		Destination:       os.TempDir(),
		ExifToolPath:      "exiftool",
		ExifToolArgs:      []string{"-E"},
		IncludeExtensions: append([]string(nil), RawExtensions...),
		Addr:              "localhost:8080",
	}
}

func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultLogFile is used by the command line tools when no log file is set.
func DefaultLogFile() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".extractd", "extractd.log")
}

func (c *Config) Validate() error {
	if c.ExifToolPath == "" {
		return &ValidationError{Field: "exiftool_path", Message: "exiftool path is required"}
	}
	if c.Destination == "" {
		c.Destination = os.TempDir()
	}
	c.Destination = filepath.Clean(c.Destination)

	if info, err := os.Stat(c.Destination); err == nil && !info.IsDir() {
		return &ValidationError{Field: "destination", Message: "destination is not a directory"}
	}
	if len(c.IncludeExtensions) == 0 {
		c.IncludeExtensions = append([]string(nil), RawExtensions...)
	}

	return nil
}

// Options projects the per-call options held by the config.
func (c *Config) Options() types.Options {
	return types.Options{
		Destination: c.Destination,
		Persist:     c.Persist,
		Compact:     c.Compact,
		Stream:      c.Stream,
		Base64:      c.Base64,
		DataURI:     c.DataURI,
	}
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
