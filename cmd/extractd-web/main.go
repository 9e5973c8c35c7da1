package main

import (
	"flag"
	"log"
	"os"

	"github.com/przemyslawpluta/extractd/internal/config"
	"github.com/przemyslawpluta/extractd/internal/web"
	"github.com/przemyslawpluta/extractd/pkg/extractd"
)

var (
	version = "dev" // set by ldflags during build
)

func main() {
	cfgFile := flag.String("config", "", "config file path")
	addr := flag.String("addr", "", "HTTP server address (default from config)")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *cfgFile != "" {
		loaded, err := config.LoadFromFile(*cfgFile)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if cfg.LogFile == "" {
		cfg.LogFile = config.DefaultLogFile()
	}

	client, err := extractd.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()
	client.SetConsole(os.Stderr)

	server := web.NewServer(client)
	server.SetVersion(version)

	if err := server.Start(cfg.Addr); err != nil {
		log.Fatal(err)
	}
}
