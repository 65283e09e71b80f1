package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/handiism/playlist-sync/internal/app"
	"github.com/handiism/playlist-sync/internal/config"
	"github.com/handiism/playlist-sync/internal/logging"
	"github.com/handiism/playlist-sync/internal/tui"
	"github.com/rs/zerolog"
)

func main() {
	configFlag := flag.String("config", "", "Path to config file (.json, .yaml)")
	flag.Parse()

	dir := "."
	if flag.NArg() > 0 {
		dir = flag.Arg(0)
	}

	configPath := *configFlag
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	settings, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// The screen belongs to the UI; logs only go to a file.
	logger := zerolog.Nop()
	if settings.LogFile != "" {
		f, err := logging.OpenFile(settings.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if logger, err = logging.New(settings.LogLevel, f, false); err != nil {
			fmt.Fprintf(os.Stderr, "Error in config: %v\n", err)
			os.Exit(1)
		}
	}

	session, err := app.New(settings, logger).Open(dir, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := tui.Run(session); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
