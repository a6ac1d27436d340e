package main

import (
	"fmt"
	"os"

	"github.com/armmoon4/bitsoftrade/internal/cli"
	"github.com/armmoon4/bitsoftrade/internal/config"
	"github.com/armmoon4/bitsoftrade/internal/logging"
)

func main() {
	configDir := configDirArg(os.Args[1:])

	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLoggerWithConfig(logging.LogConfig{
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
		File:       cfg.Logging.File,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
	})

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// configDirArg extracts the --config flag before cobra parses anything,
// since the config decides how the command tree is wired.
func configDirArg(args []string) string {
	for i, arg := range args {
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if len(arg) > len("--config=") && arg[:len("--config=")] == "--config=" {
			return arg[len("--config="):]
		}
	}
	return ""
}
