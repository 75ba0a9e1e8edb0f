package main

import (
	"log/slog"
	"os"

	"github.com/diatomlab/diatom-annotator/cmd"
	"github.com/diatomlab/diatom-annotator/internal/conf"
	"github.com/diatomlab/diatom-annotator/internal/logging"
)

func parseLevel(level string) slog.Level {
	switch level {
	case "trace":
		return logging.LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	logging.Init()

	settings, err := conf.Load(os.Getenv("DIATOM_CONFIG"))
	if err != nil {
		logging.Fatal("error loading configuration", "error", err)
	}

	if settings.Main.Debug {
		logging.SetLevel(slog.LevelDebug)
	} else {
		logging.SetLevel(parseLevel(settings.Main.LogLevel))
	}
	if settings.Main.LogFile != "" {
		f, err := os.OpenFile(settings.Main.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logging.Fatal("cannot open log file", "path", settings.Main.LogFile, "error", err)
		}
		defer f.Close()
		logging.SetOutput(f, os.Stderr)
	}

	if err := cmd.RootCommand(settings).Execute(); err != nil {
		logging.Fatal("command failed", "error", err)
	}
}
