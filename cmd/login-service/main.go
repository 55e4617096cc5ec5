package main

import (
	"log/slog"
	"os"

	"go-messenger/internal/app"
	"go-messenger/internal/config"
	"go-messenger/internal/logger"
)

func main() {
	// Replaced by the configured logger once the environment is loaded.
	slog.SetDefault(logger.New(os.Stdout, "info", "text"))

	application, err := app.New(config.ServiceLogin)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
