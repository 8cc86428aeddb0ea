package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	clts "botwatch/clients"
	"botwatch/config"
	"botwatch/internal/app"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Load config from environment variables
	cfg := config.Load()

	// Optional YAML overlay for non-secret settings
	if path := os.Getenv("BOTWATCH_CONFIG_FILE"); path != "" {
		overlaid, err := config.LoadFile(path, cfg)
		if err != nil {
			logger.Warn("failed to load config file, using env/defaults",
				zap.String("path", path), zap.Error(err))
		} else {
			cfg = overlaid
			logger.Info("config file loaded", zap.String("path", path))
		}
	}

	logger.Info("starting botwatch",
		zap.Bool("isProd", cfg.IsProd),
		zap.String("backend", cfg.Backend.BaseURL),
	)

	clients := clts.NewClients(logger, cfg)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	runner := app.NewRunner(clients, cfg)
	if err := runner.Run(ctx); err != nil {
		logger.Fatal("runner failed", zap.Error(err))
	}
}
