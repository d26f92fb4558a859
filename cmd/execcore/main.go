// Command execcore is the process entry point for the execution
// coordinator. It loads configuration from the environment, wires
// dependencies, and runs the coordinator session until an interrupt or
// terminate signal is received.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jarrettlin/execcore/internal/app"
	"github.com/jarrettlin/execcore/internal/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	redacted := config.RedactedConfig(cfg)
	logger.Info("execcore starting", slog.Any("config", redacted))

	application := app.New(cfg, logger)
	defer application.Close()

	// Concrete strategy.Strategy implementations are registered here by
	// whatever embeds this binary; none ship in this package.
	registerStrategies(application)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("coordinator exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("execcore stopped")
}

func logLevel(level string) slog.Level {
	switch level {
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

// registerStrategies is the plugin-registration point: callers embedding
// this coordinator into their own binary should replace this function
// with one that calls application.Register for each strategy.Strategy
// implementation they maintain.
func registerStrategies(application *app.App) {
}
