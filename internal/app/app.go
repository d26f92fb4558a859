// Package app wires together every collaborator the execution coordinator
// needs (stores, caches, cold storage, broker session, notifications) and
// runs the single always-on Session for the life of the process.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jarrettlin/execcore/internal/config"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	factories map[string]StrategyFactory
	closers   []func()
}

// New creates a new App from the given configuration and logger. Strategy
// plugins are registered separately via Register before Run is called,
// since this package does not itself contain any concrete strategies.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "app")),
		factories: make(map[string]StrategyFactory),
	}
}

// Register adds a StrategyFactory under name. Strategies listed in
// cfg.Strategy.Active with no registered factory are skipped with a
// warning at startup rather than aborting the whole coordinator.
func (a *App) Register(name string, factory StrategyFactory) {
	a.factories[name] = factory
}

// Run wires all dependencies and runs the coordinator session until ctx is
// cancelled. On return it runs all registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting coordinator",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Any("active_strategies", a.cfg.Strategy.Active),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	session := NewSession(a.cfg, deps, a.factories, a.logger)
	return session.Run(ctx)
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down coordinator")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
