package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jarrettlin/execcore/internal/config"
	"github.com/jarrettlin/execcore/internal/domain"
	"github.com/jarrettlin/execcore/internal/execution"
	"github.com/jarrettlin/execcore/internal/strategy"
)

// StrategyFactory constructs a live strategy.Strategy from its persisted
// registry record and static configuration. Concrete strategies are
// plugins per the Strategy Contract, not part of this package: operators
// embedding the coordinator register one factory per strategy name before
// calling Session.Run.
type StrategyFactory func(record domain.StrategyRecord, cfg strategy.Config) (strategy.Strategy, error)

// brokerReadyPollInterval is how often WaitForBrokerReady polls Ready
// while waiting for the broker session to finish logging in.
const brokerReadyPollInterval = 2 * time.Second

// WaitForBrokerReady polls the broker's Ready check until it reports true
// or timeout elapses.
func WaitForBrokerReady(ctx context.Context, brokerClient interface {
	Ready(ctx context.Context) (bool, error)
}, timeout time.Duration, logger *slog.Logger) error {
	deadline := time.Now().Add(timeout)
	for {
		ready, err := brokerClient.Ready(ctx)
		if err == nil && ready {
			return nil
		}
		if err != nil {
			logger.WarnContext(ctx, "broker readiness check failed", slog.String("error", err.Error()))
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("app: broker did not become ready within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(brokerReadyPollInterval):
		}
	}
}

// Session is the coordinator's single always-on run mode: unlike the
// teacher's multi-mode switch (trade/arbitrage/monitor/scrape/full), this
// domain has exactly one thing to run — the execution coordinator — for
// as long as the process lives.
type Session struct {
	cfg       *config.Config
	deps      *Dependencies
	factories map[string]StrategyFactory
	logger    *slog.Logger
}

// NewSession creates a Session from already-wired Dependencies and a
// strategy-name -> factory map.
func NewSession(cfg *config.Config, deps *Dependencies, factories map[string]StrategyFactory, logger *slog.Logger) *Session {
	return &Session{
		cfg:       cfg,
		deps:      deps,
		factories: factories,
		logger:    logger.With(slog.String("component", "session")),
	}
}

// buildRegistered constructs one RegisteredStrategy per name in
// cfg.Strategy.Active, using the matching factory. A name with no
// registered factory or whose construction fails is logged and skipped
// rather than aborting the whole session — matching the teacher's
// "engine will idle" graceful-degradation behavior in modes.go.
func (s *Session) buildRegistered(ctx context.Context) []execution.RegisteredStrategy {
	var out []execution.RegisteredStrategy
	for _, name := range s.cfg.Strategy.Active {
		factory, ok := s.factories[name]
		if !ok {
			s.logger.WarnContext(ctx, "no strategy factory registered, skipping", slog.String("strategy", name))
			continue
		}

		timestep := s.cfg.Strategy.DefaultTimestep
		if ts, ok := s.cfg.Strategy.TimestepMinutes[name]; ok {
			timestep = ts
		}

		record := domain.StrategyRecord{Name: name, Active: true}
		strat, err := factory(record, strategy.Config{
			Name:            name,
			TimestepMinutes: timestep,
			WarmUpDays:      s.cfg.Strategy.BackfillDays,
		})
		if err != nil {
			s.logger.WarnContext(ctx, "strategy construction failed, skipping",
				slog.String("strategy", name), slog.String("error", err.Error()))
			continue
		}

		out = append(out, execution.RegisteredStrategy{Strategy: strat, Record: record})
	}
	return out
}

// Run wires the order engine and market-data subscriptions for every
// active strategy and blocks for the life of ctx.
func (s *Session) Run(ctx context.Context) error {
	if err := WaitForBrokerReady(ctx, s.deps.Broker, s.cfg.Broker.ReadyTimeout, s.logger); err != nil {
		if s.deps.Alerts != nil {
			_ = s.deps.Alerts.BootstrapFailure(ctx, "broker_ready", err)
		}
		return fmt.Errorf("app: %w", err)
	}

	registered := s.buildRegistered(ctx)
	if len(registered) == 0 {
		s.logger.WarnContext(ctx, "no strategies active, session will idle serving health checks only")
	}

	attribution := execution.NewAttribution(
		s.deps.StockOrders, s.deps.OptionOrders,
		s.deps.StockPositions, s.deps.OptionPositions,
		s.deps.Transactions, s.logger,
	)
	engine := execution.NewOrderEngine(
		registered, s.deps.Broker, attribution,
		s.deps.StockOrders, s.deps.OptionOrders,
		s.deps.StockPositions, s.deps.OptionPositions,
		s.deps.Transactions, s.logger,
	)
	s.deps.Consolidator.SetReconciler(engine)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return engine.Run(ctx) })

	for _, rs := range registered {
		rs := rs
		g.Go(func() error { return s.warmUpAndSubscribe(ctx, rs) })
	}

	g.Go(func() error { return s.runReconcileLoop(ctx, engine, registered) })

	if s.deps.Archiver != nil {
		g.Go(func() error { return s.runArchiveLoop(ctx) })
	}

	if s.cfg.Server.Enabled && s.deps.HTTPServer != nil {
		g.Go(func() error { return s.deps.HTTPServer.Start() })
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return s.deps.HTTPServer.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// warmUpAndSubscribe backfills history for every contract a strategy
// claims, calls WarmUpData, validates and subscribes each contract with
// the consolidator, then registers the strategy for live bar dispatch.
func (s *Session) warmUpAndSubscribe(ctx context.Context, rs execution.RegisteredStrategy) error {
	for _, contract := range rs.Strategy.GetContracts() {
		if err := s.deps.Broker.ValidateContract(ctx, contract); err != nil {
			s.logger.ErrorContext(ctx, "contract validation failed",
				slog.String("strategy", rs.Record.Name), slog.String("symbol", contract.Symbol),
				slog.String("error", err.Error()))
			continue
		}

		if err := s.deps.Consolidator.Backfill(ctx, contract, s.cfg.Strategy.BackfillDays); err != nil {
			s.logger.ErrorContext(ctx, "backfill failed",
				slog.String("strategy", rs.Record.Name), slog.String("symbol", contract.Symbol),
				slog.String("error", err.Error()))
			if s.deps.Alerts != nil {
				_ = s.deps.Alerts.DataGap(ctx, contract.Symbol, contract.PrimaryExchange, 0)
			}
		}

		key := contract.Key()
		bars, err := s.deps.Bars.Query(ctx, domain.BarSeriesQuery{
			Symbol:          contract.Symbol,
			PrimaryExchange: contract.PrimaryExchange,
			TimestepMinutes: 5,
			From:            time.Now().AddDate(0, 0, -s.cfg.Strategy.BackfillDays),
			To:              time.Now(),
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "warm-up bar query failed",
				slog.String("strategy", rs.Record.Name), slog.String("symbol", contract.Symbol),
				slog.String("error", err.Error()))
		} else if err := rs.Strategy.WarmUpData(ctx, key, bars); err != nil {
			s.logger.ErrorContext(ctx, "warm-up failed",
				slog.String("strategy", rs.Record.Name), slog.String("symbol", contract.Symbol),
				slog.String("error", err.Error()))
		}

		timestep := s.cfg.Strategy.DefaultTimestep
		if ts, ok := s.cfg.Strategy.TimestepMinutes[rs.Record.Name]; ok {
			timestep = ts
		}
		if err := s.deps.Consolidator.Subscribe(ctx, rs.Strategy, contract, timestep); err != nil {
			s.logger.ErrorContext(ctx, "subscribe failed",
				slog.String("strategy", rs.Record.Name), slog.String("symbol", contract.Symbol),
				slog.String("error", err.Error()))
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

// reconcileInterval is the backstop cadence for re-diffing target positions
// against open orders for every active strategy. The primary trigger is a
// strategy's own OnBarUpdate reporting a target change, which the
// consolidator acts on immediately (see Consolidator.dispatch); this loop
// only catches targets that changed by some other path, or a reconcile
// call that was dropped by a transient error on the bar-triggered path.
const reconcileInterval = 30 * time.Second

func (s *Session) runReconcileLoop(ctx context.Context, engine *execution.OrderEngine, registered []execution.RegisteredStrategy) error {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, rs := range registered {
				if err := engine.ReconcileStrategyTargets(ctx, rs.Record.Name); err != nil {
					s.logger.ErrorContext(ctx, "reconcile failed",
						slog.String("strategy", rs.Record.Name), slog.String("error", err.Error()))
				}
			}
		}
	}
}

func (s *Session) runArchiveLoop(ctx context.Context) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -s.cfg.Archive.RetentionDays)
			if n, err := s.deps.Archiver.ArchiveStockTransactions(ctx, cutoff); err != nil {
				s.logger.ErrorContext(ctx, "archive stock transactions failed", slog.String("error", err.Error()))
			} else if n > 0 {
				s.logger.InfoContext(ctx, "archived stock transactions", slog.Int64("count", n))
			}
			if n, err := s.deps.Archiver.ArchiveOptionTransactions(ctx, cutoff); err != nil {
				s.logger.ErrorContext(ctx, "archive option transactions failed", slog.String("error", err.Error()))
			} else if n > 0 {
				s.logger.InfoContext(ctx, "archived option transactions", slog.Int64("count", n))
			}
		}
	}
}
