// Package feed implements the Market-Data Consolidator (component E): it
// turns the broker's 5-second realtime bar stream into 5-minute bars at
// the timesteps strategies subscribe to, persists them, backfills
// historical gaps on startup, and serves a cached current-price lookup.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jarrettlin/execcore/internal/broker"
	"github.com/jarrettlin/execcore/internal/domain"
	"github.com/jarrettlin/execcore/internal/strategy"
)

// subscriber pairs a strategy with the timestep (in minutes) it wants bar
// updates at for one contract.
type subscriber struct {
	timestep int
	strat    strategy.Strategy
}

// Reconciler is the order engine's target-diffing surface the consolidator
// drives whenever a strategy's OnBarUpdate reports a target change:
// ReconcileContract scopes the diff to one contract, ReconcileStrategyTargets
// to every target position the strategy has on file.
type Reconciler interface {
	ReconcileContract(ctx context.Context, strategyName string, contract domain.Contract) error
	ReconcileStrategyTargets(ctx context.Context, strategyName string) error
}

// Consolidator owns the subscription registry and the live 5-second bar
// buffers, one aggregator per subscribed contract.
type Consolidator struct {
	broker     broker.Client
	bars       domain.TimeSeriesStore
	logger     *slog.Logger
	cache      *priceCache
	reconciler Reconciler

	mu            sync.Mutex
	subscriptions map[domain.ContractKey][]subscriber
	aggregators   map[domain.ContractKey]*aggregator
	cancelStream  map[domain.ContractKey]context.CancelFunc
}

// New constructs a Consolidator with a 20-second price cache TTL, matching
// the original's past_data/past_data_vwap cache lifetime.
func New(brokerClient broker.Client, bars domain.TimeSeriesStore, logger *slog.Logger) *Consolidator {
	return &Consolidator{
		broker:        brokerClient,
		bars:          bars,
		logger:        logger.With(slog.String("component", "consolidator")),
		cache:         newPriceCache(20 * time.Second),
		subscriptions: make(map[domain.ContractKey][]subscriber),
		aggregators:   make(map[domain.ContractKey]*aggregator),
		cancelStream:  make(map[domain.ContractKey]context.CancelFunc),
	}
}

// SetReconciler wires the order engine's reconciliation methods into bar
// dispatch. It is called once, after the order engine is constructed, and
// before any subscription starts delivering bars; the order engine can't
// exist until the active strategy set is known, which happens later than
// Consolidator construction, so this can't just be a New() parameter.
func (c *Consolidator) SetReconciler(r Reconciler) {
	c.mu.Lock()
	c.reconciler = r
	c.mu.Unlock()
}

// Subscribe registers strat for bar updates on contract every timestepMinutes
// minutes. The first subscriber for a contract starts its live 5-second bar
// stream; later subscribers for the same contract just add to the fan-out
// list, matching the original's "spawn thread only if entry didn't exist
// before" short-circuit.
func (c *Consolidator) Subscribe(ctx context.Context, strat strategy.Strategy, contract domain.Contract, timestepMinutes int) error {
	key := contract.Key()

	c.mu.Lock()
	_, exists := c.subscriptions[key]
	c.subscriptions[key] = append(c.subscriptions[key], subscriber{timestep: timestepMinutes, strat: strat})
	if exists {
		c.mu.Unlock()
		return nil
	}
	c.aggregators[key] = newAggregator()
	c.mu.Unlock()

	streamCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelStream[key] = cancel
	c.mu.Unlock()

	stream, err := c.broker.SubscribeBars(streamCtx, key)
	if err != nil {
		cancel()
		return fmt.Errorf("feed: subscribe bars for %s: %w", key, err)
	}

	go c.consume(streamCtx, key, contract, stream)
	return nil
}

// Unsubscribe removes strat's registration for contract; once no
// subscriber is left, the live stream is torn down.
func (c *Consolidator) Unsubscribe(contract domain.Contract, strat strategy.Strategy) {
	key := contract.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	subs := c.subscriptions[key]
	remaining := subs[:0]
	for _, s := range subs {
		if s.strat != strat {
			remaining = append(remaining, s)
		}
	}
	c.subscriptions[key] = remaining

	if len(remaining) == 0 {
		if cancel, ok := c.cancelStream[key]; ok {
			cancel()
			delete(c.cancelStream, key)
		}
		delete(c.aggregators, key)
		if err := c.broker.UnsubscribeBars(key); err != nil {
			c.logger.Error("failed to unsubscribe bars", slog.String("contract", key.String()), slog.String("error", err.Error()))
		}
	}
}

// consume reads 5-second bars for one contract for the life of ctx,
// folding them into 5-minute bars, persisting each closed bar, and
// dispatching it to every subscriber whose timestep divides the elapsed
// minutes since market open.
func (c *Consolidator) consume(ctx context.Context, key domain.ContractKey, contract domain.Contract, stream <-chan domain.Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar5s, ok := <-stream:
			if !ok {
				c.logger.Warn("bar stream closed", slog.String("contract", key.String()))
				return
			}
			c.handleRawBar(ctx, key, contract, bar5s)
		}
	}
}

func (c *Consolidator) handleRawBar(ctx context.Context, key domain.ContractKey, contract domain.Contract, bar5s domain.Bar) {
	c.mu.Lock()
	agg := c.aggregators[key]
	c.mu.Unlock()
	if agg == nil {
		return
	}

	closed := agg.Add(bar5s)
	for _, bar := range closed {
		bar.Symbol = contract.Symbol
		bar.PrimaryExchange = contract.PrimaryExchange
		bar.TimestepMinutes = 5

		if err := c.bars.Insert(ctx, bar); err != nil {
			c.logger.Error("failed to persist bar", slog.String("contract", key.String()), slog.String("error", err.Error()))
		}
		c.cache.Set(key, false, bar.Close)
		c.dispatch(ctx, key, contract, bar)
	}
}

// dispatch calls OnBarUpdate for every subscriber whose timestep the
// elapsed minutes since market open (9:30am) divides evenly, matching the
// original's elapsed_min % timestep == 0 rule. A subscriber reporting
// updated==true immediately drives a reconciliation pass through the wired
// Reconciler, scoped to this contract or the whole strategy per
// ignoreContract — the primary target-vs-open-order diff trigger, with
// Session's periodic reconcile loop only as a backstop.
func (c *Consolidator) dispatch(ctx context.Context, key domain.ContractKey, contract domain.Contract, bar domain.Bar) {
	elapsed := minutesSinceMarketOpen(bar.StartTime)
	if elapsed < 0 {
		return
	}

	c.mu.Lock()
	subs := append([]subscriber(nil), c.subscriptions[key]...)
	reconciler := c.reconciler
	c.mu.Unlock()

	for _, sub := range subs {
		if sub.timestep <= 0 || elapsed%sub.timestep != 0 {
			continue
		}
		go func(s subscriber) {
			updated, ignoreContract, err := s.strat.OnBarUpdate(ctx, bar)
			if err != nil {
				c.logger.Error("strategy bar update failed",
					slog.String("strategy", s.strat.GetName()), slog.String("contract", key.String()), slog.String("error", err.Error()))
				return
			}
			if !updated || reconciler == nil {
				return
			}
			if ignoreContract {
				if err := reconciler.ReconcileStrategyTargets(ctx, s.strat.GetName()); err != nil {
					c.logger.Error("reconcile strategy targets failed",
						slog.String("strategy", s.strat.GetName()), slog.String("error", err.Error()))
				}
				return
			}
			if err := reconciler.ReconcileContract(ctx, s.strat.GetName(), contract); err != nil {
				c.logger.Error("reconcile contract failed",
					slog.String("strategy", s.strat.GetName()), slog.String("contract", key.String()), slog.String("error", err.Error()))
			}
		}(sub)
	}
}

func minutesSinceMarketOpen(t time.Time) int {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		ny = time.UTC
	}
	local := t.In(ny)
	open := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, ny)
	return int(local.Sub(open).Minutes())
}

// CurrentPrice resolves contract's price through the live-sub, cache, then
// broker-snapshot fallback chain (spec §4.E.5). A live subscription always
// answers with the last closed bar's trade price regardless of useVWAP;
// the VWAP distinction only applies to the cache/snapshot fallback paths,
// which is why the cache itself is keyed on (contract, vwap?).
func (c *Consolidator) CurrentPrice(ctx context.Context, contract domain.Contract, useVWAP bool) (float64, error) {
	key := contract.Key()

	c.mu.Lock()
	agg := c.aggregators[key]
	c.mu.Unlock()
	if agg != nil {
		if last, ok := agg.Last(); ok {
			return last.Close, nil
		}
	}

	if price, ok := c.cache.Get(key, useVWAP); ok {
		return price, nil
	}

	if useVWAP {
		return c.vwapPrice(ctx, key)
	}
	return c.snapshotPrice(ctx, key, contract)
}

func (c *Consolidator) vwapPrice(ctx context.Context, key domain.ContractKey) (float64, error) {
	price, err := c.bars.VWAPToday(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("feed: vwap today for %s: %w", key, err)
	}
	c.cache.Set(key, true, price)
	return price, nil
}

func (c *Consolidator) snapshotPrice(ctx context.Context, key domain.ContractKey, contract domain.Contract) (float64, error) {
	now := time.Now()
	bars, err := c.broker.HistoricalBars(ctx, domain.BarSeriesQuery{
		Symbol:          contract.Symbol,
		PrimaryExchange: contract.PrimaryExchange,
		TimestepMinutes: 5,
		From:            now.Add(-10 * time.Minute),
		To:              now,
	})
	if err != nil {
		return 0, fmt.Errorf("feed: snapshot price for %s: %w", key, err)
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("feed: no snapshot bars available for %s", key)
	}
	price := bars[len(bars)-1].Close
	c.cache.Set(key, false, price)
	return price, nil
}
