package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jarrettlin/execcore/internal/broker"
	"github.com/jarrettlin/execcore/internal/domain"
	"github.com/jarrettlin/execcore/internal/strategy"
)

// RegisteredStrategy pairs a live Strategy implementation with its
// registry record, the priority/active information contract ownership
// tie-breaks are resolved from.
type RegisteredStrategy struct {
	Strategy strategy.Strategy
	Record   domain.StrategyRecord
}

// OrderEngine is the Order Engine (component D): it owns the order_map and
// contract_to_strategy in-memory indexes, reconciles them against the
// broker at startup, and turns target-position changes into broker order
// placements via the Attribution pipeline and the diff algorithm.
type OrderEngine struct {
	broker      broker.Client
	attribution *Attribution
	logger      *slog.Logger

	stockOrders     domain.StockOrderStore
	optionOrders    domain.OptionOrderStore
	stockPositions  domain.StockPositionStore
	optionPositions domain.OptionPositionStore
	transactions    domain.TransactionStore

	strategies map[string]strategy.Strategy

	ctsMu              sync.RWMutex
	contractToStrategy map[domain.ContractKey]string

	orderMu  sync.RWMutex
	orderMap map[int64]domain.OrderMapEntry
}

// NewOrderEngine constructs an OrderEngine and builds contract_to_strategy
// from the given active strategies, breaking ties by StrategyRecord.Less:
// when two strategies claim the same contract, the higher-priority
// strategy (or, on a priority tie, the lexicographically later name) wins
// ownership.
func NewOrderEngine(
	registered []RegisteredStrategy,
	brokerClient broker.Client,
	attribution *Attribution,
	stockOrders domain.StockOrderStore,
	optionOrders domain.OptionOrderStore,
	stockPositions domain.StockPositionStore,
	optionPositions domain.OptionPositionStore,
	transactions domain.TransactionStore,
	logger *slog.Logger,
) *OrderEngine {
	e := &OrderEngine{
		broker:             brokerClient,
		attribution:        attribution,
		logger:             logger.With(slog.String("component", "order_engine")),
		stockOrders:        stockOrders,
		optionOrders:       optionOrders,
		stockPositions:     stockPositions,
		optionPositions:    optionPositions,
		transactions:       transactions,
		strategies:         make(map[string]strategy.Strategy, len(registered)),
		contractToStrategy: make(map[domain.ContractKey]string),
		orderMap:           make(map[int64]domain.OrderMapEntry),
	}

	// Sort is unnecessary for correctness (Less comparison is total across
	// any pair), but a stable owner for equal-priority/equal-name inputs is
	// guaranteed because each (strategy, contract) pair is visited once.
	for _, rs := range registered {
		e.strategies[rs.Record.Name] = rs.Strategy
		for _, contract := range rs.Strategy.GetContracts() {
			key := contract.Key()
			existingName, ok := e.contractToStrategy[key]
			if !ok {
				e.contractToStrategy[key] = rs.Record.Name
				continue
			}
			existingRecord := domain.StrategyRecord{Name: existingName}
			for _, other := range registered {
				if other.Record.Name == existingName {
					existingRecord = other.Record
					break
				}
			}
			if existingRecord.Less(rs.Record) {
				e.contractToStrategy[key] = rs.Record.Name
			}
		}
	}

	return e
}

// StrategyFor returns the strategy name that owns key, or "" if no active
// strategy claims it.
func (e *OrderEngine) StrategyFor(key domain.ContractKey) string {
	e.ctsMu.RLock()
	defer e.ctsMu.RUnlock()
	return e.contractToStrategy[key]
}

// SyncExecutions consumes the broker's fill stream for the life of ctx,
// routing every fill through the Attribution pipeline. It returns when ctx
// is cancelled or the stream ends.
func (e *OrderEngine) SyncExecutions(ctx context.Context) error {
	stream, err := e.broker.ExecutionStream(ctx)
	if err != nil {
		return fmt.Errorf("order_engine: open execution stream: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case exec, ok := <-stream:
			if !ok {
				return fmt.Errorf("order_engine: %w", domain.ErrBrokerStream)
			}
			if err := e.attribution.Apply(ctx, exec); err != nil {
				e.logger.ErrorContext(ctx, "attribution failed",
					slog.String("execution_id", exec.ExecutionID), slog.String("error", err.Error()))
			}
		}
	}
}

// pendingOpenOrder buffers a Submitted event until its matching Status
// event (or vice versa) arrives, since the broker delivers them
// independently but on_full_open_order_received needs both.
type pendingOpenOrder struct {
	submitted *domain.SubmittedOrder
	status    *domain.OrderStatusUpdate
}

// SyncOpenOrders consumes the broker's order-update stream, buffering
// Submitted/Status pairs by PermID until both have arrived, then
// materializing (or removing) the corresponding open order row. It also
// dispatches Execution and Commission events arriving on this stream.
func (e *OrderEngine) SyncOpenOrders(ctx context.Context) error {
	stream, err := e.broker.OrderUpdateStream(ctx)
	if err != nil {
		return fmt.Errorf("order_engine: open order-update stream: %w", err)
	}

	pending := make(map[int64]*pendingOpenOrder)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-stream:
			if !ok {
				return fmt.Errorf("order_engine: %w", domain.ErrBrokerStream)
			}
			e.handleOrderUpdate(ctx, update, pending)
		}
	}
}

func (e *OrderEngine) handleOrderUpdate(ctx context.Context, update domain.OrderUpdate, pending map[int64]*pendingOpenOrder) {
	switch {
	case update.Submitted != nil:
		s := update.Submitted
		p := pending[s.PermID]
		if p == nil {
			p = &pendingOpenOrder{}
			pending[s.PermID] = p
		}
		p.submitted = s
		e.maybeReceiveFullOpenOrder(ctx, s.PermID, pending)

	case update.Status != nil:
		st := update.Status
		switch st.Status {
		case domain.OrderStatusCancelled, domain.OrderStatusApiCancelled:
			e.onOrderCancelled(ctx, st.PermID)
			delete(pending, st.PermID)
			return
		}
		p := pending[st.PermID]
		if p == nil {
			p = &pendingOpenOrder{}
			pending[st.PermID] = p
		}
		p.status = st
		e.maybeReceiveFullOpenOrder(ctx, st.PermID, pending)

	case update.Execution != nil:
		if err := e.attribution.Apply(ctx, *update.Execution); err != nil {
			e.logger.ErrorContext(ctx, "attribution failed on order-update stream", slog.String("error", err.Error()))
		}

	case update.Commission != nil:
		e.onCommissionUpdate(ctx, *update.Commission)
	}
}

// maybeReceiveFullOpenOrder materializes the open order once both halves
// of the pending pair are present, mirroring on_full_open_order_received.
func (e *OrderEngine) maybeReceiveFullOpenOrder(ctx context.Context, permID int64, pending map[int64]*pendingOpenOrder) {
	p := pending[permID]
	if p == nil || p.submitted == nil || p.status == nil {
		return
	}
	delete(pending, permID)
	onNewOrderSubmitted(ctx, e, *p.submitted)
}

func (e *OrderEngine) onOrderCancelled(ctx context.Context, permID int64) {
	e.orderMu.Lock()
	entry, ok := e.orderMap[permID]
	delete(e.orderMap, permID)
	e.orderMu.Unlock()
	if !ok {
		return
	}

	var err error
	if entry.Contract.SecType == domain.AssetTypeOption {
		err = e.optionOrders.Delete(ctx, permID, 0)
	} else {
		err = e.stockOrders.Delete(ctx, permID, 0)
	}
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to delete cancelled open order", slog.Int64("perm_id", permID), slog.String("error", err.Error()))
	}
}

func (e *OrderEngine) onCommissionUpdate(ctx context.Context, c domain.CommissionReport) {
	// The broker delivers commission reports asynchronously, often before
	// the matching execution row is committed. A 10ms settle delay gives
	// that row a chance to land first; after it, staging plus store-side
	// triggers (see migrations) reconcile the two whichever arrives first,
	// so this call never waits for the execution itself.
	select {
	case <-ctx.Done():
		return
	case <-time.After(10 * time.Millisecond):
	}
	if err := e.transactions.StageCommission(ctx, domain.StagedCommission{
		ExecutionID: c.ExecutionID,
		Commission:  c.Commission,
		Currency:    c.Currency,
	}); err != nil {
		e.logger.ErrorContext(ctx, "failed to stage commission", slog.String("execution_id", c.ExecutionID), slog.String("error", err.Error()))
	}
}

// SyncPositions reconciles the broker's authoritative position snapshot
// against the locally maintained current-position tables, folding any
// discrepancy additively into UnknownStrategy so local state never
// silently diverges from the broker's.
func (e *OrderEngine) SyncPositions(ctx context.Context) error {
	stream, err := e.broker.PositionStream(ctx)
	if err != nil {
		return fmt.Errorf("order_engine: open position stream: %w", err)
	}

	for pos := range stream {
		if err := e.reconcilePosition(ctx, pos); err != nil {
			e.logger.ErrorContext(ctx, "position reconciliation failed",
				slog.String("symbol", pos.Contract.Symbol), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (e *OrderEngine) reconcilePosition(ctx context.Context, pos broker.BrokerPosition) error {
	if pos.Contract.SecType == domain.AssetTypeOption {
		return e.reconcileOptionPosition(ctx, pos)
	}
	return e.reconcileStockPosition(ctx, pos)
}

func (e *OrderEngine) reconcileStockPosition(ctx context.Context, pos broker.BrokerPosition) error {
	owner := e.StrategyFor(pos.Contract.Key())
	if owner == "" {
		owner = UnknownStrategy
	}

	local, err := e.transactions.SumStockQuantity(ctx, owner, pos.Contract.Symbol, pos.Contract.PrimaryExchange)
	if err != nil {
		return err
	}

	discrepancy := pos.Quantity.Sub(local.Quantity)
	if discrepancy.IsZero() {
		return nil
	}

	e.logger.WarnContext(ctx, "stock position discrepancy against broker, folding into unknown",
		slog.String("symbol", pos.Contract.Symbol), slog.String("discrepancy", discrepancy.String()))

	current, err := e.stockPositions.GetCurrent(ctx, UnknownStrategy, pos.Contract.Symbol, pos.Contract.PrimaryExchange)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	newQty, newAvg := applyFill(current.Quantity, current.AvgPrice, discrepancy, pos.AvgPrice)
	return e.stockPositions.UpsertCurrent(ctx, domain.CurrentStockPosition{
		Strategy: UnknownStrategy, Symbol: pos.Contract.Symbol, PrimaryExchange: pos.Contract.PrimaryExchange,
		Quantity: newQty, AvgPrice: newAvg,
	})
}

func (e *OrderEngine) reconcileOptionPosition(ctx context.Context, pos broker.BrokerPosition) error {
	owner := e.StrategyFor(pos.Contract.Key())
	if owner == "" {
		owner = UnknownStrategy
	}
	key := domain.OptionKey{Symbol: pos.Contract.Symbol, Expiry: pos.Contract.Expiry, Strike: pos.Contract.Strike, Right: pos.Contract.Right}

	local, err := e.transactions.SumOptionQuantity(ctx, owner, key)
	if err != nil {
		return err
	}

	discrepancy := pos.Quantity.Sub(local.Quantity)
	if discrepancy.IsZero() {
		return nil
	}

	e.logger.WarnContext(ctx, "option position discrepancy against broker, folding into unknown",
		slog.String("symbol", pos.Contract.Symbol), slog.String("discrepancy", discrepancy.String()))

	current, err := e.optionPositions.GetCurrent(ctx, UnknownStrategy, key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	newQty, newAvg := applyFill(current.Quantity, current.AvgPrice, discrepancy, pos.AvgPrice)
	return e.optionPositions.UpsertCurrent(ctx, domain.CurrentOptionPosition{
		Strategy: UnknownStrategy, Symbol: key.Symbol, Expiry: key.Expiry, Strike: key.Strike, Right: key.Right,
		Quantity: newQty, AvgPrice: newAvg,
	})
}

// Run starts the three sync passes concurrently and blocks for the life of
// the engine: SyncPositions completes once the broker's snapshot stream
// ends, while SyncExecutions and SyncOpenOrders keep consuming their
// streams for as long as ctx is live. They read from independent broker
// streams, so there is no ordering dependency between them, only between
// each stream's internal event order.
func (e *OrderEngine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.SyncExecutions(ctx) })
	g.Go(func() error { return e.SyncOpenOrders(ctx) })
	g.Go(func() error { return e.SyncPositions(ctx) })
	return g.Wait()
}
