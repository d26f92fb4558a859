package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time-range filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TimeSeriesStore is the Time-Series Store Adapter (component A): it
// persists OHLCV bars and answers the range/gap/latest queries the
// consolidator needs to decide what to backfill.
type TimeSeriesStore interface {
	Insert(ctx context.Context, bar Bar) error
	InsertBatch(ctx context.Context, bars []Bar) error
	Query(ctx context.Context, q BarSeriesQuery) ([]Bar, error)
	LatestBar(ctx context.Context, key ContractKey, timestepMinutes int) (Bar, error)
	GapsSince(ctx context.Context, key ContractKey, timestepMinutes int, since time.Time) ([]Gap, error)

	// MostRecentDailyOpen returns the opening price of the most recently
	// completed trading day on file for key.
	MostRecentDailyOpen(ctx context.Context, key ContractKey) (float64, error)
	// VWAPToday returns the volume-weighted average price accumulated so
	// far for key's current trading day.
	VWAPToday(ctx context.Context, key ContractKey) (float64, error)
}

// StockPositionStore is the current/target half of the Positions/Orders Store
// Adapter (component B) for stock positions.
type StockPositionStore interface {
	GetCurrent(ctx context.Context, strategy, symbol, primaryExchange string) (CurrentStockPosition, error)
	UpsertCurrent(ctx context.Context, pos CurrentStockPosition) error
	ListCurrentByStrategy(ctx context.Context, strategy string) ([]CurrentStockPosition, error)
	GetTarget(ctx context.Context, strategy, symbol, primaryExchange string) (TargetStockPosition, error)
	UpsertTarget(ctx context.Context, pos TargetStockPosition) error
	ListTargetByStrategy(ctx context.Context, strategy string) ([]TargetStockPosition, error)
}

// OptionPositionStore mirrors StockPositionStore for option contracts.
type OptionPositionStore interface {
	GetCurrent(ctx context.Context, strategy string, key OptionKey) (CurrentOptionPosition, error)
	UpsertCurrent(ctx context.Context, pos CurrentOptionPosition) error
	ListCurrentByStrategy(ctx context.Context, strategy string) ([]CurrentOptionPosition, error)
	GetTarget(ctx context.Context, strategy string, key OptionKey) (TargetOptionPosition, error)
	UpsertTarget(ctx context.Context, pos TargetOptionPosition) error
	ListTargetByStrategy(ctx context.Context, strategy string) ([]TargetOptionPosition, error)
}

// StockOrderStore persists the open stock order working set.
type StockOrderStore interface {
	CreateOrIgnore(ctx context.Context, o OpenStockOrder) error
	Update(ctx context.Context, o OpenStockOrder) error
	Delete(ctx context.Context, permID, orderID int64) error
	GetByPermID(ctx context.Context, permID, orderID int64) (OpenStockOrder, error)
	ListByStrategyContract(ctx context.Context, strategy, symbol, primaryExchange string) ([]OpenStockOrder, error)
	ListAll(ctx context.Context) ([]OpenStockOrder, error)
}

// OptionOrderStore mirrors StockOrderStore for option contracts.
type OptionOrderStore interface {
	CreateOrIgnore(ctx context.Context, o OpenOptionOrder) error
	Update(ctx context.Context, o OpenOptionOrder) error
	Delete(ctx context.Context, permID, orderID int64) error
	GetByPermID(ctx context.Context, permID, orderID int64) (OpenOptionOrder, error)
	ListByStrategyContract(ctx context.Context, strategy string, key OptionKey) ([]OpenOptionOrder, error)
	ListAll(ctx context.Context) ([]OpenOptionOrder, error)
}

// TransactionStore persists immutable fill records and staged commissions.
type TransactionStore interface {
	InsertStock(ctx context.Context, tx StockTransaction) error
	InsertOption(ctx context.Context, tx OptionTransaction) error
	StageCommission(ctx context.Context, c StagedCommission) error
	SumStockQuantity(ctx context.Context, strategy, symbol, primaryExchange string) (CurrentStockPosition, error)
	SumOptionQuantity(ctx context.Context, strategy string, key OptionKey) (CurrentOptionPosition, error)
	ListByStrategy(ctx context.Context, strategy string, opts ListOpts) ([]StockTransaction, []OptionTransaction, error)
	// ListStockBefore/ListOptionBefore return every transaction strictly
	// before cutoff, for archival to cold storage.
	ListStockBefore(ctx context.Context, cutoff time.Time) ([]StockTransaction, error)
	ListOptionBefore(ctx context.Context, cutoff time.Time) ([]OptionTransaction, error)
}

// StrategyStore persists the strategy registry used to build
// contract_to_strategy and to decide which strategies are active this run.
type StrategyStore interface {
	Upsert(ctx context.Context, s StrategyRecord) error
	Get(ctx context.Context, name string) (StrategyRecord, error)
	ListActive(ctx context.Context) ([]StrategyRecord, error)
}

// AuditEntry is a single audit log row, used for anything the attribution
// pipeline or order engine wants a durable trail of beyond slog output.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// RateLimiter throttles outbound broker API calls, keyed by an arbitrary
// caller-chosen bucket (e.g. "place_order" or "historical_bars").
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}
