// Package broker defines the external collaborator interface the
// coordinator consumes: order placement, and the three event streams
// (executions, order-status updates, positions) the order engine
// bootstraps and reconciles against. Nothing in this package talks to a
// real network; concrete adapters live under internal/broker/gateway.
package broker

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jarrettlin/execcore/internal/domain"
)

// OrderRequest is what the order engine submits to place or replace a
// working order.
type OrderRequest struct {
	Contract domain.Contract
	Action   domain.OrderAction
	Quantity decimal.Decimal // absolute, unsigned
	Limit    decimal.Decimal // zero means market order

	// ClientOrderID is generated once per logical placement and reused
	// across retry attempts, so a request that reached the broker but
	// whose acknowledgement was lost to a network error is recognized as
	// a duplicate rather than placed twice.
	ClientOrderID string
}

// OrderAck is the broker's synchronous acknowledgement of a placement
// request; fills and status transitions arrive later on the order-update
// stream keyed by PermID/OrderID.
type OrderAck struct {
	PermID  int64
	OrderID int64
}

// BrokerPosition is one row of the broker's authoritative position
// snapshot, consumed during sync_positions.
type BrokerPosition struct {
	Contract domain.Contract
	Quantity decimal.Decimal
	AvgPrice decimal.Decimal
}

// Client is the broker-facing surface the Order Engine and Market-Data
// Consolidator are built against. A concrete implementation owns its own
// reconnect/backoff policy; callers only see a clean channel that closes
// when the stream ends for good.
type Client interface {
	// PlaceOrder submits a new order and returns its broker-assigned ids.
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error)
	// CancelOrder requests cancellation of a working order.
	CancelOrder(ctx context.Context, permID, orderID int64) error
	// ValidateContract confirms the contract is tradeable before a
	// strategy or the consolidator subscribes to it.
	ValidateContract(ctx context.Context, c domain.Contract) error

	// ExecutionStream yields one event per fill. The channel is closed
	// when ctx is done or the stream terminates unrecoverably.
	ExecutionStream(ctx context.Context) (<-chan domain.ExecutionData, error)
	// OrderUpdateStream yields submitted/status/commission events for
	// every order, live, across the life of the process.
	OrderUpdateStream(ctx context.Context) (<-chan domain.OrderUpdate, error)
	// PositionStream yields the broker's current position snapshot once and
	// closes the channel when the snapshot is complete.
	PositionStream(ctx context.Context) (<-chan BrokerPosition, error)

	// SubscribeBars starts a real-time bar feed for key at the broker's
	// base granularity (5 seconds); updates arrive on the returned
	// channel until ctx is cancelled or Unsubscribe is called.
	SubscribeBars(ctx context.Context, key domain.ContractKey) (<-chan domain.Bar, error)
	UnsubscribeBars(key domain.ContractKey) error
	// HistoricalBars fetches a contiguous range of closed bars, used by
	// the consolidator's backfill routine.
	HistoricalBars(ctx context.Context, q domain.BarSeriesQuery) ([]domain.Bar, error)

	// Ready reports whether the broker session has completed login and
	// is accepting requests.
	Ready(ctx context.Context) (bool, error)
}
