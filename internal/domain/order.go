package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderAction is the broker-facing buy/sell direction.
type OrderAction string

const (
	OrderActionBuy  OrderAction = "buy"
	OrderActionSell OrderAction = "sell"
)

// Sign returns +1 for Buy, -1 for Sell, used to turn an absolute order
// quantity into a signed position delta.
func (a OrderAction) Sign() int {
	if a == OrderActionSell {
		return -1
	}
	return 1
}

// OrderStatus is the broker's lifecycle state for a submitted order.
type OrderStatus string

const (
	OrderStatusSubmitted    OrderStatus = "submitted"
	OrderStatusOpen         OrderStatus = "open"
	OrderStatusPartialFill  OrderStatus = "partial_fill"
	OrderStatusFilled       OrderStatus = "filled"
	OrderStatusCancelled    OrderStatus = "cancelled"
	OrderStatusApiCancelled OrderStatus = "api_cancelled"
)

// OpenStockOrder is one row of the "open stock orders" working set: a
// broker order the engine is still waiting to see filled or cancelled.
type OpenStockOrder struct {
	PermID          int64
	OrderID         int64
	Strategy        string
	Symbol          string
	PrimaryExchange string
	Action          OrderAction
	Quantity        decimal.Decimal // signed: +buy, -sell
	LimitPrice      decimal.Decimal // zero means market
	Filled          decimal.Decimal
	Executions      []string // execution IDs already applied, for idempotence
	CreatedAt       time.Time
}

// OpenOptionOrder mirrors OpenStockOrder for option contracts.
type OpenOptionOrder struct {
	PermID     int64
	OrderID    int64
	Strategy   string
	Symbol     string
	Expiry     string
	Strike     float64
	Right      OptionType
	Action     OrderAction
	Quantity   decimal.Decimal
	LimitPrice decimal.Decimal
	Filled     decimal.Decimal
	Executions []string
	CreatedAt  time.Time
}

// HasExecution reports whether execID has already been applied to this
// open order, the idempotence guard the attribution pipeline relies on.
func (o OpenStockOrder) HasExecution(execID string) bool {
	for _, e := range o.Executions {
		if e == execID {
			return true
		}
	}
	return false
}

func (o OpenOptionOrder) HasExecution(execID string) bool {
	for _, e := range o.Executions {
		if e == execID {
			return true
		}
	}
	return false
}

// OrderMapEntry is the in-memory order_map value: the strategy that owns
// the order, its contract, and a snapshot of the broker order, keyed by
// perm ID. It exists only for the lifetime of the process; after a restart,
// entries for orders still open at the broker are re-created from the
// broker's order-update stream by SyncOpenOrders.
type OrderMapEntry struct {
	Strategy string
	Contract Contract
	Action   OrderAction
	Quantity decimal.Decimal
}
