package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionData is a single-fill broker event, the unit the Execution
// Attribution pipeline consumes.
type ExecutionData struct {
	ExecutionID       string
	PermID            int64
	OrderID           int64
	Contract          Contract
	Action            OrderAction
	Shares            decimal.Decimal // unsigned fill quantity
	Price             decimal.Decimal
	CumulativeQty     decimal.Decimal // broker's running filled total for this order
	AvgPrice          decimal.Decimal // broker's running average fill price
	ExecutedAtRaw     string          // broker wire format, "YYYYMMDD  HH:MM:SS"
	ExecutedAt        time.Time
}

// CommissionReport is a broker event reporting the fee for one execution,
// which frequently arrives after the matching ExecutionData.
type CommissionReport struct {
	ExecutionID string
	Commission  decimal.Decimal
	Currency    string
}

// OrderUpdate is the broker's order-lifecycle event stream element: either
// a new/changed open order, a status transition, a fill, or a commission.
// Exactly one of the typed fields is non-nil.
type OrderUpdate struct {
	Submitted  *SubmittedOrder
	Status     *OrderStatusUpdate
	Execution  *ExecutionData
	Commission *CommissionReport
}

// SubmittedOrder is emitted once per broker order acceptance.
type SubmittedOrder struct {
	PermID   int64
	OrderID  int64
	Contract Contract
	Action   OrderAction
	Quantity decimal.Decimal
	Limit    decimal.Decimal
}

// OrderStatusUpdate reports a broker-side status transition for an order
// already tracked in the order map.
type OrderStatusUpdate struct {
	PermID int64
	Status OrderStatus
}
