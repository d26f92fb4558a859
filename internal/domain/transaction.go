package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockTransaction is an immutable record of one fill applied to a stock
// position. Quantity is signed (positive for a buy fill, negative for a
// sell fill) so that summing a strategy's transactions reconstructs its
// position without needing the open-order context.
type StockTransaction struct {
	ExecutionID     string
	Strategy        string
	Symbol          string
	PrimaryExchange string
	Quantity        decimal.Decimal
	Price           decimal.Decimal
	Fees            decimal.Decimal
	ExecutedAt      time.Time
}

// OptionTransaction mirrors StockTransaction for option contracts.
type OptionTransaction struct {
	ExecutionID string
	Strategy    string
	Symbol      string
	Expiry      string
	Strike      float64
	Right       OptionType
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Fees        decimal.Decimal
	ExecutedAt  time.Time
}

// StagedCommission holds a broker commission report; every report is
// staged, whether or not its transaction row exists yet. Migration
// triggers stitch Fees onto the transaction when both rows are present.
// Staged rows are never deleted, so one with no match stays as a record
// of an unattributed commission.
type StagedCommission struct {
	ExecutionID string
	Commission  decimal.Decimal
	Currency    string
	ReceivedAt  time.Time
}
