package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrentStockPosition is the strategy's believed-held stock position,
// reconciled against the broker during session bootstrap.
type CurrentStockPosition struct {
	Strategy        string
	Symbol          string
	PrimaryExchange string
	Quantity        decimal.Decimal
	AvgPrice        decimal.Decimal
	UpdatedAt       time.Time
}

// CurrentOptionPosition mirrors CurrentStockPosition for option contracts.
type CurrentOptionPosition struct {
	Strategy  string
	Symbol    string
	Expiry    string
	Strike    float64
	Right     OptionType
	Quantity  decimal.Decimal
	AvgPrice  decimal.Decimal
	UpdatedAt time.Time
}

// TargetStockPosition is the position a strategy wants to hold; the order
// engine diffs this against CurrentStockPosition plus open order quantity
// to decide what to place, amend, or cancel.
type TargetStockPosition struct {
	Strategy        string
	Symbol          string
	PrimaryExchange string
	Quantity        decimal.Decimal
	LimitPrice      decimal.Decimal // zero means "market"
	UpdatedAt       time.Time
}

// TargetOptionPosition mirrors TargetStockPosition for option contracts.
type TargetOptionPosition struct {
	Strategy   string
	Symbol     string
	Expiry     string
	Strike     float64
	Right      OptionType
	Quantity   decimal.Decimal
	LimitPrice decimal.Decimal
	UpdatedAt  time.Time
}
