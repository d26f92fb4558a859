package domain

import "time"

// Bar is one OHLCV candle on a fixed timestep grid. TimestepMinutes
// identifies the aggregation window (5 for the base ingest grid, larger
// multiples for subscriber-requested windows such as 15 or 30).
type Bar struct {
	Symbol          string
	PrimaryExchange string
	TimestepMinutes int
	StartTime       time.Time // UTC, truncated to TimestepMinutes
	Open            float64
	High            float64
	Low             float64
	Close           float64
	Volume          int64
	WAP             float64 // volume-weighted average price for the bar
	TradeCount      int
}

// Key returns the contract key this bar belongs to.
func (b Bar) Key() ContractKey {
	return ContractKey{Symbol: b.Symbol, PrimaryExchange: b.PrimaryExchange}
}

// BarSeriesQuery selects a contiguous range of bars for a contract at a
// given timestep.
type BarSeriesQuery struct {
	Symbol          string
	PrimaryExchange string
	TimestepMinutes int
	From            time.Time
	To              time.Time
}

// Gap describes a missing span detected between two consecutive known
// bars. A span before the first known bar is not reported as a Gap.
type Gap struct {
	Symbol          string
	PrimaryExchange string
	TimestepMinutes int
	From            time.Time
	To              time.Time
	MissingBars     int
}
