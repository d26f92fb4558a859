package domain

import "fmt"

// AssetType distinguishes the two instrument families the coordinator
// tracks. Every store, the order engine, and the consolidator key off it.
type AssetType string

const (
	AssetTypeStock  AssetType = "stock"
	AssetTypeOption AssetType = "option"
)

// OptionType is the option right, empty for AssetTypeStock contracts.
type OptionType string

const (
	OptionTypeCall OptionType = "call"
	OptionTypePut  OptionType = "put"
	OptionTypeNone OptionType = ""
)

// Contract identifies a tradeable instrument. Futures are represented with
// a "FUT:" prefixed Symbol, matching the broker's own contract-key
// convention, so stock and future positions share one table without a
// dedicated asset type.
type Contract struct {
	Symbol          string
	PrimaryExchange string
	SecType         AssetType
	// Option-only fields; zero value for stocks.
	Expiry     string // YYYYMMDD
	Strike     float64
	Right      OptionType
	Multiplier int
}

// Key returns the (symbol, primary_exchange) pair used to look up a
// contract's owning strategy and its live-data subscription bucket.
func (c Contract) Key() ContractKey {
	return ContractKey{Symbol: c.Symbol, PrimaryExchange: c.PrimaryExchange}
}

// IsFuture reports whether this contract is a futures root, signalled by
// the "FUT:" symbol prefix.
func (c Contract) IsFuture() bool {
	return len(c.Symbol) > 4 && c.Symbol[:4] == "FUT:"
}

// OptionKey uniquely identifies an option contract within a symbol,
// distinguishing strike/expiry/right combinations that share an underlying.
type OptionKey struct {
	Symbol string
	Expiry string
	Strike float64
	Right  OptionType
}

func (k OptionKey) String() string {
	return fmt.Sprintf("%s:%s:%.2f:%s", k.Symbol, k.Expiry, k.Strike, k.Right)
}

// ContractKey is the market-data subscription and strategy-ownership key.
type ContractKey struct {
	Symbol          string
	PrimaryExchange string
}

func (k ContractKey) String() string {
	return k.Symbol + "@" + k.PrimaryExchange
}
