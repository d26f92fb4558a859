// Package strategy defines the contract every trading strategy plugged
// into the coordinator must satisfy.
package strategy

import (
	"context"

	"github.com/jarrettlin/execcore/internal/domain"
)

// Strategy is the contract between a trading strategy and the rest of the
// coordinator. The order engine uses GetName/GetContracts/GetContract to
// build contract ownership and to resolve a contract from a bare symbol;
// the consolidator calls WarmUpData once per contract before live data
// starts flowing, then OnBarUpdate on every closed bar the strategy
// subscribed to.
type Strategy interface {
	// GetName returns the strategy's unique registry name, used as the
	// strategy column throughout the store and as the contract_to_strategy
	// tie-break key.
	GetName() string

	// GetContracts returns every contract this strategy wants to trade or
	// receive bar updates for.
	GetContracts() []domain.Contract

	// GetContract resolves symbol to the concrete domain.Contract the
	// strategy trades, e.g. picking a specific expiry/strike for an option
	// symbol.
	GetContract(ctx context.Context, symbol string) (domain.Contract, error)

	// WarmUpData is called once per contract before the live bar feed
	// starts, with as much historical context as the strategy asked for.
	WarmUpData(ctx context.Context, key domain.ContractKey, bars []domain.Bar) error

	// OnBarUpdate is called for every closed bar at the strategy's
	// subscribed timestep. It may update the strategy's target positions
	// as a side effect (typically by writing to the target position
	// store). updated reports whether target positions changed and the
	// order engine should diff them against open orders; when updated is
	// true, ignoreContract reports whether that diff should cover every
	// contract the strategy targets (true) or just the contract bar
	// belongs to (false). err is non-nil only for conditions that should
	// halt processing for this contract.
	OnBarUpdate(ctx context.Context, bar domain.Bar) (updated bool, ignoreContract bool, err error)

	// Close releases any resources held by the strategy.
	Close() error
}

// Config is the static configuration a strategy is constructed from.
type Config struct {
	Name            string
	Priority        int
	TimestepMinutes int
	WarmUpDays      int
	Params          map[string]any
}
