// Package adapters provides the pool adapter SPI (one flat implementation
// per DEX protocol variant, no base class) plus the RPC client, signer,
// and relay/flash-loan clients the router and executor consume.
package adapters

import (
	"context"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/shopspring/decimal"
)

// SwapParams carries the parameters BuildSwapCalldata needs beyond the
// pool itself: the concrete amounts and the minimum-out floor already
// computed by the router's slippage contract.
type SwapParams struct {
	Recipient    string
	AmountIn     decimal.Decimal
	MinAmountOut decimal.Decimal
	Deadline     int64
}

// PoolEvent is a decoded swap/sync event read off a pool's logs.
type PoolEvent struct {
	Pool        arbmodel.PoolID
	Reserve0    decimal.Decimal
	Reserve1    decimal.Decimal
	BlockNumber uint64
}

// Adapter is the capability set every DEX protocol variant implements —
// a flat trait, not a class hierarchy, matching SPEC_FULL.md's explicit
// "no base class" design note. Contract: deterministic for a fixed
// (pool snapshot, params) pair.
type Adapter interface {
	// Protocol names the DEX protocol variant this adapter serves.
	Protocol() arbmodel.DEX

	// QuoteExactIn returns the amount out for a fixed amount in.
	QuoteExactIn(ctx context.Context, pool arbmodel.Pool, tokenIn arbmodel.Token, amountIn decimal.Decimal) (decimal.Decimal, error)

	// QuoteExactOut returns the amount in required to produce a fixed
	// amount out.
	QuoteExactOut(ctx context.Context, pool arbmodel.Pool, tokenOut arbmodel.Token, amountOut decimal.Decimal) (decimal.Decimal, error)

	// BuildSwapCalldata encodes the calldata for a concrete swap against
	// this pool.
	BuildSwapCalldata(ctx context.Context, pool arbmodel.Pool, tokenIn, tokenOut arbmodel.Token, params SwapParams) ([]byte, error)

	// DecodeEvent decodes a raw log topic/data pair into a PoolEvent, or
	// ok=false if the log does not belong to this adapter's event set.
	DecodeEvent(topics []string, data []byte) (PoolEvent, bool, error)
}

// Registry resolves an Adapter by dex alone. The chain is not part of the
// key: one registered adapter serves its DEX on every chain.
type Registry struct {
	byDex map[arbmodel.DEX]Adapter
}

// NewRegistry builds an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{byDex: make(map[arbmodel.DEX]Adapter)}
}

// Register installs adapter under its own Protocol() key.
func (r *Registry) Register(adapter Adapter) {
	r.byDex[adapter.Protocol()] = adapter
}

// For resolves the adapter serving dex, or ok=false if none is registered.
func (r *Registry) For(dex arbmodel.DEX) (Adapter, bool) {
	a, ok := r.byDex[dex]
	return a, ok
}
