// Package router turns a candidate Opportunity into a concrete, priced,
// gas-estimated Route (C2): exact swap math per leg via the pool adapter
// SPI, slippage/price-impact/liquidity gating, and exact-output sizing
// for flash-loan variants.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/arbitragex/engine/internal/adapters"
	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coreclock"
	"github.com/arbitragex/engine/internal/coreerrors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PoolSource resolves the latest known snapshot for a pool id; satisfied
// by discovery.Registry without router importing discovery.
type PoolSource interface {
	Pool(id arbmodel.PoolID) (arbmodel.Pool, bool)
}

// Config tunes the router's constraints and search parameters.
type Config struct {
	MaxHops            int
	MinLiquidityUSD    decimal.Decimal
	MaxPriceImpactBps  int
	MaxSlippageBps     int
	GasPriceGwei       decimal.Decimal
	BeamWidth          int
	SafetyMarginUSD    decimal.Decimal
	ExactOutputMaxIter int
	ExactOutputEpsilon decimal.Decimal
}

// DefaultConfig matches SPEC_FULL.md's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxHops:            2,
		MinLiquidityUSD:    decimal.NewFromInt(10_000),
		MaxPriceImpactBps:  200,
		MaxSlippageBps:     50,
		GasPriceGwei:       decimal.NewFromInt(30),
		BeamWidth:          8,
		SafetyMarginUSD:    decimal.NewFromInt(1),
		ExactOutputMaxIter: 16,
		ExactOutputEpsilon: decimal.NewFromFloat(0.0001),
	}
}

// Router plans routes for candidate Opportunities.
type Router struct {
	cfg      Config
	pools    PoolSource
	adapters *adapters.Registry
	clock    coreclock.Clock
	logger   *zap.Logger
}

// New builds a Router.
func New(cfg Config, pools PoolSource, registry *adapters.Registry, clock coreclock.Clock, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{cfg: cfg, pools: pools, adapters: registry, clock: clock, logger: logger}
}

// sequence is one candidate leg ordering under evaluation by the beam
// search, accumulating amount/impact/gas as legs are appended.
type sequence struct {
	legs           []arbmodel.RouteLeg
	runningAmount  decimal.Decimal
	priceImpactBps int
	gasEstimate    uint64
}

// Plan turns a candidate Opportunity into an executable Route, or a
// Reject naming why no sequence qualified. Adapter errors fail only the
// sequence they occur in, never the whole plan; if every sequence fails,
// Plan returns Reject{NoProfitableRoute} or the more specific reason the
// last failing sequence hit.
func (r *Router) Plan(ctx context.Context, opp arbmodel.Opportunity) (*arbmodel.Route, error) {
	if len(opp.Legs) == 0 {
		return nil, coreerrors.New(coreerrors.KindValidation, "opportunity has no legs")
	}
	if opp.Expired(r.clock.Now()) {
		return nil, coreerrors.New(coreerrors.KindExpiredDeadline, "opportunity already expired")
	}

	sequences := r.beamSearch(ctx, opp)
	if len(sequences) == 0 {
		return nil, coreerrors.Wrap(coreerrors.KindNoProfitableRoute, "no sequence produced a quote", nil)
	}

	best, reject := r.selectBest(opp, sequences)
	if reject != nil {
		return nil, reject
	}

	return r.toRoute(opp, best), nil
}

// beamSearch enumerates leg sequences width-first, keeping only the
// BeamWidth sequences with the best running amount at each step. The
// opportunity's own leg ordering is the only sequence considered for a
// fixed template today; the beam exists to extend cleanly to adapters
// that expose multiple fee tiers per pool pair.
func (r *Router) beamSearch(ctx context.Context, opp arbmodel.Opportunity) []sequence {
	beam := []sequence{{runningAmount: opp.AmountIn}}

	for hop, ref := range opp.Legs {
		if hop >= r.cfg.MaxHops && len(opp.Legs) > r.cfg.MaxHops {
			break
		}
		next := make([]sequence, 0, len(beam))
		for _, seq := range beam {
			extended, ok := r.extend(ctx, seq, ref)
			if !ok {
				continue
			}
			next = append(next, extended)
		}
		next = topByAmount(next, r.cfg.BeamWidth)
		beam = next
		if len(beam) == 0 {
			break
		}
	}

	complete := make([]sequence, 0, len(beam))
	for _, seq := range beam {
		if len(seq.legs) == len(opp.Legs) {
			complete = append(complete, seq)
		}
	}
	return complete
}

func (r *Router) extend(ctx context.Context, seq sequence, ref arbmodel.PoolRef) (sequence, bool) {
	pool, ok := r.pools.Pool(ref.Pool)
	if !ok {
		return sequence{}, false
	}
	if pool.TVLUSD.IsPositive() && pool.TVLUSD.LessThan(r.cfg.MinLiquidityUSD) {
		return sequence{}, false
	}

	adapter, ok := r.adapters.For(pool.ID.Dex)
	if !ok {
		return sequence{}, false
	}

	amountOut, err := adapter.QuoteExactIn(ctx, pool, ref.TokenIn, seq.runningAmount)
	if err != nil || amountOut.Sign() <= 0 {
		return sequence{}, false
	}

	impactBps := priceImpactBps(seq.runningAmount, amountOut, pool, ref.TokenIn)
	minOut := amountOut.Mul(decimal.NewFromInt(int64(10000 - r.cfg.MaxSlippageBps))).Div(decimal.NewFromInt(10000)).Floor()

	leg := arbmodel.RouteLeg{
		Pool:         pool.ID,
		TokenIn:      ref.TokenIn,
		TokenOut:     ref.TokenOut,
		AmountIn:     seq.runningAmount,
		ExpectedOut:  amountOut,
		MinAmountOut: minOut,
		FeeBps:       pool.FeeBps,
	}

	legs := append(append([]arbmodel.RouteLeg{}, seq.legs...), leg)
	return sequence{
		legs:           legs,
		runningAmount:  amountOut,
		priceImpactBps: seq.priceImpactBps + impactBps,
		gasEstimate:    seq.gasEstimate + legGasEstimate,
	}, true
}

const legGasEstimate = 120_000

// priceImpactBps estimates the marginal price shift a leg causes, as the
// shortfall of amountOut against the pool's pre-trade spot rate.
func priceImpactBps(amountIn, amountOut decimal.Decimal, pool arbmodel.Pool, tokenIn arbmodel.Token) int {
	if pool.Reserve0.Sign() <= 0 || pool.Reserve1.Sign() <= 0 || amountIn.Sign() <= 0 {
		return 0
	}
	reserveIn, reserveOut := pool.Reserve0, pool.Reserve1
	if tokenIn.Key() == pool.Token1.Key() {
		reserveIn, reserveOut = pool.Reserve1, pool.Reserve0
	}
	spotOut := amountIn.Mul(reserveOut).Div(reserveIn)
	if spotOut.Sign() <= 0 {
		return 0
	}
	shortfall := spotOut.Sub(amountOut)
	if shortfall.Sign() <= 0 {
		return 0
	}
	bps := shortfall.Mul(decimal.NewFromInt(10000)).Div(spotOut)
	return int(bps.IntPart())
}

func topByAmount(seqs []sequence, width int) []sequence {
	if len(seqs) <= width {
		return seqs
	}
	sorted := append([]sequence{}, seqs...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].runningAmount.GreaterThan(sorted[j-1].runningAmount); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted[:width]
}

// selectBest applies the rejection gates and the net-profit/gas/impact
// tie-break table, returning either the winning sequence or a Reject.
func (r *Router) selectBest(opp arbmodel.Opportunity, sequences []sequence) (sequence, error) {
	var best *sequence
	var bestNetProfit decimal.Decimal
	var lastReject error = coreerrors.New(coreerrors.KindNoProfitableRoute, "no sequence cleared the profitability gate")

	for i := range sequences {
		seq := &sequences[i]

		if seq.priceImpactBps > r.cfg.MaxPriceImpactBps {
			lastReject = coreerrors.New(coreerrors.KindPriceImpactTooHigh, fmt.Sprintf("impact %d bps exceeds max %d bps", seq.priceImpactBps, r.cfg.MaxPriceImpactBps))
			continue
		}

		gasCostUSD := r.cfg.GasPriceGwei.Mul(decimal.NewFromInt(int64(seq.gasEstimate))).Div(decimal.NewFromInt(1_000_000_000))
		netProfit := seq.runningAmount.Sub(opp.AmountIn).Sub(gasCostUSD).Sub(r.cfg.SafetyMarginUSD)
		if netProfit.Sign() <= 0 {
			lastReject = coreerrors.New(coreerrors.KindNoProfitableRoute, "net profit does not clear gas cost plus safety margin")
			continue
		}

		if best == nil || netProfit.GreaterThan(bestNetProfit) ||
			(netProfit.Equal(bestNetProfit) && seq.gasEstimate < best.gasEstimate) ||
			(netProfit.Equal(bestNetProfit) && seq.gasEstimate == best.gasEstimate && seq.priceImpactBps < best.priceImpactBps) {
			best = seq
			bestNetProfit = netProfit
		}
	}

	if best == nil {
		return sequence{}, lastReject
	}
	return *best, nil
}

func (r *Router) toRoute(opp arbmodel.Opportunity, seq sequence) *arbmodel.Route {
	gasCostUSD := r.cfg.GasPriceGwei.Mul(decimal.NewFromInt(int64(seq.gasEstimate))).Div(decimal.NewFromInt(1_000_000_000))
	return &arbmodel.Route{
		OpportunityID:     opp.ID,
		Legs:              seq.legs,
		PriceImpactBps:    seq.priceImpactBps,
		SlippageBps:       r.cfg.MaxSlippageBps,
		Deadline:          r.clock.Now().Add(10 * time.Minute),
		ExpectedProfitUSD: seq.runningAmount.Sub(opp.AmountIn).Sub(gasCostUSD),
		GasEstimate:       seq.gasEstimate,
	}
}
