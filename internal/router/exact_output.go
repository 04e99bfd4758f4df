package router

import (
	"context"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coreerrors"
	"github.com/shopspring/decimal"
)

// PlanExactOutput sizes amount_in via bisection so that routing it through
// legs yields amountOut within ExactOutputEpsilon, then quotes the legs at
// that amount_in and builds the route. Only the price-impact limit applies;
// the cycle-profit and expiry gates of Plan do not. Used by flash-loan-repay
// legs and by any caller that needs a fixed amount out rather than a fixed
// amount in.
func (r *Router) PlanExactOutput(ctx context.Context, chain arbmodel.ChainID, legs []arbmodel.PoolRef, amountOut, maxAmountIn decimal.Decimal) (*arbmodel.Route, error) {
	if len(legs) == 0 {
		return nil, coreerrors.New(coreerrors.KindValidation, "exact-output plan requires at least one leg")
	}
	if amountOut.Sign() <= 0 || maxAmountIn.Sign() <= 0 {
		return nil, coreerrors.New(coreerrors.KindValidation, "exact-output plan requires positive amount_out and max_amount_in")
	}

	amountIn, err := r.bisectAmountIn(ctx, legs, amountOut, maxAmountIn)
	if err != nil {
		return nil, err
	}

	synthetic := arbmodel.Opportunity{
		ID:       "exact-output",
		Kind:     arbmodel.KindTwoLeg,
		Chain:    chain,
		Legs:     legs,
		AmountIn: amountIn,
	}

	sequences := r.beamSearch(ctx, synthetic)
	if len(sequences) == 0 {
		return nil, coreerrors.New(coreerrors.KindInsufficientLiquidity, "exact-output legs could not be quoted at the sized amount_in")
	}
	best := sequences[0]
	if best.priceImpactBps > r.cfg.MaxPriceImpactBps {
		return nil, coreerrors.New(coreerrors.KindPriceImpactTooHigh, "exact-output route exceeds the maximum price impact")
	}
	route := r.toRoute(synthetic, best)
	route.MaxAmountIn = maxAmountIn
	return route, nil
}

// bisectAmountIn returns the first bisection midpoint in (0, maxAmountIn]
// whose simulated output is within ExactOutputEpsilon of amountOut, trying
// at most ExactOutputMaxIter midpoints. Returns Reject{InsufficientLiquidity}
// if the bracket cannot close: maxAmountIn's own output falls short of
// amountOut, or no midpoint lands within tolerance in the step limit.
func (r *Router) bisectAmountIn(ctx context.Context, legs []arbmodel.PoolRef, amountOut, maxAmountIn decimal.Decimal) (decimal.Decimal, error) {
	lo := decimal.Zero
	hi := maxAmountIn

	hiOut, ok := r.simulate(ctx, legs, hi)
	if !ok || hiOut.LessThan(amountOut) {
		return decimal.Zero, coreerrors.New(coreerrors.KindInsufficientLiquidity, "max_amount_in cannot reach requested amount_out")
	}

	maxIter := r.cfg.ExactOutputMaxIter
	if maxIter <= 0 {
		maxIter = 16
	}

	var mid decimal.Decimal
	for i := 0; i < maxIter; i++ {
		mid = lo.Add(hi).Div(decimal.NewFromInt(2))
		midOut, ok := r.simulate(ctx, legs, mid)
		if !ok {
			lo = mid
			continue
		}

		diff := midOut.Sub(amountOut).Abs()
		if diff.LessThanOrEqual(r.cfg.ExactOutputEpsilon.Mul(amountOut).Abs().Add(r.cfg.ExactOutputEpsilon)) {
			return mid, nil
		}
		if midOut.LessThan(amountOut) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return decimal.Zero, coreerrors.New(coreerrors.KindInsufficientLiquidity, "exact-output search did not converge within the iteration limit")
}

// simulate chains quote-exact-in across legs from a fixed amount_in,
// mirroring extend() without building RouteLeg records.
func (r *Router) simulate(ctx context.Context, legs []arbmodel.PoolRef, amountIn decimal.Decimal) (decimal.Decimal, bool) {
	amount := amountIn
	for _, ref := range legs {
		pool, ok := r.pools.Pool(ref.Pool)
		if !ok {
			return decimal.Zero, false
		}
		adapter, ok := r.adapters.For(pool.ID.Dex)
		if !ok {
			return decimal.Zero, false
		}
		out, err := adapter.QuoteExactIn(ctx, pool, ref.TokenIn, amount)
		if err != nil || out.Sign() <= 0 {
			return decimal.Zero, false
		}
		amount = out
	}
	return amount, true
}
