package router

import (
	"context"
	"testing"
	"time"

	"github.com/arbitragex/engine/internal/adapters"
	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coreclock"
	"github.com/arbitragex/engine/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoolSource struct {
	pools map[arbmodel.PoolID]arbmodel.Pool
}

func newFakePoolSource() *fakePoolSource {
	return &fakePoolSource{pools: make(map[arbmodel.PoolID]arbmodel.Pool)}
}

func (f *fakePoolSource) add(p arbmodel.Pool) { f.pools[p.ID] = p }

func (f *fakePoolSource) Pool(id arbmodel.PoolID) (arbmodel.Pool, bool) {
	p, ok := f.pools[id]
	return p, ok
}

func usdc() arbmodel.Token { return arbmodel.Token{Address: "0xUSDC", Symbol: "USDC", Decimals: 6} }
func weth() arbmodel.Token { return arbmodel.Token{Address: "0xWETH", Symbol: "WETH", Decimals: 18} }

func newTestRouter(t *testing.T, pools *fakePoolSource) *Router {
	t.Helper()
	registry := adapters.NewRegistry()
	registry.Register(adapters.NewConstantProductAdapter(logger.New("test"), arbmodel.DEXUniswapV2, "0xRouterA"))
	registry.Register(adapters.NewConstantProductAdapter(logger.New("test"), arbmodel.DEXSushiswap, "0xRouterB"))
	cfg := DefaultConfig()
	cfg.MinLiquidityUSD = decimal.Zero
	return New(cfg, pools, registry, coreclock.Mock(time.Unix(1_700_000_000, 0)), nil)
}

func TestPlanTwoLegCycleProducesPositiveProfitRoute(t *testing.T) {
	pools := newFakePoolSource()
	poolA := arbmodel.PoolID{Chain: arbmodel.ChainEthereum, Dex: arbmodel.DEXUniswapV2, Address: "0xPoolA"}
	poolB := arbmodel.PoolID{Chain: arbmodel.ChainEthereum, Dex: arbmodel.DEXSushiswap, Address: "0xPoolB"}

	pools.add(arbmodel.Pool{
		ID: poolA, Token0: usdc(), Token1: weth(), FeeBps: 30,
		Reserve0: decimal.NewFromInt(2_000_000), Reserve1: decimal.NewFromInt(1_000),
		TVLUSD: decimal.NewFromInt(2_000_000),
	})
	pools.add(arbmodel.Pool{
		ID: poolB, Token0: weth(), Token1: usdc(), FeeBps: 30,
		Reserve0: decimal.NewFromInt(1_000), Reserve1: decimal.NewFromInt(2_020_000),
		TVLUSD: decimal.NewFromInt(2_020_000),
	})

	r := newTestRouter(t, pools)

	opp := arbmodel.Opportunity{
		ID:       "opp-1",
		Kind:     arbmodel.KindTwoLeg,
		Chain:    arbmodel.ChainEthereum,
		AmountIn: decimal.NewFromInt(1_000),
		Legs: []arbmodel.PoolRef{
			{Pool: poolA, TokenIn: usdc(), TokenOut: weth()},
			{Pool: poolB, TokenIn: weth(), TokenOut: usdc()},
		},
		ExpiresAt: time.Unix(1_700_000_100, 0),
	}

	route, err := r.Plan(context.Background(), opp)
	require.NoError(t, err)
	require.NotNil(t, route)
	assert.Len(t, route.Legs, 2)
	assert.True(t, route.ExpectedProfitUSD.IsPositive(), "expected positive profit, got %s", route.ExpectedProfitUSD)
	assert.LessOrEqual(t, route.PriceImpactBps, r.cfg.MaxPriceImpactBps)
}

func TestPlanRejectsExpiredOpportunity(t *testing.T) {
	pools := newFakePoolSource()
	r := newTestRouter(t, pools)

	opp := arbmodel.Opportunity{
		ID:        "opp-expired",
		AmountIn:  decimal.NewFromInt(1),
		Legs:      []arbmodel.PoolRef{{Pool: arbmodel.PoolID{Address: "0xX"}, TokenIn: usdc(), TokenOut: weth()}},
		ExpiresAt: time.Unix(1_600_000_000, 0),
	}

	_, err := r.Plan(context.Background(), opp)
	assert.Error(t, err)
}

func TestPlanRejectsWhenNoPoolFound(t *testing.T) {
	pools := newFakePoolSource()
	r := newTestRouter(t, pools)

	opp := arbmodel.Opportunity{
		ID:        "opp-nopool",
		AmountIn:  decimal.NewFromInt(1000),
		Legs:      []arbmodel.PoolRef{{Pool: arbmodel.PoolID{Address: "0xMissing"}, TokenIn: usdc(), TokenOut: weth()}},
		ExpiresAt: time.Unix(1_700_001_000, 0),
	}

	_, err := r.Plan(context.Background(), opp)
	assert.Error(t, err)
}

func TestPlanExactOutputSizesAmountIn(t *testing.T) {
	pools := newFakePoolSource()
	poolA := arbmodel.PoolID{Chain: arbmodel.ChainEthereum, Dex: arbmodel.DEXUniswapV2, Address: "0xPoolA"}
	pools.add(arbmodel.Pool{
		ID: poolA, Token0: usdc(), Token1: weth(), FeeBps: 30,
		Reserve0: decimal.NewFromInt(2_000_000), Reserve1: decimal.NewFromInt(1_000),
		TVLUSD: decimal.NewFromInt(2_000_000),
	})

	r := newTestRouter(t, pools)
	legs := []arbmodel.PoolRef{{Pool: poolA, TokenIn: usdc(), TokenOut: weth()}}

	route, err := r.PlanExactOutput(context.Background(), arbmodel.ChainEthereum, legs, decimal.NewFromInt(1), decimal.NewFromInt(5000))
	require.NoError(t, err)
	require.NotNil(t, route)
	require.Len(t, route.Legs, 1)
	assert.True(t, route.Legs[0].ExpectedOut.Sub(decimal.NewFromInt(1)).Abs().LessThan(decimal.NewFromFloat(0.05)))
}

func TestPlanExactOutputRejectsWhenUnreachable(t *testing.T) {
	pools := newFakePoolSource()
	poolA := arbmodel.PoolID{Chain: arbmodel.ChainEthereum, Dex: arbmodel.DEXUniswapV2, Address: "0xPoolA"}
	pools.add(arbmodel.Pool{
		ID: poolA, Token0: usdc(), Token1: weth(), FeeBps: 30,
		Reserve0: decimal.NewFromInt(2_000_000), Reserve1: decimal.NewFromInt(1_000),
		TVLUSD: decimal.NewFromInt(2_000_000),
	})

	r := newTestRouter(t, pools)
	legs := []arbmodel.PoolRef{{Pool: poolA, TokenIn: usdc(), TokenOut: weth()}}

	_, err := r.PlanExactOutput(context.Background(), arbmodel.ChainEthereum, legs, decimal.NewFromInt(10_000), decimal.NewFromInt(100))
	assert.Error(t, err)
}
