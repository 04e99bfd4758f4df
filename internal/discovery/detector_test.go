package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coreclock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tok(addr string) arbmodel.Token {
	return arbmodel.Token{Chain: arbmodel.ChainEthereum, Address: addr, Symbol: addr, Decimals: 18}
}

func pool(dex, addr string, r0, r1 decimal.Decimal, t0, t1 arbmodel.Token, feeBps int, updated time.Time) arbmodel.Pool {
	return arbmodel.Pool{
		ID:          arbmodel.PoolID{Chain: arbmodel.ChainEthereum, Dex: arbmodel.DEX(dex), Address: addr},
		Token0:      t0,
		Token1:      t1,
		FeeBps:      feeBps,
		Reserve0:    r0,
		Reserve1:    r1,
		LastUpdated: updated,
	}
}

// TestTwoLegDetection mirrors the literal scenario in spec.md §8 #1:
// two pools quoting USDC/WETH at different prices should surface a
// profitable 2-leg candidate, and an identical second update must not
// re-emit (dedup by fingerprint).
func TestTwoLegDetection(t *testing.T) {
	usdc, weth := tok("0xUSDC"), tok("0xWETH")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := coreclock.Mock(now)

	registry := NewRegistry()
	tmpl := &Template{
		ID:    "usdc-weth-2leg",
		Kind:  arbmodel.KindTwoLeg,
		Chain: arbmodel.ChainEthereum,
		Legs: []arbmodel.PoolRef{
			{Pool: arbmodel.PoolID{Chain: arbmodel.ChainEthereum, Dex: "dex1", Address: "0xP1"}, TokenIn: usdc, TokenOut: weth},
			{Pool: arbmodel.PoolID{Chain: arbmodel.ChainEthereum, Dex: "dex2", Address: "0xP2"}, TokenIn: weth, TokenOut: usdc},
		},
	}
	registry.AddTemplate(tmpl)

	cfg := DefaultConfig()
	cfg.MinProfitFloorUSD = decimal.NewFromInt(1)
	cfg.GateFactor = decimal.NewFromFloat(1.0)
	det := New(cfg, clk, registry, nil, nil, nil)

	// Pool 1: cheap WETH (2000 USDC each, huge depth so the probe trade
	// barely moves price).
	p1 := pool("dex1", "0xP1",
		decimal.NewFromInt(20_000_000), decimal.NewFromInt(10_000),
		usdc, weth, 30, now)
	// Pool 2: expensive WETH (2020 USDC each).
	p2 := pool("dex2", "0xP2",
		decimal.NewFromInt(10_000), decimal.NewFromInt(20_200_000),
		weth, usdc, 30, now)

	det.OnPoolUpdate(context.Background(), p1)
	det.OnPoolUpdate(context.Background(), p2)

	select {
	case opp := <-det.Opportunities():
		assert.True(t, opp.IsCycle())
		assert.Equal(t, arbmodel.KindTwoLeg, opp.Kind)
		assert.True(t, opp.ExpectedProfitUSD.IsPositive())
		first := opp

		// Re-deliver the identical pool 2 update; fingerprint should dedup
		// so nothing new is emitted within the window.
		det.OnPoolUpdate(context.Background(), p2)
		select {
		case again := <-det.Opportunities():
			assert.Fail(t, "expected dedup to suppress re-emission", "got %+v after %+v", again, first)
		case <-time.After(10 * time.Millisecond):
		}
	case <-time.After(time.Second):
		t.Fatal("expected a candidate opportunity to be emitted")
	}
}

func TestQuickSimulateSkipsStalePool(t *testing.T) {
	usdc, weth := tok("0xUSDC"), tok("0xWETH")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := coreclock.Mock(now)

	registry := NewRegistry()
	det := New(DefaultConfig(), clk, registry, nil, nil, nil)
	det.cfg.StalenessTTL = time.Second

	stalePool := pool("dex1", "0xP1", decimal.NewFromInt(1000), decimal.NewFromInt(1000), usdc, weth, 30, now.Add(-10*time.Second))
	registry.PoolUpdated(stalePool)

	tmpl := &Template{Legs: []arbmodel.PoolRef{{Pool: stalePool.ID, TokenIn: usdc, TokenOut: weth}}}
	_, ok := det.quickSimulate(tmpl, decimal.NewFromInt(10), now)
	assert.False(t, ok)
}

func TestFingerprintStableAcrossLegOrderAndDustAmounts(t *testing.T) {
	usdc, weth := tok("0xUSDC"), tok("0xWETH")
	legs := []arbmodel.PoolRef{
		{Pool: arbmodel.PoolID{Dex: "dex1", Address: "0xP1"}, TokenIn: usdc, TokenOut: weth},
		{Pool: arbmodel.PoolID{Dex: "dex2", Address: "0xP2"}, TokenIn: weth, TokenOut: usdc},
	}
	path := []arbmodel.Token{usdc, weth, usdc}

	fp1 := fingerprint(arbmodel.KindTwoLeg, arbmodel.ChainEthereum, legs, path, decimal.NewFromInt(1000))
	fp2 := fingerprint(arbmodel.KindTwoLeg, arbmodel.ChainEthereum, legs, path, decimal.NewFromInt(1005))
	require.Equal(t, fp1, fp2, "small amount jitter within the same bucket should not change the fingerprint")

	reordered := []arbmodel.PoolRef{legs[1], legs[0]}
	fpReordered := fingerprint(arbmodel.KindTwoLeg, arbmodel.ChainEthereum, reordered, path, decimal.NewFromInt(1000))
	require.Equal(t, fp1, fpReordered, "leg order should not change the fingerprint")

	fp3 := fingerprint(arbmodel.KindTwoLeg, arbmodel.ChainEthereum, legs, path, decimal.NewFromInt(5000))
	assert.NotEqual(t, fp1, fp3)
}
