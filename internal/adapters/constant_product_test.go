package adapters

import (
	"context"
	"testing"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool() arbmodel.Pool {
	return arbmodel.Pool{
		ID:       arbmodel.PoolID{Chain: arbmodel.ChainEthereum, Dex: arbmodel.DEXUniswapV2, Address: "0xPool"},
		Token0:   arbmodel.Token{Address: "0xUSDC", Symbol: "USDC", Decimals: 6},
		Token1:   arbmodel.Token{Address: "0xWETH", Symbol: "WETH", Decimals: 18},
		FeeBps:   30,
		Reserve0: decimal.NewFromInt(2_000_000),
		Reserve1: decimal.NewFromInt(1_000),
	}
}

func TestConstantProductQuoteExactInPositive(t *testing.T) {
	adapter := NewConstantProductAdapter(logger.New("test"), arbmodel.DEXUniswapV2, "0xRouter")
	pool := testPool()

	out, err := adapter.QuoteExactIn(context.Background(), pool, pool.Token0, decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, out.IsPositive())
	assert.True(t, out.LessThan(pool.Reserve1))
}

func TestConstantProductExactOutRoundTrip(t *testing.T) {
	adapter := NewConstantProductAdapter(logger.New("test"), arbmodel.DEXUniswapV2, "0xRouter")
	pool := testPool()

	amountOut := decimal.NewFromInt(1)
	amountIn, err := adapter.QuoteExactOut(context.Background(), pool, pool.Token1, amountOut)
	require.NoError(t, err)
	assert.True(t, amountIn.IsPositive())

	// Re-simulating the solved amount_in through QuoteExactIn should
	// reproduce amount_out within a small tolerance (exact-output
	// correctness invariant).
	roundTrip, err := adapter.QuoteExactIn(context.Background(), pool, pool.Token0, amountIn)
	require.NoError(t, err)
	diff := roundTrip.Sub(amountOut).Abs()
	assert.True(t, diff.LessThan(decimal.NewFromFloat(0.01)), "round trip diff too large: %s", diff.String())
}

func TestConstantProductRejectsUnknownToken(t *testing.T) {
	adapter := NewConstantProductAdapter(logger.New("test"), arbmodel.DEXUniswapV2, "0xRouter")
	pool := testPool()

	_, err := adapter.QuoteExactIn(context.Background(), pool, arbmodel.Token{Address: "0xOther"}, decimal.NewFromInt(10))
	assert.Error(t, err)
}

func TestDecodeEventRequiresSyncTopic(t *testing.T) {
	adapter := NewConstantProductAdapter(logger.New("test"), arbmodel.DEXUniswapV2, "0xRouter")
	_, ok, err := adapter.DecodeEvent([]string{"0xSomethingElse"}, make([]byte, 64))
	require.NoError(t, err)
	assert.False(t, ok)
}
