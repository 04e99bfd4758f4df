package executor

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coordinator"
	"github.com/arbitragex/engine/internal/coreclock"
	"github.com/arbitragex/engine/pkg/redis"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is a minimal in-memory stand-in for pkg/redis.Client, just
// enough surface for the coordinator calls reconcile makes.
type fakeRedis struct {
	mu      sync.Mutex
	strings map[string]string
}

func newFakeRedis() *fakeRedis { return &fakeRedis{strings: make(map[string]string)} }

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.strings[key]
	if !ok {
		return "", fmt.Errorf("fake redis: key %q not found", key)
	}
	return v, nil
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.strings[key] = string(v)
	case string:
		f.strings[key] = v
	default:
		f.strings[key] = fmt.Sprintf("%v", v)
	}
	return nil
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return true, f.Set(ctx, key, value, expiration)
}
func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return nil, nil
}
func (f *fakeRedis) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return nil
}
func (f *fakeRedis) ZRemRangeByScore(ctx context.Context, key, min, max string) error { return nil }
func (f *fakeRedis) ZCard(ctx context.Context, key string) (int64, error)             { return 0, nil }
func (f *fakeRedis) Del(ctx context.Context, keys ...string) error                    { return nil }
func (f *fakeRedis) Exists(ctx context.Context, keys ...string) (bool, error)         { return false, nil }

func (f *fakeRedis) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	fmt.Sscanf(f.strings[key], "%d", &n)
	n++
	f.strings[key] = fmt.Sprintf("%d", n)
	return n, nil
}

func (f *fakeRedis) HGet(ctx context.Context, key, field string) (string, error) { return "", nil }
func (f *fakeRedis) HSet(ctx context.Context, key string, values ...interface{}) error {
	return nil
}
func (f *fakeRedis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return nil, nil
}
func (f *fakeRedis) HDel(ctx context.Context, key string, fields ...string) error { return nil }
func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (f *fakeRedis) Pipeline() redis.Pipeline       { return nil }
func (f *fakeRedis) Close() error                   { return nil }
func (f *fakeRedis) Ping(ctx context.Context) error  { return nil }

type fakeOracle struct {
	prices map[string]decimal.Decimal
}

func (f fakeOracle) USDPrice(ctx context.Context, token arbmodel.Token) (decimal.Decimal, error) {
	return f.prices[token.Address], nil
}

func erc20TransferLog(tokenAddr string, amount *big.Int) *types.Log {
	data := make([]byte, 32)
	amount.FillBytes(data)
	return &types.Log{
		Address: common.HexToAddress(tokenAddr),
		Topics:  []common.Hash{common.HexToHash(erc20TransferTopic)},
		Data:    data,
	}
}

func TestReconcileUsesActualTransferAmountNotPlannedOutput(t *testing.T) {
	kv := newFakeRedis()
	coord := coordinator.New(coordinator.DefaultConfig(), kv, coreclock.Mock(time.Unix(1_700_000_000, 0)), nil, nil)

	route := testRoute()
	route.Legs[0].TokenOut.Decimals = 18
	route.Legs[0].ExpectedOut = decimal.NewFromFloat(0.5)

	// actual on-chain transfer is smaller than the planned output.
	actualRaw := new(big.Int)
	actualRaw.SetString("300000000000000000", 10) // 0.3 tokens at 18 decimals
	receipt := &types.Receipt{Logs: []*types.Log{erc20TransferLog(route.Legs[0].TokenOut.Address, actualRaw)}}

	ex := New(DefaultConfig(), Dependencies{
		Clock: coreclock.Mock(time.Unix(1_700_000_000, 0)),
		Oracle: fakeOracle{prices: map[string]decimal.Decimal{
			"0xUSDC": decimal.NewFromInt(1),
			"0xWETH": decimal.NewFromInt(2000),
		}},
		Coordinator: coord,
	})

	exec := &arbmodel.Execution{ID: "exec-1"}
	ex.reconcile(context.Background(), exec, route, receipt)

	// 0.3 WETH * $2000 - 1000 USDC * $1 = -400, not the -0 planned figure
	// (0.5 * 2000 - 1000 = 0) that ExpectedOut would have produced.
	want := decimal.NewFromInt(600).Sub(decimal.NewFromInt(1000))
	assert.True(t, exec.ActualProfitUSD.Equal(want), "got %s want %s", exec.ActualProfitUSD, want)

	raw, err := kv.Get(context.Background(), "counter:profit_usd_24h:24h")
	require.NoError(t, err)
	assert.Equal(t, "1", raw)
}

func TestReconcileFallsBackToExpectedOutWithoutReceipt(t *testing.T) {
	route := testRoute()
	route.Legs[0].TokenOut.Decimals = 18

	ex := New(DefaultConfig(), Dependencies{
		Clock: coreclock.Mock(time.Unix(1_700_000_000, 0)),
		Oracle: fakeOracle{prices: map[string]decimal.Decimal{
			"0xUSDC": decimal.NewFromInt(1),
			"0xWETH": decimal.NewFromInt(2000),
		}},
	})

	exec := &arbmodel.Execution{ID: "exec-2"}
	ex.reconcile(context.Background(), exec, route, nil)

	want := decimal.NewFromFloat(0.5).Mul(decimal.NewFromInt(2000)).Sub(decimal.NewFromInt(1000))
	assert.True(t, exec.ActualProfitUSD.Equal(want))
}
