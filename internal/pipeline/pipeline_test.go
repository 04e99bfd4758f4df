package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arbitragex/engine/internal/adapters"
	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coordinator"
	"github.com/arbitragex/engine/internal/coreclock"
	"github.com/arbitragex/engine/internal/executor"
	"github.com/arbitragex/engine/internal/mev"
	"github.com/arbitragex/engine/internal/router"
	"github.com/arbitragex/engine/pkg/logger"
	"github.com/arbitragex/engine/pkg/redis"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKV is a minimal in-memory stand-in for pkg/redis.Client, enough
// surface for the coordinator calls process/advance/finish make.
type fakeKV struct {
	mu      sync.Mutex
	strings map[string]string
}

func newFakeKV() *fakeKV { return &fakeKV{strings: make(map[string]string)} }

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.strings[key]
	if !ok {
		return "", fmt.Errorf("fake kv: key %q not found", key)
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
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

func (f *fakeKV) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	_, exists := f.strings[key]
	f.mu.Unlock()
	if exists {
		return false, nil
	}
	return true, f.Set(ctx, key, value, expiration)
}
func (f *fakeKV) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return int64(1), nil
}
func (f *fakeKV) ZAdd(ctx context.Context, key string, score float64, member string) error  { return nil }
func (f *fakeKV) ZRemRangeByScore(ctx context.Context, key, min, max string) error          { return nil }
func (f *fakeKV) ZCard(ctx context.Context, key string) (int64, error)                      { return 0, nil }
func (f *fakeKV) Del(ctx context.Context, keys ...string) error                             { return nil }
func (f *fakeKV) Exists(ctx context.Context, keys ...string) (bool, error)                  { return false, nil }
func (f *fakeKV) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	fmt.Sscanf(f.strings[key], "%d", &n)
	n++
	f.strings[key] = fmt.Sprintf("%d", n)
	return n, nil
}
func (f *fakeKV) HGet(ctx context.Context, key, field string) (string, error)               { return "", nil }
func (f *fakeKV) HSet(ctx context.Context, key string, values ...interface{}) error          { return nil }
func (f *fakeKV) HGetAll(ctx context.Context, key string) (map[string]string, error)        { return nil, nil }
func (f *fakeKV) HDel(ctx context.Context, key string, fields ...string) error               { return nil }
func (f *fakeKV) Expire(ctx context.Context, key string, expiration time.Duration) error     { return nil }
func (f *fakeKV) Pipeline() redis.Pipeline                                                   { return nil }
func (f *fakeKV) Close() error                                                               { return nil }
func (f *fakeKV) Ping(ctx context.Context) error                                             { return nil }

type fakePoolSource struct {
	pools map[arbmodel.PoolID]arbmodel.Pool
}

func (f *fakePoolSource) add(p arbmodel.Pool) { f.pools[p.ID] = p }

func (f *fakePoolSource) Pool(id arbmodel.PoolID) (arbmodel.Pool, bool) {
	p, ok := f.pools[id]
	return p, ok
}

type idleSignals struct{}

func (idleSignals) Mempool(ctx context.Context, route arbmodel.Route) (mev.MempoolSignal, error) {
	return mev.MempoolSignal{}, nil
}
func (idleSignals) PoolAnomaly(ctx context.Context, route arbmodel.Route) (mev.PoolAnomalySignal, error) {
	return mev.PoolAnomalySignal{}, nil
}

func usdc() arbmodel.Token { return arbmodel.Token{Address: "0xUSDC", Symbol: "USDC", Decimals: 6} }
func weth() arbmodel.Token { return arbmodel.Token{Address: "0xWETH", Symbol: "WETH", Decimals: 18} }

func testOpportunity() (arbmodel.Opportunity, *fakePoolSource) {
	pools := &fakePoolSource{pools: make(map[arbmodel.PoolID]arbmodel.Pool)}
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

	opp := arbmodel.Opportunity{
		ID:                "opp-1",
		Kind:              arbmodel.KindTwoLeg,
		Chain:             arbmodel.ChainEthereum,
		AmountIn:          decimal.NewFromInt(1_000),
		ExpectedProfitUSD: decimal.NewFromInt(20),
		Legs: []arbmodel.PoolRef{
			{Pool: poolA, TokenIn: usdc(), TokenOut: weth()},
			{Pool: poolB, TokenIn: weth(), TokenOut: usdc()},
		},
		ExpiresAt: time.Unix(1_700_000_100, 0),
	}
	return opp, pools
}

func newTestPipeline(t *testing.T, pools *fakePoolSource) (*Pipeline, *coordinator.Coordinator) {
	t.Helper()
	clock := coreclock.Mock(time.Unix(1_700_000_000, 0))

	kv := newFakeKV()
	coord := coordinator.New(coordinator.DefaultConfig(), kv, clock, nil, nil)

	adapterRegistry := adapters.NewRegistry()
	adapterRegistry.Register(adapters.NewConstantProductAdapter(logger.New("test"), arbmodel.DEXUniswapV2, "0xRouterA"))
	adapterRegistry.Register(adapters.NewConstantProductAdapter(logger.New("test"), arbmodel.DEXSushiswap, "0xRouterB"))
	routerCfg := router.DefaultConfig()
	routerCfg.MinLiquidityUSD = decimal.Zero
	rt := router.New(routerCfg, pools, adapterRegistry, clock, nil)

	controller := mev.New(mev.DefaultConfig(), idleSignals{}, nil)

	ex := executor.New(executor.DefaultConfig(), executor.Dependencies{
		Clock:       clock,
		Coordinator: coord,
	})

	p := New(DefaultConfig(), Dependencies{
		Router:      rt,
		MEV:         controller,
		Executor:    ex,
		Coordinator: coord,
		Clock:       clock,
	})
	return p, coord
}

func TestProcessCarriesOpportunityToSubmittedWorkflow(t *testing.T) {
	opp, pools := testOpportunity()
	p, coord := newTestPipeline(t, pools)

	p.process(context.Background(), opp)

	wf, err := coord.GetWorkflowState(context.Background(), opp.ID)
	require.NoError(t, err)
	assert.Equal(t, "submitted", wf.Phase)
	assert.Equal(t, arbmodel.WorkflowActive, wf.Status)
	assert.NotEmpty(t, wf.Summary, "expected execution id recorded as the workflow summary")
}

func TestProcessStopsWorkflowOnRoutePlanningFailure(t *testing.T) {
	pools := &fakePoolSource{pools: make(map[arbmodel.PoolID]arbmodel.Pool)}
	p, coord := newTestPipeline(t, pools)

	opp := arbmodel.Opportunity{
		ID:       "opp-no-pools",
		AmountIn: decimal.NewFromInt(1),
		Legs: []arbmodel.PoolRef{
			{Pool: arbmodel.PoolID{Address: "0xmissing"}, TokenIn: usdc(), TokenOut: weth()},
		},
		ExpiresAt: time.Unix(1_700_000_100, 0),
	}

	p.process(context.Background(), opp)

	wf, err := coord.GetWorkflowState(context.Background(), opp.ID)
	require.NoError(t, err)
	assert.Equal(t, arbmodel.WorkflowError, wf.Status)

	active, err := coord.ListActiveWorkflows(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, active, opp.ID)
}
