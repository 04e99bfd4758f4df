package mev

import (
	"context"
	"testing"
	"time"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSignals struct {
	mempool MempoolSignal
	anomaly PoolAnomalySignal
	err     error
}

func (f fakeSignals) Mempool(ctx context.Context, route arbmodel.Route) (MempoolSignal, error) {
	return f.mempool, f.err
}

func (f fakeSignals) PoolAnomaly(ctx context.Context, route arbmodel.Route) (PoolAnomalySignal, error) {
	return f.anomaly, f.err
}

func testRoute() arbmodel.Route {
	return arbmodel.Route{
		OpportunityID: "opp-1",
		Legs: []arbmodel.RouteLeg{
			{Pool: arbmodel.PoolID{Chain: arbmodel.ChainEthereum, Dex: arbmodel.DEXUniswapV2, Address: "0xA"}},
		},
		SlippageBps: 50,
	}
}

func TestDecideNoSignalsYieldsDirectUnderBasic(t *testing.T) {
	c := New(DefaultConfig(), fakeSignals{}, nil)
	decision, err := c.Decide(context.Background(), testRoute(), ProtectionBasic, time.Unix(1_700_000_000, 0))
	require.NoError(t, err)
	assert.Equal(t, arbmodel.ThreatNone, decision.Analysis.ThreatLevel)
	assert.Equal(t, arbmodel.StrategyDirect, decision.Strategy)
	assert.False(t, decision.Aborted)
}

func TestDecideSandwichSignalEscalatesStrategy(t *testing.T) {
	signals := fakeSignals{mempool: MempoolSignal{
		SameRouterPending:     true,
		OverlappingTokenPath:  true,
		CompetingGasPriceGwei: decimal.NewFromInt(80),
	}}
	c := New(DefaultConfig(), signals, nil)
	decision, err := c.Decide(context.Background(), testRoute(), ProtectionBasic, time.Unix(1_700_000_000, 0))
	require.NoError(t, err)
	assert.NotEqual(t, arbmodel.ThreatNone, decision.Analysis.ThreatLevel)
	assert.NotEqual(t, arbmodel.StrategyDirect, decision.Strategy)
}

func TestDecideCriticalOracleManipulationAborts(t *testing.T) {
	signals := fakeSignals{
		mempool: MempoolSignal{
			SameRouterPending:     true,
			OverlappingTokenPath:  true,
			CompetingGasPriceGwei: decimal.NewFromInt(80),
		},
		anomaly: PoolAnomalySignal{OracleDeviationBps: 10_000, TVLDropBps: 5000},
	}
	cfg := DefaultConfig()
	cfg.EmergencyStop = true
	c := New(cfg, signals, nil)
	decision, err := c.Decide(context.Background(), testRoute(), ProtectionMaximum, time.Unix(1_700_000_000, 0))
	require.NoError(t, err)
	assert.True(t, decision.Aborted)
	assert.Equal(t, "TRANSACTION_CANCELLED", decision.AbortReason)
}

func TestClassifyFrontrunOnlyYieldsMediumThreat(t *testing.T) {
	signals := fakeSignals{mempool: MempoolSignal{
		SameRouterPending:    true,
		OverlappingTokenPath: true,
	}}
	c := New(DefaultConfig(), signals, nil)
	decision, err := c.Decide(context.Background(), testRoute(), ProtectionBasic, time.Unix(1_700_000_000, 0))
	require.NoError(t, err)
	assert.Equal(t, arbmodel.ThreatMedium, decision.Analysis.ThreatLevel)
}

func TestDecideMaximumProtectionAbortsOnCriticalWithoutEmergencyStop(t *testing.T) {
	route := testRoute()
	route.SlippageBps = 150 // adds the backrun signal so score crosses into CRITICAL without oracle manipulation
	signals := fakeSignals{
		mempool: MempoolSignal{
			SameRouterPending:     true,
			OverlappingTokenPath:  true,
			CompetingGasPriceGwei: decimal.NewFromInt(80),
		},
	}
	cfg := DefaultConfig()
	cfg.EmergencyStop = false
	c := New(cfg, signals, nil)
	decision, err := c.Decide(context.Background(), route, ProtectionMaximum, time.Unix(1_700_000_000, 0))
	require.NoError(t, err)
	assert.Equal(t, arbmodel.ThreatCritical, decision.Analysis.ThreatLevel)
	assert.True(t, decision.Aborted)
	assert.Equal(t, "MAXIMUM_PROTECTION_CRITICAL_THREAT", decision.AbortReason)
}

func TestDecidePropagatesSignalSourceError(t *testing.T) {
	signals := fakeSignals{err: assert.AnError}
	c := New(DefaultConfig(), signals, nil)
	_, err := c.Decide(context.Background(), testRoute(), ProtectionBasic, time.Unix(1_700_000_000, 0))
	assert.Error(t, err)
}
