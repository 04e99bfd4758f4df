package executor

import (
	"context"
	"testing"
	"time"

	"github.com/arbitragex/engine/internal/adapters"
	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coreclock"
	"github.com/arbitragex/engine/pkg/logger"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner(t *testing.T) *adapters.Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return adapters.NewSigner(key)
}

func testLogger() *logger.Logger { return logger.New("test") }

func testRoute() arbmodel.Route {
	return arbmodel.Route{
		OpportunityID: "opp-1",
		Legs: []arbmodel.RouteLeg{
			{
				Pool:        arbmodel.PoolID{Chain: arbmodel.ChainEthereum, Dex: arbmodel.DEXUniswapV2, Address: "0xA"},
				TokenIn:     arbmodel.Token{Address: "0xUSDC"},
				TokenOut:    arbmodel.Token{Address: "0xWETH"},
				AmountIn:    decimal.NewFromInt(1000),
				ExpectedOut: decimal.NewFromFloat(0.5),
			},
		},
		Deadline: time.Unix(1_700_001_000, 0),
	}
}

func TestExecuteIsIdempotentByWorkflowAndFingerprint(t *testing.T) {
	ex := New(DefaultConfig(), Dependencies{
		Clock:    coreclock.Mock(time.Unix(1_700_000_000, 0)),
		Adapters: adapters.NewRegistry(),
		Loans:    adapters.NewFlashLoanRegistry(),
		Signer:   testSigner(t),
	})

	route := testRoute()
	submission := arbmodel.Submission{Strategy: arbmodel.StrategyDirect}

	first, err := ex.Execute(context.Background(), "wf-1", route, submission)
	require.NoError(t, err)

	second, err := ex.Execute(context.Background(), "wf-1", route, submission)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestExecuteFailsWithoutRPCClient(t *testing.T) {
	ex := New(DefaultConfig(), Dependencies{
		Clock:    coreclock.Mock(time.Unix(1_700_000_000, 0)),
		Adapters: adapters.NewRegistry(),
		Loans:    adapters.NewFlashLoanRegistry(),
		Signer:   testSigner(t),
	})

	route := testRoute()
	exec, err := ex.Execute(context.Background(), "wf-2", route, arbmodel.Submission{Strategy: arbmodel.StrategyDirect})
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := ex.Status(exec.ID)
		require.NoError(t, err)
		if got.Status.IsTerminal() {
			assert.Equal(t, arbmodel.ExecutionFailed, got.Status)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("execution never reached a terminal status")
}

func TestStatusReturnsNotFoundForUnknownID(t *testing.T) {
	ex := New(DefaultConfig(), Dependencies{Clock: coreclock.Real()})
	_, err := ex.Status("does-not-exist")
	assert.Error(t, err)
}

func TestFallbackAbortsAfterMaxRetries(t *testing.T) {
	ex := New(DefaultConfig(), Dependencies{Clock: coreclock.Real()})
	plan := ex.Fallback("HIGH_MEV_RISK", "basic", false, ex.cfg.MaxRetries, testRoute())
	assert.Equal(t, FallbackAbortTransaction, plan.Action)
}

func TestFallbackCriticalThreatAbortsUnderEmergencyStop(t *testing.T) {
	ex := New(DefaultConfig(), Dependencies{Clock: coreclock.Real()})
	plan := ex.Fallback("CRITICAL_THREAT", "basic", true, 0, testRoute())
	assert.Equal(t, FallbackAbortTransaction, plan.Action)
}

func TestFallbackExecutionFailureBumpsAmountIn(t *testing.T) {
	ex := New(DefaultConfig(), Dependencies{Clock: coreclock.Real()})
	plan := ex.Fallback("EXECUTION_FAILURE", "basic", false, 0, testRoute())
	assert.Equal(t, FallbackUseAlternativeRoute, plan.Action)
	assert.True(t, plan.AmountInMultiplier.Equal(decimal.NewFromFloat(1.10)))
}

func TestComposeFlashLoanBundleRejectsUnauthorizedCallback(t *testing.T) {
	ex := New(DefaultConfig(), Dependencies{Clock: coreclock.Real()})
	provider := adapters.NewAaveV3Provider("0xRealPool", testLogger())

	plan := FlashLoanPlan{
		LoanAmount: decimal.NewFromInt(1000),
		LoanFeeBps: 5,
		Provider:   provider,
		RouteLegs:  testRoute().Legs,
	}

	_, err := ex.ComposeFlashLoanBundle(context.Background(), plan, decimal.NewFromInt(100), decimal.NewFromInt(10), "0xNotThePool")
	assert.Error(t, err)
}

func TestComposeFlashLoanBundleRejectsUnprofitablePlan(t *testing.T) {
	ex := New(DefaultConfig(), Dependencies{Clock: coreclock.Real()})
	provider := adapters.NewAaveV3Provider("0xRealPool", testLogger())

	plan := FlashLoanPlan{
		LoanAmount: decimal.NewFromInt(1000),
		LoanFeeBps: 5,
		Provider:   provider,
		RouteLegs:  testRoute().Legs,
	}

	_, err := ex.ComposeFlashLoanBundle(context.Background(), plan, decimal.NewFromInt(1), decimal.NewFromInt(10), "0xRealPool")
	assert.Error(t, err)
}
