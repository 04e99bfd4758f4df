// Package executor submits, tracks, reconciles, and falls back on planned
// Routes (C4): the execution state machine, per-strategy submission paths,
// flash-loan bundle composition, and idempotent re-entry by
// (workflow_id, route fingerprint).
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/arbitragex/engine/internal/adapters"
	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coordinator"
	"github.com/arbitragex/engine/internal/coreclock"
	"github.com/arbitragex/engine/internal/coreerrors"
	"github.com/arbitragex/engine/internal/monitoring"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// executionMirrorTTL bounds how long a reconciled Execution stays mirrored
// in C5's cache tier after confirmation.
const executionMirrorTTL = 24 * time.Hour

// profitCounterWindowHours is the Counter window reconcile bumps on every
// confirmed execution, per spec.md:149's `profit_usd_24h`.
const profitCounterWindowHours = 24

// PriceOracle prices a token in USD at reconciliation time; the same
// capability discovery.Detector consumes.
type PriceOracle interface {
	USDPrice(ctx context.Context, token arbmodel.Token) (decimal.Decimal, error)
}

// Config tunes retry bounds and per-chain submission behavior.
type Config struct {
	MaxRetries        int
	SubmissionTimeout time.Duration
	InclusionPollInterval time.Duration
}

// DefaultConfig matches SPEC_FULL.md's §4.4 defaults.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, SubmissionTimeout: 2 * time.Minute, InclusionPollInterval: 4 * time.Second}
}

// Executor submits, tracks, reconciles, and falls back on Routes.
type Executor struct {
	cfg      Config
	clock    coreclock.Clock
	chains   *chainWorkers
	adapters *adapters.Registry
	loans    *adapters.FlashLoanRegistry
	relay    adapters.RelayClient
	rpc      func(chain arbmodel.ChainID) (adapters.RPCClient, bool)
	signer   *adapters.Signer
	oracle   PriceOracle
	coord    *coordinator.Coordinator
	metrics  *monitoring.Metrics
	logger   *zap.Logger

	mu         sync.Mutex
	executions map[string]*arbmodel.Execution          // by Execution.ID
	byKey      map[string]string                       // (workflow_id, fingerprint) -> Execution.ID
}

// Dependencies bundles the Executor's constructor dependencies so New's
// signature stays stable as the dependency set grows.
type Dependencies struct {
	Clock     coreclock.Clock
	Adapters  *adapters.Registry
	Loans     *adapters.FlashLoanRegistry
	Relay     adapters.RelayClient
	RPC       func(chain arbmodel.ChainID) (adapters.RPCClient, bool)
	Signer    *adapters.Signer
	Oracle    PriceOracle
	Coordinator *coordinator.Coordinator
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
}

// New builds an Executor. Its per-chain FIFO workers are created on first
// use of each chain.
func New(cfg Config, deps Dependencies) *Executor {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		cfg:        cfg,
		clock:      deps.Clock,
		chains:     newChainWorkers(),
		adapters:   deps.Adapters,
		loans:      deps.Loans,
		relay:      deps.Relay,
		rpc:        deps.RPC,
		signer:     deps.Signer,
		oracle:     deps.Oracle,
		coord:      deps.Coordinator,
		metrics:    deps.Metrics,
		logger:     logger,
		executions: make(map[string]*arbmodel.Execution),
		byKey:      make(map[string]string),
	}
}

func idempotencyKey(workflowID, fingerprint string) string {
	return workflowID + "|" + fingerprint
}

// Execute submits route under submission's chosen strategy and returns
// the resulting Execution. Re-entry with the same (workflow_id,
// route.Fingerprint()) returns the existing Execution rather than
// double-submitting.
func (e *Executor) Execute(ctx context.Context, workflowID string, route arbmodel.Route, submission arbmodel.Submission) (*arbmodel.Execution, error) {
	key := idempotencyKey(workflowID, route.Fingerprint())

	e.mu.Lock()
	if existingID, ok := e.byKey[key]; ok {
		existing := e.executions[existingID]
		e.mu.Unlock()
		return existing, nil
	}

	exec := &arbmodel.Execution{
		ID:               uuid.NewString(),
		OpportunityID:    route.OpportunityID,
		WorkflowID:       workflowID,
		RouteFingerprint: route.Fingerprint(),
		Submission:       submission,
		Status:           arbmodel.ExecutionPending,
		ExecutedAt:       e.clock.Now(),
	}
	e.executions[exec.ID] = exec
	e.byKey[key] = exec.ID
	e.mu.Unlock()

	worker := e.chains.For(route.Legs[0].Pool.Chain)
	worker.Submit(func() {
		e.run(ctx, exec, route)
	})

	return exec, nil
}

// Status returns the current Execution record by id.
func (e *Executor) Status(executionID string) (*arbmodel.Execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	exec, ok := e.executions[executionID]
	if !ok {
		return nil, coreerrors.New(coreerrors.KindNotFound, fmt.Sprintf("execution %s not found", executionID))
	}
	return exec, nil
}

// run drives one execution attempt through submit, poll, and reconcile,
// recording terminal status and metrics regardless of outcome.
func (e *Executor) run(ctx context.Context, exec *arbmodel.Execution, route arbmodel.Route) {
	e.setStatus(exec, arbmodel.ExecutionSubmitted, "")

	result, err := e.submit(ctx, exec, route)
	if err != nil {
		e.setStatus(exec, arbmodel.ExecutionFailed, err.Error())
		e.countExecution(route, arbmodel.ExecutionFailed)
		return
	}

	e.mu.Lock()
	exec.TxHash = result.TxHash
	e.mu.Unlock()

	finalStatus, receipt := e.awaitInclusion(ctx, exec, route, result)
	e.countExecution(route, finalStatus)

	if finalStatus == arbmodel.ExecutionConfirmed {
		e.reconcile(ctx, exec, route, receipt)
	}
}

func (e *Executor) setStatus(exec *arbmodel.Execution, status arbmodel.ExecutionStatus, errMsg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	exec.Status = status
	if errMsg != "" {
		exec.Error = errMsg
	}
	if status.IsTerminal() && status == arbmodel.ExecutionConfirmed {
		now := e.clock.Now()
		exec.ConfirmedAt = &now
	}
}

func (e *Executor) countExecution(route arbmodel.Route, status arbmodel.ExecutionStatus) {
	if e.metrics == nil || len(route.Legs) == 0 {
		return
	}
	e.metrics.ExecutionsTotal.WithLabelValues(string(status)).Inc()
}

// reconcile computes actual_profit_usd from on-chain token deltas (the
// confirmed tx's ERC20 Transfer logs, falling back to the route's planned
// amounts only when no receipt is available, e.g. a PrivateBundle fill)
// priced by the oracle at reconciliation time, mirrors the reconciled Execution into
// C5, and bumps the profit_usd_24h Counter (spec.md:149). It never fails
// the Execution: a pricing or persistence error after confirmation must
// not retroactively invalidate a confirmed on-chain result.
func (e *Executor) reconcile(ctx context.Context, exec *arbmodel.Execution, route arbmodel.Route, receipt *types.Receipt) {
	if e.oracle == nil || len(route.Legs) == 0 {
		return
	}
	first := route.Legs[0]
	last := route.Legs[len(route.Legs)-1]

	priceIn, errIn := e.oracle.USDPrice(ctx, first.TokenIn)
	priceOut, errOut := e.oracle.USDPrice(ctx, last.TokenOut)
	if errIn != nil || errOut != nil {
		return
	}

	actualOut := last.ExpectedOut
	if receipt != nil {
		if delta, ok := actualTransferOut(receipt, last.TokenOut); ok {
			actualOut = delta
		}
	}

	amountInUSD := first.AmountIn.Mul(priceIn)
	amountOutUSD := actualOut.Mul(priceOut)

	e.mu.Lock()
	exec.ActualProfitUSD = amountOutUSD.Sub(amountInUSD)
	snapshot := *exec
	e.mu.Unlock()

	e.persistReconciliation(ctx, snapshot)
}

// persistReconciliation mirrors the reconciled Execution into C5's cache
// tier and bumps the rolling profit counter. Both are best-effort: a
// coordinator outage must not undo a confirmed on-chain execution.
func (e *Executor) persistReconciliation(ctx context.Context, exec arbmodel.Execution) {
	if e.coord == nil {
		return
	}
	if raw, err := json.Marshal(exec); err == nil {
		_ = e.coord.Set(ctx, "execution:"+exec.ID, raw, executionMirrorTTL, nil)
	}
	if _, err := e.coord.IncrementCounter(ctx, "profit_usd_24h", profitCounterWindowHours); err != nil {
		e.logger.Warn("profit counter increment failed", zap.String("execution_id", exec.ID), zap.Error(err))
	}
}
