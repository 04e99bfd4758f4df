// Package pipeline wires C1 Discovery through C2 Router, C3 MEV Controller,
// and C4 Executor into one orchestration loop, persisting the Workflow's
// transitions into C5 as it goes. It needs no live RPC endpoint, signing
// key, or pool-update feed of its own: it only consumes the other four
// components' constructed instances, the concrete per-chain wiring a real
// edge-worker needs stays the deployment's responsibility.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coordinator"
	"github.com/arbitragex/engine/internal/coreclock"
	"github.com/arbitragex/engine/internal/discovery"
	"github.com/arbitragex/engine/internal/executor"
	"github.com/arbitragex/engine/internal/mev"
	"github.com/arbitragex/engine/internal/router"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// defaultExecutionPollInterval is how often awaitExecution checks the
// executor's in-memory status for a terminal result.
const defaultExecutionPollInterval = 2 * time.Second

// Config tunes the pipeline's submission defaults.
type Config struct {
	Protection       mev.ProtectionLevel
	BaseGasPriceGwei decimal.Decimal
}

// DefaultConfig matches SPEC_FULL.md's §4.5 defaults (standard protection).
func DefaultConfig() Config {
	return Config{Protection: mev.ProtectionStandard, BaseGasPriceGwei: decimal.NewFromInt(30)}
}

// Dependencies bundles the four pipeline components plus the coordinator
// their Workflow transitions are persisted through.
type Dependencies struct {
	Detector    *discovery.Detector
	Router      *router.Router
	MEV         *mev.Controller
	Executor    *executor.Executor
	Coordinator *coordinator.Coordinator
	Clock       coreclock.Clock
	Logger      *zap.Logger
}

// Pipeline drives every Opportunity discovery emits through C2->C3->C4,
// recording each transition as a Workflow in C5.
type Pipeline struct {
	cfg   Config
	deps  Dependencies
	clock coreclock.Clock
	log   *zap.Logger
}

// New builds a Pipeline over already-constructed C1-C4 components.
func New(cfg Config, deps Dependencies) *Pipeline {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = coreclock.Real()
	}
	return &Pipeline{cfg: cfg, deps: deps, clock: clock, log: log}
}

// Run blocks, processing every opportunity discovery.Detector emits until
// ctx is canceled or the Opportunities channel closes. Each opportunity is
// processed on its own goroutine so a slow route-plan or MEV classification
// never stalls the discovery stream.
func (p *Pipeline) Run(ctx context.Context) {
	opportunities := p.deps.Detector.Opportunities()
	for {
		select {
		case <-ctx.Done():
			return
		case opp, ok := <-opportunities:
			if !ok {
				return
			}
			go p.process(ctx, opp)
		}
	}
}

// process carries one Opportunity through Start -> Route -> Classify ->
// Execute, persisting the Workflow's Phase at each stage so GET
// /workflows/:id reflects where the attempt currently stands.
func (p *Pipeline) process(ctx context.Context, opp arbmodel.Opportunity) {
	coord := p.deps.Coordinator
	wf, err := coord.StartWorkflow(ctx, opp.ID, arbmodel.WorkflowConfig{
		ProtectionLevel: string(p.cfg.Protection),
		MinProfitUSD:    opp.ExpectedProfitUSD,
	})
	if err != nil {
		p.log.Debug("workflow already starting/active, skipping", zap.String("opportunity_id", opp.ID), zap.Error(err))
		return
	}

	wf.Phase = "routing"
	p.advance(ctx, wf)

	route, err := p.deps.Router.Plan(ctx, opp)
	if err != nil {
		p.finish(ctx, wf, arbmodel.WorkflowError, fmt.Sprintf("route planning failed: %v", err))
		return
	}

	wf.Phase = "protecting"
	p.advance(ctx, wf)

	decision, err := p.deps.MEV.Decide(ctx, *route, p.cfg.Protection, p.clock.Now())
	if err != nil {
		p.finish(ctx, wf, arbmodel.WorkflowError, fmt.Sprintf("mev classification failed: %v", err))
		return
	}
	if decision.Aborted {
		p.finish(ctx, wf, arbmodel.WorkflowStopped, decision.AbortReason)
		return
	}

	wf.Phase = "executing"
	p.advance(ctx, wf)

	submission := arbmodel.Submission{
		Strategy: decision.Strategy,
		GasPrice: p.cfg.BaseGasPriceGwei.Mul(decision.GasMultiplier),
		TxRequest: arbmodel.TxRequest{
			Chain: route.Legs[0].Pool.Chain,
		},
	}

	exec, err := p.deps.Executor.Execute(ctx, wf.ID, *route, submission)
	if err != nil {
		p.finish(ctx, wf, arbmodel.WorkflowError, fmt.Sprintf("execution submit failed: %v", err))
		return
	}

	wf.Phase = "submitted"
	wf.Summary = exec.ID
	p.advance(ctx, wf)

	go p.awaitExecution(ctx, wf, exec.ID)
}

// advance persists wf mid-flight (Status stays Active, Phase/LastUpdate
// move forward); a persistence failure is logged, not fatal, since the
// in-flight attempt must not be aborted over an observability write.
func (p *Pipeline) advance(ctx context.Context, wf *arbmodel.Workflow) {
	wf.Status = arbmodel.WorkflowActive
	wf.LastUpdate = p.clock.Now()
	if err := p.deps.Coordinator.SetWorkflowState(ctx, wf); err != nil {
		p.log.Warn("workflow state persist failed", zap.String("workflow_id", wf.ID), zap.Error(err))
	}
}

// finish transitions wf to a terminal status and removes it from the
// active-workflow set.
func (p *Pipeline) finish(ctx context.Context, wf *arbmodel.Workflow, status arbmodel.WorkflowStatus, summary string) {
	coord := p.deps.Coordinator
	now := p.clock.Now()
	wf.Status = status
	wf.Summary = summary
	wf.LastUpdate = now
	wf.StoppedAt = &now
	if err := coord.SetWorkflowState(ctx, wf); err != nil {
		p.log.Warn("workflow terminal state persist failed", zap.String("workflow_id", wf.ID), zap.Error(err))
	}
	if err := coord.RemoveActiveWorkflow(ctx, wf.ID); err != nil {
		p.log.Warn("active workflow removal failed", zap.String("workflow_id", wf.ID), zap.Error(err))
	}
}

// awaitExecution polls the Executor's in-memory status until the
// Execution reaches a terminal state, then finalizes the Workflow. It
// mirrors the executor's own inclusion-poll idiom rather than inventing a
// push-based notification path.
func (p *Pipeline) awaitExecution(ctx context.Context, wf *arbmodel.Workflow, executionID string) {
	ticker := p.clock.NewTicker(defaultExecutionPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		exec, err := p.deps.Executor.Status(executionID)
		if err != nil || !exec.Status.IsTerminal() {
			continue
		}

		status := arbmodel.WorkflowCompleted
		if exec.Status != arbmodel.ExecutionConfirmed {
			status = arbmodel.WorkflowError
		}
		p.finish(ctx, wf, status, string(exec.Status))
		return
	}
}
