package main

import (
	"context"

	"github.com/arbitragex/engine/internal/adapters"
	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coordinator"
	"github.com/arbitragex/engine/internal/coreclock"
	"github.com/arbitragex/engine/internal/discovery"
	"github.com/arbitragex/engine/internal/executor"
	"github.com/arbitragex/engine/internal/mev"
	"github.com/arbitragex/engine/internal/monitoring"
	"github.com/arbitragex/engine/internal/pipeline"
	"github.com/arbitragex/engine/internal/router"
	"github.com/arbitragex/engine/pkg/config"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// runPipeline builds the C1->C2->C3->C4 components and starts the
// orchestration loop that turns Discovery candidates into executed,
// coordinator-tracked Workflows. It runs with an empty pool registry and
// no RPC/relay/signer until an edge-worker deployment feeds it real pool
// updates and chain connections; until then it idles, demonstrating the
// state machine without submitting anything on-chain.
func runPipeline(ctx context.Context, cfg *config.Config, coord *coordinator.Coordinator, metrics *monitoring.Metrics, logger *zap.Logger) {
	clock := coreclock.Real()
	oracle := staticOracle{usd: decimal.NewFromInt(1)}

	poolRegistry := discovery.NewRegistry()
	detector := discovery.New(discovery.DefaultConfig(), clock, poolRegistry, oracle, metrics, logger)

	adapterRegistry := adapters.NewRegistry()
	routerCfg := router.DefaultConfig()
	if cfg.Router.MaxSlippageBps > 0 {
		routerCfg.MaxSlippageBps = cfg.Router.MaxSlippageBps
	}
	rt := router.New(routerCfg, poolRegistry, adapterRegistry, clock, logger)

	controller := mev.New(mev.DefaultConfig(), idleSignalSource{}, metrics)

	execCfg := executor.DefaultConfig()
	if cfg.Executor.ConfirmationTimeout > 0 {
		execCfg.SubmissionTimeout = cfg.Executor.ConfirmationTimeout
	}
	exec := executor.New(execCfg, executor.Dependencies{
		Clock:       clock,
		Adapters:    adapterRegistry,
		Loans:       adapters.NewFlashLoanRegistry(),
		Oracle:      oracle,
		Coordinator: coord,
		Metrics:     metrics,
		Logger:      logger,
	})

	p := pipeline.New(pipeline.DefaultConfig(), pipeline.Dependencies{
		Detector:    detector,
		Router:      rt,
		MEV:         controller,
		Executor:    exec,
		Coordinator: coord,
		Clock:       clock,
		Logger:      logger,
	})

	go p.Run(ctx)
	go func() {
		<-ctx.Done()
		detector.Stop()
	}()
}

// staticOracle prices every token at a fixed USD value. A production
// deployment wires a real price feed (e.g. a Chainlink aggregator
// adapter) here instead; this binary has no such feed configured, so
// discovery/executor reconciliation runs with a flat price until one is.
type staticOracle struct {
	usd decimal.Decimal
}

func (o staticOracle) USDPrice(ctx context.Context, token arbmodel.Token) (decimal.Decimal, error) {
	return o.usd, nil
}

// idleSignalSource answers every MEV signal query with "nothing observed".
// In production the executor's mempool watcher feeds real pending-tx and
// oracle-deviation observations here; without a mempool subscription
// configured, the controller classifies every route ThreatNone and never
// blocks on MEV grounds.
type idleSignalSource struct{}

func (idleSignalSource) Mempool(ctx context.Context, route arbmodel.Route) (mev.MempoolSignal, error) {
	return mev.MempoolSignal{}, nil
}

func (idleSignalSource) PoolAnomaly(ctx context.Context, route arbmodel.Route) (mev.PoolAnomalySignal, error) {
	return mev.PoolAnomalySignal{}, nil
}
