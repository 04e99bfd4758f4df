// Package discovery implements the streaming candidate-opportunity
// detector (C1): it watches pool-update events and emits deduplicated
// Opportunity candidates for the router to concretize.
package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coreclock"
	"github.com/arbitragex/engine/internal/monitoring"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceOracle converts a token amount into USD, used to turn a quick
// constant-product profit bound into expected_profit_usd.
type PriceOracle interface {
	USDPrice(ctx context.Context, token arbmodel.Token) (decimal.Decimal, error)
}

// Config tunes the detector with concrete decimal/duration values;
// MinProfitFloorUSD and CandidateBuffer share their names with fields of
// config.ArbitrageConfig (the YAML-facing layer), the other fields do not.
type Config struct {
	MinProfitFloorUSD decimal.Decimal
	GateFactor        decimal.Decimal
	DedupWindow       time.Duration
	OpportunityTTL    time.Duration
	CandidateBuffer   int
	StalenessTTL      time.Duration
}

// DefaultConfig returns conservative defaults matching SPEC_FULL.md.
func DefaultConfig() Config {
	return Config{
		MinProfitFloorUSD: decimal.NewFromInt(5),
		GateFactor:        decimal.NewFromFloat(1.5),
		DedupWindow:       10 * time.Second,
		OpportunityTTL:    15 * time.Second,
		CandidateBuffer:   256,
		StalenessTTL:      30 * time.Second,
	}
}

// Detector watches pool updates and emits candidate Opportunities.
// Failure semantics: an error evaluating one template (staleness, adapter
// math overflow) never affects any other template — it is skipped and
// logged at debug level (no metric is incremented), never retried;
// discovery re-fires on the template's next pool update.
type Detector struct {
	cfg      Config
	clock    coreclock.Clock
	registry *Registry
	oracle   PriceOracle
	metrics  *monitoring.Metrics
	logger   *zap.Logger

	dedup *dedupWindow
	out   chan arbmodel.Opportunity

	stop chan struct{}
}

// New builds a Detector. oracle and metrics may be nil in tests that do not
// need USD conversion or Prometheus counters.
func New(cfg Config, clock coreclock.Clock, registry *Registry, oracle PriceOracle, metrics *monitoring.Metrics, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		cfg:      cfg,
		clock:    clock,
		registry: registry,
		oracle:   oracle,
		metrics:  metrics,
		logger:   logger,
		dedup:    newDedupWindow(clock, cfg.DedupWindow),
		out:      make(chan arbmodel.Opportunity, cfg.CandidateBuffer),
		stop:     make(chan struct{}),
	}
}

// Opportunities returns the channel candidates are emitted on.
func (d *Detector) Opportunities() <-chan arbmodel.Opportunity {
	return d.out
}

// Stop signals the detector to stop processing further pool updates.
func (d *Detector) Stop() {
	close(d.stop)
}

// OnPoolUpdate is the entry point a pool-update consumer (Kafka or RPC
// subscription) calls for every reserve/sqrt-price/tick change. It
// recomputes the affected templates inline; callers should invoke this
// from a single goroutine per chain to preserve the "cooperative,
// single-threaded per worker" scheduling model, or wrap it with their own
// bounded worker pool.
func (d *Detector) OnPoolUpdate(ctx context.Context, pool arbmodel.Pool) {
	select {
	case <-d.stop:
		return
	default:
	}

	if !pool.Valid() {
		d.countError("invalid_pool_snapshot")
		return
	}

	affected := d.registry.PoolUpdated(pool)
	for _, tmpl := range affected {
		d.evaluateTemplate(ctx, tmpl)
	}
}

func (d *Detector) evaluateTemplate(ctx context.Context, tmpl *Template) {
	defer func() {
		if r := recover(); r != nil {
			d.countError("template_panic")
			d.logger.Error("discovery template evaluation panicked",
				zap.String("template_id", tmpl.ID), zap.Any("recover", r))
		}
	}()

	now := d.clock.Now()

	amountIn, ok := d.firstLegAmountIn(tmpl)
	if !ok {
		return
	}

	amountOut, ok := d.quickSimulate(tmpl, amountIn, now)
	if !ok {
		d.countError("stale_or_missing_pool")
		return
	}

	profitToken := amountOut.Sub(amountIn)
	if profitToken.Sign() <= 0 {
		return
	}

	profitUSD := profitToken
	if d.oracle != nil {
		price, err := d.oracle.USDPrice(ctx, tmpl.Legs[0].TokenIn)
		if err != nil {
			d.countError("oracle_unavailable")
			return
		}
		profitUSD = profitToken.Mul(price)
	}

	gate := d.cfg.MinProfitFloorUSD.Mul(d.cfg.GateFactor)
	if profitUSD.LessThanOrEqual(gate) {
		return
	}

	tokenPath := tmpl.TokenPath()
	fp := fingerprint(tmpl.Kind, tmpl.Chain, tmpl.Legs, tokenPath, amountIn)

	opp := arbmodel.Opportunity{
		ID:                uuid.NewString(),
		Kind:              tmpl.Kind,
		Chain:             tmpl.Chain,
		Legs:              tmpl.Legs,
		TokenPath:         tokenPath,
		AmountIn:          amountIn,
		ExpectedAmountOut: amountOut,
		ExpectedProfitUSD: profitUSD,
		GasEstimate:       tmpl.GasHint,
		Confidence:        0.6,
		Risk:              0.4,
		DetectedAt:        now,
		ExpiresAt:         now.Add(d.cfg.OpportunityTTL),
		Fingerprint:       fp,
	}

	if !opp.IsCycle() {
		d.countError("non_cyclic_candidate")
		return
	}

	if d.dedup.Seen(fp) {
		return
	}

	d.emit(opp)

	if d.metrics != nil {
		d.metrics.OpportunitiesDetectedTotal.WithLabelValues(fmt.Sprintf("%d", tmpl.Chain), string(tmpl.Kind)).Inc()
	}
}

// firstLegAmountIn sizes the probe trade as 1/1000 of the first leg's
// input-side reserve; a fixed fraction keeps the quick bound well inside
// the pool's depth.
func (d *Detector) firstLegAmountIn(tmpl *Template) (decimal.Decimal, bool) {
	if len(tmpl.Legs) == 0 {
		return decimal.Zero, false
	}
	pool, ok := d.registry.Pool(tmpl.Legs[0].Pool)
	if !ok {
		return decimal.Zero, false
	}
	probe := pool.Reserve0
	if tmpl.Legs[0].TokenIn.Key() == pool.Token1.Key() {
		probe = pool.Reserve1
	}
	return probe.Div(decimal.NewFromInt(1000)), true
}

// quickSimulate chains the constant-product formula across every leg,
// skipping (not failing the whole batch) on the first stale or missing
// pool.
func (d *Detector) quickSimulate(tmpl *Template, amountIn decimal.Decimal, now time.Time) (decimal.Decimal, bool) {
	amount := amountIn
	for _, leg := range tmpl.Legs {
		pool, ok := d.registry.Pool(leg.Pool)
		if !ok {
			return decimal.Zero, false
		}
		if pool.IsStale(now, d.cfg.StalenessTTL) {
			return decimal.Zero, false
		}

		reserveIn, reserveOut := pool.Reserve0, pool.Reserve1
		if leg.TokenIn.Key() == pool.Token1.Key() {
			reserveIn, reserveOut = pool.Reserve1, pool.Reserve0
		}

		amount = quickAmountOut(amount, reserveIn, reserveOut, pool.FeeBps)
		if amount.Sign() <= 0 {
			return decimal.Zero, false
		}
	}
	return amount, true
}

// emit applies the backpressure policy: under a saturated output channel,
// prefer the freshest and highest expected_profit_usd candidate, dropping
// the rest. When full, it evicts the oldest queued candidate and keeps
// whichever of the two — the evicted one or the new one — has the higher
// expected_profit_usd.
func (d *Detector) emit(opp arbmodel.Opportunity) {
	select {
	case d.out <- opp:
		return
	default:
	}

	select {
	case oldest := <-d.out:
		if oldest.ExpectedProfitUSD.GreaterThan(opp.ExpectedProfitUSD) {
			opp = oldest
		}
	default:
	}

	select {
	case d.out <- opp:
	default:
		d.countError("backpressure_drop")
	}
}

func (d *Detector) countError(reason string) {
	d.logger.Debug("discovery skipped candidate", zap.String("reason", reason))
}
