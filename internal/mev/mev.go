// Package mev classifies threats against a planned Route and selects a
// submission strategy (C3). The controller is pure given its inputs: it
// reads pool/mempool signals through small interfaces and never mutates
// the route or submits anything itself.
package mev

import (
	"context"
	"time"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/monitoring"
	"github.com/shopspring/decimal"
)

// ProtectionLevel is the operator-configured posture, orthogonal to the
// threat level computed per route.
type ProtectionLevel string

const (
	ProtectionBasic    ProtectionLevel = "basic"
	ProtectionStandard ProtectionLevel = "standard"
	ProtectionAdvanced ProtectionLevel = "advanced"
	ProtectionMaximum  ProtectionLevel = "maximum"
)

// MempoolSignal is what the controller can observe about pending
// transactions relevant to a route, supplied by a mempool watcher.
type MempoolSignal struct {
	CompetingGasPriceGwei decimal.Decimal
	OverlappingTokenPath  bool
	SameRouterPending     bool
}

// PoolAnomalySignal flags pool-state anomalies used for the oracle-
// manipulation signal.
type PoolAnomalySignal struct {
	TVLDropBps      int
	OracleDeviationBps int
}

// SignalSource supplies the raw observations the classifier weighs; the
// engine binary wires an idle source that reports no signals, and tests
// use a fake.
type SignalSource interface {
	Mempool(ctx context.Context, route arbmodel.Route) (MempoolSignal, error)
	PoolAnomaly(ctx context.Context, route arbmodel.Route) (PoolAnomalySignal, error)
}

// Config tunes the classifier and strategy table's constants.
type Config struct {
	MaxOracleDeviationBps int
	EmergencyStop         bool
	BaseSlippageHeadroomMinutes int
}

// DefaultConfig matches SPEC_FULL.md's §4.3 defaults.
func DefaultConfig() Config {
	return Config{MaxOracleDeviationBps: 300, EmergencyStop: false, BaseSlippageHeadroomMinutes: 5}
}

// Controller classifies threats and selects submission strategies.
type Controller struct {
	cfg     Config
	signals SignalSource
	metrics *monitoring.Metrics
}

// New builds a Controller.
func New(cfg Config, signals SignalSource, metrics *monitoring.Metrics) *Controller {
	return &Controller{cfg: cfg, signals: signals, metrics: metrics}
}

// gasMultiplier is the competitive gas-price bump applied when submitting
// Protected, keyed by threat level.
var gasMultiplier = map[arbmodel.ThreatLevel]decimal.Decimal{
	arbmodel.ThreatNone:     decimal.NewFromFloat(1.00),
	arbmodel.ThreatLow:      decimal.NewFromFloat(1.05),
	arbmodel.ThreatMedium:   decimal.NewFromFloat(1.15),
	arbmodel.ThreatHigh:     decimal.NewFromFloat(1.30),
	arbmodel.ThreatCritical: decimal.NewFromFloat(1.50),
}

// protectionAdjMinutes is the protection-level component of the deadline
// formula, in minutes.
var protectionAdjMinutes = map[ProtectionLevel]int{
	ProtectionBasic:    0,
	ProtectionStandard: 5,
	ProtectionAdvanced: 10,
	ProtectionMaximum:  20,
}

// threatAdjMinutes is the threat-level component of the deadline formula.
var threatAdjMinutes = map[arbmodel.ThreatLevel]int{
	arbmodel.ThreatNone:     0,
	arbmodel.ThreatLow:      2,
	arbmodel.ThreatMedium:   5,
	arbmodel.ThreatHigh:     10,
	arbmodel.ThreatCritical: 15,
}

// strategyTable implements §4.3's protection-level x threat-level matrix.
var strategyTable = map[ProtectionLevel]map[arbmodel.ThreatLevel]arbmodel.SubmissionStrategy{
	ProtectionBasic: {
		arbmodel.ThreatNone: arbmodel.StrategyDirect, arbmodel.ThreatLow: arbmodel.StrategyDirect,
		arbmodel.ThreatMedium: arbmodel.StrategyDirect, arbmodel.ThreatHigh: arbmodel.StrategyProtected,
		arbmodel.ThreatCritical: arbmodel.StrategyProtected,
	},
	ProtectionStandard: {
		arbmodel.ThreatNone: arbmodel.StrategyProtected, arbmodel.ThreatLow: arbmodel.StrategyProtected,
		arbmodel.ThreatMedium: arbmodel.StrategyProtected, arbmodel.ThreatHigh: arbmodel.StrategyProtected,
		arbmodel.ThreatCritical: arbmodel.StrategyPrivateBundle,
	},
	ProtectionAdvanced: {
		arbmodel.ThreatNone: arbmodel.StrategyProtected, arbmodel.ThreatLow: arbmodel.StrategyProtected,
		arbmodel.ThreatMedium: arbmodel.StrategyProtected, arbmodel.ThreatHigh: arbmodel.StrategyPrivateBundle,
		arbmodel.ThreatCritical: arbmodel.StrategyPrivateBundle,
	},
	ProtectionMaximum: {
		arbmodel.ThreatNone: arbmodel.StrategyProtected, arbmodel.ThreatLow: arbmodel.StrategyProtected,
		arbmodel.ThreatMedium: arbmodel.StrategyPrivateBundle, arbmodel.ThreatHigh: arbmodel.StrategyPrivateBundle,
		// CRITICAL under MAXIMUM protection is an unconditional abort (spec.md:106);
		// this entry is never read by Decide, which short-circuits before the lookup.
		arbmodel.ThreatCritical: arbmodel.StrategyPrivateBundle,
	},
}

// Decision is the controller's output: the chosen strategy, the gas-price
// multiplier to apply, the computed deadline, and the threat analysis
// that drove the choice.
type Decision struct {
	Analysis  arbmodel.MEVAnalysis
	Strategy  arbmodel.SubmissionStrategy
	GasMultiplier decimal.Decimal
	Deadline  time.Time
	Aborted   bool
	AbortReason string
}

// Decide classifies threats against route and selects a Submission
// strategy for the given protection level.
func (c *Controller) Decide(ctx context.Context, route arbmodel.Route, level ProtectionLevel, now time.Time) (Decision, error) {
	analysis, err := c.classify(ctx, route)
	if err != nil {
		return Decision{}, err
	}

	for _, action := range analysis.RecommendedActions {
		if action.Kind == arbmodel.ActionCancelTx {
			c.countTrigger(analysis.ThreatLevel, route.Legs)
			return Decision{Analysis: analysis, Aborted: true, AbortReason: "TRANSACTION_CANCELLED"}, nil
		}
	}

	if level == ProtectionMaximum && analysis.ThreatLevel == arbmodel.ThreatCritical {
		c.countTrigger(analysis.ThreatLevel, route.Legs)
		return Decision{Analysis: analysis, Aborted: true, AbortReason: "MAXIMUM_PROTECTION_CRITICAL_THREAT"}, nil
	}

	if level == ProtectionBasic && analysis.ThreatLevel == arbmodel.ThreatCritical && c.cfg.EmergencyStop {
		c.countTrigger(analysis.ThreatLevel, route.Legs)
		return Decision{Analysis: analysis, Aborted: true, AbortReason: "EMERGENCY_STOP"}, nil
	}

	strategy := strategyTable[level][analysis.ThreatLevel]
	if strategy == arbmodel.SubmissionStrategy("") {
		strategy = arbmodel.StrategyProtected
	}

	var delayBlocks uint64
	for _, action := range analysis.RecommendedActions {
		if action.Kind == arbmodel.ActionDelayExecution && action.DelayBlocks > delayBlocks {
			delayBlocks = action.DelayBlocks
		}
	}
	if delayBlocks > 0 {
		strategy = arbmodel.StrategyDelayed
	}

	deadline := now.Add(time.Duration(10+protectionAdjMinutes[level]+threatAdjMinutes[analysis.ThreatLevel]) * time.Minute)

	if analysis.ThreatLevel != arbmodel.ThreatNone {
		c.countTrigger(analysis.ThreatLevel, route.Legs)
	}

	return Decision{
		Analysis:      analysis,
		Strategy:      strategy,
		GasMultiplier: gasMultiplier[analysis.ThreatLevel],
		Deadline:      deadline,
	}, nil
}

func (c *Controller) countTrigger(level arbmodel.ThreatLevel, legs []arbmodel.RouteLeg) {
	if c.metrics == nil || len(legs) == 0 {
		return
	}
	chain := legs[0].Pool.Chain
	c.metrics.MEVProtectionTriggeredTotal.WithLabelValues(string(level), chainLabel(chain)).Inc()
}

func chainLabel(chain arbmodel.ChainID) string {
	switch chain {
	case arbmodel.ChainEthereum:
		return "ethereum"
	case arbmodel.ChainBSC:
		return "bsc"
	case arbmodel.ChainPolygon:
		return "polygon"
	case arbmodel.ChainArbitrum:
		return "arbitrum"
	case arbmodel.ChainOptimism:
		return "optimism"
	default:
		return "unknown"
	}
}
