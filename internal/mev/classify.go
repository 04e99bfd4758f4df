package mev

import (
	"context"

	"github.com/arbitragex/engine/internal/arbmodel"
)

// signal weights, tuned so a single strong signal alone lands in MEDIUM
// and two strong signals land in HIGH/CRITICAL, per §4.3's level bands.
const (
	weightSandwich            = 0.45
	weightFrontrun            = 0.35
	weightBackrun             = 0.20
	weightOracleManipulation  = 0.55
)

// classify runs every §4.3 signal against route and aggregates them into
// a MEVAnalysis. A SignalSource error is returned with an empty analysis;
// no threat level is assigned in that case.
func (c *Controller) classify(ctx context.Context, route arbmodel.Route) (arbmodel.MEVAnalysis, error) {
	mempool, err := c.signals.Mempool(ctx, route)
	if err != nil {
		return arbmodel.MEVAnalysis{}, err
	}
	anomaly, err := c.signals.PoolAnomaly(ctx, route)
	if err != nil {
		return arbmodel.MEVAnalysis{}, err
	}

	var threats []arbmodel.Threat
	var score float64

	if mempool.SameRouterPending && mempool.OverlappingTokenPath && mempool.CompetingGasPriceGwei.IsPositive() {
		threats = append(threats, arbmodel.Threat{Type: arbmodel.ThreatTypeSandwich, Severity: weightSandwich})
		score += weightSandwich
	}

	if mempool.SameRouterPending && mempool.OverlappingTokenPath {
		threats = append(threats, arbmodel.Threat{Type: arbmodel.ThreatTypeFrontrun, Severity: weightFrontrun})
		score += weightFrontrun
	}

	if route.SlippageBps >= 100 {
		threats = append(threats, arbmodel.Threat{Type: arbmodel.ThreatTypeBackrun, Severity: weightBackrun})
		score += weightBackrun
	}

	if anomaly.OracleDeviationBps > c.cfg.MaxOracleDeviationBps || anomaly.TVLDropBps >= 2000 {
		threats = append(threats, arbmodel.Threat{Type: arbmodel.ThreatTypeOracleManipulation, Severity: weightOracleManipulation})
		score += weightOracleManipulation
	}

	if score > 1 {
		score = 1
	}

	level := levelFor(score)

	return arbmodel.MEVAnalysis{
		ThreatLevel:        level,
		Threats:            threats,
		RecommendedActions: recommend(level, threats),
	}, nil
}

// levelFor maps an aggregated [0,1] score onto §4.3's threat bands.
func levelFor(score float64) arbmodel.ThreatLevel {
	switch {
	case score <= 0:
		return arbmodel.ThreatNone
	case score <= 0.2:
		return arbmodel.ThreatLow
	case score <= 0.5:
		return arbmodel.ThreatMedium
	case score <= 0.8:
		return arbmodel.ThreatHigh
	default:
		return arbmodel.ThreatCritical
	}
}

// recommend derives protection actions from the classified threats; a
// CancelTx is only ever recommended when a critical oracle-manipulation
// signal makes the route itself untrustworthy, not merely risky.
func recommend(level arbmodel.ThreatLevel, threats []arbmodel.Threat) []arbmodel.Action {
	var actions []arbmodel.Action

	hasOracleManipulation := false
	for _, t := range threats {
		if t.Type == arbmodel.ThreatTypeOracleManipulation {
			hasOracleManipulation = true
		}
	}

	if level == arbmodel.ThreatCritical && hasOracleManipulation {
		actions = append(actions, arbmodel.Action{Kind: arbmodel.ActionCancelTx})
		return actions
	}

	switch level {
	case arbmodel.ThreatHigh, arbmodel.ThreatCritical:
		actions = append(actions, arbmodel.Action{Kind: arbmodel.ActionUsePrivateMempool})
		actions = append(actions, arbmodel.Action{Kind: arbmodel.ActionAdjustSlippage, DeltaBps: 50})
	case arbmodel.ThreatMedium:
		actions = append(actions, arbmodel.Action{Kind: arbmodel.ActionAdjustSlippage, DeltaBps: 25})
	}

	return actions
}
