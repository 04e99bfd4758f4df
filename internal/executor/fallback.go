package executor

import (
	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/mev"
	"github.com/shopspring/decimal"
)

// FallbackAction is the sum-variant over §4.4's fallback strategies.
type FallbackAction string

const (
	FallbackRetryWithProtection FallbackAction = "RETRY_WITH_PROTECTION"
	FallbackAbortTransaction    FallbackAction = "ABORT_TRANSACTION"
	FallbackUseAlternativeRoute FallbackAction = "USE_ALTERNATIVE_ROUTE"
)

// FallbackPlan is the concrete adjustment a fallback action implies, for
// the caller (the workflow loop) to apply before a retry.
type FallbackPlan struct {
	Action             FallbackAction
	BumpedProtection   mev.ProtectionLevel
	AddedSlippageBps   int
	AmountInMultiplier decimal.Decimal
	ExcludePools       []arbmodel.PoolID
}

// protectionLadder is the one-step escalation order RETRY_WITH_PROTECTION
// climbs.
var protectionLadder = []mev.ProtectionLevel{
	mev.ProtectionBasic, mev.ProtectionStandard, mev.ProtectionAdvanced, mev.ProtectionMaximum,
}

// bumpProtection returns the next-higher protection level, clamped at
// ProtectionMaximum.
func bumpProtection(level mev.ProtectionLevel) mev.ProtectionLevel {
	for i, l := range protectionLadder {
		if l == level && i+1 < len(protectionLadder) {
			return protectionLadder[i+1]
		}
	}
	return mev.ProtectionMaximum
}

// Fallback decides the next action after a failed attempt, per §4.4's
// trigger table. attemptCount is the number of attempts already made
// (including the one that just failed); it never recommends a retry once
// attemptCount reaches cfg.MaxRetries.
func (e *Executor) Fallback(trigger string, currentLevel mev.ProtectionLevel, emergencyStop bool, attemptCount int, route arbmodel.Route) FallbackPlan {
	if attemptCount >= e.cfg.MaxRetries {
		return FallbackPlan{Action: FallbackAbortTransaction}
	}

	switch trigger {
	case "HIGH_MEV_RISK":
		return FallbackPlan{
			Action:           FallbackRetryWithProtection,
			BumpedProtection: bumpProtection(currentLevel),
			AddedSlippageBps: 50,
		}
	case "CRITICAL_THREAT":
		if emergencyStop {
			return FallbackPlan{Action: FallbackAbortTransaction}
		}
		return FallbackPlan{
			Action:       FallbackUseAlternativeRoute,
			ExcludePools: poolsOf(route),
		}
	case "EXECUTION_FAILURE":
		return FallbackPlan{
			Action:             FallbackUseAlternativeRoute,
			ExcludePools:       poolsOf(route),
			AmountInMultiplier: decimal.NewFromFloat(1.10),
		}
	default:
		return FallbackPlan{Action: FallbackAbortTransaction}
	}
}

func poolsOf(route arbmodel.Route) []arbmodel.PoolID {
	pools := make([]arbmodel.PoolID, 0, len(route.Legs))
	for _, leg := range route.Legs {
		pools = append(pools, leg.Pool)
	}
	return pools
}
