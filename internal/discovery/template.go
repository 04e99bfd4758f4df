package discovery

import "github.com/arbitragex/engine/internal/arbmodel"

// Template is a candidate route shape discovery watches: a 2-leg cross-DEX
// cycle (A->B on dex1, B->A on dex2), a triangular cycle (A->B->C->A
// across up to 3 DEXes), or either layered with an external flash-loan leg.
// Templates are registered once at startup/scope-change; a pool update only
// ever triggers re-evaluation of the templates that reference that pool.
type Template struct {
	ID       string
	Kind     arbmodel.OpportunityKind
	Chain    arbmodel.ChainID
	Legs     []arbmodel.PoolRef
	GasHint  uint64 // rough gas estimate used only for tie-breaking, not charged
}

// TokenPath reconstructs the cyclic token path a Template implies: the
// TokenIn of every leg, closed by the first leg's TokenIn.
func (t *Template) TokenPath() []arbmodel.Token {
	if len(t.Legs) == 0 {
		return nil
	}
	path := make([]arbmodel.Token, 0, len(t.Legs)+1)
	for _, leg := range t.Legs {
		path = append(path, leg.TokenIn)
	}
	path = append(path, t.Legs[0].TokenIn)
	return path
}
