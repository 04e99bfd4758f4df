package coordinator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coreerrors"
)

func opportunityKey(fingerprint string) string { return "opportunity:" + fingerprint }

// CacheOpportunity persists a discovery candidate under its fingerprint,
// per spec.md §6's `opportunity:<fp>` KV key, so the exposed
// GET /opportunities/:id surface and the webhook-driven
// cache_opportunity event share one store. TTL tracks the opportunity's
// own expiry rather than the generic cache_validity_window.
func (c *Coordinator) CacheOpportunity(ctx context.Context, opp arbmodel.Opportunity) error {
	raw, err := json.Marshal(opp)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindValidation, "encode opportunity", err)
	}
	ttl := opp.ExpiresAt.Sub(c.clock.Now())
	if ttl <= 0 {
		ttl = c.cfg.CacheValidityWindow
	}
	if err := c.kv.Set(ctx, opportunityKey(opp.Fingerprint), raw, ttl); err != nil {
		return coreerrors.Wrap(coreerrors.KindKVUnavailable, "persist opportunity", err)
	}
	if opp.ID != opp.Fingerprint {
		// Also index by id, since discovery's ID is what callers of
		// GET /opportunities/:id actually address.
		if err := c.kv.Set(ctx, opportunityKey(opp.ID), raw, ttl); err != nil {
			return coreerrors.Wrap(coreerrors.KindKVUnavailable, "persist opportunity by id", err)
		}
	}
	return nil
}

// GetOpportunity looks up a cached candidate by id or fingerprint.
func (c *Coordinator) GetOpportunity(ctx context.Context, id string) (*arbmodel.Opportunity, error) {
	raw, err := c.kv.Get(ctx, opportunityKey(id))
	if err != nil {
		return nil, coreerrors.New(coreerrors.KindNotFound, fmt.Sprintf("opportunity %s not found", id))
	}
	var opp arbmodel.Opportunity
	if err := json.Unmarshal([]byte(raw), &opp); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "decode opportunity", err)
	}
	return &opp, nil
}
