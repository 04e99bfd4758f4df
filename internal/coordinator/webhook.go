package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coreerrors"
)

// WebhookEvent is the inbound shape the exposed /webhooks endpoint
// accepts and the demultiplexer routes.
type WebhookEvent struct {
	EventType   string          `json:"event_type"`
	WorkflowID  string          `json:"workflow_id,omitempty"`
	AgentID     string          `json:"agent_id,omitempty"`
	MonotonicTS int64           `json:"monotonic_ts"`
	Payload     json.RawMessage `json:"payload"`
}

const (
	EventSetWorkflowState = "set_workflow_state"
	EventSetAgentState    = "set_agent_state"
	EventSetLiveMetrics   = "set_live_metrics"
	EventCacheOpportunity = "cache_opportunity"
	EventMarkTerminal     = "mark_terminal"
)

// dedupeWindow bounds how long a (event_type, workflow_id, monotonic_ts)
// triple is remembered for idempotence, wide enough to absorb webhook
// retries without growing unbounded.
const dedupeWindow = 10 * time.Minute

// webhookDedup tracks recently-processed webhook keys in-process; across
// replicas duplicate delivery is tolerated since every routed mutation
// (state set, cache write) is itself idempotent or best-effort per
// spec.md §4.5's failure semantics.
type webhookDedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func newWebhookDedup() *webhookDedup {
	return &webhookDedup{seen: make(map[string]time.Time)}
}

func (d *webhookDedup) seenBefore(key string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.seen) > 4096 {
		for k, at := range d.seen {
			if now.Sub(at) > dedupeWindow {
				delete(d.seen, k)
			}
		}
	}
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = now
	return false
}

// HandleWebhook routes an inbound WebhookEvent to the appropriate
// coordinator mutation, deduplicating by (event_type, workflow_id,
// monotonic_ts).
func (c *Coordinator) HandleWebhook(ctx context.Context, event WebhookEvent) error {
	key := fmt.Sprintf("%s:%s:%d", event.EventType, event.WorkflowID, event.MonotonicTS)
	if c.webhookDedup.seenBefore(key, c.clock.Now()) {
		return nil
	}

	switch event.EventType {
	case EventSetWorkflowState:
		return c.handleSetWorkflowState(ctx, event)
	case EventSetAgentState:
		return c.handleSetAgentState(ctx, event)
	case EventSetLiveMetrics:
		return c.Set(ctx, "webhook:"+event.EventType+":"+event.WorkflowID, event.Payload, c.cfg.CacheValidityWindow, nil)
	case EventCacheOpportunity:
		return c.handleCacheOpportunity(ctx, event)
	case EventMarkTerminal:
		return c.handleMarkTerminal(ctx, event)
	default:
		return coreerrors.New(coreerrors.KindValidation, fmt.Sprintf("unknown webhook event_type %q", event.EventType))
	}
}

func (c *Coordinator) handleSetWorkflowState(ctx context.Context, event WebhookEvent) error {
	var patch struct {
		Status arbmodel.WorkflowStatus `json:"status"`
		Phase  string                  `json:"phase"`
	}
	if err := json.Unmarshal(event.Payload, &patch); err != nil {
		return coreerrors.Wrap(coreerrors.KindValidation, "decode set_workflow_state payload", err)
	}

	wf, err := c.GetWorkflowState(ctx, event.WorkflowID)
	if err != nil {
		return err
	}
	wf.Status = patch.Status
	wf.Phase = patch.Phase
	wf.LastUpdate = c.clock.Now()
	return c.SetWorkflowState(ctx, wf)
}

func (c *Coordinator) handleSetAgentState(ctx context.Context, event WebhookEvent) error {
	var patch struct {
		State arbmodel.AgentState `json:"state"`
	}
	if err := json.Unmarshal(event.Payload, &patch); err != nil {
		return coreerrors.Wrap(coreerrors.KindValidation, "decode set_agent_state payload", err)
	}

	wf, err := c.GetWorkflowState(ctx, event.WorkflowID)
	if err != nil {
		return err
	}
	if wf.AgentsStatus == nil {
		wf.AgentsStatus = make(map[arbmodel.AgentName]arbmodel.AgentState)
	}
	wf.AgentsStatus[arbmodel.AgentName(event.AgentID)] = patch.State
	wf.LastUpdate = c.clock.Now()
	return c.SetWorkflowState(ctx, wf)
}

func (c *Coordinator) handleCacheOpportunity(ctx context.Context, event WebhookEvent) error {
	var opp arbmodel.Opportunity
	if err := json.Unmarshal(event.Payload, &opp); err != nil {
		return coreerrors.Wrap(coreerrors.KindValidation, "decode cache_opportunity payload", err)
	}
	return c.CacheOpportunity(ctx, opp)
}

func (c *Coordinator) handleMarkTerminal(ctx context.Context, event WebhookEvent) error {
	wf, err := c.GetWorkflowState(ctx, event.WorkflowID)
	if err != nil {
		return err
	}
	wf.Status = arbmodel.WorkflowCompleted
	wf.LastUpdate = c.clock.Now()
	if err := c.SetWorkflowState(ctx, wf); err != nil {
		return err
	}
	return c.RemoveActiveWorkflow(ctx, event.WorkflowID)
}
