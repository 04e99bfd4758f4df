package coordinator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coreclock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeRedis) {
	t.Helper()
	kv := newFakeRedis()
	c := New(DefaultConfig(), kv, coreclock.Mock(time.Unix(1_700_000_000, 0)), nil, nil)
	return c, kv
}

func newTestCoordinatorWithClock(t *testing.T) (*Coordinator, *fakeRedis, *coreclock.MockClock) {
	t.Helper()
	kv := newFakeRedis()
	clock := coreclock.Mock(time.Unix(1_700_000_000, 0))
	c := New(DefaultConfig(), kv, clock, nil, nil)
	return c, kv, clock
}

func TestCacheGetSetRoundTrip(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	err := c.Set(ctx, "k1", json.RawMessage(`{"a":1}`), time.Minute, []string{"tag-a"})
	require.NoError(t, err)

	value, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(value))
}

func TestCacheGetDoesNotReturnExpiredEntry(t *testing.T) {
	c, _, clock := newTestCoordinatorWithClock(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", json.RawMessage(`{"a":1}`), time.Minute, nil))

	_, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(2 * time.Minute)

	_, ok, err = c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok, "a value whose inserted_at+ttl has passed must not be served from the LRU")
}

func TestCacheInvalidateByTag(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", json.RawMessage(`1`), time.Minute, []string{"pool:0xA"}))
	require.NoError(t, c.Set(ctx, "k2", json.RawMessage(`2`), time.Minute, []string{"pool:0xB"}))

	c.InvalidateByTag([]string{"pool:0xA"})

	_, ok1, _ := c.Get(ctx, "k1")
	_, ok2, _ := c.Get(ctx, "k2")
	assert.False(t, ok1)
	assert.True(t, ok2)
}

func TestAcquireLockPreventsDoubleAcquire(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	token, ok, err := c.AcquireLock(ctx, "workflow_start:wf-1", 60)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok2, err := c.AcquireLock(ctx, "workflow_start:wf-1", 60)
	require.NoError(t, err)
	assert.False(t, ok2)

	require.NoError(t, c.ReleaseLock(ctx, "workflow_start:wf-1", token))

	_, ok3, err := c.AcquireLock(ctx, "workflow_start:wf-1", 60)
	require.NoError(t, err)
	assert.True(t, ok3)
}

func TestCheckRateLimitAllowsUnderMaxAndBlocksOver(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result := c.CheckRateLimit(ctx, "start_workflow:wf-1", 5, 60)
		assert.True(t, result.Allowed, "request %d should be allowed", i)
	}

	result := c.CheckRateLimit(ctx, "start_workflow:wf-1", 5, 60)
	assert.False(t, result.Allowed)
}

func TestCheckRateLimitFailsOpenOnSubstrateError(t *testing.T) {
	c, kv := newTestCoordinator(t)
	kv.failAll = true

	result := c.CheckRateLimit(context.Background(), "start_workflow:wf-2", 1, 60)
	assert.True(t, result.Allowed)
}

func TestStartWorkflowThenAlreadyActive(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	wf, err := c.StartWorkflow(ctx, "wf-1", arbmodel.WorkflowConfig{MinProfitUSD: decimal.RequireFromString("5")})
	require.NoError(t, err)
	assert.Equal(t, arbmodel.WorkflowStarting, wf.Status)

	_, err = c.StartWorkflow(ctx, "wf-1", arbmodel.WorkflowConfig{})
	assert.Error(t, err)
}

func TestStopWorkflowRemovesFromActiveSet(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := c.StartWorkflow(ctx, "wf-3", arbmodel.WorkflowConfig{})
	require.NoError(t, err)

	_, err = c.StopWorkflow(ctx, "wf-3")
	require.NoError(t, err)

	active, err := c.ListActiveWorkflows(ctx)
	require.NoError(t, err)
	assert.NotContains(t, active, "wf-3")
}

func TestHandleWebhookIsIdempotentByMonotonicTimestamp(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := c.StartWorkflow(ctx, "wf-4", arbmodel.WorkflowConfig{})
	require.NoError(t, err)

	event := WebhookEvent{
		EventType:   EventSetWorkflowState,
		WorkflowID:  "wf-4",
		MonotonicTS: 1,
		Payload:     json.RawMessage(`{"status":"active","phase":"routing"}`),
	}

	require.NoError(t, c.HandleWebhook(ctx, event))
	wf, err := c.GetWorkflowState(ctx, "wf-4")
	require.NoError(t, err)
	assert.Equal(t, arbmodel.WorkflowActive, wf.Status)

	// Re-delivering the identical event must not error and must be a no-op.
	require.NoError(t, c.HandleWebhook(ctx, event))
}

func TestIncrementCounterAccumulates(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	n1, err := c.IncrementCounter(ctx, "profit_usd_24h", 24)
	require.NoError(t, err)
	n2, err := c.IncrementCounter(ctx, "profit_usd_24h", 24)
	require.NoError(t, err)

	assert.Equal(t, int64(1), n1)
	assert.Equal(t, int64(2), n2)
}
