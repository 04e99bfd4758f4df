package coordinator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coreerrors"
)

const (
	reasonAlreadyStarting = "ALREADY_STARTING"
	reasonAlreadyActive   = "ALREADY_ACTIVE"
	reasonAlreadyStopping = "ALREADY_STOPPING"
)

func workflowKey(id string) string      { return "workflow:" + id }
const activeWorkflowsKey = "system:active_workflows"

// StartWorkflow transitions a Workflow from absent to Starting, guarded by
// the named workflow_start lock. When the lock is already held it returns
// a coreerrors.KindLockHeld error with message ALREADY_STARTING; when the
// workflow is already active, a KindValidation error with ALREADY_ACTIVE.
func (c *Coordinator) StartWorkflow(ctx context.Context, id string, cfg arbmodel.WorkflowConfig) (*arbmodel.Workflow, error) {
	rate := c.CheckRateLimit(ctx, "start_workflow:"+id, c.cfg.WorkflowStartLimit, int(c.cfg.WorkflowStartWindow.Seconds()))
	if !rate.Allowed {
		return nil, coreerrors.New(coreerrors.KindValidation, "start_workflow rate limit exceeded")
	}

	token, acquired, err := c.AcquireLock(ctx, WorkflowStartLockName(id), int(c.cfg.WorkflowLockTTL.Seconds()))
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, coreerrors.New(coreerrors.KindLockHeld, reasonAlreadyStarting)
	}
	defer c.ReleaseLock(ctx, WorkflowStartLockName(id), token)

	active, err := c.ListActiveWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	for _, existing := range active {
		if existing == id {
			return nil, coreerrors.New(coreerrors.KindValidation, reasonAlreadyActive)
		}
	}

	now := c.clock.Now()
	wf := &arbmodel.Workflow{
		ID:         id,
		Status:     arbmodel.WorkflowStarting,
		Config:     cfg,
		StartedAt:  now,
		LastUpdate: now,
	}

	if err := c.SetWorkflowState(ctx, wf); err != nil {
		return nil, err
	}
	if err := c.AddActiveWorkflow(ctx, id); err != nil {
		return nil, err
	}
	if _, err := c.IncrementCounter(ctx, "workflows_started", 24); err != nil {
		return nil, err
	}

	return wf, nil
}

// StopWorkflow transitions a Workflow to Stopped, guarded by the named
// workflow_stop lock.
func (c *Coordinator) StopWorkflow(ctx context.Context, id string) (*arbmodel.Workflow, error) {
	token, acquired, err := c.AcquireLock(ctx, WorkflowStopLockName(id), int(c.cfg.WorkflowLockTTL.Seconds()))
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, coreerrors.New(coreerrors.KindLockHeld, reasonAlreadyStopping)
	}
	defer c.ReleaseLock(ctx, WorkflowStopLockName(id), token)

	wf, err := c.GetWorkflowState(ctx, id)
	if err != nil {
		return nil, err
	}

	wf.Status = arbmodel.WorkflowStopped
	now := c.clock.Now()
	wf.StoppedAt = &now
	wf.LastUpdate = now

	if err := c.SetWorkflowState(ctx, wf); err != nil {
		return nil, err
	}
	if err := c.RemoveActiveWorkflow(ctx, id); err != nil {
		return nil, err
	}
	return wf, nil
}

// SetWorkflowState persists wf's full record.
func (c *Coordinator) SetWorkflowState(ctx context.Context, wf *arbmodel.Workflow) error {
	raw, err := json.Marshal(wf)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindValidation, "encode workflow state", err)
	}
	if err := c.kv.Set(ctx, workflowKey(wf.ID), raw, 0); err != nil {
		return coreerrors.Wrap(coreerrors.KindKVUnavailable, "persist workflow state", err)
	}
	return nil
}

// GetWorkflowState reads a Workflow's full record by id.
func (c *Coordinator) GetWorkflowState(ctx context.Context, id string) (*arbmodel.Workflow, error) {
	raw, err := c.kv.Get(ctx, workflowKey(id))
	if err != nil {
		return nil, coreerrors.New(coreerrors.KindNotFound, fmt.Sprintf("workflow %s not found", id))
	}
	var wf arbmodel.Workflow
	if err := json.Unmarshal([]byte(raw), &wf); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "decode workflow state", err)
	}
	return &wf, nil
}

// AddActiveWorkflow appends id to the active-workflow set.
func (c *Coordinator) AddActiveWorkflow(ctx context.Context, id string) error {
	active, err := c.ListActiveWorkflows(ctx)
	if err != nil {
		return err
	}
	for _, existing := range active {
		if existing == id {
			return nil
		}
	}
	active = append(active, id)
	return c.persistActiveWorkflows(ctx, active)
}

// RemoveActiveWorkflow removes id from the active-workflow set.
func (c *Coordinator) RemoveActiveWorkflow(ctx context.Context, id string) error {
	active, err := c.ListActiveWorkflows(ctx)
	if err != nil {
		return err
	}
	filtered := active[:0]
	for _, existing := range active {
		if existing != id {
			filtered = append(filtered, existing)
		}
	}
	return c.persistActiveWorkflows(ctx, filtered)
}

// ListActiveWorkflows returns the current active-workflow id set.
func (c *Coordinator) ListActiveWorkflows(ctx context.Context) ([]string, error) {
	raw, err := c.kv.Get(ctx, activeWorkflowsKey)
	if err != nil {
		return []string{}, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "decode active workflow set", err)
	}
	return ids, nil
}

func (c *Coordinator) persistActiveWorkflows(ctx context.Context, ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindValidation, "encode active workflow set", err)
	}
	if err := c.kv.Set(ctx, activeWorkflowsKey, raw, 0); err != nil {
		return coreerrors.Wrap(coreerrors.KindKVUnavailable, "persist active workflow set", err)
	}
	if c.metrics != nil {
		c.metrics.ActiveWorkflows.Set(float64(len(ids)))
	}
	return nil
}
