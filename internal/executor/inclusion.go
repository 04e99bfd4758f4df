package executor

import (
	"context"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// awaitInclusion polls for a submission's fate until the route's deadline,
// returning a terminal ExecutionStatus and the transaction receipt that
// produced it (nil for a PrivateBundle fill, which has no RPC receipt).
// PrivateBundle polls the relay; every other strategy polls the RPC
// client's transaction receipt.
func (e *Executor) awaitInclusion(ctx context.Context, exec *arbmodel.Execution, route arbmodel.Route, result submitResult) (arbmodel.ExecutionStatus, *types.Receipt) {
	rpc, ok := e.rpcFor(route)
	if !ok {
		return e.finish(exec, arbmodel.ExecutionTimedOut), nil
	}

	ticker := e.clock.NewTicker(e.cfg.InclusionPollInterval)
	defer ticker.Stop()

	for {
		if e.clock.Now().After(route.Deadline) {
			return e.finish(exec, arbmodel.ExecutionTimedOut), nil
		}

		if result.BundleID != "" && e.relay != nil {
			status, err := e.relay.BundleStatus(ctx, result.BundleID)
			if err == nil && status.Included {
				e.mu.Lock()
				exec.BlockNumber = status.Block
				e.mu.Unlock()
				return e.finish(exec, arbmodel.ExecutionConfirmed), nil
			}
		} else {
			receipt, err := rpc.TransactionReceipt(ctx, common.HexToHash(result.TxHash))
			if err == nil && receipt != nil {
				e.mu.Lock()
				exec.BlockNumber = receipt.BlockNumber
				exec.GasUsed = receipt.GasUsed
				e.mu.Unlock()
				if receipt.Status == 1 {
					return e.finish(exec, arbmodel.ExecutionConfirmed), receipt
				}
				return e.finish(exec, arbmodel.ExecutionReverted), receipt
			}
		}

		select {
		case <-ctx.Done():
			return e.finish(exec, arbmodel.ExecutionTimedOut), nil
		case <-ticker.C:
		}
	}
}

func (e *Executor) finish(exec *arbmodel.Execution, status arbmodel.ExecutionStatus) arbmodel.ExecutionStatus {
	e.setStatus(exec, status, "")
	return status
}
