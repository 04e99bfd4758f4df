package executor

import (
	"context"
	"fmt"

	"github.com/arbitragex/engine/internal/adapters"
	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coreerrors"
)

// submitResult is what a strategy-specific submission path hands back to
// the run loop: enough to poll for inclusion.
type submitResult struct {
	TxHash   string
	BundleID string
}

// submit dispatches exec.Submission.Strategy to its concrete submission
// path. Delayed submission blocks its chain worker until the target
// block is reached, which is intentional: it preserves this chain's
// FIFO nonce ordering across the wait.
func (e *Executor) submit(ctx context.Context, exec *arbmodel.Execution, route arbmodel.Route) (submitResult, error) {
	rpc, ok := e.rpcFor(route)
	if !ok {
		return submitResult{}, coreerrors.New(coreerrors.KindBackendUnavailable, "no RPC client configured for chain")
	}

	switch exec.Submission.Strategy {
	case arbmodel.StrategyDirect:
		return e.submitDirect(ctx, rpc, exec.Submission)
	case arbmodel.StrategyProtected:
		return e.submitDirect(ctx, rpc, exec.Submission)
	case arbmodel.StrategyPrivateBundle:
		return e.submitBundle(ctx, route, exec.Submission)
	case arbmodel.StrategyDelayed:
		if err := e.awaitTargetBlock(ctx, rpc, exec.Submission.TargetBlock); err != nil {
			return submitResult{}, err
		}
		return e.submitDirect(ctx, rpc, exec.Submission)
	default:
		return submitResult{}, coreerrors.New(coreerrors.KindValidation, fmt.Sprintf("unknown submission strategy %q", exec.Submission.Strategy))
	}
}

func (e *Executor) rpcFor(route arbmodel.Route) (adapters.RPCClient, bool) {
	if e.rpc == nil || len(route.Legs) == 0 {
		return nil, false
	}
	return e.rpc(route.Legs[0].Pool.Chain)
}

// submitDirect signs and broadcasts exec's transaction request to the
// public mempool (Direct), or with a bumped gas price already folded
// into submission.GasPrice by the MEV controller (Protected).
func (e *Executor) submitDirect(ctx context.Context, rpc adapters.RPCClient, submission arbmodel.Submission) (submitResult, error) {
	if e.signer == nil {
		return submitResult{}, coreerrors.New(coreerrors.KindValidation, "no signer configured")
	}

	tx := buildUnsignedTx(submission)
	signed, err := e.signer.SignTx(tx, chainIDBigInt(submission.TxRequest.Chain))
	if err != nil {
		return submitResult{}, coreerrors.Wrap(coreerrors.KindInvalidSignature, "sign transaction", err)
	}

	if err := rpc.SendRawTransaction(ctx, signed); err != nil {
		return submitResult{}, coreerrors.Wrap(coreerrors.KindExecutionReverted, "broadcast transaction", err)
	}

	return submitResult{TxHash: signed.Hash().Hex()}, nil
}

// submitBundle assembles a single-transaction bundle and submits it to the
// configured private relay. Flash-loan routes get the same single-transaction
// bundle; no flash-loan legs are composed here.
func (e *Executor) submitBundle(ctx context.Context, route arbmodel.Route, submission arbmodel.Submission) (submitResult, error) {
	if e.relay == nil {
		return submitResult{}, coreerrors.New(coreerrors.KindRelayUnavailable, "no relay client configured")
	}

	tx := buildUnsignedTx(submission)
	signed, err := e.signer.SignTx(tx, chainIDBigInt(submission.TxRequest.Chain))
	if err != nil {
		return submitResult{}, coreerrors.Wrap(coreerrors.KindInvalidSignature, "sign transaction", err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return submitResult{}, coreerrors.Wrap(coreerrors.KindValidation, "encode signed transaction", err)
	}

	bundle := adapters.Bundle{
		Txs:         []string{fmt.Sprintf("0x%x", raw)},
		TargetBlock: submission.TargetBlock,
	}

	bundleHash, err := e.relay.SubmitBundle(ctx, bundle)
	if err != nil {
		return submitResult{}, coreerrors.Wrap(coreerrors.KindRelayUnavailable, "submit bundle", err)
	}

	return submitResult{TxHash: signed.Hash().Hex(), BundleID: bundleHash}, nil
}

// awaitTargetBlock blocks until the chain's block number reaches target,
// polling at cfg.InclusionPollInterval.
func (e *Executor) awaitTargetBlock(ctx context.Context, rpc adapters.RPCClient, target uint64) error {
	if target == 0 {
		return nil
	}
	ticker := e.clock.NewTicker(e.cfg.InclusionPollInterval)
	defer ticker.Stop()

	for {
		current, err := rpc.BlockNumber(ctx)
		if err == nil && current >= target {
			return nil
		}
		select {
		case <-ctx.Done():
			return coreerrors.Wrap(coreerrors.KindTransactionTimedOut, "context cancelled awaiting target block", ctx.Err())
		case <-ticker.C:
		}
	}
}
