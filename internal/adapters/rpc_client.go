package adapters

import (
	"context"
	"fmt"
	"math/big"

	"github.com/arbitragex/engine/pkg/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// FeeData mirrors the EIP-1559 fee quote the executor needs to price a
// transaction competitively.
type FeeData struct {
	GasPrice     *big.Int
	GasTipCap    *big.Int
	GasFeeCap    *big.Int
}

// RPCClient is the blockchain RPC surface the router/executor consume, per
// SPEC_FULL.md's External Interfaces: get_block_number, get_fee_data,
// estimate_gas, send_raw_transaction, get_transaction_receipt, get_logs,
// call. Every call is idempotent by tx_hash where applicable and bounded
// by the context's deadline.
type RPCClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FeeData(ctx context.Context) (FeeData, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendRawTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	Call(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// ethereumRPCClient wraps go-ethereum's ethclient.Client, one per chain.
// limiter paces outbound calls ahead of the provider's own rate limit,
// independent of the coordinator's distributed per-caller limiter.
type ethereumRPCClient struct {
	chain   string
	client  *ethclient.Client
	logger  *logger.Logger
	limiter *rate.Limiter
}

// RateLimit configures the local token-bucket pacing DialRPCClient applies
// to every outbound call, per pkg/config's SecurityConfig.RateLimit.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
}

// DialRPCClient connects to an EVM JSON-RPC endpoint for the named chain.
// A zero RateLimit disables local pacing (unlimited).
func DialRPCClient(ctx context.Context, chain, rpcURL string, rl RateLimit, log *logger.Logger) (RPCClient, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("adapters: dial %s rpc: %w", chain, err)
	}
	var limiter *rate.Limiter
	if rl.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), rl.Burst)
	}
	return &ethereumRPCClient{chain: chain, client: client, logger: log.Named("rpc-" + chain), limiter: limiter}, nil
}

func (c *ethereumRPCClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *ethereumRPCClient) BlockNumber(ctx context.Context) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, fmt.Errorf("adapters: rate limit wait: %w", err)
	}
	return c.client.BlockNumber(ctx)
}

func (c *ethereumRPCClient) FeeData(ctx context.Context) (FeeData, error) {
	if err := c.wait(ctx); err != nil {
		return FeeData{}, fmt.Errorf("adapters: rate limit wait: %w", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return FeeData{}, fmt.Errorf("adapters: suggest gas price: %w", err)
	}
	tipCap, err := c.client.SuggestGasTipCap(ctx)
	if err != nil {
		// Not every chain supports EIP-1559 tip suggestions; fall back to
		// the legacy gas price for both fields rather than failing the call.
		tipCap = gasPrice
	}
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(gasPrice, big.NewInt(2)))
	return FeeData{GasPrice: gasPrice, GasTipCap: tipCap, GasFeeCap: feeCap}, nil
}

func (c *ethereumRPCClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, fmt.Errorf("adapters: rate limit wait: %w", err)
	}
	return c.client.EstimateGas(ctx, call)
}

func (c *ethereumRPCClient) SendRawTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.wait(ctx); err != nil {
		return fmt.Errorf("adapters: rate limit wait: %w", err)
	}
	if err := c.client.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("adapters: send transaction: %w", err)
	}
	c.logger.Debug("submitted transaction", zap.String("tx_hash", tx.Hash().Hex()), zap.String("chain", c.chain))
	return nil
}

func (c *ethereumRPCClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("adapters: rate limit wait: %w", err)
	}
	return c.client.TransactionReceipt(ctx, txHash)
}

func (c *ethereumRPCClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("adapters: rate limit wait: %w", err)
	}
	return c.client.FilterLogs(ctx, query)
}

func (c *ethereumRPCClient) Call(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("adapters: rate limit wait: %w", err)
	}
	return c.client.CallContract(ctx, call, blockNumber)
}

func (c *ethereumRPCClient) Close() {
	c.client.Close()
}
