package adapters

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func bigIntFromBytes(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

var bps = decimal.NewFromInt(10000)

// ConstantProductAdapter serves Uniswap-V2-shaped pools (and forks:
// Sushiswap, Pancakeswap, Quickswap) that hold x*y=k reserves.
type ConstantProductAdapter struct {
	logger   *logger.Logger
	protocol arbmodel.DEX
	router   string // swap router contract address this adapter targets
}

// NewConstantProductAdapter builds an adapter for one constant-product
// DEX variant, identified by protocol and its router contract address.
func NewConstantProductAdapter(log *logger.Logger, protocol arbmodel.DEX, routerAddress string) *ConstantProductAdapter {
	return &ConstantProductAdapter{
		logger:   log.Named(fmt.Sprintf("adapter-%s", protocol)),
		protocol: protocol,
		router:   routerAddress,
	}
}

func (a *ConstantProductAdapter) Protocol() arbmodel.DEX { return a.protocol }

func (a *ConstantProductAdapter) QuoteExactIn(ctx context.Context, pool arbmodel.Pool, tokenIn arbmodel.Token, amountIn decimal.Decimal) (decimal.Decimal, error) {
	reserveIn, reserveOut, err := a.orientedReserves(pool, tokenIn)
	if err != nil {
		return decimal.Zero, err
	}
	if amountIn.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("adapters: amount_in must be positive")
	}

	feeMultiplier := bps.Sub(decimal.NewFromInt(int64(pool.FeeBps)))
	amountInWithFee := amountIn.Mul(feeMultiplier)
	numerator := amountInWithFee.Mul(reserveOut)
	denominator := reserveIn.Mul(bps).Add(amountInWithFee)
	if denominator.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("adapters: zero liquidity")
	}
	return numerator.Div(denominator), nil
}

// QuoteExactOut inverts the constant-product formula: solves for the
// amount in that yields exactly amountOut, per x*y=k with the fee applied
// to the input leg.
func (a *ConstantProductAdapter) QuoteExactOut(ctx context.Context, pool arbmodel.Pool, tokenOut arbmodel.Token, amountOut decimal.Decimal) (decimal.Decimal, error) {
	tokenIn := pool.Token0
	if tokenOut.Key() == pool.Token0.Key() {
		tokenIn = pool.Token1
	}
	reserveIn, reserveOut, err := a.orientedReserves(pool, tokenIn)
	if err != nil {
		return decimal.Zero, err
	}
	if amountOut.Sign() <= 0 || amountOut.GreaterThanOrEqual(reserveOut) {
		return decimal.Zero, fmt.Errorf("adapters: amount_out exceeds available reserve")
	}

	feeMultiplier := bps.Sub(decimal.NewFromInt(int64(pool.FeeBps)))
	numerator := reserveIn.Mul(amountOut).Mul(bps)
	denominator := reserveOut.Sub(amountOut).Mul(feeMultiplier)
	if denominator.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("adapters: zero liquidity")
	}
	return numerator.Div(denominator).Ceil(), nil
}

func (a *ConstantProductAdapter) orientedReserves(pool arbmodel.Pool, tokenIn arbmodel.Token) (decimal.Decimal, decimal.Decimal, error) {
	switch tokenIn.Key() {
	case pool.Token0.Key():
		return pool.Reserve0, pool.Reserve1, nil
	case pool.Token1.Key():
		return pool.Reserve1, pool.Reserve0, nil
	default:
		return decimal.Zero, decimal.Zero, fmt.Errorf("adapters: token %s not in pool %s", tokenIn.Address, pool.ID.Address)
	}
}

// BuildSwapCalldata encodes a swapExactTokensForTokens-equivalent call.
// The ABI packing here is a simplified fixed layout (selector + amountIn +
// minAmountOut + recipient + deadline) standing in for the real router
// ABI, which varies per fork; the executor's signer treats this as opaque
// bytes regardless.
func (a *ConstantProductAdapter) BuildSwapCalldata(ctx context.Context, pool arbmodel.Pool, tokenIn, tokenOut arbmodel.Token, params SwapParams) ([]byte, error) {
	a.logger.Debug("building swap calldata",
		zap.String("pool", pool.ID.Address),
		zap.String("token_in", tokenIn.Address),
		zap.String("token_out", tokenOut.Address))

	amountIn := params.AmountIn.Shift(int32(tokenIn.Decimals)).BigInt()
	minOut := params.MinAmountOut.Shift(int32(tokenOut.Decimals)).BigInt()

	buf := make([]byte, 4+32+32+8)
	copy(buf[0:4], swapSelector(a.protocol))
	amountIn.FillBytes(buf[4:36])
	minOut.FillBytes(buf[36:68])
	binary.BigEndian.PutUint64(buf[68:76], uint64(params.Deadline))
	return buf, nil
}

func swapSelector(protocol arbmodel.DEX) []byte {
	// 4-byte function selector stand-in (FNV-1a of the protocol name),
	// stable per protocol so the call shape is recognizable from its first
	// four bytes. DecodeEvent does not use it; it only decodes Sync events.
	h := uint32(2166136261)
	for _, b := range []byte(protocol) {
		h ^= uint32(b)
		h *= 16777619
	}
	sel := make([]byte, 4)
	binary.BigEndian.PutUint32(sel, h)
	return sel
}

func (a *ConstantProductAdapter) DecodeEvent(topics []string, data []byte) (PoolEvent, bool, error) {
	if len(topics) == 0 || topics[0] != syncEventTopic {
		return PoolEvent{}, false, nil
	}
	if len(data) < 64 {
		return PoolEvent{}, false, fmt.Errorf("adapters: sync event data too short")
	}
	return PoolEvent{
		Reserve0: decimal.NewFromBigInt(bigIntFromBytes(data[0:32]), 0),
		Reserve1: decimal.NewFromBigInt(bigIntFromBytes(data[32:64]), 0),
	}, true, nil
}

// syncEventTopic is the keccak256 topic of the Uniswap-V2-style
// Sync(uint112,uint112) event every constant-product fork emits on
// reserve changes.
const syncEventTopic = "0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50e062b03a9fffbbad1"
