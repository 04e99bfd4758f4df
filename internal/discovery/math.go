package discovery

import "github.com/shopspring/decimal"

var bpsDenominator = decimal.NewFromInt(10000)

// quickAmountOut applies the constant-product swap formula (Uniswap V2
// style) to estimate a leg's output. It ignores concentrated-liquidity
// curves and multi-hop price impact beyond this single leg — the "quick"
// bound discovery uses to gate candidates before the router's exact math.
func quickAmountOut(amountIn, reserveIn, reserveOut decimal.Decimal, feeBps int) decimal.Decimal {
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return decimal.Zero
	}
	feeMultiplier := bpsDenominator.Sub(decimal.NewFromInt(int64(feeBps)))
	amountInWithFee := amountIn.Mul(feeMultiplier)
	numerator := amountInWithFee.Mul(reserveOut)
	denominator := reserveIn.Mul(bpsDenominator).Add(amountInWithFee)
	if denominator.Sign() <= 0 {
		return decimal.Zero
	}
	return numerator.Div(denominator)
}
