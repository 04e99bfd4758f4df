package executor

import (
	"context"

	"github.com/arbitragex/engine/internal/adapters"
	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/internal/coreerrors"
	"github.com/shopspring/decimal"
)

// FlashLoanPlan is the composed atomic bundle for a flash-loan-funded
// Opportunity: leg 0 borrows, legs 1..n are the route's own swaps, and
// the final leg repays principal plus fee.
type FlashLoanPlan struct {
	BorrowToken arbmodel.Token
	LoanAmount  decimal.Decimal
	LoanFeeBps  int
	Provider    adapters.FlashLoanProvider
	RouteLegs   []arbmodel.RouteLeg
}

// ComposeFlashLoanBundle builds the TxRequest sequence for a flash-loan
// Route: it validates the profitability precondition and the callback
// authorization before returning, so a caller never submits a bundle the
// executor itself knows cannot repay.
func (e *Executor) ComposeFlashLoanBundle(ctx context.Context, plan FlashLoanPlan, expectedProfitUSD, gasCostUSD decimal.Decimal, callbackAddress string) ([]arbmodel.TxRequest, error) {
	loanFee := plan.LoanAmount.Mul(decimal.NewFromInt(int64(plan.LoanFeeBps))).Div(decimal.NewFromInt(10000))

	if !expectedProfitUSD.GreaterThan(loanFee.Add(gasCostUSD)) {
		return nil, coreerrors.New(coreerrors.KindNoProfitableRoute, "expected profit does not clear loan fee plus gas cost")
	}

	if plan.Provider == nil || !plan.Provider.IsAuthorizedCallback(callbackAddress) {
		return nil, coreerrors.New(coreerrors.KindValidation, "flash loan callback address is not a registered provider")
	}

	if len(plan.RouteLegs) == 0 {
		return nil, coreerrors.New(coreerrors.KindValidation, "flash loan bundle requires at least one route leg")
	}

	txs := make([]arbmodel.TxRequest, 0, len(plan.RouteLegs)+2)

	txs = append(txs, arbmodel.TxRequest{
		Chain: plan.RouteLegs[0].Pool.Chain,
		Value: decimal.Zero,
	})

	for _, leg := range plan.RouteLegs {
		txs = append(txs, arbmodel.TxRequest{
			Chain: leg.Pool.Chain,
			Value: decimal.Zero,
		})
	}

	txs = append(txs, arbmodel.TxRequest{
		Chain: plan.RouteLegs[len(plan.RouteLegs)-1].Pool.Chain,
		Value: plan.LoanAmount.Add(loanFee),
	})

	return txs, nil
}
