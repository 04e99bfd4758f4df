package adapters

import (
	"context"
	"fmt"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/arbitragex/engine/pkg/logger"
	"github.com/shopspring/decimal"
)

// Aave V3 pool addresses, kept as named constants rather than hardcoded
// literals scattered through call sites.
const (
	AaveV3PoolAddressEthereum = "0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2"
	AaveV3PoolAddressPolygon  = "0x794a61358D6845594F94dc1DB02A252b5b4814aD"
	AaveV3PoolAddressArbitrum = "0x794a61358D6845594F94dc1DB02A252b5b4814aD"
)

// FlashLoanQuote is the loan terms a FlashLoanProvider offers for a token.
type FlashLoanQuote struct {
	Provider  string
	Token     arbmodel.Token
	FeeBps    int
	MaxAmount decimal.Decimal
}

// FlashLoanProvider is the capability set a flash-loan-funded Opportunity
// variant needs: the fee/size terms, and the callback authorization check
// the executor applies before accepting a loan's repayment obligation.
type FlashLoanProvider interface {
	Name() string
	Quote(ctx context.Context, token arbmodel.Token) (FlashLoanQuote, error)
	// IsAuthorizedCallback reports whether callbackAddress is this
	// provider's registered pool contract — the executor must only
	// accept flash-loan callbacks from a registered provider.
	IsAuthorizedCallback(callbackAddress string) bool
}

// aaveV3Provider implements FlashLoanProvider against Aave V3 pools.
type aaveV3Provider struct {
	poolAddress string
	logger      *logger.Logger
}

// NewAaveV3Provider builds a FlashLoanProvider for the Aave V3 pool at
// poolAddress on one chain.
func NewAaveV3Provider(poolAddress string, log *logger.Logger) FlashLoanProvider {
	return &aaveV3Provider{poolAddress: poolAddress, logger: log.Named("aave-v3-flashloan")}
}

func (a *aaveV3Provider) Name() string { return "aave_v3" }

func (a *aaveV3Provider) Quote(ctx context.Context, token arbmodel.Token) (FlashLoanQuote, error) {
	if token.Address == "" {
		return FlashLoanQuote{}, fmt.Errorf("adapters: flash loan quote requires a token address")
	}
	// Aave V3 charges a flat 5 bps flash-loan premium; available liquidity
	// would come from reading the pool's aToken total supply, which the
	// executor's RPCClient.Call surfaces — left as a constant bound here
	// since the router only needs the fee rate to gate profitability.
	return FlashLoanQuote{
		Provider:  a.Name(),
		Token:     token,
		FeeBps:    5,
		MaxAmount: decimal.Zero, // unbounded; caller checks against pool liquidity separately
	}, nil
}

func (a *aaveV3Provider) IsAuthorizedCallback(callbackAddress string) bool {
	return callbackAddress == a.poolAddress
}

// FlashLoanRegistry resolves a FlashLoanProvider by name, so the executor
// can validate an incoming callback against exactly the provider the
// Route's flash-loan leg named.
type FlashLoanRegistry struct {
	byName map[string]FlashLoanProvider
}

// NewFlashLoanRegistry builds an empty registry.
func NewFlashLoanRegistry() *FlashLoanRegistry {
	return &FlashLoanRegistry{byName: make(map[string]FlashLoanProvider)}
}

// Register installs provider under its own Name().
func (r *FlashLoanRegistry) Register(provider FlashLoanProvider) {
	r.byName[provider.Name()] = provider
}

// Get resolves a provider by name.
func (r *FlashLoanRegistry) Get(name string) (FlashLoanProvider, bool) {
	p, ok := r.byName[name]
	return p, ok
}
