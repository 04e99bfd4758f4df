package adapters

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ExecutionPermit is the EIP-712 message SPEC_FULL.md's signer exposes to
// the backend control plane: an off-chain authorization for one
// arbitrage execution, bounding gas cost, slippage, and a deadline.
type ExecutionPermit struct {
	OpportunityID string
	User          common.Address
	MaxGasCost    *big.Int
	SlippageBps   *big.Int
	Deadline      *big.Int
}

// Domain describes the EIP-712 signing domain; VerifyingContract is the
// router/executor contract address on the target chain.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// Signer signs EIP-712 typed data and raw transactions. One Signer is
// bound to exactly one private key; the executor owns one Signer per
// configured chain account.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner wraps an already-decrypted ECDSA private key. Key storage and
// decryption live outside the core (spec.md §1 Non-goals).
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// Address returns the signer's on-chain address.
func (s *Signer) Address() common.Address { return s.address }

// SignTypedData signs an ExecutionPermit under the ArbitrageX EIP-712
// domain and returns the 65-byte (r||s||v) signature.
func (s *Signer) SignTypedData(domain Domain, permit ExecutionPermit) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"ArbitrageExecution": {
				{Name: "opportunity_id", Type: "string"},
				{Name: "user", Type: "address"},
				{Name: "max_gas_cost", Type: "uint256"},
				{Name: "slippage_bps", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: "ArbitrageExecution",
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"opportunity_id": permit.OpportunityID,
			"user":           permit.User.Hex(),
			"max_gas_cost":   permit.MaxGasCost.String(),
			"slippage_bps":   permit.SlippageBps.String(),
			"deadline":       permit.Deadline.String(),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("adapters: hash domain separator: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("adapters: hash typed message: %w", err)
	}

	rawData := fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(messageHash))
	digest := crypto.Keccak256([]byte(rawData))

	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("adapters: sign typed data: %w", err)
	}
	return sig, nil
}

// SignTx signs a transaction under the chain's configured signer (London
// signer, EIP-1559-aware) and returns the raw signed transaction.
func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chainID)
	signed, err := types.SignTx(tx, signer, s.key)
	if err != nil {
		return nil, fmt.Errorf("adapters: sign transaction: %w", err)
	}
	return signed, nil
}
