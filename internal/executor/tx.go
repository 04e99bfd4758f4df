package executor

import (
	"math/big"

	"github.com/arbitragex/engine/internal/arbmodel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

// erc20TransferTopic is keccak256("Transfer(address,address,uint256)"),
// the standard ERC20 Transfer event signature every token log is keyed by.
const erc20TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// actualTransferOut sums every ERC20 Transfer log in receipt emitted by
// token's contract address, converting the raw integer amount to a
// decimal using token's declared precision. ok is false when the receipt
// carries no such log (e.g. the swap's output never left the contract as
// a plain Transfer), in which case the caller should fall back to its
// planned amount.
func actualTransferOut(receipt *types.Receipt, token arbmodel.Token) (decimal.Decimal, bool) {
	if receipt == nil {
		return decimal.Zero, false
	}
	tokenAddr := common.HexToAddress(token.Address)
	scale := decimal.New(1, int32(token.Decimals))

	total := decimal.Zero
	found := false
	for _, log := range receipt.Logs {
		if log == nil || log.Address != tokenAddr {
			continue
		}
		if len(log.Topics) == 0 || log.Topics[0] != common.HexToHash(erc20TransferTopic) {
			continue
		}
		if len(log.Data) < 32 {
			continue
		}
		amount := new(big.Int).SetBytes(log.Data[len(log.Data)-32:])
		total = total.Add(decimal.NewFromBigInt(amount, 0))
		found = true
	}
	if !found {
		return decimal.Zero, false
	}
	return total.Div(scale), true
}

// buildUnsignedTx turns a Submission's TxRequest into a go-ethereum
// dynamic-fee transaction ready for the Signer.
func buildUnsignedTx(submission arbmodel.Submission) *types.Transaction {
	req := submission.TxRequest
	gasPrice := submission.GasPrice.BigInt()

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainIDBigInt(req.Chain),
		Nonce:     req.Nonce,
		To:        addressPtr(req.To),
		Value:     req.Value.BigInt(),
		Gas:       req.GasLimit,
		GasFeeCap: gasPrice,
		GasTipCap: gasPrice,
		Data:      req.Data,
	})
}

func addressPtr(addr string) *common.Address {
	if addr == "" {
		return nil
	}
	a := common.HexToAddress(addr)
	return &a
}

func chainIDBigInt(chain arbmodel.ChainID) *big.Int {
	return new(big.Int).SetUint64(uint64(chain))
}
