// Package account abstracts the external smart-account service that turns a
// derived signing key into on-chain activity. The service builds and submits
// transactions and reports balances; nothing in this repository touches raw
// chain RPC.
package account

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Transaction is a simple value transfer request.
type Transaction struct {
	To    common.Address `json:"to"`
	Value *big.Int       `json:"value"`
	Data  []byte         `json:"data"`
}

// GasEstimate carries the user-operation gas quote. Total cost at the quoted
// max fee is (call + verification + preVerification) * maxFeePerGas.
type GasEstimate struct {
	CallGasLimit         *big.Int `json:"callGasLimit"`
	VerificationGasLimit *big.Int `json:"verificationGasLimit"`
	PreVerificationGas   *big.Int `json:"preVerificationGas"`
	MaxFeePerGas         *big.Int `json:"maxFeePerGas"`
}

// TotalCost returns the worst-case wei cost of the estimated gas.
func (g GasEstimate) TotalCost() *big.Int {
	total := new(big.Int)
	for _, part := range []*big.Int{g.CallGasLimit, g.VerificationGasLimit, g.PreVerificationGas} {
		if part != nil {
			total.Add(total, part)
		}
	}
	if g.MaxFeePerGas == nil {
		return big.NewInt(0)
	}
	return total.Mul(total, g.MaxFeePerGas)
}

// Receipt reports the final state of a submitted transaction.
type Receipt struct {
	TxHash      string `json:"txHash"`
	Status      uint64 `json:"status"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
}

// Service is the external smart-account collaborator contract.
type Service interface {
	// GetAccountAddress resolves the smart-account address controlled by
	// the given owner key address. Deterministic for a fixed owner.
	GetAccountAddress(ctx context.Context, owner common.Address) (common.Address, error)

	// GetBalance returns the native-token balance of an account in wei.
	GetBalance(ctx context.Context, addr common.Address) (*big.Int, error)

	// GetTokenBalance returns the balance of a supported ERC-20 token
	// (smallest unit) for an account.
	GetTokenBalance(ctx context.Context, addr common.Address, symbol string) (*big.Int, error)

	// EstimateGas quotes the gas for a transaction from the owner's account.
	EstimateGas(ctx context.Context, owner common.Address, tx Transaction) (GasEstimate, error)

	// SendTransaction signs and submits the transaction with the owner key
	// and returns the transaction hash. Never retried by callers: a timeout
	// here may still have landed on chain.
	SendTransaction(ctx context.Context, owner *ecdsa.PrivateKey, tx Transaction) (string, error)

	// WaitForReceipt blocks until the transaction is mined or ctx expires.
	WaitForReceipt(ctx context.Context, txHash string) (Receipt, error)

	// GetTransactionReceipt returns the receipt if the transaction has been
	// mined; found is false while it is still pending.
	GetTransactionReceipt(ctx context.Context, txHash string) (receipt Receipt, found bool, err error)
}
