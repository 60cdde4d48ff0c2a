package account

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Static simulates a successful account service. It backs tests and local
// development when no bundler is configured: account addresses are derived
// deterministically from the owner, balances are seeded in memory, and every
// submitted transaction mines instantly.
type Static struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	tokens   map[common.Address]map[string]*big.Int
	receipts map[string]Receipt
}

// NewStatic builds an in-memory account service.
func NewStatic() *Static {
	return &Static{
		balances: make(map[common.Address]*big.Int),
		tokens:   make(map[common.Address]map[string]*big.Int),
		receipts: make(map[string]Receipt),
	}
}

// SeedBalance sets the native balance of an account, for tests.
func (s *Static) SeedBalance(addr common.Address, wei *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[addr] = new(big.Int).Set(wei)
}

// SeedTokenBalance sets a token balance of an account, for tests.
func (s *Static) SeedTokenBalance(addr common.Address, symbol string, amount *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens[addr] == nil {
		s.tokens[addr] = make(map[string]*big.Int)
	}
	s.tokens[addr][symbol] = new(big.Int).Set(amount)
}

// GetAccountAddress derives a stable pseudo smart-account address from the
// owner address.
func (s *Static) GetAccountAddress(_ context.Context, owner common.Address) (common.Address, error) {
	sum := ethcrypto.Keccak256(owner.Bytes())
	return common.BytesToAddress(sum[12:]), nil
}

// GetBalance returns the seeded native balance, zero by default.
func (s *Static) GetBalance(_ context.Context, addr common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bal, ok := s.balances[addr]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

// GetTokenBalance returns the seeded token balance, zero by default.
func (s *Static) GetTokenBalance(_ context.Context, addr common.Address, symbol string) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if perToken, ok := s.tokens[addr]; ok {
		if bal, ok := perToken[symbol]; ok {
			return new(big.Int).Set(bal), nil
		}
	}
	return big.NewInt(0), nil
}

// EstimateGas returns a flat quote large enough to exercise the balance
// check in callers.
func (s *Static) EstimateGas(_ context.Context, _ common.Address, _ Transaction) (GasEstimate, error) {
	return GasEstimate{
		CallGasLimit:         big.NewInt(21_000),
		VerificationGasLimit: big.NewInt(50_000),
		PreVerificationGas:   big.NewInt(21_000),
		MaxFeePerGas:         big.NewInt(1_000_000_000), // 1 gwei
	}, nil
}

// SendTransaction debits the sender, credits the recipient and records an
// immediately-mined receipt under a synthetic hash.
func (s *Static) SendTransaction(ctx context.Context, owner *ecdsa.PrivateKey, tx Transaction) (string, error) {
	from, err := s.GetAccountAddress(ctx, ethcrypto.PubkeyToAddress(owner.PublicKey))
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if bal, ok := s.balances[from]; ok {
		bal.Sub(bal, tx.Value)
	}
	if to, ok := s.balances[tx.To]; ok {
		to.Add(to, tx.Value)
	} else {
		s.balances[tx.To] = new(big.Int).Set(tx.Value)
	}

	txHash := "0x" + hex.EncodeToString(ethcrypto.Keccak256([]byte(uuid.NewString())))
	s.receipts[txHash] = Receipt{
		TxHash:      txHash,
		Status:      1,
		BlockNumber: uint64(len(s.receipts) + 1),
		GasUsed:     21_000,
	}
	return txHash, nil
}

// WaitForReceipt returns the recorded receipt; there is no pending state.
func (s *Static) WaitForReceipt(ctx context.Context, txHash string) (Receipt, error) {
	receipt, found, err := s.GetTransactionReceipt(ctx, txHash)
	if err != nil {
		return Receipt{}, err
	}
	if !found {
		return Receipt{}, context.DeadlineExceeded
	}
	return receipt, nil
}

// GetTransactionReceipt looks up a recorded receipt.
func (s *Static) GetTransactionReceipt(_ context.Context, txHash string) (Receipt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	receipt, ok := s.receipts[txHash]
	return receipt, ok, nil
}
