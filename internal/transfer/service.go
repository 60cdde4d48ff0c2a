// Package transfer validates and executes native-token transfers on behalf
// of authenticated chat users. All chain interaction goes through the
// external account service; this package owns parameter validation, the
// balance-versus-cost check and failure classification.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainchat/chainchat/internal/account"
	"github.com/chainchat/chainchat/internal/derive"
)

const receiptWait = 60 * time.Second

// InsufficientBalanceError reports the balance shortfall of a rejected
// transfer. Amounts are in wei.
type InsufficientBalanceError struct {
	Balance   *big.Int
	Requested *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s ETH, requested %s ETH",
		formatEther(e.Balance), formatEther(e.Requested))
}

// Result is the outcome of a successful transfer.
type Result struct {
	TxHash  string
	GasUsed uint64
}

// Service executes transfers with keys derived on demand. Nothing here
// persists key material.
type Service struct {
	accounts account.Service
	salt     string
	logger   *slog.Logger
}

// NewService builds a transfer service. salt must be the same derivation
// secret used at wallet provisioning.
func NewService(accounts account.Service, salt string, logger *slog.Logger) *Service {
	return &Service{accounts: accounts, salt: salt, logger: logger}
}

// Execute runs a validated transfer end to end: derive the signing key,
// check balance against amount plus the quoted gas cost, submit, and wait
// for the receipt. Balance and gas reads are retried once; the send never
// is, since a timed-out submission may still land on chain.
func (s *Service) Execute(ctx context.Context, phoneNumber, pin string, p Params) (Result, error) {
	if err := ValidateParams(p); err != nil {
		return Result{}, err
	}

	key, err := derive.SigningKey(s.salt, phoneNumber, pin)
	if err != nil {
		return Result{}, err
	}
	owner := derive.Address(key)

	accountAddr, err := s.accounts.GetAccountAddress(ctx, owner)
	if err != nil {
		return Result{}, fmt.Errorf("resolve account: %w", err)
	}

	amount, err := parseEther(p.Amount)
	if err != nil {
		return Result{}, err
	}
	tx := account.Transaction{
		To:    common.HexToAddress(p.Recipient),
		Value: amount,
	}

	balance, err := retryRead(ctx, func(ctx context.Context) (*big.Int, error) {
		return s.accounts.GetBalance(ctx, accountAddr)
	})
	if err != nil {
		return Result{}, fmt.Errorf("fetch balance: %w", err)
	}

	estimate, err := retryRead(ctx, func(ctx context.Context) (account.GasEstimate, error) {
		return s.accounts.EstimateGas(ctx, owner, tx)
	})
	if err != nil {
		return Result{}, fmt.Errorf("estimate gas: %w", err)
	}

	total := new(big.Int).Add(amount, estimate.TotalCost())
	if balance.Cmp(total) < 0 {
		return Result{}, &InsufficientBalanceError{Balance: balance, Requested: amount}
	}

	txHash, err := s.accounts.SendTransaction(ctx, key, tx)
	if err != nil {
		return Result{}, fmt.Errorf("send transaction: %w", err)
	}

	receiptCtx, cancel := context.WithTimeout(ctx, receiptWait)
	defer cancel()
	receipt, err := s.accounts.WaitForReceipt(receiptCtx, txHash)
	if err != nil {
		// Submitted but not yet mined. Report the hash so the user can
		// poll with a status command instead of resending.
		s.logger.Warn("receipt wait timed out", "txHash", txHash, "error", err)
		return Result{TxHash: txHash}, nil
	}

	s.logger.Info("transfer complete", "txHash", txHash, "gasUsed", receipt.GasUsed)
	return Result{TxHash: txHash, GasUsed: receipt.GasUsed}, nil
}

// Status reports the state of a submitted transaction.
func (s *Service) Status(ctx context.Context, txHash string) (Receipt, bool, error) {
	receipt, found, err := retryRead2(ctx, func(ctx context.Context) (account.Receipt, bool, error) {
		return s.accounts.GetTransactionReceipt(ctx, txHash)
	})
	if err != nil {
		return Receipt{}, false, fmt.Errorf("fetch receipt: %w", err)
	}
	return Receipt(receipt), found, nil
}

// Receipt mirrors the account service receipt for callers that should not
// import the account package.
type Receipt account.Receipt

// retryRead retries an idempotent read exactly once on failure.
func retryRead[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	value, err := fn(ctx)
	if err == nil || ctx.Err() != nil {
		return value, err
	}
	return fn(ctx)
}

func retryRead2[T any](ctx context.Context, fn func(context.Context) (T, bool, error)) (T, bool, error) {
	value, found, err := fn(ctx)
	if err == nil || ctx.Err() != nil {
		return value, found, err
	}
	return fn(ctx)
}
