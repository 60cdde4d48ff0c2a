// Package wallet provisions and tracks the smart account bound to each
// authenticated identity. Provisioning is driven by the passkey engine's
// post-authentication hook so the ceremony code never reaches into wallet
// concerns.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chainchat/chainchat/internal/account"
	"github.com/chainchat/chainchat/internal/derive"
	"github.com/chainchat/chainchat/internal/passkey"
)

// Service provisions wallets from authentication results.
type Service struct {
	store    *Store
	accounts account.Service
	salt     string
	chainID  int64
	logger   *slog.Logger
}

// NewService builds the wallet provisioning service. salt is the server-side
// derivation secret; it must match the one used for transfers.
func NewService(store *Store, accounts account.Service, salt string, chainID int64, logger *slog.Logger) *Service {
	return &Service{store: store, accounts: accounts, salt: salt, chainID: chainID, logger: logger}
}

// HandleAuthSuccess is the passkey post-authentication hook. First-time
// users get a wallet derived from their identity and PIN; returning users
// get their last-used timestamp bumped.
func (s *Service) HandleAuthSuccess(ctx context.Context, result passkey.AuthResult) error {
	existing, err := s.store.Get(ctx, result.IdentityID)
	if err == nil {
		existing.Metadata.LastUsed = time.Now().UTC()
		return s.store.Put(ctx, result.IdentityID, existing)
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	key, err := derive.SigningKey(s.salt, result.PhoneNumber, result.PIN)
	if err != nil {
		return fmt.Errorf("derive wallet key: %w", err)
	}
	address, err := s.accounts.GetAccountAddress(ctx, derive.Address(key))
	if err != nil {
		return fmt.Errorf("resolve account address: %w", err)
	}

	now := time.Now().UTC()
	w := Wallet{
		Address:   address.Hex(),
		Type:      typeSmartAccount,
		ChainID:   s.chainID,
		CreatedAt: now,
		Metadata: Metadata{
			CredentialID: result.CredentialID,
			LastUsed:     now,
		},
	}
	if err := s.store.Put(ctx, result.IdentityID, w); err != nil {
		return err
	}

	s.logger.Info("wallet provisioned", "identity", result.IdentityID, "address", w.Address)
	return nil
}

// Get returns the wallet metadata for an identity.
func (s *Service) Get(ctx context.Context, identityID string) (Wallet, error) {
	return s.store.Get(ctx, identityID)
}

// Touch records wallet usage.
func (s *Service) Touch(ctx context.Context, identityID string, sentTransaction bool) error {
	return s.store.Touch(ctx, identityID, sentTransaction)
}
