package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chainchat/chainchat/internal/store"
)

const walletKeyPrefix = "wallet:"

// ErrNotFound indicates no wallet has been provisioned for the identity.
var ErrNotFound = errors.New("wallet not found")

// Store persists wallet metadata in the TTL key-value store. The TTL is a
// capacity safeguard: the on-chain account is recomputed from the same
// derivation inputs on the next authentication, so an expired record costs a
// re-provisioning round trip, not funds.
type Store struct {
	kv  store.Store
	ttl time.Duration
}

// NewStore builds a wallet metadata store.
func NewStore(kv store.Store, ttl time.Duration) *Store {
	return &Store{kv: kv, ttl: ttl}
}

// Put writes the wallet record for an identity.
func (s *Store) Put(ctx context.Context, identityID string, w Wallet) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode wallet: %w", err)
	}
	return s.kv.Put(ctx, walletKeyPrefix+identityID, string(data), s.ttl)
}

// Get loads the wallet record for an identity.
func (s *Store) Get(ctx context.Context, identityID string) (Wallet, error) {
	data, err := s.kv.Get(ctx, walletKeyPrefix+identityID)
	if errors.Is(err, store.ErrNotFound) {
		return Wallet{}, ErrNotFound
	}
	if err != nil {
		return Wallet{}, err
	}
	var w Wallet
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return Wallet{}, fmt.Errorf("decode wallet: %w", err)
	}
	return w, nil
}

// Touch bumps the last-used timestamp and optionally the transaction count.
func (s *Store) Touch(ctx context.Context, identityID string, sentTransaction bool) error {
	w, err := s.Get(ctx, identityID)
	if err != nil {
		return err
	}
	w.Metadata.LastUsed = time.Now().UTC()
	if sentTransaction {
		w.Metadata.TransactionCount++
	}
	return s.Put(ctx, identityID, w)
}
