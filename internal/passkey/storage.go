package passkey

import (
	"context"
	"errors"
	"time"

	"github.com/chainchat/chainchat/internal/store"
)

const (
	challengeKeyPrefix  = "challenge:"
	credentialKeyPrefix = "credentials:"
)

// ChallengeStore keeps at most one live challenge per identity. Writing a new
// challenge replaces the previous one; the loser of a begin/begin race fails
// at verify time, which is acceptable since both ceremonies belong to the
// same caller.
type ChallengeStore struct {
	kv  store.Store
	ttl time.Duration
}

// NewChallengeStore builds a challenge store with the given TTL.
func NewChallengeStore(kv store.Store, ttl time.Duration) *ChallengeStore {
	return &ChallengeStore{kv: kv, ttl: ttl}
}

// Put stores the pending challenge for an identity, overwriting any prior one.
func (s *ChallengeStore) Put(ctx context.Context, identityID, challenge string) error {
	return s.kv.Put(ctx, challengeKeyPrefix+identityID, challenge, s.ttl)
}

// Get returns the pending challenge, or store.ErrNotFound if none is live.
func (s *ChallengeStore) Get(ctx context.Context, identityID string) (string, error) {
	return s.kv.Get(ctx, challengeKeyPrefix+identityID)
}

// Delete consumes the challenge. Called exactly once per successful verify.
func (s *ChallengeStore) Delete(ctx context.Context, identityID string) error {
	return s.kv.Delete(ctx, challengeKeyPrefix+identityID)
}

// CredentialStore persists the full credential list per identity as one
// value. There is no partial-record update primitive: every mutation is a
// read-modify-write of the whole list, serialized per identity through the
// locker so concurrent authentications cannot drop a counter bump.
type CredentialStore struct {
	kv   store.Store
	lock store.Locker
	ttl  time.Duration
}

// NewCredentialStore builds a credential store. The TTL is a storage-hygiene
// bound, not a security expiry; see the service docs for the trade-off.
func NewCredentialStore(kv store.Store, lock store.Locker, ttl time.Duration) *CredentialStore {
	return &CredentialStore{kv: kv, lock: lock, ttl: ttl}
}

// List returns all credentials registered for an identity. An absent key
// means no credentials, not an error.
func (s *CredentialStore) List(ctx context.Context, identityID string) ([]Credential, error) {
	data, err := s.kv.Get(ctx, credentialKeyPrefix+identityID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeCredentials(data)
}

// Add appends a newly registered credential to the identity's list.
func (s *CredentialStore) Add(ctx context.Context, identityID string, cred Credential) error {
	key := credentialKeyPrefix + identityID
	return s.lock.WithLock(ctx, key, func() error {
		creds, err := s.List(ctx, identityID)
		if err != nil {
			return err
		}
		creds = append(creds, cred)
		data, err := encodeCredentials(creds)
		if err != nil {
			return err
		}
		return s.kv.Put(ctx, key, data, s.ttl)
	})
}

// UpdateCounter records the counter observed at a successful authentication.
// The stored counter never moves backwards: a lower or equal value leaves
// the record untouched, so a delayed concurrent write cannot reopen a replay
// window.
func (s *CredentialStore) UpdateCounter(ctx context.Context, identityID string, credentialID []byte, newCounter uint32) error {
	key := credentialKeyPrefix + identityID
	return s.lock.WithLock(ctx, key, func() error {
		creds, err := s.List(ctx, identityID)
		if err != nil {
			return err
		}
		updated := false
		for i := range creds {
			if string(creds[i].ID) != string(credentialID) {
				continue
			}
			if newCounter > creds[i].Counter {
				creds[i].Counter = newCounter
				updated = true
			}
			break
		}
		if !updated {
			return nil
		}
		data, err := encodeCredentials(creds)
		if err != nil {
			return err
		}
		return s.kv.Put(ctx, key, data, s.ttl)
	})
}
