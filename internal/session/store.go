// Package session manages the authenticated-state record issued after a
// successful passkey ceremony: one active session per identity, TTL-bounded,
// refreshed on every gated command.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chainchat/chainchat/internal/store"
)

const tokenKeyPrefix = "user_token:"

var (
	// ErrNotAuthenticated indicates no live, valid session for the identity.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Session binds an authenticated identity to the credential it proved and
// the PIN derived from that credential. The PIN is written once at issuance
// and never regenerated: it is an input to wallet key derivation, so a
// different value would silently move the user to a different address.
type Session struct {
	Token        string    `json:"token"`
	IdentityID   string    `json:"identityId"`
	PhoneNumber  string    `json:"phoneNumber"`
	CredentialID string    `json:"credentialId"`
	PublicKey    string    `json:"publicKey"`
	PIN          string    `json:"pin"`
	IssuedAt     time.Time `json:"issuedAt"`
}

// Store persists sessions in the TTL key-value store, one per identity.
type Store struct {
	kv     store.Store
	secret []byte
	ttl    time.Duration
}

// NewStore builds a session store. secret signs session tokens; ttl bounds
// session lifetime and is bumped on each gated command.
func NewStore(kv store.Store, secret []byte, ttl time.Duration) *Store {
	return &Store{kv: kv, secret: secret, ttl: ttl}
}

// Issue mints a signed token for the identity and persists the session,
// replacing any prior session for the same identity.
func (s *Store) Issue(ctx context.Context, identityID, phoneNumber, credentialID, publicKeyHex, pin string) (Session, error) {
	now := time.Now().UTC()
	claims := map[string]any{
		"sub":          identityID,
		"phone":        phoneNumber,
		"credentialId": credentialID,
		"publicKey":    publicKeyHex,
		"pin":          pin,
		"iat":          now.Unix(),
		"exp":          now.Add(s.ttl).Unix(),
	}
	token, err := SignHS256(claims, s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign session token: %w", err)
	}

	sess := Session{
		Token:        token,
		IdentityID:   identityID,
		PhoneNumber:  phoneNumber,
		CredentialID: credentialID,
		PublicKey:    publicKeyHex,
		PIN:          pin,
		IssuedAt:     now,
	}
	if err := s.save(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Store) save(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.kv.Put(ctx, tokenKeyPrefix+sess.IdentityID, string(data), s.ttl)
}

// Get loads the live session for an identity. The embedded token is
// re-verified on every read; a tampered or expired token drops the record
// and reports ErrNotAuthenticated.
func (s *Store) Get(ctx context.Context, identityID string) (Session, error) {
	data, err := s.kv.Get(ctx, tokenKeyPrefix+identityID)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrNotAuthenticated
	}
	if err != nil {
		return Session{}, err
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}

	claims, err := ParseAndVerifyHS256(sess.Token, s.secret)
	if err != nil {
		_ = s.kv.Delete(ctx, tokenKeyPrefix+identityID)
		return Session{}, ErrNotAuthenticated
	}
	if exp, ok := claims["exp"].(float64); !ok || time.Now().Unix() >= int64(exp) {
		_ = s.kv.Delete(ctx, tokenKeyPrefix+identityID)
		return Session{}, ErrNotAuthenticated
	}

	return sess, nil
}

// Refresh bumps the session TTL after a successfully gated command.
func (s *Store) Refresh(ctx context.Context, identityID string) error {
	err := s.kv.ExtendTTL(ctx, tokenKeyPrefix+identityID, s.ttl)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotAuthenticated
	}
	return err
}

// Delete removes the session (logout).
func (s *Store) Delete(ctx context.Context, identityID string) error {
	return s.kv.Delete(ctx, tokenKeyPrefix+identityID)
}
