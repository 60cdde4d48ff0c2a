// Package passkey implements the challenge–response ceremonies that
// authenticate chat users. Cryptographic verification itself lives in an
// external verifier; this package owns the ceremony state: challenge
// issuance and one-time consumption, credential bookkeeping with replay
// counters, and session issuance on successful authentication.
package passkey

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chainchat/chainchat/internal/derive"
	"github.com/chainchat/chainchat/internal/identity"
	"github.com/chainchat/chainchat/internal/session"
)

var (
	// ErrChallengeExpired indicates no live challenge for the identity.
	ErrChallengeExpired = errors.New("challenge not found or expired")

	// ErrNoCredentials indicates the identity never registered; the caller
	// should redirect to registration.
	ErrNoCredentials = errors.New("no credentials found")

	// ErrCredentialNotFound indicates the assertion referenced a credential
	// the identity does not own (device mismatch).
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrVerificationFailed indicates the verifier rejected the ceremony.
	// No internal detail is attached; none should leak to users.
	ErrVerificationFailed = errors.New("verification failed")
)

// AuthResult is the outcome of a successful authentication ceremony.
type AuthResult struct {
	Token        string `json:"token"`
	IdentityID   string `json:"userId"`
	PhoneNumber  string `json:"-"`
	CredentialID string `json:"credentialId"`
	PublicKey    string `json:"publicKey"`
	PIN          string `json:"passkeyPin"`
}

// SuccessHook runs after a session has been persisted for a verified
// authentication. Wallet provisioning subscribes here so the ceremony engine
// stays free of wallet concerns. Hook failures are logged, never surfaced:
// the authentication itself already succeeded.
type SuccessHook func(ctx context.Context, result AuthResult) error

// Service orchestrates registration and authentication ceremonies.
type Service struct {
	rpID   string
	rpName string
	origin string

	challenges  *ChallengeStore
	credentials *CredentialStore
	sessions    *session.Store
	verifier    Verifier
	logger      *slog.Logger

	hooks []SuccessHook
}

// NewService wires the ceremony engine.
func NewService(rpID, rpName, origin string, challenges *ChallengeStore, credentials *CredentialStore, sessions *session.Store, verifier Verifier, logger *slog.Logger) *Service {
	return &Service{
		rpID:        rpID,
		rpName:      rpName,
		origin:      origin,
		challenges:  challenges,
		credentials: credentials,
		sessions:    sessions,
		verifier:    verifier,
		logger:      logger,
	}
}

// OnAuthSuccess registers a post-authentication hook.
func (s *Service) OnAuthSuccess(hook SuccessHook) {
	s.hooks = append(s.hooks, hook)
}

// BeginRegistration produces registration ceremony parameters for the client
// and stores the challenge, replacing any prior pending challenge for the
// identity.
func (s *Service) BeginRegistration(ctx context.Context, phoneNumber string) (CeremonyOptions, error) {
	identityID := identity.FromPhone(phoneNumber)

	existing, err := s.credentials.List(ctx, identityID)
	if err != nil {
		return CeremonyOptions{}, fmt.Errorf("load credentials: %w", err)
	}

	exclude := make([]string, 0, len(existing))
	for _, cred := range existing {
		exclude = append(exclude, cred.EncodedID())
	}

	options, err := s.verifier.GenerateRegistrationOptions(ctx, RegistrationOptionsRequest{
		RPID:                    s.rpID,
		RPName:                  s.rpName,
		UserName:                phoneNumber,
		UserDisplayName:         "User " + phoneNumber,
		AttestationType:         "none",
		ExcludeCredentialIDs:    exclude,
		ResidentKey:             "preferred",
		UserVerification:        "preferred",
		AuthenticatorAttachment: "platform",
	})
	if err != nil {
		return CeremonyOptions{}, fmt.Errorf("generate registration options: %w", err)
	}

	if err := s.challenges.Put(ctx, identityID, options.Challenge); err != nil {
		return CeremonyOptions{}, fmt.Errorf("store challenge: %w", err)
	}
	return options, nil
}

// FinishRegistration verifies the attestation response and stores the new
// credential. A failed verification leaves the challenge live so the caller
// can retry within its TTL; only a successful verification consumes it.
func (s *Service) FinishRegistration(ctx context.Context, phoneNumber string, response json.RawMessage) error {
	identityID := identity.FromPhone(phoneNumber)

	challenge, err := s.challenges.Get(ctx, identityID)
	if err != nil {
		return ErrChallengeExpired
	}

	result, err := s.verifier.VerifyRegistrationResponse(ctx, VerifyRegistrationRequest{
		Response:          response,
		ExpectedChallenge: challenge,
		ExpectedOrigin:    s.origin,
		ExpectedRPID:      s.rpID,
	})
	if err != nil {
		return fmt.Errorf("verify registration: %w", err)
	}
	if !result.Verified {
		return ErrVerificationFailed
	}

	cred := Credential{
		ID:         result.CredentialID,
		PublicKey:  result.PublicKey,
		Counter:    result.Counter,
		Transports: result.Transports,
	}
	if err := s.credentials.Add(ctx, identityID, cred); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	if err := s.challenges.Delete(ctx, identityID); err != nil {
		s.logger.Warn("consume challenge after registration", "identity", identityID, "error", err)
	}

	s.logger.Info("credential registered", "identity", identityID)
	return nil
}

// BeginAuthentication produces authentication ceremony parameters with an
// allow-list built from the identity's registered credentials.
func (s *Service) BeginAuthentication(ctx context.Context, phoneNumber string) (CeremonyOptions, error) {
	identityID := identity.FromPhone(phoneNumber)

	creds, err := s.credentials.List(ctx, identityID)
	if err != nil {
		return CeremonyOptions{}, fmt.Errorf("load credentials: %w", err)
	}
	if len(creds) == 0 {
		return CeremonyOptions{}, ErrNoCredentials
	}

	allow := make([]AllowedCredential, 0, len(creds))
	for _, cred := range creds {
		allow = append(allow, AllowedCredential{ID: cred.EncodedID(), Transports: cred.Transports})
	}

	options, err := s.verifier.GenerateAuthenticationOptions(ctx, AuthenticationOptionsRequest{
		RPID:             s.rpID,
		AllowCredentials: allow,
		UserVerification: "preferred",
	})
	if err != nil {
		return CeremonyOptions{}, fmt.Errorf("generate authentication options: %w", err)
	}

	if err := s.challenges.Put(ctx, identityID, options.Challenge); err != nil {
		return CeremonyOptions{}, fmt.Errorf("store challenge: %w", err)
	}
	return options, nil
}

// FinishAuthentication verifies the assertion, bumps the credential counter,
// derives the PIN, mints a session and consumes the challenge. Matching is
// by the assertion's credential id: an identity may hold several credentials
// and the one actually used must be the one checked.
func (s *Service) FinishAuthentication(ctx context.Context, phoneNumber string, response json.RawMessage) (AuthResult, error) {
	identityID := identity.FromPhone(phoneNumber)

	challenge, err := s.challenges.Get(ctx, identityID)
	if err != nil {
		return AuthResult{}, ErrChallengeExpired
	}

	creds, err := s.credentials.List(ctx, identityID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("load credentials: %w", err)
	}
	if len(creds) == 0 {
		return AuthResult{}, ErrNoCredentials
	}

	assertedID, err := assertionCredentialID(response)
	if err != nil {
		return AuthResult{}, err
	}

	var matched *Credential
	for i := range creds {
		if creds[i].Matches(assertedID) {
			matched = &creds[i]
			break
		}
	}
	if matched == nil {
		return AuthResult{}, ErrCredentialNotFound
	}

	result, err := s.verifier.VerifyAuthenticationResponse(ctx, VerifyAuthenticationRequest{
		Response:          response,
		ExpectedChallenge: challenge,
		ExpectedOrigin:    s.origin,
		ExpectedRPID:      s.rpID,
		Credential:        *matched,
	})
	if err != nil {
		return AuthResult{}, fmt.Errorf("verify authentication: %w", err)
	}
	if !result.Verified {
		return AuthResult{}, ErrVerificationFailed
	}

	if err := s.credentials.UpdateCounter(ctx, identityID, matched.ID, result.NewCounter); err != nil {
		return AuthResult{}, fmt.Errorf("update credential counter: %w", err)
	}

	publicKeyHex := hex.EncodeToString(matched.PublicKey)
	pin := derive.PIN(assertedID, matched.PublicKey)

	sess, err := s.sessions.Issue(ctx, identityID, phoneNumber, assertedID, publicKeyHex, pin)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue session: %w", err)
	}

	if err := s.challenges.Delete(ctx, identityID); err != nil {
		s.logger.Warn("consume challenge after authentication", "identity", identityID, "error", err)
	}

	authResult := AuthResult{
		Token:        sess.Token,
		IdentityID:   identityID,
		PhoneNumber:  phoneNumber,
		CredentialID: assertedID,
		PublicKey:    publicKeyHex,
		PIN:          pin,
	}

	for _, hook := range s.hooks {
		if err := hook(ctx, authResult); err != nil {
			s.logger.Error("auth success hook failed", "identity", identityID, "error", err)
		}
	}

	s.logger.Info("authentication verified", "identity", identityID, "counter", result.NewCounter)
	return authResult, nil
}

// assertionCredentialID pulls the credential id out of the raw assertion
// without interpreting the rest of the payload.
func assertionCredentialID(response json.RawMessage) (string, error) {
	var envelope struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(response, &envelope); err != nil || envelope.ID == "" {
		return "", ErrCredentialNotFound
	}
	if _, err := base64.RawURLEncoding.DecodeString(envelope.ID); err != nil {
		return "", ErrCredentialNotFound
	}
	return envelope.ID, nil
}
