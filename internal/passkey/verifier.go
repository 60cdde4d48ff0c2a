package passkey

import (
	"context"
	"encoding/json"
)

// Verifier is the external WebAuthn capability. It generates ceremony
// parameters for the client and performs the cryptographic verification of
// attestations and assertions; this service never inspects authenticator
// data itself, it only bookkeeps the outputs.
type Verifier interface {
	GenerateRegistrationOptions(ctx context.Context, req RegistrationOptionsRequest) (CeremonyOptions, error)
	VerifyRegistrationResponse(ctx context.Context, req VerifyRegistrationRequest) (RegistrationResult, error)
	GenerateAuthenticationOptions(ctx context.Context, req AuthenticationOptionsRequest) (CeremonyOptions, error)
	VerifyAuthenticationResponse(ctx context.Context, req VerifyAuthenticationRequest) (AuthenticationResult, error)
}

// CeremonyOptions is what a generate call returns: the one-time challenge to
// retain server-side and the full parameter block to relay to the client
// untouched.
type CeremonyOptions struct {
	Challenge string          `json:"challenge"`
	PublicKey json.RawMessage `json:"publicKey"`
}

// RegistrationOptionsRequest carries relying-party parameters and the
// exclusion list preventing an authenticator from registering twice.
type RegistrationOptionsRequest struct {
	RPID                    string   `json:"rpId"`
	RPName                  string   `json:"rpName"`
	UserName                string   `json:"userName"`
	UserDisplayName         string   `json:"userDisplayName"`
	AttestationType         string   `json:"attestationType"`
	ExcludeCredentialIDs    []string `json:"excludeCredentialIds"`
	ResidentKey             string   `json:"residentKey"`
	UserVerification        string   `json:"userVerification"`
	AuthenticatorAttachment string   `json:"authenticatorAttachment"`
}

// VerifyRegistrationRequest asks the verifier to check an attestation
// response against the expected ceremony state.
type VerifyRegistrationRequest struct {
	Response          json.RawMessage `json:"response"`
	ExpectedChallenge string          `json:"expectedChallenge"`
	ExpectedOrigin    string          `json:"expectedOrigin"`
	ExpectedRPID      string          `json:"expectedRpId"`
}

// RegistrationResult reports the verified authenticator material to store.
type RegistrationResult struct {
	Verified     bool     `json:"verified"`
	CredentialID []byte   `json:"credentialId"`
	PublicKey    []byte   `json:"publicKey"`
	Counter      uint32   `json:"counter"`
	Transports   []string `json:"transports"`
}

// AllowedCredential is one allow-list entry for an authentication ceremony.
type AllowedCredential struct {
	ID         string   `json:"id"`
	Transports []string `json:"transports"`
}

// AuthenticationOptionsRequest carries the allow-list built from the
// identity's stored credentials.
type AuthenticationOptionsRequest struct {
	RPID             string              `json:"rpId"`
	AllowCredentials []AllowedCredential `json:"allowCredentials"`
	UserVerification string              `json:"userVerification"`
}

// VerifyAuthenticationRequest asks the verifier to check an assertion
// against the stored authenticator state of the matched credential.
type VerifyAuthenticationRequest struct {
	Response          json.RawMessage `json:"response"`
	ExpectedChallenge string          `json:"expectedChallenge"`
	ExpectedOrigin    string          `json:"expectedOrigin"`
	ExpectedRPID      string          `json:"expectedRpId"`
	Credential        Credential      `json:"credential"`
}

// AuthenticationResult reports the verification outcome. NewCounter is the
// authenticator counter observed during verification; the verifier has
// already rejected stale counters as replays by the time this is returned.
type AuthenticationResult struct {
	Verified   bool   `json:"verified"`
	NewCounter uint32 `json:"newCounter"`
}
