package passkey

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/chainchat/chainchat/internal/identity"
	"github.com/chainchat/chainchat/internal/logging"
	"github.com/chainchat/chainchat/internal/session"
	"github.com/chainchat/chainchat/internal/store"
)

// fakeVerifier hands out sequential challenges and approves or rejects
// ceremonies according to its configuration.
type fakeVerifier struct {
	nextChallenge int

	lastRegistrationReq   RegistrationOptionsRequest
	lastAuthenticationReq AuthenticationOptionsRequest

	registrationResult   RegistrationResult
	authenticationResult AuthenticationResult

	verifyRegistrationChallenge   string
	verifyAuthenticationChallenge string
	verifiedCredential            Credential
}

func (f *fakeVerifier) GenerateRegistrationOptions(_ context.Context, req RegistrationOptionsRequest) (CeremonyOptions, error) {
	f.nextChallenge++
	f.lastRegistrationReq = req
	return CeremonyOptions{
		Challenge: fmt.Sprintf("challenge-%d", f.nextChallenge),
		PublicKey: json.RawMessage(`{"rp":{"id":"` + req.RPID + `"}}`),
	}, nil
}

func (f *fakeVerifier) VerifyRegistrationResponse(_ context.Context, req VerifyRegistrationRequest) (RegistrationResult, error) {
	f.verifyRegistrationChallenge = req.ExpectedChallenge
	return f.registrationResult, nil
}

func (f *fakeVerifier) GenerateAuthenticationOptions(_ context.Context, req AuthenticationOptionsRequest) (CeremonyOptions, error) {
	f.nextChallenge++
	f.lastAuthenticationReq = req
	return CeremonyOptions{
		Challenge: fmt.Sprintf("challenge-%d", f.nextChallenge),
		PublicKey: json.RawMessage(`{"rpId":"` + req.RPID + `"}`),
	}, nil
}

func (f *fakeVerifier) VerifyAuthenticationResponse(_ context.Context, req VerifyAuthenticationRequest) (AuthenticationResult, error) {
	f.verifyAuthenticationChallenge = req.ExpectedChallenge
	f.verifiedCredential = req.Credential
	return f.authenticationResult, nil
}

func setupService(t *testing.T, verifier Verifier) (*Service, *session.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	kv := store.NewRedis(client)
	challenges := NewChallengeStore(kv, 5*time.Minute)
	credentials := NewCredentialStore(kv, kv, 30*24*time.Hour)
	sessions := session.NewStore(kv, []byte("test-secret"), 24*time.Hour)

	svc := NewService("example.com", "ChainChat", "https://example.com", challenges, credentials, sessions, verifier, logging.Discard())
	return svc, sessions, mr
}

func assertionFor(credentialID []byte) json.RawMessage {
	encoded := base64.RawURLEncoding.EncodeToString(credentialID)
	return json.RawMessage(`{"id":"` + encoded + `","response":{}}`)
}

func register(t *testing.T, svc *Service, verifier *fakeVerifier, phone string, credentialID, publicKey []byte) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.BeginRegistration(ctx, phone); err != nil {
		t.Fatalf("begin registration: %v", err)
	}
	verifier.registrationResult = RegistrationResult{
		Verified:     true,
		CredentialID: credentialID,
		PublicKey:    publicKey,
		Counter:      0,
		Transports:   []string{"internal"},
	}
	if err := svc.FinishRegistration(ctx, phone, assertionFor(credentialID)); err != nil {
		t.Fatalf("finish registration: %v", err)
	}
}

func TestRegistrationFlow(t *testing.T) {
	verifier := &fakeVerifier{}
	svc, _, _ := setupService(t, verifier)
	ctx := context.Background()
	phone := "+15551230001"

	options, err := svc.BeginRegistration(ctx, phone)
	if err != nil {
		t.Fatalf("begin registration: %v", err)
	}
	if options.Challenge == "" || len(options.PublicKey) == 0 {
		t.Fatalf("incomplete ceremony options: %+v", options)
	}
	if verifier.lastRegistrationReq.UserName != phone {
		t.Fatalf("expected user name %s, got %s", phone, verifier.lastRegistrationReq.UserName)
	}
	if verifier.lastRegistrationReq.AttestationType != "none" {
		t.Fatalf("expected attestation none, got %s", verifier.lastRegistrationReq.AttestationType)
	}

	verifier.registrationResult = RegistrationResult{
		Verified:     true,
		CredentialID: []byte("cred-1"),
		PublicKey:    []byte{0x04, 0xaa, 0xbb},
		Counter:      0,
		Transports:   []string{"internal", "hybrid"},
	}
	if err := svc.FinishRegistration(ctx, phone, assertionFor([]byte("cred-1"))); err != nil {
		t.Fatalf("finish registration: %v", err)
	}
	if verifier.verifyRegistrationChallenge != options.Challenge {
		t.Fatal("verifier was not handed the stored challenge")
	}

	// Challenge is consumed; a second finish has nothing to verify against.
	err = svc.FinishRegistration(ctx, phone, assertionFor([]byte("cred-1")))
	if !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("expected ErrChallengeExpired on reuse, got %v", err)
	}
}

func TestRegistrationExcludesExistingCredentials(t *testing.T) {
	verifier := &fakeVerifier{}
	svc, _, _ := setupService(t, verifier)
	phone := "+15551230001"

	register(t, svc, verifier, phone, []byte("cred-1"), []byte{0x04, 0x01})

	if _, err := svc.BeginRegistration(context.Background(), phone); err != nil {
		t.Fatalf("begin second registration: %v", err)
	}
	exclude := verifier.lastRegistrationReq.ExcludeCredentialIDs
	want := base64.RawURLEncoding.EncodeToString([]byte("cred-1"))
	if len(exclude) != 1 || exclude[0] != want {
		t.Fatalf("expected exclude list [%s], got %v", want, exclude)
	}
}

func TestFailedRegistrationLeavesChallengeLive(t *testing.T) {
	verifier := &fakeVerifier{}
	svc, _, _ := setupService(t, verifier)
	ctx := context.Background()
	phone := "+15551230001"

	if _, err := svc.BeginRegistration(ctx, phone); err != nil {
		t.Fatalf("begin registration: %v", err)
	}

	verifier.registrationResult = RegistrationResult{Verified: false}
	if err := svc.FinishRegistration(ctx, phone, assertionFor([]byte("cred-1"))); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}

	// Retry within the TTL succeeds against the same challenge.
	verifier.registrationResult = RegistrationResult{
		Verified:     true,
		CredentialID: []byte("cred-1"),
		PublicKey:    []byte{0x04, 0x01},
	}
	if err := svc.FinishRegistration(ctx, phone, assertionFor([]byte("cred-1"))); err != nil {
		t.Fatalf("retry after failed verification: %v", err)
	}
}

func TestAuthenticationFlow(t *testing.T) {
	verifier := &fakeVerifier{}
	svc, sessions, _ := setupService(t, verifier)
	ctx := context.Background()
	phone := "+15551230001"
	credID := []byte("cred-1")
	pubKey := []byte{0x04, 0xaa, 0xbb, 0xcc}

	register(t, svc, verifier, phone, credID, pubKey)

	options, err := svc.BeginAuthentication(ctx, phone)
	if err != nil {
		t.Fatalf("begin authentication: %v", err)
	}
	allow := verifier.lastAuthenticationReq.AllowCredentials
	if len(allow) != 1 || allow[0].ID != base64.RawURLEncoding.EncodeToString(credID) {
		t.Fatalf("unexpected allow list: %v", allow)
	}

	verifier.authenticationResult = AuthenticationResult{Verified: true, NewCounter: 7}
	result, err := svc.FinishAuthentication(ctx, phone, assertionFor(credID))
	if err != nil {
		t.Fatalf("finish authentication: %v", err)
	}
	if verifier.verifyAuthenticationChallenge != options.Challenge {
		t.Fatal("verifier was not handed the stored challenge")
	}
	if string(verifier.verifiedCredential.ID) != string(credID) {
		t.Fatal("verifier was not handed the matched credential")
	}
	if result.Token == "" || result.PIN == "" {
		t.Fatalf("incomplete auth result: %+v", result)
	}
	if len(result.PIN) != 8 {
		t.Fatalf("expected an 8 digit pin, got %q", result.PIN)
	}

	// A session is now live and carries the same token.
	sess, err := sessions.Get(ctx, identity.FromPhone(phone))
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if sess.Token != result.Token || sess.PIN != result.PIN {
		t.Fatal("session does not match auth result")
	}

	// The challenge is consumed.
	if _, err := svc.FinishAuthentication(ctx, phone, assertionFor(credID)); !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("expected ErrChallengeExpired on reuse, got %v", err)
	}
}

func TestPINStableAcrossAuthentications(t *testing.T) {
	verifier := &fakeVerifier{}
	svc, _, _ := setupService(t, verifier)
	ctx := context.Background()
	phone := "+15551230001"
	credID := []byte("cred-1")

	register(t, svc, verifier, phone, credID, []byte{0x04, 0xaa})

	pins := make(map[string]bool)
	for i := 0; i < 3; i++ {
		if _, err := svc.BeginAuthentication(ctx, phone); err != nil {
			t.Fatalf("begin authentication %d: %v", i, err)
		}
		verifier.authenticationResult = AuthenticationResult{Verified: true, NewCounter: uint32(i + 1)}
		result, err := svc.FinishAuthentication(ctx, phone, assertionFor(credID))
		if err != nil {
			t.Fatalf("finish authentication %d: %v", i, err)
		}
		pins[result.PIN] = true
	}
	if len(pins) != 1 {
		t.Fatalf("pin must not change between authentications, saw %d values", len(pins))
	}
}

func TestAuthenticationWithoutCredentials(t *testing.T) {
	verifier := &fakeVerifier{}
	svc, _, _ := setupService(t, verifier)

	if _, err := svc.BeginAuthentication(context.Background(), "+15559990000"); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestAuthenticationUnknownCredential(t *testing.T) {
	verifier := &fakeVerifier{}
	svc, _, _ := setupService(t, verifier)
	ctx := context.Background()
	phone := "+15551230001"

	register(t, svc, verifier, phone, []byte("cred-1"), []byte{0x04, 0xaa})

	if _, err := svc.BeginAuthentication(ctx, phone); err != nil {
		t.Fatalf("begin authentication: %v", err)
	}
	verifier.authenticationResult = AuthenticationResult{Verified: true, NewCounter: 1}
	if _, err := svc.FinishAuthentication(ctx, phone, assertionFor([]byte("other-device"))); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestCounterNeverRegresses(t *testing.T) {
	verifier := &fakeVerifier{}
	svc, _, mr := setupService(t, verifier)
	ctx := context.Background()
	phone := "+15551230001"
	credID := []byte("cred-1")

	register(t, svc, verifier, phone, credID, []byte{0x04, 0xaa})

	authenticate := func(counter uint32) {
		t.Helper()
		if _, err := svc.BeginAuthentication(ctx, phone); err != nil {
			t.Fatalf("begin authentication: %v", err)
		}
		verifier.authenticationResult = AuthenticationResult{Verified: true, NewCounter: counter}
		if _, err := svc.FinishAuthentication(ctx, phone, assertionFor(credID)); err != nil {
			t.Fatalf("finish authentication: %v", err)
		}
	}

	authenticate(10)
	authenticate(3) // stale counter report must not rewind the record

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	credentials := NewCredentialStore(store.NewRedis(client), store.NewRedis(client), time.Hour)
	creds, err := credentials.List(ctx, identity.FromPhone(phone))
	if err != nil {
		t.Fatalf("list credentials: %v", err)
	}
	if len(creds) != 1 || creds[0].Counter != 10 {
		t.Fatalf("expected counter 10, got %+v", creds)
	}
}

func TestAuthSuccessHookRuns(t *testing.T) {
	verifier := &fakeVerifier{}
	svc, _, _ := setupService(t, verifier)
	ctx := context.Background()
	phone := "+15551230001"
	credID := []byte("cred-1")

	register(t, svc, verifier, phone, credID, []byte{0x04, 0xaa})

	var hookResult AuthResult
	svc.OnAuthSuccess(func(_ context.Context, result AuthResult) error {
		hookResult = result
		return nil
	})

	if _, err := svc.BeginAuthentication(ctx, phone); err != nil {
		t.Fatalf("begin authentication: %v", err)
	}
	verifier.authenticationResult = AuthenticationResult{Verified: true, NewCounter: 1}
	result, err := svc.FinishAuthentication(ctx, phone, assertionFor(credID))
	if err != nil {
		t.Fatalf("finish authentication: %v", err)
	}
	if hookResult.IdentityID != result.IdentityID || hookResult.Token != result.Token {
		t.Fatal("hook did not receive the auth result")
	}

	// A failing hook must not fail the authentication itself.
	svc.OnAuthSuccess(func(context.Context, AuthResult) error {
		return errors.New("wallet provisioning down")
	})
	if _, err := svc.BeginAuthentication(ctx, phone); err != nil {
		t.Fatalf("begin authentication: %v", err)
	}
	verifier.authenticationResult = AuthenticationResult{Verified: true, NewCounter: 2}
	if _, err := svc.FinishAuthentication(ctx, phone, assertionFor(credID)); err != nil {
		t.Fatalf("authentication must survive hook failure: %v", err)
	}
}
