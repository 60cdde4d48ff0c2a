package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/chainchat/chainchat/internal/account"
	"github.com/chainchat/chainchat/internal/logging"
	"github.com/chainchat/chainchat/internal/passkey"
	"github.com/chainchat/chainchat/internal/store"
)

func setupWallets(t *testing.T) (*Service, *miniredis.Miniredis) {
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

	walletStore := NewStore(store.NewRedis(client), 90*24*time.Hour)
	svc := NewService(walletStore, account.NewStatic(), "test-derivation-salt", 8453, logging.Discard())
	return svc, mr
}

func authResult() passkey.AuthResult {
	return passkey.AuthResult{
		Token:        "token-1",
		IdentityID:   "id-1",
		PhoneNumber:  "+15551230001",
		CredentialID: "cred-1",
		PublicKey:    "04abcd",
		PIN:          "12345678",
	}
}

func TestProvisionOnFirstAuth(t *testing.T) {
	svc, _ := setupWallets(t)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "id-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before provisioning, got %v", err)
	}

	if err := svc.HandleAuthSuccess(ctx, authResult()); err != nil {
		t.Fatalf("handle auth success: %v", err)
	}

	w, err := svc.Get(ctx, "id-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if len(w.Address) != 42 || w.Address[:2] != "0x" {
		t.Fatalf("unexpected wallet address %q", w.Address)
	}
	if w.Type != "smart-account" || w.ChainID != 8453 {
		t.Fatalf("unexpected wallet record: %+v", w)
	}
	if w.Metadata.CredentialID != "cred-1" {
		t.Fatalf("expected provisioning credential recorded, got %+v", w.Metadata)
	}
}

func TestAddressStableAcrossReauth(t *testing.T) {
	svc, mr := setupWallets(t)
	ctx := context.Background()

	if err := svc.HandleAuthSuccess(ctx, authResult()); err != nil {
		t.Fatalf("first auth: %v", err)
	}
	first, err := svc.Get(ctx, "id-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}

	// Expired record: re-authentication must land on the same address since
	// the derivation inputs are unchanged.
	mr.FastForward(91 * 24 * time.Hour)
	if _, err := svc.Get(ctx, "id-1"); !errors.Is(err, ErrNotFound) {
		t.Fatal("expected wallet record to expire")
	}
	if err := svc.HandleAuthSuccess(ctx, authResult()); err != nil {
		t.Fatalf("re-auth: %v", err)
	}
	second, err := svc.Get(ctx, "id-1")
	if err != nil {
		t.Fatalf("get wallet after re-auth: %v", err)
	}
	if first.Address != second.Address {
		t.Fatalf("address changed across re-provisioning: %s vs %s", first.Address, second.Address)
	}
}

func TestReauthBumpsLastUsed(t *testing.T) {
	svc, _ := setupWallets(t)
	ctx := context.Background()

	if err := svc.HandleAuthSuccess(ctx, authResult()); err != nil {
		t.Fatalf("first auth: %v", err)
	}
	before, err := svc.Get(ctx, "id-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if err := svc.HandleAuthSuccess(ctx, authResult()); err != nil {
		t.Fatalf("second auth: %v", err)
	}
	after, err := svc.Get(ctx, "id-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}

	if !after.Metadata.LastUsed.After(before.Metadata.LastUsed) {
		t.Fatal("expected last-used timestamp to advance on re-auth")
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatal("re-auth must not reset the creation timestamp")
	}
}

func TestTouchCountsTransactions(t *testing.T) {
	svc, _ := setupWallets(t)
	ctx := context.Background()

	if err := svc.HandleAuthSuccess(ctx, authResult()); err != nil {
		t.Fatalf("auth: %v", err)
	}

	if err := svc.Touch(ctx, "id-1", true); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := svc.Touch(ctx, "id-1", false); err != nil {
		t.Fatalf("touch without transaction: %v", err)
	}

	w, err := svc.Get(ctx, "id-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if w.Metadata.TransactionCount != 1 {
		t.Fatalf("expected one counted transaction, got %d", w.Metadata.TransactionCount)
	}

	if err := svc.Touch(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound touching absent wallet, got %v", err)
	}
}
