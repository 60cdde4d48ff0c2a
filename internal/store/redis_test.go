package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
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
	return NewRedis(client), mr
}

func TestPutGetDelete(t *testing.T) {
	kv, _ := setupStore(t)
	ctx := context.Background()

	if err := kv.Put(ctx, "challenge:abc", "value-1", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := kv.Get(ctx, "challenge:abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "value-1" {
		t.Fatalf("expected value-1, got %s", got)
	}

	if err := kv.Delete(ctx, "challenge:abc"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := kv.Get(ctx, "challenge:abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPutOverwritesValueAndTTL(t *testing.T) {
	kv, mr := setupStore(t)
	ctx := context.Background()

	if err := kv.Put(ctx, "challenge:abc", "old", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := kv.Put(ctx, "challenge:abc", "new", 5*time.Minute); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := kv.Get(ctx, "challenge:abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "new" {
		t.Fatalf("expected overwritten value, got %s", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := kv.Get(ctx, "challenge:abc"); err != nil {
		t.Fatalf("key should survive past the old TTL: %v", err)
	}
}

func TestTTLExpiry(t *testing.T) {
	kv, mr := setupStore(t)
	ctx := context.Background()

	if err := kv.Put(ctx, "challenge:abc", "value", 5*time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	mr.FastForward(6 * time.Minute)
	if _, err := kv.Get(ctx, "challenge:abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestExtendTTL(t *testing.T) {
	kv, mr := setupStore(t)
	ctx := context.Background()

	if err := kv.Put(ctx, "user_token:abc", "session", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := kv.ExtendTTL(ctx, "user_token:abc", 10*time.Minute); err != nil {
		t.Fatalf("extend: %v", err)
	}

	mr.FastForward(5 * time.Minute)
	if _, err := kv.Get(ctx, "user_token:abc"); err != nil {
		t.Fatalf("key should survive after TTL extension: %v", err)
	}

	if err := kv.ExtendTTL(ctx, "user_token:missing", time.Minute); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}
}

func TestWithLockSerializesWriters(t *testing.T) {
	kv, _ := setupStore(t)
	ctx := context.Background()

	var inCritical int
	var maxInCritical int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := kv.WithLock(ctx, "credentials:abc", func() error {
				mu.Lock()
				inCritical++
				if inCritical > maxInCritical {
					maxInCritical = inCritical
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				inCritical--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("with lock: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxInCritical != 1 {
		t.Fatalf("expected mutual exclusion, saw %d concurrent holders", maxInCritical)
	}
}
