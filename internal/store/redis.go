package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockPrefix      = "lock:"
	lockTTL         = 5 * time.Second
	lockRetryDelay  = 25 * time.Millisecond
	lockAcquireWait = 2 * time.Second
)

// Redis implements Store and Locker on top of a go-redis client.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing Redis client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Put writes value under key with the given TTL.
func (r *Redis) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Get returns the value for key, or ErrNotFound.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// ExtendTTL bumps the remaining TTL of key without touching the value.
func (r *Redis) ExtendTTL(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := r.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// WithLock runs fn while holding an exclusive lock on key. The lock is a
// SETNX reservation with its own expiry so a crashed holder cannot wedge the
// key forever.
func (r *Redis) WithLock(ctx context.Context, key string, fn func() error) error {
	lockKey := lockPrefix + key
	token := uuid.NewString()

	deadline := time.Now().Add(lockAcquireWait)
	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, lockTTL).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", lockKey, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}

	defer func() {
		// Release only if we still own the reservation.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if current, err := r.client.Get(releaseCtx, lockKey).Result(); err == nil && current == token {
			r.client.Del(releaseCtx, lockKey)
		}
	}()

	return fn()
}
