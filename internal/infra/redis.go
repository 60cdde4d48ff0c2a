package infra

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient configures a Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// KeyCounts reports how many keys exist per logical namespace. Used by the
// stats endpoint; SCAN keeps it safe against large keyspaces.
func KeyCounts(ctx context.Context, client *redis.Client, patterns ...string) (map[string]int64, error) {
	counts := make(map[string]int64, len(patterns))
	for _, pattern := range patterns {
		var cursor uint64
		var total int64
		for {
			keys, next, err := client.Scan(ctx, cursor, pattern, 100).Result()
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", pattern, err)
			}
			total += int64(len(keys))
			cursor = next
			if cursor == 0 {
				break
			}
		}
		counts[pattern] = total
	}
	return counts, nil
}
