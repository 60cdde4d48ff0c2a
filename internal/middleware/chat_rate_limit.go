package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// ChatRateLimit bounds inbound chat turns per sender per minute using Redis
// if available. Fails open: rate limiting is protection, not correctness.
func ChatRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 10
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		var req struct {
			From string `json:"from"`
		}
		_ = c.BodyParser(&req)
		sender := strings.TrimSpace(req.From)
		if sender == "" {
			sender = c.IP()
		}
		key := "rl:chat:" + sender
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err == nil && cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if err != nil {
			return c.Next()
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many messages, slow down")
		}
		return c.Next()
	}
}
