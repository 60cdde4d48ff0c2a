package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/chainchat/chainchat/internal/infra"
)

// RegisterHealthRoutes adds liveness and keyspace-stats endpoints.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		redisStatus := "ok"

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := d.Cache.Ping(ctx).Err(); err != nil {
			redisStatus = err.Error()
		}

		status := http.StatusOK
		if redisStatus != "ok" {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"app":   d.Cfg.AppName,
			"env":   d.Cfg.AppEnv,
			"redis": redisStatus,
		})
	})

	app.Get("/healthz/stats", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		counts, err := infra.KeyCounts(ctx, d.Cache, "credentials:*", "user_token:*", "challenge:*", "wallet:*")
		if err != nil {
			return fiber.NewError(http.StatusServiceUnavailable, "stats unavailable")
		}
		return c.JSON(fiber.Map{
			"totalUsers":        counts["credentials:*"],
			"activeTokens":      counts["user_token:*"],
			"pendingChallenges": counts["challenge:*"],
			"wallets":           counts["wallet:*"],
		})
	})
}
