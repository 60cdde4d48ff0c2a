package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/chainchat/chainchat/internal/session"
)

// Locals keys populated by SessionAuth.
const (
	LocalIdentityID = "identity_id"
	LocalPhone      = "phone"
)

// SessionAuth validates bearer session tokens against the session store.
// The presented token must match the stored one: a re-authentication
// replaces the session and invalidates any older token immediately.
func SessionAuth(sessions *session.Store, secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])

		claims, err := session.ParseAndVerifyHS256(tokenStr, secret)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		identityID, _ := claims["sub"].(string)
		if identityID == "" {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		sess, err := sessions.Get(c.UserContext(), identityID)
		if err != nil || sess.Token != tokenStr {
			return fiber.NewError(http.StatusUnauthorized, "session expired")
		}

		c.Locals(LocalIdentityID, sess.IdentityID)
		c.Locals(LocalPhone, sess.PhoneNumber)
		return c.Next()
	}
}
