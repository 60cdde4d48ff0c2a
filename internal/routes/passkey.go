package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/chainchat/chainchat/internal/identity"
	"github.com/chainchat/chainchat/internal/passkey"
	"github.com/chainchat/chainchat/internal/session"
)

type ceremonyBeginRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type ceremonyFinishRequest struct {
	PhoneNumber string          `json:"phoneNumber"`
	Credential  json.RawMessage `json:"credential"`
}

// RegisterPasskeyRoutes wires the registration and authentication ceremony
// endpoints plus the post-auth success callback.
func RegisterPasskeyRoutes(r fiber.Router, svc *passkey.Service, sessions *session.Store) {
	group := r.Group("/auth/passkey")

	group.Post("/register/options", func(c *fiber.Ctx) error {
		var req ceremonyBeginRequest
		if err := c.BodyParser(&req); err != nil || req.PhoneNumber == "" {
			return fiber.NewError(http.StatusBadRequest, "phone number required")
		}
		options, err := svc.BeginRegistration(c.UserContext(), req.PhoneNumber)
		if err != nil {
			return ceremonyError(err)
		}
		return c.JSON(options)
	})

	group.Post("/register/verify", func(c *fiber.Ctx) error {
		var req ceremonyFinishRequest
		if err := c.BodyParser(&req); err != nil || req.PhoneNumber == "" || len(req.Credential) == 0 {
			return fiber.NewError(http.StatusBadRequest, "phone number and credential required")
		}
		if err := svc.FinishRegistration(c.UserContext(), req.PhoneNumber, req.Credential); err != nil {
			return ceremonyError(err)
		}
		return c.JSON(fiber.Map{"verified": true})
	})

	group.Post("/authenticate/options", func(c *fiber.Ctx) error {
		var req ceremonyBeginRequest
		if err := c.BodyParser(&req); err != nil || req.PhoneNumber == "" {
			return fiber.NewError(http.StatusBadRequest, "phone number required")
		}
		options, err := svc.BeginAuthentication(c.UserContext(), req.PhoneNumber)
		if err != nil {
			return ceremonyError(err)
		}
		return c.JSON(options)
	})

	group.Post("/authenticate/verify", func(c *fiber.Ctx) error {
		var req ceremonyFinishRequest
		if err := c.BodyParser(&req); err != nil || req.PhoneNumber == "" || len(req.Credential) == 0 {
			return fiber.NewError(http.StatusBadRequest, "phone number and credential required")
		}
		result, err := svc.FinishAuthentication(c.UserContext(), req.PhoneNumber, req.Credential)
		if err != nil {
			return ceremonyError(err)
		}
		return c.JSON(fiber.Map{
			"verified":     true,
			"token":        result.Token,
			"userId":       result.IdentityID,
			"credentialId": result.CredentialID,
			"publicKey":    result.PublicKey,
			"passkeyPin":   result.PIN,
		})
	})

	// Success callback from the auth page: confirms the chat side may use
	// the session and bumps its TTL.
	r.Post("/auth/success", func(c *fiber.Ctx) error {
		var req struct {
			PhoneNumber string `json:"phoneNumber"`
			Token       string `json:"token"`
		}
		if err := c.BodyParser(&req); err != nil || req.PhoneNumber == "" || req.Token == "" {
			return fiber.NewError(http.StatusBadRequest, "phone number and token required")
		}
		identityID := identity.FromPhone(req.PhoneNumber)
		sess, err := sessions.Get(c.UserContext(), identityID)
		if err != nil || sess.Token != req.Token {
			return fiber.NewError(http.StatusUnauthorized, "invalid session")
		}
		if err := sessions.Refresh(c.UserContext(), identityID); err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid session")
		}
		return c.JSON(fiber.Map{"success": true})
	})
}

// ceremonyError maps engine failures to HTTP errors without leaking
// verification detail.
func ceremonyError(err error) error {
	switch {
	case errors.Is(err, passkey.ErrChallengeExpired):
		return fiber.NewError(http.StatusBadRequest, "challenge not found or expired, please retry")
	case errors.Is(err, passkey.ErrNoCredentials):
		return fiber.NewError(http.StatusNotFound, "no credentials found, please register first")
	case errors.Is(err, passkey.ErrCredentialNotFound):
		return fiber.NewError(http.StatusBadRequest, "credential not found, please register this device")
	case errors.Is(err, passkey.ErrVerificationFailed):
		return fiber.NewError(http.StatusBadRequest, "authentication failed")
	default:
		return fiber.NewError(http.StatusServiceUnavailable, "service temporarily unavailable")
	}
}
