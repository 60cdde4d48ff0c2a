package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/chainchat/chainchat/internal/account"
	"github.com/chainchat/chainchat/internal/chat"
	"github.com/chainchat/chainchat/internal/config"
	"github.com/chainchat/chainchat/internal/middleware"
	"github.com/chainchat/chainchat/internal/passkey"
	"github.com/chainchat/chainchat/internal/session"
	"github.com/chainchat/chainchat/internal/store"
	"github.com/chainchat/chainchat/internal/transfer"
	"github.com/chainchat/chainchat/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	Cache    *redis.Client
	Verifier passkey.Verifier
	Accounts account.Service
	Notifier chat.Notifier
	Logger   *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Cache == nil {
		return fmt.Errorf("redis is required")
	}
	if d.Verifier == nil {
		return fmt.Errorf("webauthn verifier is required")
	}
	if d.Accounts == nil {
		return fmt.Errorf("account service is required")
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	kv := store.NewRedis(d.Cache)

	challenges := passkey.NewChallengeStore(kv, d.Cfg.ChallengeTTL)
	credentials := passkey.NewCredentialStore(kv, kv, d.Cfg.CredentialTTL)
	sessions := session.NewStore(kv, []byte(d.Cfg.JWTSecret), d.Cfg.SessionTTL)

	walletStore := wallet.NewStore(kv, d.Cfg.WalletTTL)
	walletSvc := wallet.NewService(walletStore, d.Accounts, d.Cfg.WalletSalt, d.Cfg.ChainID, d.Logger)

	passkeySvc := passkey.NewService(
		d.Cfg.RPID, d.Cfg.RPName, d.Cfg.Origin,
		challenges, credentials, sessions, d.Verifier, d.Logger,
	)
	passkeySvc.OnAuthSuccess(walletSvc.HandleAuthSuccess)

	transferSvc := transfer.NewService(d.Accounts, d.Cfg.WalletSalt, d.Logger)
	dispatcher := chat.NewDispatcher(sessions, walletSvc, transferSvc, d.Accounts, d.Cfg.BaseURL, d.Logger)

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	RegisterPasskeyRoutes(api, passkeySvc, sessions)
	RegisterChatRoutes(api, dispatcher, d.Notifier, middleware.ChatRateLimit(d.Cache, d.Cfg.ChatRateLimit))

	protected := api.Group("/wallet", middleware.SessionAuth(sessions, []byte(d.Cfg.JWTSecret)))
	RegisterWalletRoutes(protected, walletSvc, transferSvc, d.Accounts)

	return nil
}
