package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName       = "ChainChat"
	defaultAppEnv        = "development"
	defaultPort          = "3579"
	defaultLogLevel      = "info"
	defaultRPID          = "localhost"
	defaultRPName        = "ChainChat Wallet"
	defaultOrigin        = "http://localhost:3579"
	defaultChainID       = 8453 // Base mainnet
	defaultShutdownDelay = 10 * time.Second

	defaultChallengeTTL  = 5 * time.Minute
	defaultSessionTTL    = 24 * time.Hour
	defaultCredentialTTL = 30 * 24 * time.Hour
	defaultWalletTTL     = 90 * 24 * time.Hour

	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string
	RedisURL string

	// WebAuthn relying-party parameters handed to the external verifier.
	RPID   string
	RPName string
	Origin string

	// BaseURL is used to build authentication links sent back over chat.
	BaseURL string

	// JWTSecret signs session tokens. WalletSalt feeds signing-key
	// derivation; losing or changing it makes every derived wallet
	// permanently unreachable.
	JWTSecret  string
	WalletSalt string

	// External collaborators.
	VerifierURL string
	BundlerURL  string
	ChainID     int64

	ShutdownPeriod time.Duration
	ChallengeTTL   time.Duration
	SessionTTL     time.Duration
	CredentialTTL  time.Duration
	WalletTTL      time.Duration

	// ChatRateLimit bounds inbound chat turns per sender per minute.
	ChatRateLimit int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		RedisURL:       os.Getenv("REDIS_URL"),
		RPID:           getEnv("RP_ID", defaultRPID),
		RPName:         getEnv("RP_NAME", defaultRPName),
		Origin:         getEnv("ORIGIN", defaultOrigin),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		WalletSalt:     os.Getenv("WALLET_DERIVATION_SALT"),
		VerifierURL:    os.Getenv("VERIFIER_URL"),
		BundlerURL:     os.Getenv("BUNDLER_URL"),
		ChainID:        defaultChainID,
		ShutdownPeriod: defaultShutdownDelay,
		ChallengeTTL:   defaultChallengeTTL,
		SessionTTL:     defaultSessionTTL,
		CredentialTTL:  defaultCredentialTTL,
		WalletTTL:      defaultWalletTTL,
		ChatRateLimit:  10,
	}
	cfg.BaseURL = getEnv("BASE_URL", cfg.Origin)

	if v := os.Getenv("CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CHAIN_ID: %w", err)
		}
		cfg.ChainID = id
	}

	if v := os.Getenv("CHAT_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CHAT_RATE_LIMIT: %w", err)
		}
		cfg.ChatRateLimit = n
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	ttlOverrides := []struct {
		envVar string
		dst    *time.Duration
	}{
		{"CHALLENGE_TTL", &cfg.ChallengeTTL},
		{"SESSION_TTL", &cfg.SessionTTL},
		{"CREDENTIAL_TTL", &cfg.CredentialTTL},
		{"WALLET_TTL", &cfg.WalletTTL},
	}
	for _, ttl := range ttlOverrides {
		if v := os.Getenv(ttl.envVar); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", ttl.envVar, err)
			}
			*ttl.dst = d
		}
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}
	if cfg.WalletSalt == "" {
		return Config{}, fmt.Errorf("WALLET_DERIVATION_SALT must be set")
	}
	if cfg.VerifierURL == "" {
		return Config{}, fmt.Errorf("VERIFIER_URL must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
