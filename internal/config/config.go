// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	IdentityClerk = "clerk"
	IdentityJWT   = "jwt"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"3333"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	IdentityProvider string `env:"IDENTITY_PROVIDER" envDefault:"clerk"`
	ClerkSecretKey   string `env:"CLERK_SECRET_KEY"`
	JWTSecret        string `env:"JWT_SECRET"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	FCMCredentialsFile string `env:"FCM_CREDENTIALS_FILE" envDefault:"./serviceAccountKey.json"`
	FCMCredentialsJSON string `env:"FCM_SERVICE_ACCOUNT_JSON"` // base64, wins over the file

	AvatarBucket string `env:"AVATAR_BUCKET"`
	AWSRegion    string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpoint  string `env:"AWS_ENDPOINT"`
	AWSAccessKey string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey string `env:"AWS_SECRET_ACCESS_KEY"`

	PublicAppURL      string        `env:"PUBLIC_APP_URL" envDefault:"http://localhost:5173"`
	InviteLinkTTL     time.Duration `env:"INVITE_LINK_TTL" envDefault:"168h"`
	FinalizerInterval time.Duration `env:"FINALIZER_INTERVAL" envDefault:"10m"`
	DispatchWorkers   int           `env:"DISPATCH_WORKERS" envDefault:"5"`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsUser string `env:"METRICS_USER"`
	MetricsPass string `env:"METRICS_PASS"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found")
	}
	return Parse()
}

// Parse builds a Config from the current environment without touching .env.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	c.IdentityProvider = strings.ToLower(strings.TrimSpace(c.IdentityProvider))
	switch c.IdentityProvider {
	case IdentityClerk:
		if c.ClerkSecretKey == "" {
			return fmt.Errorf("CLERK_SECRET_KEY is required when IDENTITY_PROVIDER=clerk")
		}
	case IdentityJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when IDENTITY_PROVIDER=jwt")
		}
	default:
		return fmt.Errorf("unknown IDENTITY_PROVIDER %q", c.IdentityProvider)
	}
	if c.InviteLinkTTL <= 0 {
		return fmt.Errorf("INVITE_LINK_TTL must be positive")
	}
	if c.FinalizerInterval <= 0 {
		return fmt.Errorf("FINALIZER_INTERVAL must be positive")
	}
	if c.DispatchWorkers <= 0 {
		c.DispatchWorkers = 5
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}
