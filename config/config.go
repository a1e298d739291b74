package config

import (
	"fmt"
	"os"

	"github.com/amitthakurameotech-cmyk/subscription-plan/utils"

	"github.com/joho/godotenv"
)

// Settings holds every externally configured value the server needs.
// It is built once at startup; handlers receive it instead of reading
// environment variables on the request path.
type Settings struct {
	Port                string
	DatabaseURL         string
	StripeSecretKey     string
	StripeWebhookSecret string
	JWTSecret           string
}

// Load reads the .env file (when present) and validates the resulting
// environment. Missing required values abort startup: a webhook endpoint
// without a signing secret would reject every event it receives, so that
// misconfiguration must not survive past boot.
func Load() (*Settings, error) {
	if err := godotenv.Load(); err != nil {
		utils.LogInfo("No .env file loaded, using system environment")
	}

	s := &Settings{
		Port:                os.Getenv("PORT"),
		DatabaseURL:         os.Getenv("DB_URL"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
	}
	if s.Port == "" {
		s.Port = "8080"
	}

	if s.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DB_URL is not set")
	}
	if s.StripeSecretKey == "" {
		return nil, fmt.Errorf("config: STRIPE_SECRET_KEY is not set")
	}
	if s.StripeWebhookSecret == "" {
		return nil, fmt.Errorf("config: STRIPE_WEBHOOK_SECRET is not set")
	}
	if s.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET is not set")
	}

	return s, nil
}
