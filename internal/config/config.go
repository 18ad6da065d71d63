package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration, loaded from the environment with an
// optional .env file for local development.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Addr   string `env:"HTTP_ADDR" envDefault:":8080"`

	DatabaseURL string `env:"DATABASE_URL" envDefault:"shortlet.db"`

	JWTSecret    string        `env:"JWT_SECRET" envDefault:"change-me-jwt-secret"`
	JWTAccessTTL time.Duration `env:"JWT_ACCESS_TTL" envDefault:"24h"`

	// HoldTTL is how long a pending reservation blocks its range while the
	// booker is expected to pay.
	HoldTTL time.Duration `env:"RESERVATION_HOLD_TTL" envDefault:"15m"`
	// HoldSweepInterval drives the fast sweep that expires stale holds.
	HoldSweepInterval time.Duration `env:"HOLD_SWEEP_INTERVAL" envDefault:"1m"`
	// CompletionSweepInterval drives the slow sweep that finalizes ended stays.
	CompletionSweepInterval time.Duration `env:"COMPLETION_SWEEP_INTERVAL" envDefault:"12h"`

	Currency            string `env:"CURRENCY" envDefault:"usd"`
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	CheckoutSuccessURL  string `env:"CHECKOUT_SUCCESS_URL" envDefault:"http://localhost:8080/checkout/success"`
	CheckoutCancelURL   string `env:"CHECKOUT_CANCEL_URL" envDefault:"http://localhost:8080/checkout/cancel"`

	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"no-reply@shortlet.local"`
}

// Load reads the environment into a Config. A missing .env file is not an
// error; explicit environment variables always win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if cfg.HoldTTL <= 0 {
		return nil, fmt.Errorf("RESERVATION_HOLD_TTL must be positive, got %s", cfg.HoldTTL)
	}
	if cfg.HoldSweepInterval <= 0 || cfg.CompletionSweepInterval <= 0 {
		return nil, fmt.Errorf("sweep intervals must be positive")
	}
	return cfg, nil
}
