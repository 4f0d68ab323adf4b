// Package config loads application configuration from environment
// variables, once at startup. The struct is treated as immutable after
// Load returns.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable the server reads.
type Config struct {
	// Server
	Port    int    `env:"PORT" envDefault:"8080"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	// ClientURL is where browser flows land (reset-password page, web
	// OAuth completion). AppScheme is the mobile deep-link scheme used to
	// hand tokens back after the Google callback.
	ClientURL string `env:"CLIENT_URL" envDefault:"http://localhost:8081"`
	AppScheme string `env:"APP_SCHEME" envDefault:"authapp"`

	// Environment: "development" or "production". Controls the Secure
	// flag on the refresh cookie.
	Env string `env:"APP_ENV" envDefault:"development"`

	// Database
	DBPath string `env:"DB_PATH" envDefault:"data/auth.db"`

	// Tokens
	JWTSecret       string        `env:"JWT_SECRET,required"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"` // 30 days
	ResetTokenTTL   time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`

	// Google OAuth. Optional — when ClientID is empty the Google routes
	// are not registered.
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`

	// SMTP for password-recovery mail. Optional — when Host is empty the
	// mailer logs the reset link instead of sending it.
	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
	SMTPFrom string `env:"SMTP_FROM"`

	// Rate limiting for credential endpoints (per client IP).
	AuthRatePerMinute int `env:"AUTH_RATE_PER_MINUTE" envDefault:"30"`
}

// Load parses the environment into a Config. Missing required variables
// (JWT_SECRET) make it fail, so a misconfigured server never starts.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}

	if len(cfg.JWTSecret) < 16 {
		return nil, fmt.Errorf("config: JWT_SECRET must be at least 16 characters")
	}

	if cfg.GoogleRedirectURL == "" {
		cfg.GoogleRedirectURL = cfg.BaseURL + "/auth/google/callback"
	}

	return &cfg, nil
}

// IsProduction reports whether the server runs with production hardening
// (Secure cookies).
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
