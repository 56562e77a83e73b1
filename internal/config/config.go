// Package config содержит логику чтения конфигурации витрины.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации витрины.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	DatabaseURI    string `env:"DATABASE_URI"`
	DownloadSecret string `env:"DOWNLOAD_SECRET"`

	SessionSecret string `env:"SESSION_SECRET"`
	StripeSecret  string `env:"STRIPE_SECRET"`
	NATSURL       string `env:"NATS_URL"`

	PaymentTimeout     time.Duration `env:"PAYMENT_TIMEOUT" envDefault:"10s"`
	ArtifactsDir       string        `env:"ARTIFACTS_DIR" envDefault:"./artifacts"`
	SupportEmail       string        `env:"SUPPORT_EMAIL" envDefault:"support@shipfast-boilerplate.com"`
	CORSOrigins        []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	RateLimitRPM       int           `env:"RATE_LIMIT_RPM" envDefault:"100"`
	TrustProxy         bool          `env:"TRUST_PROXY"`
	ExpiryScanInterval time.Duration `env:"EXPIRY_SCAN_INTERVAL" envDefault:"1h"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envDownloadSecret := cfg.DownloadSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory store when empty")
	flag.StringVar(&cfg.DownloadSecret, "s", "", "secret for signing download links")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envDownloadSecret != "" {
		cfg.DownloadSecret = envDownloadSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if cfg.RateLimitRPM <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_RPM must be positive, got %d", cfg.RateLimitRPM)
	}
	if cfg.PaymentTimeout <= 0 {
		return nil, fmt.Errorf("PAYMENT_TIMEOUT must be positive, got %s", cfg.PaymentTimeout)
	}

	return cfg, nil
}
