package config

import (
	"errors"
	"flag"
	"fmt"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"sync"
	"time"
)

const (
	defaultServerAddress   = ":8080"
	defaultDatabaseDSN     = ""
	defaultRedisAddr       = "localhost:6379"
	defaultBaseURL         = "http://localhost:8080"
	defaultLogLevel        = "info"
	defaultProviderTimeout = 10 * time.Second
	defaultSweepInterval   = time.Minute
	defaultSweepStaleAfter = 15 * time.Minute
)

// Stripe contains Stripe credentials
type Stripe struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	Currency      string `env:"STRIPE_CURRENCY" envDefault:"eur"`
	// APIURL overrides Stripe API address, empty means api.stripe.com
	APIURL string `env:"STRIPE_API_URL"`
}

// Enabled reports whether Stripe is configured
func (s Stripe) Enabled() bool {
	return s.SecretKey != "" || s.WebhookSecret != ""
}

// Heleket contains Heleket credentials
type Heleket struct {
	Merchant string `env:"HELEKET_MERCHANT"`
	APIKey   string `env:"HELEKET_API_KEY"`
	// WebhookSecret defaults to APIKey, Heleket signs callbacks with the payment key
	WebhookSecret string `env:"HELEKET_WEBHOOK_SECRET"`
	BaseURL       string `env:"HELEKET_BASE_URL" envDefault:"https://api.heleket.com"`
	Currency      string `env:"HELEKET_CURRENCY" envDefault:"USDT"`
}

// Enabled reports whether Heleket is configured
func (h Heleket) Enabled() bool {
	return h.Merchant != "" || h.APIKey != ""
}

type Config struct {
	ServerAddr      string        `env:"RUN_ADDRESS"`
	DatabaseDSN     string        `env:"DATABASE_URI"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	KafkaBrokers    []string      `env:"KAFKA_BROKERS" envSeparator:","`
	LogLevel        string        `env:"LOG_LEVEL"`
	BaseURL         string        `env:"BASE_URL"`
	SessionSecret   string        `env:"SESSION_SECRET"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL"`
	SweepStaleAfter time.Duration `env:"SWEEP_STALE_AFTER"`

	Stripe  Stripe
	Heleket Heleket
}

var (
	once      sync.Once
	singleton *Config
	initErr   error
)

// New returns new Config. It parses command line and environment variables only once.
// Environment overrides flags, .env file is loaded if present.
func New() (*Config, error) {
	once.Do(func() {
		cfg := Config{}

		// initialize flags
		flag.StringVar(&cfg.ServerAddr, "a", defaultServerAddress, "server address")
		flag.StringVar(&cfg.DatabaseDSN, "d", defaultDatabaseDSN, "database DSN")
		flag.StringVar(&cfg.RedisAddr, "r", defaultRedisAddr, "redis address")
		flag.StringVar(&cfg.BaseURL, "b", defaultBaseURL, "public base URL")
		flag.StringVar(&cfg.LogLevel, "l", defaultLogLevel, "log level")
		flag.DurationVar(&cfg.ProviderTimeout, "t", defaultProviderTimeout, "payment provider timeout")

		flag.Parse()

		cfg.SweepInterval = defaultSweepInterval
		cfg.SweepStaleAfter = defaultSweepStaleAfter

		// missing .env is fine
		_ = godotenv.Load()

		if err := env.Parse(&cfg); err != nil {
			initErr = fmt.Errorf("parse environment: %w", err)
			return
		}

		if err := cfg.Validate(); err != nil {
			initErr = err
			return
		}

		singleton = &cfg
	})

	return singleton, initErr
}

// Validate checks that required settings are present and providers are fully configured
func (c *Config) Validate() error {
	var errs []error

	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("provider timeout must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	if c.SweepStaleAfter < 0 {
		errs = append(errs, errors.New("SWEEP_STALE_AFTER must not be negative"))
	}
	if c.Stripe.Enabled() && (c.Stripe.SecretKey == "" || c.Stripe.WebhookSecret == "") {
		errs = append(errs, errors.New("stripe needs both STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET"))
	}
	if c.Heleket.Enabled() && (c.Heleket.Merchant == "" || c.Heleket.APIKey == "") {
		errs = append(errs, errors.New("heleket needs both HELEKET_MERCHANT and HELEKET_API_KEY"))
	}
	if !c.Stripe.Enabled() && !c.Heleket.Enabled() {
		errs = append(errs, errors.New("no payment provider configured"))
	}

	return errors.Join(errs...)
}
