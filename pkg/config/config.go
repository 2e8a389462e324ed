package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App    AppConfig
	Redis  RedisConfig
	Stripe StripeConfig
	Resend ResendConfig
	CORS   CORSConfig
	Site   SiteConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TAPE16_APP_ENV" default:"dev"`
	Port         string `envconfig:"TAPE16_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"TAPE16_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TAPE16_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, "dev")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, "prod")
}

// RedisConfig locates the ledger store. Either URL or Address must be
// set; the redis client enforces that when it connects.
type RedisConfig struct {
	URL          string `envconfig:"TAPE16_REDIS_URL"`
	Address      string `envconfig:"TAPE16_REDIS_ADDR"`
	Password     string `envconfig:"TAPE16_REDIS_PASSWORD"`
	DB           int    `envconfig:"TAPE16_REDIS_DB" default:"0"`
	PoolSize     int    `envconfig:"TAPE16_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int    `envconfig:"TAPE16_REDIS_MIN_IDLE_CONNS" default:"2"`
}

// StripeConfig holds the payment processor credentials. All fields are
// optional: a missing secret surfaces as an UNCONFIGURED error on the
// request path that needs it, not as a startup failure.
type StripeConfig struct {
	APIKey        string `envconfig:"TAPE16_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"TAPE16_STRIPE_WEBHOOK_SECRET"`
	PriceID       string `envconfig:"TAPE16_STRIPE_PRICE_ID"`
}

// ResendConfig holds the transactional-email provider credentials. Missing
// credentials disable sending rather than failing requests.
type ResendConfig struct {
	APIKey string `envconfig:"TAPE16_RESEND_API_KEY"`
	From   string `envconfig:"TAPE16_RESEND_FROM"`
}

type CORSConfig struct {
	AllowedOrigin string `envconfig:"TAPE16_ALLOWED_ORIGIN"`
}

type SiteConfig struct {
	PublicOrigin string `envconfig:"TAPE16_PUBLIC_SITE_ORIGIN" default:"https://emrmusicgroup.com"`
}
