package config

import (
	"os"
	"testing"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "prod" {
		t.Fatalf("expected App.Env to be prod, got %q", cfg.App.Env)
	}
	if !cfg.App.IsProd() {
		t.Fatalf("expected IsProd for env %q", cfg.App.Env)
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected Redis URL: %q", cfg.Redis.URL)
	}
	if cfg.Stripe.WebhookSecret != "whsec_test" {
		t.Fatalf("unexpected webhook secret %q", cfg.Stripe.WebhookSecret)
	}
	if cfg.Site.PublicOrigin != "https://emrmusicgroup.com" {
		t.Fatalf("expected default site origin, got %q", cfg.Site.PublicOrigin)
	}
}

func TestLoad_AddressWithoutURL(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv("TAPE16_REDIS_URL"); err != nil {
		t.Fatalf("failed to unset redis url: %v", err)
	}
	t.Setenv("TAPE16_REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("address-only redis config must load: %v", err)
	}
	if cfg.Redis.URL != "" || cfg.Redis.Address != "localhost:6379" {
		t.Fatalf("unexpected redis config %+v", cfg.Redis)
	}
}

func TestLoad_OptionalCredentialsAbsent(t *testing.T) {
	setMinimalEnv(t)
	os.Unsetenv("TAPE16_STRIPE_API_KEY")
	os.Unsetenv("TAPE16_STRIPE_WEBHOOK_SECRET")
	os.Unsetenv("TAPE16_RESEND_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("optional credentials must not be required: %v", err)
	}
	if cfg.Stripe.APIKey != "" || cfg.Resend.APIKey != "" {
		t.Fatalf("expected empty optional credentials")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv("TAPE16_APP_ENV", "prod")
	t.Setenv("TAPE16_APP_PORT", "8081")
	t.Setenv("TAPE16_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("TAPE16_STRIPE_API_KEY", "sk_test_123")
	t.Setenv("TAPE16_STRIPE_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("TAPE16_STRIPE_PRICE_ID", "price_123")
	t.Setenv("TAPE16_RESEND_API_KEY", "re_123")
	t.Setenv("TAPE16_RESEND_FROM", "TAPE 16 <serials@emrmusicgroup.com>")
}
