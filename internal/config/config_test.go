//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
database:
  url: postgres://u:p@localhost:5432/quoteart
redis:
  url: localhost:6379
payment:
  razorpay:
    webhook_secret: whsec
admin:
  jwt_secret: secret
plans:
  - id: premium
    name: Premium
    tier: premium
    monthly_price: 499
    annual_price: 4999
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalYAML), true)
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Payment.Currency != "INR" || cfg.Plans[0].Currency != "INR" {
		t.Errorf("expected INR currency defaults, got %s/%s", cfg.Payment.Currency, cfg.Plans[0].Currency)
	}
	if cfg.Payment.Razorpay.Timeout != 10*time.Second || cfg.Payment.Razorpay.MaxRetries != 3 {
		t.Errorf("unexpected gateway defaults: %+v", cfg.Payment.Razorpay)
	}
	if cfg.Scheduler.ExpiryCheckCron != "@every 1h" {
		t.Errorf("expected hourly expiry sweep, got %q", cfg.Scheduler.ExpiryCheckCron)
	}
	if cfg.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Workers)
	}
	if !cfg.Runtime.Dev {
		t.Error("expected dev flag to be carried through")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("RAZORPAY_WEBHOOK_SECRET", "from-env")
	t.Setenv("TELEGRAM_ADMIN_CHAT_ID", "-100123")
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig(writeConfig(t, minimalYAML), false)
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	if cfg.Database.URL != "postgres://env/db" {
		t.Errorf("expected env database url, got %s", cfg.Database.URL)
	}
	if cfg.Payment.Razorpay.WebhookSecret != "from-env" {
		t.Errorf("expected env webhook secret, got %s", cfg.Payment.Razorpay.WebhookSecret)
	}
	if cfg.Admin.TelegramChatID != -100123 {
		t.Errorf("expected chat id -100123, got %d", cfg.Admin.TelegramChatID)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing database", "redis: {url: x}\nadmin: {jwt_secret: s}\npayment: {razorpay: {webhook_secret: w}}\nplans: [{id: a, name: A}]"},
		{"missing jwt secret", "database: {url: x}\nredis: {url: x}\npayment: {razorpay: {webhook_secret: w}}\nplans: [{id: a, name: A}]"},
		{"no plans", "database: {url: x}\nredis: {url: x}\nadmin: {jwt_secret: s}\npayment: {razorpay: {webhook_secret: w}}"},
		{"duplicate plan", "database: {url: x}\nredis: {url: x}\nadmin: {jwt_secret: s}\npayment: {razorpay: {webhook_secret: w}}\nplans: [{id: a, name: A}, {id: a, name: B}]"},
		{"bad key length", minimalYAML + "security:\n  encryption_key: short\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tc.yaml), false); err == nil {
				t.Fatal("expected a validation error, got nil")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), false); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
