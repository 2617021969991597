// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	CORSOrigins    []string      `yaml:"cors_origins"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type RazorpayConfig struct {
	KeyID         string        `yaml:"key_id"`
	KeySecret     string        `yaml:"key_secret"`
	WebhookSecret string        `yaml:"webhook_secret"`
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"` // 0 means default (3), negative disables retries
}

type PaymentConfig struct {
	Currency      string         `yaml:"currency"`
	UPIRateLimit  int            `yaml:"upi_rate_limit"`
	UPIRateWindow time.Duration  `yaml:"upi_rate_window"`
	Razorpay      RazorpayConfig `yaml:"razorpay"`
}

type PlanConfig struct {
	ID                 string `yaml:"id"`
	Name               string `yaml:"name"`
	Tier               string `yaml:"tier"`
	MonthlyPrice       int64  `yaml:"monthly_price"`
	AnnualPrice        int64  `yaml:"annual_price"`
	Currency           string `yaml:"currency"`
	GatewayPlanMonthly string `yaml:"gateway_plan_monthly"`
	GatewayPlanAnnual  string `yaml:"gateway_plan_annual"`
}

type AdminConfig struct {
	JWTSecret      string `yaml:"jwt_secret"`
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type SchedulerConfig struct {
	ExpiryCheckCron string `yaml:"expiry_check_cron"`
	StatsCron       string `yaml:"stats_cron"`
	RemindPending   bool   `yaml:"remind_pending"`
}

type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Plans     []PlanConfig    `yaml:"plans"`
	Admin     AdminConfig     `yaml:"admin"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Events    EventsConfig    `yaml:"events"`
	Security  SecurityConfig  `yaml:"security"`
	Workers   int             `yaml:"workers"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies environment overrides
// (a .env file next to the binary is loaded first if present), fills defaults
// and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	// .env is optional; real environment variables always win over it.
	_ = godotenv.Load()
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Payment.Razorpay.KeyID, "RAZORPAY_KEY_ID")
	setString(&cfg.Payment.Razorpay.KeySecret, "RAZORPAY_KEY_SECRET")
	setString(&cfg.Payment.Razorpay.WebhookSecret, "RAZORPAY_WEBHOOK_SECRET")
	setString(&cfg.Admin.JWTSecret, "ADMIN_JWT_SECRET")
	setString(&cfg.Admin.TelegramToken, "TELEGRAM_BOT_TOKEN")
	setString(&cfg.Events.AMQPURL, "AMQP_URL")
	setString(&cfg.Security.EncryptionKey, "ENCRYPTION_KEY")
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_ADMIN_CHAT_ID")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Admin.TelegramChatID = id
		}
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = p
		}
	}
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 20 * time.Second
	}
	if len(cfg.HTTP.CORSOrigins) == 0 {
		cfg.HTTP.CORSOrigins = []string{"*"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "INR"
	}
	if cfg.Payment.UPIRateLimit <= 0 {
		cfg.Payment.UPIRateLimit = 5
	}
	if cfg.Payment.UPIRateWindow <= 0 {
		cfg.Payment.UPIRateWindow = time.Hour
	}
	rp := &cfg.Payment.Razorpay
	if rp.BaseURL == "" {
		rp.BaseURL = "https://api.razorpay.com/v1"
	}
	if rp.Timeout <= 0 {
		rp.Timeout = 10 * time.Second
	}
	if rp.MaxRetries < 0 {
		rp.MaxRetries = 0
	} else if rp.MaxRetries == 0 {
		rp.MaxRetries = 3
	}
	for i := range cfg.Plans {
		if cfg.Plans[i].Currency == "" {
			cfg.Plans[i].Currency = cfg.Payment.Currency
		}
	}
	if cfg.Scheduler.ExpiryCheckCron == "" {
		cfg.Scheduler.ExpiryCheckCron = "@every 1h"
	}
	if cfg.Scheduler.StatsCron == "" {
		cfg.Scheduler.StatsCron = "@every 5m"
	}
	if cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "quoteart.subscriptions"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
}

// Validate performs the minimal checks needed to start serving.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if c.Admin.JWTSecret == "" {
		return errors.New("admin.jwt_secret is required")
	}
	if c.Payment.Razorpay.WebhookSecret == "" {
		return errors.New("payment.razorpay.webhook_secret is required")
	}
	if len(c.Plans) == 0 {
		return errors.New("at least one plan is required")
	}
	seen := make(map[string]bool, len(c.Plans))
	for _, p := range c.Plans {
		if p.ID == "" || p.Name == "" {
			return errors.New("plans: id and name are required")
		}
		if seen[p.ID] {
			return fmt.Errorf("plans: duplicate id %q", p.ID)
		}
		seen[p.ID] = true
	}
	switch n := len(c.Security.EncryptionKey); n {
	case 0, 16, 24, 32:
	default:
		return fmt.Errorf("security.encryption_key must be 16, 24 or 32 bytes; got %d", n)
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
