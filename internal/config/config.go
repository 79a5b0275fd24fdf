package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Mode selects which Paystack key pair is used.
type Mode string

const (
	ModeLive Mode = "live"
	ModeTest Mode = "test"
)

func (m Mode) Valid() bool {
	return m == ModeLive || m == ModeTest
}

// KeyPair holds the {mode}_public_key / {mode}_secret_key settings.
type KeyPair struct {
	PublicKey string
	SecretKey string
}

type Config struct {
	Environment Environment
	Port        string
	AppURL      string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	ReferenceSecret string

	APIMode         Mode
	LiveKeys        KeyPair
	TestKeys        KeyPair
	WebhooksEnabled bool
	PaystackBaseURL string
	TrackerURL      string
	ExtraHeaders    map[string]string

	RateLimit           int
	EnableRateLimits    bool
	StaleTransactionAge time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
}

func Load() (*Config, error) {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if env != "production" {
		if err := godotenv.Load(); err != nil {
			// a missing .env is fine as long as the environment carries the settings
			_ = godotenv.Load("../../.env")
		}
	}

	cfg := &Config{
		Environment: Environment(env),
		Port:        getEnv("PORT", "8080"),
		AppURL:      strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		ReferenceSecret: getEnv("REFERENCE_SECRET", ""),

		APIMode: Mode(strings.ToLower(getEnv("PAYSTACK_API_MODE", string(ModeTest)))),
		LiveKeys: KeyPair{
			PublicKey: getEnv("PAYSTACK_LIVE_PUBLIC_KEY", ""),
			SecretKey: getEnv("PAYSTACK_LIVE_SECRET_KEY", ""),
		},
		TestKeys: KeyPair{
			PublicKey: getEnv("PAYSTACK_TEST_PUBLIC_KEY", ""),
			SecretKey: getEnv("PAYSTACK_TEST_SECRET_KEY", ""),
		},
		WebhooksEnabled: getEnvAsBool("PAYSTACK_WEBHOOKS_ENABLED", true),
		PaystackBaseURL: getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co/"),
		TrackerURL:      getEnv("PAYSTACK_TRACKER_URL", "https://plugin-tracker.paystackintegrations.com/"),
		ExtraHeaders:    parseHeaders(getEnv("PAYSTACK_EXTRA_HEADERS", "")),

		RateLimit:           getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
		EnableRateLimits:    getEnvAsBool("ENABLE_RATE_LIMITS", true),
		StaleTransactionAge: getEnvAsDuration("STALE_TRANSACTION_AGE", 24*time.Hour),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		FromEmail:    getEnv("FROM_EMAIL", "noreply@example.com"),
		FromName:     getEnv("FROM_NAME", "Payments"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.ReferenceSecret == "" {
		return fmt.Errorf("REFERENCE_SECRET is required")
	}

	if !c.APIMode.Valid() {
		return fmt.Errorf("PAYSTACK_API_MODE must be 'live' or 'test', got %q", c.APIMode)
	}

	if c.Keys(c.APIMode).SecretKey == "" {
		return fmt.Errorf("PAYSTACK_%s_SECRET_KEY is required", strings.ToUpper(string(c.APIMode)))
	}

	if c.SMTPHost != "" || c.SMTPUsername != "" || c.SMTPPassword != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("incomplete SMTP configuration: all SMTP fields must be set")
		}
	}

	return nil
}

// Keys returns the key pair for mode. Unknown modes get the configured mode's keys.
func (c *Config) Keys(mode Mode) KeyPair {
	switch mode {
	case ModeLive:
		return c.LiveKeys
	case ModeTest:
		return c.TestKeys
	}
	if mode != c.APIMode && c.APIMode.Valid() {
		return c.Keys(c.APIMode)
	}
	return KeyPair{}
}

func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

func (c *Config) IsStaging() bool {
	return c.Environment == Staging
}

func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// parseHeaders reads "Name:Value,Name:Value". Malformed pairs are skipped.
func parseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers
}
