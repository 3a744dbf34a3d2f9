// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	// first retry delay of gateway verification; doubles per attempt
	retryBaseDelay = 200 * time.Millisecond
	lockMargin     = 5 * time.Second
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Redis       RedisConfig
	AWS         AWSConfig
	Payment     PaymentConfig
	Ledger      LedgerConfig
	Kafka       KafkaConfig
	I18n        I18nConfig
	Frontend    FrontendConfig
	Log         LogConfig
}

type FrontendConfig struct {
	BaseURL string
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
	RateLimit    int // requests per second per client IP
	RateBurst    int
	Metrics      bool

	// AllowedOrigins defaults to the frontend URL when empty.
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver       string // postgres or memory
	URL          string
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL int // in hours
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	ExportPrefix    string
	PresignTTL      time.Duration
}

type PaymentConfig struct {
	Gateway              string // safepay or stripe
	Currency             string
	ReturnURL            string
	StripeSecretKey      string
	StripeWebhookSecret  string
	SafepayBaseURL       string
	SafepayAPIKey        string
	SafepaySecretKey     string
	SafepayWebhookSecret string
	SafepayEnvironment   string
	GatewayTimeout       time.Duration
	GatewayRetries       uint
	// CheckoutSecret signs the item snapshot the storefront hands to a buyer.
	// Empty means checkout trusts the submitted price and seller.
	CheckoutSecret string
}

type LedgerConfig struct {
	// CommissionPercent is the platform share of an admin-seller sale.
	// There is no default; CommissionPercentSet records whether it was given.
	CommissionPercent    decimal.Decimal
	CommissionPercentSet bool
	MinimumPayout        decimal.Decimal
	MaturationDelay      time.Duration
	SweepInterval        time.Duration
	SweepBatchSize       int
	LockBackend          string // local or redis
	LockTTL              time.Duration
}

type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type I18nConfig struct {
	DefaultLocale string
	LocalesPath   string
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	pct, pctSet, err := getEnvAsDecimal("PLATFORM_COMMISSION_PERCENT", decimal.Zero)
	if err != nil {
		return nil, err
	}
	minPayout, _, err := getEnvAsDecimal("MINIMUM_PAYOUT", decimal.NewFromInt(500))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			RateLimit:    getEnvAsInt("RATE_LIMIT_RPS", 10),
			RateBurst:    getEnvAsInt("RATE_LIMIT_BURST", 20),
			Metrics:      getEnvAsBool("METRICS_ENABLED", true),

			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			URL:          getEnv("DATABASE_URL", ""),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "earnings_ledger"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL: getEnvAsInt("JWT_ACCESS_TTL", 24),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "ap-south-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", ""),
			ExportPrefix:    getEnv("AWS_S3_EXPORT_PREFIX", "exports/commissions"),
			PresignTTL:      getEnvAsDuration("AWS_S3_PRESIGN_TTL", 15*time.Minute),
		},
		Payment: PaymentConfig{
			Gateway:              getEnv("PAYMENT_GATEWAY", "safepay"),
			Currency:             strings.ToUpper(getEnv("PAYMENT_CURRENCY", "PKR")),
			ReturnURL:            getEnv("PAYMENT_RETURN_URL", "http://localhost:8080/v1/payments/return"),
			StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
			StripeWebhookSecret:  getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SafepayBaseURL:       getEnv("SAFEPAY_BASE_URL", "https://sandbox.api.getsafepay.com"),
			SafepayAPIKey:        getEnv("SAFEPAY_API_KEY", ""),
			SafepaySecretKey:     getEnv("SAFEPAY_SECRET_KEY", ""),
			SafepayWebhookSecret: getEnv("SAFEPAY_WEBHOOK_SECRET", ""),
			SafepayEnvironment:   getEnv("SAFEPAY_ENVIRONMENT", "sandbox"),
			GatewayTimeout:       getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second),
			GatewayRetries:       uint(getEnvAsInt("GATEWAY_RETRIES", 3)),
			CheckoutSecret:       getEnv("CHECKOUT_SIGNING_SECRET", ""),
		},
		Ledger: LedgerConfig{
			CommissionPercent:    pct,
			CommissionPercentSet: pctSet,
			MinimumPayout:        minPayout,
			MaturationDelay:      getEnvAsDuration("MATURATION_DELAY", 24*time.Hour),
			SweepInterval:        getEnvAsDuration("MATURATION_SWEEP_INTERVAL", time.Minute),
			SweepBatchSize:       getEnvAsInt("MATURATION_BATCH_SIZE", 100),
			LockBackend:          getEnv("LOCK_BACKEND", "local"),
			LockTTL:              getEnvAsDuration("LOCK_TTL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:  getEnvAsList("KAFKA_BROKERS"),
			Topic:    getEnv("KAFKA_TOPIC", "ledger-events"),
			ClientID: getEnv("KAFKA_CLIENT_ID", "earnings-ledger"),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
			LocalesPath:   getEnv("LOCALES_PATH", "./internal/i18n/locales"),
		},
		Frontend: FrontendConfig{
			BaseURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = []string{config.Frontend.BaseURL}
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	if c.Database.Password == "" && c.Database.URL == "" && c.Database.Driver == "postgres" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if !c.Ledger.CommissionPercentSet {
		return fmt.Errorf("PLATFORM_COMMISSION_PERCENT is required")
	}
	if c.Ledger.CommissionPercent.IsNegative() || c.Ledger.CommissionPercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("PLATFORM_COMMISSION_PERCENT must be between 0 and 100, got %s", c.Ledger.CommissionPercent)
	}

	if !c.Ledger.MinimumPayout.IsPositive() {
		return fmt.Errorf("MINIMUM_PAYOUT must be positive")
	}

	if c.Ledger.MaturationDelay < 0 || c.Ledger.SweepInterval <= 0 || c.Ledger.SweepBatchSize <= 0 {
		return fmt.Errorf("maturation delay, sweep interval and batch size must be positive")
	}

	if c.Ledger.LockBackend != "local" && c.Ledger.LockBackend != "redis" {
		return fmt.Errorf("unsupported LOCK_BACKEND %q", c.Ledger.LockBackend)
	}

	switch c.Payment.Gateway {
	case "safepay", "stripe":
	default:
		return fmt.Errorf("unsupported PAYMENT_GATEWAY %q", c.Payment.Gateway)
	}

	if c.Payment.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}

	if c.Payment.CheckoutSecret == "" && c.Environment == "production" {
		return fmt.Errorf("CHECKOUT_SIGNING_SECRET is required in production")
	}

	return nil
}

// CompletionLockTTL is how long a completion may hold its tracker lock: every
// gateway attempt timing out, the backoff between attempts and a margin for
// the database work. LOCK_TTL only ever raises it.
func (c *Config) CompletionLockTTL() time.Duration {
	attempts := c.Payment.GatewayRetries
	if attempts == 0 {
		attempts = 1
	}
	ttl := time.Duration(attempts)*c.Payment.GatewayTimeout + lockMargin
	delay := retryBaseDelay
	for i := uint(1); i < attempts; i++ {
		ttl += delay
		delay *= 2
	}
	if c.Ledger.LockTTL > ttl {
		return c.Ledger.LockTTL
	}
	return ttl
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsDecimal differs from the other helpers: money settings must not fall
// back silently when the value is malformed.
func getEnvAsDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, false, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, true, nil
}
