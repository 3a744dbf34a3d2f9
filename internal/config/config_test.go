package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("PLATFORM_COMMISSION_PERCENT", "15")
	t.Setenv("DB_DRIVER", "memory")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Ledger.CommissionPercent.Equal(decimal.NewFromInt(15)))
	assert.True(t, cfg.Ledger.MinimumPayout.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 24*time.Hour, cfg.Ledger.MaturationDelay)
	assert.Equal(t, time.Minute, cfg.Ledger.SweepInterval)
	assert.Equal(t, "PKR", cfg.Payment.Currency)
	assert.Equal(t, "local", cfg.Ledger.LockBackend)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoadRequiresCommissionPercent(t *testing.T) {
	t.Setenv("PLATFORM_COMMISSION_PERCENT", "")
	t.Setenv("DB_DRIVER", "memory")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PLATFORM_COMMISSION_PERCENT")
}

func TestLoadRejectsMalformedMoney(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MINIMUM_PAYOUT", "five hundred")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment: "development",
			Database:    DatabaseConfig{Driver: "memory"},
			JWT:         JWTConfig{SecretKey: "secret"},
			Payment:     PaymentConfig{Gateway: "safepay", GatewayTimeout: time.Second},
			Ledger: LedgerConfig{
				CommissionPercent:    decimal.NewFromInt(15),
				CommissionPercentSet: true,
				MinimumPayout:        decimal.NewFromInt(500),
				MaturationDelay:      time.Hour,
				SweepInterval:        time.Minute,
				SweepBatchSize:       10,
				LockBackend:          "local",
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"percent above 100", func(c *Config) { c.Ledger.CommissionPercent = decimal.NewFromInt(101) }, true},
		{"negative percent", func(c *Config) { c.Ledger.CommissionPercent = decimal.NewFromInt(-1) }, true},
		{"zero percent allowed", func(c *Config) { c.Ledger.CommissionPercent = decimal.Zero }, false},
		{"unknown gateway", func(c *Config) { c.Payment.Gateway = "paypal" }, true},
		{"unknown lock backend", func(c *Config) { c.Ledger.LockBackend = "etcd" }, true},
		{"zero minimum payout", func(c *Config) { c.Ledger.MinimumPayout = decimal.Zero }, true},
		{"default jwt secret in production", func(c *Config) {
			c.Environment = "production"
			c.JWT.SecretKey = "your-secret-key-change-in-production"
		}, true},
		{"unsigned checkout in production", func(c *Config) { c.Environment = "production" }, true},
		{"signed checkout in production", func(c *Config) {
			c.Environment = "production"
			c.Payment.CheckoutSecret = "storefront"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "ledger", Password: "pw", Database: "earnings", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=ledger password=pw dbname=earnings sslmode=disable TimeZone=UTC", d.DSN())

	d.URL = "postgres://ledger:pw@db/earnings"
	assert.Equal(t, d.URL, d.DSN())
}

func TestAllowedOriginsDefaultToFrontend(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FRONTEND_URL", "https://shop.example")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.example"}, cfg.Server.AllowedOrigins)
}

func TestCompletionLockTTLCoversRetries(t *testing.T) {
	cfg := &Config{
		Payment: PaymentConfig{GatewayTimeout: 10 * time.Second, GatewayRetries: 3},
		Ledger:  LedgerConfig{LockTTL: 30 * time.Second},
	}
	// 3 x 10s attempts, 200ms + 400ms backoff, 5s margin
	assert.Equal(t, 35600*time.Millisecond, cfg.CompletionLockTTL())

	cfg.Ledger.LockTTL = time.Minute
	assert.Equal(t, time.Minute, cfg.CompletionLockTTL())

	cfg.Ledger.LockTTL = 0
	cfg.Payment.GatewayRetries = 0
	assert.Equal(t, 15*time.Second, cfg.CompletionLockTTL())
}
