package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	AES         AESConfig         `mapstructure:"aes"`
	Log         LogConfig         `mapstructure:"log"`
	Webhook     WebhookConfig     `mapstructure:"webhook"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Breaker     BreakerConfig     `mapstructure:"breaker"`
	Provider    ProviderConfig    `mapstructure:"provider"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// WebhookConfig configures outbound merchant webhook delivery.
type WebhookConfig struct {
	Secret        string        `mapstructure:"secret"` // HMAC signing key, required in production
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryDelays   []int         `mapstructure:"retry_delays"` // milliseconds, one per retry attempt
	AllowHTTP     bool          `mapstructure:"allow_http"`   // dev-only relaxation of https-only rule
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// RetryDelayDurations converts the millisecond schedule to durations.
func (w WebhookConfig) RetryDelayDurations() []time.Duration {
	out := make([]time.Duration, len(w.RetryDelays))
	for i, ms := range w.RetryDelays {
		out[i] = time.Duration(ms) * time.Millisecond
	}
	return out
}

// IdempotencyConfig configures the two-tier idempotency engine.
type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// BreakerConfig configures the per-provider circuit breaker.
type BreakerConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

// ProviderConfig configures the simulated payment processor adapters.
type ProviderConfig struct {
	StripeWebhookSecret string `mapstructure:"stripe_webhook_secret"`
	VNPaySecret         string `mapstructure:"vnpay_secret"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: SPG_ (Secure Payment Gateway).
// Nested keys use underscore: SPG_DATABASE_HOST, SPG_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "payment_gateway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "payment-orchestrator")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.max_retries", 5)
	v.SetDefault("webhook.retry_delays", []int{60000, 300000, 900000, 3600000})
	v.SetDefault("webhook.allow_http", false)
	v.SetDefault("webhook.sweep_interval", "60s")
	v.SetDefault("idempotency.ttl", "24h")
	v.SetDefault("breaker.timeout", "10s")
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout", "30s")
	v.SetDefault("provider.stripe_webhook_secret", "")
	v.SetDefault("provider.vnpay_secret", "")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: SPG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("SPG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate fails fast when running in release mode without the secrets
// the service cannot safely operate without.
func (c *Config) Validate() error {
	if c.Server.Mode != "release" {
		return nil
	}
	var missing []string
	if c.JWT.Secret == "" {
		missing = append(missing, "jwt.secret")
	}
	if c.AES.Key == "" {
		missing = append(missing, "aes.key")
	}
	if c.Webhook.Secret == "" {
		missing = append(missing, "webhook.secret")
	}
	if c.Database.Password == "" {
		missing = append(missing, "database.password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required production secrets: %s", strings.Join(missing, ", "))
	}
	return nil
}
