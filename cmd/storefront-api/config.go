package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/shopauth"
	"github.com/spf13/viper"
)

// AppConfig is the process configuration. Values come from an optional YAML
// file, then SHOPAUTH_* environment variables (SHOPAUTH_HTTP_ADDR and so on).
type AppConfig struct {
	Env      string         `mapstructure:"env"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Mail     MailConfig     `mapstructure:"mail"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
	Audit    AuditConfig    `mapstructure:"audit"`
}

type HTTPConfig struct {
	Addr               string        `mapstructure:"addr"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	TrustProxy         bool          `mapstructure:"trust_proxy"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
}

// DatabaseConfig selects the credential store. An empty URL uses the
// in-memory store, which is only allowed outside production.
type DatabaseConfig struct {
	URL     string `mapstructure:"url"`
	Migrate bool   `mapstructure:"migrate"`
}

// RedisConfig backs the attempt limiters. An empty Addr starts an embedded
// miniredis outside production.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	CodeHMACKey    string        `mapstructure:"code_hmac_key"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	OTPTTL         time.Duration `mapstructure:"otp_ttl"`
	CodeTTL        time.Duration `mapstructure:"code_ttl"`
	ResendCooldown time.Duration `mapstructure:"resend_cooldown"`
}

type MailConfig struct {
	// Transport is one of log, smtp or brevo.
	Transport string        `mapstructure:"transport"`
	From      string        `mapstructure:"from"`
	FromName  string        `mapstructure:"from_name"`
	SMTP      SMTPConfig    `mapstructure:"smtp"`
	Brevo     BrevoConfig   `mapstructure:"brevo"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

type SMTPConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	RequireTLS bool          `mapstructure:"require_tls"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type BrevoConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type CleanupConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Retention time.Duration `mapstructure:"retention"`
}

type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
}

// Production reports whether the process runs with production settings.
func (c *AppConfig) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

func setDefaults(v *viper.Viper) {
	def := shopauth.DefaultConfig()

	v.SetDefault("env", "development")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.trust_proxy", false)
	v.SetDefault("http.rate_limit_per_minute", 60)
	v.SetDefault("http.rate_limit_burst", 10)

	v.SetDefault("database.url", "")
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", def.Limits.RedisPrefix)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", def.JWT.TTL)
	v.SetDefault("auth.code_hmac_key", "")
	v.SetDefault("auth.bcrypt_cost", def.Password.BcryptCost)
	v.SetDefault("auth.otp_ttl", def.Codes.OTPTTL)
	v.SetDefault("auth.code_ttl", def.Codes.CodeTTL)
	v.SetDefault("auth.resend_cooldown", def.Codes.ResendCooldown)

	v.SetDefault("mail.transport", "log")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.from_name", "Storefront")
	v.SetDefault("mail.smtp.host", "")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.smtp.username", "")
	v.SetDefault("mail.smtp.password", "")
	v.SetDefault("mail.smtp.require_tls", true)
	v.SetDefault("mail.smtp.timeout", 10*time.Second)
	v.SetDefault("mail.brevo.api_key", "")
	v.SetDefault("mail.brevo.endpoint", "")
	v.SetDefault("mail.breaker.max_failures", 5)
	v.SetDefault("mail.breaker.interval", time.Minute)
	v.SetDefault("mail.breaker.timeout", 30*time.Second)

	v.SetDefault("cleanup.interval", def.Cleanup.Interval)
	v.SetDefault("cleanup.retention", def.Cleanup.PendingRetention)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.buffer_size", def.Audit.BufferSize)
}

// LoadConfig reads path when non-empty and overlays the environment.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SHOPAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the engine config cannot check on its own.
func (c *AppConfig) Validate() error {
	switch c.Mail.Transport {
	case "log":
		if c.Production() {
			return errors.New("mail.transport=log is not allowed in production")
		}
	case "smtp":
		if c.Mail.SMTP.Host == "" || c.Mail.From == "" {
			return errors.New("mail.smtp.host and mail.from are required for smtp")
		}
	case "brevo":
		if c.Mail.Brevo.APIKey == "" || c.Mail.From == "" {
			return errors.New("mail.brevo.api_key and mail.from are required for brevo")
		}
	default:
		return fmt.Errorf("unsupported mail.transport %q", c.Mail.Transport)
	}

	if c.Production() {
		if c.Database.URL == "" {
			return errors.New("database.url is required in production")
		}
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required in production")
		}
	}
	if c.Auth.JWTSecret == "" || c.Auth.CodeHMACKey == "" {
		return errors.New("auth.jwt_secret and auth.code_hmac_key are required")
	}
	return nil
}

// EngineConfig maps the process settings onto the engine config.
func (c *AppConfig) EngineConfig() (shopauth.Config, error) {
	cfg := shopauth.DefaultConfig()

	cfg.JWT.TTL = c.Auth.TokenTTL
	cfg.JWT.PrivateKey = []byte(c.Auth.JWTSecret)
	cfg.Password.BcryptCost = c.Auth.BcryptCost
	cfg.Codes.HMACKey = []byte(c.Auth.CodeHMACKey)
	cfg.Codes.OTPTTL = c.Auth.OTPTTL
	cfg.Codes.CodeTTL = c.Auth.CodeTTL
	cfg.Codes.ResendCooldown = c.Auth.ResendCooldown
	cfg.Cleanup.Interval = c.Cleanup.Interval
	cfg.Cleanup.PendingRetention = c.Cleanup.Retention
	cfg.Limits.RedisPrefix = c.Redis.Prefix
	cfg.Cookie.Secure = c.Production()
	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize

	if err := cfg.Validate(); err != nil {
		return shopauth.Config{}, fmt.Errorf("engine config: %w", err)
	}
	return cfg, nil
}
