package shopauth

import (
	"errors"
	"net/http"
	"time"
)

// Config holds every tunable of the [Engine].
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Codes    CodeConfig
	Cleanup  CleanupConfig
	Limits   LimitConfig
	Mail     MailConfig
	Cookie   CookieConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures session token issuance.
type JWTConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the secret hasher used for new hashes. Hashes
// produced by either algorithm always verify.
type PasswordConfig struct {
	Algorithm         string // "bcrypt" (default) or "argon2id"
	BcryptCost        int
	Argon2Memory      uint32 // in KB
	Argon2Time        uint32
	Argon2Parallelism uint8
	UpgradeOnLogin    bool
}

/*
====================================
CODE CONFIG
====================================
*/

// CodeConfig controls OTP generation, keyed hashing and expiry windows.
type CodeConfig struct {
	HMACKey        []byte
	Digits         int
	OTPTTL         time.Duration // signup OTP lifetime
	CodeTTL        time.Duration // verification and forgot-password code lifetime
	ResendCooldown time.Duration
}

// CleanupConfig controls the abandoned pending-signup sweep.
type CleanupConfig struct {
	Interval         time.Duration
	PendingRetention time.Duration
}

/*
====================================
LIMIT CONFIG
====================================
*/

// LimitConfig configures the Redis fixed-window attempt limiters.
type LimitConfig struct {
	Enabled           bool
	EnableIPThrottle  bool
	RedisPrefix       string
	MaxLoginAttempts  int
	LoginCooldown     time.Duration
	MaxCodeRequests   int
	CodeRequestWindow time.Duration
	MaxCodeAttempts   int
	CodeAttemptWindow time.Duration
}

// MailConfig holds delivery copy.
type MailConfig struct {
	VerificationSubject   string
	ForgotPasswordSubject string
}

// CookieConfig shapes the session cookie set on sign-in.
type CookieConfig struct {
	Name     string
	Path     string
	Secure   bool
	SameSite http.SameSite
}

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. Secrets (JWT key, HMAC key)
// are left empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TTL:           8 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "shopauth",
		},
		Password: PasswordConfig{
			Algorithm:         "bcrypt",
			BcryptCost:        12,
			Argon2Memory:      65536,
			Argon2Time:        3,
			Argon2Parallelism: 2,
			UpgradeOnLogin:    false,
		},
		Codes: CodeConfig{
			Digits:         6,
			OTPTTL:         5 * time.Minute,
			CodeTTL:        5 * time.Minute,
			ResendCooldown: 60 * time.Second,
		},
		Cleanup: CleanupConfig{
			Interval:         10 * time.Minute,
			PendingRetention: 24 * time.Hour,
		},
		Limits: LimitConfig{
			Enabled:           true,
			EnableIPThrottle:  true,
			RedisPrefix:       "sa",
			MaxLoginAttempts:  5,
			LoginCooldown:     15 * time.Minute,
			MaxCodeRequests:   5,
			CodeRequestWindow: 15 * time.Minute,
			MaxCodeAttempts:   5,
			CodeAttemptWindow: 5 * time.Minute,
		},
		Mail: MailConfig{
			VerificationSubject:   "Verification code",
			ForgotPasswordSubject: "Forgot Password Code",
		},
		Cookie: CookieConfig{
			Name:     "Authorization",
			Path:     "/",
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Codes.HMACKey = cloneBytes(cfg.Codes.HMACKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.TTL <= 0 {
		return errors.New("JWT TTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	switch c.Password.Algorithm {
	case "bcrypt":
		if c.Password.BcryptCost < 10 || c.Password.BcryptCost > 31 {
			return errors.New("Password BcryptCost must be between 10 and 31")
		}
	case "argon2id":
		if c.Password.Argon2Memory < 8*1024 {
			return errors.New("Password Argon2Memory must be >= 8192 KB")
		}
		if c.Password.Argon2Time < 1 || c.Password.Argon2Parallelism < 1 {
			return errors.New("Password Argon2Time and Argon2Parallelism must be >= 1")
		}
	default:
		return errors.New("unsupported password algorithm")
	}

	// Codes
	if len(c.Codes.HMACKey) < 16 {
		return errors.New("Codes HMACKey must be at least 16 bytes")
	}
	if c.Codes.Digits < 4 || c.Codes.Digits > 10 {
		return errors.New("Codes Digits must be between 4 and 10")
	}
	if c.Codes.OTPTTL <= 0 || c.Codes.CodeTTL <= 0 {
		return errors.New("Codes OTPTTL and CodeTTL must be > 0")
	}
	if c.Codes.ResendCooldown < 0 {
		return errors.New("Codes ResendCooldown must be >= 0")
	}
	if c.Codes.ResendCooldown >= c.Codes.OTPTTL {
		return errors.New("Codes ResendCooldown must be shorter than OTPTTL")
	}

	// Cleanup
	if c.Cleanup.Interval <= 0 {
		return errors.New("Cleanup Interval must be > 0")
	}
	if c.Cleanup.PendingRetention <= c.Codes.OTPTTL {
		return errors.New("Cleanup PendingRetention must be longer than Codes OTPTTL")
	}

	// Limits
	if c.Limits.Enabled {
		if c.Limits.MaxLoginAttempts <= 0 || c.Limits.MaxCodeRequests <= 0 || c.Limits.MaxCodeAttempts <= 0 {
			return errors.New("Limits attempt budgets must be > 0")
		}
		if c.Limits.LoginCooldown <= 0 || c.Limits.CodeRequestWindow <= 0 || c.Limits.CodeAttemptWindow <= 0 {
			return errors.New("Limits windows must be > 0")
		}
	}

	// Cookie
	if c.Cookie.Name == "" {
		return errors.New("Cookie Name must be set")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
