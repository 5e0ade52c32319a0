package shopauth

import "time"

// SecurityReport summarizes the security posture of a built engine. It holds
// no secrets and is meant for startup logs and admin diagnostics.
type SecurityReport struct {
	SigningAlgorithm   string
	TokenTTL           time.Duration
	PasswordAlgorithm  string
	BcryptCost         int
	HashUpgradeOnLogin bool
	OTPTTL             time.Duration
	CodeTTL            time.Duration
	ResendCooldown     time.Duration
	RateLimitingActive bool
	IPThrottleActive   bool
	SecureCookie       bool
	AuditEnabled       bool
	PendingRetention   time.Duration
}

// SecurityReport returns the effective settings.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	c := e.config
	return SecurityReport{
		SigningAlgorithm:   c.JWT.SigningMethod,
		TokenTTL:           c.JWT.TTL,
		PasswordAlgorithm:  c.Password.Algorithm,
		BcryptCost:         c.Password.BcryptCost,
		HashUpgradeOnLogin: c.Password.UpgradeOnLogin,
		OTPTTL:             c.Codes.OTPTTL,
		CodeTTL:            c.Codes.CodeTTL,
		ResendCooldown:     c.Codes.ResendCooldown,
		RateLimitingActive: e.limiter != nil,
		IPThrottleActive:   e.limiter != nil && c.Limits.EnableIPThrottle,
		SecureCookie:       c.Cookie.Secure,
		AuditEnabled:       c.Audit.Enabled,
		PendingRetention:   c.Cleanup.PendingRetention,
	}
}
