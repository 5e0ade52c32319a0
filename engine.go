package shopauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/shopauth/internal"
	"github.com/MrEthical07/shopauth/internal/rate"
	"github.com/MrEthical07/shopauth/jwt"
	"github.com/MrEthical07/shopauth/password"
)

// Engine runs the signup, sign-in, verification-code and password flows
// against an injected [CredentialStore] and [Mailer].
//
// Engine instances are built by [Builder] and are safe for concurrent use.
type Engine struct {
	config     Config
	store      CredentialStore
	mailer     Mailer
	limiter    *rate.Limiter
	audit      *auditDispatcher
	metrics    *Metrics
	hasher     *password.Hasher
	jwtManager *jwt.Manager
	now        func() time.Time

	// dummyHash is compared against on sign-in for unknown emails.
	dummyHash string
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events lost to backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// SessionTTL is the lifetime of issued session tokens.
func (e *Engine) SessionTTL() time.Duration {
	return e.config.JWT.TTL
}

// Cookie returns the session cookie settings.
func (e *Engine) Cookie() CookieConfig {
	return e.config.Cookie
}

// Store exposes the configured credential store to supervisors such as [PendingSweeper].
func (e *Engine) Store() CredentialStore {
	return e.store
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil || e.jwtManager == nil || e.hasher == nil {
		return ErrEngineNotReady
	}
	return nil
}

// ParseToken verifies a session token and returns its identity.
func (e *Engine) ParseToken(token string) (*Identity, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMissing
	}

	claims, err := e.jwtManager.Parse(token)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, ErrTokenInvalid
	}

	role, err := ParseRole(claims.Role)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, ErrTokenInvalid
	}

	identity := &Identity{
		UserID:   claims.UserID,
		Name:     claims.Name,
		Email:    claims.Email,
		Verified: claims.Verified,
		Role:     role,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

func (e *Engine) issueSession(account Account) (*SessionResult, error) {
	token, expiresAt, err := e.jwtManager.Issue(jwt.Subject{
		UserID:   account.ID,
		Name:     account.Name,
		Email:    account.Email,
		Verified: account.Verified,
		Role:     string(account.Role),
	})
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	e.metricInc(MetricSessionIssued)
	return &SessionResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Profile:   account.Profile(),
	}, nil
}

// newCode returns a fresh plaintext code and its keyed hash.
func (e *Engine) newCode() (string, string, error) {
	code, err := internal.NewOTP(e.config.Codes.Digits)
	if err != nil {
		return "", "", err
	}
	return code, internal.HashCode(e.config.Codes.HMACKey, code), nil
}

func (e *Engine) hashCode(code string) string {
	return internal.HashCode(e.config.Codes.HMACKey, code)
}

// deliverCode sends code to addr. A transport that answers without listing
// addr as accepted yields ErrDeliveryFailed.
func (e *Engine) deliverCode(ctx context.Context, addr, subject, code string) error {
	if e.mailer == nil {
		return ErrEngineNotReady
	}

	receipt, err := e.mailer.Send(ctx, MailMessage{
		To:      addr,
		Subject: subject,
		HTML:    "<h1>" + code + "</h1>",
	})
	if err != nil {
		e.metricInc(MetricDeliveryFailure)
		return fmt.Errorf("mail transport: %w", err)
	}
	if !receipt.Accepts(addr) {
		e.metricInc(MetricDeliveryFailure)
		return ErrDeliveryFailed
	}
	return nil
}

// limit runs check against the Redis limiter when limits are enabled and
// maps its errors onto engine errors.
func (e *Engine) limit(ctx context.Context, scope string, check func(*rate.Limiter) error) error {
	if e.limiter == nil {
		return nil
	}

	err := check(e.limiter)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.emitRateLimit(ctx, scope)
		return ErrRateLimited
	default:
		return fmt.Errorf("attempt limiter: %w", err)
	}
}

func (e *Engine) resetCodeAttempts(ctx context.Context, scope, email string) {
	if e.limiter == nil {
		return
	}
	_ = e.limiter.ResetCodeAttempts(ctx, scope, email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapStoreErr(err error, notFound error) error {
	if errors.Is(err, ErrRecordNotFound) {
		return notFound
	}
	return fmt.Errorf("credential store: %w", err)
}
