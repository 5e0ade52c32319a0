package shopauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/shopauth/internal/rate"
)

const loginScope = "login"

// SignIn verifies email and password and issues a session.
//
// An unknown email and a wrong password both yield [ErrInvalidCredentials].
// Unknown emails are still compared against a fixed hash so the response time
// does not reveal whether the account exists.
func (e *Engine) SignIn(ctx context.Context, email, secret string) (*SessionResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricSignInLatency, time.Since(start))
		}
	}()

	email = normalizeEmail(email)
	if email == "" || secret == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	ip := clientIPFromContext(ctx)
	if err := e.limit(ctx, loginScope, func(l *rate.Limiter) error {
		return l.CheckLogin(ctx, email, ip)
	}); err != nil {
		return nil, err
	}

	account, err := e.store.FindAccountByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			return nil, fmt.Errorf("credential store: %w", err)
		}
		_, _ = e.hasher.Verify(secret, e.dummyHash)
		return nil, e.signInFailed(ctx, "", email, ip, "unknown_email")
	}

	ok, err := e.hasher.Verify(secret, account.PasswordHash)
	if err != nil || !ok {
		return nil, e.signInFailed(ctx, account.ID, email, ip, "password_mismatch")
	}

	if e.limiter != nil {
		_ = e.limiter.ResetLogin(ctx, email, ip)
	}
	e.maybeUpgradeHash(ctx, account, secret)

	session, err := e.issueSession(account)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricSignInSuccess)
	e.emitAudit(ctx, auditEventSignIn, true, account.ID, nil, nil)

	return session, nil
}

func (e *Engine) signInFailed(ctx context.Context, userID, email, ip, reason string) error {
	if e.limiter != nil {
		if err := e.limiter.IncrementLogin(ctx, email, ip); errors.Is(err, rate.ErrRateLimited) {
			e.emitRateLimit(ctx, loginScope)
		}
	}

	e.metricInc(MetricSignInFailure)
	e.emitAudit(ctx, auditEventSignIn, false, userID, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"email": email, "reason": reason}
	})
	return ErrInvalidCredentials
}

// maybeUpgradeHash re-hashes secret with the current algorithm and costs after
// a successful sign-in. Failures are ignored; the old hash keeps working.
func (e *Engine) maybeUpgradeHash(ctx context.Context, account Account, secret string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(account.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(secret)
	if err != nil {
		return
	}
	_, _ = e.store.UpdateAccount(ctx, account.ID, AccountUpdate{PasswordHash: &hash})
}
