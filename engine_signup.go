package shopauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/shopauth/internal"
	"github.com/MrEthical07/shopauth/internal/rate"
	"github.com/google/uuid"
)

const signupScope = "signup"

// Signup validates the request, stores a PendingAccount holding the keyed hash
// of a fresh OTP and delivers the OTP to the email address. No account exists
// and no session is issued until [Engine.VerifySignupOTP] succeeds.
//
// An existing account yields [ErrAccountExists]; an unexpired pending signup
// yields [ErrSignupPending]. If the mail transport does not accept the address
// the pending record is removed again and [ErrDeliveryFailed] is returned.
func (e *Engine) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	if err := e.limit(ctx, signupScope, func(l *rate.Limiter) error {
		return l.CheckCodeRequest(ctx, signupScope, email, clientIPFromContext(ctx))
	}); err != nil {
		return nil, err
	}

	if _, err := e.store.FindAccountByEmail(ctx, email); err == nil {
		e.metricInc(MetricSignupDuplicate)
		e.emitAudit(ctx, auditEventSignup, false, "", ErrAccountExists, func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil, ErrAccountExists
	} else if !errors.Is(err, ErrRecordNotFound) {
		return nil, mapStoreErr(err, ErrUserNotFound)
	}

	now := e.clock()
	pending, err := e.store.FindPending(ctx, email)
	switch {
	case err == nil:
		if !pending.Expired(now) {
			e.metricInc(MetricSignupDuplicate)
			e.emitAudit(ctx, auditEventSignup, false, "", ErrSignupPending, func() map[string]string {
				return map[string]string{"email": email}
			})
			return nil, ErrSignupPending
		}
		if _, err := e.store.DeletePendingIfExpired(ctx, email, now); err != nil {
			return nil, fmt.Errorf("credential store: %w", err)
		}
	case !errors.Is(err, ErrRecordNotFound):
		return nil, mapStoreErr(err, ErrPendingNotFound)
	}

	passwordHash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	code, codeHash, err := e.newCode()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	record := PendingAccount{
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		OTPHash:      codeHash,
		OTPIssuedAt:  now,
		OTPExpiresAt: now.Add(e.config.Codes.OTPTTL),
		CreatedAt:    now,
	}
	if err := e.store.CreatePending(ctx, record); err != nil {
		if errors.Is(err, ErrDuplicateRecord) {
			e.metricInc(MetricSignupDuplicate)
			return nil, ErrSignupPending
		}
		return nil, fmt.Errorf("credential store: %w", err)
	}

	if err := e.deliverCode(ctx, email, e.config.Mail.VerificationSubject, code); err != nil {
		_ = e.store.DeletePending(context.WithoutCancel(ctx), email)
		e.emitAudit(ctx, auditEventSignup, false, "", err, func() map[string]string {
			return map[string]string{"email": email, "reason": "delivery"}
		})
		return nil, err
	}

	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, auditEventSignup, true, "", nil, func() map[string]string {
		return map[string]string{"email": email}
	})

	return &SignupResult{Email: email, ExpiresAt: record.OTPExpiresAt}, nil
}

// VerifySignupOTP promotes the pending signup for email to a verified account
// when code matches and has not expired, then issues a session.
//
// A missing pending record and a wrong code both yield [ErrOTPInvalid] and
// leave state untouched. A correct code past its expiry yields [ErrOTPExpired].
// The promotion is conditional on the stored hash, so concurrent submissions
// of the same code create at most one account.
func (e *Engine) VerifySignupOTP(ctx context.Context, email, code string) (*SessionResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	if err := e.limit(ctx, signupScope, func(l *rate.Limiter) error {
		return l.CheckCodeAttempt(ctx, signupScope, email)
	}); err != nil {
		return nil, err
	}

	fail := func(err error) (*SessionResult, error) {
		if errors.Is(err, ErrOTPExpired) {
			e.metricInc(MetricOTPExpired)
		}
		e.metricInc(MetricOTPVerifyFailure)
		e.emitAudit(ctx, auditEventSignupOTPVerify, false, "", err, func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil, err
	}

	if !e.wellFormedCode(code) {
		return fail(ErrOTPInvalid)
	}

	pending, err := e.store.FindPending(ctx, email)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return fail(ErrOTPInvalid)
		}
		return nil, fmt.Errorf("credential store: %w", err)
	}

	if !internal.CodeHashEqual(e.hashCode(code), pending.OTPHash) {
		return fail(ErrOTPInvalid)
	}

	now := e.clock()
	if pending.Expired(now) {
		return fail(ErrOTPExpired)
	}

	account, err := e.store.PromotePending(ctx, email, pending.OTPHash, Account{
		ID:           uuid.NewString(),
		Email:        pending.Email,
		Name:         pending.Name,
		PasswordHash: pending.PasswordHash,
		Role:         RoleUser,
		Verified:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrRecordNotFound):
			return fail(ErrOTPInvalid)
		case errors.Is(err, ErrDuplicateRecord):
			return fail(ErrAccountExists)
		}
		return nil, fmt.Errorf("credential store: %w", err)
	}

	e.resetCodeAttempts(ctx, signupScope, email)

	session, err := e.issueSession(account)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricOTPVerifySuccess)
	e.emitAudit(ctx, auditEventSignupOTPVerify, true, account.ID, nil, nil)

	return session, nil
}

// ResendSignupOTP issues a new OTP for a pending signup once the resend
// cooldown has elapsed. The new hash replaces the old one only after the mail
// transport accepted the address, so the previous code stops verifying exactly
// when the new one is delivered.
func (e *Engine) ResendSignupOTP(ctx context.Context, email string) (*SignupResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	if err := e.limit(ctx, signupScope, func(l *rate.Limiter) error {
		return l.CheckCodeRequest(ctx, signupScope, email, clientIPFromContext(ctx))
	}); err != nil {
		return nil, err
	}

	pending, err := e.store.FindPending(ctx, email)
	if err != nil {
		return nil, mapStoreErr(err, ErrPendingNotFound)
	}

	now := e.clock()
	if now.Sub(pending.OTPIssuedAt) < e.config.Codes.ResendCooldown {
		e.metricInc(MetricResendCooldown)
		e.emitAudit(ctx, auditEventSignupOTPResend, false, "", ErrResendCooldown, func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil, ErrResendCooldown
	}

	code, codeHash, err := e.newCode()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	if err := e.deliverCode(ctx, email, e.config.Mail.VerificationSubject, code); err != nil {
		e.emitAudit(ctx, auditEventSignupOTPResend, false, "", err, func() map[string]string {
			return map[string]string{"email": email, "reason": "delivery"}
		})
		return nil, err
	}

	expiresAt := now.Add(e.config.Codes.OTPTTL)
	if err := e.store.ReplacePendingOTP(ctx, email, codeHash, now, expiresAt); err != nil {
		return nil, mapStoreErr(err, ErrPendingNotFound)
	}
	e.resetCodeAttempts(ctx, signupScope, email)

	e.metricInc(MetricOTPResend)
	e.emitAudit(ctx, auditEventSignupOTPResend, true, "", nil, func() map[string]string {
		return map[string]string{"email": email}
	})

	return &SignupResult{Email: email, ExpiresAt: expiresAt}, nil
}
