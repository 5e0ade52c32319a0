package shopauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/shopauth/internal/rate"
)

const resetScope = "reset"

// RequestPasswordReset delivers a forgot-password code to a registered email.
// Unknown emails yield [ErrUserNotFound]. The keyed hash and issue time are
// stored only after accepted delivery.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}

	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	if err := e.limit(ctx, resetScope, func(l *rate.Limiter) error {
		return l.CheckCodeRequest(ctx, resetScope, email, clientIPFromContext(ctx))
	}); err != nil {
		return err
	}

	account, err := e.store.FindAccountByEmail(ctx, email)
	if err != nil {
		err = mapStoreErr(err, ErrUserNotFound)
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", err, func() map[string]string {
			return map[string]string{"email": email}
		})
		return err
	}

	code, codeHash, err := e.newCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	if err := e.deliverCode(ctx, account.Email, e.config.Mail.ForgotPasswordSubject, code); err != nil {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, account.ID, err, nil)
		return err
	}

	if _, err := e.store.UpdateAccount(ctx, account.ID, AccountUpdate{
		SetForgotPasswordCode: &IssuedCode{Hash: codeHash, IssuedAt: e.clock()},
	}); err != nil {
		return mapStoreErr(err, ErrUserNotFound)
	}
	e.resetCodeAttempts(ctx, resetScope, email)

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, account.ID, nil, nil)
	return nil
}

// ConfirmPasswordReset checks the forgot-password code and, in one conditional
// store update, sets the new password hash, marks the account verified and
// clears the code. A replayed code fails with [ErrCodeNotIssued].
func (e *Engine) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}

	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	if err := e.limit(ctx, resetScope, func(l *rate.Limiter) error {
		return l.CheckCodeAttempt(ctx, resetScope, email)
	}); err != nil {
		return err
	}

	fail := func(userID string, err error) error {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, userID, err, nil)
		return err
	}

	account, err := e.store.FindAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return fail("", ErrCodeNotIssued)
		}
		return fmt.Errorf("credential store: %w", err)
	}

	if err := e.checkIssuedCode(account.ForgotPasswordCode, code, e.clock(), e.config.Codes.CodeTTL); err != nil {
		return fail(account.ID, err)
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	verified := true
	if _, err := e.store.ConsumeCode(ctx, account.ID, CodeForgotPassword, account.ForgotPasswordCode.Hash, AccountUpdate{
		PasswordHash:            &hash,
		Verified:                &verified,
		ClearForgotPasswordCode: true,
	}); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return fail(account.ID, ErrCodeInvalid)
		}
		return fmt.Errorf("credential store: %w", err)
	}
	e.resetCodeAttempts(ctx, resetScope, email)
	if e.limiter != nil {
		_ = e.limiter.ResetLogin(ctx, email, clientIPFromContext(ctx))
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, account.ID, nil, nil)
	return nil
}
