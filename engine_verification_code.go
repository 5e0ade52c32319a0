package shopauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/shopauth/internal/rate"
)

const verifyScope = "verify"

// SendVerificationCode delivers a code that marks an unverified account as
// verified. The keyed hash is stored only after the mail transport accepted
// the address, so a failed delivery leaves any earlier code in place.
func (e *Engine) SendVerificationCode(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}

	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	if err := e.limit(ctx, verifyScope, func(l *rate.Limiter) error {
		return l.CheckCodeRequest(ctx, verifyScope, email, clientIPFromContext(ctx))
	}); err != nil {
		return err
	}

	account, err := e.store.FindAccountByEmail(ctx, email)
	if err != nil {
		return mapStoreErr(err, ErrUserNotFound)
	}
	if account.Verified {
		return ErrAlreadyVerified
	}

	code, codeHash, err := e.newCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	if err := e.deliverCode(ctx, account.Email, e.config.Mail.VerificationSubject, code); err != nil {
		e.emitAudit(ctx, auditEventVerificationCodeSend, false, account.ID, err, nil)
		return err
	}

	if _, err := e.store.UpdateAccount(ctx, account.ID, AccountUpdate{
		SetVerificationCode: &IssuedCode{Hash: codeHash, IssuedAt: e.clock()},
	}); err != nil {
		return mapStoreErr(err, ErrUserNotFound)
	}
	e.resetCodeAttempts(ctx, verifyScope, email)

	e.metricInc(MetricVerificationCodeSent)
	e.emitAudit(ctx, auditEventVerificationCodeSend, true, account.ID, nil, nil)
	return nil
}

// ConfirmVerificationCode marks the account verified and clears the code when
// code is the one most recently delivered and is younger than the code TTL.
func (e *Engine) ConfirmVerificationCode(ctx context.Context, email, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if err := validateEmail(email); err != nil {
		return err
	}

	if err := e.limit(ctx, verifyScope, func(l *rate.Limiter) error {
		return l.CheckCodeAttempt(ctx, verifyScope, email)
	}); err != nil {
		return err
	}

	fail := func(userID string, err error) error {
		e.metricInc(MetricVerificationCodeFailure)
		e.emitAudit(ctx, auditEventVerificationCodeVerify, false, userID, err, nil)
		return err
	}

	account, err := e.store.FindAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return fail("", ErrCodeNotIssued)
		}
		return fmt.Errorf("credential store: %w", err)
	}
	if account.Verified {
		return fail(account.ID, ErrAlreadyVerified)
	}

	if err := e.checkIssuedCode(account.VerificationCode, code, e.clock(), e.config.Codes.CodeTTL); err != nil {
		return fail(account.ID, err)
	}

	verified := true
	if _, err := e.store.ConsumeCode(ctx, account.ID, CodeVerification, account.VerificationCode.Hash, AccountUpdate{
		Verified:              &verified,
		ClearVerificationCode: true,
	}); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return fail(account.ID, ErrCodeInvalid)
		}
		return fmt.Errorf("credential store: %w", err)
	}
	e.resetCodeAttempts(ctx, verifyScope, email)

	e.metricInc(MetricVerificationCodeSuccess)
	e.emitAudit(ctx, auditEventVerificationCodeVerify, true, account.ID, nil, nil)
	return nil
}
