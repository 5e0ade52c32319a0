package shopauth

import (
	"context"
	"errors"
)

const (
	auditEventSignup                 = "signup"
	auditEventSignupOTPVerify        = "signup_otp_verify"
	auditEventSignupOTPResend        = "signup_otp_resend"
	auditEventSignIn                 = "sign_in"
	auditEventVerificationCodeSend   = "verification_code_send"
	auditEventVerificationCodeVerify = "verification_code_verify"
	auditEventPasswordResetRequest   = "password_reset_request"
	auditEventPasswordResetConfirm   = "password_reset_confirm"
	auditEventPasswordChange         = "password_change"
	auditEventProfileUpdate          = "profile_update"
	auditEventAccountDelete          = "account_delete"
	auditEventAdminAccountCreate     = "admin_account_create"
	auditEventAdminAccountUpdate     = "admin_account_update"
	auditEventRoleDenied             = "role_denied"
	auditEventRateLimitTriggered     = "rate_limit_triggered"
	auditEventPendingSweep           = "pending_sweep"
)

// AuditErrorCode is the stable, non-sensitive error label written to audit events.
type AuditErrorCode string

const (
	auditErrValidation         AuditErrorCode = "validation"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrForbidden          AuditErrorCode = "forbidden"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrPending            AuditErrorCode = "signup_pending"
	auditErrCodeInvalid        AuditErrorCode = "code_invalid"
	auditErrCodeExpired        AuditErrorCode = "code_expired"
	auditErrCodeNotIssued      AuditErrorCode = "code_not_issued"
	auditErrAlreadyVerified    AuditErrorCode = "already_verified"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrDeliveryFailed     AuditErrorCode = "delivery_failed"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.clock().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", ErrRateLimited, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrRoleInvalid):
		return auditErrValidation
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrResendCooldown):
		return auditErrRateLimited
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrPendingNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrSignupPending):
		return auditErrPending
	case errors.Is(err, ErrOTPInvalid),
		errors.Is(err, ErrCodeInvalid):
		return auditErrCodeInvalid
	case errors.Is(err, ErrOTPExpired),
		errors.Is(err, ErrCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrCodeNotIssued):
		return auditErrCodeNotIssued
	case errors.Is(err, ErrAlreadyVerified):
		return auditErrAlreadyVerified
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenMissing):
		return auditErrInvalidToken
	default:
		return auditErrInternal
	}
}
