package internaldefs

import (
	"github.com/MrEthical07/shopauth"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   shopauth.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   shopauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter exporters publish, in output order.
var CounterDefs = []CounterDef{
	{ID: shopauth.MetricSignupSuccess, Name: "shopauth_signup_success_total", Help: "Signups that reached the pending state."},
	{ID: shopauth.MetricSignupDuplicate, Name: "shopauth_signup_duplicate_total", Help: "Signups rejected because the email is taken or pending."},
	{ID: shopauth.MetricOTPVerifySuccess, Name: "shopauth_otp_verify_success_total", Help: "Pending signups promoted to accounts."},
	{ID: shopauth.MetricOTPVerifyFailure, Name: "shopauth_otp_verify_failure_total", Help: "Rejected OTP submissions."},
	{ID: shopauth.MetricOTPExpired, Name: "shopauth_otp_expired_total", Help: "Correct OTPs submitted after expiry."},
	{ID: shopauth.MetricOTPResend, Name: "shopauth_otp_resend_total", Help: "Reissued signup OTPs."},
	{ID: shopauth.MetricResendCooldown, Name: "shopauth_otp_resend_cooldown_total", Help: "Resends rejected inside the cooldown."},
	{ID: shopauth.MetricSignInSuccess, Name: "shopauth_signin_success_total", Help: "Successful sign-ins."},
	{ID: shopauth.MetricSignInFailure, Name: "shopauth_signin_failure_total", Help: "Rejected sign-ins."},
	{ID: shopauth.MetricVerificationCodeSent, Name: "shopauth_verification_code_sent_total", Help: "Delivered account verification codes."},
	{ID: shopauth.MetricVerificationCodeSuccess, Name: "shopauth_verification_code_success_total", Help: "Accounts verified by code."},
	{ID: shopauth.MetricVerificationCodeFailure, Name: "shopauth_verification_code_failure_total", Help: "Rejected verification codes."},
	{ID: shopauth.MetricPasswordResetRequest, Name: "shopauth_password_reset_request_total", Help: "Delivered forgot-password codes."},
	{ID: shopauth.MetricPasswordResetSuccess, Name: "shopauth_password_reset_success_total", Help: "Completed password resets."},
	{ID: shopauth.MetricPasswordResetFailure, Name: "shopauth_password_reset_failure_total", Help: "Rejected forgot-password codes."},
	{ID: shopauth.MetricPasswordChangeSuccess, Name: "shopauth_password_change_success_total", Help: "Authenticated password changes."},
	{ID: shopauth.MetricPasswordChangeFailure, Name: "shopauth_password_change_failure_total", Help: "Rejected password changes."},
	{ID: shopauth.MetricDeliveryFailure, Name: "shopauth_delivery_failure_total", Help: "Codes the mail transport did not accept."},
	{ID: shopauth.MetricRateLimitHit, Name: "shopauth_rate_limit_hit_total", Help: "Limiter checks that denied requests."},
	{ID: shopauth.MetricSessionIssued, Name: "shopauth_session_issued_total", Help: "Signed session tokens."},
	{ID: shopauth.MetricTokenRejected, Name: "shopauth_token_rejected_total", Help: "Tokens that failed verification."},
	{ID: shopauth.MetricRoleDenied, Name: "shopauth_role_denied_total", Help: "Role checks that returned forbidden."},
	{ID: shopauth.MetricAccountDeleted, Name: "shopauth_account_deleted_total", Help: "Account deletions."},
	{ID: shopauth.MetricPendingSwept, Name: "shopauth_pending_swept_total", Help: "Abandoned pending signups removed by the sweeper."},
}

// HistogramDefs lists every histogram exporters publish.
var HistogramDefs = []HistogramDef{
	{ID: shopauth.MetricSignInLatency, Name: "shopauth_signin_latency_seconds", Help: "Sign-in latency histogram."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "shopauth_audit_dropped_total"

// HistogramUpperBounds are the bucket limits in seconds, excluding +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// flatten buckets into separate instruments.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, padding or truncating.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
