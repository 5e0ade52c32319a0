package shopauth

import "errors"

var (
	// ErrValidation wraps every input-shape failure. The wrapped message names the field.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned by sign-in for an unknown email and for a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when an authenticated identity no longer maps to an account.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned by role checks.
	ErrForbidden = errors.New("forbidden")
	// ErrUserNotFound is an exported constant or variable used by the lifecycle engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is an exported constant or variable used by the lifecycle engine.
	ErrAccountExists = errors.New("user already exists")
	// ErrAlreadyVerified is an exported constant or variable used by the lifecycle engine.
	ErrAlreadyVerified = errors.New("user already verified")

	// ErrSignupPending is returned while an unexpired pending signup exists for the email.
	ErrSignupPending = errors.New("signup already pending; check your email for the code")
	// ErrPendingNotFound is an exported constant or variable used by the lifecycle engine.
	ErrPendingNotFound = errors.New("no pending signup for this email")
	// ErrOTPInvalid covers both a wrong code and a missing pending record.
	ErrOTPInvalid = errors.New("invalid or expired otp")
	// ErrOTPExpired is returned for a correct code submitted after its expiry.
	ErrOTPExpired = errors.New("otp expired")
	// ErrResendCooldown is an exported constant or variable used by the lifecycle engine.
	ErrResendCooldown = errors.New("please wait before requesting a new code")

	// ErrCodeNotIssued is an exported constant or variable used by the lifecycle engine.
	ErrCodeNotIssued = errors.New("code not sent earlier, please resend")
	// ErrCodeExpired is an exported constant or variable used by the lifecycle engine.
	ErrCodeExpired = errors.New("the code is expired")
	// ErrCodeInvalid is an exported constant or variable used by the lifecycle engine.
	ErrCodeInvalid = errors.New("invalid code")

	// ErrPasswordPolicy is wrapped into ErrValidation for weak passwords.
	ErrPasswordPolicy = errors.New("password must be at least 8 characters and contain upper, lower case letters and a digit")
	// ErrPasswordReuse is an exported constant or variable used by the lifecycle engine.
	ErrPasswordReuse = errors.New("new password must be different from current password")

	// ErrDeliveryFailed is returned when the mail transport did not accept the recipient.
	ErrDeliveryFailed = errors.New("code send failed")
	// ErrRateLimited is an exported constant or variable used by the lifecycle engine.
	ErrRateLimited = errors.New("too many requests")

	// ErrTokenMissing is returned when no bearer token was presented.
	ErrTokenMissing = errors.New("missing token")
	// ErrTokenInvalid is returned for malformed, expired or badly signed tokens.
	ErrTokenInvalid = errors.New("invalid or expired token")

	// ErrRoleInvalid is an exported constant or variable used by the lifecycle engine.
	ErrRoleInvalid = errors.New("invalid role")
	// ErrEngineNotReady is an exported constant or variable used by the lifecycle engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
