package shopauth

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Role is the authorization level stored on an account.
type Role string

const (
	// RoleUser is the default role for self-service signups.
	RoleUser Role = "user"
	// RoleAdmin may manage accounts and the catalog.
	RoleAdmin Role = "admin"
	// RoleSuperAdmin may additionally grant admin roles.
	RoleSuperAdmin Role = "superadmin"
)

// ParseRole maps a stored or submitted string onto a known [Role].
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleSuperAdmin:
		return RoleSuperAdmin, nil
	default:
		return "", ErrRoleInvalid
	}
}

// IsPrivileged reports whether r passes the admin route guard.
func (r Role) IsPrivileged() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// IssuedCode is a keyed hash of a delivered code and the time it was issued.
// The plaintext is never stored.
type IssuedCode struct {
	Hash     string
	IssuedAt time.Time
}

// Account is the persistent identity record owned by the [CredentialStore].
type Account struct {
	ID                 string
	Email              string
	Name               string
	PasswordHash       string
	Role               Role
	Verified           bool
	PhotoURL           string
	VerificationCode   *IssuedCode
	ForgotPasswordCode *IssuedCode
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Profile returns the client-safe projection of the account.
func (a Account) Profile() Profile {
	return Profile{
		ID:       a.ID,
		Name:     a.Name,
		Email:    a.Email,
		Role:     a.Role,
		Verified: a.Verified,
		PhotoURL: a.PhotoURL,
	}
}

// Profile is the public view of an account returned by HTTP handlers.
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Verified bool   `json:"verified"`
	PhotoURL string `json:"photoUrl,omitempty"`
}

// PendingAccount is a signup that has not proven control of its email yet.
// At most one exists per email.
type PendingAccount struct {
	Email        string
	Name         string
	PasswordHash string
	OTPHash      string
	OTPIssuedAt  time.Time
	OTPExpiresAt time.Time
	CreatedAt    time.Time
}

// Expired reports whether the OTP of p is no longer usable at now.
func (p PendingAccount) Expired(now time.Time) bool {
	return now.After(p.OTPExpiresAt)
}

// AccountUpdate is a partial update. Nil fields are left untouched.
type AccountUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Role         *Role
	Verified     *bool
	PhotoURL     *string

	SetVerificationCode     *IssuedCode
	ClearVerificationCode   bool
	SetForgotPasswordCode   *IssuedCode
	ClearForgotPasswordCode bool
}

// CodeKind selects which embedded code a conditional consume targets.
type CodeKind uint8

const (
	// CodeVerification is the post-signup re-verification code.
	CodeVerification CodeKind = iota + 1
	// CodeForgotPassword is the password recovery code.
	CodeForgotPassword
)

// ListOptions pages through accounts.
type ListOptions struct {
	Limit  int
	Offset int
}

// AccountStats is the admin dashboard summary.
type AccountStats struct {
	Total    int64          `json:"total"`
	Verified int64          `json:"verified"`
	Pending  int64          `json:"pending"`
	ByRole   map[Role]int64 `json:"byRole"`
}

var (
	// ErrRecordNotFound is returned by stores when the keyed record does not exist,
	// or when a conditional write did not match.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicateRecord is returned by stores on unique-key violations.
	ErrDuplicateRecord = errors.New("duplicate record")
)

// CredentialStore persists accounts and pending signups. Implementations must
// surface unique-key violations as [ErrDuplicateRecord] and missing rows as
// [ErrRecordNotFound]; the engine relies on those for race safety.
type CredentialStore interface {
	FindAccountByEmail(ctx context.Context, email string) (Account, error)
	FindAccountByID(ctx context.Context, id string) (Account, error)
	CreateAccount(ctx context.Context, account Account) (Account, error)
	UpdateAccount(ctx context.Context, id string, update AccountUpdate) (Account, error)
	// ConsumeCode applies update only while the stored code of kind still equals hash.
	ConsumeCode(ctx context.Context, id string, kind CodeKind, hash string, update AccountUpdate) (Account, error)
	DeleteAccount(ctx context.Context, id string) error
	ListAccounts(ctx context.Context, opts ListOptions) ([]Account, error)
	AccountStats(ctx context.Context) (AccountStats, error)

	FindPending(ctx context.Context, email string) (PendingAccount, error)
	CreatePending(ctx context.Context, pending PendingAccount) error
	ReplacePendingOTP(ctx context.Context, email, otpHash string, issuedAt, expiresAt time.Time) error
	DeletePending(ctx context.Context, email string) error
	// DeletePendingIfExpired removes the record only if its OTP expired before now.
	DeletePendingIfExpired(ctx context.Context, email string, now time.Time) (bool, error)
	// DeleteExpiredPending removes every pending record created before
	// createdBefore whose OTP expired before now. It is the bulk cleanup used
	// by the sweeper.
	DeleteExpiredPending(ctx context.Context, createdBefore, now time.Time) (int64, error)
	// PromotePending deletes the pending record matching email and otpHash and
	// creates account in one atomic step.
	PromotePending(ctx context.Context, email, otpHash string, account Account) (Account, error)
}

// MailMessage is one outbound code delivery.
type MailMessage struct {
	To      string
	Subject string
	HTML    string
}

// MailReceipt reports which recipients the transport accepted.
type MailReceipt struct {
	MessageID string
	Accepted  []string
	Rejected  []string
}

// Accepts reports whether addr is in the accepted list.
func (r MailReceipt) Accepts(addr string) bool {
	for _, a := range r.Accepted {
		if strings.EqualFold(strings.TrimSpace(a), addr) {
			return true
		}
	}
	return false
}

// Mailer delivers codes out of band.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) (MailReceipt, error)
}

// Identity is the verified content of a session token.
type Identity struct {
	UserID    string
	Name      string
	Email     string
	Verified  bool
	Role      Role
	ExpiresAt time.Time
}

// SessionResult is returned by flows that log the caller in.
type SessionResult struct {
	Token     string
	ExpiresAt time.Time
	Profile   Profile
}

// SignupInput carries a signup request.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// SignupResult acknowledges a pending signup. No session is issued yet.
type SignupResult struct {
	Email     string
	ExpiresAt time.Time
}

// AdminAccountInput creates an account on behalf of an administrator.
type AdminAccountInput struct {
	Name     string
	Email    string
	Password string
	Role     Role
	PhotoURL string
}

// AdminAccountUpdate is a partial administrative update. Nil fields are left untouched.
type AdminAccountUpdate struct {
	Name     *string
	Email    *string
	Password *string
	Role     *Role
	Verified *bool
	PhotoURL *string
}
