package shopauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ListAccounts pages through all accounts ordered by creation time.
func (e *Engine) ListAccounts(ctx context.Context, opts ListOptions) ([]Profile, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	accounts, err := e.store.ListAccounts(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("credential store: %w", err)
	}

	out := make([]Profile, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.Profile())
	}
	return out, nil
}

// GetAccount returns the profile of id.
func (e *Engine) GetAccount(ctx context.Context, id string) (Profile, error) {
	if err := e.ready(); err != nil {
		return Profile{}, err
	}
	account, err := e.store.FindAccountByID(ctx, id)
	if err != nil {
		return Profile{}, mapStoreErr(err, ErrUserNotFound)
	}
	return account.Profile(), nil
}

// AdminCreateAccount creates a verified account without the OTP round trip.
// Only a superadmin may create another superadmin.
func (e *Engine) AdminCreateAccount(ctx context.Context, actorID string, in AdminAccountInput) (Profile, error) {
	if err := e.ready(); err != nil {
		return Profile{}, err
	}

	actor, err := e.RequireRole(ctx, actorID, RoleAdmin, RoleSuperAdmin)
	if err != nil {
		return Profile{}, err
	}

	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	role := in.Role
	if role == "" {
		role = RoleUser
	}
	if _, err := ParseRole(string(role)); err != nil {
		return Profile{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := validateName(name); err != nil {
		return Profile{}, err
	}
	if err := validateEmail(email); err != nil {
		return Profile{}, err
	}
	if err := validatePassword(in.Password); err != nil {
		return Profile{}, err
	}
	if in.PhotoURL != "" {
		if err := validatePhotoURL(in.PhotoURL); err != nil {
			return Profile{}, err
		}
	}
	if role == RoleSuperAdmin && actor.Role != RoleSuperAdmin {
		return Profile{}, e.denyEscalation(ctx, actor)
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return Profile{}, fmt.Errorf("hash password: %w", err)
	}

	now := e.clock()
	created, err := e.store.CreateAccount(ctx, Account{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
		Verified:     true,
		PhotoURL:     in.PhotoURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateRecord) {
			return Profile{}, ErrAccountExists
		}
		return Profile{}, fmt.Errorf("credential store: %w", err)
	}

	e.emitAudit(ctx, auditEventAdminAccountCreate, true, created.ID, nil, func() map[string]string {
		return map[string]string{"actor": actor.ID, "role": string(created.Role)}
	})
	return created.Profile(), nil
}

// AdminUpdateAccount applies a partial update to id. Superadmin accounts, and
// grants of the superadmin role, are reserved to superadmins.
func (e *Engine) AdminUpdateAccount(ctx context.Context, actorID, id string, in AdminAccountUpdate) (Profile, error) {
	if err := e.ready(); err != nil {
		return Profile{}, err
	}

	actor, err := e.RequireRole(ctx, actorID, RoleAdmin, RoleSuperAdmin)
	if err != nil {
		return Profile{}, err
	}

	target, err := e.store.FindAccountByID(ctx, id)
	if err != nil {
		return Profile{}, mapStoreErr(err, ErrUserNotFound)
	}
	if target.Role == RoleSuperAdmin && actor.Role != RoleSuperAdmin {
		return Profile{}, e.denyEscalation(ctx, actor)
	}

	var update AccountUpdate
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validateName(name); err != nil {
			return Profile{}, err
		}
		update.Name = &name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if err := validateEmail(email); err != nil {
			return Profile{}, err
		}
		update.Email = &email
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return Profile{}, err
		}
		hash, err := e.hasher.Hash(*in.Password)
		if err != nil {
			return Profile{}, fmt.Errorf("hash password: %w", err)
		}
		update.PasswordHash = &hash
	}
	if in.Role != nil {
		role, err := ParseRole(string(*in.Role))
		if err != nil {
			return Profile{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		if role == RoleSuperAdmin && actor.Role != RoleSuperAdmin {
			return Profile{}, e.denyEscalation(ctx, actor)
		}
		update.Role = &role
	}
	if in.Verified != nil {
		v := *in.Verified
		update.Verified = &v
	}
	if in.PhotoURL != nil {
		photo := strings.TrimSpace(*in.PhotoURL)
		if err := validatePhotoURL(photo); err != nil {
			return Profile{}, err
		}
		update.PhotoURL = &photo
	}

	updated, err := e.store.UpdateAccount(ctx, target.ID, update)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateRecord):
			return Profile{}, ErrAccountExists
		case isNotFound(err):
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, fmt.Errorf("credential store: %w", err)
	}

	e.emitAudit(ctx, auditEventAdminAccountUpdate, true, updated.ID, nil, func() map[string]string {
		return map[string]string{"actor": actor.ID}
	})
	return updated.Profile(), nil
}

// DeleteAccount removes id on behalf of an administrator.
func (e *Engine) DeleteAccount(ctx context.Context, actorID, id string) error {
	if err := e.ready(); err != nil {
		return err
	}

	actor, err := e.RequireRole(ctx, actorID, RoleAdmin, RoleSuperAdmin)
	if err != nil {
		return err
	}

	target, err := e.store.FindAccountByID(ctx, id)
	if err != nil {
		return mapStoreErr(err, ErrUserNotFound)
	}
	if target.Role == RoleSuperAdmin && actor.Role != RoleSuperAdmin {
		return e.denyEscalation(ctx, actor)
	}

	if err := e.store.DeleteAccount(ctx, target.ID); err != nil {
		return mapStoreErr(err, ErrUserNotFound)
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDelete, true, target.ID, nil, func() map[string]string {
		return map[string]string{"actor": actor.ID}
	})
	return nil
}

// Stats returns account totals for the admin dashboard.
func (e *Engine) Stats(ctx context.Context) (AccountStats, error) {
	if err := e.ready(); err != nil {
		return AccountStats{}, err
	}
	stats, err := e.store.AccountStats(ctx)
	if err != nil {
		return AccountStats{}, fmt.Errorf("credential store: %w", err)
	}
	if stats.ByRole == nil {
		stats.ByRole = map[Role]int64{}
	}
	return stats, nil
}

func (e *Engine) denyEscalation(ctx context.Context, actor Account) error {
	e.metricInc(MetricRoleDenied)
	e.emitAudit(ctx, auditEventRoleDenied, false, actor.ID, ErrForbidden, func() map[string]string {
		return map[string]string{"role": string(actor.Role), "reason": "superadmin_required"}
	})
	return ErrForbidden
}
