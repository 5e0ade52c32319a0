package shopauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ChangePassword replaces the password of userID after checking the current
// one. A wrong current password yields [ErrInvalidCredentials]; reusing the
// current password yields [ErrPasswordReuse].
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if oldPassword == "" {
		return fmt.Errorf("%w: current password is required", ErrValidation)
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	account, err := e.store.FindAccountByID(ctx, userID)
	if err != nil {
		return mapStoreErr(err, ErrUnauthorized)
	}

	fail := func(err error) error {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChange, false, account.ID, err, nil)
		return err
	}

	ok, err := e.hasher.Verify(oldPassword, account.PasswordHash)
	if err != nil || !ok {
		return fail(ErrInvalidCredentials)
	}
	if same, _ := e.hasher.Verify(newPassword, account.PasswordHash); same {
		return fail(ErrPasswordReuse)
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := e.store.UpdateAccount(ctx, account.ID, AccountUpdate{PasswordHash: &hash}); err != nil {
		return mapStoreErr(err, ErrUnauthorized)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChange, true, account.ID, nil, nil)
	return nil
}

// CurrentIdentity reloads the profile of an authenticated user from the store.
func (e *Engine) CurrentIdentity(ctx context.Context, userID string) (Profile, error) {
	if err := e.ready(); err != nil {
		return Profile{}, err
	}
	account, err := e.store.FindAccountByID(ctx, userID)
	if err != nil {
		return Profile{}, mapStoreErr(err, ErrUnauthorized)
	}
	return account.Profile(), nil
}

// UpdateProfile changes the display name of userID.
func (e *Engine) UpdateProfile(ctx context.Context, userID, name string) (Profile, error) {
	if err := e.ready(); err != nil {
		return Profile{}, err
	}
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return Profile{}, err
	}

	account, err := e.store.UpdateAccount(ctx, userID, AccountUpdate{Name: &name})
	if err != nil {
		return Profile{}, mapStoreErr(err, ErrUnauthorized)
	}

	e.emitAudit(ctx, auditEventProfileUpdate, true, account.ID, nil, func() map[string]string {
		return map[string]string{"field": "name"}
	})
	return account.Profile(), nil
}

// UpdatePhoto stores a reference to an already uploaded profile photo.
func (e *Engine) UpdatePhoto(ctx context.Context, userID, photoURL string) (Profile, error) {
	if err := e.ready(); err != nil {
		return Profile{}, err
	}
	photoURL = strings.TrimSpace(photoURL)
	if err := validatePhotoURL(photoURL); err != nil {
		return Profile{}, err
	}

	account, err := e.store.UpdateAccount(ctx, userID, AccountUpdate{PhotoURL: &photoURL})
	if err != nil {
		return Profile{}, mapStoreErr(err, ErrUnauthorized)
	}

	e.emitAudit(ctx, auditEventProfileUpdate, true, account.ID, nil, func() map[string]string {
		return map[string]string{"field": "photo"}
	})
	return account.Profile(), nil
}

// SelfUpdate is a partial update of the caller's own account. Nil fields and
// an empty NewPassword are left untouched.
type SelfUpdate struct {
	Name            *string
	PhotoURL        *string
	CurrentPassword string
	NewPassword     string
}

// UpdateSelf validates every requested change before touching the store and
// then applies them in a single write, so a rejected request leaves the
// account as it was. A password change requires the current password.
func (e *Engine) UpdateSelf(ctx context.Context, userID string, in SelfUpdate) (Profile, error) {
	if err := e.ready(); err != nil {
		return Profile{}, err
	}
	if in.Name == nil && in.PhotoURL == nil && in.NewPassword == "" {
		return Profile{}, fmt.Errorf("%w: nothing to update", ErrValidation)
	}

	var update AccountUpdate
	var fields []string
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validateName(name); err != nil {
			return Profile{}, err
		}
		update.Name = &name
		fields = append(fields, "name")
	}
	if in.PhotoURL != nil {
		photo := strings.TrimSpace(*in.PhotoURL)
		if err := validatePhotoURL(photo); err != nil {
			return Profile{}, err
		}
		update.PhotoURL = &photo
		fields = append(fields, "photo")
	}
	if in.NewPassword != "" {
		if in.CurrentPassword == "" {
			return Profile{}, fmt.Errorf("%w: current password is required", ErrValidation)
		}
		if err := validatePassword(in.NewPassword); err != nil {
			return Profile{}, err
		}
	}

	account, err := e.store.FindAccountByID(ctx, userID)
	if err != nil {
		return Profile{}, mapStoreErr(err, ErrUnauthorized)
	}

	if in.NewPassword != "" {
		fail := func(err error) (Profile, error) {
			e.metricInc(MetricPasswordChangeFailure)
			e.emitAudit(ctx, auditEventPasswordChange, false, account.ID, err, nil)
			return Profile{}, err
		}
		if ok, err := e.hasher.Verify(in.CurrentPassword, account.PasswordHash); err != nil || !ok {
			return fail(ErrInvalidCredentials)
		}
		if same, _ := e.hasher.Verify(in.NewPassword, account.PasswordHash); same {
			return fail(ErrPasswordReuse)
		}
		hash, err := e.hasher.Hash(in.NewPassword)
		if err != nil {
			return Profile{}, fmt.Errorf("hash password: %w", err)
		}
		update.PasswordHash = &hash
	}

	account, err = e.store.UpdateAccount(ctx, account.ID, update)
	if err != nil {
		return Profile{}, mapStoreErr(err, ErrUnauthorized)
	}

	if update.PasswordHash != nil {
		e.metricInc(MetricPasswordChangeSuccess)
		e.emitAudit(ctx, auditEventPasswordChange, true, account.ID, nil, nil)
	}
	if len(fields) > 0 {
		e.emitAudit(ctx, auditEventProfileUpdate, true, account.ID, nil, func() map[string]string {
			return map[string]string{"field": strings.Join(fields, ",")}
		})
	}
	return account.Profile(), nil
}

// DeleteSelf removes the account of the authenticated caller.
func (e *Engine) DeleteSelf(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.store.DeleteAccount(ctx, userID); err != nil {
		return mapStoreErr(err, ErrUnauthorized)
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDelete, true, userID, nil, func() map[string]string {
		return map[string]string{"actor": "self"}
	})
	return nil
}

// RequireRole reloads userID from the store and permits the call only when the
// stored role is one of roles. Token role claims are never consulted.
func (e *Engine) RequireRole(ctx context.Context, userID string, roles ...Role) (Account, error) {
	if err := e.ready(); err != nil {
		return Account{}, err
	}
	if userID == "" {
		return Account{}, ErrUnauthorized
	}

	account, err := e.store.FindAccountByID(ctx, userID)
	if err != nil {
		return Account{}, mapStoreErr(err, ErrUnauthorized)
	}

	for _, r := range roles {
		if account.Role == r {
			return account, nil
		}
	}

	e.metricInc(MetricRoleDenied)
	e.emitAudit(ctx, auditEventRoleDenied, false, account.ID, ErrForbidden, func() map[string]string {
		return map[string]string{"role": string(account.Role)}
	})
	return Account{}, ErrForbidden
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}
