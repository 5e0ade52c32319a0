package shopauth

import (
	"context"
	"errors"
	"testing"
)

func TestChangePassword(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	h.seedAccount(t, "u1", "xena@example.com", testPassword, RoleUser, true)

	if err := h.engine.ChangePassword(ctx, "u1", "Wr0ngPassword", "N3wPassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := h.engine.ChangePassword(ctx, "u1", testPassword, testPassword); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("expected ErrPasswordReuse, got %v", err)
	}
	if err := h.engine.ChangePassword(ctx, "u1", testPassword, "weak"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := h.engine.ChangePassword(ctx, "missing", testPassword, "N3wPassword"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if err := h.engine.ChangePassword(ctx, "u1", testPassword, "N3wPassword"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if _, err := h.engine.SignIn(ctx, "xena@example.com", "N3wPassword"); err != nil {
		t.Fatalf("SignIn with new password failed: %v", err)
	}

	snap := h.engine.MetricsSnapshot()
	if snap.Counters[MetricPasswordChangeSuccess] != 1 || snap.Counters[MetricPasswordChangeFailure] != 2 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
}

func TestProfileUpdates(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	h.seedAccount(t, "u1", "yara@example.com", testPassword, RoleUser, true)

	p, err := h.engine.UpdateProfile(ctx, "u1", "  Yara Q ")
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if p.Name != "Yara Q" {
		t.Fatalf("expected trimmed name, got %q", p.Name)
	}
	if _, err := h.engine.UpdateProfile(ctx, "u1", "   "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	p, err = h.engine.UpdatePhoto(ctx, "u1", "/uploads/u1.png")
	if err != nil {
		t.Fatalf("UpdatePhoto failed: %v", err)
	}
	if p.PhotoURL != "/uploads/u1.png" {
		t.Fatalf("unexpected photo %q", p.PhotoURL)
	}
	if _, err := h.engine.UpdatePhoto(ctx, "u1", "javascript:alert(1)"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	current, err := h.engine.CurrentIdentity(ctx, "u1")
	if err != nil {
		t.Fatalf("CurrentIdentity failed: %v", err)
	}
	if current.Name != "Yara Q" || current.PhotoURL != "/uploads/u1.png" {
		t.Fatalf("unexpected profile %+v", current)
	}
}

func TestDeleteSelf(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	h.seedAccount(t, "u1", "zed@example.com", testPassword, RoleUser, true)

	if err := h.engine.DeleteSelf(ctx, "u1"); err != nil {
		t.Fatalf("DeleteSelf failed: %v", err)
	}
	if _, err := h.engine.CurrentIdentity(ctx, "u1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after deletion, got %v", err)
	}
	if err := h.engine.DeleteSelf(ctx, "u1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on second delete, got %v", err)
	}
}

func TestRequireRoleUsesStoredRole(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	h.seedAccount(t, "u1", "amy@example.com", testPassword, RoleUser, true)
	session, err := h.engine.SignIn(ctx, "amy@example.com", testPassword)
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	if _, err := h.engine.RequireRole(ctx, "u1", RoleAdmin, RoleSuperAdmin); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	// Promotion takes effect without a new token.
	role := RoleAdmin
	if _, err := h.store.UpdateAccount(ctx, "u1", AccountUpdate{Role: &role}); err != nil {
		t.Fatalf("UpdateAccount failed: %v", err)
	}
	identity, err := h.engine.ParseToken(session.Token)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if identity.Role != RoleUser {
		t.Fatalf("token still carries the old role, got %q", identity.Role)
	}
	if _, err := h.engine.RequireRole(ctx, identity.UserID, RoleAdmin, RoleSuperAdmin); err != nil {
		t.Fatalf("RequireRole after promotion failed: %v", err)
	}

	if _, err := h.engine.RequireRole(ctx, "", RoleAdmin); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty user, got %v", err)
	}
	if _, err := h.engine.RequireRole(ctx, "missing", RoleAdmin); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown user, got %v", err)
	}
}

func TestUpdateSelfValidatesBeforeWriting(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	h.seedAccount(t, "u1", "zoe@example.com", testPassword, RoleUser, true)
	blank, bad := "   ", "ftp://example.com/zoe.png"

	rejected := []SelfUpdate{
		{},
		{Name: &blank, CurrentPassword: testPassword, NewPassword: "N3wPassword"},
		{PhotoURL: &bad, CurrentPassword: testPassword, NewPassword: "N3wPassword"},
		{NewPassword: "N3wPassword"},
		{CurrentPassword: testPassword, NewPassword: "weak"},
	}
	for i, in := range rejected {
		if _, err := h.engine.UpdateSelf(ctx, "u1", in); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}

	name := "Zoe Z"
	if _, err := h.engine.UpdateSelf(ctx, "u1", SelfUpdate{Name: &name, CurrentPassword: "Wr0ngPassword", NewPassword: "N3wPassword"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	session, err := h.engine.SignIn(ctx, "zoe@example.com", testPassword)
	if err != nil {
		t.Fatalf("old password must still work: %v", err)
	}
	if session.Profile.Name != "Seeded u1" {
		t.Fatalf("rejected update leaked a name change: %q", session.Profile.Name)
	}

	photo := "https://cdn.example.com/zoe.png"
	p, err := h.engine.UpdateSelf(ctx, "u1", SelfUpdate{Name: &name, PhotoURL: &photo, CurrentPassword: testPassword, NewPassword: "N3wPassword"})
	if err != nil {
		t.Fatalf("UpdateSelf failed: %v", err)
	}
	if p.Name != name || p.PhotoURL != photo {
		t.Fatalf("unexpected profile %+v", p)
	}
	if _, err := h.engine.SignIn(ctx, "zoe@example.com", "N3wPassword"); err != nil {
		t.Fatalf("SignIn with new password failed: %v", err)
	}
}
