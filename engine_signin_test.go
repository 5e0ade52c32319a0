package shopauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/shopauth/password"
)

func TestSignInSuccessAndTokenExpiry(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	h.seedAccount(t, "u1", "mia@example.com", testPassword, RoleUser, true)

	session, err := h.engine.SignIn(ctx, " MIA@example.com", testPassword)
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if session.Profile.ID != "u1" {
		t.Fatalf("unexpected profile %+v", session.Profile)
	}
	if !session.ExpiresAt.Equal(h.clock.Now().Add(8 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", session.ExpiresAt)
	}

	if _, err := h.engine.ParseToken(session.Token); err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}

	h.clock.Advance(8*time.Hour + time.Second)
	if _, err := h.engine.ParseToken(session.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid after expiry, got %v", err)
	}
}

func TestSignInFailuresAreIndistinguishable(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	h.seedAccount(t, "u1", "nia@example.com", testPassword, RoleUser, true)

	_, errWrong := h.engine.SignIn(ctx, "nia@example.com", "Wr0ngPassword")
	_, errUnknown := h.engine.SignIn(ctx, "nobody@example.com", testPassword)

	if errWrong != ErrInvalidCredentials || errUnknown != ErrInvalidCredentials {
		t.Fatalf("expected identical ErrInvalidCredentials, got %v and %v", errWrong, errUnknown)
	}
	if errWrong.Error() != errUnknown.Error() {
		t.Fatal("error messages must not reveal which part was wrong")
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricSignInFailure]; got != 2 {
		t.Fatalf("expected 2 sign-in failures, got %d", got)
	}
}

func TestSignInRequiresFields(t *testing.T) {
	h := newTestHarness(t, nil)

	if _, err := h.engine.SignIn(context.Background(), "", testPassword); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := h.engine.SignIn(context.Background(), "a@example.com", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSignInLockoutAndReset(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := WithClientIP(context.Background(), "10.0.0.1")

	h.seedAccount(t, "u1", "olga@example.com", testPassword, RoleUser, true)

	for i := 0; i < 4; i++ {
		if _, err := h.engine.SignIn(ctx, "olga@example.com", "Wr0ngPassword"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	if _, err := h.engine.SignIn(ctx, "olga@example.com", testPassword); err != nil {
		t.Fatalf("SignIn within budget failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := h.engine.SignIn(ctx, "olga@example.com", "Wr0ngPassword"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	if _, err := h.engine.SignIn(ctx, "olga@example.com", testPassword); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited after budget spent, got %v", err)
	}

	h.redis.FastForward(15*time.Minute + time.Second)
	if _, err := h.engine.SignIn(ctx, "olga@example.com", testPassword); err != nil {
		t.Fatalf("SignIn after cooldown failed: %v", err)
	}
}

func TestSignInLimiterFailsClosed(t *testing.T) {
	h := newTestHarness(t, nil)
	h.seedAccount(t, "u1", "pat@example.com", testPassword, RoleUser, true)

	h.redis.Close()

	_, err := h.engine.SignIn(context.Background(), "pat@example.com", testPassword)
	if err == nil || errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected internal limiter error, got %v", err)
	}
}

func TestSignInUpgradesLegacyHash(t *testing.T) {
	h := newTestHarness(t, func(cfg *Config) {
		cfg.Password.Algorithm = "argon2id"
		cfg.Password.Argon2Memory = 8 * 1024
		cfg.Password.Argon2Time = 1
		cfg.Password.Argon2Parallelism = 1
		cfg.Password.UpgradeOnLogin = true
	})
	ctx := context.Background()

	legacy, err := password.NewBcrypt(10)
	if err != nil {
		t.Fatalf("NewBcrypt failed: %v", err)
	}
	hash, err := legacy.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if _, err := h.store.CreateAccount(ctx, Account{ID: "u1", Email: "quin@example.com", PasswordHash: hash, Role: RoleUser}); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	if _, err := h.engine.SignIn(ctx, "quin@example.com", testPassword); err != nil {
		t.Fatalf("SignIn with legacy hash failed: %v", err)
	}

	upgraded := h.store.accountByEmail(t, "quin@example.com").PasswordHash
	if !strings.HasPrefix(upgraded, "$argon2id$") {
		t.Fatalf("expected argon2id hash after sign-in, got %q", upgraded)
	}
	if _, err := h.engine.SignIn(ctx, "quin@example.com", testPassword); err != nil {
		t.Fatalf("SignIn with upgraded hash failed: %v", err)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	h := newTestHarness(t, nil)

	if _, err := h.engine.ParseToken("   "); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
	if _, err := h.engine.ParseToken("not.a.jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
