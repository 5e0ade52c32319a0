package password

import (
	"strings"
	"testing"
)

func newBcryptHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(Config{Algorithm: AlgorithmBcrypt, BcryptCost: 10, Argon2: secureConfig()})
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	return h
}

func TestBcryptHashAndVerify(t *testing.T) {
	h := newBcryptHasher(t)

	hash, err := h.Hash("Secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$10$") {
		t.Fatalf("unexpected bcrypt prefix: %s", hash)
	}

	ok, err := h.Verify("Secret123", hash)
	if err != nil || !ok {
		t.Fatalf("expected verify success, ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("Secret124", hash)
	if err != nil || ok {
		t.Fatalf("expected verify mismatch, ok=%v err=%v", ok, err)
	}
}

func TestHasherVerifiesOtherAlgorithm(t *testing.T) {
	argon, err := NewHasher(Config{Algorithm: AlgorithmArgon2id, Argon2: secureConfig()})
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	legacy, err := argon.Hash("Secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	h := newBcryptHasher(t)
	ok, err := h.Verify("Secret123", legacy)
	if err != nil || !ok {
		t.Fatalf("expected argon2 hash to verify under bcrypt primary, ok=%v err=%v", ok, err)
	}

	upgrade, err := h.NeedsUpgrade(legacy)
	if err != nil || !upgrade {
		t.Fatalf("expected cross-algorithm hash to need upgrade, upgrade=%v err=%v", upgrade, err)
	}
}

func TestBcryptNeedsUpgradeOnLowerCost(t *testing.T) {
	low := newBcryptHasher(t)
	hash, err := low.Hash("Secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	high, err := NewHasher(Config{Algorithm: AlgorithmBcrypt, BcryptCost: 11})
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	upgrade, err := high.NeedsUpgrade(hash)
	if err != nil || !upgrade {
		t.Fatalf("expected upgrade for lower cost, upgrade=%v err=%v", upgrade, err)
	}

	same, err := low.NeedsUpgrade(hash)
	if err != nil || same {
		t.Fatalf("expected no upgrade at same cost, upgrade=%v err=%v", same, err)
	}
}

func TestHasherRejectsOverlongPassword(t *testing.T) {
	h := newBcryptHasher(t)
	long := strings.Repeat("a", MaxPasswordBytes+1)

	if _, err := h.Hash(long); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestHasherUnknownFormat(t *testing.T) {
	h := newBcryptHasher(t)
	if _, err := h.Verify("x", "plaintext"); err != ErrUnknownHashFormat {
		t.Fatalf("expected ErrUnknownHashFormat, got %v", err)
	}
}

func TestNewHasherRejectsBadConfig(t *testing.T) {
	if _, err := NewHasher(Config{Algorithm: "md5"}); err == nil {
		t.Fatal("expected unsupported algorithm error")
	}
	if _, err := NewHasher(Config{Algorithm: AlgorithmBcrypt, BcryptCost: 4}); err == nil {
		t.Fatal("expected low bcrypt cost error")
	}
}
