package password

import (
	"errors"
	"strings"
)

// MaxPasswordBytes is the longest secret any supported algorithm hashes
// without truncation.
const MaxPasswordBytes = 72

var (
	// ErrPasswordTooLong is returned for secrets longer than MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
	// ErrUnknownHashFormat is returned by Verify for hashes of neither algorithm.
	ErrUnknownHashFormat = errors.New("unknown password hash format")
)

// Algorithm names a hashing scheme.
type Algorithm string

const (
	// AlgorithmBcrypt selects bcrypt for new hashes.
	AlgorithmBcrypt Algorithm = "bcrypt"
	// AlgorithmArgon2id selects argon2id for new hashes.
	AlgorithmArgon2id Algorithm = "argon2id"
)

// Config selects the primary algorithm and its costs.
type Config struct {
	Algorithm  Algorithm
	BcryptCost int
	Argon2     Argon2Config
}

// Hasher produces hashes with the primary algorithm and verifies hashes of
// either supported algorithm, so stored credentials survive an algorithm switch.
type Hasher struct {
	primary Algorithm
	bcrypt  *Bcrypt
	argon2  *Argon2
}

// NewHasher builds a Hasher from cfg.
func NewHasher(cfg Config) (*Hasher, error) {
	h := &Hasher{primary: cfg.Algorithm}

	switch cfg.Algorithm {
	case AlgorithmBcrypt:
		b, err := NewBcrypt(cfg.BcryptCost)
		if err != nil {
			return nil, err
		}
		h.bcrypt = b
		if a, err := NewArgon2(withArgon2Defaults(cfg.Argon2)); err == nil {
			h.argon2 = a
		}
	case AlgorithmArgon2id:
		a, err := NewArgon2(withArgon2Defaults(cfg.Argon2))
		if err != nil {
			return nil, err
		}
		h.argon2 = a
		cost := cfg.BcryptCost
		if cost == 0 {
			cost = 12
		}
		if b, err := NewBcrypt(cost); err == nil {
			h.bcrypt = b
		}
	default:
		return nil, errors.New("unsupported password algorithm")
	}

	return h, nil
}

// Algorithm returns the algorithm used for new hashes.
func (h *Hasher) Algorithm() Algorithm {
	return h.primary
}

// Hash hashes password with the primary algorithm.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	if h.primary == AlgorithmArgon2id {
		return h.argon2.Hash(password)
	}
	return h.bcrypt.Hash(password)
}

// Verify checks password against encodedHash, dispatching on the hash prefix.
func (h *Hasher) Verify(password string, encodedHash string) (bool, error) {
	if len(password) > MaxPasswordBytes {
		return false, nil
	}
	switch {
	case isBcryptHash(encodedHash) && h.bcrypt != nil:
		return h.bcrypt.Verify(password, encodedHash)
	case strings.HasPrefix(encodedHash, "$"+argon2ID+"$") && h.argon2 != nil:
		return h.argon2.Verify(password, encodedHash)
	default:
		return false, ErrUnknownHashFormat
	}
}

// NeedsUpgrade reports whether encodedHash should be replaced on the next
// successful login, either because it uses the other algorithm or weaker costs.
func (h *Hasher) NeedsUpgrade(encodedHash string) (bool, error) {
	switch h.primary {
	case AlgorithmArgon2id:
		if !strings.HasPrefix(encodedHash, "$"+argon2ID+"$") {
			return true, nil
		}
		return h.argon2.NeedsUpgrade(encodedHash)
	default:
		if !isBcryptHash(encodedHash) {
			return true, nil
		}
		return h.bcrypt.NeedsUpgrade(encodedHash)
	}
}

func withArgon2Defaults(cfg Argon2Config) Argon2Config {
	if cfg.Memory == 0 {
		cfg.Memory = 64 * 1024
	}
	if cfg.Time == 0 {
		cfg.Time = 3
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = 2
	}
	if cfg.SaltLength == 0 {
		cfg.SaltLength = 16
	}
	if cfg.KeyLength == 0 {
		cfg.KeyLength = 32
	}
	return cfg
}
