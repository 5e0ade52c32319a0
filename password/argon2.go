package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2ID = "argon2id"

// ErrMalformedHash is returned for stored argon2id hashes that do not parse.
var ErrMalformedHash = errors.New("malformed argon2id hash")

// Argon2Config holds the argon2id cost parameters. Memory is in KiB.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (c Argon2Config) validate() error {
	switch {
	case c.Memory < 8*1024:
		return errors.New("argon2id memory must be >= 8192 KiB")
	case c.Time < 1:
		return errors.New("argon2id time must be >= 1")
	case c.Parallelism < 1:
		return errors.New("argon2id parallelism must be >= 1")
	case c.SaltLength < 16:
		return errors.New("argon2id salt length must be >= 16")
	case c.KeyLength < 16:
		return errors.New("argon2id key length must be >= 16")
	}
	return nil
}

// Argon2 hashes secrets with argon2id and stores them in PHC string form:
//
//	$argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<key>
type Argon2 struct {
	config Argon2Config
}

// NewArgon2 validates cfg and returns an argon2id hasher.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Hash derives a fresh salted hash of secret. The secret bytes are used as given.
func (a *Argon2) Hash(secret string) (string, error) {
	salt := make([]byte, a.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2id salt: %w", err)
	}

	h := phcHash{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        salt,
	}
	h.key = h.derive(secret, a.config.KeyLength)
	return h.String(), nil
}

// Verify reports whether secret matches encoded. A malformed hash is an error.
func (a *Argon2) Verify(secret, encoded string) (bool, error) {
	h, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := h.derive(secret, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(computed, h.key) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker costs or a
// different key length than the current configuration.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	h, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	weaker := h.memory < a.config.Memory ||
		h.time < a.config.Time ||
		h.parallelism < a.config.Parallelism
	return weaker || uint32(len(h.key)) != a.config.KeyLength, nil
}

type phcHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (h phcHash) derive(secret string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(secret), h.salt, h.time, h.memory, h.parallelism, keyLen)
}

func (h phcHash) params() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", h.memory, h.time, h.parallelism)
}

func (h phcHash) String() string {
	enc := base64.StdEncoding
	return strings.Join([]string{
		"",
		argon2ID,
		fmt.Sprintf("v=%d", argon2.Version),
		h.params(),
		enc.EncodeToString(h.salt),
		enc.EncodeToString(h.key),
	}, "$")
}

func decodePHC(encoded string) (phcHash, error) {
	var h phcHash

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != argon2ID {
		return h, ErrMalformedHash
	}
	if fields[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return h, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, fields[2])
	}

	n, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.parallelism)
	if err != nil || n != 3 || h.params() != fields[3] {
		return h, fmt.Errorf("%w: bad parameters", ErrMalformedHash)
	}
	if h.memory < 8*1024 || h.time < 1 || h.parallelism < 1 {
		return h, fmt.Errorf("%w: parameters below minimum", ErrMalformedHash)
	}

	if h.salt, err = base64.StdEncoding.DecodeString(fields[4]); err != nil || len(h.salt) < 16 {
		return h, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}
	if h.key, err = base64.StdEncoding.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return h, fmt.Errorf("%w: bad key", ErrMalformedHash)
	}
	return h, nil
}
