package shopauth

import (
	"time"

	"github.com/MrEthical07/shopauth/internal"
)

// checkIssuedCode applies the account-code rules in order: a code must have
// been issued, must not be older than ttl and must match the stored hash.
func (e *Engine) checkIssuedCode(issued *IssuedCode, code string, now time.Time, ttl time.Duration) error {
	if issued == nil || issued.Hash == "" || issued.IssuedAt.IsZero() {
		return ErrCodeNotIssued
	}
	if now.Sub(issued.IssuedAt) > ttl {
		return ErrCodeExpired
	}
	if !e.wellFormedCode(code) || !internal.CodeHashEqual(e.hashCode(code), issued.Hash) {
		return ErrCodeInvalid
	}
	return nil
}
