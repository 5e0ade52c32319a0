// Package internal contains helpers that are private to shopauth: secure code
// generation and the keyed code hash.
//
// # Sub-packages
//
//   - rate: Redis-backed fixed-window attempt limiters
//
// # What this package must NOT do
//
//   - Export types that appear in the public shopauth API.
//   - Persist or log plaintext codes.
package internal
