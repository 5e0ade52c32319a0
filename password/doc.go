// Package password hashes and verifies account secrets.
//
// # Output format
//
// New hashes use the configured primary algorithm. bcrypt hashes use the
// modular-crypt form ($2a$/$2b$). argon2id hashes use PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.Verify] accepts either form regardless of the primary algorithm, and
// [Hasher.NeedsUpgrade] reports hashes that should be re-hashed after the next
// successful sign-in.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (character
// classes, minimum length, reuse) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other shopauth package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
