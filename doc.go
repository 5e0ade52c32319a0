// Package shopauth implements the account lifecycle of a storefront backend:
// signup with an emailed one-time code, promotion of the pending signup to a
// verified account, sign-in with signed session tokens, account verification
// codes, forgot-password reset and role checks for administrative routes.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// shopauth is the public surface. It exposes [Engine], [Builder], [Config],
// [PendingSweeper] and the [CredentialStore] and [Mailer] contracts. Storage
// lives in store/postgres and store/memory, delivery in mail, transport in
// httpapi. Attempt limiting and code hashing live under internal/.
//
// Codes are stored only as HMAC-SHA256 digests keyed by Config.Codes.HMACKey.
// Single use is guaranteed by the store: promotion and code consumption are
// conditional on the stored digest still matching.
//
// # What this package must NOT do
//
//   - Keep per-user state in memory. All state lives in the CredentialStore.
//   - Trust role claims from tokens for privileged operations.
//   - Log or audit plaintext codes, passwords or tokens.
package shopauth
