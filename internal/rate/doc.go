// Package rate provides Redis-backed fixed-window attempt limiters for the
// sign-in and code lifecycle flows.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key layout
// (all under the configured prefix):
//   - al:<email>            failed sign-ins per email
//   - ali:<ip>              failed sign-ins per IP
//   - cr:<scope>:<email>    code issuances per email
//   - cri:<scope>:<ip>      code issuances per IP
//   - ca:<scope>:<email>    code confirmations per email
//
// # What this package must NOT do
//
//   - Decide user-facing error messages (the engine maps [ErrRateLimited]).
//   - Be imported outside the shopauth module.
package rate
