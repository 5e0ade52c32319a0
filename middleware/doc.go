// Package middleware adapts [shopauth.Engine] token checks to net/http.
//
// # Guards
//
//   - [Guard] verifies the session token from the Authorization header or cookie.
//   - [RequireRole] and [RequireAdmin] reload the caller and check the stored role.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Token parsing and
// role decisions are delegated to [shopauth.Engine.ParseToken] and
// [shopauth.Engine.RequireRole].
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Trust the role claim inside a token.
//   - Access the credential store except through the Engine.
package middleware
