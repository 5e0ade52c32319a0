// Package httpapi is the storefront's JSON surface over [shopauth.Engine].
//
// [NewServer] mounts the /api/auth and /api/users routes on a gorilla/mux
// router. Every response uses the same envelope,
//
//	{"success": bool, "message": string, ...payload}
//
// and engine errors are mapped to HTTP status codes by [StatusFor]. Sign-in
// and OTP verification set the session cookie; sign-out clears it.
//
// # Architecture boundaries
//
// Handlers decode and validate the request shape with validator/v10, attach
// client IP and user agent to the context, and call exactly one engine
// method. Business rules stay in the engine.
//
// # What this package must NOT do
//
//   - Talk to the credential store directly.
//   - Leak internal error text. Unmapped errors become a generic 500 and are logged.
package httpapi
