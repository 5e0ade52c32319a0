// Package mail provides [shopauth.Mailer] transports for one-time codes.
//
// # Transports
//
//   - [SMTPMailer] speaks SMTP and reports recipients refused at RCPT time as rejected.
//   - [BrevoMailer] posts to the Brevo transactional email API.
//   - [LogMailer] writes messages to a zap logger for local development.
//
// [BreakerMailer] wraps any transport in a circuit breaker so a failing
// provider is not hammered by every signup.
//
// # What this package must NOT do
//
//   - Decide whether a code counts as delivered. Transports return a receipt;
//     the engine checks the accepted list.
//   - Persist codes or retry sends.
package mail
