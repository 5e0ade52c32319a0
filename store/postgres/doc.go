// Package postgres implements [shopauth.CredentialStore] on PostgreSQL
// through the pgx database/sql driver.
//
// # Schema
//
// The schema lives in the migrations sub-package and is applied with goose by
// [Store.Migrate]. Accounts and pending signups are separate tables so a
// pending signup never occupies the unique email index of accounts.
//
// # Conditional writes
//
// Code consumption and pending promotion are expressed as single conditional
// statements (or one transaction) keyed on the stored code hash. A zero-row
// result surfaces as [shopauth.ErrRecordNotFound], which the engine reports
// as an invalid code.
//
// # What this package must NOT do
//
//   - Apply business rules such as expiry or password policy.
//   - Store plaintext codes or passwords.
package postgres
