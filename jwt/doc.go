// Package jwt issues and verifies the signed session tokens handed to shoppers
// and admins after sign-in or signup confirmation.
//
// Tokens carry the account id, display name, email, verification flag and role
// so that route guards can authorize without a store lookup.
package jwt
