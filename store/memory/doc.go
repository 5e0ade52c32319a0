// Package memory provides a process-local [shopauth.CredentialStore] for
// development and tests. All data is lost on restart.
package memory
