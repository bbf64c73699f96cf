// Package security implements the security service: identity document
// checks, PIN validation with lockout, envelope encryption for PINs at rest,
// wallet signature verification and transaction reference tokens.
//
// The service holds no ledger state. The only mutable state it owns is the
// per-account PIN attempt counter, kept behind an AttemptStore.
package security
