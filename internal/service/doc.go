// Package service holds the application use cases. Subpackages implement
// them: banking owns accounts and payments, walletauth owns the nonce
// challenge and wallet sessions, and auth issues session tokens.
//
// Services depend on store interfaces and on security.Service, never on a
// concrete backend. Expected conditions are returned as domain sentinels;
// unexpected infrastructure failures are wrapped in a ServiceError so the
// API layer can log the failing operation without leaking details.
package service
