// Package store defines the persistence contracts for accounts, their
// transaction history, wallet nonces and wallet sessions. Implementations
// live in internal/store/memory, internal/platform/postgres and
// internal/platform/redisstore.
//
// Every store hands out copies. Callers never hold a pointer into store
// state, so all mutation goes through the methods below, each of which is
// atomic per key.
package store
