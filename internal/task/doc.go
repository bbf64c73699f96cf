// Package task runs background maintenance for the business process. The
// only job today is the sweeper, which evicts expired nonces and sessions
// from stores that do not expire keys on their own.
package task
