// Package domain contains the core banking entities: accounts, transfers,
// wallet nonces and sessions, together with the error taxonomy every other
// layer speaks. It has no knowledge of storage or transport.
package domain
