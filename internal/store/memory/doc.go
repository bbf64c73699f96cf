// Package memory implements the store interfaces in process memory. It is
// the default backend and the one the service tests run against.
package memory
