// Package postgres implements the account store on PostgreSQL through
// database/sql and the pgx stdlib driver, and embeds the goose migrations
// that create its schema.
package postgres
