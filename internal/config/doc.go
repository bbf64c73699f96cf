// Package config handles configuration loading, parsing, and validation
// from defaults, an optional YAML file and VAULT_-prefixed environment
// variables. Both the security server and the banking server load the same
// Config and read the sections they own.
package config
