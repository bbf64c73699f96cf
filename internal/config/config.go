package config

import "time"

// Config holds all application configuration for both binaries. Each binary
// reads the sections it needs; validation covers the shared shape.
type Config struct {
	Server         ServerConfig         `mapstructure:"server" validate:"required"`
	Auth           AuthConfig           `mapstructure:"auth" validate:"required"`
	Security       SecurityConfig       `mapstructure:"security" validate:"required"`
	SecurityClient SecurityClientConfig `mapstructure:"security_client" validate:"required"`
	Ledger         LedgerConfig         `mapstructure:"ledger" validate:"required"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit" validate:"required"`
}

// ServerConfig contains the client-facing HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	Environment     string        `mapstructure:"environment" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`

	// TrustedProxies lists the peers (IPs or CIDR ranges) whose
	// X-Forwarded-For and X-Real-IP headers are honored. Empty means the
	// socket address is always used.
	TrustedProxies []string `mapstructure:"trusted_proxies" validate:"dive,cidr|ip"`
}

// AuthConfig contains wallet session settings.
type AuthConfig struct {
	SessionSecret        string `mapstructure:"session_secret" validate:"required,min=32"`
	SessionLifetimeHours int    `mapstructure:"session_lifetime_hours" validate:"required,gt=0"`
	NonceTTLMinutes      int    `mapstructure:"nonce_ttl_minutes" validate:"required,gt=0"`
}

// SecurityConfig contains settings owned by the security service process.
type SecurityConfig struct {
	Port int `mapstructure:"port" validate:"required,gt=0,lt=65536"`

	// MasterKey is a hex-encoded secret from which per-key-id encryption keys
	// are derived. Explicit Keys take precedence for a given key id.
	MasterKey string            `mapstructure:"master_key" validate:"required,hexadecimal,min=64"`
	Keys      map[string]string `mapstructure:"keys"`
	PINKeyID  string            `mapstructure:"pin_key_id" validate:"required"`

	TokenSecret      string `mapstructure:"token_secret" validate:"required,min=32"`
	MaxPINAttempts   int    `mapstructure:"max_pin_attempts" validate:"required,gt=0"`
	Network          string `mapstructure:"network" validate:"required,oneof=mainnet testnet3 regtest signet"`
	ServiceToken     string `mapstructure:"service_token" validate:"required,min=16"`
	AttemptStoreKind string `mapstructure:"attempt_store" validate:"required,oneof=memory redis"`
}

// SecurityClientConfig contains the per-call budgets the business process
// applies to security RPCs. Calls are never retried.
type SecurityClientConfig struct {
	BaseURL          string        `mapstructure:"base_url" validate:"required,url"`
	IdentityTimeout  time.Duration `mapstructure:"identity_timeout" validate:"gt=0"`
	PINTimeout       time.Duration `mapstructure:"pin_timeout" validate:"gt=0"`
	CryptoTimeout    time.Duration `mapstructure:"crypto_timeout" validate:"gt=0"`
	SignatureTimeout time.Duration `mapstructure:"signature_timeout" validate:"gt=0"`
}

// LedgerConfig selects the account store backend.
type LedgerConfig struct {
	Backend    string `mapstructure:"backend" validate:"required,oneof=memory postgres"`
	BranchCode string `mapstructure:"branch_code" validate:"required,numeric,len=4"`
}

// DatabaseConfig contains PostgreSQL settings, used by the postgres ledger.
type DatabaseConfig struct {
	URL            string `mapstructure:"url" validate:"omitempty,url"`
	MaxOpenConns   int    `mapstructure:"max_open_conns"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start"`
}

// RedisConfig contains Redis settings. An empty Addr keeps the nonce,
// session and rate-limit stores in memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// RateLimitConfig contains the nonce issuance quota.
type RateLimitConfig struct {
	NonceLimit int           `mapstructure:"nonce_limit" validate:"required,gt=0"`
	Window     time.Duration `mapstructure:"window" validate:"gt=0"`
}
