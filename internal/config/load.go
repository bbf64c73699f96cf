package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// VAULT_SERVER_PORT or VAULT_SECURITY_MASTER_KEY.
const EnvPrefix = "VAULT"

// ConfigPathEnv names the environment variable pointing at a config file.
const ConfigPathEnv = "VAULT_CONFIG"

// Role names the process a configuration is loaded for. Each role only
// validates the sections it reads, so the business process never needs the
// security secrets.
type Role string

// Process roles.
const (
	RoleAll      Role = "all"
	RoleBusiness Role = "business"
	RoleSecurity Role = "security"
)

// roleExcludes lists the top-level sections a role skips during validation.
var roleExcludes = map[Role][]string{
	RoleAll:      nil,
	RoleBusiness: {"Security"},
	RoleSecurity: {"Auth", "SecurityClient", "Ledger", "RateLimit"},
}

// Load reads and validates the configuration for every role.
func Load() (*Config, error) {
	return LoadFor(RoleAll)
}

// LoadFor reads configuration from defaults, an optional config file and
// environment variables, in increasing order of precedence, then validates
// the sections role needs.
func LoadFor(role Role) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(ConfigPathEnv); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateFor(&cfg, role); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every section.
func Validate(cfg *Config) error {
	return ValidateFor(cfg, RoleAll)
}

// ValidateFor checks struct tags plus the cross-field rules tags cannot
// express, for the sections role reads.
func ValidateFor(cfg *Config, role Role) error {
	excludes, ok := roleExcludes[role]
	if !ok {
		return fmt.Errorf("invalid configuration: unknown role %q", role)
	}

	validate := validator.New()
	if err := validate.StructExcept(cfg, excludes...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if role == RoleBusiness && len(cfg.Security.ServiceToken) < 16 {
		return fmt.Errorf("invalid configuration: security.service_token is required to call the security service")
	}
	if role != RoleSecurity && cfg.Ledger.Backend == "postgres" && cfg.Database.URL == "" {
		return fmt.Errorf("invalid configuration: database.url is required for the postgres ledger")
	}
	if role != RoleBusiness && cfg.Security.AttemptStoreKind == "redis" && cfg.Redis.Addr == "" {
		return fmt.Errorf("invalid configuration: redis.addr is required for the redis attempt store")
	}

	return nil
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal; viper only consults the environment for keys it knows.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_lifetime_hours", 24)
	v.SetDefault("auth.nonce_ttl_minutes", 5)

	v.SetDefault("security.port", 8081)
	v.SetDefault("security.master_key", "")
	v.SetDefault("security.pin_key_id", "pin-v1")
	v.SetDefault("security.token_secret", "")
	v.SetDefault("security.max_pin_attempts", 3)
	v.SetDefault("security.network", "mainnet")
	v.SetDefault("security.service_token", "")
	v.SetDefault("security.attempt_store", "memory")

	v.SetDefault("security_client.base_url", "http://localhost:8081")
	v.SetDefault("security_client.identity_timeout", "5s")
	v.SetDefault("security_client.pin_timeout", "3s")
	v.SetDefault("security_client.crypto_timeout", "2s")
	v.SetDefault("security_client.signature_timeout", "2s")

	v.SetDefault("ledger.backend", "memory")
	v.SetDefault("ledger.branch_code", "1001")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.migrate_on_start", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "vault:")

	v.SetDefault("rate_limit.nonce_limit", 10)
	v.SetDefault("rate_limit.window", "1m")
}
