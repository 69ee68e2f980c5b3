// Package config defines service configuration and its loader.
package config

import (
	"time"
)

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: json or text.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Storage selects the backend: sqlite or memory.
	Storage string `koanf:"storage"`

	// SQLitePath is the database file used when Storage is sqlite.
	SQLitePath string `koanf:"sqlite_path"`

	// ShardCount configures the number of ledger shards in the memory store.
	ShardCount int `koanf:"shard_count"`

	// SeedDefaults loads the built-in reviewer panel when no reviewer exists.
	SeedDefaults bool `koanf:"seed_defaults"`

	// SeedFile is an optional YAML or JSON batch imported at startup.
	SeedFile string `koanf:"seed_file"`

	// AdminPassword enables admin login. Empty disables it.
	AdminPassword string `koanf:"admin_password"`

	// SessionSecret signs session tokens.
	SessionSecret string `koanf:"session_secret"`

	// SessionTTLHours bounds how long a login lasts.
	SessionTTLHours int `koanf:"session_ttl_hours"`

	// SecureCookies marks session cookies Secure.
	SecureCookies bool `koanf:"secure_cookies"`

	// BcryptCost is the work factor for passcode and password hashes.
	BcryptCost int `koanf:"bcrypt_cost"`

	// AI* configure the OpenAI-compatible extraction client. Extraction is
	// disabled when AIAPIKey is empty.
	AIAPIKey        string  `koanf:"ai_api_key"`
	AIBaseURL       string  `koanf:"ai_base_url"`
	AIModel         string  `koanf:"ai_model"`
	AITimeoutMS     int     `koanf:"ai_timeout_ms"`
	AIRatePerSec    float64 `koanf:"ai_rate_per_sec"`
	AIMaxInputChars int     `koanf:"ai_max_input_chars"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "json",
		Addr:            ":8080",
		Storage:         StorageSQLite,
		SQLitePath:      "smartscore.db",
		ShardCount:      16,
		SeedDefaults:    true,
		SessionTTLHours: 24,
		BcryptCost:      10,
		AIModel:         "gpt-4o",
		AITimeoutMS:     60_000,
		AIRatePerSec:    0.5,
		AIMaxInputChars: 15_000,
	}
}

// SessionTTL returns SessionTTLHours as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// AITimeout returns AITimeoutMS as a duration.
func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AITimeoutMS) * time.Millisecond
}

// ExtractionEnabled reports whether an AI API key is configured.
func (c *Config) ExtractionEnabled() bool {
	return c.AIAPIKey != ""
}
