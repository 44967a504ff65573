package extension

import "time"

// Config holds the Giya extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.giya" or "giya" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Driver selects the store backend: "memory", "sqlite", "postgres" or
	// "mongo" (default: "memory"). Ignored when a store was provided
	// programmatically via WithStore.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// DSN is the database connection string for sqlite/postgres/mongo
	// drivers: a file path, a postgres URL, or a mongodb:// URI.
	DSN string `json:"dsn" mapstructure:"dsn" yaml:"dsn"`

	// MongoDatabase is the database name for the mongo driver
	// (default: "giya").
	MongoDatabase string `json:"mongo_database" mapstructure:"mongo_database" yaml:"mongo_database"`

	// CommissionBps is the referral commission rate in basis points of the
	// points granted by the source accrual (default: 1000, i.e. 10%).
	CommissionBps int64 `json:"commission_bps" mapstructure:"commission_bps" yaml:"commission_bps"`

	// TxRetries is how often a conflicted transaction is retried
	// (default: 3).
	TxRetries int `json:"tx_retries" mapstructure:"tx_retries" yaml:"tx_retries"`

	// TxRetryBackoff is the initial backoff between transaction retries;
	// it doubles per attempt (default: 25ms).
	TxRetryBackoff time.Duration `json:"tx_retry_backoff" mapstructure:"tx_retry_backoff" yaml:"tx_retry_backoff"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Driver:         "memory",
		MongoDatabase:  "giya",
		CommissionBps:  1000,
		TxRetries:      3,
		TxRetryBackoff: 25 * time.Millisecond,
	}
}
