package extension

import (
	"time"

	giya "github.com/giya-app/giya"
	"github.com/giya-app/giya/plugin"
	"github.com/giya-app/giya/store"
)

// Option configures the Giya Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine, bypassing the config driver.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a giya.Option through to the underlying engine.
func WithEngineOption(opt giya.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a giya plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, giya.WithPlugin(p))
	}
}

// WithReferralResolver wires a referral graph into the engine.
func WithReferralResolver(r giya.ReferralResolver) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, giya.WithReferralResolver(r))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithDriver selects the store backend by name.
func WithDriver(driver, dsn string) Option {
	return func(e *Extension) {
		e.config.Driver = driver
		e.config.DSN = dsn
	}
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithCommissionBps sets the referral commission rate in basis points.
func WithCommissionBps(bps int64) Option {
	return func(e *Extension) { e.config.CommissionBps = bps }
}

// WithTxRetry configures transaction retry behavior.
func WithTxRetry(retries int, backoff time.Duration) Option {
	return func(e *Extension) {
		e.config.TxRetries = retries
		e.config.TxRetryBackoff = backoff
	}
}
