// Package extension provides the Forge extension adapter for Giya.
//
// It implements the forge.Extension interface to integrate Giya
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.giya" or "giya" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	giya "github.com/giya-app/giya"
	"github.com/giya-app/giya/store"
	"github.com/giya-app/giya/store/memory"
	mongostore "github.com/giya-app/giya/store/mongo"
	"github.com/giya-app/giya/store/sqlstore"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "giya"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Hyperlocal loyalty points and redemption engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Giya as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *giya.Engine
	store      store.Store
	engineOpts []giya.Option
}

// New creates a new Giya Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Giya instance.
// This is nil until Register is called.
func (e *Extension) Engine() *giya.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Build the store from config unless one was provided programmatically.
	if e.store == nil {
		s, err := e.buildStore()
		if err != nil {
			return err
		}
		e.store = s
	}

	opts := e.buildEngineOpts()

	e.engine = giya.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*giya.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("giya: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("giya: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildStore constructs the store backend named by the resolved config.
func (e *Extension) buildStore() (store.Store, error) {
	switch e.config.Driver {
	case "", "memory":
		return memory.New(), nil
	case "sqlite":
		if e.config.DSN == "" {
			return nil, errors.New("giya: sqlite driver requires a dsn")
		}
		return sqlstore.OpenSQLite(e.config.DSN)
	case "postgres":
		if e.config.DSN == "" {
			return nil, errors.New("giya: postgres driver requires a dsn")
		}
		return sqlstore.OpenPostgres(e.config.DSN)
	case "mongo":
		if e.config.DSN == "" {
			return nil, errors.New("giya: mongo driver requires a dsn")
		}
		return mongostore.Open(e.config.DSN, e.config.MongoDatabase)
	default:
		return nil, fmt.Errorf("giya: unknown store driver %q", e.config.Driver)
	}
}

// buildEngineOpts constructs giya.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []giya.Option {
	opts := make([]giya.Option, 0, len(e.engineOpts)+2)

	if e.config.CommissionBps > 0 {
		opts = append(opts, giya.WithCommissionRate(e.config.CommissionBps))
	}
	if e.config.TxRetries > 0 && e.config.TxRetryBackoff > 0 {
		opts = append(opts, giya.WithTxRetry(e.config.TxRetries, e.config.TxRetryBackoff))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("giya: configuration is required but not found in config files; " +
				"ensure 'extensions.giya' or 'giya' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("giya: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("driver", e.config.Driver),
		forge.F("commission_bps", e.config.CommissionBps),
		forge.F("tx_retries", e.config.TxRetries),
		forge.F("tx_retry_backoff", e.config.TxRetryBackoff),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.giya" first (namespaced pattern).
	if cm.IsSet("extensions.giya") {
		if err := cm.Bind("extensions.giya", &cfg); err == nil {
			e.Logger().Debug("giya: loaded config from file",
				forge.F("key", "extensions.giya"),
			)
			return cfg, true
		}
		e.Logger().Warn("giya: failed to bind extensions.giya config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "giya" key.
	if cm.IsSet("giya") {
		if err := cm.Bind("giya", &cfg); err == nil {
			e.Logger().Debug("giya: loaded config from file",
				forge.F("key", "giya"),
			)
			return cfg, true
		}
		e.Logger().Warn("giya: failed to bind giya config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Driver == "" {
		cfg.Driver = defaults.Driver
	}
	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = defaults.MongoDatabase
	}
	if cfg.CommissionBps == 0 {
		cfg.CommissionBps = defaults.CommissionBps
	}
	if cfg.TxRetries == 0 {
		cfg.TxRetries = defaults.TxRetries
	}
	if cfg.TxRetryBackoff == 0 {
		cfg.TxRetryBackoff = defaults.TxRetryBackoff
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.Driver == "" && programmaticConfig.Driver != "" {
		yamlConfig.Driver = programmaticConfig.Driver
	}
	if yamlConfig.DSN == "" && programmaticConfig.DSN != "" {
		yamlConfig.DSN = programmaticConfig.DSN
	}
	if yamlConfig.MongoDatabase == "" && programmaticConfig.MongoDatabase != "" {
		yamlConfig.MongoDatabase = programmaticConfig.MongoDatabase
	}

	// Numeric fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.CommissionBps == 0 && programmaticConfig.CommissionBps != 0 {
		yamlConfig.CommissionBps = programmaticConfig.CommissionBps
	}
	if yamlConfig.TxRetries == 0 && programmaticConfig.TxRetries != 0 {
		yamlConfig.TxRetries = programmaticConfig.TxRetries
	}
	if yamlConfig.TxRetryBackoff == 0 && programmaticConfig.TxRetryBackoff != 0 {
		yamlConfig.TxRetryBackoff = programmaticConfig.TxRetryBackoff
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
