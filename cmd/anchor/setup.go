package main

import (
	"fmt"
	"os"

	"sentra-hq/anchor/pkg/cli"
	"sentra-hq/anchor/pkg/config"
	"sentra-hq/anchor/pkg/ledger"
	"sentra-hq/anchor/pkg/ledger/fallback"
	"sentra-hq/anchor/pkg/ledger/remote"
	"sentra-hq/anchor/pkg/ledger/store"
	"sentra-hq/anchor/pkg/telemetry/logging"
)

// loadConfig loads the configuration file and initializes logging. A missing
// file is not an error: every field has a default, so commands work out of
// the box.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		cfg = config.NewDefault()
	} else {
		var loadErr error
		cfg, loadErr = config.LoadWithEnvOverrides(cfgFile)
		if loadErr != nil {
			return nil, cli.NewConfigError("", loadErr.Error())
		}
	}

	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if _, err := logging.Setup(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	}); err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}

	return cfg, nil
}

// openLedger builds the ledger the process talks to: the remote client when
// remote.base_url is configured, otherwise an embedded backend.
func openLedger(cfg *config.Config) (ledger.Ledger, error) {
	if cfg.Remote.BaseURL != "" {
		return remote.NewClient(&remote.Config{
			BaseURL:      cfg.Remote.BaseURL,
			Timeout:      cfg.Remote.Timeout,
			MaxIdleConns: cfg.Remote.MaxIdleConns,
		})
	}

	switch cfg.Ledger.Backend {
	case "sqlite":
		return store.NewSQLite(&store.SQLiteConfig{
			Path:         cfg.Ledger.Path,
			MaxOpenConns: cfg.Ledger.MaxOpenConns,
			MaxIdleConns: cfg.Ledger.MaxIdleConns,
			WALMode:      cfg.Ledger.WALMode,
			BusyTimeout:  cfg.Ledger.BusyTimeout,
		})
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", cfg.Ledger.Backend)
	}
}

// openFallback opens the durable local fallback store.
func openFallback(cfg *config.Config) (*fallback.Store, error) {
	return fallback.Open(cfg.Fallback.Path)
}
