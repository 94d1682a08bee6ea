package config

import "time"

// Default values for configuration fields.
const (
	// Ledger defaults
	DefaultLedgerBackend      = "sqlite"
	DefaultLedgerPath         = "data/ledger.db"
	DefaultLedgerMaxOpenConns = 10
	DefaultLedgerMaxIdleConns = 5
	DefaultLedgerWALMode      = true
	DefaultLedgerBusyTimeout  = 5 * time.Second

	// Remote client defaults
	DefaultRemoteTimeout      = 3 * time.Second
	DefaultRemoteMaxIdleConns = 10

	// Fallback defaults
	DefaultFallbackPath = "data/fallback.db"

	// Reconcile defaults
	DefaultReconcileSchedule       = "@every 1m"
	DefaultReconcileBatchSize      = 50
	DefaultReconcileMaxAttempts    = 3
	DefaultReconcileInitialBackoff = time.Second
	DefaultReconcileMaxBackoff     = 30 * time.Second
	DefaultReconcileMaxCycles      = 10

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8480"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// Capture defaults
	DefaultCaptureSettleDelay = 500 * time.Millisecond

	// Telemetry defaults
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultMetricsEnabled = true
)

// DefaultCaptureExtensions are the evidence file extensions the watcher
// processes by default.
var DefaultCaptureExtensions = []string{".jpg", ".jpeg", ".png", ".mp4"}

// ApplyDefaults fills zero-valued configuration fields with defaults.
// Boolean fields that default to true are handled by NewDefault; ApplyDefaults
// does not override an explicit false.
func ApplyDefaults(cfg *Config) {
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = DefaultLedgerBackend
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = DefaultLedgerPath
	}
	if cfg.Ledger.MaxOpenConns == 0 {
		cfg.Ledger.MaxOpenConns = DefaultLedgerMaxOpenConns
	}
	if cfg.Ledger.MaxIdleConns == 0 {
		cfg.Ledger.MaxIdleConns = DefaultLedgerMaxIdleConns
	}
	if cfg.Ledger.BusyTimeout == 0 {
		cfg.Ledger.BusyTimeout = DefaultLedgerBusyTimeout
	}

	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = DefaultRemoteTimeout
	}
	if cfg.Remote.MaxIdleConns == 0 {
		cfg.Remote.MaxIdleConns = DefaultRemoteMaxIdleConns
	}

	if cfg.Fallback.Path == "" {
		cfg.Fallback.Path = DefaultFallbackPath
	}

	if cfg.Reconcile.Schedule == "" {
		cfg.Reconcile.Schedule = DefaultReconcileSchedule
	}
	if cfg.Reconcile.BatchSize == 0 {
		cfg.Reconcile.BatchSize = DefaultReconcileBatchSize
	}
	if cfg.Reconcile.MaxAttempts == 0 {
		cfg.Reconcile.MaxAttempts = DefaultReconcileMaxAttempts
	}
	if cfg.Reconcile.InitialBackoff == 0 {
		cfg.Reconcile.InitialBackoff = DefaultReconcileInitialBackoff
	}
	if cfg.Reconcile.MaxBackoff == 0 {
		cfg.Reconcile.MaxBackoff = DefaultReconcileMaxBackoff
	}
	if cfg.Reconcile.MaxCycles == 0 {
		cfg.Reconcile.MaxCycles = DefaultReconcileMaxCycles
	}

	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if len(cfg.Capture.Extensions) == 0 {
		cfg.Capture.Extensions = append([]string(nil), DefaultCaptureExtensions...)
	}
	if cfg.Capture.SettleDelay == 0 {
		cfg.Capture.SettleDelay = DefaultCaptureSettleDelay
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
}

// NewDefault returns a configuration with every default applied, including
// booleans that default to true.
func NewDefault() *Config {
	cfg := &Config{}
	cfg.Ledger.WALMode = DefaultLedgerWALMode
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	ApplyDefaults(cfg)
	return cfg
}
