package config

import "time"

// Config is the root configuration structure for the Anchor evidence
// integrity ledger. It covers the ledger backend, the remote ledger client,
// the local fallback store, background reconciliation, the HTTP service,
// the capture watcher, and telemetry.
type Config struct {
	// Ledger selects and configures the authoritative ledger backend.
	Ledger LedgerConfig `yaml:"ledger"`

	// Remote configures the client side when the authoritative ledger is
	// a remote service rather than an embedded backend.
	Remote RemoteConfig `yaml:"remote"`

	// Fallback configures the durable local store for registrations made
	// while the remote ledger is unreachable.
	Fallback FallbackConfig `yaml:"fallback"`

	// Reconcile configures background replay of pending records.
	Reconcile ReconcileConfig `yaml:"reconcile"`

	// Server configures the ledger HTTP service.
	Server ServerConfig `yaml:"server"`

	// Capture configures the capture directory watcher.
	Capture CaptureConfig `yaml:"capture"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LedgerConfig configures the authoritative ledger backend.
type LedgerConfig struct {
	// Backend selects the storage backend: "sqlite" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file path.
	// Default: "data/ledger.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the connection pool size.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the idle connection count.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the lock wait duration.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RemoteConfig configures the remote ledger client. When BaseURL is empty
// the process uses its embedded ledger backend directly.
type RemoteConfig struct {
	// BaseURL is the base URL of the remote ledger service.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each remote ledger call; overruns take the local
	// fallback path.
	// Default: 3s
	Timeout time.Duration `yaml:"timeout"`

	// MaxIdleConns is the HTTP connection pool size.
	// Default: 10
	MaxIdleConns int `yaml:"max_idle_conns"`
}

// FallbackConfig configures the local fallback store.
type FallbackConfig struct {
	// Path is the fallback database file path.
	// Default: "data/fallback.db"
	Path string `yaml:"path"`
}

// ReconcileConfig configures background reconciliation.
type ReconcileConfig struct {
	// Schedule is the cron expression for periodic cycles.
	// Default: "@every 1m"
	Schedule string `yaml:"schedule"`

	// BatchSize is the maximum records claimed per cycle.
	// Default: 50
	BatchSize int `yaml:"batch_size"`

	// MaxAttempts is the register tries per record within one cycle.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoff is the first retry delay within a cycle.
	// Default: 1s
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the retry delay within a cycle.
	// Default: 30s
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// MaxCycles is the number of failed cycles before a record is flagged
	// for operator review.
	// Default: 10
	MaxCycles int `yaml:"max_cycles"`
}

// ServerConfig configures the ledger HTTP service.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8480"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the graceful shutdown budget.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CaptureConfig configures the capture directory watcher.
type CaptureConfig struct {
	// Dir is the captures directory to watch. Empty disables the watcher.
	Dir string `yaml:"dir"`

	// Registrant is the identity used for watcher submissions.
	Registrant string `yaml:"registrant"`

	// Extensions lists the evidence file extensions to process.
	// Default: [".jpg", ".jpeg", ".png", ".mp4"]
	Extensions []string `yaml:"extensions"`

	// SettleDelay is the quiet period before a new file is submitted.
	// Default: 500ms
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// TelemetryConfig configures logging and metrics.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in logs.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled exposes the /metrics endpoint on the HTTP service.
	// Default: true
	Enabled bool `yaml:"enabled"`
}
