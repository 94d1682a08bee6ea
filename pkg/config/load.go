package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file, applies defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := NewDefault()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Variables follow the naming convention
// ANCHOR_SECTION_FIELD (e.g. ANCHOR_SERVER_LISTEN_ADDRESS) and always take
// precedence over file values.
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies ANCHOR_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("ANCHOR_LEDGER_BACKEND"); val != "" {
		cfg.Ledger.Backend = val
	}
	if val := os.Getenv("ANCHOR_LEDGER_PATH"); val != "" {
		cfg.Ledger.Path = val
	}

	if val := os.Getenv("ANCHOR_REMOTE_BASE_URL"); val != "" {
		cfg.Remote.BaseURL = val
	}
	if val := os.Getenv("ANCHOR_REMOTE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Remote.Timeout = d
		}
	}

	if val := os.Getenv("ANCHOR_FALLBACK_PATH"); val != "" {
		cfg.Fallback.Path = val
	}

	if val := os.Getenv("ANCHOR_RECONCILE_SCHEDULE"); val != "" {
		cfg.Reconcile.Schedule = val
	}
	if val := os.Getenv("ANCHOR_RECONCILE_MAX_ATTEMPTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Reconcile.MaxAttempts = n
		}
	}
	if val := os.Getenv("ANCHOR_RECONCILE_MAX_CYCLES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Reconcile.MaxCycles = n
		}
	}

	if val := os.Getenv("ANCHOR_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}

	if val := os.Getenv("ANCHOR_CAPTURE_DIR"); val != "" {
		cfg.Capture.Dir = val
	}
	if val := os.Getenv("ANCHOR_CAPTURE_REGISTRANT"); val != "" {
		cfg.Capture.Registrant = val
	}

	if val := os.Getenv("ANCHOR_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("ANCHOR_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("ANCHOR_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
}
