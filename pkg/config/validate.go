package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All validation errors are
// collected and returned together as a *ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateLedger(&cfg.Ledger)...)
	errs = append(errs, validateRemote(&cfg.Remote)...)
	errs = append(errs, validateReconcile(&cfg.Reconcile)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateCapture(&cfg.Capture)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func validateLedger(cfg *LedgerConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "sqlite", "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "ledger.backend",
			Message: fmt.Sprintf("unknown backend %q (expected sqlite or memory)", cfg.Backend),
		})
	}

	if cfg.Backend == "sqlite" && cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "ledger.path",
			Message: "required for the sqlite backend",
		})
	}

	if cfg.MaxOpenConns < 0 {
		errs = append(errs, FieldError{
			Field:   "ledger.max_open_conns",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateRemote(cfg *RemoteConfig) []FieldError {
	var errs []FieldError

	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "remote.base_url",
				Message: fmt.Sprintf("not a valid URL: %q", cfg.BaseURL),
			})
		}
	}

	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "remote.timeout",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateReconcile(cfg *ReconcileConfig) []FieldError {
	var errs []FieldError

	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "reconcile.schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Schedule, err),
			})
		}
	}

	if cfg.BatchSize < 0 {
		errs = append(errs, FieldError{Field: "reconcile.batch_size", Message: "must not be negative"})
	}
	if cfg.MaxAttempts < 0 {
		errs = append(errs, FieldError{Field: "reconcile.max_attempts", Message: "must not be negative"})
	}
	if cfg.MaxCycles < 0 {
		errs = append(errs, FieldError{Field: "reconcile.max_cycles", Message: "must not be negative"})
	}
	if cfg.InitialBackoff > cfg.MaxBackoff && cfg.MaxBackoff != 0 {
		errs = append(errs, FieldError{
			Field:   "reconcile.initial_backoff",
			Message: "must not exceed reconcile.max_backoff",
		})
	}

	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "must not be empty"})
	} else if !strings.Contains(cfg.ListenAddress, ":") {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("missing port in %q", cfg.ListenAddress),
		})
	}

	return errs
}

func validateCapture(cfg *CaptureConfig) []FieldError {
	var errs []FieldError

	// The watcher is optional; when enabled it needs a registrant.
	if cfg.Dir != "" && cfg.Registrant == "" {
		errs = append(errs, FieldError{
			Field:   "capture.registrant",
			Message: "required when capture.dir is set",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q", cfg.Logging.Level),
		})
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q", cfg.Logging.Format),
		})
	}

	return errs
}
