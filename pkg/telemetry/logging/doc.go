// Package logging configures structured logging for the ledger service on
// top of log/slog. Components obtain scoped loggers with
// slog.Default().With("component", ...), so installing the configured
// handler as the process default is enough to wire the whole service.
package logging
