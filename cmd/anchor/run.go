package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"sentra-hq/anchor/pkg/capture"
	"sentra-hq/anchor/pkg/cli"
	"sentra-hq/anchor/pkg/ledger/client"
	"sentra-hq/anchor/pkg/ledger/reconcile"
	"sentra-hq/anchor/pkg/server"
	"sentra-hq/anchor/pkg/telemetry/logging"
	"sentra-hq/anchor/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Anchor ledger service",
	Long: `Start the Anchor ledger service with the specified configuration.

The service exposes the registration and verification API over HTTP, runs
the background reconciler for records registered during ledger outages, and
optionally watches a capture directory for new evidence files.

When remote.base_url is configured the process runs as an agent: submissions
go to the remote ledger and the local fallback store absorbs outages.
Otherwise the process hosts the authoritative ledger itself.

Examples:
  # Start with default config
  anchor run

  # Start with custom config
  anchor run --config /etc/anchor/anchor.yaml

  # Override listen address
  anchor run --listen 0.0.0.0:8480

  # Validate config without starting the service
  anchor run --dry-run`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the service")
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
		if _, err := logging.Setup(logging.Config{
			Level:     cfg.Telemetry.Logging.Level,
			Format:    cfg.Telemetry.Logging.Format,
			AddSource: cfg.Telemetry.Logging.AddSource,
		}); err != nil {
			return cli.NewConfigError("telemetry.logging", err.Error())
		}
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Anchor v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Metrics
	var collector *metrics.Collector
	var ledgerMetrics *metrics.LedgerMetrics
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector()
		ledgerMetrics = collector.Ledger
	}

	// Ledger backend or remote client
	l, err := openLedger(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer l.Close()

	if cfg.Remote.BaseURL != "" {
		fmt.Printf("✓ Remote ledger: %s\n", cfg.Remote.BaseURL)
	} else {
		fmt.Printf("✓ Ledger backend: %s\n", cfg.Ledger.Backend)
	}

	// Fallback store and reconciliation
	fb, err := openFallback(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer fb.Close()

	reconciler := reconcile.New(l, fb, &reconcile.Config{
		Schedule:       cfg.Reconcile.Schedule,
		BatchSize:      cfg.Reconcile.BatchSize,
		MaxAttempts:    cfg.Reconcile.MaxAttempts,
		InitialBackoff: cfg.Reconcile.InitialBackoff,
		MaxBackoff:     cfg.Reconcile.MaxBackoff,
		MaxCycles:      cfg.Reconcile.MaxCycles,
	}, ledgerMetrics)

	scheduler := reconcile.NewScheduler(reconciler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer scheduler.Stop()
	fmt.Printf("✓ Reconciler scheduled (%s)\n", cfg.Reconcile.Schedule)

	// Submission client, shared by the capture watcher
	submitClient := client.New(l, fb, client.DefaultConfig(), ledgerMetrics)
	submitClient.SetReconcileKick(scheduler.Kick)

	errChan := make(chan error, 2)

	// Capture watcher (optional). Watch blocks, so it runs alongside the
	// HTTP service; a watcher failure takes the process down with it.
	if cfg.Capture.Dir != "" {
		watcher, err := capture.NewWatcher(submitClient, &capture.WatcherConfig{
			Dir:         cfg.Capture.Dir,
			Registrant:  cfg.Capture.Registrant,
			Extensions:  cfg.Capture.Extensions,
			SettleDelay: cfg.Capture.SettleDelay,
		})
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				errChan <- err
			}
		}()
		defer watcher.Stop()
		fmt.Printf("✓ Watching capture directory: %s\n", cfg.Capture.Dir)
	}

	// HTTP service
	srv := server.New(&cfg.Server, l, server.Options{
		Metrics:   ledgerMetrics,
		Collector: collector,
	})

	go func() {
		if err := srv.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	fmt.Println()
	fmt.Printf("✓ Service listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if collector != nil {
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := cli.WaitForShutdown()

	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}

		fmt.Println("✓ Service stopped")
		return nil
	}
}
