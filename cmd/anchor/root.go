package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "anchor",
	Short: "Anchor - evidence integrity ledger",
	Long: `Anchor is an evidence integrity ledger for captured media.

It computes tamper-evident fingerprints for evidence files and anchors them
in an append-only ledger, providing:
  - Deterministic SHA-256 evidence fingerprints over content and metadata
  - An append-only ledger with first-writer-wins registration
  - A durable local fallback store for ledger outages
  - Background reconciliation of pending records
  - Verification lookups for audit and evidence review`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "anchor.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
