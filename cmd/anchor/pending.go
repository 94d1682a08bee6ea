package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"sentra-hq/anchor/pkg/cli"
	"sentra-hq/anchor/pkg/ledger/fallback"
)

var pendingFlags struct {
	state  string
	output string
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List records in the local fallback store",
	Long: `List evidence registrations held in the local fallback store.

By default only records awaiting reconciliation are shown. Use --state to
inspect records flagged for operator review or records kept after anchoring.

Examples:
  # Records awaiting reconciliation
  anchor pending

  # Records needing operator attention
  anchor pending --state review

  # JSON output for scripting
  anchor pending --output json`,
	RunE: runPending,
}

func init() {
	rootCmd.AddCommand(pendingCmd)

	pendingCmd.Flags().StringVarP(&pendingFlags.state, "state", "s", "pending", "record state (pending, anchored, review)")
	pendingCmd.Flags().StringVarP(&pendingFlags.output, "output", "o", "text", "output format (text, json)")
}

func runPending(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	state := fallback.State(pendingFlags.state)
	switch state {
	case fallback.StatePending, fallback.StateAnchored, fallback.StateReview:
	default:
		return cli.NewCommandError("pending", fmt.Errorf("invalid --state %q", pendingFlags.state))
	}

	fb, err := openFallback(cfg)
	if err != nil {
		return cli.NewCommandError("pending", err)
	}
	defer fb.Close()

	records, err := fb.List(cmd.Context(), state)
	if err != nil {
		return cli.NewCommandError("pending", err)
	}

	if pendingFlags.output == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, records)
	}

	if len(records) == 0 {
		fmt.Printf("No %s records.\n", state)
		return nil
	}

	counts, err := fb.CountByState(cmd.Context())
	if err != nil {
		return cli.NewCommandError("pending", err)
	}

	for _, rec := range records {
		fmt.Printf("%s  %s\n", rec.Fingerprint.Hex(), rec.State)
		fmt.Printf("  Local Receipt: %s\n", rec.LocalReceiptID)
		fmt.Printf("  Registrant:    %s\n", rec.Registrant)
		fmt.Printf("  Enqueued At:   %s\n", rec.EnqueuedAt.Format(time.RFC3339))
		fmt.Printf("  Attempts:      %d\n", rec.Attempts)
		if rec.LastError != "" {
			fmt.Printf("  Last Error:    %s\n", rec.LastError)
		}
		if rec.State == fallback.StateAnchored {
			fmt.Printf("  Position:      %d\n", rec.AnchoredPosition)
			fmt.Printf("  Anchored At:   %s\n", rec.AnchoredAt.Format(time.RFC3339))
		}
	}

	fmt.Printf("\n%d pending, %d review, %d anchored\n",
		counts[fallback.StatePending], counts[fallback.StateReview], counts[fallback.StateAnchored])
	return nil
}
