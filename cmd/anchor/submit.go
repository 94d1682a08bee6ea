package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"sentra-hq/anchor/pkg/cli"
	"sentra-hq/anchor/pkg/ledger/client"
	"sentra-hq/anchor/pkg/ledger/fingerprint"
)

var submitFlags struct {
	file       string
	cameraID   int64
	incidentID int64
	capturedAt string
	registrant string
	extra      []string
	output     string
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Register an evidence file with the ledger",
	Long: `Compute the fingerprint of an evidence file and register it with the
ledger. When the ledger is unreachable the registration is written to the
local fallback store and anchored later by the reconciler.

Examples:
  # Register a capture
  anchor submit --file capture.jpg --camera 12 --incident 7 --registrant unit-42

  # With an explicit capture timestamp and extra metadata
  anchor submit --file capture.jpg --camera 12 --incident 7 --registrant unit-42 \
    --captured-at 2026-08-30T14:05:00Z --extra location=gate-3

  # JSON output
  anchor submit --file capture.jpg --camera 12 --incident 7 --registrant unit-42 --output json`,
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVarP(&submitFlags.file, "file", "f", "", "evidence file path (required)")
	submitCmd.Flags().Int64Var(&submitFlags.cameraID, "camera", 0, "camera ID (required)")
	submitCmd.Flags().Int64Var(&submitFlags.incidentID, "incident", 0, "incident ID (required)")
	submitCmd.Flags().StringVar(&submitFlags.capturedAt, "captured-at", "", "capture timestamp (RFC3339, default: now)")
	submitCmd.Flags().StringVarP(&submitFlags.registrant, "registrant", "r", "", "registrant identity (required)")
	submitCmd.Flags().StringArrayVar(&submitFlags.extra, "extra", nil, "extra metadata as key=value (repeatable)")
	submitCmd.Flags().StringVarP(&submitFlags.output, "output", "o", "text", "output format (text, json)")

	_ = submitCmd.MarkFlagRequired("file")
	_ = submitCmd.MarkFlagRequired("camera")
	_ = submitCmd.MarkFlagRequired("incident")
	_ = submitCmd.MarkFlagRequired("registrant")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	evidence, err := os.ReadFile(submitFlags.file)
	if err != nil {
		return cli.NewCommandError("submit", fmt.Errorf("failed to read evidence file: %w", err))
	}

	capturedAt := time.Now().UTC()
	if submitFlags.capturedAt != "" {
		capturedAt, err = time.Parse(time.RFC3339, submitFlags.capturedAt)
		if err != nil {
			return cli.NewCommandError("submit", fmt.Errorf("invalid --captured-at: %w", err))
		}
	}

	extra, err := parseExtra(submitFlags.extra)
	if err != nil {
		return cli.NewCommandError("submit", err)
	}

	l, err := openLedger(cfg)
	if err != nil {
		return cli.NewCommandError("submit", err)
	}
	defer l.Close()

	fb, err := openFallback(cfg)
	if err != nil {
		return cli.NewCommandError("submit", err)
	}
	defer fb.Close()

	c := client.New(l, fb, client.DefaultConfig(), nil)
	outcome, err := c.Submit(cmd.Context(), evidence, fingerprint.Metadata{
		CameraID:   submitFlags.cameraID,
		IncidentID: submitFlags.incidentID,
		CapturedAt: capturedAt,
		Extra:      extra,
	}, submitFlags.registrant)
	if err != nil {
		return cli.NewCommandError("submit", err)
	}

	if submitFlags.output == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, outcome)
	}

	printOutcome(outcome)
	if outcome.Status == client.StatusRejected {
		os.Exit(1)
	}
	return nil
}

func printOutcome(outcome *client.Outcome) {
	switch outcome.Status {
	case client.StatusAnchored:
		fmt.Printf("✓ Anchored: %s\n", outcome.Fingerprint.Hex())
		if outcome.Receipt != nil {
			fmt.Printf("  Position:      %d\n", outcome.Receipt.Position)
			fmt.Printf("  Registered At: %s\n", outcome.Receipt.RegisteredAt.Format(time.RFC3339))
			fmt.Printf("  Submission ID: %s\n", outcome.Receipt.SubmissionID)
		}
		if outcome.Idempotent {
			fmt.Println("  (already registered by this submitter)")
		}
	case client.StatusPendingLocal:
		fmt.Printf("… Pending locally: %s\n", outcome.Fingerprint.Hex())
		fmt.Printf("  Local Receipt: %s\n", outcome.LocalReceiptID)
		fmt.Println("  The ledger is unreachable; the record will be anchored by the reconciler.")
	case client.StatusRejected:
		fmt.Printf("✗ Rejected: %s\n", outcome.Reason)
		if outcome.Collision {
			fmt.Println("  The fingerprint is registered to a different registrant.")
		}
	}
}

// parseExtra parses repeated key=value flags into a metadata map.
func parseExtra(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	extra := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --extra %q: expected key=value", pair)
		}
		extra[key] = value
	}
	return extra, nil
}
