package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"sentra-hq/anchor/pkg/cli"
	"sentra-hq/anchor/pkg/ledger"
	"sentra-hq/anchor/pkg/ledger/verify"
)

var verifyFlags struct {
	output string
}

var verifyCmd = &cobra.Command{
	Use:   "verify <fingerprint>",
	Short: "Look up a registered evidence fingerprint",
	Long: `Look up a fingerprint in the ledger and print the registered record.

Records known only to the local fallback store are reported as provisional:
their integrity is locally asserted, not yet externally anchored.

Examples:
  anchor verify 3a7bd3e2360a3d29eea436fcfb7e44c735d117c42d1c1835420b6b9942dd4f1b
  anchor verify --output json 3a7bd3e2360a3d29eea436fcfb7e44c735d117c42d1c1835420b6b9942dd4f1b`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVarP(&verifyFlags.output, "output", "o", "text", "output format (text, json)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fp, err := ledger.ParseFingerprint(args[0])
	if err != nil {
		return cli.NewCommandError("verify", err)
	}

	l, err := openLedger(cfg)
	if err != nil {
		return cli.NewCommandError("verify", err)
	}
	defer l.Close()

	fb, err := openFallback(cfg)
	if err != nil {
		return cli.NewCommandError("verify", err)
	}
	defer fb.Close()

	result, err := verify.New(l, fb).Lookup(cmd.Context(), fp)
	if err != nil {
		if ledger.IsNotFound(err) {
			fmt.Printf("✗ Not registered: %s\n", fp.Hex())
			os.Exit(1)
		}
		return cli.NewCommandError("verify", err)
	}

	if verifyFlags.output == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, result)
	}

	if result.Provisional {
		fmt.Printf("… Provisional: %s\n", result.Record.Fingerprint.Hex())
		fmt.Printf("  Local State:   %s\n", result.LocalState)
		fmt.Printf("  Registrant:    %s\n", result.Record.Registrant)
		fmt.Printf("  Enqueued At:   %s\n", result.Record.RegisteredAt.Format(time.RFC3339))
		fmt.Println("  Integrity is locally asserted; the record has not been anchored yet.")
		return nil
	}

	fmt.Printf("✓ Registered: %s\n", result.Record.Fingerprint.Hex())
	fmt.Printf("  Position:      %d\n", result.Record.Position)
	fmt.Printf("  Registrant:    %s\n", result.Record.Registrant)
	fmt.Printf("  Registered At: %s\n", result.Record.RegisteredAt.Format(time.RFC3339))
	fmt.Printf("  Submission ID: %s\n", result.Record.SubmissionID)
	fmt.Printf("  Metadata:      %s\n", result.Record.Metadata)
	return nil
}
