package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/collie/internal/printer"
	"github.com/dyluth/collie/internal/report"
)

var (
	scanConfigPath string
	scanJSONL      bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single correlation cycle and print the result",
	Long: `Run exactly one discover -> retire -> scan -> link cycle and print
the resulting incident table.

Because collie keeps no state between processes, a one-shot scan sees every
open problem ticket as newly discovered and will link matching tickets from
the lookback window.

Examples:
  # One cycle with the default config file
  collie scan

  # Emit incidents as line-delimited JSON for jq
  collie scan --jsonl`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanConfigPath, "config", "collie.yml", "Path to collie.yml")
	scanCmd.Flags().BoolVar(&scanJSONL, "jsonl", false, "Output incidents as line-delimited JSON")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	eng, _, err := buildEngine(scanConfigPath)
	if err != nil {
		return err
	}

	summary, err := eng.RunCycle(context.Background())
	if err != nil {
		return printer.Error("Correlation cycle failed", err.Error(), nil)
	}

	if summary.Idle {
		printer.Info("No active incidents\n")
		return nil
	}

	printer.Println()
	if scanJSONL {
		if err := report.FormatJSONL(os.Stdout, summary.Incidents); err != nil {
			return printer.Error("Failed to render incidents", err.Error(), nil)
		}
	} else {
		report.FormatIncidentTable(os.Stdout, summary.Incidents)
	}

	printer.Printf("\nScanned %d candidate(s), linked %d\n",
		summary.CandidatesScanned, summary.Linked)
	return nil
}
