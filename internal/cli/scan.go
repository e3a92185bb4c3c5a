package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/verisum/internal/model"
)

var (
	outJSON     string
	scanTimeout time.Duration
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Scan a page and verify every checkable sentence",
	Long: `Scan fetches a page and indexes it, then picks sentences that look like
checkable claims (attributions, origins, absolutes, causal statements and
quantities) and verifies each one as if it had been flagged.

Example:
  verisum scan https://en.wikipedia.org/wiki/Laksa
  verisum scan https://example.com --json report.json`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&outJSON, "json", "", "write the full report to this JSON path")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 5*time.Minute, "overall scan timeout")
}

func runScan(cmd *cobra.Command, args []string) error {
	url := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), scanTimeout)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Scanning: %s\n", url)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", scanTimeout)
		fmt.Fprintln(os.Stderr)
	}

	a, log, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer func() { _ = a.Close() }()

	report, err := a.Scan(ctx, url)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	printReport(report)

	if outJSON != "" {
		if err := writeJSONFile(outJSON, report); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", outJSON)
	}
	return nil
}

func printReport(r *model.ScanReport) {
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  %s\n", r.Subject)
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println()
	fmt.Printf("  Source:      %s\n", r.SourceURL)
	fmt.Printf("  Indexed:     %d entries in %d sections\n", r.Stats.EntryCount, r.Stats.DistinctSectionCount)
	fmt.Printf("  Candidates:  %d\n", r.Candidates)
	fmt.Printf("  Verified:    %d\n", len(r.Claims))
	for _, v := range []model.Verdict{model.VerdictFalse, model.VerdictMisleading, model.VerdictTrue, model.VerdictUnverified} {
		if n := r.Verdicts[v]; n > 0 {
			fmt.Printf("    %-11s %d\n", v, n)
		}
	}
	fmt.Println()

	for _, c := range r.Claims {
		if c.Verdict == model.VerdictUnverified && !verbose {
			continue
		}
		printClaim(c)
		fmt.Println()
	}

	for _, e := range r.Errors {
		fmt.Fprintf(os.Stderr, "✗ %s\n", e)
	}
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
