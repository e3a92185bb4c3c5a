package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/verisum/internal/model"
	"github.com/ppiankov/verisum/internal/worker"
)

var (
	outputDir    string
	batchTimeout time.Duration
	claimsMode   bool
	defaultURL   string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Scan many pages or verify many passages in parallel",
	Long: `Batch works in one of two modes:

URL mode (default): the file lists one URL per line. Each page is scanned
and its report written to the output directory.

Claims mode (--claims): the file holds one JSON flag request per line,
for example {"text": "...", "url": "...", "reason": "..."}. Each passage is
verified and stored like a flagged claim.

Blank lines and lines starting with # are ignored in both modes.

Example:
  verisum batch urls.txt --concurrency 8 --output-dir ./reports
  verisum batch flags.jsonl --claims --url https://example.com/article`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Int("concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./verisum-reports", "output directory for scan reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&claimsMode, "claims", false, "treat the file as JSON flag requests")
	batchCmd.Flags().StringVar(&defaultURL, "url", "", "page URL for claim lines that have none")

	_ = viper.BindPFlag("worker.concurrency", batchCmd.Flags().Lookup("concurrency"))
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	a, log, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer func() { _ = a.Close() }()

	mode := "urls"
	if claimsMode {
		mode = "claims"
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Verisum Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Mode:         %s\n", mode)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", a.Config.Worker.Concurrency)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	var total, failures int
	if claimsMode {
		total, failures, err = batchClaims(ctx, a.Batch, file)
	} else {
		total, failures, err = batchURLs(ctx, a.Batch, file)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d\n", total)
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", total-failures)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failures)
	if !claimsMode {
		fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	}
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

func batchURLs(ctx context.Context, processor *worker.BatchProcessor, file string) (total, failures int, err error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return 0, 0, fmt.Errorf("create output directory: %w", err)
	}

	fmt.Fprintf(os.Stderr, "⚙️  Scanning URLs...\n\n")
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return 0, 0, fmt.Errorf("process file: %w", err)
	}

	for _, result := range results {
		if result.Error != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.URL, result.Error)
			continue
		}

		jsonPath := filepath.Join(outputDir, sanitizeFilename(result.Report.Subject)+".json")
		if err := writeJSONFile(jsonPath, result.Report); err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.URL, err)
			continue
		}

		r := result.Report
		fmt.Fprintf(os.Stderr, "✓ %s (%d claims, %d false, %d misleading)\n",
			r.Subject, len(r.Claims), r.Verdicts[model.VerdictFalse], r.Verdicts[model.VerdictMisleading])
	}
	return len(results), failures, nil
}

func batchClaims(ctx context.Context, processor *worker.BatchProcessor, file string) (total, failures int, err error) {
	requests, err := worker.ReadRequestsFromFile(file, defaultURL)
	if err != nil {
		return 0, 0, fmt.Errorf("read requests: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Loaded %d requests\n\n", len(requests))

	for _, result := range processor.VerifyAll(ctx, requests) {
		if result.Error != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %q: %v\n", truncate(result.Request.Text, 60), result.Error)
			continue
		}
		c := result.Claim
		fmt.Fprintf(os.Stderr, "%s %s %d/100 %q\n", verdictMark(c.Verdict), c.Verdict, c.Confidence, truncate(c.Text, 60))
	}
	return len(requests), failures, nil
}

// sanitizeFilename turns a page subject into a safe file name
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(strings.TrimSpace(s))
	s = strings.Trim(s, ".")
	if s == "" {
		s = "report"
	}

	// Limit length
	if r := []rune(s); len(r) > 100 {
		s = string(r[:100])
	}
	return s
}
