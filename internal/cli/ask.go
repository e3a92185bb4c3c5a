package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/verisum/internal/answer"
)

var (
	askTimeout time.Duration
	showPrompt bool
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index <url>",
	Short: "Fetch a page and build its vector index",
	Long: `Index fetches a page, splits it into headings, paragraphs and list items,
and embeds the paragraphs. The index is cached, so indexing the same
unchanged page again is free until the cache entry expires.

Example:
  verisum index https://en.wikipedia.org/wiki/Espresso`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask <url> <question>",
	Short: "Ask a question about a page",
	Long: `Ask indexes the page if needed, retrieves the passages closest to the
question and streams a short answer. Passages cited as [n] are listed
after the answer.

Example:
  verisum ask https://en.wikipedia.org/wiki/Espresso "Who invented the machine?"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(askCmd)

	indexCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "overall timeout")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "overall timeout")
	askCmd.Flags().BoolVar(&showPrompt, "show-prompt", false, "print the prompt sent to the model")
}

func progress(chunk, total int) {
	if verbose {
		fmt.Fprintf(os.Stderr, "   embedded chunk %d/%d\n", chunk, total)
	}
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
	defer cancel()

	a, log, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer func() { _ = a.Close() }()

	pg, stats, err := a.IndexURL(ctx, args[0], progress)
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}

	fmt.Printf("✓ Indexed %s\n", pg.URL)
	if pg.Title != "" {
		fmt.Printf("  Title:       %s\n", pg.Title)
	}
	fmt.Printf("  Parts:       %d\n", len(pg.Parts))
	fmt.Printf("  Entries:     %d\n", stats.EntryCount)
	fmt.Printf("  Sections:    %d\n", stats.DistinctSectionCount)
	fmt.Printf("  Characters:  %d\n", stats.TotalCharacters)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	url := args[0]
	question := strings.Join(args[1:], " ")

	ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
	defer cancel()

	a, log, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer func() { _ = a.Close() }()

	fmt.Fprintf(os.Stderr, "⚙️  Indexing %s...\n", url)
	pg, _, err := a.IndexURL(ctx, url, progress)
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}

	title := pg.Title
	if title == "" {
		title = pg.Subject
	}

	snapshots, err := a.Ask(ctx, title, question)
	if err != nil {
		return err
	}

	fmt.Println()
	var last answer.Snapshot
	printed := 0
	for snap := range snapshots {
		if len(snap.Answer) > printed {
			fmt.Print(snap.Answer[printed:])
			printed = len(snap.Answer)
		}
		last = snap
	}
	fmt.Println()

	if !last.Done {
		return fmt.Errorf("answer interrupted: %w", ctx.Err())
	}
	if last.Err != nil {
		return fmt.Errorf("answer failed: %w", last.Err)
	}

	if showPrompt {
		fmt.Fprintf(os.Stderr, "\n--- prompt ---\n%s\n", last.Prompt)
	}

	if len(last.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, src := range last.Sources {
			fmt.Printf("  [%s] %s\n", src.ID, truncate(src.Content, 160))
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
