package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/verisum/internal/model"
)

var (
	flagReason    string
	flagContext   string
	flagElementID string
	flagTimeout   time.Duration
	jsonOutput    bool
	claimsURL     string
)

// flagCmd represents the flag command
var flagCmd = &cobra.Command{
	Use:   "flag <url> <text>",
	Short: "Verify a passage from a page and store the claim",
	Long: `Flag checks a passage against domain reputation, Wikipedia and published
fact-checks, then stores it as a claim with a confidence score and verdict.
Flagging the same passage on the same page again replaces the stored claim.

Example:
  verisum flag https://example.com/article "The moon landing was staged in 1969"
  verisum flag https://example.com/article "Coffee cures cancer" --reason "no source given"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runFlag,
}

// claimsCmd represents the claims command
var claimsCmd = &cobra.Command{
	Use:   "claims",
	Short: "List or clear stored claims",
}

var claimsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored claims",
	Long: `List stored claims, newest first, optionally only those for one page.

Example:
  verisum claims list
  verisum claims list --url https://example.com/article --json`,
	Args: cobra.NoArgs,
	RunE: runClaimsList,
}

var claimsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every stored claim",
	Args:  cobra.NoArgs,
	RunE:  runClaimsClear,
}

func init() {
	rootCmd.AddCommand(flagCmd)
	rootCmd.AddCommand(claimsCmd)
	claimsCmd.AddCommand(claimsListCmd)
	claimsCmd.AddCommand(claimsClearCmd)

	flagCmd.Flags().StringVar(&flagReason, "reason", "", "why the passage looks wrong")
	flagCmd.Flags().StringVar(&flagContext, "context", "", "surrounding text")
	flagCmd.Flags().StringVar(&flagElementID, "element-id", "", "id of the page element holding the passage")
	flagCmd.Flags().DurationVar(&flagTimeout, "timeout", time.Minute, "verification timeout")
	flagCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the claim as JSON")

	claimsListCmd.Flags().StringVar(&claimsURL, "url", "", "only claims for this page")
	claimsListCmd.Flags().BoolVar(&jsonOutput, "json", false, "print claims as JSON")
}

func runFlag(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	a, log, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer func() { _ = a.Close() }()

	claim, err := a.Verify(ctx, model.FlagRequest{
		URL:       args[0],
		Text:      strings.Join(args[1:], " "),
		Reason:    flagReason,
		Context:   flagContext,
		ElementID: flagElementID,
	})
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	if jsonOutput {
		return printJSON(claim)
	}
	printClaim(claim)
	return nil
}

func runClaimsList(cmd *cobra.Command, args []string) error {
	a, log, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer func() { _ = a.Close() }()

	claims, err := a.ListClaims(claimsURL)
	if err != nil {
		return err
	}
	if jsonOutput {
		if claims == nil {
			claims = []model.Claim{}
		}
		return printJSON(claims)
	}

	if len(claims) == 0 {
		fmt.Println("No claims stored")
		return nil
	}
	for i, c := range claims {
		if i > 0 {
			fmt.Println()
		}
		printClaim(c)
	}
	fmt.Fprintf(os.Stderr, "\n%d claim(s)\n", len(claims))
	return nil
}

func runClaimsClear(cmd *cobra.Command, args []string) error {
	a, log, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer func() { _ = a.Close() }()

	if err := a.ClearAllClaims(); err != nil {
		return err
	}
	fmt.Println("✓ Cleared all claims")
	return nil
}

func printClaim(c model.Claim) {
	fmt.Printf("%s %s (confidence %d/100)\n", verdictMark(c.Verdict), c.Verdict, c.Confidence)
	fmt.Printf("  Claim:   %s\n", truncate(c.Text, 200))
	fmt.Printf("  Page:    %s\n", c.URL)
	if c.UserReason != "" {
		fmt.Printf("  Reason:  %s\n", c.UserReason)
	}

	ev := c.Evidence
	if ev.Domain != nil {
		fmt.Printf("  Domain:  %s (%s, %d)\n", ev.Domain.Domain, ev.Domain.Category, ev.Domain.Score)
	}
	if ev.Encyclopedia != nil {
		state := "consistent"
		if !ev.Encyclopedia.Consistent {
			state = "inconsistent"
		}
		fmt.Printf("  Wiki:    %s, %d source(s)\n", state, len(ev.Encyclopedia.Sources))
	}
	if ev.HasFactCheck() {
		fmt.Printf("  Review:  %s by %s\n", ev.FactCheck.Rating, ev.FactCheck.Publisher)
		if ev.FactCheck.URL != "" {
			fmt.Printf("           %s\n", ev.FactCheck.URL)
		}
	}
	if ev.Analysis != nil {
		fmt.Printf("  LLM:     %s (%d)\n", ev.Analysis.Verdict, ev.Analysis.Confidence)
	}
	if verbose {
		fmt.Printf("  ID:      %s\n", c.ID)
		fmt.Printf("  Checked: %s\n", c.Timestamp.Format(time.RFC3339))
	}
}

func verdictMark(v model.Verdict) string {
	switch v {
	case model.VerdictTrue:
		return "✓"
	case model.VerdictFalse:
		return "✗"
	case model.VerdictMisleading:
		return "⚠️ "
	default:
		return "?"
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
