package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached page indexes",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached page index",
	Long: `Remove cached page indexes from the memory and durable tiers.
The next index or ask for a page embeds it again.`,
	Args: cobra.NoArgs,
	RunE: runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	a, log, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer func() { _ = a.Close() }()

	if err := a.ClearCache(); err != nil {
		return err
	}
	fmt.Println("✓ Cleared document cache")
	return nil
}
