package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/verisum/internal/api"
	"github.com/ppiankov/verisum/internal/metrics"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API used by the browser extension",
	Long: `Serve exposes indexing, retrieval, question answering, claim verification
and page scanning over HTTP. Answers stream over a websocket at /v1/ask.
Prometheus metrics are served at /metrics.

Example:
  verisum serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, log, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer func() { _ = a.Close() }()

	metrics.Register()

	cfg := a.Config.Server
	fmt.Fprintf(os.Stderr, "✓ Listening on %s\n", cfg.Addr)
	if a.Answerer == nil {
		fmt.Fprintf(os.Stderr, "⚠️  Question answering disabled (set OPENAI_API_KEY)\n")
	}

	srv := api.NewServer(a, log)
	return srv.ListenAndServe(ctx, cfg.Addr, cfg.ReadTimeout, cfg.ShutdownTimeout)
}
