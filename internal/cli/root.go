package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/verisum/internal/app"
	"github.com/ppiankov/verisum/internal/logger"
	"github.com/ppiankov/verisum/internal/model"
)

// Version is set at build time
var Version = "v0.1.0"

var (
	cfgFile  string
	verbose  bool
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "verisum",
	Short: "Verisum - ask questions about a page and check what it claims",
	Long: `Verisum indexes web pages into an in-memory vector index so you can
ask questions about them and get short answers citing the passages used.

Passages can also be flagged for verification. Each flagged passage is
checked against domain reputation, Wikipedia and published fact-checks,
and stored as a claim with a confidence score and a verdict.

Verisum reports what its sources say. It is not an oracle.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Cancelling ctx stops long-running commands.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of Verisum.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("verisum %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.verisum/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in .env, the config file and ENV variables
func initConfig() {
	// .env is optional
	_ = godotenv.Load()

	if err := setupViper(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		return
	}
	if verbose && viper.ConfigFileUsed() != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setupViper seeds v with the built-in defaults, merges the config file on top
// and enables VERISUM_* overrides such as VERISUM_CACHE_DRIVER.
func setupViper(v *viper.Viper, file string) error {
	defaults, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return fmt.Errorf("read defaults: %w", err)
	}

	v.SetEnvPrefix("VERISUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys omitted from the defaults still need to be known for env lookups
	for _, key := range []string{
		"embedding.api_key", "embedding.base_url", "llm.api_key", "llm.base_url",
		"answer.api_key", "answer.base_url", "evidence.fact_check_api_key",
		"http.http_proxy", "http.https_proxy", "http.no_proxy",
	} {
		_ = v.BindEnv(key)
	}

	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		file = filepath.Join(home, ".verisum", "config.yaml")
		if _, err := os.Stat(file); err != nil {
			// No config file, defaults and env only
			return nil
		}
	}

	v.SetConfigFile(file)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("merge %s: %w", file, err)
	}
	return nil
}

// loadConfig builds the effective configuration from v.
// Well-known provider variables fill keys that are still empty.
func loadConfig(v *viper.Viper) (model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyProviderEnv(&cfg)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyProviderEnv(cfg *model.Config) {
	openaiKey := os.Getenv("OPENAI_API_KEY")
	if cfg.Embedding.APIKey == "" {
		switch cfg.Embedding.Provider {
		case "openai":
			cfg.Embedding.APIKey = openaiKey
		case "gemini":
			cfg.Embedding.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	if cfg.Answer.APIKey == "" {
		cfg.Answer.APIKey = openaiKey
	}
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.APIKey = openaiKey
		case "anthropic", "claude":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.LLM.Provider == "ollama" && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if cfg.Evidence.FactCheckAPIKey == "" {
		cfg.Evidence.FactCheckAPIKey = os.Getenv("FACTCHECK_API_KEY")
	}
}

// newApp loads the configuration and wires the application.
// The caller closes the app and syncs the logger.
func newApp(ctx context.Context) (*app.App, *zap.Logger, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	if verbose && cfg.Logging.Level == "info" {
		cfg.Logging.Level = "debug"
	}

	log, err := logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}

	a, err := app.New(logger.ContextWithLogger(ctx, log), cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}
