package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shriguhanp/AdaptivePedagogyAI/internal/llm"
	"github.com/shriguhanp/AdaptivePedagogyAI/internal/logger"
	"github.com/shriguhanp/AdaptivePedagogyAI/internal/store"
)

var (
	appConfig llm.Config
	appLog    *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "apai",
	Short: "LLM completion client with rate-limit fallback",
	Long: "apai issues LLM completions with bounded retries and an immediate switch to a\n" +
		"smaller fallback model when the requested one is rate limited, extracts JSON\n" +
		"from model replies, and inspects recorded attempts.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

// Execute runs the root command with ctx, which is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides APAI_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML or TOML config file (overrides APAI_CONFIG env var)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (default depends on terminal)")

	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(fallbacksCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads .env, the config file and APAI_* variables, builds the logger
// and merges configured fallbacks into the process-wide table.
func setup(cmd *cobra.Command) error {
	_ = godotenv.Load()

	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	appLog = logger.New(logger.Options{Level: level, Format: format, Output: cmd.ErrOrStderr()})

	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("APAI_CONFIG")
	}
	cfg, err := llm.LoadConfig(path)
	if err != nil {
		return err
	}

	// Without explicit configuration, use whichever well-known key is set.
	if path == "" && os.Getenv("APAI_LLM_PROVIDER") == "" && cfg.Endpoint().APIKey == "" {
		if found, ok := llm.DiscoverConfig(); ok {
			found.Model = cfg.Model
			found.Retry = cfg.Retry
			found.Params = cfg.Params
			found.Timeout = cfg.Timeout
			found.Fallbacks = cfg.Fallbacks
			cfg = found
			appLog.WithField("provider", cfg.Provider).Debug("discovered provider from environment")
		}
	}

	if err := llm.DefaultFallbacks.Merge(cfg.Fallbacks); err != nil {
		return fmt.Errorf("fallbacks: %w", err)
	}
	appConfig = cfg
	return nil
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then APAI_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}
