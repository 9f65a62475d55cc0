// Package main implements the grokcapture CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"grokcapture/internal/config"
	"grokcapture/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "grokcapture",
	Short: "Save Grok-generated images with their prompts embedded",
	Long: `grokcapture watches a Grok conversation in Chromium and saves every generated
image exactly once as a JPEG, with the prompt, software and session written into
its EXIF tags and a per-session sequence number in the file name.

Run "grokcapture watch" to start capturing.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		// GROKCAPTURE_* overrides may come from a .env file; real environment wins.
		if err := godotenv.Load(); err != nil {
			logger.Debug("No .env file found, using environment variables")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: "+config.DefaultPath+")")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for offline commands")

	counterCmd.AddCommand(counterListCmd)
	counterCmd.AddCommand(counterShowCmd)
	counterCmd.AddCommand(counterResetCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(counterCmd)
	rootCmd.AddCommand(capturesCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath
}

// loadConfig reads and validates the config file, falling back to defaults when it
// does not exist.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolvedConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured counter backend. db is nil for the memory driver.
func openStore(cfg *config.Config) (backend store.Backend, db *store.SQLiteStore, err error) {
	if cfg.Store.Driver == "memory" {
		logger.Warn("Using in-memory counter store; counters are lost on exit")
		return store.NewMemoryBackend(), nil, nil
	}
	db, err = store.OpenSQLite(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return db, db, nil
}

func offlineContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
