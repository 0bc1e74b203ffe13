// Command costctl runs estimates and maintains the taxonomy from the
// command line.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specsharp/internal/config"
	"specsharp/internal/logging"
)

var (
	// Global flags
	configPath   string
	taxonomyPath string
	verbose      bool

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "costctl",
	Short: "Construction cost and feasibility estimates",
	Long: `costctl runs the cost engine locally and maintains the building taxonomy.

Settings come from the same YAML file and environment variables as the API
server. A .env file in the working directory is read outside production.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("SPECSHARP_CONFIG"), "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&taxonomyPath, "taxonomy", "", "taxonomy document (overrides config; empty uses the built-in one)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(estimateCmd, taxonomyCmd, apikeyCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if taxonomyPath != "" {
		c.Taxonomy.Path = taxonomyPath
	}
	cfg = c

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger, err = logging.New(level, true)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
