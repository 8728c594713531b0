package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go-buildbuddy/internal/config"
	"go-buildbuddy/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "buildbuddy",
	Short: "Hardware repair and design assistant",
	Long: `BuildBuddy analyzes photos of circuit boards and descriptions of hardware
problems and answers with a structured, markdown-formatted diagnosis.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			logger.SetLevel(level)
		}
	},
}

// loadConfig honours --env-file before falling back to ENV_FILE. LOG_LEVEL
// from the loaded config applies unless --log-level was given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")

	var cfg *config.Config
	var err error
	if envFile == "" {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.Load(envFile)
	}
	if err != nil {
		return nil, err
	}

	if !cmd.Flags().Changed("log-level") {
		logger.SetLevel(cfg.LogLevel)
	}
	return cfg, nil
}

func main() {
	// Add global flags
	rootCmd.PersistentFlags().String("env-file", "", "Path to a .env file (default: $ENV_FILE or .env)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides LOG_LEVEL)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
