package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trueequity",
	Short: "trueequity - equity data ingestion and scoring",
	Long: `trueequity CLI

Keeps instrument profiles, daily prices, fundamentals, RSI and scores
fresh for a configured universe of symbols.

Usage:
  go run ./cmd/trueequity [command]

Examples:
  go run ./cmd/trueequity scheduler start
  go run ./cmd/trueequity bootstrap AAPL MSFT
  go run ./cmd/trueequity refresh score AAPL --force
  go run ./cmd/trueequity rsi AAPL --timeframe 1h
  go run ./cmd/trueequity api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "pipeline YAML (default from PIPELINE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
