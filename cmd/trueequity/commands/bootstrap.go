package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// bootstrapCmd force-loads symbols once
var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap [symbols...]",
	Short: "Force-load profile, prices, RSI, fundamentals and score",
	Long: `Run every refresh for each symbol, bypassing staleness gates.

Without arguments the configured universe is loaded.

Example:
  go run ./cmd/trueequity bootstrap
  go run ./cmd/trueequity bootstrap AAPL MSFT`,
	RunE: runBootstrap,
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	symbols := a.symbolsOr(args)
	PrintHeader("Bootstrap", symbols)

	report, err := a.ingest.Bootstrap(cmd.Context(), symbols)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	PrintCycleReport(&report.CycleReport)
	fmt.Println()
	PrintSuccess(fmt.Sprintf("%d succeeded", len(report.Succeeded)))
	if len(report.Failed) > 0 {
		PrintError(fmt.Sprintf("%d failed: %v", len(report.Failed), report.Failed))
	}

	if len(symbols) > 0 && len(report.Succeeded) == 0 {
		return fmt.Errorf("every symbol failed")
	}
	return nil
}
