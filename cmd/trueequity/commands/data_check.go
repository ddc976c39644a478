package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/s0_data/quality"
)

// dataCheckCmd represents the data check command
var dataCheckCmd = &cobra.Command{
	Use:   "data-check [symbols...]",
	Short: "Report stored data coverage",
	Long: `Check what is stored for each symbol of the universe.

Checked per symbol:
- daily bars in the last 7 days
- latest fundamentals snapshot
- live score snapshot
- RSI for every timeframe

With --save the snapshot is written to data_quality_snapshots (PostgreSQL only).

Example:
  go run ./cmd/trueequity data-check
  go run ./cmd/trueequity data-check AAPL MSFT --save`,
	RunE: runDataCheck,
}

var dataCheckSave bool

func init() {
	rootCmd.AddCommand(dataCheckCmd)
	dataCheckCmd.Flags().BoolVar(&dataCheckSave, "save", false, "persist the quality snapshot")
}

func runDataCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== trueequity data check ===")

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	symbols := a.symbolsOr(args)
	report, err := a.quality.Check(cmd.Context(), symbols, time.Now())
	if err != nil {
		return fmt.Errorf("data check: %w", err)
	}

	fmt.Println()
	widths := []int{8, 5, 13, 6, 4, 4, 4, 4}
	header := []string{"Symbol", "Bars", "Fundamentals", "Score"}
	for _, tf := range contracts.AllTimeframes {
		header = append(header, string(tf))
	}
	PrintTableHeader(header, widths)
	for _, cov := range report.Symbols {
		row := []string{cov.Symbol, fmt.Sprint(cov.Bars), mark(cov.HasFundamentals), mark(cov.HasScore)}
		for _, tf := range contracts.AllTimeframes {
			row = append(row, mark(cov.RSI[tf]))
		}
		PrintTableRow(row, widths)
	}

	printSnapshot(report)

	if dataCheckSave {
		if a.db == nil {
			PrintWarning("--save needs the postgres driver, snapshot not stored")
			return nil
		}
		if err := quality.NewRepository(a.db.Pool).SaveSnapshot(cmd.Context(), report.Snapshot); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		PrintSuccess("Snapshot saved")
	}
	return nil
}

func printSnapshot(report *quality.Report) {
	snap := report.Snapshot

	fmt.Println()
	PrintSeparator()
	PrintKeyValue("Symbols", fmt.Sprintf("%d (%d complete)", snap.TotalStocks, snap.ValidStocks), 14)
	for _, key := range []string{"price", "fundamentals", "score", "indicators"} {
		PrintKeyValue(key, fmt.Sprintf("%.1f%%", snap.Coverage[key]*100), 14)
	}
	PrintKeyValue("Quality score", fmt.Sprintf("%.2f", snap.QualityScore), 14)
	PrintSeparator()

	if snap.Passed {
		PrintSuccess("Coverage meets every threshold")
	} else {
		PrintWarning("Coverage below threshold")
	}
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "-"
}
