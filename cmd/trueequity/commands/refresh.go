package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/s0_data/ingest"
)

// refreshCmd exposes the per-symbol refresh triggers
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one refresh trigger for a symbol",
	Long: `Run a single staleness-gated refresh.

Subcommands:
  profile       - instrument profile (7 day gate)
  prices        - daily bars for the last --days days (default prices.refresh_days)
  fundamentals  - fundamentals snapshot (12 hour gate)
  score         - score recalculation (1 hour gate or newer inputs)
  rsi           - RSI for every configured timeframe

Example:
  go run ./cmd/trueequity refresh profile AAPL --force
  go run ./cmd/trueequity refresh prices AAPL --days 60`,
}

var (
	refreshForce bool
	refreshDays  int
)

func init() {
	rootCmd.AddCommand(refreshCmd)

	for _, sub := range []*cobra.Command{
		newRefreshCmd("profile", "Refresh the instrument profile", func(a *app, cmd *cobra.Command, symbol string) (ingest.Result, error) {
			return a.ingest.RefreshProfile(cmd.Context(), symbol, refreshForce)
		}),
		newRefreshCmd("prices", "Refresh daily bars", func(a *app, cmd *cobra.Command, symbol string) (ingest.Result, error) {
			days := refreshDays
			if days == 0 {
				days = a.pipeline.Prices.RefreshDays
			}
			end := contracts.SystemClock.Now()
			return a.ingest.RefreshPrices(cmd.Context(), symbol, end.AddDate(0, 0, -days), end)
		}),
		newRefreshCmd("fundamentals", "Refresh the fundamentals snapshot", func(a *app, cmd *cobra.Command, symbol string) (ingest.Result, error) {
			return a.ingest.RefreshFundamentals(cmd.Context(), symbol, refreshForce)
		}),
		newRefreshCmd("score", "Recalculate the score", func(a *app, cmd *cobra.Command, symbol string) (ingest.Result, error) {
			return a.ingest.RefreshScore(cmd.Context(), symbol, refreshForce)
		}),
		newRefreshCmd("rsi", "Recompute RSI for every timeframe", func(a *app, cmd *cobra.Command, symbol string) (ingest.Result, error) {
			return a.ingest.RefreshIndicators(cmd.Context(), symbol)
		}),
	} {
		refreshCmd.AddCommand(sub)
	}

	refreshCmd.PersistentFlags().BoolVar(&refreshForce, "force", false, "bypass the staleness gate")
	refreshCmd.PersistentFlags().IntVar(&refreshDays, "days", 0, "price window in days (default prices.refresh_days)")
}

type refreshFunc func(a *app, cmd *cobra.Command, symbol string) (ingest.Result, error)

func newRefreshCmd(use, short string, fn refreshFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <symbol>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if refreshDays < 0 {
				return fmt.Errorf("--days must be positive")
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			failed := 0
			for _, symbol := range args {
				res, err := fn(a, cmd, symbol)
				PrintResult(res)
				if err != nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d refreshes failed", failed, len(args))
			}
			return nil
		},
	}
}
