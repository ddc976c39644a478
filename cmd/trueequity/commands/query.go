package commands

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/trueequity/backend/internal/contracts"
)

var (
	rsiCmd = &cobra.Command{
		Use:   "rsi <symbol>",
		Short: "Show RSI, computing and storing it when none is stored",
		Long: `Read the latest stored RSI for a timeframe.
When nothing is stored it is computed now and persisted under today's date.

Example:
  go run ./cmd/trueequity rsi AAPL
  go run ./cmd/trueequity rsi AAPL --timeframe 1h`,
		Args: cobra.ExactArgs(1),
		RunE: runRSI,
	}

	scoreCmd = &cobra.Command{
		Use:   "score <symbol>",
		Short: "Show the latest score snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  runScore,
	}

	quoteCmd = &cobra.Command{
		Use:   "quote <symbol>",
		Short: "Show the live price next to the latest stored close",
		Long: `Fetch the latest price from the upstream provider without storing it,
and print it next to the most recent persisted close.

Example:
  go run ./cmd/trueequity quote AAPL`,
		Args: cobra.ExactArgs(1),
		RunE: runQuote,
	}

	rsiTimeframe string
)

func init() {
	rootCmd.AddCommand(rsiCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(quoteCmd)

	rsiCmd.Flags().StringVar(&rsiTimeframe, "timeframe", "1d", "1h, 30m, 2h or 1d")
}

func runRSI(cmd *cobra.Command, args []string) error {
	tf, err := contracts.ParseTimeframe(rsiTimeframe)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.technical.Get(cmd.Context(), args[0], tf)
	if errors.Is(err, contracts.ErrInsufficientData) {
		PrintWarning(fmt.Sprintf("Not enough %s history for %s", tf, contracts.NormalizeSymbol(args[0])))
		return nil
	}
	if err != nil {
		return fmt.Errorf("rsi: %w", err)
	}

	PrintKeyValue("Symbol", snap.Symbol, 10)
	PrintKeyValue("Timeframe", string(snap.Timeframe), 10)
	PrintKeyValue("Date", snap.Date.Format("2006-01-02"), 10)
	PrintKeyValue("RSI", snap.RSI.StringFixed(2), 10)
	return nil
}

func runScore(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	score, err := a.store.GetLatestScore(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}
	if score == nil {
		PrintWarning(fmt.Sprintf("No score stored for %s, run: refresh score %s", contracts.NormalizeSymbol(args[0]), args[0]))
		return nil
	}

	PrintScore(score)
	return nil
}

func runQuote(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	symbol := contracts.NormalizeSymbol(args[0])

	live, err := a.sources.Composite.FetchLatestPrice(cmd.Context(), symbol)
	if err != nil {
		return fmt.Errorf("quote: %w", err)
	}
	stored, err := a.store.GetLatestClose(cmd.Context(), symbol)
	if err != nil {
		return fmt.Errorf("quote: %w", err)
	}

	PrintKeyValue("Symbol", symbol, 12)
	PrintKeyValue("Live", priceOrDash(live), 12)
	PrintKeyValue("Stored", priceOrDash(stored), 12)
	if live == nil {
		PrintWarning(fmt.Sprintf("%s returned no price for %s", a.sources.Composite.Name(), symbol))
	}
	return nil
}

func priceOrDash(v *decimal.Decimal) string {
	if v == nil {
		return "-"
	}
	return v.StringFixed(2)
}
