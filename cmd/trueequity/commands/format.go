package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/s0_data/ingest"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// every command prints through these helpers
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a formatted command header
func PrintHeader(title string, symbols []string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
	if len(symbols) > 0 {
		fmt.Printf("  Symbols   : %s\n", strings.Join(symbols, ", "))
		PrintSeparator()
	}
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintResult prints one refresh result on a single line
func PrintResult(res ingest.Result) {
	icon := map[contracts.RefreshOutcome]string{
		contracts.OutcomeRefreshed: "✅",
		contracts.OutcomeSkipped:   "⏭️ ",
		contracts.OutcomeAbsent:    "➖",
		contracts.OutcomeFailed:    "❌",
	}[res.Outcome]

	line := fmt.Sprintf("%s %-8s %-13s %s", icon, res.Symbol, res.Kind, res.Outcome)
	if res.Count > 0 {
		line += fmt.Sprintf(" (%d)", res.Count)
	}
	if res.Error != "" {
		line += ": " + res.Error
	}
	fmt.Println(line)
}

// PrintCycleReport prints per-kind counts and every failure of a cycle
func PrintCycleReport(report *ingest.CycleReport) {
	widths := []int{14, 10, 8, 8, 8}
	PrintTableHeader([]string{"Kind", "Refreshed", "Skipped", "Absent", "Failed"}, widths)

	kinds := make([]string, 0, len(report.Counts))
	for kind := range report.Counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		c := report.Counts[contracts.RefreshKind(kind)]
		PrintTableRow([]string{
			kind,
			fmt.Sprint(c.Refreshed),
			fmt.Sprint(c.Skipped),
			fmt.Sprint(c.Absent),
			fmt.Sprint(c.Failed),
		}, widths)
	}

	if report.FailedCount() > 0 {
		fmt.Println()
		for _, res := range report.Results {
			if res.Outcome == contracts.OutcomeFailed {
				PrintResult(res)
			}
		}
	}

	fmt.Println()
	fmt.Printf("Completed in %.2fs\n", report.FinishedAt.Sub(report.StartedAt).Seconds())
}

// PrintScore prints a score snapshot
func PrintScore(score *contracts.ScoreSnapshot) {
	PrintKeyValue("Symbol", score.Symbol, 14)
	PrintKeyValue("Calculated", score.CalculatedAt.Format("2006-01-02 15:04:05 MST"), 14)
	PrintKeyValue("Overall", fmt.Sprintf("%s (%s)", score.OverallScore.StringFixed(2), score.OverallGrade), 14)
	PrintKeyValue("Valuation", fmt.Sprintf("%s (%s, %s)", score.ValuationScore.StringFixed(2), score.ValuationGrade, score.ValuationCategory), 14)
	PrintKeyValue("Health", fmt.Sprintf("%s (%s)", score.HealthScore.StringFixed(2), score.HealthGrade), 14)
	PrintKeyValue("Growth", fmt.Sprintf("%s (%s)", score.GrowthScore.StringFixed(2), score.GrowthGrade), 14)
	PrintKeyValue("Risk", fmt.Sprintf("%s (%s)", score.RiskScore.StringFixed(2), score.RiskGrade), 14)
}
