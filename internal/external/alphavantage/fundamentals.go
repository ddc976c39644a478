package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trueequity/backend/internal/contracts"
)

const (
	fnOverview        = "OVERVIEW"
	fnIncomeStatement = "INCOME_STATEMENT"
	fnBalanceSheet    = "BALANCE_SHEET"
)

var hundred = decimal.NewFromInt(100)

type statement struct {
	Symbol        string              `json:"symbol"`
	AnnualReports []map[string]string `json:"annualReports"`
}

func (s *statement) latest() map[string]string {
	if s == nil || len(s.AnnualReports) == 0 {
		return nil
	}
	return s.AnnualReports[0]
}

// FetchProfile implements contracts.Provider from the company overview
func (c *Client) FetchProfile(ctx context.Context, symbol string) (*contracts.Instrument, error) {
	overview, err := c.fetchOverview(ctx, symbol)
	if err != nil || overview == nil {
		return nil, err
	}
	return profileFromOverview(symbol, overview, c.clock.Now().UTC()), nil
}

func profileFromOverview(symbol string, overview map[string]string, now time.Time) *contracts.Instrument {
	if _, ok := value(overview, "Symbol"); !ok {
		return nil
	}

	inst := &contracts.Instrument{
		Symbol:    contracts.NormalizeSymbol(symbol),
		Name:      strings.TrimSpace(overview["Name"]),
		Exchange:  strings.TrimSpace(overview["Exchange"]),
		MarketCap: intField(overview, "MarketCapitalization"),
		UpdatedAt: now,
	}
	if v, ok := value(overview, "Sector"); ok {
		inst.Sector = &v
	}
	if v, ok := value(overview, "Industry"); ok {
		inst.Industry = &v
	}
	return inst
}

// FetchFundamentals implements contracts.Provider.
// The income statement is required; balance sheet and overview only enrich.
func (c *Client) FetchFundamentals(ctx context.Context, symbol string) (*contracts.FundamentalSnapshot, error) {
	income, err := c.fetchStatement(ctx, fnIncomeStatement, symbol)
	if err != nil || income == nil {
		return nil, err
	}

	balance, err := c.fetchStatement(ctx, fnBalanceSheet, symbol)
	if err != nil {
		c.logger.WithSymbol(symbol).WithError(err).Debug("Balance sheet unavailable")
	}

	overview, err := c.fetchOverview(ctx, symbol)
	if err != nil {
		c.logger.WithSymbol(symbol).WithError(err).Debug("Overview unavailable")
	}

	snap := buildSnapshot(symbol, income, balance, overview, c.clock.Now().UTC())
	return &snap, nil
}

func (c *Client) fetchOverview(ctx context.Context, symbol string) (map[string]string, error) {
	body, err := c.query(ctx, fnOverview, symbol)
	if err != nil || body == nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode overview: %w", err)
	}

	overview := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			overview[k] = s
		}
	}
	return overview, nil
}

func (c *Client) fetchStatement(ctx context.Context, function, symbol string) (*statement, error) {
	body, err := c.query(ctx, function, symbol)
	if err != nil || body == nil {
		return nil, err
	}

	var st statement
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("decode %s: %w", strings.ToLower(function), err)
	}
	if len(st.AnnualReports) == 0 {
		return nil, nil
	}
	return &st, nil
}

// buildSnapshot maps the statements and overview onto one annual snapshot
func buildSnapshot(symbol string, income, balance *statement, overview map[string]string, now time.Time) contracts.FundamentalSnapshot {
	snap := contracts.FundamentalSnapshot{
		Symbol:        contracts.NormalizeSymbol(symbol),
		PeriodType:    contracts.PeriodAnnual,
		PeriodEndDate: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		UpdatedAt:     now,
	}

	if report := income.latest(); report != nil {
		if v, ok := value(report, "fiscalDateEnding"); ok {
			if end, err := time.Parse("2006-01-02", v); err == nil {
				snap.PeriodEndDate = end
			}
		}

		snap.Revenue = intField(report, "totalRevenue")
		snap.NetIncome = intField(report, "netIncome")
		if snap.Revenue != nil && snap.NetIncome != nil && *snap.Revenue > 0 {
			margin := decimal.NewFromInt(*snap.NetIncome).DivRound(decimal.NewFromInt(*snap.Revenue), 4).Mul(hundred)
			snap.ProfitMargin = &margin
		}
	}
	year := snap.PeriodEndDate.Year()
	snap.FiscalYear = &year

	if report := balance.latest(); report != nil {
		snap.TotalCash = intField(report, "cashAndShortTermInvestments")
		if snap.TotalCash == nil {
			snap.TotalCash = intField(report, "cashAndCashEquivalentsAtCarryingValue")
		}

		snap.TotalDebt = intField(report, "totalDebt")
		if snap.TotalDebt == nil {
			short, long := intField(report, "shortTermDebt"), intField(report, "longTermDebt")
			if short != nil || long != nil {
				var total int64
				if short != nil {
					total += *short
				}
				if long != nil {
					total += *long
				}
				snap.TotalDebt = &total
			}
		}

		if equity := intField(report, "totalShareholderEquity"); equity != nil && *equity > 0 && snap.TotalDebt != nil && *snap.TotalDebt > 0 {
			de := decimal.NewFromInt(*snap.TotalDebt).DivRound(decimal.NewFromInt(*equity), 4)
			snap.DebtToEquity = &de
		}

		assets, liabilities := intField(report, "totalCurrentAssets"), intField(report, "totalCurrentLiabilities")
		if assets != nil && liabilities != nil && *liabilities > 0 {
			cr := decimal.NewFromInt(*assets).DivRound(decimal.NewFromInt(*liabilities), 4)
			snap.CurrentRatio = &cr
		}
	}

	if overview != nil {
		snap.PERatio = decField(overview, "PERatio")
		snap.PEGRatio = decField(overview, "PEGRatio")
		snap.PriceToBook = decField(overview, "PriceToBookRatio")
		snap.PriceToSales = decField(overview, "PriceToSalesRatioTTM")
		snap.EVToEBITDA = decField(overview, "EVToEBITDA")
		snap.EPSTTM = decField(overview, "EPS")
		snap.SharesOutstanding = intField(overview, "SharesOutstanding")
		snap.ROE = decField(overview, "ReturnOnEquityTTM")
		snap.ROIC = decField(overview, "ReturnOnInvestedCapitalTTM")
		if snap.ROIC == nil {
			snap.ROIC = decField(overview, "ReturnOnInvestedCapital")
		}
		snap.ROA = decField(overview, "ReturnOnAssetsTTM")
		snap.OperatingMargin = decField(overview, "OperatingMarginTTM")

		gross, revenue := intField(overview, "GrossProfitTTM"), intField(overview, "RevenueTTM")
		if gross != nil && revenue != nil && *revenue > 0 {
			gm := decimal.NewFromInt(*gross).DivRound(decimal.NewFromInt(*revenue), 4).Mul(hundred)
			snap.GrossMargin = &gm
		}

		if g := decField(overview, "QuarterlyRevenueGrowthYOY"); g != nil {
			pct := g.Mul(hundred)
			snap.RevenueGrowthYoY = &pct
		}
		if g := decField(overview, "QuarterlyEarningsGrowthYOY"); g != nil {
			pct := g.Mul(hundred)
			snap.EPSGrowthYoY = &pct
		}
	}

	return snap
}
