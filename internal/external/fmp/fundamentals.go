package fmp

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trueequity/backend/internal/contracts"
)

var hundred = decimal.NewFromInt(100)

type profileRow struct {
	CompanyName       string   `json:"companyName"`
	ExchangeShortName string   `json:"exchangeShortName"`
	Exchange          string   `json:"exchange"`
	Sector            *string  `json:"sector"`
	Industry          *string  `json:"industry"`
	MarketCap         *float64 `json:"marketCap"`
	MktCap            *float64 `json:"mktCap"`
	PERatio           *float64 `json:"peRatio"`
	PE                *float64 `json:"pe"`
	SharesOutstanding *float64 `json:"sharesOutstanding"`
}

func (p profileRow) marketCap() int64 {
	if p.MarketCap != nil {
		return int64(*p.MarketCap)
	}
	if p.MktCap != nil {
		return int64(*p.MktCap)
	}
	return 0
}

type incomeRow struct {
	Date            string  `json:"date"`
	Revenue         float64 `json:"revenue"`
	NetIncome       float64 `json:"netIncome"`
	GrossProfit     float64 `json:"grossProfit"`
	OperatingIncome float64 `json:"operatingIncome"`
	EPS             float64 `json:"eps"`
}

type balanceRow struct {
	CashAndCashEquivalents  float64  `json:"cashAndCashEquivalents"`
	TotalDebt               *float64 `json:"totalDebt"`
	TotalStockholdersEquity float64  `json:"totalStockholdersEquity"`
	TotalAssets             float64  `json:"totalAssets"`
	TotalCurrentAssets      float64  `json:"totalCurrentAssets"`
	TotalCurrentLiabilities float64  `json:"totalCurrentLiabilities"`
}

type keyMetricsRow struct {
	PERatio            float64 `json:"peRatio"`
	PriceEarningsRatio float64 `json:"priceEarningsRatio"`
	PE                 float64 `json:"pe"`
	PriceToBookRatio   float64 `json:"priceToBookRatio"`
	PEGRatio           float64 `json:"pegRatio"`
}

// FetchProfile implements contracts.Provider
func (c *Client) FetchProfile(ctx context.Context, symbol string) (*contracts.Instrument, error) {
	row, err := c.fetchProfileRow(ctx, symbol)
	if err != nil || row == nil {
		return nil, err
	}

	inst := contracts.Instrument{
		Symbol:    contracts.NormalizeSymbol(symbol),
		Name:      strings.TrimSpace(row.CompanyName),
		Exchange:  firstNonEmpty(row.ExchangeShortName, row.Exchange, "NASDAQ"),
		Sector:    nonEmpty(row.Sector),
		Industry:  nonEmpty(row.Industry),
		UpdatedAt: c.clock.Now().UTC(),
	}
	if !inst.HasUsableName() {
		return nil, nil
	}
	if mc := row.marketCap(); mc > 0 {
		inst.MarketCap = &mc
	}
	return &inst, nil
}

func (c *Client) fetchProfileRow(ctx context.Context, symbol string) (*profileRow, error) {
	var rows []profileRow
	ok, err := c.get(ctx, "/profile", symbol, 0, &rows)
	c.logUsage()
	if err != nil || !ok {
		return nil, err
	}
	return &rows[0], nil
}

// FetchFundamentals implements contracts.Provider.
// The income statement is required; the other endpoints only enrich.
func (c *Client) FetchFundamentals(ctx context.Context, symbol string) (*contracts.FundamentalSnapshot, error) {
	var income []incomeRow
	ok, err := c.get(ctx, "/income-statement", symbol, 2, &income)
	if err != nil || !ok {
		if err == nil {
			c.logger.WithSymbol(symbol).Debug("No income statement, cannot build fundamentals")
		}
		return nil, err
	}

	var balance []balanceRow
	if _, err := c.get(ctx, "/balance-sheet-statement", symbol, 1, &balance); err != nil {
		c.logger.WithSymbol(symbol).WithError(err).Debug("Balance sheet unavailable")
	}

	profile, err := c.fetchProfileRow(ctx, symbol)
	if err != nil {
		c.logger.WithSymbol(symbol).WithError(err).Debug("Profile unavailable")
	}

	var metrics []keyMetricsRow
	if _, err := c.get(ctx, "/key-metrics", symbol, 1, &metrics); err != nil {
		c.logger.WithSymbol(symbol).WithError(err).Debug("Key metrics unavailable")
	}
	c.logUsage()

	snap := buildSnapshot(symbol, income, balance, profile, metrics, c.clock.Now().UTC())
	return &snap, nil
}

// buildSnapshot derives one annual snapshot from the statement rows
func buildSnapshot(symbol string, income []incomeRow, balance []balanceRow, profile *profileRow, metrics []keyMetricsRow, now time.Time) contracts.FundamentalSnapshot {
	snap := contracts.FundamentalSnapshot{
		Symbol:        contracts.NormalizeSymbol(symbol),
		PeriodType:    contracts.PeriodAnnual,
		PeriodEndDate: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		UpdatedAt:     now,
	}

	cur := income[0]
	if end, err := time.Parse("2006-01-02", cur.Date); err == nil {
		snap.PeriodEndDate = end
	}
	year := snap.PeriodEndDate.Year()
	snap.FiscalYear = &year

	revenue, netIncome := int64(cur.Revenue), int64(cur.NetIncome)
	operatingIncome := int64(cur.OperatingIncome)
	if revenue > 0 {
		snap.Revenue = &revenue
	}
	if netIncome != 0 {
		snap.NetIncome = &netIncome
	}
	if revenue > 0 {
		if netIncome != 0 {
			snap.ProfitMargin = pct(netIncome, revenue)
		}
		if gp := int64(cur.GrossProfit); gp > 0 {
			snap.GrossMargin = pct(gp, revenue)
		}
		if operatingIncome != 0 {
			snap.OperatingMargin = pct(operatingIncome, revenue)
		}
	}
	if cur.EPS != 0 {
		eps := decimal.NewFromFloat(cur.EPS)
		snap.EPSTTM = &eps
	}

	var equity int64
	if len(balance) > 0 {
		b := balance[0]
		equity = int64(b.TotalStockholdersEquity)

		if cash := int64(b.CashAndCashEquivalents); cash > 0 {
			snap.TotalCash = &cash
		}
		var debt int64
		if b.TotalDebt != nil && *b.TotalDebt >= 0 {
			debt = int64(*b.TotalDebt)
			snap.TotalDebt = &debt
		}
		if snap.TotalDebt != nil && equity > 0 {
			snap.DebtToEquity = ratio(debt, equity)
		}
		if ca, cl := int64(b.TotalCurrentAssets), int64(b.TotalCurrentLiabilities); ca > 0 && cl > 0 {
			snap.CurrentRatio = ratio(ca, cl)
		}
		if netIncome != 0 && equity > 0 {
			snap.ROE = pct(netIncome, equity)
		}
		if assets := int64(b.TotalAssets); netIncome != 0 && assets > 0 {
			snap.ROA = pct(netIncome, assets)
		}
		if invested := equity + debt; operatingIncome != 0 && invested > 0 {
			roic := decimal.NewFromInt(operatingIncome).Mul(hundred).DivRound(decimal.NewFromInt(invested), 4)
			snap.ROIC = &roic
		}
	}

	if len(metrics) > 0 {
		m := metrics[0]
		snap.PERatio = positive(m.PERatio, m.PriceEarningsRatio, m.PE)
		snap.PriceToBook = positive(m.PriceToBookRatio)
		snap.PEGRatio = positive(m.PEGRatio)
	}

	if profile != nil {
		if snap.PERatio == nil {
			snap.PERatio = positive(deref(profile.PERatio), deref(profile.PE))
		}
		if shares := int64(deref(profile.SharesOutstanding)); shares > 0 {
			snap.SharesOutstanding = &shares
		}
		if mc := profile.marketCap(); mc > 0 {
			if snap.PERatio == nil && netIncome > 0 {
				snap.PERatio = ratio(mc, netIncome)
			}
			if revenue > 0 {
				snap.PriceToSales = ratio(mc, revenue)
			}
			if equity > 0 {
				snap.PriceToBook = ratio(mc, equity)
			}
		}
	}

	if len(income) > 1 {
		prev := income[1]
		if prev.EPS != 0 {
			growth := decimal.NewFromFloat(cur.EPS).Sub(decimal.NewFromFloat(prev.EPS)).
				Div(decimal.NewFromFloat(prev.EPS)).Mul(hundred).Round(4)
			snap.EPSGrowthYoY = &growth
			if growth.IsPositive() && snap.PERatio != nil {
				peg := snap.PERatio.DivRound(growth, 4)
				snap.PEGRatio = &peg
			}
		}
		if prevRev := int64(prev.Revenue); revenue > 0 && prevRev > 0 {
			snap.RevenueGrowthYoY = pct(revenue-prevRev, prevRev)
		}
	}

	return snap
}

// pct returns num/den at 4dp, as a percentage
func pct(num, den int64) *decimal.Decimal {
	d := decimal.NewFromInt(num).DivRound(decimal.NewFromInt(den), 4).Mul(hundred)
	return &d
}

func ratio(num, den int64) *decimal.Decimal {
	d := decimal.NewFromInt(num).DivRound(decimal.NewFromInt(den), 4)
	return &d
}

func positive(values ...float64) *decimal.Decimal {
	for _, v := range values {
		if v > 0 {
			d := decimal.NewFromFloat(v)
			return &d
		}
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
