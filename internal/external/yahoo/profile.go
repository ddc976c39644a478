package yahoo

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/trueequity/backend/internal/contracts"
)

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol           string   `json:"symbol"`
			LongName         string   `json:"longName"`
			ShortName        string   `json:"shortName"`
			FullExchangeName string   `json:"fullExchangeName"`
			Exchange         string   `json:"exchange"`
			Sector           string   `json:"sector"`
			Industry         string   `json:"industry"`
			MarketCap        *float64 `json:"marketCap"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

// FetchProfile implements contracts.Provider.
// The quote endpoint is tried first, then chart metadata, then the HTML profile page.
func (c *Client) FetchProfile(ctx context.Context, symbol string) (*contracts.Instrument, error) {
	var lastErr error

	steps := []struct {
		name string
		fn   func(context.Context, string) (*contracts.Instrument, error)
	}{
		{"quote", c.profileFromQuote},
		{"chart", c.profileFromChart},
		{"page", c.profileFromPage},
	}

	for _, step := range steps {
		info, err := step.fn(ctx, symbol)
		if err != nil {
			c.logger.WithSymbol(symbol).WithField("source", step.name).WithError(err).Debug("Profile lookup failed")
			lastErr = err
			continue
		}
		if info != nil {
			return info, nil
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

func (c *Client) profileFromQuote(ctx context.Context, symbol string) (*contracts.Instrument, error) {
	var resp quoteResponse
	if err := c.httpClient.GetJSON(ctx, c.quoteURL(symbol), &resp); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo quote %s: %w", symbol, err)
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return nil, nil
	}

	q := resp.QuoteResponse.Result[0]
	return c.buildInstrument(symbol,
		pick(q.LongName, q.ShortName),
		pick(q.FullExchangeName, q.Exchange),
		q.Sector, q.Industry, q.MarketCap), nil
}

func (c *Client) profileFromChart(ctx context.Context, symbol string) (*contracts.Instrument, error) {
	result, err := c.fetchChart(ctx, symbol, dailyParams())
	if err != nil || result == nil {
		return nil, err
	}

	m := result.Meta
	return c.buildInstrument(symbol,
		pick(m.LongName, m.ShortName),
		m.ExchangeName,
		m.Sector, m.Industry, m.MarketCap), nil
}

func (c *Client) profileFromPage(ctx context.Context, symbol string) (*contracts.Instrument, error) {
	body, err := c.httpClient.GetBody(ctx, c.profileURL(symbol))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo profile page %s: %w", symbol, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse profile page: %w", err)
	}

	name, sector, industry := parseProfilePage(doc)
	return c.buildInstrument(symbol, name, "", sector, industry, nil), nil
}

// parseProfilePage extracts name, sector and industry from the profile page markup
func parseProfilePage(doc *goquery.Document) (name, sector, industry string) {
	name = strings.TrimSpace(doc.Find("h1").First().Text())
	// "Apple Inc. (AAPL)" -> "Apple Inc."
	if idx := strings.LastIndex(name, " ("); idx > 0 {
		name = strings.TrimSpace(name[:idx])
	}

	doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(dt.Text()), ":")))
		value := strings.TrimSpace(dt.NextFiltered("dd").Text())
		switch label {
		case "sector", "sector(s)":
			sector = value
		case "industry":
			industry = value
		}
	})
	return name, sector, industry
}

// buildInstrument returns nil when name is unusable
func (c *Client) buildInstrument(symbol, name, exchange, sector, industry string, marketCap *float64) *contracts.Instrument {
	inst := contracts.Instrument{
		Symbol:    contracts.NormalizeSymbol(symbol),
		Name:      strings.TrimSpace(name),
		Exchange:  strings.TrimSpace(exchange),
		Sector:    cleanText(sector),
		Industry:  cleanText(industry),
		UpdatedAt: c.opts.Clock.Now().UTC(),
	}
	if !inst.HasUsableName() {
		return nil
	}
	if inst.Exchange == "" {
		inst.Exchange = c.opts.DefaultExchange
	}
	if marketCap != nil && *marketCap > 0 {
		mc := int64(*marketCap)
		inst.MarketCap = &mc
	}
	return &inst
}

func pick(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" && !strings.EqualFold(s, "null") {
			return s
		}
	}
	return ""
}
