package provider

import "strings"

// yahooAliases maps company-name style inputs to their exchange tickers
var yahooAliases = map[string]string{
	"ADOBE": "ADBE",
}

// NormalizeForYahoo returns the ticker Yahoo expects for symbol
func NormalizeForYahoo(symbol string) string {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	if alias, ok := yahooAliases[upper]; ok {
		return alias
	}
	return upper
}
