package pipeline

import "earnrev/internal/export"

// defaultUniverse is the S&P 500 research sample: five liquid names
// from different sectors so earnings cycles and seasonality differ
// across the batch. Overridable from the CLI.
var defaultUniverse = []export.Constituent{
	{Symbol: "AAPL", Name: "Apple Inc.", Sector: "Technology"},
	{Symbol: "JPM", Name: "JPMorgan Chase & Co.", Sector: "Financials"},
	{Symbol: "JNJ", Name: "Johnson & Johnson", Sector: "Healthcare"},
	{Symbol: "XOM", Name: "Exxon Mobil Corporation", Sector: "Energy"},
	{Symbol: "WMT", Name: "Walmart Inc.", Sector: "Consumer Defensive"},
}

// Universe returns constituents for the requested symbols, or the
// default sample when none are given. Symbols outside the known
// sample carry an Unknown sector rather than being rejected.
func Universe(symbols []string) []export.Constituent {
	if len(symbols) == 0 {
		return defaultUniverse
	}

	known := make(map[string]export.Constituent, len(defaultUniverse))
	for _, c := range defaultUniverse {
		known[c.Symbol] = c
	}

	out := make([]export.Constituent, 0, len(symbols))
	for _, s := range symbols {
		if c, ok := known[s]; ok {
			out = append(out, c)
			continue
		}
		out = append(out, export.Constituent{Symbol: s, Name: s, Sector: "Unknown"})
	}
	return out
}
