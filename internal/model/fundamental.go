package model

import "time"

// Canonical metric names carried by a FundamentalSnapshot. These match the
// column set of the fundamentals table so snapshots round-trip storage
// without renaming.
const (
	MetricPERatio       = "pe_ratio"
	MetricPBRatio       = "pb_ratio"
	MetricDividendYield = "dividend_yield"
	MetricMarketCap     = "market_cap"
	MetricTotalDebt     = "total_debt"
	MetricTotalEquity   = "total_equity"
	MetricNetIncome     = "net_income"
	MetricTotalAssets   = "total_assets"
)

// FundamentalSnapshot holds the fundamental metrics reported for a symbol at
// one point in time. Snapshots arrive at a much lower frequency than bars and
// are looked up as "most recent at or before t".
type FundamentalSnapshot struct {
	Symbol  string             `json:"symbol"`
	TS      time.Time          `json:"ts"`
	Metrics map[string]float64 `json:"metrics"`
}

// Metric returns the named metric and whether it is present. Callers must
// treat absence as "undefined", never as zero.
func (f *FundamentalSnapshot) Metric(name string) (float64, bool) {
	v, ok := f.Metrics[name]
	return v, ok
}
