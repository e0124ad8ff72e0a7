package model

// Position represents the holding in one symbol inside a single run's
// portfolio. Qty is signed: positive = long, negative = short.
type Position struct {
	Symbol   string  `json:"symbol"`
	Qty      int64   `json:"qty"`
	AvgPrice float64 `json:"avg_price"` // average entry price
}

// MarketValue returns the position's value at the given mark price.
func (p *Position) MarketValue(mark float64) float64 {
	return float64(p.Qty) * mark
}

// UnrealizedPnL computes open profit/loss at the given mark price.
func (p *Position) UnrealizedPnL(mark float64) float64 {
	return (mark - p.AvgPrice) * float64(p.Qty)
}
