package model

// Side is the direction of an order intent.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderIntent is a strategy's request to change a position. Intents carry no
// price; the simulation engine resolves the execution price from the
// configured lag policy, slippage and commission.
type OrderIntent struct {
	Symbol string `json:"symbol"`
	Side   Side   `json:"side"`
	Qty    int64  `json:"qty"` // shares, always positive
}
