package backtest

import "quantdb/internal/model"

// fillPrice applies slippage in the direction adverse to the order: buys
// fill higher, sells fill lower.
func fillPrice(side model.Side, price, slippageBps float64) float64 {
	if slippageBps == 0 {
		return price
	}
	slip := price * slippageBps / 10000
	if side == model.SideBuy {
		return price + slip
	}
	return price - slip
}
