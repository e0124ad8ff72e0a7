package model

import (
	"encoding/json"
	"time"
)

// Bar represents one OHLCV observation for a single symbol.
// Prices are float64; volume is a non-negative share count.
type Bar struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // observation time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	buf, _ := json.Marshal(b)
	return buf
}
