package model

import (
	"encoding/json"
	"time"
)

// Trade records one round trip (or open leg) of a position. A trade is
// created on the opening fill and closed by an offsetting fill or, when
// configured, at run end. ExitTS stays zero while the trade is open.
type Trade struct {
	Symbol      string    `json:"symbol"`
	EntryTS     time.Time `json:"entry_ts"`
	ExitTS      time.Time `json:"exit_ts,omitempty"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price,omitempty"`
	Qty         int64     `json:"qty"` // signed: negative = short
	RealizedPnL float64   `json:"realized_pnl,omitempty"`
}

// Open reports whether the trade has not been closed yet.
func (t *Trade) Open() bool {
	return t.ExitTS.IsZero()
}

// JSON returns the JSON-encoded trade.
func (t *Trade) JSON() []byte {
	b, _ := json.Marshal(t)
	return b
}
