package model

import (
	"encoding/json"
	"time"
)

// EquityPoint is one sample of total portfolio value: cash plus positions
// marked to market. The simulation engine appends exactly one per timeline
// step.
type EquityPoint struct {
	TS     time.Time `json:"ts"`
	Equity float64   `json:"equity"`
}

// JSON returns the JSON-encoded equity point.
func (e *EquityPoint) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}
