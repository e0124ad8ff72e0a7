package model

import (
	"encoding/json"
	"time"
)

// Frequency tags an indicator value with the bar frequency it was computed
// from.
type Frequency string

const (
	FreqDaily  Frequency = "D"
	FreqWeekly Frequency = "W"
)

// IndicatorValue holds one computed indicator observation. Exactly one value
// exists per (name, symbol, timestamp, frequency) within a run; storage
// overwrites on conflict.
type IndicatorValue struct {
	Name   string    `json:"name"` // e.g. "SMA_20", "RSI_14", "MACD_12_26"
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // bar timestamp that produced this value
	Freq   Frequency `json:"freq"`
	Value  float64   `json:"value"`
}

// Key returns "name:symbol:freq", unique per indicator series.
func (v *IndicatorValue) Key() string {
	return v.Name + ":" + v.Symbol + ":" + string(v.Freq)
}

// StreamKey returns the Redis stream key: "ind:{name}:{freq}:{symbol}".
func (v *IndicatorValue) StreamKey() string {
	return "ind:" + v.Name + ":" + string(v.Freq) + ":" + v.Symbol
}

// JSON returns the JSON-encoded indicator value.
func (v *IndicatorValue) JSON() []byte {
	b, _ := json.Marshal(v)
	return b
}
