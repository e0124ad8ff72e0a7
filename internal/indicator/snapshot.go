package indicator

import (
	"encoding/json"
	"fmt"

	"quantdb/internal/model"
)

// Snapshottable is implemented by indicators that support state serialization.
type Snapshottable interface {
	Indicator
	Snapshot() IndicatorSnapshot
	RestoreFromSnapshot(snap IndicatorSnapshot) error
}

// IndicatorSnapshot holds the serialized state of a single indicator
// instance. Restoring it and stepping on is numerically identical to never
// having paused.
type IndicatorSnapshot struct {
	Name   string `json:"name"`
	Type   string `json:"type"` // "SMA", "EMA", "SMMA", "RSI", "MACD"
	Period int    `json:"period,omitempty"`

	// SMA fields
	Buf     []float64 `json:"buf,omitempty"`
	Idx     int       `json:"idx,omitempty"`
	Count   int       `json:"count"`
	Sum     float64   `json:"sum,omitempty"`
	Current float64   `json:"current"`

	// EMA fields
	Multiplier float64 `json:"multiplier,omitempty"`

	// RSI fields
	PrevClose float64 `json:"prev_close,omitempty"`
	AvgGain   float64 `json:"avg_gain,omitempty"`
	AvgLoss   float64 `json:"avg_loss,omitempty"`

	// MACD fields
	Fast         int                 `json:"fast,omitempty"`
	Slow         int                 `json:"slow,omitempty"`
	SignalPeriod int                 `json:"signal_period,omitempty"`
	Hist         float64             `json:"hist,omitempty"`
	Subs         []IndicatorSnapshot `json:"subs,omitempty"`
}

// SymbolSnapshot holds the indicator snapshots for a single symbol.
type SymbolSnapshot struct {
	Symbol     string              `json:"symbol"`
	Indicators []IndicatorSnapshot `json:"indicators"`
}

// EngineSnapshot captures the full incremental state of an Engine.
type EngineSnapshot struct {
	Freq    model.Frequency  `json:"freq"`
	Symbols []SymbolSnapshot `json:"symbols"`
	Version int              `json:"version"` // schema version for forward compat
}

// SnapshotEngine captures the full state of an indicator Engine.
func SnapshotEngine(e *Engine) (*EngineSnapshot, error) {
	snap := &EngineSnapshot{
		Freq:    e.freq,
		Version: 1,
	}
	for _, symbol := range e.symbols() {
		st := e.state[symbol]
		ss := SymbolSnapshot{
			Symbol:     symbol,
			Indicators: make([]IndicatorSnapshot, 0, len(st.indicators)),
		}
		for _, ind := range st.indicators {
			si, ok := ind.(Snapshottable)
			if !ok {
				return nil, fmt.Errorf("indicator %s does not implement Snapshottable", ind.Name())
			}
			ss.Indicators = append(ss.Indicators, si.Snapshot())
		}
		snap.Symbols = append(snap.Symbols, ss)
	}
	return snap, nil
}

// RestoreEngine rebuilds an Engine from a snapshot. It is tolerant of config
// changes: indicators are matched by full name rather than position, so
// matching indicators resume warm while newly configured ones start cold
// and removed ones are skipped.
func RestoreEngine(reg *Registry, freq model.Frequency, configs []Config, snap *EngineSnapshot) (*Engine, error) {
	e, err := NewEngine(reg, freq, configs)
	if err != nil {
		return nil, err
	}

	for _, ss := range snap.Symbols {
		st, err := e.newSymbolState()
		if err != nil {
			return nil, err
		}

		lookup := make(map[string]IndicatorSnapshot, len(ss.Indicators))
		for _, is := range ss.Indicators {
			lookup[is.Name] = is
		}

		for _, ind := range st.indicators {
			is, found := lookup[ind.Name()]
			if !found {
				continue // newly configured — stays cold
			}
			si, ok := ind.(Snapshottable)
			if !ok {
				continue
			}
			if err := si.RestoreFromSnapshot(is); err != nil {
				return nil, fmt.Errorf("restore %s for %s: %w", ind.Name(), ss.Symbol, err)
			}
		}
		e.state[ss.Symbol] = st
	}
	return e, nil
}

// MarshalSnapshot encodes an engine snapshot as JSON for persistence.
func MarshalSnapshot(snap *EngineSnapshot) ([]byte, error) {
	return json.Marshal(snap)
}

// UnmarshalSnapshot decodes a persisted engine snapshot.
func UnmarshalSnapshot(data []byte) (*EngineSnapshot, error) {
	var snap EngineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
