// Package timeseries holds the aligned, immutable price and fundamental
// history a simulation runs against. Loads validate input once at the
// boundary; published series are read-only and safe to share across
// concurrently executing runs.
package timeseries

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"quantdb/internal/model"
)

// Store owns the per-symbol bar series and fundamental snapshots for the
// duration of one or more runs.
type Store struct {
	mu     sync.RWMutex
	series map[string]*Series
	funds  map[string][]model.FundamentalSnapshot
}

// New creates an empty store.
func New() *Store {
	return &Store{
		series: make(map[string]*Series),
		funds:  make(map[string][]model.FundamentalSnapshot),
	}
}

// Load validates and appends bars to the symbol's series. Timestamps must be
// strictly increasing, including across the boundary with already-loaded
// bars. On any violation the store is left unchanged and an *IntegrityError
// is returned. Loading an empty batch creates an empty series.
func (s *Store) Load(symbol string, bars []model.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *model.Bar
	var base []model.Bar
	if existing, ok := s.series[symbol]; ok && existing.Len() > 0 {
		last := existing.bars[existing.Len()-1]
		prev = &last
		base = existing.bars
	}

	// Full slice expression forces append to copy, so series already handed
	// to running simulations never observe the new bars.
	out := base[:len(base):len(base)]
	for i := range bars {
		b := bars[i]
		if b.Symbol == "" {
			b.Symbol = symbol
		}
		if err := validateBar(symbol, prev, b); err != nil {
			return err
		}
		out = append(out, b)
		prev = &out[len(out)-1]
	}
	s.series[symbol] = &Series{symbol: symbol, bars: out}
	return nil
}

// LoadFundamentals validates and appends fundamental snapshots for a symbol.
// Timestamps must be strictly increasing.
func (s *Store) LoadFundamentals(symbol string, snaps []model.FundamentalSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.funds[symbol]
	out := existing[:len(existing):len(existing)]
	var prevTS time.Time
	if len(existing) > 0 {
		prevTS = existing[len(existing)-1].TS
	}
	for _, sn := range snaps {
		if sn.Symbol == "" {
			sn.Symbol = symbol
		}
		if sn.Symbol != symbol {
			return &IntegrityError{Symbol: symbol, TS: sn.TS, Field: "symbol",
				Reason: fmt.Sprintf("snapshot symbol %q does not match series", sn.Symbol)}
		}
		if !prevTS.IsZero() && !sn.TS.After(prevTS) {
			return &IntegrityError{Symbol: symbol, TS: sn.TS, Field: "timestamp",
				Reason: "fundamental timestamp not strictly increasing"}
		}
		// Copy the metric map so later caller mutation cannot reach
		// published snapshots.
		metrics := make(map[string]float64, len(sn.Metrics))
		for k, v := range sn.Metrics {
			metrics[k] = v
		}
		sn.Metrics = metrics
		out = append(out, sn)
		prevTS = sn.TS
	}
	s.funds[symbol] = out
	return nil
}

// Series returns the loaded series for a symbol.
func (s *Store) Series(symbol string) (*Series, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser, ok := s.series[symbol]
	return ser, ok
}

// HasSymbol reports whether bars are loaded for the symbol.
func (s *Store) HasSymbol(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.series[symbol]
	return ok
}

// Symbols lists all loaded symbols in lexical order.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.series))
	for sym := range s.series {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Slice returns a lazy iterator over the symbol's bars in [start, end],
// inclusive, ascending. An unknown symbol yields an empty iterator.
func (s *Store) Slice(symbol string, start, end time.Time) *Iterator {
	s.mu.RLock()
	ser, ok := s.series[symbol]
	s.mu.RUnlock()
	if !ok {
		return &Iterator{}
	}
	return ser.Slice(start, end)
}

// FundamentalAsOf returns the most recent snapshot with timestamp at or
// before t. When no snapshot qualifies it returns ErrNotFound wrapped with
// the symbol and time; callers must treat that as "undefined", not zero.
func (s *Store) FundamentalAsOf(symbol string, t time.Time) (model.FundamentalSnapshot, error) {
	s.mu.RLock()
	snaps := s.funds[symbol]
	s.mu.RUnlock()

	// First index strictly after t; the answer sits just before it.
	idx := sort.Search(len(snaps), func(i int) bool {
		return snaps[i].TS.After(t)
	})
	if idx == 0 {
		return model.FundamentalSnapshot{}, fmt.Errorf(
			"no fundamental snapshot for %s at or before %s: %w",
			symbol, t.Format(time.RFC3339), ErrNotFound)
	}
	return snaps[idx-1], nil
}

func validateBar(symbol string, prev *model.Bar, b model.Bar) error {
	if b.Symbol != symbol {
		return &IntegrityError{Symbol: symbol, TS: b.TS, Field: "symbol",
			Reason: fmt.Sprintf("bar symbol %q does not match series", b.Symbol)}
	}
	if prev != nil && !b.TS.After(prev.TS) {
		return &IntegrityError{Symbol: symbol, TS: b.TS, Field: "timestamp",
			Reason: "timestamp not strictly increasing"}
	}
	if b.Volume < 0 {
		return &IntegrityError{Symbol: symbol, TS: b.TS, Field: "volume",
			Value: float64(b.Volume), Reason: "negative volume"}
	}
	for _, p := range [4]struct {
		name string
		v    float64
	}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}} {
		if p.v < 0 {
			return &IntegrityError{Symbol: symbol, TS: b.TS, Field: p.name,
				Value: p.v, Reason: "negative price"}
		}
	}
	if b.High < b.Low {
		return &IntegrityError{Symbol: symbol, TS: b.TS, Field: "high",
			Value: b.High, Reason: "high below low"}
	}
	if b.High < b.Open || b.High < b.Close {
		return &IntegrityError{Symbol: symbol, TS: b.TS, Field: "high",
			Value: b.High, Reason: "high below open/close"}
	}
	if b.Low > b.Open || b.Low > b.Close {
		return &IntegrityError{Symbol: symbol, TS: b.TS, Field: "low",
			Value: b.Low, Reason: "low above open/close"}
	}
	return nil
}
