package timeseries

import (
	"fmt"
	"sort"
	"time"

	"quantdb/internal/model"
)

// Step is one timestamp on the merged calendar together with every bar due
// at that instant, sorted by symbol for deterministic iteration.
type Step struct {
	TS   time.Time
	Bars []model.Bar
}

// Timeline is the strictly ascending union of several symbols' bar
// calendars. The simulation engine drives one pass over it per run.
type Timeline struct {
	steps []Step
	bars  int
}

// Timeline merges the named symbols' calendars. With no symbols given it
// covers every loaded symbol. Referencing an unloaded symbol fails with
// ErrNotFound.
func (s *Store) Timeline(symbols ...string) (*Timeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(symbols) == 0 {
		for sym := range s.series {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
	}

	group := make(map[int64][]model.Bar)
	total := 0
	for _, sym := range symbols {
		ser, ok := s.series[sym]
		if !ok {
			return nil, fmt.Errorf("timeline: no series loaded for %q: %w", sym, ErrNotFound)
		}
		for _, b := range ser.bars {
			key := b.TS.UnixNano()
			group[key] = append(group[key], b)
			total++
		}
	}

	keys := make([]int64, 0, len(group))
	for k := range group {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	steps := make([]Step, 0, len(keys))
	for _, k := range keys {
		bars := group[k]
		sort.Slice(bars, func(i, j int) bool { return bars[i].Symbol < bars[j].Symbol })
		steps = append(steps, Step{TS: bars[0].TS, Bars: bars})
	}
	return &Timeline{steps: steps, bars: total}, nil
}

// Len returns the number of distinct timestamps.
func (t *Timeline) Len() int { return len(t.steps) }

// BarCount returns the total number of bars across all steps.
func (t *Timeline) BarCount() int { return t.bars }

// Step returns the i-th timeline step.
func (t *Timeline) Step(i int) Step { return t.steps[i] }
