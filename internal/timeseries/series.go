package timeseries

import (
	"sort"
	"time"

	"quantdb/internal/model"
)

// Series is the ordered, immutable bar history of one symbol. A Series never
// mutates after publication; appending through the store produces a new
// Series value, so concurrent runs holding the old one are unaffected.
type Series struct {
	symbol string
	bars   []model.Bar
}

// Symbol returns the symbol this series belongs to.
func (s *Series) Symbol() string { return s.symbol }

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.bars) }

// Bar returns the bar at index i.
func (s *Series) Bar(i int) model.Bar { return s.bars[i] }

// Bars returns the underlying bars. Callers must treat the slice as
// read-only.
func (s *Series) Bars() []model.Bar { return s.bars }

// Closes returns the close prices in order.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// Last returns the final bar, or false when the series is empty.
func (s *Series) Last() (model.Bar, bool) {
	if len(s.bars) == 0 {
		return model.Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Slice returns a lazy iterator over bars with timestamps in [start, end],
// inclusive on both bounds. Zero start/end mean unbounded on that side.
func (s *Series) Slice(start, end time.Time) *Iterator {
	lo := 0
	if !start.IsZero() {
		lo = sort.Search(len(s.bars), func(i int) bool {
			return !s.bars[i].TS.Before(start)
		})
	}
	hi := len(s.bars)
	if !end.IsZero() {
		hi = sort.Search(len(s.bars), func(i int) bool {
			return s.bars[i].TS.After(end)
		})
	}
	if lo > hi {
		lo = hi
	}
	return &Iterator{bars: s.bars[lo:hi]}
}

// Iterator walks a window of a series lazily. It is restartable via Reset
// and safe to create many times over the same shared series.
type Iterator struct {
	bars []model.Bar
	pos  int
}

// Next returns the next bar in ascending timestamp order, or false when the
// window is exhausted.
func (it *Iterator) Next() (model.Bar, bool) {
	if it.pos >= len(it.bars) {
		return model.Bar{}, false
	}
	b := it.bars[it.pos]
	it.pos++
	return b, true
}

// Reset rewinds the iterator to the start of its window.
func (it *Iterator) Reset() { it.pos = 0 }

// Len returns the total number of bars in the window.
func (it *Iterator) Len() int { return len(it.bars) }
