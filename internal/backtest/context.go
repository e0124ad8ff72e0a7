package backtest

import (
	"time"

	"quantdb/internal/model"
	"quantdb/internal/timeseries"
)

// simContext is the engine-owned strategy.Context for one run. It only ever
// holds history at or before the current step, so a strategy cannot observe
// the future through it. Single-goroutine by construction; no locking.
type simContext struct {
	now   time.Time
	store *timeseries.Store
	pf    *portfolio

	// hist[symbol] holds every bar delivered so far, oldest first.
	hist map[string][]model.Bar

	// latest["name:symbol"] holds the most recent value of each indicator
	// series delivered so far.
	latest map[string]model.IndicatorValue
}

func (c *simContext) Now() time.Time { return c.now }

func (c *simContext) History(symbol string, n int) []model.Bar {
	bars := c.hist[symbol]
	if n <= 0 || n >= len(bars) {
		n = len(bars)
	}
	// Copy so a strategy cannot mutate the engine's record.
	out := make([]model.Bar, n)
	copy(out, bars[len(bars)-n:])
	return out
}

func (c *simContext) Position(symbol string) model.Position {
	return c.pf.position(symbol)
}

func (c *simContext) Cash() float64 { return c.pf.cash }

func (c *simContext) Equity() float64 { return c.pf.equity() }

func (c *simContext) Indicator(name, symbol string) (float64, bool) {
	v, ok := c.latest[name+":"+symbol]
	if !ok {
		return 0, false
	}
	return v.Value, true
}

func (c *simContext) Fundamental(symbol, metric string) (float64, bool) {
	snap, err := c.store.FundamentalAsOf(symbol, c.now)
	if err != nil {
		// Absence means "undefined", never zero; ErrNotFound is the only
		// error FundamentalAsOf produces.
		return 0, false
	}
	return snap.Metric(metric)
}
