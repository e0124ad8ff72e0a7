package strategy

import (
	"fmt"
	"strconv"

	"quantdb/internal/indicator"
	"quantdb/internal/model"
)

// Crossover is a long-only moving-average crossover strategy.
//
// Buy when the fast SMA crosses above the slow SMA (golden cross), sell the
// whole position when it crosses back below (death cross). The SMAs are
// consumed from the engine's indicator feed, so crossover detection only
// begins once both averages are out of their warm-up windows.
type Crossover struct {
	fastPeriod int
	slowPeriod int
	qty        int64

	fastName string
	slowName string

	state map[string]*crossState
}

// crossState tracks one symbol's current and previous MA pair. A pair is
// complete once both series have delivered a value for the current step.
type crossState struct {
	fast, slow         float64
	fastSet, slowSet   bool
	prevFast, prevSlow float64
	prevSet            bool
}

// NewCrossover builds a crossover strategy. Zero params take the defaults:
// fast 10, slow 20, qty 100.
func NewCrossover(p Params) (*Crossover, error) {
	if p.Fast == 0 {
		p.Fast = 10
	}
	if p.Slow == 0 {
		p.Slow = 20
	}
	if p.Qty == 0 {
		p.Qty = 100
	}
	if p.Fast <= 0 || p.Slow <= 0 || p.Fast >= p.Slow {
		return nil, fmt.Errorf("ma_crossover: need 0 < fast < slow, got fast=%d slow=%d", p.Fast, p.Slow)
	}
	if p.Qty < 0 {
		return nil, fmt.Errorf("ma_crossover: qty must be positive, got %d", p.Qty)
	}
	return &Crossover{
		fastPeriod: p.Fast,
		slowPeriod: p.Slow,
		qty:        p.Qty,
		fastName:   "SMA_" + strconv.Itoa(p.Fast),
		slowName:   "SMA_" + strconv.Itoa(p.Slow),
		state:      make(map[string]*crossState),
	}, nil
}

func (s *Crossover) Name() string { return "ma_crossover" }

// RequiredIndicators declares the two SMAs the strategy consumes.
func (s *Crossover) RequiredIndicators() []indicator.Config {
	return []indicator.Config{
		{Type: "SMA", Period: s.fastPeriod},
		{Type: "SMA", Period: s.slowPeriod},
	}
}

func (s *Crossover) OnStart(c Context) {
	s.state = make(map[string]*crossState)
}

func (s *Crossover) OnIndicator(c Context, v model.IndicatorValue) {
	if v.Name != s.fastName && v.Name != s.slowName {
		return
	}
	st, ok := s.state[v.Symbol]
	if !ok {
		st = &crossState{}
		s.state[v.Symbol] = st
	}
	if v.Name == s.fastName {
		st.fast = v.Value
		st.fastSet = true
	} else {
		st.slow = v.Value
		st.slowSet = true
	}
}

func (s *Crossover) OnBar(c Context, bar model.Bar) []model.OrderIntent {
	st, ok := s.state[bar.Symbol]
	if !ok || !st.fastSet || !st.slowSet {
		return nil
	}

	var intents []model.OrderIntent
	if st.prevSet {
		pos := c.Position(bar.Symbol)

		// Golden cross: fast moves from at-or-below slow to above.
		if st.prevFast <= st.prevSlow && st.fast > st.slow && pos.Qty == 0 {
			intents = append(intents, model.OrderIntent{
				Symbol: bar.Symbol,
				Side:   model.SideBuy,
				Qty:    s.qty,
			})
		}

		// Death cross: fast moves from at-or-above slow to below. Exit the
		// whole position.
		if st.prevFast >= st.prevSlow && st.fast < st.slow && pos.Qty > 0 {
			intents = append(intents, model.OrderIntent{
				Symbol: bar.Symbol,
				Side:   model.SideSell,
				Qty:    pos.Qty,
			})
		}
	}

	st.prevFast, st.prevSlow = st.fast, st.slow
	st.prevSet = true
	st.fastSet, st.slowSet = false, false
	return intents
}

func (s *Crossover) OnEnd(c Context) {}
