package strategy

import (
	"fmt"
	"strconv"

	"quantdb/internal/indicator"
	"quantdb/internal/model"
)

// RSIReversion is a long-only mean-reversion strategy on RSI.
//
// Buy when RSI crosses down through the oversold bound, sell the whole
// position when it crosses up through the overbought bound. Both checks are
// crossings, not levels: a series that sits below the bound does not keep
// buying.
type RSIReversion struct {
	period     int
	oversold   float64
	overbought float64
	qty        int64

	rsiName string
	state   map[string]*rsiState
}

type rsiState struct {
	cur     float64
	curSet  bool
	prev    float64
	prevSet bool
}

// NewRSIReversion builds an RSI reversion strategy. Zero params take the
// defaults: period 14, oversold 30, overbought 70, qty 100.
func NewRSIReversion(p Params) (*RSIReversion, error) {
	if p.Period == 0 {
		p.Period = 14
	}
	if p.Oversold == 0 {
		p.Oversold = 30
	}
	if p.Overbought == 0 {
		p.Overbought = 70
	}
	if p.Qty == 0 {
		p.Qty = 100
	}
	if p.Period < 0 {
		return nil, fmt.Errorf("rsi_reversion: period must be positive, got %d", p.Period)
	}
	if p.Oversold >= p.Overbought {
		return nil, fmt.Errorf("rsi_reversion: need oversold < overbought, got %.1f >= %.1f", p.Oversold, p.Overbought)
	}
	if p.Qty < 0 {
		return nil, fmt.Errorf("rsi_reversion: qty must be positive, got %d", p.Qty)
	}
	return &RSIReversion{
		period:     p.Period,
		oversold:   p.Oversold,
		overbought: p.Overbought,
		qty:        p.Qty,
		rsiName:    "RSI_" + strconv.Itoa(p.Period),
		state:      make(map[string]*rsiState),
	}, nil
}

func (s *RSIReversion) Name() string { return "rsi_reversion" }

// RequiredIndicators declares the RSI series the strategy consumes.
func (s *RSIReversion) RequiredIndicators() []indicator.Config {
	return []indicator.Config{
		{Type: "RSI", Period: s.period},
	}
}

func (s *RSIReversion) OnStart(c Context) {
	s.state = make(map[string]*rsiState)
}

func (s *RSIReversion) OnIndicator(c Context, v model.IndicatorValue) {
	if v.Name != s.rsiName {
		return
	}
	st, ok := s.state[v.Symbol]
	if !ok {
		st = &rsiState{}
		s.state[v.Symbol] = st
	}
	st.cur = v.Value
	st.curSet = true
}

func (s *RSIReversion) OnBar(c Context, bar model.Bar) []model.OrderIntent {
	st, ok := s.state[bar.Symbol]
	if !ok || !st.curSet {
		return nil
	}

	var intents []model.OrderIntent
	if st.prevSet {
		pos := c.Position(bar.Symbol)

		// Entering oversold territory.
		if st.prev >= s.oversold && st.cur < s.oversold && pos.Qty == 0 {
			intents = append(intents, model.OrderIntent{
				Symbol: bar.Symbol,
				Side:   model.SideBuy,
				Qty:    s.qty,
			})
		}

		// Entering overbought territory: exit.
		if st.prev <= s.overbought && st.cur > s.overbought && pos.Qty > 0 {
			intents = append(intents, model.OrderIntent{
				Symbol: bar.Symbol,
				Side:   model.SideSell,
				Qty:    pos.Qty,
			})
		}
	}

	st.prev = st.cur
	st.prevSet = true
	st.curSet = false
	return intents
}

func (s *RSIReversion) OnEnd(c Context) {}
