package indicator

import (
	"sort"

	"quantdb/internal/model"
)

// symbolState holds live indicator instances for one symbol.
type symbolState struct {
	indicators []Indicator
}

// Engine computes a configured set of indicators over bars of one frequency
// for any number of symbols. Designed for single-goroutine usage — no locks.
type Engine struct {
	registry *Registry
	freq     model.Frequency
	configs  []Config

	// state[symbol] → live indicator instances
	state map[string]*symbolState
}

// NewEngine validates the configs against the registry and returns an engine
// with no warm state. Bad configs fail here, never mid-run.
func NewEngine(reg *Registry, freq model.Frequency, configs []Config) (*Engine, error) {
	e := &Engine{
		registry: reg,
		freq:     freq,
		configs:  configs,
		state:    make(map[string]*symbolState, 16),
	}
	if _, err := e.newSymbolState(); err != nil {
		return nil, err
	}
	return e, nil
}

// Freq returns the bar frequency this engine labels its output with.
func (e *Engine) Freq() model.Frequency { return e.freq }

func (e *Engine) newSymbolState() (*symbolState, error) {
	inds := make([]Indicator, 0, len(e.configs))
	for _, cfg := range e.configs {
		ind, err := e.registry.New(cfg)
		if err != nil {
			return nil, err
		}
		inds = append(inds, ind)
	}
	return &symbolState{indicators: inds}, nil
}

// Process steps every configured indicator with the bar's close and returns
// the values due at the bar's timestamp. Indicators still inside their
// warm-up window contribute nothing — output is omitted, not zero-filled.
func (e *Engine) Process(bar model.Bar) []model.IndicatorValue {
	st, ok := e.state[bar.Symbol]
	if !ok {
		st, _ = e.newSymbolState() // configs validated in NewEngine
		e.state[bar.Symbol] = st
	}

	out := make([]model.IndicatorValue, 0, len(st.indicators))
	emit := func(name string, value float64) {
		out = append(out, model.IndicatorValue{
			Name:   name,
			Symbol: bar.Symbol,
			TS:     bar.TS,
			Freq:   e.freq,
			Value:  value,
		})
	}

	for _, ind := range st.indicators {
		ind.Update(bar.Close)
		switch m := ind.(type) {
		case *MACD:
			// One MACD instance yields up to three series.
			if m.Ready() {
				emit(m.Name(), m.Value())
			}
			if m.SignalReady() {
				emit(m.SignalName(), m.Signal())
				emit(m.HistName(), m.Histogram())
			}
		default:
			if ind.Ready() {
				emit(ind.Name(), ind.Value())
			}
		}
	}
	return out
}

// ComputeBatch runs the configured indicators over a full history with fresh
// state, leaving the engine's incremental state untouched. Both entry points
// share each indicator's Update core, so stepping the same bars through
// Process yields the identical value sequence.
func (e *Engine) ComputeBatch(bars []model.Bar) []model.IndicatorValue {
	fresh, err := NewEngine(e.registry, e.freq, e.configs)
	if err != nil {
		return nil // unreachable: configs were validated when e was built
	}
	out := make([]model.IndicatorValue, 0, len(bars))
	for _, b := range bars {
		out = append(out, fresh.Process(b)...)
	}
	return out
}

// symbols returns the warmed symbols in lexical order.
func (e *Engine) symbols() []string {
	out := make([]string, 0, len(e.state))
	for s := range e.state {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
