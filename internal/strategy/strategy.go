// Package strategy defines the contract trading strategies implement and the
// built-in strategies the entrypoints can run.
//
// A Strategy receives bars and indicator values in timestamp order and emits
// order intents. All market state reaches the strategy through a Context,
// which exposes history only up to the current timestamp — a strategy cannot
// look ahead through it. Strategy-local state persists across callbacks
// within one run and is discarded at run end; instances are never shared
// across concurrent runs.
package strategy

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"quantdb/internal/indicator"
	"quantdb/internal/model"
)

// ErrUnknownStrategy is returned when a name has no registered factory.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Context is the engine-owned view handed to every strategy callback.
// History is bounded at the current timestamp.
type Context interface {
	// Now returns the timestamp of the step being simulated.
	Now() time.Time

	// History returns up to n bars for symbol with timestamps at or before
	// Now, oldest first. Fewer than n are returned when less history exists.
	History(symbol string, n int) []model.Bar

	// Position returns the current position for symbol; a zero Position if
	// none is held.
	Position(symbol string) model.Position

	// Cash returns uncommitted cash.
	Cash() float64

	// Equity returns cash plus positions marked at the latest known closes.
	Equity() float64

	// Indicator returns the most recent value of the named series for symbol
	// due at or before Now. ok is false inside the warm-up window.
	Indicator(name, symbol string) (value float64, ok bool)

	// Fundamental returns the named metric from the latest fundamental
	// snapshot at or before Now. ok is false if no snapshot exists yet.
	Fundamental(symbol, metric string) (value float64, ok bool)
}

// Strategy is the fixed capability set every trading strategy implements.
type Strategy interface {
	// Name returns the registry name of the strategy.
	Name() string

	// OnStart is called once before the first timeline step.
	OnStart(c Context)

	// OnBar is called exactly once per simulated bar, in timestamp order.
	// Returned intents are resolved by the engine per its execution-lag
	// policy; nil means hold.
	OnBar(c Context, bar model.Bar) []model.OrderIntent

	// OnIndicator is called for each indicator value due at the current
	// timestamp, before OnBar for that timestamp.
	OnIndicator(c Context, v model.IndicatorValue)

	// OnEnd is called once after the final step, or after an abort.
	OnEnd(c Context)
}

// IndicatorRequirer is implemented by strategies that consume engine-computed
// indicator series. The engine unions these configs with the run
// configuration's indicator list, so a strategy's inputs are always computed.
type IndicatorRequirer interface {
	RequiredIndicators() []indicator.Config
}

// Params carries the tunable knobs for built-in strategies. Unused fields
// are ignored by strategies that don't need them.
type Params struct {
	Fast       int     `yaml:"fast" json:"fast"`             // fast MA period
	Slow       int     `yaml:"slow" json:"slow"`             // slow MA period
	Period     int     `yaml:"period" json:"period"`         // oscillator period
	Oversold   float64 `yaml:"oversold" json:"oversold"`     // lower bound
	Overbought float64 `yaml:"overbought" json:"overbought"` // upper bound
	Qty        int64   `yaml:"qty" json:"qty"`               // shares per entry
}

// Factory builds a strategy instance from params.
type Factory func(Params) (Strategy, error)

// Registry maps strategy names to factories. Construct once per process and
// pass it in; it is never mutated during a run.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in strategies registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("ma_crossover", func(p Params) (Strategy, error) {
		return NewCrossover(p)
	})
	r.Register("rsi_reversion", func(p Params) (Strategy, error) {
		return NewRSIReversion(p)
	})
	return r
}

// Register adds a factory under name, replacing any existing entry.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New builds the named strategy.
func (r *Registry) New(name string, p Params) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	return f(p)
}

// Names returns the registered strategy names in lexical order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
