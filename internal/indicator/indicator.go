// Package indicator provides technical indicator calculations over bar data.
//
// Every indicator is one numeric core with two entry points: feeding a full
// history through ComputeBatch and stepping bar-by-bar through Process use
// the same Update path, so batch and incremental results are identical by
// construction. An indicator yields no value until its warm-up window
// closes; warm-up output is omitted, never zero-filled.
package indicator

import (
	"errors"
	"fmt"
	"strconv"
)

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the full indicator name (e.g., "SMA_20", "MACD_12_26").
	Name() string

	// Update feeds the next close price and recalculates.
	Update(close float64)

	// Value returns the current calculated value. Meaningless before Ready.
	Value() float64

	// Ready returns true once the warm-up window has closed.
	Ready() bool
}

// ErrUnknownType reports an indicator type the registry has no factory for.
var ErrUnknownType = errors.New("unknown indicator type")

// Config specifies a single indicator to compute.
type Config struct {
	Type   string `yaml:"type" json:"type"` // "SMA", "EMA", "SMMA", "RSI", "MACD"
	Period int    `yaml:"period,omitempty" json:"period,omitempty"`

	// MACD only.
	Fast   int `yaml:"fast,omitempty" json:"fast,omitempty"`
	Slow   int `yaml:"slow,omitempty" json:"slow,omitempty"`
	Signal int `yaml:"signal,omitempty" json:"signal,omitempty"`
}

// Factory builds a fresh indicator instance from a config.
type Factory func(cfg Config) (Indicator, error)

// Registry maps indicator type names to factories. It is built once at
// startup, handed to engines by value, and never mutated during a run.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry with all built-in indicator types
// registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("SMA", func(cfg Config) (Indicator, error) {
		if cfg.Period <= 0 {
			return nil, fmt.Errorf("SMA: period must be positive, got %d", cfg.Period)
		}
		return NewSMA(cfg.Period), nil
	})
	r.Register("EMA", func(cfg Config) (Indicator, error) {
		if cfg.Period <= 0 {
			return nil, fmt.Errorf("EMA: period must be positive, got %d", cfg.Period)
		}
		return NewEMA(cfg.Period), nil
	})
	r.Register("SMMA", func(cfg Config) (Indicator, error) {
		if cfg.Period <= 0 {
			return nil, fmt.Errorf("SMMA: period must be positive, got %d", cfg.Period)
		}
		return NewSMMA(cfg.Period), nil
	})
	r.Register("RSI", func(cfg Config) (Indicator, error) {
		if cfg.Period <= 0 {
			return nil, fmt.Errorf("RSI: period must be positive, got %d", cfg.Period)
		}
		return NewRSI(cfg.Period), nil
	})
	r.Register("MACD", func(cfg Config) (Indicator, error) {
		if cfg.Fast <= 0 || cfg.Slow <= cfg.Fast || cfg.Signal <= 0 {
			return nil, fmt.Errorf("MACD: need 0 < fast < slow and signal > 0, got %d/%d/%d",
				cfg.Fast, cfg.Slow, cfg.Signal)
		}
		return NewMACD(cfg.Fast, cfg.Slow, cfg.Signal), nil
	})
	return r
}

// Register adds or replaces a factory for a type name.
func (r *Registry) Register(typ string, f Factory) {
	r.factories[typ] = f
}

// New builds an indicator for the config, or fails with ErrUnknownType.
func (r *Registry) New(cfg Config) (Indicator, error) {
	f, ok := r.factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
	return f(cfg)
}

// itoa converts a non-negative int for name building.
func itoa(n int) string { return strconv.Itoa(n) }
