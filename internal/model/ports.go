package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These interfaces decouple callers from concrete storage implementations.
// The SQLite reader/writer and the Redis publisher each satisfy one or more
// of them; cmd/backtest consumes them.

// BarReader reads stored price bars.
type BarReader interface {
	// ReadBars returns the bars for one symbol within [start, end],
	// ascending by timestamp. Zero start/end mean unbounded.
	ReadBars(symbol string, start, end time.Time) ([]Bar, error)

	// Symbols lists every symbol with stored bars.
	Symbols() ([]string, error)

	// Close releases underlying resources.
	Close() error
}

// BarWriter persists price bars.
type BarWriter interface {
	WriteBars(ctx context.Context, bars []Bar) error
}

// FundamentalReader reads stored fundamental snapshots.
type FundamentalReader interface {
	// ReadFundamentals returns all snapshots for a symbol, ascending.
	ReadFundamentals(symbol string) ([]FundamentalSnapshot, error)
}

// IndicatorWriter persists computed indicator values.
type IndicatorWriter interface {
	// WriteIndicators upserts a batch of values keyed by
	// (name, symbol, timestamp, frequency).
	WriteIndicators(ctx context.Context, values []IndicatorValue) error

	// Close releases underlying resources.
	Close() error
}

// RunWriter persists a finished run with its trade log and equity curve.
type RunWriter interface {
	SaveRun(ctx context.Context, run RunRecord, trades []Trade, equity []EquityPoint) error
}

// Publisher pushes fresh indicator values and run lifecycle events to
// downstream consumers (streams, dashboards).
type Publisher interface {
	PublishIndicators(ctx context.Context, values []IndicatorValue) error
	PublishRunEvent(ctx context.Context, ev RunEvent) error

	// Close releases underlying resources.
	Close() error
}
