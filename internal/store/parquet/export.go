// Package parquet exports finished run artifacts as Parquet files, one
// directory per run: the equity curve, the trade log, and the indicator
// values the run produced. The files are the hand-off format for notebook
// and warehouse analysis of backtest results.
package parquet

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"quantdb/internal/model"
)

// Exporter writes run artifacts under a root directory.
type Exporter struct {
	Dir string
}

// NewExporter creates an exporter rooted at dir.
func NewExporter(dir string) *Exporter {
	return &Exporter{Dir: dir}
}

// equityRecord is the on-disk schema for one equity curve sample.
type equityRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"`
	Equity    float64 `parquet:"equity"`
}

// tradeRecord is the on-disk schema for one trade. ExitTimestamp is zero for
// trades still open at run end.
type tradeRecord struct {
	Symbol         string  `parquet:"symbol"`
	EntryTimestamp int64   `parquet:"entry_timestamp,timestamp(millisecond)"`
	ExitTimestamp  int64   `parquet:"exit_timestamp,timestamp(millisecond)"`
	EntryPrice     float64 `parquet:"entry_price"`
	ExitPrice      float64 `parquet:"exit_price"`
	Qty            int64   `parquet:"qty"`
	RealizedPnL    float64 `parquet:"realized_pnl"`
}

// indicatorRecord is the on-disk schema for one indicator value.
type indicatorRecord struct {
	Name      string  `parquet:"name"`
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"`
	Frequency string  `parquet:"frequency"`
	Value     float64 `parquet:"value"`
}

// ExportRun writes the run's artifacts to <Dir>/<runID>/{equity,trades,indicators}.parquet.
// Empty sequences produce no file.
func (e *Exporter) ExportRun(runID string, trades []model.Trade, equity []model.EquityPoint, indicators []model.IndicatorValue) error {
	dir := filepath.Join(e.Dir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("parquet export dir: %w", err)
	}

	if len(equity) > 0 {
		records := make([]equityRecord, len(equity))
		for i, p := range equity {
			records[i] = equityRecord{Timestamp: p.TS.UnixMilli(), Equity: p.Equity}
		}
		if err := parquet.WriteFile(filepath.Join(dir, "equity.parquet"), records); err != nil {
			return fmt.Errorf("writing equity curve for run %s: %w", runID, err)
		}
	}

	if len(trades) > 0 {
		records := make([]tradeRecord, len(trades))
		for i, t := range trades {
			r := tradeRecord{
				Symbol:         t.Symbol,
				EntryTimestamp: t.EntryTS.UnixMilli(),
				EntryPrice:     t.EntryPrice,
				ExitPrice:      t.ExitPrice,
				Qty:            t.Qty,
				RealizedPnL:    t.RealizedPnL,
			}
			if !t.ExitTS.IsZero() {
				r.ExitTimestamp = t.ExitTS.UnixMilli()
			}
			records[i] = r
		}
		if err := parquet.WriteFile(filepath.Join(dir, "trades.parquet"), records); err != nil {
			return fmt.Errorf("writing trade log for run %s: %w", runID, err)
		}
	}

	if len(indicators) > 0 {
		records := make([]indicatorRecord, len(indicators))
		for i, v := range indicators {
			records[i] = indicatorRecord{
				Name:      v.Name,
				Symbol:    v.Symbol,
				Timestamp: v.TS.UnixMilli(),
				Frequency: string(v.Freq),
				Value:     v.Value,
			}
		}
		if err := parquet.WriteFile(filepath.Join(dir, "indicators.parquet"), records); err != nil {
			return fmt.Errorf("writing indicator values for run %s: %w", runID, err)
		}
	}

	return nil
}

// ReadEquity reads an exported equity curve back.
func (e *Exporter) ReadEquity(runID string) ([]model.EquityPoint, error) {
	records, err := parquet.ReadFile[equityRecord](filepath.Join(e.Dir, runID, "equity.parquet"))
	if err != nil {
		return nil, fmt.Errorf("reading equity curve for run %s: %w", runID, err)
	}
	out := make([]model.EquityPoint, len(records))
	for i, r := range records {
		out[i] = model.EquityPoint{TS: time.UnixMilli(r.Timestamp).UTC(), Equity: r.Equity}
	}
	return out, nil
}

// ReadTrades reads an exported trade log back.
func (e *Exporter) ReadTrades(runID string) ([]model.Trade, error) {
	records, err := parquet.ReadFile[tradeRecord](filepath.Join(e.Dir, runID, "trades.parquet"))
	if err != nil {
		return nil, fmt.Errorf("reading trade log for run %s: %w", runID, err)
	}
	out := make([]model.Trade, len(records))
	for i, r := range records {
		t := model.Trade{
			Symbol:      r.Symbol,
			EntryTS:     time.UnixMilli(r.EntryTimestamp).UTC(),
			EntryPrice:  r.EntryPrice,
			ExitPrice:   r.ExitPrice,
			Qty:         r.Qty,
			RealizedPnL: r.RealizedPnL,
		}
		if r.ExitTimestamp != 0 {
			t.ExitTS = time.UnixMilli(r.ExitTimestamp).UTC()
		}
		out[i] = t
	}
	return out, nil
}
