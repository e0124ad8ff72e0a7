package parquet

import (
	"testing"
	"time"

	"quantdb/internal/model"
)

func TestExportRun_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	exp := NewExporter(dir)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	equity := []model.EquityPoint{
		{TS: base, Equity: 10_000},
		{TS: base.AddDate(0, 0, 1), Equity: 10_150},
		{TS: base.AddDate(0, 0, 2), Equity: 9_980},
	}
	trades := []model.Trade{
		{
			Symbol:      "ACME",
			EntryTS:     base,
			ExitTS:      base.AddDate(0, 0, 2),
			EntryPrice:  10,
			ExitPrice:   10.5,
			Qty:         100,
			RealizedPnL: 50,
		},
		{Symbol: "ZETA", EntryTS: base.AddDate(0, 0, 1), EntryPrice: 20, Qty: 50}, // open
	}

	if err := exp.ExportRun("run-1", trades, equity, nil); err != nil {
		t.Fatalf("export: %v", err)
	}

	gotEq, err := exp.ReadEquity("run-1")
	if err != nil {
		t.Fatalf("read equity: %v", err)
	}
	if len(gotEq) != len(equity) {
		t.Fatalf("equity points=%d, want %d", len(gotEq), len(equity))
	}
	for i := range equity {
		if !gotEq[i].TS.Equal(equity[i].TS) || gotEq[i].Equity != equity[i].Equity {
			t.Errorf("equity[%d]=%+v, want %+v", i, gotEq[i], equity[i])
		}
	}

	gotTr, err := exp.ReadTrades("run-1")
	if err != nil {
		t.Fatalf("read trades: %v", err)
	}
	if len(gotTr) != 2 {
		t.Fatalf("trades=%d, want 2", len(gotTr))
	}
	if gotTr[0].RealizedPnL != 50 || !gotTr[0].ExitTS.Equal(trades[0].ExitTS) {
		t.Errorf("closed trade mangled: %+v", gotTr[0])
	}
	if !gotTr[1].Open() {
		t.Error("open trade must survive the round trip with zero exit time")
	}
}

func TestExportRun_EmptySequencesWriteNothing(t *testing.T) {
	dir := t.TempDir()
	exp := NewExporter(dir)

	if err := exp.ExportRun("run-2", nil, nil, nil); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := exp.ReadEquity("run-2"); err == nil {
		t.Error("expected an error reading a never-written equity file")
	}
}
