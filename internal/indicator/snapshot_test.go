package indicator

import (
	"math"
	"testing"

	"quantdb/internal/model"
)

func TestSnapshot_SMA_RoundTrip(t *testing.T) {
	sma := NewSMA(5)
	prices := []float64{100.00, 101.00, 102.00, 103.00, 104.00, 105.00, 106.00}

	for _, p := range prices {
		sma.Update(p)
	}

	snap := sma.Snapshot()

	sma2 := NewSMA(5)
	if err := sma2.RestoreFromSnapshot(snap); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	// Values must match exactly
	if sma.Value() != sma2.Value() {
		t.Errorf("value mismatch: original=%.4f restored=%.4f", sma.Value(), sma2.Value())
	}
	if sma.Ready() != sma2.Ready() {
		t.Errorf("ready mismatch: original=%v restored=%v", sma.Ready(), sma2.Ready())
	}

	// Feed more data — both must produce identical results
	for _, p := range []float64{107.00, 108.00, 109.00} {
		sma.Update(p)
		sma2.Update(p)
		if math.Abs(sma.Value()-sma2.Value()) > 1e-10 {
			t.Errorf("post-restore divergence: original=%.6f restored=%.6f", sma.Value(), sma2.Value())
		}
	}
}

func TestSnapshot_EMA_RoundTrip(t *testing.T) {
	ema := NewEMA(5)
	prices := []float64{100.00, 101.00, 102.00, 103.00, 104.00, 105.00, 106.00}

	for _, p := range prices {
		ema.Update(p)
	}

	snap := ema.Snapshot()

	ema2 := NewEMA(5)
	if err := ema2.RestoreFromSnapshot(snap); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	if ema.Value() != ema2.Value() {
		t.Errorf("value mismatch: original=%.4f restored=%.4f", ema.Value(), ema2.Value())
	}

	for _, p := range []float64{107.00, 108.00, 109.00} {
		ema.Update(p)
		ema2.Update(p)
		if math.Abs(ema.Value()-ema2.Value()) > 1e-10 {
			t.Errorf("post-restore divergence: original=%.6f restored=%.6f", ema.Value(), ema2.Value())
		}
	}
}

func TestSnapshot_SMMA_RoundTrip(t *testing.T) {
	smma := NewSMMA(5)
	prices := []float64{100.00, 101.00, 102.00, 103.00, 104.00, 105.00, 106.00}

	for _, p := range prices {
		smma.Update(p)
	}

	snap := smma.Snapshot()

	smma2 := NewSMMA(5)
	if err := smma2.RestoreFromSnapshot(snap); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	if smma.Value() != smma2.Value() {
		t.Errorf("value mismatch: original=%.4f restored=%.4f", smma.Value(), smma2.Value())
	}

	for _, p := range []float64{107.00, 108.00, 109.00} {
		smma.Update(p)
		smma2.Update(p)
		if math.Abs(smma.Value()-smma2.Value()) > 1e-10 {
			t.Errorf("post-restore divergence: original=%.6f restored=%.6f", smma.Value(), smma2.Value())
		}
	}
}

func TestSnapshot_RSI_RoundTrip(t *testing.T) {
	rsi := NewRSI(14)
	prices := []float64{
		100.00, 101.00, 100.50, 102.00, 101.50, 103.00, 102.50, 104.00,
		103.50, 105.00, 104.50, 106.00, 105.50, 107.00, 106.50, 108.00,
		107.50, 109.00, 108.50, 110.00,
	}

	for _, p := range prices {
		rsi.Update(p)
	}

	snap := rsi.Snapshot()

	rsi2 := NewRSI(14)
	if err := rsi2.RestoreFromSnapshot(snap); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	if rsi.Value() != rsi2.Value() {
		t.Errorf("value mismatch: original=%.4f restored=%.4f", rsi.Value(), rsi2.Value())
	}

	for _, p := range []float64{111.00, 110.50, 112.00} {
		rsi.Update(p)
		rsi2.Update(p)
		if math.Abs(rsi.Value()-rsi2.Value()) > 1e-10 {
			t.Errorf("post-restore divergence: original=%.6f restored=%.6f", rsi.Value(), rsi2.Value())
		}
	}
}

func TestSnapshot_MACD_RoundTrip(t *testing.T) {
	// MACD carries three nested EMAs; all must survive the round trip.
	macd := NewMACD(12, 26, 9)
	for i := 0; i < 40; i++ {
		macd.Update(100 + float64(i%7))
	}

	snap := macd.Snapshot()
	if len(snap.Subs) != 3 {
		t.Fatalf("expected 3 sub-snapshots, got %d", len(snap.Subs))
	}

	macd2 := NewMACD(12, 26, 9)
	if err := macd2.RestoreFromSnapshot(snap); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	if macd.Value() != macd2.Value() || macd.Signal() != macd2.Signal() || macd.Histogram() != macd2.Histogram() {
		t.Errorf("state mismatch after restore: (%.6f,%.6f,%.6f) vs (%.6f,%.6f,%.6f)",
			macd.Value(), macd.Signal(), macd.Histogram(),
			macd2.Value(), macd2.Signal(), macd2.Histogram())
	}

	for _, p := range []float64{108.00, 103.00, 111.00} {
		macd.Update(p)
		macd2.Update(p)
		if math.Abs(macd.Histogram()-macd2.Histogram()) > 1e-10 {
			t.Errorf("post-restore divergence: original=%.6f restored=%.6f", macd.Histogram(), macd2.Histogram())
		}
	}
}

func TestSnapshot_Engine_RoundTrip(t *testing.T) {
	configs := []Config{
		{Type: "SMA", Period: 5},
		{Type: "EMA", Period: 5},
		{Type: "RSI", Period: 14},
		{Type: "MACD", Fast: 12, Slow: 26, Signal: 9},
	}

	engine, err := NewEngine(NewRegistry(), model.FreqDaily, configs)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	// Warm two symbols with different histories.
	for i := 0; i < 40; i++ {
		engine.Process(makeBar("ACME", i, 100+float64(i)))
		engine.Process(makeBar("ZETA", i, 300-float64(i)*2))
	}

	snap, err := SnapshotEngine(engine)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snap.Freq != model.FreqDaily || len(snap.Symbols) != 2 {
		t.Fatalf("unexpected snapshot shape: freq=%s symbols=%d", snap.Freq, len(snap.Symbols))
	}

	// Persist and reload as JSON — the path the scheduler uses.
	raw, err := MarshalSnapshot(snap)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	loaded, err := UnmarshalSnapshot(raw)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	engine2, err := RestoreEngine(NewRegistry(), model.FreqDaily, configs, loaded)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	// Feed more bars to both engines — must produce identical results.
	for i := 40; i < 45; i++ {
		for _, sym := range []string{"ACME", "ZETA"} {
			r1 := engine.Process(makeBar(sym, i, 150+float64(i)))
			r2 := engine2.Process(makeBar(sym, i, 150+float64(i)))

			if len(r1) != len(r2) {
				t.Fatalf("%s bar %d: result count mismatch: %d vs %d", sym, i, len(r1), len(r2))
			}
			for j := range r1 {
				if r1[j].Name != r2[j].Name {
					t.Fatalf("%s bar %d: series mismatch %q vs %q", sym, i, r1[j].Name, r2[j].Name)
				}
				if math.Abs(r1[j].Value-r2[j].Value) > 1e-10 {
					t.Errorf("%s bar %d %s: original=%.6f restored=%.6f",
						sym, i, r1[j].Name, r1[j].Value, r2[j].Value)
				}
			}
		}
	}
}

func TestSnapshot_RestoreWithChangedConfigs(t *testing.T) {
	// Restore matches indicators by name: a snapshot taken with SMA_5+EMA_5
	// restored into a config with SMA_5+RSI_14 keeps SMA_5 warm and starts
	// RSI_14 cold.
	oldConfigs := []Config{
		{Type: "SMA", Period: 5},
		{Type: "EMA", Period: 5},
	}
	engine, err := NewEngine(NewRegistry(), model.FreqDaily, oldConfigs)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	for i := 0; i < 10; i++ {
		engine.Process(makeBar("ACME", i, 100))
	}

	snap, err := SnapshotEngine(engine)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	newConfigs := []Config{
		{Type: "SMA", Period: 5},
		{Type: "RSI", Period: 14},
	}
	engine2, err := RestoreEngine(NewRegistry(), model.FreqDaily, newConfigs, snap)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	values := engine2.Process(makeBar("ACME", 10, 100))
	if len(values) != 1 {
		t.Fatalf("expected only the restored SMA to be warm, got %d values", len(values))
	}
	if values[0].Name != "SMA_5" {
		t.Errorf("warm indicator is %q, want SMA_5", values[0].Name)
	}
	assertClose(t, "restored SMA_5", values[0].Value, 100.0, 0.001)
}
