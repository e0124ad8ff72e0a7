package indicator

import (
	"math/rand"
	"testing"
	"time"

	"quantdb/internal/model"
)

var engDay0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func makeBar(symbol string, day int, close float64) model.Bar {
	return model.Bar{
		Symbol: symbol,
		TS:     engDay0.AddDate(0, 0, day),
		Open:   close - 1,
		High:   close + 2,
		Low:    close - 2,
		Close:  close,
		Volume: 1000,
	}
}

func TestEngine_SMA20(t *testing.T) {
	engine, err := NewEngine(NewRegistry(), model.FreqDaily, []Config{
		{Type: "SMA", Period: 20},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	// Feed 25 bars at close=100.00. The first 19 bars are inside the
	// warm-up window and must produce nothing at all.
	for i := 0; i < 25; i++ {
		values := engine.Process(makeBar("ACME", i, 100.0))
		if i < 19 {
			if len(values) != 0 {
				t.Fatalf("bar %d: expected no values during warm-up, got %d", i, len(values))
			}
			continue
		}
		if len(values) != 1 {
			t.Fatalf("bar %d: expected 1 value, got %d", i, len(values))
		}
		v := values[0]
		if v.Name != "SMA_20" {
			t.Errorf("bar %d: name=%q, want SMA_20", i, v.Name)
		}
		if v.Symbol != "ACME" || v.Freq != model.FreqDaily {
			t.Errorf("bar %d: labelled %s/%s, want ACME/D", i, v.Symbol, v.Freq)
		}
		if !v.TS.Equal(engDay0.AddDate(0, 0, i)) {
			t.Errorf("bar %d: TS=%v, want bar timestamp", i, v.TS)
		}
		assertClose(t, "SMA_20 value", v.Value, 100.0, 0.001)
	}
}

func TestEngine_MultiIndicator(t *testing.T) {
	engine, err := NewEngine(NewRegistry(), model.FreqDaily, []Config{
		{Type: "SMA", Period: 5},
		{Type: "EMA", Period: 5},
		{Type: "RSI", Period: 14},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	// RSI(14) is the slowest: first value on the 15th close. From there on,
	// every bar yields all three series.
	for i := 0; i < 20; i++ {
		values := engine.Process(makeBar("A", i, 100+float64(i)))
		if i >= 14 && len(values) != 3 {
			t.Fatalf("bar %d: expected 3 values, got %d", i, len(values))
		}
	}
}

func TestEngine_MACDEmitsThreeSeries(t *testing.T) {
	engine, err := NewEngine(NewRegistry(), model.FreqDaily, []Config{
		{Type: "MACD", Fast: 2, Slow: 3, Signal: 2},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	prices := []float64{100, 102, 104, 103, 105}
	var counts []int
	for i, p := range prices {
		values := engine.Process(makeBar("M", i, p))
		counts = append(counts, len(values))
		for _, v := range values {
			switch v.Name {
			case "MACD_2_3", "MACD_SIGNAL_2_3_2", "MACD_HIST_2_3_2":
			default:
				t.Errorf("bar %d: unexpected series %q", i, v.Name)
			}
		}
	}

	// Bars 1-2: warm-up. Bar 3: macd line only. Bars 4-5: all three.
	want := []int{0, 0, 1, 3, 3}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("bar %d: got %d values, want %d", i+1, counts[i], want[i])
		}
	}
}

func TestEngine_PerSymbolState(t *testing.T) {
	engine, err := NewEngine(NewRegistry(), model.FreqDaily, []Config{
		{Type: "SMA", Period: 3},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	// Warm AAA fully, then feed a single BBB bar. BBB must start its own
	// warm-up, not inherit AAA's.
	for i := 0; i < 3; i++ {
		engine.Process(makeBar("AAA", i, 50))
	}
	values := engine.Process(makeBar("BBB", 3, 200))
	if len(values) != 0 {
		t.Fatalf("BBB produced %d values on its first bar", len(values))
	}

	// AAA's state is unaffected by BBB's bars.
	values = engine.Process(makeBar("AAA", 3, 50))
	if len(values) != 1 {
		t.Fatalf("AAA: expected 1 value, got %d", len(values))
	}
	assertClose(t, "AAA SMA_3", values[0].Value, 50.0, 0.001)
}

func TestEngine_BatchMatchesIncremental(t *testing.T) {
	// Batch and incremental share the same update core, so the value
	// sequences must agree within 1e-9 relative tolerance over an
	// arbitrary walk.
	configs := []Config{
		{Type: "SMA", Period: 10},
		{Type: "EMA", Period: 10},
		{Type: "SMMA", Period: 10},
		{Type: "RSI", Period: 14},
		{Type: "MACD", Fast: 12, Slow: 26, Signal: 9},
	}
	engine, err := NewEngine(NewRegistry(), model.FreqDaily, configs)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	rng := rand.New(rand.NewSource(7))
	price := 100.0
	bars := make([]model.Bar, 0, 120)
	for i := 0; i < 120; i++ {
		price += rng.Float64()*4 - 2
		bars = append(bars, makeBar("RW", i, price))
	}

	var incremental []model.IndicatorValue
	for _, b := range bars {
		incremental = append(incremental, engine.Process(b)...)
	}
	batch := engine.ComputeBatch(bars)

	if len(batch) != len(incremental) {
		t.Fatalf("batch produced %d values, incremental %d", len(batch), len(incremental))
	}
	for i := range batch {
		b, inc := batch[i], incremental[i]
		if b.Name != inc.Name || b.Symbol != inc.Symbol || !b.TS.Equal(inc.TS) {
			t.Fatalf("value %d: batch %s@%v vs incremental %s@%v", i, b.Name, b.TS, inc.Name, inc.TS)
		}
		assertRelClose(t, b.Name, b.Value, inc.Value, 1e-9)
	}
}

func TestEngine_ComputeBatchLeavesStateUntouched(t *testing.T) {
	engine, err := NewEngine(NewRegistry(), model.FreqDaily, []Config{
		{Type: "SMA", Period: 3},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	// Warm the incremental state to a known value.
	for i := 0; i < 3; i++ {
		engine.Process(makeBar("LIVE", i, 10))
	}

	// Batch over a different history must not disturb it.
	other := []model.Bar{makeBar("LIVE", 0, 500), makeBar("LIVE", 1, 600), makeBar("LIVE", 2, 700)}
	engine.ComputeBatch(other)

	values := engine.Process(makeBar("LIVE", 3, 10))
	if len(values) != 1 {
		t.Fatalf("expected 1 value, got %d", len(values))
	}
	assertClose(t, "SMA_3 after batch", values[0].Value, 10.0, 0.001)
}

func TestEngine_WeeklyFrequencyLabel(t *testing.T) {
	engine, err := NewEngine(NewRegistry(), model.FreqWeekly, []Config{
		{Type: "SMA", Period: 2},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	engine.Process(makeBar("W", 0, 10))
	values := engine.Process(makeBar("W", 7, 12))
	if len(values) != 1 || values[0].Freq != model.FreqWeekly {
		t.Fatalf("expected one W-labelled value, got %+v", values)
	}
}

func TestEngine_RejectsBadConfig(t *testing.T) {
	if _, err := NewEngine(NewRegistry(), model.FreqDaily, []Config{{Type: "SMA", Period: 0}}); err == nil {
		t.Fatal("expected error for zero period")
	}
	if _, err := NewEngine(NewRegistry(), model.FreqDaily, []Config{{Type: "NOPE", Period: 5}}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}
