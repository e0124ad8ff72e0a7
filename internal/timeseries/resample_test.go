package timeseries

import (
	"math"
	"testing"
	"time"

	"quantdb/internal/model"
)

func TestResampleWeekly(t *testing.T) {
	// 2024-01-01 is a Monday. Week one: Mon-Wed, week two: Mon-Tue.
	mk := func(day int, o, h, l, c float64, v int64) model.Bar {
		return model.Bar{
			Symbol: "ACME",
			TS:     time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
			Open:   o, High: h, Low: l, Close: c, Volume: v,
		}
	}
	daily := []model.Bar{
		mk(1, 10, 12, 9, 11, 100),
		mk(2, 11, 15, 10, 14, 200),
		mk(3, 14, 14.5, 12, 13, 150),
		mk(8, 13, 13, 11, 12, 300),
		mk(9, 12, 16, 12, 16, 250),
	}

	weekly := ResampleWeekly(daily)
	if len(weekly) != 2 {
		t.Fatalf("expected 2 weekly bars, got %d", len(weekly))
	}

	w1 := weekly[0]
	// open=first(10), high=max(12,15,14.5)=15, low=min(9,10,12)=9,
	// close=last(13), volume=100+200+150=450, stamped at the last daily bar.
	if w1.Open != 10 || w1.High != 15 || w1.Low != 9 || w1.Close != 13 {
		t.Errorf("week 1 OHLC wrong: %+v", w1)
	}
	if w1.Volume != 450 {
		t.Errorf("week 1 volume=%d, expected 450", w1.Volume)
	}
	if !w1.TS.Equal(daily[2].TS) {
		t.Errorf("week 1 stamped %v, expected last daily ts %v", w1.TS, daily[2].TS)
	}

	w2 := weekly[1]
	if w2.Open != 13 || w2.High != 16 || w2.Low != 11 || w2.Close != 16 || w2.Volume != 550 {
		t.Errorf("week 2 wrong: %+v", w2)
	}
}

func TestResampleWeekly_Empty(t *testing.T) {
	if got := ResampleWeekly(nil); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestReturns(t *testing.T) {
	bars := []model.Bar{bar(0, 10), bar(1, 11), bar(2, 9.9)}
	rets := Returns(bars)
	if len(rets) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(rets))
	}
	// 11/10-1 = 0.10, 9.9/11-1 = -0.10
	if math.Abs(rets[0]-0.10) > 1e-12 {
		t.Errorf("first return=%v, expected 0.10", rets[0])
	}
	if math.Abs(rets[1]+0.10) > 1e-12 {
		t.Errorf("second return=%v, expected -0.10", rets[1])
	}
}

func TestReturns_TooShort(t *testing.T) {
	if got := Returns([]model.Bar{bar(0, 10)}); got != nil {
		t.Errorf("expected nil for single bar, got %v", got)
	}
}
