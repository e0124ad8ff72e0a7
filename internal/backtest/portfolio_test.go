package backtest

import (
	"math"
	"testing"
	"time"

	"quantdb/internal/model"
)

func ts(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestPortfolio_ScaleInAveragesEntry(t *testing.T) {
	p := newPortfolio(100_000)
	p.applyFill("ACME", model.SideBuy, 100, 10, 0, ts(0))
	p.applyFill("ACME", model.SideBuy, 100, 12, 0, ts(1))

	pos := p.position("ACME")
	if pos.Qty != 200 {
		t.Fatalf("qty=%d, want 200", pos.Qty)
	}
	// (100*10 + 100*12) / 200 = 11
	if math.Abs(pos.AvgPrice-11) > 1e-12 {
		t.Errorf("avg=%.4f, want 11.0000", pos.AvgPrice)
	}
	if math.Abs(p.cash-(100_000-1000-1200)) > 1e-12 {
		t.Errorf("cash=%.2f, want 97800.00", p.cash)
	}
}

func TestPortfolio_PartialCloseRealizes(t *testing.T) {
	p := newPortfolio(100_000)
	p.applyFill("ACME", model.SideBuy, 100, 10, 0, ts(0))
	p.applyFill("ACME", model.SideSell, 40, 12, 0, ts(1))

	pos := p.position("ACME")
	if pos.Qty != 60 {
		t.Errorf("qty=%d, want 60", pos.Qty)
	}
	if pos.AvgPrice != 10 {
		t.Errorf("avg=%.2f, want original entry 10.00", pos.AvgPrice)
	}
	// 40 shares, +2 each.
	if math.Abs(p.realized-80) > 1e-12 {
		t.Errorf("realized=%.2f, want 80.00", p.realized)
	}
	if len(p.closed) != 1 || p.closed[0].Qty != 40 {
		t.Errorf("closed=%+v, want one 40-share trade", p.closed)
	}
}

func TestPortfolio_FullCloseEmitsTrade(t *testing.T) {
	p := newPortfolio(100_000)
	p.applyFill("ACME", model.SideBuy, 100, 10, 0, ts(0))
	p.applyFill("ACME", model.SideSell, 100, 9, 0, ts(5))

	if got := p.position("ACME"); got.Qty != 0 {
		t.Errorf("position not flat: %+v", got)
	}
	if len(p.closed) != 1 {
		t.Fatalf("closed=%d, want 1", len(p.closed))
	}
	tr := p.closed[0]
	if math.Abs(tr.RealizedPnL+100) > 1e-12 {
		t.Errorf("pnl=%.2f, want -100.00", tr.RealizedPnL)
	}
	if !tr.EntryTS.Equal(ts(0)) || !tr.ExitTS.Equal(ts(5)) {
		t.Errorf("trade timestamps wrong: %+v", tr)
	}
}

func TestPortfolio_CrossThroughZero(t *testing.T) {
	p := newPortfolio(100_000)
	p.applyFill("ACME", model.SideBuy, 100, 10, 0, ts(0))
	// Sell 150: closes the 100-long (+100 pnl at 11), opens a 50-short at 11.
	p.applyFill("ACME", model.SideSell, 150, 11, 0, ts(1))

	pos := p.position("ACME")
	if pos.Qty != -50 {
		t.Errorf("qty=%d, want -50", pos.Qty)
	}
	if pos.AvgPrice != 11 {
		t.Errorf("avg=%.2f, want 11.00", pos.AvgPrice)
	}
	if len(p.closed) != 1 || math.Abs(p.closed[0].RealizedPnL-100) > 1e-12 {
		t.Errorf("closed=%+v, want one trade with +100 pnl", p.closed)
	}
}

func TestPortfolio_EquityMarksToMarket(t *testing.T) {
	p := newPortfolio(10_000)
	p.applyFill("ACME", model.SideBuy, 100, 10, 0, ts(0))
	p.markClose(model.Bar{Symbol: "ACME", Close: 12})

	// 10000 - 1000 cash, plus 100 shares at 12.
	if got := p.equity(); math.Abs(got-10_200) > 1e-12 {
		t.Errorf("equity=%.2f, want 10200.00", got)
	}
}

func TestPortfolio_CommissionHitsCashOnly(t *testing.T) {
	p := newPortfolio(10_000)
	p.applyFill("ACME", model.SideBuy, 100, 10, 25, ts(0))
	if math.Abs(p.cash-(10_000-1000-25)) > 1e-12 {
		t.Errorf("cash=%.2f, want 8975.00", p.cash)
	}
	if pos := p.position("ACME"); pos.AvgPrice != 10 {
		t.Errorf("avg=%.2f, commission must not move the entry price", pos.AvgPrice)
	}
}

func TestPortfolio_TradesIncludesOpenLegs(t *testing.T) {
	p := newPortfolio(10_000)
	p.applyFill("ACME", model.SideBuy, 10, 10, 0, ts(0))

	trades := p.trades()
	if len(trades) != 1 {
		t.Fatalf("trades=%d, want 1", len(trades))
	}
	if !trades[0].Open() {
		t.Error("unclosed position must surface as an open trade")
	}
}
