package backtest

import (
	"sort"
	"time"

	"quantdb/internal/model"
)

// portfolio tracks cash, signed positions, and the trade ledger for one run.
// A run is single-threaded, so no locking. Entries use weighted-average cost;
// reductions realize P&L against that average.
type portfolio struct {
	cash      float64
	positions map[string]*model.Position
	lastClose map[string]float64

	closed   []model.Trade
	open     map[string]*model.Trade
	realized float64
}

func newPortfolio(cash float64) *portfolio {
	return &portfolio{
		cash:      cash,
		positions: make(map[string]*model.Position),
		lastClose: make(map[string]float64),
		open:      make(map[string]*model.Trade),
	}
}

// markClose records the latest close for mark-to-market valuation.
func (p *portfolio) markClose(bar model.Bar) {
	p.lastClose[bar.Symbol] = bar.Close
}

func (p *portfolio) position(symbol string) model.Position {
	if pos, ok := p.positions[symbol]; ok {
		return *pos
	}
	return model.Position{Symbol: symbol}
}

// equity returns cash plus positions marked at the latest closes. Symbols
// are summed in lexical order so equal runs produce bit-equal curves.
func (p *portfolio) equity() float64 {
	symbols := make([]string, 0, len(p.positions))
	for s := range p.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	total := p.cash
	for _, s := range symbols {
		total += float64(p.positions[s].Qty) * p.lastClose[s]
	}
	return total
}

// applyFill applies one fill to cash, the position, and the trade ledger.
// price is the effective fill price (slippage already applied); commission
// is charged to cash only.
func (p *portfolio) applyFill(symbol string, side model.Side, qty int64, price float64, commission float64, ts time.Time) {
	delta := qty
	if side == model.SideSell {
		delta = -qty
	}

	p.cash -= price * float64(delta)
	p.cash -= commission

	pos, held := p.positions[symbol]
	if !held {
		pos = &model.Position{Symbol: symbol}
		p.positions[symbol] = pos
	}
	newQty := pos.Qty + delta

	switch {
	case pos.Qty == 0:
		// Opening a fresh position.
		pos.Qty = delta
		pos.AvgPrice = price
		p.open[symbol] = &model.Trade{
			Symbol:     symbol,
			EntryTS:    ts,
			EntryPrice: price,
			Qty:        delta,
		}

	case sameSign(pos.Qty, delta):
		// Scaling in: weighted-average entry.
		oldAbs := abs64(pos.Qty)
		addAbs := abs64(delta)
		pos.AvgPrice = (pos.AvgPrice*float64(oldAbs) + price*float64(addAbs)) / float64(oldAbs+addAbs)
		pos.Qty = newQty
		if tr := p.open[symbol]; tr != nil {
			tr.Qty = newQty
			tr.EntryPrice = pos.AvgPrice
		}

	case newQty == 0:
		// Full close.
		p.closeOpenTrade(symbol, pos.Qty, pos.AvgPrice, price, ts)
		delete(p.positions, symbol)

	case sameSign(pos.Qty, newQty):
		// Partial close: the reduced quantity realizes, the rest stays open
		// at the original entry.
		closedQty := -delta // carries the position's sign
		pnl := (price - pos.AvgPrice) * float64(closedQty)
		p.realized += pnl
		entryTS := ts
		if tr := p.open[symbol]; tr != nil {
			entryTS = tr.EntryTS
			tr.Qty = newQty
		}
		p.closed = append(p.closed, model.Trade{
			Symbol:      symbol,
			EntryTS:     entryTS,
			ExitTS:      ts,
			EntryPrice:  pos.AvgPrice,
			ExitPrice:   price,
			Qty:         closedQty,
			RealizedPnL: pnl,
		})
		pos.Qty = newQty

	default:
		// Crossing through zero: close everything, then open the remainder
		// on the other side at the fill price.
		p.closeOpenTrade(symbol, pos.Qty, pos.AvgPrice, price, ts)
		pos.Qty = newQty
		pos.AvgPrice = price
		p.open[symbol] = &model.Trade{
			Symbol:     symbol,
			EntryTS:    ts,
			EntryPrice: price,
			Qty:        newQty,
		}
	}
}

// closeOpenTrade realizes the whole open position of symbol at price.
func (p *portfolio) closeOpenTrade(symbol string, posQty int64, avgPrice, price float64, ts time.Time) {
	pnl := (price - avgPrice) * float64(posQty)
	p.realized += pnl

	entryTS := ts
	if tr := p.open[symbol]; tr != nil {
		entryTS = tr.EntryTS
	}
	p.closed = append(p.closed, model.Trade{
		Symbol:      symbol,
		EntryTS:     entryTS,
		ExitTS:      ts,
		EntryPrice:  avgPrice,
		ExitPrice:   price,
		Qty:         posQty,
		RealizedPnL: pnl,
	})
	delete(p.open, symbol)
}

// closeAll closes every open position at its last known close. Used by the
// end-of-run close-out; no slippage or commission applies.
func (p *portfolio) closeAll(ts time.Time) {
	symbols := make([]string, 0, len(p.positions))
	for s := range p.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	for _, s := range symbols {
		pos := p.positions[s]
		price := p.lastClose[s]
		p.cash += price * float64(pos.Qty)
		p.closeOpenTrade(s, pos.Qty, pos.AvgPrice, price, ts)
		delete(p.positions, s)
	}
}

// trades returns the ledger: closed trades in close order, then any trades
// still open (exit fields zero), sorted by symbol.
func (p *portfolio) trades() []model.Trade {
	out := make([]model.Trade, 0, len(p.closed)+len(p.open))
	out = append(out, p.closed...)

	symbols := make([]string, 0, len(p.open))
	for s := range p.open {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for _, s := range symbols {
		out = append(out, *p.open[s])
	}
	return out
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
