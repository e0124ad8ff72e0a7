package indicator

// MACD calculates Moving Average Convergence/Divergence. The macd line is
// EMA(fast) minus EMA(slow); the signal line is an EMA of the macd line; the
// histogram is macd minus signal. One MACD instance therefore produces three
// output series. The macd line is defined once the slow EMA is warm, the
// signal and histogram after a further signal-period macd values.
type MACD struct {
	name     string
	sigName  string
	histName string

	fastPeriod   int
	slowPeriod   int
	signalPeriod int

	fast   *EMA
	slow   *EMA
	signal *EMA

	macd float64
	hist float64
}

// NewMACD creates a MACD with the given fast/slow/signal periods
// (12/26/9 standard, 8/17/9 sensitive).
func NewMACD(fast, slow, signal int) *MACD {
	base := itoa(fast) + "_" + itoa(slow)
	return &MACD{
		name:         "MACD_" + base,
		sigName:      "MACD_SIGNAL_" + base + "_" + itoa(signal),
		histName:     "MACD_HIST_" + base + "_" + itoa(signal),
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
		fast:         NewEMA(fast),
		slow:         NewEMA(slow),
		signal:       NewEMA(signal),
	}
}

// Name returns the macd line name, e.g. "MACD_12_26".
func (m *MACD) Name() string { return m.name }

// SignalName returns the signal line name, e.g. "MACD_SIGNAL_12_26_9".
func (m *MACD) SignalName() string { return m.sigName }

// HistName returns the histogram name, e.g. "MACD_HIST_12_26_9".
func (m *MACD) HistName() string { return m.histName }

func (m *MACD) Update(close float64) {
	m.fast.Update(close)
	m.slow.Update(close)
	if !m.slow.Ready() {
		return
	}

	m.macd = m.fast.Value() - m.slow.Value()
	m.signal.Update(m.macd)
	if m.signal.Ready() {
		m.hist = m.macd - m.signal.Value()
	}
}

// Value returns the macd line.
func (m *MACD) Value() float64 { return m.macd }

// Ready reports whether the macd line is defined.
func (m *MACD) Ready() bool { return m.slow.Ready() }

// Signal returns the signal line. Meaningless before SignalReady.
func (m *MACD) Signal() float64 { return m.signal.Value() }

// SignalReady reports whether the signal line (and histogram) are defined.
func (m *MACD) SignalReady() bool { return m.signal.Ready() }

// Histogram returns macd minus signal. Meaningless before SignalReady.
func (m *MACD) Histogram() float64 { return m.hist }

// Snapshot serializes the MACD state, nesting its three EMA cores.
func (m *MACD) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Name:         m.name,
		Type:         "MACD",
		Fast:         m.fastPeriod,
		Slow:         m.slowPeriod,
		SignalPeriod: m.signalPeriod,
		Current:      m.macd,
		Hist:         m.hist,
		Subs: []IndicatorSnapshot{
			m.fast.Snapshot(),
			m.slow.Snapshot(),
			m.signal.Snapshot(),
		},
	}
}

// RestoreFromSnapshot restores MACD state from a checkpoint.
func (m *MACD) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	restored := NewMACD(snap.Fast, snap.Slow, snap.SignalPeriod)
	if len(snap.Subs) == 3 {
		if err := restored.fast.RestoreFromSnapshot(snap.Subs[0]); err != nil {
			return err
		}
		if err := restored.slow.RestoreFromSnapshot(snap.Subs[1]); err != nil {
			return err
		}
		if err := restored.signal.RestoreFromSnapshot(snap.Subs[2]); err != nil {
			return err
		}
	}
	restored.macd = snap.Current
	restored.hist = snap.Hist
	*m = *restored
	return nil
}
