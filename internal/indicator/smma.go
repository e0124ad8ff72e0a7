package indicator

// SMMA calculates Smoothed Moving Average (Wilder-style smoothing).
// First value is SMA(period), then SMMA = (prev*(period-1) + price) / period.
type SMMA struct {
	name    string
	period  int
	count   int
	sum     float64
	current float64
}

// NewSMMA creates a new SMMA indicator with the given period.
func NewSMMA(period int) *SMMA {
	return &SMMA{
		name:   "SMMA_" + itoa(period),
		period: period,
	}
}

func (s *SMMA) Name() string { return s.name }

func (s *SMMA) Update(close float64) {
	s.count++

	if s.count <= s.period {
		// Accumulate for initial SMA seed
		s.sum += close
		if s.count == s.period {
			s.current = s.sum / float64(s.period)
		}
		return
	}

	// Wilder-style smoothing
	s.current = (s.current*float64(s.period-1) + close) / float64(s.period)
}

func (s *SMMA) Value() float64 { return s.current }
func (s *SMMA) Ready() bool    { return s.count >= s.period }

// Snapshot serializes the SMMA state for checkpoint persistence.
func (s *SMMA) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Name:    s.name,
		Type:    "SMMA",
		Period:  s.period,
		Count:   s.count,
		Sum:     s.sum,
		Current: s.current,
	}
}

// RestoreFromSnapshot restores SMMA state from a checkpoint.
func (s *SMMA) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	s.period = snap.Period
	s.name = "SMMA_" + itoa(snap.Period)
	s.count = snap.Count
	s.sum = snap.Sum
	s.current = snap.Current
	return nil
}
