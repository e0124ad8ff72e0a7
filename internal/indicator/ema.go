package indicator

// EMA calculates Exponential Moving Average, seeded with the SMA of the
// first period values. O(1) per update, no window storage.
type EMA struct {
	name       string
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		name:       "EMA_" + itoa(period),
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return e.name }

func (e *EMA) Update(close float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += close
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	// EMA = (price * multiplier) + (EMA_prev * (1 - multiplier))
	e.current = (close * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= e.period }

// Snapshot serializes the EMA state for checkpoint persistence.
func (e *EMA) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Name:       e.name,
		Type:       "EMA",
		Period:     e.period,
		Multiplier: e.multiplier,
		Current:    e.current,
		Count:      e.count,
		Sum:        e.sum,
	}
}

// RestoreFromSnapshot restores EMA state from a checkpoint.
func (e *EMA) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	e.period = snap.Period
	e.name = "EMA_" + itoa(snap.Period)
	e.multiplier = snap.Multiplier
	if e.multiplier == 0 {
		e.multiplier = 2.0 / float64(snap.Period+1)
	}
	e.current = snap.Current
	e.count = snap.Count
	e.sum = snap.Sum
	return nil
}
