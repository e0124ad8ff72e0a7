package timeseries

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports that no data exists for the requested symbol/time.
// Callers must treat it as "value undefined", never as zero.
var ErrNotFound = errors.New("not found")

// IntegrityError reports a malformed or out-of-order bar rejected at load
// time. Loads fail fast; bad input is never silently repaired.
type IntegrityError struct {
	Symbol string
	TS     time.Time
	Field  string
	Value  float64
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: %s at %s: %s (%s=%v)",
		e.Symbol, e.TS.Format(time.RFC3339), e.Reason, e.Field, e.Value)
}
