package backtest

import (
	"fmt"
	"time"
)

// UnknownSymbolError reports a strategy intent referencing a symbol that was
// never loaded into the run. Always aborts the run; the partial log is kept.
type UnknownSymbolError struct {
	Symbol string
	TS     time.Time
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("unknown symbol %q in intent at %s", e.Symbol, e.TS.Format(time.RFC3339))
}

// InsufficientFundsError reports a fill whose cost exceeds available cash,
// or a sell that would open a short position while shorting is disabled.
// Aborts the run unless reject-and-continue is configured.
type InsufficientFundsError struct {
	Symbol    string
	TS        time.Time
	Required  float64
	Available float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for %s at %s: required %.2f, available %.2f",
		e.Symbol, e.TS.Format(time.RFC3339), e.Required, e.Available)
}
