package model

import (
	"encoding/json"
	"time"
)

// Run lifecycle event types published at the boundary.
const (
	RunEventStarted   = "started"
	RunEventCompleted = "completed"
	RunEventAborted   = "aborted"
	RunEventWarning   = "warning"
)

// RunRecord is the persisted header of one backtest run.
type RunRecord struct {
	ID           string    `json:"id"`
	Strategy     string    `json:"strategy"`
	Symbols      []string  `json:"symbols"`
	State        string    `json:"state"` // COMPLETED, ABORTED
	StartingCash float64   `json:"starting_cash"`
	FinalEquity  float64   `json:"final_equity"`
	BarCount     int       `json:"bar_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// RunEvent is a lifecycle notification emitted while a run executes.
type RunEvent struct {
	RunID   string    `json:"run_id"`
	Type    string    `json:"type"`
	TS      time.Time `json:"ts"`
	Message string    `json:"message,omitempty"`
}

// JSON returns the JSON-encoded run event.
func (e *RunEvent) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}
