package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"quantdb/internal/model"
)

// envelope is the parsed WS message structure.
type envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
	TS      string          `json:"ts"`
	Seq     int64           `json:"seq"`
}

func sampleValue(symbol string) model.IndicatorValue {
	return model.IndicatorValue{
		Name:   "SMA_20",
		Symbol: symbol,
		TS:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Freq:   model.FreqDaily,
		Value:  101.25,
	}
}

func TestBroadcast_EnvelopeFormat(t *testing.T) {
	h := NewHub()
	v := sampleValue("ACME")
	h.BroadcastIndicator(v)

	bufs := h.ReplayRange("ind:SMA_20:D:ACME", 1, 1)
	if len(bufs) != 1 {
		t.Fatalf("replay entries=%d, want 1", len(bufs))
	}

	var env envelope
	if err := json.Unmarshal(bufs[0], &env); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\nraw: %s", err, bufs[0])
	}
	if env.Channel != "ind:SMA_20:D:ACME" {
		t.Errorf("channel=%q", env.Channel)
	}
	if env.Seq != 1 {
		t.Errorf("seq=%d, want 1", env.Seq)
	}
	if _, err := time.Parse(time.RFC3339Nano, env.TS); err != nil {
		t.Errorf("ts is not RFC3339Nano: %v", err)
	}

	var got model.IndicatorValue
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("data is not a valid indicator value: %v", err)
	}
	if got.Value != v.Value || got.Symbol != "ACME" {
		t.Errorf("payload mangled: %+v", got)
	}
}

func TestBroadcast_PerChannelSequences(t *testing.T) {
	h := NewHub()
	h.BroadcastIndicator(sampleValue("ACME"))
	h.BroadcastIndicator(sampleValue("ACME"))
	h.BroadcastIndicator(sampleValue("ZETA"))

	if got := h.ChannelSeq("ind:SMA_20:D:ACME"); got != 2 {
		t.Errorf("ACME seq=%d, want 2", got)
	}
	if got := h.ChannelSeq("ind:SMA_20:D:ZETA"); got != 1 {
		t.Errorf("ZETA seq=%d, want 1 (channels sequence independently)", got)
	}
}

func TestBroadcast_RunEventChannel(t *testing.T) {
	h := NewHub()
	h.BroadcastRunEvent(model.RunEvent{
		RunID: "run-1",
		Type:  model.RunEventCompleted,
		TS:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})

	bufs := h.ReplayRange("run:events", 1, 1)
	if len(bufs) != 1 {
		t.Fatalf("replay entries=%d, want 1", len(bufs))
	}
	var env envelope
	if err := json.Unmarshal(bufs[0], &env); err != nil {
		t.Fatalf("envelope: %v", err)
	}
	var ev model.RunEvent
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		t.Fatalf("run event payload: %v", err)
	}
	if ev.RunID != "run-1" || ev.Type != model.RunEventCompleted {
		t.Errorf("event mangled: %+v", ev)
	}
}

func TestClientFilters_MatchChannel(t *testing.T) {
	c := &Client{}

	// No filters: everything passes.
	if !c.matchesChannel("ind:SMA_20:D:ACME") || !c.matchesChannel("run:events") {
		t.Error("unfiltered client must receive everything")
	}

	c.filters = ClientFilters{Symbols: []string{"ACME"}}
	if !c.matchesChannel("ind:SMA_20:D:ACME") {
		t.Error("matching symbol filtered out")
	}
	if c.matchesChannel("ind:SMA_20:D:ZETA") {
		t.Error("non-matching symbol passed the filter")
	}
	if !c.matchesChannel("run:events") {
		t.Error("run events must always pass filters")
	}

	c.filters = ClientFilters{Indicators: []string{"RSI_14"}}
	if c.matchesChannel("ind:SMA_20:D:ACME") {
		t.Error("non-matching indicator passed the filter")
	}
	if !c.matchesChannel("ind:RSI_14:D:ACME") {
		t.Error("matching indicator filtered out")
	}
}

// A peer can disconnect before the initial-state goroutine gets scheduled.
// Removal must not leave a closed channel that the late sender panics on.
func TestHub_RemoveBeforeInitialState(t *testing.T) {
	h := NewHub()
	h.BroadcastIndicator(sampleValue("ACME"))

	c := &Client{hub: h, send: make(chan []byte, 4)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	// readPump's deferred removal wins the race; initial state runs after.
	h.RemoveClient(c)
	c.sendInitialState("")

	if _, ok := <-c.send; ok {
		t.Error("removed client must not receive initial state")
	}
	if got := h.ClientCount(); got != 0 {
		t.Errorf("ClientCount=%d, want 0", got)
	}
}

func TestHub_ClientCountCallback(t *testing.T) {
	h := NewHub()
	var counts []int
	h.OnClientCountChange = func(n int) { counts = append(counts, n) }

	c := &Client{hub: h, send: make(chan []byte, 1)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	h.RemoveClient(c)
	h.RemoveClient(c) // second removal is a no-op

	if len(counts) != 1 || counts[0] != 0 {
		t.Errorf("callback calls=%v, want one call with 0", counts)
	}
}
