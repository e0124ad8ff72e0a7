package indengine

import (
	"testing"

	"quantdb/internal/model"
)

func TestParseIndicatorSpecs(t *testing.T) {
	specs := ParseIndicatorSpecs("SMA:20, ema:9 ,RSI:14,MACD:12:26:9")
	if len(specs) != 4 {
		t.Fatalf("expected 4 specs, got %d: %+v", len(specs), specs)
	}

	if specs[0].Type != "SMA" || specs[0].Period != 20 {
		t.Errorf("spec[0] = %+v", specs[0])
	}
	if specs[1].Type != "EMA" || specs[1].Period != 9 {
		t.Errorf("spec[1] = %+v (types must be upper-cased)", specs[1])
	}
	m := specs[3]
	if m.Type != "MACD" || m.Fast != 12 || m.Slow != 26 || m.Signal != 9 {
		t.Errorf("MACD spec = %+v", m)
	}
}

func TestParseIndicatorSpecs_SkipsInvalid(t *testing.T) {
	specs := ParseIndicatorSpecs("SMA:0,EMA:abc,MACD:26:12:9,RSI:14")
	if len(specs) != 1 {
		t.Fatalf("expected only RSI:14 to survive, got %+v", specs)
	}
	if specs[0].Type != "RSI" || specs[0].Period != 14 {
		t.Errorf("spec = %+v", specs[0])
	}
}

func TestParseIndicatorSpecs_EmptyUsesDefaults(t *testing.T) {
	specs := ParseIndicatorSpecs("")
	if len(specs) == 0 {
		t.Fatal("expected default specs")
	}
	// All-garbage input also falls back to defaults.
	fallback := ParseIndicatorSpecs("nope,:,X")
	if len(fallback) != len(specs) {
		t.Errorf("garbage input: got %d specs, want the %d defaults", len(fallback), len(specs))
	}
}

func TestParseFrequencies(t *testing.T) {
	freqs := parseFrequencies("d,W,x")
	if len(freqs) != 2 || freqs[0] != model.FreqDaily || freqs[1] != model.FreqWeekly {
		t.Errorf("freqs = %v", freqs)
	}
	if got := parseFrequencies(""); len(got) != 1 || got[0] != model.FreqDaily {
		t.Errorf("empty input should default to daily, got %v", got)
	}
}
