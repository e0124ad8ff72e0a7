package indengine

import (
	"log"
	"os"
	"strconv"
	"strings"

	"quantdb/config"
	"quantdb/internal/indicator"
	"quantdb/internal/model"
)

// Config holds all env-parsed configuration for the indicator engine service.
type Config struct {
	Infra *config.Config

	// Symbols to recompute; empty means every symbol in the database.
	Symbols []string

	// Bar frequencies to run engines for ("D", "W").
	Frequencies []model.Frequency

	// CronSpec schedules the recompute pass (standard 5-field cron).
	CronSpec string

	SnapshotKey       string
	SnapshotIntervalS int
	RingCapacity      int

	Indicators []indicator.Config
}

// LoadConfig reads all environment variables and returns a Config.
func LoadConfig() Config {
	infra := config.Load()

	snapshotInterval, _ := strconv.Atoi(getEnv("SNAPSHOT_INTERVAL_SEC", "300"))
	if snapshotInterval <= 0 {
		snapshotInterval = 300
	}
	ringCap, _ := strconv.Atoi(getEnv("RING_CAPACITY", "8192"))
	if ringCap <= 0 {
		ringCap = 8192
	}

	return Config{
		Infra:             infra,
		Symbols:           config.ParseList(getEnv("SYMBOLS", "")),
		Frequencies:       parseFrequencies(getEnv("FREQUENCIES", "D,W")),
		CronSpec:          getEnv("RECOMPUTE_CRON", "30 18 * * 1-5"),
		SnapshotKey:       getEnv("SNAPSHOT_KEY", "ind:snapshot:engine"),
		SnapshotIntervalS: snapshotInterval,
		RingCapacity:      ringCap,
		Indicators:        ParseIndicatorSpecs(getEnv("INDICATOR_CONFIGS", "")),
	}
}

// ParseIndicatorSpecs parses "TYPE:PERIOD,..." into []indicator.Config.
// MACD takes three parameters: "MACD:FAST:SLOW:SIGNAL".
// Example: "SMA:20,SMA:50,EMA:12,RSI:14,MACD:12:26:9"
// Returns defaults if input is empty.
func ParseIndicatorSpecs(s string) []indicator.Config {
	if s == "" {
		return []indicator.Config{
			{Type: "SMA", Period: 20},
			{Type: "SMA", Period: 50},
			{Type: "SMA", Period: 200},
			{Type: "EMA", Period: 12},
			{Type: "EMA", Period: 26},
			{Type: "RSI", Period: 14},
			{Type: "MACD", Fast: 12, Slow: 26, Signal: 9},
		}
	}

	var configs []indicator.Config
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tokens := strings.Split(part, ":")
		typ := strings.ToUpper(strings.TrimSpace(tokens[0]))

		if typ == "MACD" {
			if len(tokens) != 4 {
				log.Printf("[indengine] skipping invalid MACD spec: %q (want MACD:FAST:SLOW:SIGNAL)", part)
				continue
			}
			fast, err1 := strconv.Atoi(strings.TrimSpace(tokens[1]))
			slow, err2 := strconv.Atoi(strings.TrimSpace(tokens[2]))
			signal, err3 := strconv.Atoi(strings.TrimSpace(tokens[3]))
			if err1 != nil || err2 != nil || err3 != nil || fast <= 0 || slow <= fast || signal <= 0 {
				log.Printf("[indengine] skipping invalid MACD spec: %q", part)
				continue
			}
			configs = append(configs, indicator.Config{Type: typ, Fast: fast, Slow: slow, Signal: signal})
			continue
		}

		if len(tokens) != 2 {
			log.Printf("[indengine] skipping invalid indicator spec: %q", part)
			continue
		}
		period, err := strconv.Atoi(strings.TrimSpace(tokens[1]))
		if err != nil || period <= 0 {
			log.Printf("[indengine] skipping invalid indicator spec: %q", part)
			continue
		}
		configs = append(configs, indicator.Config{Type: typ, Period: period})
	}
	if len(configs) == 0 {
		log.Println("[indengine] WARNING: no valid indicators parsed, using defaults")
		return ParseIndicatorSpecs("")
	}
	log.Printf("[indengine] loaded %d indicator specs from INDICATOR_CONFIGS", len(configs))
	return configs
}

func parseFrequencies(s string) []model.Frequency {
	var freqs []model.Frequency
	for _, p := range config.ParseList(s) {
		switch strings.ToUpper(p) {
		case "D":
			freqs = append(freqs, model.FreqDaily)
		case "W":
			freqs = append(freqs, model.FreqWeekly)
		default:
			log.Printf("[indengine] skipping unknown frequency: %q", p)
		}
	}
	if len(freqs) == 0 {
		freqs = []model.Frequency{model.FreqDaily}
	}
	return freqs
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
