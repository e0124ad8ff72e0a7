package backtest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"quantdb/internal/indicator"
	"quantdb/internal/strategy"
)

// LagPolicy selects the price an intent fills against.
type LagPolicy string

const (
	// LagSameClose fills intents at the close of the bar that produced them.
	LagSameClose LagPolicy = "sameClose"
	// LagNextOpen fills intents at the open of the symbol's next bar. This is
	// the default; it rules out same-bar lookahead.
	LagNextOpen LagPolicy = "nextOpen"
)

// CommissionType selects how commission is charged.
type CommissionType string

const (
	CommissionFlat     CommissionType = "flat"     // fixed amount per order
	CommissionPerShare CommissionType = "perShare" // rate × shares
)

// Commission models the per-fill commission charge. The zero value charges
// nothing.
type Commission struct {
	Type   CommissionType `yaml:"type" json:"type"`
	Amount float64        `yaml:"amount,omitempty" json:"amount,omitempty"` // flat
	Rate   float64        `yaml:"rate,omitempty" json:"rate,omitempty"`     // perShare
}

// Charge returns the commission for a fill of qty shares.
func (c Commission) Charge(qty int64) float64 {
	switch c.Type {
	case CommissionFlat:
		return c.Amount
	case CommissionPerShare:
		return c.Rate * float64(qty)
	default:
		return 0
	}
}

func (c Commission) validate() error {
	switch c.Type {
	case "", CommissionFlat, CommissionPerShare:
	default:
		return fmt.Errorf("unknown commission type %q", c.Type)
	}
	if c.Amount < 0 || c.Rate < 0 {
		return fmt.Errorf("commission must be non-negative")
	}
	return nil
}

// RunConfig is the full configuration of one backtest run.
type RunConfig struct {
	StartingCash      float64    `yaml:"startingCash" json:"startingCash"`
	ExecutionLag      LagPolicy  `yaml:"executionLagPolicy" json:"executionLagPolicy"`
	Commission        Commission `yaml:"commissionModel" json:"commissionModel"`
	SlippageBps       float64    `yaml:"slippageBps" json:"slippageBps"`
	AllowShort        bool       `yaml:"allowShort" json:"allowShort"`
	RejectAndContinue bool       `yaml:"rejectAndContinue" json:"rejectAndContinue"`
	CloseOnEnd        bool       `yaml:"closeOnEnd" json:"closeOnEnd"`
	PeriodsPerYear    int        `yaml:"periodsPerYear" json:"periodsPerYear"`
	RiskFreeRate      float64    `yaml:"riskFreeRate" json:"riskFreeRate"`

	// Symbols to simulate; empty means every symbol in the store.
	Symbols []string `yaml:"symbols" json:"symbols"`

	// Strategy selects a registered strategy by name.
	Strategy       string          `yaml:"strategy" json:"strategy"`
	StrategyParams strategy.Params `yaml:"strategyParams" json:"strategyParams"`

	// Indicators computed during the run, in addition to whatever the
	// strategy declares it requires.
	Indicators []indicator.Config `yaml:"indicators" json:"indicators"`
}

// DefaultConfig returns the baseline configuration: 100,000 starting cash,
// next-open execution, no costs, long-only, 252 daily periods per year.
func DefaultConfig() RunConfig {
	return RunConfig{
		StartingCash:   100_000,
		ExecutionLag:   LagNextOpen,
		PeriodsPerYear: 252,
		Strategy:       "ma_crossover",
	}
}

// Normalize fills zero-valued fields with defaults and validates the result.
func (c *RunConfig) Normalize() error {
	if c.StartingCash == 0 {
		c.StartingCash = 100_000
	}
	if c.ExecutionLag == "" {
		c.ExecutionLag = LagNextOpen
	}
	if c.PeriodsPerYear == 0 {
		c.PeriodsPerYear = 252
	}

	if c.StartingCash < 0 {
		return fmt.Errorf("startingCash must be non-negative, got %.2f", c.StartingCash)
	}
	switch c.ExecutionLag {
	case LagSameClose, LagNextOpen:
	default:
		return fmt.Errorf("unknown executionLagPolicy %q", c.ExecutionLag)
	}
	if err := c.Commission.validate(); err != nil {
		return err
	}
	if c.SlippageBps < 0 {
		return fmt.Errorf("slippageBps must be non-negative, got %.2f", c.SlippageBps)
	}
	if c.PeriodsPerYear < 0 {
		return fmt.Errorf("periodsPerYear must be positive, got %d", c.PeriodsPerYear)
	}
	return nil
}

// LoadSweep reads a YAML file holding a list of run configurations for a
// parameter sweep. Every entry is normalized; one bad entry fails the load.
func LoadSweep(path string) ([]RunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sweep: %w", err)
	}
	var cfgs []RunConfig
	if err := yaml.Unmarshal(raw, &cfgs); err != nil {
		return nil, fmt.Errorf("parse sweep %s: %w", path, err)
	}
	for i := range cfgs {
		if err := cfgs[i].Normalize(); err != nil {
			return nil, fmt.Errorf("sweep %s entry %d: %w", path, i, err)
		}
	}
	return cfgs, nil
}

// LoadConfig reads a YAML run configuration. Missing fields take defaults.
func LoadConfig(path string) (RunConfig, error) {
	cfg := RunConfig{}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Normalize(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
