package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	LookaheadYears    int     `yaml:"lookahead_years"`
	GuaranteedEpsilon float64 `yaml:"guaranteed_epsilon"`

	Convergence Convergence `yaml:"convergence"`
	Simulation  Simulation  `yaml:"simulation"`
	Water       Water       `yaml:"water"`
}

type Convergence struct {
	MinSamples  int     `yaml:"min_samples"`
	MaxVariance float64 `yaml:"max_variance"`
}

type Simulation struct {
	IterationsPerTile int `yaml:"iterations_per_tile"`
	// TilesPerTick <= 0 samples every water tile each tick.
	TilesPerTick int `yaml:"tiles_per_tick"`
	TickRateHz   int `yaml:"tick_rate_hz"`
}

type Water struct {
	MaxShoreDistance int `yaml:"max_shore_distance"`
}

func Defaults() Tuning {
	return Tuning{
		LookaheadYears:    6,
		GuaranteedEpsilon: 1e-6,
		Convergence: Convergence{
			MinSamples:  1200,
			MaxVariance: 0.0002,
		},
		Simulation: Simulation{
			IterationsPerTile: 1,
			TilesPerTick:      16,
			TickRateHz:        10,
		},
		Water: Water{MaxShoreDistance: 8},
	}
}

// Load reads tuning.yaml over the defaults. An empty path yields the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) applyDefaults() {
	d := Defaults()
	if t.LookaheadYears <= 0 {
		t.LookaheadYears = d.LookaheadYears
	}
	if t.GuaranteedEpsilon <= 0 {
		t.GuaranteedEpsilon = d.GuaranteedEpsilon
	}
	if t.Convergence.MinSamples <= 0 {
		t.Convergence.MinSamples = d.Convergence.MinSamples
	}
	if t.Convergence.MaxVariance <= 0 {
		t.Convergence.MaxVariance = d.Convergence.MaxVariance
	}
	if t.Simulation.IterationsPerTile <= 0 {
		t.Simulation.IterationsPerTile = d.Simulation.IterationsPerTile
	}
	if t.Simulation.TickRateHz <= 0 {
		t.Simulation.TickRateHz = d.Simulation.TickRateHz
	}
	if t.Water.MaxShoreDistance <= 0 {
		t.Water.MaxShoreDistance = d.Water.MaxShoreDistance
	}
}

func (t Tuning) Validate() error {
	if t.LookaheadYears > 50 {
		return fmt.Errorf("lookahead_years %d is too large", t.LookaheadYears)
	}
	if t.GuaranteedEpsilon >= 0.5 {
		return fmt.Errorf("guaranteed_epsilon %v must be below 0.5", t.GuaranteedEpsilon)
	}
	if t.Simulation.TickRateHz > 1000 {
		return fmt.Errorf("simulation.tick_rate_hz %d is too large", t.Simulation.TickRateHz)
	}
	return nil
}
