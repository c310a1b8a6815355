// Package config loads simulation scenarios from yaml. Defaults are filled
// first and the document unmarshals over them; hybrid knobs that land out
// of range are clamped on ingest.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDt      = 0.01
	DefaultSteps   = 100
	DefaultIPS     = 0.1
	DefaultRe      = 100.0
	DefaultOverlap = 1.5
	DefaultThresh  = 0.2
)

// ConfigError reports a setting that cannot be interpreted at all.
type ConfigError struct {
	Field string
	Value any
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: bad value %v for %s", e.Value, e.Field)
}

type Config struct {
	Dt         float64    `yaml:"dt"`
	Steps      int        `yaml:"steps"`
	TimeOrder  int        `yaml:"time_order"` // 1 or 2
	IPS        float64    `yaml:"ips"`
	Re         float64    `yaml:"re"`
	Freestream [2]float64 `yaml:"freestream"`

	Merge MergeConfig `yaml:"merge"`

	Hybrid HybridConfig `yaml:"hybrid"`

	Bodies     []BodyConfig `yaml:"bodies"`
	Flows      []yaml.Node  `yaml:"flow_features"`
	Boundaries []yaml.Node  `yaml:"boundary_features"`
	Measures   []yaml.Node  `yaml:"measure_features"`
}

type MergeConfig struct {
	Overlap float64 `yaml:"overlap"`
	Thresh  float64 `yaml:"threshold"`
}

type BodyConfig struct {
	Name   string     `yaml:"name"`
	Pos    [2]float64 `yaml:"position"`
	Orient float64    `yaml:"orientation"`
	Vel    [2]float64 `yaml:"velocity"`
	RotVel float64    `yaml:"rotation_rate"`
}

// HybridConfig carries the exchange-layer knobs. Recognized options match
// the external solver interface; out-of-range values clamp.
type HybridConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ElementOrder   int    `yaml:"elementOrder"` // 1..5
	TimeOrder      int    `yaml:"timeOrder"`    // 1, 2 or 4
	NumSubsteps    int    `yaml:"numSubsteps"`  // 1..1000
	Preconditioner string `yaml:"preconditioner"`
	SolverType     string `yaml:"solverType"`
}

func Default() *Config {
	return &Config{
		Dt:        DefaultDt,
		Steps:     DefaultSteps,
		TimeOrder: 1,
		IPS:       DefaultIPS,
		Re:        DefaultRe,
		Merge:     MergeConfig{Overlap: DefaultOverlap, Thresh: DefaultThresh},
		Hybrid: HybridConfig{
			ElementOrder:   1,
			TimeOrder:      1,
			NumSubsteps:    100,
			Preconditioner: "none",
			SolverType:     "fgmres",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Clamp()
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings no clamp can fix.
func (c *Config) Validate() error {
	if c.Dt <= 0 {
		return &ConfigError{Field: "dt", Value: c.Dt}
	}
	if c.Steps < 0 {
		return &ConfigError{Field: "steps", Value: c.Steps}
	}
	if c.IPS <= 0 {
		return &ConfigError{Field: "ips", Value: c.IPS}
	}
	if c.Re <= 0 {
		return &ConfigError{Field: "re", Value: c.Re}
	}
	return nil
}

// Clamp pulls out-of-range knobs back into their ranges.
func (c *Config) Clamp() {
	if c.TimeOrder != 2 {
		c.TimeOrder = 1
	}
	h := &c.Hybrid
	h.ElementOrder = clampInt(h.ElementOrder, 1, 5)
	h.NumSubsteps = clampInt(h.NumSubsteps, 1, 1000)
	// nearest of the supported time orders
	switch {
	case h.TimeOrder <= 1:
		h.TimeOrder = 1
	case h.TimeOrder <= 2:
		h.TimeOrder = 2
	default:
		h.TimeOrder = 4
	}
	if h.Preconditioner == "" {
		h.Preconditioner = "none"
	}
	if h.SolverType == "" {
		h.SolverType = "fgmres"
	}
	if c.Merge.Overlap <= 0 {
		c.Merge.Overlap = DefaultOverlap
	}
	if c.Merge.Thresh <= 0 || c.Merge.Thresh > 1 {
		c.Merge.Thresh = DefaultThresh
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
