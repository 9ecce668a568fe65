// Package config provides configuration loading and access for the arbitration runner.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/rootshare/arbitration"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid marks a configuration that fails validation.
var ErrInvalid = errors.New("invalid config")

// Config holds all configuration parameters.
type Config struct {
	Arbitration ArbitrationConfig `yaml:"arbitration"`
	Scenario    ScenarioConfig    `yaml:"scenario"`
	Weather     WeatherConfig     `yaml:"weather"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ArbitrationConfig selects how competing demands are resolved.
type ArbitrationConfig struct {
	Method         string  `yaml:"method"`
	NitrogenMethod int     `yaml:"nitrogen_method"`
	BoundTolerance float64 `yaml:"bound_tolerance"`
	Sender         string  `yaml:"sender"`
}

// ScenarioConfig describes the plot that is generated at startup.
type ScenarioConfig struct {
	Days           int           `yaml:"days"`
	Seed           int64         `yaml:"seed"`
	Zones          int           `yaml:"zones"`
	Layers         int           `yaml:"layers"`
	LayerThickness float64       `yaml:"layer_thickness"` // mm
	Soil           SoilConfig    `yaml:"soil"`
	Noise          NoiseConfig   `yaml:"noise"`
	Plants         []PlantConfig `yaml:"plants"`
}

// SoilConfig holds the baseline soil profile.
type SoilConfig struct {
	WiltingLimit  float64 `yaml:"wilting_limit"`  // volumetric, mm/mm
	FieldCapacity float64 `yaml:"field_capacity"` // volumetric, mm/mm
	InitialFill   float64 `yaml:"initial_fill"`   // fraction of the plant-available range
	Nitrate       float64 `yaml:"nitrate"`        // kg/ha in the top layer
	Ammonium      float64 `yaml:"ammonium"`       // kg/ha in the top layer
	NitrogenDecay float64 `yaml:"nitrogen_decay"` // fractional drop per layer
}

// NoiseConfig holds the spatial and temporal variation applied to the scenario.
type NoiseConfig struct {
	Scale           float64 `yaml:"scale"`
	Amplitude       float64 `yaml:"amplitude"`
	DemandScale     float64 `yaml:"demand_scale"`
	DemandAmplitude float64 `yaml:"demand_amplitude"`
}

// PlantConfig defines one plant and the zones its roots occupy.
type PlantConfig struct {
	Name              string  `yaml:"name"`
	Species           string  `yaml:"species"`
	Zones             []int   `yaml:"zones"`
	RootDepth         int     `yaml:"root_depth"`  // layers reached
	KL                float64 `yaml:"kl"`          // extraction coefficient, /day
	LowerLimit        float64 `yaml:"lower_limit"` // volumetric, mm/mm
	KNO3              float64 `yaml:"kno3"`
	KNH4              float64 `yaml:"knh4"`
	WaterDemand       float64 `yaml:"water_demand"`    // mm/day
	NitrogenDemand    float64 `yaml:"nitrogen_demand"` // kg/ha/day
	MaxNitrogenUptake float64 `yaml:"max_nitrogen_uptake"`
}

// WeatherConfig holds the daily soil replenishment inputs.
type WeatherConfig struct {
	RainInterval   int     `yaml:"rain_interval"`
	RainAmount     float64 `yaml:"rain_amount"`
	Mineralisation float64 `yaml:"mineralisation"`
	Nitrification  float64 `yaml:"nitrification"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	LogInterval int `yaml:"log_interval"`
	PerfWindow  int `yaml:"perf_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	ZoneIDs      []int         // 1..Zones
	PlantsByZone map[int][]int // zone ID -> indices into Scenario.Plants
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. The result is validated.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := Merge(cfg, data); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()
	return cfg, nil
}

// Merge overlays YAML data onto cfg. Only fields present in data are overwritten;
// a plants list replaces the default list as a whole.
func Merge(cfg *Config, data []byte) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// Validate checks every setting the runner cannot recover from.
func (c *Config) Validate() error {
	if err := arbitration.ValidateMethod(c.Arbitration.Method); err != nil {
		return fmt.Errorf("arbitration.method: %w", err)
	}
	if _, err := arbitration.NewNitrogenMethod(c.Arbitration.NitrogenMethod); err != nil {
		return fmt.Errorf("arbitration.nitrogen_method: %w", err)
	}
	if c.Arbitration.BoundTolerance < 0 {
		return fmt.Errorf("%w: arbitration.bound_tolerance must not be negative", ErrInvalid)
	}

	s := &c.Scenario
	switch {
	case s.Zones < 1:
		return fmt.Errorf("%w: scenario.zones must be at least 1", ErrInvalid)
	case s.Layers < 1:
		return fmt.Errorf("%w: scenario.layers must be at least 1", ErrInvalid)
	case s.LayerThickness <= 0:
		return fmt.Errorf("%w: scenario.layer_thickness must be positive", ErrInvalid)
	case s.Soil.FieldCapacity <= s.Soil.WiltingLimit:
		return fmt.Errorf("%w: scenario.soil.field_capacity must exceed wilting_limit", ErrInvalid)
	}

	names := make(map[string]bool, len(s.Plants))
	for i, p := range s.Plants {
		if p.Name == "" {
			return fmt.Errorf("%w: scenario.plants[%d] has no name", ErrInvalid, i)
		}
		if names[p.Name] {
			return fmt.Errorf("%w: duplicate plant name %q", ErrInvalid, p.Name)
		}
		names[p.Name] = true
		if len(p.Zones) == 0 {
			return fmt.Errorf("%w: plant %q occupies no zones", ErrInvalid, p.Name)
		}
		for _, z := range p.Zones {
			if z < 1 || z > s.Zones {
				return fmt.Errorf("%w: plant %q references zone %d (have 1..%d)", ErrInvalid, p.Name, z, s.Zones)
			}
		}
		if p.RootDepth < 0 || p.RootDepth > s.Layers {
			return fmt.Errorf("%w: plant %q root_depth %d outside 0..%d", ErrInvalid, p.Name, p.RootDepth, s.Layers)
		}
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	s := &c.Scenario
	c.Derived.ZoneIDs = make([]int, s.Zones)
	for i := range c.Derived.ZoneIDs {
		c.Derived.ZoneIDs[i] = i + 1
	}

	c.Derived.PlantsByZone = make(map[int][]int, s.Zones)
	for i, p := range s.Plants {
		zones := slices.Clone(p.Zones)
		slices.Sort(zones)
		zones = slices.Compact(zones)
		for _, z := range zones {
			c.Derived.PlantsByZone[z] = append(c.Derived.PlantsByZone[z], i)
		}
	}
}

// ArbitrationOptions converts the arbitration section into engine options.
func (c *Config) ArbitrationOptions() arbitration.Options {
	opts := arbitration.DefaultOptions()
	opts.Method = c.Arbitration.Method
	opts.NitrogenMethod = c.Arbitration.NitrogenMethod
	if c.Arbitration.BoundTolerance > 0 {
		opts.BoundTolerance = c.Arbitration.BoundTolerance
	}
	if c.Arbitration.Sender != "" {
		opts.Sender = c.Arbitration.Sender
	}
	return opts
}

// YAML returns the configuration encoded as YAML.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
