// Package config loads the tunables of the animation pipeline from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/animation"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the pipeline settings. Zero fields take the value from Default.
type Config struct {
	// LookupTableWidth is the number of resampled entries per keyframe track.
	LookupTableWidth int `yaml:"lookup_table_width"`

	// Resample enables the uniform lookup tables; nil means enabled.
	Resample *bool `yaml:"resample"`

	// DefaultTicksPerSecond replaces a zero tick rate reported by the importer.
	DefaultTicksPerSecond float32 `yaml:"default_ticks_per_second"`

	// MaxInstances is the initial instance capacity of each animator.
	MaxInstances int `yaml:"max_instances"`

	// ComputeWorkers is the number of goroutines evaluating animators in parallel.
	ComputeWorkers int `yaml:"compute_workers"`

	// ProfilerInterval is how often frame statistics are logged, e.g. "2s".
	ProfilerInterval time.Duration `yaml:"profiler_interval"`
}

// Default returns the built-in settings.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	resample := true
	return Config{
		LookupTableWidth:      animation.LookupTableWidth,
		Resample:              &resample,
		DefaultTicksPerSecond: animation.DefaultTicksPerSecond,
		MaxInstances:          200,
		ComputeWorkers:        max(runtime.NumCPU()-1, 1),
		ProfilerInterval:      time.Second,
	}
}

// Load reads and parses a YAML configuration file.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Config: the parsed configuration with defaults applied
//   - error: an error if the file cannot be read, parsed, or fails validation
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into a Config, fills unset fields from Default and validates the result.
//
// Parameters:
//   - data: the YAML document
//
// Returns:
//   - Config: the parsed configuration
//   - error: an error if decoding or validation fails
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) withDefaults() Config {
	d := Default()
	c.LookupTableWidth = common.Coalesce(c.LookupTableWidth, d.LookupTableWidth)
	c.DefaultTicksPerSecond = common.Coalesce(c.DefaultTicksPerSecond, d.DefaultTicksPerSecond)
	c.MaxInstances = common.Coalesce(c.MaxInstances, d.MaxInstances)
	c.ComputeWorkers = common.Coalesce(c.ComputeWorkers, d.ComputeWorkers)
	c.ProfilerInterval = common.Coalesce(c.ProfilerInterval, d.ProfilerInterval)
	if c.Resample == nil {
		c.Resample = d.Resample
	}
	return c
}

// Validate checks that every setting is usable.
//
// Returns:
//   - error: an error wrapping ErrInvalidConfig naming the first bad field, or nil
func (c Config) Validate() error {
	switch {
	case c.LookupTableWidth < 2:
		return fmt.Errorf("lookup_table_width %d must be at least 2: %w", c.LookupTableWidth, ErrInvalidConfig)
	case c.DefaultTicksPerSecond <= 0:
		return fmt.Errorf("default_ticks_per_second %v must be positive: %w", c.DefaultTicksPerSecond, ErrInvalidConfig)
	case c.MaxInstances < 1:
		return fmt.Errorf("max_instances %d must be at least 1: %w", c.MaxInstances, ErrInvalidConfig)
	case c.ComputeWorkers < 1:
		return fmt.Errorf("compute_workers %d must be at least 1: %w", c.ComputeWorkers, ErrInvalidConfig)
	case c.ProfilerInterval < 0:
		return fmt.Errorf("profiler_interval %v must not be negative: %w", c.ProfilerInterval, ErrInvalidConfig)
	}
	return nil
}

// Resampling reports whether lookup tables are enabled.
func (c Config) Resampling() bool {
	return c.Resample == nil || *c.Resample
}

// LoadOptions translates the configuration into clip load options.
//
// Returns:
//   - []animation.LoadOption: options for asset.Library.Load
func (c Config) LoadOptions() []animation.LoadOption {
	return []animation.LoadOption{
		animation.WithResampling(c.Resampling()),
		animation.WithLookupTableWidth(c.LookupTableWidth),
		animation.WithDefaultTicksPerSecond(c.DefaultTicksPerSecond),
	}
}
