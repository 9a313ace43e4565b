// Package config holds the consolidation run configuration. There is no
// process-wide state: a Config value is passed into every entry point.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config configures a ground-state consolidation run.
type Config struct {
	// MinEDiff is the significance threshold in eV: a distortion only
	// counts as energy-lowering when its energy sits more than MinEDiff
	// below the unperturbed energy.
	MinEDiff float64 `yaml:"min_e_diff"`

	// Stol is the structure-matching site tolerance, in units of the
	// average volume per atom.
	Stol float64 `yaml:"stol"`

	// MinDist is the acceptance distance in angstroms: two matched
	// structures count as the same ground state only below it.
	MinDist float64 `yaml:"min_dist"`

	// Verbose enables per-charge-state informational reporting.
	Verbose bool `yaml:"verbose"`

	// WriteInputFiles enables re-seeded input generation after merging.
	WriteInputFiles bool `yaml:"write_input_files"`

	// Code selects the external calculation code format (vasp, cp2k,
	// espresso, fhi-aims, castep).
	Code string `yaml:"code"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		MinEDiff: 0.05,
		Stol:     0.5,
		MinDist:  0.2,
		Verbose:  true,
		Code:     "vasp",
	}
}

// Load reads configuration from a YAML file, falling back to defaults when
// the file does not exist. Environment overrides apply last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies SHAKEDOWN_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SHAKEDOWN_MIN_E_DIFF"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.MinEDiff = f
		}
	}
	if v := os.Getenv("SHAKEDOWN_STOL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Stol = f
		}
	}
	if v := os.Getenv("SHAKEDOWN_MIN_DIST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.MinDist = f
		}
	}
	if v := os.Getenv("SHAKEDOWN_CODE"); v != "" {
		c.Code = v
	}
}

// Validate checks threshold sanity.
func (c *Config) Validate() error {
	if c.MinEDiff < 0 {
		return fmt.Errorf("min_e_diff must be non-negative, got %g", c.MinEDiff)
	}
	if c.Stol <= 0 {
		return fmt.Errorf("stol must be positive, got %g", c.Stol)
	}
	if c.MinDist <= 0 {
		return fmt.Errorf("min_dist must be positive, got %g", c.MinDist)
	}
	return nil
}
