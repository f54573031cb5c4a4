package estimate

import (
	"fmt"
	"time"

	"github.com/kilianp07/crewplan/core/model"
)

// Config controls duration resolution and the local estimator.
type Config struct {
	BusinessAddress   string        `json:"business_address"`
	DefaultMode       string        `json:"default_mode"`
	Timeout           time.Duration `json:"timeout"`
	Efficiency        float64       `json:"efficiency"`
	MinHoursPerWorker float64       `json:"min_hours_per_worker"`
	GasPrice          float64       `json:"gas_price"`
	DefaultMPG        float64       `json:"default_mpg"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.DefaultMode == "" {
		c.DefaultMode = model.ModeStandard.String()
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Efficiency <= 0 {
		c.Efficiency = 0.8
	}
	if c.MinHoursPerWorker <= 0 {
		c.MinHoursPerWorker = 1
	}
	if c.GasPrice <= 0 {
		c.GasPrice = 3.5
	}
	if c.DefaultMPG <= 0 {
		c.DefaultMPG = 20
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, ok := model.ParseParallelizationMode(c.DefaultMode); !ok {
		return fmt.Errorf("unknown default_mode %q", c.DefaultMode)
	}
	if c.Efficiency > 1 {
		return fmt.Errorf("efficiency must be in (0,1], got %v", c.Efficiency)
	}
	return nil
}

// Mode returns the configured default parallelization mode.
func (c Config) Mode() model.ParallelizationMode {
	m, _ := model.ParseParallelizationMode(c.DefaultMode)
	return m
}
