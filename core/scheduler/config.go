package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines the business-hours constraints of a slot search.
type Config struct {
	BusinessStartHour int      `json:"business_start_hour" yaml:"business_start_hour"`
	BusinessEndHour   int      `json:"business_end_hour" yaml:"business_end_hour"`
	HorizonDays       int      `json:"horizon_days" yaml:"horizon_days"`
	MaxCandidates     int      `json:"max_candidates" yaml:"max_candidates"`
	WorkingDays       []string `json:"working_days" yaml:"working_days"`
	Timezone          string   `json:"timezone" yaml:"timezone"`
	// File names a standalone business-hours file replacing the fields above.
	File string `json:"file,omitempty" yaml:"-"`
}

// DefaultConfig returns the stock configuration: 08:00-17:00, Monday to
// Friday, 14 days, at most 20 candidates.
func DefaultConfig() Config {
	c := Config{}
	c.SetDefaults()
	return c
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.BusinessStartHour == 0 && c.BusinessEndHour == 0 {
		c.BusinessStartHour = 8
		c.BusinessEndHour = 17
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 14
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 20
	}
	if len(c.WorkingDays) == 0 {
		c.WorkingDays = []string{"mon", "tue", "wed", "thu", "fri"}
	}
}

// Validate checks hour bounds, day names and the time zone.
func (c Config) Validate() error {
	if c.BusinessStartHour < 0 || c.BusinessEndHour > 24 || c.BusinessStartHour >= c.BusinessEndHour {
		return fmt.Errorf("invalid business hours %d-%d", c.BusinessStartHour, c.BusinessEndHour)
	}
	if c.HorizonDays <= 0 {
		return errors.New("horizon_days must be positive")
	}
	if c.MaxCandidates <= 0 {
		return errors.New("max_candidates must be positive")
	}
	for _, d := range c.WorkingDays {
		if _, ok := parseWeekday(d); !ok {
			return fmt.Errorf("unknown working day %q", d)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the business locale. An empty time zone means Local.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", c.Timezone, err)
	}
	return loc, nil
}

// IsWorkingDay reports whether wd belongs to the configured working days.
func (c Config) IsWorkingDay(wd time.Weekday) bool {
	for _, d := range c.WorkingDays {
		if v, ok := parseWeekday(d); ok && v == wd {
			return true
		}
	}
	return false
}

func parseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return 0, false
	}
	switch s[:3] {
	case "sun":
		return time.Sunday, true
	case "mon":
		return time.Monday, true
	case "tue":
		return time.Tuesday, true
	case "wed":
		return time.Wednesday, true
	case "thu":
		return time.Thursday, true
	case "fri":
		return time.Friday, true
	case "sat":
		return time.Saturday, true
	}
	return 0, false
}

// LoadConfig loads a Config from a JSON or YAML file, applying defaults.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return DecodeConfig(f, ext)
}

// DecodeConfig reads from r to decode a Config in the given format.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	var cfg Config
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config format: %s", format)
	}
	cfg.SetDefaults()
	return cfg, cfg.Validate()
}
