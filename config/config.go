package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/crewplan/core/estimate"
	"github.com/kilianp07/crewplan/core/journal"
	"github.com/kilianp07/crewplan/core/metrics"
	"github.com/kilianp07/crewplan/core/scheduler"
	"github.com/kilianp07/crewplan/infra/estimator"
	"github.com/kilianp07/crewplan/infra/monitoring"
	"github.com/kilianp07/crewplan/infra/mqtt"
)

// EnvPrefix marks environment variables overriding file values.
// CREWPLAN_HTTP__ADDR sets http.addr.
const EnvPrefix = "CREWPLAN_"

type Config struct {
	Scheduler scheduler.Config        `json:"scheduler"`
	Estimate  EstimateConfig          `json:"estimate"`
	Store     StoreConfig             `json:"store"`
	Journal   journal.Config          `json:"journal"`
	MQTT      mqtt.Config             `json:"mqtt"`
	Metrics   metrics.Config          `json:"metrics"`
	HTTP      HTTPConfig              `json:"http"`
	Sentry    monitoring.SentryConfig `json:"sentry"`
}

// EstimateConfig holds the local resolution settings and, when Remote has a
// base_url, the remote estimation service used instead of the local one.
// Drive points the local estimator at a remote Drive-Time service.
type EstimateConfig struct {
	estimate.Config `json:",squash"`
	Remote          estimator.Config `json:"remote"`
	Drive           estimator.Config `json:"drive"`
}

// RemoteEnabled reports whether the remote estimation service is configured.
func (c EstimateConfig) RemoteEnabled() bool { return c.Remote.BaseURL != "" }

// DriveEnabled reports whether a Drive-Time service is configured.
func (c EstimateConfig) DriveEnabled() bool { return c.Drive.BaseURL != "" }

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if name := cfg.Scheduler.File; name != "" {
		if !filepath.IsAbs(name) {
			name = filepath.Join(filepath.Dir(path), name)
		}
		hours, err := scheduler.LoadConfig(name)
		if err != nil {
			return nil, fmt.Errorf("scheduler file: %w", err)
		}
		hours.File = cfg.Scheduler.File
		cfg.Scheduler = hours
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills zero values in every section.
func (c *Config) SetDefaults() {
	c.Scheduler.SetDefaults()
	c.Estimate.SetDefaults()
	if c.Estimate.RemoteEnabled() {
		c.Estimate.Remote.SetDefaults()
	}
	if c.Estimate.DriveEnabled() {
		c.Estimate.Drive.SetDefaults()
	}
	c.Store.SetDefaults()
	c.MQTT.SetDefaults()
	c.HTTP.SetDefaults()
}

// Validate checks every section and prefixes errors with the section name.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"scheduler", c.Scheduler.Validate},
		{"estimate", c.Estimate.Config.Validate},
		{"store", c.Store.Validate},
		{"journal", c.Journal.Validate},
		{"mqtt", c.MQTT.Validate},
		{"http", c.HTTP.Validate},
	}
	if c.Estimate.RemoteEnabled() {
		checks = append(checks, struct {
			name string
			fn   func() error
		}{"estimate.remote", c.Estimate.Remote.Validate})
	}
	if c.Estimate.DriveEnabled() {
		checks = append(checks, struct {
			name string
			fn   func() error
		}{"estimate.drive", c.Estimate.Drive.Validate})
	}
	for _, ch := range checks {
		if err := ch.fn(); err != nil {
			return fmt.Errorf("%s: %w", ch.name, err)
		}
	}
	return nil
}
