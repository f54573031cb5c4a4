package metrics

import "github.com/kilianp07/crewplan/core/factory"

// Config defines settings for metrics sinks. PrometheusAddr, when set,
// exposes the default registry over HTTP.
type Config struct {
	Sinks          []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	PrometheusAddr string                 `json:"prometheus_addr" yaml:"prometheus_addr"`
}
