package metrics_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/crewplan/core/factory"
	metrics "github.com/kilianp07/crewplan/core/metrics"
	_ "github.com/kilianp07/crewplan/infra/metrics"
)

type countingSink struct {
	commits, searches int
	err               error
}

func (c *countingSink) RecordCommit(metrics.CommitRecord) error {
	c.commits++
	return c.err
}

func (c *countingSink) RecordSearch(metrics.SearchRecord) error {
	c.searches++
	return nil
}

// commitOnly implements only the mandatory method.
type commitOnly struct{ commits int }

func (c *commitOnly) RecordCommit(metrics.CommitRecord) error {
	c.commits++
	return nil
}

func TestMultiSink_Forwards(t *testing.T) {
	a, b := &countingSink{}, &commitOnly{}
	m := metrics.NewMultiSink(a, b)
	require.NoError(t, m.RecordCommit(metrics.CommitRecord{}))
	require.NoError(t, m.RecordSearch(metrics.SearchRecord{}))
	require.NoError(t, m.RecordEstimation(metrics.EstimationRecord{}))
	assert.Equal(t, 1, a.commits)
	assert.Equal(t, 1, a.searches)
	assert.Equal(t, 1, b.commits)
}

func TestMultiSink_FirstError(t *testing.T) {
	failing := &countingSink{err: errors.New("down")}
	after := &countingSink{}
	m := metrics.NewMultiSink(failing, after)
	assert.Error(t, m.RecordCommit(metrics.CommitRecord{}))
	assert.Zero(t, after.commits)
}

func TestNewMetricsSink(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	require.NoError(t, err)
	assert.NotNil(t, s)

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	require.NoError(t, err)
	m, ok := s.(*metrics.MultiSink)
	require.True(t, ok)
	assert.Len(t, m.Sinks, 2)

	_, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}})
	assert.Error(t, err)
	assert.Contains(t, metrics.SinkTypes(), "prometheus")
}

func TestMetricsConfigDecode(t *testing.T) {
	var cfg metrics.Config
	require.NoError(t, yaml.Unmarshal([]byte("sinks:\n  - type: nop\n  - type: nop\nprometheus_addr: \":9100\"\n"), &cfg))
	assert.Len(t, cfg.Sinks, 2)
	assert.Equal(t, ":9100", cfg.PrometheusAddr)

	var bad metrics.Config
	require.NoError(t, json.Unmarshal([]byte(`{"sinks":[{"type":"missing"}]}`), &bad))
	_, err := metrics.NewMetricsSink(bad.Sinks)
	assert.Error(t, err)
}
