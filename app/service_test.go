package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crewplan/config"
	"github.com/kilianp07/crewplan/core/factory"
	"github.com/kilianp07/crewplan/core/model"
)

const seed = `workers:
  - email: ann@x
    primary_skill: carpentry
projects:
  - id: p1
    status: active
    site_address: 1 Main St
    line_items:
      - id: li1
        type: labor
        hours: 2
        quantity: 1
`

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(seed), 0o644))
	cfg := &config.Config{}
	cfg.Store = config.StoreConfig{Backend: backend, Path: filepath.Join(dir, "crew.db"), Seed: seedPath}
	cfg.Journal.Backend = "jsonl"
	cfg.Journal.Path = filepath.Join(dir, "journal.log")
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "nop"}}
	cfg.HTTP.APIToken = "tok"
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestServiceServesSeededCatalog(t *testing.T) {
	for _, backend := range []string{"memory", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			svc, err := New(testConfig(t, backend))
			require.NoError(t, err)
			defer func() { assert.NoError(t, svc.Close()) }()

			req := httptest.NewRequest(http.MethodGet, "/api/catalog", nil)
			req.Header.Set("Authorization", "Bearer tok")
			rr := httptest.NewRecorder()
			svc.Handler().ServeHTTP(rr, req)
			require.Equal(t, http.StatusOK, rr.Code)

			var body struct {
				Items []model.WorkItem `json:"items"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			require.Len(t, body.Items, 1)
			assert.Equal(t, model.LineItemWorkID("p1", "li1"), body.Items[0].ID)

			req = httptest.NewRequest(http.MethodGet, "/api/journal", nil)
			req.Header.Set("Authorization", "Bearer tok")
			rr = httptest.NewRecorder()
			svc.Handler().ServeHTTP(rr, req)
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, 1, svc.Sessions.Len())
		})
	}
}

func TestServiceRejectsBadSeed(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.Store.Seed = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestServiceRejectsUnknownSink(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "statsd"}}
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestServiceWiresDriveTime(t *testing.T) {
	var trips atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/drive-time", r.URL.Path)
		var body struct {
			Origin      string `json:"origin"`
			Destination string `json:"destination"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "9 Yard Rd", body.Origin)
		assert.Equal(t, "1 Main St", body.Destination)
		trips.Add(1)
		_, _ = w.Write([]byte(`{"drive_minutes_round_trip": 60}`))
	}))
	defer srv.Close()

	cfg := testConfig(t, "memory")
	cfg.Estimate.BusinessAddress = "9 Yard Rd"
	cfg.Estimate.Drive.BaseURL = srv.URL
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	svc, err := New(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	ctx := context.Background()
	p := svc.NewPlanner()
	require.NoError(t, p.Catalog(ctx).Err)
	d, err := p.Resolve(ctx, model.LineItemWorkID("p1", "li1"), []string{"ann@x"}, model.ModeStandard)
	require.NoError(t, err)
	assert.False(t, d.Unadjusted)
	assert.Equal(t, 60.0, d.DriveRoundTripMinutes)
	assert.Equal(t, 3.0, d.FinalAdjustedHours)
	assert.Equal(t, int32(1), trips.Load())
}

func TestServiceRejectsBadDriveService(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.Estimate.Drive.BaseURL = "ftp://maps"
	_, err := New(cfg)
	assert.Error(t, err)
}
