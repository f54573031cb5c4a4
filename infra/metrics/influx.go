package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/crewplan/core/logger"
	coremetrics "github.com/kilianp07/crewplan/core/metrics"
	infralogger "github.com/kilianp07/crewplan/infra/logger"
)

// InfluxConfig locates an InfluxDB v2 bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes scheduling events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      infralogger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink when the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordCommit writes a schedule_commit point.
func (s *InfluxSink) RecordCommit(r coremetrics.CommitRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_commit").
		AddTag("worker_id", r.WorkerID).
		AddTag("work_item_id", r.WorkItemID).
		AddTag("source", r.Source).
		AddTag("outcome", r.Outcome).
		AddTag("task_created", strconv.FormatBool(r.TaskCreated)).
		AddField("hours", round3(r.Hours)).
		AddField("latency_ms", round3(r.Latency.Seconds()*1000)).
		SetTime(r.Time)
	if !r.Start.IsZero() {
		p = p.AddField("slot_start", r.Start.Unix())
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSearch writes a schedule_search point.
func (s *InfluxSink) RecordSearch(r coremetrics.SearchRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_search").
		AddTag("worker_id", r.WorkerID).
		AddTag("work_item_id", r.WorkItemID).
		AddTag("incomplete", strconv.FormatBool(r.ConflictDataIncomplete)).
		AddTag("unadjusted", strconv.FormatBool(r.Unadjusted)).
		AddField("candidates", r.Candidates).
		AddField("latency_ms", round3(r.Latency.Seconds()*1000)).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordEstimation writes a schedule_estimation point.
func (s *InfluxSink) RecordEstimation(r coremetrics.EstimationRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_estimation").
		AddTag("work_item_id", r.WorkItemID).
		AddTag("degraded", strconv.FormatBool(r.Degraded)).
		AddField("workers", r.Workers).
		AddField("base_hours", round3(r.BaseHours)).
		AddField("final_hours", round3(r.FinalHours)).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
