// Package estimator implements the Drive-Time and Task-Time collaborators
// as JSON over HTTP clients of a remote estimation service.
package estimator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kilianp07/crewplan/core/estimate"
	"github.com/kilianp07/crewplan/core/logger"
	"github.com/kilianp07/crewplan/core/model"
)

const (
	driveTimePath = "/drive-time"
	taskTimePath  = "/task-time"
)

// Config configures the remote estimation service.
type Config struct {
	BaseURL    string        `json:"base_url"`
	Timeout    time.Duration `json:"timeout"`
	RatePerSec float64       `json:"rate_per_sec"`
	Burst      int           `json:"burst"`
	Auth       AuthConfig    `json:"auth"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 5
	}
	if c.Burst <= 0 {
		c.Burst = int(c.RatePerSec)
		if c.Burst < 1 {
			c.Burst = 1
		}
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("estimator base_url is required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("estimator base_url %q must be http or https", c.BaseURL)
	}
	if c.Auth.ClientID != "" && c.Auth.TokenURL == "" {
		return errors.New("estimator auth token_url is required with client_id")
	}
	return nil
}

// Client calls the estimation service. It implements both
// estimate.DriveTimeEstimator and estimate.TaskTimeEstimator.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	creds   *credentials
	log     logger.Logger
}

var (
	_ estimate.DriveTimeEstimator = (*Client)(nil)
	_ estimate.TaskTimeEstimator  = (*Client)(nil)
)

// NewClient creates a Client. Outbound calls are throttled to
// cfg.RatePerSec and bounded by cfg.Timeout.
func NewClient(cfg Config, log logger.Logger) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		creds:   newCredentials(cfg.Auth),
		log:     log,
	}, nil
}

type driveTimeRequest struct {
	Origin          string         `json:"origin"`
	Destination     string         `json:"destination"`
	AssignedWorkers []model.Worker `json:"assigned_workers"`
}

// EstimateDriveTime posts the trip to {base}/drive-time.
func (c *Client) EstimateDriveTime(ctx context.Context, origin, destination string, workers []model.Worker) (estimate.DriveEstimate, error) {
	var out estimate.DriveEstimate
	err := c.post(ctx, driveTimePath, driveTimeRequest{Origin: origin, Destination: destination, AssignedWorkers: workers}, &out)
	return out, err
}

// EstimateTaskTime posts req to {base}/task-time.
func (c *Client) EstimateTaskTime(ctx context.Context, req estimate.TaskTimeRequest) (estimate.TaskTimeEstimate, error) {
	var out estimate.TaskTimeEstimate
	err := c.post(ctx, taskTimePath, req, &out)
	return out, err
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.creds.SetAuthHeader(ctx, req); err != nil {
		return fmt.Errorf("%w: %v", estimate.ErrEstimationUnavailable, err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", estimate.ErrEstimationUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.log.Debugf("POST %s -> %d in %s", path, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: unexpected status code: %d, body: %s", estimate.ErrEstimationUnavailable, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", estimate.ErrEstimationUnavailable, err)
	}
	return nil
}
