package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	journalapi "github.com/kilianp07/crewplan/api/journal"
	"github.com/kilianp07/crewplan/api/scheduling"
	"github.com/kilianp07/crewplan/config"
	"github.com/kilianp07/crewplan/core/booking"
	"github.com/kilianp07/crewplan/core/catalog"
	"github.com/kilianp07/crewplan/core/estimate"
	"github.com/kilianp07/crewplan/core/events"
	"github.com/kilianp07/crewplan/core/journal"
	coremetrics "github.com/kilianp07/crewplan/core/metrics"
	coremon "github.com/kilianp07/crewplan/core/monitoring"
	"github.com/kilianp07/crewplan/core/planner"
	"github.com/kilianp07/crewplan/core/scheduler"
	"github.com/kilianp07/crewplan/core/store"
	"github.com/kilianp07/crewplan/infra/estimator"
	"github.com/kilianp07/crewplan/infra/logger"
	"github.com/kilianp07/crewplan/infra/metrics"
	"github.com/kilianp07/crewplan/infra/monitoring"
	"github.com/kilianp07/crewplan/infra/mqtt"
	"github.com/kilianp07/crewplan/infra/sqlite"
	"github.com/kilianp07/crewplan/internal/eventbus"
)

// Service wires the scheduling engine to its stores, collaborators and the
// HTTP API.
type Service struct {
	Store    store.Store
	Journal  journal.Store
	Sessions *scheduling.Sessions

	cfg     *config.Config
	deps    planner.Deps
	buses   metrics.Buses
	sink    coremetrics.MetricsSink
	mqtt    *mqtt.PahoClient
	handler http.Handler
	log     logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	reporter, err := monitoring.NewSentryReporter(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.SetReporter(reporter)

	svc := &Service{cfg: cfg, log: logg}
	if svc.Store, err = openStore(cfg.Store); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if svc.Journal, err = journal.New(cfg.Journal); err != nil {
		svc.closeQuietly()
		return nil, fmt.Errorf("journal: %w", err)
	}
	if svc.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		svc.closeQuietly()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	svc.buses = metrics.Buses{
		Commits:     eventbus.NewTyped[events.CommitEvent](),
		Searches:    eventbus.NewTyped[events.SearchEvent](),
		Estimations: eventbus.NewTyped[events.EstimationEvent](),
	}

	var taskTime estimate.TaskTimeEstimator
	if cfg.Estimate.RemoteEnabled() {
		client, err := estimator.NewClient(cfg.Estimate.Remote, logger.New("estimator"))
		if err != nil {
			svc.closeQuietly()
			return nil, fmt.Errorf("estimator: %w", err)
		}
		taskTime = client
	} else {
		var drive estimate.DriveTimeEstimator
		if cfg.Estimate.DriveEnabled() {
			client, err := estimator.NewClient(cfg.Estimate.Drive, logger.New("drive_estimator"))
			if err != nil {
				svc.closeQuietly()
				return nil, fmt.Errorf("drive estimator: %w", err)
			}
			drive = client
		}
		taskTime = estimate.NewLocalTaskTime(cfg.Estimate.Config, drive, logger.New("local_estimator"))
	}
	resolver := estimate.NewResolver(cfg.Estimate.Config, taskTime, svc.Store,
		estimate.WithLogger(logger.New("resolver")),
		estimate.WithEventBus(svc.buses.Estimations))

	sched, err := scheduler.New(cfg.Scheduler)
	if err != nil {
		svc.closeQuietly()
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	txOpts := []booking.Option{
		booking.WithJournal(svc.Journal),
		booking.WithEventBus(svc.buses.Commits),
		booking.WithLogger(logger.New("booking")),
	}
	if cfg.MQTT.Enabled() {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			svc.closeQuietly()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.mqtt = client
		txOpts = append(txOpts, booking.WithNotifier(mqtt.NewNotifier(client, cfg.MQTT.TopicPrefix, logger.New("notifier"))))
	}

	svc.deps = planner.Deps{
		Catalog:   catalog.NewBuilder(svc.Store, svc.Store, svc.Store, logger.New("catalog")),
		Resolver:  resolver,
		Scheduler: sched,
		Events:    svc.Store,
		Workers:   svc.Store,
		Booking:   booking.NewTransaction(svc.Store, svc.Store, txOpts...),
	}
	svc.Sessions = scheduling.NewSessions(svc.NewPlanner, 0)

	mux := http.NewServeMux()
	mux.Handle("/api/journal", journalapi.NewHandler(svc.Journal, cfg.HTTP.APIToken))
	mux.Handle("/api/", scheduling.NewHandler(svc.Sessions, cfg.HTTP.APIToken, logger.New("api")))
	svc.handler = mux
	return svc, nil
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Backend {
	case "sqlite":
		st, err = sqlite.Open(sqlite.Config{Path: cfg.Path, BusyTimeout: cfg.BusyTimeout})
		if err != nil {
			return nil, err
		}
	default:
		st = store.NewMemoryStore()
	}
	if cfg.Seed == "" {
		return st, nil
	}
	sd, err := config.LoadSeed(cfg.Seed)
	if err == nil {
		err = sd.Apply(context.Background(), st)
	}
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("seed %s: %w", cfg.Seed, err)
	}
	return st, nil
}

// NewPlanner opens a scheduling session over the service's collaborators.
func (s *Service) NewPlanner() *planner.Planner {
	opts := []planner.Option{
		planner.WithLogger(logger.New("planner")),
		planner.WithEventBus(s.buses.Searches),
	}
	if r, ok := s.sink.(coremetrics.CatalogSizeRecorder); ok {
		opts = append(opts, planner.WithCatalogRecorder(r))
	}
	return planner.New(s.deps, opts...)
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler { return s.handler }

// Run serves the HTTP API and metrics until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.buses, s.sink)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, logger.New("prometheus")); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}()
	s.log.Infof("serving scheduling API on %s", s.cfg.HTTP.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if s.buses.Commits != nil {
		s.buses.Commits.Close()
		s.buses.Searches.Close()
		s.buses.Estimations.Close()
	}
	var errs []error
	if s.Journal != nil {
		errs = append(errs, s.Journal.Close())
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}

func (s *Service) closeQuietly() {
	if err := s.Close(); err != nil {
		s.log.Warnf("close after failed start: %v", err)
	}
}
