// Package daemon runs scheduled site rebuilds. It owns the rebuild
// schedule, the configuration hot-reload watcher and the optional metrics
// listener; it never serves the built site.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/winterholm/staticpress/internal/build"
	"github.com/winterholm/staticpress/internal/config"
	"github.com/winterholm/staticpress/internal/logfields"
)

// Status represents the current state of the daemon.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

// BuildRunner runs one complete site build. Satisfied by *build.Pipeline.
type BuildRunner interface {
	Run(ctx context.Context) (*build.Report, error)
}

// RunnerFactory constructs a BuildRunner for a configuration. The daemon
// calls it again after each config reload so the new settings take effect
// on the next build.
type RunnerFactory func(cfg *config.Config) BuildRunner

// Snapshot is a point-in-time view of the daemon for status surfaces.
type Snapshot struct {
	Status      Status
	StartedAt   time.Time
	Builds      int
	LastBuild   time.Time
	LastOutcome build.Outcome
}

// Daemon rebuilds the site on a fixed interval.
type Daemon struct {
	configPath     string
	factory        RunnerFactory
	metricsHandler http.Handler

	status    atomic.Value // Status
	startTime time.Time
	baseCtx   context.Context

	scheduler  *Scheduler
	watcher    *ConfigWatcher
	metricsSrv *http.Server

	mu          sync.RWMutex
	cfg         *config.Config
	runner      BuildRunner
	jobID       string
	building    bool
	builds      int
	lastBuild   time.Time
	lastOutcome build.Outcome
}

// New creates a daemon. configPath enables config hot-reload when
// non-empty.
func New(cfg *config.Config, configPath string, factory RunnerFactory) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("build runner factory is required")
	}
	d := &Daemon{
		cfg:        cfg,
		configPath: configPath,
		factory:    factory,
		runner:     factory(cfg),
	}
	d.status.Store(StatusStopped)
	return d, nil
}

// WithMetricsHandler attaches the handler served at /metrics when
// daemon.metrics_addr is configured (fluent helper).
func (d *Daemon) WithMetricsHandler(h http.Handler) *Daemon { d.metricsHandler = h; return d }

// Status returns the daemon lifecycle state.
func (d *Daemon) Status() Status { return d.status.Load().(Status) }

// Config returns the currently active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Snapshot returns a consistent view of the runtime counters.
func (d *Daemon) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Snapshot{
		Status:      d.Status(),
		StartedAt:   d.startTime,
		Builds:      d.builds,
		LastBuild:   d.lastBuild,
		LastOutcome: d.lastOutcome,
	}
}

// Run starts the daemon and blocks until ctx is done, then shuts down.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.Stop(stopCtx)
}

// Start brings up the schedule, the config watcher and the metrics
// listener, then kicks off the initial build.
func (d *Daemon) Start(ctx context.Context) error {
	d.status.Store(StatusStarting)
	d.startTime = time.Now()
	d.baseCtx = ctx

	interval := d.Config().Daemon.IntervalDuration()
	sched, err := NewScheduler()
	if err != nil {
		return err
	}
	d.scheduler = sched
	jobID, err := sched.ScheduleEvery("site-rebuild", interval, func() { d.runBuild(ctx) })
	if err != nil {
		_ = sched.Stop(ctx)
		return err
	}
	d.mu.Lock()
	d.jobID = jobID
	d.mu.Unlock()
	sched.Start()

	if d.configPath != "" {
		w, err := NewConfigWatcher(d.configPath, d)
		if err != nil {
			return fmt.Errorf("create config watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start config watcher: %w", err)
		}
		d.watcher = w
	}

	if addr := d.Config().Daemon.MetricsAddr; addr != "" && d.metricsHandler != nil {
		d.startMetricsServer(addr)
	}

	d.status.Store(StatusRunning)
	slog.Info("Daemon started", slog.String("interval", interval.String()))

	// The first build runs immediately; the schedule covers later ones.
	go d.runBuild(ctx)
	return nil
}

// Stop gracefully shuts down all daemon components.
func (d *Daemon) Stop(ctx context.Context) error {
	d.status.Store(StatusStopping)
	var errs []error
	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
	}
	if d.metricsSrv != nil {
		if err := d.metricsSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop metrics server: %w", err))
		}
	}
	d.status.Store(StatusStopped)
	slog.Info("Daemon stopped")
	return errors.Join(errs...)
}

// runBuild executes one build. A tick that fires while the previous build
// is still running is skipped, not queued.
func (d *Daemon) runBuild(ctx context.Context) {
	d.mu.Lock()
	if d.building {
		d.mu.Unlock()
		slog.Info("Skipping scheduled build, previous build still running")
		return
	}
	d.building = true
	runner := d.runner
	d.mu.Unlock()

	report, err := runner.Run(ctx)

	d.mu.Lock()
	d.building = false
	d.builds++
	d.lastBuild = time.Now()
	if report != nil {
		d.lastOutcome = report.Outcome
	}
	d.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Scheduled build failed", logfields.Error(err))
	}
}

// ReloadConfig validates and applies a new configuration. The rebuild
// job is rescheduled when the interval changed.
func (d *Daemon) ReloadConfig(_ context.Context, newCfg *config.Config) error {
	if err := newCfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	d.mu.Lock()
	oldInterval := d.cfg.Daemon.IntervalDuration()
	d.cfg = newCfg
	d.runner = d.factory(newCfg)
	jobID := d.jobID
	d.mu.Unlock()

	newInterval := newCfg.Daemon.IntervalDuration()
	if newInterval != oldInterval && d.scheduler != nil {
		if err := d.scheduler.Remove(jobID); err != nil {
			return fmt.Errorf("remove rebuild job: %w", err)
		}
		id, err := d.scheduler.ScheduleEvery("site-rebuild", newInterval, func() { d.runBuild(d.baseCtx) })
		if err != nil {
			return fmt.Errorf("reschedule rebuild job: %w", err)
		}
		d.mu.Lock()
		d.jobID = id
		d.mu.Unlock()
		slog.Info("Rebuild interval updated", slog.String("interval", newInterval.String()))
	}
	return nil
}

func (d *Daemon) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metricsHandler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	d.metricsSrv = srv
	go func() {
		slog.Info("Serving metrics", logfields.URL("http://"+addr+"/metrics"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	}()
}
