package scheduler

import (
	"context"
	"fmt"
	"github.com/adamlounds/weather-diary/metrics"
	"github.com/go-co-op/gocron"
	slogctx "github.com/veqryn/slog-context"
	"log/slog"
	"time"
)

// DefaultRunTimeout bounds a single refresh run.
const DefaultRunTimeout = 30 * time.Second

type Refresher interface {
	RefreshWeather(ctx context.Context) error
}

// Scheduler refreshes the weather cache once a day at a fixed wall-clock time.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	job        *gocron.Job
	refresher  Refresher
	at         string
	runTimeout time.Duration
	ctx        context.Context
}

// New creates a Scheduler that runs refresher daily at "HH:MM" in loc.
func New(refresher Refresher, at string, loc *time.Location) *Scheduler {
	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:  s,
		refresher:  refresher,
		at:         at,
		runTimeout: DefaultRunTimeout,
	}
}

// Start schedules the daily job and starts the underlying scheduler. ctx
// supplies the logger for each run; cancelling it aborts an in-flight run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	job, err := s.scheduler.Every(1).Day().At(s.at).Do(s.RunOnce)
	if err != nil {
		return fmt.Errorf("scheduler cannot schedule refresh at %s: %w", s.at, err)
	}
	s.job = job
	s.scheduler.StartAsync()
	slogctx.FromCtx(ctx).Info("weather refresh scheduled", slog.String("at", s.at), slog.Time("nextRun", job.NextRun()))
	return nil
}

// NextRun reports when the refresh will next run, or the zero time before Start.
func (s *Scheduler) NextRun() time.Time {
	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun()
}

// RunOnce performs a single refresh. Failures are logged and counted; the
// next scheduled run is unaffected.
func (s *Scheduler) RunOnce() {
	parent := s.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, s.runTimeout)
	defer cancel()

	log := slogctx.FromCtx(ctx)
	log.Info("scheduler: running weather refresh")
	t1 := time.Now()
	if err := s.refresher.RefreshWeather(ctx); err != nil {
		metrics.RefreshRuns.WithLabelValues("failed").Inc()
		log.Error("scheduler: weather refresh failed", slog.Any("error", err))
		return
	}
	metrics.RefreshRuns.WithLabelValues("ok").Inc()
	log.Info("scheduler: weather refresh complete", slog.Duration("took", time.Since(t1)))
}

// Stop stops the scheduler, waiting for a running refresh to finish.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
