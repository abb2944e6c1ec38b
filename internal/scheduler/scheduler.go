package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jopa/salestracker/internal/observability"
	"github.com/jopa/salestracker/internal/service/pipeline"
)

// Runner executes one report pipeline run.
type Runner interface {
	RunOnce(ctx context.Context) (pipeline.Result, error)
}

// Scheduler fires the daily report on a cron cadence and serialises runs
// through a Guard.
type Scheduler struct {
	cron       *cron.Cron
	schedule   string
	runner     Runner
	guard      *Guard
	runTimeout time.Duration
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewScheduler creates a scheduler that evaluates schedule in loc.
func NewScheduler(schedule string, loc *time.Location, runTimeout time.Duration, runner Runner, guard *Guard, metrics *observability.Metrics, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if guard == nil {
		guard = NewGuard(nil)
	}
	guard.onError = func(err error) {
		logger.Warn("failed to release run lock", zap.Error(err))
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		schedule:   schedule,
		runner:     runner,
		guard:      guard,
		runTimeout: runTimeout,
		metrics:    metrics,
		logger:     logger,
	}
}

// Start registers the daily report job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.tick); err != nil {
		return fmt.Errorf("schedule daily report %q: %w", s.schedule, err)
	}

	s.logger.Info("starting scheduler",
		zap.String("schedule", s.schedule),
		zap.String("timezone", s.cron.Location().String()))
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("stopping scheduler")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with a run still in progress")
	}
}

// Trigger runs the pipeline once outside the cron cadence. It returns ErrBusy
// when a run is already in progress.
func (s *Scheduler) Trigger(ctx context.Context) (pipeline.Result, error) {
	return s.run(ctx)
}

func (s *Scheduler) tick() {
	s.logger.Info("daily report tick", zap.Time("at", time.Now()))

	result, err := s.run(context.Background())
	switch {
	case errors.Is(err, ErrBusy):
		s.metrics.SkippedTick()
		s.logger.Info("previous report run still in progress, skipping tick")
	case err != nil:
		fields := []zap.Field{zap.String("outcome", pipeline.Outcome(err)), zap.Error(err)}
		if id, ok := pipeline.DanglingReportID(err); ok {
			fields = append(fields, zap.Uint("report_id", id))
		}
		s.logger.Error("daily report run failed", fields...)
	default:
		s.logger.Info("daily report run finished", zap.Uint("report_id", result.ReportID))
	}
}

func (s *Scheduler) run(ctx context.Context) (result pipeline.Result, err error) {
	release, err := s.guard.TryAcquire(ctx)
	if err != nil {
		return pipeline.Result{}, err
	}
	defer release()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("report run panicked", zap.Any("panic", r), zap.Stack("stack"))
			result, err = pipeline.Result{}, fmt.Errorf("report run panicked: %v", r)
		}
	}()

	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	return s.runner.RunOnce(ctx)
}
