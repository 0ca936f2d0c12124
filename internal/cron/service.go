// Package cron runs periodic housekeeping jobs for the cron worker.
package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/metrics"
)

const defaultInterval = time.Hour

// Job is one scheduled task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// LockFactory builds the lock guarding one job.
type LockFactory func(job string) (Lock, error)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Jobs     []Job
	Locks    LockFactory
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every job once per interval. Each job takes its own lock, so
// two replicas never run the same job at the same time but can split the work.
type Service struct {
	logg     *logger.Logger
	jobs     []Job
	locks    LockFactory
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	jobs := make([]Job, 0, len(params.Jobs))
	for _, job := range params.Jobs {
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		jobs:     jobs,
		locks:    params.Locks,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Jobs returns the registered jobs in order.
func (s *Service) Jobs() []Job {
	out := make([]Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// Run starts the cron loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.RunOnce(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs every job a single time. A failing job does not stop the rest.
func (s *Service) RunOnce(ctx context.Context) {
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		s.runLocked(ctx, job)
	}
}

func (s *Service) runLocked(ctx context.Context, job Job) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})

	lock, err := s.locks(job.Name())
	if err != nil {
		s.logg.Error(jobCtx, "build job lock", err)
		s.metrics.Failed(job.Name())
		return
	}
	locked, err := lock.Acquire(ctx)
	if err != nil {
		s.logg.Error(jobCtx, "acquire job lock", err)
		s.metrics.Failed(job.Name())
		return
	}
	if !locked {
		s.logg.Info(jobCtx, "job locked by another instance; skipping")
		s.metrics.Skipped(job.Name())
		return
	}
	defer func() {
		if relErr := lock.Release(ctx); relErr != nil {
			s.logg.Error(jobCtx, "release job lock", relErr)
		}
	}()

	start := time.Now()
	err = job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.Observe(job.Name(), duration, err)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return
	}
	s.logg.Info(jobCtx, "job completed")
}
