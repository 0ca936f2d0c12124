package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/pkg/logger"
)

const defaultRetentionDays = 30

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	// DLQ is optional. When set, parked rows past the same cutoff go too.
	DLQ dlqRetentionRepo
	// Retention is in days. user_registered payloads carry temporary
	// passwords, so published and parked rows must not pile up.
	Retention int
	Now       func() time.Time
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

type dlqRetentionRepo interface {
	DeleteFailedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

// sweep deletes one table's rows older than cutoff.
type sweep struct {
	field string
	run   func(tx *gorm.DB, cutoff time.Time) (int64, error)
}

type outboxRetentionJob struct {
	logg   *logger.Logger
	db     txRunner
	days   int
	now    func() time.Time
	sweeps []sweep
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	var missing []error
	if params.Logger == nil {
		missing = append(missing, errors.New("logger required"))
	}
	if params.DB == nil {
		missing = append(missing, errors.New("db runner required"))
	}
	if params.Repository == nil {
		missing = append(missing, errors.New("outbox repository required"))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	job := &outboxRetentionJob{
		logg:   params.Logger,
		db:     params.DB,
		days:   params.Retention,
		now:    params.Now,
		sweeps: []sweep{{field: "rows_deleted", run: params.Repository.DeletePublishedBefore}},
	}
	if job.days <= 0 {
		job.days = defaultRetentionDays
	}
	if job.now == nil {
		job.now = time.Now
	}
	if params.DLQ != nil {
		job.sweeps = append(job.sweeps, sweep{field: "dlq_deleted", run: params.DLQ.DeleteFailedBefore})
	}
	return job, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run deletes every table's expired rows in one transaction.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.days)
	fields := map[string]any{"cutoff": cutoff, "retention_days": j.days}
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, s := range j.sweeps {
			n, err := s.run(tx, cutoff)
			if err != nil {
				return fmt.Errorf("%s: %w", s.field, err)
			}
			fields[s.field] = n
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "outbox retention cleanup complete")
	return nil
}
