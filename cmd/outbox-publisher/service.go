package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/angelmondragon/bistro-backend/pkg/kafka"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/metrics"
	"github.com/angelmondragon/bistro-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type broker interface {
	Ping(context.Context) error
	Publish(context.Context, kafka.Message) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            dbClient
	Broker        broker
	Repository    outboxRepository
	Registry      registryResolver
	DLQRepository dlqRepository
	Metrics       *metrics.OutboxMetrics
}

func (p ServiceParams) check() error {
	var errs []error
	need := func(ok bool, what string) {
		if !ok {
			errs = append(errs, fmt.Errorf("%s is required", what))
		}
	}
	need(p.Config != nil, "config")
	need(p.Logger != nil, "logger")
	need(p.DB != nil, "database client")
	need(p.Broker != nil, "kafka client")
	need(p.Repository != nil, "outbox repository")
	need(p.Registry != nil, "event registry")
	need(p.DLQRepository != nil, "dlq repository")
	return errors.Join(errs...)
}

// Service drains outbox_events to Kafka. Each batch runs in one transaction
// holding the fetched rows, so concurrent publishers skip each other's rows.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	repo        outboxRepository
	broker      broker
	registry    registryResolver
	dlq         dlqRepository
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if err := params.check(); err != nil {
		return nil, err
	}
	cfg := params.Config.Outbox
	s := &Service{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		broker:      params.Broker,
		registry:    params.Registry,
		dlq:         params.DLQRepository,
		metrics:     params.Metrics,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
		poll:        defaultPoll,
	}
	if cfg.BatchSize > 0 {
		s.batchSize = cfg.BatchSize
	}
	if cfg.MaxAttempts > 0 {
		s.maxAttempts = cfg.MaxAttempts
	}
	if cfg.PollIntervalMS > 0 {
		s.poll = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}
	return s, nil
}

// Run drains until ctx ends. A full batch loops straight away, an empty one
// waits one poll interval, and a failing one backs off exponentially.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": s.db.Ping, "kafka": s.broker.Ping} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	idle := retry.WithJitter(jitterWindow, retry.NewConstant(s.poll))
	var failing retry.Backoff
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}
		busy, err := s.drain(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			if failing == nil {
				failing = errorBackoff(s.poll)
			}
			wait, _ = failing.Next()
		case busy:
			failing = nil
			continue
		default:
			failing = nil
			wait, _ = idle.Next()
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func errorBackoff(poll time.Duration) retry.Backoff {
	return retry.WithJitter(jitterWindow, retry.WithCappedDuration(maxBackoff, retry.NewExponential(2*poll)))
}

// drain publishes one batch. It reports whether any rows were claimed.
func (s *Service) drain(ctx context.Context) (bool, error) {
	claimed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(events) > 0
		for _, event := range events {
			if err := s.settle(ctx, tx, event, s.attempt(ctx, event)); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

type verdictKind int

const (
	published verdictKind = iota
	retryLater
	parked
)

// verdict is what one publish attempt decided for a row.
type verdict struct {
	kind   verdictKind
	reason enums.OutboxDLQErrorReason
	topic  string
	err    error
}

func (s *Service) attempt(ctx context.Context, event models.OutboxEvent) verdict {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return verdict{kind: parked, reason: enums.OutboxDLQReasonUnknownEvent, err: err}
	}
	topic := resolved.Descriptor.Topic
	err = s.publish(ctx, event, resolved)
	switch {
	case err == nil:
		return verdict{kind: published, topic: topic}
	case registry.IsNonRetryable(err):
		return verdict{kind: parked, reason: enums.OutboxDLQReasonNonRetryable, topic: topic, err: err}
	case event.AttemptCount+1 >= s.maxAttempts:
		return verdict{kind: parked, reason: enums.OutboxDLQReasonMaxAttempts, topic: topic, err: fmt.Errorf("max publish attempts reached: %w", err)}
	default:
		return verdict{kind: retryLater, topic: topic, err: err}
	}
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, v verdict) error {
	eventType := string(event.EventType)
	ctx = s.logg.WithFields(ctx, s.fields(event, v))
	switch v.kind {
	case published:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(eventType)
		s.logg.Info(ctx, "outbox event published")
	case retryLater:
		if err := s.repo.MarkFailedTx(tx, event.ID, v.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
		s.metrics.IncFailed(eventType)
		s.logg.Warn(ctx, "outbox publish failed")
	case parked:
		msg := v.err.Error()
		if err := s.dlq.InsertTx(tx, models.OutboxDLQ{
			EventID:       event.ID,
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			Payload:       event.Payload,
			ErrorReason:   v.reason,
			ErrorMessage:  &msg,
			AttemptCount:  event.AttemptCount,
			FailedAt:      time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("insert dlq %s: %w", event.ID, err)
		}
		if err := s.repo.MarkTerminalTx(tx, event.ID, v.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
		s.metrics.IncDLQ(eventType, string(v.reason))
		s.logg.Warn(ctx, "outbox event will not be retried")
	}
	return nil
}

// publish writes the stored envelope to the event's topic, keyed by
// aggregate id so one reservation's events stay ordered on a partition.
func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	if resolved.Descriptor.Topic == "" {
		return registry.NewNonRetryableError(fmt.Errorf("no topic configured for %s", event.EventType))
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return s.broker.Publish(ctx, kafka.Message{
		Topic: resolved.Descriptor.Topic,
		Key:   event.AggregateID.String(),
		Value: event.Payload,
		Headers: map[string]string{
			kafka.HeaderEventID:       event.ID.String(),
			kafka.HeaderEventType:     string(event.EventType),
			kafka.HeaderAggregateType: string(event.AggregateType),
		},
	})
}

func (s *Service) fields(event models.OutboxEvent, v verdict) map[string]any {
	fields := map[string]any{
		"event_id":       event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if v.topic != "" {
		fields["topic"] = v.topic
	}
	if v.err != nil {
		fields["error"] = v.err.Error()
	}
	if v.kind == retryLater {
		fields["attempt_count"] = event.AttemptCount + 1
	}
	if v.kind == parked {
		fields["error_reason"] = v.reason
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
