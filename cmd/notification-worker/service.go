package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/bistro-backend/pkg/logger"
)

const heartbeatInterval = 30 * time.Second

type pinger interface {
	Ping(context.Context) error
}

type consumer interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger       *logger.Logger
	DB           pinger
	Redis        pinger
	Kafka        pinger
	Notification consumer
}

// Service runs the notification consumer once its dependencies answer.
type Service struct {
	logg         *logger.Logger
	deps         []namedPinger
	notification consumer
	heartbeat    time.Duration
}

type namedPinger struct {
	name string
	ping func(context.Context) error
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.Kafka == nil {
		return nil, errors.New("kafka client is required")
	}
	if params.Notification == nil {
		return nil, errors.New("notification consumer is required")
	}

	return &Service{
		logg: params.Logger,
		deps: []namedPinger{
			{name: "database", ping: params.DB.Ping},
			{name: "redis", ping: params.Redis.Ping},
			{name: "kafka", ping: params.Kafka.Ping},
		},
		notification: params.Notification,
		heartbeat:    heartbeatInterval,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := pingDependency(ctx, s.logg, dep.name, dep.ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.notification.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "notification consumer stopped unexpectedly", err)
				return err
			}
			return err
		case <-ticker.C:
			s.logg.Debug(ctx, "worker.heartbeat")
		}
	}
}
