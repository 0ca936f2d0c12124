package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/bistro-backend/internal/notifications"
	"github.com/angelmondragon/bistro-backend/internal/users"
	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/db"
	"github.com/angelmondragon/bistro-backend/pkg/instance"
	"github.com/angelmondragon/bistro-backend/pkg/kafka"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/mail"
	"github.com/angelmondragon/bistro-backend/pkg/migrate"
	"github.com/angelmondragon/bistro-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/bistro-backend/pkg/outbox/registry"
	"github.com/angelmondragon/bistro-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "notification-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "notification-worker"

	logg = logger.New(logger.Options{
		ServiceName: "notification-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	kafkaClient, err := kafka.NewClient(ctx, cfg.Kafka, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := kafkaClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing kafka client", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(cfg.Kafka)
	if err != nil {
		return err
	}
	claims, err := idempotency.NewManager(redisClient, cfg.Eventing.ConsumerIdempotencyTTL)
	if err != nil {
		return err
	}

	reader := kafkaClient.Reader(cfg.Kafka.NotificationGroup, cfg.Kafka.Topics())

	consumer, err := notifications.NewConsumer(notifications.ConsumerParams{
		Reader:      reader,
		Registry:    eventRegistry,
		Idempotency: claims,
		Sender:      mail.NewSender(cfg.Sendgrid, logg),
		Recipients:  users.NewRepository(dbClient.DB()),
		Restaurant:  cfg.Restaurant,
		Logger:      logg,
	})
	if err != nil {
		return err
	}

	service, err := NewService(ServiceParams{
		Logger:       logg,
		DB:           dbClient,
		Redis:        redisClient,
		Kafka:        kafkaClient,
		Notification: consumer,
	})
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting worker")
	return service.Run(ctx)
}
