package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bistro-backend/internal/cron"
	"github.com/angelmondragon/bistro-backend/internal/inventory"
	"github.com/angelmondragon/bistro-backend/internal/users"
	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/db"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/angelmondragon/bistro-backend/pkg/instance"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/mail"
	"github.com/angelmondragon/bistro-backend/pkg/metrics"
	"github.com/angelmondragon/bistro-backend/pkg/migrate"
	"github.com/angelmondragon/bistro-backend/pkg/outbox"
	"github.com/angelmondragon/bistro-backend/pkg/redis"
)

const lockTTL = 30 * time.Minute

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	jobs, err := buildJobs(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:  logg,
		Jobs:    jobs,
		Locks:   cron.RedisLocks(redisClient, lockTTL),
		Metrics: metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        len(jobs),
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) ([]cron.Job, error) {
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		DLQ:        outbox.NewDLQRepository(dbClient.DB()),
		Retention:  cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return nil, err
	}
	jobs := []cron.Job{retention}

	if !cfg.Restaurant.LowStockDigestOn {
		return jobs, nil
	}
	roles, err := alertRoles(cfg.Restaurant.LowStockRoles)
	if err != nil {
		return nil, err
	}
	digest, err := cron.NewLowStockDigestJob(cron.LowStockDigestJobParams{
		Logger:     logg,
		Items:      inventory.NewRepository(dbClient.DB()),
		Recipients: users.NewRepository(dbClient.DB()),
		Sender:     mail.NewSender(cfg.Sendgrid, logg),
		Roles:      roles,
		Restaurant: cfg.Restaurant.Name,
	})
	if err != nil {
		return nil, err
	}
	return append(jobs, digest), nil
}

func alertRoles(raw []string) ([]enums.Role, error) {
	roles := make([]enums.Role, 0, len(raw))
	for _, value := range raw {
		role, err := enums.ParseRole(value)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}
