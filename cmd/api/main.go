package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/bistro-backend/api/routes"
	"github.com/angelmondragon/bistro-backend/internal/auth"
	"github.com/angelmondragon/bistro-backend/internal/export"
	"github.com/angelmondragon/bistro-backend/internal/inventory"
	"github.com/angelmondragon/bistro-backend/internal/purchaseorders"
	"github.com/angelmondragon/bistro-backend/internal/reports"
	"github.com/angelmondragon/bistro-backend/internal/reservations"
	"github.com/angelmondragon/bistro-backend/internal/suppliers"
	"github.com/angelmondragon/bistro-backend/internal/users"
	"github.com/angelmondragon/bistro-backend/pkg/auth/session"
	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/db"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/migrate"
	"github.com/angelmondragon/bistro-backend/pkg/outbox"
	"github.com/angelmondragon/bistro-backend/pkg/rbac"
	"github.com/angelmondragon/bistro-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	registry := rbac.MustDefault()
	reader := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(reader), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(reader),
		SessionManager: sessionManager,
		Registry:       registry,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return err
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		Outbox:         emitter,
		PasswordConfig: cfg.Password,
		Restaurant:     cfg.Restaurant,
	})
	if err != nil {
		return err
	}
	reservationService, err := reservations.NewService(reservations.ServiceParams{
		DB:         dbClient,
		Reader:     reader,
		Outbox:     emitter,
		Registry:   registry,
		Restaurant: cfg.Restaurant,
	})
	if err != nil {
		return err
	}
	inventoryService, err := inventory.NewService(inventory.ServiceParams{
		DB:         dbClient,
		Reader:     reader,
		Outbox:     emitter,
		Restaurant: cfg.Restaurant,
	})
	if err != nil {
		return err
	}
	supplierService, err := suppliers.NewService(reader)
	if err != nil {
		return err
	}
	poService, err := purchaseorders.NewService(purchaseorders.ServiceParams{
		DB:         dbClient,
		Reader:     reader,
		Outbox:     emitter,
		Restaurant: cfg.Restaurant,
	})
	if err != nil {
		return err
	}
	reportService, err := reports.NewService(reader)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler := routes.NewRouter(routes.Deps{
		Config:         cfg,
		Logger:         logg,
		Registry:       registry,
		DB:             dbClient,
		Redis:          redisClient,
		Sessions:       sessionManager,
		Metrics:        promRegistry,
		Auth:           authService,
		Register:       registerService,
		Reservations:   reservationService,
		Inventory:      inventoryService,
		Suppliers:      supplierService,
		PurchaseOrders: poService,
		Reports:        reportService,
		Exporter:       export.NewExporter(reader),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": addr})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
