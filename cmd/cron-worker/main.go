// Command cron-worker runs the retention jobs: terminal orders, published
// outbox rows, and abandoned session carts. A Redis lock keeps one replica
// active at a time.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/cron"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	serviceName = "cron-worker"
	lockName    = "retention"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	bootCtx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(bootCtx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(bootCtx, "failed to load config", err)
		return err
	}
	cfg.Service.Kind = serviceName
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to bootstrap database", err)
		return err
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		logg.Error(bootCtx, "failed to run dev migrations", err)
		return err
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to bootstrap redis", err)
		return err
	}
	defer redisClient.Close()

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName), cfg.Retention.LockTTL)
	if err != nil {
		logg.Error(bootCtx, "failed to create cron lock", err)
		return err
	}

	jobs, err := retentionJobs(cfg.Retention, logg, dbClient)
	if err != nil {
		logg.Error(bootCtx, "failed to register retention jobs", err)
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Retention.Interval,
	})
	if err != nil {
		logg.Error(bootCtx, "failed to create cron service", err)
		return err
	}

	ctx, stop := signal.NotifyContext(bootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":                  cfg.App.Env,
		"interval":             cfg.Retention.Interval.String(),
		"terminal_order_age":   cfg.Retention.TerminalOrderAge.String(),
		"abandoned_cart_age":   cfg.Retention.AbandonedCartAge.String(),
		"published_outbox_age": cfg.Retention.PublishedOutboxAge.String(),
	})
	logg.Info(ctx, "retention worker started")

	err = service.Run(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		logg.Info(ctx, "retention worker stopped")
		return nil
	}
	logg.Error(ctx, "retention worker stopped unexpectedly", err)
	return err
}

// retentionJobs registers one job per table that accumulates rows:
// orders, carts and outbox_events.
func retentionJobs(cfg config.RetentionConfig, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	conn := dbClient.DB()

	orderJob, err := cron.NewOrderRetentionJob(logg, dbClient, orders.NewRepository(conn), cfg.TerminalOrderAge)
	if err != nil {
		return nil, err
	}
	cartJob, err := cron.NewCartRetentionJob(logg, dbClient, cart.NewRepository(conn), cfg.AbandonedCartAge)
	if err != nil {
		return nil, err
	}
	outboxJob, err := cron.NewOutboxRetentionJob(logg, dbClient, outbox.NewRepository(conn), cfg.PublishedOutboxAge)
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	for _, job := range []cron.Job{orderJob, cartJob, outboxJob} {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
