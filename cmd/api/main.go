package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/notification-orders/internal/config"
	"github.com/kursadbilgin/notification-orders/internal/domain"
	"github.com/kursadbilgin/notification-orders/internal/handler"
	"github.com/kursadbilgin/notification-orders/internal/infra/postgresql"
	"github.com/kursadbilgin/notification-orders/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/notification-orders/internal/infra/redis"
	"github.com/kursadbilgin/notification-orders/internal/observability"
	"github.com/kursadbilgin/notification-orders/internal/queue"
	"github.com/kursadbilgin/notification-orders/internal/repository"
	"github.com/kursadbilgin/notification-orders/internal/service"
	"github.com/kursadbilgin/notification-orders/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		return fmt.Errorf("rate limiter initialization failed: %w", err)
	}
	if cfg.SmsRateLimitPerSec > 0 {
		rateLimiter.SetChannelLimit(domain.ChannelSMS.String(), cfg.SmsRateLimitPerSec)
	}

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer mq.Close()

	publisher := queue.NewRabbitMQPublisher(mq)
	consumer := queue.NewRabbitMQConsumer(mq, cfg.ConsumerPrefetch, logger)

	metrics := observability.NewMetrics()

	orderRepo := repository.NewGormOrderRepo(db)
	dispatchRepo := repository.NewGormDispatchRepo(db)
	shipmentRepo := repository.NewGormShipmentRepo(db)
	feedRepo := repository.NewGormFeedRepo(db)
	deadLetterRepo := repository.NewGormDeadLetterRepo(db)

	registrar, err := service.NewRegistrar(orderRepo, logger)
	if err != nil {
		return fmt.Errorf("registrar initialization failed: %w", err)
	}
	registrar.SetMetrics(metrics)

	manifests, err := service.NewManifestService(shipmentRepo, logger)
	if err != nil {
		return fmt.Errorf("manifest service initialization failed: %w", err)
	}
	manifests.SetMetrics(metrics)

	feed, err := service.NewFeedService(feedRepo, logger)
	if err != nil {
		return fmt.Errorf("feed service initialization failed: %w", err)
	}
	feed.SetMetrics(metrics)

	deadLetters, err := service.NewDeadLetterService(deadLetterRepo, logger)
	if err != nil {
		return fmt.Errorf("dead letter service initialization failed: %w", err)
	}
	deadLetters.SetMetrics(metrics)

	dispatcher, err := service.NewDispatcher(
		dispatchRepo,
		publisher,
		rateLimiter,
		cfg.SweepInterval(),
		cfg.ClaimInterval(),
		cfg.DispatchBatchSize,
		logger,
	)
	if err != nil {
		return fmt.Errorf("dispatcher initialization failed: %w", err)
	}
	dispatcher.SetMetrics(metrics)

	receipts, err := service.NewReceiptService(dispatchRepo, deadLetterRepo, logger)
	if err != nil {
		return fmt.Errorf("receipt service initialization failed: %w", err)
	}
	receipts.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb, mq)
	if err := handler.RegisterOrderRoutes(app, registrar, manifests, feed); err != nil {
		return fmt.Errorf("order routes registration failed: %w", err)
	}
	if err := handler.RegisterDeadLetterRoutes(app, deadLetters); err != nil {
		return fmt.Errorf("dead letter routes registration failed: %w", err)
	}

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux(metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Start(groupCtx)
	})

	g.Go(func() error {
		return consumer.Consume(groupCtx, queue.ReceiptQueueName, receipts.HandleReceipt)
	})

	g.Go(func() error {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		shutdownErr := app.ShutdownWithContext(shutdownCtx)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
		return shutdownErr
	})

	logger.Info("notification orders service started",
		zap.Int("apiPort", cfg.APIPort),
		zap.Int("metricsPort", cfg.MetricsPort),
		zap.Int("batchSize", cfg.DispatchBatchSize),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("notification orders service stopped")
	return nil
}

func metricsMux(metrics *observability.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
