package main

import (
	"catalog/infra/postgres"
	"catalog/infra/rabbitmq"
	"catalog/internal/bootstrap"
	"catalog/internal/consumers"
	"catalog/pkg/config"
	"catalog/pkg/events"
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	reviewQueue      = "catalog.review.created.v1"
	reviewRoutingKey = "review.created.v1"
)

func main() {
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, _ := zapConfig.Build()
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	zap.L().Info("Catalog Worker Service starting...")

	appConfig := config.Read()
	zap.L().Info("Worker config loaded",
		zap.String("serviceName", appConfig.ServiceName),
		zap.String("databaseDriver", appConfig.DatabaseDriver),
		zap.Bool("redis", appConfig.RedisURL != ""),
	)

	if appConfig.RabbitMQURL == "" {
		zap.L().Fatal("RABBITMQ_URL is required for worker service")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repository, err := bootstrap.NewRepository(ctx, appConfig)
	if err != nil {
		zap.L().Fatal("Failed to open catalog repository", zap.Error(err))
	}
	defer repository.Close()

	cache, cacheCloser, err := bootstrap.NewQueryCache(ctx, appConfig)
	if err != nil {
		zap.L().Fatal("Failed to set up query cache", zap.Error(err))
	}
	defer cacheCloser.Close()

	reviewHandler := consumers.NewReviewEventHandler(repository, cache, zap.L())

	// Reviews are published by the storefront; each one moves a product's
	// rating and review count.
	reviewConsumer, err := rabbitmq.NewConsumer(appConfig.RabbitMQURL, rabbitmq.ConsumerConfig{
		Exchange:       events.ReviewExchange,
		QueueName:      reviewQueue,
		RoutingKeys:    []string{reviewRoutingKey},
		ServiceName:    appConfig.ServiceName,
		PrefetchCount:  10,
		WorkerPoolSize: 8,
		HandlerTimeout: 15 * time.Second,
	})
	if err != nil {
		zap.L().Fatal("Failed to create review consumer", zap.Error(err))
	}
	defer reviewConsumer.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		zap.L().Info("Starting review event consumer...")
		if err := reviewConsumer.Consume(ctx, reviewHandler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			zap.L().Error("Review consumer error", zap.Error(err))
		}
	}()

	if pg, ok := repository.(*postgres.PgRepository); ok {
		go monitorPool(ctx, pg)
	}

	zap.L().Info("Worker service started successfully. Waiting for events...")
	zap.L().Info("Consuming from exchanges", zap.String("reviewExchange", events.ReviewExchange))

	<-sigChan
	zap.L().Info("Shutdown signal received, stopping worker service...")
	cancel()
	cache.Wait()

	zap.L().Info("Worker service stopped gracefully")
}

func monitorPool(ctx context.Context, pg *postgres.PgRepository) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := pg.GetPoolStats()
			zap.L().Info("Connection pool stats",
				zap.Int("max_open", stats["max_open_connections"].(int)),
				zap.Int("open", stats["open_connections"].(int)),
				zap.Int("in_use", stats["in_use"].(int)),
				zap.Int("idle", stats["idle"].(int)),
				zap.Int64("wait_count", stats["wait_count"].(int64)),
				zap.Int64("wait_duration_ms", stats["wait_duration_ms"].(int64)),
			)
		}
	}
}
