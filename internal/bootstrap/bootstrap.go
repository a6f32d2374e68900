package bootstrap

import (
	"catalog/app"
	"catalog/infra/memory"
	"catalog/infra/postgres"
	"catalog/infra/rabbitmq"
	"catalog/infra/redis"
	"catalog/internal/metrics"
	"catalog/internal/querycache"
	"catalog/pkg/config"
	"catalog/pkg/events"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
)

const DriverMemory = "memory"

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

// NewRepository opens the catalog store named by DATABASE_DRIVER.
func NewRepository(ctx context.Context, cfg *config.AppConfig) (app.Repository, error) {
	if cfg.DatabaseDriver == DriverMemory {
		zap.L().Warn("Using the in-memory catalog, data is lost on restart")
		return memory.NewRepository(), nil
	}

	pgRepository, err := postgres.NewPgRepository(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := pgRepository.Migrate(ctx); err != nil {
			pgRepository.Close()
			return nil, err
		}
	}
	return pgRepository, nil
}

// NewQueryCache shares query results through Redis when REDIS_URL is set and
// keeps them in process otherwise.
func NewQueryCache(ctx context.Context, cfg *config.AppConfig) (*querycache.Cache, io.Closer, error) {
	opts := []querycache.Option{querycache.WithLookupObserver(metrics.ObserveCacheLookup)}

	if cfg.RedisURL == "" {
		return querycache.New(querycache.NewMemoryStore(), cfg.CacheTTL, opts...), noopCloser{}, nil
	}

	client, err := redis.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("query cache: %w", err)
	}

	zap.L().Info("Query cache backed by Redis")
	return querycache.New(redis.NewStore(client), cfg.CacheTTL, opts...), client, nil
}

// NewPublisher connects the catalog event publisher. Without RABBITMQ_URL
// events are not published and the returned publisher is nil.
func NewPublisher(cfg *config.AppConfig) (events.Publisher, error) {
	if cfg.RabbitMQURL == "" {
		zap.L().Info("RABBITMQ_URL not set, catalog events are disabled")
		return nil, nil
	}

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.ServiceName)
	if err != nil {
		return nil, err
	}
	return publisher, nil
}
