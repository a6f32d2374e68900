package postgres

import (
	"catalog/pkg/config"
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

type PgRepository struct {
	db *sqlx.DB
}

func NewPgRepository(cfg *config.AppConfig) (*PgRepository, error) {
	db, err := sqlx.Connect("postgres", cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	// Connection pool configuration
	db.SetMaxOpenConns(15)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	return FromDB(db), nil
}

func FromDB(db *sqlx.DB) *PgRepository {
	return &PgRepository{db: db}
}

// Migrate creates the catalog tables when they do not exist yet.
func (r *PgRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	zap.L().Info("Catalog schema is up to date")
	return nil
}

func (r *PgRepository) Close() error {
	return r.db.Close()
}

// GetPoolStats returns current connection pool statistics
func (r *PgRepository) GetPoolStats() map[string]interface{} {
	stats := r.db.Stats()
	return map[string]interface{}{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

func (r *PgRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PgRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			zap.L().Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	return tx.Commit()
}
