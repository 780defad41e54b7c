// Package store opens the configured attribute backend together with its code usage tracker.
package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/turtacn/mfagate/internal/config"
	"github.com/turtacn/mfagate/internal/domain/repository"
	"github.com/turtacn/mfagate/internal/domain/service"
	"github.com/turtacn/mfagate/internal/infrastructure/memory"
	"github.com/turtacn/mfagate/internal/infrastructure/persistence/postgres"
	"github.com/turtacn/mfagate/internal/infrastructure/ratelimit"
	"github.com/turtacn/mfagate/internal/infrastructure/redis"
	"github.com/turtacn/mfagate/pkg/logger"
)

// Backend bundles one opened store.
type Backend struct {
	Name  string
	Store repository.SecretStore
	// Usage records accepted local codes. SQL backends share no replay state across instances.
	Usage service.CodeUsageTracker
	// Limiter bounds submitted codes per user; nil when limiting is disabled.
	Limiter service.CodeAttemptLimiter
	// DB is set for the SQL backends only.
	DB *gorm.DB
	// Ping checks the backend; nil for memory.
	Ping func(ctx context.Context) error

	closers []func() error
}

// Close releases every connection held by the backend.
func (b *Backend) Close() error {
	var first error
	for _, c := range b.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open connects to the backend named by cfg.Store.Backend. SQL schemas are migrated on open.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger, metrics service.Metrics) (*Backend, error) {
	switch cfg.Store.Backend {
	case "", "memory":
		log.Warn(ctx, "Using in-memory attribute store, state is lost on restart")
		return &Backend{
			Name:    "memory",
			Store:   memory.NewSecretStore(),
			Usage:   memory.NewCodeUsageTracker(time.Minute),
			Limiter: ratelimit.NewAttemptLimiter(nil, cfg.RateLimit, log),
		}, nil

	case "redis":
		conn, err := redis.NewConnection(ctx, cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Name:    "redis",
			Store:   redis.NewSecretStore(conn.Client(), metrics),
			Usage:   redis.NewCodeUsageTracker(conn.Client()),
			Limiter: ratelimit.NewAttemptLimiter(conn.Client(), cfg.RateLimit, log),
			Ping:    conn.Ping,
			closers: []func() error{conn.Close},
		}, nil

	case "postgres", "sqlite":
		conn, err := postgres.NewDBConnection(ctx, cfg.Store.Backend, &cfg.Database, log)
		if err != nil {
			return nil, err
		}
		attrs := postgres.NewAttributeStore(conn.DB(), log, metrics)
		if err := attrs.AutoMigrate(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrate attribute store: %w", err)
		}
		return &Backend{
			Name:    cfg.Store.Backend,
			Store:   attrs,
			Usage:   memory.NewCodeUsageTracker(time.Minute),
			Limiter: ratelimit.NewAttemptLimiter(nil, cfg.RateLimit, log),
			DB:      conn.DB(),
			Ping:    conn.Ping,
			closers: []func() error{conn.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

//Personal.AI order the ending
