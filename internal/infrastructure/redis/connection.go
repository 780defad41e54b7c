// Package redis provides Redis-backed implementations of domain interfaces.
// It also owns client initialization for standalone, cluster, and sentinel deployments.
package redis

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/mfagate/internal/config"
	"github.com/turtacn/mfagate/pkg/logger"
)

// Connection manages Redis client lifecycle and health monitoring.
type Connection struct {
	cfg    config.RedisConfig
	client redis.UniversalClient
	log    logger.Logger
}

// NewConnection creates a Redis client from cfg and verifies connectivity with a ping.
//
// Parameters:
//   - ctx: Context bounding the initial ping
//   - cfg: Redis configuration
//   - log: Logger instance
//
// Returns:
//   - *Connection: Connected manager
//   - error: Connection establishment error if any
func NewConnection(ctx context.Context, cfg config.RedisConfig, log logger.Logger) (*Connection, error) {
	opts, err := universalOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewUniversalClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Error(pingCtx, "Redis ping failed", err, logger.Any("addrs", opts.Addrs))
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info(pingCtx, "Redis connection established successfully",
		logger.Any("addrs", opts.Addrs),
		logger.String("master", opts.MasterName),
		logger.Int("pool_size", cfg.PoolSize),
	)

	return &Connection{cfg: cfg, client: client, log: log}, nil
}

// NewConnectionFromClient wraps an existing client, mostly for tests against miniredis.
func NewConnectionFromClient(client redis.UniversalClient, log logger.Logger) *Connection {
	return &Connection{client: client, log: log}
}

// universalOptions maps configuration onto go-redis options. A master name selects sentinel mode,
// several addresses select cluster mode.
func universalOptions(cfg config.RedisConfig) (*redis.UniversalOptions, error) {
	addrs := cfg.Addrs
	if len(addrs) == 0 {
		addrs = []string{cfg.Address}
	}

	opts := &redis.UniversalOptions{
		Addrs:      addrs,
		MasterName: cfg.SentinelMaster,
		Password:   cfg.Password,
		DB:         cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,

		MaxRetries: cfg.MaxRetries,
	}

	if cfg.TLS.Enabled {
		tlsConfig, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to build TLS config: %w", err)
		}
		opts.TLSConfig = tlsConfig
	}

	return opts, nil
}

// buildTLSConfig constructs TLS configuration for secure connections.
func buildTLSConfig(cfg config.TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.SkipVerify, //nolint:gosec // operator opt-in
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Client returns the Redis client instance.
func (c *Connection) Client() redis.UniversalClient {
	return c.client
}

// Ping checks Redis server connectivity.
func (c *Connection) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.log.Error(ctx, "Redis ping failed", err)
		return err
	}
	return nil
}

// HealthCheck reports connectivity, latency and pool statistics.
func (c *Connection) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	health := make(map[string]interface{})

	start := time.Now()
	err := c.client.Ping(ctx).Err()
	health["connected"] = err == nil
	health["latency_ms"] = time.Since(start).Milliseconds()
	if err != nil {
		health["error"] = err.Error()
		return health, err
	}

	stats := c.client.PoolStats()
	health["total_conns"] = stats.TotalConns
	health["idle_conns"] = stats.IdleConns
	health["pool_timeouts"] = stats.Timeouts

	return health, nil
}

// Close gracefully closes Redis connection and releases resources.
func (c *Connection) Close() error {
	if err := c.client.Close(); err != nil {
		c.log.Error(context.Background(), "Failed to close Redis connection", err)
		return err
	}
	c.log.Info(context.Background(), "Redis connection closed successfully")
	return nil
}

//Personal.AI order the ending
