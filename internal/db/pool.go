package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Pool is an alias for pgxpool.Pool
type Pool = pgxpool.Pool

// PoolConfig holds connection pool settings
type PoolConfig struct {
	URL             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// NewPool creates a new PostgreSQL connection pool tied to the fx lifecycle
func NewPool(lc fx.Lifecycle, logger *zap.Logger, cfg PoolConfig) (*pgxpool.Pool, error) {
	pool, err := Open(context.Background(), logger, cfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return Ping(ctx, logger, pool)
		},
		OnStop: func(ctx context.Context) error {
			pool.Close()
			logger.Info("database connection closed")
			return nil
		},
	})

	return pool, nil
}

// Open creates a pool without lifecycle hooks; the caller closes it
func Open(ctx context.Context, logger *zap.Logger, cfg PoolConfig) (*pgxpool.Pool, error) {
	logger.Info("initializing database connection pool")

	config, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("[DATABASE] failed to parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		config.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		config.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("[DATABASE] failed to create connection pool: %w", err)
	}

	logger.Info("database pool configured",
		zap.String("host", config.ConnConfig.Host),
		zap.String("database", config.ConnConfig.Database),
		zap.Int32("max_conns", config.MaxConns),
	)

	return pool, nil
}

// Ping verifies the database is reachable
func Ping(ctx context.Context, logger *zap.Logger, pool *pgxpool.Pool) error {
	logger.Info("attempting to connect to database...")
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", zap.Error(err))
		return fmt.Errorf("[DATABASE CONNECTION FAILED] cannot reach database. Please check: 1) Database is running, 2) DATABASE_URL is correct, 3) Network/firewall allows connection. Error: %w", err)
	}
	logger.Info("database connection established successfully")
	return nil
}
