package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MaxConns: 10, MinConns: 2, MaxConnLifetime: time.Hour}
}

// Connect opens the pool, pings it and applies the schema.
func Connect(ctx context.Context, dsn string, pc PoolConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL not set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	config.MaxConns = pc.MaxConns
	config.MinConns = pc.MinConns
	config.MaxConnLifetime = pc.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}
	logger.Info("connected to postgres", zap.Int32("max_conns", pc.MaxConns))

	if err := InitSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	logger.Info("schema initialized")

	return pool, nil
}

// InitSchema creates the tables the services need. Every statement is
// idempotent.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var schema = []string{
	// -------------------------------
	// API KEYS
	// -------------------------------
	`
	CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY,
		org_id VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		role VARCHAR(50) NOT NULL DEFAULT 'MEMBER',
		key_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		revoked_at TIMESTAMP NULL
	)
	`,
	`CREATE INDEX IF NOT EXISTS api_keys_org_email_idx ON api_keys (org_id, email)`,

	// -------------------------------
	// RUN QUOTA
	// -------------------------------
	`
	CREATE TABLE IF NOT EXISTS org_run_limits (
		org_id VARCHAR(255) PRIMARY KEY,
		included INTEGER NOT NULL DEFAULT 0,
		bonus INTEGER NOT NULL DEFAULT 0,
		used INTEGER NOT NULL DEFAULT 0,
		unlimited BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)
	`,
	`
	CREATE TABLE IF NOT EXISTS run_usage_events (
		id UUID PRIMARY KEY,
		org_id VARCHAR(255) NOT NULL REFERENCES org_run_limits(org_id),
		email VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)
	`,

	// -------------------------------
	// CALCULATION RUNS
	// -------------------------------
	`
	CREATE TABLE IF NOT EXISTS calculation_runs (
		id UUID PRIMARY KEY,
		org_id VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		building_type VARCHAR(64) NOT NULL,
		subtype VARCHAR(64) NOT NULL,
		decision_status VARCHAR(16) NOT NULL,
		taxonomy_version INTEGER NOT NULL,
		request JSONB NOT NULL,
		totals JSONB NOT NULL,
		result JSONB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)
	`,
	`CREATE INDEX IF NOT EXISTS calculation_runs_org_idx ON calculation_runs (org_id, created_at DESC)`,
}
