package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/blog-rag/pkg/config"
)

// Database はpgxpoolベースのコネクションプールを保持する
type Database struct {
	pool *pgxpool.Pool
}

// New は設定からコネクションプールを作成し、疎通を確認する
func New(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{pool: pool}, nil
}

// Pool はコネクションプールを返す
func (d *Database) Pool() *pgxpool.Pool {
	return d.pool
}

// Close はプールを閉じる
func (d *Database) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}
