package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type options struct {
	maxConns int32
	log      *zap.Logger
}

type Option func(*options)

// WithMaxConns caps the pool size. Non-positive values keep the pgx default.
func WithMaxConns(n int32) Option {
	return func(o *options) { o.maxConns = n }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// Connect opens a pgx connection pool and verifies connectivity with a ping.
func Connect(ctx context.Context, dsn string, opts ...Option) (*pgxpool.Pool, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute
	if o.maxConns > 0 {
		cfg.MaxConns = o.maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	o.log.Info("connected to postgres",
		zap.String("host", cfg.ConnConfig.Host),
		zap.String("database", cfg.ConnConfig.Database),
		zap.Int32("max_conns", cfg.MaxConns),
	)
	return pool, nil
}
