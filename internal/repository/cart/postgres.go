package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Get(ctx context.Context, key string) (string, bool, error) {
	const q = `
SELECT value
FROM cart_storage
WHERE key = $1
`
	var value string
	if err := r.pool.QueryRow(ctx, q, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (r *postgresRepo) Set(ctx context.Context, key, value string) error {
	const q = `
INSERT INTO cart_storage (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value,
    updated_at = EXCLUDED.updated_at
`
	_, err := r.pool.Exec(ctx, q, key, value)
	return err
}

// Keys lists stored cart keys, used by the importer for reporting.
func Keys(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	rows, err := pool.Query(ctx, `SELECT key FROM cart_storage WHERE key LIKE $1 ORDER BY key`, KeyPrefix+"%")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
