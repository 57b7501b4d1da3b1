package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/FranksOps/serpent/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS serp_pages (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	url TEXT NOT NULL,
	start INTEGER NOT NULL,
	num INTEGER NOT NULL,
	status_code INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL,
	candidates INTEGER NOT NULL,
	accepted INTEGER NOT NULL,
	detected_bot BOOLEAN NOT NULL,
	detection_src TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	error TEXT
);
CREATE INDEX IF NOT EXISTS serp_pages_query_idx ON serp_pages (query);
`

// New connects to Postgres at dsn and ensures the audit table exists.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, rec *storage.PageRecord) error {
	query := `
	INSERT INTO serp_pages (
		id, query, url, start, num, status_code, duration_ms, candidates, accepted, detected_bot, detection_src, created_at, error
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := b.pool.Exec(ctx, query,
		rec.ID,
		rec.Query,
		rec.URL,
		rec.Start,
		rec.Num,
		rec.StatusCode,
		rec.Duration.Milliseconds(),
		rec.Candidates,
		rec.Accepted,
		rec.DetectedBot,
		rec.DetectionSrc,
		rec.CreatedAt,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.PageRecord, error) {
	query := `SELECT id, query, url, start, num, status_code, duration_ms, candidates, accepted, detected_bot, COALESCE(detection_src, ''), created_at, COALESCE(error, '') FROM serp_pages WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Query != "" {
		query += fmt.Sprintf(` AND query = $%d`, paramCount)
		args = append(args, filter.Query)
		paramCount++
	}
	if filter.DetectedBot != nil {
		query += fmt.Sprintf(` AND detected_bot = $%d`, paramCount)
		args = append(args, *filter.DetectedBot)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	defer rows.Close()

	var results []*storage.PageRecord
	for rows.Next() {
		var r storage.PageRecord
		var durationMs int64

		err := rows.Scan(
			&r.ID, &r.Query, &r.URL, &r.Start, &r.Num, &r.StatusCode, &durationMs,
			&r.Candidates, &r.Accepted, &r.DetectedBot, &r.DetectionSrc, &r.CreatedAt, &r.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
