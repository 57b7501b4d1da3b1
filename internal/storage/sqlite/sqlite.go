package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/FranksOps/serpent/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS serp_pages (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	url TEXT NOT NULL,
	start INTEGER NOT NULL,
	num INTEGER NOT NULL,
	status_code INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	candidates INTEGER NOT NULL,
	accepted INTEGER NOT NULL,
	detected_bot BOOLEAN NOT NULL,
	detection_src TEXT,
	created_at DATETIME NOT NULL,
	error TEXT
);
CREATE INDEX IF NOT EXISTS serp_pages_query_idx ON serp_pages (query);
`

// New opens (or creates) a SQLite audit log at dsn.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, rec *storage.PageRecord) error {
	query := `
	INSERT INTO serp_pages (
		id, query, url, start, num, status_code, duration_ms, candidates, accepted, detected_bot, detection_src, created_at, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := b.db.ExecContext(ctx, query,
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
		return fmt.Errorf("sqlite: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.PageRecord, error) {
	query := `SELECT id, query, url, start, num, status_code, duration_ms, candidates, accepted, detected_bot, detection_src, created_at, error FROM serp_pages WHERE 1=1`
	args := []any{}

	if filter.Query != "" {
		query += ` AND query = ?`
		args = append(args, filter.Query)
	}
	if filter.DetectedBot != nil {
		query += ` AND detected_bot = ?`
		args = append(args, *filter.DetectedBot)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	// SQLite needs a LIMIT before OFFSET; -1 means unbounded.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	defer rows.Close()

	var results []*storage.PageRecord
	for rows.Next() {
		var r storage.PageRecord
		var durationMs int64
		var detectionSrc, errText sql.NullString

		err := rows.Scan(
			&r.ID, &r.Query, &r.URL, &r.Start, &r.Num, &r.StatusCode, &durationMs,
			&r.Candidates, &r.Accepted, &r.DetectedBot, &detectionSrc, &r.CreatedAt, &errText,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.DetectionSrc = detectionSrc.String
		r.Error = errText.String

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
