// Package audit persists one record per SERP page request so blocked or
// unproductive queries can be reviewed later.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FranksOps/serpent/internal/storage"
	"github.com/FranksOps/serpent/internal/storage/csvbackend"
	"github.com/FranksOps/serpent/internal/storage/jsonbackend"
	"github.com/FranksOps/serpent/internal/storage/postgres"
	"github.com/FranksOps/serpent/internal/storage/sqlite"
)

// Supported drivers.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverJSON     = "json"
	DriverCSV      = "csv"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("audit: unknown driver")

// Open returns the backend for driver. It returns (nil, nil) when auditing
// is disabled.
func Open(ctx context.Context, driver, dsn string) (storage.Backend, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" || driver == DriverNone {
		return nil, nil
	}
	if dsn == "" {
		return nil, fmt.Errorf("audit: driver %q needs a dsn", driver)
	}

	switch driver {
	case DriverSQLite:
		return sqlite.New(dsn)
	case DriverPostgres:
		return postgres.New(ctx, dsn)
	case DriverJSON:
		return jsonbackend.New(dsn)
	case DriverCSV:
		return csvbackend.New(dsn)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
}

// Recorder saves observed pages to a Backend. Save failures are logged and
// never interrupt a search.
type Recorder struct {
	backend storage.Backend
	logger  *slog.Logger
}

// NewRecorder returns a Recorder writing to backend.
func NewRecorder(backend storage.Backend, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{backend: backend, logger: logger}
}

// ObservePage saves rec.
func (r *Recorder) ObservePage(ctx context.Context, rec *storage.PageRecord) {
	if r == nil || r.backend == nil || rec == nil {
		return
	}
	if err := r.backend.Save(ctx, rec); err != nil {
		r.logger.Error("failed to save audit record", "id", rec.ID, "query", rec.Query, "err", err)
	}
}
