package csvbackend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/serpent/internal/storage"
)

var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// header is the column order of the audit file.
var header = []string{
	"id",
	"query",
	"url",
	"start",
	"num",
	"status_code",
	"duration_ms",
	"candidates",
	"accepted",
	"detected_bot",
	"detection_src",
	"created_at",
	"error",
}

// New opens (or creates) a CSV audit file. The header row is written once.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csv: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, rec *storage.PageRecord) error {
	row := []string{
		rec.ID,
		rec.Query,
		rec.URL,
		strconv.Itoa(rec.Start),
		strconv.Itoa(rec.Num),
		strconv.Itoa(rec.StatusCode),
		strconv.FormatInt(rec.Duration.Milliseconds(), 10),
		strconv.Itoa(rec.Candidates),
		strconv.Itoa(rec.Accepted),
		strconv.FormatBool(rec.DetectedBot),
		rec.DetectionSrc,
		rec.CreatedAt.Format(time.RFC3339Nano),
		rec.Error,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("csv: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.PageRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.PageRecord{}, nil
		}
		return nil, fmt.Errorf("csv: %w", err)
	}

	var records []*storage.PageRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		if len(row) != len(header) {
			continue // malformed
		}
		records = append(records, parseRow(row))
	}

	return storage.ApplyFilter(records, filter), nil
}

func parseRow(row []string) *storage.PageRecord {
	start, _ := strconv.Atoi(row[3])
	num, _ := strconv.Atoi(row[4])
	status, _ := strconv.Atoi(row[5])
	ms, _ := strconv.ParseInt(row[6], 10, 64)
	candidates, _ := strconv.Atoi(row[7])
	accepted, _ := strconv.Atoi(row[8])
	detected, _ := strconv.ParseBool(row[9])
	created, _ := time.Parse(time.RFC3339Nano, row[11])

	return &storage.PageRecord{
		ID:           row[0],
		Query:        row[1],
		URL:          row[2],
		Start:        start,
		Num:          num,
		StatusCode:   status,
		Duration:     time.Duration(ms) * time.Millisecond,
		Candidates:   candidates,
		Accepted:     accepted,
		DetectedBot:  detected,
		DetectionSrc: row[10],
		CreatedAt:    created,
		Error:        row[12],
	}
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
