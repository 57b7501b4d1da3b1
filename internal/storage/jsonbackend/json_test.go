package jsonbackend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/serpent/internal/storage"
)

func TestJSONBackend(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "audit.jsonl")

	b, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to create JSON backend: %v", err)
	}

	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond).UTC()

	first := &storage.PageRecord{
		ID:         "json1",
		Query:      "golang",
		URL:        "https://www.google.com/search?q=golang&num=12&hl=en&start=0",
		Num:        10,
		StatusCode: 200,
		Duration:   10 * time.Millisecond,
		Candidates: 10,
		Accepted:   10,
		CreatedAt:  now.Add(-2 * time.Hour),
	}
	second := &storage.PageRecord{
		ID:           "json2",
		Query:        "golang",
		URL:          "https://www.google.com/search?q=golang&num=2&hl=en&start=10",
		Start:        10,
		Num:          0,
		StatusCode:   429,
		Duration:     20 * time.Millisecond,
		DetectedBot:  true,
		DetectionSrc: "GoogleSorry",
		CreatedAt:    now.Add(-time.Hour),
		Error:        "httpclient: HTTP 429",
	}

	if err := b.Save(ctx, first); err != nil {
		t.Fatalf("Failed to save record 1: %v", err)
	}
	if err := b.Save(ctx, second); err != nil {
		t.Fatalf("Failed to save record 2: %v", err)
	}

	all, err := b.Query(ctx, storage.Filter{Query: "golang"})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(all) != 2 || all[0].ID != "json2" {
		t.Fatalf("Expected newest-first [json2 json1], got %d records", len(all))
	}
	if all[0].Duration != second.Duration || all[0].DetectionSrc != "GoogleSorry" {
		t.Errorf("Expected round-tripped fields, got %+v", all[0])
	}
	if !all[1].CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("Expected CreatedAt %v, got %v", first.CreatedAt, all[1].CreatedAt)
	}

	// Saving after a query must still append at the end.
	third := &storage.PageRecord{ID: "json3", Query: "other", CreatedAt: now}
	if err := b.Save(ctx, third); err != nil {
		t.Fatalf("Failed to save record 3: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	reopened, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	defer reopened.Close()

	latest, err := reopened.Query(ctx, storage.Filter{Limit: 1})
	if err != nil {
		t.Fatalf("Failed to query reopened log: %v", err)
	}
	if len(latest) != 1 || latest[0].ID != "json3" {
		t.Fatalf("Expected json3 as newest record, got %v", latest)
	}
}
