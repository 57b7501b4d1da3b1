package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/serpent/internal/storage"
)

func TestSQLiteBackend(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	rec := &storage.PageRecord{
		ID:           "page-1",
		Query:        "site:example.gov report",
		URL:          "https://www.google.com/search?q=site%3Aexample.gov+report&num=12&hl=en&start=0",
		Start:        0,
		Num:          10,
		StatusCode:   429,
		Duration:     150 * time.Millisecond,
		Candidates:   0,
		Accepted:     0,
		DetectedBot:  true,
		DetectionSrc: "GoogleSorry",
		CreatedAt:    now,
		Error:        "httpclient: HTTP 429",
	}
	if err := b.Save(ctx, rec); err != nil {
		t.Fatalf("Failed to save record: %v", err)
	}

	second := &storage.PageRecord{
		ID:         "page-2",
		Query:      "golang",
		URL:        "https://www.google.com/search?q=golang",
		Num:        10,
		StatusCode: 200,
		Candidates: 9,
		Accepted:   9,
		CreatedAt:  now.Add(time.Second),
	}
	if err := b.Save(ctx, second); err != nil {
		t.Fatalf("Failed to save record: %v", err)
	}

	results, err := b.Query(ctx, storage.Filter{Query: rec.Query})
	if err != nil {
		t.Fatalf("Failed to query records: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(results))
	}

	got := results[0]
	if got.ID != rec.ID || got.URL != rec.URL || got.Num != rec.Num {
		t.Errorf("Expected %+v, got %+v", rec, got)
	}
	if got.StatusCode != rec.StatusCode {
		t.Errorf("Expected StatusCode %d, got %d", rec.StatusCode, got.StatusCode)
	}
	if got.Duration.Milliseconds() != rec.Duration.Milliseconds() {
		t.Errorf("Expected Duration %v, got %v", rec.Duration, got.Duration)
	}
	if !got.DetectedBot || got.DetectionSrc != "GoogleSorry" {
		t.Errorf("Expected GoogleSorry detection, got %v/%s", got.DetectedBot, got.DetectionSrc)
	}
	if got.CreatedAt.Unix() != rec.CreatedAt.Unix() {
		t.Errorf("Expected CreatedAt %v, got %v", rec.CreatedAt, got.CreatedAt)
	}
	if got.Error != rec.Error {
		t.Errorf("Expected Error %s, got %s", rec.Error, got.Error)
	}

	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query all: %v", err)
	}
	if len(all) != 2 || all[0].ID != "page-2" {
		t.Fatalf("Expected newest-first ordering of 2 records, got %d", len(all))
	}

	detected := true
	onlyDetected, err := b.Query(ctx, storage.Filter{DetectedBot: &detected})
	if err != nil {
		t.Fatalf("Failed to query with DetectedBot: %v", err)
	}
	if len(onlyDetected) != 1 || onlyDetected[0].ID != "page-1" {
		t.Fatalf("Expected only page-1, got %d records", len(onlyDetected))
	}

	paged, err := b.Query(ctx, storage.Filter{Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query with Offset: %v", err)
	}
	if len(paged) != 1 || paged[0].ID != "page-1" {
		t.Fatalf("Expected offset to skip the newest record, got %d records", len(paged))
	}
}
