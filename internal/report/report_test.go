package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/serpent/internal/storage"
)

func TestGenerateSummary(t *testing.T) {
	now := time.Now()

	records := []*storage.PageRecord{
		{
			Query:      "annual+report",
			StatusCode: 200,
			Duration:   100 * time.Millisecond,
			Candidates: 10,
			Accepted:   3,
			CreatedAt:  now,
		},
		{
			Query:        "annual+report",
			StatusCode:   429,
			Duration:     200 * time.Millisecond,
			CreatedAt:    now.Add(1 * time.Second),
			DetectedBot:  true,
			DetectionSrc: "GoogleSorry",
			Error:        "httpclient: HTTP 429",
		},
		{
			Query:      "budget",
			Duration:   300 * time.Millisecond,
			CreatedAt:  now.Add(2 * time.Second),
			Error:      "context deadline exceeded",
		},
	}

	summary := GenerateSummary(records)

	if summary.TotalPages != 3 {
		t.Errorf("expected 3 pages, got %d", summary.TotalPages)
	}
	if summary.TotalErrors != 2 {
		t.Errorf("expected 2 errors, got %d", summary.TotalErrors)
	}
	if summary.TotalDetections != 1 || summary.DetectionsBySrc["GoogleSorry"] != 1 {
		t.Errorf("expected 1 GoogleSorry detection, got %v", summary.DetectionsBySrc)
	}
	if summary.StatusCodes[200] != 1 || summary.StatusCodes[429] != 1 || len(summary.StatusCodes) != 2 {
		t.Errorf("unexpected status codes %v", summary.StatusCodes)
	}
	if summary.TotalCandidates != 10 || summary.TotalAccepted != 3 {
		t.Errorf("expected 3/10 accepted, got %d/%d", summary.TotalAccepted, summary.TotalCandidates)
	}
	if summary.AvgPageTime != 200*time.Millisecond {
		t.Errorf("expected 200ms average, got %v", summary.AvgPageTime)
	}
	if summary.Duration != 2*time.Second {
		t.Errorf("expected 2s duration, got %v", summary.Duration)
	}

	if len(summary.Queries) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(summary.Queries))
	}
	top := summary.Queries[0]
	if top.Query != "annual+report" || top.Pages != 2 || top.Detections != 1 || top.Errors != 1 {
		t.Errorf("unexpected top query %+v", top)
	}
}

func TestGenerateSummary_Empty(t *testing.T) {
	s := GenerateSummary(nil)
	if s.TotalPages != 0 || s.StatusCodes == nil {
		t.Errorf("expected an empty initialized summary, got %+v", s)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, Summary{TotalPages: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"total_pages": 5`) {
		t.Errorf("expected JSON to contain total_pages: 5, got %s", buf.String())
	}
}

func TestWriteText(t *testing.T) {
	summary := Summary{
		TotalPages:  5,
		TotalErrors: 1,
		StatusCodes: map[int]int{200: 4, 503: 1},
		Queries:     []QueryStats{{Query: "golang", Pages: 5, Candidates: 40, Accepted: 12}},
	}
	var buf bytes.Buffer
	if err := WriteText(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Serpent Audit Summary", "Pages:         5", "200: 4", `"golang": 5 pages, 12/40 accepted`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected text to contain %q, got:\n%s", want, out)
		}
	}
}

func TestWriteHTML(t *testing.T) {
	summary := Summary{
		TotalPages:      10,
		TotalDetections: 2,
		DetectionsBySrc: map[string]int{"GoogleSorry": 2},
		Queries:         []QueryStats{{Query: "<script>x</script>", Pages: 1}},
	}
	var buf bytes.Buffer
	if err := WriteHTML(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<title>Serpent Audit Report</title>") {
		t.Errorf("expected HTML title")
	}
	if !strings.Contains(out, "GoogleSorry") {
		t.Errorf("expected HTML to contain GoogleSorry")
	}
	if strings.Contains(out, "<script>x</script>") {
		t.Errorf("expected query text to be escaped")
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, "pdf", Summary{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
