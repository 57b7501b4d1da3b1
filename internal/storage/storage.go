package storage

import (
	"context"
	"sort"
	"time"
)

// PageRecord is the audit entry for one SERP page request. It records how the
// request went, never the results themselves.
type PageRecord struct {
	ID           string        `json:"id"`
	Query        string        `json:"query"`
	URL          string        `json:"url"`
	Start        int           `json:"start"`
	Num          int           `json:"num"`
	StatusCode   int           `json:"status_code"`
	Duration     time.Duration `json:"duration"`
	Candidates   int           `json:"candidates"`
	Accepted     int           `json:"accepted"`
	DetectedBot  bool          `json:"detected_bot"`
	DetectionSrc string        `json:"detection_src,omitempty"` // e.g. "GoogleSorry", "Cloudflare"
	CreatedAt    time.Time     `json:"created_at"`
	Error        string        `json:"error,omitempty"`
}

// Filter narrows a Query over stored records.
type Filter struct {
	Query       string
	DetectedBot *bool
	Since       *time.Time
	Limit       int
	Offset      int
}

// Backend stores and queries page records.
type Backend interface {
	Save(ctx context.Context, rec *PageRecord) error
	Query(ctx context.Context, filter Filter) ([]*PageRecord, error)
	Close() error
}

// ApplyFilter filters records in memory, orders them newest first and applies
// Offset and Limit. File-backed stores use it in place of a query engine.
func ApplyFilter(records []*PageRecord, filter Filter) []*PageRecord {
	out := make([]*PageRecord, 0, len(records))
	for _, r := range records {
		if filter.Query != "" && r.Query != filter.Query {
			continue
		}
		if filter.DetectedBot != nil && r.DetectedBot != *filter.DetectedBot {
			continue
		}
		if filter.Since != nil && r.CreatedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*PageRecord{}
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out
}
