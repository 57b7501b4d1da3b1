package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"sort"
	"text/template"
	"time"

	"github.com/FranksOps/serpent/internal/storage"
)

// QueryStats aggregates the pages recorded for one query.
type QueryStats struct {
	Query      string `json:"query"`
	Pages      int    `json:"pages"`
	Candidates int    `json:"candidates"`
	Accepted   int    `json:"accepted"`
	Detections int    `json:"detections"`
	Errors     int    `json:"errors"`
}

// Summary aggregates an audit log.
type Summary struct {
	TotalPages      int            `json:"total_pages"`
	TotalErrors     int            `json:"total_errors"`
	TotalDetections int            `json:"total_detections"`
	TotalCandidates int            `json:"total_candidates"`
	TotalAccepted   int            `json:"total_accepted"`
	StatusCodes     map[int]int    `json:"status_codes"`
	DetectionsBySrc map[string]int `json:"detections_by_src"`
	Queries         []QueryStats   `json:"queries"`
	AvgPageTime     time.Duration  `json:"avg_page_time"`
	StartTime       time.Time      `json:"start_time"`
	EndTime         time.Time      `json:"end_time"`
	Duration        time.Duration  `json:"duration"`
}

// GenerateSummary aggregates page records. Queries are sorted by page count,
// busiest first.
func GenerateSummary(records []*storage.PageRecord) Summary {
	s := Summary{
		StatusCodes:     make(map[int]int),
		DetectionsBySrc: make(map[string]int),
	}
	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].CreatedAt
	s.EndTime = records[0].CreatedAt

	var total time.Duration
	byQuery := make(map[string]*QueryStats)

	for _, r := range records {
		s.TotalPages++
		s.TotalCandidates += r.Candidates
		s.TotalAccepted += r.Accepted
		total += r.Duration

		q, ok := byQuery[r.Query]
		if !ok {
			q = &QueryStats{Query: r.Query}
			byQuery[r.Query] = q
		}
		q.Pages++
		q.Candidates += r.Candidates
		q.Accepted += r.Accepted

		if r.Error != "" {
			s.TotalErrors++
			q.Errors++
		}
		if r.DetectedBot {
			s.TotalDetections++
			s.DetectionsBySrc[r.DetectionSrc]++
			q.Detections++
		}
		if r.StatusCode > 0 {
			s.StatusCodes[r.StatusCode]++
		}

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	s.Queries = make([]QueryStats, 0, len(byQuery))
	for _, q := range byQuery {
		s.Queries = append(s.Queries, *q)
	}
	sort.Slice(s.Queries, func(i, j int) bool {
		if s.Queries[i].Pages != s.Queries[j].Pages {
			return s.Queries[i].Pages > s.Queries[j].Pages
		}
		return s.Queries[i].Query < s.Queries[j].Query
	})

	s.AvgPageTime = total / time.Duration(s.TotalPages)
	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary as indented JSON.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

const textTmpl = `Serpent Audit Summary
---------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Pages:         {{.TotalPages}} (avg {{.AvgPageTime}})
Candidates:    {{.TotalCandidates}}
Accepted:      {{.TotalAccepted}}
Errors:        {{.TotalErrors}}

Status Codes:
{{- range $code, $count := .StatusCodes}}
  {{$code}}: {{$count}}
{{- else}}
  None
{{- end}}

Detections: {{.TotalDetections}}
{{- range $src, $count := .DetectionsBySrc}}
  {{$src}}: {{$count}}
{{- else}}
  None
{{- end}}

Queries:
{{- range .Queries}}
  {{printf "%q" .Query}}: {{.Pages}} pages, {{.Accepted}}/{{.Candidates}} accepted, {{.Detections}} detections, {{.Errors}} errors
{{- else}}
  None
{{- end}}
`

// WriteText writes a plain-text summary.
func WriteText(w io.Writer, summary Summary) error {
	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Serpent Audit Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  .bad { color: red; }
  .good { color: green; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Serpent Audit Report</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card"><div>Pages</div><div class="stat-val">{{.TotalPages}}</div></div>
  <div class="stat-card"><div>Accepted</div><div class="stat-val">{{.TotalAccepted}} / {{.TotalCandidates}}</div></div>
  <div class="stat-card"><div>Errors</div><div class="stat-val">{{.TotalErrors}}</div></div>
  <div class="stat-card"><div>Detections</div><div class="stat-val {{if gt .TotalDetections 0}}bad{{else}}good{{end}}">{{.TotalDetections}}</div></div>

  <h3>Status Codes</h3>
  <table>
    <tr><th>Code</th><th>Count</th></tr>
    {{- range $code, $count := .StatusCodes}}
    <tr><td>{{$code}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Detections By Source</h3>
  <table>
    <tr><th>Source</th><th>Count</th></tr>
    {{- range $src, $count := .DetectionsBySrc}}
    <tr><td>{{$src}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Queries</h3>
  <table>
    <tr><th>Query</th><th>Pages</th><th>Accepted</th><th>Candidates</th><th>Detections</th><th>Errors</th></tr>
    {{- range .Queries}}
    <tr><td>{{.Query}}</td><td>{{.Pages}}</td><td>{{.Accepted}}</td><td>{{.Candidates}}</td><td>{{.Detections}}</td><td>{{.Errors}}</td></tr>
    {{- else}}
    <tr><td colspan="6">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`

// WriteHTML writes a standalone HTML report. Query strings are escaped.
func WriteHTML(w io.Writer, summary Summary) error {
	t, err := htmltemplate.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// Write renders summary in format: "text", "json" or "html".
func Write(w io.Writer, format string, summary Summary) error {
	switch format {
	case "", "text":
		return WriteText(w, summary)
	case "json":
		return WriteJSON(w, summary)
	case "html":
		return WriteHTML(w, summary)
	}
	return fmt.Errorf("report: unknown format %q", format)
}
