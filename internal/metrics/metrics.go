package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/FranksOps/serpent/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpent_pages_total",
			Help: "Total number of SERP pages requested",
		},
		[]string{"status", "detected", "detection_src"},
	)

	PageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "serpent_page_duration_seconds",
			Help:    "Duration of SERP page requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	CandidatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "serpent_candidates_total",
			Help: "Total number of result blocks extracted from SERP pages",
		},
	)

	ResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpent_results_total",
			Help: "Total number of results yielded to callers",
		},
		[]string{"mode"},
	)

	FilterRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpent_filter_rejections_total",
			Help: "Candidates dropped by the desired-results filter",
		},
		[]string{"reason"},
	)

	Stalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpent_stalls_total",
			Help: "Paginators stopped after too many unproductive pages",
		},
		[]string{"mode"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpent_proxy_failures_total",
			Help: "Total number of proxy failures during SERP requests",
		},
		[]string{"proxy_url"},
	)
)

// RecordPage updates the page metrics from an audit record.
func RecordPage(rec *storage.PageRecord) {
	if rec == nil {
		return
	}

	detected := strconv.FormatBool(rec.DetectedBot)
	status := strconv.Itoa(rec.StatusCode)
	if rec.StatusCode == 0 && rec.Error != "" {
		status = "error"
	}

	PagesTotal.WithLabelValues(status, detected, rec.DetectionSrc).Inc()
	PageDuration.Observe(rec.Duration.Seconds())
	CandidatesTotal.Add(float64(rec.Candidates))
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "port", port, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
