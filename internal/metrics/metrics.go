package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Extraction outcomes.
const (
	OutcomeAnswer = "answer"
	OutcomeEmpty  = "empty"
	OutcomeError  = "error"
	OutcomePanic  = "panic"
)

var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "howto_fetch_requests_total",
			Help: "Total number of page fetches executed",
		},
		[]string{"host", "status", "blocked_by"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "howto_fetch_duration_seconds",
			Help:    "Duration of page fetches in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "howto_fetch_bytes_total",
			Help: "Total bytes downloaded across all fetches",
		},
		[]string{"host"},
	)

	FetchCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "howto_fetch_cache_hits_total",
			Help: "Fetches served from the page cache",
		},
	)

	SearchLinks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "howto_search_links",
			Help:    "Number of discussion links returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "howto_extractions_total",
			Help: "Answer extractions by outcome",
		},
		[]string{"outcome"},
	)

	ExtractionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "howto_extractions_in_flight",
			Help: "Answer extractions currently running",
		},
	)
)

// RecordFetch updates the fetch metrics for one request. status is ignored
// when err is non-nil.
func RecordFetch(host string, status int, blockedBy string, size int, d time.Duration, err error) {
	statusStr := strconv.Itoa(status)
	if err != nil {
		statusStr = "error"
	}

	FetchRequestsTotal.WithLabelValues(host, statusStr, blockedBy).Inc()
	FetchDuration.WithLabelValues(host).Observe(d.Seconds())
	FetchBytesTotal.WithLabelValues(host).Add(float64(size))
}

// RecordExtraction counts one finished extraction.
func RecordExtraction(outcome string) {
	ExtractionsTotal.WithLabelValues(outcome).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv  *http.Server
	addr string
}

// Start listens on addr (e.g. ":9090" or "127.0.0.1:0") and serves /metrics
// in the background.
func Start(addr string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	return &Server{srv: srv, addr: ln.Addr().String()}, nil
}

// Addr is the address the server is listening on.
func (s *Server) Addr() string {
	return s.addr
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
