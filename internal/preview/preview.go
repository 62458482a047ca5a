// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package preview serves a built site over HTTP together with build metrics.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdiddy/gasper/internal/site"
)

// Result labels for the builds counter.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// Metrics records build outcomes.
type Metrics struct {
	registry  *prom.Registry
	builds    *prom.CounterVec
	duration  prom.Histogram
	documents *prom.CounterVec
}

// NewMetrics registers the build metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prom.NewRegistry(),
		builds: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "gasper",
			Name:      "builds_total",
			Help:      "Site builds by result",
		}, []string{"result"}),
		duration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "gasper",
			Name:      "build_duration_seconds",
			Help:      "Full site build duration",
			Buckets:   prom.DefBuckets,
		}),
		documents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "gasper",
			Name:      "documents_total",
			Help:      "Documents processed by outcome",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.builds, m.duration, m.documents)
	return m
}

// Observe records one build.
func (m *Metrics) Observe(s site.Summary, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailed
	}
	m.builds.WithLabelValues(result).Inc()
	m.duration.Observe(s.Duration.Seconds())
	m.documents.WithLabelValues("generated").Add(float64(s.Generated))
	m.documents.WithLabelValues("degraded").Add(float64(s.Degraded))
	m.documents.WithLabelValues("failed").Add(float64(s.Failed))
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Server serves the output directory at / and metrics at /metrics.
type Server struct {
	outputDir string
	metrics   *Metrics
	logger    *slog.Logger
}

// NewServer returns a preview server for outputDir.
func NewServer(outputDir string, metrics *Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{outputDir: outputDir, metrics: metrics, logger: logger}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	mux.Handle("/", http.FileServer(http.Dir(s.outputDir)))
	return mux
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("preview server listening", "url", "http://"+ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving preview: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down preview server: %w", err)
		}
		return nil
	}
}
