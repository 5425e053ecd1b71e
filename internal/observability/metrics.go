// Package observability exports run metrics to Prometheus.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blackdavinci/guinea-election-monitor/internal/monitor"
)

const (
	// Namespace prefixes every exported metric.
	Namespace = "electionwatch"
	Subsystem = "scraper"
)

// Metrics holds the Prometheus collectors fed by monitor runs. It
// implements monitor.Observer.
type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	SourceRunsTotal   *prometheus.CounterVec
	SourceDuration    *prometheus.HistogramVec
	ArticlesFound     *prometheus.CounterVec
	ArticlesSaved     *prometheus.CounterVec
	ArticlesSkipped   *prometheus.CounterVec
	ArticlesDropped   *prometheus.CounterVec
	HighRelevance     *prometheus.CounterVec
	PagesCrawled      *prometheus.CounterVec
	FetchErrors       *prometheus.CounterVec
	StopReasons       *prometheus.CounterVec
	LastRunTimestamp  prometheus.Gauge
	LastRunSavedTotal prometheus.Gauge

	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// NewMetrics creates and registers the collectors on reg. A nil reg uses a
// fresh registry.
func NewMetrics(reg *prometheus.Registry, logger *slog.Logger) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	m := &Metrics{gatherer: reg, logger: logger.With("component", "metrics")}

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	m.RunsTotal = counter("runs_total", "Runs completed, by outcome", "outcome")
	m.SourceRunsTotal = counter("source_runs_total", "Source runs, by source and status", "source", "status")
	m.ArticlesFound = counter("articles_found_total", "Articles extracted within the window", "source")
	m.ArticlesSaved = counter("articles_saved_total", "Articles newly persisted", "source")
	m.ArticlesSkipped = counter("articles_skipped_total", "Articles found but not persisted", "source")
	m.ArticlesDropped = counter("articles_dropped_total", "Articles dropped by a pipeline stage", "source", "stage")
	m.HighRelevance = counter("high_relevance_total", "High-relevance articles surfaced", "source", "mode")
	m.PagesCrawled = counter("pages_crawled_total", "Listing pages fetched", "source")
	m.FetchErrors = counter("fetch_errors_total", "Listing and article fetch failures", "source")
	m.StopReasons = counter("category_stops_total", "Category crawls ended, by reason", "source", "reason")

	m.SourceDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "source_duration_seconds",
		Help:      "Duration of a source run",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"source"})

	m.LastRunTimestamp = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished",
	})
	m.LastRunSavedTotal = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "last_run_articles_saved",
		Help:      "Articles saved by the last run",
	})
	return m
}

// ObserveSource records one source outcome.
func (m *Metrics) ObserveSource(r *monitor.SourceResult) {
	m.SourceRunsTotal.WithLabelValues(r.Source, r.Status).Inc()
	m.SourceDuration.WithLabelValues(r.Source).Observe(r.Elapsed().Seconds())
	m.ArticlesFound.WithLabelValues(r.Source).Add(float64(r.Found))
	m.ArticlesSaved.WithLabelValues(r.Source).Add(float64(r.Saved))
	m.ArticlesSkipped.WithLabelValues(r.Source).Add(float64(r.Skipped))
	for stage, n := range r.Dropped {
		m.ArticlesDropped.WithLabelValues(r.Source, stage).Add(float64(n))
	}
	for _, h := range r.Highlights {
		m.HighRelevance.WithLabelValues(r.Source, string(h.Mode)).Inc()
	}

	totals := r.Stats.Totals()
	m.PagesCrawled.WithLabelValues(r.Source).Add(float64(totals.Pages))
	m.FetchErrors.WithLabelValues(r.Source).Add(float64(totals.FetchErrors))
	for reason, n := range r.Stats.StopReasons() {
		m.StopReasons.WithLabelValues(r.Source, string(reason)).Add(float64(n))
	}
}

// ObserveRun records the run outcome.
func (m *Metrics) ObserveRun(r *monitor.Report) {
	outcome := "ok"
	switch {
	case r.Failed():
		outcome = "failed"
	case r.SourcesFailed > 0:
		outcome = "degraded"
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.LastRunTimestamp.Set(float64(r.FinishedAt.Unix()))
	m.LastRunSavedTotal.Set(float64(r.ArticlesSaved))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// StartServer serves metrics on path and a liveness probe on /health until
// ctx is done.
func (m *Metrics) StartServer(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			m.logger.Warn("metrics server shutdown", "error", err)
		}
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	return nil
}
