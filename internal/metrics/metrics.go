// Package metrics exposes Prometheus metrics of evaluation runs: outer-fold
// and hold-out completions, failures, durations and score distributions.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YuminosukeSato/radcv/pipeline"
	"github.com/YuminosukeSato/radcv/pkg/log"
)

const namespace = "radcv"

// Status label values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Metrics holds the run collectors. It implements pipeline.Observer.
type Metrics struct {
	FoldsTotal    *prometheus.CounterVec   // outer folds finished, by pipeline and status
	HoldoutsTotal *prometheus.CounterVec   // hold-out evaluations finished, by status
	FoldDuration  *prometheus.HistogramVec // seconds per outer fold unit, by pipeline
	OuterScore    *prometheus.HistogramVec // outer-fold scores, by pipeline
	HoldoutScore  *prometheus.HistogramVec // hold-out scores, by pipeline
}

// New registers the collectors with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors with registerer (useful for tests).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	scoreBuckets := prometheus.LinearBuckets(0.05, 0.05, 20)
	return &Metrics{
		FoldsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outer_folds_total",
			Help:      "Outer folds evaluated per pipeline",
		}, []string{"pipeline", "status"}),
		HoldoutsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holdouts_total",
			Help:      "Hold-out evaluations per trial",
		}, []string{"status"}),
		FoldDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outer_fold_duration_seconds",
			Help:      "Wall time from the start of an outer fold unit to each pipeline's record",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16),
		}, []string{"pipeline"}),
		OuterScore: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outer_fold_score",
			Help:      "Outer-fold scores",
			Buckets:   scoreBuckets,
		}, []string{"pipeline"}),
		HoldoutScore: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "holdout_score",
			Help:      "Hold-out scores of the pipeline each trial selected",
			Buckets:   scoreBuckets,
		}, []string{"pipeline"}),
	}
}

// FoldDone implements pipeline.Observer.
func (m *Metrics) FoldDone(rec pipeline.TrialRecord, elapsed time.Duration) {
	m.FoldDuration.WithLabelValues(rec.Pipeline).Observe(elapsed.Seconds())
	if rec.Failed {
		m.FoldsTotal.WithLabelValues(rec.Pipeline, StatusFailed).Inc()
		return
	}
	m.FoldsTotal.WithLabelValues(rec.Pipeline, StatusOK).Inc()
	m.OuterScore.WithLabelValues(rec.Pipeline).Observe(rec.Score)
}

// HoldoutDone implements pipeline.Observer.
func (m *Metrics) HoldoutDone(rec pipeline.HoldoutRecord, _ time.Duration) {
	if rec.Failed {
		m.HoldoutsTotal.WithLabelValues(StatusFailed).Inc()
		return
	}
	m.HoldoutsTotal.WithLabelValues(StatusOK).Inc()
	m.HoldoutScore.WithLabelValues(rec.Pipeline).Observe(rec.Score)
}

var _ pipeline.Observer = (*Metrics)(nil)

// Handler serves gatherer on /metrics and a liveness probe on /health.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return router
}

// Serve runs the metrics server on addr until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger log.Logger) {
	logger = log.OrDefault(logger, "metrics")
	server := &http.Server{
		Addr:              addr,
		Handler:           Handler(gatherer),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown metrics server", err)
		}
	}()
	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", err)
		}
	}()
}
