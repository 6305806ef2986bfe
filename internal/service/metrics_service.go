package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/fourset-checker/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface and the engine.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	storeLatency     prometheus.Observer
	storeWrite       prometheus.Observer
	storeHits        prometheus.Counter
	storeMisses      prometheus.Counter
	mergeConflicts   *prometheus.CounterVec
	taskValidations  *prometheus.CounterVec
	terminations     *prometheus.CounterVec
	recomputeLatency *prometheus.HistogramVec
	aggregateErrors  *prometheus.CounterVec
	rebuildProgress  *prometheus.GaugeVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	storeLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "store_read_seconds",
		Help:    "Latency for key-value store reads",
		Buckets: prometheus.DefBuckets,
	})

	storeWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "store_write_seconds",
		Help:    "Latency for key-value store writes",
		Buckets: prometheus.DefBuckets,
	})

	storeHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "store_hits_total",
		Help: "Total store reads that found a value",
	})

	storeMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "store_misses_total",
		Help: "Total store reads that found nothing",
	})

	mergeConflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "merge_conflicts_total",
		Help: "Questions answered differently by the two sources, by resolution",
	}, []string{"resolution"})

	taskValidations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_validations_total",
		Help: "Task validations by rule kind and status light",
	}, []string{"rule", "status"})

	terminations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_terminations_total",
		Help: "Triggered terminations and proper timeouts by rule kind",
	}, []string{"rule"})

	recomputeLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recompute_duration_seconds",
		Help:    "Duration of recomputing one node of the hierarchy",
		Buckets: prometheus.DefBuckets,
	}, []string{"level"})

	aggregateErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aggregate_errors_total",
		Help: "Summaries written in the error state, by level",
	}, []string{"level"})

	rebuildProgress := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rebuild_progress_ratio",
		Help: "Completed fraction of the running bulk rebuild, by grade",
	}, []string{"grade"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, storeLatency, storeWrite, storeHits, storeMisses,
		mergeConflicts, taskValidations, terminations, recomputeLatency, aggregateErrors, rebuildProgress, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		storeLatency:     storeLatency,
		storeWrite:       storeWrite,
		storeHits:        storeHits,
		storeMisses:      storeMisses,
		mergeConflicts:   mergeConflicts,
		taskValidations:  taskValidations,
		terminations:     terminations,
		recomputeLatency: recomputeLatency,
		aggregateErrors:  aggregateErrors,
		rebuildProgress:  rebuildProgress,
	}
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordStoreRead records a store lookup.
func (m *MetricsService) RecordStoreRead(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.storeLatency.Observe(duration.Seconds())
	if hit {
		m.storeHits.Inc()
	} else {
		m.storeMisses.Inc()
	}
}

// ObserveStoreWrite tracks the duration of store writes.
func (m *MetricsService) ObserveStoreWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.storeWrite.Observe(duration.Seconds())
}

// RecordConflicts counts the conflicts of one merged set.
func (m *MetricsService) RecordConflicts(conflicts []models.Conflict) {
	if m == nil {
		return
	}
	for _, c := range conflicts {
		m.mergeConflicts.WithLabelValues(string(c.Resolution)).Inc()
	}
}

// RecordTaskResult counts one task validation.
func (m *MetricsService) RecordTaskResult(result models.TaskValidationResult) {
	if m == nil {
		return
	}
	m.taskValidations.WithLabelValues(string(result.RuleKind), string(result.StatusLight)).Inc()
	if result.Stopped() {
		m.terminations.WithLabelValues(string(result.RuleKind)).Inc()
	}
}

// ObserveRecompute records how long one node took to recompute.
func (m *MetricsService) ObserveRecompute(level models.Level, duration time.Duration) {
	if m == nil {
		return
	}
	m.recomputeLatency.WithLabelValues(string(level)).Observe(duration.Seconds())
}

// RecordAggregateError counts a summary written in the error state.
func (m *MetricsService) RecordAggregateError(level models.Level) {
	if m == nil {
		return
	}
	m.aggregateErrors.WithLabelValues(string(level)).Inc()
}

// SetRebuildProgress publishes the completed fraction of a rebuild.
func (m *MetricsService) SetRebuildProgress(grade string, fraction float64) {
	if m == nil {
		return
	}
	m.rebuildProgress.WithLabelValues(grade).Set(fraction)
}
