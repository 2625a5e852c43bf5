package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
	"github.com/noah-isme/lms-class-scheduler/pkg/jobs"
)

// Run outcomes recorded by ObserveRun.
const (
	RunOutcomeScheduled = "scheduled"
	RunOutcomeCached    = "cached"
	RunOutcomeFailed    = "failed"
)

// MetricsService owns the Prometheus registry for HTTP, cache, database and
// scheduling instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec

	runsTotal         *prometheus.CounterVec
	runDuration       prometheus.Observer
	classesScheduled  prometheus.Counter
	groupsUnscheduled *prometheus.CounterVec
	classesUnassigned prometheus.Counter
	conflictsDetected *prometheus.CounterVec
	runConfidence     prometheus.Observer

	runCount       uint64
	failedRuns     uint64
	cacheHitCount  uint64
	cacheMissCount uint64
}

// MetricsSnapshot is a small in-process summary served on the health endpoint.
type MetricsSnapshot struct {
	Runs          uint64    `json:"runs"`
	FailedRuns    uint64    `json:"failedRuns"`
	CacheHitRatio float64   `json:"cacheHitRatio"`
	Goroutines    int       `json:"goroutines"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// NewMetricsService registers collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduling_cache_hits_total",
			Help: "Scheduling runs answered from cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduling_cache_misses_total",
			Help: "Scheduling cache lookups that missed",
		}),
		dbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database calls made while loading or saving schedules",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduling_runs_total",
			Help: "Scheduling runs by outcome",
		}, []string{"outcome"}),
		classesScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduling_classes_scheduled_total",
			Help: "Classes produced by scheduling runs",
		}),
		groupsUnscheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduling_groups_unscheduled_total",
			Help: "Student groups left without a class, by reason",
		}, []string{"reason"}),
		classesUnassigned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduling_classes_unassigned_total",
			Help: "Scheduled classes left without a teacher",
		}),
		conflictsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduling_conflicts_detected_total",
			Help: "Conflicts reported by runs and scans, by type",
		}, []string{"type"}),
	}

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})
	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache writes",
		Buckets: prometheus.DefBuckets,
	})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduling_run_duration_seconds",
		Help:    "Wall time of scheduling runs including snapshot loading",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
	runConfidence := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduling_run_average_confidence",
		Help:    "Average class confidence per run",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	})
	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	m.cacheLatency = cacheLatency
	m.cacheWrite = cacheWrite
	m.runDuration = runDuration
	m.runConfidence = runConfidence

	registry.MustRegister(
		m.requestDuration, m.requestTotal, cacheLatency, cacheWrite, m.cacheHits, m.cacheMisses,
		m.dbQueryDuration, m.runsTotal, runDuration, m.classesScheduled, m.groupsUnscheduled,
		m.classesUnassigned, m.conflictsDetected, runConfidence, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database call timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveRun records the outcome of one scheduling run. stats may be nil for
// failed runs.
func (m *MetricsService) ObserveRun(outcome string, duration time.Duration, stats *models.RunStats, unscheduled []models.UnscheduledGroup) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	atomic.AddUint64(&m.runCount, 1)
	if outcome == RunOutcomeFailed {
		atomic.AddUint64(&m.failedRuns, 1)
		return
	}
	m.runDuration.Observe(duration.Seconds())
	if outcome == RunOutcomeCached || stats == nil {
		return
	}
	m.classesScheduled.Add(float64(stats.ClassesScheduled))
	m.classesUnassigned.Add(float64(stats.ClassesUnassigned))
	if stats.ClassesScheduled > 0 {
		m.runConfidence.Observe(stats.AverageConfidence)
	}
	for _, group := range unscheduled {
		m.groupsUnscheduled.WithLabelValues(string(group.Reason)).Inc()
	}
}

// ObserveConflicts counts detected conflicts by type.
func (m *MetricsService) ObserveConflicts(conflicts []models.SchedulingConflict) {
	if m == nil {
		return
	}
	for _, conflict := range conflicts {
		m.conflictsDetected.WithLabelValues(string(conflict.Type)).Inc()
	}
}

// RegisterQueue exposes a job queue's counters as gauges labelled by queue name.
func (m *MetricsService) RegisterQueue(name string, stats func() jobs.Stats) {
	if m == nil || stats == nil {
		return
	}
	gauge := func(state string, read func(jobs.Stats) int) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "job_queue_jobs",
			Help:        "Job queue counters by state",
			ConstLabels: prometheus.Labels{"queue": name, "state": state},
		}, func() float64 {
			return float64(read(stats()))
		})
	}
	m.registry.MustRegister(
		gauge("queued", func(s jobs.Stats) int { return s.Queued }),
		gauge("in_flight", func(s jobs.Stats) int { return s.InFlight }),
		gauge("succeeded", func(s jobs.Stats) int { return s.Succeeded }),
		gauge("failed", func(s jobs.Stats) int { return s.Failed }),
		gauge("retried", func(s jobs.Stats) int { return s.Retried }),
	)
}

// Snapshot summarises run and cache counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return MetricsSnapshot{
		Runs:          atomic.LoadUint64(&m.runCount),
		FailedRuns:    atomic.LoadUint64(&m.failedRuns),
		CacheHitRatio: ratio,
		Goroutines:    runtime.NumGoroutine(),
		GeneratedAt:   time.Now().UTC(),
	}
}
