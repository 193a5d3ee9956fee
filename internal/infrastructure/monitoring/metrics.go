package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can run without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Analyzer metrics
	Analyses         *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	CacheLookups     *prometheus.CounterVec
	CacheEvictions   prometheus.Counter
	CORSRetries      *prometheus.CounterVec

	// Watcher metrics
	ElementsProcessed *prometheus.CounterVec
	ElementsMarked    prometheus.Counter
	WatchersActive    prometheus.Gauge

	// Page host metrics
	ResourceLoads *prometheus.CounterVec
	ScansTotal    *prometheus.CounterVec
}

// NewMetrics creates a metrics collector on its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blurguard_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blurguard_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),

		Analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blurguard_analyses_total",
				Help: "Image analyses by outcome (nsfw, clean, cached, skipped, no_data, error)",
			},
			[]string{"outcome"},
		),
		AnalysisDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blurguard_analysis_duration_seconds",
				Help:    "Uncached image analysis duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 3, 5},
			},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blurguard_cache_lookups_total",
				Help: "Verdict cache lookups by result",
			},
			[]string{"result"},
		),
		CacheEvictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "blurguard_cache_evictions_total",
				Help: "Verdicts evicted from the cache",
			},
		),
		CORSRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blurguard_cors_retries_total",
				Help: "Anonymous CORS refetches of tainted images by result",
			},
			[]string{"result"},
		),

		ElementsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blurguard_watcher_elements_total",
				Help: "Media elements taken by the watcher, by tag",
			},
			[]string{"tag"},
		),
		ElementsMarked: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "blurguard_watcher_marked_total",
				Help: "Elements annotated as NSFW",
			},
		),
		WatchersActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "blurguard_watchers_active",
				Help: "Running content watchers",
			},
		),

		ResourceLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blurguard_resource_loads_total",
				Help: "Image resource loads by result",
			},
			[]string{"result"},
		),
		ScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blurguard_scans_total",
				Help: "Page scans by result",
			},
			[]string{"result"},
		),
	}
}

// Registry exposes the underlying registry (tests gather from it)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAnalysis records one analyzer outcome
func (m *Metrics) RecordAnalysis(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Analyses.WithLabelValues(outcome).Inc()
	if duration > 0 {
		m.AnalysisDuration.Observe(duration.Seconds())
	}
}

// RecordCacheLookup records a cache hit or miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

// IncCacheEvictions counts one FIFO eviction
func (m *Metrics) IncCacheEvictions() {
	if m == nil {
		return
	}
	m.CacheEvictions.Inc()
}

// RecordCORSRetry records a CORS refetch result (ok, denied, timeout, error)
func (m *Metrics) RecordCORSRetry(result string) {
	if m == nil {
		return
	}
	m.CORSRetries.WithLabelValues(result).Inc()
}

// RecordElement counts an element taken by the watcher
func (m *Metrics) RecordElement(tag string) {
	if m == nil {
		return
	}
	m.ElementsProcessed.WithLabelValues(tag).Inc()
}

// IncMarked counts an NSFW annotation
func (m *Metrics) IncMarked() {
	if m == nil {
		return
	}
	m.ElementsMarked.Inc()
}

// WatcherStarted increments the active watcher gauge
func (m *Metrics) WatcherStarted() {
	if m == nil {
		return
	}
	m.WatchersActive.Inc()
}

// WatcherStopped decrements the active watcher gauge
func (m *Metrics) WatcherStopped() {
	if m == nil {
		return
	}
	m.WatchersActive.Dec()
}

// RecordResourceLoad records an image load result (ok, cross_origin, error)
func (m *Metrics) RecordResourceLoad(result string) {
	if m == nil {
		return
	}
	m.ResourceLoads.WithLabelValues(result).Inc()
}

// RecordScan records a page scan result
func (m *Metrics) RecordScan(result string) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(result).Inc()
}
