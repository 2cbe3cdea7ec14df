package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service instruments. A nil *Metrics is valid and records
// nothing, so components can be built without instrumentation in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	ledgerDuration    prometheus.Histogram
	ledgerErrors      prometheus.Counter
	ledgerRejected    prometheus.Counter
	reportsComputed   prometheus.Counter
	skippedEvents     *prometheus.CounterVec
	importedRows      *prometheus.CounterVec
}

// NewMetrics registers every instrument on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tax_report_cache_hits_total",
			Help: "Total tax report cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tax_report_cache_misses_total",
			Help: "Total tax report cache misses.",
		}),
		ledgerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_read_duration_seconds",
			Help:    "Histogram of ledger read durations.",
			Buckets: prometheus.DefBuckets,
		}),
		ledgerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_read_errors_total",
			Help: "Total failed ledger reads.",
		}),
		ledgerRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_rows_rejected_total",
			Help: "Ledger rows dropped for missing asset or timestamp.",
		}),
		reportsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tax_reports_computed_total",
			Help: "Total tax reports computed from the ledger.",
		}),
		skippedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tax_skipped_events_total",
			Help: "Transactions that produced no tax effect, by reason.",
		}, []string{"reason"}),
		importedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_imported_rows_total",
			Help: "Rows imported into the ledger by source and outcome.",
		}, []string{"source", "outcome"}),
	}

	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.cacheHits,
		m.cacheMisses,
		m.ledgerDuration,
		m.ledgerErrors,
		m.ledgerRejected,
		m.reportsComputed,
		m.skippedEvents,
		m.importedRows,
	)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) LedgerRead(duration time.Duration, success bool) {
	if m == nil {
		return
	}
	m.ledgerDuration.Observe(duration.Seconds())
	if !success {
		m.ledgerErrors.Inc()
	}
}

func (m *Metrics) LedgerRowRejected() {
	if m == nil {
		return
	}
	m.ledgerRejected.Inc()
}

func (m *Metrics) ReportComputed() {
	if m == nil {
		return
	}
	m.reportsComputed.Inc()
}

func (m *Metrics) SkippedEvent(reason string) {
	if m == nil {
		return
	}
	m.skippedEvents.WithLabelValues(reason).Inc()
}

func (m *Metrics) ImportedRows(source, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.importedRows.WithLabelValues(source, outcome).Add(float64(n))
}
