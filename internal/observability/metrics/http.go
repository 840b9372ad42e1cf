package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchRequestsTotal  *prometheus.CounterVec
	searchHitTotal       *prometheus.CounterVec
	searchNoResultsTotal *prometheus.CounterVec
	searchResultChunks   *prometheus.HistogramVec
	searchDuration       *prometheus.HistogramVec

	evaluationsTotal   *prometheus.CounterVec
	evaluatedInvoices  *prometheus.HistogramVec
	reconciliationsRun *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copilot",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "copilot",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total successful search requests.",
		},
		[]string{"service", "endpoint"},
	)
	searchHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "search",
			Name:      "hit_total",
			Help:      "Total search requests with at least one result.",
		},
		[]string{"service", "endpoint"},
	)
	searchNoResultsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "search",
			Name:      "no_results_total",
			Help:      "Total search requests without results.",
		},
		[]string{"service", "endpoint"},
	)
	searchResultChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copilot",
			Subsystem: "search",
			Name:      "result_chunks",
			Help:      "Distribution of returned chunks per successful search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copilot",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	evaluationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "rules",
			Name:      "evaluations_total",
			Help:      "Total completed batch evaluations by status.",
		},
		[]string{"service", "status"},
	)
	evaluatedInvoices := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copilot",
			Subsystem: "rules",
			Name:      "evaluated_invoices",
			Help:      "Distribution of invoices per batch evaluation.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service"},
	)
	reconciliationsRun := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Total completed reconciliation runs by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchRequestsTotal,
		searchHitTotal,
		searchNoResultsTotal,
		searchResultChunks,
		searchDuration,
		evaluationsTotal,
		evaluatedInvoices,
		reconciliationsRun,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		searchRequestsTotal:  searchRequestsTotal,
		searchHitTotal:       searchHitTotal,
		searchNoResultsTotal: searchNoResultsTotal,
		searchResultChunks:   searchResultChunks,
		searchDuration:       searchDuration,
		evaluationsTotal:     evaluationsTotal,
		evaluatedInvoices:    evaluatedInvoices,
		reconciliationsRun:   reconciliationsRun,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry so additional collectors,
// like the firewall's, can register on the same endpoint.
func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses resource IDs out of path labels to keep
// cardinality bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	case strings.HasPrefix(path, "/v1/papers/"):
		return "/v1/papers/{paper_id}"
	case strings.HasPrefix(path, "/v1/tools/"):
		return "/v1/tools/{tool_name}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordSearch(service, endpoint string, resultCount int, duration time.Duration) {
	m.searchRequestsTotal.WithLabelValues(service, endpoint).Inc()
	m.searchResultChunks.WithLabelValues(service, endpoint).Observe(float64(resultCount))
	m.searchDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())

	if resultCount > 0 {
		m.searchHitTotal.WithLabelValues(service, endpoint).Inc()
		return
	}
	m.searchNoResultsTotal.WithLabelValues(service, endpoint).Inc()
}

func (m *HTTPServerMetrics) RecordEvaluation(service string, invoiceCount int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.evaluationsTotal.WithLabelValues(service, status).Inc()
	if invoiceCount > 0 {
		m.evaluatedInvoices.WithLabelValues(service).Observe(float64(invoiceCount))
	}
}

func (m *HTTPServerMetrics) RecordReconciliation(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.reconciliationsRun.WithLabelValues(service, status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
