package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Escrow client metrics.
var (
	ledgerReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_ledger_reads_total",
			Help: "Ledger read calls by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	writePhasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_write_phases_total",
			Help: "Mutation lifecycle transitions by action and phase.",
		},
		[]string{"action", "phase"},
	)

	attestationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "escrow_attestations_total",
		Help: "Work attestations confirmed on the ledger.",
	})
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		ledgerReadsTotal, writePhasesTotal, attestationsTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// LedgerRead records one ledger read call.
func LedgerRead(method, outcome string) {
	ledgerReadsTotal.WithLabelValues(method, outcome).Inc()
}

// WritePhase records one mutation phase transition.
func WritePhase(action, phase string) {
	writePhasesTotal.WithLabelValues(action, phase).Inc()
}

// AttestationSubmitted records a confirmed work attestation.
func AttestationSubmitted() {
	attestationsTotal.Inc()
}

// CanonicalPath collapses resource ids so metric labels stay low-cardinality.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	parts := strings.Split(p, "/")
	if len(parts) >= 4 && parts[1] == "v1" && parts[2] == "payments" && parts[3] != "" {
		parts[3] = ":id"
		return strings.Join(parts, "/")
	}
	if len(parts) >= 4 && parts[1] == "v1" && parts[2] == "employers" && parts[3] != "" {
		parts[3] = ":address"
		return strings.Join(parts, "/")
	}
	return p
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for the metrics above.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
