package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kwgap_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kwgap_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	AnalysisRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kwgap_analysis_runs_total",
			Help: "Analysis runs by outcome.",
		},
		[]string{"outcome"}, // success, failure
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kwgap_analysis_duration_seconds",
			Help:    "Duration of the load, normalize and analyze steps.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	RowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kwgap_rows_skipped_total",
			Help: "Input rows dropped during normalization.",
		},
		[]string{"source"},
	)

	Opportunities = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kwgap_opportunities_total",
			Help: "Classified keywords by category.",
		},
		[]string{"category"},
	)

	InsightRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kwgap_insight_requests_total",
			Help: "AI insight requests by outcome.",
		},
		[]string{"outcome"}, // success, error, unavailable, busy
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency, labelled by the matched
// route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)
		duration := time.Since(start)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(rw.statusCode)
		HTTPRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration.Seconds())
		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}
