package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal        *prometheus.CounterVec
	searchDuration     *prometheus.HistogramVec
	searchResultCount  *prometheus.HistogramVec
	relaxationTotal    *prometheus.CounterVec
	planFallbackTotal  *prometheus.CounterVec
	quotaDecisionTotal *prometheus.CounterVec
	answerTotal        *prometheus.CounterVec
	streamTokensTotal  *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ria",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ria",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ria",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ria",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total completed firm searches.",
		},
		[]string{"service", "endpoint"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ria",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Firm search duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	searchResultCount := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ria",
			Subsystem: "search",
			Name:      "result_count",
			Help:      "Distribution of aggregated firms returned per search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50, 100},
		},
		[]string{"service", "endpoint"},
	)
	relaxationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ria",
			Subsystem: "search",
			Name:      "relaxation_total",
			Help:      "Total searches that needed the relaxation ladder, by final level.",
		},
		[]string{"service", "level"},
	)
	planFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ria",
			Subsystem: "llm",
			Name:      "plan_fallback_total",
			Help:      "Total query plans produced by the heuristic fallback parser.",
		},
		[]string{"service"},
	)
	quotaDecisionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ria",
			Subsystem: "quota",
			Name:      "decisions_total",
			Help:      "Total quota gate decisions by caller tier and outcome.",
		},
		[]string{"service", "tier", "outcome"},
	)
	answerTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ria",
			Subsystem: "llm",
			Name:      "answers_total",
			Help:      "Total generated answers by delivery mode and degradation.",
		},
		[]string{"service", "endpoint", "degraded"},
	)
	streamTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ria",
			Subsystem: "llm",
			Name:      "stream_tokens_total",
			Help:      "Total streamed answer tokens, heartbeats counted separately.",
		},
		[]string{"service", "kind"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchDuration,
		searchResultCount,
		relaxationTotal,
		planFallbackTotal,
		quotaDecisionTotal,
		answerTotal,
		streamTokensTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		searchTotal:        searchTotal,
		searchDuration:     searchDuration,
		searchResultCount:  searchResultCount,
		relaxationTotal:    relaxationTotal,
		planFallbackTotal:  planFallbackTotal,
		quotaDecisionTotal: quotaDecisionTotal,
		answerTotal:        answerTotal,
		streamTokensTotal:  streamTokensTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
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
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordSearch(service, endpoint string, resultCount int, relaxation string, duration time.Duration) {
	m.searchTotal.WithLabelValues(service, endpoint).Inc()
	m.searchResultCount.WithLabelValues(service, endpoint).Observe(float64(resultCount))
	m.searchDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())

	if relaxation != "" {
		m.relaxationTotal.WithLabelValues(service, relaxation).Inc()
	}
}

func (m *HTTPServerMetrics) RecordPlanFallback(service string) {
	m.planFallbackTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordQuotaDecision(service, tier string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.quotaDecisionTotal.WithLabelValues(service, tier, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordAnswer(service, endpoint string, degraded bool) {
	m.answerTotal.WithLabelValues(service, endpoint, strconv.FormatBool(degraded)).Inc()
}

func (m *HTTPServerMetrics) RecordStreamTokens(service string, tokens, heartbeats int) {
	if tokens > 0 {
		m.streamTokensTotal.WithLabelValues(service, "token").Add(float64(tokens))
	}
	if heartbeats > 0 {
		m.streamTokensTotal.WithLabelValues(service, "heartbeat").Add(float64(heartbeats))
	}
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
