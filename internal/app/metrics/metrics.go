package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "demo_gateway",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "demo_gateway",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "demo_gateway",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "demo_gateway",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total number of outbound calls to third-party APIs.",
		},
		[]string{"upstream", "outcome"},
	)

	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "demo_gateway",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound calls to third-party APIs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"upstream"},
	)

	rpcReachable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "demo_gateway",
			Subsystem: "rpc",
			Name:      "reachable",
			Help:      "1 when the last latency probe got HTTP 200 from the RPC endpoint.",
		},
	)

	rpcProbeLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "demo_gateway",
			Subsystem: "rpc",
			Name:      "probe_latency_seconds",
			Help:      "Round-trip latency of eth_blockNumber probes.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	screenerCandidates = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "demo_gateway",
			Subsystem: "market",
			Name:      "candidates",
			Help:      "Number of tickers below the market-cap threshold in the last screen.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		upstreamRequests,
		upstreamDuration,
		rpcReachable,
		rpcProbeLatency,
		screenerCandidates,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
// pathFn maps a request to its route label; nil falls back to canonicalPath.
func InstrumentHandler(next http.Handler, pathFn func(*http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		if pathFn != nil {
			if p := pathFn(r); p != "" {
				path = p
			}
		}
		RecordHTTPRequest(strings.ToUpper(r.Method), path, rec.status, time.Since(start))
	})
}

// RecordHTTPRequest records one handled HTTP request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUpstreamCall records one outbound call. outcome is "ok", "http_error" or "network_error".
func RecordUpstreamCall(upstream, outcome string, duration time.Duration) {
	if upstream == "" {
		upstream = "unknown"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	upstreamRequests.WithLabelValues(upstream, outcome).Inc()
	upstreamDuration.WithLabelValues(upstream).Observe(duration.Seconds())
}

// RecordProbe records the outcome of an RPC latency probe.
func RecordProbe(reachable bool, latency time.Duration) {
	if reachable {
		rpcReachable.Set(1)
	} else {
		rpcReachable.Set(0)
	}
	rpcProbeLatency.Observe(latency.Seconds())
}

// SetScreenerCandidates records how many tickers passed the last market screen.
func SetScreenerCandidates(n int) {
	screenerCandidates.Set(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath keeps the first two path segments so page and API routes stay low-cardinality.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return "/" + strings.Join(parts, "/") + "/"
}
