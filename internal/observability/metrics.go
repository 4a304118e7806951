package observability

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for OCRLens. Methods are safe to call
// on a nil *Metrics, which records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestSize      *prometheus.HistogramVec
	httpResponseSize     *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// OCR metrics
	ocrRunsTotal    *prometheus.CounterVec
	ocrDuration     prometheus.Histogram
	ocrUploadsTotal *prometheus.CounterVec

	// Analysis metrics
	analysisTotal     *prometheus.CounterVec
	analysisDuration  *prometheus.HistogramVec
	analysisFallbacks *prometheus.CounterVec

	// Session metrics
	sessionsActive     prometheus.Gauge
	sessionsExpired    prometheus.Counter
	rateLimitHitsTotal *prometheus.CounterVec

	// System metrics
	systemUptime prometheus.Gauge
}

// NewMetrics creates all metrics on the default Prometheus registry
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewMetricsWithRegistry creates all metrics on the given registerer and
// exposes them from the given gatherer
func NewMetricsWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	latencyBuckets := []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

	return &Metrics{
		gatherer: gatherer,

		// HTTP metrics
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocrlens_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ocrlens_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: latencyBuckets,
			},
			[]string{"method", "path", "status"},
		),
		httpRequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ocrlens_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		httpResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ocrlens_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ocrlens_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		// OCR metrics
		ocrRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocrlens_ocr_runs_total",
				Help: "Total number of OCR engine runs",
			},
			[]string{"outcome"},
		),
		ocrDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ocrlens_ocr_duration_seconds",
				Help:    "OCR extraction latency in seconds",
				Buckets: latencyBuckets,
			},
		),
		ocrUploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocrlens_uploads_total",
				Help: "Image uploads by cache outcome",
			},
			[]string{"result"},
		),

		// Analysis metrics
		analysisTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocrlens_analysis_total",
				Help: "Analysis requests by provider, tier and outcome",
			},
			[]string{"provider", "tier", "outcome"},
		),
		analysisDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ocrlens_analysis_duration_seconds",
				Help:    "Provider call latency in seconds",
				Buckets: latencyBuckets,
			},
			[]string{"provider", "tier"},
		),
		analysisFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocrlens_analysis_fallbacks_total",
				Help: "Number of times text generation replaced a chat call",
			},
			[]string{"provider", "reason"},
		),

		// Session metrics
		sessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ocrlens_sessions_active",
				Help: "Number of live sessions",
			},
		),
		sessionsExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ocrlens_sessions_expired_total",
				Help: "Number of sessions removed by the idle sweep",
			},
		),
		rateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocrlens_rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
			[]string{"limiter"},
		),

		// System metrics
		systemUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ocrlens_system_uptime_seconds",
				Help: "System uptime in seconds",
			},
		),
	}
}

// MetricsMiddleware returns a Fiber middleware that collects HTTP metrics
func (m *Metrics) MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Next()
		}

		start := time.Now()
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		// Get request size
		requestSize := len(c.Body())
		path := normalizePath(c.Path())
		method := c.Method()

		// Process request
		err := c.Next()

		// Calculate duration
		duration := time.Since(start).Seconds()
		status := statusClass(c.Response().StatusCode())
		responseSize := len(c.Response().Body())

		// Record metrics
		m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		m.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
		m.httpResponseSize.WithLabelValues(method, path, status).Observe(float64(responseSize))

		return err
	}
}

// RecordOCR records one OCR engine run
func (m *Metrics) RecordOCR(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ocrRunsTotal.WithLabelValues(outcome).Inc()
	m.ocrDuration.Observe(duration.Seconds())
}

// RecordUpload records whether an upload reused the cached text
func (m *Metrics) RecordUpload(reused bool) {
	if m == nil {
		return
	}
	result := "recomputed"
	if reused {
		result = "reused"
	}
	m.ocrUploadsTotal.WithLabelValues(result).Inc()
}

// RecordAnalysis records one analysis outcome. tier is "chat", "fallback" or
// "memo"; outcome is "success", "provider_error" or "validation_error".
func (m *Metrics) RecordAnalysis(provider, tier, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.analysisTotal.WithLabelValues(provider, tier, outcome).Inc()
	if tier != "memo" && outcome != "validation_error" {
		m.analysisDuration.WithLabelValues(provider, tier).Observe(duration.Seconds())
	}
}

// RecordFallback records a switch from chat to text generation
func (m *Metrics) RecordFallback(provider, reason string) {
	if m == nil {
		return
	}
	m.analysisFallbacks.WithLabelValues(provider, reason).Inc()
}

// SetActiveSessions updates the live session gauge
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

// RecordSessionsExpired adds to the expired session counter
func (m *Metrics) RecordSessionsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsExpired.Add(float64(n))
}

// RecordRateLimitHit records a rate limit hit
func (m *Metrics) RecordRateLimitHit(limiterType string) {
	if m == nil {
		return
	}
	m.rateLimitHitsTotal.WithLabelValues(limiterType).Inc()
}

// UpdateUptime updates the system uptime metric
func (m *Metrics) UpdateUptime(startTime time.Time) {
	if m == nil {
		return
	}
	m.systemUptime.Set(time.Since(startTime).Seconds())
}

// Handler returns a Fiber handler that exposes Prometheus metrics
func (m *Metrics) Handler() fiber.Handler {
	if m == nil || m.gatherer == nil {
		return adaptor.HTTPHandler(promhttp.Handler())
	}
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}

// normalizePath replaces session ids with a placeholder so that label
// cardinality stays bounded
func normalizePath(path string) string {
	if path == "" || path == "/" {
		return path
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if _, err := uuid.Parse(seg); err == nil {
			segments[i] = ":id"
		}
	}
	path = strings.Join(segments, "/")

	if len(path) > 80 {
		return "long_path" // Prevent cardinality explosion
	}
	return path
}

// statusClass returns the HTTP status class (2xx, 3xx, 4xx, 5xx)
func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
