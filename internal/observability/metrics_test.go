package observability

import (
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewMetricsWithRegistry(reg, reg)
}

func TestStatusClass(t *testing.T) {
	testCases := []struct {
		status   int
		expected string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{400, "4xx"},
		{404, "4xx"},
		{422, "4xx"},
		{429, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
		{100, "unknown"},
		{0, "unknown"},
		{600, "5xx"}, // >= 500 returns 5xx
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("status_%d", tc.status), func(t *testing.T) {
			assert.Equal(t, tc.expected, statusClass(tc.status))
		})
	}
}

func TestNormalizePath(t *testing.T) {
	t.Run("returns path unchanged for short paths", func(t *testing.T) {
		assert.Equal(t, "/api/v1/catalog", normalizePath("/api/v1/catalog"))
	})

	t.Run("replaces session ids", func(t *testing.T) {
		result := normalizePath("/api/v1/sessions/6f1c7c9e-3a52-4f0e-9f8b-2d8c1c4f5a10/analyze")
		assert.Equal(t, "/api/v1/sessions/:id/analyze", result)
	})

	t.Run("returns long_path for very long paths", func(t *testing.T) {
		longPath := "/" + strings.Repeat("segment/", 12)
		assert.Equal(t, "long_path", normalizePath(longPath))
	})

	t.Run("handles empty and root paths", func(t *testing.T) {
		assert.Equal(t, "", normalizePath(""))
		assert.Equal(t, "/", normalizePath("/"))
	})
}

func TestMetrics_Recorders(t *testing.T) {
	m := newTestMetrics()

	m.RecordOCR("success", 20*time.Millisecond)
	m.RecordOCR("decode_error", time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ocrRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ocrRunsTotal.WithLabelValues("decode_error")))

	m.RecordUpload(true)
	m.RecordUpload(true)
	m.RecordUpload(false)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ocrUploadsTotal.WithLabelValues("reused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ocrUploadsTotal.WithLabelValues("recomputed")))

	m.RecordAnalysis("huggingface", "fallback", "success", time.Second)
	m.RecordAnalysis("groq", "memo", "success", 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analysisTotal.WithLabelValues("huggingface", "fallback", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analysisTotal.WithLabelValues("groq", "memo", "success")))

	m.RecordFallback("huggingface", "chat_failed")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analysisFallbacks.WithLabelValues("huggingface", "chat_failed")))

	m.SetActiveSessions(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sessionsActive))

	m.RecordSessionsExpired(2)
	m.RecordSessionsExpired(0)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsExpired))

	m.RecordRateLimitHit("analyze")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimitHitsTotal.WithLabelValues("analyze")))

	m.UpdateUptime(time.Now().Add(-time.Minute))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.systemUptime), 60.0)
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordOCR("success", time.Millisecond)
		m.RecordUpload(false)
		m.RecordAnalysis("groq", "chat", "success", time.Millisecond)
		m.RecordFallback("huggingface", "unsupported")
		m.SetActiveSessions(1)
		m.RecordSessionsExpired(1)
		m.RecordRateLimitHit("analyze")
		m.UpdateUptime(time.Now())
	})
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	m := newTestMetrics()

	app := fiber.New()
	app.Use(m.MetricsMiddleware())
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	app.Get("/metrics", m.Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/ping", "2xx")))

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ocrlens_http_requests_total")
}
