package api

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/ocrlens/internal/ocr"
)

func TestMonitoringHandler_GetHealth(t *testing.T) {
	t.Run("ok when OCR is available", func(t *testing.T) {
		env := newTestEnv(t)
		env.createSession(t)

		resp, body := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, float64(1), body["sessions"])

		services := body["services"].(map[string]interface{})
		assert.Equal(t, true, services["ocr"])
		assert.Equal(t, true, services["groq"])
		assert.Equal(t, false, services["huggingface"])
	})

	t.Run("degraded without OCR", func(t *testing.T) {
		env := newTestEnv(t)
		env.server.components.OCR = ocr.NewServiceWithProvider(nil, nil, 0)

		resp, body := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "degraded", body["status"])
	})
}

func TestMonitoringHandler_GetSystem(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/system", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, runtime.Version(), body["go_version"])
	assert.Contains(t, body, "active_sessions")
	assert.Contains(t, body, "memory_alloc_mb")
}
