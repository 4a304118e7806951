package middleware

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStructuredLoggerConfig(t *testing.T) {
	cfg := DefaultStructuredLoggerConfig()

	assert.ElementsMatch(t, []string{"/health", "/metrics"}, cfg.SkipPaths)
	assert.False(t, cfg.SkipSuccessfulRequests)
	assert.Nil(t, cfg.Logger)
	assert.Equal(t, 30*time.Second, cfg.SlowRequestThreshold)
}

func TestRedactQueryString(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    []string
		notExpected []string
	}{
		{
			name:  "empty string",
			input: "",
		},
		{
			name:     "no sensitive params",
			input:    "task=summary&limit=10",
			expected: []string{"task=summary", "limit=10"},
		},
		{
			name:        "api key redacted",
			input:       "api_key=gsk_secret&model=llama",
			expected:    []string{"api_key=%5Bredacted%5D", "model=llama"},
			notExpected: []string{"gsk_secret"},
		},
		{
			name:        "case insensitive",
			input:       "Token=abc123",
			expected:    []string{"Token=%5Bredacted%5D"},
			notExpected: []string{"abc123"},
		},
		{
			name:        "unparseable",
			input:       "%zz",
			expected:    []string{"[redacted]"},
			notExpected: []string{"%zz"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := redactQueryString(tt.input)
			if tt.input == "" {
				assert.Empty(t, result)
				return
			}
			for _, s := range tt.expected {
				assert.Contains(t, result, s)
			}
			for _, s := range tt.notExpected {
				assert.NotContains(t, result, s)
			}
		})
	}
}

func TestToString(t *testing.T) {
	assert.Equal(t, "", toString(nil))
	assert.Equal(t, "abc", toString("abc"))
	assert.Equal(t, "", toString(42))
}

func newLoggedApp(buf *bytes.Buffer, cfg StructuredLoggerConfig) *fiber.App {
	logger := zerolog.New(buf)
	cfg.Logger = &logger

	app := fiber.New()
	app.Use(StructuredLogger(cfg))
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	app.Get("/sessions/:id", func(c *fiber.Ctx) error {
		c.Locals(LocalSessionID, c.Params("id"))
		return c.SendString("OK")
	})
	app.Post("/sessions/:id/analyze", func(c *fiber.Ctx) error {
		c.Locals(LocalSessionID, c.Params("id"))
		c.Locals(LocalProvider, "huggingface")
		return c.SendString("OK")
	})
	app.Get("/status/:code", func(c *fiber.Ctx) error {
		code, _ := c.ParamsInt("code")
		return c.SendStatus(code)
	})
	app.Get("/fail", func(c *fiber.Ctx) error {
		return errors.New("handler exploded")
	})
	return app
}

func TestStructuredLogger_SkipPaths(t *testing.T) {
	var buf bytes.Buffer
	app := newLoggedApp(&buf, StructuredLoggerConfig{SkipPaths: []string{"/health"}})

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Empty(t, buf.String())
}

func TestStructuredLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	app := newLoggedApp(&buf, StructuredLoggerConfig{})

	req := httptest.NewRequest("GET", "/sessions/abc-123?api_key=hf_secret", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-42"`)
	assert.Contains(t, out, `"session_id":"abc-123"`)
	assert.Contains(t, out, `"status":200`)
	assert.Contains(t, out, `"level":"info"`)
	assert.NotContains(t, out, "hf_secret")
}

func TestStructuredLogger_AnalyzeFields(t *testing.T) {
	var buf bytes.Buffer
	app := newLoggedApp(&buf, StructuredLoggerConfig{})

	req := httptest.NewRequest("POST", "/sessions/abc-123/analyze", strings.NewReader(`{"provider":"hf"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	out := buf.String()
	assert.Contains(t, out, `"provider":"huggingface"`)
	assert.Contains(t, out, `"request_bytes":17`)
	assert.Contains(t, out, `"session_id":"abc-123"`)
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
		slow   bool
		want   string
	}{
		{"success", 200, nil, false, "info"},
		{"slow success", 200, nil, true, "warn"},
		{"client error", 415, nil, false, "warn"},
		{"server error", 503, nil, false, "error"},
		{"handler error", 200, errors.New("boom"), false, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)
			levelFor(&logger, tt.status, tt.err, tt.slow).Msg("x")
			assert.Contains(t, buf.String(), `"level":"`+tt.want+`"`)
		})
	}
}

func TestStructuredLogger_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantLevel  string
		wantStatus int
	}{
		{"2xx success", "/status/204", "info", 204},
		{"4xx client error", "/status/422", "warn", 422},
		{"5xx server error", "/status/503", "error", 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			app := newLoggedApp(&buf, StructuredLoggerConfig{})

			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, buf.String(), `"level":"`+tt.wantLevel+`"`)
		})
	}
}

func TestStructuredLogger_SkipSuccessfulRequests(t *testing.T) {
	var buf bytes.Buffer
	app := newLoggedApp(&buf, StructuredLoggerConfig{SkipSuccessfulRequests: true})

	_, err := app.Test(httptest.NewRequest("GET", "/status/200", nil))
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	_, err = app.Test(httptest.NewRequest("GET", "/status/404", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(buf.String(), "HTTP request"))
}

func TestStructuredLogger_HandlerError(t *testing.T) {
	var buf bytes.Buffer
	app := newLoggedApp(&buf, StructuredLoggerConfig{})

	resp, err := app.Test(httptest.NewRequest("GET", "/fail", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.Contains(t, buf.String(), "handler exploded")
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func BenchmarkRedactQueryString_WithSensitive(b *testing.B) {
	for i := 0; i < b.N; i++ {
		redactQueryString("task=summary&api_key=gsk_abc&model=llama")
	}
}
