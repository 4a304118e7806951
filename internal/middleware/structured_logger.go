package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Request locals set by handlers and read by the logging and tracing middleware
const (
	LocalSessionID = "session_id"
	LocalProvider  = "provider"
)

// sensitiveQueryParams are query parameters that should be redacted from logs
var sensitiveQueryParams = []string{"token", "api_key", "apikey", "key", "secret", "password"}

// StructuredLoggerConfig holds configuration for structured logging
type StructuredLoggerConfig struct {
	// SkipPaths are paths that should not be logged (e.g., health checks)
	SkipPaths []string
	// SkipSuccessfulRequests skips logging successful requests (2xx status codes)
	SkipSuccessfulRequests bool
	// Logger is the zerolog logger to use (defaults to global log)
	Logger *zerolog.Logger
	// SlowRequestThreshold logs slow requests with WARN level (0 = disabled)
	SlowRequestThreshold time.Duration
}

// DefaultStructuredLoggerConfig returns default configuration
func DefaultStructuredLoggerConfig() StructuredLoggerConfig {
	return StructuredLoggerConfig{
		SkipPaths: []string{
			"/health",
			"/metrics",
		},
		SkipSuccessfulRequests: false,
		Logger:                 nil, // Use global log
		// OCR of a large scan and a provider round trip are expected to be slow
		SlowRequestThreshold: 30 * time.Second,
	}
}

// redactQueryString redacts sensitive query parameters from a query string
func redactQueryString(queryString string) string {
	if queryString == "" {
		return ""
	}

	values, err := url.ParseQuery(queryString)
	if err != nil {
		return "[redacted]"
	}

	for key := range values {
		for _, param := range sensitiveQueryParams {
			if strings.EqualFold(key, param) {
				values.Set(key, "[redacted]")
			}
		}
	}

	return values.Encode()
}

// StructuredLogger returns a middleware that logs one line per request. The
// session and provider a handler served are attached when present, and so is
// the size of uploaded images.
func StructuredLogger(config ...StructuredLoggerConfig) fiber.Handler {
	cfg := DefaultStructuredLoggerConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *fiber.Ctx) error {
		path := c.Path()
		if skip[path] {
			return c.Next()
		}

		start := time.Now()
		requestID := c.Locals("requestid")
		if requestID == nil {
			requestID = c.Get("X-Request-ID", "")
		}

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()
		if cfg.SkipSuccessfulRequests && err == nil && status >= 200 && status < 300 {
			return err
		}

		event := levelFor(&logger, status, err, duration > cfg.SlowRequestThreshold && cfg.SlowRequestThreshold > 0).
			Str("request_id", toString(requestID)).
			Str("method", c.Method()).
			Str("path", path).
			Str("ip", c.IP()).
			Int("status", status).
			Int64("duration_ms", duration.Milliseconds()).
			Str("user_agent", c.Get("User-Agent")).
			Int("response_bytes", len(c.Response().Body()))

		if query := string(c.Request().URI().QueryString()); query != "" {
			event = event.Str("query", redactQueryString(query))
		}
		if sessionID := toString(c.Locals(LocalSessionID)); sessionID != "" {
			event = event.Str("session_id", sessionID)
		}
		if provider := toString(c.Locals(LocalProvider)); provider != "" {
			event = event.Str("provider", provider)
		}
		if c.Method() == fiber.MethodPost && c.Request().Header.ContentLength() > 0 {
			event = event.Int("request_bytes", c.Request().Header.ContentLength())
		}

		event.Msg("HTTP request")
		return err
	}
}

// levelFor picks the log level: errors and 5xx at error, 4xx and slow
// requests at warn, everything else at info
func levelFor(logger *zerolog.Logger, status int, err error, slow bool) *zerolog.Event {
	switch {
	case err != nil:
		return logger.Error().Err(err)
	case status >= 500:
		return logger.Error()
	case status >= 400:
		return logger.Warn()
	case slow:
		return logger.Warn().Bool("slow_request", true)
	default:
		return logger.Info()
	}
}

// toString safely converts interface{} to string
func toString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
