package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SecurityHeadersConfig holds the response headers for the JSON API.
// Empty values are not sent.
type SecurityHeadersConfig struct {
	ContentSecurityPolicy   string
	FrameOptions            string
	ContentTypeOptions      string
	ReferrerPolicy          string
	StrictTransportSecurity string // sent over TLS only

	// NoStorePrefixes lists path prefixes whose responses carry
	// Cache-Control: no-store. Extracted text and analyses live here.
	NoStorePrefixes []string
}

// DefaultSecurityHeadersConfig returns the policy for the JSON API. Nothing
// served here is meant to be rendered by a browser.
func DefaultSecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		ContentSecurityPolicy:   "default-src 'none'; frame-ancestors 'none'",
		FrameOptions:            "DENY",
		ContentTypeOptions:      "nosniff",
		ReferrerPolicy:          "no-referrer",
		StrictTransportSecurity: "max-age=31536000; includeSubDomains",
		NoStorePrefixes:         []string{"/api/v1/sessions"},
	}
}

type headerPair struct {
	name, value string
}

// SecurityHeaders returns a middleware that adds security headers to all responses
func SecurityHeaders(config ...SecurityHeadersConfig) fiber.Handler {
	cfg := DefaultSecurityHeadersConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	var always []headerPair
	for _, h := range []headerPair{
		{"Content-Security-Policy", cfg.ContentSecurityPolicy},
		{"X-Frame-Options", cfg.FrameOptions},
		{"X-Content-Type-Options", cfg.ContentTypeOptions},
		{"Referrer-Policy", cfg.ReferrerPolicy},
	} {
		if h.value != "" {
			always = append(always, h)
		}
	}

	return func(c *fiber.Ctx) error {
		for _, h := range always {
			c.Set(h.name, h.value)
		}
		if cfg.StrictTransportSecurity != "" && c.Protocol() == "https" {
			c.Set("Strict-Transport-Security", cfg.StrictTransportSecurity)
		}

		path := c.Path()
		for _, prefix := range cfg.NoStorePrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Set(fiber.HeaderCacheControl, "no-store")
				break
			}
		}

		return c.Next()
	}
}
