package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/memory/v2"
	"github.com/rs/zerolog/log"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	Name       string                  // Limiter name used in logs and metrics
	Max        int                     // Maximum number of requests
	Expiration time.Duration           // Time window for the rate limit
	KeyFunc    func(*fiber.Ctx) string // Function to generate the key for rate limiting
	Message    string                  // Custom error message
	OnLimit    func(name string)       // Called whenever a request is rejected
}

// NewRateLimiter creates a new rate limiter middleware with custom configuration
func NewRateLimiter(config RateLimiterConfig) fiber.Handler {
	// Use in-memory storage; the service keeps no state across restarts
	storage := memory.New(memory.Config{
		GCInterval: 10 * time.Minute,
	})

	// Default key function uses IP address
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *fiber.Ctx) string {
			return c.IP()
		}
	}

	// Default error message
	if config.Message == "" {
		config.Message = fmt.Sprintf("Rate limit exceeded. Maximum %d requests per %s allowed.",
			config.Max, config.Expiration.String())
	}

	return limiter.New(limiter.Config{
		Max:          config.Max,
		Expiration:   config.Expiration,
		KeyGenerator: config.KeyFunc,
		LimitReached: func(c *fiber.Ctx) error {
			log.Warn().
				Str("limiter", config.Name).
				Str("ip", c.IP()).
				Str("path", c.Path()).
				Msg("Rate limit exceeded")
			if config.OnLimit != nil {
				config.OnLimit(config.Name)
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Rate limit exceeded",
				"message":     config.Message,
				"retry_after": int(config.Expiration.Seconds()),
			})
		},
		Storage: storage,
	})
}

// UploadLimiter limits image uploads per IP. OCR is the most expensive
// operation the service exposes.
func UploadLimiter(perMinute int, onLimit func(string)) fiber.Handler {
	return NewRateLimiter(RateLimiterConfig{
		Name:       "upload",
		Max:        perMinute,
		Expiration: 1 * time.Minute,
		KeyFunc: func(c *fiber.Ctx) string {
			return "upload:" + c.IP()
		},
		Message: fmt.Sprintf("Too many image uploads. Maximum %d per minute allowed.", perMinute),
		OnLimit: onLimit,
	})
}
