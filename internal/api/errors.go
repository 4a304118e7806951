package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/ocrlens/internal/analysis"
	"github.com/fluxbase-eu/ocrlens/internal/middleware"
	"github.com/fluxbase-eu/ocrlens/internal/ocr"
	"github.com/fluxbase-eu/ocrlens/internal/session"
)

// getRequestID extracts the request ID from the Fiber context.
// It first checks the requestid middleware local, then falls back to the X-Request-ID header.
func getRequestID(c *fiber.Ctx) string {
	if requestID := c.Locals("requestid"); requestID != nil {
		if id, ok := requestID.(string); ok && id != "" {
			return id
		}
	}
	return c.Get("X-Request-ID", "")
}

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// SendError sends a standardized error response with request ID
func SendError(c *fiber.Ctx, statusCode int, errMsg string) error {
	return c.Status(statusCode).JSON(ErrorResponse{
		Error:     errMsg,
		RequestID: getRequestID(c),
	})
}

// SendErrorWithCode sends a standardized error response with error code and request ID
func SendErrorWithCode(c *fiber.Ctx, statusCode int, errMsg string, code string) error {
	return c.Status(statusCode).JSON(ErrorResponse{
		Error:     errMsg,
		Code:      code,
		RequestID: getRequestID(c),
	})
}

// handleSessionError maps session, OCR and validation failures to HTTP responses.
// Provider failures never reach here; they are part of the analysis result.
func handleSessionError(c *fiber.Ctx, err error) error {
	var (
		decodeErr     *ocr.DecodeError
		validationErr *analysis.ValidationError
	)

	switch {
	case errors.Is(err, session.ErrNotFound):
		return SendErrorWithCode(c, fiber.StatusNotFound, "Session not found", "SESSION_NOT_FOUND")
	case errors.Is(err, session.ErrTooManySessions):
		return SendErrorWithCode(c, fiber.StatusServiceUnavailable, "Too many active sessions, try again later", "TOO_MANY_SESSIONS")
	case errors.Is(err, session.ErrRateLimited):
		c.Set(fiber.HeaderRetryAfter, "1")
		return SendErrorWithCode(c, fiber.StatusTooManyRequests, "Too many analysis requests for this session", "RATE_LIMITED")
	case errors.As(err, &decodeErr):
		if errors.Is(err, ocr.ErrImageTooLarge) {
			return SendErrorWithCode(c, fiber.StatusRequestEntityTooLarge, decodeErr.Error(), "IMAGE_TOO_LARGE")
		}
		if errors.Is(err, ocr.ErrUnsupportedFormat) {
			return SendErrorWithCode(c, fiber.StatusUnsupportedMediaType, "Only JPEG and PNG images are supported", "UNSUPPORTED_MEDIA_TYPE")
		}
		return SendErrorWithCode(c, fiber.StatusUnprocessableEntity, decodeErr.Error(), "INVALID_IMAGE")
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:     validationErr.Error(),
			Code:      "VALIDATION_ERROR",
			Field:     validationErr.Field,
			RequestID: getRequestID(c),
		})
	case errors.Is(err, ocr.ErrUnavailable):
		return SendErrorWithCode(c, fiber.StatusServiceUnavailable, "OCR is not available on this server", "OCR_UNAVAILABLE")
	}

	middleware.SetSpanError(c, err)
	log.Error().Err(err).
		Str("path", c.Path()).
		Str("request_id", getRequestID(c)).
		Str("trace_id", middleware.GetTraceID(c)).
		Msg("Request failed")
	return SendErrorWithCode(c, fiber.StatusInternalServerError, "Internal Server Error", "INTERNAL_ERROR")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code >= 500 {
		middleware.SetSpanError(c, err)
		log.Error().Err(err).Str("path", c.Path()).Str("trace_id", middleware.GetTraceID(c)).Msg("Server error")
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:     message,
		RequestID: getRequestID(c),
	})
}
