package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/ocrlens/internal/ai"
	"github.com/fluxbase-eu/ocrlens/internal/analysis"
	"github.com/fluxbase-eu/ocrlens/internal/app"
	"github.com/fluxbase-eu/ocrlens/internal/config"
	"github.com/fluxbase-eu/ocrlens/internal/middleware"
	"github.com/fluxbase-eu/ocrlens/internal/session"
)

// sniffLen is the number of leading bytes inspected to classify an upload
const sniffLen = 512

// SessionHandler serves the upload and analysis flow of a session
type SessionHandler struct {
	sessions   *session.Manager
	components *app.Components
	defaults   config.AnalysisConfig
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *session.Manager, components *app.Components, defaults config.AnalysisConfig) *SessionHandler {
	return &SessionHandler{
		sessions:   sessions,
		components: components,
		defaults:   defaults,
	}
}

// SessionResponse describes a session
type SessionResponse struct {
	ID          string    `json:"id"`
	State       string    `json:"state"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	TextLength  int       `json:"text_length"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsed    time.Time `json:"last_used"`
}

// TextResponse is the cached OCR text of a session
type TextResponse struct {
	State       string `json:"state"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Text        string `json:"text"`
}

// UploadResponse is returned after an image upload
type UploadResponse struct {
	Fingerprint string `json:"fingerprint"`
	Text        string `json:"text"`
	Reused      bool   `json:"reused"`
}

// AnalyzeRequest holds the analysis form. Omitted fields take the configured defaults.
type AnalyzeRequest struct {
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Task        string   `json:"task"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
}

// AnalyzeResponse carries either the analysis text or the provider error message
type AnalyzeResponse struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Task       string `json:"task"`
	Tier       string `json:"tier,omitempty"`
	Text       string `json:"text,omitempty"`
	Error      string `json:"error,omitempty"`
	Display    string `json:"display"`
	DurationMS int64  `json:"duration_ms"`
}

func toSessionResponse(s *session.Session) SessionResponse {
	resp := SessionResponse{
		ID:         s.ID(),
		State:      s.State().String(),
		TextLength: len(s.Text()),
		CreatedAt:  s.CreatedAt(),
		LastUsed:   s.LastUsed(),
	}
	if fp, ok := s.Fingerprint(); ok {
		resp.Fingerprint = fp.String()
	}
	return resp
}

// lookup resolves the :id parameter and tags the request with it
func (h *SessionHandler) lookup(c *fiber.Ctx) (*session.Session, error) {
	id := c.Params("id")
	c.Locals(middleware.LocalSessionID, id)
	return h.sessions.Get(id)
}

// CreateSession handles POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	s, err := h.sessions.Create()
	if err != nil {
		return handleSessionError(c, err)
	}
	c.Locals(middleware.LocalSessionID, s.ID())
	return c.Status(fiber.StatusCreated).JSON(toSessionResponse(s))
}

// GetSession handles GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	s, err := h.lookup(c)
	if err != nil {
		return handleSessionError(c, err)
	}
	return c.JSON(toSessionResponse(s))
}

// DeleteSession handles DELETE /api/v1/sessions/:id
func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	c.Locals(middleware.LocalSessionID, c.Params("id"))
	if err := h.sessions.Delete(c.Params("id")); err != nil {
		return handleSessionError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetText handles GET /api/v1/sessions/:id/text
func (h *SessionHandler) GetText(c *fiber.Ctx) error {
	s, err := h.lookup(c)
	if err != nil {
		return handleSessionError(c, err)
	}
	resp := TextResponse{State: s.State().String(), Text: s.Text()}
	if fp, ok := s.Fingerprint(); ok {
		resp.Fingerprint = fp.String()
	}
	return c.JSON(resp)
}

// UploadImage handles POST /api/v1/sessions/:id/image with a multipart "file" field
func (h *SessionHandler) UploadImage(c *fiber.Ctx) error {
	s, err := h.lookup(c)
	if err != nil {
		return handleSessionError(c, err)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return SendErrorWithCode(c, fiber.StatusBadRequest, "file is required", "FILE_REQUIRED")
	}

	src, err := file.Open()
	if err != nil {
		return SendError(c, fiber.StatusInternalServerError, "failed to open uploaded file")
	}
	defer func() { _ = src.Close() }()

	// Content sniffing rejects non-images before any hashing or decoding
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return SendError(c, fiber.StatusInternalServerError, "failed to read uploaded file")
	}
	contentType := http.DetectContentType(head[:n])
	if contentType != "image/jpeg" && contentType != "image/png" {
		log.Debug().Str("content_type", contentType).Str("filename", file.Filename).Msg("Rejected upload")
		h.components.Metrics.RecordOCR("rejected", 0)
		return SendErrorWithCode(c, fiber.StatusUnsupportedMediaType, "Only JPEG and PNG images are supported", "UNSUPPORTED_MEDIA_TYPE")
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return SendError(c, fiber.StatusInternalServerError, "failed to read uploaded file")
	}

	outcome, err := s.UploadFrom(c.UserContext(), src)
	if err != nil {
		return handleSessionError(c, err)
	}

	return c.JSON(UploadResponse{
		Fingerprint: outcome.Fingerprint.String(),
		Text:        outcome.Text,
		Reused:      outcome.Reused,
	})
}

// Analyze handles POST /api/v1/sessions/:id/analyze
func (h *SessionHandler) Analyze(c *fiber.Ctx) error {
	s, err := h.lookup(c)
	if err != nil {
		return handleSessionError(c, err)
	}

	var req AnalyzeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return SendErrorWithCode(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_BODY")
		}
	}

	params, err := h.params(req)
	if err != nil {
		return handleSessionError(c, err)
	}
	c.Locals(middleware.LocalProvider, string(params.Provider))

	result, err := s.Analyze(c.UserContext(), params)
	if err != nil {
		return handleSessionError(c, err)
	}

	return c.JSON(AnalyzeResponse{
		Provider:   string(result.Provider),
		Model:      result.Model,
		Task:       string(params.Task),
		Tier:       string(result.Tier),
		Text:       result.Text,
		Error:      result.Error,
		Display:    result.Display(),
		DurationMS: result.Duration.Milliseconds(),
	})
}

// params applies the form defaults to a request
func (h *SessionHandler) params(req AnalyzeRequest) (session.AnalyzeParams, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = h.defaults.DefaultProvider
	}
	provider, err := ai.ParseProviderType(providerName)
	if err != nil {
		return session.AnalyzeParams{}, &analysis.ValidationError{Field: "provider", Message: err.Error()}
	}

	task := analysis.Task(req.Task)
	if task == "" {
		task = analysis.Task(h.defaults.DefaultTask)
	}

	params := session.AnalyzeParams{
		Provider:    provider,
		Model:       h.components.ResolveModel(provider, req.Model),
		Task:        task,
		Temperature: h.defaults.Temperature,
		MaxTokens:   h.defaults.MaxTokens,
	}
	if req.Temperature != nil {
		params.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		params.MaxTokens = *req.MaxTokens
	}
	return params, nil
}
