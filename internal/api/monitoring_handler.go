package api

import (
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/fluxbase-eu/ocrlens/internal/app"
	"github.com/fluxbase-eu/ocrlens/internal/session"
)

// MonitoringHandler serves health and runtime information
type MonitoringHandler struct {
	components *app.Components
	sessions   *session.Manager
	startTime  time.Time
}

// NewMonitoringHandler creates a new monitoring handler
func NewMonitoringHandler(components *app.Components, sessions *session.Manager, startTime time.Time) *MonitoringHandler {
	return &MonitoringHandler{
		components: components,
		sessions:   sessions,
		startTime:  startTime,
	}
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string          `json:"status"` // "ok" or "degraded"
	Services  map[string]bool `json:"services"`
	Sessions  int             `json:"sessions"`
	Timestamp time.Time       `json:"timestamp"`
}

// SystemMetrics is returned by GET /api/v1/system
type SystemMetrics struct {
	Uptime       int64  `json:"uptime_seconds"`
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`

	MemoryAllocMB uint64 `json:"memory_alloc_mb"`
	MemorySysMB   uint64 `json:"memory_sys_mb"`
	NumGC         uint32 `json:"num_gc"`

	HostMemoryTotalMB     uint64  `json:"host_memory_total_mb,omitempty"`
	HostMemoryAvailableMB uint64  `json:"host_memory_available_mb,omitempty"`
	HostMemoryUsedPercent float64 `json:"host_memory_used_percent,omitempty"`

	ActiveSessions int `json:"active_sessions"`
}

// GetHealth handles GET /health. The server is degraded when OCR is
// unavailable, since no text can enter a session.
func (h *MonitoringHandler) GetHealth(c *fiber.Ctx) error {
	ocrEnabled := h.components.OCR != nil && h.components.OCR.IsEnabled()

	services := map[string]bool{"ocr": ocrEnabled}
	for provider, key := range h.components.APIKeys {
		services[string(provider)] = key != ""
	}

	status := "ok"
	httpStatus := fiber.StatusOK
	if !ocrEnabled {
		status = "degraded"
		httpStatus = fiber.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(HealthResponse{
		Status:    status,
		Services:  services,
		Sessions:  h.sessions.Len(),
		Timestamp: time.Now().UTC(),
	})
}

// GetSystem handles GET /api/v1/system
func (h *MonitoringHandler) GetSystem(c *fiber.Ctx) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	metrics := SystemMetrics{
		Uptime:         int64(time.Since(h.startTime).Seconds()),
		GoVersion:      runtime.Version(),
		NumGoroutine:   runtime.NumGoroutine(),
		MemoryAllocMB:  m.Alloc / 1024 / 1024,
		MemorySysMB:    m.Sys / 1024 / 1024,
		NumGC:          m.NumGC,
		ActiveSessions: h.sessions.Len(),
	}

	// OCR buffers decoded images in memory; host headroom matters for large scans
	if vmStat, err := mem.VirtualMemory(); err == nil {
		metrics.HostMemoryTotalMB = vmStat.Total / 1024 / 1024
		metrics.HostMemoryAvailableMB = vmStat.Available / 1024 / 1024
		metrics.HostMemoryUsedPercent = vmStat.UsedPercent
	} else {
		log.Debug().Err(err).Msg("Host memory stats unavailable")
	}

	h.components.Metrics.UpdateUptime(h.startTime)

	return c.JSON(metrics)
}
