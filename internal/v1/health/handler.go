package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler serves the ambient health endpoints. VoiceSync has no external
// dependencies to probe (no database, no SFU), so this is a liveness-only
// handler keyed off process start time.
type Handler struct {
	startedAt time.Time
}

// NewHandler creates a new health check handler.
func NewHandler() *Handler {
	return &Handler{startedAt: time.Now()}
}

// HealthResponse is returned by GET /health. Uptime is in seconds.
type HealthResponse struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.startedAt).Seconds(),
	})
}

// Ping handles GET /ping.
func (h *Handler) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}
