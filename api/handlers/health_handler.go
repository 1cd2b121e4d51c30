package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/mediagrab-go/internal/app"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	sessions *app.SessionManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(sessions *app.SessionManager) *HealthHandler {
	return &HealthHandler{
		sessions: sessions,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Sessions struct {
		Active  int  `json:"active"`
		Sweeper bool `json:"sweeper_running"`
	} `json:"sessions"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: Version,
	}
	response.Sessions.Active = h.sessions.Len()
	response.Sessions.Sweeper = h.sessions.IsRunning()

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.sessions.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "session manager not running",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
