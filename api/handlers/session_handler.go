package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/api/middleware"
	"github.com/yourusername/mediagrab-go/internal/app"
	"github.com/yourusername/mediagrab-go/internal/domain"
)

// SessionHandler handles media info and session state requests
type SessionHandler struct {
	logger *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		logger: logger,
	}
}

// FetchRequest represents a request to probe a URL
type FetchRequest struct {
	URL string `json:"url" binding:"required"`
}

// Fetch handles POST /fetch
func (h *SessionHandler) Fetch(c *gin.Context) {
	var req FetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := middleware.CurrentSession(c).Fetch(c.Request.Context(), req.URL)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Info handles GET /info
func (h *SessionHandler) Info(c *gin.Context) {
	info := middleware.CurrentSession(c).Info()
	if info == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrNoCatalog.Error()})
		return
	}

	c.JSON(http.StatusOK, info)
}

// Reset handles POST /reset
func (h *SessionHandler) Reset(c *gin.Context) {
	middleware.CurrentSession(c).Reset()
	c.JSON(http.StatusOK, gin.H{"message": "session reset"})
}

// State handles GET /state
func (h *SessionHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentSession(c).View())
}

// History handles GET /history
func (h *SessionHandler) History(c *gin.Context) {
	records, err := middleware.CurrentSession(c).History()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if records == nil {
		records = []*domain.JobRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(records),
		"jobs":  records,
	})
}

// respondError maps session errors onto HTTP status codes
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case app.IsClientError(err):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNothingToCancel),
		errors.Is(err, domain.ErrDownloadCancelled):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrProbeFailed):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		log.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
