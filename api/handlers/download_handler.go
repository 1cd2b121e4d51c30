package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/api/middleware"
	"github.com/yourusername/mediagrab-go/internal/app"
	"github.com/yourusername/mediagrab-go/internal/domain"
)

// DownloadHandler handles the download lifecycle of the caller's session
type DownloadHandler struct {
	logger *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		logger: logger,
	}
}

// DownloadVideoRequest represents a request to download a video rendition
type DownloadVideoRequest struct {
	URL     string `json:"url"`
	VideoID string `json:"video_id" binding:"required"`
	AudioID string `json:"audio_id,omitempty"`
	Format  string `json:"format,omitempty"`
	SaveDir string `json:"save_dir,omitempty"`
}

// DownloadAudioRequest represents a request to download an audio rendition
type DownloadAudioRequest struct {
	URL     string `json:"url"`
	AudioID string `json:"audio_id" binding:"required"`
	Format  string `json:"format,omitempty"`
	SaveDir string `json:"save_dir,omitempty"`
}

// DownloadVideo handles POST /download_video
func (h *DownloadHandler) DownloadVideo(c *gin.Context) {
	var req DownloadVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ack, err := middleware.CurrentSession(c).StartVideoDownload(domain.VideoRequest{
		URL:       req.URL,
		VideoID:   req.VideoID,
		AudioID:   req.AudioID,
		Container: req.Format,
		SaveDir:   req.SaveDir,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondAck(c, ack)
}

// DownloadAudio handles POST /download_audio
func (h *DownloadHandler) DownloadAudio(c *gin.Context) {
	var req DownloadAudioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ack, err := middleware.CurrentSession(c).StartAudioDownload(domain.AudioRequest{
		URL:     req.URL,
		AudioID: req.AudioID,
		Format:  req.Format,
		SaveDir: req.SaveDir,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondAck(c, ack)
}

// Progress handles GET /progress
func (h *DownloadHandler) Progress(c *gin.Context) {
	c.JSON(http.StatusOK, app.FormatTable(middleware.CurrentSession(c).Progress()))
}

// Done handles GET /done
func (h *DownloadHandler) Done(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"filename": middleware.CurrentSession(c).Done()})
}

// Cancel handles POST /cancel
func (h *DownloadHandler) Cancel(c *gin.Context) {
	if err := middleware.CurrentSession(c).Cancel(); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "cancellation requested"})
}

func respondAck(c *gin.Context, ack *domain.Ack) {
	status := http.StatusAccepted
	if ack.Status == domain.AckAlreadyDone {
		status = http.StatusOK
	}
	c.JSON(status, ack)
}
