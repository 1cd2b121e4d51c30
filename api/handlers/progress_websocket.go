package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/api/middleware"
	"github.com/yourusername/mediagrab-go/internal/app"
	"github.com/yourusername/mediagrab-go/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the page and the socket are served from the same local server
	},
}

// ProgressMessage is one frame of the progress stream
type ProgressMessage struct {
	State    domain.SessionState `json:"state"`
	JobID    string              `json:"job_id,omitempty"`
	Filename string              `json:"filename,omitempty"`
	Error    string              `json:"error,omitempty"`
	Progress app.ProgressView    `json:"progress"`
}

// ProgressWebSocketHandler streams a session's progress over a WebSocket
type ProgressWebSocketHandler struct {
	logger       *zap.Logger
	interval     time.Duration
	pingInterval time.Duration
}

// NewProgressWebSocketHandler creates a handler that samples progress every interval
func NewProgressWebSocketHandler(interval time.Duration, log *zap.Logger) *ProgressWebSocketHandler {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &ProgressWebSocketHandler{
		logger:       log,
		interval:     interval,
		pingInterval: 30 * time.Second,
	}
}

// HandleWebSocket handles GET /progress/ws. A frame is sent on connect and
// whenever the snapshot changes.
func (h *ProgressWebSocketHandler) HandleWebSocket(c *gin.Context) {
	session := middleware.CurrentSession(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("Progress client connected",
		zap.String("session_id", session.ID()),
		zap.String("remote_addr", c.Request.RemoteAddr))

	// Read messages from client (for close and pong frames)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	var last []byte
	send := func() bool {
		data, err := json.Marshal(progressMessage(session))
		if err != nil {
			h.logger.Error("Failed to marshal progress", zap.Error(err))
			return true
		}
		if bytes.Equal(data, last) {
			return true
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("Progress client gone", zap.Error(err))
			return false
		}
		last = data
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-ticker.C:
			if !send() {
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func progressMessage(session *app.Session) ProgressMessage {
	view := session.View()
	return ProgressMessage{
		State:    view.State,
		JobID:    view.JobID,
		Filename: view.Filename,
		Error:    view.Error,
		Progress: app.FormatTable(session.Progress()),
	}
}
