package api

import (
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/api/handlers"
	"github.com/yourusername/mediagrab-go/api/middleware"
	"github.com/yourusername/mediagrab-go/internal/app"
	"github.com/yourusername/mediagrab-go/pkg/logger"
	"github.com/yourusername/mediagrab-go/web"
)

// RouterConfig carries the settings the HTTP layer needs
type RouterConfig struct {
	CookieName       string
	LogsDir          string
	ProgressInterval time.Duration
}

// SetupRouter sets up the HTTP router
func SetupRouter(sessions *app.SessionManager, config RouterConfig, log *zap.Logger, events *logger.MultiLogger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(log, events))
	router.Use(middleware.Recovery(log, events))

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(sessions)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// Log endpoints
	logHandler := handlers.NewLogHandler(config.LogsDir)
	logs := router.Group("/api/v1/logs")
	{
		logs.GET("/categories", logHandler.GetCategories)
		logs.GET("/:category", logHandler.GetLogs)
		logs.GET("/:category/search", logHandler.SearchLogs)
	}

	// Session-bound endpoints
	sessionHandler := handlers.NewSessionHandler(log)
	downloadHandler := handlers.NewDownloadHandler(log)
	progressWS := handlers.NewProgressWebSocketHandler(config.ProgressInterval, log)

	bound := router.Group("/", middleware.Session(sessions, config.CookieName))
	{
		bound.GET("/", serveIndex)
		bound.POST("/fetch", sessionHandler.Fetch)
		bound.GET("/info", sessionHandler.Info)
		bound.POST("/reset", sessionHandler.Reset)
		bound.GET("/state", sessionHandler.State)
		bound.GET("/history", sessionHandler.History)

		bound.POST("/download_video", downloadHandler.DownloadVideo)
		bound.POST("/download_audio", downloadHandler.DownloadAudio)
		bound.GET("/progress", downloadHandler.Progress)
		bound.GET("/progress/ws", progressWS.HandleWebSocket)
		bound.GET("/done", downloadHandler.Done)
		bound.POST("/cancel", downloadHandler.Cancel)
	}

	router.GET("/static/*filepath", func(c *gin.Context) {
		serveFile(c, web.GetStaticFS(), strings.TrimPrefix(c.Param("filepath"), "/"))
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}

// serveIndex serves the single-page UI
func serveIndex(c *gin.Context) {
	serveFile(c, web.GetTemplatesFS(), "index.html")
}

// serveFile serves a file from an embedded filesystem with proper content type
func serveFile(c *gin.Context, files fs.FS, filePath string) {
	file, err := files.Open(filePath)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to read file: %v", err)
		return
	}

	contentType := "application/octet-stream"
	switch path.Ext(filePath) {
	case ".html":
		contentType = "text/html; charset=utf-8"
	case ".css":
		contentType = "text/css; charset=utf-8"
	case ".js":
		contentType = "application/javascript; charset=utf-8"
	case ".svg":
		contentType = "image/svg+xml"
	case ".png":
		contentType = "image/png"
	}

	c.Data(http.StatusOK, contentType, content)
}
