package domain

import (
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Extractor    ExtractorConfig    `mapstructure:"extractor"`
	Muxer        MuxerConfig        `mapstructure:"muxer"`
	Session      SessionConfig      `mapstructure:"session"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	BaseDir        string `mapstructure:"base_dir"`
	VideoContainer string `mapstructure:"video_container"` // default container for merged video
}

// OutputDir returns the directory finished files are written to
func (c DownloadConfig) OutputDir() string {
	return filepath.Join(c.BaseDir, "completed")
}

// TempDir returns the directory holding per-job intermediate streams
func (c DownloadConfig) TempDir() string {
	return filepath.Join(c.BaseDir, "incoming")
}

// LogsDir returns the directory for categorised log files
func (c DownloadConfig) LogsDir() string {
	return filepath.Join(c.BaseDir, "logs")
}

// ExtractorConfig contains yt-dlp configuration
type ExtractorConfig struct {
	YTDLPBinary string `mapstructure:"ytdlp_binary"`
	CookieFile  string `mapstructure:"cookie_file"`
}

// MuxerConfig contains ffmpeg configuration
type MuxerConfig struct {
	FFmpegBinary string `mapstructure:"ffmpeg_binary"`
}

// SessionConfig contains browser session configuration
type SessionConfig struct {
	CookieName    string        `mapstructure:"cookie_name"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 5000,
		},
		Download: DownloadConfig{
			BaseDir:        "$HOME/Downloads/mediagrab",
			VideoContainer: "mp4",
		},
		Extractor: ExtractorConfig{
			YTDLPBinary: "yt-dlp",
			CookieFile:  "",
		},
		Muxer: MuxerConfig{
			FFmpegBinary: "ffmpeg",
		},
		Session: SessionConfig{
			CookieName:    "mediagrab_session",
			IdleTimeout:   2 * time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
