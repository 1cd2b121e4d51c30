package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

// progressInterval is how often yt-dlp progress is delivered to hooks
const progressInterval = 250 * time.Millisecond

// YTDLPExtractor implements domain.Extractor on top of the yt-dlp binary
type YTDLPExtractor struct {
	config *domain.ExtractorConfig
	logger *zap.Logger
}

// NewYTDLPExtractor creates a new yt-dlp extractor
func NewYTDLPExtractor(config *domain.ExtractorConfig, logger *zap.Logger) *YTDLPExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YTDLPExtractor{config: config, logger: logger}
}

// command returns a yt-dlp command with the shared flags applied
func (e *YTDLPExtractor) command() *ytdlp.Command {
	cmd := ytdlp.New().NoPlaylist()
	if e.config.YTDLPBinary != "" {
		cmd = cmd.SetExecutable(e.config.YTDLPBinary)
	}
	if e.config.CookieFile != "" && fileExists(e.config.CookieFile) {
		cmd = cmd.Cookies(e.config.CookieFile)
	}
	return cmd
}

// Probe fetches metadata and the format list without downloading
func (e *YTDLPExtractor) Probe(ctx context.Context, url string) (*domain.RawProbe, error) {
	e.logger.Debug("Running yt-dlp probe", zap.String("url", url))

	result, err := e.command().DumpSingleJSON().SkipDownload().Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp failed: %s", stderrDetail(result, err))
	}

	probe, err := parseProbe([]byte(result.Stdout))
	if err != nil {
		return nil, err
	}
	return probe, nil
}

// Download fetches exactly one rendition to req.Destination
func (e *YTDLPExtractor) Download(ctx context.Context, req domain.DownloadRequest, hook domain.ProgressHook) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		hookMu  sync.Mutex
		hookErr error
	)
	stop := func(err error) {
		hookMu.Lock()
		defer hookMu.Unlock()
		if hookErr == nil {
			hookErr = err
			cancel()
		}
	}
	stopped := func() error {
		hookMu.Lock()
		defer hookMu.Unlock()
		return hookErr
	}

	cmd := e.command().
		Format(req.RenditionID).
		Output(outputTemplate(req.Destination)).
		ForceOverwrites().
		ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			if stopped() != nil {
				return
			}
			if err := hook(progressEvent(update, time.Now())); err != nil {
				stop(err)
			}
		})

	e.logger.Debug("Running yt-dlp download",
		zap.String("url", req.URL),
		zap.String("format", req.RenditionID),
		zap.String("output", req.Destination))

	result, err := cmd.Run(runCtx, req.URL)
	if hookErr := stopped(); hookErr != nil {
		return hookErr
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("yt-dlp failed: %s", stderrDetail(result, err))
	}

	// yt-dlp reports nothing for files it found complete on disk
	return hook(domain.ProgressEvent{Finished: true})
}

// progressEvent converts a yt-dlp progress update into a domain event
func progressEvent(update ytdlp.ProgressUpdate, now time.Time) domain.ProgressEvent {
	event := domain.ProgressEvent{
		Finished:        update.Status == ytdlp.ProgressStatusFinished,
		DownloadedBytes: int64(update.DownloadedBytes),
		TotalBytes:      int64(update.TotalBytes),
	}

	// fragmented streams only know their size once every fragment is in
	if event.TotalBytes <= 0 && update.FragmentCount > 0 && update.FragmentIndex > 0 && event.DownloadedBytes > 0 {
		event.TotalBytes = event.DownloadedBytes * int64(update.FragmentCount) / int64(update.FragmentIndex)
		event.TotalIsEstimate = true
	}

	if !update.Started.IsZero() {
		if elapsed := now.Sub(update.Started).Seconds(); elapsed > 0 {
			event.SpeedBytesPerSec = float64(event.DownloadedBytes) / elapsed
		}
	}
	if event.SpeedBytesPerSec > 0 && event.TotalBytes > event.DownloadedBytes {
		remaining := float64(event.TotalBytes-event.DownloadedBytes) / event.SpeedBytesPerSec
		event.ETA = time.Duration(remaining * float64(time.Second))
	}
	return event
}

// probeJSON is the subset of yt-dlp's info dict the catalog needs. Codecs stay
// raw strings: "none" marks an absent stream, a missing key an unreported one.
type probeJSON struct {
	Title     string       `json:"title"`
	Thumbnail string       `json:"thumbnail"`
	Formats   []formatJSON `json:"formats"`
}

type formatJSON struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	VCodec         *string  `json:"vcodec"`
	ACodec         *string  `json:"acodec"`
	Height         *float64 `json:"height"`
	Resolution     string   `json:"resolution"`
	FormatNote     string   `json:"format_note"`
	ABR            *float64 `json:"abr"`
	TBR            *float64 `json:"tbr"`
	FPS            *float64 `json:"fps"`
	Filesize       *float64 `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
}

// parseProbe decodes yt-dlp --dump-single-json output
func parseProbe(data []byte) (*domain.RawProbe, error) {
	var info probeJSON
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp metadata: %w", err)
	}

	probe := &domain.RawProbe{
		Title:     info.Title,
		Thumbnail: info.Thumbnail,
		Formats:   make([]domain.RawFormat, 0, len(info.Formats)),
	}
	for _, f := range info.Formats {
		probe.Formats = append(probe.Formats, domain.RawFormat{
			ID:             f.FormatID,
			Ext:            f.Ext,
			VideoCodec:     deref(f.VCodec),
			AudioCodec:     deref(f.ACodec),
			Height:         int(derefFloat(f.Height)),
			Resolution:     f.Resolution,
			FormatNote:     f.FormatNote,
			AudioBitrate:   derefFloat(f.ABR),
			TotalBitrate:   derefFloat(f.TBR),
			FPS:            f.FPS,
			Filesize:       toInt64(f.Filesize),
			FilesizeApprox: toInt64(f.FilesizeApprox),
		})
	}
	return probe, nil
}

// outputTemplate escapes a literal path for yt-dlp's -o template syntax
func outputTemplate(path string) string {
	return strings.ReplaceAll(path, "%", "%%")
}

// stderrDetail returns the last yt-dlp error line, falling back to err
func stderrDetail(result *ytdlp.Result, err error) string {
	if result != nil {
		lines := strings.Split(strings.TrimSpace(result.Stderr), "\n")
		for i := len(lines) - 1; i >= 0; i-- {
			if line := strings.TrimSpace(lines[i]); line != "" {
				return strings.TrimPrefix(line, "ERROR: ")
			}
		}
	}
	if err == nil {
		err = errors.New("unknown error")
	}
	return err.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func toInt64(f *float64) *int64 {
	if f == nil {
		return nil
	}
	v := int64(math.Round(*f))
	return &v
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
