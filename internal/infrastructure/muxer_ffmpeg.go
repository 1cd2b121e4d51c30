package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/alessio/shellescape"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

// FFmpegMuxer implements domain.Muxer with the ffmpeg binary
type FFmpegMuxer struct {
	config *domain.MuxerConfig
	logger *zap.Logger
}

// NewFFmpegMuxer creates a new ffmpeg muxer
func NewFFmpegMuxer(config *domain.MuxerConfig, logger *zap.Logger) *FFmpegMuxer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegMuxer{config: config, logger: logger}
}

// Mux runs ffmpeg for req. A non-zero exit is reported as *domain.MergeError.
func (m *FFmpegMuxer) Mux(ctx context.Context, req domain.MuxRequest) error {
	if len(req.Inputs) == 0 {
		return &domain.MergeError{Err: errors.New("no input files")}
	}

	args := BuildMuxArgs(req)
	m.logger.Debug("Running ffmpeg", zap.String("command", shellescape.QuoteCommand(append([]string{m.config.FFmpegBinary}, args...))))

	// ffmpeg output never reaches the logs; stderr is kept only for the error detail
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.config.FFmpegBinary, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		mergeErr := &domain.MergeError{Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			mergeErr.ExitCode = exitErr.ExitCode()
			if detail := lastLine(stderr.String()); detail != "" {
				mergeErr.Err = fmt.Errorf("%s", detail)
			}
		}
		return mergeErr
	}
	return nil
}

// BuildMuxArgs returns the ffmpeg arguments for req. Two inputs are merged as
// first video stream plus first audio stream; a single input with a codec is
// transcoded to audio only.
func BuildMuxArgs(req domain.MuxRequest) []string {
	args := []string{"-y", "-loglevel", "error"}
	for _, input := range req.Inputs {
		args = append(args, "-i", input)
	}

	merge := len(req.Inputs) > 1
	if merge {
		args = append(args, "-map", "0:v:0", "-map", "1:a:0")
	} else if req.AudioCodec != "" {
		args = append(args, "-vn")
	}

	switch {
	case req.AudioCodec == "":
		args = append(args, "-c", "copy")
	case merge:
		args = append(args, "-c:v", "copy", "-c:a", req.AudioCodec)
	default:
		args = append(args, "-c:a", req.AudioCodec)
	}

	return append(args, req.Output)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
