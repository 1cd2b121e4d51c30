package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

// mergePercent is reported while the muxer runs; it gives no granular progress
const mergePercent = 50

// audioCodecs maps an audio output extension to the encoder used to produce it
var audioCodecs = map[string]string{
	"mp3":  "libmp3lame",
	"m4a":  "aac",
	"aac":  "aac",
	"opus": "libopus",
	"ogg":  "libvorbis",
	"flac": "flac",
	"wav":  "pcm_s16le",
}

// AudioCodecFor returns the encoder for an audio extension
func AudioCodecFor(ext string) (string, error) {
	codec, ok := audioCodecs[strings.ToLower(strings.TrimPrefix(ext, "."))]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, ext)
	}
	return codec, nil
}

// MergeCoordinator runs the post-download mux or transcode step
type MergeCoordinator struct {
	muxer  domain.Muxer
	files  *Allocator
	logger *zap.Logger
}

// NewMergeCoordinator creates a new merge coordinator
func NewMergeCoordinator(muxer domain.Muxer, files *Allocator, logger *zap.Logger) *MergeCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MergeCoordinator{muxer: muxer, files: files, logger: logger}
}

// Merge stream-copies video and audio into outputPath
func (m *MergeCoordinator) Merge(ctx context.Context, token *CancelToken, sink *Sink, videoPath, audioPath, outputPath string) error {
	return m.run(ctx, token, sink, domain.MuxRequest{
		Inputs: []string{videoPath, audioPath},
		Output: outputPath,
	})
}

// Transcode re-encodes an audio file into the container named by ext
func (m *MergeCoordinator) Transcode(ctx context.Context, token *CancelToken, sink *Sink, inputPath, outputPath, ext string) error {
	codec, err := AudioCodecFor(ext)
	if err != nil {
		sink.Fail(domain.PhaseMerge, err)
		return err
	}
	return m.run(ctx, token, sink, domain.MuxRequest{
		Inputs:     []string{inputPath},
		Output:     outputPath,
		AudioCodec: codec,
	})
}

func (m *MergeCoordinator) run(ctx context.Context, token *CancelToken, sink *Sink, req domain.MuxRequest) error {
	if token.Cancelled() {
		sink.Cancel(domain.PhaseMerge)
		return domain.ErrDownloadCancelled
	}

	sink.Update(domain.PhaseMerge, domain.PhaseState{Status: domain.PhaseMerging, Percent: mergePercent})

	runCtx, stop := token.Bind(ctx)
	defer stop()

	err := m.muxer.Mux(runCtx, req)
	if err != nil {
		m.Cleanup(req.Output)
		if token.Cancelled() || isCancellation(err) {
			sink.Cancel(domain.PhaseMerge)
			return domain.ErrDownloadCancelled
		}

		var mergeErr *domain.MergeError
		if !errors.As(err, &mergeErr) {
			mergeErr = &domain.MergeError{Err: err}
		}
		sink.Fail(domain.PhaseMerge, mergeErr)
		m.logger.Warn("Merge failed",
			zap.String("output", req.Output),
			zap.Int("exit_code", mergeErr.ExitCode),
			zap.Error(err))
		return mergeErr
	}

	if sink.Complete(domain.PhaseMerge, token) == domain.PhaseCancelled || token.Cancelled() {
		m.Cleanup(req.Output)
		return domain.ErrDownloadCancelled
	}
	return nil
}

// Cleanup removes files along with any partial download leftovers
func (m *MergeCoordinator) Cleanup(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		for _, p := range []string{path, path + ".part", path + ".ytdl"} {
			if err := m.files.Remove(p); err != nil {
				m.logger.Warn("Failed to remove file", zap.String("path", p), zap.Error(err))
			}
		}
	}
}
