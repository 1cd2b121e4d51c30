package app

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

// Runner drives extractor downloads and reports their progress into a sink
type Runner struct {
	extractor domain.Extractor
	logger    *zap.Logger
}

// NewRunner creates a new runner
func NewRunner(extractor domain.Extractor, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{extractor: extractor, logger: logger}
}

// RunSingle downloads one rendition to dest while reporting on phase.
// It returns nil, an error matching domain.ErrDownloadCancelled, or a *domain.DownloadError.
func (r *Runner) RunSingle(
	ctx context.Context,
	token *CancelToken,
	sink *Sink,
	url, renditionID string,
	phase domain.Phase,
	dest string,
) error {
	if token.Cancelled() {
		sink.Cancel(phase)
		return domain.ErrDownloadCancelled
	}

	sink.Update(phase, domain.PhaseState{Status: domain.PhaseDownloading})

	hook := func(event domain.ProgressEvent) error {
		if token.Cancelled() {
			return domain.ErrDownloadCancelled
		}
		sink.Update(phase, stateFromEvent(event))
		return nil
	}

	runCtx, stop := token.Bind(ctx)
	defer stop()

	r.logger.Debug("Starting stream download",
		zap.String("phase", string(phase)),
		zap.String("format_id", renditionID),
		zap.String("dest", dest))

	err := r.extractor.Download(runCtx, domain.DownloadRequest{
		URL:         url,
		RenditionID: renditionID,
		Destination: dest,
	}, hook)

	switch {
	case err == nil:
		if sink.Complete(phase, token) == domain.PhaseCancelled || token.Cancelled() {
			return domain.ErrDownloadCancelled
		}
		return nil
	case token.Cancelled() || isCancellation(err):
		sink.Cancel(phase)
		r.logger.Info("Stream download cancelled", zap.String("phase", string(phase)))
		return domain.ErrDownloadCancelled
	default:
		dlErr := &domain.DownloadError{Phase: phase, Err: err}
		sink.Fail(phase, err)
		r.logger.Warn("Stream download failed",
			zap.String("phase", string(phase)),
			zap.String("format_id", renditionID),
			zap.Error(err))
		return dlErr
	}
}

// RunPair downloads a video and an audio rendition concurrently and waits for both.
// Cancellation takes precedence over errors in the returned result.
func (r *Runner) RunPair(
	ctx context.Context,
	token *CancelToken,
	sink *Sink,
	url, videoID, audioID string,
	destVideo, destAudio string,
) error {
	var (
		g                  errgroup.Group
		videoErr, audioErr error
	)

	g.Go(func() error {
		videoErr = r.RunSingle(ctx, token, sink, url, videoID, domain.PhaseVideo, destVideo)
		return videoErr
	})
	g.Go(func() error {
		audioErr = r.RunSingle(ctx, token, sink, url, audioID, domain.PhaseAudio, destAudio)
		return audioErr
	})
	_ = g.Wait()

	return pairResult(videoErr, audioErr)
}

func pairResult(videoErr, audioErr error) error {
	if isCancellation(videoErr) || isCancellation(audioErr) {
		return domain.ErrDownloadCancelled
	}
	if videoErr != nil {
		return videoErr
	}
	return audioErr
}

func stateFromEvent(event domain.ProgressEvent) domain.PhaseState {
	state := domain.PhaseState{
		Status:  domain.PhaseDownloading,
		Percent: event.Percent(),
	}
	downloaded := event.DownloadedBytes
	state.DownloadedBytes = &downloaded
	if event.TotalBytes > 0 {
		total := event.TotalBytes
		state.TotalBytes = &total
	}
	if event.SpeedBytesPerSec > 0 {
		speed := event.SpeedBytesPerSec
		state.SpeedBytesPerSec = &speed
	}
	if event.ETA > 0 {
		eta := event.ETA
		state.ETA = &eta
	}
	return state
}

func isCancellation(err error) bool {
	return errors.Is(err, domain.ErrDownloadCancelled) || errors.Is(err, context.Canceled)
}
