package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/internal/domain"
	"github.com/yourusername/mediagrab-go/pkg/logger"
)

// videoContainers are the accepted targets for a merged video download
var videoContainers = map[string]bool{"mp4": true, "mkv": true, "webm": true, "mov": true}

// Notifier is told about finished jobs
type Notifier interface {
	NotifyJobCompleted(title, outputPath string)
	NotifyJobFailed(title string, err error)
}

// Services are the collaborators shared by every session
type Services struct {
	Extractor   domain.Extractor
	Muxer       domain.Muxer
	Files       *Allocator
	History     domain.JobRepository
	Notifier    Notifier
	Download    *domain.DownloadConfig
	Logger      *zap.Logger
	MultiLogger *logger.MultiLogger
}

// Session is the per-user controller of the fetch, select, download and poll lifecycle
type Session struct {
	id       string
	svc      *Services
	logger   *zap.Logger
	catalog  *Catalog
	progress *Aggregator
	runner   *Runner
	merger   *MergeCoordinator

	mu         sync.Mutex
	state      domain.SessionState
	lastError  string
	token      *CancelToken
	sink       *Sink
	job        *domain.Job
	lastActive time.Time

	jobs sync.WaitGroup
}

// NewSession creates an idle session
func NewSession(id string, svc *Services) *Session {
	log := svc.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("session_id", id))

	s := &Session{
		id:         id,
		svc:        svc,
		logger:     log,
		catalog:    NewCatalog(svc.Extractor),
		progress:   NewAggregator(),
		runner:     NewRunner(svc.Extractor, log),
		merger:     NewMergeCoordinator(svc.Muxer, svc.Files, log),
		state:      domain.StateIdle,
		lastActive: time.Now(),
	}
	s.token = NewCancelToken(context.Background())
	s.sink = s.progress.Reset()
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Fetch probes url and loads the catalog
func (s *Session) Fetch(ctx context.Context, url string) (*domain.ProbeResult, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", domain.ErrInvalidRequest)
	}

	s.mu.Lock()
	if err := s.transition(domain.StateProbing); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	token := s.renew()
	s.catalog.Clear()
	s.mu.Unlock()

	s.logger.Info("Probing media", zap.String("url", url))

	probeCtx, stop := token.Bind(ctx)
	result, err := s.catalog.Load(probeCtx, url)
	stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != token {
		// superseded by reset or another fetch
		if err != nil {
			return nil, err
		}
		return result.Clone(), nil
	}

	if err != nil {
		s.catalog.Clear()
		if token.Cancelled() {
			s.state = domain.StateCancelled
			return nil, fmt.Errorf("%w: %v", domain.ErrDownloadCancelled, err)
		}
		s.state = domain.StateError
		s.lastError = err.Error()
		s.logger.Warn("Probe failed", zap.String("url", url), zap.Error(err))
		return nil, err
	}

	s.catalog.Store(url, result)
	s.state = domain.StateReady
	s.logger.Info("Media info loaded",
		zap.String("title", result.Title),
		zap.Int("video_formats", len(result.VideoFormats)),
		zap.Int("audio_formats", len(result.AudioFormats)))
	return result.Clone(), nil
}

// StartVideoDownload starts a video job. A video-only rendition is paired with
// the selected audio rendition, or the best one in the catalog.
func (s *Session) StartVideoDownload(req domain.VideoRequest) (*domain.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	url, err := s.checkStart(req.URL)
	if err != nil {
		return nil, err
	}

	video, err := s.catalog.FindVideo(req.VideoID)
	if err != nil {
		return nil, err
	}

	job := domain.NewJob(s.id, url, domain.JobVideo)
	job.Title = s.catalog.Current().Title
	job.VideoID = video.ID

	labels := []string{video.Label}
	var audio *domain.Rendition
	if !video.HasAudio() {
		var a domain.Rendition
		if req.AudioID != "" {
			a, err = s.catalog.FindAudio(req.AudioID)
		} else {
			a, err = s.catalog.BestAudio()
		}
		if err != nil {
			return nil, err
		}
		audio = &a
		job.AudioID = a.ID
		labels = append(labels, a.Label)

		container := normalizeExt(req.Container)
		if container == "" {
			container = normalizeExt(s.svc.Download.VideoContainer)
		}
		if !videoContainers[container] {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, container)
		}
		job.Container = container
	} else {
		job.Container = normalizeExt(video.Ext)
	}

	if ack := s.alreadyDone(job); ack != nil {
		return ack, nil
	}

	dir, err := s.outputDir(req.SaveDir)
	if err != nil {
		return nil, err
	}
	if err := s.allocate(job, dir, BuildBaseName(job.Title, labels...)); err != nil {
		return nil, err
	}
	if audio != nil {
		job.TempVideoPath = s.tempPath("video", job.ID, video.Ext)
		job.TempAudioPath = s.tempPath("audio", job.ID, audio.Ext)
	}

	return s.launch(job), nil
}

// StartAudioDownload starts an audio-only job, transcoding when req.Format
// differs from the rendition's container.
func (s *Session) StartAudioDownload(req domain.AudioRequest) (*domain.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	url, err := s.checkStart(req.URL)
	if err != nil {
		return nil, err
	}

	audio, err := s.catalog.FindAudio(req.AudioID)
	if err != nil {
		return nil, err
	}

	job := domain.NewJob(s.id, url, domain.JobAudio)
	job.Title = s.catalog.Current().Title
	job.AudioID = audio.ID
	job.Container = normalizeExt(audio.Ext)

	format := normalizeExt(req.Format)
	transcode := format != "" && format != job.Container
	if transcode {
		if _, err := AudioCodecFor(format); err != nil {
			return nil, err
		}
		job.Container = format
	}

	if ack := s.alreadyDone(job); ack != nil {
		return ack, nil
	}

	dir, err := s.outputDir(req.SaveDir)
	if err != nil {
		return nil, err
	}
	if err := s.allocate(job, dir, BuildBaseName(job.Title, audio.Label)); err != nil {
		return nil, err
	}
	if transcode {
		job.TempAudioPath = s.tempPath("audio", job.ID, audio.Ext)
	}

	return s.launch(job), nil
}

// Cancel requests cancellation of the active probe or job without waiting for it
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.IsActive() {
		return fmt.Errorf("%w: session is %s", domain.ErrNothingToCancel, s.state)
	}

	s.token.Cancel()
	s.state = domain.StateCancelled
	var jobID string
	if s.job != nil {
		jobID = s.job.ID
	}
	s.logger.Info("Cancellation requested", zap.String("job_id", jobID))
	s.logJobEvent("job_cancel_requested", zap.String("session_id", s.id), zap.String("job_id", jobID))
	return nil
}

// Reset returns the session to idle, clearing catalog, progress and token.
// A running job is cancelled.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token.Cancel()
	s.renew()
	s.catalog.Clear()
	s.job = nil
	s.state = domain.StateIdle
	s.lastError = ""
}

// Progress returns a snapshot of the progress table
func (s *Session) Progress() domain.ProgressTable {
	return s.progress.Snapshot()
}

// Done returns the output path of the last completed job
func (s *Session) Done() string {
	return s.progress.Filename()
}

// Info returns the loaded catalog, or nil
func (s *Session) Info() *domain.ProbeResult {
	return s.catalog.Current()
}

// State returns the session state
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// View summarizes the session
func (s *Session) View() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := domain.SessionView{
		ID:       s.id,
		State:    s.state,
		URL:      s.catalog.URL(),
		Filename: s.progress.Filename(),
		Error:    s.lastError,
	}
	if info := s.catalog.Current(); info != nil {
		view.Title = info.Title
	}
	if s.job != nil {
		view.JobID = s.job.ID
	}
	return view
}

// History lists the session's jobs, newest first
func (s *Session) History() ([]*domain.JobRecord, error) {
	return s.svc.History.FindBySession(s.id)
}

// Wait blocks until every job started by the session has finished
func (s *Session) Wait() {
	s.jobs.Wait()
}

// Touch records activity on the session
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
}

// IdleSince reports when the session was last used and whether it has work in flight
func (s *Session) IdleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, s.state.IsActive()
}

// transition moves to the next state. Caller must hold s.mu.
func (s *Session) transition(to domain.SessionState) error {
	if !s.state.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, s.state, to)
	}
	s.state = to
	if to != domain.StateError {
		s.lastError = ""
	}
	return nil
}

// renew mints a fresh token and progress sink, superseding the previous job.
// Caller must hold s.mu.
func (s *Session) renew() *CancelToken {
	s.token = NewCancelToken(context.Background())
	s.sink = s.progress.Reset()
	return s.token
}

// checkStart validates a download request against the session. Caller must hold s.mu.
func (s *Session) checkStart(url string) (string, error) {
	if !s.catalog.Loaded() {
		return "", domain.ErrNoCatalog
	}
	if !s.state.CanTransition(domain.StateDownloading) {
		return "", fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, s.state, domain.StateDownloading)
	}
	loaded := s.catalog.URL()
	url = strings.TrimSpace(url)
	if url == "" {
		return loaded, nil
	}
	if url != loaded {
		return "", fmt.Errorf("%w: url does not match the loaded media info", domain.ErrInvalidRequest)
	}
	return url, nil
}

// alreadyDone returns an acknowledgement when the same selection was completed
// before and its file is still on disk
func (s *Session) alreadyDone(job *domain.Job) *domain.Ack {
	record, err := s.svc.History.FindCompleted(s.id, domain.Selection{
		URL:       job.URL,
		Kind:      job.Kind,
		VideoID:   job.VideoID,
		AudioID:   job.AudioID,
		Container: job.Container,
	})
	if err != nil {
		s.logger.Warn("Failed to look up job history", zap.Error(err))
		return nil
	}
	if record == nil || !s.svc.Files.Exists(record.OutputPath) {
		return nil
	}
	return &domain.Ack{Status: domain.AckAlreadyDone, JobID: record.ID, Filename: record.OutputPath}
}

// outputDir resolves the optional per-request save directory
func (s *Session) outputDir(saveDir string) (string, error) {
	base := s.svc.Download.OutputDir()
	saveDir = strings.TrimSpace(saveDir)
	if saveDir == "" {
		return base, nil
	}
	if filepath.IsAbs(saveDir) {
		return filepath.Clean(saveDir), nil
	}
	dir := filepath.Join(base, saveDir)
	if rel, err := filepath.Rel(base, dir); err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: save_dir escapes the output directory", domain.ErrInvalidRequest)
	}
	return dir, nil
}

// allocate reserves the job's output path
func (s *Session) allocate(job *domain.Job, dir, base string) error {
	if err := s.svc.Files.EnsureDir(dir); err != nil {
		return err
	}
	if err := s.svc.Files.EnsureDir(s.svc.Download.TempDir()); err != nil {
		return err
	}
	path, err := s.svc.Files.Allocate(dir, base, job.Container)
	if err != nil {
		return err
	}
	job.OutputPath = path
	return nil
}

func (s *Session) tempPath(stream, jobID, ext string) string {
	name := fmt.Sprintf("temp_%s_%s", stream, jobID)
	if ext = normalizeExt(ext); ext != "" {
		name += "." + ext
	}
	return filepath.Join(s.svc.Download.TempDir(), name)
}

// launch supersedes the current job and starts job in the background. Caller must hold s.mu.
func (s *Session) launch(job *domain.Job) *domain.Ack {
	token := s.renew()
	sink := s.sink
	s.job = job
	s.state = domain.StateDownloading
	s.lastError = ""

	record := domain.NewJobRecord(job)
	if err := s.svc.History.Create(record); err != nil {
		s.logger.Warn("Failed to record job", zap.String("job_id", job.ID), zap.Error(err))
	}

	s.logger.Info("Job started",
		zap.String("job_id", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.String("output", job.OutputPath))
	s.logJobEvent("job_started", jobFields(job)...)

	s.jobs.Add(1)
	go s.runJob(job, token, sink, record)

	return &domain.Ack{Status: domain.AckStarted, JobID: job.ID, Filename: job.OutputPath}
}

// runJob executes a job to completion. Jobs outlive the request that started them.
func (s *Session) runJob(job *domain.Job, token *CancelToken, sink *Sink, record *domain.JobRecord) {
	defer s.jobs.Done()
	defer token.Release()
	defer s.svc.Files.Release(job.OutputPath)
	defer s.merger.Cleanup(job.TempPaths()...)

	err := s.execute(context.Background(), job, token, sink)
	if err != nil {
		s.merger.Cleanup(job.OutputPath)
	}
	s.finish(job, sink, record, err)
}

func (s *Session) execute(ctx context.Context, job *domain.Job, token *CancelToken, sink *Sink) error {
	switch {
	case job.NeedsMerge():
		if err := s.runner.RunPair(ctx, token, sink, job.URL, job.VideoID, job.AudioID, job.TempVideoPath, job.TempAudioPath); err != nil {
			sink.Fail(domain.PhaseMerge, fmt.Errorf("merge skipped: %w", err))
			return err
		}
		s.enterMerging(job)
		return s.merger.Merge(ctx, token, sink, job.TempVideoPath, job.TempAudioPath, job.OutputPath)

	case job.NeedsTranscode():
		sink.NotNeeded(domain.PhaseVideo)
		if err := s.runner.RunSingle(ctx, token, sink, job.URL, job.AudioID, domain.PhaseAudio, job.TempAudioPath); err != nil {
			sink.Fail(domain.PhaseMerge, fmt.Errorf("transcode skipped: %w", err))
			return err
		}
		s.enterMerging(job)
		return s.merger.Transcode(ctx, token, sink, job.TempAudioPath, job.OutputPath, job.Container)

	case job.Kind == domain.JobVideo:
		sink.NotNeeded(domain.PhaseAudio, domain.PhaseMerge)
		return s.runner.RunSingle(ctx, token, sink, job.URL, job.VideoID, domain.PhaseVideo, job.OutputPath)

	default:
		sink.NotNeeded(domain.PhaseVideo, domain.PhaseMerge)
		return s.runner.RunSingle(ctx, token, sink, job.URL, job.AudioID, domain.PhaseAudio, job.OutputPath)
	}
}

func (s *Session) enterMerging(job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == job && s.state == domain.StateDownloading {
		s.state = domain.StateMerging
	}
}

// finish latches the job outcome into the sink, the history and, when the job
// is still the session's current one, the session state.
func (s *Session) finish(job *domain.Job, sink *Sink, record *domain.JobRecord, err error) {
	cancelled := err != nil && isCancellation(err)

	switch {
	case err == nil:
		sink.SetFilename(job.OutputPath)
		record.MarkCompleted(job.OutputPath)
	case cancelled:
		record.MarkCancelled()
	default:
		record.MarkFailed(err)
	}
	if updateErr := s.svc.History.Update(record); updateErr != nil {
		s.logger.Warn("Failed to update job history", zap.String("job_id", job.ID), zap.Error(updateErr))
	}

	s.mu.Lock()
	if s.job == job {
		switch {
		case err == nil:
			// a cancel that arrived after the output was finished is moot
			s.state = domain.StateDone
		case cancelled:
			s.state = domain.StateCancelled
		default:
			s.state = domain.StateError
			s.lastError = err.Error()
		}
	}
	s.mu.Unlock()

	fields := jobFields(job)
	switch {
	case err == nil:
		s.logger.Info("Job completed", zap.String("job_id", job.ID), zap.String("output", job.OutputPath))
		s.logJobEvent("job_completed", fields...)
		s.notifyCompleted(job)
	case cancelled:
		s.logger.Info("Job cancelled", zap.String("job_id", job.ID))
		s.logJobEvent("job_cancelled", fields...)
	default:
		s.logger.Error("Job failed", zap.String("job_id", job.ID), zap.Error(err))
		s.logJobEvent("job_failed", append(fields, zap.Error(err))...)
		if s.svc.MultiLogger != nil {
			s.svc.MultiLogger.LogAppError("job failed", append(fields, zap.Error(err))...)
		}
		s.notifyFailed(job, err)
	}
}

func (s *Session) notifyCompleted(job *domain.Job) {
	if s.svc.Notifier != nil {
		s.svc.Notifier.NotifyJobCompleted(job.Title, job.OutputPath)
	}
}

func (s *Session) notifyFailed(job *domain.Job, err error) {
	if s.svc.Notifier != nil {
		s.svc.Notifier.NotifyJobFailed(job.Title, err)
	}
}

func (s *Session) logJobEvent(event string, fields ...zap.Field) {
	if s.svc.MultiLogger != nil {
		s.svc.MultiLogger.LogJobEvent(event, fields...)
	}
}

func jobFields(job *domain.Job) []zap.Field {
	return []zap.Field{
		zap.String("session_id", job.SessionID),
		zap.String("job_id", job.ID),
		zap.String("url", job.URL),
		zap.String("kind", string(job.Kind)),
		zap.String("video_id", job.VideoID),
		zap.String("audio_id", job.AudioID),
		zap.String("output", job.OutputPath),
	}
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsClientError reports whether err was caused by the request rather than the server
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidRequest) ||
		errors.Is(err, domain.ErrUnknownRendition) ||
		errors.Is(err, domain.ErrUnsupportedFormat) ||
		errors.Is(err, domain.ErrNoCatalog)
}
