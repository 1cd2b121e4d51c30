package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

// fakeExtractor implements domain.Extractor against an afero filesystem
type fakeExtractor struct {
	fs       afero.Fs
	probe    *domain.RawProbe
	probeErr error
	steps    int
	failures map[string]error
	// block, when set, holds every download after its first progress event
	block chan struct{}

	mu    sync.Mutex
	calls []domain.DownloadRequest
}

func newFakeExtractor(fs afero.Fs) *fakeExtractor {
	return &fakeExtractor{
		fs:       fs,
		probe:    sampleProbe(),
		steps:    4,
		failures: make(map[string]error),
	}
}

func (f *fakeExtractor) Probe(ctx context.Context, url string) (*domain.RawProbe, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return f.probe, nil
}

func (f *fakeExtractor) Download(ctx context.Context, req domain.DownloadRequest, hook domain.ProgressHook) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	block := f.block
	f.mu.Unlock()

	if err := afero.WriteFile(f.fs, req.Destination+".part", []byte("partial"), 0644); err != nil {
		return err
	}

	const total = int64(1000)
	for i := 1; i <= f.steps; i++ {
		event := domain.ProgressEvent{
			DownloadedBytes:  total * int64(i) / int64(f.steps),
			TotalBytes:       total,
			SpeedBytesPerSec: 2_500_000,
			ETA:              time.Duration(f.steps-i) * time.Second,
		}
		if err := hook(event); err != nil {
			return err
		}
		if i == 1 && block != nil {
			select {
			case <-block:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if err := f.failures[req.RenditionID]; err != nil {
		return err
	}
	if err := hook(domain.ProgressEvent{Finished: true, DownloadedBytes: total, TotalBytes: total}); err != nil {
		return err
	}

	_ = f.fs.Remove(req.Destination + ".part")
	return afero.WriteFile(f.fs, req.Destination, []byte("media"), 0644)
}

func (f *fakeExtractor) setBlock(block chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = block
}

func (f *fakeExtractor) requests() []domain.DownloadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]domain.DownloadRequest(nil), f.calls...)
	sort.Slice(out, func(i, j int) bool { return out[i].RenditionID < out[j].RenditionID })
	return out
}

// fakeMuxer implements domain.Muxer and writes the output on success
type fakeMuxer struct {
	fs  afero.Fs
	err error

	mu    sync.Mutex
	calls []domain.MuxRequest
}

func (m *fakeMuxer) Mux(ctx context.Context, req domain.MuxRequest) error {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.err != nil {
		_ = afero.WriteFile(m.fs, req.Output, []byte("broken"), 0644)
		return m.err
	}
	return afero.WriteFile(m.fs, req.Output, []byte("muxed"), 0644)
}

func (m *fakeMuxer) requests() []domain.MuxRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.MuxRequest(nil), m.calls...)
}

// fakeHistory implements domain.JobRepository in memory
type fakeHistory struct {
	mu       sync.Mutex
	records  []*domain.JobRecord
	onUpdate func(record *domain.JobRecord)
}

func (h *fakeHistory) Create(record *domain.JobRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	copied := *record
	h.records = append(h.records, &copied)
	return nil
}

func (h *fakeHistory) Update(record *domain.JobRecord) error {
	h.mu.Lock()
	onUpdate := h.onUpdate
	found := false
	for i, r := range h.records {
		if r.ID == record.ID {
			copied := *record
			h.records[i] = &copied
			found = true
		}
	}
	h.mu.Unlock()

	if onUpdate != nil {
		onUpdate(record)
	}
	if !found {
		return errors.New("record not found")
	}
	return nil
}

func (h *fakeHistory) FindByID(id string) (*domain.JobRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if r.ID == id {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (h *fakeHistory) FindBySession(sessionID string) ([]*domain.JobRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*domain.JobRecord
	for i := len(h.records) - 1; i >= 0; i-- {
		if h.records[i].SessionID == sessionID {
			copied := *h.records[i]
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (h *fakeHistory) FindCompleted(sessionID string, sel domain.Selection) (*domain.JobRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.records) - 1; i >= 0; i-- {
		r := h.records[i]
		if r.SessionID == sessionID && r.Status == domain.JobCompleted &&
			r.URL == sel.URL && r.Kind == sel.Kind && r.VideoID == sel.VideoID &&
			r.AudioID == sel.AudioID && r.Container == sel.Container {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (h *fakeHistory) DeleteBySession(sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.records[:0]
	for _, r := range h.records {
		if r.SessionID != sessionID {
			kept = append(kept, r)
		}
	}
	h.records = kept
	return nil
}

// fakeNotifier records notifications
type fakeNotifier struct {
	mu        sync.Mutex
	completed []string
	failed    []string
}

func (n *fakeNotifier) NotifyJobCompleted(title, outputPath string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, outputPath)
}

func (n *fakeNotifier) NotifyJobFailed(title string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, title)
}

func float64Ptr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64       { return &v }

// sampleProbe has two video-only renditions, one audio rendition and a storyboard
func sampleProbe() *domain.RawProbe {
	return &domain.RawProbe{
		Title:     "My Clip: Part 1",
		Thumbnail: "https://example.com/thumb.jpg",
		Formats: []domain.RawFormat{
			{ID: "sb0", Ext: "mhtml", VideoCodec: "none", AudioCodec: "none", FormatNote: "storyboard"},
			{ID: "140", Ext: "m4a", VideoCodec: "none", AudioCodec: "mp4a.40.2", AudioBitrate: 128, Filesize: int64Ptr(2_000_000)},
			{ID: "136", Ext: "mp4", VideoCodec: "avc1.4d401f", AudioCodec: "none", Height: 720, FPS: float64Ptr(30), FilesizeApprox: int64Ptr(10_000_000)},
			{ID: "248", Ext: "webm", VideoCodec: "vp9", AudioCodec: "none", Height: 1080, FPS: float64Ptr(30), Filesize: int64Ptr(25_000_000)},
		},
	}
}

type testEnv struct {
	fs        afero.Fs
	extractor *fakeExtractor
	muxer     *fakeMuxer
	history   *fakeHistory
	notifier  *fakeNotifier
	services  *Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fs := afero.NewMemMapFs()
	env := &testEnv{
		fs:        fs,
		extractor: newFakeExtractor(fs),
		muxer:     &fakeMuxer{fs: fs},
		history:   &fakeHistory{},
		notifier:  &fakeNotifier{},
	}
	env.services = &Services{
		Extractor: env.extractor,
		Muxer:     env.muxer,
		Files:     NewAllocator(fs),
		History:   env.history,
		Notifier:  env.notifier,
		Download:  &domain.DownloadConfig{BaseDir: "/media", VideoContainer: "mp4"},
		Logger:    zap.NewNop(),
	}
	return env
}

func (e *testEnv) exists(path string) bool {
	ok, _ := afero.Exists(e.fs, path)
	return ok
}
