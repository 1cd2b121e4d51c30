package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

// Catalog holds the most recent probe result of a session
type Catalog struct {
	extractor domain.Extractor
	mu        sync.RWMutex
	current   *domain.ProbeResult
	url       string
}

// NewCatalog creates an empty catalog backed by extractor
func NewCatalog(extractor domain.Extractor) *Catalog {
	return &Catalog{extractor: extractor}
}

// Load probes url without touching the catalog. Errors wrap domain.ErrProbeFailed.
// Loading and storing are separate steps so a session can discard a result that
// was superseded while the probe ran.
func (c *Catalog) Load(ctx context.Context, url string) (*domain.ProbeResult, error) {
	raw, err := c.extractor.Probe(ctx, url)
	if err == nil && raw == nil {
		err = fmt.Errorf("empty metadata")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProbeFailed, err)
	}
	return Bucket(raw), nil
}

// Store replaces the catalog wholesale
func (c *Catalog) Store(url string, result *domain.ProbeResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = result.Clone()
	c.url = url
}

// Current returns a copy of the catalog, or nil when nothing is loaded
func (c *Catalog) Current() *domain.ProbeResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Clone()
}

// URL returns the url of the loaded catalog
func (c *Catalog) URL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url
}

// Loaded reports whether a probe result is held
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current != nil
}

// Clear drops the catalog
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.url = ""
}

// FindVideo looks up a rendition in the video bucket
func (c *Catalog) FindVideo(id string) (domain.Rendition, error) {
	return c.find(id, func(p *domain.ProbeResult) []domain.Rendition { return p.VideoFormats })
}

// FindAudio looks up a rendition in the audio bucket
func (c *Catalog) FindAudio(id string) (domain.Rendition, error) {
	return c.find(id, func(p *domain.ProbeResult) []domain.Rendition { return p.AudioFormats })
}

// BestAudio returns the preferred audio rendition: the last m4a one, else the last one
func (c *Catalog) BestAudio() (domain.Rendition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil {
		return domain.Rendition{}, domain.ErrNoCatalog
	}
	formats := c.current.AudioFormats
	if len(formats) == 0 {
		return domain.Rendition{}, fmt.Errorf("%w: no audio formats available", domain.ErrUnknownRendition)
	}
	for i := len(formats) - 1; i >= 0; i-- {
		if formats[i].Ext == "m4a" {
			return formats[i], nil
		}
	}
	return formats[len(formats)-1], nil
}

func (c *Catalog) find(id string, bucket func(*domain.ProbeResult) []domain.Rendition) (domain.Rendition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil {
		return domain.Rendition{}, domain.ErrNoCatalog
	}
	for _, r := range bucket(c.current) {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Rendition{}, fmt.Errorf("%w: %s", domain.ErrUnknownRendition, id)
}

// Bucket splits raw formats into video and audio renditions, preserving order.
// Formats without any codec (storyboards) are dropped.
func Bucket(raw *domain.RawProbe) *domain.ProbeResult {
	result := &domain.ProbeResult{
		Title:        raw.Title,
		Thumbnail:    raw.Thumbnail,
		VideoFormats: []domain.Rendition{},
		AudioFormats: []domain.Rendition{},
	}

	for _, f := range raw.Formats {
		hasVideo := hasCodec(f.VideoCodec)
		hasAudio := hasCodec(f.AudioCodec)

		switch {
		case hasVideo:
			kind := domain.KindVideoOnly
			if hasAudio {
				kind = domain.KindCombined
			}
			result.VideoFormats = append(result.VideoFormats, domain.Rendition{
				ID:        f.ID,
				Ext:       f.Ext,
				Label:     videoLabel(f),
				SizeBytes: sizeOf(f),
				FPS:       f.FPS,
				Kind:      kind,
			})
		case hasAudio:
			result.AudioFormats = append(result.AudioFormats, domain.Rendition{
				ID:        f.ID,
				Ext:       f.Ext,
				Label:     audioLabel(f),
				SizeBytes: sizeOf(f),
				Kind:      domain.KindAudioOnly,
			})
		}
	}
	return result
}

// hasCodec treats an unreported codec as present; only an explicit "none" marks absence
func hasCodec(codec string) bool {
	return strings.TrimSpace(codec) != "none"
}

func videoLabel(f domain.RawFormat) string {
	if f.Height > 0 {
		return fmt.Sprintf("%dp", f.Height)
	}
	if f.Resolution != "" && f.Resolution != "audio only" {
		return f.Resolution
	}
	return f.FormatNote
}

func audioLabel(f domain.RawFormat) string {
	bitrate := f.AudioBitrate
	if bitrate <= 0 {
		bitrate = f.TotalBitrate
	}
	if bitrate > 0 {
		return fmt.Sprintf("%dkbps", int(math.Round(bitrate)))
	}
	return f.FormatNote
}

func sizeOf(f domain.RawFormat) *int64 {
	if f.Filesize != nil {
		return f.Filesize
	}
	return f.FilesizeApprox
}
