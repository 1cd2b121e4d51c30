package domain

// RenditionKind describes which streams a rendition carries
type RenditionKind string

const (
	KindCombined  RenditionKind = "video+audio" // muxed progressive format
	KindVideoOnly RenditionKind = "video"
	KindAudioOnly RenditionKind = "audio"
)

// Rendition is one concrete encoded stream offered for a media item
type Rendition struct {
	ID        string        `json:"format_id"`
	Ext       string        `json:"ext"`
	Label     string        `json:"label"` // 1080p, 128kbps, ...
	SizeBytes *int64        `json:"filesize,omitempty"`
	FPS       *float64      `json:"fps,omitempty"`
	Kind      RenditionKind `json:"type"`
}

// HasAudio reports whether the rendition already carries an audio stream
func (r Rendition) HasAudio() bool {
	return r.Kind == KindCombined || r.Kind == KindAudioOnly
}

// ProbeResult is the metadata returned by a metadata-only probe
type ProbeResult struct {
	Title        string      `json:"title"`
	Thumbnail    string      `json:"thumbnail"`
	VideoFormats []Rendition `json:"video_formats"`
	AudioFormats []Rendition `json:"audio_formats"`
}

// Clone returns a deep copy safe to hand out to other goroutines
func (p *ProbeResult) Clone() *ProbeResult {
	if p == nil {
		return nil
	}
	return &ProbeResult{
		Title:        p.Title,
		Thumbnail:    p.Thumbnail,
		VideoFormats: cloneRenditions(p.VideoFormats),
		AudioFormats: cloneRenditions(p.AudioFormats),
	}
}

func cloneRenditions(in []Rendition) []Rendition {
	if in == nil {
		return nil
	}
	out := make([]Rendition, len(in))
	for i, r := range in {
		if r.SizeBytes != nil {
			size := *r.SizeBytes
			r.SizeBytes = &size
		}
		if r.FPS != nil {
			fps := *r.FPS
			r.FPS = &fps
		}
		out[i] = r
	}
	return out
}

// RawFormat is a single format entry as reported by the extractor, before bucketing
type RawFormat struct {
	ID             string
	Ext            string
	VideoCodec     string // "none" when absent, empty when unreported
	AudioCodec     string
	Height         int
	Resolution     string
	FormatNote     string
	AudioBitrate   float64 // kbps
	TotalBitrate   float64 // kbps
	FPS            *float64
	Filesize       *int64
	FilesizeApprox *int64
}

// RawProbe is the extractor's metadata view of a URL
type RawProbe struct {
	Title     string
	Thumbnail string
	Formats   []RawFormat
}
