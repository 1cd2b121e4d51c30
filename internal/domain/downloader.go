package domain

import "context"

// ProgressHook receives extractor progress. Returning a non-nil error stops the
// transfer; the extractor must then return that error from Download.
type ProgressHook func(event ProgressEvent) error

// DownloadRequest describes a single-rendition download
type DownloadRequest struct {
	URL         string
	RenditionID string
	Destination string // exact output path
}

// Extractor defines the interface for the media extraction collaborator
type Extractor interface {
	// Probe fetches metadata and the format list without downloading media
	Probe(ctx context.Context, url string) (*RawProbe, error)

	// Download fetches exactly one rendition to req.Destination
	Download(ctx context.Context, req DownloadRequest, hook ProgressHook) error
}

// MuxRequest describes one muxer invocation
type MuxRequest struct {
	Inputs []string
	Output string
	// AudioCodec selects an encoder; empty means stream copy of every input
	AudioCodec string
}

// Muxer defines the interface for the muxing/transcoding collaborator
type Muxer interface {
	// Mux runs the external muxer and returns a *MergeError on non-zero exit
	Mux(ctx context.Context, req MuxRequest) error
}
