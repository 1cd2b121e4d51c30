package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProbeFailed wraps any failure of a metadata probe
	ErrProbeFailed = errors.New("probe failed")
	// ErrDownloadCancelled is returned by progress hooks and runners once cancellation was requested
	ErrDownloadCancelled = errors.New("download cancelled")
	// ErrNoCatalog is returned when a download is requested before a successful probe
	ErrNoCatalog = errors.New("no media info loaded")
	// ErrUnknownRendition is returned when a selected format id is not in the catalog
	ErrUnknownRendition = errors.New("unknown format id")
	// ErrNothingToCancel is returned when no job is downloading or merging
	ErrNothingToCancel = errors.New("no active download")
	// ErrInvalidTransition is returned when an operation is not allowed in the current state
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrInvalidRequest is returned for malformed or inconsistent request parameters
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnsupportedFormat is returned for output extensions without a codec mapping
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

// DownloadError is a collaborator-reported failure of one stream
type DownloadError struct {
	Phase Phase
	Err   error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s download failed: %v", e.Phase, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// MergeError is a non-zero exit (or launch failure) of the muxer
type MergeError struct {
	ExitCode int
	Err      error
}

func (e *MergeError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("merge failed with exit code %d: %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("merge failed: %v", e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}
