package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobKind distinguishes video downloads from audio-only downloads
type JobKind string

const (
	JobVideo JobKind = "video"
	JobAudio JobKind = "audio"
)

// JobStatus represents the final outcome of a job
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job is the unit of work started by one download request
type Job struct {
	ID            string
	SessionID     string
	URL           string
	Title         string
	Kind          JobKind
	VideoID       string
	AudioID       string
	Container     string // target extension without dot
	OutputPath    string
	TempVideoPath string
	TempAudioPath string
	CreatedAt     time.Time
}

// NewJob creates a new job for a session
func NewJob(sessionID, url string, kind JobKind) *Job {
	return &Job{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		URL:       url,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
}

// NeedsMerge reports whether separate video and audio streams must be muxed
func (j *Job) NeedsMerge() bool {
	return j.Kind == JobVideo && j.TempVideoPath != "" && j.TempAudioPath != ""
}

// NeedsTranscode reports whether an audio job downloads to a temporary file first
func (j *Job) NeedsTranscode() bool {
	return j.Kind == JobAudio && j.TempAudioPath != ""
}

// TempPaths returns the intermediate files the job owns
func (j *Job) TempPaths() []string {
	var paths []string
	if j.TempVideoPath != "" {
		paths = append(paths, j.TempVideoPath)
	}
	if j.TempAudioPath != "" {
		paths = append(paths, j.TempAudioPath)
	}
	return paths
}

// VideoRequest selects renditions for a video download
type VideoRequest struct {
	URL       string
	VideoID   string
	AudioID   string // optional; ignored for combined renditions
	Container string // optional target container
	SaveDir   string // optional output directory
}

// AudioRequest selects a rendition for an audio-only download
type AudioRequest struct {
	URL     string
	AudioID string
	Format  string // optional target extension; triggers a transcode when it differs
	SaveDir string
}
