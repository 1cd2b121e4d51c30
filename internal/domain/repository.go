package domain

import "time"

// JobRecord is the history entry kept for every job
type JobRecord struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	SessionID   string     `json:"session_id" gorm:"not null;index"`
	URL         string     `json:"url" gorm:"not null;index"`
	Title       string     `json:"title"`
	Kind        JobKind    `json:"kind" gorm:"not null"`
	VideoID     string     `json:"video_id,omitempty"`
	AudioID     string     `json:"audio_id,omitempty"`
	Container   string     `json:"container"`
	Status      JobStatus  `json:"status" gorm:"not null;index"`
	OutputPath  string     `json:"output_path,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (JobRecord) TableName() string {
	return "job_history"
}

// NewJobRecord creates a running history entry for a job
func NewJobRecord(job *Job) *JobRecord {
	return &JobRecord{
		ID:         job.ID,
		SessionID:  job.SessionID,
		URL:        job.URL,
		Title:      job.Title,
		Kind:       job.Kind,
		VideoID:    job.VideoID,
		AudioID:    job.AudioID,
		Container:  job.Container,
		Status:     JobRunning,
		OutputPath: job.OutputPath,
		CreatedAt:  job.CreatedAt,
	}
}

// MarkCompleted marks the record as completed
func (r *JobRecord) MarkCompleted(outputPath string) {
	r.Status = JobCompleted
	r.OutputPath = outputPath
	now := time.Now()
	r.CompletedAt = &now
}

// MarkFailed marks the record as failed
func (r *JobRecord) MarkFailed(err error) {
	r.Status = JobFailed
	if err != nil {
		r.Error = err.Error()
	}
	now := time.Now()
	r.CompletedAt = &now
}

// MarkCancelled marks the record as cancelled
func (r *JobRecord) MarkCancelled() {
	r.Status = JobCancelled
	now := time.Now()
	r.CompletedAt = &now
}

// Selection identifies what a job downloaded, for duplicate detection
type Selection struct {
	URL       string
	Kind      JobKind
	VideoID   string
	AudioID   string
	Container string
}

// JobRepository defines the interface for job history
type JobRepository interface {
	// Create stores a new record
	Create(record *JobRecord) error

	// Update saves an existing record
	Update(record *JobRecord) error

	// FindByID finds a record by job id; returns nil when absent
	FindByID(id string) (*JobRecord, error)

	// FindBySession lists a session's records, newest first
	FindBySession(sessionID string) ([]*JobRecord, error)

	// FindCompleted returns the newest completed record for a selection, or nil
	FindCompleted(sessionID string, sel Selection) (*JobRecord, error)

	// DeleteBySession removes all records of a session
	DeleteBySession(sessionID string) error
}
