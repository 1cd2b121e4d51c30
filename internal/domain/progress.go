package domain

import "time"

// Phase is one of the tracked progress channels of a job
type Phase string

const (
	PhaseVideo Phase = "video"
	PhaseAudio Phase = "audio"
	PhaseMerge Phase = "merge"
)

// Phases lists every phase in display order
var Phases = []Phase{PhaseVideo, PhaseAudio, PhaseMerge}

// PhaseStatus represents the current status of a phase
type PhaseStatus string

const (
	PhaseIdle        PhaseStatus = "idle"
	PhaseDownloading PhaseStatus = "downloading"
	PhaseMerging     PhaseStatus = "merging"
	PhaseFinished    PhaseStatus = "finished"
	PhaseCancelled   PhaseStatus = "cancelled"
	PhaseError       PhaseStatus = "error"
	PhaseNotNeeded   PhaseStatus = "not_needed"
)

// IsTerminal checks if the phase can no longer change within the current job
func (s PhaseStatus) IsTerminal() bool {
	switch s {
	case PhaseFinished, PhaseCancelled, PhaseError, PhaseNotNeeded:
		return true
	default:
		return false
	}
}

// PhaseState is the progress of a single phase. Nil counters were not reported.
type PhaseState struct {
	Status           PhaseStatus    `json:"status"`
	Percent          float64        `json:"percent"`
	DownloadedBytes  *int64         `json:"downloaded_bytes,omitempty"`
	TotalBytes       *int64         `json:"total_bytes,omitempty"`
	SpeedBytesPerSec *float64       `json:"speed,omitempty"`
	ETA              *time.Duration `json:"eta,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// IdleState returns the state every phase starts a job in
func IdleState() PhaseState {
	return PhaseState{Status: PhaseIdle}
}

// ProgressTable maps every phase to its state. It always holds all three phases.
type ProgressTable map[Phase]PhaseState

// NewProgressTable returns a table with every phase idle
func NewProgressTable() ProgressTable {
	table := make(ProgressTable, len(Phases))
	for _, phase := range Phases {
		table[phase] = IdleState()
	}
	return table
}

// ProgressEvent is a single progress callback payload from the extractor
type ProgressEvent struct {
	Finished         bool
	DownloadedBytes  int64
	TotalBytes       int64 // 0 when unknown
	TotalIsEstimate  bool
	SpeedBytesPerSec float64 // 0 when unknown
	ETA              time.Duration
}

// Percent computes the completion percentage, rounded to one decimal place
func (e ProgressEvent) Percent() float64 {
	if e.Finished {
		return 100
	}
	if e.TotalBytes <= 0 {
		return 0
	}
	p := float64(e.DownloadedBytes) / float64(e.TotalBytes) * 100
	if p > 100 {
		p = 100
	}
	return float64(int64(p*10+0.5)) / 10
}
