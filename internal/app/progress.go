package app

import (
	"sync"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

// Aggregator is the lock-guarded progress table of a session.
// Writers go through a Sink bound to the job generation that created it.
type Aggregator struct {
	mu         sync.Mutex
	table      domain.ProgressTable
	filename   string
	generation uint64
}

// NewAggregator creates an aggregator with every phase idle
func NewAggregator() *Aggregator {
	return &Aggregator{table: domain.NewProgressTable()}
}

// Reset sets every phase back to idle, clears the completed filename and
// invalidates all previously issued sinks.
func (a *Aggregator) Reset() *Sink {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.table = domain.NewProgressTable()
	a.filename = ""
	a.generation++
	return &Sink{agg: a, generation: a.generation}
}

// Snapshot returns a copy of the progress table
func (a *Aggregator) Snapshot() domain.ProgressTable {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(domain.ProgressTable, len(a.table))
	for phase, state := range a.table {
		out[phase] = copyState(state)
	}
	return out
}

// Filename returns the output path of the last completed job, if any
func (a *Aggregator) Filename() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.filename
}

// write applies next to phase. Caller must hold the lock.
// Terminal phases are sticky and percent never moves backwards within a generation.
func (a *Aggregator) write(phase domain.Phase, next domain.PhaseState) bool {
	current, ok := a.table[phase]
	if !ok {
		return false
	}
	if current.Status.IsTerminal() {
		return false
	}
	if next.Percent < current.Percent {
		next.Percent = current.Percent
	}
	if next.Percent > 100 {
		next.Percent = 100
	}
	if next.Status != domain.PhaseError {
		next.Error = ""
	}
	a.table[phase] = next
	return true
}

// Sink is the write handle a job uses to report progress.
// Writes from a sink whose generation is no longer current are dropped.
type Sink struct {
	agg        *Aggregator
	generation uint64
}

// Current reports whether the sink still belongs to the active job
func (s *Sink) Current() bool {
	s.agg.mu.Lock()
	defer s.agg.mu.Unlock()
	return s.generation == s.agg.generation
}

// Update writes a phase state. It returns false when the write was dropped.
func (s *Sink) Update(phase domain.Phase, state domain.PhaseState) bool {
	s.agg.mu.Lock()
	defer s.agg.mu.Unlock()

	if s.generation != s.agg.generation {
		return false
	}
	return s.agg.write(phase, state)
}

// Complete marks a phase finished, or cancelled when the token has been
// cancelled, and returns the resulting status. The token check and the write
// happen under the same lock.
func (s *Sink) Complete(phase domain.Phase, token *CancelToken) domain.PhaseStatus {
	s.agg.mu.Lock()
	defer s.agg.mu.Unlock()

	if s.generation != s.agg.generation {
		return ""
	}
	if token != nil && token.Cancelled() {
		s.agg.write(phase, domain.PhaseState{Status: domain.PhaseCancelled})
	} else {
		s.agg.write(phase, domain.PhaseState{Status: domain.PhaseFinished, Percent: 100})
	}
	return s.agg.table[phase].Status
}

// Cancel marks a phase cancelled, keeping its percent
func (s *Sink) Cancel(phase domain.Phase) bool {
	return s.Update(phase, domain.PhaseState{Status: domain.PhaseCancelled})
}

// Fail records err on a phase. Cancellation errors are recorded as cancelled.
func (s *Sink) Fail(phase domain.Phase, err error) bool {
	if isCancellation(err) {
		return s.Cancel(phase)
	}
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	return s.Update(phase, domain.PhaseState{Status: domain.PhaseError, Error: detail})
}

// NotNeeded marks phases the job will not run
func (s *Sink) NotNeeded(phases ...domain.Phase) {
	for _, phase := range phases {
		s.Update(phase, domain.PhaseState{Status: domain.PhaseNotNeeded})
	}
}

// SetFilename latches the completed output path
func (s *Sink) SetFilename(path string) bool {
	s.agg.mu.Lock()
	defer s.agg.mu.Unlock()

	if s.generation != s.agg.generation {
		return false
	}
	s.agg.filename = path
	return true
}

func copyState(state domain.PhaseState) domain.PhaseState {
	out := state
	if state.DownloadedBytes != nil {
		v := *state.DownloadedBytes
		out.DownloadedBytes = &v
	}
	if state.TotalBytes != nil {
		v := *state.TotalBytes
		out.TotalBytes = &v
	}
	if state.SpeedBytesPerSec != nil {
		v := *state.SpeedBytesPerSec
		out.SpeedBytesPerSec = &v
	}
	if state.ETA != nil {
		v := *state.ETA
		out.ETA = &v
	}
	return out
}
