package domain

// SessionState is the lifecycle state of a user session
type SessionState string

const (
	StateIdle        SessionState = "idle"
	StateProbing     SessionState = "probing"
	StateReady       SessionState = "ready"
	StateDownloading SessionState = "downloading"
	StateMerging     SessionState = "merging"
	StateDone        SessionState = "done"
	StateCancelled   SessionState = "cancelled"
	StateError       SessionState = "error"
)

// sessionTransitions lists the allowed edges; reset to idle is always allowed
var sessionTransitions = map[SessionState][]SessionState{
	StateIdle:        {StateProbing},
	StateProbing:     {StateReady, StateError, StateCancelled},
	StateReady:       {StateProbing, StateDownloading},
	StateDownloading: {StateDownloading, StateMerging, StateDone, StateCancelled, StateError},
	StateMerging:     {StateDownloading, StateDone, StateCancelled, StateError},
	StateDone:        {StateProbing, StateDownloading},
	StateCancelled:   {StateProbing, StateDownloading},
	StateError:       {StateProbing, StateDownloading},
}

// CanTransition reports whether a session may move from one state to another
func (s SessionState) CanTransition(to SessionState) bool {
	if to == StateIdle {
		return true
	}
	for _, allowed := range sessionTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsActive checks if a job or probe is in flight
func (s SessionState) IsActive() bool {
	return s == StateProbing || s == StateDownloading || s == StateMerging
}

// AckStatus is the answer to a download request
type AckStatus string

const (
	AckStarted     AckStatus = "started"
	AckAlreadyDone AckStatus = "already_done"
)

// Ack acknowledges a download request without waiting for the job
type Ack struct {
	Status   AckStatus `json:"status"`
	JobID    string    `json:"job_id"`
	Filename string    `json:"filename"`
}

// SessionView is a point-in-time summary of a session
type SessionView struct {
	ID       string       `json:"session_id"`
	State    SessionState `json:"state"`
	URL      string       `json:"url,omitempty"`
	Title    string       `json:"title,omitempty"`
	JobID    string       `json:"job_id,omitempty"`
	Filename string       `json:"filename,omitempty"`
	Error    string       `json:"error,omitempty"`
}
