package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

// SessionManager owns every live session and sweeps the idle ones
type SessionManager struct {
	services *Services
	config   *domain.SessionConfig
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	running  bool
	stopChan chan struct{}
	workerWg sync.WaitGroup
}

// NewSessionManager creates a new session manager
func NewSessionManager(services *Services, config *domain.SessionConfig) *SessionManager {
	log := services.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionManager{
		services: services,
		config:   config,
		logger:   log,
		sessions: make(map[string]*Session),
		stopChan: make(chan struct{}),
	}
}

// Get returns a live session and marks it as used
func (sm *SessionManager) Get(id string) (*Session, bool) {
	sm.mu.RLock()
	session, ok := sm.sessions[id]
	sm.mu.RUnlock()

	if ok {
		session.Touch()
	}
	return session, ok
}

// GetOrCreate returns the session for id, creating a new one with a fresh id
// when id is empty or unknown. The bool reports whether a session was created.
func (sm *SessionManager) GetOrCreate(id string) (*Session, bool) {
	if id != "" {
		if session, ok := sm.Get(id); ok {
			return session, false
		}
	}

	session := NewSession(uuid.New().String(), sm.services)

	sm.mu.Lock()
	sm.sessions[session.ID()] = session
	sm.mu.Unlock()

	sm.logger.Debug("Session created", zap.String("session_id", session.ID()))
	return session, true
}

// Remove resets and forgets a session together with its job history
func (sm *SessionManager) Remove(id string) bool {
	sm.mu.Lock()
	session, ok := sm.sessions[id]
	delete(sm.sessions, id)
	sm.mu.Unlock()

	if !ok {
		return false
	}
	session.Reset()
	if sm.services.History != nil {
		if err := sm.services.History.DeleteBySession(id); err != nil {
			sm.logger.Warn("Failed to delete session history", zap.String("session_id", id), zap.Error(err))
		}
	}
	return true
}

// Len returns the number of live sessions
func (sm *SessionManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// SweepIdle removes sessions unused for longer than the idle timeout and
// without work in flight. It returns the number of removed sessions.
func (sm *SessionManager) SweepIdle(now time.Time) int {
	if sm.config.IdleTimeout <= 0 {
		return 0
	}

	sm.mu.RLock()
	var expired []string
	for id, session := range sm.sessions {
		lastActive, active := session.IdleSince()
		if !active && now.Sub(lastActive) > sm.config.IdleTimeout {
			expired = append(expired, id)
		}
	}
	sm.mu.RUnlock()

	removed := 0
	for _, id := range expired {
		if sm.Remove(id) {
			removed++
		}
	}
	if removed > 0 {
		sm.logger.Info("Swept idle sessions", zap.Int("count", removed))
	}
	return removed
}

// Start starts the idle session sweeper
func (sm *SessionManager) Start(ctx context.Context) error {
	sm.mu.Lock()
	if sm.running {
		sm.mu.Unlock()
		return fmt.Errorf("session manager already running")
	}
	sm.running = true
	sm.mu.Unlock()

	sm.workerWg.Add(1)
	go sm.sweep(ctx)

	return nil
}

// Stop stops the sweeper, cancels every running job and waits for them to finish
func (sm *SessionManager) Stop() error {
	sm.mu.Lock()
	if !sm.running {
		sm.mu.Unlock()
		return fmt.Errorf("session manager not running")
	}
	sm.running = false
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, session := range sm.sessions {
		sessions = append(sessions, session)
	}
	sm.mu.Unlock()

	close(sm.stopChan)
	sm.workerWg.Wait()

	for _, session := range sessions {
		_ = session.Cancel()
	}
	for _, session := range sessions {
		session.Wait()
	}
	return nil
}

// IsRunning returns whether the sweeper is running
func (sm *SessionManager) IsRunning() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.running
}

// sweep periodically removes idle sessions
func (sm *SessionManager) sweep(ctx context.Context) {
	defer sm.workerWg.Done()

	interval := sm.config.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sm.logger.Debug("Session sweeper stopped", zap.String("reason", "context_cancelled"))
			return
		case <-sm.stopChan:
			sm.logger.Debug("Session sweeper stopped", zap.String("reason", "stop_requested"))
			return
		case now := <-ticker.C:
			sm.SweepIdle(now)
		}
	}
}
