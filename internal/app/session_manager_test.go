package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

func newTestSessionManager(env *testEnv) *SessionManager {
	return NewSessionManager(env.services, &domain.SessionConfig{
		CookieName:    "mediagrab_session",
		IdleTimeout:   time.Hour,
		SweepInterval: 10 * time.Millisecond,
	})
}

func TestSessionManager_GetOrCreate(t *testing.T) {
	sm := newTestSessionManager(newTestEnv(t))

	session, created := sm.GetOrCreate("")
	require.True(t, created)
	assert.NotEmpty(t, session.ID())

	same, created := sm.GetOrCreate(session.ID())
	assert.False(t, created)
	assert.Same(t, session, same)

	other, created := sm.GetOrCreate("unknown-id")
	assert.True(t, created)
	assert.NotEqual(t, "unknown-id", other.ID())
	assert.Equal(t, 2, sm.Len())
}

func TestSessionManager_SessionsAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	sm := newTestSessionManager(env)

	a, _ := sm.GetOrCreate("")
	b, _ := sm.GetOrCreate("")

	_, err := a.Fetch(context.Background(), testURL)
	require.NoError(t, err)

	assert.Equal(t, domain.StateReady, a.State())
	assert.Equal(t, domain.StateIdle, b.State())
	assert.Nil(t, b.Info())
}

func TestSessionManager_Remove(t *testing.T) {
	env := newTestEnv(t)
	sm := newTestSessionManager(env)

	session, _ := sm.GetOrCreate("")
	_, err := session.Fetch(context.Background(), testURL)
	require.NoError(t, err)
	_, err = session.StartAudioDownload(domain.AudioRequest{AudioID: "140"})
	require.NoError(t, err)
	session.Wait()

	assert.True(t, sm.Remove(session.ID()))
	assert.False(t, sm.Remove(session.ID()))

	_, ok := sm.Get(session.ID())
	assert.False(t, ok)
	records, err := env.history.FindBySession(session.ID())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSessionManager_SweepIdle(t *testing.T) {
	env := newTestEnv(t)
	env.extractor.block = make(chan struct{})
	sm := newTestSessionManager(env)

	idle, _ := sm.GetOrCreate("")
	busy, _ := sm.GetOrCreate("")
	_, err := busy.Fetch(context.Background(), testURL)
	require.NoError(t, err)
	_, err = busy.StartAudioDownload(domain.AudioRequest{AudioID: "140"})
	require.NoError(t, err)

	assert.Zero(t, sm.SweepIdle(time.Now()))

	removed := sm.SweepIdle(time.Now().Add(2 * time.Hour))
	assert.Equal(t, 1, removed)

	_, ok := sm.Get(idle.ID())
	assert.False(t, ok)
	_, ok = sm.Get(busy.ID())
	assert.True(t, ok)

	require.NoError(t, busy.Cancel())
	busy.Wait()
}

func TestSessionManager_SweepDisabled(t *testing.T) {
	env := newTestEnv(t)
	sm := NewSessionManager(env.services, &domain.SessionConfig{})
	sm.GetOrCreate("")

	assert.Zero(t, sm.SweepIdle(time.Now().Add(24*time.Hour)))
	assert.Equal(t, 1, sm.Len())
}

func TestSessionManager_StartStop(t *testing.T) {
	env := newTestEnv(t)
	env.extractor.block = make(chan struct{})
	sm := newTestSessionManager(env)

	require.NoError(t, sm.Start(context.Background()))
	assert.True(t, sm.IsRunning())
	assert.Error(t, sm.Start(context.Background()))

	session, _ := sm.GetOrCreate("")
	_, err := session.Fetch(context.Background(), testURL)
	require.NoError(t, err)
	_, err = session.StartVideoDownload(domain.VideoRequest{VideoID: "248", AudioID: "140"})
	require.NoError(t, err)

	require.NoError(t, sm.Stop())
	assert.False(t, sm.IsRunning())
	assert.Equal(t, domain.StateCancelled, session.State())
	assert.Error(t, sm.Stop())
}
