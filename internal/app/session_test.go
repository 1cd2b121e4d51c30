package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

const testURL = "https://example.com/watch?v=1"

func newReadySession(t *testing.T, env *testEnv) *Session {
	t.Helper()
	session := NewSession("session-1", env.services)
	_, err := session.Fetch(context.Background(), testURL)
	require.NoError(t, err)
	require.Equal(t, domain.StateReady, session.State())
	return session
}

func (e *testEnv) assertNoTempFiles(t *testing.T) {
	t.Helper()
	files, err := afero.ReadDir(e.fs, e.services.Download.TempDir())
	require.NoError(t, err)
	for _, f := range files {
		t.Errorf("temporary file left behind: %s", f.Name())
	}
}

func TestSession_Fetch(t *testing.T) {
	env := newTestEnv(t)
	session := NewSession("session-1", env.services)
	assert.Equal(t, domain.StateIdle, session.State())

	result, err := session.Fetch(context.Background(), "  "+testURL+"  ")
	require.NoError(t, err)

	assert.Len(t, result.VideoFormats, 2)
	assert.Len(t, result.AudioFormats, 1)
	assert.Equal(t, domain.StateReady, session.State())
	assert.Equal(t, result, session.Info())
	assert.Equal(t, testURL, session.View().URL)
}

func TestSession_FetchRequiresURL(t *testing.T) {
	session := NewSession("s", newTestEnv(t).services)

	_, err := session.Fetch(context.Background(), " ")

	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Equal(t, domain.StateIdle, session.State())
}

func TestSession_FetchFailure(t *testing.T) {
	env := newTestEnv(t)
	session := newReadySession(t, env)

	env.extractor.probeErr = errors.New("Unsupported URL")
	_, err := session.Fetch(context.Background(), "https://example.com/nope")

	assert.ErrorIs(t, err, domain.ErrProbeFailed)
	assert.Equal(t, domain.StateError, session.State())
	assert.Nil(t, session.Info())
	assert.Contains(t, session.View().Error, "Unsupported URL")

	_, err = session.StartVideoDownload(domain.VideoRequest{VideoID: "248"})
	assert.ErrorIs(t, err, domain.ErrNoCatalog)
}

func TestSession_MergeScenario(t *testing.T) {
	env := newTestEnv(t)
	session := newReadySession(t, env)

	ack, err := session.StartVideoDownload(domain.VideoRequest{URL: testURL, VideoID: "248", AudioID: "140"})
	require.NoError(t, err)
	assert.Equal(t, domain.AckStarted, ack.Status)
	assert.NotEmpty(t, ack.JobID)

	session.Wait()

	progress := session.Progress()
	assert.Equal(t, domain.PhaseFinished, progress[domain.PhaseVideo].Status)
	assert.Equal(t, domain.PhaseFinished, progress[domain.PhaseAudio].Status)
	assert.Equal(t, domain.PhaseFinished, progress[domain.PhaseMerge].Status)
	assert.Equal(t, domain.StateDone, session.State())

	filename := session.Done()
	assert.Equal(t, ack.Filename, filename)
	assert.Contains(t, filepath.Base(filename), "1080p")
	assert.Contains(t, filepath.Base(filename), "128kbps")
	assert.Equal(t, filepath.Join("/media/completed", "My Clip Part 1_1080p_128kbps.mp4"), filename)
	assert.True(t, env.exists(filename))

	env.assertNoTempFiles(t)

	require.Len(t, env.muxer.requests(), 1)
	inputs := env.muxer.requests()[0].Inputs
	assert.True(t, strings.HasSuffix(inputs[0], ".webm"))
	assert.True(t, strings.HasSuffix(inputs[1], ".m4a"))

	history, err := session.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.JobCompleted, history[0].Status)
	assert.Equal(t, []string{filename}, env.notifier.completed)
}

func TestSession_CancelImmediately(t *testing.T) {
	env := newTestEnv(t)
	env.extractor.block = make(chan struct{})
	session := newReadySession(t, env)

	_, err := session.StartVideoDownload(domain.VideoRequest{VideoID: "248", AudioID: "140"})
	require.NoError(t, err)
	require.NoError(t, session.Cancel())
	assert.Equal(t, domain.StateCancelled, session.State())

	session.Wait()

	progress := session.Progress()
	assert.Equal(t, domain.PhaseCancelled, progress[domain.PhaseVideo].Status)
	assert.Equal(t, domain.PhaseCancelled, progress[domain.PhaseAudio].Status)
	assert.NotEqual(t, domain.PhaseFinished, progress[domain.PhaseMerge].Status)
	assert.Equal(t, domain.StateCancelled, session.State())
	assert.Empty(t, session.Done())
	assert.Empty(t, env.muxer.requests())

	env.assertNoTempFiles(t)

	history, err := session.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.JobCancelled, history[0].Status)
}

func TestSession_CancelAfterOutputFinishedStaysDone(t *testing.T) {
	env := newTestEnv(t)
	session := newReadySession(t, env)

	// cancel lands once every phase has finished but before the outcome is latched
	var cancelErr error
	env.history.onUpdate = func(record *domain.JobRecord) {
		if record.Status == domain.JobCompleted {
			cancelErr = session.Cancel()
		}
	}

	ack, err := session.StartVideoDownload(domain.VideoRequest{VideoID: "248", AudioID: "140"})
	require.NoError(t, err)
	session.Wait()

	require.NoError(t, cancelErr)
	assert.Equal(t, domain.StateDone, session.State())
	assert.Equal(t, ack.Filename, session.Done())
	assert.True(t, env.exists(ack.Filename))
	for _, phase := range domain.Phases {
		assert.Equal(t, domain.PhaseFinished, session.Progress()[phase].Status, phase)
	}

	history, err := session.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.JobCompleted, history[0].Status)
}

func TestSession_CleanupAfterMergeFailure(t *testing.T) {
	env := newTestEnv(t)
	env.muxer.err = &domain.MergeError{ExitCode: 1, Err: errors.New("exit status 1")}
	session := newReadySession(t, env)

	ack, err := session.StartVideoDownload(domain.VideoRequest{VideoID: "136", AudioID: "140"})
	require.NoError(t, err)
	session.Wait()

	progress := session.Progress()
	assert.Equal(t, domain.PhaseError, progress[domain.PhaseMerge].Status)
	assert.Equal(t, domain.StateError, session.State())
	assert.Empty(t, session.Done())
	assert.False(t, env.exists(ack.Filename))
	env.assertNoTempFiles(t)
	assert.Len(t, env.notifier.failed, 1)
}

func TestSession_CleanupAfterDownloadFailure(t *testing.T) {
	env := newTestEnv(t)
	env.extractor.failures["248"] = errors.New("HTTP Error 403")
	session := newReadySession(t, env)

	_, err := session.StartVideoDownload(domain.VideoRequest{VideoID: "248", AudioID: "140"})
	require.NoError(t, err)
	session.Wait()

	progress := session.Progress()
	assert.Equal(t, domain.PhaseError, progress[domain.PhaseVideo].Status)
	assert.Equal(t, domain.PhaseFinished, progress[domain.PhaseAudio].Status)
	assert.Equal(t, domain.PhaseError, progress[domain.PhaseMerge].Status)
	assert.Contains(t, progress[domain.PhaseMerge].Error, "403")
	assert.Empty(t, env.muxer.requests())
	assert.Equal(t, domain.StateError, session.State())
	env.assertNoTempFiles(t)
}

func TestSession_VideoOnlyPicksBestAudio(t *testing.T) {
	env := newTestEnv(t)
	session := newReadySession(t, env)

	ack, err := session.StartVideoDownload(domain.VideoRequest{VideoID: "136", Container: "MKV"})
	require.NoError(t, err)
	session.Wait()

	assert.Equal(t, "My Clip Part 1_720p_128kbps.mkv", filepath.Base(ack.Filename))
	requests := env.extractor.requests()
	require.Len(t, requests, 2)
	assert.Equal(t, "136", requests[0].RenditionID)
	assert.Equal(t, "140", requests[1].RenditionID)
}

func TestSession_CombinedDownloadSkipsMerge(t *testing.T) {
	env := newTestEnv(t)
	env.extractor.probe.Formats = append(env.extractor.probe.Formats,
		domain.RawFormat{ID: "18", Ext: "mp4", VideoCodec: "avc1", AudioCodec: "mp4a", Height: 360})
	session := newReadySession(t, env)

	ack, err := session.StartVideoDownload(domain.VideoRequest{VideoID: "18", AudioID: "140"})
	require.NoError(t, err)
	session.Wait()

	progress := session.Progress()
	assert.Equal(t, domain.PhaseFinished, progress[domain.PhaseVideo].Status)
	assert.Equal(t, domain.PhaseNotNeeded, progress[domain.PhaseAudio].Status)
	assert.Equal(t, domain.PhaseNotNeeded, progress[domain.PhaseMerge].Status)
	assert.Equal(t, "My Clip Part 1_360p.mp4", filepath.Base(ack.Filename))
	assert.Empty(t, env.muxer.requests())
	assert.Len(t, env.extractor.requests(), 1)
	assert.Equal(t, ack.Filename, env.extractor.requests()[0].Destination)
}

func TestSession_AudioDownload(t *testing.T) {
	env := newTestEnv(t)
	session := newReadySession(t, env)

	ack, err := session.StartAudioDownload(domain.AudioRequest{AudioID: "140"})
	require.NoError(t, err)
	session.Wait()

	progress := session.Progress()
	assert.Equal(t, domain.PhaseNotNeeded, progress[domain.PhaseVideo].Status)
	assert.Equal(t, domain.PhaseFinished, progress[domain.PhaseAudio].Status)
	assert.Equal(t, domain.PhaseNotNeeded, progress[domain.PhaseMerge].Status)
	assert.Equal(t, "My Clip Part 1_128kbps.m4a", filepath.Base(ack.Filename))
	assert.Empty(t, env.muxer.requests())
}

func TestSession_AudioTranscode(t *testing.T) {
	env := newTestEnv(t)
	session := newReadySession(t, env)

	ack, err := session.StartAudioDownload(domain.AudioRequest{AudioID: "140", Format: "mp3", SaveDir: "music"})
	require.NoError(t, err)
	session.Wait()

	assert.Equal(t, filepath.Join("/media/completed/music", "My Clip Part 1_128kbps.mp3"), ack.Filename)
	assert.Equal(t, domain.PhaseFinished, session.Progress()[domain.PhaseMerge].Status)
	require.Len(t, env.muxer.requests(), 1)
	assert.Equal(t, "libmp3lame", env.muxer.requests()[0].AudioCodec)
	assert.True(t, env.exists(ack.Filename))
	env.assertNoTempFiles(t)
}

func TestSession_RejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)
	session := newReadySession(t, env)

	_, err := session.StartVideoDownload(domain.VideoRequest{VideoID: "nope"})
	assert.ErrorIs(t, err, domain.ErrUnknownRendition)

	_, err = session.StartVideoDownload(domain.VideoRequest{VideoID: "248", Container: "avi"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	_, err = session.StartAudioDownload(domain.AudioRequest{AudioID: "140", Format: "wma"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	_, err = session.StartAudioDownload(domain.AudioRequest{URL: "https://other.example.com", AudioID: "140"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = session.StartAudioDownload(domain.AudioRequest{AudioID: "140", SaveDir: "../escape"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	assert.Equal(t, domain.StateReady, session.State())
	assert.True(t, IsClientError(err))
}

func TestSession_AlreadyDone(t *testing.T) {
	env := newTestEnv(t)
	session := newReadySession(t, env)

	first, err := session.StartAudioDownload(domain.AudioRequest{AudioID: "140"})
	require.NoError(t, err)
	session.Wait()

	second, err := session.StartAudioDownload(domain.AudioRequest{AudioID: "140"})
	require.NoError(t, err)
	assert.Equal(t, domain.AckAlreadyDone, second.Status)
	assert.Equal(t, first.JobID, second.JobID)
	assert.Equal(t, first.Filename, second.Filename)

	// once the file is gone the selection downloads again
	require.NoError(t, env.fs.Remove(first.Filename))
	third, err := session.StartAudioDownload(domain.AudioRequest{AudioID: "140"})
	require.NoError(t, err)
	assert.Equal(t, domain.AckStarted, third.Status)
	session.Wait()
}

func TestSession_CollisionFreeFilenames(t *testing.T) {
	env := newTestEnv(t)
	session := newReadySession(t, env)
	taken := filepath.Join("/media/completed", "My Clip Part 1_128kbps.flac")
	require.NoError(t, afero.WriteFile(env.fs, taken, []byte("other"), 0644))

	ack, err := session.StartAudioDownload(domain.AudioRequest{AudioID: "140", Format: "flac"})
	require.NoError(t, err)
	session.Wait()

	assert.Equal(t, "My Clip Part 1_128kbps (1).flac", filepath.Base(ack.Filename))
	content, err := afero.ReadFile(env.fs, taken)
	require.NoError(t, err)
	assert.Equal(t, "other", string(content))
}

func TestSession_NewJobSupersedesOld(t *testing.T) {
	env := newTestEnv(t)
	block := make(chan struct{})
	env.extractor.block = block
	session := newReadySession(t, env)

	first, err := session.StartVideoDownload(domain.VideoRequest{VideoID: "248", AudioID: "140"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(env.extractor.requests()) == 2 }, time.Second, 5*time.Millisecond)

	env.extractor.setBlock(nil)
	second, err := session.StartAudioDownload(domain.AudioRequest{AudioID: "140"})
	require.NoError(t, err)
	assert.NotEqual(t, first.JobID, second.JobID)

	// the second job runs unblocked while the first is still parked
	require.Eventually(t, func() bool { return session.State() == domain.StateDone }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, second.Filename, session.Done())

	close(block)
	session.Wait()

	assert.Equal(t, domain.StateDone, session.State())
	assert.Equal(t, second.Filename, session.Done())
	assert.Equal(t, domain.PhaseNotNeeded, session.Progress()[domain.PhaseVideo].Status)
	assert.Equal(t, domain.PhaseNotNeeded, session.Progress()[domain.PhaseMerge].Status)
}

func TestSession_CancelRequiresActiveJob(t *testing.T) {
	env := newTestEnv(t)
	session := NewSession("s", env.services)

	assert.ErrorIs(t, session.Cancel(), domain.ErrNothingToCancel)

	session = newReadySession(t, env)
	assert.ErrorIs(t, session.Cancel(), domain.ErrNothingToCancel)
	assert.Equal(t, domain.StateReady, session.State())
}

func TestSession_StartRequiresCatalog(t *testing.T) {
	session := NewSession("s", newTestEnv(t).services)

	_, err := session.StartVideoDownload(domain.VideoRequest{VideoID: "248"})
	assert.ErrorIs(t, err, domain.ErrNoCatalog)
}

func TestSession_Reset(t *testing.T) {
	env := newTestEnv(t)
	session := newReadySession(t, env)

	_, err := session.StartAudioDownload(domain.AudioRequest{AudioID: "140"})
	require.NoError(t, err)
	session.Wait()
	require.NotEmpty(t, session.Done())

	session.Reset()
	once := session.Progress()
	session.Reset()

	assert.Equal(t, domain.StateIdle, session.State())
	assert.Nil(t, session.Info())
	assert.Empty(t, session.Done())
	assert.Equal(t, once, session.Progress())
	assert.Equal(t, domain.NewProgressTable(), session.Progress())
}

func TestSession_ResetCancelsRunningJob(t *testing.T) {
	env := newTestEnv(t)
	env.extractor.block = make(chan struct{})
	session := newReadySession(t, env)

	_, err := session.StartVideoDownload(domain.VideoRequest{VideoID: "248", AudioID: "140"})
	require.NoError(t, err)

	session.Reset()
	session.Wait()

	assert.Equal(t, domain.StateIdle, session.State())
	assert.Equal(t, domain.NewProgressTable(), session.Progress())
	env.assertNoTempFiles(t)
}
