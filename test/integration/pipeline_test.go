//go:build integration

package integration

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yourusername/mediagrab-go/internal/app"
	"github.com/yourusername/mediagrab-go/internal/domain"
	"github.com/yourusername/mediagrab-go/internal/infrastructure"
)

// These tests run the real yt-dlp and ffmpeg binaries against MEDIAGRAB_IT_URL:
//
//	MEDIAGRAB_IT_URL=https://... go test -tags integration ./test/integration/
func setupSession(t *testing.T) (*app.Session, string) {
	t.Helper()

	url := os.Getenv("MEDIAGRAB_IT_URL")
	if url == "" {
		t.Skip("MEDIAGRAB_IT_URL not set")
	}
	for _, bin := range []string{"yt-dlp", "ffmpeg"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found on PATH", bin)
		}
	}

	log := zaptest.NewLogger(t)
	history, err := infrastructure.NewSQLiteJobRepository("")
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	config := domain.DefaultConfig()
	config.Download.BaseDir = t.TempDir()

	services := &app.Services{
		Extractor: infrastructure.NewYTDLPExtractor(&config.Extractor, log),
		Muxer:     infrastructure.NewFFmpegMuxer(&config.Muxer, log),
		Files:     app.NewAllocator(afero.NewOsFs()),
		History:   history,
		Download:  &config.Download,
		Logger:    log,
	}
	return app.NewSession("integration", services), url
}

func waitForState(t *testing.T, session *app.Session) domain.SessionState {
	t.Helper()

	done := make(chan struct{})
	go func() {
		session.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Minute):
		t.Fatal("job did not finish in time")
	}
	return session.State()
}

func TestPipeline_MergedVideo(t *testing.T) {
	session, url := setupSession(t)

	info, err := session.Fetch(context.Background(), url)
	require.NoError(t, err)
	require.NotEmpty(t, info.VideoFormats)

	// smallest listed video keeps the run short
	video := info.VideoFormats[0]
	ack, err := session.StartVideoDownload(domain.VideoRequest{VideoID: video.ID, Container: "mkv"})
	require.NoError(t, err)
	require.Equal(t, domain.AckStarted, ack.Status)

	require.Equal(t, domain.StateDone, waitForState(t, session), session.View().Error)

	stat, err := os.Stat(session.Done())
	require.NoError(t, err)
	assert.Greater(t, stat.Size(), int64(0))

	for _, phase := range domain.Phases {
		status := session.Progress()[phase].Status
		assert.Contains(t, []domain.PhaseStatus{domain.PhaseFinished, domain.PhaseNotNeeded}, status, phase)
	}
}

func TestPipeline_AudioTranscode(t *testing.T) {
	session, url := setupSession(t)

	info, err := session.Fetch(context.Background(), url)
	require.NoError(t, err)
	if len(info.AudioFormats) == 0 {
		t.Skip("no audio-only formats")
	}

	ack, err := session.StartAudioDownload(domain.AudioRequest{AudioID: info.AudioFormats[0].ID, Format: "mp3"})
	require.NoError(t, err)
	require.Equal(t, domain.AckStarted, ack.Status)

	require.Equal(t, domain.StateDone, waitForState(t, session), session.View().Error)
	assert.FileExists(t, session.Done())
	assert.Equal(t, ".mp3", ack.Filename[len(ack.Filename)-4:])
}

func TestPipeline_Cancel(t *testing.T) {
	session, url := setupSession(t)

	info, err := session.Fetch(context.Background(), url)
	require.NoError(t, err)
	require.NotEmpty(t, info.VideoFormats)

	last := info.VideoFormats[len(info.VideoFormats)-1]
	_, err = session.StartVideoDownload(domain.VideoRequest{VideoID: last.ID})
	require.NoError(t, err)
	require.NoError(t, session.Cancel())

	assert.Equal(t, domain.StateCancelled, waitForState(t, session))
	assert.NoFileExists(t, session.Done())
}
