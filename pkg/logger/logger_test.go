package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

func TestNew_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	log, err := New(domain.LoggingConfig{Level: "warn", Format: "json", OutputPath: path})
	require.NoError(t, err)

	log.Info("dropped below level")
	log.Warn("kept")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "warn", entry["level"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(domain.LoggingConfig{Level: "loud", Format: "console"})
	assert.Error(t, err)
}

func TestNew_UnwritableFile(t *testing.T) {
	_, err := New(domain.LoggingConfig{Level: "info", OutputPath: filepath.Join(t.TempDir(), "missing", "server.log")})
	assert.Error(t, err)
}

func TestNew_StandardStreams(t *testing.T) {
	for _, out := range []string{"", "stdout", "stderr"} {
		log, err := New(domain.LoggingConfig{Level: "info", Format: "console", OutputPath: out})
		require.NoError(t, err, out)
		assert.NotNil(t, log)
	}
}
