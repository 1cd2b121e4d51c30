package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewMultiLogger_RequiresDir(t *testing.T) {
	_, err := NewMultiLogger(MultiLoggerConfig{Level: "info"})
	assert.Error(t, err)
}

func TestMultiLogger_WritesCategoryFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)

	ml.LogJobEvent("job_started", zap.String("job_id", "j1"), zap.String("kind", "video"))
	ml.LogAppError("job failed", zap.String("job_id", "j1"), zap.String("error", "exit code 1"))
	require.NoError(t, ml.Close())

	today := time.Now().Format(dateLayout)
	for _, category := range Categories {
		_, err := os.Stat(filepath.Join(dir, logFileName(category, today)))
		assert.NoError(t, err, category)
	}

	reader := NewLogReader(dir)
	jobs, err := reader.ReadLogs(CategoryJob, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job_started", jobs[0].Message)
	assert.Equal(t, "info", jobs[0].Level)
	assert.Equal(t, "j1", jobs[0].Fields["job_id"])
	assert.NotEmpty(t, jobs[0].Timestamp)

	errs, err := reader.ReadLogs(CategoryError, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "error", errs[0].Level)
}

func TestMultiLogger_ErrorCategoryIgnoresInfo(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "debug", LogsDir: dir})
	require.NoError(t, err)

	ml.Error().Info("not an error")
	require.NoError(t, ml.Close())

	entries, err := NewLogReader(dir).ReadLogs(CategoryError, time.Now(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMultiLogger_UnknownCategoryFallsBackToError(t *testing.T) {
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: t.TempDir()})
	require.NoError(t, err)
	defer ml.Close()

	assert.Same(t, ml.Error(), ml.GetLogger(LogCategory("bogus")))
}

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory(CategoryJob))
	assert.True(t, ValidCategory(CategoryError))
	assert.False(t, ValidCategory("download"))
}
