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

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	log, err := New(Config{Level: "debug", Format: "json", OutputPath: path})
	require.NoError(t, err)

	log.Info("hello", zap.String("k", "v"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	log, err := New(Config{Level: "loud", Format: "json", OutputPath: path})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("shown")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestMultiLogger_WriteAndRead(t *testing.T) {
	dir := t.TempDir()

	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir}, nil)
	require.NoError(t, err)

	ml.LogDiscoveryEvent("discovery_completed", zap.String("url", "https://example.com"), zap.Int("files", 3))
	ml.LogDownloadEvent("item_failed", zap.String("url", "https://example.com/a.png"), zap.Int("status", 404))
	ml.LogJobEvent("job_submitted", zap.String("id", "abc"))
	ml.LogAppError("boom", zap.String("id", "abc"))
	require.NoError(t, ml.Close())

	reader := NewLogReader(dir)

	entries, err := reader.ReadTodayLogs(CategoryDiscovery, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "discovery_completed", entries[0].Message)
	assert.Equal(t, "info", entries[0].Level)
	assert.Equal(t, "discovery", entries[0].Category)
	assert.Equal(t, "https://example.com", entries[0].Fields["url"])

	errs, err := reader.ReadTodayLogs(CategoryError, 10)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "boom", errs[0].Message)

	found, err := reader.SearchLogs(CategoryDownload, time.Now(), "A.PNG", 0)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	none, err := reader.SearchLogs(CategoryJob, time.Now(), "nothing-like-this", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLogReader_LimitAndMissing(t *testing.T) {
	dir := t.TempDir()
	reader := NewLogReader(dir)

	entries, err := reader.ReadTodayLogs(CategoryJob, 5)
	require.NoError(t, err)
	assert.Empty(t, entries)

	path := reader.GetLogPath(CategoryJob, time.Now())
	content := "{\"message\":\"one\",\"level\":\"info\"}\nplain text line\n{\"message\":\"three\",\"level\":\"warn\"}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	entries, err = reader.ReadTodayLogs(CategoryJob, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "plain text line", entries[0].Message)
	assert.Equal(t, "three", entries[1].Message)

	_, err = reader.ReadTodayLogs(LogCategory("bogus"), 0)
	assert.Error(t, err)
}

func TestNewMultiLogger_RequiresDir(t *testing.T) {
	_, err := NewMultiLogger(MultiLoggerConfig{}, nil)
	assert.Error(t, err)
}
