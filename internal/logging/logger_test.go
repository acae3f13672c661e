package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ralt/spkrepo/internal/config"
)

func TestNewDefaultsToStdout(t *testing.T) {
	logger, err := New(config.LogConfig{Level: "info"})
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, logger.Out)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "spkrepo.log")
	logger, err := New(config.LogConfig{Level: "debug", File: path, MaxSize: 1, MaxBackups: 2})
	require.NoError(t, err)

	rotator, ok := logger.Out.(*lumberjack.Logger)
	require.True(t, ok)
	t.Cleanup(func() { _ = rotator.Close() })

	logger.WithField("source", "/srv/spk").Info("Source reconciled")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "Source reconciled", entry["msg"])
	assert.Equal(t, "/srv/spk", entry["source"])
}

func TestNewFallsBackWhenDirectoryIsBlocked(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	logger, err := New(config.LogConfig{Level: "info", File: filepath.Join(blocker, "spkrepo.log")})
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, logger.Out)
}

func TestRequestFields(t *testing.T) {
	fields := RequestFields("id", "GET", "/spk", 200, 1500*time.Millisecond)
	assert.Equal(t, int64(1500), fields["latency_ms"])
	assert.Equal(t, "id", fields["request_id"])
}
