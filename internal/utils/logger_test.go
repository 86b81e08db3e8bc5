package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFieldsReachZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	GetLogger().Named("stories").Info("story enhanced", map[string]interface{}{
		"story_id": "s1",
		"step":     5,
		"error":    errors.New("boom"),
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "story enhanced", entries[0].Message)
	assert.Equal(t, "stories", entries[0].LoggerName)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "s1", ctx["story_id"])
	assert.EqualValues(t, 5, ctx["step"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestInitLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, InitLogger(dir, false))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	GetLogger().Infof("hello %s", "world")
	_ = GetLogger().Sync()

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello world")
}
