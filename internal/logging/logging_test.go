package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(zapcore.DebugLevel)
	assert.Equal(t, []string{"stderr"}, cfg.OutputPaths)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level.Level())
	assert.True(t, cfg.DisableStacktrace)
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "plenctl.log")
	logger, err := NewFile("driver", "warn", path)
	require.NoError(t, err)

	logger.Infow("connected", "path", "/dev/ttyACM0")
	logger.Warnw("transport write failed", "error", "unplugged")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.False(t, strings.Contains(out, "connected"))
	assert.Contains(t, out, "transport write failed")
	assert.Contains(t, out, "driver")
}

func TestNewBadLevel(t *testing.T) {
	_, err := New("x", "loud")
	assert.Error(t, err)
	_, err = NewFile("x", "loud", filepath.Join(t.TempDir(), "x.log"))
	assert.Error(t, err)
}
