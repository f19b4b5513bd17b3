package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultIsNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Info("not initialised", zap.String("k", "v"))
	})
}

func TestInitWritesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "beacon.log")
	require.NoError(t, Init(&LogConfig{Level: "debug", Filename: file}, "release"))
	Info("alert acknowledged", zap.String("alert_id", "a1"))
	_ = Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "alert acknowledged")
	assert.Contains(t, string(data), `"alert_id":"a1"`)
}

func TestInitRejectsBadLevel(t *testing.T) {
	assert.Error(t, Init(&LogConfig{Level: "loud"}, "debug"))
}
