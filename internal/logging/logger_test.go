package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "zakupki.log")
	logger, err := New(Options{Path: path, Level: "info"})
	require.NoError(t, err)

	logger.Debug("hidden at info level")
	logger.Info("notices loaded", zap.Int("count", 3))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "notices loaded", entry["message"])
	assert.EqualValues(t, 3, entry["count"])
	assert.Contains(t, entry, "timestamp")
}

func TestVerboseEnablesDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zakupki.log")
	logger, err := New(Options{Path: path, Level: "error", Verbose: true})
	require.NoError(t, err)
	logger.Debug("request sent")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "request sent")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Path: filepath.Join(t.TempDir(), "x.log"), Level: "loud"})
	assert.Error(t, err)
}
