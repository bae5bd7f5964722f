package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogstate-service/internal/config"
)

func TestInit_WritesJSONFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	log, err := Init(config.LoggingConfig{Level: "debug", Directory: dir, MaxSize: 1})
	require.NoError(t, err)

	log.Info("session started")
	_ = log.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "cogstate.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"session started"`)
}

func TestInit_RejectsUnknownLevel(t *testing.T) {
	_, err := Init(config.LoggingConfig{Level: "chatty", Directory: t.TempDir()})
	assert.Error(t, err)
}
