package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, NewLogger(Config{Level: "DEBUG"}).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewLogger(Config{Level: "loud"}).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewLogger(Config{}).GetLevel())
}

func TestFileSinkReceivesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metalwatch.log")
	logger := NewLogger(Config{Format: "console", File: FileConfig{Path: path, MaxSizeMB: 1}})

	logger.Info().Str("metal", "XAU").Msg("digest sent")

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"metal":"XAU"`)
	assert.Contains(t, string(body), `"message":"digest sent"`)
}
