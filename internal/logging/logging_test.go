package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWithPath_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "ecojourney.log")
	result := NewLoggerWithPath(Config{Level: "debug", Format: FormatJSON, Output: OutputFile, File: path})
	t.Cleanup(func() { _ = result.Close() })

	require.True(t, result.UsingFile)
	assert.False(t, result.FallbackUsed)
	assert.Equal(t, path, result.FilePath)

	result.Logger.Info().Str("component", "test").Msg("hello")
	require.NoError(t, result.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, string(data), `"message":"hello"`)
}

func TestNewLoggerWithPath_FallbackWhenFileMissing(t *testing.T) {
	t.Parallel()

	result := NewLoggerWithPath(Config{Level: "info", Output: OutputFile})
	assert.False(t, result.UsingFile)
	assert.True(t, result.FallbackUsed)
	assert.NotEmpty(t, result.FallbackReason)
}

func TestNewLogger_InvalidLevelDefaultsToInfo(t *testing.T) {
	t.Parallel()

	l := NewLogger(Config{Level: "loud"})
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	t.Run("no logger attached", func(t *testing.T) {
		t.Parallel()
		l := FromContext(context.Background())
		require.NotNil(t, l)
	})

	t.Run("attached logger is returned", func(t *testing.T) {
		t.Parallel()
		base := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
		ctx := base.WithContext(context.Background())
		assert.Equal(t, zerolog.WarnLevel, FromContext(ctx).GetLevel())
	})
}
