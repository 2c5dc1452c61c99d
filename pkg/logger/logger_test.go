package logger

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope(t *testing.T) {
	attr := Scope("segments.mapper")
	assert.Equal(t, "scope", attr.Key)
	assert.Equal(t, "segments.mapper", attr.Value.String())
}

func TestErrorAttr(t *testing.T) {
	err := errors.New("pool exhausted")
	attr := Error(err)
	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.Nil(t, Error(nil).Value.Any())
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level    string
		enabled  slog.Level
		disabled slog.Level
	}{
		{"", slog.LevelInfo, slog.LevelDebug},
		{"debug", slog.LevelDebug, slog.LevelDebug - 4},
		{"DEBUG", slog.LevelDebug, slog.LevelDebug - 4},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"warning", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"not-a-level", slog.LevelInfo, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run("LOG_LEVEL="+tt.level, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)

			log := NewLogger()
			require.NotNil(t, log)
			assert.True(t, log.Enabled(nil, tt.enabled))
			assert.False(t, log.Enabled(nil, tt.disabled))
		})
	}
}
