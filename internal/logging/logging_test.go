package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	for _, tc := range []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	} {
		l, err := New(tc.level, "json")
		require.NoError(t, err, tc.level)
		assert.True(t, l.Core().Enabled(tc.want), tc.level)
		if tc.want > zapcore.DebugLevel {
			assert.False(t, l.Core().Enabled(tc.want-1), tc.level)
		}
	}
}

func TestNewConsole(t *testing.T) {
	l, err := New("info", "console")
	require.NoError(t, err)
	l.Info("console logger works")
}
