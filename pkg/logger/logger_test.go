package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level       string
		development bool
		enabled     zapcore.Level
		disabled    zapcore.Level
	}{
		{level: "info", enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
		{level: "debug", development: true, enabled: zapcore.DebugLevel, disabled: zapcore.DebugLevel - 1},
		{level: "WARN", enabled: zapcore.WarnLevel, disabled: zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := New(tt.level, tt.development)
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.enabled))
			assert.False(t, l.Core().Enabled(tt.disabled))
		})
	}

	_, err := New("loud", false)
	assert.Error(t, err)
}

func TestGetBeforeInit(t *testing.T) {
	if globalLogger != nil {
		t.Skip("global logger already initialized")
	}
	assert.NotNil(t, Get())
	assert.NoError(t, Sync())
}
