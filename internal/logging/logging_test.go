// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/paper-harvester/pkg/types"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.LogConfig
		enabled zapcore.Level
		quiet   zapcore.Level
	}{
		{"default level", types.LogConfig{}, zapcore.InfoLevel, zapcore.DebugLevel},
		{"console debug", types.LogConfig{Level: "debug", Format: "console"}, zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"json warn", types.LogConfig{Level: "warn", Format: "json"}, zapcore.WarnLevel, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.quiet))
		})
	}
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(types.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
