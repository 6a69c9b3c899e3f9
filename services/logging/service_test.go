package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewService(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		service, err := NewService(Config{Level: Info, Format: "json", OutputPath: "stdout"})

		require.NoError(t, err)
		assert.NotNil(t, service)
		assert.NotNil(t, service.Logger())
	})

	t.Run("console format", func(t *testing.T) {
		service, err := NewService(Config{Level: Debug, Format: "console", OutputPath: "stdout"})

		require.NoError(t, err)
		assert.NotNil(t, service)
	})

	t.Run("empty output path falls back to stdout", func(t *testing.T) {
		service, err := NewService(Config{Level: Info, Format: "json"})

		require.NoError(t, err)
		assert.NotNil(t, service)
		assert.NotNil(t, service.Logger())
	})
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLogLevel(Debug))
	assert.Equal(t, zapcore.InfoLevel, parseLogLevel(Info))
	assert.Equal(t, zapcore.WarnLevel, parseLogLevel(Warn))
	assert.Equal(t, zapcore.ErrorLevel, parseLogLevel(Error))
	assert.Equal(t, zapcore.InfoLevel, parseLogLevel(LogLevel("bogus")))
}

func TestNilServiceIsSafe(t *testing.T) {
	var service *Service

	assert.Nil(t, service.Logger())
	assert.NoError(t, service.Sync())

	service.Debug("debug", zap.String("k", "v"))
	service.Info("info")
	service.Warn("warn")
	service.Error("error")
}
