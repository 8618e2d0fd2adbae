package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/nemonet1337/soukoWMS/internal/config"
)

// TestNewLogger はログ設定からのロガー構築のテスト
func TestNewLogger(t *testing.T) {
	logger, err := newLogger(config.LoggingConfig{Level: "debug", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = newLogger(config.LoggingConfig{Level: "warn", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	// 無効なレベルはエラー
	_, err = newLogger(config.LoggingConfig{Level: "verbose", Format: "json", Output: "stdout"})
	assert.Error(t, err)
}
