package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestZapLogger_FieldsAndErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).Named("receiver")

	log.WithFields(map[string]interface{}{"worker": "fanout"}).
		Error("delivery failed", map[string]interface{}{
			"userId": int64(4),
			"error":  errors.New("smtp down"),
		})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "delivery failed", entry.Message)
	assert.Equal(t, "receiver", entry.LoggerName)

	ctx := entry.ContextMap()
	assert.Equal(t, "fanout", ctx["worker"])
	assert.Equal(t, int64(4), ctx["userId"])
	assert.Equal(t, "smtp down", ctx["error"])
}

func TestZapLogger_WithError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewZapAdapter(zap.New(core))

	log.WithError(errors.New("boom")).Info("ignored", nil)
	log.Debug("below level", nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
}

func TestNewNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	assert.NotPanics(t, func() {
		log.Info("nothing", map[string]interface{}{"a": 1})
		_ = log.Sync()
	})
}
