package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)

	log := Logger("test")
	log.Info("test message", "key", "value")

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "key=value")
	assert.Contains(t, output, "subsystem=test")
}

// TestSetOutput_ExistingLogger 切换输出后已创建的 logger 仍然生效
func TestSetOutput_ExistingLogger(t *testing.T) {
	log := Logger("test2")

	buf := &bytes.Buffer{}
	SetOutput(buf)

	log.Info("after switch", "key", "value")
	assert.Contains(t, buf.String(), "after switch")
}

func TestSetLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)

	log := Logger("test-level")
	SetLevel("test-level", slog.LevelError)
	log.Info("hidden")
	assert.NotContains(t, buf.String(), "hidden")

	SetLevel("test-level", slog.LevelDebug)
	log.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestParseConfig(t *testing.T) {
	cfg := ParseConfig("relay/client=debug, warn ,bogus=nope", "JSON")

	require.NotNil(t, cfg)
	assert.Equal(t, slog.LevelWarn, cfg.DefaultLevel)
	assert.Equal(t, slog.LevelDebug, cfg.LevelForSubsystem("relay/client"))
	assert.Equal(t, slog.LevelWarn, cfg.LevelForSubsystem("gossipsub"))
	assert.Equal(t, FormatJSON, cfg.Format)

	cfg = ParseConfig("", "")
	assert.Equal(t, slog.LevelInfo, cfg.DefaultLevel)
	assert.Equal(t, FormatText, cfg.Format)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12D3Koo", TruncateID("12D3KooWabc", 7))
	assert.Equal(t, "abc", TruncateID("abc", 8))
	assert.Equal(t, "", TruncateID("", 8))
}

func TestDiscard(t *testing.T) {
	l := Discard()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}
