package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Output: &buf})
	require.NoError(t, err)

	logger.Info("hidden %d", 1)
	logger.Warn("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "shown 2")
	assert.False(t, logger.Enabled(LevelDebug))

	logger.SetLevel(LevelTrace)
	logger.Trace("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestLoggerInvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	require.Error(t, err)
}

func TestLoggerWithPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Output: &buf})
	require.NoError(t, err)

	logger.WithPrefix("fs").WithPrefix("dir").Info("listing")
	assert.Contains(t, buf.String(), "component=fs.dir")

	buf.Reset()
	logger.WithField("path", "a/b").Info("opened")
	assert.Contains(t, buf.String(), "path=a/b")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("nobody hears this")
	assert.False(t, logger.Enabled(LevelError))
}
