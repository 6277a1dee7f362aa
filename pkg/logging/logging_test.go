package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type label string

func (l label) String() string { return string(l) }

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	originalOutput := logger.Out
	originalLevel := logger.GetLevel()
	logger.SetOutput(&buf)
	t.Cleanup(func() {
		logger.SetOutput(originalOutput)
		logger.SetLevel(originalLevel)
	})
	return &buf
}

func TestSetLevel(t *testing.T) {
	buf := captureOutput(t)

	SetLevel(InfoLevel)
	assert.False(t, IsDebug())

	Debugf("Debug message")
	assert.Empty(t, buf.String())

	buf.Reset()
	Infof("Info message")
	assert.Contains(t, buf.String(), "Info message")

	buf.Reset()
	SetLevel(WarnLevel)
	Infof("Suppressed info")
	Warnf("Warn message %d", 7)
	assert.NotContains(t, buf.String(), "Suppressed info")
	assert.Contains(t, buf.String(), "Warn message 7")

	SetLevel(DebugLevel)
	assert.True(t, IsDebug())
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"":        InfoLevel,
		"warn":    WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestWithFields(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(DebugLevel)

	InfoWithFields(logrus.Fields{"component": "transport", "peer": "127.0.0.1:5000"}, "Message with fields")

	out := buf.String()
	assert.Contains(t, out, "Message with fields")
	assert.Contains(t, out, "component=transport")
	assert.Contains(t, out, "peer=\"127.0.0.1:5000\"")
}

func TestWithDirection(t *testing.T) {
	buf := captureOutput(t)

	WithDirection(label("interface-to-socket")).Errorf("direction failed")
	out := buf.String()
	assert.Contains(t, out, "direction=interface-to-socket")
	assert.Contains(t, out, "direction failed")
}

func TestFileLogging(t *testing.T) {
	captureOutput(t)
	tempDir := t.TempDir()

	err := EnableFileLogging(tempDir, "test.log", 10, 3, 7)
	assert.NoError(t, err)

	Infof("File log test message")

	content, err := os.ReadFile(filepath.Join(tempDir, "test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "File log test message")
}
