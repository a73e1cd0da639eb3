package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomFormatter(t *testing.T) {
	l := logrus.New()
	l.SetFormatter(&CustomFormatter{})
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.WithFields(logrus.Fields{"run": "r1", "attempt": "primary"}).Warn("timeout")

	line := buf.String()
	assert.Contains(t, line, "[WARN]")
	assert.True(t, strings.HasSuffix(line, "timeout attempt=primary run=r1\n"), line)
}

func TestCustomFormatter_TruncatesLevel(t *testing.T) {
	entry := &logrus.Entry{Time: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), Level: logrus.ErrorLevel, Message: "boom"}
	out, err := (&CustomFormatter{}).Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "[2026-01-02 03:04:05] [ERRO] [] boom\n", string(out))
}

func TestInitLogger_WritesFile(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	path := filepath.Join(t.TempDir(), "logs", "research.log")
	require.NoError(t, InitLogger("debug", path))
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())

	Log.Debug("hello")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestInitLogger_BadLevelFallsBackToInfo(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	require.NoError(t, InitLogger("loud", ""))
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())
}
