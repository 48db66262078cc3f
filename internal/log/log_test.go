package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})

	Debug("debug line")
	Info("info line")
	Warn("warn line", "line", "32nd Jan 2025")
	Error("error line", errors.New("boom"))

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, `[WARN] warn line line="32nd Jan 2025"`)
	assert.Contains(t, out, "[ERROR] error line err=boom")
}

func TestDiagnosticsFileReceivesWarnAndError(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelDebug)

	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, SetDiagnosticsFile(path))
	t.Cleanup(func() {
		Close()
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})

	Info("fetched page", "bytes", 1024)
	Warn("skipping line", "line", "bad")
	Error("write failed", errors.New("disk full"))

	Close()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	diag := string(data)
	assert.NotContains(t, diag, "fetched page")
	assert.Contains(t, diag, "skipping line")
	assert.Contains(t, diag, `err="disk full"`)
	assert.Equal(t, 2, strings.Count(diag, "\n"))

	// Main stream keeps everything.
	assert.Contains(t, buf.String(), "fetched page bytes=1024")
}

func TestFormatKVsIgnoresOddAndNonStringKeys(t *testing.T) {
	assert.Equal(t, " a=1", formatKVs("a", 1, 2, 3, "dangling"))
	assert.Equal(t, ` k=""`, formatKVs("k", ""))
}
