package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, FormatJSON, slog.LevelInfo)

	l.Event("PATIENT_FAILED", "P7", "patience ran out")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "event", line["msg"])
	assert.Equal(t, "PATIENT_FAILED", line["type"])
	assert.Equal(t, "P7", line["actor"])
	assert.Equal(t, "clinic", line["component"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, FormatText, slog.LevelWarn)

	l.Infof("tick %d", 1)
	assert.Zero(t, buf.Len())

	l.Warnf("slow tick %d", 2)
	assert.Contains(t, buf.String(), "slow tick 2")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestDiscardIsSilent(t *testing.T) {
	l := Discard()
	l.Error("ignored")
	l.With("run", "x").Event("A", "B", "C")
}
