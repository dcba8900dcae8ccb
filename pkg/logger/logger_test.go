package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(t *testing.T, format string) (*Logger, *bytes.Buffer) {
	t.Helper()
	log, err := NewLogger(&Config{Level: InfoLevel, Format: format, AppName: "racebeacon", Version: "1.0.0"})
	require.NoError(t, err)
	var buf bytes.Buffer
	log.SetOutput(&buf)
	return log, &buf
}

func TestJSONFormatterCarriesFields(t *testing.T) {
	log, buf := newBufferedLogger(t, "json")

	log.WithSessionID("conn-1").WithField("event", "register_user").Info("Session registered")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Session registered", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "conn-1", entry["session_id"])
	assert.Equal(t, "racebeacon", entry["app"])
	assert.Equal(t, "1.0.0", entry["version"])
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	log, buf := newBufferedLogger(t, "json")

	_ = log.WithEmergencyID("em_1")
	log.Info("plain")

	assert.NotContains(t, buf.String(), "em_1")
}

func TestLevelFiltering(t *testing.T) {
	log, buf := newBufferedLogger(t, "json")

	log.LogSweep(0, 0, 0, time.Millisecond)
	assert.Empty(t, buf.String(), "idle sweeps log at debug")

	log.LogSweep(1, 0, 0, time.Millisecond)
	assert.Contains(t, buf.String(), `"evicted_sessions":1`)

	buf.Reset()
	log.SetLevel(WarnLevel)
	log.Info("hidden")
	log.LogEmergencyEvent("em_2", "raised", nil)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "em_2")
}

func TestTextFormatter(t *testing.T) {
	log, buf := newBufferedLogger(t, "text")

	log.WithSessionID("conn-9").Warn("Send buffer full")

	line := buf.String()
	assert.Contains(t, line, "Send buffer full")
	assert.Contains(t, line, "conn-9")
	assert.True(t, strings.HasSuffix(line, "\n"))
}
