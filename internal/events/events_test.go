package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(buf *bytes.Buffer) *Sink {
	s := NewSink(buf, "chan-1")
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func TestEmitWritesOneJSONLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSink(&buf)

	s.Started()
	s.PrimaryDropped(Timeout)

	scanner := bufio.NewScanner(&buf)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "started", first["event"])
	assert.Equal(t, "chan-1", first["stream_id"])
	assert.EqualValues(t, 1700000000, first["ts"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "primary_dropped", second["event"])
	assert.Equal(t, "timeout", second["reason"])
}

func TestStatsEventFields(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSink(&buf)

	s.StatsEvent(StatsSnapshot{FPS: 30, PrimaryConnected: true, AudioMode: "PRIMARY"})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded))
	assert.Equal(t, "stats", decoded["event"])
	assert.EqualValues(t, 30, decoded["fps"])
	assert.Equal(t, true, decoded["primary_connected"])
	assert.Equal(t, "PRIMARY", decoded["audio_mode"])
}

func TestCancelRequested(t *testing.T) {
	c := NewCancel()
	assert.False(t, c.Requested())
	c.Set()
	assert.True(t, c.Requested())
	c.Set()
	assert.True(t, c.Requested())
}
