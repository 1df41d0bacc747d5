package ingest

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/jmylchreest/avfailover/internal/events"
	"github.com/jmylchreest/avfailover/internal/handoff"
	"github.com/jmylchreest/avfailover/internal/mediaio"
	"github.com/stretchr/testify/assert"
)

func newTestWorker(t *testing.T) (*Worker, *handoff.Buffer) {
	t.Helper()
	buf := handoff.New(48000)
	sink := events.NewSink(&bytes.Buffer{}, "test")
	cancel := events.NewCancel()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	w := New(Config{
		PrimaryURL:     "srt://example.invalid",
		Geometry:       mediaio.Geometry{Width: 1280, Height: 720},
		SampleRate:     48000,
		Channels:       2,
		OpenTimeout:    50 * time.Millisecond,
		StallTimeout:   2 * time.Second,
		ReconnectDelay: 100 * time.Millisecond,
	}, buf, sink, cancel, logger)
	return w, buf
}

func TestSleepReconnectDelayHonorsCancellation(t *testing.T) {
	w, _ := newTestWorker(t)
	w.cancel.Set()

	start := time.Now()
	w.sleepReconnectDelay()
	elapsed := time.Since(start)

	assert.Less(t, elapsed, w.reconnectDelay, "cancellation should short-circuit the wait")
}

func TestDisconnectClearsBufferAndEmitsEvent(t *testing.T) {
	w, buf := newTestWorker(t)
	var out bytes.Buffer
	w.sink = events.NewSink(&out, "test")
	buf.ResetForConnect()
	buf.PublishAudio([]float32{1, 2})

	w.disconnect(events.Timeout)

	assert.False(t, buf.Connected())
	assert.Empty(t, buf.DrainAudio())
	assert.Contains(t, out.String(), `"event":"primary_dropped"`)
	assert.Contains(t, out.String(), `"reason":"timeout"`)
}

func TestDisconnectReasonClassifiesReadTimeout(t *testing.T) {
	timeoutErr := &mediaio.Error{Kind: mediaio.KindReadTimeout, Msg: "read stalled past timeout"}
	assert.Equal(t, events.Timeout, disconnectReason(timeoutErr))

	otherErr := &mediaio.Error{Kind: mediaio.KindRead, Msg: "reading packet"}
	assert.Equal(t, events.ReadError, disconnectReason(otherErr))
}

func TestRunExitsImmediatelyWhenAlreadyCancelled(t *testing.T) {
	w, _ := newTestWorker(t)
	w.cancel.Set()

	done := make(chan struct{})
	go func() {
		w.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit promptly when cancelled before start")
	}
}
