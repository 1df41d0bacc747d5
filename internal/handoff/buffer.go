// Package handoff implements the shared structure through which the
// ingestion worker publishes decoded primary frames and samples to the
// compositor loop. It holds exactly one mutex and no condition
// variables: the compositor paces itself on a clock, never on buffer
// fullness, so there is nothing to wait on here.
package handoff

import (
	"sync"
	"time"

	"github.com/jmylchreest/avfailover/internal/mediaio"
)

// Buffer is the single shared instance sitting between the ingestion
// worker and the compositor: a single-slot tail-drop video cell plus a
// bounded audio FIFO, guarded by one mutex.
type Buffer struct {
	mu sync.Mutex

	latestVideo mediaio.VideoFrame
	hasVideo    bool

	audio       []float32
	audioCap    int // in samples, across all channels

	connected    bool
	lastActivity time.Time
}

// New allocates a Buffer whose audio queue holds at most audioCapSamples
// interleaved/planar sample values (capacity ≥ 2 seconds at output rate;
// the caller computes that bound from config).
func New(audioCapSamples int) *Buffer {
	return &Buffer{
		audioCap:     audioCapSamples,
		lastActivity: time.Now(),
	}
}

// PublishVideo overwrites latest_video, sets has_video and bumps
// last_activity. The writer is always the ingestion worker.
func (b *Buffer) PublishVideo(frame mediaio.VideoFrame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latestVideo = frame
	b.hasVideo = true
	b.lastActivity = time.Now()
}

// PublishAudio appends samples to the audio queue, dropping the oldest
// samples first if the queue would exceed its capacity.
func (b *Buffer) PublishAudio(samples []float32) {
	if len(samples) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audio = append(b.audio, samples...)
	if over := len(b.audio) - b.audioCap; over > 0 {
		b.audio = b.audio[over:]
	}
	b.lastActivity = time.Now()
}

// TryTakeVideo copies latest_video into dst and returns true iff has_video
// and connected are both set. has_video is never cleared here: the
// compositor may read the same frame across several ticks (frame
// repetition) while ingestion is between packets.
func (b *Buffer) TryTakeVideo(dst *mediaio.VideoFrame) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasVideo || !b.connected {
		return false
	}
	*dst = b.latestVideo
	return true
}

// DrainAudio atomically removes and returns every queued audio sample; the
// queue is empty after the call returns.
func (b *Buffer) DrainAudio() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.audio) == 0 {
		return nil
	}
	out := b.audio
	b.audio = nil
	return out
}

// MarkConnected sets the connected flag. Clearing it also clears has_video
// and empties the audio queue atomically: has_video may be true only
// while connected is true.
func (b *Buffer) MarkConnected(connected bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = connected
	if !connected {
		b.hasVideo = false
		b.audio = nil
	}
}

// ResetForConnect marks the buffer connected for a freshly opened source,
// clearing any stale frame/samples/timestamp left over from a previous
// session.
func (b *Buffer) ResetForConnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	b.hasVideo = false
	b.audio = nil
	b.lastActivity = time.Now()
}

// Connected reports the current connection state.
func (b *Buffer) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// LastActivityAge returns the time elapsed since the last video frame or
// audio block deposit. The ingestion worker's stall check does not read
// it: it bounds each blocking read with mediaio.Source.ExtendReadDeadline.
func (b *Buffer) LastActivityAge() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Since(b.lastActivity)
}

// ResetActivity sets last_activity to now without touching any other
// state. ResetForConnect, which the ingestion worker calls on a fresh
// connect, resets last_activity the same way as part of its own reset.
func (b *Buffer) ResetActivity() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastActivity = time.Now()
}
