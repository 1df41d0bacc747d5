// Package events implements the structured status-event sink: a
// line-delimited JSON stream, conceptually the process's standard error,
// distinct from both the raw container output sink and the free-form
// debug log in internal/observability.
package events

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Name enumerates the fixed event vocabulary. Nothing outside this
// package constructs an event with a name not listed here.
type Name string

const (
	Started              Name = "started"
	BGOpened             Name = "bg_opened"
	PrimaryConnected     Name = "primary_connected"
	PrimaryConnectFailed Name = "primary_connect_failed"
	PrimaryDropped       Name = "primary_dropped"
	PrimaryActive        Name = "primary_active"
	GraceEntered         Name = "grace_entered"
	FallbackAudioOn      Name = "fallback_audio_on"
	VideoPrimary         Name = "video_primary"
	VideoFallback        Name = "video_fallback"
	OutputReady          Name = "output_ready"
	Running              Name = "running"
	Stats                Name = "stats"
	Stopped              Name = "stopped"
	Done                 Name = "done"
	Error                Name = "error"
	Warn                 Name = "warn"
)

// DropReason distinguishes the two ways a primary_dropped event can occur:
// the connection failing outright, or the buffer going stale.
type DropReason string

const (
	ReadError DropReason = "read_error"
	Timeout   DropReason = "timeout"
)

// Event is one line of the status stream. Every event carries at least
// Event, TS and StreamID; Fields holds the event-specific payload.
type Event struct {
	Event    Name           `json:"event"`
	TS       int64          `json:"ts"`
	StreamID string         `json:"stream_id"`
	Fields   map[string]any `json:"-"`
}

// MarshalJSON flattens Fields alongside the fixed top-level keys so the
// wire shape is a single flat object, not a nested "fields" member.
func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Fields)+3)
	for k, v := range e.Fields {
		m[k] = v
	}
	m["event"] = e.Event
	m["ts"] = e.TS
	m["stream_id"] = e.StreamID
	return json.Marshal(m)
}

// Sink writes one JSON-encoded Event per line to an underlying writer. It
// is safe for concurrent use: the ingestion worker and the compositor loop
// both emit events from their own execution contexts.
type Sink struct {
	mu       sync.Mutex
	w        io.Writer
	streamID string
	now      func() time.Time
}

// NewSink builds a Sink writing to w, tagging every event with streamID.
func NewSink(w io.Writer, streamID string) *Sink {
	return &Sink{w: w, streamID: streamID, now: time.Now}
}

// Emit writes a single event with the given fields merged in.
func (s *Sink) Emit(name Name, fields map[string]any) error {
	ev := Event{Event: name, TS: s.now().Unix(), StreamID: s.streamID, Fields: fields}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event %s: %w", name, err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(data)
	return err
}

// Started emits the startup event.
func (s *Sink) Started() { _ = s.Emit(Started, nil) }

// BGOpened emits the fallback-source-opened event.
func (s *Sink) BGOpened() { _ = s.Emit(BGOpened, nil) }

// PrimaryConnected emits the primary-connection-established event.
func (s *Sink) PrimaryConnected() { _ = s.Emit(PrimaryConnected, nil) }

// PrimaryConnectFailed emits a failed-connect-attempt event.
func (s *Sink) PrimaryConnectFailed(message string) {
	_ = s.Emit(PrimaryConnectFailed, map[string]any{"message": message})
}

// PrimaryDropped emits a disconnect event tagged with its cause.
func (s *Sink) PrimaryDropped(reason DropReason) {
	_ = s.Emit(PrimaryDropped, map[string]any{"reason": string(reason)})
}

// PrimaryActive emits the event marking the audio mode entering PRIMARY.
func (s *Sink) PrimaryActive() { _ = s.Emit(PrimaryActive, nil) }

// GraceEntered emits the event marking entry into the GRACE audio mode.
func (s *Sink) GraceEntered() { _ = s.Emit(GraceEntered, nil) }

// FallbackAudioOn emits the event marking entry into the FALLBACK audio mode.
func (s *Sink) FallbackAudioOn() { _ = s.Emit(FallbackAudioOn, nil) }

// VideoPrimary emits the event marking a tick's video source as primary.
func (s *Sink) VideoPrimary() { _ = s.Emit(VideoPrimary, nil) }

// VideoFallback emits the event marking a tick's video source as fallback.
func (s *Sink) VideoFallback() { _ = s.Emit(VideoFallback, nil) }

// OutputReady emits the post-encoder-open readiness event.
func (s *Sink) OutputReady(resolution string, fps int, vbr, abr int) {
	_ = s.Emit(OutputReady, map[string]any{
		"resolution": resolution,
		"fps":        fps,
		"vbr":        vbr,
		"abr":        abr,
	})
}

// Running emits the event marking the compositor loop as live.
func (s *Sink) Running() { _ = s.Emit(Running, nil) }

// StatsSnapshot is the payload of a periodic stats event.
type StatsSnapshot struct {
	FPS              int
	PrimaryConnected bool
	AudioMode        string
}

// StatsEvent emits the once-per-second stats event.
func (s *Sink) StatsEvent(snap StatsSnapshot) {
	_ = s.Emit(Stats, map[string]any{
		"fps":               snap.FPS,
		"primary_connected": snap.PrimaryConnected,
		"audio_mode":        snap.AudioMode,
	})
}

// Stopped emits the graceful-shutdown-begun event.
func (s *Sink) Stopped() { _ = s.Emit(Stopped, nil) }

// Done emits the final event of a clean shutdown.
func (s *Sink) Done() { _ = s.Emit(Done, nil) }

// ErrorEvent emits a fatal error event.
func (s *Sink) ErrorEvent(message string) { _ = s.Emit(Error, map[string]any{"message": message}) }

// WarnEvent emits a non-fatal warning event.
func (s *Sink) WarnEvent(message string) { _ = s.Emit(Warn, map[string]any{"message": message}) }
