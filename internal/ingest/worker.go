// Package ingest implements the ingestion worker: the dedicated
// execution context that owns the primary source's entire lifecycle —
// connect, read, decode, publish, stall detection, retry. It never
// blocks the compositor and never calls into the encoder or fallback
// path.
package ingest

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jmylchreest/avfailover/internal/events"
	"github.com/jmylchreest/avfailover/internal/handoff"
	"github.com/jmylchreest/avfailover/internal/mediaio"
)

// sleepSliceDivisor bounds how long Run sleeps between cancellation polls
// while waiting out the reconnect delay: one retry slice is at most
// reconnect_delay / 10.
const sleepSliceDivisor = 10

// Worker runs the ingestion state machine against a handoff.Buffer
// until cancelled.
type Worker struct {
	primaryURL string
	geometry   mediaio.Geometry
	sampleRate int
	channels   int

	openTimeout    time.Duration
	stallTimeout   time.Duration
	reconnectDelay time.Duration

	buffer *handoff.Buffer
	sink   *events.Sink
	cancel *events.Cancel
	logger *slog.Logger
}

// Config bundles Worker's construction parameters.
type Config struct {
	PrimaryURL     string
	Geometry       mediaio.Geometry
	SampleRate     int
	Channels       int
	OpenTimeout    time.Duration
	StallTimeout   time.Duration
	ReconnectDelay time.Duration
}

// New builds a Worker. buffer, sink and cancel are shared with the
// compositor and the process lifecycle.
func New(cfg Config, buffer *handoff.Buffer, sink *events.Sink, cancel *events.Cancel, logger *slog.Logger) *Worker {
	return &Worker{
		primaryURL:     cfg.PrimaryURL,
		geometry:       cfg.Geometry,
		sampleRate:     cfg.SampleRate,
		channels:       cfg.Channels,
		openTimeout:    cfg.OpenTimeout,
		stallTimeout:   cfg.StallTimeout,
		reconnectDelay: cfg.ReconnectDelay,
		buffer:         buffer,
		sink:           sink,
		cancel:         cancel,
		logger:         logger,
	}
}

// Run executes the ingestion loop until the cancellation flag is set. It
// never returns an error: every failure is handled locally by
// disconnecting and retrying, or by emitting an event rather than
// propagating it to the compositor.
func (w *Worker) Run() {
	for !w.cancel.Requested() {
		src, err := w.connect()
		if err != nil {
			w.sink.PrimaryConnectFailed(err.Error())
			w.sleepReconnectDelay()
			continue
		}

		w.buffer.ResetForConnect()
		w.sink.PrimaryConnected()

		w.readUntilDisconnect(src)
	}
}

func (w *Worker) connect() (*mediaio.Source, error) {
	opts := mediaio.Options{
		Geometry:    w.geometry,
		SampleRate:  w.sampleRate,
		Channels:    w.channels,
		OpenTimeout: w.openTimeout,
		Cancel:      w.cancel,
	}
	return mediaio.Open(w.primaryURL, mediaio.Network, opts)
}

// sleepReconnectDelay waits out the reconnect delay in bounded slices so
// cancellation remains prompt.
func (w *Worker) sleepReconnectDelay() {
	slice := w.reconnectDelay / sleepSliceDivisor
	if slice <= 0 {
		slice = time.Millisecond
	}
	deadline := time.Now().Add(w.reconnectDelay)
	for time.Now().Before(deadline) {
		if w.cancel.Requested() {
			return
		}
		time.Sleep(slice)
	}
}

func (w *Worker) readUntilDisconnect(src *mediaio.Source) {
	defer src.Close()

	src.ExtendReadDeadline(w.stallTimeout)

	for {
		if w.cancel.Requested() {
			w.disconnect(events.ReadError)
			return
		}

		video, audio, err := src.ReadOne()
		if err != nil {
			w.logger.Debug("primary read failed", slog.String("error", err.Error()))
			w.disconnect(disconnectReason(err))
			return
		}
		src.ExtendReadDeadline(w.stallTimeout)

		switch {
		case video != nil:
			w.buffer.PublishVideo(*video)
		case audio != nil:
			w.buffer.PublishAudio(audio.Interleaved)
		}
	}
}

// disconnectReason classifies a ReadOne failure as a stall timeout versus
// any other read error, for the primary_dropped event's reason field.
func disconnectReason(err error) events.DropReason {
	var mediaErr *mediaio.Error
	if errors.As(err, &mediaErr) && mediaErr.Kind == mediaio.KindReadTimeout {
		return events.Timeout
	}
	return events.ReadError
}

func (w *Worker) disconnect(reason events.DropReason) {
	w.buffer.MarkConnected(false)
	w.sink.PrimaryDropped(reason)
}
