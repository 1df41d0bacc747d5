// Package app wires the media adapter, handoff buffer, ingestion worker,
// and compositor loop into one running process: it owns startup
// ordering, the OS signal handler, the ingestion worker's goroutine, and
// shutdown sequencing.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jmylchreest/avfailover/internal/compositor"
	"github.com/jmylchreest/avfailover/internal/config"
	"github.com/jmylchreest/avfailover/internal/encode"
	"github.com/jmylchreest/avfailover/internal/events"
	"github.com/jmylchreest/avfailover/internal/handoff"
	"github.com/jmylchreest/avfailover/internal/ingest"
	"github.com/jmylchreest/avfailover/internal/mediaio"
)

// audioBufferSecondsFloor bounds the handoff buffer's audio queue at two
// seconds of output audio (all channels), well above the compositor's
// jitter budget, so PublishAudio's own drop-oldest rarely kicks in ahead
// of the compositor's trim.
const audioBufferSecondsFloor = 2

// Run loads nothing itself — cfg must already be validated — and drives
// one failover session end to end: open fallback + encoder, start the
// ingestion worker, run the compositor loop, and shut everything down in
// order. It returns the first fatal error, if any.
//
// container and eventsOut are two distinct byte streams and must never
// share a writer: container carries the muxed MPEG-TS output, eventsOut
// carries the line-delimited JSON status stream. Interleaving them onto
// the same writer corrupts the container.
func Run(cfg *config.Config, logger *slog.Logger, container io.Writer, eventsOut io.Writer) error {
	cancel := events.NewCancel()
	sink := events.NewSink(eventsOut, cfg.StreamID)
	sink.Started()

	stopSignals := installSignalHandler(cancel, logger)
	defer stopSignals()

	geometry := mediaio.Geometry{Width: cfg.OutWidth, Height: cfg.OutHeight}

	fallback, err := mediaio.Open(cfg.FallbackPath, mediaio.File, mediaio.Options{
		Geometry:   geometry,
		SampleRate: cfg.SampleRate,
		Channels:   cfg.AudioChannels,
		Cancel:     cancel,
	})
	if err != nil {
		fatal := &compositor.Error{Kind: compositor.KindFallbackOpen, Msg: "opening fallback source", Err: err}
		sink.ErrorEvent(fatal.Error())
		return fatal
	}
	defer fallback.Close()
	sink.BGOpened()

	enc, err := encode.New(container, encode.Params{
		Width:        cfg.OutWidth,
		Height:       cfg.OutHeight,
		FPS:          cfg.OutFPS,
		VideoBitrate: cfg.VideoBitrate,
		AudioBitrate: cfg.AudioBitrate,
		SampleRate:   cfg.SampleRate,
		Channels:     cfg.AudioChannels,
	})
	if err != nil {
		fatal := &compositor.Error{Kind: compositor.KindEncoderSetup, Msg: "setting up encoder", Err: err}
		sink.ErrorEvent(fatal.Error())
		return fatal
	}
	defer enc.Close()

	sink.OutputReady(fmt.Sprintf("%dx%d", cfg.OutWidth, cfg.OutHeight), cfg.OutFPS, cfg.VideoBitrate, cfg.AudioBitrate)

	audioCapSamples := audioBufferSecondsFloor * cfg.SampleRate * cfg.AudioChannels
	buffer := handoff.New(audioCapSamples)

	worker := ingest.New(ingest.Config{
		PrimaryURL:     cfg.PrimaryURL,
		Geometry:       geometry,
		SampleRate:     cfg.SampleRate,
		Channels:       cfg.AudioChannels,
		OpenTimeout:    cfg.StallTimeout(),
		StallTimeout:   cfg.StallTimeout(),
		ReconnectDelay: cfg.ReconnectDelay(),
	}, buffer, sink, cancel, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go runIngestWorker(&wg, worker, buffer, sink, logger)

	comp := compositor.New(fallback, buffer, enc, sink, cancel, logger, compositor.Config{
		FPS:          cfg.OutFPS,
		SampleRate:   cfg.SampleRate,
		Channels:     cfg.AudioChannels,
		GracePeriod:  cfg.GracePeriod(),
		JitterBudget: cfg.JitterBudget(),
	})

	sink.Running()
	runErr := comp.Run()
	if runErr != nil {
		sink.ErrorEvent(runErr.Error())
	}

	cancel.Set()
	wg.Wait()

	sink.Stopped()
	if flushErr := enc.Flush(); flushErr != nil {
		logger.Warn("flushing encoder on shutdown", slog.String("error", flushErr.Error()))
	}
	sink.Done()

	return runErr
}

// runIngestWorker runs the ingestion worker's Run loop, translating a
// panic into the same disconnect sequence a read error would produce
// rather than crashing the process: primary-side failures are never
// fatal to the overall session.
func runIngestWorker(wg *sync.WaitGroup, worker *ingest.Worker, buffer *handoff.Buffer, sink *events.Sink, logger *slog.Logger) {
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ingestion worker panicked", slog.Any("panic", r))
			buffer.MarkConnected(false)
			sink.PrimaryDropped(events.ReadError)
		}
	}()
	worker.Run()
}

// installSignalHandler requests cancellation on SIGINT/SIGTERM, driving
// the atomic cancel flag this module's loops poll instead of a
// context.CancelFunc. SIGPIPE is ignored outright: a downstream reader
// closing the container pipe must surface as a write error the
// compositor turns into an error event, not as the process dying on the
// signal before that write ever returns.
func installSignalHandler(cancel *events.Cancel, logger *slog.Logger) func() {
	signal.Ignore(syscall.SIGPIPE)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received shutdown signal", slog.String("signal", sig.String()))
			cancel.Set()
		case <-done:
		}
	}()

	return func() {
		close(done)
		signal.Stop(sigChan)
	}
}
