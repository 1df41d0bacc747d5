package mediaio

import (
	"errors"
	"fmt"
)

// Kind distinguishes the error taxonomy that originates inside the
// media adapter.
type Kind int

const (
	// KindOpenTimeout marks a NETWORK open that did not complete within
	// the configured timeout.
	KindOpenTimeout Kind = iota
	// KindConnect marks any other failure to open a source.
	KindConnect
	// KindRead marks a failure inside ReadOne.
	KindRead
	// KindReadTimeout marks a NETWORK read that stalled past the source's
	// read deadline, set and refreshed via ExtendReadDeadline.
	KindReadTimeout
	// KindDecode marks a decode, scale or resample failure inside ReadOne.
	KindDecode
	// KindEndOfStream marks a clean end-of-stream condition; callers treat
	// this as a control-flow signal, not a fault.
	KindEndOfStream
)

// ErrEndOfStream is returned by ReadOne when the source is exhausted.
var ErrEndOfStream = &Error{Kind: KindEndOfStream, Msg: "end of stream"}

// Error wraps an underlying I/O/decode failure with the Kind taxonomy
// the ingestion worker and the compositor switch on.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mediaio: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("mediaio: %s", e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, mediaio.ErrEndOfStream) to match any EndOfStream
// kind regardless of message.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind && other.Kind == KindEndOfStream
}

func openTimeoutErr(msg string, err error) *Error {
	return &Error{Kind: KindOpenTimeout, Msg: msg, Err: err}
}

func connectErr(msg string, err error) *Error {
	return &Error{Kind: KindConnect, Msg: msg, Err: err}
}

func readErr(msg string, err error) *Error {
	return &Error{Kind: KindRead, Msg: msg, Err: err}
}

func readTimeoutErr(msg string, err error) *Error {
	return &Error{Kind: KindReadTimeout, Msg: msg, Err: err}
}

func decodeErr(msg string, err error) *Error {
	return &Error{Kind: KindDecode, Msg: msg, Err: err}
}
