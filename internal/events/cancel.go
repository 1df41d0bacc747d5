package events

import "sync/atomic"

// Cancel is the single process-wide cancellation flag: settable from a
// signal handler or by parent control, polled by the ingestion worker's
// blocking I/O callback and by the compositor's tick loop. There is
// exactly one of these per running instance.
type Cancel struct {
	flag atomic.Bool
}

// NewCancel returns an unset cancellation flag.
func NewCancel() *Cancel {
	return &Cancel{}
}

// Set requests cancellation. Idempotent.
func (c *Cancel) Set() {
	c.flag.Store(true)
}

// Requested reports whether cancellation has been requested.
func (c *Cancel) Requested() bool {
	return c.flag.Load()
}
