package transport

import "errors"

// ErrFraming is returned when a frame header cannot be trusted. The
// connection must be dropped.
var ErrFraming = errors.New("transport: framing error")
