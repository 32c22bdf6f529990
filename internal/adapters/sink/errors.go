package sink

import "errors"

// ErrSinkClosed is returned when appending to a closed sink.
var ErrSinkClosed = errors.New("sink closed")
