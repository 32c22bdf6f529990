package source

import "errors"

// Sentinel errors returned by sample sources.
var (
	ErrSourceClosed   = errors.New("source closed")
	ErrAlreadyStarted = errors.New("source already started")
	ErrParseLine      = errors.New("unparseable sample line")
	ErrInvalidOptions = errors.New("invalid serial options")
)
