package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrInvalidEvent = errors.New("invalid attempt event")
)
