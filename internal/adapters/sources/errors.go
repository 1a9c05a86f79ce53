package sources

import "errors"

// Sentinel kinds for source errors. ErrUnknownSource and ErrUnsupportedFormat
// both wrap ErrSourceNotAvailable.
var (
	ErrSourceNotAvailable = errors.New("source not available")
	ErrUnknownSource      = wrapped("unknown source")
	ErrUnsupportedFormat  = wrapped("unsupported source format")
)

type sourceError struct{ msg string }

func (e *sourceError) Error() string { return e.msg }
func (e *sourceError) Unwrap() error { return ErrSourceNotAvailable }
func wrapped(msg string) error       { return &sourceError{msg: msg} }
