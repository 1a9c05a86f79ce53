package api

import (
	"errors"
	"net/http"

	"github.com/keystride/keystride/internal/adapters/packs"
	"github.com/keystride/keystride/internal/adapters/repository"
	"github.com/keystride/keystride/internal/adapters/sources"
	service "github.com/keystride/keystride/internal/app"
	"github.com/keystride/keystride/internal/validation"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrRateLimited  = errors.New("rate limited")
	// ErrRouteNotFound is returned for paths no route matches.
	ErrRouteNotFound = errors.New("route not found")
)

// Error codes returned in the JSON error body.
const (
	codeBadRequest          = "bad_request"
	codeValidationFailed    = "validation_failed"
	codeNotFound            = "not_found"
	codeConflict            = "conflict"
	codeBackpressure        = "backpressure"
	codeRateLimited         = "rate_limited"
	codeUpstreamUnavailable = "upstream_unavailable"
	codeUnavailable         = "unavailable"
	codeInternal            = "internal_error"
)

// OpError records the handler operation that failed and the kind of
// failure. errors.Is matches both Kind and Err.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	switch {
	case e.Err != nil && e.Kind != nil:
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	case e.Kind != nil:
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op
}

func (e *OpError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewKind returns an error of the given kind with no further cause.
func NewKind(op string, kind error) error {
	return &OpError{Op: op, Kind: kind}
}

// WrapKind attaches a kind to err.
func WrapKind(op string, kind, err error) error {
	return &OpError{Op: op, Kind: kind, Err: err}
}

// Wrap records op on err and keeps its kind.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}

// classify maps an error to its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, validation.ErrValidation):
		return http.StatusBadRequest, codeValidationFailed
	case errors.Is(err, ErrBadRequest), errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, packs.ErrPackNotFound),
		errors.Is(err, ErrRouteNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, repository.ErrAlreadyExists), errors.Is(err, service.ErrDuplicateSubmission):
		return http.StatusConflict, codeConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, codeRateLimited
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, codeBackpressure
	case errors.Is(err, sources.ErrSourceNotAvailable):
		return http.StatusBadGateway, codeUpstreamUnavailable
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, codeUnavailable
	}
	return http.StatusInternalServerError, codeInternal
}
