package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/caretrack/internal/domain/types"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrBackpressure    = types.ErrBackpressure
)

// NewKind returns an error of the given kind tagged with op.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind tags err with op and classifies it as kind.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return NewKind(op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// Wrap tags err with op, keeping its classification.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, ErrBadRequest), errors.Is(err, types.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, types.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, types.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
