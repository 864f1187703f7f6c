package model

import "errors"

// Sentinel kinds for payload decoding.
var (
	ErrNoPayload        = errors.New("scale record has no payload")
	ErrMalformedPayload = errors.New("malformed scale payload")
	ErrUnsupportedScale = errors.New("unsupported scale type")
)
