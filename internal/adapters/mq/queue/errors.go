package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrInvalidSubmission = errors.New("invalid submission")
)
