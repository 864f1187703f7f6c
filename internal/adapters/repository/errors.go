package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound    = errors.New("case not found")
	ErrInvalidCase = errors.New("invalid case id")
)
