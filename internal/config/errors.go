package config

import (
	"errors"
	"fmt"
)

// ErrLoadConfig marks a source that could not be read or decoded.
var ErrLoadConfig = errors.New("load config failed")

// ErrInvalidConfig marks a value that was read but is unusable. The more
// specific kinds below wrap it, so errors.Is matches either.
var ErrInvalidConfig = errors.New("invalid config")

var (
	ErrInvalidTimezone = fmt.Errorf("%w: timezone", ErrInvalidConfig)
	ErrInvalidPolicy   = fmt.Errorf("%w: stage policy", ErrInvalidConfig)
)
