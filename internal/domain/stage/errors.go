package stage

import "errors"

// ErrInvalidPolicy is returned when a keyword policy cannot classify scores.
var ErrInvalidPolicy = errors.New("invalid stage policy")
