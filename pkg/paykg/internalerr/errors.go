package internalerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrInvalidRule    = errors.New("invalid rule")
	ErrDepthExceeded  = errors.New("evaluation depth exceeded")
	ErrComputeTimeout = errors.New("compute timed out")
	ErrInvalidState   = errors.New("invalid internal state")
	ErrNotFound       = errors.New("not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// ParseError reports malformed term text along with where parsing stopped.
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d: %s: %q", e.Pos, e.Msg, e.Input)
}
