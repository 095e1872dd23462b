package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition marks a programming-contract violation by a caller.
	ErrPrecondition = errors.New("precondition failed")
	ErrNotFound     = errors.New("not found")
)

// PreconditionError reports an engine call made out of sequence, such as
// recording a sheet that still has issues.
type PreconditionError struct {
	Op  string
	Msg string
}

func (e *PreconditionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

// NewPreconditionError builds a PreconditionError for op.
func NewPreconditionError(op, msg string) error {
	return &PreconditionError{Op: op, Msg: msg}
}
