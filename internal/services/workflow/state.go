package workflow

import (
	"errors"
	"fmt"
)

// State is the single source of truth for where a session is in the
// upload -> review -> verify -> pay sequence.
type State string

const (
	StateAwaitingUpload State = "awaiting_upload"
	StateReviewing      State = "reviewing"
	StateVerified       State = "verified"
	StatePaymentReady   State = "payment_ready"
)

var (
	// ErrLoadInFlight is returned while an ingestion is pending for the session.
	ErrLoadInFlight = errors.New("an ingestion is already in flight")
	// ErrStaleLoad is returned when an ingestion result belongs to a superseded request.
	ErrStaleLoad = errors.New("ingestion result is stale")
)

// TransitionError reports a disallowed state change.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("disallowed transition: %s -> %s", e.From, e.To)
}

// isAllowedTransition covers the operations that act on a loaded sheet
// (auto-fix, verify, distribute). Loads and Reset apply from any state and do
// not consult it.
func isAllowedTransition(from, to State) bool {
	if to == StateAwaitingUpload {
		return true
	}
	switch from {
	case StateReviewing:
		return to == StateReviewing || to == StateVerified
	case StateVerified:
		return to == StateReviewing || to == StateVerified || to == StatePaymentReady
	case StatePaymentReady:
		return to == StateReviewing || to == StatePaymentReady
	default:
		return false
	}
}

// Step is the 1-based position of the state in the four-step progress bar.
func (s State) Step() int {
	switch s {
	case StateReviewing:
		return 2
	case StateVerified:
		return 3
	case StatePaymentReady:
		return 4
	default:
		return 1
	}
}
