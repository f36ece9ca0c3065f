package network

import (
	"errors"
	"fmt"

	"github.com/dd0wney/fluidnet/pkg/entity"
)

// Sentinel conditions surfaced through logs. None of them aborts a tick:
// kind conflicts resolve by deferral and budget overruns by resumption.
var (
	ErrUnknownNetwork = errors.New("unknown network")
	ErrKindConflict   = errors.New("fluid kind conflict")
	ErrBudgetExceeded = errors.New("traversal budget exceeded")
)


// TopologyError provides structured error information for topology edits.
// None of these escape a simulation tick; they surface only through the
// synchronous Place/Remove entry points and through logs.
type TopologyError struct {
	Op     string        // Operation that failed ("place", "remove", "rebuild")
	Handle entity.Handle // Participant involved, if any
	Net    ID            // Network involved, if any
	Cause  error
}

// Error implements the error interface.
func (e *TopologyError) Error() string {
	switch {
	case e.Handle != entity.NoHandle && e.Net != None:
		return fmt.Sprintf("%s entity %d (network %d): %v", e.Op, e.Handle, e.Net, e.Cause)
	case e.Handle != entity.NoHandle:
		return fmt.Sprintf("%s entity %d: %v", e.Op, e.Handle, e.Cause)
	case e.Net != None:
		return fmt.Sprintf("%s network %d: %v", e.Op, e.Net, e.Cause)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	}
}

// Unwrap returns the underlying cause for error chain support.
func (e *TopologyError) Unwrap() error { return e.Cause }

// Is reports whether the target matches this error's cause.
func (e *TopologyError) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

func placeError(h entity.Handle, cause error) error {
	return &TopologyError{Op: "place", Handle: h, Cause: cause}
}

func removeError(h entity.Handle, cause error) error {
	return &TopologyError{Op: "remove", Handle: h, Cause: cause}
}
