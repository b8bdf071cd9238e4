package taskstatus

import (
	"fmt"

	"github.com/sharnoff/taskstatus/internal/errors"
)

// InvariantError is the panic value used when a caller breaks one of the chain's preconditions,
// e.g. registering a record twice or attaching a child to the wrong group. These are programming
// errors; nothing in this package returns them.
//
// Checks can be compiled out with the taskstatus_unchecked build tag, in which case breaking a
// precondition leaves the chain in an undefined state.
type InvariantError struct {
	Msg  string
	Kind Kind
	// Origin is where the offending record was registered, when stack capture is enabled.
	Origin *StackTrace
}

func (e *InvariantError) Error() string {
	if e.Kind == 0 {
		return "taskstatus: " + e.Msg
	}
	return fmt.Sprintf("taskstatus: %s (record kind %s)", e.Msg, e.Kind)
}

// invariant panics with an *InvariantError (wrapped with a stack trace) when cond is false.
// h may be nil if no record is involved.
func invariant(cond bool, h *header, format string, args ...any) {
	if !checksEnabled || cond {
		return
	}

	ierr := &InvariantError{Msg: fmt.Sprintf(format, args...)}
	if h != nil {
		ierr.Kind = h.kind
		ierr.Origin = h.origin
	}
	panic(errors.WithStackTrace(ierr))
}
