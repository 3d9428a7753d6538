package vm

import (
	"fmt"

	"github.com/hydrogen18/falcon/host"
)

// ---------------------------------------------------------------------------
// Engine errors
// ---------------------------------------------------------------------------

// EvalError is the failure payload of the engine's two-valued return
// channel. User errors carry the host error state verbatim; engine faults
// carry kind SystemError.
type EvalError struct {
	Kind    string
	Message string
}

func (e *EvalError) Error() string {
	return e.Kind + ": " + e.Message
}

// evalErrorf builds an engine error.
func evalErrorf(kind, format string, args ...interface{}) *EvalError {
	return &EvalError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// hostError converts the runtime's pending error state, which must be set.
func hostError(rt *host.Runtime) *EvalError {
	if he := rt.FetchError(); he != nil {
		return &EvalError{Kind: he.Kind, Message: he.Message}
	}
	return evalErrorf(host.SystemError, "operation failed without setting an error")
}
