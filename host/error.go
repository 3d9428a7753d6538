package host

import "fmt"

// ---------------------------------------------------------------------------
// Host error state
// ---------------------------------------------------------------------------

// Error kinds raised by the reference host. The engine carries these
// verbatim to its caller.
const (
	TypeError      = "TypeError"
	NameError      = "NameError"
	AttributeError = "AttributeError"
	KeyError       = "KeyError"
	IndexError     = "IndexError"
	ValueError     = "ValueError"
	ZeroDivision   = "ZeroDivisionError"
	SystemError    = "SystemError"
)

// Error is the pending-error record of a Runtime. At most one is set at a
// time; protocol functions that return nil have set one.
type Error struct {
	Kind    string
	Message string
}

func (e *Error) Error() string {
	return e.Kind + ": " + e.Message
}

// SetError records a pending error, replacing any previous one.
func (rt *Runtime) SetError(kind, format string, args ...interface{}) {
	rt.err = &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ErrorOccurred reports whether an error is pending.
func (rt *Runtime) ErrorOccurred() bool { return rt.err != nil }

// FetchError returns the pending error and clears it.
func (rt *Runtime) FetchError() *Error {
	e := rt.err
	rt.err = nil
	return e
}

// ClearError drops any pending error.
func (rt *Runtime) ClearError() { rt.err = nil }
