package host

import (
	"os"
	"sync"
)

// ---------------------------------------------------------------------------
// Runtime: the host environment one engine executes against
// ---------------------------------------------------------------------------

// Runtime owns the pieces of host state that are not plain values: the
// builtin namespace, the standard output file, the pending-error record and
// the global execution lock. Values from different Runtimes must not mix.
type Runtime struct {
	lock sync.Mutex

	builtins *Object
	stdout   *Object
	err      *Error

	// EvalFunc is installed by the engine so the generic call protocol can
	// invoke register functions. It receives a function (or bound method
	// whose target is a function) and an argument tuple, and returns an
	// owned result or nil with an error pending.
	EvalFunc func(fn, args *Object) *Object
}

// NewRuntime builds a runtime with the builtin namespace populated and
// standard output bound to the process stdout.
func NewRuntime() *Runtime {
	rt := &Runtime{}
	rt.stdout = NewFile(os.Stdout)
	rt.builtins = rt.makeBuiltins()
	return rt
}

// Builtins returns the builtin namespace dict (borrowed).
func (rt *Runtime) Builtins() *Object { return rt.builtins }

// Stdout returns the standard-output file object (borrowed).
func (rt *Runtime) Stdout() *Object { return rt.stdout }

// AcquireLock takes the global execution lock. Entry points that can be
// reached from foreign goroutines must hold it for the duration of the
// call; opcode handlers assume it is already held.
func (rt *Runtime) AcquireLock() { rt.lock.Lock() }

// ReleaseLock drops the global execution lock.
func (rt *Runtime) ReleaseLock() { rt.lock.Unlock() }

// ---------------------------------------------------------------------------
// Dicts
// ---------------------------------------------------------------------------

// NewDict allocates an empty string-keyed dict.
func NewDict() *Object {
	return &Object{rc: 1, kind: KindDict, dict: map[string]*Object{}}
}

// DictGet looks up key and returns a borrowed value, or nil without
// setting an error when the key is absent.
func DictGet(d *Object, key string) *Object {
	if d == nil || d.kind != KindDict {
		return nil
	}
	return d.dict[key]
}

// DictSet stores value under key, retaining value and releasing any
// previous occupant.
func DictSet(d *Object, key string, value *Object) {
	Retain(value)
	if old, ok := d.dict[key]; ok {
		Release(old)
	}
	d.dict[key] = value
}

// DictSize returns the number of entries.
func DictSize(d *Object) int { return len(d.dict) }

// DictSetItem stores value under an object key, which must be a string.
func (rt *Runtime) DictSetItem(d, key, value *Object) bool {
	if key.kind != KindString {
		rt.SetError(TypeError, "dict key must be str, not %s", key.kind.Name())
		return false
	}
	DictSet(d, key.sval, value)
	return true
}
