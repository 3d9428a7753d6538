package vm

import (
	"github.com/hydrogen18/falcon/host"
)

// ---------------------------------------------------------------------------
// RegisterFrame: per-invocation state
// ---------------------------------------------------------------------------

// RegisterFrame is one activation of a register function: the register
// file, the current code, and the name-resolution environment. Frames are
// created at call entry and destroyed on the way out; destruction releases
// every non-null register.
type RegisterFrame struct {
	code      *RegisterCode
	registers []*host.Object
	pc        int

	globals  *host.Object // borrowed from the function
	builtins *host.Object // borrowed from the runtime
	locals   *host.Object // lazily allocated, owned

	// callArgs is the reusable outbound argument tuple. Its slots hold
	// borrowed register refs only while a call is in flight; they are
	// cleared before anything else can observe the tuple.
	callArgs *host.Object

	rt *host.Runtime
}

// newFrame builds a frame for a function or bound method and binds
// constants, self and arguments into the low registers.
func newFrame(rt *host.Runtime, callee *host.Object, args *host.Object) (*RegisterFrame, *EvalError) {
	if !host.TupleCheck(args) {
		return nil, evalErrorf(host.TypeError, "argument list must be a tuple")
	}

	var self *host.Object
	fnObj := callee
	if host.MethodCheck(callee) {
		self = host.MethodSelf(callee)
		fnObj = host.MethodFunction(callee)
	}
	if !host.FunctionCheck(fnObj) {
		return nil, evalErrorf(host.TypeError, "'%v' is not a register function", fnObj.Kind().Name())
	}
	fn := host.FunctionOf(fnObj)
	code, ok := fn.Code.(*RegisterCode)
	if !ok || code == nil {
		return nil, evalErrorf(host.SystemError, "%s has no compiled register code", fn.Name)
	}
	if code.HasCellVars {
		return nil, evalErrorf(host.SystemError, "%s uses closure cells; registers cannot host it", fn.Name)
	}

	f := &RegisterFrame{
		code:      code,
		registers: make([]*host.Object, code.NumRegisters),
		pc:        PreludeSize,
		globals:   fn.Globals,
		builtins:  rt.Builtins(),
		rt:        rt,
	}

	// Constants occupy the low registers.
	next := 0
	for _, c := range code.Constants {
		host.Retain(c)
		f.registers[next] = c
		next++
	}

	needed := code.ArgCount
	if self != nil {
		host.Retain(self)
		f.registers[next] = self
		next++
		needed--
	}

	na := host.TupleSize(args)
	nd := len(fn.Defaults)
	if na+nd < needed {
		return nil, f.arityError(fn, needed, na)
	}
	for i := 0; i < needed; i++ {
		var v *host.Object
		if i < na {
			v = host.TupleGet(args, i)
		} else {
			v = fn.Defaults[nd-(needed-i)]
		}
		host.Retain(v)
		f.registers[next+i] = v
	}
	return f, nil
}

func (f *RegisterFrame) arityError(fn *host.Function, needed, got int) *EvalError {
	defer f.destroy()
	if len(fn.Defaults) > 0 {
		return evalErrorf(host.TypeError, "%s() takes at least %d arguments (%d given)",
			fn.Name, needed-len(fn.Defaults), got)
	}
	return evalErrorf(host.TypeError, "%s() takes exactly %d arguments (%d given)",
		fn.Name, needed, got)
}

// localsDict returns the frame's locals, allocating on first use.
func (f *RegisterFrame) localsDict() *host.Object {
	if f.locals == nil {
		f.locals = host.NewDict()
	}
	return f.locals
}

// ensureCallArgs returns the reusable outbound tuple, reallocating only
// when the positional count changes.
func (f *RegisterFrame) ensureCallArgs(n int) *host.Object {
	if f.callArgs == nil || host.TupleSize(f.callArgs) != n {
		f.releaseCallArgs()
		f.callArgs = host.MakeTuple(n)
	}
	return f.callArgs
}

// clearCallArgs nulls the borrowed slots after an outbound call so frame
// destruction does not release refs the registers still own.
func (f *RegisterFrame) clearCallArgs() {
	if f.callArgs == nil {
		return
	}
	for i := 0; i < host.TupleSize(f.callArgs); i++ {
		host.TupleSet(f.callArgs, i, nil)
	}
}

func (f *RegisterFrame) releaseCallArgs() {
	if f.callArgs == nil {
		return
	}
	f.clearCallArgs()
	host.Release(f.callArgs)
	f.callArgs = nil
}

// destroy releases every non-null register and the frame-owned state.
func (f *RegisterFrame) destroy() {
	for i, v := range f.registers {
		if v != nil {
			host.Release(v)
			f.registers[i] = nil
		}
	}
	f.releaseCallArgs()
	if f.locals != nil {
		host.Release(f.locals)
		f.locals = nil
	}
}
