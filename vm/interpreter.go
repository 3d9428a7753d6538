package vm

import (
	"context"

	"github.com/tliron/commonlog"

	"github.com/hydrogen18/falcon/host"
)

var log = commonlog.GetLogger("falcon.vm")

// DefaultOpLimit is the dispatch ceiling: exceeding it fails the frame with
// a SystemError rather than spinning forever.
const DefaultOpLimit = 1_000_000_000

// ---------------------------------------------------------------------------
// Evaluator
// ---------------------------------------------------------------------------

// Evaluator executes register code against a host runtime. It is
// re-entrant: handlers recursively evaluate callees, building a Go call
// stack of frames. One evaluator serves one runtime.
type Evaluator struct {
	// OpLimit bounds the number of dispatched instructions.
	OpLimit uint64

	// Cancel, when non-nil, is polled at backward branches; a done context
	// fails the frame.
	Cancel context.Context

	// Compile produces register code for a function that carries none.
	// Left nil, such functions fail with a SystemError.
	Compile func(fn *host.Function) (*RegisterCode, error)

	// Cache, when set, persists compiled artifacts across processes.
	Cache *CodeCache

	// Trace logs every dispatched instruction at debug level.
	Trace bool

	rt     *host.Runtime
	counts [256]uint64
	total  uint64
}

// NewEvaluator builds an evaluator and installs it as the runtime's
// register-function call target.
func NewEvaluator(rt *host.Runtime) *Evaluator {
	e := &Evaluator{rt: rt, OpLimit: DefaultOpLimit}
	rt.EvalFunc = func(fn, args *host.Object) *host.Object {
		res, err := e.call(fn, args)
		if err != nil {
			rt.SetError(err.Kind, "%s", err.Message)
			return nil
		}
		return res
	}
	return e
}

// Eval runs a function or bound method with an argument tuple and returns
// an owned result. It acquires the host execution lock for the duration,
// so it is the entry point for calls arriving from foreign goroutines.
func (e *Evaluator) Eval(fn, args *host.Object) (*host.Object, error) {
	e.rt.AcquireLock()
	defer e.rt.ReleaseLock()
	res, eerr := e.call(fn, args)
	if eerr != nil {
		return nil, eerr
	}
	return res, nil
}

// call is the internal, already-locked entry: resolve code, build a frame,
// run it, tear it down.
func (e *Evaluator) call(callee, args *host.Object) (*host.Object, *EvalError) {
	fnObj := callee
	if host.MethodCheck(callee) {
		fnObj = host.MethodFunction(callee)
	}
	if host.FunctionCheck(fnObj) {
		if err := e.ensureCode(host.FunctionOf(fnObj)); err != nil {
			return nil, err
		}
	}
	f, err := newFrame(e.rt, callee, args)
	if err != nil {
		return nil, err
	}
	res, err := e.run(f)
	f.destroy()
	return res, err
}

// ensureCode resolves a function's register code, consulting the cache and
// the compile hook in that order.
func (e *Evaluator) ensureCode(fn *host.Function) *EvalError {
	if fn.Code != nil {
		return nil
	}
	if e.Cache != nil {
		if code, err := e.Cache.Get(fn.Name); err == nil && code != nil {
			fn.Code = code
			return nil
		}
	}
	if e.Compile == nil {
		return evalErrorf(host.SystemError, "%s has no compiled register code", fn.Name)
	}
	code, err := e.Compile(fn)
	if err != nil {
		return evalErrorf(host.SystemError, "compiling %s: %v", fn.Name, err)
	}
	fn.Code = code
	if e.Cache != nil {
		if err := e.Cache.Put(fn.Name, code); err != nil {
			log.Errorf("caching %s: %v", fn.Name, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Register writes
// ---------------------------------------------------------------------------

// writeOwned installs an owned reference, releasing the prior occupant
// after the install so source==dest aliasing stays safe.
func writeOwned(regs []*host.Object, i uint16, v *host.Object) {
	old := regs[i]
	regs[i] = v
	host.Release(old)
}

// writeBorrowed retains first, then installs. Every borrowed value is made
// owned before it reaches a register slot.
func writeBorrowed(regs []*host.Object, i uint16, v *host.Object) {
	host.Retain(v)
	writeOwned(regs, i, v)
}

// ---------------------------------------------------------------------------
// The dispatch loop
// ---------------------------------------------------------------------------

// run dispatches instructions until RETURN_VALUE delivers a result or a
// handler fails. The switch sits alone in the loop so the compiler can
// lower it to a jump table; there is no per-opcode function-call overhead.
func (e *Evaluator) run(f *RegisterFrame) (*host.Object, *EvalError) {
	rt := f.rt
	code := f.code.Instructions
	names := f.code.Names
	regs := f.registers
	pc := f.pc

	fail := func(err *EvalError) (*host.Object, *EvalError) {
		f.pc = pc
		return nil, err
	}

	for {
		if e.total++; e.total > e.OpLimit {
			e.DumpStatus()
			return fail(evalErrorf(host.SystemError, "execution entered infinite loop"))
		}
		op := Opcode(code[pc])
		e.counts[op]++
		if e.Trace {
			log.Debugf("%5d: %s", pc, op.Name())
		}

		switch op {

		// --- Arithmetic with integer fast path ---
		case OpBinaryAdd, OpBinarySubtract, OpBinaryMultiply, OpBinaryDivide,
			OpBinaryModulo, OpInplaceAdd, OpInplaceSubtract, OpInplaceMultiply,
			OpInplaceDivide, OpInplaceModulo:
			d := decodeRegOp(code, pc)
			v, ok := intBinaryFast(op, regs[d.Reg1], regs[d.Reg2])
			if !ok {
				if v = genericBinary(rt, op, regs[d.Reg1], regs[d.Reg2]); v == nil {
					return fail(hostError(rt))
				}
			}
			writeOwned(regs, d.Reg3, v)
			pc += regOpSize

		// --- Arithmetic, generic only ---
		case OpBinaryPower, OpBinaryFloorDivide, OpBinaryTrueDivide,
			OpBinaryLshift, OpBinaryRshift, OpBinaryAnd, OpBinaryXor, OpBinaryOr,
			OpInplacePower, OpInplaceFloorDivide, OpInplaceTrueDivide,
			OpInplaceLshift, OpInplaceRshift, OpInplaceAnd, OpInplaceXor, OpInplaceOr:
			d := decodeRegOp(code, pc)
			v := genericBinary(rt, op, regs[d.Reg1], regs[d.Reg2])
			if v == nil {
				return fail(hostError(rt))
			}
			writeOwned(regs, d.Reg3, v)
			pc += regOpSize

		// --- Unary ---
		case OpUnaryPositive, OpUnaryNegative, OpUnaryInvert, OpUnaryConvert:
			d := decodeRegOp(code, pc)
			var v *host.Object
			switch op {
			case OpUnaryPositive:
				v = rt.Positive(regs[d.Reg1])
			case OpUnaryNegative:
				v = rt.Negate(regs[d.Reg1])
			case OpUnaryInvert:
				v = rt.Invert(regs[d.Reg1])
			case OpUnaryConvert:
				v = host.NewString(host.Repr(regs[d.Reg1]))
			}
			if v == nil {
				return fail(hostError(rt))
			}
			writeOwned(regs, d.Reg2, v)
			pc += regOpSize

		case OpUnaryNot:
			d := decodeRegOp(code, pc)
			writeBorrowed(regs, d.Reg2, host.Bool(!host.IsTruthy(regs[d.Reg1])))
			pc += regOpSize

		// --- Compare ---
		case OpCompareOp:
			d := decodeRegOp(code, pc)
			r1, r2 := regs[d.Reg1], regs[d.Reg2]
			if v, ok := intCompareFast(d.Arg, r1, r2); ok {
				writeBorrowed(regs, d.Reg3, v)
			} else if v, ok := floatCompareFast(d.Arg, r1, r2); ok {
				writeBorrowed(regs, d.Reg3, v)
			} else {
				v := rt.RichCompare(r1, r2, int(d.Arg))
				if v == nil {
					return fail(hostError(rt))
				}
				writeOwned(regs, d.Reg3, v)
			}
			pc += regOpSize

		// --- Loads ---
		case OpLoadFast, OpStoreFast:
			d := decodeRegOp(code, pc)
			writeBorrowed(regs, d.Reg2, regs[d.Reg1])
			pc += regOpSize

		case OpLoadLocals:
			d := decodeRegOp(code, pc)
			writeBorrowed(regs, d.Reg1, f.localsDict())
			pc += regOpSize

		case OpLoadGlobal:
			d := decodeRegOp(code, pc)
			name := names[d.Arg]
			v := host.DictGet(f.globals, name)
			if v == nil {
				v = host.DictGet(f.builtins, name)
			}
			if v == nil {
				return fail(evalErrorf(host.NameError, "global name '%s' is not defined", name))
			}
			writeBorrowed(regs, d.Reg1, v)
			pc += regOpSize

		case OpLoadName:
			d := decodeRegOp(code, pc)
			name := names[d.Arg]
			var v *host.Object
			if f.locals != nil {
				v = host.DictGet(f.locals, name)
			}
			if v == nil {
				v = host.DictGet(f.globals, name)
			}
			if v == nil {
				v = host.DictGet(f.builtins, name)
			}
			if v == nil {
				return fail(evalErrorf(host.NameError, "name '%s' is not defined", name))
			}
			writeBorrowed(regs, d.Reg1, v)
			pc += regOpSize

		case OpLoadAttr:
			d := decodeRegOp(code, pc)
			v := rt.GetAttr(regs[d.Reg1], names[d.Arg])
			if v == nil {
				return fail(hostError(rt))
			}
			writeOwned(regs, d.Reg2, v)
			pc += regOpSize

		// --- Stores ---
		case OpStoreName:
			d := decodeRegOp(code, pc)
			host.DictSet(f.localsDict(), names[d.Arg], regs[d.Reg1])
			pc += regOpSize

		case OpStoreAttr:
			// target = reg_1, value = reg_2, name = names[arg]
			d := decodeRegOp(code, pc)
			if !rt.SetAttr(regs[d.Reg1], names[d.Arg], regs[d.Reg2]) {
				return fail(hostError(rt))
			}
			pc += regOpSize

		case OpStoreSubscr:
			// key = reg_1, container = reg_2, value = reg_3
			d := decodeRegOp(code, pc)
			if !rt.SetItem(regs[d.Reg2], regs[d.Reg1], regs[d.Reg3]) {
				return fail(hostError(rt))
			}
			pc += regOpSize

		case OpBinarySubscr:
			d := decodeRegOp(code, pc)
			v, ok := listSubscrFast(regs[d.Reg1], regs[d.Reg2])
			if !ok {
				if v = rt.GetItem(regs[d.Reg1], regs[d.Reg2]); v == nil {
					return fail(hostError(rt))
				}
			}
			writeOwned(regs, d.Reg3, v)
			pc += regOpSize

		// --- Refcount pseudo-ops ---
		case OpIncref:
			d := decodeRegOp(code, pc)
			host.Retain(regs[d.Reg1])
			pc += regOpSize

		case OpDecref:
			d := decodeRegOp(code, pc)
			host.Release(regs[d.Reg1])
			pc += regOpSize

		// --- Control flow ---
		case OpJumpAbsolute:
			d := decodeBranchOp(code, pc)
			if int(d.Label) < pc {
				if err := e.checkCancel(); err != nil {
					return fail(err)
				}
			}
			pc = int(d.Label)

		case OpJumpIfFalseOrPop, OpPopJumpIfFalse:
			d := decodeBranchOp(code, pc)
			r1 := regs[d.Reg1]
			if r1 == host.False || !host.IsTruthy(r1) {
				if int(d.Label) < pc {
					if err := e.checkCancel(); err != nil {
						return fail(err)
					}
				}
				pc = int(d.Label)
			} else {
				pc += branchOpSize
			}

		case OpJumpIfTrueOrPop, OpPopJumpIfTrue:
			d := decodeBranchOp(code, pc)
			r1 := regs[d.Reg1]
			if r1 == host.True || host.IsTruthy(r1) {
				if int(d.Label) < pc {
					if err := e.checkCancel(); err != nil {
						return fail(err)
					}
				}
				pc = int(d.Label)
			} else {
				pc += branchOpSize
			}

		// --- Iteration ---
		case OpGetIter:
			d := decodeRegOp(code, pc)
			v := rt.GetIter(regs[d.Reg1])
			if v == nil {
				return fail(hostError(rt))
			}
			writeOwned(regs, d.Reg2, v)
			pc += regOpSize

		case OpForIter:
			d := decodeBranchOp(code, pc)
			v := rt.IterNext(regs[d.Reg1])
			switch {
			case v != nil:
				writeOwned(regs, d.Reg2, v)
				pc += branchOpSize
			case rt.ErrorOccurred():
				return fail(hostError(rt))
			default:
				pc = int(d.Label)
			}

		case OpReturnValue:
			d := decodeRegOp(code, pc)
			v := regs[d.Reg1]
			host.Retain(v)
			f.pc = pc
			return v, nil

		// --- Calls ---
		case OpCallFunction, OpCallFunctionVar, OpCallFunctionKw, OpCallFunctionVarKw:
			d := decodeVarRegOp(code, pc)
			na := int(d.Arg & 0xff)
			nk := int(d.Arg >> 8 & 0xff)
			n := na + 2*nk
			callee := regs[d.Regs[n]]
			dest := d.Regs[n+1]

			callArgs := f.ensureCallArgs(na)
			for i := 0; i < na; i++ {
				host.TupleSet(callArgs, i, regs[d.Regs[i]])
			}
			var kwargs *host.Object
			if nk > 0 {
				kwargs = host.NewDict()
				for i := na; i < n; i += 2 {
					if !rt.DictSetItem(kwargs, regs[d.Regs[i]], regs[d.Regs[i+1]]) {
						f.clearCallArgs()
						host.Release(kwargs)
						return fail(hostError(rt))
					}
				}
			}

			var res *host.Object
			var cerr *EvalError
			switch {
			case host.IsNative(callee):
				if res = rt.NativeCall(callee, callArgs, kwargs); res == nil {
					cerr = hostError(rt)
				}
			case kwargs == nil && (host.FunctionCheck(callee) || host.MethodCheck(callee)):
				res, cerr = e.call(callee, callArgs)
			default:
				if res = rt.Call(callee, callArgs, kwargs); res == nil {
					cerr = hostError(rt)
				}
			}
			f.clearCallArgs()
			host.Release(kwargs)
			if cerr != nil {
				return fail(cerr)
			}
			writeOwned(regs, dest, res)
			pc += varRegOpBase + 2*len(d.Regs)

		// --- Container builds ---
		case OpBuildTuple, OpBuildList:
			d := decodeVarRegOp(code, pc)
			n := int(d.Arg)
			var t *host.Object
			if op == OpBuildTuple {
				t = host.MakeTuple(n)
			} else {
				t = host.MakeList(n)
			}
			for i := 0; i < n; i++ {
				r := d.Regs[i]
				if op == OpBuildTuple {
					host.TupleSet(t, i, regs[r])
				} else {
					host.ListSet(t, i, regs[r])
				}
				// ownership moved into the container
				regs[r] = nil
			}
			writeOwned(regs, d.Regs[n], t)
			pc += varRegOpBase + 2*len(d.Regs)

		case OpListAppend:
			d := decodeRegOp(code, pc)
			l := regs[d.Reg1]
			if !host.ListCheck(l) {
				return fail(evalErrorf(host.TypeError,
					"LIST_APPEND target is '%s', not list", l.Kind().Name()))
			}
			host.ListAppend(l, regs[d.Reg2])
			pc += regOpSize

		// --- Slices ---
		case OpSlice0, OpSlice1, OpSlice2, OpSlice3:
			d := decodeRegOp(code, pc)
			var lo, hi *host.Object
			if d.Reg2 != BadRegister {
				lo = regs[d.Reg2]
			}
			if d.Reg3 != BadRegister {
				hi = regs[d.Reg3]
			}
			v := rt.GetSlice(regs[d.Reg1], lo, hi)
			if v == nil {
				return fail(hostError(rt))
			}
			writeOwned(regs, d.Reg4, v)
			pc += regOpSize

		// --- Print statement ---
		case OpPrintItem, OpPrintItemTo:
			d := decodeRegOp(code, pc)
			file := rt.Stdout()
			if op == OpPrintItemTo {
				file = regs[d.Reg2]
			}
			if err := printItem(rt, file, regs[d.Reg1]); err != nil {
				return fail(err)
			}
			pc += regOpSize

		case OpPrintNewline, OpPrintNewlineTo:
			d := decodeRegOp(code, pc)
			file := rt.Stdout()
			if op == OpPrintNewlineTo {
				file = regs[d.Reg1]
			}
			if !host.FileCheck(file) {
				return fail(evalErrorf(host.TypeError, "print target is not a file"))
			}
			if !rt.FileWrite(file, "\n") {
				return fail(hostError(rt))
			}
			host.FileSoftspace(file, 0)
			pc += regOpSize

		default:
			return fail(evalErrorf(host.SystemError,
				"unsupported opcode %s at offset %d", op.Name(), pc))
		}
	}
}

func (e *Evaluator) checkCancel() *EvalError {
	if e.Cancel != nil && e.Cancel.Err() != nil {
		return evalErrorf(host.SystemError, "execution cancelled: %v", e.Cancel.Err())
	}
	return nil
}

// genericBinary routes a binary opcode to the host protocol.
func genericBinary(rt *host.Runtime, op Opcode, a, b *host.Object) *host.Object {
	switch op {
	case OpBinaryAdd:
		return rt.Add(a, b)
	case OpInplaceAdd:
		return rt.InPlaceAdd(a, b)
	case OpBinarySubtract, OpInplaceSubtract:
		return rt.Sub(a, b)
	case OpBinaryMultiply, OpInplaceMultiply:
		return rt.Mul(a, b)
	case OpBinaryDivide, OpInplaceDivide:
		return rt.Div(a, b)
	case OpBinaryModulo, OpInplaceModulo:
		return rt.Mod(a, b)
	case OpBinaryPower, OpInplacePower:
		return rt.Power(a, b, host.None)
	case OpBinaryFloorDivide, OpInplaceFloorDivide:
		return rt.FloorDiv(a, b)
	case OpBinaryTrueDivide, OpInplaceTrueDivide:
		return rt.TrueDiv(a, b)
	case OpBinaryLshift, OpInplaceLshift:
		return rt.LShift(a, b)
	case OpBinaryRshift, OpInplaceRshift:
		return rt.RShift(a, b)
	case OpBinaryAnd, OpInplaceAnd:
		return rt.BitAnd(a, b)
	case OpBinaryXor, OpInplaceXor:
		return rt.BitXor(a, b)
	case OpBinaryOr, OpInplaceOr:
		return rt.BitOr(a, b)
	}
	rt.SetError(host.SystemError, "no binary protocol for %s", op.Name())
	return nil
}

// printItem writes one item with softspace separation, following the host
// print statement: a pending softspace emits one space first, and printing
// a string that ends in whitespace other than a space suppresses the next
// one.
func printItem(rt *host.Runtime, file, v *host.Object) *EvalError {
	if !host.FileCheck(file) {
		return evalErrorf(host.TypeError, "print target is not a file")
	}
	if host.FileSoftspace(file, 0) != 0 {
		if !rt.FileWrite(file, " ") {
			return hostError(rt)
		}
	}
	s := host.Str(v)
	if !rt.FileWrite(file, s) {
		return hostError(rt)
	}
	soft := 1
	if host.StringCheck(v) && len(s) > 0 {
		switch s[len(s)-1] {
		case '\n', '\t', '\r', '\v', '\f':
			soft = 0
		}
	}
	host.FileSoftspace(file, soft)
	return nil
}
