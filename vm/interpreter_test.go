package vm

import (
	"strings"
	"testing"

	"github.com/hydrogen18/falcon/host"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// buildFunction assembles a register function from hand-written code.
// Constants occupy the low registers, then self (for methods), then args.
func buildFunction(t *testing.T, name string, argCount, numRegs int,
	constants []*host.Object, names []string, defaults []*host.Object,
	emit func(b *CodeBuilder)) *host.Object {
	t.Helper()

	b := NewCodeBuilder()
	emit(b)
	code, err := NewRegisterCode(name, b.Finish(numRegs), constants, names, argCount)
	if err != nil {
		t.Fatalf("NewRegisterCode: %v", err)
	}
	globals := host.NewDict()
	defer host.Release(globals)
	fn := host.NewFunction(name, globals, defaults, code)
	for _, d := range defaults {
		host.Release(d)
	}
	return fn
}

func evalOK(t *testing.T, e *Evaluator, fn *host.Object, args ...*host.Object) *host.Object {
	t.Helper()
	tup := host.NewTupleFrom(args...)
	defer host.Release(tup)
	res, err := e.Eval(fn, tup)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	return res
}

func evalErr(t *testing.T, e *Evaluator, fn *host.Object, args ...*host.Object) *EvalError {
	t.Helper()
	tup := host.NewTupleFrom(args...)
	defer host.Release(tup)
	res, err := e.Eval(fn, tup)
	if err == nil {
		t.Fatalf("Eval succeeded with %s, want error", host.Repr(res))
	}
	return err.(*EvalError)
}

func wantInt(t *testing.T, v *host.Object, want int64) {
	t.Helper()
	if !host.IntCheckExact(v) {
		t.Fatalf("result = %s, want int %d", host.Repr(v), want)
	}
	if got := host.IntValue(v); got != want {
		t.Fatalf("result = %d, want %d", got, want)
	}
}

// sumFunction builds: s = 0; for i in range(n): s += i; return s
func sumFunction(t *testing.T) *host.Object {
	// r0 = const 0, r1 = n, r2 = s, r3 = range, r4 = range(n),
	// r5 = iter, r6 = i
	return buildFunction(t, "sum", 1, 7,
		[]*host.Object{host.NewInt(0)}, []string{"range"}, nil,
		func(b *CodeBuilder) {
			b.EmitReg(OpLoadFast, 0, 0, 2)
			b.EmitReg(OpLoadGlobal, 0, 3)
			b.EmitVarReg(OpCallFunction, 1, 1, 3, 4)
			b.EmitReg(OpGetIter, 0, 4, 5)
			loop := b.Pos()
			at := b.EmitBranch(OpForIter, 5, 6, 0)
			b.EmitReg(OpInplaceAdd, 0, 2, 6, 2)
			b.EmitBranch(OpJumpAbsolute, BadRegister, BadRegister, loop)
			b.PatchLabel(at, b.Pos())
			b.EmitReg(OpReturnValue, 0, 2)
		})
}

// ---------------------------------------------------------------------------
// Scenario tests
// ---------------------------------------------------------------------------

func TestSumLoop(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)
	fn := sumFunction(t)
	defer host.Release(fn)

	for _, tc := range []struct{ n, want int64 }{
		{10, 45},
		{100, 4950},
		{0, 0},
	} {
		arg := host.NewInt(tc.n)
		res := evalOK(t, e, fn, arg)
		wantInt(t, res, tc.want)
		host.Release(res)
		host.Release(arg)
	}
}

func TestAttributeCall(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)

	// double(self, x): return 2 * x
	double := buildFunction(t, "double", 2, 4,
		[]*host.Object{host.NewInt(2)}, nil, nil,
		func(b *CodeBuilder) {
			b.EmitReg(OpBinaryMultiply, 0, 0, 2, 3)
			b.EmitReg(OpReturnValue, 0, 3)
		})
	defer host.Release(double)

	class := host.NewClass("Doubler", map[string]*host.Object{"double": double})
	defer host.Release(class)
	obj := host.NewInstance(class)
	defer host.Release(obj)

	// f(o): return o.double(21)
	f := buildFunction(t, "f", 1, 4,
		[]*host.Object{host.NewInt(21)}, []string{"double"}, nil,
		func(b *CodeBuilder) {
			b.EmitReg(OpLoadAttr, 0, 1, 2)
			b.EmitVarReg(OpCallFunction, 1, 0, 2, 3)
			b.EmitReg(OpReturnValue, 0, 3)
		})
	defer host.Release(f)

	res := evalOK(t, e, f, obj)
	wantInt(t, res, 42)
	host.Release(res)
}

func TestListNegativeSubscript(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)

	// f(): return [10, 20, 30][-1]
	f := buildFunction(t, "f", 0, 6,
		[]*host.Object{host.NewInt(10), host.NewInt(20), host.NewInt(30), host.NewInt(-1)},
		nil, nil,
		func(b *CodeBuilder) {
			b.EmitVarReg(OpBuildList, 3, 0, 1, 2, 4)
			b.EmitReg(OpBinarySubscr, 0, 4, 3, 5)
			b.EmitReg(OpReturnValue, 0, 5)
		})
	defer host.Release(f)

	res := evalOK(t, e, f)
	wantInt(t, res, 30)
	host.Release(res)
}

func TestNameShadowing(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)

	// f(x): return x -- with a global x = 1 that must not win
	f := buildFunction(t, "f", 1, 1, nil, nil, nil,
		func(b *CodeBuilder) {
			b.EmitReg(OpReturnValue, 0, 0)
		})
	defer host.Release(f)
	one := host.NewInt(1)
	host.DictSet(host.FunctionOf(f).Globals, "x", one)
	host.Release(one)

	arg := host.NewInt(5)
	defer host.Release(arg)
	res := evalOK(t, e, f, arg)
	wantInt(t, res, 5)
	host.Release(res)
}

func TestDefaultArguments(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)

	// f(a, b=7): return a + b
	f := buildFunction(t, "f", 2, 3, nil, nil,
		[]*host.Object{host.NewInt(7)},
		func(b *CodeBuilder) {
			b.EmitReg(OpBinaryAdd, 0, 0, 1, 2)
			b.EmitReg(OpReturnValue, 0, 2)
		})
	defer host.Release(f)

	three := host.NewInt(3)
	defer host.Release(three)
	four := host.NewInt(4)
	defer host.Release(four)

	res := evalOK(t, e, f, three)
	wantInt(t, res, 10)
	host.Release(res)

	res = evalOK(t, e, f, three, four)
	wantInt(t, res, 7)
	host.Release(res)
}

func TestArityError(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)

	f := buildFunction(t, "f", 2, 3, nil, nil, nil,
		func(b *CodeBuilder) {
			b.EmitReg(OpReturnValue, 0, 0)
		})
	defer host.Release(f)

	err := evalErr(t, e, f)
	if err.Kind != host.TypeError {
		t.Errorf("error kind = %s, want TypeError", err.Kind)
	}
	if !strings.Contains(err.Message, "f()") {
		t.Errorf("error message %q does not name the function", err.Message)
	}
}

func TestIndexErrorPassthrough(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)

	// f(): return [1, 2][5]
	f := buildFunction(t, "f", 0, 5,
		[]*host.Object{host.NewInt(1), host.NewInt(2), host.NewInt(5)},
		nil, nil,
		func(b *CodeBuilder) {
			b.EmitVarReg(OpBuildList, 2, 0, 1, 3)
			b.EmitReg(OpBinarySubscr, 0, 3, 2, 4)
			b.EmitReg(OpReturnValue, 0, 4)
		})
	defer host.Release(f)

	err := evalErr(t, e, f)
	if err.Kind != host.IndexError {
		t.Errorf("error kind = %s, want IndexError", err.Kind)
	}
}

func TestInfiniteLoopCeiling(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)
	e.OpLimit = 10_000

	// while True: pass
	f := buildFunction(t, "spin", 0, 1, nil, nil, nil,
		func(b *CodeBuilder) {
			loop := b.Pos()
			b.EmitBranch(OpJumpAbsolute, BadRegister, BadRegister, loop)
		})
	defer host.Release(f)

	err := evalErr(t, e, f)
	if err.Kind != host.SystemError {
		t.Errorf("error kind = %s, want SystemError", err.Kind)
	}
	if !strings.Contains(err.Message, "infinite loop") {
		t.Errorf("error message = %q, want infinite-loop report", err.Message)
	}
}

func TestGlobalLookupFallsBackToBuiltins(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)

	// f(xs): return len(xs)
	f := buildFunction(t, "f", 1, 3, nil, []string{"len"}, nil,
		func(b *CodeBuilder) {
			b.EmitReg(OpLoadGlobal, 0, 1)
			b.EmitVarReg(OpCallFunction, 1, 0, 1, 2)
			b.EmitReg(OpReturnValue, 0, 2)
		})
	defer host.Release(f)

	xs := host.NewListFrom(host.None, host.True, host.False)
	defer host.Release(xs)
	res := evalOK(t, e, f, xs)
	wantInt(t, res, 3)
	host.Release(res)
}

func TestNameErrorReportsMissingName(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)

	f := buildFunction(t, "f", 0, 1, nil, []string{"nonesuch"}, nil,
		func(b *CodeBuilder) {
			b.EmitReg(OpLoadGlobal, 0, 0)
			b.EmitReg(OpReturnValue, 0, 0)
		})
	defer host.Release(f)

	err := evalErr(t, e, f)
	if err.Kind != host.NameError {
		t.Errorf("error kind = %s, want NameError", err.Kind)
	}
	if !strings.Contains(err.Message, "nonesuch") {
		t.Errorf("error message %q does not name the missing global", err.Message)
	}
}

func TestRejectedOpcodeIsFatal(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)

	// LOAD_CONST must never be emitted; the engine refuses it.
	f := buildFunction(t, "f", 0, 1, nil, nil, nil,
		func(b *CodeBuilder) {
			b.EmitReg(Opcode(100), 0, 0)
		})
	defer host.Release(f)

	err := evalErr(t, e, f)
	if err.Kind != host.SystemError {
		t.Errorf("error kind = %s, want SystemError", err.Kind)
	}
	if !strings.Contains(err.Message, "LOAD_CONST") {
		t.Errorf("error message = %q, want LOAD_CONST named", err.Message)
	}
}

func TestForIterEmptyNeverWritesTarget(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)

	// for i in []: return i -- the body never runs, so the function falls
	// through to returning the sentinel constant.
	f := buildFunction(t, "f", 0, 4,
		[]*host.Object{host.NewInt(99)}, nil, nil,
		func(b *CodeBuilder) {
			b.EmitVarReg(OpBuildList, 0, 1)
			b.EmitReg(OpGetIter, 0, 1, 2)
			at := b.EmitBranch(OpForIter, 2, 3, 0)
			b.EmitReg(OpReturnValue, 0, 3)
			b.PatchLabel(at, b.Pos())
			b.EmitReg(OpReturnValue, 0, 0)
		})
	defer host.Release(f)

	res := evalOK(t, e, f)
	wantInt(t, res, 99)
	host.Release(res)
}

func TestJumpIfFalseOnExactFalse(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)

	// r0 is exactly False, so the branch is taken and r1 (2) is returned;
	// the fall-through would return r0 itself
	f := buildFunction(t, "f", 0, 2,
		[]*host.Object{host.False, host.NewInt(2)}, nil, nil,
		func(b *CodeBuilder) {
			at := b.EmitBranch(OpJumpIfFalseOrPop, 0, BadRegister, 0)
			b.EmitReg(OpReturnValue, 0, 0)
			b.PatchLabel(at, b.Pos())
			b.EmitReg(OpReturnValue, 0, 1)
		})
	defer host.Release(f)

	res := evalOK(t, e, f)
	wantInt(t, res, 2)
	host.Release(res)
}

func TestRecursiveCall(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)

	// fact(n): if n < 2: return 1; return n * fact(n - 1)
	// r0=1 r1=2 r2=n r3=cmp r4=fact r5=n-1 r6=rec r7=result
	f := buildFunction(t, "fact", 1, 8,
		[]*host.Object{host.NewInt(1), host.NewInt(2)}, []string{"fact"}, nil,
		func(b *CodeBuilder) {
			b.EmitReg(OpCompareOp, uint16(host.CmpLT), 2, 1, 3)
			at := b.EmitBranch(OpPopJumpIfFalse, 3, BadRegister, 0)
			b.EmitReg(OpReturnValue, 0, 0)
			b.PatchLabel(at, b.Pos())
			b.EmitReg(OpLoadGlobal, 0, 4)
			b.EmitReg(OpBinarySubtract, 0, 2, 0, 5)
			b.EmitVarReg(OpCallFunction, 1, 5, 4, 6)
			b.EmitReg(OpBinaryMultiply, 0, 2, 6, 7)
			b.EmitReg(OpReturnValue, 0, 7)
		})
	defer host.Release(f)
	// the function reaches itself through its own globals
	host.DictSet(host.FunctionOf(f).Globals, "fact", f)

	arg := host.NewInt(10)
	defer host.Release(arg)
	res := evalOK(t, e, f, arg)
	wantInt(t, res, 3628800)
	host.Release(res)
}

func TestDeterministicEval(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)
	fn := sumFunction(t)
	defer host.Release(fn)

	arg := host.NewInt(25)
	defer host.Release(arg)
	a := evalOK(t, e, fn, arg)
	b := evalOK(t, e, fn, arg)
	if host.Repr(a) != host.Repr(b) {
		t.Errorf("two evals differ: %s vs %s", host.Repr(a), host.Repr(b))
	}
	host.Release(a)
	host.Release(b)
}

func TestDumpStatusCountsOps(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)
	fn := sumFunction(t)
	defer host.Release(fn)

	arg := host.NewInt(10)
	defer host.Release(arg)
	res := evalOK(t, e, fn, arg)
	host.Release(res)

	if e.TotalOps() == 0 {
		t.Fatal("TotalOps = 0 after a run")
	}
	counts := e.OpCounts()
	if counts[OpForIter] != 11 {
		t.Errorf("FOR_ITER count = %d, want 11", counts[OpForIter])
	}
	if counts[OpInplaceAdd] != 10 {
		t.Errorf("INPLACE_ADD count = %d, want 10", counts[OpInplaceAdd])
	}
}
