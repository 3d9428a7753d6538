package host

import (
	"math/big"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Builtin namespace
// ---------------------------------------------------------------------------

func (rt *Runtime) makeBuiltins() *Object {
	b := NewDict()
	add := func(name string, fn func(rt *Runtime, args, kwargs *Object) *Object) {
		n := NewNative(name, fn)
		DictSet(b, name, n)
		Release(n)
	}
	add("len", builtinLen)
	add("range", builtinRange)
	add("abs", builtinAbs)
	add("min", builtinMinMax(-1))
	add("max", builtinMinMax(1))
	add("str", builtinStr)
	add("repr", builtinRepr)
	add("int", builtinInt)
	add("float", builtinFloat)
	DictSet(b, "True", True)
	DictSet(b, "False", False)
	DictSet(b, "None", None)
	return b
}

func wantArgs(rt *Runtime, name string, args *Object, lo, hi int) bool {
	n := TupleSize(args)
	if n < lo || n > hi {
		rt.SetError(TypeError, "%s() takes %d to %d arguments (%d given)", name, lo, hi, n)
		return false
	}
	return true
}

func builtinLen(rt *Runtime, args, kwargs *Object) *Object {
	if !wantArgs(rt, "len", args, 1, 1) {
		return nil
	}
	n, ok := rt.Len(TupleGet(args, 0))
	if !ok {
		return nil
	}
	return NewInt(int64(n))
}

// builtinRange produces a list, as the classic host does.
func builtinRange(rt *Runtime, args, kwargs *Object) *Object {
	if !wantArgs(rt, "range", args, 1, 3) {
		return nil
	}
	var lo, hi, step int64 = 0, 0, 1
	get := func(i int) (int64, bool) {
		v := TupleGet(args, i)
		if !IntCheckExact(v) && v.kind != KindBool {
			rt.SetError(TypeError, "range() integer argument expected, got %s",
				v.kind.Name())
			return 0, false
		}
		return v.ival, true
	}
	var ok bool
	switch TupleSize(args) {
	case 1:
		if hi, ok = get(0); !ok {
			return nil
		}
	case 2:
		if lo, ok = get(0); !ok {
			return nil
		}
		if hi, ok = get(1); !ok {
			return nil
		}
	case 3:
		if lo, ok = get(0); !ok {
			return nil
		}
		if hi, ok = get(1); !ok {
			return nil
		}
		if step, ok = get(2); !ok {
			return nil
		}
		if step == 0 {
			rt.SetError(ValueError, "range() step argument must not be zero")
			return nil
		}
	}
	out := MakeList(0)
	if step > 0 {
		for i := lo; i < hi; i += step {
			out.items = append(out.items, NewInt(i))
		}
	} else {
		for i := lo; i > hi; i += step {
			out.items = append(out.items, NewInt(i))
		}
	}
	return out
}

func builtinAbs(rt *Runtime, args, kwargs *Object) *Object {
	if !wantArgs(rt, "abs", args, 1, 1) {
		return nil
	}
	v := TupleGet(args, 0)
	switch v.kind {
	case KindInt, KindBool:
		if v.ival < 0 {
			return rt.Negate(v)
		}
		return NewInt(v.ival)
	case KindBigInt:
		return normBig(new(big.Int).Abs(v.bval))
	case KindFloat:
		if v.fval < 0 {
			return NewFloat(-v.fval)
		}
		return NewFloat(v.fval)
	}
	rt.SetError(TypeError, "bad operand type for abs(): '%s'", v.kind.Name())
	return nil
}

func builtinMinMax(sign int) func(rt *Runtime, args, kwargs *Object) *Object {
	return func(rt *Runtime, args, kwargs *Object) *Object {
		n := TupleSize(args)
		var items []*Object
		switch {
		case n == 0:
			rt.SetError(TypeError, "expected at least 1 argument, got 0")
			return nil
		case n == 1:
			seq := TupleGet(args, 0)
			if seq.kind != KindList && seq.kind != KindTuple {
				rt.SetError(TypeError, "argument is not iterable")
				return nil
			}
			if len(seq.items) == 0 {
				rt.SetError(ValueError, "arg is an empty sequence")
				return nil
			}
			items = seq.items
		default:
			items = args.items
		}
		best := items[0]
		for _, it := range items[1:] {
			c, ok := compare3(it, best)
			if !ok {
				rt.SetError(TypeError, "cannot compare '%s' and '%s'",
					it.kind.Name(), best.kind.Name())
				return nil
			}
			if c*sign > 0 {
				best = it
			}
		}
		Retain(best)
		return best
	}
}

func builtinStr(rt *Runtime, args, kwargs *Object) *Object {
	if !wantArgs(rt, "str", args, 0, 1) {
		return nil
	}
	if TupleSize(args) == 0 {
		return NewString("")
	}
	return NewString(Str(TupleGet(args, 0)))
}

func builtinRepr(rt *Runtime, args, kwargs *Object) *Object {
	if !wantArgs(rt, "repr", args, 1, 1) {
		return nil
	}
	return NewString(Repr(TupleGet(args, 0)))
}

func builtinInt(rt *Runtime, args, kwargs *Object) *Object {
	if !wantArgs(rt, "int", args, 0, 1) {
		return nil
	}
	if TupleSize(args) == 0 {
		return NewInt(0)
	}
	v := TupleGet(args, 0)
	switch v.kind {
	case KindInt, KindBool:
		return NewInt(v.ival)
	case KindBigInt:
		return normBig(new(big.Int).Set(v.bval))
	case KindFloat:
		return NewInt(int64(v.fval))
	case KindString:
		s := strings.TrimSpace(v.sval)
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			if z, ok := new(big.Int).SetString(s, 10); ok {
				return NewBigInt(z)
			}
			rt.SetError(ValueError, "invalid literal for int(): %s", v.sval)
			return nil
		}
		return NewInt(i)
	}
	rt.SetError(TypeError, "int() argument must be a string or a number")
	return nil
}

func builtinFloat(rt *Runtime, args, kwargs *Object) *Object {
	if !wantArgs(rt, "float", args, 0, 1) {
		return nil
	}
	if TupleSize(args) == 0 {
		return NewFloat(0)
	}
	v := TupleGet(args, 0)
	if f, ok := asFloat(v); ok {
		return NewFloat(f)
	}
	if v.kind == KindString {
		f, err := strconv.ParseFloat(strings.TrimSpace(v.sval), 64)
		if err != nil {
			rt.SetError(ValueError, "invalid literal for float(): %s", v.sval)
			return nil
		}
		return NewFloat(f)
	}
	rt.SetError(TypeError, "float() argument must be a string or a number")
	return nil
}
