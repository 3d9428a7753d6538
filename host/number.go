package host

import (
	"math"
	"math/big"
	"strings"
)

// ---------------------------------------------------------------------------
// Numeric protocol
// ---------------------------------------------------------------------------
//
// All protocol functions return an owned reference, or nil with an error
// pending on the runtime. Integer arithmetic follows classic (Python 2)
// semantics: `/` on integers truncates toward negative infinity, `%` takes
// the divisor's sign, and results that overflow the native range widen to
// big integers.

func (rt *Runtime) typeErrBinary(op string, a, b *Object) *Object {
	rt.SetError(TypeError, "unsupported operand type(s) for %s: '%s' and '%s'",
		op, a.kind.Name(), b.kind.Name())
	return nil
}

// asFloat coerces a numeric value to float64.
func asFloat(v *Object) (float64, bool) {
	switch v.kind {
	case KindInt, KindBool:
		return float64(v.ival), true
	case KindBigInt:
		f, _ := new(big.Float).SetInt(v.bval).Float64()
		return f, true
	case KindFloat:
		return v.fval, true
	}
	return 0, false
}

// asBig coerces an integral value to a big integer.
func asBig(v *Object) (*big.Int, bool) {
	switch v.kind {
	case KindInt, KindBool:
		return big.NewInt(v.ival), true
	case KindBigInt:
		return v.bval, true
	}
	return nil, false
}

func bothIntegral(a, b *Object) bool {
	_, ok1 := asBig(a)
	_, ok2 := asBig(b)
	return ok1 && ok2
}

// normBig shrinks a big result back to a native int when it fits.
func normBig(z *big.Int) *Object {
	if z.IsInt64() {
		return NewInt(z.Int64())
	}
	return NewBigInt(z)
}

// Add implements the binary + protocol.
func (rt *Runtime) Add(a, b *Object) *Object {
	if a.kind == KindInt && b.kind == KindInt {
		i := a.ival + b.ival
		if ((i ^ a.ival) < 0) && ((i ^ b.ival) < 0) {
			return normBig(new(big.Int).Add(big.NewInt(a.ival), big.NewInt(b.ival)))
		}
		return NewInt(i)
	}
	if bothIntegral(a, b) {
		x, _ := asBig(a)
		y, _ := asBig(b)
		return normBig(new(big.Int).Add(x, y))
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return NewFloat(fa + fb)
		}
	}
	if a.kind == KindString && b.kind == KindString {
		return NewString(a.sval + b.sval)
	}
	if a.kind == b.kind && (a.kind == KindList || a.kind == KindTuple) {
		out := &Object{rc: 1, kind: a.kind, items: make([]*Object, 0, len(a.items)+len(b.items))}
		for _, it := range a.items {
			Retain(it)
			out.items = append(out.items, it)
		}
		for _, it := range b.items {
			Retain(it)
			out.items = append(out.items, it)
		}
		return out
	}
	return rt.typeErrBinary("+", a, b)
}

// InPlaceAdd implements += . Lists extend in place and return themselves;
// everything else degrades to the binary operator.
func (rt *Runtime) InPlaceAdd(a, b *Object) *Object {
	if a.kind == KindList && (b.kind == KindList || b.kind == KindTuple) {
		for _, it := range b.items {
			Retain(it)
			a.items = append(a.items, it)
		}
		Retain(a)
		return a
	}
	return rt.Add(a, b)
}

// Sub implements the binary - protocol.
func (rt *Runtime) Sub(a, b *Object) *Object {
	if a.kind == KindInt && b.kind == KindInt {
		i := a.ival - b.ival
		if ((a.ival ^ b.ival) < 0) && ((a.ival ^ i) < 0) {
			return normBig(new(big.Int).Sub(big.NewInt(a.ival), big.NewInt(b.ival)))
		}
		return NewInt(i)
	}
	if bothIntegral(a, b) {
		x, _ := asBig(a)
		y, _ := asBig(b)
		return normBig(new(big.Int).Sub(x, y))
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return NewFloat(fa - fb)
		}
	}
	return rt.typeErrBinary("-", a, b)
}

// Mul implements the binary * protocol.
func (rt *Runtime) Mul(a, b *Object) *Object {
	if bothIntegral(a, b) {
		x, _ := asBig(a)
		y, _ := asBig(b)
		return normBig(new(big.Int).Mul(x, y))
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return NewFloat(fa * fb)
		}
	}
	// sequence repetition: s * n or n * s
	if seq, n, ok := seqAndCount(a, b); ok {
		return repeatSeq(seq, n)
	}
	return rt.typeErrBinary("*", a, b)
}

func seqAndCount(a, b *Object) (*Object, int64, bool) {
	if (a.kind == KindString || a.kind == KindList || a.kind == KindTuple) && b.kind == KindInt {
		return a, b.ival, true
	}
	if (b.kind == KindString || b.kind == KindList || b.kind == KindTuple) && a.kind == KindInt {
		return b, a.ival, true
	}
	return nil, 0, false
}

func repeatSeq(seq *Object, n int64) *Object {
	if n < 0 {
		n = 0
	}
	if seq.kind == KindString {
		return NewString(strings.Repeat(seq.sval, int(n)))
	}
	out := &Object{rc: 1, kind: seq.kind, items: make([]*Object, 0, int(n)*len(seq.items))}
	for i := int64(0); i < n; i++ {
		for _, it := range seq.items {
			Retain(it)
			out.items = append(out.items, it)
		}
	}
	return out
}

func floordiv64(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func mod64(a, b int64) int64 {
	r := a % b
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

// Div implements the classic / protocol (integer operands floor-divide).
func (rt *Runtime) Div(a, b *Object) *Object {
	if a.kind == KindInt && b.kind == KindInt {
		if b.ival == 0 {
			rt.SetError(ZeroDivision, "integer division or modulo by zero")
			return nil
		}
		return NewInt(floordiv64(a.ival, b.ival))
	}
	if bothIntegral(a, b) {
		return rt.FloorDiv(a, b)
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			if fb == 0 {
				rt.SetError(ZeroDivision, "float division")
				return nil
			}
			return NewFloat(fa / fb)
		}
	}
	return rt.typeErrBinary("/", a, b)
}

// FloorDiv implements the // protocol.
func (rt *Runtime) FloorDiv(a, b *Object) *Object {
	if bothIntegral(a, b) {
		x, _ := asBig(a)
		y, _ := asBig(b)
		if y.Sign() == 0 {
			rt.SetError(ZeroDivision, "integer division or modulo by zero")
			return nil
		}
		q := new(big.Int)
		m := new(big.Int)
		q.DivMod(x, y, m)
		// DivMod is Euclidean (m >= 0); floor division wants the quotient
		// decremented when the divisor is negative and a remainder exists.
		if m.Sign() != 0 && y.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		}
		return normBig(q)
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			if fb == 0 {
				rt.SetError(ZeroDivision, "float division")
				return nil
			}
			return NewFloat(math.Floor(fa / fb))
		}
	}
	return rt.typeErrBinary("//", a, b)
}

// TrueDiv implements the true-division protocol.
func (rt *Runtime) TrueDiv(a, b *Object) *Object {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			if fb == 0 {
				rt.SetError(ZeroDivision, "division by zero")
				return nil
			}
			return NewFloat(fa / fb)
		}
	}
	return rt.typeErrBinary("/", a, b)
}

// Mod implements the % protocol.
func (rt *Runtime) Mod(a, b *Object) *Object {
	if a.kind == KindInt && b.kind == KindInt {
		if b.ival == 0 {
			rt.SetError(ZeroDivision, "integer division or modulo by zero")
			return nil
		}
		return NewInt(mod64(a.ival, b.ival))
	}
	if bothIntegral(a, b) {
		x, _ := asBig(a)
		y, _ := asBig(b)
		if y.Sign() == 0 {
			rt.SetError(ZeroDivision, "integer division or modulo by zero")
			return nil
		}
		m := new(big.Int).Mod(x, y) // non-negative
		if m.Sign() != 0 && y.Sign() < 0 {
			m.Add(m, y)
		}
		return normBig(m)
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			if fb == 0 {
				rt.SetError(ZeroDivision, "float modulo")
				return nil
			}
			r := math.Mod(fa, fb)
			if r != 0 && (r < 0) != (fb < 0) {
				r += fb
			}
			return NewFloat(r)
		}
	}
	return rt.typeErrBinary("%", a, b)
}

func (rt *Runtime) shiftCount(b *Object) (uint, bool) {
	n, ok := asBig(b)
	if !ok || n.Sign() < 0 || !n.IsInt64() {
		if ok && n.Sign() < 0 {
			rt.SetError(ValueError, "negative shift count")
		}
		return 0, false
	}
	return uint(n.Int64()), true
}

// LShift implements <<.
func (rt *Runtime) LShift(a, b *Object) *Object {
	x, ok := asBig(a)
	if !ok {
		return rt.typeErrBinary("<<", a, b)
	}
	n, ok := rt.shiftCount(b)
	if !ok {
		if !rt.ErrorOccurred() {
			return rt.typeErrBinary("<<", a, b)
		}
		return nil
	}
	return normBig(new(big.Int).Lsh(x, n))
}

// RShift implements >>.
func (rt *Runtime) RShift(a, b *Object) *Object {
	x, ok := asBig(a)
	if !ok {
		return rt.typeErrBinary(">>", a, b)
	}
	n, ok := rt.shiftCount(b)
	if !ok {
		if !rt.ErrorOccurred() {
			return rt.typeErrBinary(">>", a, b)
		}
		return nil
	}
	return normBig(new(big.Int).Rsh(x, n))
}

// BitAnd implements &.
func (rt *Runtime) BitAnd(a, b *Object) *Object {
	if x, ok := asBig(a); ok {
		if y, ok := asBig(b); ok {
			return normBig(new(big.Int).And(x, y))
		}
	}
	return rt.typeErrBinary("&", a, b)
}

// BitOr implements |.
func (rt *Runtime) BitOr(a, b *Object) *Object {
	if x, ok := asBig(a); ok {
		if y, ok := asBig(b); ok {
			return normBig(new(big.Int).Or(x, y))
		}
	}
	return rt.typeErrBinary("|", a, b)
}

// BitXor implements ^.
func (rt *Runtime) BitXor(a, b *Object) *Object {
	if x, ok := asBig(a); ok {
		if y, ok := asBig(b); ok {
			return normBig(new(big.Int).Xor(x, y))
		}
	}
	return rt.typeErrBinary("^", a, b)
}

// Power implements the three-argument pow protocol. mod is None for the
// two-argument form.
func (rt *Runtime) Power(a, b, mod *Object) *Object {
	if mod != nil && mod != None {
		x, ok1 := asBig(a)
		y, ok2 := asBig(b)
		m, ok3 := asBig(mod)
		if !ok1 || !ok2 || !ok3 {
			rt.SetError(TypeError, "pow() 3rd argument requires integer operands")
			return nil
		}
		if m.Sign() == 0 {
			rt.SetError(ValueError, "pow() 3rd argument cannot be 0")
			return nil
		}
		return normBig(new(big.Int).Exp(x, y, m))
	}
	if bothIntegral(a, b) {
		y, _ := asBig(b)
		if y.Sign() >= 0 {
			x, _ := asBig(a)
			return normBig(new(big.Int).Exp(x, y, nil))
		}
		// negative exponent degrades to float
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return NewFloat(math.Pow(fa, fb))
		}
	}
	return rt.typeErrBinary("**", a, b)
}

// ---------------------------------------------------------------------------
// Unary protocol
// ---------------------------------------------------------------------------

// Negate implements unary -.
func (rt *Runtime) Negate(v *Object) *Object {
	switch v.kind {
	case KindInt, KindBool:
		if v.ival == math.MinInt64 {
			return NewBigInt(new(big.Int).Neg(big.NewInt(v.ival)))
		}
		return NewInt(-v.ival)
	case KindBigInt:
		return normBig(new(big.Int).Neg(v.bval))
	case KindFloat:
		return NewFloat(-v.fval)
	}
	rt.SetError(TypeError, "bad operand type for unary -: '%s'", v.kind.Name())
	return nil
}

// Positive implements unary +.
func (rt *Runtime) Positive(v *Object) *Object {
	switch v.kind {
	case KindInt, KindBool:
		return NewInt(v.ival)
	case KindBigInt:
		return NewBigInt(new(big.Int).Set(v.bval))
	case KindFloat:
		return NewFloat(v.fval)
	}
	rt.SetError(TypeError, "bad operand type for unary +: '%s'", v.kind.Name())
	return nil
}

// Invert implements unary ~.
func (rt *Runtime) Invert(v *Object) *Object {
	if x, ok := asBig(v); ok {
		return normBig(new(big.Int).Not(x))
	}
	rt.SetError(TypeError, "bad operand type for unary ~: '%s'", v.kind.Name())
	return nil
}
