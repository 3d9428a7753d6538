package vm

import (
	"github.com/hydrogen18/falcon/host"
)

// ---------------------------------------------------------------------------
// Type specializations
// ---------------------------------------------------------------------------
//
// Monomorphic fast paths applied before the generic protocol. Each returns
// ok=false to route the operands to the slow path; the caller must not
// consult the runtime error state on a miss.

// intBinaryFast computes integer-only ADD/SUB/MUL/DIV/MOD. Both operands
// must be exactly unboxed integers. Overflow (detected by the sign-cross
// check for add and subtract, by a division check for multiply) and
// division by zero fall back to the generic operator. The result is owned.
func intBinaryFast(op Opcode, a, b *host.Object) (*host.Object, bool) {
	if !host.IntCheckExact(a) || !host.IntCheckExact(b) {
		return nil, false
	}
	x := host.IntValue(a)
	y := host.IntValue(b)
	var i int64
	switch op {
	case OpBinaryAdd, OpInplaceAdd:
		i = x + y
		if ((i ^ x) < 0) && ((i ^ y) < 0) {
			return nil, false
		}
	case OpBinarySubtract, OpInplaceSubtract:
		i = x - y
		if ((x ^ y) < 0) && ((x ^ i) < 0) {
			return nil, false
		}
	case OpBinaryMultiply, OpInplaceMultiply:
		if x != 0 {
			i = x * y
			if i/x != y || (x == -1 && y == -1<<63) {
				return nil, false
			}
		}
	case OpBinaryDivide, OpInplaceDivide:
		if y == 0 || (x == -1<<63 && y == -1) {
			return nil, false
		}
		i = x / y
		if x%y != 0 && (x < 0) != (y < 0) {
			i--
		}
	case OpBinaryModulo, OpInplaceModulo:
		if y == 0 || (x == -1<<63 && y == -1) {
			return nil, false
		}
		i = x % y
		if i != 0 && (i < 0) != (y < 0) {
			i += y
		}
	default:
		return nil, false
	}
	return host.NewInt(i), true
}

// intCompareFast compares two unboxed integers, returning the canonical
// singleton borrowed.
func intCompareFast(arg uint16, a, b *host.Object) (*host.Object, bool) {
	if !host.IntCheckExact(a) || !host.IntCheckExact(b) {
		return nil, false
	}
	return compareFast(arg, host.IntValue(a), host.IntValue(b))
}

// floatCompareFast compares two unboxed floats, returning the canonical
// singleton borrowed.
func floatCompareFast(arg uint16, a, b *host.Object) (*host.Object, bool) {
	if !host.FloatCheckExact(a) || !host.FloatCheckExact(b) {
		return nil, false
	}
	x := host.FloatValue(a)
	y := host.FloatValue(b)
	switch int(arg) {
	case host.CmpLT:
		return host.Bool(x < y), true
	case host.CmpLE:
		return host.Bool(x <= y), true
	case host.CmpEQ:
		return host.Bool(x == y), true
	case host.CmpNE:
		return host.Bool(x != y), true
	case host.CmpGT:
		return host.Bool(x > y), true
	case host.CmpGE:
		return host.Bool(x >= y), true
	}
	return nil, false
}

func compareFast(arg uint16, x, y int64) (*host.Object, bool) {
	switch int(arg) {
	case host.CmpLT:
		return host.Bool(x < y), true
	case host.CmpLE:
		return host.Bool(x <= y), true
	case host.CmpEQ:
		return host.Bool(x == y), true
	case host.CmpNE:
		return host.Bool(x != y), true
	case host.CmpGT:
		return host.Bool(x > y), true
	case host.CmpGE:
		return host.Bool(x >= y), true
	}
	return nil, false
}

// listSubscrFast indexes a list with an exact integer, normalizing negative
// indexes. Out-of-range routes to the generic path so the host raises its
// own IndexError. The result is owned.
func listSubscrFast(c, k *host.Object) (*host.Object, bool) {
	if !host.ListCheck(c) || !host.IntCheckExact(k) {
		return nil, false
	}
	i := host.IntValue(k)
	n := int64(host.ListSize(c))
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return nil, false
	}
	v := host.ListGet(c, int(i))
	host.Retain(v)
	return v, true
}
