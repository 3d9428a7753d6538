package vm

import (
	"math"
	"testing"

	"github.com/hydrogen18/falcon/host"
)

func TestIntFastPathMatchesGeneric(t *testing.T) {
	rt := host.NewRuntime()
	pairs := []struct{ a, b int64 }{
		{3, 4}, {-3, 4}, {7, -2}, {-7, -2}, {0, 5}, {1 << 40, 1 << 10},
	}
	ops := []Opcode{OpBinaryAdd, OpBinarySubtract, OpBinaryMultiply,
		OpBinaryDivide, OpBinaryModulo}
	for _, p := range pairs {
		a := host.NewInt(p.a)
		b := host.NewInt(p.b)
		for _, op := range ops {
			fast, ok := intBinaryFast(op, a, b)
			if !ok {
				t.Fatalf("%s(%d, %d): fast path refused in-range operands", op, p.a, p.b)
			}
			slow := genericBinary(rt, op, a, b)
			if slow == nil {
				t.Fatalf("%s(%d, %d): generic path failed: %v", op, p.a, p.b, rt.FetchError())
			}
			if host.IntValue(fast) != host.IntValue(slow) {
				t.Errorf("%s(%d, %d): fast %d != slow %d", op, p.a, p.b,
					host.IntValue(fast), host.IntValue(slow))
			}
			host.Release(fast)
			host.Release(slow)
		}
		host.Release(a)
		host.Release(b)
	}
}

func TestIntFastPathOverflowFallsBack(t *testing.T) {
	a := host.NewInt(math.MaxInt64)
	defer host.Release(a)
	b := host.NewInt(1)
	defer host.Release(b)

	if _, ok := intBinaryFast(OpBinaryAdd, a, b); ok {
		t.Fatal("fast path accepted an overflowing add")
	}

	// the generic path widens
	rt := host.NewRuntime()
	v := rt.Add(a, b)
	if v == nil {
		t.Fatalf("generic add failed: %v", rt.FetchError())
	}
	defer host.Release(v)
	if host.IntCheckExact(v) {
		t.Error("overflowed add stayed a native int")
	}
	if got := host.Str(v); got != "9223372036854775808" {
		t.Errorf("widened sum = %s, want 9223372036854775808", got)
	}
}

func TestIntFastPathRejectsDivisionByZero(t *testing.T) {
	a := host.NewInt(1)
	defer host.Release(a)
	z := host.NewInt(0)
	defer host.Release(z)
	if _, ok := intBinaryFast(OpBinaryDivide, a, z); ok {
		t.Error("fast path accepted division by zero")
	}
	if _, ok := intBinaryFast(OpBinaryModulo, a, z); ok {
		t.Error("fast path accepted modulo by zero")
	}
}

func TestIntFastPathRejectsNonInts(t *testing.T) {
	a := host.NewInt(1)
	defer host.Release(a)
	f := host.NewFloat(1)
	defer host.Release(f)
	if _, ok := intBinaryFast(OpBinaryAdd, a, f); ok {
		t.Error("fast path accepted a float operand")
	}
	if _, ok := intBinaryFast(OpBinaryAdd, host.True, a); ok {
		t.Error("fast path accepted a bool operand")
	}
}

func TestCompareFastPathsReturnSingletons(t *testing.T) {
	one := host.NewInt(1)
	defer host.Release(one)
	two := host.NewInt(2)
	defer host.Release(two)

	v, ok := intCompareFast(uint16(host.CmpLT), one, two)
	if !ok || v != host.True {
		t.Errorf("1 < 2 = %v (ok=%v), want canonical True", v, ok)
	}
	v, ok = intCompareFast(uint16(host.CmpGE), one, two)
	if !ok || v != host.False {
		t.Errorf("1 >= 2 = %v (ok=%v), want canonical False", v, ok)
	}

	fa := host.NewFloat(1.5)
	defer host.Release(fa)
	fb := host.NewFloat(2.5)
	defer host.Release(fb)
	v, ok = floatCompareFast(uint16(host.CmpLT), fa, fb)
	if !ok || v != host.True {
		t.Errorf("1.5 < 2.5 = %v (ok=%v), want canonical True", v, ok)
	}
	if _, ok = floatCompareFast(uint16(host.CmpLT), fa, one); ok {
		t.Error("float fast path accepted a mixed int/float pair")
	}
}

func TestListSubscrFastPath(t *testing.T) {
	l := host.NewListFrom(host.NewInt(10), host.NewInt(20), host.NewInt(30))
	defer host.Release(l)
	for i := 0; i < 3; i++ {
		host.Release(host.ListGet(l, i)) // NewListFrom retained; drop ours
	}

	idx := host.NewInt(-1)
	defer host.Release(idx)
	v, ok := listSubscrFast(l, idx)
	if !ok {
		t.Fatal("fast path refused a negative in-range index")
	}
	if host.IntValue(v) != 30 {
		t.Errorf("l[-1] = %d, want 30", host.IntValue(v))
	}
	host.Release(v)

	oob := host.NewInt(7)
	defer host.Release(oob)
	if _, ok := listSubscrFast(l, oob); ok {
		t.Error("fast path accepted an out-of-range index")
	}
}
