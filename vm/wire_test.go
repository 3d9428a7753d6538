package vm

import (
	"testing"

	"github.com/hydrogen18/falcon/host"
)

func TestCodeWireRoundTrip(t *testing.T) {
	b := NewCodeBuilder()
	b.EmitReg(OpBinaryAdd, 0, 0, 1, 2)
	b.EmitReg(OpReturnValue, 0, 2)
	consts := []*host.Object{
		host.NewInt(42),
		host.NewString("hello"),
		host.NewFloat(2.5),
		host.None,
		host.True,
		host.NewTupleFrom(host.NewInt(1), host.NewInt(2)),
	}
	// NewTupleFrom retained its elements; drop the construction refs
	inner := consts[5]
	for i := 0; i < host.TupleSize(inner); i++ {
		host.Release(host.TupleGet(inner, i))
	}
	code, err := NewRegisterCode("f", b.Finish(8), consts, []string{"x", "y"}, 2)
	if err != nil {
		t.Fatalf("NewRegisterCode: %v", err)
	}

	blob, err := MarshalCode(code)
	if err != nil {
		t.Fatalf("MarshalCode: %v", err)
	}
	back, err := UnmarshalCode(blob)
	if err != nil {
		t.Fatalf("UnmarshalCode: %v", err)
	}

	if back.Name != "f" || back.ArgCount != 2 || back.NumRegisters != 8 {
		t.Errorf("metadata = %q/%d/%d, want f/2/8", back.Name, back.ArgCount, back.NumRegisters)
	}
	if len(back.Constants) != len(consts) {
		t.Fatalf("constants = %d, want %d", len(back.Constants), len(consts))
	}
	for i, c := range consts {
		if got, want := host.Repr(back.Constants[i]), host.Repr(c); got != want {
			t.Errorf("constant %d = %s, want %s", i, got, want)
		}
	}
	if len(back.Names) != 2 || back.Names[0] != "x" {
		t.Errorf("names = %v, want [x y]", back.Names)
	}
}

func TestCodeWireIsDeterministic(t *testing.T) {
	b := NewCodeBuilder()
	b.EmitReg(OpReturnValue, 0, 0)
	code, err := NewRegisterCode("f", b.Finish(1),
		[]*host.Object{host.NewInt(5)}, []string{"a", "b"}, 0)
	if err != nil {
		t.Fatalf("NewRegisterCode: %v", err)
	}
	one, err := MarshalCode(code)
	if err != nil {
		t.Fatalf("MarshalCode: %v", err)
	}
	two, err := MarshalCode(code)
	if err != nil {
		t.Fatalf("MarshalCode: %v", err)
	}
	if string(one) != string(two) {
		t.Error("two marshals of the same code differ")
	}
}

func TestFunctionArtifactRoundTripRuns(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)

	// f(a, b=7): return a + b -- serialize, reload, run
	f := buildFunction(t, "f", 2, 3, nil, nil,
		[]*host.Object{host.NewInt(7)},
		func(b *CodeBuilder) {
			b.EmitReg(OpBinaryAdd, 0, 0, 1, 2)
			b.EmitReg(OpReturnValue, 0, 2)
		})
	defer host.Release(f)

	blob, err := MarshalFunction(host.FunctionOf(f))
	if err != nil {
		t.Fatalf("MarshalFunction: %v", err)
	}
	back, err := UnmarshalFunction(blob, nil)
	if err != nil {
		t.Fatalf("UnmarshalFunction: %v", err)
	}
	defer host.Release(back)

	three := host.NewInt(3)
	defer host.Release(three)
	res := evalOK(t, e, back, three)
	wantInt(t, res, 10)
	host.Release(res)
}

func TestUnserializableConstantIsRejected(t *testing.T) {
	b := NewCodeBuilder()
	b.EmitReg(OpReturnValue, 0, 0)
	consts := []*host.Object{host.NewListFrom()}
	code, err := NewRegisterCode("f", b.Finish(1), consts, nil, 0)
	if err != nil {
		t.Fatalf("NewRegisterCode: %v", err)
	}
	if _, err := MarshalCode(code); err == nil {
		t.Fatal("MarshalCode accepted a list constant")
	}
}
