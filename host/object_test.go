package host

import "testing"

func TestRetainReleaseFinalizes(t *testing.T) {
	inner := NewString("inner")
	l := NewListFrom(inner)
	if rc := RefCount(inner); rc != 2 {
		t.Fatalf("inner refcount = %d, want 2", rc)
	}
	Release(l)
	if rc := RefCount(inner); rc != 1 {
		t.Errorf("inner refcount after list death = %d, want 1", rc)
	}
	Release(inner)
}

func TestSingletonsAreImmortal(t *testing.T) {
	for _, v := range []*Object{None, True, False} {
		Retain(v)
		Release(v)
		Release(v) // over-release must be harmless on immortals
		if RefCount(v) != -1 {
			t.Errorf("%s reports a mortal refcount", Repr(v))
		}
	}
}

func TestReleaseBelowZeroPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("double release did not panic")
		}
	}()
	v := NewInt(1)
	Release(v)
	Release(v)
}

func TestIsTruthy(t *testing.T) {
	empty := NewString("")
	defer Release(empty)
	full := NewString("x")
	defer Release(full)
	zero := NewInt(0)
	defer Release(zero)
	one := NewInt(1)
	defer Release(one)
	emptyList := NewListFrom()
	defer Release(emptyList)

	cases := []struct {
		v    *Object
		want bool
	}{
		{None, false},
		{False, false},
		{True, true},
		{zero, false},
		{one, true},
		{empty, false},
		{full, true},
		{emptyList, false},
	}
	for _, tc := range cases {
		if got := IsTruthy(tc.v); got != tc.want {
			t.Errorf("IsTruthy(%s) = %v, want %v", Repr(tc.v), got, tc.want)
		}
	}
}

func TestReprForms(t *testing.T) {
	s := NewString("a'b")
	defer Release(s)
	f := NewFloat(2)
	defer Release(f)
	tup := NewTupleFrom(None)
	defer Release(tup)

	if got := Repr(s); got != "'a\\'b'" {
		t.Errorf("Repr(string) = %s", got)
	}
	if got := Str(f); got != "2.0" {
		t.Errorf("Str(2.0) = %s, want 2.0", got)
	}
	if got := Repr(tup); got != "(None,)" {
		t.Errorf("Repr(singleton tuple) = %s, want (None,)", got)
	}
}
