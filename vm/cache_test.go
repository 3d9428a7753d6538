package vm

import (
	"path/filepath"
	"testing"

	"github.com/hydrogen18/falcon/host"
)

func testCode(t *testing.T, name string) *RegisterCode {
	t.Helper()
	b := NewCodeBuilder()
	b.EmitReg(OpReturnValue, 0, 0)
	code, err := NewRegisterCode(name, b.Finish(1),
		[]*host.Object{host.NewInt(17)}, nil, 0)
	if err != nil {
		t.Fatalf("NewRegisterCode: %v", err)
	}
	return code
}

func TestCodeCachePutGet(t *testing.T) {
	cache, err := OpenCodeCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenCodeCache: %v", err)
	}
	defer cache.Close()

	code := testCode(t, "answer")
	if err := cache.Put("answer", code); err != nil {
		t.Fatalf("Put: %v", err)
	}

	back, err := cache.Get("answer")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if back == nil {
		t.Fatal("Get returned nil for a stored entry")
	}
	if back.Name != "answer" || len(back.Constants) != 1 {
		t.Errorf("reloaded code %q with %d constants, want answer/1",
			back.Name, len(back.Constants))
	}
	wantInt(t, back.Constants[0], 17)
}

func TestCodeCacheMissReturnsNil(t *testing.T) {
	cache, err := OpenCodeCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenCodeCache: %v", err)
	}
	defer cache.Close()

	code, err := cache.Get("absent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if code != nil {
		t.Errorf("Get(absent) = %v, want nil", code)
	}
}

func TestEvaluatorResolvesCodeFromCache(t *testing.T) {
	cache, err := OpenCodeCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenCodeCache: %v", err)
	}
	defer cache.Close()
	if err := cache.Put("cached", testCode(t, "cached")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rt := host.NewRuntime()
	e := NewEvaluator(rt)
	e.Cache = cache

	globals := host.NewDict()
	defer host.Release(globals)
	fn := host.NewFunction("cached", globals, nil, nil)
	defer host.Release(fn)

	res := evalOK(t, e, fn)
	wantInt(t, res, 17)
	host.Release(res)
}

func TestEvaluatorWithoutCodeFails(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)

	globals := host.NewDict()
	defer host.Release(globals)
	fn := host.NewFunction("naked", globals, nil, nil)
	defer host.Release(fn)

	err := evalErr(t, e, fn)
	if err.Kind != host.SystemError {
		t.Errorf("error kind = %s, want SystemError", err.Kind)
	}
}

func TestEvaluatorCompileHook(t *testing.T) {
	rt := host.NewRuntime()
	e := NewEvaluator(rt)
	compiled := 0
	e.Compile = func(fn *host.Function) (*RegisterCode, error) {
		compiled++
		return testCode(t, fn.Name), nil
	}

	globals := host.NewDict()
	defer host.Release(globals)
	fn := host.NewFunction("lazy", globals, nil, nil)
	defer host.Release(fn)

	for i := 0; i < 3; i++ {
		res := evalOK(t, e, fn)
		wantInt(t, res, 17)
		host.Release(res)
	}
	if compiled != 1 {
		t.Errorf("compile hook ran %d times, want 1 (lazy, once per function)", compiled)
	}
}
