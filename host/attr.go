package host

// ---------------------------------------------------------------------------
// Functions, methods, classes
// ---------------------------------------------------------------------------

// Function is a register function: compiled code plus the environment the
// engine needs to build a frame. Code is opaque to the host; the engine
// stores its compiled artifact there and compiles lazily when nil.
type Function struct {
	Name     string
	Globals  *Object // dict
	Defaults []*Object
	Code     interface{}
}

// Native is a function implemented by the host itself.
type Native struct {
	Name string
	Fn   func(rt *Runtime, args, kwargs *Object) *Object
}

type boundMethod struct {
	Self *Object
	Fn   *Object // the underlying function object
}

// Class is a minimal class object: a name and a method table.
type Class struct {
	Name    string
	Methods map[string]*Object // name -> function object
}

// NewFunction wraps a register function, retaining globals and each default.
func NewFunction(name string, globals *Object, defaults []*Object, code interface{}) *Object {
	Retain(globals)
	for _, d := range defaults {
		Retain(d)
	}
	return &Object{rc: 1, kind: KindFunction, fn: &Function{
		Name:     name,
		Globals:  globals,
		Defaults: defaults,
		Code:     code,
	}}
}

// NewNative wraps a host-native function.
func NewNative(name string, fn func(rt *Runtime, args, kwargs *Object) *Object) *Object {
	return &Object{rc: 1, kind: KindNative, native: &Native{Name: name, Fn: fn}}
}

// NewClass builds a class object. Methods are retained.
func NewClass(name string, methods map[string]*Object) *Object {
	for _, m := range methods {
		Retain(m)
	}
	return &Object{rc: 1, kind: KindClass, class: &Class{Name: name, Methods: methods}}
}

// NewInstance allocates an instance of class with an empty attribute dict.
func NewInstance(class *Object) *Object {
	return &Object{rc: 1, kind: KindInstance, class: class.class,
		dict: map[string]*Object{}}
}

// BindMethod pairs a function with a receiver, retaining both.
func BindMethod(self, fn *Object) *Object {
	Retain(self)
	Retain(fn)
	return &Object{rc: 1, kind: KindMethod, method: &boundMethod{Self: self, Fn: fn}}
}

// FunctionCheck reports whether v is a register function.
func FunctionCheck(v *Object) bool { return v != nil && v.kind == KindFunction }

// FunctionOf returns the register-function payload.
func FunctionOf(v *Object) *Function { return v.fn }

// MethodCheck reports whether v is a bound method.
func MethodCheck(v *Object) bool { return v != nil && v.kind == KindMethod }

// MethodSelf returns a bound method's receiver, borrowed.
func MethodSelf(v *Object) *Object { return v.method.Self }

// MethodFunction returns a bound method's function, borrowed.
func MethodFunction(v *Object) *Object { return v.method.Fn }

// IsNative reports whether v is a host-native function.
func IsNative(v *Object) bool { return v != nil && v.kind == KindNative }

// NativeCall invokes a native function directly.
func (rt *Runtime) NativeCall(fn, args, kwargs *Object) *Object {
	return fn.native.Fn(rt, args, kwargs)
}

// ---------------------------------------------------------------------------
// Attribute protocol
// ---------------------------------------------------------------------------

// GetAttr implements attribute read. The result is owned.
func (rt *Runtime) GetAttr(o *Object, name string) *Object {
	switch o.kind {
	case KindInstance:
		if v, ok := o.dict[name]; ok {
			Retain(v)
			return v
		}
		if m, ok := o.class.Methods[name]; ok {
			return BindMethod(o, m)
		}
		rt.SetError(AttributeError, "%s instance has no attribute '%s'",
			o.class.Name, name)
		return nil
	case KindClass:
		if m, ok := o.class.Methods[name]; ok {
			Retain(m)
			return m
		}
		rt.SetError(AttributeError, "class %s has no attribute '%s'",
			o.class.Name, name)
		return nil
	case KindFile:
		if name == "softspace" {
			return NewInt(int64(o.file.softspace))
		}
	}
	rt.SetError(AttributeError, "'%s' object has no attribute '%s'",
		o.kind.Name(), name)
	return nil
}

// SetAttr implements attribute write.
func (rt *Runtime) SetAttr(o *Object, name string, v *Object) bool {
	if o.kind != KindInstance {
		rt.SetError(AttributeError, "'%s' object has no settable attributes",
			o.kind.Name())
		return false
	}
	Retain(v)
	if old, ok := o.dict[name]; ok {
		Release(old)
	}
	o.dict[name] = v
	return true
}

// ---------------------------------------------------------------------------
// Call protocol
// ---------------------------------------------------------------------------

// Call implements the generic call protocol. args must be a tuple; kwargs
// may be nil. The result is owned, or nil with an error pending.
//
// Register functions do not accept keyword arguments: the frame builder
// binds positionals and defaults only, so a keyword dict is rejected here
// rather than silently dropped.
func (rt *Runtime) Call(fn, args, kwargs *Object) *Object {
	switch fn.kind {
	case KindNative:
		return rt.NativeCall(fn, args, kwargs)
	case KindFunction:
		if kwargs != nil && DictSize(kwargs) > 0 {
			rt.SetError(TypeError, "%s() does not accept keyword arguments",
				fn.fn.Name)
			return nil
		}
		if rt.EvalFunc == nil {
			rt.SetError(SystemError, "no evaluator installed for register functions")
			return nil
		}
		return rt.EvalFunc(fn, args)
	case KindMethod:
		if kwargs != nil && DictSize(kwargs) > 0 {
			rt.SetError(TypeError, "bound method does not accept keyword arguments")
			return nil
		}
		if rt.EvalFunc == nil {
			rt.SetError(SystemError, "no evaluator installed for register functions")
			return nil
		}
		return rt.EvalFunc(fn, args)
	case KindClass:
		// Instantiation: allocate and run __init__ when present.
		inst := NewInstance(fn)
		if init, ok := fn.class.Methods["__init__"]; ok {
			m := BindMethod(inst, init)
			r := rt.Call(m, args, kwargs)
			Release(m)
			if r == nil {
				Release(inst)
				return nil
			}
			Release(r)
		}
		return inst
	}
	rt.SetError(TypeError, "'%s' object is not callable", fn.kind.Name())
	return nil
}
