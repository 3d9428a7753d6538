package host

import (
	"fmt"
	"math/big"
)

// ---------------------------------------------------------------------------
// Object: the boxed, refcounted host value
// ---------------------------------------------------------------------------

// Kind discriminates the payload of an Object.
type Kind uint8

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindBigInt
	KindFloat
	KindString
	KindTuple
	KindList
	KindDict
	KindIterator
	KindFunction // register function
	KindMethod   // bound method
	KindNative   // host-native function
	KindClass
	KindInstance
	KindFile
)

var kindNames = map[Kind]string{
	KindNone:     "NoneType",
	KindBool:     "bool",
	KindInt:      "int",
	KindBigInt:   "long",
	KindFloat:    "float",
	KindString:   "str",
	KindTuple:    "tuple",
	KindList:     "list",
	KindDict:     "dict",
	KindIterator: "iterator",
	KindFunction: "function",
	KindMethod:   "instancemethod",
	KindNative:   "builtin_function_or_method",
	KindClass:    "classobj",
	KindInstance: "instance",
	KindFile:     "file",
}

// Name returns the type name used in error messages and repr.
func (k Kind) Name() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind_%d", uint8(k))
}

// Object is a heap-allocated host value. Every strong reference is matched
// by exactly one Release; reaching refcount zero finalizes the payload and
// releases any children. The zero Object is not valid; use the constructors.
type Object struct {
	rc       int32
	immortal bool
	kind     Kind

	ival int64
	fval float64
	sval string
	bval *big.Int

	items []*Object          // tuple / list elements
	dict  map[string]*Object // dict entries, instance attributes

	iter   *iterator
	fn     *Function
	method *boundMethod
	native *Native
	class  *Class
	file   *File
}

// Kind returns the value's kind tag.
func (o *Object) Kind() Kind { return o.kind }

// Retain adds a strong reference. Nil and the immortal singletons are
// accepted and ignored.
func Retain(v *Object) {
	if v == nil || v.immortal {
		return
	}
	v.rc++
}

// Release drops a strong reference, finalizing the value when the count
// reaches zero. Releasing below zero is a refcount-discipline violation and
// panics; the engine's tests rely on this to surface miscounted handlers.
func Release(v *Object) {
	if v == nil || v.immortal {
		return
	}
	v.rc--
	if v.rc == 0 {
		v.finalize()
		return
	}
	if v.rc < 0 {
		panic(fmt.Sprintf("host: release of dead %s object", v.kind.Name()))
	}
}

// RefCount reports the current reference count. Immortals report -1.
func RefCount(v *Object) int32 {
	if v == nil {
		return 0
	}
	if v.immortal {
		return -1
	}
	return v.rc
}

// finalize releases the children of a dying object and clears its payload
// so a stale use trips the dead-object panic in Release.
func (v *Object) finalize() {
	switch v.kind {
	case KindTuple, KindList:
		for _, it := range v.items {
			Release(it)
		}
		v.items = nil
	case KindDict:
		for _, it := range v.dict {
			Release(it)
		}
		v.dict = nil
	case KindIterator:
		Release(v.iter.target)
		v.iter = nil
	case KindMethod:
		Release(v.method.Self)
		Release(v.method.Fn)
		v.method = nil
	case KindFunction:
		for _, d := range v.fn.Defaults {
			Release(d)
		}
		Release(v.fn.Globals)
		v.fn = nil
	case KindInstance:
		for _, it := range v.dict {
			Release(it)
		}
		v.dict = nil
	}
}

// ---------------------------------------------------------------------------
// Singletons
// ---------------------------------------------------------------------------

// None, True and False are immortal: Retain and Release ignore them, so
// fast paths may hand them out borrowed without upsetting the books.
var (
	None  = &Object{immortal: true, kind: KindNone}
	True  = &Object{immortal: true, kind: KindBool, ival: 1}
	False = &Object{immortal: true, kind: KindBool, ival: 0}
)

// Bool returns the canonical singleton for a native bool.
func Bool(b bool) *Object {
	if b {
		return True
	}
	return False
}

// ---------------------------------------------------------------------------
// Constructors: numbers and strings
// ---------------------------------------------------------------------------

// NewInt boxes a native integer. The returned reference is owned.
func NewInt(i int64) *Object {
	return &Object{rc: 1, kind: KindInt, ival: i}
}

// NewBigInt boxes an arbitrary-precision integer, taking ownership of b.
func NewBigInt(b *big.Int) *Object {
	return &Object{rc: 1, kind: KindBigInt, bval: b}
}

// NewFloat boxes a native float.
func NewFloat(f float64) *Object {
	return &Object{rc: 1, kind: KindFloat, fval: f}
}

// NewString boxes a string.
func NewString(s string) *Object {
	return &Object{rc: 1, kind: KindString, sval: s}
}

// IntCheckExact reports whether v is exactly an unboxed integer (big
// integers are not; the specializations must reject them).
func IntCheckExact(v *Object) bool { return v != nil && v.kind == KindInt }

// IntValue returns the native integer payload.
func IntValue(v *Object) int64 { return v.ival }

// FloatCheckExact reports whether v is exactly an unboxed float.
func FloatCheckExact(v *Object) bool { return v != nil && v.kind == KindFloat }

// FloatValue returns the native float payload.
func FloatValue(v *Object) float64 { return v.fval }

// StringCheck reports whether v is a string.
func StringCheck(v *Object) bool { return v != nil && v.kind == KindString }

// StringValue returns the string payload.
func StringValue(v *Object) string { return v.sval }

// ---------------------------------------------------------------------------
// Truthiness
// ---------------------------------------------------------------------------

// IsTruthy applies the host truth protocol.
func IsTruthy(v *Object) bool {
	switch v.kind {
	case KindNone:
		return false
	case KindBool, KindInt:
		return v.ival != 0
	case KindBigInt:
		return v.bval.Sign() != 0
	case KindFloat:
		return v.fval != 0
	case KindString:
		return len(v.sval) != 0
	case KindTuple, KindList:
		return len(v.items) != 0
	case KindDict:
		return len(v.dict) != 0
	default:
		return true
	}
}
