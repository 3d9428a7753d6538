package vm

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"

	"github.com/hydrogen18/falcon/host"
)

// ---------------------------------------------------------------------------
// Wire format for compiled artifacts
// ---------------------------------------------------------------------------
//
// Register code travels between the compiler, the code cache and the CLI as
// CBOR blobs. Canonical encoding keeps the blobs deterministic: the same
// code always marshals to the same bytes.

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

const wireVersion = 1

// wireValue is the serialized form of a constant or default value. Only
// the value kinds a compiler can emit as constants are representable.
type wireValue struct {
	Kind  string      `cbor:"k"`
	Int   int64       `cbor:"i,omitempty"`
	Big   string      `cbor:"b,omitempty"`
	Float float64     `cbor:"f,omitempty"`
	Str   string      `cbor:"s,omitempty"`
	Items []wireValue `cbor:"v,omitempty"`
}

type wireCode struct {
	Version      int         `cbor:"version"`
	Name         string      `cbor:"name"`
	Instructions []byte      `cbor:"instructions"`
	Constants    []wireValue `cbor:"constants"`
	Names        []string    `cbor:"names"`
	ArgCount     int         `cbor:"argCount"`
}

type wireFunction struct {
	Version  int         `cbor:"version"`
	Code     wireCode    `cbor:"code"`
	Defaults []wireValue `cbor:"defaults,omitempty"`
}

func encodeValue(v *host.Object) (wireValue, error) {
	switch {
	case v == host.None:
		return wireValue{Kind: "none"}, nil
	case v == host.True:
		return wireValue{Kind: "true"}, nil
	case v == host.False:
		return wireValue{Kind: "false"}, nil
	case host.IntCheckExact(v):
		return wireValue{Kind: "int", Int: host.IntValue(v)}, nil
	case v.Kind() == host.KindBigInt:
		return wireValue{Kind: "big", Big: host.Str(v)}, nil
	case host.FloatCheckExact(v):
		return wireValue{Kind: "float", Float: host.FloatValue(v)}, nil
	case host.StringCheck(v):
		return wireValue{Kind: "str", Str: host.StringValue(v)}, nil
	case host.TupleCheck(v):
		items := make([]wireValue, host.TupleSize(v))
		for i := range items {
			w, err := encodeValue(host.TupleGet(v, i))
			if err != nil {
				return wireValue{}, err
			}
			items[i] = w
		}
		return wireValue{Kind: "tuple", Items: items}, nil
	}
	return wireValue{}, fmt.Errorf("vm: %s constants are not serializable", v.Kind().Name())
}

func decodeValue(w wireValue) (*host.Object, error) {
	switch w.Kind {
	case "none":
		return host.None, nil
	case "true":
		return host.True, nil
	case "false":
		return host.False, nil
	case "int":
		return host.NewInt(w.Int), nil
	case "big":
		z, ok := new(big.Int).SetString(w.Big, 10)
		if !ok {
			return nil, fmt.Errorf("vm: bad big integer constant %q", w.Big)
		}
		return host.NewBigInt(z), nil
	case "float":
		return host.NewFloat(w.Float), nil
	case "str":
		return host.NewString(w.Str), nil
	case "tuple":
		t := host.MakeTuple(len(w.Items))
		for i, item := range w.Items {
			v, err := decodeValue(item)
			if err != nil {
				host.Release(t)
				return nil, err
			}
			host.TupleSet(t, i, v)
		}
		return t, nil
	}
	return nil, fmt.Errorf("vm: unknown constant kind %q", w.Kind)
}

func codeToWire(code *RegisterCode) (wireCode, error) {
	consts := make([]wireValue, len(code.Constants))
	for i, c := range code.Constants {
		w, err := encodeValue(c)
		if err != nil {
			return wireCode{}, err
		}
		consts[i] = w
	}
	return wireCode{
		Version:      wireVersion,
		Name:         code.Name,
		Instructions: code.Instructions,
		Constants:    consts,
		Names:        code.Names,
		ArgCount:     code.ArgCount,
	}, nil
}

func codeFromWire(w wireCode) (*RegisterCode, error) {
	if w.Version != wireVersion {
		return nil, fmt.Errorf("vm: unsupported artifact version %d", w.Version)
	}
	consts := make([]*host.Object, 0, len(w.Constants))
	for _, item := range w.Constants {
		v, err := decodeValue(item)
		if err != nil {
			for _, c := range consts {
				host.Release(c)
			}
			return nil, err
		}
		consts = append(consts, v)
	}
	return NewRegisterCode(w.Name, w.Instructions, consts, w.Names, w.ArgCount)
}

// MarshalCode serializes a RegisterCode to CBOR.
func MarshalCode(code *RegisterCode) ([]byte, error) {
	w, err := codeToWire(code)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(w)
}

// UnmarshalCode deserializes a RegisterCode from CBOR.
func UnmarshalCode(data []byte) (*RegisterCode, error) {
	var w wireCode
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("vm: unmarshal register code: %w", err)
	}
	return codeFromWire(w)
}

// MarshalFunction serializes a register function (code plus defaults) into
// an executable artifact.
func MarshalFunction(fn *host.Function) ([]byte, error) {
	code, ok := fn.Code.(*RegisterCode)
	if !ok || code == nil {
		return nil, fmt.Errorf("vm: %s has no register code to serialize", fn.Name)
	}
	wc, err := codeToWire(code)
	if err != nil {
		return nil, err
	}
	wf := wireFunction{Version: wireVersion, Code: wc}
	for _, d := range fn.Defaults {
		w, err := encodeValue(d)
		if err != nil {
			return nil, err
		}
		wf.Defaults = append(wf.Defaults, w)
	}
	return cborEncMode.Marshal(wf)
}

// UnmarshalFunction deserializes an artifact into a callable function
// object bound to the given globals dict (a fresh one when nil). The
// result is owned.
func UnmarshalFunction(data []byte, globals *host.Object) (*host.Object, error) {
	var wf wireFunction
	if err := cbor.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("vm: unmarshal function artifact: %w", err)
	}
	code, err := codeFromWire(wf.Code)
	if err != nil {
		return nil, err
	}
	defaults := make([]*host.Object, 0, len(wf.Defaults))
	for _, item := range wf.Defaults {
		v, derr := decodeValue(item)
		if derr != nil {
			return nil, derr
		}
		defaults = append(defaults, v)
	}
	if globals == nil {
		globals = host.NewDict()
		defer host.Release(globals)
	}
	fn := host.NewFunction(code.Name, globals, defaults, code)
	// NewFunction retained the defaults; drop the loader's refs.
	for _, d := range defaults {
		host.Release(d)
	}
	return fn, nil
}
