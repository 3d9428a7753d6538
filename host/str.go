package host

import (
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// String conversion
// ---------------------------------------------------------------------------

// Str renders the informal string form of a value.
func Str(v *Object) string {
	if v.kind == KindString {
		return v.sval
	}
	return render(v, false)
}

// Repr renders the formal string form of a value.
func Repr(v *Object) string {
	return render(v, true)
}

func render(v *Object, formal bool) string {
	switch v.kind {
	case KindNone:
		return "None"
	case KindBool:
		if v.ival != 0 {
			return "True"
		}
		return "False"
	case KindInt:
		return strconv.FormatInt(v.ival, 10)
	case KindBigInt:
		if formal {
			return v.bval.String() + "L"
		}
		return v.bval.String()
	case KindFloat:
		s := strconv.FormatFloat(v.fval, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eIN") {
			s += ".0"
		}
		return s
	case KindString:
		return quoteString(v.sval)
	case KindTuple:
		parts := make([]string, len(v.items))
		for i, it := range v.items {
			parts[i] = render(it, true)
		}
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindList:
		parts := make([]string, len(v.items))
		for i, it := range v.items {
			parts[i] = render(it, true)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindDict:
		keys := make([]string, 0, len(v.dict))
		for k := range v.dict {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = quoteString(k) + ": " + render(v.dict[k], true)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindFunction:
		return "<function " + v.fn.Name + ">"
	case KindNative:
		return "<built-in function " + v.native.Name + ">"
	case KindMethod:
		return "<bound method " + render(v.method.Fn, false) + ">"
	case KindClass:
		return "<class " + v.class.Name + ">"
	case KindInstance:
		return "<" + v.class.Name + " instance>"
	case KindFile:
		return "<open file>"
	case KindIterator:
		return "<iterator>"
	}
	return "<unknown>"
}

var stringEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"'", "\\'",
	"\n", "\\n",
	"\t", "\\t",
	"\r", "\\r",
)

func quoteString(s string) string {
	return "'" + stringEscaper.Replace(s) + "'"
}
