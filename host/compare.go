package host

// Comparison sub-ops, numbered as the compiler encodes them in the
// COMPARE_OP argument.
const (
	CmpLT    = 0
	CmpLE    = 1
	CmpEQ    = 2
	CmpNE    = 3
	CmpGT    = 4
	CmpGE    = 5
	CmpIs    = 8
	CmpIsNot = 9
)

// RichCompare applies a comparison sub-op and returns a canonical boolean,
// or nil with an error pending.
func (rt *Runtime) RichCompare(a, b *Object, op int) *Object {
	switch op {
	case CmpIs:
		return Bool(a == b)
	case CmpIsNot:
		return Bool(a != b)
	}
	c, ok := compare3(a, b)
	if !ok {
		// Unordered values still answer equality by identity.
		switch op {
		case CmpEQ:
			return Bool(a == b)
		case CmpNE:
			return Bool(a != b)
		}
		rt.SetError(TypeError, "cannot compare '%s' and '%s'",
			a.kind.Name(), b.kind.Name())
		return nil
	}
	switch op {
	case CmpLT:
		return Bool(c < 0)
	case CmpLE:
		return Bool(c <= 0)
	case CmpEQ:
		return Bool(c == 0)
	case CmpNE:
		return Bool(c != 0)
	case CmpGT:
		return Bool(c > 0)
	case CmpGE:
		return Bool(c >= 0)
	}
	rt.SetError(SystemError, "bad comparison op %d", op)
	return nil
}

// compare3 produces a three-way ordering for comparable kinds.
func compare3(a, b *Object) (int, bool) {
	// numbers compare across representations
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			if bothIntegral(a, b) {
				x, _ := asBig(a)
				y, _ := asBig(b)
				return x.Cmp(y), true
			}
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
	}
	if a.kind != b.kind {
		return 0, false
	}
	switch a.kind {
	case KindNone:
		return 0, true
	case KindString:
		switch {
		case a.sval < b.sval:
			return -1, true
		case a.sval > b.sval:
			return 1, true
		}
		return 0, true
	case KindBigInt:
		return a.bval.Cmp(b.bval), true
	case KindTuple, KindList:
		n := len(a.items)
		if len(b.items) < n {
			n = len(b.items)
		}
		for i := 0; i < n; i++ {
			c, ok := compare3(a.items[i], b.items[i])
			if !ok {
				return 0, false
			}
			if c != 0 {
				return c, true
			}
		}
		switch {
		case len(a.items) < len(b.items):
			return -1, true
		case len(a.items) > len(b.items):
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
