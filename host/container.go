package host

// ---------------------------------------------------------------------------
// Tuples and lists
// ---------------------------------------------------------------------------

// MakeTuple allocates an n-slot tuple with every slot empty. Slots must be
// filled with TupleSet before the tuple is shared.
func MakeTuple(n int) *Object {
	return &Object{rc: 1, kind: KindTuple, items: make([]*Object, n)}
}

// TupleSet installs v into slot i, stealing the caller's reference. It does
// not release a prior occupant; it is only valid on a tuple that is not yet
// shared.
func TupleSet(t *Object, i int, v *Object) {
	t.items[i] = v
}

// TupleGet returns the slot value, borrowed.
func TupleGet(t *Object, i int) *Object { return t.items[i] }

// TupleSize returns the slot count.
func TupleSize(t *Object) int { return len(t.items) }

// TupleCheck reports whether v is a tuple.
func TupleCheck(v *Object) bool { return v != nil && v.kind == KindTuple }

// MakeList allocates an n-slot list. Like MakeTuple, slots are filled by
// stealing references.
func MakeList(n int) *Object {
	return &Object{rc: 1, kind: KindList, items: make([]*Object, n)}
}

// ListSet installs v into slot i, stealing the caller's reference.
func ListSet(l *Object, i int, v *Object) {
	l.items[i] = v
}

// ListGet returns element i, borrowed. The index must already be in range.
func ListGet(l *Object, i int) *Object { return l.items[i] }

// ListSize returns the element count.
func ListSize(l *Object) int { return len(l.items) }

// ListCheck reports whether v is exactly a list.
func ListCheck(v *Object) bool { return v != nil && v.kind == KindList }

// ListAppend appends v, retaining it.
func ListAppend(l, v *Object) {
	Retain(v)
	l.items = append(l.items, v)
}

// NewListFrom builds a list retaining each element.
func NewListFrom(items ...*Object) *Object {
	l := MakeList(len(items))
	for i, it := range items {
		Retain(it)
		l.items[i] = it
	}
	return l
}

// NewTupleFrom builds a tuple retaining each element.
func NewTupleFrom(items ...*Object) *Object {
	t := MakeTuple(len(items))
	for i, it := range items {
		Retain(it)
		t.items[i] = it
	}
	return t
}

// ---------------------------------------------------------------------------
// Subscript protocol
// ---------------------------------------------------------------------------

// seqIndex normalizes a possibly-negative index against length n.
func seqIndex(i int64, n int) (int, bool) {
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, false
	}
	return int(i), true
}

// GetItem implements the subscript-read protocol. The result is owned.
func (rt *Runtime) GetItem(c, k *Object) *Object {
	switch c.kind {
	case KindList, KindTuple:
		n, ok := asBig(k)
		if !ok {
			rt.SetError(TypeError, "%s indices must be integers", c.kind.Name())
			return nil
		}
		if !n.IsInt64() {
			rt.SetError(IndexError, "%s index out of range", c.kind.Name())
			return nil
		}
		i, ok := seqIndex(n.Int64(), len(c.items))
		if !ok {
			rt.SetError(IndexError, "%s index out of range", c.kind.Name())
			return nil
		}
		v := c.items[i]
		Retain(v)
		return v
	case KindString:
		n, ok := asBig(k)
		if !ok || !n.IsInt64() {
			rt.SetError(TypeError, "string indices must be integers")
			return nil
		}
		i, ok := seqIndex(n.Int64(), len(c.sval))
		if !ok {
			rt.SetError(IndexError, "string index out of range")
			return nil
		}
		return NewString(c.sval[i : i+1])
	case KindDict:
		if k.kind != KindString {
			rt.SetError(TypeError, "dict key must be str, not %s", k.kind.Name())
			return nil
		}
		v, ok := c.dict[k.sval]
		if !ok {
			rt.SetError(KeyError, "%s", k.sval)
			return nil
		}
		Retain(v)
		return v
	}
	rt.SetError(TypeError, "'%s' object is not subscriptable", c.kind.Name())
	return nil
}

// SetItem implements the subscript-write protocol.
func (rt *Runtime) SetItem(c, k, v *Object) bool {
	switch c.kind {
	case KindList:
		n, ok := asBig(k)
		if !ok || !n.IsInt64() {
			rt.SetError(TypeError, "list indices must be integers")
			return false
		}
		i, ok := seqIndex(n.Int64(), len(c.items))
		if !ok {
			rt.SetError(IndexError, "list assignment index out of range")
			return false
		}
		Retain(v)
		Release(c.items[i])
		c.items[i] = v
		return true
	case KindDict:
		return rt.DictSetItem(c, k, v)
	}
	rt.SetError(TypeError, "'%s' object does not support item assignment", c.kind.Name())
	return false
}

// GetSlice implements the two-index slice protocol with clamping semantics:
// out-of-range bounds are pinned to the sequence, never an error. lo and hi
// may be nil for an open bound.
func (rt *Runtime) GetSlice(c, lo, hi *Object) *Object {
	var n int
	switch c.kind {
	case KindList, KindTuple:
		n = len(c.items)
	case KindString:
		n = len(c.sval)
	default:
		rt.SetError(TypeError, "'%s' object is unsliceable", c.kind.Name())
		return nil
	}
	start, stop := 0, n
	if lo != nil {
		b, ok := asBig(lo)
		if !ok || !b.IsInt64() {
			rt.SetError(TypeError, "slice indices must be integers")
			return nil
		}
		start = clampIndex(b.Int64(), n)
	}
	if hi != nil {
		b, ok := asBig(hi)
		if !ok || !b.IsInt64() {
			rt.SetError(TypeError, "slice indices must be integers")
			return nil
		}
		stop = clampIndex(b.Int64(), n)
	}
	if stop < start {
		stop = start
	}
	if c.kind == KindString {
		return NewString(c.sval[start:stop])
	}
	out := &Object{rc: 1, kind: c.kind, items: make([]*Object, 0, stop-start)}
	for _, it := range c.items[start:stop] {
		Retain(it)
		out.items = append(out.items, it)
	}
	return out
}

func clampIndex(i int64, n int) int {
	if i < 0 {
		i += int64(n)
	}
	if i < 0 {
		return 0
	}
	if i > int64(n) {
		return n
	}
	return int(i)
}

// ---------------------------------------------------------------------------
// Iterator protocol
// ---------------------------------------------------------------------------

type iterator struct {
	target *Object
	keys   []string // dict iteration order snapshot
	idx    int
}

// GetIter returns an owned iterator over a sequence or dict.
func (rt *Runtime) GetIter(v *Object) *Object {
	switch v.kind {
	case KindList, KindTuple, KindString:
		Retain(v)
		return &Object{rc: 1, kind: KindIterator, iter: &iterator{target: v}}
	case KindDict:
		Retain(v)
		keys := make([]string, 0, len(v.dict))
		for k := range v.dict {
			keys = append(keys, k)
		}
		return &Object{rc: 1, kind: KindIterator, iter: &iterator{target: v, keys: keys}}
	case KindIterator:
		Retain(v)
		return v
	}
	rt.SetError(TypeError, "'%s' object is not iterable", v.kind.Name())
	return nil
}

// IterNext returns the next element, owned, or nil with no pending error on
// exhaustion.
func (rt *Runtime) IterNext(it *Object) *Object {
	if it.kind != KindIterator {
		rt.SetError(TypeError, "'%s' object is not an iterator", it.kind.Name())
		return nil
	}
	s := it.iter
	t := s.target
	switch {
	case s.keys != nil:
		if s.idx >= len(s.keys) {
			return nil
		}
		k := s.keys[s.idx]
		s.idx++
		return NewString(k)
	case t.kind == KindString:
		if s.idx >= len(t.sval) {
			return nil
		}
		c := t.sval[s.idx : s.idx+1]
		s.idx++
		return NewString(c)
	default:
		if s.idx >= len(t.items) {
			return nil
		}
		v := t.items[s.idx]
		s.idx++
		Retain(v)
		return v
	}
}

// Len implements the length protocol.
func (rt *Runtime) Len(v *Object) (int, bool) {
	switch v.kind {
	case KindList, KindTuple:
		return len(v.items), true
	case KindString:
		return len(v.sval), true
	case KindDict:
		return len(v.dict), true
	}
	rt.SetError(TypeError, "object of type '%s' has no len()", v.kind.Name())
	return 0, false
}
