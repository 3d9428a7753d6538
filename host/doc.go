// Package host provides the refcounted value world the register machine
// executes against: boxed objects, the numeric/comparison/container/
// attribute/call protocols, iterators, the builtin namespace, and the
// pending-error state. The engine consumes this surface and owns none of
// it.
package host
