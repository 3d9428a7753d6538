// Package vm implements the Falcon register machine.
//
// This package contains:
//   - Register instruction encoding (RegOp, VarRegOp, BranchOp)
//   - RegisterCode compilation artifacts and their CBOR wire format
//   - Per-invocation register frames with refcounted slots
//   - The dispatch loop with integer and float fast paths
//   - A SQLite-backed cache for compiled artifacts
package vm
