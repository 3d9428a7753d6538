package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/hydrogen18/falcon/host"
)

// ---------------------------------------------------------------------------
// RegisterCode: the compiled artifact
// ---------------------------------------------------------------------------

// RegisterCode is the immutable per-function compilation artifact the
// engine executes. The instruction stream starts with a fixed prelude; the
// first dispatchable opcode lies at PreludeSize. Branch labels are absolute
// byte offsets into Instructions.
type RegisterCode struct {
	Name         string
	Instructions []byte
	Constants    []*host.Object
	Names        []string
	NumRegisters int
	ArgCount     int

	// HasCellVars marks code that references closure cells. The compiler
	// must never deliver such code; execution entry rejects it.
	HasCellVars bool
}

// NewRegisterCode assembles an artifact from a finished instruction stream,
// taking ownership of the constants. NumRegisters is read back from the
// prelude.
func NewRegisterCode(name string, instructions []byte, constants []*host.Object,
	names []string, argCount int) (*RegisterCode, error) {

	if len(instructions) < PreludeSize {
		return nil, fmt.Errorf("vm: instruction stream shorter than prelude")
	}
	if binary.LittleEndian.Uint32(instructions) != preludeMagic {
		return nil, fmt.Errorf("vm: bad instruction stream magic")
	}
	code := &RegisterCode{
		Name:         name,
		Instructions: instructions,
		Constants:    constants,
		Names:        names,
		NumRegisters: int(binary.LittleEndian.Uint16(instructions[4:])),
		ArgCount:     argCount,
	}
	if code.NumRegisters < len(constants)+argCount {
		return nil, fmt.Errorf("vm: %s declares %d registers, needs at least %d",
			name, code.NumRegisters, len(constants)+argCount)
	}
	return code, nil
}
