package vm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode is a single register-machine opcode. The numbering matches the
// host bytecode's opcode bytes so translated code keeps its familiar
// disassembly, plus the two refcount pseudo-ops appended past the host set.
type Opcode byte

// Unary operators
const (
	OpUnaryPositive Opcode = 10
	OpUnaryNegative Opcode = 11
	OpUnaryNot      Opcode = 12
	OpUnaryConvert  Opcode = 13
	OpUnaryInvert   Opcode = 15
)

// Binary operators
const (
	OpBinaryPower       Opcode = 19
	OpBinaryMultiply    Opcode = 20
	OpBinaryDivide      Opcode = 21
	OpBinaryModulo      Opcode = 22
	OpBinaryAdd         Opcode = 23
	OpBinarySubtract    Opcode = 24
	OpBinarySubscr      Opcode = 25
	OpBinaryFloorDivide Opcode = 26
	OpBinaryTrueDivide  Opcode = 27
	OpBinaryLshift      Opcode = 62
	OpBinaryRshift      Opcode = 63
	OpBinaryAnd         Opcode = 64
	OpBinaryXor         Opcode = 65
	OpBinaryOr          Opcode = 66
)

// In-place binary operators
const (
	OpInplaceFloorDivide Opcode = 28
	OpInplaceTrueDivide  Opcode = 29
	OpInplaceAdd         Opcode = 55
	OpInplaceSubtract    Opcode = 56
	OpInplaceMultiply    Opcode = 57
	OpInplaceDivide      Opcode = 58
	OpInplaceModulo      Opcode = 59
	OpInplacePower       Opcode = 67
	OpInplaceLshift      Opcode = 75
	OpInplaceRshift      Opcode = 76
	OpInplaceAnd         Opcode = 77
	OpInplaceXor         Opcode = 78
	OpInplaceOr          Opcode = 79
)

// Slicing and subscript stores
const (
	OpSlice0      Opcode = 30 // SLICE+0 .. SLICE+3 share one handler;
	OpSlice1      Opcode = 31 // absent bounds carry BadRegister
	OpSlice2      Opcode = 32
	OpSlice3      Opcode = 33
	OpStoreSubscr Opcode = 60
)

// Iteration
const (
	OpGetIter Opcode = 68
	OpForIter Opcode = 93
)

// Print statement
const (
	OpPrintItem      Opcode = 71
	OpPrintNewline   Opcode = 72
	OpPrintItemTo    Opcode = 73
	OpPrintNewlineTo Opcode = 74
)

// Loads and stores
const (
	OpLoadLocals Opcode = 82
	OpStoreName  Opcode = 90
	OpStoreAttr  Opcode = 95
	OpLoadName   Opcode = 101
	OpLoadAttr   Opcode = 106
	OpLoadGlobal Opcode = 116
	OpLoadFast   Opcode = 124
	OpStoreFast  Opcode = 125
)

// Control flow and calls
const (
	OpReturnValue       Opcode = 83
	OpListAppend        Opcode = 94
	OpBuildTuple        Opcode = 102
	OpBuildList         Opcode = 103
	OpCompareOp         Opcode = 107
	OpJumpIfFalseOrPop  Opcode = 111
	OpJumpIfTrueOrPop   Opcode = 112
	OpJumpAbsolute      Opcode = 113
	OpPopJumpIfFalse    Opcode = 114
	OpPopJumpIfTrue     Opcode = 115
	OpCallFunction      Opcode = 131
	OpCallFunctionVar   Opcode = 140
	OpCallFunctionKw    Opcode = 141
	OpCallFunctionVarKw Opcode = 142
)

// Refcount pseudo-ops, emitted by the compiler to balance ownership across
// control-flow merges. They have no host-bytecode analog.
const (
	OpIncref Opcode = 148
	OpDecref Opcode = 149
)

// BadRegister marks an unused register field.
const BadRegister uint16 = 0xFFFF

// ---------------------------------------------------------------------------
// Instruction shapes
// ---------------------------------------------------------------------------

// Shape selects the wire layout of an instruction.
type Shape uint8

const (
	ShapeNone   Shape = iota // unsupported opcode; never decoded
	ShapeReg                 // opcode u8, arg u16, four u16 registers
	ShapeVarReg              // opcode u8, arg u16, count u8, count u16 registers
	ShapeBranch              // opcode u8, two u16 registers, label u32
)

// Encoded sizes. VarReg instructions add two bytes per register.
const (
	regOpSize    = 11
	varRegOpBase = 4
	branchOpSize = 9
	preludeMagic = 0x46414C43 // "FALC"
	PreludeSize  = 8          // magic u32, num_registers u16, reserved u16
)

// opcodeInfo describes one opcode for the decoder and the disassembler.
type opcodeInfo struct {
	name  string
	shape Shape
}

var opcodeTable = map[Opcode]opcodeInfo{
	OpUnaryPositive: {"UNARY_POSITIVE", ShapeReg},
	OpUnaryNegative: {"UNARY_NEGATIVE", ShapeReg},
	OpUnaryNot:      {"UNARY_NOT", ShapeReg},
	OpUnaryConvert:  {"UNARY_CONVERT", ShapeReg},
	OpUnaryInvert:   {"UNARY_INVERT", ShapeReg},

	OpBinaryPower:       {"BINARY_POWER", ShapeReg},
	OpBinaryMultiply:    {"BINARY_MULTIPLY", ShapeReg},
	OpBinaryDivide:      {"BINARY_DIVIDE", ShapeReg},
	OpBinaryModulo:      {"BINARY_MODULO", ShapeReg},
	OpBinaryAdd:         {"BINARY_ADD", ShapeReg},
	OpBinarySubtract:    {"BINARY_SUBTRACT", ShapeReg},
	OpBinarySubscr:      {"BINARY_SUBSCR", ShapeReg},
	OpBinaryFloorDivide: {"BINARY_FLOOR_DIVIDE", ShapeReg},
	OpBinaryTrueDivide:  {"BINARY_TRUE_DIVIDE", ShapeReg},
	OpBinaryLshift:      {"BINARY_LSHIFT", ShapeReg},
	OpBinaryRshift:      {"BINARY_RSHIFT", ShapeReg},
	OpBinaryAnd:         {"BINARY_AND", ShapeReg},
	OpBinaryXor:         {"BINARY_XOR", ShapeReg},
	OpBinaryOr:          {"BINARY_OR", ShapeReg},

	OpInplaceFloorDivide: {"INPLACE_FLOOR_DIVIDE", ShapeReg},
	OpInplaceTrueDivide:  {"INPLACE_TRUE_DIVIDE", ShapeReg},
	OpInplaceAdd:         {"INPLACE_ADD", ShapeReg},
	OpInplaceSubtract:    {"INPLACE_SUBTRACT", ShapeReg},
	OpInplaceMultiply:    {"INPLACE_MULTIPLY", ShapeReg},
	OpInplaceDivide:      {"INPLACE_DIVIDE", ShapeReg},
	OpInplaceModulo:      {"INPLACE_MODULO", ShapeReg},
	OpInplacePower:       {"INPLACE_POWER", ShapeReg},
	OpInplaceLshift:      {"INPLACE_LSHIFT", ShapeReg},
	OpInplaceRshift:      {"INPLACE_RSHIFT", ShapeReg},
	OpInplaceAnd:         {"INPLACE_AND", ShapeReg},
	OpInplaceXor:         {"INPLACE_XOR", ShapeReg},
	OpInplaceOr:          {"INPLACE_OR", ShapeReg},

	OpSlice0:      {"SLICE+0", ShapeReg},
	OpSlice1:      {"SLICE+1", ShapeReg},
	OpSlice2:      {"SLICE+2", ShapeReg},
	OpSlice3:      {"SLICE+3", ShapeReg},
	OpStoreSubscr: {"STORE_SUBSCR", ShapeReg},

	OpGetIter: {"GET_ITER", ShapeReg},
	OpForIter: {"FOR_ITER", ShapeBranch},

	OpPrintItem:      {"PRINT_ITEM", ShapeReg},
	OpPrintNewline:   {"PRINT_NEWLINE", ShapeReg},
	OpPrintItemTo:    {"PRINT_ITEM_TO", ShapeReg},
	OpPrintNewlineTo: {"PRINT_NEWLINE_TO", ShapeReg},

	OpLoadLocals: {"LOAD_LOCALS", ShapeReg},
	OpStoreName:  {"STORE_NAME", ShapeReg},
	OpStoreAttr:  {"STORE_ATTR", ShapeReg},
	OpLoadName:   {"LOAD_NAME", ShapeReg},
	OpLoadAttr:   {"LOAD_ATTR", ShapeReg},
	OpLoadGlobal: {"LOAD_GLOBAL", ShapeReg},
	OpLoadFast:   {"LOAD_FAST", ShapeReg},
	OpStoreFast:  {"STORE_FAST", ShapeReg},

	OpReturnValue:       {"RETURN_VALUE", ShapeReg},
	OpListAppend:        {"LIST_APPEND", ShapeReg},
	OpBuildTuple:        {"BUILD_TUPLE", ShapeVarReg},
	OpBuildList:         {"BUILD_LIST", ShapeVarReg},
	OpCompareOp:         {"COMPARE_OP", ShapeReg},
	OpJumpIfFalseOrPop:  {"JUMP_IF_FALSE_OR_POP", ShapeBranch},
	OpJumpIfTrueOrPop:   {"JUMP_IF_TRUE_OR_POP", ShapeBranch},
	OpJumpAbsolute:      {"JUMP_ABSOLUTE", ShapeBranch},
	OpPopJumpIfFalse:    {"POP_JUMP_IF_FALSE", ShapeBranch},
	OpPopJumpIfTrue:     {"POP_JUMP_IF_TRUE", ShapeBranch},
	OpCallFunction:      {"CALL_FUNCTION", ShapeVarReg},
	OpCallFunctionVar:   {"CALL_FUNCTION_VAR", ShapeVarReg},
	OpCallFunctionKw:    {"CALL_FUNCTION_KW", ShapeVarReg},
	OpCallFunctionVarKw: {"CALL_FUNCTION_VAR_KW", ShapeVarReg},

	OpIncref: {"INCREF", ShapeReg},
	OpDecref: {"DECREF", ShapeReg},
}

// rejectedNames labels the host opcodes the engine refuses, for the BAD_OP
// error message. Anything absent from both tables reports its byte value.
var rejectedNames = map[Opcode]string{
	0: "STOP_CODE", 1: "POP_TOP", 2: "ROT_TWO", 3: "ROT_THREE", 4: "DUP_TOP",
	5: "ROT_FOUR", 9: "NOP", 40: "STORE_SLICE", 50: "DELETE_SLICE",
	54: "STORE_MAP", 61: "DELETE_SUBSCR", 70: "PRINT_EXPR", 80: "BREAK_LOOP",
	81: "WITH_CLEANUP", 84: "IMPORT_STAR", 85: "EXEC_STMT", 86: "YIELD_VALUE",
	87: "POP_BLOCK", 88: "END_FINALLY", 89: "BUILD_CLASS", 91: "DELETE_NAME",
	92: "UNPACK_SEQUENCE", 96: "DELETE_ATTR", 97: "STORE_GLOBAL",
	98: "DELETE_GLOBAL", 99: "DUP_TOPX", 100: "LOAD_CONST", 104: "BUILD_SET",
	105: "BUILD_MAP", 108: "IMPORT_NAME", 109: "IMPORT_FROM",
	110: "JUMP_FORWARD", 119: "CONTINUE_LOOP", 120: "SETUP_LOOP",
	121: "SETUP_EXCEPT", 122: "SETUP_FINALLY", 126: "DELETE_FAST",
	130: "RAISE_VARARGS", 132: "MAKE_FUNCTION", 133: "BUILD_SLICE",
	134: "MAKE_CLOSURE", 135: "LOAD_CLOSURE", 136: "LOAD_DEREF",
	137: "STORE_DEREF", 143: "SETUP_WITH", 145: "EXTENDED_ARG",
	146: "SET_ADD", 147: "MAP_ADD",
}

// Name returns the opcode's mnemonic.
func (op Opcode) Name() string {
	if info, ok := opcodeTable[op]; ok {
		return info.name
	}
	if n, ok := rejectedNames[op]; ok {
		return n
	}
	return fmt.Sprintf("OPCODE_%02X", byte(op))
}

// ShapeOf returns the opcode's instruction shape. ShapeNone means the
// opcode is not part of the register machine.
func (op Opcode) ShapeOf() Shape {
	return opcodeTable[op].shape
}

// String implements Stringer.
func (op Opcode) String() string { return op.Name() }

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// RegOp is a decoded fixed-shape instruction.
type RegOp struct {
	Arg  uint16
	Reg1 uint16
	Reg2 uint16
	Reg3 uint16
	Reg4 uint16
}

// VarRegOp is a decoded variable-shape instruction.
type VarRegOp struct {
	Arg  uint16
	Regs []uint16
}

// BranchOp is a decoded branch instruction. Label is an absolute byte
// offset into the instruction stream, past the prelude.
type BranchOp struct {
	Reg1  uint16
	Reg2  uint16
	Label uint32
}

func decodeRegOp(code []byte, pc int) RegOp {
	return RegOp{
		Arg:  binary.LittleEndian.Uint16(code[pc+1:]),
		Reg1: binary.LittleEndian.Uint16(code[pc+3:]),
		Reg2: binary.LittleEndian.Uint16(code[pc+5:]),
		Reg3: binary.LittleEndian.Uint16(code[pc+7:]),
		Reg4: binary.LittleEndian.Uint16(code[pc+9:]),
	}
}

func decodeVarRegOp(code []byte, pc int) VarRegOp {
	n := int(code[pc+3])
	regs := make([]uint16, n)
	for i := 0; i < n; i++ {
		regs[i] = binary.LittleEndian.Uint16(code[pc+varRegOpBase+2*i:])
	}
	return VarRegOp{
		Arg:  binary.LittleEndian.Uint16(code[pc+1:]),
		Regs: regs,
	}
}

func decodeBranchOp(code []byte, pc int) BranchOp {
	return BranchOp{
		Reg1:  binary.LittleEndian.Uint16(code[pc+1:]),
		Reg2:  binary.LittleEndian.Uint16(code[pc+3:]),
		Label: binary.LittleEndian.Uint32(code[pc+5:]),
	}
}

// InstrSize returns the encoded byte length of the instruction at pc.
func InstrSize(code []byte, pc int) int {
	switch Opcode(code[pc]).ShapeOf() {
	case ShapeReg:
		return regOpSize
	case ShapeVarReg:
		return varRegOpBase + 2*int(code[pc+3])
	case ShapeBranch:
		return branchOpSize
	}
	return 1
}

// ---------------------------------------------------------------------------
// CodeBuilder: instruction-stream assembler
// ---------------------------------------------------------------------------

// CodeBuilder assembles a register instruction stream, prelude included.
// The compiler and the tests both build code through it.
type CodeBuilder struct {
	buf []byte
}

// NewCodeBuilder starts a stream with an unfilled prelude.
func NewCodeBuilder() *CodeBuilder {
	b := &CodeBuilder{buf: make([]byte, PreludeSize, 128)}
	binary.LittleEndian.PutUint32(b.buf, preludeMagic)
	return b
}

// Pos returns the current emit offset; branch labels use these values.
func (b *CodeBuilder) Pos() uint32 { return uint32(len(b.buf)) }

// EmitReg appends a fixed-shape instruction. Unused registers take
// BadRegister.
func (b *CodeBuilder) EmitReg(op Opcode, arg uint16, regs ...uint16) {
	var r [4]uint16
	for i := range r {
		r[i] = BadRegister
	}
	copy(r[:], regs)
	b.buf = append(b.buf, byte(op))
	b.buf = binary.LittleEndian.AppendUint16(b.buf, arg)
	for _, v := range r {
		b.buf = binary.LittleEndian.AppendUint16(b.buf, v)
	}
}

// EmitVarReg appends a variable-shape instruction.
func (b *CodeBuilder) EmitVarReg(op Opcode, arg uint16, regs ...uint16) {
	b.buf = append(b.buf, byte(op))
	b.buf = binary.LittleEndian.AppendUint16(b.buf, arg)
	b.buf = append(b.buf, byte(len(regs)))
	for _, v := range regs {
		b.buf = binary.LittleEndian.AppendUint16(b.buf, v)
	}
}

// EmitBranch appends a branch instruction and returns the offset of its
// label field for later patching.
func (b *CodeBuilder) EmitBranch(op Opcode, reg1, reg2 uint16, label uint32) int {
	b.buf = append(b.buf, byte(op))
	b.buf = binary.LittleEndian.AppendUint16(b.buf, reg1)
	b.buf = binary.LittleEndian.AppendUint16(b.buf, reg2)
	at := len(b.buf)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, label)
	return at
}

// PatchLabel rewrites a branch label previously emitted with EmitBranch.
func (b *CodeBuilder) PatchLabel(at int, label uint32) {
	binary.LittleEndian.PutUint32(b.buf[at:], label)
}

// Finish writes the prelude header and returns the instruction stream.
func (b *CodeBuilder) Finish(numRegisters int) []byte {
	binary.LittleEndian.PutUint16(b.buf[4:], uint16(numRegisters))
	return b.buf
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// Disassemble renders an instruction stream for diagnostics.
func Disassemble(code *RegisterCode) string {
	var sb strings.Builder
	ins := code.Instructions
	pc := PreludeSize
	for pc < len(ins) {
		op := Opcode(ins[pc])
		fmt.Fprintf(&sb, "%5d  %-22s", pc, op.Name())
		switch op.ShapeOf() {
		case ShapeReg:
			d := decodeRegOp(ins, pc)
			fmt.Fprintf(&sb, " arg=%d", d.Arg)
			for _, r := range []uint16{d.Reg1, d.Reg2, d.Reg3, d.Reg4} {
				if r != BadRegister {
					fmt.Fprintf(&sb, " r%d", r)
				}
			}
		case ShapeVarReg:
			d := decodeVarRegOp(ins, pc)
			fmt.Fprintf(&sb, " arg=%d regs=%v", d.Arg, d.Regs)
		case ShapeBranch:
			d := decodeBranchOp(ins, pc)
			for _, r := range []uint16{d.Reg1, d.Reg2} {
				if r != BadRegister {
					fmt.Fprintf(&sb, " r%d", r)
				}
			}
			fmt.Fprintf(&sb, " -> %d", d.Label)
		default:
			sb.WriteString(" <unsupported>\n")
			return sb.String()
		}
		sb.WriteByte('\n')
		pc += InstrSize(ins, pc)
	}
	return sb.String()
}
