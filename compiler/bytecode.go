package compiler

import (
	"encoding/binary"
	"fmt"
	"math"

	"parens/value"
)

// Opcode is a single-byte instruction tag.
type Opcode byte

// Instructions is the linear byte buffer the VM executes, program-counter
// order, left to right.
type Instructions []byte

const (
	OpNil Opcode = iota
	OpTrue
	OpFalse
	OpF64
	OpConstant16
	OpBuiltinFn
	OpGlobal
	OpSetGlobal
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNegate
	OpFunctionCall
	OpConsCell
	OpJumpIfTrue
	OpJumpIfFalse
	OpJump
	OpPop
	OpPrint
)

// OpCodeDefinition names an opcode and the byte width of each of its inline
// operands, in order.
type OpCodeDefinition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*OpCodeDefinition{
	OpNil:          {Name: "Nil", OperandWidths: nil},
	OpTrue:         {Name: "True", OperandWidths: nil},
	OpFalse:        {Name: "False", OperandWidths: nil},
	OpF64:          {Name: "F64", OperandWidths: []int{8}},
	OpConstant16:   {Name: "Constant16", OperandWidths: []int{2}},
	OpBuiltinFn:    {Name: "BuiltinFn", OperandWidths: []int{1}},
	OpGlobal:       {Name: "Global", OperandWidths: []int{2}},
	OpSetGlobal:    {Name: "SetGlobal", OperandWidths: []int{2}},
	OpAdd:          {Name: "Add", OperandWidths: nil},
	OpSub:          {Name: "Sub", OperandWidths: nil},
	OpMul:          {Name: "Mul", OperandWidths: nil},
	OpDiv:          {Name: "Div", OperandWidths: nil},
	OpNegate:       {Name: "Negate", OperandWidths: nil},
	OpFunctionCall: {Name: "FunctionCall", OperandWidths: nil},
	OpConsCell:     {Name: "ConsCell", OperandWidths: nil},
	OpJumpIfTrue:   {Name: "JumpIfTrue", OperandWidths: []int{2}},
	OpJumpIfFalse:  {Name: "JumpIfFalse", OperandWidths: []int{2}},
	OpJump:         {Name: "Jump", OperandWidths: []int{2}},
	OpPop:          {Name: "Pop", OperandWidths: nil},
	OpPrint:        {Name: "Print", OperandWidths: nil},
}

// Get looks up an opcode's definition.
func Get(op Opcode) (*OpCodeDefinition, error) {
	def, ok := definitions[op]
	if !ok {
		return nil, fmt.Errorf("opcode: '%d' undefined", op)
	}
	return def, nil
}

func (op Opcode) size() int {
	def := definitions[op]
	total := 1
	for _, w := range def.OperandWidths {
		total += w
	}
	return total
}

// Bytecode is the compiled program handed to the VM: the instruction stream
// plus the pool of non-inline constant values (symbol and string objects)
// referenced by Constant16, Global and SetGlobal.
type Bytecode struct {
	Instructions  Instructions
	ConstantsPool []value.Value
}

// Assemble encodes a single instruction: the opcode byte followed by each
// operand written little-endian, regardless of host byte order — the same
// guarantee encoding/binary.LittleEndian always provides, so no separate
// host-endianness probe is needed to get it.
func Assemble(op Opcode, operands ...uint64) ([]byte, error) {
	def, err := Get(op)
	if err != nil {
		return nil, DeveloperError{Message: err.Error()}
	}
	if len(operands) != len(def.OperandWidths) {
		return nil, DeveloperError{Message: fmt.Sprintf("%s expects %d operand(s), got %d", def.Name, len(def.OperandWidths), len(operands))}
	}

	buf := make([]byte, op.size())
	buf[0] = byte(op)
	offset := 1
	for i, width := range def.OperandWidths {
		switch width {
		case 1:
			buf[offset] = byte(operands[i])
		case 2:
			binary.LittleEndian.PutUint16(buf[offset:], uint16(operands[i]))
		case 8:
			binary.LittleEndian.PutUint64(buf[offset:], operands[i])
		}
		offset += width
	}
	return buf, nil
}

// AssembleF64 encodes an `F64` instruction carrying f's IEEE-754 bit pattern.
func AssembleF64(f float64) []byte {
	instr, _ := Assemble(OpF64, math.Float64bits(f))
	return instr
}

// Diassemble renders the single instruction starting at ip as human-readable
// text, returning the instruction's total width in bytes (opcode plus
// operands).
func Diassemble(code Instructions, ip int) (string, int, error) {
	op := Opcode(code[ip])
	def, err := Get(op)
	if err != nil {
		return "", 0, DeveloperError{Message: err.Error()}
	}

	if len(def.OperandWidths) == 0 {
		return def.Name, 1, nil
	}

	offset := ip + 1
	switch op {
	case OpF64:
		bits := binary.LittleEndian.Uint64(code[offset:])
		return fmt.Sprintf("%s %g", def.Name, math.Float64frombits(bits)), op.size(), nil
	case OpBuiltinFn:
		return fmt.Sprintf("%s %s", def.Name, value.Operator(code[offset]).String()), op.size(), nil
	case OpConstant16, OpGlobal, OpSetGlobal, OpJumpIfTrue, OpJumpIfFalse, OpJump:
		idx := binary.LittleEndian.Uint16(code[offset:])
		return fmt.Sprintf("%s %d", def.Name, idx), op.size(), nil
	default:
		return def.Name, op.size(), nil
	}
}

// DiassembleAll renders every instruction in code, one per line.
func DiassembleAll(code Instructions) (string, error) {
	var out string
	ip := 0
	for ip < len(code) {
		text, size, err := Diassemble(code, ip)
		if err != nil {
			return "", err
		}
		out += fmt.Sprintf("%04d %s\n", ip, text)
		ip += size
	}
	return out, nil
}

// rewriteBuiltinFn overwrites the last emitted `BuiltinFn <op>` instruction
// (2 bytes) in place with the single-byte direct opcode for that operator,
// saving a byte and avoiding putting the operator value on the stack at all.
// It reports whether a rewrite happened.
func rewriteBuiltinFn(code Instructions) (Instructions, bool) {
	if len(code) < 2 {
		return code, false
	}
	if Opcode(code[len(code)-2]) != OpBuiltinFn {
		return code, false
	}
	op := value.Operator(code[len(code)-1])
	var direct Opcode
	switch op {
	case value.OpAdd:
		direct = OpAdd
	case value.OpSub:
		direct = OpSub
	case value.OpMul:
		direct = OpMul
	case value.OpDiv:
		direct = OpDiv
	case value.OpPrint:
		direct = OpPrint
	default:
		return code, false
	}
	return append(code[:len(code)-2], byte(direct)), true
}
