// Stack based virtual machine.
//
// It is the runtime environment where compiled bytecode gets executed: a
// fetch-decode-execute loop over a flat Instructions buffer, an operand
// stack of tagged value.Value, and a map of global bindings keyed by symbol
// name.
package vm

import (
	"encoding/binary"
	"fmt"
	"math"

	"parens/arena"
	"parens/compiler"
	"parens/value"
)

// maxSteps guards against a runaway program looping forever; it is far
// larger than any program these tests exercise.
const maxSteps = 10_000_000

// VM holds the state of a single bytecode execution: the operand stack, the
// global bindings table, the heap allocator runtime cons cells come from,
// and the instruction pointer.
type VM struct {
	stack   Stack
	globals map[string]value.Value
	heap    arena.Allocator
	ip      int
}

// New returns a VM with an empty global table, backed by a fresh heap
// allocator for runtime-constructed cons cells.
func New() *VM {
	return &VM{globals: make(map[string]value.Value), heap: arena.NewHeap()}
}

// Stack returns the current operand stack contents, bottom to top. Intended
// for tests and the REPL's result printer.
func (vm *VM) Stack() []value.Value {
	return vm.stack.Snapshot()
}

// Run executes bytecode to completion, starting from ip 0 with an empty
// operand stack: values left by a previous Run are popped first, while the
// global table carries over. It returns the first RuntimeError encountered,
// or nil on normal termination (reaching the end of the instruction stream).
// The free list is drained once, on normal termination.
func (vm *VM) Run(bytecode *compiler.Bytecode) error {
	code := bytecode.Instructions
	vm.ip = 0
	steps := 0
	for !vm.stack.IsEmpty() {
		vm.stack.Pop()
	}

	for vm.ip < len(code) {
		steps++
		if steps > maxSteps {
			return RuntimeError{Message: "Exceeded the maximum instruction budget."}
		}

		op := compiler.Opcode(code[vm.ip])
		switch op {
		case compiler.OpNil:
			vm.stack.Push(value.Nil())
			vm.ip++

		case compiler.OpTrue:
			vm.stack.Push(value.Bool(true))
			vm.ip++

		case compiler.OpFalse:
			vm.stack.Push(value.Bool(false))
			vm.ip++

		case compiler.OpF64:
			bits := binary.LittleEndian.Uint64(code[vm.ip+1:])
			vm.stack.Push(value.F64(math.Float64frombits(bits)))
			vm.ip += 9

		case compiler.OpConstant16:
			idx := binary.LittleEndian.Uint16(code[vm.ip+1:])
			if int(idx) >= len(bytecode.ConstantsPool) {
				return RuntimeError{Message: "Constant pool index out of range."}
			}
			vm.stack.Push(bytecode.ConstantsPool[idx])
			vm.ip += 3

		case compiler.OpBuiltinFn:
			opByte := code[vm.ip+1]
			if opByte > byte(value.OpPrint) {
				return RuntimeError{Message: "Unexpected builtin operator."}
			}
			vm.stack.Push(value.Op(value.Operator(opByte)))
			vm.ip += 2

		case compiler.OpGlobal:
			idx := binary.LittleEndian.Uint16(code[vm.ip+1:])
			sym, err := vm.symbolName(bytecode, idx)
			if err != nil {
				return err
			}
			v, ok := vm.globals[sym]
			if !ok {
				v = value.Nil()
			}
			vm.stack.Push(v)
			vm.ip += 3

		case compiler.OpSetGlobal:
			idx := binary.LittleEndian.Uint16(code[vm.ip+1:])
			sym, err := vm.symbolName(bytecode, idx)
			if err != nil {
				return err
			}
			v, ok := vm.stack.Peek()
			if !ok {
				return RuntimeError{Message: "Stack underflow on SetGlobal."}
			}
			vm.globals[sym] = v
			vm.ip += 3

		case compiler.OpAdd, compiler.OpSub, compiler.OpMul, compiler.OpDiv:
			if err := vm.binaryArith(op); err != nil {
				return err
			}
			vm.ip++

		case compiler.OpNegate:
			top, ok := vm.stack.Pop()
			if !ok || top.Kind != value.KindF64 {
				return RuntimeError{Message: "Expected F64 values."}
			}
			vm.stack.Push(value.F64(-top.F64))
			vm.ip++

		case compiler.OpConsCell:
			// The generator emits tail before head, so the VM's operand
			// stack holds [..., tail, head] — the first pop recovers head,
			// the second recovers tail.
			head, ok1 := vm.stack.Pop()
			tail, ok2 := vm.stack.Pop()
			if !ok1 || !ok2 {
				return RuntimeError{Message: "Stack underflow on ConsCell."}
			}
			obj := value.NewConsIn(vm.heap, head, tail)
			vm.stack.Push(value.Obj(obj))
			vm.ip++

		case compiler.OpFunctionCall:
			return RuntimeError{Message: "FunctionCall of a non-builtin head is not supported."}

		case compiler.OpJump:
			target := binary.LittleEndian.Uint16(code[vm.ip+1:])
			vm.ip = int(target)

		case compiler.OpJumpIfTrue:
			top, ok := vm.stack.Pop()
			if !ok {
				return RuntimeError{Message: "Stack underflow on JumpIfTrue."}
			}
			target := binary.LittleEndian.Uint16(code[vm.ip+1:])
			if top.IsTruthy() {
				vm.ip = int(target)
			} else {
				vm.ip += 3
			}

		case compiler.OpJumpIfFalse:
			top, ok := vm.stack.Pop()
			if !ok {
				return RuntimeError{Message: "Stack underflow on JumpIfFalse."}
			}
			target := binary.LittleEndian.Uint16(code[vm.ip+1:])
			if !top.IsTruthy() {
				vm.ip = int(target)
			} else {
				vm.ip += 3
			}

		case compiler.OpPop:
			if _, ok := vm.stack.Pop(); !ok {
				return RuntimeError{Message: "Stack underflow on Pop."}
			}
			vm.ip++

		case compiler.OpPrint:
			top, ok := vm.stack.Pop()
			if !ok {
				return RuntimeError{Message: "Stack underflow on Print."}
			}
			fmt.Println(top.String())
			vm.stack.Push(value.Nil())
			vm.ip++

		default:
			return RuntimeError{Message: fmt.Sprintf("Unknown opcode %d at ip %d.", op, vm.ip)}
		}
	}

	vm.stack.drainFreeList()
	return nil
}

// binaryArith implements Add/Sub/Mul/Div. The generator emits operands
// tail-before-head, so the first pop recovers the *later* source operand:
// for "(- 1 2)" the stack holds [2, 1] and the VM pops 1 then 2, computing
// 1 - 2.
func (vm *VM) binaryArith(op compiler.Opcode) error {
	first, ok1 := vm.stack.Pop()
	second, ok2 := vm.stack.Pop()
	if !ok1 || !ok2 || first.Kind != value.KindF64 || second.Kind != value.KindF64 {
		return RuntimeError{Message: "Expected F64 values."}
	}

	var result float64
	switch op {
	case compiler.OpAdd:
		result = first.F64 + second.F64
	case compiler.OpSub:
		result = first.F64 - second.F64
	case compiler.OpMul:
		result = first.F64 * second.F64
	case compiler.OpDiv:
		// IEEE-754 division by zero: ±Inf or NaN, not an error.
		result = first.F64 / second.F64
	}
	vm.stack.Push(value.F64(result))
	return nil
}

func (vm *VM) symbolName(bytecode *compiler.Bytecode, idx uint16) (string, error) {
	if int(idx) >= len(bytecode.ConstantsPool) {
		return "", RuntimeError{Message: "Constant pool index out of range."}
	}
	v := bytecode.ConstantsPool[idx]
	if v.Kind != value.KindObject || v.Object == nil || v.Object.Kind != value.ObjSymbol {
		return "", RuntimeError{Message: "Expected a symbol constant for global access."}
	}
	return v.Object.Str, nil
}
