package vm

import (
	"math"
	"testing"

	"parens/arena"
	"parens/compiler"
	"parens/lexer"
	"parens/parser"
	"parens/value"
)

func compileOnly(t *testing.T, src string) *compiler.Bytecode {
	t.Helper()
	a := arena.NewBump(4096, 4)
	p := parser.Make(lexer.Scan(src), a)
	root, err := p.Parse()
	if err != nil {
		t.Fatalf("parse error: %s", err)
	}
	bc, err := compiler.Generate(root)
	if err != nil {
		t.Fatalf("generate error: %s", err)
	}
	return bc
}

func runSource(t *testing.T, src string) (*VM, error) {
	t.Helper()
	bc := compileOnly(t, src)
	machine := New()
	runErr := machine.Run(bc)
	return machine, runErr
}

func TestExecuteEmptyListPushesNil(t *testing.T) {
	machine, err := runSource(t, "()")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	stack := machine.Stack()
	if len(stack) != 1 || stack[0].Kind != value.KindNil {
		t.Fatalf("expected stack=[Nil], got %+v", stack)
	}
}

func TestExecuteNumberLiteralPushesF64(t *testing.T) {
	machine, err := runSource(t, "1")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	stack := machine.Stack()
	if len(stack) != 1 || stack[0].Kind != value.KindF64 || stack[0].F64 != 1 {
		t.Fatalf("expected stack=[F64(1)], got %+v", stack)
	}
}

func TestExecuteArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"(+ 1 2)", 3},
		{"(- 1 2)", -1},
		{"(* 3 4)", 12},
		{"(/ 10 4)", 2.5},
	}
	for _, tt := range tests {
		machine, err := runSource(t, tt.src)
		if err != nil {
			t.Fatalf("%s: unexpected error: %s", tt.src, err)
		}
		stack := machine.Stack()
		if len(stack) != 1 || stack[0].Kind != value.KindF64 || stack[0].F64 != tt.want {
			t.Fatalf("%s: expected stack=[F64(%v)], got %+v", tt.src, tt.want, stack)
		}
	}
}

func TestExecuteDivisionByZeroProducesIEEE754Infinity(t *testing.T) {
	machine, err := runSource(t, "(/ 1 0)")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	stack := machine.Stack()
	if len(stack) != 1 || stack[0].Kind != value.KindF64 || !math.IsInf(stack[0].F64, 1) {
		t.Fatalf("expected stack=[F64(+Inf)], got %+v", stack)
	}
}

func TestExecuteZeroDividedByZeroProducesNaN(t *testing.T) {
	machine, err := runSource(t, "(/ 0 0)")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	stack := machine.Stack()
	if len(stack) != 1 || stack[0].Kind != value.KindF64 || !math.IsNaN(stack[0].F64) {
		t.Fatalf("expected stack=[F64(NaN)], got %+v", stack)
	}
}

func TestExecuteQuotedConsBuildsRefcountedObject(t *testing.T) {
	machine, err := runSource(t, "'(1 . 2)")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	stack := machine.Stack()
	if len(stack) != 1 || stack[0].Kind != value.KindObject {
		t.Fatalf("expected stack=[Object(Cons)], got %+v", stack)
	}
	obj := stack[0].Object
	if obj.Kind != value.ObjConsCell || obj.Head.F64 != 1 || obj.Tail.F64 != 2 {
		t.Fatalf("expected Cons(1, 2), got %+v", obj)
	}
	if obj.Refcount != 1 {
		t.Fatalf("expected refcount 1 for the single live stack reference, got %d", obj.Refcount)
	}
}

// TestRefcountBalancesAcrossPushPop checks the reference-count property: the
// sum of live object refcounts matches the number of object-typed stack
// entries after the program finishes.
func TestRefcountBalancesAcrossPushPop(t *testing.T) {
	machine, err := runSource(t, "'(1 2)")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	stack := machine.Stack()
	liveObjects := 0
	refcountSum := 0
	for _, v := range stack {
		if v.Kind == value.KindObject {
			liveObjects++
			refcountSum += int(v.Object.Refcount)
			if v.Object.Refcount < 1 {
				t.Fatalf("expected a live stack object to carry refcount >= 1, got %d", v.Object.Refcount)
			}
		}
	}
	if liveObjects == 0 {
		t.Fatalf("expected at least one object on the stack for a quoted list")
	}
	if refcountSum != liveObjects {
		t.Fatalf("expected stack object refcounts to sum to %d, got %d", liveObjects, refcountSum)
	}
}

func TestExecuteFunctionCallOfNonBuiltinIsRuntimeError(t *testing.T) {
	_, err := runSource(t, "(1 2)")
	if err == nil {
		t.Fatalf("expected a runtime error for calling a non-builtin head")
	}
	if _, ok := err.(RuntimeError); !ok {
		t.Fatalf("expected a RuntimeError, got %T: %v", err, err)
	}
}

func TestFreeListDrainsAfterNormalTermination(t *testing.T) {
	machine, err := runSource(t, "'(1 . 2)")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if machine.stack.FreeListLen() != 0 {
		t.Fatalf("expected the free list to be drained after normal termination, got %d entries", machine.stack.FreeListLen())
	}
}

func TestGlobalSetThenLookupPersistsAcrossRuns(t *testing.T) {
	machine := New()
	if err := machine.Run(compileOnly(t, "(set a 5)")); err != nil {
		t.Fatalf("unexpected error setting a: %s", err)
	}
	if err := machine.Run(compileOnly(t, "a")); err != nil {
		t.Fatalf("unexpected error looking up a: %s", err)
	}
	stack := machine.Stack()
	if len(stack) != 1 || stack[0].Kind != value.KindF64 || stack[0].F64 != 5 {
		t.Fatalf("expected stack=[F64(5)], got %+v", stack)
	}
}

func TestGlobalLookupOfUnboundSymbolIsNil(t *testing.T) {
	machine, err := runSource(t, "unbound")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	stack := machine.Stack()
	if len(stack) != 1 || stack[0].Kind != value.KindNil {
		t.Fatalf("expected stack=[Nil] for an unbound global, got %+v", stack)
	}
}

func TestExecuteJumpSkipsInstructions(t *testing.T) {
	trueInstr, _ := compiler.Assemble(compiler.OpTrue)
	falseInstr, _ := compiler.Assemble(compiler.OpFalse)
	target := uint64(len(trueInstr) + 3 + len(trueInstr))
	jumpInstr, _ := compiler.Assemble(compiler.OpJump, target)

	var code compiler.Instructions
	code = append(code, trueInstr...)
	code = append(code, jumpInstr...)
	code = append(code, trueInstr...) // skipped by the jump
	code = append(code, falseInstr...)

	machine := New()
	if err := machine.Run(&compiler.Bytecode{Instructions: code}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	stack := machine.Stack()
	if len(stack) != 2 {
		t.Fatalf("expected the skipped True not to execute, got stack=%+v", stack)
	}
	if stack[0].Kind != value.KindBool || !stack[0].Bool {
		t.Fatalf("expected stack[0]=True, got %+v", stack[0])
	}
	if stack[1].Kind != value.KindBool || stack[1].Bool {
		t.Fatalf("expected stack[1]=False, got %+v", stack[1])
	}
}

func TestExecuteJumpIfFalseTakenOnFalsyValue(t *testing.T) {
	nilInstr, _ := compiler.Assemble(compiler.OpNil)
	trueInstr, _ := compiler.Assemble(compiler.OpTrue)
	falseInstr, _ := compiler.Assemble(compiler.OpFalse)
	target := uint64(len(nilInstr) + 3 + len(trueInstr))
	jumpInstr, _ := compiler.Assemble(compiler.OpJumpIfFalse, target)

	var code compiler.Instructions
	code = append(code, nilInstr...) // the condition: falsy
	code = append(code, jumpInstr...)
	code = append(code, trueInstr...) // skipped since the condition was falsy
	code = append(code, falseInstr...)

	machine := New()
	if err := machine.Run(&compiler.Bytecode{Instructions: code}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	stack := machine.Stack()
	if len(stack) != 1 || stack[0].Kind != value.KindBool || stack[0].Bool {
		t.Fatalf("expected stack=[False], got %+v", stack)
	}
}

func TestExecuteJumpIfTrueNotTakenOnFalsyValue(t *testing.T) {
	nilInstr, _ := compiler.Assemble(compiler.OpNil)
	trueInstr, _ := compiler.Assemble(compiler.OpTrue)
	falseInstr, _ := compiler.Assemble(compiler.OpFalse)
	target := uint64(len(nilInstr) + 3 + len(trueInstr))
	jumpInstr, _ := compiler.Assemble(compiler.OpJumpIfTrue, target)

	var code compiler.Instructions
	code = append(code, nilInstr...) // the condition: falsy
	code = append(code, jumpInstr...)
	code = append(code, trueInstr...) // NOT skipped: JumpIfTrue only jumps on truthy
	code = append(code, falseInstr...)

	machine := New()
	if err := machine.Run(&compiler.Bytecode{Instructions: code}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	stack := machine.Stack()
	if len(stack) != 2 || stack[0].Kind != value.KindBool || !stack[0].Bool || stack[1].Bool {
		t.Fatalf("expected stack=[True, False], got %+v", stack)
	}
}
