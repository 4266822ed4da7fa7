// Bytecode generator
//
// Walks a parsed *ast.Ast and emits a flat Instructions stream for the VM to
// execute. Two emission modes exist:
//
//   - data mode, used for quoted cons cells: recursively emit tail, emit
//     head, then ConsCell — builds the list as a runtime value.
//   - call mode, used for unquoted cons cells: emit the argument elements in
//     reverse order (omitting the trailing Nil), emit the head, then either
//     rewrite the trailing BuiltinFn into its direct opcode or fall back to
//     FunctionCall.
//
// Errors are raised by panicking with a SemanticError or DeveloperError and
// recovered at the Generate entry point, so the recursive walk unwinds on the
// first failure rather than threading an error return through every call
// site.
package compiler

import (
	"parens/ast"
	"parens/value"
)

// Generator accumulates the instruction stream and the constants pool for a
// single compilation.
type Generator struct {
	instructions Instructions
	constants    []value.Value
}

// NewGenerator returns an empty Generator ready to compile one program.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate compiles root into a Bytecode, converting any internal panic
// raised during emission into a returned error.
func Generate(root *ast.Ast) (bc *Bytecode, err error) {
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case SemanticError:
				err = e
			case DeveloperError:
				err = e
			default:
				panic(r)
			}
		}
	}()

	g := NewGenerator()
	g.emitTop(root)
	return &Bytecode{Instructions: g.instructions, ConstantsPool: g.constants}, nil
}

func (g *Generator) push(bytes []byte) {
	g.instructions = append(g.instructions, bytes...)
}

func (g *Generator) addConstant(v value.Value) uint64 {
	g.constants = append(g.constants, v)
	return uint64(len(g.constants) - 1)
}

func (g *Generator) emitSimple(op Opcode) {
	instr, err := Assemble(op)
	if err != nil {
		panic(DeveloperError{Message: err.Error()})
	}
	g.push(instr)
}

// emitTop emits node in whichever mode its own Quoted flag and Kind select:
// a quoted node (atom or cons) is emitted as data; an unquoted atom is
// emitted as a value (a symbol resolves through Global); an unquoted cons is
// emitted in call mode.
func (g *Generator) emitTop(node *ast.Ast) {
	if node.Quoted {
		g.emitData(node)
		return
	}
	switch node.Kind {
	case ast.KindAtom:
		g.emitAtomValue(node)
	case ast.KindCons:
		g.emitCall(node)
	default:
		panic(DeveloperError{Message: "Unknown AST node kind."})
	}
}

// emitAtomValue emits an unquoted atom in expression position: every kind is
// self-evaluating except a symbol, which resolves through the global table
// at runtime (Global) rather than pushing the symbol itself.
func (g *Generator) emitAtomValue(node *ast.Ast) {
	v := node.Atom
	if v.Kind == value.KindObject && v.Object != nil && v.Object.Kind == value.ObjSymbol {
		idx := g.addConstant(v)
		instr, err := Assemble(OpGlobal, idx)
		if err != nil {
			panic(DeveloperError{Message: err.Error()})
		}
		g.push(instr)
		return
	}
	g.emitAtomLiteral(node)
}

// emitAtomLiteral emits the literal form of a non-cons value, used for
// quoted atoms and for every atom nested in a data constructor: a symbol
// here is pushed as itself, not resolved against the global table.
func (g *Generator) emitAtomLiteral(node *ast.Ast) {
	v := node.Atom
	switch v.Kind {
	case value.KindNil:
		g.emitSimple(OpNil)
	case value.KindBool:
		if v.Bool {
			g.emitSimple(OpTrue)
		} else {
			g.emitSimple(OpFalse)
		}
	case value.KindF64:
		g.push(AssembleF64(v.F64))
	case value.KindObject:
		idx := g.addConstant(v)
		instr, err := Assemble(OpConstant16, idx)
		if err != nil {
			panic(DeveloperError{Message: err.Error()})
		}
		g.push(instr)
	case value.KindOperator:
		instr, err := Assemble(OpBuiltinFn, uint64(v.Operator))
		if err != nil {
			panic(DeveloperError{Message: err.Error()})
		}
		g.push(instr)
	default:
		panic(SemanticError{Message: "Unsupported value type in an atom."})
	}
}

// emitData emits node as a data constructor: used for a quoted cons and,
// recursively, for every cons or atom nested inside it. Quoting does not
// propagate through node.Quoted on children — it is implied by the
// recursion itself.
func (g *Generator) emitData(node *ast.Ast) {
	switch node.Kind {
	case ast.KindAtom:
		g.emitAtomLiteral(node)
	case ast.KindCons:
		g.emitData(node.Tail)
		g.emitData(node.Head)
		g.emitSimple(OpConsCell)
	default:
		panic(DeveloperError{Message: "Unknown AST node kind."})
	}
}

// emitCall emits an unquoted cons as a function call: the proper list
// Head, e2, e3, ..., en is compiled as "call Head with arguments e2..en".
// Arguments are emitted in reverse so the VM, popping its operand stack,
// recovers them in forward order. "set" is special-cased to SetGlobal —
// it is the one call head wired to a dedicated opcode; any other head that
// is not a builtin operator ends in FunctionCall, which the VM rejects with
// a RuntimeError.
func (g *Generator) emitCall(node *ast.Ast) {
	if isSymbolNamed(node.Head, "set") {
		g.emitSetGlobal(node)
		return
	}

	args := flattenProperList(node.Tail)

	for i := len(args) - 1; i >= 0; i-- {
		g.emitTop(args[i])
	}

	headStart := len(g.instructions)
	g.emitTop(node.Head)

	// Only a head that emitted exactly one BuiltinFn instruction is rewritten;
	// checking the width keeps operand bytes of a longer instruction (e.g. a
	// Global index) from being mistaken for one.
	if len(g.instructions)-headStart == 2 {
		if rewritten, ok := rewriteBuiltinFn(g.instructions); ok {
			g.instructions = rewritten
			return
		}
	}
	g.emitSimple(OpFunctionCall)
}

// emitSetGlobal compiles "(set name value)": it evaluates value, then binds
// it to name in the VM's global table. Per SetGlobal's semantics the value
// is left on the stack, so "set" itself evaluates to the value assigned.
func (g *Generator) emitSetGlobal(node *ast.Ast) {
	args := flattenProperList(node.Tail)
	if len(args) != 2 {
		panic(SemanticError{Message: "set expects exactly 2 arguments: a name and a value."})
	}
	nameNode, valueNode := args[0], args[1]
	if !isSymbolNamed(nameNode, "") {
		panic(SemanticError{Message: "set's first argument must be a symbol."})
	}

	g.emitTop(valueNode)

	idx := g.addConstant(nameNode.Atom)
	instr, err := Assemble(OpSetGlobal, idx)
	if err != nil {
		panic(DeveloperError{Message: err.Error()})
	}
	g.push(instr)
}

// isSymbolNamed reports whether node is a symbol atom; its Quoted flag is not
// consulted. When name is non-empty it additionally requires the symbol's
// text to match.
func isSymbolNamed(node *ast.Ast, name string) bool {
	if node.Kind != ast.KindAtom || node.Atom.Kind != value.KindObject || node.Atom.Object == nil {
		return false
	}
	if node.Atom.Object.Kind != value.ObjSymbol {
		return false
	}
	return name == "" || node.Atom.Object.Str == name
}

// flattenProperList walks a Cons chain that is expected to terminate in a
// Nil atom (quoted or not), returning its elements in list order. It panics with a
// SemanticError if the chain is instead terminated by some other atom (an
// improper list used where a call's argument list was expected).
func flattenProperList(node *ast.Ast) []*ast.Ast {
	var elements []*ast.Ast
	for node.Kind == ast.KindCons {
		elements = append(elements, node.Head)
		node = node.Tail
	}
	if !node.IsNilAtom() {
		panic(SemanticError{Message: "A proper list was unexpectedly terminated by a non-nil atom."})
	}
	return elements
}
