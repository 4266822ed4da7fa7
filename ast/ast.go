// Package ast defines the cons-cell abstract syntax tree produced by the
// parser and consumed by the bytecode generator.
//
// There are two node shapes, flat and tagged rather than an interface
// hierarchy: Atom wraps a single Value, Cons carries a head and a tail. Both
// axes (atom/cons) and the value axis underneath Atom are sum types, so a
// type switch on Kind replaces what would otherwise be a Visitor.
package ast

import (
	"parens/arena"
	"parens/token"
	"parens/value"
)

// Kind discriminates whether an Ast node is a leaf (Atom) or a pair (Cons).
type Kind byte

const (
	KindAtom Kind = iota
	KindCons
)

// Ast is a single node in the tree. Every node carries a back-pointer to the
// token that produced it (for diagnostics) and a Quoted flag. On a Cons node
// Quoted selects the generator's emission branch (data vs. call); on an atom
// it selects literal emission, which matters for a symbol: a quoted symbol is
// pushed as itself, an unquoted one is looked up as a global.
type Ast struct {
	Token  *token.Token
	Quoted bool
	Kind   Kind

	// Atom, valid when Kind == KindAtom.
	Atom value.Value

	// Cons, valid when Kind == KindCons.
	Head *Ast
	Tail *Ast
}

// NewAtom allocates a leaf node wrapping v out of alloc. Every AST node
// allocated during a single parse call must come from the same allocator, so
// the whole tree is freed together on arena reset.
func NewAtom(alloc arena.Allocator, tok *token.Token, v value.Value, quoted bool) *Ast {
	node := arena.New[Ast](alloc)
	node.Token, node.Quoted, node.Kind, node.Atom = tok, quoted, KindAtom, v
	return node
}

// NewCons allocates a pair node with the given head and tail out of alloc.
func NewCons(alloc arena.Allocator, tok *token.Token, head, tail *Ast, quoted bool) *Ast {
	node := arena.New[Ast](alloc)
	node.Token, node.Quoted, node.Kind, node.Head, node.Tail = tok, quoted, KindCons, head, tail
	return node
}

// IsNilAtom reports whether a is the Atom(Nil) leaf — the synthesized
// terminator of a proper list, or the literal "nil"/"()" atom.
func (a *Ast) IsNilAtom() bool {
	return a.Kind == KindAtom && a.Atom.Kind == value.KindNil
}
