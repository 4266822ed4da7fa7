package value

import (
	"fmt"

	"parens/arena"
)

// ObjectKind discriminates which body an Object carries.
type ObjectKind byte

const (
	ObjString ObjectKind = iota
	ObjSymbol
	ObjConsCell
)

// Object is a reference-counted heap value: a string, a symbol, or a cons
// cell. Refcount is mutated only by the VM's push/pop discipline and by the
// cons constructor — every other reader treats an Object as immutable.
type Object struct {
	Refcount int32
	Kind     ObjectKind

	Str string // ObjString, ObjSymbol

	Head Value // ObjConsCell
	Tail Value // ObjConsCell
}

// NewString returns an unreferenced String object.
func NewString(s string) *Object {
	return &Object{Kind: ObjString, Str: s}
}

// NewSymbol returns an unreferenced Symbol object.
func NewSymbol(s string) *Object {
	return &Object{Kind: ObjSymbol, Str: s}
}

// NewCons returns an unreferenced ConsCell object with the given head/tail.
func NewCons(head, tail Value) *Object {
	return &Object{Kind: ObjConsCell, Head: head, Tail: tail}
}

// NewStringIn allocates a String object out of alloc, so it shares the
// lifetime of the arena that owns the AST or runtime value referencing it.
func NewStringIn(alloc arena.Allocator, s string) *Object {
	o := arena.New[Object](alloc)
	o.Kind, o.Str = ObjString, s
	return o
}

// NewSymbolIn allocates a Symbol object out of alloc.
func NewSymbolIn(alloc arena.Allocator, s string) *Object {
	o := arena.New[Object](alloc)
	o.Kind, o.Str = ObjSymbol, s
	return o
}

// NewConsIn allocates a ConsCell object out of alloc with the given head/tail.
func NewConsIn(alloc arena.Allocator, head, tail Value) *Object {
	o := arena.New[Object](alloc)
	o.Kind, o.Head, o.Tail = ObjConsCell, head, tail
	return o
}

// String renders the object in the canonical printed form used by Value.String.
func (o *Object) String() string {
	if o == nil {
		return "()"
	}
	switch o.Kind {
	case ObjString:
		return fmt.Sprintf("%q", o.Str)
	case ObjSymbol:
		return fmt.Sprintf("<symbol %s>", o.Str)
	case ObjConsCell:
		return fmt.Sprintf("(%s . %s)", o.Head.String(), o.Tail.String())
	default:
		return "<unknown object>"
	}
}
