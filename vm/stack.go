package vm

import "parens/value"

// DisableAssertions turns internal consistency checks (currently just the
// refcount-underflow check in Stack.Pop) into no-ops. Tests that deliberately
// drive the VM into an inconsistent state set this to avoid panicking.
var DisableAssertions = false

// Stack is the VM's operand stack. Pushing or popping an Object-kind value
// adjusts its refcount; a count that reaches zero on Pop is appended to the
// free list instead of being reclaimed immediately.
type Stack struct {
	values   []value.Value
	freeList []*value.Object
}

// IsEmpty reports whether the stack holds no values.
func (s *Stack) IsEmpty() bool {
	return len(s.values) == 0
}

// Len returns the number of values currently on the stack.
func (s *Stack) Len() int {
	return len(s.values)
}

// Push appends v to the top of the stack, incrementing its refcount if v
// wraps a heap Object.
func (s *Stack) Push(v value.Value) {
	if v.Kind == value.KindObject && v.Object != nil {
		v.Object.Refcount++
	}
	s.values = append(s.values, v)
}

// Pop removes and returns the top value, decrementing its refcount if it
// wraps a heap Object and appending it to the free list once the count
// reaches zero.
func (s *Stack) Pop() (value.Value, bool) {
	if s.IsEmpty() {
		return value.Nil(), false
	}
	index := len(s.values) - 1
	v := s.values[index]
	s.values = s.values[:index]

	if v.Kind == value.KindObject && v.Object != nil {
		v.Object.Refcount--
		if v.Object.Refcount < 0 && !DisableAssertions {
			panic(RuntimeError{Message: "Object refcount underflowed below zero."})
		}
		if v.Object.Refcount <= 0 {
			s.freeList = append(s.freeList, v.Object)
		}
	}
	return v, true
}

// Peek returns the top value without removing it.
func (s *Stack) Peek() (value.Value, bool) {
	if s.IsEmpty() {
		return value.Nil(), false
	}
	return s.values[len(s.values)-1], true
}

// Snapshot returns a copy of the current stack contents, bottom to top.
func (s *Stack) Snapshot() []value.Value {
	out := make([]value.Value, len(s.values))
	copy(out, s.values)
	return out
}

// FreeListLen returns how many objects are currently queued on the free list.
func (s *Stack) FreeListLen() int {
	return len(s.freeList)
}

// drainFreeList clears the free list. Objects on it have no other root once
// they reach a Go garbage collection cycle, so draining is bookkeeping, not
// an actual deallocation.
func (s *Stack) drainFreeList() {
	s.freeList = s.freeList[:0]
}
