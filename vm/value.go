// Package vm implements the value model, bytecode instruction set, and
// per-worker execution loop of the VM.
package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the runtime tag of a Value.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindSymbol
	KindBool
	KindNull
	KindList
	KindFunctionPtr
	KindForeignPtr
	KindInstructionRef
	KindFutureHandle
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindBool:
		return "bool"
	case KindNull:
		return "null"
	case KindList:
		return "list"
	case KindFunctionPtr:
		return "function"
	case KindForeignPtr:
		return "foreign"
	case KindInstructionRef:
		return "builtin"
	case KindFutureHandle:
		return "future"
	default:
		return "unknown"
	}
}

// Value is the interface every runtime value implements. Values are
// immutable: operations that appear to mutate a List return a new one.
type Value interface {
	Kind() Kind
	String() string
	Equal(Value) bool
}

// Number is a double-precision real.
type Number float64

func (n Number) Kind() Kind       { return KindNumber }
func (n Number) String() string   { return strconv.FormatFloat(float64(n), 'g', -1, 64) }
func (n Number) Equal(o Value) bool {
	other, ok := o.(Number)
	return ok && other == n
}

// String is a host string value.
type String string

func (s String) Kind() Kind     { return KindString }
func (s String) String() string { return string(s) }
func (s String) Equal(o Value) bool {
	other, ok := o.(String)
	return ok && other == s
}

// Symbol is an identifier used for lookup. It is never itself a value
// produced by evaluating a program; the compiler only emits it as an
// instruction operand (PushB, Bind).
type Symbol string

func (s Symbol) Kind() Kind     { return KindSymbol }
func (s Symbol) String() string { return string(s) }
func (s Symbol) Equal(o Value) bool {
	other, ok := o.(Symbol)
	return ok && other == s
}

// Bool is the boolean value kind.
type Bool bool

func (b Bool) Kind() Kind     { return KindBool }
func (b Bool) String() string { return strconv.FormatBool(bool(b)) }
func (b Bool) Equal(o Value) bool {
	other, ok := o.(Bool)
	return ok && other == b
}

// Null is the singleton empty/nothing value. Use the package-level Nil.
type nullType struct{}

func (nullType) Kind() Kind     { return KindNull }
func (nullType) String() string { return "null" }
func (nullType) Equal(o Value) bool {
	_, ok := o.(nullType)
	return ok
}

// Nil is the Null singleton. Compare with ==, since nullType has no fields.
var Nil Value = nullType{}

// List is an ordered, finite, immutable sequence of Values.
type List struct {
	elements []Value
}

// NewList constructs a List from elements, copying the backing slice so
// the caller's slice can be reused.
func NewList(elements []Value) List {
	cp := make([]Value, len(elements))
	copy(cp, elements)
	return List{elements: cp}
}

func (l List) Kind() Kind     { return KindList }
func (l List) Len() int       { return len(l.elements) }
func (l List) Elements() []Value {
	return l.elements
}

func (l List) String() string {
	parts := make([]string, len(l.elements))
	for i, e := range l.elements {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (l List) Equal(o Value) bool {
	other, ok := o.(List)
	if !ok || len(other.elements) != len(l.elements) {
		return false
	}
	for i, e := range l.elements {
		if !e.Equal(other.elements[i]) {
			return false
		}
	}
	return true
}

// First returns the head element. The caller must check Len() > 0.
func (l List) First() Value { return l.elements[0] }

// Rest returns a List of every element but the first.
func (l List) Rest() List {
	if len(l.elements) == 0 {
		return l
	}
	return NewList(l.elements[1:])
}

// Cons prepends v to l, returning a new List.
func Cons(v Value, l List) List {
	out := make([]Value, 0, len(l.elements)+1)
	out = append(out, v)
	out = append(out, l.elements...)
	return List{elements: out}
}

// FunctionPtr identifies a compiled function by its location-table key.
type FunctionPtr struct {
	Name string
	// Captures is the bindings snapshot closed over at the point this
	// function value was constructed (see the Design Notes on closures).
	Captures map[Symbol]Value
}

func (f FunctionPtr) Kind() Kind     { return KindFunctionPtr }
func (f FunctionPtr) String() string { return fmt.Sprintf("<function %s>", f.Name) }
func (f FunctionPtr) Equal(o Value) bool {
	other, ok := o.(FunctionPtr)
	return ok && other.Name == f.Name
}

// ForeignPtr identifies a host-native function by symbol name and host
// module.
type ForeignPtr struct {
	Name   string
	Module string
}

func (f ForeignPtr) Kind() Kind     { return KindForeignPtr }
func (f ForeignPtr) String() string { return fmt.Sprintf("<foreign %s.%s>", f.Module, f.Name) }
func (f ForeignPtr) Equal(o Value) bool {
	other, ok := o.(ForeignPtr)
	return ok && other.Name == f.Name && other.Module == f.Module
}

// InstructionRef names a built-in primitive usable as a callable via the
// Call protocol (see builtins.go).
type InstructionRef string

func (i InstructionRef) Kind() Kind     { return KindInstructionRef }
func (i InstructionRef) String() string { return fmt.Sprintf("<builtin %s>", string(i)) }
func (i InstructionRef) Equal(o Value) bool {
	other, ok := o.(InstructionRef)
	return ok && other == i
}

// FutureHandle is an opaque reference to a controller-owned future.
type FutureHandle struct {
	WorkerID int64
}

func (f FutureHandle) Kind() Kind     { return KindFutureHandle }
func (f FutureHandle) String() string { return fmt.Sprintf("<future worker=%d>", f.WorkerID) }
func (f FutureHandle) Equal(o Value) bool {
	other, ok := o.(FutureHandle)
	return ok && other.WorkerID == f.WorkerID
}

// Truthy reports whether v counts as true in a conditional context.
// Only Bool(false) and Null are falsy; everything else, including
// Number(0) and the empty list, is truthy.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case Bool:
		return bool(t)
	case nullType:
		return false
	default:
		return true
	}
}
