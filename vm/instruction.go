package vm

import "fmt"

// Instruction is a single bytecode operation. The closed set of
// concrete types below replaces single-dispatch-on-variant with a Go
// type switch; Worker.execute dispatches on the concrete type.
type Instruction interface {
	fmt.Stringer
	isInstruction()
}

// PushV pushes a literal Value.
type PushV struct{ Value Value }

// PushB resolves a Symbol by the binding-precedence rules and pushes it.
type PushB struct{ Symbol Symbol }

// Pop discards the top of the data stack.
type Pop struct{}

// Bind pops the top of the data stack and binds it to Symbol in the
// current frame's scope.
type Bind struct{ Symbol Symbol }

// Jump adds Delta to the instruction pointer unconditionally.
type Jump struct{ Delta int }

// JumpIE pops two values; if they are equal, adds Delta to ip.
type JumpIE struct{ Delta int }

// Call performs a synchronous call with N arguments on the stack below
// the callee.
type Call struct{ N int }

// ACall performs an asynchronous call with N arguments, pushing a
// FutureHandle rather than a result.
type ACall struct{ N int }

// Return pops the current frame (or terminates the worker if there is
// no frame).
type Return struct{}

// Wait blocks the worker on the future at the given data-stack offset
// (0 = top) until it resolves.
type Wait struct{ Offset int }

func (PushV) isInstruction()  {}
func (PushB) isInstruction()  {}
func (Pop) isInstruction()    {}
func (Bind) isInstruction()   {}
func (Jump) isInstruction()   {}
func (JumpIE) isInstruction() {}
func (Call) isInstruction()   {}
func (ACall) isInstruction()  {}
func (Return) isInstruction() {}
func (Wait) isInstruction()   {}

func (i PushV) String() string  { return fmt.Sprintf("PushV %s", i.Value.String()) }
func (i PushB) String() string  { return fmt.Sprintf("PushB %s", i.Symbol) }
func (i Pop) String() string    { return "Pop" }
func (i Bind) String() string   { return fmt.Sprintf("Bind %s", i.Symbol) }
func (i Jump) String() string   { return fmt.Sprintf("Jump %+d", i.Delta) }
func (i JumpIE) String() string { return fmt.Sprintf("JumpIE %+d", i.Delta) }
func (i Call) String() string   { return fmt.Sprintf("Call %d", i.N) }
func (i ACall) String() string  { return fmt.Sprintf("ACall %d", i.N) }
func (i Return) String() string { return "Return" }
func (i Wait) String() string   { return fmt.Sprintf("Wait %d", i.Offset) }

// Disassemble renders a code vector as one instruction per line, for
// CLI inspection and test failure messages.
func Disassemble(code []Instruction) string {
	out := ""
	for i, instr := range code {
		out += fmt.Sprintf("%4d  %s\n", i, instr.String())
	}
	return out
}
