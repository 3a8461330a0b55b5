package vm

import "fmt"

// Frame is a call-stack entry: the instruction pointer to resume at on
// Return, and a snapshot of the caller's local bindings.
type Frame struct {
	ReturnIP int
	Bindings map[Symbol]Value
}

// Probe is the hook set the execution loop reports to. It lives here
// (rather than importing the probe package) so the probe package can
// depend on vm without a cycle; probe.StepBudget and probe.Noop both
// satisfy it.
type Probe interface {
	OnStep(workerID int64, ip int)
	OnRun(workerID int64)
	OnStopped(workerID int64, waiting bool)
	OnEnter(workerID int64, callee string)
	OnReturn(workerID int64)
	Log(text string)
	// EarlyStop lets the probe impose a step budget; returning true
	// stops the worker immediately, as if it had hit Return with no
	// frame, but raises BudgetExceeded instead of finishing normally.
	EarlyStop(workerID int64, ip int) bool
}

// Host is the collaborator a Worker calls into at points of asynchrony:
// spawning an async call, waiting on a future, and finishing at the top
// level. The controller package implements it; vm never imports
// controller, avoiding an import cycle (the same shape as barn's
// ForkCreator interface sitting between task and server).
type Host interface {
	Spawn(args []Value, fnName string) (workerID int64, err error)
	Invoke(workerID int64)
	GetOrWait(waiterID int64, future FutureHandle, offset int) (resolved bool, value Value)
	Finish(workerID int64, value Value)
	CallForeign(ptr ForeignPtr, args []Value) (Value, error)
}

// Worker is one execution context: one data stack, one call stack, one
// instruction pointer, one set of local bindings.
type Worker struct {
	ID       int64
	Exec     *Executable
	Host     Host
	Probe    Probe
	Stack    []Value
	Frames   []Frame
	IP       int
	Bindings map[Symbol]Value
	Stopped  bool
	Waiting  bool // true iff Stopped because of an unresolved Wait
	Output   []string
}

// NewWorker builds a worker ready to run fn's body with args bound on
// its data stack, leftmost at the bottom (per new_machine in the
// controller contract).
func NewWorker(id int64, exec *Executable, fn string, args []Value, host Host, probe Probe) (*Worker, error) {
	entry, ok := exec.EntryFor(fn)
	if !ok {
		return nil, &CompileError{Code: E_COMPILE, Message: fmt.Sprintf("no such function %q", fn)}
	}
	w := &Worker{
		ID:       id,
		Exec:     exec,
		Host:     host,
		Probe:    probe,
		Stack:    append([]Value{}, args...),
		IP:       entry,
		Bindings: make(map[Symbol]Value),
	}
	return w, nil
}

func (w *Worker) push(v Value) { w.Stack = append(w.Stack, v) }

func (w *Worker) pop() (Value, error) {
	n := len(w.Stack)
	if n == 0 {
		return nil, w.errf(E_CONTROLLER, "pop from empty stack")
	}
	v := w.Stack[n-1]
	w.Stack = w.Stack[:n-1]
	return v, nil
}

// peek returns the value offset slots from the top (0 = top) without
// popping.
func (w *Worker) peek(offset int) (Value, error) {
	idx := len(w.Stack) - 1 - offset
	if idx < 0 || idx >= len(w.Stack) {
		return nil, w.errf(E_CONTROLLER, "stack offset %d out of range", offset)
	}
	return w.Stack[idx], nil
}

func (w *Worker) set(offset int, v Value) error {
	idx := len(w.Stack) - 1 - offset
	if idx < 0 || idx >= len(w.Stack) {
		return w.errf(E_CONTROLLER, "stack offset %d out of range", offset)
	}
	w.Stack[idx] = v
	return nil
}

func (w *Worker) errf(code ErrorCode, format string, args ...any) *ExecError {
	return &ExecError{Code: code, Message: fmt.Sprintf(format, args...), IP: w.IP, WorkerID: w.ID}
}

// resolveSymbol applies the binding precedence from §4.B: local
// bindings, then compiled function locations, then the foreign symbol
// table, then built-in primitives.
func (w *Worker) resolveSymbol(sym Symbol) (Value, error) {
	if v, ok := w.Bindings[sym]; ok {
		return v, nil
	}
	name := string(sym)
	if _, ok := w.Exec.Locations[name]; ok {
		return FunctionPtr{Name: name}, nil
	}
	if fp, ok := w.Exec.Foreign[sym]; ok {
		return fp, nil
	}
	if Builtins[name] {
		return InstructionRef(name), nil
	}
	return nil, w.errf(E_UNBOUND, "unbound symbol %q", name)
}

// Run steps the worker until it stops (terminated or waiting).
func (w *Worker) Run() error {
	if w.Probe != nil {
		w.Probe.OnRun(w.ID)
	}
	for !w.Stopped {
		if err := w.Step(); err != nil {
			w.Stopped = true
			return err
		}
	}
	return nil
}

// Step executes exactly one instruction.
func (w *Worker) Step() error {
	if w.Stopped {
		return w.errf(E_CONTROLLER, "step on a stopped worker")
	}
	if w.Probe != nil {
		if w.Probe.EarlyStop(w.ID, w.IP) {
			w.Stopped = true
			if w.Probe != nil {
				w.Probe.OnStopped(w.ID, false)
			}
			return w.errf(E_BUDGET, "step budget exceeded")
		}
		w.Probe.OnStep(w.ID, w.IP)
	}
	if w.IP < 0 || w.IP >= len(w.Exec.Code) {
		return w.errf(E_CONTROLLER, "instruction pointer out of range")
	}
	instr := w.Exec.Code[w.IP]
	w.IP++

	if err := w.execute(instr); err != nil {
		return err
	}

	if w.IP == len(w.Exec.Code) && !w.Stopped {
		w.Stopped = true
		if w.Probe != nil {
			w.Probe.OnStopped(w.ID, false)
		}
		result := Nil
		if len(w.Stack) > 0 {
			result = w.Stack[len(w.Stack)-1]
		}
		w.Host.Finish(w.ID, result)
	}
	return nil
}

func (w *Worker) execute(instr Instruction) error {
	switch op := instr.(type) {
	case PushV:
		w.push(op.Value)
		return nil

	case PushB:
		v, err := w.resolveSymbol(op.Symbol)
		if err != nil {
			return err
		}
		w.push(v)
		return nil

	case Pop:
		_, err := w.pop()
		return err

	case Bind:
		v, err := w.pop()
		if err != nil {
			return err
		}
		w.Bindings[op.Symbol] = v
		return nil

	case Jump:
		w.IP += op.Delta
		return nil

	case JumpIE:
		b, err := w.pop()
		if err != nil {
			return err
		}
		a, err := w.pop()
		if err != nil {
			return err
		}
		if a.Equal(b) {
			w.IP += op.Delta
		}
		return nil

	case Call:
		return w.executeCall(op.N)

	case ACall:
		return w.executeACall(op.N)

	case Return:
		return w.executeReturn()

	case Wait:
		return w.executeWait(op.Offset)

	default:
		return w.errf(E_CONTROLLER, "unhandled instruction %T", instr)
	}
}

// popArgs pops n values and returns them in source (left-to-right)
// order: the compiler pushes arguments a1..an in order, so an is on
// top.
func (w *Worker) popArgs(n int) ([]Value, error) {
	args := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := w.pop()
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (w *Worker) executeCall(n int) error {
	callee, err := w.pop()
	if err != nil {
		return err
	}
	switch f := callee.(type) {
	case FunctionPtr:
		entry, ok := w.Exec.EntryFor(f.Name)
		if !ok {
			return w.errf(E_UNBOUND, "call to undefined function %q", f.Name)
		}
		if w.Probe != nil {
			w.Probe.OnEnter(w.ID, f.Name)
		}
		w.Frames = append(w.Frames, Frame{ReturnIP: w.IP, Bindings: w.Bindings})
		fresh := make(map[Symbol]Value, len(f.Captures))
		for k, v := range f.Captures {
			fresh[k] = v
		}
		w.Bindings = fresh
		w.IP = entry
		return nil

	case ForeignPtr:
		args, err := w.popArgs(n)
		if err != nil {
			return err
		}
		result, err := w.Host.CallForeign(f, args)
		if err != nil {
			return w.errf(E_TYPE, "foreign call %s.%s: %v", f.Module, f.Name, err)
		}
		w.push(result)
		return nil

	case InstructionRef:
		args, err := w.popArgs(n)
		if err != nil {
			return err
		}
		result, err := CallBuiltin(string(f), args, &w.Output)
		if err != nil {
			return w.errf(E_TYPE, "%s: %v", f, err)
		}
		w.push(result)
		return nil

	default:
		return w.errf(E_TYPE, "cannot call non-callable value of kind %s", callee.Kind())
	}
}

func (w *Worker) executeACall(n int) error {
	callee, err := w.pop()
	if err != nil {
		return err
	}
	f, ok := callee.(FunctionPtr)
	if !ok {
		return w.errf(E_TYPE, "async call target must be a function, got %s", callee.Kind())
	}
	args, err := w.popArgs(n)
	if err != nil {
		return err
	}
	childID, err := w.Host.Spawn(args, f.Name)
	if err != nil {
		return w.errf(E_CONTROLLER, "spawn failed: %v", err)
	}
	w.Host.Invoke(childID)
	w.push(FutureHandle{WorkerID: childID})
	return nil
}

func (w *Worker) executeReturn() error {
	if len(w.Frames) > 0 {
		top := w.Frames[len(w.Frames)-1]
		w.Frames = w.Frames[:len(w.Frames)-1]
		w.IP = top.ReturnIP
		w.Bindings = top.Bindings
		if w.Probe != nil {
			w.Probe.OnReturn(w.ID)
		}
		return nil
	}
	w.Stopped = true
	if w.Probe != nil {
		w.Probe.OnStopped(w.ID, false)
	}
	result := Nil
	if len(w.Stack) > 0 {
		result = w.Stack[len(w.Stack)-1]
	}
	w.Host.Finish(w.ID, result)
	return nil
}

func (w *Worker) executeWait(offset int) error {
	v, err := w.peek(offset)
	if err != nil {
		return err
	}
	if containsFuture(v) {
		return w.errf(E_FUTURE_SHAPE, "waiting on structured data containing futures")
	}
	handle, ok := v.(FutureHandle)
	if !ok {
		// plain value, or an already-checked structured value with no
		// futures inside: no-op wait.
		return nil
	}
	resolved, value := w.Host.GetOrWait(w.ID, handle, offset)
	if resolved {
		return w.set(offset, value)
	}
	w.Stopped = true
	w.Waiting = true
	if w.Probe != nil {
		w.Probe.OnStopped(w.ID, true)
	}
	return nil
}

// containsFuture reports whether v is a List with a FutureHandle
// anywhere in its (recursively expanded) elements. A bare FutureHandle
// itself is not "structured data containing a future" — it is a
// future, which is the normal case Wait handles.
func containsFuture(v Value) bool {
	l, ok := v.(List)
	if !ok {
		return false
	}
	for _, e := range l.Elements() {
		if _, isFuture := e.(FutureHandle); isFuture {
			return true
		}
		if containsFuture(e) {
			return true
		}
	}
	return false
}

// SetFutureValue writes value into the worker's stack slot offset. Used
// by the controller to relaunch a worker that was waiting.
func (w *Worker) SetFutureValue(offset int, value Value) error {
	return w.set(offset, value)
}

// Resume clears the stopped/waiting flags so Run can continue stepping.
func (w *Worker) Resume() {
	w.Stopped = false
	w.Waiting = false
}
