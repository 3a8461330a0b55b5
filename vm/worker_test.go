package vm

import "testing"

// stubHost is a minimal Host for exercising the execution loop without
// a real controller; tests that need ACall/Wait wiring construct their
// own behavior per case.
type stubHost struct {
	calledForeign []ForeignPtr
	foreignResult Value
}

func (s *stubHost) Spawn(args []Value, fnName string) (int64, error) { return 0, nil }
func (s *stubHost) Invoke(workerID int64)                            {}
func (s *stubHost) GetOrWait(waiterID int64, f FutureHandle, offset int) (bool, Value) {
	return true, Nil
}
func (s *stubHost) Finish(workerID int64, value Value) {}
func (s *stubHost) CallForeign(ptr ForeignPtr, args []Value) (Value, error) {
	s.calledForeign = append(s.calledForeign, ptr)
	return s.foreignResult, nil
}

func run(t *testing.T, exec *Executable, fn string, args []Value) *Worker {
	t.Helper()
	w, err := NewWorker(1, exec, fn, args, &stubHost{}, nil)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	if err := w.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return w
}

func TestWorkerCallAndReturn(t *testing.T) {
	// f(x) = x + 1; called with 41.
	exec := NewExecutable()
	exec.Code = []Instruction{
		// f: entry 0
		Bind{Symbol: "x"},
		PushB{Symbol: "x"},
		PushV{Value: Number(1)},
		PushB{Symbol: "+"},
		Call{N: 2},
		Return{},
		// main: entry 6
		PushV{Value: Number(41)},
		PushB{Symbol: "f"},
		Call{N: 1},
		Return{},
	}
	exec.Locations["f"] = 0
	exec.Locations["main"] = 6

	w := run(t, exec, "main", nil)
	if len(w.Stack) != 1 {
		t.Fatalf("expected 1 value on stack, got %d", len(w.Stack))
	}
	if !w.Stack[0].Equal(Number(42)) {
		t.Errorf("result = %v, want 42", w.Stack[0])
	}
	if !w.Stopped {
		t.Error("worker should be stopped (terminated)")
	}
	if w.Waiting {
		t.Error("worker should not be waiting")
	}
}

func TestWorkerIfTrueBranch(t *testing.T) {
	// if (1 = 1) 10 else 20
	cond := []Instruction{PushV{Value: Number(1)}, PushV{Value: Number(1)}, PushB{Symbol: "="}, Call{N: 2}}
	els := []Instruction{PushV{Value: Number(20)}}
	then := []Instruction{PushV{Value: Number(10)}}

	var code []Instruction
	code = append(code, cond...)
	code = append(code, PushV{Value: Bool(true)})
	code = append(code, JumpIE{Delta: len(els) + 1})
	code = append(code, els...)
	code = append(code, Jump{Delta: len(then)})
	code = append(code, then...)
	code = append(code, Return{})

	exec := NewExecutable()
	exec.Code = code
	exec.Locations["main"] = 0

	w := run(t, exec, "main", nil)
	if !w.Stack[0].Equal(Number(10)) {
		t.Errorf("result = %v, want 10", w.Stack[0])
	}
}

func TestWorkerListBuiltins(t *testing.T) {
	// conc(1, conc(2, null))
	exec := NewExecutable()
	exec.Code = []Instruction{
		PushV{Value: Number(1)},
		PushV{Value: Number(2)},
		PushV{Value: Nil},
		PushB{Symbol: "conc"},
		Call{N: 2},
		PushB{Symbol: "conc"},
		Call{N: 2},
		Return{},
	}
	exec.Locations["main"] = 0

	w := run(t, exec, "main", nil)
	l, ok := w.Stack[0].(List)
	if !ok || l.Len() != 2 {
		t.Fatalf("result = %v, want a 2-element list", w.Stack[0])
	}
	if !l.First().Equal(Number(1)) || !l.Rest().First().Equal(Number(2)) {
		t.Errorf("result = %v, want [1, 2]", l)
	}
}

func TestWorkerListBuiltinsConcFlattensListHead(t *testing.T) {
	// conc(list(1, 2), list(3, 4)) must concatenate into a flat
	// 4-element list, not nest the head list as a single element.
	exec := NewExecutable()
	exec.Code = []Instruction{
		PushV{Value: Number(1)},
		PushV{Value: Number(2)},
		PushB{Symbol: "list"},
		Call{N: 2},
		PushV{Value: Number(3)},
		PushV{Value: Number(4)},
		PushB{Symbol: "list"},
		Call{N: 2},
		PushB{Symbol: "conc"},
		Call{N: 2},
		Return{},
	}
	exec.Locations["main"] = 0

	w := run(t, exec, "main", nil)
	l, ok := w.Stack[0].(List)
	if !ok || l.Len() != 4 {
		t.Fatalf("result = %v, want a 4-element list", w.Stack[0])
	}
	want := NewList([]Value{Number(1), Number(2), Number(3), Number(4)})
	if !l.Equal(want) {
		t.Errorf("result = %v, want %v", l, want)
	}
}

func TestWorkerUnboundSymbol(t *testing.T) {
	exec := NewExecutable()
	exec.Code = []Instruction{PushB{Symbol: "nosuch"}, Return{}}
	exec.Locations["main"] = 0

	w, err := NewWorker(1, exec, "main", nil, &stubHost{}, nil)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	err = w.Run()
	if err == nil {
		t.Fatal("expected an UnboundSymbol error")
	}
	execErr, ok := err.(*ExecError)
	if !ok || execErr.Code != E_UNBOUND {
		t.Errorf("expected E_UNBOUND ExecError, got %v", err)
	}
}

func TestWorkerWaitOnFutureShapedList(t *testing.T) {
	exec := NewExecutable()
	exec.Code = []Instruction{
		PushV{Value: NewList([]Value{FutureHandle{WorkerID: 7}})},
		Wait{Offset: 0},
		Return{},
	}
	exec.Locations["main"] = 0

	w, err := NewWorker(1, exec, "main", nil, &stubHost{}, nil)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	err = w.Run()
	execErr, ok := err.(*ExecError)
	if !ok || execErr.Code != E_FUTURE_SHAPE {
		t.Fatalf("expected E_FUTURE_SHAPE, got %v", err)
	}
}

func TestWorkerCallForeign(t *testing.T) {
	exec := NewExecutable()
	exec.Code = []Instruction{
		PushV{Value: String("hello")},
		PushB{Symbol: "greet"},
		Call{N: 1},
		Return{},
	}
	exec.Locations["main"] = 0
	exec.Foreign["greet"] = ForeignPtr{Name: "greet", Module: "demo"}

	host := &stubHost{foreignResult: String("hi hello")}
	w, err := NewWorker(1, exec, "main", nil, host, nil)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	if err := w.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(host.calledForeign) != 1 || host.calledForeign[0].Name != "greet" {
		t.Errorf("expected greet to be called once, got %+v", host.calledForeign)
	}
	if !w.Stack[0].Equal(String("hi hello")) {
		t.Errorf("result = %v, want %q", w.Stack[0], "hi hello")
	}
}
