package future

import (
	"testing"

	"loom/vm"
)

func TestGetOrWaitBeforeAndAfterResolve(t *testing.T) {
	f := New()

	resolved, _ := f.GetOrWait(Continuation{WorkerID: 1, Offset: 0})
	if resolved {
		t.Fatal("expected unresolved future to report not resolved")
	}

	lookup := func(vm.FutureHandle) *Future { return nil }
	var notified []Continuation
	notify := func(c Continuation, v vm.Value) { notified = append(notified, c) }

	if err := f.Resolve(vm.Number(7), lookup, notify); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(notified) != 1 || notified[0].WorkerID != 1 {
		t.Errorf("expected the registered continuation to be notified, got %+v", notified)
	}

	resolved, value := f.GetOrWait(Continuation{WorkerID: 2, Offset: 0})
	if !resolved || !value.Equal(vm.Number(7)) {
		t.Errorf("GetOrWait after resolve = (%v, %v), want (true, 7)", resolved, value)
	}
}

func TestResolveTwiceIsControllerError(t *testing.T) {
	f := New()
	lookup := func(vm.FutureHandle) *Future { return nil }
	notify := func(Continuation, vm.Value) {}

	if err := f.Resolve(vm.Number(1), lookup, notify); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	err := f.Resolve(vm.Number(2), lookup, notify)
	if err == nil {
		t.Fatal("expected an error resolving an already-resolved future")
	}
	execErr, ok := err.(*vm.ExecError)
	if !ok || execErr.Code != vm.E_CONTROLLER {
		t.Errorf("expected E_CONTROLLER ExecError, got %v", err)
	}
}

func TestResolveChaining(t *testing.T) {
	outer := New()
	inner := New()

	handles := map[vm.FutureHandle]*Future{
		{WorkerID: 2}: inner,
	}
	lookup := func(h vm.FutureHandle) *Future { return handles[h] }
	var notified []struct {
		c Continuation
		v vm.Value
	}
	notify := func(c Continuation, v vm.Value) {
		notified = append(notified, struct {
			c Continuation
			v vm.Value
		}{c, v})
	}

	outer.GetOrWait(Continuation{WorkerID: 1, Offset: 0})

	// outer resolves to a handle pointing at inner: this chains rather
	// than resolving outer immediately.
	if err := outer.Resolve(vm.FutureHandle{WorkerID: 2}, lookup, notify); err != nil {
		t.Fatalf("chain Resolve: %v", err)
	}
	if resolved, _ := outer.Resolved(); resolved {
		t.Fatal("outer should not be resolved until inner resolves")
	}

	if err := inner.Resolve(vm.Number(5), lookup, notify); err != nil {
		t.Fatalf("inner Resolve: %v", err)
	}

	resolved, value := outer.Resolved()
	if !resolved || !value.Equal(vm.Number(5)) {
		t.Fatalf("outer after inner resolves = (%v, %v), want (true, 5)", resolved, value)
	}
	if len(notified) != 1 || notified[0].c.WorkerID != 1 || !notified[0].v.Equal(vm.Number(5)) {
		t.Errorf("expected outer's waiter to be notified with 5, got %+v", notified)
	}
}

func TestResolveChainExceedsMaxDepthIsError(t *testing.T) {
	// Build a chain of 3 futures (a -> b -> c, unresolved) where a has a
	// limit of 1 hop: b chaining to c succeeds (b is then one hop deep),
	// so a chaining to b would be two hops, past a's limit, and must fail.
	a := NewWithLimit(1)
	b := New()
	c := New()

	handles := map[vm.FutureHandle]*Future{
		{WorkerID: 2}: b,
		{WorkerID: 3}: c,
	}
	lookup := func(h vm.FutureHandle) *Future { return handles[h] }
	notify := func(Continuation, vm.Value) {}

	if err := b.Resolve(vm.FutureHandle{WorkerID: 3}, lookup, notify); err != nil {
		t.Fatalf("b chains to c: %v", err)
	}
	err := a.Resolve(vm.FutureHandle{WorkerID: 2}, lookup, notify)
	if err == nil {
		t.Fatal("expected a max-chain-depth error")
	}
	execErr, ok := err.(*vm.ExecError)
	if !ok || execErr.Code != vm.E_CONTROLLER {
		t.Errorf("expected E_CONTROLLER ExecError, got %v", err)
	}
}

func TestResolveCyclicChainIsError(t *testing.T) {
	f := New()
	handles := map[vm.FutureHandle]*Future{
		{WorkerID: 9}: f,
	}
	lookup := func(h vm.FutureHandle) *Future { return handles[h] }
	notify := func(Continuation, vm.Value) {}

	err := f.Resolve(vm.FutureHandle{WorkerID: 9}, lookup, notify)
	if err == nil {
		t.Fatal("expected a cyclic chain error")
	}
	execErr, ok := err.(*vm.ExecError)
	if !ok || execErr.Code != vm.E_CONTROLLER {
		t.Errorf("expected E_CONTROLLER ExecError, got %v", err)
	}
}
