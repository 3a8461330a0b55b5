// Package future implements the controller-owned Future object: its
// chaining/resolution protocol and the continuation registrations that
// reattach a suspended worker once the value it awaits is known.
package future

import (
	"sync"

	"loom/vm"
)

// Continuation is a (worker, stack-offset) pair registered on a future.
// Upon resolution the value is written into that worker's stack slot
// and the worker is handed back to the invoker.
type Continuation struct {
	WorkerID int64
	Offset   int
}

// Future is controller-owned; all mutation happens under mu, which also
// spans the check-then-register sequence in GetOrWait so a future
// cannot resolve between a waiter's check and its registration.
type Future struct {
	mu            sync.Mutex
	resolved      bool
	value         vm.Value
	continuations []Continuation
	chainedBy     []*Future // futures that resolved to a handle pointing at this one

	chainDepth    int // hops from this future to the eventual concrete value, once chained
	maxChainDepth int // 0 means unbounded
}

// New returns an unresolved future with no chain depth limit.
func New() *Future { return &Future{} }

// NewWithLimit returns an unresolved future whose Resolve rejects
// chains longer than maxChainDepth hops as a likely cycle. A
// maxChainDepth of 0 means unbounded, matching New.
func NewWithLimit(maxChainDepth int) *Future {
	return &Future{maxChainDepth: maxChainDepth}
}

// GetOrWait is the atomic check-and-register operation the controller
// exposes as get_or_wait: if the future is already resolved it returns
// the value; otherwise it registers cont and returns false.
func (f *Future) GetOrWait(cont Continuation) (resolved bool, value vm.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolved {
		return true, f.value
	}
	f.continuations = append(f.continuations, cont)
	return false, nil
}

// Lookup resolves a FutureHandle to the Future it names. The
// controller owns the worker-id -> Future map; Resolve takes it as a
// callback rather than holding a reference, so future never needs to
// import controller.
type Lookup func(vm.FutureHandle) *Future

// Notify is called once per continuation that becomes ready, after all
// of the relevant future locks have been released, so the controller
// is free to touch worker state (write the stack slot, clear the
// waiting flag, hand the worker back to the invoker) without holding
// any future's lock.
type Notify func(Continuation, vm.Value)

// Resolve implements the resolve(future, value) operation from the
// controller contract: if value is itself a FutureHandle, it chains
// (this future registers as chainedBy on the handle's Future) rather
// than resolving; once that inner future eventually resolves, the
// chain propagates automatically. A direct self-reference is always a
// cyclic-chain error; a longer chain is rejected the same way once it
// exceeds maxChainDepth hops (a future built via New has no limit).
// Resolving an already-resolved future is a ControllerError, per the
// Testable Properties idempotence requirement.
func (f *Future) Resolve(value vm.Value, lookup Lookup, notify Notify) error {
	f.mu.Lock()

	if f.resolved {
		f.mu.Unlock()
		return &vm.ExecError{Code: vm.E_CONTROLLER, Message: "future resolved twice"}
	}

	if handle, ok := value.(vm.FutureHandle); ok {
		inner := lookup(handle)
		if inner == f {
			f.mu.Unlock()
			return &vm.ExecError{Code: vm.E_CONTROLLER, Message: "cyclic future chain"}
		}
		inner.mu.Lock()
		if inner.resolved {
			innerValue := inner.value
			inner.mu.Unlock()
			f.mu.Unlock()
			return f.Resolve(innerValue, lookup, notify)
		}
		depth := inner.chainDepth + 1
		if f.maxChainDepth > 0 && depth > f.maxChainDepth {
			inner.mu.Unlock()
			f.mu.Unlock()
			return &vm.ExecError{Code: vm.E_CONTROLLER, Message: "future chain exceeds max chain depth"}
		}
		f.chainDepth = depth
		inner.chainedBy = append(inner.chainedBy, f)
		inner.mu.Unlock()
		f.mu.Unlock()
		return nil
	}

	f.resolved = true
	f.value = value
	continuations := f.continuations
	chained := f.chainedBy
	f.mu.Unlock()

	for _, cont := range continuations {
		notify(cont, value)
	}
	for _, cf := range chained {
		// value is concrete here (the resolved invariant guarantees a
		// resolved future's value is never itself a future handle), so
		// this recursive call always takes the plain-resolution path.
		cf.Resolve(value, lookup, notify)
	}
	return nil
}

// Resolved reports whether the future has a value yet, for inspection
// (CLI, tests) without going through GetOrWait's registration side
// effect.
func (f *Future) Resolved() (bool, vm.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolved, f.value
}
