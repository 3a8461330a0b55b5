// Package controller implements the shared, concurrency-safe
// coordinator from spec.md §4.F: it owns every worker's state, the
// futures they produce, and the immutable executable they all run
// against, and dispatches workers to an Invoker.
package controller

import (
	"fmt"
	"sync"
	"sync/atomic"

	"loom/config"
	"loom/future"
	"loom/hostlib"
	"loom/invoker"
	"loom/session"
	"loom/vm"
)

// Controller is the analog of the reference's task Manager and
// scheduler combined into the single coordinator spec.md describes:
// one component owning worker lifecycle, future resolution, and
// dispatch to the invoker.
type Controller struct {
	exec *vm.Executable

	mu      sync.RWMutex
	workers map[int64]*vm.Worker
	futures map[int64]*future.Future
	probes  map[int64]vm.Probe

	nextID int64

	invoker  invoker.Invoker
	registry hostlib.Registry
	store    session.Store

	probeFactory  func(workerID int64) vm.Probe
	maxChainDepth int

	topLevelID int64
	done       chan struct{}
	finishOnce sync.Once

	resultMu sync.Mutex
	result   vm.Value
	err      error
}

var _ vm.Host = (*Controller)(nil)

// Option configures a Controller at construction time.
type Option func(*Controller)

// WithInvoker overrides the default goroutine-based Invoker.
func WithInvoker(inv invoker.Invoker) Option {
	return func(c *Controller) { c.invoker = inv }
}

// WithStore attaches a session store for write-behind snapshots.
func WithStore(store session.Store) Option {
	return func(c *Controller) { c.store = store }
}

// WithProbeFactory supplies a per-worker vm.Probe (step budgets,
// tracing). The default is vm.Probe(nil), i.e. no tracing.
func WithProbeFactory(factory func(workerID int64) vm.Probe) Option {
	return func(c *Controller) { c.probeFactory = factory }
}

// WithHostModules overrides the default hostlib registry (crypto
// only) with a caller-supplied one.
func WithHostModules(registry hostlib.Registry) Option {
	return func(c *Controller) { c.registry = registry }
}

// WithMaxChainDepth overrides the default bound on how many hops a
// future chain may take before resolve treats it as a likely cycle.
// 0 means unbounded.
func WithMaxChainDepth(n int) Option {
	return func(c *Controller) { c.maxChainDepth = n }
}

// New returns a Controller over exec, ready to spawn its top-level
// worker via Start.
func New(exec *vm.Executable, opts ...Option) *Controller {
	c := &Controller{
		exec:          exec,
		workers:       make(map[int64]*vm.Worker),
		futures:       make(map[int64]*future.Future),
		probes:        make(map[int64]vm.Probe),
		invoker:       invoker.Goroutine{},
		registry:      hostlib.NewRegistry(),
		done:          make(chan struct{}),
		maxChainDepth: config.DefaultSessionConfig().MaxChainDepth,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start creates the top-level worker running fn with args and invokes
// it synchronously up to its first stop, per new_machine/invoke. It
// does not block until the whole program finishes; call Wait for that.
func Start(exec *vm.Executable, fn string, args []vm.Value, opts ...Option) (*Controller, error) {
	c := New(exec, opts...)
	id, err := c.NewMachine(args, fn, true)
	if err != nil {
		return nil, err
	}
	c.topLevelID = id
	c.Dispatch(id, false)
	return c, nil
}

// NewMachine allocates a worker with its initial data stack containing
// args (leftmost at the bottom) and its instruction pointer at fn's
// entry, and a fresh future for its eventual result.
func (c *Controller) NewMachine(args []vm.Value, fn string, isTopLevel bool) (int64, error) {
	id := atomic.AddInt64(&c.nextID, 1)
	var probe vm.Probe
	if c.probeFactory != nil {
		probe = c.probeFactory(id)
	}
	w, err := vm.NewWorker(id, c.exec, fn, args, c, probe)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.workers[id] = w
	c.futures[id] = future.NewWithLimit(c.maxChainDepth)
	c.probes[id] = probe
	c.mu.Unlock()
	return id, nil
}

// Dispatch hands workerID to the invoker. If runAsync is false the call
// blocks until the worker next stops. This is the public, two-argument
// form of the controller contract's invoke(worker-id, run_async); the
// single-argument Invoke method below implements vm.Host for ACall,
// which always schedules asynchronously.
func (c *Controller) Dispatch(workerID int64, runAsync bool) {
	c.invoker.Invoke(workerID, runAsync, c.runWorker)
}

// Invoke implements vm.Host: ACall always schedules the new worker
// asynchronously.
func (c *Controller) Invoke(workerID int64) {
	c.Dispatch(workerID, true)
}

func (c *Controller) runWorker(workerID int64) {
	defer func() {
		if r := recover(); r != nil {
			c.fail(&vm.ExecError{Code: vm.E_CONTROLLER, Message: fmt.Sprintf("worker panicked: %v", r), WorkerID: workerID})
		}
	}()
	c.mu.RLock()
	w, ok := c.workers[workerID]
	c.mu.RUnlock()
	if !ok {
		return
	}
	if err := w.Run(); err != nil {
		c.fail(err)
	}
	if c.store != nil {
		c.store.Save(session.Snapshot{
			WorkerID: w.ID,
			IP:       w.IP,
			Stack:    append([]vm.Value{}, w.Stack...),
			Stopped:  w.Stopped,
			Waiting:  w.Waiting,
		})
	}
}

func (c *Controller) fail(err error) {
	c.resultMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.resultMu.Unlock()
	c.finishOnce.Do(func() { close(c.done) })
}

// Spawn implements vm.Host: it is ACall's entry point into the
// controller, creating a new worker for an asynchronous call. It does
// not schedule the worker; ACall does that through Invoke.
func (c *Controller) Spawn(args []vm.Value, fnName string) (int64, error) {
	id, err := c.NewMachine(args, fnName, false)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CallForeign implements vm.Host by resolving ptr against the host
// module registry.
func (c *Controller) CallForeign(ptr vm.ForeignPtr, args []vm.Value) (vm.Value, error) {
	return c.registry.Call(ptr, args)
}

// GetOrWait implements vm.Host's half of get_or_wait: it is called
// from inside a Wait instruction on the waiting worker's own goroutine.
func (c *Controller) GetOrWait(waiterID int64, handle vm.FutureHandle, offset int) (bool, vm.Value) {
	f := c.futureFor(handle.WorkerID)
	return f.GetOrWait(future.Continuation{WorkerID: waiterID, Offset: offset})
}

func (c *Controller) futureFor(workerID int64) *future.Future {
	c.mu.Lock()
	f, ok := c.futures[workerID]
	if !ok {
		f = future.NewWithLimit(c.maxChainDepth)
		c.futures[workerID] = f
	}
	c.mu.Unlock()
	return f
}

func (c *Controller) lookup(handle vm.FutureHandle) *future.Future {
	return c.futureFor(handle.WorkerID)
}

// Finish implements vm.Host: it marks workerID's result future
// resolved with value, propagating continuations and chains per
// future.Resolve, and records the session result if workerID is the
// top-level worker.
func (c *Controller) Finish(workerID int64, value vm.Value) {
	f := c.futureFor(workerID)
	err := f.Resolve(value, c.lookup, c.notify)
	if err != nil {
		c.fail(err)
		return
	}
	if workerID == c.topLevelID {
		c.resultMu.Lock()
		c.result = value
		c.resultMu.Unlock()
		c.finishOnce.Do(func() { close(c.done) })
	}
}

// notify is future.Notify: for each continuation that becomes ready,
// write the value into the waiting worker's stack slot, clear its
// waiting flag, and hand it back to the invoker.
func (c *Controller) notify(cont future.Continuation, value vm.Value) {
	c.mu.RLock()
	w, ok := c.workers[cont.WorkerID]
	c.mu.RUnlock()
	if !ok {
		c.fail(fmt.Errorf("controller: continuation for unknown worker %d", cont.WorkerID))
		return
	}
	if err := w.SetFutureValue(cont.Offset, value); err != nil {
		c.fail(err)
		return
	}
	w.Resume()
	c.Invoke(w.ID)
}

// Wait blocks until the top-level worker finishes (successfully or
// with an error) and returns its result.
func (c *Controller) Wait() (vm.Value, error) {
	<-c.done
	c.resultMu.Lock()
	defer c.resultMu.Unlock()
	return c.result, c.err
}

// Finished reports whether the top-level worker has produced a result
// or a session-ending error yet.
func (c *Controller) Finished() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Result returns the top-level result once Finished is true; it is the
// zero Value until then.
func (c *Controller) Result() vm.Value {
	c.resultMu.Lock()
	defer c.resultMu.Unlock()
	return c.result
}

// GetProbe returns the trace-event sink registered for workerID, or
// nil if none was configured.
func (c *Controller) GetProbe(workerID int64) vm.Probe {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.probes[workerID]
}

// Stdout returns the accumulated "print" output for workerID.
func (c *Controller) Stdout(workerID int64) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.workers[workerID]
	if !ok {
		return nil
	}
	return append([]string{}, w.Output...)
}
