// Package probe implements the trace-event sink a Worker reports to.
// It plays the role the reference server's Tracer plays for verb
// calls, generalized to bytecode steps and worker lifecycle events.
package probe

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"

	"loom/vm"
)

var _ vm.Probe = (*Noop)(nil)
var _ vm.Probe = (*StepBudget)(nil)

// Noop discards every event, for library consumers that want a non-nil
// probe without tracing overhead. The controller's own default is no
// probe at all.
type Noop struct{}

func (Noop) OnStep(int64, int)              {}
func (Noop) OnRun(int64)                    {}
func (Noop) OnStopped(int64, bool)          {}
func (Noop) OnEnter(int64, string)          {}
func (Noop) OnReturn(int64)                 {}
func (Noop) Log(string)                     {}
func (Noop) EarlyStop(int64, int) bool      { return false }

// StepBudget mirrors the original LocalProbe: it counts steps per
// worker and can impose a maximum, and additionally supports the
// reference tracer's name-glob filtering and stdlib log.Logger output.
type StepBudget struct {
	MaxSteps int // 0 = unlimited

	mu      sync.Mutex
	steps   map[int64]int
	filters []string
	logger  *log.Logger
}

// NewStepBudget returns a StepBudget with the given per-worker step
// ceiling (0 = unlimited), optional name-glob filters restricting which
// function entries get logged, and a writer for human-readable traces
// (nil disables logging but keeps the budget enforcement).
func NewStepBudget(maxSteps int, filters []string, w io.Writer) *StepBudget {
	var logger *log.Logger
	if w != nil {
		logger = log.New(w, "", log.LstdFlags)
	}
	return &StepBudget{
		MaxSteps: maxSteps,
		steps:    make(map[int64]int),
		filters:  filters,
		logger:   logger,
	}
}

func (p *StepBudget) matches(name string) bool {
	if len(p.filters) == 0 {
		return true
	}
	for _, pat := range p.filters {
		if ok, _ := filepath.Match(pat, name); ok {
			return true
		}
	}
	return false
}

func (p *StepBudget) OnStep(workerID int64, ip int) {
	p.mu.Lock()
	p.steps[workerID]++
	p.mu.Unlock()
}

func (p *StepBudget) EarlyStop(workerID int64, ip int) bool {
	if p.MaxSteps <= 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.steps[workerID] >= p.MaxSteps
}

func (p *StepBudget) OnRun(workerID int64) {
	if p.logger != nil {
		p.logger.Printf("worker %d: run", workerID)
	}
}

func (p *StepBudget) OnStopped(workerID int64, waiting bool) {
	if p.logger == nil {
		return
	}
	if waiting {
		p.logger.Printf("worker %d: suspended, waiting on a future", workerID)
	} else {
		p.logger.Printf("worker %d: stopped", workerID)
	}
}

func (p *StepBudget) OnEnter(workerID int64, callee string) {
	if p.logger != nil && p.matches(callee) {
		p.logger.Printf("worker %d: call %s", workerID, callee)
	}
}

func (p *StepBudget) OnReturn(workerID int64) {
	if p.logger != nil {
		p.logger.Printf("worker %d: return", workerID)
	}
}

func (p *StepBudget) Log(text string) {
	if p.logger != nil {
		p.logger.Print(text)
	}
}

// Spawned and Resumed distinguish a brand-new forked worker from one
// resumed after a future resolved, mirroring the reference probe's
// distinction in its log output. Neither is part of vm.Probe (the
// worker's own execution loop has no notion of "freshly spawned" vs.
// "resumed" — that distinction only exists at the controller); callers
// that want it log through these directly.
func (p *StepBudget) Spawned(workerID int64, fn string) {
	if p.logger != nil {
		p.logger.Printf("worker %d: spawned running %s", workerID, fn)
	}
}

func (p *StepBudget) Resumed(workerID int64) {
	if p.logger != nil {
		p.logger.Printf("worker %d: resumed", workerID)
	}
}

// String is handy in test failure messages.
func (p *StepBudget) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("StepBudget{max=%d, tracked=%d}", p.MaxSteps, len(p.steps))
}
