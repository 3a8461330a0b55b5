package conformance

import (
	"fmt"
	"time"

	"loom/ast"
	"loom/compiler"
	"loom/controller"
	"loom/vm"
)

// Builder produces the AST for a named scenario. Scenarios register
// their builder in scenarios.go; LoadDir only supplies the name and
// expectation, since source syntax is out of scope for the core (see
// Scenario's doc comment).
type Builder func() []ast.Node

// Result is the outcome of running one scenario.
type Result struct {
	Scenario LoadedScenario
	Passed   bool
	Got      vm.Value
	GotErr   error
	Reason   string
}

// Run compiles and executes the program build produces, then checks it
// against scenario's expectation.
func Run(scenario LoadedScenario, build Builder) Result {
	forms := build()
	exec, err := compiler.Compile(forms)
	if err != nil {
		return checkError(scenario, err)
	}

	ctl, err := controller.Start(exec, "main", nil)
	if err != nil {
		return checkError(scenario, err)
	}

	result, waitErr := waitWithTimeout(ctl, 2*time.Second)
	if waitErr != nil {
		return checkError(scenario, waitErr)
	}

	exp := scenario.Scenario.Expect
	if exp.Error != "" {
		return Result{Scenario: scenario, Passed: false, Got: result, Reason: "expected an error but the program succeeded"}
	}
	if exp.Value != nil && !valueMatches(result, exp.Value) {
		return Result{Scenario: scenario, Passed: false, Got: result, Reason: fmt.Sprintf("expected %v, got %s", exp.Value, result.String())}
	}
	return Result{Scenario: scenario, Passed: true, Got: result}
}

func checkError(scenario LoadedScenario, err error) Result {
	exp := scenario.Scenario.Expect
	if exp.Error == "" {
		return Result{Scenario: scenario, Passed: false, GotErr: err, Reason: fmt.Sprintf("unexpected error: %v", err)}
	}
	code := errorCode(err)
	if code != exp.Error {
		return Result{Scenario: scenario, Passed: false, GotErr: err, Reason: fmt.Sprintf("expected error %s, got %s (%v)", exp.Error, code, err)}
	}
	return Result{Scenario: scenario, Passed: true, GotErr: err}
}

func errorCode(err error) string {
	switch e := err.(type) {
	case *vm.CompileError:
		return e.Code.String()
	case *vm.ExecError:
		return e.Code.String()
	default:
		return ""
	}
}

func waitWithTimeout(ctl *controller.Controller, d time.Duration) (vm.Value, error) {
	type outcome struct {
		v   vm.Value
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := ctl.Wait()
		ch <- outcome{v, err}
	}()
	select {
	case o := <-ch:
		return o.v, o.err
	case <-time.After(d):
		return nil, fmt.Errorf("scenario timed out after %s", d)
	}
}

// valueMatches compares a vm.Value against a YAML-decoded expectation
// (float64, string, bool, or []any for lists).
func valueMatches(got vm.Value, want any) bool {
	switch w := want.(type) {
	case float64:
		n, ok := got.(vm.Number)
		return ok && float64(n) == w
	case int:
		n, ok := got.(vm.Number)
		return ok && float64(n) == float64(w)
	case string:
		s, ok := got.(vm.String)
		return ok && string(s) == w
	case bool:
		b, ok := got.(vm.Bool)
		return ok && bool(b) == w
	case []any:
		l, ok := got.(vm.List)
		if !ok || l.Len() != len(w) {
			return false
		}
		for i, elem := range l.Elements() {
			if !valueMatches(elem, w[i]) {
				return false
			}
		}
		return true
	case nil:
		return got == vm.Nil
	default:
		return false
	}
}
