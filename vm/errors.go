package vm

import "fmt"

// ErrorCode is the closed set of error kinds the VM can raise.
type ErrorCode int

const (
	E_NONE ErrorCode = iota
	E_COMPILE
	E_UNBOUND
	E_TYPE
	E_FUTURE_SHAPE
	E_BUDGET
	E_CONTROLLER
)

func (e ErrorCode) String() string {
	switch e {
	case E_NONE:
		return "E_NONE"
	case E_COMPILE:
		return "E_COMPILE"
	case E_UNBOUND:
		return "E_UNBOUND"
	case E_TYPE:
		return "E_TYPE"
	case E_FUTURE_SHAPE:
		return "E_FUTURE_SHAPE"
	case E_BUDGET:
		return "E_BUDGET"
	case E_CONTROLLER:
		return "E_CONTROLLER"
	default:
		return "E_UNKNOWN"
	}
}

// Message returns a human-readable description of the error kind.
func (e ErrorCode) Message() string {
	switch e {
	case E_NONE:
		return "no error"
	case E_COMPILE:
		return "malformed program"
	case E_UNBOUND:
		return "unbound symbol"
	case E_TYPE:
		return "type mismatch"
	case E_FUTURE_SHAPE:
		return "waiting on structured data containing futures"
	case E_BUDGET:
		return "step budget exceeded"
	case E_CONTROLLER:
		return "controller invariant violated"
	default:
		return "unknown error"
	}
}

// CompileError is raised by the compiler against malformed input. It is
// always fatal for the compilation unit.
type CompileError struct {
	Code    ErrorCode
	Message string
	Node    string // description of the offending AST node, for diagnostics
}

func (e *CompileError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ExecError is raised during the fetch-decode-execute loop. It always
// terminates the worker that raised it; the controller surfaces it as a
// session-level failure rather than letting it propagate as a Go panic.
type ExecError struct {
	Code     ErrorCode
	Message  string
	Value    Value
	IP       int
	WorkerID int64
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: %s (worker=%d ip=%d)", e.Code, e.Message, e.WorkerID, e.IP)
}

// NewExecError builds an ExecError using the code's default message.
func NewExecError(code ErrorCode, workerID int64, ip int) *ExecError {
	return &ExecError{Code: code, Message: code.Message(), WorkerID: workerID, IP: ip}
}
