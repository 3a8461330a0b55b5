package conformance

// Scenario is one YAML-described end-to-end test. The program itself
// is built from ast.Node by a matching Go builder in scenarios.go —
// spec.md's testable properties are explicit that end-to-end scenarios
// are "source syntax illustrative; test via AST", so YAML here only
// carries the name and the expectation, not a surface-syntax program.
type Scenario struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Expect      Expectation `yaml:"expect"`
}

// Suite is one YAML file: a named group of scenarios.
type Suite struct {
	Name      string     `yaml:"name"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// Expectation is what running a scenario's program must produce. Run
// checks Value and Error; WorkerCount is loaded from the fixture but Run
// does not check it.
type Expectation struct {
	Value       any    `yaml:"value,omitempty"`
	Error       string `yaml:"error,omitempty"` // a vm.ErrorCode name, e.g. "E_TYPE"
	WorkerCount int    `yaml:"worker_count,omitempty"`
}
