// Package compiler lowers an already-parsed AST into a bytecode
// Executable. Producing the AST itself (parsing source text) is out of
// scope; this package only consumes the node kinds ast.Node defines.
package compiler

import (
	"fmt"

	"loom/ast"
	"loom/vm"
)

// Compiler accumulates a single flat code vector shared by every
// compiled function, plus the location/binding/foreign tables that
// round it out into a vm.Executable.
type Compiler struct {
	exec    *vm.Executable
	nextFn  int
}

// New returns a Compiler ready to compile a list of top-level forms.
func New() *Compiler {
	return &Compiler{exec: vm.NewExecutable()}
}

// Compile lowers top-level forms into a vm.Executable. Each form must be
// a Binop "=" whose left side is an Id and whose right side is either a
// Definition (bound as a FunctionPtr) or an import(name, module)-shaped
// Call (bound as a ForeignPtr); anything else is a CompileError.
func Compile(forms []ast.Node) (*vm.Executable, error) {
	c := New()
	for _, form := range forms {
		if err := c.compileToplevel(form); err != nil {
			return nil, err
		}
	}
	return c.exec, nil
}

func (c *Compiler) compileToplevel(form ast.Node) error {
	binop, ok := form.(ast.Binop)
	if !ok || binop.Op != "=" {
		return &vm.CompileError{Code: vm.E_COMPILE, Message: "top-level forms must be assignments", Node: fmt.Sprintf("%T", form)}
	}
	lhs, ok := binop.Left.(ast.Id)
	if !ok {
		return &vm.CompileError{Code: vm.E_COMPILE, Message: "top-level assignment target must be an identifier", Node: fmt.Sprintf("%T", binop.Left)}
	}

	switch rhs := binop.Right.(type) {
	case ast.Definition:
		entry, err := c.compileFunction(lhs.Name, rhs)
		if err != nil {
			return err
		}
		c.exec.Locations[lhs.Name] = entry
		fp := vm.FunctionPtr{Name: lhs.Name}
		c.exec.Bindings[vm.Symbol(lhs.Name)] = fp
		return nil

	case ast.Call:
		name, module, ok := matchImport(rhs)
		if !ok {
			return &vm.CompileError{Code: vm.E_COMPILE, Message: "top-level call must be an import(...) form", Node: "Call"}
		}
		fp := vm.ForeignPtr{Name: name, Module: module}
		c.exec.Foreign[vm.Symbol(lhs.Name)] = fp
		c.exec.Bindings[vm.Symbol(lhs.Name)] = fp
		return nil

	default:
		return &vm.CompileError{Code: vm.E_COMPILE, Message: "top-level assignment rhs must be a function definition or an import", Node: fmt.Sprintf("%T", rhs)}
	}
}

// matchImport recognizes the import(id, module)-shaped call: two
// arguments, each either an identifier or a string literal.
func matchImport(call ast.Call) (name, module string, ok bool) {
	callee, isID := call.Callee.(ast.Id)
	if !isID || callee.Name != "import" || len(call.Args) != 2 {
		return "", "", false
	}
	nameNode, ok1 := asIdentOrString(call.Args[0])
	moduleNode, ok2 := asIdentOrString(call.Args[1])
	if !ok1 || !ok2 {
		return "", "", false
	}
	return nameNode, moduleNode, true
}

func asIdentOrString(n ast.Node) (string, bool) {
	switch t := n.(type) {
	case ast.Id:
		return t.Name, true
	case ast.Literal:
		if s, ok := t.Value.(string); ok {
			return s, true
		}
	}
	return "", false
}

// compileFunction lowers a Definition's body: Bind per parameter in
// reverse declaration order (each Bind already pops one argument),
// then the compiled body, then Return. It returns the entry index into
// the shared code vector.
func (c *Compiler) compileFunction(name string, def ast.Definition) (int, error) {
	var body []vm.Instruction
	for i := len(def.Params) - 1; i >= 0; i-- {
		body = append(body, vm.Bind{Symbol: vm.Symbol(def.Params[i])})
	}
	bodyCode, err := c.compileProgn(def.Body)
	if err != nil {
		return 0, err
	}
	body = append(body, bodyCode...)
	body = append(body, vm.Return{})

	entry := len(c.exec.Code)
	c.exec.Code = append(c.exec.Code, body...)
	_ = name // name is only used by the caller for Locations/Bindings
	return entry, nil
}

// compileProgn compiles a sequence where every non-final expression's
// value is discarded.
func (c *Compiler) compileProgn(body []ast.Node) ([]vm.Instruction, error) {
	var out []vm.Instruction
	for i, n := range body {
		code, err := c.compileExpr(n)
		if err != nil {
			return nil, err
		}
		out = append(out, code...)
		// A local "=" assignment's Bind already consumes its rhs, so it
		// leaves nothing on the stack to discard; every other form
		// leaves exactly one value, which a non-final statement's
		// result must be popped.
		if i != len(body)-1 && !isLocalAssignment(n) {
			out = append(out, vm.Pop{})
		}
	}
	if len(body) == 0 {
		out = append(out, vm.PushV{Value: vm.Nil})
	}
	return out, nil
}

func isLocalAssignment(n ast.Node) bool {
	b, ok := n.(ast.Binop)
	return ok && b.Op == "="
}

func (c *Compiler) compileExpr(n ast.Node) ([]vm.Instruction, error) {
	switch node := n.(type) {
	case ast.Literal:
		v, err := literalValue(node.Value)
		if err != nil {
			return nil, err
		}
		return []vm.Instruction{vm.PushV{Value: v}}, nil

	case ast.Id:
		return []vm.Instruction{vm.PushB{Symbol: vm.Symbol(node.Name)}}, nil

	case ast.Progn:
		return c.compileProgn(node.Body)

	case ast.Argument:
		return c.compileExpr(node.Value)

	case ast.Await:
		switch node.Expr.(type) {
		case ast.Call, ast.Id:
		default:
			return nil, &vm.CompileError{Code: vm.E_COMPILE, Message: "await operand must be a call or identifier", Node: fmt.Sprintf("%T", node.Expr)}
		}
		operand, err := c.compileExpr(node.Expr)
		if err != nil {
			return nil, err
		}
		return append(operand, vm.Wait{Offset: 0}), nil

	case ast.If:
		return c.compileIf(node)

	case ast.Binop:
		return c.compileBinop(node)

	case ast.Call:
		return c.compileCall(node)

	case ast.Definition:
		// A nested function literal: compiled into its own entry in the
		// shared code vector and referenced by a fresh, unique name so
		// it can't collide with a top-level definition. Captures are
		// left empty; see the closure design note for the general
		// mechanism this leaves room for.
		c.nextFn++
		fnName := fmt.Sprintf("#%d:<anonymous>", c.nextFn)
		entry, err := c.compileFunction(fnName, node)
		if err != nil {
			return nil, err
		}
		c.exec.Locations[fnName] = entry
		return []vm.Instruction{vm.PushV{Value: vm.FunctionPtr{Name: fnName}}}, nil

	default:
		return nil, &vm.CompileError{Code: vm.E_COMPILE, Message: "unsupported expression", Node: fmt.Sprintf("%T", n)}
	}
}

func (c *Compiler) compileCall(call ast.Call) ([]vm.Instruction, error) {
	var out []vm.Instruction
	for _, arg := range call.Args {
		code, err := c.compileExpr(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, code...)
	}
	calleeCode, err := c.compileExpr(call.Callee)
	if err != nil {
		return nil, err
	}
	out = append(out, calleeCode...)
	if call.Async {
		out = append(out, vm.ACall{N: len(call.Args)})
	} else {
		out = append(out, vm.Call{N: len(call.Args)})
	}
	return out, nil
}

func (c *Compiler) compileIf(n ast.If) ([]vm.Instruction, error) {
	cond, err := c.compileExpr(n.Cond)
	if err != nil {
		return nil, err
	}
	var elseNode ast.Node = n.Else
	if elseNode == nil {
		elseNode = ast.Literal{Value: nil}
	}
	elsCode, err := c.compileExpr(elseNode)
	if err != nil {
		return nil, err
	}
	thenCode, err := c.compileExpr(n.Then)
	if err != nil {
		return nil, err
	}

	var out []vm.Instruction
	out = append(out, cond...)
	out = append(out, vm.PushV{Value: vm.Bool(true)})
	out = append(out, vm.JumpIE{Delta: len(elsCode) + 1})
	out = append(out, elsCode...)
	out = append(out, vm.Jump{Delta: len(thenCode)})
	out = append(out, thenCode...)
	return out, nil
}

func (c *Compiler) compileBinop(n ast.Binop) ([]vm.Instruction, error) {
	if n.Op == "=" {
		lhs, ok := n.Left.(ast.Id)
		if !ok {
			return nil, &vm.CompileError{Code: vm.E_COMPILE, Message: "assignment target must be an identifier", Node: fmt.Sprintf("%T", n.Left)}
		}
		rhs, err := c.compileExpr(n.Right)
		if err != nil {
			return nil, err
		}
		return append(rhs, vm.Bind{Symbol: vm.Symbol(lhs.Name)}), nil
	}

	rhs, err := c.compileExpr(n.Right)
	if err != nil {
		return nil, err
	}
	lhs, err := c.compileExpr(n.Left)
	if err != nil {
		return nil, err
	}
	var out []vm.Instruction
	out = append(out, rhs...)
	out = append(out, lhs...)
	out = append(out, vm.PushB{Symbol: vm.Symbol(n.Op)})
	out = append(out, vm.Call{N: 2})
	return out, nil
}

// literalValue converts a parsed host literal to a vm.Value. The
// compiler is the only place this conversion happens (§4.A).
func literalValue(v any) (vm.Value, error) {
	switch t := v.(type) {
	case nil:
		return vm.Nil, nil
	case float64:
		return vm.Number(t), nil
	case int:
		return vm.Number(float64(t)), nil
	case string:
		return vm.String(t), nil
	case bool:
		return vm.Bool(t), nil
	default:
		return nil, &vm.CompileError{Code: vm.E_COMPILE, Message: fmt.Sprintf("unsupported literal host type %T", v)}
	}
}
