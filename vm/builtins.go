package vm

import "fmt"

// Builtins names every primitive callable through the Call protocol via
// an InstructionRef (spec §4.B). Binding precedence checks this table
// last, after locals, function locations, and foreign symbols.
var Builtins = map[string]bool{
	"=":     true,
	"+":     true,
	"*":     true,
	"list":  true,
	"conc":  true,
	"first": true,
	"rest":  true,
	"nth":   true,
	"atomp": true,
	"nullp": true,
	"print": true,
}

// CallBuiltin executes the named primitive against args (in source
// order, i.e. already un-reversed from the stack) and returns its
// result. out receives anything printed by "print".
func CallBuiltin(name string, args []Value, out *[]string) (Value, error) {
	switch name {
	case "=":
		if len(args) != 2 {
			return nil, fmt.Errorf("= takes 2 arguments, got %d", len(args))
		}
		return Bool(args[0].Equal(args[1])), nil

	case "+":
		a, ok1 := args[0].(Number)
		b, ok2 := args[1].(Number)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("+ requires two numbers")
		}
		return a + b, nil

	case "*":
		a, ok1 := args[0].(Number)
		b, ok2 := args[1].(Number)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("* requires two numbers")
		}
		return a * b, nil

	case "list":
		return NewList(args), nil

	case "conc":
		if len(args) != 2 {
			return nil, fmt.Errorf("conc takes 2 arguments, got %d", len(args))
		}
		head := args[0]
		var tail List
		switch t := args[1].(type) {
		case nullType:
			tail = NewList(nil)
		case List:
			tail = t
		default:
			return nil, fmt.Errorf("conc: second argument must be a list or null, got %s", args[1].Kind())
		}
		// A list-headed conc concatenates (the original's "a + b" path);
		// an atom-headed conc prepends (its "[a] + b" fallback).
		switch h := head.(type) {
		case List:
			return NewList(append(append([]Value{}, h.Elements()...), tail.Elements()...)), nil
		default:
			return Cons(head, tail), nil
		}

	case "first":
		l, ok := args[0].(List)
		if !ok || l.Len() == 0 {
			return nil, fmt.Errorf("first: argument must be a non-empty list")
		}
		return l.First(), nil

	case "rest":
		l, ok := args[0].(List)
		if !ok {
			return nil, fmt.Errorf("rest: argument must be a list")
		}
		return l.Rest(), nil

	case "nth":
		l, ok := args[0].(List)
		n, ok2 := args[1].(Number)
		if !ok || !ok2 {
			return nil, fmt.Errorf("nth: requires a list and a number")
		}
		idx := int(n)
		if idx < 0 || idx >= l.Len() {
			return nil, fmt.Errorf("nth: index %d out of range", idx)
		}
		return l.Elements()[idx], nil

	case "atomp":
		_, isList := args[0].(List)
		return Bool(!isList), nil

	case "nullp":
		switch t := args[0].(type) {
		case nullType:
			return Bool(true), nil
		case List:
			return Bool(t.Len() == 0), nil
		default:
			return Bool(false), nil
		}

	case "print":
		if out != nil {
			*out = append(*out, args[0].String())
		}
		return Nil, nil

	default:
		return nil, fmt.Errorf("unknown builtin %q", name)
	}
}
