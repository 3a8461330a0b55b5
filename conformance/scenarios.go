package conformance

import "loom/ast"

// Builders maps a scenario name (matched against testdata/*.yaml) to
// the Go function that constructs its AST. Spec.md's end-to-end
// scenarios are explicit that "source syntax illustrative; test via
// AST" — there is no surface parser in scope, so the programs live
// here instead of in the YAML files.
var Builders = map[string]Builder{
	"call-and-add":        buildCallAndAdd,
	"if-true-branch":      buildIfTrue,
	"if-false-branch":     buildIfFalse,
	"async-await-square":  buildAsyncAwaitSquare,
	"two-independent-futures": buildTwoIndependentFutures,
	"list-conc-first-rest": buildListConcFirstRest,
	"chained-future":      buildChainedFuture,
}

func num(n float64) ast.Literal { return ast.Literal{Value: n} }

// f = fn(x){ x + 1 }; main = fn(){ f(41) } -> 42
func buildCallAndAdd() []ast.Node {
	f := ast.Binop{
		Op:   "=",
		Left: ast.Id{Name: "f"},
		Right: ast.Definition{
			Params: []string{"x"},
			Body:   []ast.Node{ast.Binop{Op: "+", Left: ast.Id{Name: "x"}, Right: num(1)}},
		},
	}
	main := ast.Binop{
		Op:   "=",
		Left: ast.Id{Name: "main"},
		Right: ast.Definition{
			Body: []ast.Node{ast.Call{Callee: ast.Id{Name: "f"}, Args: []ast.Node{num(41)}}},
		},
	}
	return []ast.Node{f, main}
}

func ifScenario(condOp string, rhs float64) []ast.Node {
	main := ast.Binop{
		Op:   "=",
		Left: ast.Id{Name: "main"},
		Right: ast.Definition{
			Body: []ast.Node{
				ast.If{
					Cond: ast.Call{Callee: ast.Id{Name: condOp}, Args: []ast.Node{num(1), num(rhs)}},
					Then: num(10),
					Else: num(20),
				},
			},
		},
	}
	return []ast.Node{main}
}

// main = fn(){ if (1 = 1) 10 else 20 } -> 10
func buildIfTrue() []ast.Node { return ifScenario("=", 1) }

// main = fn(){ if (1 = 2) 10 else 20 } -> 20
func buildIfFalse() []ast.Node { return ifScenario("=", 2) }

// f = fn(x){ x*x }; main = fn(){ await async f(2) } -> 4, two workers
func buildAsyncAwaitSquare() []ast.Node {
	f := ast.Binop{
		Op:   "=",
		Left: ast.Id{Name: "f"},
		Right: ast.Definition{
			Params: []string{"x"},
			Body:   []ast.Node{ast.Binop{Op: "*", Left: ast.Id{Name: "x"}, Right: ast.Id{Name: "x"}}},
		},
	}
	main := ast.Binop{
		Op:   "=",
		Left: ast.Id{Name: "main"},
		Right: ast.Definition{
			Body: []ast.Node{
				ast.Await{Expr: ast.Call{Callee: ast.Id{Name: "f"}, Args: []ast.Node{num(2)}, Async: true}},
			},
		},
	}
	return []ast.Node{f, main}
}

// slow = fn(x){ x };
// main = fn(){ a = async slow(1); b = async slow(2); await a + await b } -> 3
func buildTwoIndependentFutures() []ast.Node {
	slow := ast.Binop{
		Op:   "=",
		Left: ast.Id{Name: "slow"},
		Right: ast.Definition{
			Params: []string{"x"},
			Body:   []ast.Node{ast.Id{Name: "x"}},
		},
	}
	main := ast.Binop{
		Op:   "=",
		Left: ast.Id{Name: "main"},
		Right: ast.Definition{
			Body: []ast.Node{
				ast.Binop{Op: "=", Left: ast.Id{Name: "a"}, Right: ast.Call{Callee: ast.Id{Name: "slow"}, Args: []ast.Node{num(1)}, Async: true}},
				ast.Binop{Op: "=", Left: ast.Id{Name: "b"}, Right: ast.Call{Callee: ast.Id{Name: "slow"}, Args: []ast.Node{num(2)}, Async: true}},
				ast.Binop{Op: "+", Left: ast.Await{Expr: ast.Id{Name: "a"}}, Right: ast.Await{Expr: ast.Id{Name: "b"}}},
			},
		},
	}
	return []ast.Node{slow, main}
}

// main = fn(){ conc(1, conc(2, null)) } -> [1, 2]
func buildListConcFirstRest() []ast.Node {
	inner := ast.Call{Callee: ast.Id{Name: "conc"}, Args: []ast.Node{num(2), ast.Literal{Value: nil}}}
	main := ast.Binop{
		Op:   "=",
		Left: ast.Id{Name: "main"},
		Right: ast.Definition{
			Body: []ast.Node{ast.Call{Callee: ast.Id{Name: "conc"}, Args: []ast.Node{num(1), inner}}},
		},
	}
	return []ast.Node{main}
}

// slow = fn(x){ x };
// a = fn(){ async slow(5) };           -- a's result is itself a future handle
// main = fn(){ await async a() } -> 5, exercising chained-future resolution
func buildChainedFuture() []ast.Node {
	slow := ast.Binop{
		Op:   "=",
		Left: ast.Id{Name: "slow"},
		Right: ast.Definition{
			Params: []string{"x"},
			Body:   []ast.Node{ast.Id{Name: "x"}},
		},
	}
	a := ast.Binop{
		Op:   "=",
		Left: ast.Id{Name: "a"},
		Right: ast.Definition{
			Body: []ast.Node{ast.Call{Callee: ast.Id{Name: "slow"}, Args: []ast.Node{num(5)}, Async: true}},
		},
	}
	main := ast.Binop{
		Op:   "=",
		Left: ast.Id{Name: "main"},
		Right: ast.Definition{
			Body: []ast.Node{
				ast.Await{Expr: ast.Call{Callee: ast.Id{Name: "a"}, Args: nil, Async: true}},
			},
		},
	}
	return []ast.Node{slow, a, main}
}
