package compiler

import (
	"testing"

	"loom/ast"
	"loom/vm"
)

func instrStrings(code []vm.Instruction) []string {
	out := make([]string, len(code))
	for i, instr := range code {
		out[i] = instr.String()
	}
	return out
}

func TestCompileCallAndAdd(t *testing.T) {
	f := ast.Binop{
		Op:   "=",
		Left: ast.Id{Name: "f"},
		Right: ast.Definition{
			Params: []string{"x"},
			Body:   []ast.Node{ast.Binop{Op: "+", Left: ast.Id{Name: "x"}, Right: ast.Literal{Value: 1.0}}},
		},
	}
	main := ast.Binop{
		Op:   "=",
		Left: ast.Id{Name: "main"},
		Right: ast.Definition{
			Body: []ast.Node{ast.Call{Callee: ast.Id{Name: "f"}, Args: []ast.Node{ast.Literal{Value: 41.0}}}},
		},
	}

	exec, err := Compile([]ast.Node{f, main})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	fEntry, ok := exec.Locations["f"]
	if !ok {
		t.Fatal("expected a location entry for f")
	}
	mainEntry, ok := exec.Locations["main"]
	if !ok {
		t.Fatal("expected a location entry for main")
	}

	// f's body: Bind x, then (rhs=1 lhs=x op=+ Call 2), then Return.
	// Binop "+" pushes rhs before lhs per the non-assignment lowering rule.
	wantF := []string{"Bind x", "PushV 1", "PushB x", "PushB +", "Call 2", "Return"}
	gotF := instrStrings(exec.Code[fEntry : fEntry+len(wantF)])
	for i := range wantF {
		if gotF[i] != wantF[i] {
			t.Errorf("f instruction %d = %q, want %q", i, gotF[i], wantF[i])
		}
	}

	wantMain := []string{"PushV 41", "PushB f", "Call 1", "Return"}
	gotMain := instrStrings(exec.Code[mainEntry : mainEntry+len(wantMain)])
	for i := range wantMain {
		if gotMain[i] != wantMain[i] {
			t.Errorf("main instruction %d = %q, want %q", i, gotMain[i], wantMain[i])
		}
	}
}

func TestCompileIfEmitsJumps(t *testing.T) {
	main := ast.Binop{
		Op:   "=",
		Left: ast.Id{Name: "main"},
		Right: ast.Definition{
			Body: []ast.Node{
				ast.If{
					Cond: ast.Call{Callee: ast.Id{Name: "="}, Args: []ast.Node{ast.Literal{Value: 1.0}, ast.Literal{Value: 1.0}}},
					Then: ast.Literal{Value: 10.0},
					Else: ast.Literal{Value: 20.0},
				},
			},
		},
	}
	exec, err := Compile([]ast.Node{main})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	entry := exec.Locations["main"]
	want := []string{
		"PushV 1", "PushV 1", "PushB =", "Call 2",
		"PushV true", "JumpIE +2",
		"PushV 20", "Jump +1",
		"PushV 10",
		"Return",
	}
	got := instrStrings(exec.Code[entry : entry+len(want)])
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("instruction %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCompileLocalAssignmentSkipsPop(t *testing.T) {
	main := ast.Binop{
		Op:   "=",
		Left: ast.Id{Name: "main"},
		Right: ast.Definition{
			Body: []ast.Node{
				ast.Binop{Op: "=", Left: ast.Id{Name: "a"}, Right: ast.Literal{Value: 1.0}},
				ast.Id{Name: "a"},
			},
		},
	}
	exec, err := Compile([]ast.Node{main})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	entry := exec.Locations["main"]
	want := []string{"PushV 1", "Bind a", "PushB a", "Return"}
	got := instrStrings(exec.Code[entry : entry+len(want)])
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("instruction %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCompileImportBindsForeign(t *testing.T) {
	imp := ast.Binop{
		Op:   "=",
		Left: ast.Id{Name: "hash"},
		Right: ast.Call{
			Callee: ast.Id{Name: "import"},
			Args:   []ast.Node{ast.Id{Name: "hash_sha256"}, ast.Id{Name: "crypto"}},
		},
	}
	exec, err := Compile([]ast.Node{imp})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	fp, ok := exec.Foreign["hash"]
	if !ok || fp.Name != "hash_sha256" || fp.Module != "crypto" {
		t.Errorf("Foreign[hash] = %+v, want hash_sha256/crypto", fp)
	}
}

func TestCompileRejectsNonAssignmentTopLevel(t *testing.T) {
	_, err := Compile([]ast.Node{ast.Literal{Value: 1.0}})
	if err == nil {
		t.Fatal("expected a CompileError for a bare top-level literal")
	}
	compileErr, ok := err.(*vm.CompileError)
	if !ok || compileErr.Code != vm.E_COMPILE {
		t.Errorf("expected E_COMPILE CompileError, got %v", err)
	}
}
