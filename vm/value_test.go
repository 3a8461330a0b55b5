package vm

import "testing"

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"false", Bool(false), false},
		{"true", Bool(true), true},
		{"null", Nil, false},
		{"zero number", Number(0), true},
		{"empty list", NewList(nil), true},
		{"string", String(""), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truthy(tt.v); got != tt.want {
				t.Errorf("Truthy(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestListConsFirstRest(t *testing.T) {
	l := Cons(Number(1), Cons(Number(2), NewList(nil)))
	if l.Len() != 2 {
		t.Fatalf("expected length 2, got %d", l.Len())
	}
	if !l.First().Equal(Number(1)) {
		t.Errorf("First() = %v, want 1", l.First())
	}
	rest := l.Rest()
	if rest.Len() != 1 || !rest.First().Equal(Number(2)) {
		t.Errorf("Rest() = %v, want [2]", rest)
	}
}

func TestListEqual(t *testing.T) {
	a := NewList([]Value{Number(1), String("x")})
	b := NewList([]Value{Number(1), String("x")})
	c := NewList([]Value{Number(1), String("y")})
	if !a.Equal(b) {
		t.Error("expected equal lists to compare equal")
	}
	if a.Equal(c) {
		t.Error("expected differing lists to compare unequal")
	}
}

func TestNullSingleton(t *testing.T) {
	if !Nil.Equal(Nil) {
		t.Error("Nil should equal itself")
	}
	if Nil.Equal(Number(0)) {
		t.Error("Nil should not equal Number(0)")
	}
}
