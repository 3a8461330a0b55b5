package session

import (
	"path/filepath"
	"testing"

	"loom/vm"
)

func TestMemorySaveLoadRoundTrip(t *testing.T) {
	m := NewMemory()

	if _, ok, err := m.Load(1); ok || err != nil {
		t.Fatalf("Load on empty store = (_, %v, %v), want (_, false, nil)", ok, err)
	}

	snap := Snapshot{
		WorkerID: 1,
		IP:       3,
		Stack:    []vm.Value{vm.Number(42), vm.String("hi")},
		Stopped:  true,
		Waiting:  false,
	}
	if err := m.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := m.Load(1)
	if err != nil || !ok {
		t.Fatalf("Load after Save = (_, %v, %v), want (_, true, nil)", ok, err)
	}
	if got.IP != 3 || !got.Stopped || len(got.Stack) != 2 {
		t.Errorf("Load = %+v, want IP=3 Stopped=true 2-element stack", got)
	}
}

func TestSQLiteSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	snap := Snapshot{
		WorkerID: 7,
		IP:       12,
		Stack: []vm.Value{
			vm.Number(42),
			vm.String("hello"),
			vm.Bool(true),
			vm.Nil,
			vm.NewList([]vm.Value{vm.Number(1), vm.Number(2)}),
		},
		Stopped: false,
		Waiting: true,
	}
	if err := store.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := store.Load(7)
	if err != nil || !ok {
		t.Fatalf("Load = (_, %v, %v), want (_, true, nil)", ok, err)
	}
	if got.IP != 12 || got.Stopped || !got.Waiting {
		t.Fatalf("Load scalar fields = %+v, want IP=12 Stopped=false Waiting=true", got)
	}
	if len(got.Stack) != len(snap.Stack) {
		t.Fatalf("Load stack len = %d, want %d", len(got.Stack), len(snap.Stack))
	}

	// Every reconstructable kind must come back as its real typed
	// Value, not an opaque "Kind:Text" string - this is the point of
	// marshalValue/unmarshalValue's tagged-variant encoding.
	if n, ok := got.Stack[0].(vm.Number); !ok || n != 42 {
		t.Errorf("Stack[0] = %#v, want vm.Number(42)", got.Stack[0])
	}
	if s, ok := got.Stack[1].(vm.String); !ok || s != "hello" {
		t.Errorf("Stack[1] = %#v, want vm.String(\"hello\")", got.Stack[1])
	}
	if b, ok := got.Stack[2].(vm.Bool); !ok || !bool(b) {
		t.Errorf("Stack[2] = %#v, want vm.Bool(true)", got.Stack[2])
	}
	if got.Stack[3] != vm.Nil {
		t.Errorf("Stack[3] = %#v, want vm.Nil", got.Stack[3])
	}
	list, ok := got.Stack[4].(vm.List)
	if !ok || !list.Equal(vm.NewList([]vm.Value{vm.Number(1), vm.Number(2)})) {
		t.Errorf("Stack[4] = %#v, want [1, 2]", got.Stack[4])
	}

	if _, ok, err := store.Load(99); ok || err != nil {
		t.Fatalf("Load(99) = (_, %v, %v), want (_, false, nil)", ok, err)
	}
}

func TestSQLiteSaveOverwritesOnConflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	if err := store.Save(Snapshot{WorkerID: 1, IP: 1, Stopped: false}); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := store.Save(Snapshot{WorkerID: 1, IP: 9, Stopped: true}); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, ok, err := store.Load(1)
	if err != nil || !ok {
		t.Fatalf("Load = (_, %v, %v), want (_, true, nil)", ok, err)
	}
	if got.IP != 9 || !got.Stopped {
		t.Errorf("Load after overwrite = %+v, want IP=9 Stopped=true", got)
	}
}
