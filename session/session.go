// Package session specifies the remote persistence backend spec.md
// leaves as an external collaborator and ships two implementations: an
// in-memory one for tests and the CLI default, and a SQLite-backed one
// for durable write-behind across process restarts. Neither is a
// correctness dependency of the controller; a session store is purely
// recovery bookkeeping.
package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"loom/vm"
)

// Snapshot is the durable record of a worker at the moment it last
// stopped: enough to reconstruct its state for crash recovery (the
// reference's session store serializes to Python pickles against
// DynamoDB; loom serializes to JSON against either backend below).
type Snapshot struct {
	WorkerID int64
	IP       int
	Stack    []vm.Value
	Stopped  bool
	Waiting  bool
}

// Store is the persistence collaborator the controller writes worker
// snapshots to. Neither the controller nor the CLI reads through Store;
// the controller's live worker map is always authoritative while a
// session is running.
type Store interface {
	Save(Snapshot) error
	Load(workerID int64) (Snapshot, bool, error)
	Close() error
}

// Memory is a process-local Store, protected the same way the
// reference's in-memory object table is: one RWMutex over a map.
type Memory struct {
	mu   sync.RWMutex
	data map[int64]Snapshot
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{data: make(map[int64]Snapshot)}
}

func (m *Memory) Save(s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[s.WorkerID] = s
	return nil
}

func (m *Memory) Load(workerID int64) (Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.data[workerID]
	return s, ok, nil
}

func (m *Memory) Close() error { return nil }

// SQLite is a durable Store backed by modernc.org/sqlite (pure Go, no
// cgo, matching the project's general avoidance of cgo). One row per
// worker, keyed by worker id, overwritten on every Save.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) a SQLite-backed session
// store at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("session: open sqlite store: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS worker_snapshots (
	worker_id INTEGER PRIMARY KEY,
	ip INTEGER NOT NULL,
	stack TEXT NOT NULL,
	stopped INTEGER NOT NULL,
	waiting INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Save(snap Snapshot) error {
	stack, err := marshalStack(snap.Stack)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO worker_snapshots (worker_id, ip, stack, stopped, waiting)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(worker_id) DO UPDATE SET ip=excluded.ip, stack=excluded.stack,
		   stopped=excluded.stopped, waiting=excluded.waiting`,
		snap.WorkerID, snap.IP, stack, boolToInt(snap.Stopped), boolToInt(snap.Waiting),
	)
	return err
}

func (s *SQLite) Load(workerID int64) (Snapshot, bool, error) {
	row := s.db.QueryRow(
		`SELECT worker_id, ip, stack, stopped, waiting FROM worker_snapshots WHERE worker_id = ?`,
		workerID,
	)
	var snap Snapshot
	var stack string
	var stopped, waiting int
	if err := row.Scan(&snap.WorkerID, &snap.IP, &stack, &stopped, &waiting); err != nil {
		if err == sql.ErrNoRows {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}
	values, err := unmarshalStack(stack)
	if err != nil {
		return Snapshot{}, false, err
	}
	snap.Stack = values
	snap.Stopped = stopped != 0
	snap.Waiting = waiting != 0
	return snap, true, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// wireStackValue is a tagged-variant wire encoding of a vm.Value,
// reconstructing every kind that round-trips meaningfully through cold
// storage (Number, String, Bool, Null, List, recursively). The
// remaining kinds (FunctionPtr, ForeignPtr, InstructionRef, Symbol,
// FutureHandle) are callables or handles bound to a live executable or
// controller; a cold store has neither, so they're preserved only as
// their Kind+String() form for inspection tooling, not for replay.
type wireStackValue struct {
	Kind     string           `json:"kind"`
	Number   float64          `json:"number,omitempty"`
	Text     string           `json:"text,omitempty"`
	Bool     bool             `json:"bool,omitempty"`
	Elements []wireStackValue `json:"elements,omitempty"`
}

func marshalValue(v vm.Value) wireStackValue {
	switch t := v.(type) {
	case vm.Number:
		return wireStackValue{Kind: "number", Number: float64(t)}
	case vm.String:
		return wireStackValue{Kind: "string", Text: string(t)}
	case vm.Bool:
		return wireStackValue{Kind: "bool", Bool: bool(t)}
	case vm.List:
		elements := t.Elements()
		wire := make([]wireStackValue, len(elements))
		for i, e := range elements {
			wire[i] = marshalValue(e)
		}
		return wireStackValue{Kind: "list", Elements: wire}
	default:
		return wireStackValue{Kind: v.Kind().String(), Text: v.String()}
	}
}

func unmarshalValue(w wireStackValue) vm.Value {
	switch w.Kind {
	case "number":
		return vm.Number(w.Number)
	case "string":
		return vm.String(w.Text)
	case "bool":
		return vm.Bool(w.Bool)
	case "null":
		return vm.Nil
	case "list":
		elements := make([]vm.Value, len(w.Elements))
		for i, e := range w.Elements {
			elements[i] = unmarshalValue(e)
		}
		return vm.NewList(elements)
	default:
		return vm.String(fmt.Sprintf("%s:%s", w.Kind, w.Text))
	}
}

func marshalStack(values []vm.Value) (string, error) {
	wire := make([]wireStackValue, len(values))
	for i, v := range values {
		wire[i] = marshalValue(v)
	}
	b, err := json.Marshal(wire)
	return string(b), err
}

func unmarshalStack(data string) ([]vm.Value, error) {
	var wire []wireStackValue
	if err := json.Unmarshal([]byte(data), &wire); err != nil {
		return nil, err
	}
	out := make([]vm.Value, len(wire))
	for i, w := range wire {
		out[i] = unmarshalValue(w)
	}
	return out, nil
}
