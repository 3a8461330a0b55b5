package vm

import (
	"encoding/json"
	"fmt"
)

// Executable is the immutable artifact produced by the compiler: a flat
// code vector, a function location table, the top-level initial
// bindings, and the foreign symbol table. Once built it is shared
// read-only across every worker in a session.
type Executable struct {
	Code      []Instruction
	Locations map[string]int // function name -> entry index in Code
	Bindings  map[Symbol]Value
	Foreign   map[Symbol]ForeignPtr
}

// NewExecutable returns an Executable with its maps initialized.
func NewExecutable() *Executable {
	return &Executable{
		Locations: make(map[string]int),
		Bindings:  make(map[Symbol]Value),
		Foreign:   make(map[Symbol]ForeignPtr),
	}
}

// EntryFor returns the code index where fn's body begins.
func (e *Executable) EntryFor(fn string) (int, bool) {
	ip, ok := e.Locations[fn]
	return ip, ok
}

// --- JSON wire format -------------------------------------------------
//
// {code: [instruction], locations: {fn-id: int}, bindings: {name: value},
//  foreign: {name: [host-fn, host-module]}}
//
// Instructions and Values are both closed tagged variants, so each gets
// a small wire struct with a "kind"/"op" discriminator instead of
// relying on Go's interface-unaware default JSON encoding.

type wireExecutable struct {
	Code      []wireInstruction        `json:"code"`
	Locations map[string]int           `json:"locations"`
	Bindings  map[string]wireValue     `json:"bindings"`
	Foreign   map[string][2]string     `json:"foreign"` // [host-fn, host-module]
}

type wireInstruction struct {
	Op     string    `json:"op"`
	Int    int       `json:"int,omitempty"`
	Symbol string    `json:"symbol,omitempty"`
	Value  *wireValue `json:"value,omitempty"`
}

type wireValue struct {
	Kind     string      `json:"kind"`
	Number   float64     `json:"number,omitempty"`
	String   string      `json:"string,omitempty"`
	Bool     bool        `json:"bool,omitempty"`
	List     []wireValue `json:"list,omitempty"`
	Name     string      `json:"name,omitempty"`
	Module   string      `json:"module,omitempty"`
	WorkerID int64       `json:"workerId,omitempty"`
}

func valueToWire(v Value) wireValue {
	switch t := v.(type) {
	case Number:
		return wireValue{Kind: "number", Number: float64(t)}
	case String:
		return wireValue{Kind: "string", String: string(t)}
	case Symbol:
		return wireValue{Kind: "symbol", String: string(t)}
	case Bool:
		return wireValue{Kind: "bool", Bool: bool(t)}
	case nullType:
		return wireValue{Kind: "null"}
	case List:
		elems := make([]wireValue, t.Len())
		for i, e := range t.Elements() {
			elems[i] = valueToWire(e)
		}
		return wireValue{Kind: "list", List: elems}
	case FunctionPtr:
		return wireValue{Kind: "function", Name: t.Name}
	case ForeignPtr:
		return wireValue{Kind: "foreign", Name: t.Name, Module: t.Module}
	case InstructionRef:
		return wireValue{Kind: "builtin", Name: string(t)}
	case FutureHandle:
		return wireValue{Kind: "future", WorkerID: t.WorkerID}
	default:
		panic(fmt.Sprintf("vm: unknown value kind in wire encoder: %T", v))
	}
}

func wireToValue(w wireValue) (Value, error) {
	switch w.Kind {
	case "number":
		return Number(w.Number), nil
	case "string":
		return String(w.String), nil
	case "symbol":
		return Symbol(w.String), nil
	case "bool":
		return Bool(w.Bool), nil
	case "null":
		return Nil, nil
	case "list":
		elems := make([]Value, len(w.List))
		for i, e := range w.List {
			v, err := wireToValue(e)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return NewList(elems), nil
	case "function":
		return FunctionPtr{Name: w.Name}, nil
	case "foreign":
		return ForeignPtr{Name: w.Name, Module: w.Module}, nil
	case "builtin":
		return InstructionRef(w.Name), nil
	case "future":
		return FutureHandle{WorkerID: w.WorkerID}, nil
	default:
		return nil, fmt.Errorf("vm: unknown value kind %q in wire format", w.Kind)
	}
}

func instructionToWire(instr Instruction) wireInstruction {
	switch t := instr.(type) {
	case PushV:
		v := valueToWire(t.Value)
		return wireInstruction{Op: "PushV", Value: &v}
	case PushB:
		return wireInstruction{Op: "PushB", Symbol: string(t.Symbol)}
	case Pop:
		return wireInstruction{Op: "Pop"}
	case Bind:
		return wireInstruction{Op: "Bind", Symbol: string(t.Symbol)}
	case Jump:
		return wireInstruction{Op: "Jump", Int: t.Delta}
	case JumpIE:
		return wireInstruction{Op: "JumpIE", Int: t.Delta}
	case Call:
		return wireInstruction{Op: "Call", Int: t.N}
	case ACall:
		return wireInstruction{Op: "ACall", Int: t.N}
	case Return:
		return wireInstruction{Op: "Return"}
	case Wait:
		return wireInstruction{Op: "Wait", Int: t.Offset}
	default:
		panic(fmt.Sprintf("vm: unknown instruction kind in wire encoder: %T", instr))
	}
}

func wireToInstruction(w wireInstruction) (Instruction, error) {
	switch w.Op {
	case "PushV":
		if w.Value == nil {
			return nil, fmt.Errorf("vm: PushV instruction missing value")
		}
		v, err := wireToValue(*w.Value)
		if err != nil {
			return nil, err
		}
		return PushV{Value: v}, nil
	case "PushB":
		return PushB{Symbol: Symbol(w.Symbol)}, nil
	case "Pop":
		return Pop{}, nil
	case "Bind":
		return Bind{Symbol: Symbol(w.Symbol)}, nil
	case "Jump":
		return Jump{Delta: w.Int}, nil
	case "JumpIE":
		return JumpIE{Delta: w.Int}, nil
	case "Call":
		return Call{N: w.Int}, nil
	case "ACall":
		return ACall{N: w.Int}, nil
	case "Return":
		return Return{}, nil
	case "Wait":
		return Wait{Offset: w.Int}, nil
	default:
		return nil, fmt.Errorf("vm: unknown opcode %q in wire format", w.Op)
	}
}

// MarshalJSON encodes the Executable per the wire schema in §6 of the
// governing design: {code, locations, bindings, foreign}.
func (e *Executable) MarshalJSON() ([]byte, error) {
	w := wireExecutable{
		Code:      make([]wireInstruction, len(e.Code)),
		Locations: e.Locations,
		Bindings:  make(map[string]wireValue, len(e.Bindings)),
		Foreign:   make(map[string][2]string, len(e.Foreign)),
	}
	for i, instr := range e.Code {
		w.Code[i] = instructionToWire(instr)
	}
	for name, v := range e.Bindings {
		w.Bindings[string(name)] = valueToWire(v)
	}
	for name, f := range e.Foreign {
		w.Foreign[string(name)] = [2]string{f.Name, f.Module}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes an Executable per the wire schema.
func (e *Executable) UnmarshalJSON(data []byte) error {
	var w wireExecutable
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Code = make([]Instruction, len(w.Code))
	for i, wi := range w.Code {
		instr, err := wireToInstruction(wi)
		if err != nil {
			return err
		}
		e.Code[i] = instr
	}
	e.Locations = w.Locations
	e.Bindings = make(map[Symbol]Value, len(w.Bindings))
	for name, wv := range w.Bindings {
		v, err := wireToValue(wv)
		if err != nil {
			return err
		}
		e.Bindings[Symbol(name)] = v
	}
	e.Foreign = make(map[Symbol]ForeignPtr, len(w.Foreign))
	for name, pair := range w.Foreign {
		e.Foreign[Symbol(name)] = ForeignPtr{Name: pair[0], Module: pair[1]}
	}
	return nil
}
