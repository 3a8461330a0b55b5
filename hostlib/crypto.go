// Package hostlib provides the host-native function modules a compiled
// program can import via a top-level `name = import(fn, module)` form.
// It is the concrete realization of the "host-native function import
// resolution" collaborator spec.md leaves external.
package hostlib

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/ripemd160"

	syscrypt "github.com/sergeymakinen/go-crypt"

	"loom/vm"
)

// Func is a host-native function: it receives the call's positional
// arguments (already converted from compiled Values) and returns a
// Value, or an error that becomes a TypeError on the calling worker.
type Func func(args []vm.Value) (vm.Value, error)

// Module is a named table of host functions, looked up by
// vm.ForeignPtr.Module at foreign-call time.
type Module map[string]Func

// Registry maps module name to its Module, the thing a controller
// consults to resolve a vm.ForeignPtr into a callable Func.
type Registry map[string]Module

// NewRegistry returns the registry with the built-in "crypto" module
// installed.
func NewRegistry() Registry {
	return Registry{
		"crypto": Crypto,
	}
}

// Call resolves ptr against the registry and invokes it.
func (r Registry) Call(ptr vm.ForeignPtr, args []vm.Value) (vm.Value, error) {
	mod, ok := r[ptr.Module]
	if !ok {
		return nil, fmt.Errorf("no such host module %q", ptr.Module)
	}
	fn, ok := mod[ptr.Name]
	if !ok {
		return nil, fmt.Errorf("host module %q has no function %q", ptr.Module, ptr.Name)
	}
	return fn(args)
}

func stringArg(args []vm.Value, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing argument %d", i)
	}
	s, ok := args[i].(vm.String)
	if !ok {
		return "", fmt.Errorf("argument %d must be a string, got %s", i, args[i].Kind())
	}
	return string(s), nil
}

// Crypto exposes hashing and password-hashing primitives, grounded on
// the same trio of libraries the reference server wires for its own
// crypto builtins (ripemd160, the sha family, and a portable crypt(3)).
var Crypto = Module{
	"hash_ripemd160": func(args []vm.Value) (vm.Value, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		h := ripemd160.New()
		h.Write([]byte(s))
		return vm.String(hex.EncodeToString(h.Sum(nil))), nil
	},
	"hash_sha256": func(args []vm.Value) (vm.Value, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		sum := sha256.Sum256([]byte(s))
		return vm.String(hex.EncodeToString(sum[:])), nil
	},
	"crypt": func(args []vm.Value) (vm.Value, error) {
		password, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		salt, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		hashed, err := syscrypt.Crypt(password, salt)
		if err != nil {
			return nil, fmt.Errorf("crypt: %w", err)
		}
		return vm.String(hashed), nil
	},
}
