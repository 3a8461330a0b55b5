// Package config loads the YAML-described runtime policy a controller
// is started with, the same way the reference loads its YAML
// conformance fixtures, generalized from "list of test cases" to
// "session policy document".
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SessionConfig is a controller's runtime policy: how many steps a
// worker may take before BudgetExceeded, how many hops a future chain
// may take before it's treated as a likely cycle, and which session
// store backend to use.
type SessionConfig struct {
	MaxStepsPerWorker int        `yaml:"max_steps_per_worker"`
	MaxChainDepth     int        `yaml:"max_chain_depth"`
	Store             StoreConfig `yaml:"store"`
	TraceFilters      []string   `yaml:"trace_filters"`
}

// StoreConfig picks and parameterizes the session.Store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "memory" or "sqlite"
	Path    string `yaml:"path"`    // sqlite only
}

// DefaultSessionConfig matches the reference's conservative defaults:
// an in-memory store and a step budget generous enough not to trip on
// any program this core can compile today.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxStepsPerWorker: 1_000_000,
		MaxChainDepth:     64,
		Store:             StoreConfig{Backend: "memory"},
	}
}

// Load reads and parses a SessionConfig from a YAML file at path.
func Load(path string) (SessionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultSessionConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SessionConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
