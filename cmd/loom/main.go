// Command loom loads a compiled executable and runs, disassembles, or
// inspects it. One main package, stdlib flag + stdlib log, no
// subcommand framework — matching the reference CLI's shape exactly.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"loom/compiler"
	"loom/conformance"
	"loom/config"
	"loom/controller"
	"loom/probe"
	"loom/session"
	"loom/vm"
)

func main() {
	execPath := flag.String("exec", "", "Path to a compiled executable (JSON), produced by an external compiler")
	entry := flag.String("entry", "main", "Function name to run")
	configPath := flag.String("config", "", "Path to a session policy YAML file (step budget, chain depth, store backend)")

	disassemble := flag.Bool("disassemble", false, "Print the executable's code vector instead of running it")
	traceEnabled := flag.Bool("trace", false, "Enable per-step tracing to stderr")
	traceFilter := flag.String("trace-filter", "", "Comma-separated glob patterns restricting which calls are traced")

	scenario := flag.String("scenario", "", "Build and run a named conformance scenario instead of -exec (see -list-scenarios)")
	listScenarios := flag.Bool("list-scenarios", false, "List the names accepted by -scenario and exit")

	flag.Parse()

	if *listScenarios {
		for name := range conformance.Builders {
			fmt.Println(name)
		}
		return
	}

	cfg := config.DefaultSessionConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	var exec *vm.Executable
	switch {
	case *scenario != "":
		build, ok := conformance.Builders[*scenario]
		if !ok {
			fatalf("unknown scenario %q (see -list-scenarios)", *scenario)
		}
		compiled, err := compiler.Compile(build())
		if err != nil {
			fatalf("failed to compile scenario %q: %v", *scenario, err)
		}
		exec = compiled
	case *execPath != "":
		loaded, err := loadExecutable(*execPath)
		if err != nil {
			fatalf("failed to load executable: %v", err)
		}
		exec = loaded
	default:
		fatalf("one of -exec or -scenario is required")
	}

	if *disassemble {
		fmt.Print(vm.Disassemble(exec.Code))
		return
	}

	var filters []string
	if *traceFilter != "" {
		for _, f := range strings.Split(*traceFilter, ",") {
			filters = append(filters, strings.TrimSpace(f))
		}
	} else {
		filters = cfg.TraceFilters
	}

	var probeFactory func(workerID int64) vm.Probe
	if *traceEnabled {
		probeFactory = func(workerID int64) vm.Probe {
			return probe.NewStepBudget(cfg.MaxStepsPerWorker, filters, os.Stderr)
		}
	} else {
		probeFactory = func(workerID int64) vm.Probe {
			return probe.NewStepBudget(cfg.MaxStepsPerWorker, filters, nil)
		}
	}

	store, err := openStore(cfg.Store)
	if err != nil {
		fatalf("failed to open session store: %v", err)
	}
	if store != nil {
		defer store.Close()
	}

	opts := []controller.Option{
		controller.WithProbeFactory(probeFactory),
		controller.WithMaxChainDepth(cfg.MaxChainDepth),
	}
	if store != nil {
		opts = append(opts, controller.WithStore(store))
	}

	c, err := controller.Start(exec, *entry, nil, opts...)
	if err != nil {
		fatalf("failed to start %s: %v", *entry, err)
	}

	result, err := c.Wait()
	if err != nil {
		fatalf("worker failed: %v", err)
	}
	fmt.Println(result.String())
}

func loadExecutable(path string) (*vm.Executable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	exec := vm.NewExecutable()
	if err := json.Unmarshal(data, exec); err != nil {
		return nil, err
	}
	return exec, nil
}

func openStore(cfg config.StoreConfig) (session.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return session.NewMemory(), nil
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite store backend requires a path")
		}
		return session.OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "loom: "+format+"\n", args...)
	os.Exit(1)
}
