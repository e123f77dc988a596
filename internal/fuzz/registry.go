package fuzz

import (
	"fmt"
	"strings"
	"sync"
)

// Registry is a name -> Fuzzer map, looked up case-insensitively.
//
// Grounded on the teacher's interpreter registry
// (go/tosca/interpreter_registry.go, go/vm/registry/registry.go): a
// global-ish, mutex-protected name->implementation map that panics on
// duplicate registration, since a duplicate binding is always a program
// construction bug, not a runtime condition to recover from.
type Registry struct {
	mu      sync.RWMutex
	fuzzers map[string]Fuzzer
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{fuzzers: map[string]Fuzzer{}}
}

// Register binds name to f. It panics if name is already bound or f is
// nil, mirroring the teacher's RegisterVirtualMachine.
func (r *Registry) Register(name string, f Fuzzer) {
	if f == nil {
		panic(fmt.Sprintf("fuzz: cannot register nil fuzzer under %q", name))
	}
	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.fuzzers[key]; found {
		panic(fmt.Sprintf("fuzz: multiple fuzzers registered under %q", name))
	}
	r.fuzzers[key] = f
}

// Get performs a case-insensitive lookup, returning ok=false if name is
// unbound.
func (r *Registry) Get(name string) (Fuzzer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fuzzers[strings.ToLower(name)]
	return f, ok
}

// Names returns the set of registered names (for diagnostics).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.fuzzers))
	for k := range r.fuzzers {
		out = append(out, k)
	}
	return out
}
