// Package operator implements the named, dimension- and unit-aware
// operator library from spec.md §4.4: the functions a task's callable
// resolves to, plus the Registry that models "dynamic operator dispatch"
// (spec.md §9) as a typed name -> graph.Func lookup chain.
package operator

import "quantengine/pkg/graph"

// Registry is an ordered stack of named-operator modules. Lookup searches
// from the most recently pushed module to the first, so a later module
// shadows an operator name defined by an earlier one — this is
// Computer.RequireCompat's effect on add's operator resolution.
type Registry struct {
	modules []module
}

type module struct {
	name  string
	funcs map[string]graph.Func
}

// NewRegistry returns a registry with the builtin operator module already
// pushed as its base layer.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Push("builtin", Builtins())
	return r
}

// Push appends a new operator module to the resolution stack.
func (r *Registry) Push(name string, funcs map[string]graph.Func) {
	r.modules = append(r.modules, module{name: name, funcs: funcs})
}

// Lookup resolves name against the module stack, most-recently-pushed
// first.
func (r *Registry) Lookup(name string) (graph.Func, bool) {
	for i := len(r.modules) - 1; i >= 0; i-- {
		if fn, ok := r.modules[i].funcs[name]; ok {
			return fn, true
		}
	}
	return nil, false
}

// Names returns every operator name currently resolvable, most-recently
// shadowing module's spelling winning on collision.
func (r *Registry) Names() []string {
	seen := map[string]struct{}{}
	var out []string
	for i := len(r.modules) - 1; i >= 0; i-- {
		for name := range r.modules[i].funcs {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				out = append(out, name)
			}
		}
	}
	return out
}
