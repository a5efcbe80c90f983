package graph

import (
	"fmt"

	"quantengine/pkg/graphtypes"
	"quantengine/pkg/key"
)

// visitState tracks DFS coloring for cycle detection, white/gray/black.
type visitState int

const (
	white visitState = iota
	gray
	black
)

// Plan is the result of culling and ordering a graph for one target key:
// Order lists every reachable key in an order where a key's dependencies
// always precede it (source-first, "reverse-topological" in spec terms
// since dependency edges point from a task to what it reads).
type Plan struct {
	Order []key.Key
}

// Cull computes the transitive closure of target's dependencies and
// returns it as an evaluation Plan. Every key (including target) referenced
// by a Task but absent from the graph is reported as a MissingKeyError
// listing every absentee found. A dependency cycle is reported as a
// DimensionError naming the key at which it was detected.
func Cull(g *Graph, target key.Key) (Plan, error) {
	resolved, ok := g.Resolve(target)
	if !ok {
		return Plan{}, &graphtypes.MissingKeyError{Keys: []string{target.String()}}
	}

	state := map[string]visitState{}
	var order []key.Key
	var missing []string
	seenMissing := map[string]struct{}{}

	var visit func(k key.Key) error
	visit = func(k key.Key) error {
		h := k.Hash()
		switch state[h] {
		case black:
			return nil
		case gray:
			return &graphtypes.DimensionError{Reason: fmt.Sprintf("cycle at key %s", k.String())}
		}
		t, ok := g.Get(k)
		if !ok {
			if _, seen := seenMissing[h]; !seen {
				seenMissing[h] = struct{}{}
				missing = append(missing, k.String())
			}
			return nil
		}
		state[h] = gray
		for _, dep := range t.Dependencies() {
			depResolved, ok := g.Resolve(dep)
			if !ok {
				if _, seen := seenMissing[dep.Hash()]; !seen {
					seenMissing[dep.Hash()] = struct{}{}
					missing = append(missing, dep.String())
				}
				continue
			}
			if err := visit(depResolved); err != nil {
				return err
			}
		}
		state[h] = black
		order = append(order, k)
		return nil
	}

	if err := visit(resolved); err != nil {
		return Plan{}, err
	}
	if len(missing) > 0 {
		return Plan{}, &graphtypes.MissingKeyError{Keys: missing}
	}
	return Plan{Order: order}, nil
}
