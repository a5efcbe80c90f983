package graph

import (
	"quantengine/pkg/graphtypes"
	"quantengine/pkg/key"
)

// Evaluate executes every task in plan.Order (which Cull guarantees is
// dependency-first) and returns the Value materialized at target.
// Evaluation is single-threaded and memoizes per call: a key computed as
// a dependency of two different nodes is only invoked once. Any task
// error is wrapped in a ComputationError naming the failing key and the
// task's label.
func Evaluate(g *Graph, plan Plan, target key.Key) (Value, error) {
	cache := map[string]Value{}
	for _, k := range plan.Order {
		t, _ := g.Get(k)
		v, err := evalTask(g, cache, t)
		if err != nil {
			return Value{}, &graphtypes.ComputationError{Key: k.String(), Task: taskLabel(t), Err: err}
		}
		cache[k.Hash()] = v
	}
	resolved, ok := g.Resolve(target)
	if !ok {
		return Value{}, &graphtypes.MissingKeyError{Keys: []string{target.String()}}
	}
	v, ok := cache[resolved.Hash()]
	if !ok {
		return Value{}, &graphtypes.MissingKeyError{Keys: []string{target.String()}}
	}
	return v, nil
}

func taskLabel(t Task) string {
	switch t.Kind {
	case KindLiteral:
		return "literal"
	case KindAlias:
		return "alias"
	case KindKeyList:
		return "list"
	case KindCall:
		if t.Label != "" {
			return t.Label
		}
		return "call"
	default:
		return "unknown"
	}
}

func evalTask(g *Graph, cache map[string]Value, t Task) (Value, error) {
	switch t.Kind {
	case KindLiteral:
		return t.Literal, nil
	case KindAlias:
		resolved, ok := g.Resolve(t.Alias)
		if !ok {
			return Value{}, &graphtypes.MissingKeyError{Keys: []string{t.Alias.String()}}
		}
		v, ok := cache[resolved.Hash()]
		if !ok {
			return Value{}, &graphtypes.MissingKeyError{Keys: []string{t.Alias.String()}}
		}
		return v, nil
	case KindKeyList:
		vals := make([]Value, 0, len(t.Keys))
		var missing []string
		for _, k := range t.Keys {
			resolved, ok := g.Resolve(k)
			if !ok {
				missing = append(missing, k.String())
				continue
			}
			v, ok := cache[resolved.Hash()]
			if !ok {
				missing = append(missing, k.String())
				continue
			}
			vals = append(vals, v)
		}
		if len(missing) > 0 {
			return Value{}, &graphtypes.MissingKeyError{Keys: missing}
		}
		return SequenceValue(vals), nil
	case KindCall:
		args := make([]Value, len(t.Args))
		for i, a := range t.Args {
			v, err := evalArg(g, cache, a)
			if err != nil {
				return Value{}, err
			}
			args[i] = v
		}
		return t.Fn(args)
	default:
		return Value{}, &graphtypes.TypeMismatchError{Context: "evaluate", Want: "known task kind", Got: "unknown"}
	}
}

func evalArg(g *Graph, cache map[string]Value, a Arg) (Value, error) {
	switch {
	case a.Key != nil:
		resolved, ok := g.Resolve(*a.Key)
		if !ok {
			return Value{}, &graphtypes.MissingKeyError{Keys: []string{a.Key.String()}}
		}
		v, ok := cache[resolved.Hash()]
		if !ok {
			return Value{}, &graphtypes.MissingKeyError{Keys: []string{a.Key.String()}}
		}
		return v, nil
	case a.Nested != nil:
		return evalTask(g, cache, *a.Nested)
	case a.Literal != nil:
		return *a.Literal, nil
	default:
		return Value{}, nil
	}
}
