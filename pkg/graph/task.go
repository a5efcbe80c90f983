package graph

import "quantengine/pkg/key"

// Func is the callable half of a Call task: an operator resolved by name
// at add-time, invoked with its materialized arguments during evaluation.
type Func func(args []Value) (Value, error)

// Arg is one element of a Call task's argument list: exactly one of Key
// (a reference resolved against the graph before evaluation), Nested (an
// inline sub-task evaluated first, its result substituted in place), or
// Literal (a bare Value passed through unchanged) is set.
type Arg struct {
	Key     *key.Key
	Nested  *Task
	Literal *Value
}

func KeyArg(k key.Key) Arg    { return Arg{Key: &k} }
func NestedArg(t Task) Arg    { return Arg{Nested: &t} }
func LiteralArg(v Value) Arg  { return Arg{Literal: &v} }

// Kind discriminates the shape of a Task, per §3.3: a literal value, a
// call (callable + args, each a key reference or nested task), an alias
// to another key, or a gather-list of keys.
type Kind int

const (
	KindLiteral Kind = iota
	KindCall
	KindAlias
	KindKeyList
)

// Task is the value stored at a Key in the Graph. Literal carries a bare
// Value; Call carries a resolved Func plus its Args and a human-readable
// Label for Describe; Alias points at another Key, resolved transitively;
// KeyList gathers several Keys into a Sequence Value at evaluation time.
type Task struct {
	Kind    Kind
	Literal Value
	Fn      Func
	Label   string
	Args    []Arg
	Alias   key.Key
	Keys    []key.Key
}

func LiteralTask(v Value) Task {
	return Task{Kind: KindLiteral, Literal: v}
}

func CallTask(label string, fn Func, args ...Arg) Task {
	return Task{Kind: KindCall, Label: label, Fn: fn, Args: args}
}

func AliasTask(target key.Key) Task {
	return Task{Kind: KindAlias, Alias: target}
}

func KeyListTask(keys ...key.Key) Task {
	return Task{Kind: KindKeyList, Keys: keys}
}

// Dependencies returns every Key this task reads directly or through a
// nested sub-task, used by Cull to compute a transitive closure.
func (t Task) Dependencies() []key.Key {
	var out []key.Key
	switch t.Kind {
	case KindCall:
		for _, a := range t.Args {
			out = append(out, argDeps(a)...)
		}
	case KindAlias:
		out = append(out, t.Alias)
	case KindKeyList:
		out = append(out, t.Keys...)
	}
	return out
}

func argDeps(a Arg) []key.Key {
	switch {
	case a.Key != nil:
		return []key.Key{*a.Key}
	case a.Nested != nil:
		return a.Nested.Dependencies()
	default:
		return nil
	}
}

// RewriteTask replaces every Key reference reachable from t with its
// canonical stored form, keyed by Hash() in canonical. Computer.add calls
// this after resolving each input via the graph's indexes so evaluator
// lookups always hit the key actually stored.
func RewriteTask(t Task, canonical map[string]key.Key) Task {
	return rewriteTask(t, canonical)
}

// rewriteArg replaces a Key reference with its canonical stored form
// (what Computer.add does after resolving via full_key/unsorted_key), and
// recurses into nested tasks.
func rewriteArg(a Arg, canonical map[string]key.Key) Arg {
	if a.Key != nil {
		if c, ok := canonical[a.Key.Hash()]; ok {
			k := c
			return Arg{Key: &k}
		}
		return a
	}
	if a.Nested != nil {
		nested := rewriteTask(*a.Nested, canonical)
		return Arg{Nested: &nested}
	}
	return a
}

func rewriteTask(t Task, canonical map[string]key.Key) Task {
	switch t.Kind {
	case KindCall:
		args := make([]Arg, len(t.Args))
		for i, a := range t.Args {
			args[i] = rewriteArg(a, canonical)
		}
		t.Args = args
	case KindAlias:
		if c, ok := canonical[t.Alias.Hash()]; ok {
			t.Alias = c
		}
	case KindKeyList:
		keys := make([]key.Key, len(t.Keys))
		for i, k := range t.Keys {
			if c, ok := canonical[k.Hash()]; ok {
				keys[i] = c
			} else {
				keys[i] = k
			}
		}
		t.Keys = keys
	}
	return t
}
