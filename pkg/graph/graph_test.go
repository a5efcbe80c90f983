package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantengine/pkg/key"
)

func mustKey(t *testing.T, s string) key.Key {
	k, err := key.Parse(s)
	require.NoError(t, err)
	return k
}

func addOne(args []Value) (Value, error) {
	a, _ := args[0].AsScalar()
	return ScalarValue(a + 1), nil
}

func TestInsertGetRemove(t *testing.T) {
	g := New()
	k := mustKey(t, "energy:x")
	g.Insert(k, LiteralTask(ScalarValue(1)))
	assert.True(t, g.Has(k))
	g.Remove(k)
	assert.False(t, g.Has(k))
}

func TestPopReturnsAndRemoves(t *testing.T) {
	g := New()
	k := mustKey(t, "energy")
	g.Insert(k, LiteralTask(ScalarValue(42)))
	task, ok := g.Pop(k)
	require.True(t, ok)
	v, _ := task.Literal.AsScalar()
	assert.Equal(t, 42.0, v)
	assert.False(t, g.Has(k))
}

func TestFullKeyTracksMaximalDimKey(t *testing.T) {
	g := New()
	small := mustKey(t, "energy")
	big := mustKey(t, "energy:x-y")
	g.Insert(small, LiteralTask(ScalarValue(1)))
	g.Insert(big, LiteralTask(ScalarValue(2)))

	full, ok := g.FullKey("energy")
	require.True(t, ok)
	assert.True(t, full.Equal(big))
}

func TestUnsortedKeyResolvesAlternateDimOrder(t *testing.T) {
	g := New()
	stored := mustKey(t, "energy:x-y")
	g.Insert(stored, LiteralTask(ScalarValue(1)))

	lookup := mustKey(t, "energy:y-x")
	found, ok := g.UnsortedKey(lookup)
	require.True(t, ok)
	assert.Equal(t, stored.String(), found.String())
}

func TestInferDropsDimsOutsideRequired(t *testing.T) {
	g := New()
	full := mustKey(t, "energy:x-y-z")
	g.Insert(full, LiteralTask(ScalarValue(1)))

	partial := mustKey(t, "energy")
	inferred := g.Infer(partial, []string{"x", "y"})
	assert.ElementsMatch(t, []string{"x", "y"}, inferred.Dims())
}

func TestInferReturnsUnchangedWhenNameUnknown(t *testing.T) {
	g := New()
	k := mustKey(t, "mystery:x")
	inferred := g.Infer(k, []string{"x"})
	assert.Equal(t, k.String(), inferred.String())
}

func TestCullReachesOnlyTransitiveDependencies(t *testing.T) {
	g := New()
	source := mustKey(t, "source")
	a := mustKey(t, "a")
	target := mustKey(t, "target")
	unrelated := mustKey(t, "unrelated")

	g.Insert(source, LiteralTask(ScalarValue(1)))
	g.Insert(a, CallTask("add_one", addOne, KeyArg(source)))
	g.Insert(target, CallTask("add_one", addOne, KeyArg(a)))
	g.Insert(unrelated, LiteralTask(ScalarValue(99)))

	plan, err := Cull(g, target)
	require.NoError(t, err)
	assert.Len(t, plan.Order, 3)
	names := make([]string, len(plan.Order))
	for i, k := range plan.Order {
		names[i] = k.Name()
	}
	assert.NotContains(t, names, "unrelated")
	assert.Contains(t, names, "source")
	assert.Contains(t, names, "a")
	assert.Contains(t, names, "target")
}

func TestCullDetectsCycle(t *testing.T) {
	g := New()
	a := mustKey(t, "a")
	b := mustKey(t, "b")
	g.Insert(a, CallTask("add_one", addOne, KeyArg(b)))
	g.Insert(b, CallTask("add_one", addOne, KeyArg(a)))

	_, err := Cull(g, a)
	assert.Error(t, err)
}

func TestCullReportsMissingDependency(t *testing.T) {
	g := New()
	a := mustKey(t, "a")
	missing := mustKey(t, "missing")
	g.Insert(a, CallTask("add_one", addOne, KeyArg(missing)))

	_, err := Cull(g, a)
	assert.Error(t, err)
}

func TestEvaluateChainsDependentTasks(t *testing.T) {
	g := New()
	source := mustKey(t, "source")
	target := mustKey(t, "target")
	g.Insert(source, LiteralTask(ScalarValue(1)))
	g.Insert(target, CallTask("add_one", addOne, KeyArg(source)))

	plan, err := Cull(g, target)
	require.NoError(t, err)
	v, err := Evaluate(g, plan, target)
	require.NoError(t, err)
	got, _ := v.AsScalar()
	assert.Equal(t, 2.0, got)
}

func TestEvaluateWrapsTaskErrorInComputationError(t *testing.T) {
	g := New()
	target := mustKey(t, "target")
	failing := func(args []Value) (Value, error) {
		return Value{}, assert.AnError
	}
	g.Insert(target, CallTask("fail", failing))

	plan, err := Cull(g, target)
	require.NoError(t, err)
	_, err = Evaluate(g, plan, target)
	assert.Error(t, err)
}

func TestAliasResolvesToAliasedValue(t *testing.T) {
	g := New()
	v := mustKey(t, "v")
	alias := mustKey(t, "a")
	g.Insert(v, LiteralTask(ScalarValue(7)))
	g.Insert(alias, AliasTask(v))

	plan, err := Cull(g, alias)
	require.NoError(t, err)
	out, err := Evaluate(g, plan, alias)
	require.NoError(t, err)
	got, _ := out.AsScalar()
	assert.Equal(t, 7.0, got)
}

func TestDescribeRendersIndentedTree(t *testing.T) {
	g := New()
	source := mustKey(t, "source")
	target := mustKey(t, "target")
	g.Insert(source, LiteralTask(ScalarValue(1)))
	g.Insert(target, CallTask("add_one", addOne, KeyArg(source)))

	out := Describe(g, target)
	assert.Contains(t, out, "target")
	assert.Contains(t, out, "add_one")
	assert.Contains(t, out, "source")
}
