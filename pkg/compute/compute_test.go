package compute

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantengine/pkg/graph"
	"quantengine/pkg/graphtypes"
	"quantengine/pkg/key"
	"quantengine/pkg/quantity"
	"quantengine/pkg/unit"
)

func mjQuantity(t *testing.T, c *Computer, rows map[string]float64) quantity.Quantity {
	t.Helper()
	mj, err := c.Units().Lookup("MJ")
	require.NoError(t, err)
	var qrows []quantity.Row
	for label, v := range rows {
		qrows = append(qrows, quantity.Row{Coords: map[string]string{"x": label}, Value: v})
	}
	q, err := quantity.FromRows("energy", qrows, []string{"x"}, mj)
	require.NoError(t, err)
	return q
}

// Scenario 1: sum with units.
func TestEndToEndSumWithUnits(t *testing.T) {
	c := NewComputer()
	energyX := mjQuantity(t, c, map[string]float64{"a": 1.0, "b": 3, "c": 8})
	_, err := c.AddLiteral(key.New("energy", []string{"x"}, ""), graph.QuantityValue(energyX), AddOptions{})
	require.NoError(t, err)

	_, err = c.AddCall(key.New("energy", nil, ""), "sum",
		[]key.Key{key.New("energy", []string{"x"}, "")},
		[]graph.Value{{}, graph.SequenceValue([]graph.Value{graph.StringValue("x")})},
		AddOptions{})
	require.NoError(t, err)

	v, err := c.Get(context.Background(), key.New("energy", nil, ""))
	require.NoError(t, err)
	q, ok := v.AsQuantity()
	require.True(t, ok)
	scalar, ok := q.At(map[string]string{})
	require.True(t, ok)
	assert.Equal(t, 12.0, scalar)
	assert.Equal(t, "MJ", q.Units().String())
}

// Scenario 2: unit-aware division.
func TestEndToEndUnitAwareDivision(t *testing.T) {
	c := NewComputer()
	mj, err := c.Units().Lookup("MJ")
	require.NoError(t, err)
	hour, err := c.Units().Lookup("hour")
	require.NoError(t, err)

	energyX, err := quantity.FromRows("energy", []quantity.Row{
		{Coords: map[string]string{"x": "a"}, Value: 10},
	}, []string{"x"}, mj)
	require.NoError(t, err)
	timeX, err := quantity.FromRows("time", []quantity.Row{
		{Coords: map[string]string{"x": "a"}, Value: 2},
	}, []string{"x"}, hour)
	require.NoError(t, err)

	_, err = c.AddLiteral(key.New("energy", []string{"x"}, ""), graph.QuantityValue(energyX), AddOptions{})
	require.NoError(t, err)
	_, err = c.AddLiteral(key.New("time", []string{"x"}, ""), graph.QuantityValue(timeX), AddOptions{})
	require.NoError(t, err)
	_, err = c.AddCall(key.New("power", []string{"x"}, ""), "div",
		[]key.Key{key.New("energy", []string{"x"}, ""), key.New("time", []string{"x"}, "")}, nil, AddOptions{})
	require.NoError(t, err)

	v, err := c.Get(context.Background(), key.New("power", []string{"x"}, ""))
	require.NoError(t, err)
	q, ok := v.AsQuantity()
	require.True(t, ok)

	expected := mj.Div(hour)
	assert.True(t, q.Units().Compatible(expected))
}

// Scenario 3: product preserving dim labels.
func TestEndToEndProductPreservesDimLabels(t *testing.T) {
	c := NewComputer()
	a, err := quantity.FromRows("A", []quantity.Row{
		{Coords: map[string]string{"x": "a0"}, Value: 1},
		{Coords: map[string]string{"x": "a1"}, Value: 2},
	}, []string{"x"}, unit.Dimensionless)
	require.NoError(t, err)
	b, err := quantity.FromRows("B", []quantity.Row{
		{Coords: map[string]string{"b": "b0"}, Value: 3},
		{Coords: map[string]string{"b": "b1"}, Value: 4},
	}, []string{"b"}, unit.Dimensionless)
	require.NoError(t, err)

	_, err = c.AddLiteral(key.New("A", []string{"x"}, ""), graph.QuantityValue(a), AddOptions{})
	require.NoError(t, err)
	_, err = c.AddLiteral(key.New("B", []string{"b"}, ""), graph.QuantityValue(b), AddOptions{})
	require.NoError(t, err)
	_, err = c.AddCall(key.New("AB", []string{"x", "b"}, ""), "mul",
		[]key.Key{key.New("A", []string{"x"}, ""), key.New("B", []string{"b"}, "")}, nil, AddOptions{})
	require.NoError(t, err)

	v, err := c.Get(context.Background(), key.New("AB", []string{"x", "b"}, ""))
	require.NoError(t, err)
	q, ok := v.AsQuantity()
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"x", "b"}, q.Dims())
	val, ok := q.At(map[string]string{"x": "a0", "b": "b0"})
	require.True(t, ok)
	assert.Equal(t, 3.0, val)
	val, ok = q.At(map[string]string{"x": "a1", "b": "b1"})
	require.True(t, ok)
	assert.Equal(t, 8.0, val)
}

// Scenario 4: aggregate with group-name collision.
func TestEndToEndAggregateGroupCollisionWarns(t *testing.T) {
	c := NewComputer()
	x, err := quantity.FromRows("x", []quantity.Row{
		{Coords: map[string]string{"t": "foo1"}, Value: 1},
		{Coords: map[string]string{"t": "foo2"}, Value: 2},
		{Coords: map[string]string{"t": "bar1"}, Value: 3},
		{Coords: map[string]string{"t": "bar2"}, Value: 4},
	}, []string{"t"}, unit.Dimensionless)
	require.NoError(t, err)

	groups := graph.MappingValue(map[string]graph.Value{
		"t": graph.MappingValue(map[string]graph.Value{
			"foo":  graph.SequenceValue([]graph.Value{graph.StringValue("foo1"), graph.StringValue("foo2")}),
			"bar":  graph.SequenceValue([]graph.Value{graph.StringValue("bar1"), graph.StringValue("bar2")}),
			"foo1": graph.SequenceValue([]graph.Value{graph.StringValue("foo1")}),
		}),
	})

	_, err = c.AddLiteral(key.New("x", []string{"t"}, ""), graph.QuantityValue(x), AddOptions{})
	require.NoError(t, err)
	_, err = c.AddCall(key.New("x_agg", []string{"t"}, ""), "aggregate",
		[]key.Key{key.New("x", []string{"t"}, "")},
		[]graph.Value{groups, graph.ScalarValue(1)},
		AddOptions{})
	require.NoError(t, err)

	v, err := c.Get(context.Background(), key.New("x_agg", []string{"t"}, ""))
	require.NoError(t, err)
	q, ok := v.AsQuantity()
	require.True(t, ok)

	labels := q.Coords("t")
	assert.ElementsMatch(t, []string{"foo1", "foo2", "bar1", "bar2", "foo", "bar"}, labels)
}

// Scenario 5: cull + eval touches exactly the reachable subset.
func TestEndToEndCullEvaluatesOnlyReachableTasks(t *testing.T) {
	c := NewComputer()
	calls := 0
	counting := func(args []graph.Value) (graph.Value, error) {
		calls++
		return args[0], nil
	}
	c.RequireCompat("counting", map[string]graph.Func{"count": counting})

	_, err := c.AddLiteral(key.New("base", nil, ""), graph.ScalarValue(1), AddOptions{})
	require.NoError(t, err)
	prev := key.New("base", nil, "")
	for i := 0; i < 4; i++ {
		k := key.New("chain"+itoaTest(i), nil, "")
		_, err := c.AddCall(k, "count", []key.Key{prev}, nil, AddOptions{})
		require.NoError(t, err)
		prev = k
	}
	// plus 45 disjoint unreachable keys
	for i := 0; i < 45; i++ {
		_, err := c.AddLiteral(key.New("unused"+itoaTest(i), nil, ""), graph.ScalarValue(0), AddOptions{})
		require.NoError(t, err)
	}

	_, err = c.Get(context.Background(), key.New("target", nil, ""))
	assert.Error(t, err) // "target" never added

	_, err = c.AddAlias(key.New("target", nil, ""), prev, AddOptions{})
	require.NoError(t, err)
	_, err = c.Get(context.Background(), key.New("target", nil, ""))
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func itoaTest(i int) string {
	digits := "0123456789"
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{digits[i%10]}, b...)
		i /= 10
	}
	return string(b)
}

// Scenario 6: retryable ordering.
func TestEndToEndRetryableOrdering(t *testing.T) {
	pass := func(args []graph.Value) (graph.Value, error) { return args[0], nil }

	c := NewComputer()
	c.RequireCompat("pass", map[string]graph.Func{"identity": pass})
	_, err := c.AddLiteral(key.New("source", nil, ""), graph.ScalarValue(1), AddOptions{})
	require.NoError(t, err)

	items := []QueueItem{
		{Label: "B", Attempt: func(c *Computer) error {
			_, err := c.AddCall(key.New("B", nil, ""), "identity", []key.Key{key.New("A", nil, "")}, nil, AddOptions{})
			return err
		}},
		{Label: "A", Attempt: func(c *Computer) error {
			_, err := c.AddCall(key.New("A", nil, ""), "identity", []key.Key{key.New("source", nil, "")}, nil, AddOptions{})
			return err
		}},
	}
	require.NoError(t, c.AddQueue(items, 2, "warn"))
	assert.True(t, c.graph.Has(key.New("A", nil, "")))
	assert.True(t, c.graph.Has(key.New("B", nil, "")))

	c2 := NewComputer()
	c2.RequireCompat("pass", map[string]graph.Func{"identity": pass})
	_, err = c2.AddLiteral(key.New("source", nil, ""), graph.ScalarValue(1), AddOptions{})
	require.NoError(t, err)
	items2 := []QueueItem{
		{Label: "ghost", Attempt: func(c *Computer) error {
			_, err := c.AddCall(key.New("ghost_consumer", nil, ""), "identity", []key.Key{key.New("never_defined", nil, "")}, nil, AddOptions{})
			return err
		}},
	}
	err = c2.AddQueue(items2, 1, "raise")
	require.Error(t, err)
	var missing *graphtypes.MissingKeyError
	assert.ErrorAs(t, err, &missing)
}
