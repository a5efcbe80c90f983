package operator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantengine/pkg/graph"
	"quantengine/pkg/quantity"
	"quantengine/pkg/unit"
)

func TestConvertUnitsScalesMagnitude(t *testing.T) {
	reg := unit.NewRegistry()
	ops := UnitOperators(reg)
	kJ, err := reg.Lookup("kJ")
	require.NoError(t, err)
	q, err := quantity.FromRows("x", []quantity.Row{{Coords: map[string]string{}, Value: 1}}, nil, kJ)
	require.NoError(t, err)

	out, err := ops["convert_units"]([]graph.Value{graph.QuantityValue(q), graph.StringValue("J")})
	require.NoError(t, err)
	r, ok := out.AsQuantity()
	require.True(t, ok)
	v, ok := r.At(map[string]string{})
	require.True(t, ok)
	assert.Equal(t, 1000.0, v)
}

func TestConvertUnitsRejectsIncompatibleUnits(t *testing.T) {
	reg := unit.NewRegistry()
	ops := UnitOperators(reg)
	j, err := reg.Lookup("J")
	require.NoError(t, err)
	q, err := quantity.FromRows("x", []quantity.Row{{Coords: map[string]string{}, Value: 1}}, nil, j)
	require.NoError(t, err)

	_, err = ops["convert_units"]([]graph.Value{graph.QuantityValue(q), graph.StringValue("USD")})
	assert.Error(t, err)
}

func TestAssignUnitsOverridesWithoutConversion(t *testing.T) {
	reg := unit.NewRegistry()
	ops := UnitOperators(reg)
	j, err := reg.Lookup("J")
	require.NoError(t, err)
	q, err := quantity.FromRows("x", []quantity.Row{{Coords: map[string]string{}, Value: 1}}, nil, j)
	require.NoError(t, err)

	out, err := ops["assign_units"]([]graph.Value{graph.QuantityValue(q), graph.StringValue("USD")})
	require.NoError(t, err)
	r, ok := out.AsQuantity()
	require.True(t, ok)
	v, ok := r.At(map[string]string{})
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	assert.Equal(t, "USD", r.Units().String())
}

func TestApplyUnitsWarnsOnIncompatibleButStillRelabels(t *testing.T) {
	reg := unit.NewRegistry()
	ops := UnitOperators(reg)
	j, err := reg.Lookup("J")
	require.NoError(t, err)
	q, err := quantity.FromRows("x", []quantity.Row{{Coords: map[string]string{}, Value: 1}}, nil, j)
	require.NoError(t, err)

	out, err := ops["apply_units"]([]graph.Value{graph.QuantityValue(q), graph.StringValue("USD")})
	require.NoError(t, err)
	r, ok := out.AsQuantity()
	require.True(t, ok)
	assert.Equal(t, "USD", r.Units().String())
}
