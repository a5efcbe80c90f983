package quantity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantengine/pkg/unit"
)

func regionRows() []Row {
	return []Row{
		{Coords: map[string]string{"r": "north"}, Value: 1},
		{Coords: map[string]string{"r": "south"}, Value: 2},
		{Coords: map[string]string{"r": "east"}, Value: 3},
	}
}

func TestSelKeepsOnlyRequestedLabels(t *testing.T) {
	q, err := FromRows("x", regionRows(), []string{"r"}, unit.Dimensionless)
	require.NoError(t, err)

	sel := q.Sel(map[string][]string{"r": {"north", "south"}}, false)
	assert.Equal(t, 2, sel.Len())
	_, ok := sel.At(map[string]string{"r": "east"})
	assert.False(t, ok)
}

func TestSelInverseKeepsComplement(t *testing.T) {
	q, _ := FromRows("x", regionRows(), []string{"r"}, unit.Dimensionless)
	sel := q.Sel(map[string][]string{"r": {"north"}}, true)
	assert.Equal(t, 2, sel.Len())
	_, ok := sel.At(map[string]string{"r": "north"})
	assert.False(t, ok)
}

func TestSelScalarDropsDim(t *testing.T) {
	q, _ := FromRows("x", regionRows(), []string{"r"}, unit.Dimensionless)
	scalar := q.SelScalar("r", "south")
	assert.False(t, scalar.HasDim("r"))
	v, ok := scalar.At(map[string]string{})
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
}

func TestRenameDims(t *testing.T) {
	q, _ := FromRows("x", regionRows(), []string{"r"}, unit.Dimensionless)
	renamed := q.RenameDims(map[string]string{"r": "region"})
	assert.True(t, renamed.HasDim("region"))
	assert.False(t, renamed.HasDim("r"))
	v, ok := renamed.At(map[string]string{"region": "north"})
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestRelabelRenamesCoordinateValues(t *testing.T) {
	q, _ := FromRows("x", regionRows(), []string{"r"}, unit.Dimensionless)
	relabeled := q.Relabel(map[string]map[string]string{
		"r": {"north": "NORTH"},
	})
	v, ok := relabeled.At(map[string]string{"r": "NORTH"})
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	_, ok = relabeled.At(map[string]string{"r": "north"})
	assert.False(t, ok)
	v, ok = relabeled.At(map[string]string{"r": "south"})
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
}
