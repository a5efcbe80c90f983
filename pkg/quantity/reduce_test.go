package quantity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantengine/pkg/unit"
)

func gridRows() []Row {
	return []Row{
		{Coords: map[string]string{"t": "2020", "r": "north"}, Value: 1},
		{Coords: map[string]string{"t": "2020", "r": "south"}, Value: 2},
		{Coords: map[string]string{"t": "2021", "r": "north"}, Value: 3},
		{Coords: map[string]string{"t": "2021", "r": "south"}, Value: 4},
	}
}

func TestSumDropsDimAndAggregates(t *testing.T) {
	q, err := FromRows("x", gridRows(), []string{"t", "r"}, unit.Dimensionless)
	require.NoError(t, err)

	summed := q.Sum([]string{"r"})
	assert.False(t, summed.HasDim("r"))
	v2020, ok := summed.At(map[string]string{"t": "2020"})
	require.True(t, ok)
	assert.Equal(t, 3.0, v2020)
	v2021, _ := summed.At(map[string]string{"t": "2021"})
	assert.Equal(t, 7.0, v2021)
}

func TestSumEmptyDimsIsIdentity(t *testing.T) {
	q, _ := FromRows("x", gridRows(), []string{"t", "r"}, unit.Dimensionless)
	same := q.Sum(nil)
	assert.Equal(t, q.Len(), same.Len())
}

func TestWeightedSumAppliesWeightsBeforeReducing(t *testing.T) {
	q, _ := FromRows("x", gridRows(), []string{"t", "r"}, unit.Dimensionless)
	weights, _ := FromRows("w", []Row{
		{Coords: map[string]string{"r": "north"}, Value: 2},
		{Coords: map[string]string{"r": "south"}, Value: 0.5},
	}, []string{"r"}, unit.Dimensionless)

	ws, err := q.WeightedSum(&weights, []string{"r"})
	require.NoError(t, err)
	v2020, _ := ws.At(map[string]string{"t": "2020"})
	assert.Equal(t, 1*2+2*0.5, v2020)
}

func TestMaxMin(t *testing.T) {
	q, _ := FromRows("x", gridRows(), []string{"t", "r"}, unit.Dimensionless)
	mx := q.Max([]string{"r"})
	v, _ := mx.At(map[string]string{"t": "2021"})
	assert.Equal(t, 4.0, v)

	mn := q.Min([]string{"r"})
	v, _ = mn.At(map[string]string{"t": "2021"})
	assert.Equal(t, 3.0, v)
}

func TestCumprodAccumulatesInCoordOrder(t *testing.T) {
	q, _ := FromRows("growth", []Row{
		{Coords: map[string]string{"t": "2020"}, Value: 1.1},
		{Coords: map[string]string{"t": "2021"}, Value: 1.2},
		{Coords: map[string]string{"t": "2022"}, Value: 1.05},
	}, []string{"t"}, unit.Dimensionless)

	cp := q.Cumprod("t")
	v2020, _ := cp.At(map[string]string{"t": "2020"})
	v2021, _ := cp.At(map[string]string{"t": "2021"})
	v2022, _ := cp.At(map[string]string{"t": "2022"})
	assert.InDelta(t, 1.1, v2020, 1e-9)
	assert.InDelta(t, 1.1*1.2, v2021, 1e-9)
	assert.InDelta(t, 1.1*1.2*1.05, v2022, 1e-9)
}
