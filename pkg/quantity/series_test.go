package quantity

import (
	"testing"

	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantengine/pkg/unit"
)

func TestToSeriesFromSeriesRoundTrip(t *testing.T) {
	rows := []Row{
		{Coords: map[string]string{"t": "2020", "r": "north"}, Value: 1},
		{Coords: map[string]string{"t": "2021", "r": "south"}, Value: 2},
	}
	q, err := FromSeries("x", rows, unit.Dimensionless)
	require.NoError(t, err)

	out := q.ToSeries()
	assert.Len(t, out, 2)

	roundTripped, err := FromSeries("x", out, unit.Dimensionless)
	require.NoError(t, err)
	assert.Equal(t, q.Len(), roundTripped.Len())
	v, ok := roundTripped.At(map[string]string{"t": "2020", "r": "north"})
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestToArrowRecordFromArrowRecordRoundTrip(t *testing.T) {
	rows := []Row{
		{Coords: map[string]string{"t": "2020", "r": "north"}, Value: 1.5},
		{Coords: map[string]string{"t": "2021", "r": "south"}, Value: 2.5},
	}
	q, err := FromSeries("x", rows, unit.Dimensionless)
	require.NoError(t, err)

	rec := q.ToArrowRecord(memory.NewGoAllocator())
	defer rec.Release()
	assert.EqualValues(t, 2, rec.NumRows())

	back, err := FromArrowRecord("x", rec, unit.Dimensionless)
	require.NoError(t, err)
	assert.Equal(t, q.Len(), back.Len())
	v, ok := back.At(map[string]string{"t": "2020", "r": "north"})
	require.True(t, ok)
	assert.Equal(t, 1.5, v)
}

func TestToArrowRecordPutsValueColumnLast(t *testing.T) {
	rows := []Row{{Coords: map[string]string{"t": "2020"}, Value: 1}}
	q, _ := FromSeries("x", rows, unit.Dimensionless)
	rec := q.ToArrowRecord(memory.NewGoAllocator())
	defer rec.Release()

	schema := rec.Schema()
	assert.Equal(t, "value", schema.Field(int(schema.NumFields())-1).Name)
}
