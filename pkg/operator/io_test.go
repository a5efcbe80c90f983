package operator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantengine/pkg/graph"
	"quantengine/pkg/quantity"
	"quantengine/pkg/unit"
)

// fakeLoader is an in-memory cache.Loader for testing load_file's cache
// wiring without a live Redis server.
type fakeLoader struct {
	entries map[string]quantity.Quantity
	gets    int
	puts    int
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{entries: map[string]quantity.Quantity{}}
}

func (f *fakeLoader) Get(ctx context.Context, loaderName, argsHash string) (quantity.Quantity, bool, error) {
	f.gets++
	q, ok := f.entries[loaderName+"/"+argsHash]
	return q, ok, nil
}

func (f *fakeLoader) Put(ctx context.Context, loaderName, argsHash string, q quantity.Quantity, ttl time.Duration) error {
	f.puts++
	f.entries[loaderName+"/"+argsHash] = q
	return nil
}

func writeCSV(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileReadsDimsValueAndUnitColumns(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "pop.csv", "region,t,value,unit\nnorth,2020,10,person\nsouth,2020,20,person\n")

	reg := unit.NewRegistry()
	ops := IOOperators(reg, nil)
	out, err := ops["load_file"]([]graph.Value{graph.StringValue(path)})
	require.NoError(t, err)
	q, ok := out.AsQuantity()
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"region", "t"}, q.Dims())
	v, ok := q.At(map[string]string{"region": "north", "t": "2020"})
	require.True(t, ok)
	assert.Equal(t, 10.0, v)
	assert.Equal(t, "person", q.Units().String())
}

func TestLoadFileRejectsNonUniqueUnitColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "mixed.csv", "t,value,unit\n2020,1,person\n2021,2,widget\n")

	reg := unit.NewRegistry()
	ops := IOOperators(reg, nil)
	_, err := ops["load_file"]([]graph.Value{graph.StringValue(path)})
	assert.Error(t, err)
}

func TestLoadFileRejectsMismatchedExplicitUnits(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "pop.csv", "t,value,unit\n2020,1,person\n")

	reg := unit.NewRegistry()
	ops := IOOperators(reg, nil)
	_, err := ops["load_file"]([]graph.Value{graph.StringValue(path), graph.Value{}, graph.StringValue("USD")})
	assert.Error(t, err)
}

func TestLoadFilePopulatesAndConsultsCache(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "pop.csv", "region,t,value,unit\nnorth,2020,10,person\n")

	reg := unit.NewRegistry()
	loader := newFakeLoader()
	ops := IOOperators(reg, loader)

	out, err := ops["load_file"]([]graph.Value{graph.StringValue(path)})
	require.NoError(t, err)
	q, ok := out.AsQuantity()
	require.True(t, ok)
	v, ok := q.At(map[string]string{"region": "north", "t": "2020"})
	require.True(t, ok)
	assert.Equal(t, 10.0, v)
	assert.Equal(t, 1, loader.puts)

	// Remove the source file: a second call can only succeed by reading
	// the cache entry populated above.
	require.NoError(t, os.Remove(path))

	out2, err := ops["load_file"]([]graph.Value{graph.StringValue(path)})
	require.NoError(t, err)
	q2, ok := out2.AsQuantity()
	require.True(t, ok)
	v2, ok := q2.At(map[string]string{"region": "north", "t": "2020"})
	require.True(t, ok)
	assert.Equal(t, 10.0, v2)
	assert.Equal(t, 1, loader.puts)
}

func TestWriteReportRoundTripsThroughLoadFile(t *testing.T) {
	dir := t.TempDir()
	reg := unit.NewRegistry()
	usd, err := reg.Lookup("USD")
	require.NoError(t, err)
	q, err := quantity.FromRows("x", []quantity.Row{
		{Coords: map[string]string{"t": "2020"}, Value: 42},
	}, []string{"t"}, usd)
	require.NoError(t, err)

	out := filepath.Join(dir, "report.csv")
	_, err = writeReport([]graph.Value{graph.QuantityValue(q), graph.StringValue(out)})
	require.NoError(t, err)

	ops := IOOperators(reg, nil)
	back, err := ops["load_file"]([]graph.Value{graph.StringValue(out)})
	require.NoError(t, err)
	r, ok := back.AsQuantity()
	require.True(t, ok)
	v, ok := r.At(map[string]string{"t": "2020"})
	require.True(t, ok)
	assert.Equal(t, 42.0, v)
}

func TestWriteReportRejectsNonCSVPath(t *testing.T) {
	q := quantity.Scalar(1)
	_, err := writeReport([]graph.Value{graph.QuantityValue(q), graph.StringValue("out.xlsx")})
	assert.Error(t, err)
}
