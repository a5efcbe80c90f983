package quantity

import (
	"sort"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"

	"quantengine/pkg/graphtypes"
	"quantengine/pkg/unit"
)

// ToSeries returns the long-format (tabular) representation of q: one Row
// per stored entry. Coordinate order within a Row is keyed by dim name, so
// round-tripping through FromSeries may normalize coordinate order but
// never loses a value or a dim.
func (q Quantity) ToSeries() []Row {
	rows := make([]Row, 0, len(q.data))
	for key, v := range q.data {
		rows = append(rows, Row{Coords: q.decodeKey(key), Value: v})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rowKey(rows[i]) < rowKey(rows[j])
	})
	return rows
}

func rowKey(r Row) string {
	var dims []string
	for d := range r.Coords {
		dims = append(dims, d)
	}
	sort.Strings(dims)
	s := ""
	for _, d := range dims {
		s += d + "=" + r.Coords[d] + ";"
	}
	return s
}

// FromSeries is the bijective inverse of ToSeries: dims are inferred as
// the sorted union of coordinate keys across rows, per §4.2.
func FromSeries(name string, rows []Row, u unit.Unit) (Quantity, error) {
	return FromRows(name, rows, nil, u)
}

// ToArrowRecord renders q as a columnar Arrow record: one string column
// per dim plus a "value" float64 column, long-format like ToSeries. No
// other package in this module calls it: pkg/cache stores JSON rows and
// write_report writes CSV.
func (q Quantity) ToArrowRecord(pool memory.Allocator) arrow.Record {
	if pool == nil {
		pool = memory.NewGoAllocator()
	}
	fields := make([]arrow.Field, 0, len(q.dims)+1)
	for _, d := range q.dims {
		fields = append(fields, arrow.Field{Name: d, Type: arrow.BinaryTypes.String})
	}
	fields = append(fields, arrow.Field{Name: "value", Type: arrow.PrimitiveTypes.Float64})
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(pool, schema)
	defer b.Release()

	rows := q.ToSeries()
	for i, d := range q.dims {
		sb := b.Field(i).(*array.StringBuilder)
		for _, r := range rows {
			sb.Append(r.Coords[d])
		}
	}
	vb := b.Field(len(q.dims)).(*array.Float64Builder)
	for _, r := range rows {
		vb.Append(r.Value)
	}

	return b.NewRecord()
}

// FromArrowRecord is the inverse of ToArrowRecord: it expects a schema
// whose last field is "value" (float64) and every preceding field a
// string-typed dim column.
func FromArrowRecord(name string, rec arrow.Record, u unit.Unit) (Quantity, error) {
	schema := rec.Schema()
	n := int(schema.NumFields())
	if n < 1 {
		return Quantity{}, &graphtypes.DimensionError{Reason: "arrow record has no columns"}
	}
	valueIdx := n - 1
	if schema.Field(valueIdx).Name != "value" {
		return Quantity{}, &graphtypes.DimensionError{Reason: "arrow record's last column must be named \"value\""}
	}
	dims := make([]string, 0, valueIdx)
	for i := 0; i < valueIdx; i++ {
		dims = append(dims, schema.Field(i).Name)
	}

	valueCol, ok := rec.Column(valueIdx).(*array.Float64)
	if !ok {
		return Quantity{}, &graphtypes.TypeMismatchError{Context: "arrow record value column", Want: "float64", Got: rec.Column(valueIdx).DataType().Name()}
	}
	dimCols := make([]*array.String, len(dims))
	for i := range dims {
		sc, ok := rec.Column(i).(*array.String)
		if !ok {
			return Quantity{}, &graphtypes.TypeMismatchError{Context: "arrow record dim column", Want: "string", Got: rec.Column(i).DataType().Name()}
		}
		dimCols[i] = sc
	}

	rows := make([]Row, 0, rec.NumRows())
	for r := 0; r < int(rec.NumRows()); r++ {
		coords := make(map[string]string, len(dims))
		for i, d := range dims {
			coords[d] = dimCols[i].Value(r)
		}
		rows = append(rows, Row{Coords: coords, Value: valueCol.Value(r)})
	}
	return FromRows(name, rows, dims, u)
}
