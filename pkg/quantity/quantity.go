// Package quantity implements Quantity: a sparse, labeled, unit-aware
// N-dimensional array, and its unit- and label-preserving operators.
package quantity

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"quantengine/pkg/graphtypes"
	"quantengine/pkg/unit"
)

const sep = "\x1f"

// Quantity is values: sparse array -> float64, with named dims, per-dim
// ordered coordinate labels, a unit.Unit (dimensionless if unset) and
// attrs. The unit is held in its own field and read with Units(); the map
// returned by Attrs() has no "_unit" entry. Quantities are immutable
// after construction: every operator returns a new value.
type Quantity struct {
	name   string
	dims   []string
	coords map[string][]string
	data   map[string]float64
	units  unit.Unit
	attrs  map[string]any
}

// Scalar constructs a dimensionless, zero-dimension Quantity holding a
// single value.
func Scalar(v float64) Quantity {
	return Quantity{
		dims:   nil,
		coords: map[string][]string{},
		data:   map[string]float64{"": v},
		units:  unit.Dimensionless,
		attrs:  map[string]any{},
	}
}

// Row is one entry of the long-format (tabular) representation used by
// ToSeries/FromSeries and by CSV/Arrow I/O.
type Row struct {
	Coords map[string]string
	Value  float64
}

// New constructs a Quantity from its dims (order matters for rendering and
// iteration, not for equality of value), per-dim ordered coordinate
// labels, and sparse data keyed by the encoded coordinate tuple (use
// EncodeKey). units defaults to dimensionless if the zero value is passed.
func New(name string, dims []string, coords map[string][]string, data map[string]float64, u unit.Unit) Quantity {
	dimsCopy := append([]string(nil), dims...)
	coordsCopy := make(map[string][]string, len(coords))
	for d, labels := range coords {
		coordsCopy[d] = append([]string(nil), labels...)
	}
	dataCopy := make(map[string]float64, len(data))
	for k, v := range data {
		dataCopy[k] = v
	}
	return Quantity{
		name:   name,
		dims:   dimsCopy,
		coords: coordsCopy,
		data:   dataCopy,
		units:  u,
		attrs:  map[string]any{},
	}
}

// FromRows builds a Quantity from the long-format Row representation
// (spec §4.2's tabular-series construction path). dims not given are
// inferred as the sorted union of coordinate keys across rows. A
// single-column table (rows with no coordinate keys at all) collapses to
// a Scalar-shaped Quantity, matching "construction from a single-column
// table unpacks the column."
func FromRows(name string, rows []Row, dims []string, u unit.Unit) (Quantity, error) {
	if dims == nil {
		seen := map[string]struct{}{}
		for _, r := range rows {
			for d := range r.Coords {
				seen[d] = struct{}{}
			}
		}
		for d := range seen {
			dims = append(dims, d)
		}
		sort.Strings(dims)
	}
	coordSet := make(map[string]map[string]struct{}, len(dims))
	for _, d := range dims {
		coordSet[d] = map[string]struct{}{}
	}
	data := map[string]float64{}
	for _, r := range rows {
		key, err := encodeFromMap(dims, r.Coords)
		if err != nil {
			return Quantity{}, err
		}
		data[key] = r.Value
		for _, d := range dims {
			coordSet[d][r.Coords[d]] = struct{}{}
		}
	}
	coords := make(map[string][]string, len(dims))
	for _, d := range dims {
		var labels []string
		for l := range coordSet[d] {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		coords[d] = labels
	}
	return New(name, dims, coords, data, u), nil
}

// Copy returns a copy-on-write clone: a new Quantity struct (and cloned
// attrs map, per §4.2 "copy-on-write attrs") backed by the same sparse
// data, since Quantity values are never mutated in place.
func (q Quantity) Copy() Quantity {
	nq := q
	nq.attrs = make(map[string]any, len(q.attrs))
	for k, v := range q.attrs {
		nq.attrs[k] = v
	}
	return nq
}

// WithName returns a copy with name replaced.
func (q Quantity) WithName(name string) Quantity {
	nq := q.Copy()
	nq.name = name
	return nq
}

// WithAttr returns a copy with attrs[key] = value. Setting "_unit" this
// way is equivalent to AssignUnits.
func (q Quantity) WithAttr(key string, value any) Quantity {
	nq := q.Copy()
	if key == "_unit" {
		if u, ok := value.(unit.Unit); ok {
			nq.units = u
			return nq
		}
	}
	if nq.attrs == nil {
		nq.attrs = map[string]any{}
	}
	nq.attrs[key] = value
	return nq
}

func (q Quantity) Name() string               { return q.name }
func (q Quantity) Dims() []string             { return append([]string(nil), q.dims...) }
func (q Quantity) Units() unit.Unit           { return q.units }
func (q Quantity) Attrs() map[string]any      { return q.attrs }
func (q Quantity) Coords(dim string) []string { return append([]string(nil), q.coords[dim]...) }
func (q Quantity) Len() int                   { return len(q.data) }

// WithUnits overrides the units carried by the quantity without converting
// magnitudes (AssignUnits semantics); ConvertUnits (in ops.go) scales
// magnitudes.
func (q Quantity) WithUnits(u unit.Unit) Quantity {
	nq := q.Copy()
	nq.units = u
	return nq
}

// encodeFromMap projects a coordinate map onto dims (in order) and joins
// the labels with an unprintable separator, producing the sparse map key.
func encodeFromMap(dims []string, m map[string]string) (string, error) {
	parts := make([]string, len(dims))
	for i, d := range dims {
		v, ok := m[d]
		if !ok {
			return "", &graphtypes.DimensionError{Reason: fmt.Sprintf("row missing coordinate for dim %s", d)}
		}
		parts[i] = v
	}
	return strings.Join(parts, sep), nil
}

// At looks up a single value by fully-specified coordinates (one label per
// dim, in q.Dims() order, by name). Returns (0, false) if absent.
func (q Quantity) At(coords map[string]string) (float64, bool) {
	key, err := encodeFromMap(q.dims, coords)
	if err != nil {
		return 0, false
	}
	v, ok := q.data[key]
	return v, ok
}

// Iterate calls fn for every stored (non-fill) entry, decoding the sparse
// key back into a coordinate map.
func (q Quantity) Iterate(fn func(coords map[string]string, value float64)) {
	for key, v := range q.data {
		coords := q.decodeKey(key)
		fn(coords, v)
	}
}

func (q Quantity) decodeKey(key string) map[string]string {
	out := make(map[string]string, len(q.dims))
	if len(q.dims) == 0 {
		return out
	}
	parts := strings.Split(key, sep)
	for i, d := range q.dims {
		if i < len(parts) {
			out[d] = parts[i]
		}
	}
	return out
}

func warnDroppedLabels(dim string, labels []string) {
	if len(labels) == 0 {
		return
	}
	slog.Warn("labels not present in coords were dropped", "dim", dim, "labels", labels)
}
