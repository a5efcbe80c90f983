package quantity

import (
	"sort"
	"strconv"

	"quantengine/pkg/graphtypes"
)

// Concat unions qs along dim, per §4.4: if dim already names a dimension
// carried by the operands, their coordinate spaces on that dim are
// unioned directly (a later operand's entry wins on overlap); if dim is
// empty, a brand-new dimension is created with synthetic index labels
// "0", "1", … — one per operand — on a new dim named "concat", placed
// among the other dims in sorted order.
func Concat(dim string, qs []Quantity) (Quantity, error) {
	if len(qs) == 0 {
		return Quantity{}, &graphtypes.DimensionError{Reason: "concat requires at least one operand"}
	}
	if dim == "" {
		return concatNewIndex(qs)
	}
	return concatAlongExisting(dim, qs)
}

func concatAlongExisting(dim string, qs []Quantity) (Quantity, error) {
	dims := unionDimsSortedN(qs)
	hasDim := false
	for _, d := range dims {
		if d == dim {
			hasDim = true
			break
		}
	}
	if !hasDim {
		dims = append(dims, dim)
		sort.Strings(dims)
	}

	data := map[string]float64{}
	coordSet := make(map[string]map[string]struct{}, len(dims))
	for _, d := range dims {
		coordSet[d] = map[string]struct{}{}
	}
	for _, q := range qs {
		q.Iterate(func(coords map[string]string, v float64) {
			key, err := encodeFromMap(dims, coords)
			if err != nil {
				return
			}
			data[key] = v
			for d, l := range coords {
				coordSet[d][l] = struct{}{}
			}
		})
	}
	coords := sortedCoordMap(dims, coordSet)
	return New(qs[0].name, dims, coords, data, qs[0].units), nil
}

func concatNewIndex(qs []Quantity) (Quantity, error) {
	baseDims := unionDimsSortedN(qs)
	const newDim = "concat"
	dims := append(append([]string(nil), baseDims...), newDim)
	sort.Strings(dims)

	data := map[string]float64{}
	coordSet := make(map[string]map[string]struct{}, len(dims))
	for _, d := range dims {
		coordSet[d] = map[string]struct{}{}
	}
	for i, q := range qs {
		label := strconv.Itoa(i)
		q.Iterate(func(coords map[string]string, v float64) {
			full := make(map[string]string, len(coords)+1)
			for k, v2 := range coords {
				full[k] = v2
			}
			full[newDim] = label
			key, err := encodeFromMap(dims, full)
			if err != nil {
				return
			}
			data[key] = v
			for d, l := range full {
				coordSet[d][l] = struct{}{}
			}
		})
	}
	coords := sortedCoordMap(dims, coordSet)
	return New(qs[0].name, dims, coords, data, qs[0].units), nil
}

func unionDimsSortedN(qs []Quantity) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, q := range qs {
		for _, d := range q.dims {
			if _, ok := seen[d]; !ok {
				seen[d] = struct{}{}
				out = append(out, d)
			}
		}
	}
	sort.Strings(out)
	return out
}

func sortedCoordMap(dims []string, coordSet map[string]map[string]struct{}) map[string][]string {
	coords := make(map[string][]string, len(dims))
	for _, d := range dims {
		var labels []string
		for l := range coordSet[d] {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		coords[d] = labels
	}
	return coords
}
