package quantity

import (
	"sort"
	"strconv"
	"strings"

	"quantengine/pkg/graphtypes"
)

// groupByOtherDims partitions q's entries by their assignment on every dim
// except dim, returning, per group key, the map of dim-label -> value
// present in that group.
func (q Quantity) groupByOtherDims(dim string) (otherDims []string, values map[string]map[string]float64) {
	for _, d := range q.dims {
		if d != dim {
			otherDims = append(otherDims, d)
		}
	}
	values = map[string]map[string]float64{}
	for key, v := range q.data {
		coords := q.decodeKey(key)
		gKey, _ := encodeFromMap(otherDims, coords)
		if values[gKey] == nil {
			values[gKey] = map[string]float64{}
		}
		values[gKey][coords[dim]] = v
	}
	return otherDims, values
}

// FFill forward-fills missing entries along dim using the order recorded
// in coords[dim]: a missing label takes the most recent prior present
// value within its group.
func (q Quantity) FFill(dim string) Quantity {
	return q.fill(dim, false)
}

// BFill backward-fills missing entries along dim.
func (q Quantity) BFill(dim string) Quantity {
	return q.fill(dim, true)
}

func (q Quantity) fill(dim string, backward bool) Quantity {
	otherDims, values := q.groupByOtherDims(dim)
	order := append([]string(nil), q.coords[dim]...)
	if backward {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}
	data := make(map[string]float64, len(q.data))
	for gKey := range values {
		last := 0.0
		haveLast := false
		for _, label := range order {
			v, ok := values[gKey][label]
			if ok {
				last, haveLast = v, true
			} else if haveLast {
				v = last
				ok = true
			}
			if ok {
				coords := decodeGroupKey(otherDims, gKey)
				coords[dim] = label
				key, _ := encodeFromMap(q.dims, coords)
				data[key] = v
			}
		}
	}
	nq := q.Copy()
	nq.data = data
	return nq
}

func decodeGroupKey(dims []string, key string) map[string]string {
	out := map[string]string{}
	if len(dims) == 0 {
		return out
	}
	parts := strings.Split(key, sep)
	for i, d := range dims {
		if i < len(parts) {
			out[d] = parts[i]
		}
	}
	return out
}

// Shift shifts integer positions along dim by n (positive moves values to
// later positions in coords[dim]'s order), filling newly-empty positions
// with fill.
func (q Quantity) Shift(dim string, n int, fill float64) Quantity {
	order := q.coords[dim]
	otherDims, values := q.groupByOtherDims(dim)
	data := make(map[string]float64, len(q.data))
	for gKey, byLabel := range values {
		coordsBase := decodeGroupKey(otherDims, gKey)
		for i, label := range order {
			srcIdx := i - n
			var v float64
			if srcIdx >= 0 && srcIdx < len(order) {
				srcLabel := order[srcIdx]
				if sv, ok := byLabel[srcLabel]; ok {
					v = sv
				} else {
					continue
				}
			} else {
				v = fill
			}
			coords := map[string]string{}
			for k, vv := range coordsBase {
				coords[k] = vv
			}
			coords[dim] = label
			key, _ := encodeFromMap(q.dims, coords)
			data[key] = v
		}
	}
	nq := q.Copy()
	nq.data = data
	return nq
}

// Interp linearly interpolates q along dim at the given numeric target
// coordinates. dim's existing coords must parse as float64. extrapolate
// controls behavior outside the known range: clamps to the nearest known
// value when false, linearly extends the boundary segment when true.
func (q Quantity) Interp(dim string, targets []string, extrapolate bool) (Quantity, error) {
	order := q.coords[dim]
	if len(order) < 2 {
		return Quantity{}, &graphtypes.DimensionError{Reason: "interp requires at least two known points along " + dim}
	}
	sortedOrder := append([]string(nil), order...)
	xs := make([]float64, len(sortedOrder))
	for i, l := range sortedOrder {
		x, err := strconv.ParseFloat(l, 64)
		if err != nil {
			return Quantity{}, &graphtypes.TypeMismatchError{Context: "interp", Want: "numeric coordinate", Got: l}
		}
		xs[i] = x
	}
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return xs[idx[i]] < xs[idx[j]] })
	sortedXs := make([]float64, len(xs))
	sortedLabels := make([]string, len(xs))
	for i, k := range idx {
		sortedXs[i] = xs[k]
		sortedLabels[i] = sortedOrder[k]
	}

	otherDims, values := q.groupByOtherDims(dim)
	data := make(map[string]float64, len(q.data)*len(targets)/max1(len(order)))
	newCoords := make([]string, 0, len(targets))

	for _, t := range targets {
		tx, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return Quantity{}, &graphtypes.TypeMismatchError{Context: "interp target", Want: "numeric coordinate", Got: t}
		}
		newCoords = append(newCoords, t)
		for gKey, byLabel := range values {
			v, ok := interpOne(sortedXs, sortedLabels, byLabel, tx, extrapolate)
			if !ok {
				continue
			}
			coords := decodeGroupKey(otherDims, gKey)
			coords[dim] = t
			key, _ := encodeFromMap(q.dims, coords)
			data[key] = v
		}
	}

	nq := q.Copy()
	coordsCopy := make(map[string][]string, len(q.coords))
	for k, v := range q.coords {
		coordsCopy[k] = append([]string(nil), v...)
	}
	coordsCopy[dim] = newCoords
	nq.coords = coordsCopy
	nq.data = data
	return nq, nil
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func interpOne(sortedXs []float64, sortedLabels []string, byLabel map[string]float64, tx float64, extrapolate bool) (float64, bool) {
	n := len(sortedXs)
	// Find bracket [i, i+1] such that sortedXs[i] <= tx <= sortedXs[i+1].
	i := sort.SearchFloat64s(sortedXs, tx)
	if i < n && sortedXs[i] == tx {
		v, ok := byLabel[sortedLabels[i]]
		return v, ok
	}
	lo, hi := i-1, i
	if lo < 0 {
		if !extrapolate {
			v, ok := byLabel[sortedLabels[0]]
			return v, ok
		}
		lo, hi = 0, 1
	}
	if hi >= n {
		if !extrapolate {
			v, ok := byLabel[sortedLabels[n-1]]
			return v, ok
		}
		lo, hi = n-2, n-1
	}
	vlo, okLo := byLabel[sortedLabels[lo]]
	vhi, okHi := byLabel[sortedLabels[hi]]
	if !okLo || !okHi {
		return 0, false
	}
	frac := (tx - sortedXs[lo]) / (sortedXs[hi] - sortedXs[lo])
	return vlo + frac*(vhi-vlo), true
}
