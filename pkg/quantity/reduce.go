package quantity

import (
	"sort"
)

// Sum reduces q over dims, dropping them. Units pass through unchanged.
// Summing over an empty dims list is the identity.
func (q Quantity) Sum(dims []string) Quantity {
	return q.reduce(dims, func(vals []float64) float64 {
		var s float64
		for _, v := range vals {
			s += v
		}
		return s
	})
}

// WeightedSum reduces q over dims, weighting each entry by the matching
// entry of weights (aligned by its own dims, broadcast the same way binary
// operators broadcast). A nil weights means an unweighted Sum.
func (q Quantity) WeightedSum(weights *Quantity, dims []string) (Quantity, error) {
	if weights == nil {
		return q.Sum(dims), nil
	}
	weighted, err := q.Mul(*weights)
	if err != nil {
		return Quantity{}, err
	}
	return weighted.Sum(dims), nil
}

// Max reduces q over dims by taking the maximum stored value; dims with no
// stored entries at all contribute nothing (absent groups are omitted).
func (q Quantity) Max(dims []string) Quantity {
	return q.reduce(dims, func(vals []float64) float64 {
		m := vals[0]
		for _, v := range vals[1:] {
			if v > m {
				m = v
			}
		}
		return m
	})
}

// Min reduces q over dims by taking the minimum stored value.
func (q Quantity) Min(dims []string) Quantity {
	return q.reduce(dims, func(vals []float64) float64 {
		m := vals[0]
		for _, v := range vals[1:] {
			if v < m {
				m = v
			}
		}
		return m
	})
}

func (q Quantity) reduce(dims []string, fold func([]float64) float64) Quantity {
	if len(dims) == 0 {
		return q.Copy()
	}
	drop := make(map[string]struct{}, len(dims))
	for _, d := range dims {
		drop[d] = struct{}{}
	}
	var keepDims []string
	for _, d := range q.dims {
		if _, ok := drop[d]; !ok {
			keepDims = append(keepDims, d)
		}
	}
	groups := map[string][]float64{}
	groupCoords := map[string]map[string]string{}
	for key, v := range q.data {
		coords := q.decodeKey(key)
		gKey, _ := encodeFromMap(keepDims, coords)
		groups[gKey] = append(groups[gKey], v)
		if groupCoords[gKey] == nil {
			sub := make(map[string]string, len(keepDims))
			for _, d := range keepDims {
				sub[d] = coords[d]
			}
			groupCoords[gKey] = sub
		}
	}
	data := make(map[string]float64, len(groups))
	coordSet := make(map[string]map[string]struct{}, len(keepDims))
	for _, d := range keepDims {
		coordSet[d] = map[string]struct{}{}
	}
	for gKey, vals := range groups {
		data[gKey] = fold(vals)
		for d, v := range groupCoords[gKey] {
			coordSet[d][v] = struct{}{}
		}
	}
	coords := make(map[string][]string, len(keepDims))
	for _, d := range keepDims {
		var labels []string
		for l := range coordSet[d] {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		coords[d] = labels
	}
	nq := q.Copy()
	nq.dims = keepDims
	nq.coords = coords
	nq.data = data
	return nq
}

// Cumprod returns the cumulative product of q's values along dim, walking
// coords[dim] in order within each group formed by the other dims. The
// running product's unit would in principle be unit**position, which
// cannot be expressed with this type's single units field once
// position varies per entry; as a documented simplification (see
// DESIGN.md) the result keeps q's original unit and only the magnitudes
// accumulate.
func (q Quantity) Cumprod(dim string) Quantity {
	otherDims := make([]string, 0, len(q.dims)-1)
	for _, d := range q.dims {
		if d != dim {
			otherDims = append(otherDims, d)
		}
	}
	order := q.coords[dim]
	rank := make(map[string]int, len(order))
	for i, l := range order {
		rank[l] = i
	}

	type entry struct {
		key    string
		coords map[string]string
	}
	groups := map[string][]entry{}
	for key := range q.data {
		coords := q.decodeKey(key)
		gKey, _ := encodeFromMap(otherDims, coords)
		groups[gKey] = append(groups[gKey], entry{key: key, coords: coords})
	}

	data := make(map[string]float64, len(q.data))
	for _, entries := range groups {
		sort.Slice(entries, func(i, j int) bool {
			return rank[entries[i].coords[dim]] < rank[entries[j].coords[dim]]
		})
		running := 1.0
		for _, e := range entries {
			running *= q.data[e.key]
			data[e.key] = running
		}
	}

	nq := q.Copy()
	nq.data = data
	return nq
}
