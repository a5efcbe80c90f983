package quantity

import "sort"

// Sel returns a sub-quantity restricted to the given labels per dim.
// Labels not present in coords are silently dropped (and logged at warn
// level). inverse selects the complement instead.
func (q Quantity) Sel(selectors map[string][]string, inverse bool) Quantity {
	wanted := make(map[string]map[string]bool, len(selectors))
	for d, labels := range selectors {
		present := map[string]bool{}
		existing := map[string]bool{}
		for _, l := range q.coords[d] {
			existing[l] = true
		}
		var dropped []string
		for _, l := range labels {
			if existing[l] {
				present[l] = true
			} else {
				dropped = append(dropped, l)
			}
		}
		warnDroppedLabels(d, dropped)
		wanted[d] = present
	}

	keep := func(coords map[string]string) bool {
		for d, set := range wanted {
			if !q.HasDim(d) {
				continue
			}
			in := set[coords[d]]
			if inverse {
				in = !in
			}
			if !in {
				return false
			}
		}
		return true
	}

	data := map[string]float64{}
	coordSet := make(map[string]map[string]struct{}, len(q.dims))
	for _, d := range q.dims {
		coordSet[d] = map[string]struct{}{}
	}
	for key, v := range q.data {
		coords := q.decodeKey(key)
		if !keep(coords) {
			continue
		}
		data[key] = v
		for d, l := range coords {
			coordSet[d][l] = struct{}{}
		}
	}
	coords := make(map[string][]string, len(q.dims))
	for _, d := range q.dims {
		var labels []string
		for l := range coordSet[d] {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		coords[d] = labels
	}
	nq := q.Copy()
	nq.coords = coords
	nq.data = data
	return nq
}

// SelScalar selects a single label on dim and drops that dim from the
// result, matching "scalar selection over a dim removes that dim."
func (q Quantity) SelScalar(dim, label string) Quantity {
	sub := q.Sel(map[string][]string{dim: {label}}, false)
	return sub.dropDim(dim)
}

func (q Quantity) dropDim(dim string) Quantity {
	var keepDims []string
	for _, d := range q.dims {
		if d != dim {
			keepDims = append(keepDims, d)
		}
	}
	data := make(map[string]float64, len(q.data))
	for key, v := range q.data {
		coords := q.decodeKey(key)
		nk, _ := encodeFromMap(keepDims, coords)
		data[nk] = v
	}
	coords := make(map[string][]string, len(keepDims))
	for _, d := range keepDims {
		coords[d] = q.coords[d]
	}
	nq := q.Copy()
	nq.dims = keepDims
	nq.coords = coords
	nq.data = data
	return nq
}

// RenameDims returns a copy with dimensions renamed per m (old -> new).
func (q Quantity) RenameDims(m map[string]string) Quantity {
	newDims := make([]string, len(q.dims))
	for i, d := range q.dims {
		if nd, ok := m[d]; ok {
			newDims[i] = nd
		} else {
			newDims[i] = d
		}
	}
	coords := make(map[string][]string, len(newDims))
	for i, d := range q.dims {
		coords[newDims[i]] = q.coords[d]
	}
	nq := q.Copy()
	nq.dims = newDims
	nq.coords = coords
	return nq
}

// Relabel returns a copy with coordinate labels renamed per m[dim][old] =
// new. Labels not mentioned are left unchanged.
func (q Quantity) Relabel(m map[string]map[string]string) Quantity {
	data := make(map[string]float64, len(q.data))
	for key, v := range q.data {
		coords := q.decodeKey(key)
		for d, renames := range m {
			if nv, ok := renames[coords[d]]; ok {
				coords[d] = nv
			}
		}
		nk, _ := encodeFromMap(q.dims, coords)
		data[nk] = v
	}
	coords := make(map[string][]string, len(q.dims))
	for _, d := range q.dims {
		seen := map[string]struct{}{}
		var labels []string
		renames := m[d]
		for _, l := range q.coords[d] {
			nl := l
			if renames != nil {
				if rv, ok := renames[l]; ok {
					nl = rv
				}
			}
			if _, ok := seen[nl]; !ok {
				seen[nl] = struct{}{}
				labels = append(labels, nl)
			}
		}
		sort.Strings(labels)
		coords[d] = labels
	}
	nq := q.Copy()
	nq.coords = coords
	nq.data = data
	return nq
}
