package quantity

import (
	"log/slog"
	"sort"
)

// Aggregate implements §4.4's aggregate: groups is dim -> new_label ->
// old_labels; for each group, a new entry at new_label is created as the
// sum over that group's old_labels, with every other dim held fixed. If
// keep is false, the source old_labels entries on that dim are dropped
// from the result; if true they are retained alongside the new labels.
// Whether or not keep is set, a warning is logged for each new_label that
// collides with a label already present on that dim.
func (q Quantity) Aggregate(groups map[string]map[string][]string, keep bool) Quantity {
	data := make(map[string]float64, len(q.data))
	for k, v := range q.data {
		data[k] = v
	}
	coordSet := make(map[string]map[string]struct{}, len(q.dims))
	for _, d := range q.dims {
		coordSet[d] = map[string]struct{}{}
		for _, l := range q.coords[d] {
			coordSet[d][l] = struct{}{}
		}
	}

	for dim, byNewLabel := range groups {
		if !q.HasDim(dim) {
			continue
		}
		for newLabel, oldLabels := range byNewLabel {
			if _, collide := coordSet[dim][newLabel]; collide {
				slog.Warn("aggregate: label already present", "dim", dim, "label", newLabel)
			}
			oldSet := make(map[string]struct{}, len(oldLabels))
			for _, l := range oldLabels {
				oldSet[l] = struct{}{}
			}
			sums := map[string]float64{}
			for key, v := range q.data {
				coords := q.decodeKey(key)
				if _, in := oldSet[coords[dim]]; !in {
					continue
				}
				coords[dim] = newLabel
				gKey, err := encodeFromMap(q.dims, coords)
				if err != nil {
					continue
				}
				sums[gKey] += v
			}
			for gKey, v := range sums {
				data[gKey] = v
			}
			coordSet[dim][newLabel] = struct{}{}

			if !keep {
				for key := range q.data {
					coords := q.decodeKey(key)
					if _, in := oldSet[coords[dim]]; in {
						delete(data, key)
					}
				}
				for l := range oldSet {
					delete(coordSet[dim], l)
				}
			}
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
