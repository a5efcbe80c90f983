package operator

import (
	"quantengine/pkg/graph"
	"quantengine/pkg/graphtypes"
	"quantengine/pkg/quantity"
)

func asQuantity(v graph.Value) (quantity.Quantity, error) {
	if q, ok := v.AsQuantity(); ok {
		return q, nil
	}
	if s, ok := v.AsScalar(); ok {
		return quantity.Scalar(s), nil
	}
	return quantity.Quantity{}, &graphtypes.TypeMismatchError{Context: "operator argument", Want: "Quantity or scalar", Got: v.String()}
}

func asStrings(v graph.Value) ([]string, error) {
	seq, ok := v.AsSequence()
	if !ok {
		return nil, nil // absent dims list is valid (means "all"/"none" depending on caller)
	}
	out := make([]string, 0, len(seq))
	for _, item := range seq {
		s, ok := item.AsString()
		if !ok {
			return nil, &graphtypes.TypeMismatchError{Context: "string list element", Want: "string", Got: item.String()}
		}
		out = append(out, s)
	}
	return out, nil
}

func asBool(v graph.Value, def bool) bool {
	if s, ok := v.AsScalar(); ok {
		return s != 0
	}
	return def
}

func asFloat(v graph.Value, def float64) float64 {
	if s, ok := v.AsScalar(); ok {
		return s
	}
	return def
}

func asString(v graph.Value) (string, error) {
	s, ok := v.AsString()
	if !ok {
		return "", &graphtypes.TypeMismatchError{Context: "operator argument", Want: "string", Got: v.String()}
	}
	return s, nil
}

// asSelectors decodes a MappingValue of dim -> SequenceValue(string) into
// the map[string][]string shape Quantity.Sel expects.
func asSelectors(v graph.Value) (map[string][]string, error) {
	m, ok := v.AsMapping()
	if !ok {
		return nil, nil
	}
	out := make(map[string][]string, len(m))
	for dim, labelsVal := range m {
		labels, err := asStrings(labelsVal)
		if err != nil {
			return nil, err
		}
		out[dim] = labels
	}
	return out, nil
}

// asRenameMap decodes a MappingValue of old -> new string into a plain
// map[string]string, used by rename_dims and relabel's per-dim maps.
func asRenameMap(v graph.Value) (map[string]string, error) {
	m, ok := v.AsMapping()
	if !ok {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, vv := range m {
		s, err := asString(vv)
		if err != nil {
			return nil, err
		}
		out[k] = s
	}
	return out, nil
}

// asGroups decodes aggregate's grammar: {dim: {new_label: [old_labels]}}.
func asGroups(v graph.Value) (map[string]map[string][]string, error) {
	top, ok := v.AsMapping()
	if !ok {
		return nil, &graphtypes.TypeMismatchError{Context: "aggregate groups", Want: "mapping", Got: v.String()}
	}
	out := make(map[string]map[string][]string, len(top))
	for dim, byLabelVal := range top {
		byLabel, ok := byLabelVal.AsMapping()
		if !ok {
			return nil, &graphtypes.TypeMismatchError{Context: "aggregate groups[" + dim + "]", Want: "mapping", Got: byLabelVal.String()}
		}
		inner := make(map[string][]string, len(byLabel))
		for newLabel, oldLabelsVal := range byLabel {
			oldLabels, err := asStrings(oldLabelsVal)
			if err != nil {
				return nil, err
			}
			inner[newLabel] = oldLabels
		}
		out[dim] = inner
	}
	return out, nil
}

// asRelabelMap decodes relabel's per-dim rename mapping: {dim: {old: new}}.
func asRelabelMap(v graph.Value) (map[string]map[string]string, error) {
	top, ok := v.AsMapping()
	if !ok {
		return nil, &graphtypes.TypeMismatchError{Context: "relabel map", Want: "mapping", Got: v.String()}
	}
	out := make(map[string]map[string]string, len(top))
	for dim, innerVal := range top {
		inner, err := asRenameMap(innerVal)
		if err != nil {
			return nil, err
		}
		out[dim] = inner
	}
	return out, nil
}
