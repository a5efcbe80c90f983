package operator

import (
	"fmt"
	"strconv"

	"quantengine/pkg/graph"
	"quantengine/pkg/graphtypes"
	"quantengine/pkg/quantity"
)

// Builtins returns the registry-independent operator module: the core
// arithmetic, reduction, selection and relabeling operators from spec.md
// §4.4 that need nothing but their arguments (no unit registry, no
// filesystem). ApplyUnits/AssignUnits/ConvertUnits and LoadFile/WriteReport
// live in separate constructors since they close over a *unit.Registry.
func Builtins() map[string]graph.Func {
	return map[string]graph.Func{
		"add":            Add,
		"sub":            Sub,
		"mul":            Mul,
		"product":        Mul, // variadic alias, per genno's builtin operator table
		"div":            Div,
		"pow":            Pow,
		"sum":            Sum,
		"share":          Share,
		"ratio":          Share,
		"max":            Max,
		"min":            Min,
		"cumprod":        Cumprod,
		"aggregate":      Aggregate,
		"combine":        Combine,
		"select":         Select,
		"broadcast_map":  BroadcastMap,
		"concat":         Concat,
		"rename_dims":    RenameDims,
		"relabel":        Relabel,
		"interpolate":    Interpolate,
		"group_sum":      GroupSum,
		"ffill":          FFill,
		"bfill":          BFill,
		"shift":          Shift,
	}
}

// Add implements the variadic "+" operator: left-fold over qs so the
// result's units and name come from the first operand, per §4.4's table.
func Add(args []graph.Value) (graph.Value, error) {
	if len(args) == 0 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "add", Want: "at least one operand", Got: "none"}
	}
	acc, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	for _, a := range args[1:] {
		q, err := asQuantity(a)
		if err != nil {
			return graph.Value{}, err
		}
		acc, err = acc.Add(q)
		if err != nil {
			return graph.Value{}, err
		}
	}
	return graph.QuantityValue(acc), nil
}

// Sub implements binary "-".
func Sub(args []graph.Value) (graph.Value, error) {
	if len(args) != 2 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "sub", Want: "exactly 2 operands", Got: strconv.Itoa(len(args))}
	}
	a, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	b, err := asQuantity(args[1])
	if err != nil {
		return graph.Value{}, err
	}
	r, err := a.Sub(b)
	if err != nil {
		return graph.Value{}, err
	}
	return graph.QuantityValue(r), nil
}

// Mul implements the variadic "*" operator (and doubles as "product").
func Mul(args []graph.Value) (graph.Value, error) {
	if len(args) == 0 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "mul", Want: "at least one operand", Got: "none"}
	}
	acc, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	for _, a := range args[1:] {
		q, err := asQuantity(a)
		if err != nil {
			return graph.Value{}, err
		}
		acc, err = acc.Mul(q)
		if err != nil {
			return graph.Value{}, err
		}
	}
	return graph.QuantityValue(acc), nil
}

// Div implements binary "/".
func Div(args []graph.Value) (graph.Value, error) {
	if len(args) != 2 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "div", Want: "exactly 2 operands", Got: strconv.Itoa(len(args))}
	}
	a, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	b, err := asQuantity(args[1])
	if err != nil {
		return graph.Value{}, err
	}
	r, err := a.Div(b)
	if err != nil {
		return graph.Value{}, err
	}
	return graph.QuantityValue(r), nil
}

// Pow implements binary "**": pow(q, exp).
func Pow(args []graph.Value) (graph.Value, error) {
	if len(args) != 2 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "pow", Want: "exactly 2 operands", Got: strconv.Itoa(len(args))}
	}
	a, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	exp, err := asQuantity(args[1])
	if err != nil {
		return graph.Value{}, err
	}
	r, err := a.Pow(exp)
	if err != nil {
		return graph.Value{}, err
	}
	return graph.QuantityValue(r), nil
}

// Sum implements sum(q, weights?, dims): args[1] is a weight Quantity (or
// scalar), or the zero Value (IsZero) for an unweighted sum; args[2] is
// the dims list to drop.
func Sum(args []graph.Value) (graph.Value, error) {
	if len(args) < 1 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "sum", Want: "at least 1 operand", Got: "none"}
	}
	q, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	var dims []string
	if len(args) >= 3 {
		dims, err = asStrings(args[2])
		if err != nil {
			return graph.Value{}, err
		}
	}
	if len(args) >= 2 && !args[1].IsZero() {
		w, err := asQuantity(args[1])
		if err != nil {
			return graph.Value{}, err
		}
		r, err := q.WeightedSum(&w, dims)
		if err != nil {
			return graph.Value{}, err
		}
		return graph.QuantityValue(r), nil
	}
	return graph.QuantityValue(q.Sum(dims)), nil
}

// Share implements the supplemental share(q, dims) = q / q.sum(dims), the
// ratio/normalized-breakdown operator from genno's reporting layer.
func Share(args []graph.Value) (graph.Value, error) {
	if len(args) < 1 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "share", Want: "at least 1 operand", Got: "none"}
	}
	q, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	var dims []string
	if len(args) >= 2 {
		dims, err = asStrings(args[1])
		if err != nil {
			return graph.Value{}, err
		}
	}
	total := q.Sum(dims)
	r, err := q.Div(total)
	if err != nil {
		return graph.Value{}, err
	}
	return graph.QuantityValue(r), nil
}

func reduceOp(args []graph.Value, fold func(quantity.Quantity, []string) quantity.Quantity) (graph.Value, error) {
	if len(args) < 1 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "reduce", Want: "at least 1 operand", Got: "none"}
	}
	q, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	var dims []string
	if len(args) >= 2 {
		dims, err = asStrings(args[1])
		if err != nil {
			return graph.Value{}, err
		}
	}
	return graph.QuantityValue(fold(q, dims)), nil
}

func Max(args []graph.Value) (graph.Value, error) {
	return reduceOp(args, func(q quantity.Quantity, dims []string) quantity.Quantity { return q.Max(dims) })
}

func Min(args []graph.Value) (graph.Value, error) {
	return reduceOp(args, func(q quantity.Quantity, dims []string) quantity.Quantity { return q.Min(dims) })
}

// Cumprod implements cumprod(q, dim).
func Cumprod(args []graph.Value) (graph.Value, error) {
	if len(args) != 2 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "cumprod", Want: "exactly 2 operands", Got: strconv.Itoa(len(args))}
	}
	q, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	dim, err := asString(args[1])
	if err != nil {
		return graph.Value{}, err
	}
	return graph.QuantityValue(q.Cumprod(dim)), nil
}

// Aggregate implements aggregate(q, groups, keep).
func Aggregate(args []graph.Value) (graph.Value, error) {
	if len(args) != 3 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "aggregate", Want: "exactly 3 operands", Got: strconv.Itoa(len(args))}
	}
	q, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	groups, err := asGroups(args[1])
	if err != nil {
		return graph.Value{}, err
	}
	keep := asBool(args[2], false)
	return graph.QuantityValue(q.Aggregate(groups, keep)), nil
}

// Combine implements combine(specs, *qs): args[0] is a SequenceValue, one
// MappingValue per input carrying "select" (optional selectors mapping)
// and "weight" (optional scalar, default 1); args[1:] are the already-
// resolved input Quantities, positionally paired with specs so each input
// can still arrive as an ordinary Key dependency of the call (genno's
// combine takes its quantities as positional operands and its per-input
// options as a parallel keyword list — the spec-then-quantities split is
// this module's equivalent, since a Call's Key dependencies can only be
// top-level operands, never nested inside a literal).
func Combine(args []graph.Value) (graph.Value, error) {
	if len(args) < 1 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "combine", Want: "at least 1 operand (spec sequence)", Got: "none"}
	}
	items, ok := args[0].AsSequence()
	if !ok {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "combine", Want: "sequence of input specs", Got: args[0].String()}
	}
	qs := args[1:]
	if len(items) != len(qs) {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "combine", Want: fmt.Sprintf("%d input quantities to match specs", len(items)), Got: strconv.Itoa(len(qs))}
	}
	var acc quantity.Quantity
	for i, itemVal := range items {
		item, ok := itemVal.AsMapping()
		if !ok {
			return graph.Value{}, &graphtypes.TypeMismatchError{Context: "combine item", Want: "mapping", Got: itemVal.String()}
		}
		q, err := asQuantity(qs[i])
		if err != nil {
			return graph.Value{}, err
		}
		if selVal, ok := item["select"]; ok {
			selectors, err := asSelectors(selVal)
			if err != nil {
				return graph.Value{}, err
			}
			if selectors != nil {
				q = q.Sel(selectors, false)
			}
		}
		weight := 1.0
		if wVal, ok := item["weight"]; ok {
			weight = asFloat(wVal, 1.0)
		}
		weighted, err := q.Mul(quantity.Scalar(weight))
		if err != nil {
			return graph.Value{}, err
		}
		if i == 0 {
			acc = weighted
			continue
		}
		acc, err = acc.Add(weighted)
		if err != nil {
			return graph.Value{}, err
		}
	}
	return graph.QuantityValue(acc), nil
}

// Select implements select(q, indexers, inverse).
func Select(args []graph.Value) (graph.Value, error) {
	if len(args) != 3 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "select", Want: "exactly 3 operands", Got: strconv.Itoa(len(args))}
	}
	q, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	selectors, err := asSelectors(args[1])
	if err != nil {
		return graph.Value{}, err
	}
	inverse := asBool(args[2], false)
	return graph.QuantityValue(q.Sel(selectors, inverse)), nil
}

// BroadcastMap implements broadcast_map(q, map, strict): map is a 0/1
// Quantity joining q's dim to a new dim. Grounded in the observation that
// a binary mapping-matrix broadcast is exactly multiply-then-sum-over-the
// -shared-dim, so this composes Mul and Sum rather than adding new
// primitives to the Quantity type.
func BroadcastMap(args []graph.Value) (graph.Value, error) {
	if len(args) != 3 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "broadcast_map", Want: "exactly 3 operands", Got: strconv.Itoa(len(args))}
	}
	q, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	m, err := asQuantity(args[1])
	if err != nil {
		return graph.Value{}, err
	}
	strict := asBool(args[2], false)
	if strict {
		var bad bool
		m.Iterate(func(_ map[string]string, v float64) {
			if v != 0 && v != 1 {
				bad = true
			}
		})
		if bad {
			return graph.Value{}, &graphtypes.TypeMismatchError{Context: "broadcast_map", Want: "0/1 mapping", Got: "non-binary value"}
		}
	}
	var sharedDim string
	for _, d := range m.Dims() {
		if q.HasDim(d) {
			sharedDim = d
			break
		}
	}
	if sharedDim == "" {
		return graph.Value{}, &graphtypes.DimensionError{Reason: "broadcast_map: mapping shares no dim with its operand"}
	}
	joined, err := q.Mul(m)
	if err != nil {
		return graph.Value{}, err
	}
	return graph.QuantityValue(joined.Sum([]string{sharedDim})), nil
}

// Concat implements concat(*qs, dim?): args[0] a sequence of Quantity,
// args[1] the dim name (empty string creates a new index dim).
func Concat(args []graph.Value) (graph.Value, error) {
	if len(args) < 1 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "concat", Want: "at least 1 operand", Got: "none"}
	}
	items, ok := args[0].AsSequence()
	if !ok {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "concat", Want: "sequence of Quantity", Got: args[0].String()}
	}
	qs := make([]quantity.Quantity, 0, len(items))
	for _, it := range items {
		q, err := asQuantity(it)
		if err != nil {
			return graph.Value{}, err
		}
		qs = append(qs, q)
	}
	dim := ""
	if len(args) >= 2 {
		dim, _ = asString(args[1])
	}
	r, err := quantity.Concat(dim, qs)
	if err != nil {
		return graph.Value{}, err
	}
	return graph.QuantityValue(r), nil
}

// RenameDims implements rename_dims(q, map).
func RenameDims(args []graph.Value) (graph.Value, error) {
	if len(args) != 2 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "rename_dims", Want: "exactly 2 operands", Got: strconv.Itoa(len(args))}
	}
	q, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	m, err := asRenameMap(args[1])
	if err != nil {
		return graph.Value{}, err
	}
	return graph.QuantityValue(q.RenameDims(m)), nil
}

// Relabel implements relabel(q, map): map is {dim: {old: new}}.
func Relabel(args []graph.Value) (graph.Value, error) {
	if len(args) != 2 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "relabel", Want: "exactly 2 operands", Got: strconv.Itoa(len(args))}
	}
	q, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	m, err := asRelabelMap(args[1])
	if err != nil {
		return graph.Value{}, err
	}
	return graph.QuantityValue(q.Relabel(m)), nil
}

// Interpolate implements interpolate(q, coords, extrapolate?): the method
// is always linear and no method argument is taken; args[2], when present,
// is a scalar 0/1 flag that enables extrapolation. No other keyword
// options are read.
func Interpolate(args []graph.Value) (graph.Value, error) {
	if len(args) < 2 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "interpolate", Want: "at least 2 operands", Got: strconv.Itoa(len(args))}
	}
	q, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	coordsMap, ok := args[1].AsMapping()
	if !ok || len(coordsMap) != 1 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "interpolate", Want: "single-entry {dim: [targets]} mapping", Got: args[1].String()}
	}
	var dim string
	var targetsVal graph.Value
	for d, v := range coordsMap {
		dim, targetsVal = d, v
	}
	targets, err := asStrings(targetsVal)
	if err != nil {
		return graph.Value{}, err
	}
	extrapolate := false
	if len(args) >= 3 {
		extrapolate = asBool(args[2], false)
	}
	r, err := q.Interp(dim, targets, extrapolate)
	if err != nil {
		return graph.Value{}, err
	}
	return graph.QuantityValue(r), nil
}

// GroupSum implements group_sum(q, group_dim, sum_dim): sums over sum_dim
// within each label of group_dim. Any other dims present on q are left
// untouched — only sum_dim is reduced.
func GroupSum(args []graph.Value) (graph.Value, error) {
	if len(args) != 3 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "group_sum", Want: "exactly 3 operands", Got: strconv.Itoa(len(args))}
	}
	q, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	groupDim, err := asString(args[1])
	if err != nil {
		return graph.Value{}, err
	}
	sumDim, err := asString(args[2])
	if err != nil {
		return graph.Value{}, err
	}
	if !q.HasDim(groupDim) {
		return graph.Value{}, &graphtypes.DimensionError{Reason: "group_sum: group_dim " + groupDim + " not present"}
	}
	if !q.HasDim(sumDim) {
		return graph.Value{}, &graphtypes.DimensionError{Reason: "group_sum: sum_dim " + sumDim + " not present"}
	}
	drop := []string{sumDim}
	return graph.QuantityValue(q.Sum(drop)), nil
}

// FFill implements ffill(q, dim).
func FFill(args []graph.Value) (graph.Value, error) {
	if len(args) != 2 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "ffill", Want: "exactly 2 operands", Got: strconv.Itoa(len(args))}
	}
	q, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	dim, err := asString(args[1])
	if err != nil {
		return graph.Value{}, err
	}
	return graph.QuantityValue(q.FFill(dim)), nil
}

// BFill implements bfill(q, dim).
func BFill(args []graph.Value) (graph.Value, error) {
	if len(args) != 2 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "bfill", Want: "exactly 2 operands", Got: strconv.Itoa(len(args))}
	}
	q, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	dim, err := asString(args[1])
	if err != nil {
		return graph.Value{}, err
	}
	return graph.QuantityValue(q.BFill(dim)), nil
}

// Shift implements shift(q, dim, n, fill).
func Shift(args []graph.Value) (graph.Value, error) {
	if len(args) != 4 {
		return graph.Value{}, &graphtypes.TypeMismatchError{Context: "shift", Want: "exactly 4 operands", Got: strconv.Itoa(len(args))}
	}
	q, err := asQuantity(args[0])
	if err != nil {
		return graph.Value{}, err
	}
	dim, err := asString(args[1])
	if err != nil {
		return graph.Value{}, err
	}
	n := int(asFloat(args[2], 0))
	fill := asFloat(args[3], 0)
	return graph.QuantityValue(q.Shift(dim, n, fill)), nil
}
