package quantity

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"quantengine/pkg/graphtypes"
	"quantengine/pkg/unit"
)

// wrapScalar wraps a bare number as a dimensionless Quantity carrying the
// other operand's units, per spec §4.2 rule 1: "If the other operand is a
// scalar number, wrap it as a dimensionless Quantity and propagate
// self.units to the result."
func wrapScalar(v float64, like Quantity) Quantity {
	return Scalar(v).WithUnits(like.units)
}

func unionDimsSorted(a, b Quantity) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, d := range a.dims {
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	for _, d := range b.dims {
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

func unionCoords(dims []string, a, b Quantity) map[string][]string {
	out := make(map[string][]string, len(dims))
	for _, d := range dims {
		seen := map[string]struct{}{}
		var labels []string
		if a.HasDim(d) {
			for _, l := range a.coords[d] {
				if _, ok := seen[l]; !ok {
					seen[l] = struct{}{}
					labels = append(labels, l)
				}
			}
		}
		if b.HasDim(d) {
			for _, l := range b.coords[d] {
				if _, ok := seen[l]; !ok {
					seen[l] = struct{}{}
					labels = append(labels, l)
				}
			}
		}
		sort.Strings(labels)
		out[d] = labels
	}
	return out
}

// HasDim reports whether d is one of q's dimensions.
func (q Quantity) HasDim(d string) bool {
	for _, x := range q.dims {
		if x == d {
			return true
		}
	}
	return false
}

// project restricts a full union-space coordinate assignment down to the
// subset of dims this operand actually has, producing the key to look up
// in its own sparse data. Dims the operand lacks are simply omitted from
// the key — this is what makes broadcasting along missing dims fall out
// of the same lookup used for "is this specific entry present."
func (q Quantity) project(assignment map[string]string) (string, bool) {
	parts := make([]string, len(q.dims))
	for i, d := range q.dims {
		v, ok := assignment[d]
		if !ok {
			return "", false
		}
		parts[i] = v
	}
	return strings.Join(parts, sep), true
}

type combineFn func(va, vb float64, okA, okB bool) (float64, bool)

// align enumerates the cartesian product of the union coordinate space and
// combines a's and b's values at each point via combine. combine returns
// (value, keep); keep=false drops the entry from the sparse result.
func align(a, b Quantity, dims []string, coords map[string][]string, combine combineFn) map[string]float64 {
	out := map[string]float64{}
	assignment := make(map[string]string, len(dims))
	var rec func(i int)
	rec = func(i int) {
		if i == len(dims) {
			aKey, _ := a.project(assignment)
			bKey, _ := b.project(assignment)
			va, okA := a.data[aKey]
			vb, okB := b.data[bKey]
			v, keep := combine(va, vb, okA, okB)
			if keep {
				key, _ := encodeFromMap(dims, assignment)
				out[key] = v
			}
			return
		}
		d := dims[i]
		labels := coords[d]
		if len(labels) == 0 {
			// Dim present in union but neither operand carries
			// coordinates for it (shouldn't normally happen); skip.
			return
		}
		for _, l := range labels {
			assignment[d] = l
			rec(i + 1)
		}
	}
	rec(0)
	return out
}

func (q Quantity) binaryResult(dims []string, coords map[string][]string, data map[string]float64, u unit.Unit, left Quantity) Quantity {
	return Quantity{
		name:   left.name,
		dims:   dims,
		coords: coords,
		data:   data,
		units:  u,
		attrs:  left.attrs,
	}
}

// Add implements the "+" operator: unit-compatible, right operand
// converted into left's units, missing entries behave as zero.
func (a Quantity) Add(bIn any) (Quantity, error) {
	b, err := coerce(bIn, a)
	if err != nil {
		return Quantity{}, err
	}
	factor, err := unit.ConvertFactor(b.units, a.units)
	if err != nil {
		return Quantity{}, &graphtypes.IncompatibleUnitsError{Left: a.units.String(), Right: b.units.String(), Op: "+"}
	}
	dims := unionDimsSorted(a, b)
	coords := unionCoords(dims, a, b)
	data := align(a, b, dims, coords, func(va, vb float64, okA, okB bool) (float64, bool) {
		if !okA && !okB {
			return 0, false
		}
		return va + vb*factor, true
	})
	return a.binaryResult(dims, coords, data, a.units, a), nil
}

// Sub implements the "-" operator with the same unit rules as Add.
func (a Quantity) Sub(bIn any) (Quantity, error) {
	b, err := coerce(bIn, a)
	if err != nil {
		return Quantity{}, err
	}
	factor, err := unit.ConvertFactor(b.units, a.units)
	if err != nil {
		return Quantity{}, &graphtypes.IncompatibleUnitsError{Left: a.units.String(), Right: b.units.String(), Op: "-"}
	}
	dims := unionDimsSorted(a, b)
	coords := unionCoords(dims, a, b)
	data := align(a, b, dims, coords, func(va, vb float64, okA, okB bool) (float64, bool) {
		if !okA && !okB {
			return 0, false
		}
		return va - vb*factor, true
	})
	return a.binaryResult(dims, coords, data, a.units, a), nil
}

// Mul implements the "*" operator: units and dims multiply/union, absent
// entries contribute nothing (result entry dropped rather than treated as
// zero).
func (a Quantity) Mul(bIn any) (Quantity, error) {
	b, err := coerce(bIn, a)
	if err != nil {
		return Quantity{}, err
	}
	dims := unionDimsSorted(a, b)
	coords := unionCoords(dims, a, b)
	data := align(a, b, dims, coords, func(va, vb float64, okA, okB bool) (float64, bool) {
		if !okA || !okB {
			return 0, false
		}
		return va * vb, true
	})
	return a.binaryResult(dims, coords, data, a.units.Mul(b.units), a), nil
}

// Div implements the "/" operator. Division by a missing entry yields a
// missing (absent) result entry, not infinity.
func (a Quantity) Div(bIn any) (Quantity, error) {
	b, err := coerce(bIn, a)
	if err != nil {
		return Quantity{}, err
	}
	dims := unionDimsSorted(a, b)
	coords := unionCoords(dims, a, b)
	data := align(a, b, dims, coords, func(va, vb float64, okA, okB bool) (float64, bool) {
		if !okA || !okB {
			return 0, false
		}
		return va / vb, true
	})
	return a.binaryResult(dims, coords, data, a.units.Div(b.units), a), nil
}

// Pow implements "**". The exponent must be dimensionless unless the base
// itself is dimensionless; when the base carries units, the exponent must
// reduce to a single uniform integer power (see DESIGN.md for why a
// per-entry-varying exponent cannot be expressed against one units
// attribute).
func (a Quantity) Pow(expIn any) (Quantity, error) {
	exp, err := coerce(expIn, a)
	if err != nil {
		return Quantity{}, err
	}
	if !exp.units.IsDimensionless() && !a.units.IsDimensionless() {
		return Quantity{}, &graphtypes.IncompatibleUnitsError{Left: a.units.String(), Right: exp.units.String(), Op: "**"}
	}
	resultUnits := a.units
	if !a.units.IsDimensionless() {
		n, ok := uniformIntValue(exp)
		if !ok {
			return Quantity{}, &graphtypes.TypeMismatchError{Context: "pow", Want: "uniform integer exponent for a unit-bearing base", Got: "varying exponent"}
		}
		resultUnits = a.units.Pow(n)
	}
	dims := unionDimsSorted(a, exp)
	coords := unionCoords(dims, a, exp)
	data := align(a, exp, dims, coords, func(va, ve float64, okA, okE bool) (float64, bool) {
		if !okA || !okE {
			return 0, false
		}
		return mathPow(va, ve), true
	})
	return a.binaryResult(dims, coords, data, resultUnits, a), nil
}

func uniformIntValue(q Quantity) (int, bool) {
	var first float64
	set := false
	for _, v := range q.data {
		if !set {
			first = v
			set = true
			continue
		}
		if v != first {
			return 0, false
		}
	}
	if !set {
		return 0, false
	}
	if first != float64(int(first)) {
		return 0, false
	}
	return int(first), true
}

func mathPow(base, exp float64) float64 {
	return math.Pow(base, exp)
}

// coerce normalizes the right-hand operand of a binary op: a Quantity
// passes through, a bare float64/int is wrapped per wrapScalar.
func coerce(v any, like Quantity) (Quantity, error) {
	switch t := v.(type) {
	case Quantity:
		return t, nil
	case float64:
		return wrapScalar(t, like), nil
	case int:
		return wrapScalar(float64(t), like), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return Quantity{}, &graphtypes.TypeMismatchError{Context: "binary operator operand", Want: "Quantity or number", Got: fmt.Sprintf("string %q", t)}
		}
		return wrapScalar(f, like), nil
	default:
		return Quantity{}, &graphtypes.TypeMismatchError{Context: "binary operator operand", Want: "Quantity or number", Got: fmt.Sprintf("%T", v)}
	}
}

// ConvertUnits scales magnitudes so the quantity is expressed in to,
// keeping the underlying physical quantity the same.
func (q Quantity) ConvertUnits(to unit.Unit) (Quantity, error) {
	factor, err := unit.ConvertFactor(q.units, to)
	if err != nil {
		return Quantity{}, &graphtypes.IncompatibleUnitsError{Left: q.units.String(), Right: to.String(), Op: "convert_units"}
	}
	nq := q.Copy()
	nq.data = make(map[string]float64, len(q.data))
	for k, v := range q.data {
		nq.data[k] = v * factor
	}
	nq.units = to
	return nq, nil
}
