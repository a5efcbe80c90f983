package operator

import (
	"log/slog"

	"quantengine/pkg/graph"
	"quantengine/pkg/graphtypes"
	"quantengine/pkg/unit"
)

// UnitOperators returns the unit-relabeling/conversion operator module,
// which closes over reg so unit-expression string arguments can be
// parsed against the Computer's own registry rather than a package-level
// global (§9's "no global mutable state" design note).
func UnitOperators(reg *unit.Registry) map[string]graph.Func {
	return map[string]graph.Func{
		"apply_units":   applyUnits(reg),
		"assign_units":  assignUnits(reg),
		"convert_units": convertUnits(reg),
	}
}

func lookupUnitArg(reg *unit.Registry, v graph.Value) (unit.Unit, error) {
	expr, err := asString(v)
	if err != nil {
		return unit.Unit{}, err
	}
	u, err := reg.Lookup(expr)
	if err != nil {
		return unit.Unit{}, &graphtypes.TypeMismatchError{Context: "unit expression", Want: "valid unit syntax", Got: expr}
	}
	return u, nil
}

// applyUnits relabels q's units to u, warning when the two are not
// dimensionally compatible (a sign the caller may have meant convert or
// assign instead).
func applyUnits(reg *unit.Registry) graph.Func {
	return func(args []graph.Value) (graph.Value, error) {
		if len(args) != 2 {
			return graph.Value{}, &graphtypes.TypeMismatchError{Context: "apply_units", Want: "exactly 2 operands", Got: "wrong arity"}
		}
		q, err := asQuantity(args[0])
		if err != nil {
			return graph.Value{}, err
		}
		u, err := lookupUnitArg(reg, args[1])
		if err != nil {
			return graph.Value{}, err
		}
		if !q.Units().Compatible(u) {
			slog.Warn("apply_units: incompatible units", "from", q.Units().String(), "to", u.String())
		}
		return graph.QuantityValue(q.WithUnits(u)), nil
	}
}

// assignUnits overrides q's units without conversion or warning.
func assignUnits(reg *unit.Registry) graph.Func {
	return func(args []graph.Value) (graph.Value, error) {
		if len(args) != 2 {
			return graph.Value{}, &graphtypes.TypeMismatchError{Context: "assign_units", Want: "exactly 2 operands", Got: "wrong arity"}
		}
		q, err := asQuantity(args[0])
		if err != nil {
			return graph.Value{}, err
		}
		u, err := lookupUnitArg(reg, args[1])
		if err != nil {
			return graph.Value{}, err
		}
		return graph.QuantityValue(q.WithUnits(u)), nil
	}
}

// convertUnits scales q's magnitudes into u, failing on incompatible
// units.
func convertUnits(reg *unit.Registry) graph.Func {
	return func(args []graph.Value) (graph.Value, error) {
		if len(args) != 2 {
			return graph.Value{}, &graphtypes.TypeMismatchError{Context: "convert_units", Want: "exactly 2 operands", Got: "wrong arity"}
		}
		q, err := asQuantity(args[0])
		if err != nil {
			return graph.Value{}, err
		}
		u, err := lookupUnitArg(reg, args[1])
		if err != nil {
			return graph.Value{}, err
		}
		r, err := q.ConvertUnits(u)
		if err != nil {
			return graph.Value{}, err
		}
		return graph.QuantityValue(r), nil
	}
}
