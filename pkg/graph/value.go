// Package graph implements the Graph: a keyed task store with a full-key
// index and an unsorted-key index, plus the topological evaluator used by
// pkg/compute.
package graph

import (
	"fmt"

	"quantengine/pkg/key"
	"quantengine/pkg/quantity"
)

// Value is the sum type flowing between tasks during evaluation: a Key
// reference, a materialized Quantity, a bare scalar, a mapping, or a
// sequence of further Values. Exactly one field is populated; use the
// constructors below rather than building a Value by hand.
type Value struct {
	key      *key.Key
	quantity *quantity.Quantity
	scalar   *float64
	str      *string
	mapping  map[string]Value
	sequence []Value
}

func KeyValue(k key.Key) Value           { return Value{key: &k} }
func QuantityValue(q quantity.Quantity) Value { return Value{quantity: &q} }
func ScalarValue(v float64) Value        { return Value{scalar: &v} }
func StringValue(s string) Value         { return Value{str: &s} }
func MappingValue(m map[string]Value) Value { return Value{mapping: m} }
func SequenceValue(vs []Value) Value     { return Value{sequence: vs} }

func (v Value) AsKey() (key.Key, bool) {
	if v.key == nil {
		return key.Key{}, false
	}
	return *v.key, true
}

func (v Value) AsQuantity() (quantity.Quantity, bool) {
	if v.quantity == nil {
		return quantity.Quantity{}, false
	}
	return *v.quantity, true
}

func (v Value) AsScalar() (float64, bool) {
	if v.scalar == nil {
		return 0, false
	}
	return *v.scalar, true
}

func (v Value) AsString() (string, bool) {
	if v.str == nil {
		return "", false
	}
	return *v.str, true
}

func (v Value) AsMapping() (map[string]Value, bool) {
	if v.mapping == nil {
		return nil, false
	}
	return v.mapping, true
}

func (v Value) AsSequence() ([]Value, bool) {
	if v.sequence == nil {
		return nil, false
	}
	return v.sequence, true
}

// IsZero reports whether no variant was ever set.
func (v Value) IsZero() bool {
	return v.key == nil && v.quantity == nil && v.scalar == nil && v.str == nil && v.mapping == nil && v.sequence == nil
}

func (v Value) String() string {
	switch {
	case v.key != nil:
		return v.key.String()
	case v.quantity != nil:
		return fmt.Sprintf("Quantity(%s)", v.quantity.Name())
	case v.scalar != nil:
		return fmt.Sprintf("%v", *v.scalar)
	case v.str != nil:
		return *v.str
	case v.mapping != nil:
		return fmt.Sprintf("Mapping(%d keys)", len(v.mapping))
	case v.sequence != nil:
		return fmt.Sprintf("Sequence(%d items)", len(v.sequence))
	default:
		return "<empty>"
	}
}
