package dom

import (
	"fmt"
	"math"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface representing the constrained prop value types.
// Only Null, String, Int, Float, Bool, List, and Map implement it.
//
// Floats are allowed (unlike content-addressed IRs, props carry no identity
// requirement), but NaN and ±Inf are rejected at the canonical JSON boundary.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents an absent value. A prop diffed to Null means the key was
// removed.
type Null struct{}

func (Null) value() {}

// String represents a string prop value.
type String string

func (String) value() {}

// Int represents an integer prop value. Always int64.
type Int int64

func (Int) value() {}

// Float represents a floating-point prop value.
type Float float64

func (Float) value() {}

// Bool represents a boolean prop value.
type Bool bool

func (Bool) value() {}

// List represents an ordered sequence of values.
type List []Value

func (List) value() {}

// Map represents string-keyed values. Use SortedKeys for deterministic
// iteration.
type Map map[string]Value

func (Map) value() {}

// Props is the prop mapping attached to a descriptor node.
type Props = Map

// Equal reports structural equality of two values.
// Lists compare elementwise in order; maps compare by key set and value.
// Int and Float never compare equal to each other, even for equal magnitudes.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !Equal(v, bvv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// EqualSeq reports elementwise equality of two value sequences.
// Used for effect dependency comparison: nil and empty compare equal.
func EqualSeq(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// FromGo converts a plain Go value (as produced by YAML or JSON decoding)
// to a Value. Supported: nil, string, bool, int, int64, float64, []any,
// map[string]any, and Value itself. NaN and ±Inf floats are rejected.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("non-finite float is not a valid prop value: %v", val)
		}
		return Float(val), nil
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			converted, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = converted
		}
		return list, nil
	case map[string]any:
		m := make(Map, len(val))
		for k, elem := range val {
			converted, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			m[k] = converted
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported prop value type: %T", v)
	}
}

// DiffProps returns the prop delta between old and new: keys whose values
// changed or were added map to the new value, removed keys map to Null.
// Returns nil when nothing changed.
func DiffProps(old, new Props) Props {
	var changed Props
	for k, nv := range new {
		ov, ok := old[k]
		if !ok || !Equal(ov, nv) {
			if changed == nil {
				changed = make(Props)
			}
			changed[k] = nv
		}
	}
	for k := range old {
		if _, ok := new[k]; !ok {
			if changed == nil {
				changed = make(Props)
			}
			changed[k] = Null{}
		}
	}
	return changed
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order which produces a DIFFERENT order
// for strings containing supplementary-plane characters.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering as
// required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))

	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(ua) < len(ub):
		return -1
	case len(ua) > len(ub):
		return 1
	default:
		return 0
	}
}
