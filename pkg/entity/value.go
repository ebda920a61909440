package entity

import (
	"fmt"
	"time"
)

// Kind tags the dynamic type carried by a Value, mirroring the attribute
// kinds the store schema declares: boolean, int32, int64,
// double, string, timestamp, and id.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindFloat64
	KindString
	KindTime
	KindID
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindID:
		return "id"
	default:
		return "null"
	}
}

// Value is a tagged union round-tripping the attribute kinds the schema
// supports without loss, per Design Note "Attribute map abstraction".
// Only the field matching Kind is meaningful.
type Value struct {
	Kind Kind
	B    bool
	I32  int32
	I64  int64
	F64  float64
	S    string
	T    time.Time
	IDV  ID
}

// AttrMap is a mapping of attribute name to tagged value, the store's
// dynamic attribute representation (entities carry no fixed schema).
type AttrMap map[string]Value

// NullValue returns the absent-value sentinel.
func NullValue() Value { return Value{Kind: KindNull} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{Kind: KindBool, B: b} }

// Int32Value wraps an int32.
func Int32Value(i int32) Value { return Value{Kind: KindInt32, I32: i} }

// Int64Value wraps an int64.
func Int64Value(i int64) Value { return Value{Kind: KindInt64, I64: i} }

// Float64Value wraps a float64.
func Float64Value(f float64) Value { return Value{Kind: KindFloat64, F64: f} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{Kind: KindString, S: s} }

// TimeValue wraps a time.Time.
func TimeValue(t time.Time) Value { return Value{Kind: KindTime, T: t} }

// IDValue wraps an opaque id reference.
func IDValue(id ID) Value { return Value{Kind: KindID, IDV: id} }

// Float64 extracts a numeric value as float64, widening ints. Returns
// false for non-numeric kinds.
func (v Value) Float64() (float64, bool) {
	switch v.Kind {
	case KindFloat64:
		return v.F64, true
	case KindInt32:
		return float64(v.I32), true
	case KindInt64:
		return float64(v.I64), true
	default:
		return 0, false
	}
}

// Bool extracts a boolean value.
func (v Value) Bool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.B, true
}

// String extracts a string value.
func (v Value) String() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.S, true
}

// Equal compares two values for content equality. Values of an
// unrecognized kind never compare equal.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.B == o.B
	case KindInt32:
		return v.I32 == o.I32
	case KindInt64:
		return v.I64 == o.I64
	case KindFloat64:
		return v.F64 == o.F64
	case KindString:
		return v.S == o.S
	case KindTime:
		return v.T.Equal(o.T)
	case KindID:
		return v.IDV == o.IDV
	default:
		return false
	}
}

// Compare orders two values of the same kind, returning -1/0/1. Only
// numeric, string, time, and id kinds are ordered; other kinds return an
// error, since the store's comparison selection only makes
// sense against orderable attribute kinds.
func (v Value) Compare(o Value) (int, error) {
	if v.Kind != o.Kind {
		if vf, ok := v.Float64(); ok {
			if of, ok2 := o.Float64(); ok2 {
				return cmpFloat(vf, of), nil
			}
		}
		return 0, fmt.Errorf("entity: cannot compare %s with %s", v.Kind, o.Kind)
	}
	switch v.Kind {
	case KindFloat64, KindInt32, KindInt64:
		vf, _ := v.Float64()
		of, _ := o.Float64()
		return cmpFloat(vf, of), nil
	case KindString:
		switch {
		case v.S < o.S:
			return -1, nil
		case v.S > o.S:
			return 1, nil
		default:
			return 0, nil
		}
	case KindTime:
		switch {
		case v.T.Before(o.T):
			return -1, nil
		case v.T.After(o.T):
			return 1, nil
		default:
			return 0, nil
		}
	case KindID:
		switch {
		case v.IDV < o.IDV:
			return -1, nil
		case v.IDV > o.IDV:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, fmt.Errorf("entity: kind %s is not orderable", v.Kind)
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
