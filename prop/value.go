// Package prop implements the property-map value model: a tagged-union
// typed value (PropValue) and a reference-counted, copy-on-write
// property map (Map) that a PID's producer publishes and a PID-instance
// pins against the packet it last read.
//
// The typed-value union mirrors gravwell's entry.EnumeratedData
// tagged union (a one-byte kind plus a native Go value), generalized
// here to carry the native value directly rather than an encoded byte
// slice, since property maps are in-memory only and never serialized
// on a wire in this core (no transport I/O, per the framework's
// non-goals).
package prop

import (
	"errors"
	"fmt"
)

// Kind identifies the native type carried by a PropValue.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindUint
	KindLong  // int64, distinct from Int in the signed/unsigned/long split
	KindFloat
	KindDouble
	KindFraction
	KindString
	KindData
	KindList
)

var ErrUnknownType = errors.New("prop: unsupported native type")

// Fraction is a simple numerator/denominator pair, used by media
// properties like frame rate or sample aspect ratio.
type Fraction struct {
	Num, Den int64
}

// PropValue is an immutable typed property value.
type PropValue struct {
	kind Kind
	b    bool
	i    int64
	u    uint64
	f32  float32
	f64  float64
	frac Fraction
	str  string
	data []byte
	list []PropValue
}

func BoolValue(v bool) PropValue     { return PropValue{kind: KindBool, b: v} }
func IntValue(v int64) PropValue     { return PropValue{kind: KindInt, i: v} }
func UintValue(v uint64) PropValue   { return PropValue{kind: KindUint, u: v} }
func LongValue(v int64) PropValue    { return PropValue{kind: KindLong, i: v} }
func FloatValue(v float32) PropValue { return PropValue{kind: KindFloat, f32: v} }
func DoubleValue(v float64) PropValue { return PropValue{kind: KindDouble, f64: v} }
func FractionValue(num, den int64) PropValue {
	return PropValue{kind: KindFraction, frac: Fraction{Num: num, Den: den}}
}
func StringValue(v string) PropValue { return PropValue{kind: KindString, str: v} }
func DataValue(v []byte) PropValue   { return PropValue{kind: KindData, data: v} }
func ListValue(v []PropValue) PropValue {
	cp := make([]PropValue, len(v))
	copy(cp, v)
	return PropValue{kind: KindList, list: cp}
}

// Infer builds a PropValue from a native Go value, mirroring
// entry.InferEnumeratedData's switch-on-type dispatch.
func Infer(val interface{}) (PropValue, error) {
	switch v := val.(type) {
	case bool:
		return BoolValue(v), nil
	case int:
		return IntValue(int64(v)), nil
	case int32:
		return IntValue(int64(v)), nil
	case int64:
		return LongValue(v), nil
	case uint:
		return UintValue(uint64(v)), nil
	case uint32:
		return UintValue(uint64(v)), nil
	case uint64:
		return UintValue(v), nil
	case float32:
		return FloatValue(v), nil
	case float64:
		return DoubleValue(v), nil
	case Fraction:
		return FractionValue(v.Num, v.Den), nil
	case string:
		return StringValue(v), nil
	case []byte:
		return DataValue(v), nil
	case []PropValue:
		return ListValue(v), nil
	}
	return PropValue{}, ErrUnknownType
}

func (v PropValue) Kind() Kind { return v.kind }

// Equal reports whether two values carry the same kind and content.
// Cross-kind comparisons are never equal, matching the capability
// matcher's requirement that comparisons are on a single declared key.
func (v PropValue) Equal(o PropValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt, KindLong:
		return v.i == o.i
	case KindUint:
		return v.u == o.u
	case KindFloat:
		return v.f32 == o.f32
	case KindDouble:
		return v.f64 == o.f64
	case KindFraction:
		return v.frac == o.frac
	case KindString:
		return v.str == o.str
	case KindData:
		if len(v.data) != len(o.data) {
			return false
		}
		for i := range v.data {
			if v.data[i] != o.data[i] {
				return false
			}
		}
		return true
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value for logs and the filename template engine.
func (v PropValue) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt, KindLong:
		return fmt.Sprintf("%d", v.i)
	case KindUint:
		return fmt.Sprintf("%d", v.u)
	case KindFloat:
		return fmt.Sprintf("%g", v.f32)
	case KindDouble:
		return fmt.Sprintf("%g", v.f64)
	case KindFraction:
		return fmt.Sprintf("%d/%d", v.frac.Num, v.frac.Den)
	case KindString:
		return v.str
	case KindData:
		return fmt.Sprintf("<%d bytes>", len(v.data))
	case KindList:
		return fmt.Sprintf("<list of %d>", len(v.list))
	}
	return ""
}

func (v PropValue) Int() (int64, bool) {
	switch v.kind {
	case KindInt, KindLong:
		return v.i, true
	case KindUint:
		return int64(v.u), true
	}
	return 0, false
}

func (v PropValue) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v PropValue) Fraction() (Fraction, bool) {
	if v.kind != KindFraction {
		return Fraction{}, false
	}
	return v.frac, true
}
