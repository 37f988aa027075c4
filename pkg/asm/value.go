package asm

import (
	"fmt"
	"math"
	"strconv"
)

// ValueKind tags the compile-time type of a Value.
type ValueKind int

const (
	VoidValue ValueKind = iota
	NumberValue
	StringValue
)

var valueKindNames = [...]string{
	VoidValue:   "void",
	NumberValue: "number",
	StringValue: "string",
}

func (vk ValueKind) String() string {
	if int(vk) >= 0 && int(vk) < len(valueKindNames) {
		return valueKindNames[vk]
	}
	return fmt.Sprintf("ValueKind(%d)", int(vk))
}

// Value is a compile-time constant: void, number, or string.
//
// Numbers keep the float64 alongside a decomposed integer and fractional
// part so that an integral literal always formats back to its exact digits
// instead of going through float rounding.
type Value struct {
	Kind  ValueKind
	Float float64
	Int   int64   // integer part of Float, truncated toward zero
	Frac  float64 // Float - Int
	Str   string
}

// VoidVal returns the void value.
func VoidVal() Value {
	return Value{Kind: VoidValue}
}

// NumberVal returns a number value with its decomposed parts filled in.
func NumberVal(f float64) Value {
	v := Value{Kind: NumberValue}
	v.SetNumber(f)
	return v
}

// StringVal returns a string value owning its own text.
func StringVal(s string) Value {
	return Value{Kind: StringValue, Str: s}
}

// SetNumber mutates v into a number, recomputing the decomposed parts.
func (v *Value) SetNumber(f float64) {
	v.Kind = NumberValue
	v.Float = f
	v.Int = int64(math.Trunc(f))
	v.Frac = f - math.Trunc(f)
	v.Str = ""
}

// SetString mutates v into a string.
func (v *Value) SetString(s string) {
	v.Kind = StringValue
	v.Float = 0
	v.Int = 0
	v.Frac = 0
	v.Str = s
}

// Copy returns an independent value; mutating the copy never affects v.
func (v Value) Copy() Value {
	return v
}

// IsTrue reports the truthiness of a value used as a condition: a nonzero
// number or a non-empty string.
func (v Value) IsTrue() bool {
	switch v.Kind {
	case NumberValue:
		return v.Float != 0
	case StringValue:
		return v.Str != ""
	}
	return false
}

// Concat joins two string values into a new string value.
func Concat(a, b Value) (Value, error) {
	if a.Kind != StringValue || b.Kind != StringValue {
		return Value{}, fmt.Errorf("cannot concatenate %s and %s", a.Kind, b.Kind)
	}
	return StringVal(a.Str + b.Str), nil
}

// String formats the value for diagnostics. Integral numbers print through
// the decomposed integer part, so 10.0 renders as "10", never "10.000000".
func (v Value) String() string {
	switch v.Kind {
	case NumberValue:
		if v.Frac == 0 {
			return strconv.FormatInt(v.Int, 10)
		}
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case StringValue:
		return v.Str
	}
	return "void"
}
