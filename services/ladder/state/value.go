// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package state

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// -----------------------------------------------------------------------------
// Kind
// -----------------------------------------------------------------------------

// Kind identifies which member of the Value union is populated.
type Kind uint8

const (
	// KindNone marks the zero Value. It is never stored as a tag value and
	// only signals "no value" (for example, no previous committed value).
	KindNone Kind = iota

	// KindBool is a boolean bit.
	KindBool

	// KindInt is a signed 64-bit integer.
	KindInt

	// KindReal is a 64-bit float.
	KindReal

	// KindText is a string.
	KindText
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind name back into a Kind.
//
// Accepts the names produced by Kind.String plus the common aliases
// "boolean", "integer", "float" and "string".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "bool", "boolean":
		return KindBool, nil
	case "int", "integer":
		return KindInt, nil
	case "real", "float":
		return KindReal, nil
	case "text", "string":
		return KindText, nil
	default:
		return KindNone, fmt.Errorf("%w: unknown kind %q", ErrTypeMismatch, s)
	}
}

// IsNumeric reports whether the kind participates in arithmetic.
// Booleans count as numeric (0/1) the way ladder math treats bits.
func (k Kind) IsNumeric() bool {
	return k == KindBool || k == KindInt || k == KindReal
}

// -----------------------------------------------------------------------------
// Value
// -----------------------------------------------------------------------------

// Value is a tagged union of bool, int64, float64 and string.
//
// Description:
//
//	The zero Value has KindNone and represents "no value". Values are
//	compared with Equal; == also works because all members are comparable,
//	but Equal ignores the unused members explicitly.
//
// Thread Safety: Immutable, safe for concurrent use.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Real returns a float Value.
func Real(f float64) Value { return Value{kind: KindReal, f: f} }

// Text returns a string Value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Zero returns the typed default for a kind: false, 0, 0.0 or "".
func Zero(k Kind) Value {
	switch k {
	case KindBool:
		return Bool(false)
	case KindInt:
		return Int(0)
	case KindReal:
		return Real(0)
	case KindText:
		return Text("")
	default:
		return Value{}
	}
}

// Of converts a Go scalar into a Value.
//
// Inputs:
//   - x: bool, any signed or unsigned integer, float32/float64, string, or
//     a Value (returned unchanged).
//
// Outputs:
//   - Value: The converted value.
//   - error: ErrUnsupportedValue for any other type.
func Of(x any) (Value, error) {
	switch v := x.(type) {
	case Value:
		if v.kind == KindNone {
			return Value{}, fmt.Errorf("%w: none value", ErrUnsupportedValue)
		}
		return v, nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(int64(v)), nil
	case int8:
		return Int(int64(v)), nil
	case int16:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, v)
		}
		return Int(int64(v)), nil
	case uint8:
		return Int(int64(v)), nil
	case uint16:
		return Int(int64(v)), nil
	case uint32:
		return Int(int64(v)), nil
	case uint64:
		if v > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, v)
		}
		return Int(int64(v)), nil
	case float32:
		return Real(float64(v)), nil
	case float64:
		return Real(v), nil
	case string:
		return Text(v), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, x)
	}
}

// Kind returns which union member is populated.
func (v Value) Kind() Kind { return v.kind }

// IsNone reports whether v is the zero "no value" marker.
func (v Value) IsNone() bool { return v.kind == KindNone }

// AsBool returns the truthiness of v: non-zero numbers and non-empty text
// are true.
func (v Value) AsBool() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindReal:
		return v.f != 0
	case KindText:
		return v.s != ""
	default:
		return false
	}
}

// AsInt returns v as an integer. Reals truncate toward zero, bools map to
// 0/1, text parses as a base-10 integer or yields 0.
func (v Value) AsInt() int64 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindInt:
		return v.i
	case KindReal:
		return int64(v.f)
	case KindText:
		n, err := strconv.ParseInt(v.s, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// AsReal returns v as a float.
func (v Value) AsReal() float64 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindInt:
		return float64(v.i)
	case KindReal:
		return v.f
	case KindText:
		f, err := strconv.ParseFloat(v.s, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// AsText returns the text member, or the formatted value for other kinds.
func (v Value) AsText() string {
	if v.kind == KindText {
		return v.s
	}
	return v.String()
}

// String formats v for logs and tables.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindReal:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return strconv.Quote(v.s)
	default:
		return "<none>"
	}
}

// Equal reports whether v and o have the same kind and the same payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindReal:
		return v.f == o.f
	case KindText:
		return v.s == o.s
	default:
		return true
	}
}

// Coerce converts v to kind k.
//
// Description:
//
//	Numeric kinds (bool, int, real) convert freely between each other; reals
//	truncate toward zero when converted to int. Text only converts to text.
//	Converting to the value's own kind returns v unchanged.
//
// Outputs:
//   - Value: The converted value.
//   - error: ErrTypeMismatch when the conversion is not allowed.
func (v Value) Coerce(k Kind) (Value, error) {
	if v.kind == k {
		return v, nil
	}
	if v.kind == KindNone || k == KindNone {
		return Value{}, fmt.Errorf("%w: cannot convert %s to %s", ErrTypeMismatch, v.kind, k)
	}
	if v.kind == KindText || k == KindText {
		return Value{}, fmt.Errorf("%w: cannot convert %s %s to %s", ErrTypeMismatch, v.kind, v, k)
	}
	switch k {
	case KindBool:
		return Bool(v.AsBool()), nil
	case KindInt:
		return Int(v.AsInt()), nil
	case KindReal:
		return Real(v.AsReal()), nil
	}
	return Value{}, fmt.Errorf("%w: cannot convert %s to %s", ErrTypeMismatch, v.kind, k)
}

// valueJSON is the wire form used by MarshalJSON.
type valueJSON struct {
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

// MarshalJSON encodes v as {"kind": "...", "value": ...}.
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.kind {
	case KindBool:
		payload = v.b
	case KindInt:
		payload = v.i
	case KindReal:
		payload = v.f
	case KindText:
		payload = v.s
	}
	return json.Marshal(valueJSON{Kind: v.kind.String(), Value: payload})
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind  string          `json:"kind"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Kind == KindNone.String() {
		*v = Value{}
		return nil
	}
	k, err := ParseKind(raw.Kind)
	if err != nil {
		return err
	}
	switch k {
	case KindBool:
		var b bool
		if err := json.Unmarshal(raw.Value, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case KindInt:
		var i int64
		if err := json.Unmarshal(raw.Value, &i); err != nil {
			return err
		}
		*v = Int(i)
	case KindReal:
		var f float64
		if err := json.Unmarshal(raw.Value, &f); err != nil {
			return err
		}
		*v = Real(f)
	case KindText:
		var s string
		if err := json.Unmarshal(raw.Value, &s); err != nil {
			return err
		}
		*v = Text(s)
	}
	return nil
}
