// Copyright (C) 2025 M. Felden. All Rights Reserved.

// Package value defines the dynamically-typed tree values the treewalk
// engine traverses and mutates.
//
// A tree is built from scalars (Null, Bool, Int, Float, Decimal, String,
// Time) and containers (*Array, *Object). Containers are pointer types:
// mutations made through any reference are visible through every other
// reference to the same container, which is what lets the engine rewrite
// a caller's tree in place.
//
// Object members preserve insertion order. Wildcard enumeration and JSON
// rendering both follow that order.
package value

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go4.org/mem"

	"github.com/mfelden/treewalk/internal/escape"
)

// A Value is a node of a data tree.
type Value interface {
	// Kind reports which variant the value is.
	Kind() Kind

	// JSON renders the value as compact JSON text.
	JSON() string
}

// A Kind identifies the variant of a Value.
type Kind int

const (
	KindInvalid Kind = iota
	KindUndefined
	KindNull
	KindBool
	KindInt
	KindFloat
	KindDecimal
	KindString
	KindTime
	KindArray
	KindObject
)

var kindName = map[Kind]string{
	KindInvalid:   "invalid",
	KindUndefined: "undefined",
	KindNull:      "null",
	KindBool:      "bool",
	KindInt:       "int",
	KindFloat:     "float",
	KindDecimal:   "decimal",
	KindString:    "string",
	KindTime:      "datetime",
	KindArray:     "array",
	KindObject:    "object",
}

func (k Kind) String() string {
	if s, ok := kindName[k]; ok {
		return s
	}
	return kindName[KindInvalid]
}

// TypeName reports the name of the type of v, as used by the type_is
// filter. Names are lower-case: "null", "bool", "int", "float",
// "decimal", "string", "datetime", "array", "object".
func TypeName(v Value) string { return v.Kind().String() }

type undefined struct{}

func (undefined) Kind() Kind   { return KindUndefined }
func (undefined) JSON() string { return "undefined" }

// Undefined is the internal "no value" sentinel. It is produced during
// resolution when a path does not reach a value; it is never stored in a
// container and never returned from the public API.
var Undefined Value = undefined{}

// IsUndefined reports whether v is the Undefined sentinel (or nil).
func IsUndefined(v Value) bool { return v == nil || v.Kind() == KindUndefined }

type nullValue struct{}

func (nullValue) Kind() Kind   { return KindNull }
func (nullValue) JSON() string { return "null" }

// Null is the null constant.
var Null Value = nullValue{}

// A Bool is a Boolean constant.
type Bool bool

func (Bool) Kind() Kind { return KindBool }

func (b Bool) JSON() string {
	if b {
		return "true"
	}
	return "false"
}

// An Int is a 64-bit integer.
type Int int64

func (Int) Kind() Kind     { return KindInt }
func (z Int) JSON() string { return strconv.FormatInt(int64(z), 10) }

// A Float is a 64-bit floating-point number.
type Float float64

func (Float) Kind() Kind { return KindFloat }

func (f Float) JSON() string {
	return strconv.FormatFloat(float64(f), 'g', -1, 64)
}

// A Decimal is an arbitrary-precision fixed-point number.
type Decimal struct{ D decimal.Decimal }

func (Decimal) Kind() Kind { return KindDecimal }

// JSON renders d with its full scale, keeping trailing fractional zeros.
func (d Decimal) JSON() string {
	if exp := d.D.Exponent(); exp < 0 {
		return d.D.StringFixed(-exp)
	}
	return d.D.String()
}

// A String is a text value.
type String string

func (String) Kind() Kind { return KindString }

func (s String) JSON() string {
	return `"` + string(escape.Quote(mem.S(string(s)))) + `"`
}

// A Time is an instant in time.
type Time struct{ T time.Time }

func (Time) Kind() Kind { return KindTime }

func (t Time) JSON() string {
	return `"` + t.T.Format(time.RFC3339Nano) + `"`
}

// An Array is an ordered sequence of values. Arrays are addressed by
// pointer so that structural edits are visible to every holder.
type Array struct{ Values []Value }

// NewArray constructs an array of the given values.
func NewArray(vs ...Value) *Array { return &Array{Values: vs} }

func (*Array) Kind() Kind   { return KindArray }
func (a *Array) Len() int   { return len(a.Values) }
func (a *Array) Append(vs ...Value) { a.Values = append(a.Values, vs...) }

func (a *Array) JSON() string {
	if len(a.Values) == 0 {
		return "[]"
	}
	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(a.Values[0].JSON())
	for _, elt := range a.Values[1:] {
		sb.WriteByte(',')
		sb.WriteString(elt.JSON())
	}
	sb.WriteByte(']')
	return sb.String()
}

// A Member is a single key-value pair belonging to an Object.
type Member struct {
	Key   string
	Value Value
}

// An Object is an insertion-ordered collection of key-value members.
// Objects are addressed by pointer so that structural edits are visible
// to every holder.
type Object struct{ Members []*Member }

// NewObject constructs an empty object.
func NewObject() *Object { return &Object{} }

func (*Object) Kind() Kind { return KindObject }
func (o *Object) Len() int { return len(o.Members) }

// Find returns the first member of o with the given key, or nil.
func (o *Object) Find(key string) *Member {
	for _, m := range o.Members {
		if m.Key == key {
			return m
		}
	}
	return nil
}

// Set replaces the value of key if present, or appends a new member.
func (o *Object) Set(key string, v Value) {
	if m := o.Find(key); m != nil {
		m.Value = v
		return
	}
	o.Members = append(o.Members, &Member{Key: key, Value: v})
}

// Delete removes the first member with the given key, reporting whether a
// member was removed.
func (o *Object) Delete(key string) bool {
	for i, m := range o.Members {
		if m.Key == key {
			o.Members = append(o.Members[:i], o.Members[i+1:]...)
			return true
		}
	}
	return false
}

// Keys returns the member keys of o in insertion order.
func (o *Object) Keys() []string {
	keys := make([]string, len(o.Members))
	for i, m := range o.Members {
		keys[i] = m.Key
	}
	return keys
}

func (o *Object) JSON() string {
	if len(o.Members) == 0 {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, m := range o.Members {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(String(m.Key).JSON())
		sb.WriteByte(':')
		sb.WriteString(m.Value.JSON())
	}
	sb.WriteByte('}')
	return sb.String()
}

// Field constructs an object member with the given key and value. The
// value has the same constraints as FromAny.
func Field(key string, v any) *Member { return &Member{Key: key, Value: FromAny(v)} }

// IsContainer reports whether v is an array or object.
func IsContainer(v Value) bool {
	k := v.Kind()
	return k == KindArray || k == KindObject
}

// Len reports the length of v: member count for objects, element count
// for arrays, byte length for strings, and 0 for null. The second result
// is false for kinds that have no length.
func Len(v Value) (int, bool) {
	switch t := v.(type) {
	case *Object:
		return t.Len(), true
	case *Array:
		return t.Len(), true
	case String:
		return len(t), true
	case nullValue:
		return 0, true
	}
	return 0, false
}

// Text renders v the way the string filters see it: strings and times
// render without quotes, everything else renders as JSON.
func Text(v Value) string {
	if s, ok := v.(String); ok {
		return string(s)
	}
	if t, ok := v.(Time); ok {
		return t.T.Format(time.RFC3339Nano)
	}
	return v.JSON()
}

// FromAny converts a Go value into a Value. It accepts nil, bool, the
// common integer and float types, string, time.Time, decimal.Decimal,
// []any, map[string]any (member order follows Go map iteration and is
// therefore unspecified), []Value, and existing Values. FromAny panics
// on any other type.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null
	case Value:
		return t
	case bool:
		return Bool(t)
	case int:
		return Int(t)
	case int32:
		return Int(t)
	case int64:
		return Int(t)
	case uint64:
		return Int(t)
	case float32:
		return Float(t)
	case float64:
		return Float(t)
	case string:
		return String(t)
	case time.Time:
		return Time{T: t}
	case decimal.Decimal:
		return Decimal{D: t}
	case []any:
		out := &Array{Values: make([]Value, len(t))}
		for i, elt := range t {
			out.Values[i] = FromAny(elt)
		}
		return out
	case map[string]any:
		out := NewObject()
		for k, val := range t {
			out.Set(k, FromAny(val))
		}
		return out
	case []Value:
		return &Array{Values: t}
	default:
		panic(fmt.Sprintf("value: cannot convert %T", v))
	}
}

// ToAny converts a Value back into plain Go data: nil, bool, int64,
// float64, decimal.Decimal, string, time.Time, []any, map[string]any.
// Converting an object to a Go map loses member order.
func ToAny(v Value) any {
	switch t := v.(type) {
	case nullValue:
		return nil
	case Bool:
		return bool(t)
	case Int:
		return int64(t)
	case Float:
		return float64(t)
	case Decimal:
		return t.D
	case String:
		return string(t)
	case Time:
		return t.T
	case *Array:
		out := make([]any, len(t.Values))
		for i, elt := range t.Values {
			out[i] = ToAny(elt)
		}
		return out
	case *Object:
		out := make(map[string]any, len(t.Members))
		for _, m := range t.Members {
			out[m.Key] = ToAny(m.Value)
		}
		return out
	default:
		panic(fmt.Sprintf("value: cannot convert %v", v.Kind()))
	}
}
