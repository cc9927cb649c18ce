// Copyright (C) 2025 M. Felden. All Rights Reserved.

package value

import (
	"time"
)

// AsFloat reports the numeric value of v as a float64. It is false for
// non-numeric kinds.
func AsFloat(v Value) (float64, bool) {
	switch t := v.(type) {
	case Int:
		return float64(t), true
	case Float:
		return float64(t), true
	case Decimal:
		f, _ := t.D.Float64()
		return f, true
	}
	return 0, false
}

// AsInt reports the value of v as an int64: integers directly, floats
// only when integral.
func AsInt(v Value) (int64, bool) {
	switch t := v.(type) {
	case Int:
		return int64(t), true
	case Float:
		if float64(int64(t)) == float64(t) {
			return int64(t), true
		}
	case Decimal:
		if t.D.IsInteger() {
			return t.D.IntPart(), true
		}
	}
	return 0, false
}

// IsNumeric reports whether v is an Int, Float, or Decimal.
func IsNumeric(v Value) bool {
	switch v.Kind() {
	case KindInt, KindFloat, KindDecimal:
		return true
	}
	return false
}

// timeLayouts are the ISO 8601 shapes accepted when coercing a string to
// an instant, most specific first.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CoerceTime interprets v as an instant: a Time directly, an Int or Float
// as seconds since the Unix epoch (UTC), or a string in an ISO 8601
// shape. A Decimal is not coerced.
func CoerceTime(v Value) (time.Time, bool) {
	switch t := v.(type) {
	case Time:
		return t.T, true
	case Int:
		return time.Unix(int64(t), 0).UTC(), true
	case Float:
		sec := int64(t)
		nsec := int64((float64(t) - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), true
	case String:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, string(t)); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// Equal reports deep equality of a and b.
//
// Numeric kinds (Int, Float, Decimal) compare numerically across kinds.
// Times compare chronologically and accept ISO 8601 strings on the other
// side. Every other kind compares only within its own kind; a cross-kind
// comparison is simply unequal, with no coercion. Object equality is
// order-insensitive. Undefined equals nothing, including itself.
func Equal(a, b Value) bool {
	if IsUndefined(a) || IsUndefined(b) {
		return false
	}
	if IsNumeric(a) && IsNumeric(b) {
		if da, ok := a.(Decimal); ok {
			if db, ok := b.(Decimal); ok {
				return da.D.Equal(db.D)
			}
		}
		fa, _ := AsFloat(a)
		fb, _ := AsFloat(b)
		return fa == fb
	}
	if a.Kind() == KindTime || b.Kind() == KindTime {
		ta, aok := CoerceTime(a)
		tb, bok := CoerceTime(b)
		return aok && bok && ta.Equal(tb)
	}

	switch ta := a.(type) {
	case nullValue:
		return b.Kind() == KindNull
	case Bool:
		tb, ok := b.(Bool)
		return ok && ta == tb
	case String:
		tb, ok := b.(String)
		return ok && ta == tb
	case *Array:
		tb, ok := b.(*Array)
		if !ok || len(ta.Values) != len(tb.Values) {
			return false
		}
		for i, elt := range ta.Values {
			if !Equal(elt, tb.Values[i]) {
				return false
			}
		}
		return true
	case *Object:
		tb, ok := b.(*Object)
		if !ok || len(ta.Members) != len(tb.Members) {
			return false
		}
		for _, m := range ta.Members {
			other := tb.Find(m.Key)
			if other == nil || !Equal(m.Value, other.Value) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders a and b, returning -1, 0, or +1. The second result is
// false when the two values have no defined order: only numbers order
// with numbers, strings with strings, and times with times (ISO strings
// coerce when the other side is a Time).
func Compare(a, b Value) (int, bool) {
	if IsNumeric(a) && IsNumeric(b) {
		fa, _ := AsFloat(a)
		fb, _ := AsFloat(b)
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	if a.Kind() == KindTime || b.Kind() == KindTime {
		ta, aok := CoerceTime(a)
		tb, bok := CoerceTime(b)
		if !aok || !bok {
			return 0, false
		}
		switch {
		case ta.Before(tb):
			return -1, true
		case ta.After(tb):
			return 1, true
		}
		return 0, true
	}
	if sa, ok := a.(String); ok {
		if sb, ok := b.(String); ok {
			switch {
			case sa < sb:
				return -1, true
			case sa > sb:
				return 1, true
			}
			return 0, true
		}
	}
	return 0, false
}

// Truthy reports the boolean interpretation of v: false for Undefined,
// Null, false, zero numbers, empty strings, and empty containers; true
// otherwise.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case undefined, nullValue:
		return false
	case Bool:
		return bool(t)
	case Int:
		return t != 0
	case Float:
		return t != 0
	case Decimal:
		return !t.D.IsZero()
	case String:
		return t != ""
	case Time:
		return true
	case *Array:
		return len(t.Values) > 0
	case *Object:
		return len(t.Members) > 0
	}
	return false
}

// Clone returns a deep copy of v. Scalars are shared (they are
// immutable); containers are copied recursively.
func Clone(v Value) Value {
	switch t := v.(type) {
	case *Array:
		out := &Array{Values: make([]Value, len(t.Values))}
		for i, elt := range t.Values {
			out.Values[i] = Clone(elt)
		}
		return out
	case *Object:
		out := &Object{Members: make([]*Member, len(t.Members))}
		for i, m := range t.Members {
			out.Members[i] = &Member{Key: m.Key, Value: Clone(m.Value)}
		}
		return out
	default:
		return v
	}
}
