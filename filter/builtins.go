// Copyright (C) 2025 M. Felden. All Rights Reserved.

package filter

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/creachadair/mds/mapset"
	"github.com/shopspring/decimal"

	"github.com/mfelden/treewalk/value"
)

// The built-in registry. Filters that would be mathematically undefined
// (division by zero, sqrt of a negative, log outside its domain) yield
// null rather than an error; numeric filters handed values they cannot
// reasonably coerce pass the input through unchanged.
var registry map[string]*builtin

func init() {
	registry = map[string]*builtin{
		// Numeric.
		"inc":    {0, 0, func(_ *Env, v value.Value, _ []value.Value) (value.Value, error) { return addValues(v, value.Int(1)), nil }},
		"dec":    {0, 0, func(_ *Env, v value.Value, _ []value.Value) (value.Value, error) { return subValues(v, value.Int(1)), nil }},
		"double": {0, 0, func(_ *Env, v value.Value, _ []value.Value) (value.Value, error) { return mulValues(v, value.Int(2)), nil }},
		"square": {0, 0, func(_ *Env, v value.Value, _ []value.Value) (value.Value, error) { return mulValues(v, v), nil }},
		"add":    {1, 1, func(_ *Env, v value.Value, args []value.Value) (value.Value, error) { return addValues(v, args[0]), nil }},
		"sub":    {1, 1, func(_ *Env, v value.Value, args []value.Value) (value.Value, error) { return subValues(v, args[0]), nil }},
		"mul":    {1, 1, func(_ *Env, v value.Value, args []value.Value) (value.Value, error) { return mulValues(v, args[0]), nil }},
		"div":    {1, 1, applyDiv},
		"mod":    {1, 1, applyMod},
		"neg":    {0, 0, applyNeg},
		"pow":    {1, 1, func(_ *Env, v value.Value, args []value.Value) (value.Value, error) { return powValues(v, args[0]), nil }},
		"rpow":   {1, 1, func(_ *Env, v value.Value, args []value.Value) (value.Value, error) { return powValues(args[0], v), nil }},
		"sqrt":   {0, 0, applySqrt},
		"root":   {1, 1, applyRoot},
		"round":  {0, 1, applyRound},
		"floor":  {0, 0, floorCeil(math.Floor)},
		"ceil":   {0, 0, floorCeil(math.Ceil)},
		"abs":    {0, 0, applyAbs},
		"clamp":  {2, 2, applyClamp},
		"sign":   {0, 0, applySign},
		"log":    {0, 1, applyLog},
		"exp":    {0, 0, applyExp},
		"pct":    {1, 1, applyPct},

		// Statistics.
		"pctile": {1, 1, applyPctile},
		"median": {0, 0, percentileBuiltin(50)},
		"q1":     {0, 0, percentileBuiltin(25)},
		"q3":     {0, 0, percentileBuiltin(75)},
		"iqr":    {0, 0, applyIQR},
		"mode":   {0, 0, applyMode},
		"stdev":  {0, 0, applyStdev},

		// Predicates.
		"even":      {0, 0, parityBuiltin(0)},
		"odd":       {0, 0, parityBuiltin(1)},
		"gt":        {1, 1, cmpBuiltin(func(c int) bool { return c > 0 })},
		"lt":        {1, 1, cmpBuiltin(func(c int) bool { return c < 0 })},
		"gte":       {1, 1, cmpBuiltin(func(c int) bool { return c >= 0 })},
		"lte":       {1, 1, cmpBuiltin(func(c int) bool { return c <= 0 })},
		"between":   {2, 2, applyBetween},
		"contains":  {1, 1, applyContains},
		"in":        {1, 1, applyIn},
		"type_is":   {1, 1, applyTypeIs},
		"is_empty":  {0, 0, func(_ *Env, v value.Value, _ []value.Value) (value.Value, error) { return value.Bool(isEmpty(v)), nil }},
		"non_empty": {0, 0, func(_ *Env, v value.Value, _ []value.Value) (value.Value, error) { return value.Bool(!isEmpty(v)), nil }},

		// Conversion.
		"string":  {0, 0, func(_ *Env, v value.Value, _ []value.Value) (value.Value, error) { return value.String(value.Text(v)), nil }},
		"int":     {0, 0, applyInt},
		"float":   {0, 0, applyFloat},
		"decimal": {0, 0, applyDecimal},
		"bool":    {0, 0, applyBool},
		"quote":   {0, 0, func(_ *Env, v value.Value, _ []value.Value) (value.Value, error) { return value.String(`"` + value.Text(v) + `"`), nil }},

		// Strings.
		"lower":      {0, 0, stringBuiltin(strings.ToLower)},
		"upper":      {0, 0, stringBuiltin(strings.ToUpper)},
		"title":      {0, 0, stringBuiltin(titleCase)},
		"strip":      {0, 1, applyStrip},
		"replace":    {2, 2, applyReplace},
		"split":      {0, 1, applySplit},
		"join":       {1, 1, applyJoin},
		"startswith": {1, 1, applyStartswith},
		"endswith":   {1, 1, applyEndswith},
		"matches":    {1, 1, applyMatches},

		// Collections.
		"len":    {0, 0, applyLen},
		"max":    {0, 0, minMaxBuiltin(func(c int) bool { return c > 0 })},
		"min":    {0, 0, minMaxBuiltin(func(c int) bool { return c < 0 })},
		"sum":    {0, 0, applySum},
		"avg":    {0, 0, applyAvg},
		"unique": {0, 0, applyUnique},
		"sorted": {0, 1, applySorted},
		"first":  {0, 0, applyFirst},
		"last":   {0, 0, applyLast},
		"pick":   {1, -1, applyPick},
		"unpick": {1, -1, applyUnpick},

		// Null handling.
		"default":  {1, 1, applyDefault},
		"coalesce": {1, -1, applyCoalesce},

		// Datetime.
		"to_datetime": {0, 1, applyToDatetime},
		"timestamp":   {0, 0, applyTimestamp},
		"age_seconds": {0, 0, applyAgeSeconds},
		"before":      {1, 1, timeCmpBuiltin(func(a, b time.Time) bool { return a.Before(b) })},
		"after":       {1, 1, timeCmpBuiltin(func(a, b time.Time) bool { return a.After(b) })},
	}
}

func bothInt(a, b value.Value) (int64, int64, bool) {
	x, ok := a.(value.Int)
	if !ok {
		return 0, 0, false
	}
	y, ok := b.(value.Int)
	if !ok {
		return 0, 0, false
	}
	return int64(x), int64(y), true
}

func addValues(v, arg value.Value) value.Value {
	if a, b, ok := bothInt(v, arg); ok {
		return value.Int(a + b)
	}
	if a, ok := value.AsFloat(v); ok {
		if b, ok := value.AsFloat(arg); ok {
			return value.Float(a + b)
		}
	}
	if s, ok := v.(value.String); ok {
		if t, ok := arg.(value.String); ok {
			return s + t
		}
	}
	return v
}

func subValues(v, arg value.Value) value.Value {
	if a, b, ok := bothInt(v, arg); ok {
		return value.Int(a - b)
	}
	if a, ok := value.AsFloat(v); ok {
		if b, ok := value.AsFloat(arg); ok {
			return value.Float(a - b)
		}
	}
	return v
}

func mulValues(v, arg value.Value) value.Value {
	if a, b, ok := bothInt(v, arg); ok {
		return value.Int(a * b)
	}
	if a, ok := value.AsFloat(v); ok {
		if b, ok := value.AsFloat(arg); ok {
			return value.Float(a * b)
		}
	}
	if s, ok := v.(value.String); ok {
		if n, ok := value.AsInt(arg); ok && n >= 0 {
			return value.String(strings.Repeat(string(s), int(n)))
		}
	}
	return v
}

func applyDiv(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	b, ok := value.AsFloat(args[0])
	if ok && b == 0 {
		return value.Null, nil
	}
	a, aok := value.AsFloat(v)
	if !aok || !ok {
		return v, nil
	}
	return value.Float(a / b), nil
}

func applyMod(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	if b, ok := value.AsFloat(args[0]); ok && b == 0 {
		return value.Null, nil
	}
	if a, b, ok := bothInt(v, args[0]); ok {
		r := a % b
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
		return value.Int(r), nil
	}
	a, aok := value.AsFloat(v)
	b, bok := value.AsFloat(args[0])
	if !aok || !bok {
		return v, nil
	}
	r := math.Mod(a, b)
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return value.Float(r), nil
}

func applyNeg(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	switch t := v.(type) {
	case value.Int:
		return -t, nil
	case value.Float:
		return -t, nil
	case value.Decimal:
		return value.Decimal{D: t.D.Neg()}, nil
	}
	return v, nil
}

func powValues(base, exp value.Value) value.Value {
	if a, b, ok := bothInt(base, exp); ok && b >= 0 {
		out := int64(1)
		for ; b > 0; b-- {
			out *= a
		}
		return value.Int(out)
	}
	a, aok := value.AsFloat(base)
	b, bok := value.AsFloat(exp)
	if !aok || !bok {
		return base
	}
	return value.Float(math.Pow(a, b))
}

func applySqrt(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	f, ok := value.AsFloat(v)
	if !ok {
		return v, nil
	}
	if f < 0 {
		return value.Null, nil
	}
	return value.Float(math.Sqrt(f)), nil
}

func applyRoot(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	f, ok := value.AsFloat(v)
	if !ok {
		return v, nil
	}
	d, ok := value.AsFloat(args[0])
	if !ok || f < 0 || d <= 0 {
		return value.Null, nil
	}
	return value.Float(math.Pow(f, 1/d)), nil
}

func applyRound(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	f, ok := value.AsFloat(v)
	if !ok {
		return v, nil
	}
	digits := int64(0)
	if len(args) > 0 {
		n, ok := value.AsInt(args[0])
		if !ok {
			return nil, &CallError{Name: "round", Msg: "digit count must be an integer"}
		}
		digits = n
	}
	shift := math.Pow(10, float64(digits))
	rounded := math.RoundToEven(f*shift) / shift
	if len(args) == 0 {
		return value.Int(int64(rounded)), nil
	}
	if _, isInt := v.(value.Int); isInt {
		return value.Int(int64(rounded)), nil
	}
	return value.Float(rounded), nil
}

func floorCeil(f func(float64) float64) func(*Env, value.Value, []value.Value) (value.Value, error) {
	return func(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
		x, ok := value.AsFloat(v)
		if !ok {
			return v, nil
		}
		return value.Int(int64(f(x))), nil
	}
}

func applyAbs(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	switch t := v.(type) {
	case value.Int:
		if t < 0 {
			return -t, nil
		}
		return t, nil
	case value.Float:
		return value.Float(math.Abs(float64(t))), nil
	case value.Decimal:
		return value.Decimal{D: t.D.Abs()}, nil
	}
	return v, nil
}

func applyClamp(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	if c, ok := value.Compare(v, args[0]); ok && c < 0 {
		return args[0], nil
	}
	if c, ok := value.Compare(v, args[1]); ok && c > 0 {
		return args[1], nil
	}
	return v, nil
}

func applySign(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	c, ok := value.Compare(v, value.Int(0))
	if !ok {
		return v, nil
	}
	return value.Int(c), nil
}

func applyLog(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	f, ok := value.AsFloat(v)
	if !ok {
		return v, nil
	}
	base := math.E
	if len(args) > 0 {
		b, ok := value.AsFloat(args[0])
		if !ok {
			return value.Null, nil
		}
		base = b
	}
	if f <= 0 || base <= 0 || base == 1 {
		return value.Null, nil
	}
	return value.Float(math.Log(f) / math.Log(base)), nil
}

func applyExp(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	f, ok := value.AsFloat(v)
	if !ok {
		return v, nil
	}
	return value.Float(math.Exp(f)), nil
}

func applyPct(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	f, fok := value.AsFloat(v)
	p, pok := value.AsFloat(args[0])
	if !fok || !pok {
		return v, nil
	}
	return value.Float(f * p / 100), nil
}

// numericSeq extracts the elements of a sequence as float64s. The second
// result is false when v is not a sequence of numbers.
func numericSeq(v value.Value) ([]float64, bool) {
	arr, ok := v.(*value.Array)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(arr.Values))
	for _, elt := range arr.Values {
		f, ok := value.AsFloat(elt)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// percentileOf interpolates the p-th percentile of sorted values.
func percentileOf(sorted []float64, p float64) (float64, bool) {
	if len(sorted) == 0 || p < 0 || p > 100 {
		return 0, false
	}
	if len(sorted) == 1 {
		return sorted[0], true
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac, true
}

func sortedNumericSeq(v value.Value) ([]float64, bool) {
	vs, ok := numericSeq(v)
	if !ok {
		return nil, false
	}
	sort.Float64s(vs)
	return vs, true
}

func applyPctile(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	vs, ok := sortedNumericSeq(v)
	if !ok {
		return v, nil
	}
	p, pok := value.AsFloat(args[0])
	if !pok {
		return value.Null, nil
	}
	out, ok := percentileOf(vs, p)
	if !ok {
		return value.Null, nil
	}
	return value.Float(out), nil
}

func percentileBuiltin(p float64) func(*Env, value.Value, []value.Value) (value.Value, error) {
	return func(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
		vs, ok := sortedNumericSeq(v)
		if !ok {
			return v, nil
		}
		out, ok := percentileOf(vs, p)
		if !ok {
			return value.Null, nil
		}
		return value.Float(out), nil
	}
}

func applyIQR(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	vs, ok := sortedNumericSeq(v)
	if !ok {
		return v, nil
	}
	q1, ok1 := percentileOf(vs, 25)
	q3, ok3 := percentileOf(vs, 75)
	if !ok1 || !ok3 {
		return value.Null, nil
	}
	return value.Float(q3 - q1), nil
}

func applyMode(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	arr, ok := v.(*value.Array)
	if !ok {
		return v, nil
	}
	if len(arr.Values) == 0 {
		return value.Null, nil
	}
	best, bestCount := value.Null, 0
	for _, candidate := range arr.Values {
		count := 0
		for _, elt := range arr.Values {
			if value.Equal(elt, candidate) {
				count++
			}
		}
		if count > bestCount {
			best, bestCount = candidate, count
		}
	}
	return best, nil
}

func applyStdev(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	vs, ok := numericSeq(v)
	if !ok {
		return v, nil
	}
	if len(vs) == 0 {
		return value.Null, nil
	}
	n := float64(len(vs))
	var sum float64
	for _, x := range vs {
		sum += x
	}
	mean := sum / n
	var variance float64
	for _, x := range vs {
		d := x - mean
		variance += d * d
	}
	return value.Float(math.Sqrt(variance / n)), nil
}

func parityBuiltin(want int64) func(*Env, value.Value, []value.Value) (value.Value, error) {
	return func(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
		z, ok := v.(value.Int)
		if !ok {
			return value.Bool(false), nil
		}
		r := int64(z) % 2
		if r < 0 {
			r += 2
		}
		return value.Bool(r == want), nil
	}
}

func cmpBuiltin(match func(int) bool) func(*Env, value.Value, []value.Value) (value.Value, error) {
	return func(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
		c, ok := value.Compare(v, args[0])
		return value.Bool(ok && match(c)), nil
	}
}

func applyBetween(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	lo, okLo := value.Compare(v, args[0])
	hi, okHi := value.Compare(v, args[1])
	return value.Bool(okLo && okHi && lo >= 0 && hi <= 0), nil
}

func applyContains(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	needle := args[0]
	switch t := v.(type) {
	case value.String:
		return value.Bool(strings.Contains(string(t), value.Text(needle))), nil
	case *value.Array:
		for _, elt := range t.Values {
			if value.Equal(elt, needle) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case *value.Object:
		return value.Bool(t.Find(value.Text(needle)) != nil), nil
	}
	return value.Bool(false), nil
}

func applyIn(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	switch t := args[0].(type) {
	case *value.Array:
		for _, elt := range t.Values {
			if value.Equal(elt, v) {
				return value.Bool(true), nil
			}
		}
	case value.String:
		if s, ok := v.(value.String); ok {
			return value.Bool(strings.Contains(string(t), string(s))), nil
		}
	case *value.Object:
		return value.Bool(t.Find(value.Text(v)) != nil), nil
	}
	return value.Bool(false), nil
}

func applyTypeIs(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	want := strings.ToLower(value.Text(args[0]))
	return value.Bool(value.TypeName(v) == want), nil
}

func isEmpty(v value.Value) bool {
	if v.Kind() == value.KindNull {
		return true
	}
	if n, ok := value.Len(v); ok {
		return n == 0
	}
	return false
}

func applyInt(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	switch t := v.(type) {
	case value.Int:
		return t, nil
	case value.Float:
		return value.Int(int64(t)), nil
	case value.Decimal:
		return value.Int(t.D.IntPart()), nil
	case value.Bool:
		if t {
			return value.Int(1), nil
		}
		return value.Int(0), nil
	case value.String:
		n, err := strconv.ParseInt(strings.TrimSpace(string(t)), 10, 64)
		if err != nil {
			return nil, &CallError{Name: "int", Msg: "cannot convert " + strconv.Quote(string(t))}
		}
		return value.Int(n), nil
	}
	return nil, &CallError{Name: "int", Msg: "cannot convert " + value.TypeName(v)}
}

func applyFloat(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	if f, ok := value.AsFloat(v); ok {
		return value.Float(f), nil
	}
	switch t := v.(type) {
	case value.Bool:
		if t {
			return value.Float(1), nil
		}
		return value.Float(0), nil
	case value.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
		if err != nil {
			return nil, &CallError{Name: "float", Msg: "cannot convert " + strconv.Quote(string(t))}
		}
		return value.Float(f), nil
	}
	return nil, &CallError{Name: "float", Msg: "cannot convert " + value.TypeName(v)}
}

func applyDecimal(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	switch t := v.(type) {
	case value.Decimal:
		return t, nil
	case value.Int:
		return value.Decimal{D: decimal.NewFromInt(int64(t))}, nil
	case value.Float:
		return value.Decimal{D: decimal.NewFromFloat(float64(t))}, nil
	case value.String:
		d, err := decimal.NewFromString(strings.TrimSpace(string(t)))
		if err != nil {
			return nil, &CallError{Name: "decimal", Msg: "cannot convert " + strconv.Quote(string(t))}
		}
		return value.Decimal{D: d}, nil
	}
	return nil, &CallError{Name: "decimal", Msg: "cannot convert " + value.TypeName(v)}
}

var boolTrueWords = mapset.New("1", "true", "yes", "y", "on")

func applyBool(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	if s, ok := v.(value.String); ok {
		word := strings.ToLower(strings.TrimSpace(string(s)))
		return value.Bool(boolTrueWords.Has(word)), nil
	}
	return value.Bool(value.Truthy(v)), nil
}

func stringBuiltin(f func(string) string) func(*Env, value.Value, []value.Value) (value.Value, error) {
	return func(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
		return value.String(f(value.Text(v))), nil
	}
}

// titleCase upper-cases the first letter of each word and lower-cases
// the rest, where a word starts after any non-letter.
func titleCase(s string) string {
	var sb strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				sb.WriteRune(unicode.ToLower(r))
			} else {
				sb.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			sb.WriteRune(r)
			prevLetter = false
		}
	}
	return sb.String()
}

func applyStrip(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	s := value.Text(v)
	if len(args) == 0 || args[0].Kind() == value.KindNull {
		return value.String(strings.TrimSpace(s)), nil
	}
	return value.String(strings.Trim(s, value.Text(args[0]))), nil
}

func applyReplace(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	s := value.Text(v)
	return value.String(strings.ReplaceAll(s, value.Text(args[0]), value.Text(args[1]))), nil
}

func applySplit(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	s := value.Text(v)
	var parts []string
	if len(args) == 0 || args[0].Kind() == value.KindNull {
		parts = strings.Fields(s)
	} else {
		parts = strings.Split(s, value.Text(args[0]))
	}
	out := &value.Array{Values: make([]value.Value, len(parts))}
	for i, part := range parts {
		out.Values[i] = value.String(part)
	}
	return out, nil
}

func applyJoin(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	arr, ok := v.(*value.Array)
	if !ok {
		return value.String(value.Text(v)), nil
	}
	parts := make([]string, len(arr.Values))
	for i, elt := range arr.Values {
		parts[i] = value.Text(elt)
	}
	return value.String(strings.Join(parts, value.Text(args[0]))), nil
}

func applyStartswith(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	return value.Bool(strings.HasPrefix(value.Text(v), value.Text(args[0]))), nil
}

func applyEndswith(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	return value.Bool(strings.HasSuffix(value.Text(v), value.Text(args[0]))), nil
}

func applyMatches(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	re, err := regexp.Compile(value.Text(args[0]))
	if err != nil {
		return nil, &CallError{Name: "matches", Msg: "invalid pattern: " + err.Error()}
	}
	return value.Bool(re.MatchString(value.Text(v))), nil
}

func applyLen(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	if n, ok := value.Len(v); ok {
		return value.Int(n), nil
	}
	return value.Null, nil
}

func minMaxBuiltin(better func(int) bool) func(*Env, value.Value, []value.Value) (value.Value, error) {
	return func(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
		arr, ok := v.(*value.Array)
		if !ok {
			return v, nil
		}
		if len(arr.Values) == 0 {
			return value.Null, nil
		}
		best := arr.Values[0]
		for _, elt := range arr.Values[1:] {
			c, ok := value.Compare(elt, best)
			if !ok {
				return value.Null, nil
			}
			if better(c) {
				best = elt
			}
		}
		return best, nil
	}
}

func applySum(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	arr, ok := v.(*value.Array)
	if !ok {
		return v, nil
	}
	allInt := true
	var total float64
	var totalInt int64
	for _, elt := range arr.Values {
		f, ok := value.AsFloat(elt)
		if !ok {
			return value.Null, nil
		}
		total += f
		if z, isInt := elt.(value.Int); isInt {
			totalInt += int64(z)
		} else {
			allInt = false
		}
	}
	if allInt {
		return value.Int(totalInt), nil
	}
	return value.Float(total), nil
}

func applyAvg(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	vs, ok := numericSeq(v)
	if !ok {
		return v, nil
	}
	if len(vs) == 0 {
		return value.Null, nil
	}
	var sum float64
	for _, x := range vs {
		sum += x
	}
	return value.Float(sum / float64(len(vs))), nil
}

func applyUnique(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	arr, ok := v.(*value.Array)
	if !ok {
		return v, nil
	}
	out := value.NewArray()
	for _, elt := range arr.Values {
		seen := false
		for _, have := range out.Values {
			if value.Equal(have, elt) {
				seen = true
				break
			}
		}
		if !seen {
			out.Append(elt)
		}
	}
	return out, nil
}

func applySorted(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	arr, ok := v.(*value.Array)
	if !ok {
		return v, nil
	}
	reverse := false
	if len(args) > 0 {
		reverse = value.Truthy(args[0])
	}
	out := &value.Array{Values: append([]value.Value(nil), arr.Values...)}
	sort.SliceStable(out.Values, func(i, j int) bool {
		c, ok := value.Compare(out.Values[i], out.Values[j])
		if !ok {
			return false
		}
		if reverse {
			return c > 0
		}
		return c < 0
	})
	return out, nil
}

func applyFirst(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	arr, ok := v.(*value.Array)
	if !ok {
		return v, nil
	}
	if len(arr.Values) == 0 {
		return value.Null, nil
	}
	return arr.Values[0], nil
}

func applyLast(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	arr, ok := v.(*value.Array)
	if !ok {
		return v, nil
	}
	if len(arr.Values) == 0 {
		return value.Null, nil
	}
	return arr.Values[len(arr.Values)-1], nil
}

func keySet(args []value.Value) mapset.Set[string] {
	keys := mapset.New[string]()
	for _, arg := range args {
		keys.Add(value.Text(arg))
	}
	return keys
}

func applyPick(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	obj, ok := v.(*value.Object)
	if !ok {
		return value.Null, nil
	}
	keys := keySet(args)
	out := value.NewObject()
	for _, m := range obj.Members {
		if keys.Has(m.Key) {
			out.Set(m.Key, m.Value)
		}
	}
	return out, nil
}

func applyUnpick(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	obj, ok := v.(*value.Object)
	if !ok {
		return value.Null, nil
	}
	keys := keySet(args)
	out := value.NewObject()
	for _, m := range obj.Members {
		if !keys.Has(m.Key) {
			out.Set(m.Key, m.Value)
		}
	}
	return out, nil
}

func applyDefault(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	if v.Kind() == value.KindNull {
		return args[0], nil
	}
	return v, nil
}

func applyCoalesce(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	if v.Kind() != value.KindNull {
		return v, nil
	}
	for _, arg := range args {
		if arg.Kind() != value.KindNull {
			return arg, nil
		}
	}
	return value.Null, nil
}

func applyToDatetime(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
	if len(args) > 0 && args[0].Kind() != value.KindNull {
		layout := value.Text(args[0])
		t, err := time.Parse(layout, value.Text(v))
		if err != nil {
			return value.Null, nil
		}
		return value.Time{T: t}, nil
	}
	t, ok := value.CoerceTime(v)
	if !ok {
		return value.Null, nil
	}
	return value.Time{T: t}, nil
}

func applyTimestamp(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	t, ok := value.CoerceTime(v)
	if !ok {
		return value.Null, nil
	}
	return value.Float(float64(t.UnixNano()) / 1e9), nil
}

func applyAgeSeconds(_ *Env, v value.Value, _ []value.Value) (value.Value, error) {
	t, ok := value.CoerceTime(v)
	if !ok {
		return value.Null, nil
	}
	return value.Float(time.Since(t).Seconds()), nil
}

func timeCmpBuiltin(match func(a, b time.Time) bool) func(*Env, value.Value, []value.Value) (value.Value, error) {
	return func(_ *Env, v value.Value, args []value.Value) (value.Value, error) {
		a, aok := value.CoerceTime(v)
		b, bok := value.CoerceTime(args[0])
		return value.Bool(aok && bok && match(a, b)), nil
	}
}
