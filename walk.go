// Copyright (C) 2025 M. Felden. All Rights Reserved.

package treewalk

import (
	"github.com/mfelden/treewalk/filter"
	"github.com/mfelden/treewalk/pathexpr"
	"github.com/mfelden/treewalk/value"
)

// A walker evaluates the read interpretation of a compiled path: the
// shared traversal behind Get, Exists, and strict-mode write checks.
type walker struct {
	prog *program
	root value.Value
	env  *filter.Env

	// failed records the raw text of the first token that produced
	// Undefined, for strict-mode error messages.
	failed string
}

func (w *walker) fail(tok pathexpr.Token) value.Value {
	if w.failed == "" {
		w.failed = tok.Raw
	}
	return value.Undefined
}

// eval runs the steps against cur. The second result reports whether the
// final value is a projection (a sequence assembled by the traversal
// rather than one stored in the tree), which Exists uses to require
// non-emptiness.
func (w *walker) eval(cur value.Value, steps []step) (value.Value, bool, error) {
	projected := false
	for i, st := range steps {
		if value.IsUndefined(cur) {
			return value.Undefined, false, nil
		}
		switch st.tok.Kind {
		case pathexpr.Root:
			cur, projected = w.root, false

		case pathexpr.Key:
			next, proj := w.evalKey(cur, st.tok)
			cur, projected = next, proj

		case pathexpr.Index:
			arr, ok := cur.(*value.Array)
			if !ok {
				return w.fail(st.tok), false, nil
			}
			idx := st.tok.N
			if idx < 0 {
				idx += len(arr.Values)
			}
			if idx < 0 || idx >= len(arr.Values) {
				return w.fail(st.tok), false, nil
			}
			cur, projected = arr.Values[idx], false

		case pathexpr.Slice:
			arr, ok := cur.(*value.Array)
			if !ok {
				return w.fail(st.tok), false, nil
			}
			out := value.NewArray()
			for _, idx := range sliceIndexes(len(arr.Values), st.tok) {
				out.Append(arr.Values[idx])
			}
			cur, projected = out, true

		case pathexpr.Map:
			arr, ok := cur.(*value.Array)
			if !ok {
				return w.fail(st.tok), false, nil
			}
			out := value.NewArray()
			for _, elt := range arr.Values {
				res, _, err := w.eval(elt, steps[i+1:])
				if err != nil {
					return nil, false, err
				}
				if !value.IsUndefined(res) {
					out.Append(res)
				}
			}
			return out, true, nil

		case pathexpr.Wildcard:
			children, ok := childValues(cur)
			if !ok {
				return w.fail(st.tok), false, nil
			}
			out := value.NewArray()
			for _, child := range children {
				res, _, err := w.eval(child, steps[i+1:])
				if err != nil {
					return nil, false, err
				}
				if !value.IsUndefined(res) {
					out.Append(res)
				}
			}
			return out, true, nil

		case pathexpr.DeepWildcard:
			out := value.NewArray()
			rest := steps[i+1:]
			var visit func(node value.Value) error
			visit = func(node value.Value) error {
				if len(rest) == 0 {
					out.Append(node)
				} else {
					res, _, err := w.eval(node, rest)
					if err != nil {
						return err
					}
					if !value.IsUndefined(res) {
						out.Append(res)
					}
				}
				children, _ := childValues(node)
				for _, child := range children {
					if err := visit(child); err != nil {
						return err
					}
				}
				return nil
			}
			if err := visit(cur); err != nil {
				return nil, false, err
			}
			return out, true, nil

		case pathexpr.Filter:
			arr, ok := cur.(*value.Array)
			if !ok {
				return w.fail(st.tok), false, nil
			}
			out := value.NewArray()
			for _, elt := range arr.Values {
				match, err := st.matcher.Match(w.env, elt)
				if err != nil {
					return nil, false, err
				}
				if match {
					out.Append(elt)
				}
			}
			cur, projected = out, true

		default:
			return w.fail(st.tok), false, nil
		}
	}
	return cur, projected, nil
}

// evalKey resolves a key token: a direct member lookup on an object, or
// a projection over a sequence that collects the key's value from each
// object element that has it.
func (w *walker) evalKey(cur value.Value, tok pathexpr.Token) (value.Value, bool) {
	switch t := cur.(type) {
	case *value.Object:
		if m := t.Find(tok.Name); m != nil {
			return m.Value, false
		}
		return w.fail(tok), false
	case *value.Array:
		out := value.NewArray()
		for _, elt := range t.Values {
			if obj, ok := elt.(*value.Object); ok {
				if m := obj.Find(tok.Name); m != nil {
					out.Append(m.Value)
				}
			}
		}
		return out, true
	}
	return w.fail(tok), false
}

// childValues enumerates the immediate children of a container in
// insertion order. It is false for scalars.
func childValues(v value.Value) ([]value.Value, bool) {
	switch t := v.(type) {
	case *value.Object:
		out := make([]value.Value, len(t.Members))
		for i, m := range t.Members {
			out[i] = m.Value
		}
		return out, true
	case *value.Array:
		return t.Values, true
	}
	return nil, false
}

// sliceIndexes enumerates the element positions a slice token selects,
// with Python slice normalization including negative steps.
func sliceIndexes(n int, tok pathexpr.Token) []int {
	step := 1
	if tok.Step.Present {
		step = tok.Step.N
	}

	clamp := func(x, lo, hi int) int {
		if x < lo {
			return lo
		}
		if x > hi {
			return hi
		}
		return x
	}
	normalize := func(b pathexpr.Bound, def int) int {
		if !b.Present {
			return def
		}
		x := b.N
		if x < 0 {
			x += n
		}
		return x
	}

	var start, stop int
	if step > 0 {
		start = clamp(normalize(tok.Start, 0), 0, n)
		stop = clamp(normalize(tok.Stop, n), 0, n)
	} else {
		start = clamp(normalize(tok.Start, n-1), -1, n-1)
		stop = clamp(normalize(tok.Stop, -n-1), -1, n-1)
	}

	var out []int
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, i)
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, i)
		}
	}
	return out
}
