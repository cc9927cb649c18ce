// Copyright (C) 2025 M. Felden. All Rights Reserved.

package treewalk

import (
	"strings"

	"github.com/mfelden/treewalk/filter"
	"github.com/mfelden/treewalk/pathexpr"
	"github.com/mfelden/treewalk/value"
)

// A setWalker carries one Set call through the token sequence. Each
// handler returns the value the parent should hold at the position it
// descended through, so a coerced or newly created container replaces
// the old value on the way back up.
type setWalker struct {
	prog     *program
	root     value.Value
	env      *filter.Env
	opts     options
	newValue any
}

func (w *setWalker) set(cur value.Value, steps []step) (value.Value, error) {
	if len(steps) == 0 {
		return w.resolveValue(cur)
	}
	st := steps[0]
	switch st.tok.Kind {
	case pathexpr.Key:
		return w.setKey(cur, st, steps)
	case pathexpr.Index:
		return w.setIndex(cur, st, steps)
	case pathexpr.Slice:
		return w.setSlice(cur, st, steps)
	case pathexpr.Map:
		return w.setMap(cur, st, steps)
	case pathexpr.Wildcard:
		return w.setWildcard(cur, steps)
	case pathexpr.DeepWildcard:
		return w.setDeepWildcard(cur, steps)
	case pathexpr.Filter:
		return w.setFilter(cur, st, steps)
	}
	return cur, nil
}

// resolveValue produces the value to write over existing: a literal, a
// "$name..." pipeline applied to the pre-write value, or a "$$root..."
// reference resolved against the root document. A string that does not
// parse as a pipeline writes as itself.
func (w *setWalker) resolveValue(existing value.Value) (value.Value, error) {
	if s, ok := stringArg(w.newValue); ok {
		if strings.HasPrefix(s, "$$root") {
			return resolveRootExpr(w.root, s)
		}
		if strings.HasPrefix(s, "$") || strings.Contains(s, "|") {
			if pipe, err := filter.ParseAndCompile(s); err == nil {
				in := existing
				if in == nil || value.IsUndefined(in) {
					in = value.Null
				}
				return pipe.Apply(w.env, in)
			}
		}
	}
	return value.FromAny(w.newValue), nil
}

func stringArg(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case value.String:
		return string(t), true
	}
	return "", false
}

// newContainerFor picks the container shape the next token needs:
// sequences ahead of indexing, slicing, mapping, and filtering tokens,
// mappings otherwise.
func newContainerFor(steps []step) value.Value {
	if len(steps) > 0 {
		switch steps[0].tok.Kind {
		case pathexpr.Index, pathexpr.Slice, pathexpr.Map, pathexpr.Filter:
			return value.NewArray()
		}
	}
	return value.NewObject()
}

func (w *setWalker) setKey(cur value.Value, st step, steps []step) (value.Value, error) {
	obj, ok := cur.(*value.Object)
	if !ok {
		if !w.opts.overwriteIncompatible || !w.opts.createMissing {
			return cur, nil
		}
		obj = value.NewObject()
		cur = obj
	}

	key := st.tok.Name
	m := obj.Find(key)

	if len(steps) == 1 {
		if m == nil && !w.opts.createMissing {
			return cur, nil
		}
		var existing value.Value
		if m != nil {
			existing = m.Value
		}
		resolved, err := w.resolveValue(existing)
		if err != nil {
			return nil, err
		}
		obj.Set(key, resolved)
		return cur, nil
	}

	var child value.Value
	switch {
	case m == nil:
		if !w.opts.createMissing {
			return cur, nil
		}
		child = newContainerFor(steps[1:])
	case !value.IsContainer(m.Value):
		if !w.opts.overwriteIncompatible {
			return cur, nil
		}
		child = newContainerFor(steps[1:])
	default:
		child = m.Value
	}

	updated, err := w.set(child, steps[1:])
	if err != nil {
		return nil, err
	}
	obj.Set(key, updated)
	return cur, nil
}

// coerceArray readies cur for a sequence-shaped write, replacing an
// incompatible value with a fresh array when that is allowed.
func (w *setWalker) coerceArray(cur value.Value) (*value.Array, value.Value, bool) {
	if arr, ok := cur.(*value.Array); ok {
		return arr, cur, true
	}
	if !w.opts.overwriteIncompatible {
		return nil, cur, false
	}
	arr := value.NewArray()
	return arr, arr, true
}

func (w *setWalker) setIndex(cur value.Value, st step, steps []step) (value.Value, error) {
	arr, cur, ok := w.coerceArray(cur)
	if !ok {
		return cur, nil
	}

	idx := st.tok.N
	if idx < 0 {
		if idx < -len(arr.Values) {
			return cur, nil
		}
		idx += len(arr.Values)
	} else if idx >= len(arr.Values) {
		if !w.opts.createMissing {
			return cur, nil
		}
		for len(arr.Values) <= idx {
			if len(steps) > 1 {
				arr.Append(newContainerFor(steps[1:]))
			} else {
				arr.Append(value.Null)
			}
		}
	}

	if len(steps) == 1 {
		resolved, err := w.resolveValue(arr.Values[idx])
		if err != nil {
			return nil, err
		}
		arr.Values[idx] = resolved
		return cur, nil
	}

	item := arr.Values[idx]
	if !value.IsContainer(item) {
		if !w.opts.overwriteIncompatible {
			return cur, nil
		}
		item = newContainerFor(steps[1:])
	}
	updated, err := w.set(item, steps[1:])
	if err != nil {
		return nil, err
	}
	arr.Values[idx] = updated
	return cur, nil
}

func (w *setWalker) setSlice(cur value.Value, st step, steps []step) (value.Value, error) {
	arr, cur, ok := w.coerceArray(cur)
	if !ok {
		return cur, nil
	}
	for _, idx := range sliceIndexes(len(arr.Values), st.tok) {
		item := arr.Values[idx]
		if len(steps) > 1 && !value.IsContainer(item) {
			if !w.opts.overwriteIncompatible {
				continue
			}
			item = newContainerFor(steps[1:])
		}
		updated, err := w.set(item, steps[1:])
		if err != nil {
			return nil, err
		}
		arr.Values[idx] = updated
	}
	return cur, nil
}

func (w *setWalker) setMap(cur value.Value, st step, steps []step) (value.Value, error) {
	arr, cur, ok := w.coerceArray(cur)
	if !ok {
		return cur, nil
	}

	if len(arr.Values) == 0 && len(steps) > 1 {
		if !w.opts.createMissing {
			return cur, nil
		}
		arr.Append(newContainerFor(steps[1:]))
	}

	for i := range arr.Values {
		item := arr.Values[i]
		if len(steps) > 1 && !value.IsContainer(item) {
			if !w.opts.overwriteIncompatible {
				continue
			}
			item = newContainerFor(steps[1:])
		}
		updated, err := w.set(item, steps[1:])
		if err != nil {
			return nil, err
		}
		arr.Values[i] = updated
	}
	return cur, nil
}

func (w *setWalker) setWildcard(cur value.Value, steps []step) (value.Value, error) {
	switch t := cur.(type) {
	case *value.Object:
		for _, m := range t.Members {
			updated, err := w.set(m.Value, steps[1:])
			if err != nil {
				return nil, err
			}
			m.Value = updated
		}
	case *value.Array:
		for i := range t.Values {
			updated, err := w.set(t.Values[i], steps[1:])
			if err != nil {
				return nil, err
			}
			t.Values[i] = updated
		}
	}
	return cur, nil
}

func (w *setWalker) setDeepWildcard(cur value.Value, steps []step) (value.Value, error) {
	if !value.IsContainer(cur) {
		return cur, nil
	}
	// Deep application never creates scaffolding: a recursive write at
	// every descendant would otherwise invent the remainder everywhere.
	sub := *w
	sub.opts.createMissing = false
	if err := sub.deepSet(cur, steps[1:]); err != nil {
		return nil, err
	}
	return cur, nil
}

// deepSet applies the remaining path at every descendant of node,
// pre-order. With no remainder, the write lands on every scalar leaf
// position.
func (w *setWalker) deepSet(node value.Value, rest []step) error {
	children, _ := childValues(node)
	store := func(i int, v value.Value) {
		switch t := node.(type) {
		case *value.Object:
			t.Members[i].Value = v
		case *value.Array:
			t.Values[i] = v
		}
	}
	for i, child := range children {
		if len(rest) > 0 {
			updated, err := w.set(child, rest)
			if err != nil {
				return err
			}
			store(i, updated)
			child = updated
		} else if !value.IsContainer(child) {
			resolved, err := w.resolveValue(child)
			if err != nil {
				return err
			}
			store(i, resolved)
			continue
		}
		if value.IsContainer(child) {
			if err := w.deepSet(child, rest); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *setWalker) setFilter(cur value.Value, st step, steps []step) (value.Value, error) {
	arr, cur, ok := w.coerceArray(cur)
	if !ok {
		return cur, nil
	}

	matched := make([]bool, len(arr.Values))
	anyMatch := false
	for i, elt := range arr.Values {
		m, err := st.matcher.Match(w.env, elt)
		if err != nil {
			return nil, err
		}
		matched[i] = m
		anyMatch = anyMatch || m
	}

	if !anyMatch && w.opts.createMissing && w.opts.createFilterMatch {
		if seed, ok := seedFromPredicate(st.tok.Pred); ok {
			arr.Append(seed)
			matched = append(matched, true)
		}
	}

	for i := range arr.Values {
		if !matched[i] {
			continue
		}
		updated, err := w.set(arr.Values[i], steps[1:])
		if err != nil {
			return nil, err
		}
		arr.Values[i] = updated
	}
	return cur, nil
}

// seedFromPredicate builds the element a filter step appends when
// nothing matches: an object holding the key-path/literal pairs of every
// "==" atom in the predicate that is not under a "!". It is false when
// the predicate has no such atom to seed from.
func seedFromPredicate(p pathexpr.Predicate) (*value.Object, bool) {
	seed := value.NewObject()
	var collect func(p pathexpr.Predicate)
	collect = func(p pathexpr.Predicate) {
		switch t := p.(type) {
		case *pathexpr.AndExpr:
			collect(t.L)
			collect(t.R)
		case *pathexpr.OrExpr:
			collect(t.L)
			collect(t.R)
		case *pathexpr.Atom:
			if t.Op != "==" || len(t.LHS.Keys) == 0 || t.LHS.Pipe != nil || t.RHS.Lit == nil {
				return
			}
			target := seed
			keys := t.LHS.Keys
			for _, key := range keys[:len(keys)-1] {
				m := target.Find(key)
				if m == nil || m.Value.Kind() != value.KindObject {
					child := value.NewObject()
					target.Set(key, child)
					target = child
					continue
				}
				target = m.Value.(*value.Object)
			}
			target.Set(keys[len(keys)-1], t.RHS.Lit)
		}
	}
	collect(p)
	if seed.Len() == 0 {
		return nil, false
	}
	return seed, true
}
