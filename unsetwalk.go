// Copyright (C) 2025 M. Felden. All Rights Reserved.

package treewalk

import (
	"sort"

	"github.com/mfelden/treewalk/filter"
	"github.com/mfelden/treewalk/pathexpr"
	"github.com/mfelden/treewalk/value"
)

// An unsetWalker carries one Unset call through the token sequence.
// Removal never creates scaffolding; anything missing along the way is
// silently skipped (strict mode has already verified the path).
type unsetWalker struct {
	prog *program
	root value.Value
	env  *filter.Env
}

func (w *unsetWalker) unset(cur value.Value, steps []step) error {
	if len(steps) == 0 {
		return nil
	}
	st := steps[0]
	switch st.tok.Kind {
	case pathexpr.Key:
		return w.unsetKey(cur, st, steps)
	case pathexpr.Index:
		return w.unsetIndex(cur, st, steps)
	case pathexpr.Slice:
		return w.unsetSlice(cur, st, steps)
	case pathexpr.Map:
		return w.unsetMap(cur, steps)
	case pathexpr.Wildcard:
		return w.unsetWildcard(cur, steps)
	case pathexpr.DeepWildcard:
		return w.unsetDeepWildcard(cur, steps)
	case pathexpr.Filter:
		return w.unsetFilter(cur, st, steps)
	}
	return nil
}

func (w *unsetWalker) unsetKey(cur value.Value, st step, steps []step) error {
	obj, ok := cur.(*value.Object)
	if !ok {
		return nil
	}
	if len(steps) == 1 {
		obj.Delete(st.tok.Name)
		return nil
	}
	m := obj.Find(st.tok.Name)
	if m == nil {
		return nil
	}
	return w.unset(m.Value, steps[1:])
}

func (w *unsetWalker) unsetIndex(cur value.Value, st step, steps []step) error {
	arr, ok := cur.(*value.Array)
	if !ok {
		return nil
	}
	idx := st.tok.N
	if idx < 0 {
		idx += len(arr.Values)
	}
	if idx < 0 || idx >= len(arr.Values) {
		return nil
	}
	if len(steps) == 1 {
		arr.Values = append(arr.Values[:idx], arr.Values[idx+1:]...)
		return nil
	}
	return w.unset(arr.Values[idx], steps[1:])
}

func (w *unsetWalker) unsetSlice(cur value.Value, st step, steps []step) error {
	arr, ok := cur.(*value.Array)
	if !ok {
		return nil
	}
	indexes := sliceIndexes(len(arr.Values), st.tok)
	if len(steps) == 1 {
		sort.Sort(sort.Reverse(sort.IntSlice(indexes)))
		for _, idx := range indexes {
			arr.Values = append(arr.Values[:idx], arr.Values[idx+1:]...)
		}
		return nil
	}
	for _, idx := range indexes {
		if err := w.unset(arr.Values[idx], steps[1:]); err != nil {
			return err
		}
	}
	return nil
}

func (w *unsetWalker) unsetMap(cur value.Value, steps []step) error {
	arr, ok := cur.(*value.Array)
	if !ok {
		return nil
	}
	if len(steps) == 1 {
		arr.Values = arr.Values[:0]
		return nil
	}
	for _, elt := range arr.Values {
		if err := w.unset(elt, steps[1:]); err != nil {
			return err
		}
	}
	return nil
}

func (w *unsetWalker) unsetWildcard(cur value.Value, steps []step) error {
	switch t := cur.(type) {
	case *value.Object:
		if len(steps) == 1 {
			t.Members = t.Members[:0]
			return nil
		}
		for _, m := range t.Members {
			if err := w.unset(m.Value, steps[1:]); err != nil {
				return err
			}
		}
	case *value.Array:
		if len(steps) == 1 {
			t.Values = t.Values[:0]
			return nil
		}
		for _, elt := range t.Values {
			if err := w.unset(elt, steps[1:]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *unsetWalker) unsetDeepWildcard(cur value.Value, steps []step) error {
	if len(steps) == 1 {
		// Every enumerated descendant is a removal target, which empties
		// the container wholesale.
		switch t := cur.(type) {
		case *value.Object:
			t.Members = t.Members[:0]
		case *value.Array:
			t.Values = t.Values[:0]
		}
		return nil
	}
	return w.deepUnset(cur, steps[1:])
}

func (w *unsetWalker) deepUnset(node value.Value, rest []step) error {
	children, _ := childValues(node)
	for _, child := range children {
		if err := w.unset(child, rest); err != nil {
			return err
		}
		if value.IsContainer(child) {
			if err := w.deepUnset(child, rest); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *unsetWalker) unsetFilter(cur value.Value, st step, steps []step) error {
	arr, ok := cur.(*value.Array)
	if !ok {
		return nil
	}
	if len(steps) == 1 {
		kept := arr.Values[:0]
		for _, elt := range arr.Values {
			m, err := st.matcher.Match(w.env, elt)
			if err != nil {
				return err
			}
			if !m {
				kept = append(kept, elt)
			}
		}
		arr.Values = kept
		return nil
	}
	for _, elt := range arr.Values {
		m, err := st.matcher.Match(w.env, elt)
		if err != nil {
			return err
		}
		if m {
			if err := w.unset(elt, steps[1:]); err != nil {
				return err
			}
		}
	}
	return nil
}
