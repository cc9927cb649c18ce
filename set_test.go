// Copyright (C) 2025 M. Felden. All Rights Reserved.

package treewalk_test

import (
	"errors"
	"testing"

	treewalk "github.com/mfelden/treewalk"
	"github.com/mfelden/treewalk/value"
)

func mustSet(t *testing.T, data value.Value, path string, v any, opts ...treewalk.Option) value.Value {
	t.Helper()
	out, err := treewalk.Set(data, path, v, opts...)
	if err != nil {
		t.Fatalf("Set %q: unexpected error: %v", path, err)
	}
	return out
}

func TestSet(t *testing.T) {
	tests := []struct {
		name  string
		input string
		path  string
		value any
		want  string
	}{
		{"Scaffold", `{}`, "a.b.c", 5, `{"a":{"b":{"c":5}}}`},
		{"ReplaceLeaf", `{"a":{"b":1}}`, "a.b", 2, `{"a":{"b":2}}`},
		{"KeepSiblings", `{"a":{"b":1,"c":2}}`, "a.b", 9, `{"a":{"b":9,"c":2}}`},
		{"Index", `{"xs":[1,2,3]}`, "xs[1]", 9, `{"xs":[1,9,3]}`},
		{"NegativeIndex", `{"xs":[1,2,3]}`, "xs[-1]", 9, `{"xs":[1,2,9]}`},
		{"IndexExtends", `{"xs":[1]}`, "xs[3]", 9, `{"xs":[1,null,null,9]}`},
		{"IndexScaffoldsSequence", `{}`, "xs[1]", 9, `{"xs":[null,9]}`},
		{"NegativeBeyondIsNoop", `{"xs":[1]}`, "xs[-5]", 9, `{"xs":[1]}`},
		{"Slice", `{"xs":[1,2,3,4]}`, "xs[1:3]", 0, `{"xs":[1,0,0,4]}`},
		{"MapLiteral", `{"xs":[1,2]}`, "xs[]", 0, `{"xs":[0,0]}`},
		{"MapPipeline", `{"a":{"nums":[1,2,3]}}`, "a.nums[]", "$double", `{"a":{"nums":[2,4,6]}}`},
		{"MapKey", `{"xs":[{"v":1},{"v":2}]}`, "xs[].v", 7, `{"xs":[{"v":7},{"v":7}]}`},
		{"MapEmptyCreates", `{"xs":[]}`, "xs[].v", 7, `{"xs":[{"v":7}]}`},
		{"Wildcard", `{"a":{"x":1,"y":2}}`, "a.*", 0, `{"a":{"x":0,"y":0}}`},
		{"WildcardPipeline", `{"a":{"x":1,"y":2}}`, "a.*", "$inc", `{"a":{"x":2,"y":3}}`},
		{"FilterTerminalKey", `{"us":[{"id":1,"v":1},{"id":2,"v":1}]}`, "us[?id==2].v", 9, `{"us":[{"id":1,"v":1},{"id":2,"v":9}]}`},
		{"FilterReplacesElement", `{"us":[{"id":1},{"id":2}]}`, "us[?id==2]", 0, `{"us":[{"id":1},0]}`},
		{"FilterCreatesMatch", `{"us":[{"id":1}]}`, "us[?id==2].v", 9, `{"us":[{"id":1},{"id":2,"v":9}]}`},
		{"FilterSeedsAllEqAtoms", `{"us":[]}`, "us[?id==2&&region=='eu'].v", 9, `{"us":[{"id":2,"region":"eu","v":9}]}`},
		{"OverwriteScalar", `{"a":1}`, "a.b", 2, `{"a":{"b":2}}`},
		{"PipelineOnExisting", `{"n":20}`, "n", "$div(4)", `{"n":5}`},
		{"PlainStringValue", `{"n":1}`, "n", "hello", `{"n":"hello"}`},
		{"PipeLookalikeString", `{"n":1}`, "n", "a|b", `{"n":"a|b"}`},
		{"RootReference", `{"a":{"items":[{"v":0},{"v":0}]},"source":9}`, "a.items[].v", "$$root.source|$double", `{"a":{"items":[{"v":18},{"v":18}]},"source":9}`},
		{"DeepWildcardKey", `{"a":{"b":{"v":1},"c":{"d":{"v":2}}}}`, "a.**.v", 0, `{"a":{"b":{"v":0},"c":{"d":{"v":0}}}}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data := mustParse(t, test.input)
			out := mustSet(t, data, test.path, test.value)
			if out != data {
				t.Error("Set returned a different reference")
			}
			if got := data.JSON(); got != test.want {
				t.Errorf("Result: got %#q, want %#q", got, test.want)
			}
		})
	}
}

func TestSetFlags(t *testing.T) {
	t.Run("NoCreateMissing", func(t *testing.T) {
		data := mustParse(t, `{"a":{}}`)
		mustSet(t, data, "a.b.c", 1, treewalk.CreateMissing(false))
		if got := data.JSON(); got != `{"a":{}}` {
			t.Errorf("Result: got %#q, want no change", got)
		}
	})

	t.Run("CreateMissingSetsExisting", func(t *testing.T) {
		data := mustParse(t, `{"a":{"b":1}}`)
		mustSet(t, data, "a.b", 2, treewalk.CreateMissing(false))
		if got := data.JSON(); got != `{"a":{"b":2}}` {
			t.Errorf("Result: got %#q, want b=2", got)
		}
	})

	t.Run("NoCreateMissingSkipsExtension", func(t *testing.T) {
		data := mustParse(t, `{"xs":[1]}`)
		mustSet(t, data, "xs[3]", 9, treewalk.CreateMissing(false))
		if got := data.JSON(); got != `{"xs":[1]}` {
			t.Errorf("Result: got %#q, want no change", got)
		}
	})

	t.Run("NoOverwriteIncompatible", func(t *testing.T) {
		data := mustParse(t, `{"a":1}`)
		mustSet(t, data, "a.b", 2, treewalk.OverwriteIncompatible(false))
		if got := data.JSON(); got != `{"a":1}` {
			t.Errorf("Result: got %#q, want no change", got)
		}
	})

	t.Run("NoCreateFilterMatch", func(t *testing.T) {
		data := mustParse(t, `{"us":[{"id":1}]}`)
		mustSet(t, data, "us[?id==2].v", 9, treewalk.CreateFilterMatch(false))
		if got := data.JSON(); got != `{"us":[{"id":1}]}` {
			t.Errorf("Result: got %#q, want no change", got)
		}
	})

	t.Run("NoFilterCreateForOrderedOp", func(t *testing.T) {
		data := mustParse(t, `{"us":[{"id":1}]}`)
		mustSet(t, data, "us[?id>5].v", 9)
		if got := data.JSON(); got != `{"us":[{"id":1}]}` {
			t.Errorf("Result: got %#q, want no change", got)
		}
	})
}

func TestSetStrict(t *testing.T) {
	t.Run("ParentMissing", func(t *testing.T) {
		data := mustParse(t, `{"a":{}}`)
		_, err := treewalk.Set(data, "a.b.c", 1, treewalk.Strict())
		var re *treewalk.ResolutionError
		if !errors.As(err, &re) {
			t.Fatalf("Set: got %v, want ResolutionError", err)
		}
		if got := data.JSON(); got != `{"a":{}}` {
			t.Errorf("Tree changed on strict failure: %#q", got)
		}
	})

	t.Run("ParentPresent", func(t *testing.T) {
		data := mustParse(t, `{"a":{"b":{}}}`)
		mustSet(t, data, "a.b.c", 1, treewalk.Strict())
		if got := data.JSON(); got != `{"a":{"b":{"c":1}}}` {
			t.Errorf("Result: got %#q", got)
		}
	})
}

func TestSetRejectsRootToken(t *testing.T) {
	data := mustParse(t, `{"a":1}`)
	var pe *treewalk.ParseError
	if _, err := treewalk.Set(data, "$$root.a", 2); !errors.As(err, &pe) {
		t.Errorf("Set: got %v, want ParseError", err)
	}
	if _, err := treewalk.Unset(data, "$$root.a"); !errors.As(err, &pe) {
		t.Errorf("Unset: got %v, want ParseError", err)
	}
}

func TestSetLaws(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		paths := []string{"a.b.c", "xs[0]", "a.deep.list[2]"}
		for _, path := range paths {
			data := mustParse(t, `{"xs":[1,2]}`)
			mustSet(t, data, path, 42)
			got := mustGet(t, data, path)
			if !value.Equal(got, value.Int(42)) {
				t.Errorf("get(set(%q)): got %v, want 42", path, got)
			}
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		first := mustParse(t, `{"a":{"b":1},"xs":[{"id":1}]}`)
		second := mustParse(t, `{"a":{"b":1},"xs":[{"id":1}]}`)
		for _, path := range []string{"a.b", "xs[?id==2].v", "xs[0].w"} {
			mustSet(t, first, path, 7)
			mustSet(t, second, path, 7)
			mustSet(t, second, path, 7)
			if f, s := first.JSON(), second.JSON(); f != s {
				t.Errorf("set once %#q != set twice %#q (path %q)", f, s, path)
			}
		}
	})
}
