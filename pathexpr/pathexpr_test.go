// Copyright (C) 2025 M. Felden. All Rights Reserved.

package pathexpr_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mfelden/treewalk/pathexpr"
	"github.com/mfelden/treewalk/value"
)

func mustParse(t *testing.T, path string) pathexpr.Path {
	t.Helper()
	p, err := pathexpr.Parse(path)
	if err != nil {
		t.Fatalf("Parse %q: unexpected error: %v", path, err)
	}
	return p
}

func kinds(p pathexpr.Path) []pathexpr.Kind {
	out := make([]pathexpr.Kind, len(p.Tokens))
	for i, tok := range p.Tokens {
		out[i] = tok.Kind
	}
	return out
}

func TestParseTokens(t *testing.T) {
	tests := []struct {
		path string
		want []pathexpr.Kind
	}{
		{"a", []pathexpr.Kind{pathexpr.Key}},
		{"a.b.c", []pathexpr.Kind{pathexpr.Key, pathexpr.Key, pathexpr.Key}},
		{"a.b[0]", []pathexpr.Kind{pathexpr.Key, pathexpr.Key, pathexpr.Index}},
		{"a[0][1]", []pathexpr.Kind{pathexpr.Key, pathexpr.Index, pathexpr.Index}},
		{"a[1:3]", []pathexpr.Kind{pathexpr.Key, pathexpr.Slice}},
		{"a[::2]", []pathexpr.Kind{pathexpr.Key, pathexpr.Slice}},
		{"a[]", []pathexpr.Kind{pathexpr.Key, pathexpr.Map}},
		{"a[].b", []pathexpr.Kind{pathexpr.Key, pathexpr.Map, pathexpr.Key}},
		{"a.*.b", []pathexpr.Kind{pathexpr.Key, pathexpr.Wildcard, pathexpr.Key}},
		{"a.**.b", []pathexpr.Kind{pathexpr.Key, pathexpr.DeepWildcard, pathexpr.Key}},
		{"$$root.a", []pathexpr.Kind{pathexpr.Root, pathexpr.Key}},
		{"a[?id==2]", []pathexpr.Kind{pathexpr.Key, pathexpr.Filter}},
		{"a[?id==2].name[]", []pathexpr.Kind{pathexpr.Key, pathexpr.Filter, pathexpr.Key, pathexpr.Map}},
	}
	for _, test := range tests {
		t.Run(test.path, func(t *testing.T) {
			p := mustParse(t, test.path)
			if diff := cmp.Diff(test.want, kinds(p)); diff != "" {
				t.Errorf("Token kinds (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestParseDetails(t *testing.T) {
	t.Run("Identity", func(t *testing.T) {
		p := mustParse(t, ".")
		if len(p.Tokens) != 0 || p.Output != nil {
			t.Errorf("Parse .: got %+v, want empty", p)
		}
	})

	t.Run("NegativeIndex", func(t *testing.T) {
		p := mustParse(t, "xs[-2]")
		if tok := p.Tokens[1]; tok.N != -2 {
			t.Errorf("Index: got %d, want -2", tok.N)
		}
	})

	t.Run("SliceBounds", func(t *testing.T) {
		p := mustParse(t, "xs[1:-1:2]")
		tok := p.Tokens[1]
		want := []pathexpr.Bound{{N: 1, Present: true}, {N: -1, Present: true}, {N: 2, Present: true}}
		got := []pathexpr.Bound{tok.Start, tok.Stop, tok.Step}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Bounds (-want, +got):\n%s", diff)
		}
	})

	t.Run("OpenSlice", func(t *testing.T) {
		p := mustParse(t, "xs[:]")
		tok := p.Tokens[1]
		if tok.Start.Present || tok.Stop.Present || tok.Step.Present {
			t.Errorf("Bounds: got %+v, want all absent", tok)
		}
	})

	t.Run("Output", func(t *testing.T) {
		p := mustParse(t, "xs|$unique|$sorted(true)")
		if len(p.Output) != 2 {
			t.Fatalf("Output: got %d stages, want 2", len(p.Output))
		}
		if p.Output[0].Name != "unique" || p.Output[1].Name != "sorted" {
			t.Errorf("Stages: got %q, %q", p.Output[0].Name, p.Output[1].Name)
		}
		if len(p.Output[1].Args) != 1 || !value.Equal(p.Output[1].Args[0].Lit, value.Bool(true)) {
			t.Errorf("Args: got %+v", p.Output[1].Args)
		}
	})

	t.Run("MapOver", func(t *testing.T) {
		p := mustParse(t, "xs|$double[]")
		if !p.Output[0].MapOver {
			t.Error("MapOver: got false, want true")
		}
	})

	t.Run("PipeInsideBracketStaysInPath", func(t *testing.T) {
		p := mustParse(t, "items[?.|$len>2]")
		if p.Output != nil {
			t.Errorf("Output: got %+v, want nil", p.Output)
		}
		if len(p.Tokens) != 2 || p.Tokens[1].Kind != pathexpr.Filter {
			t.Fatalf("Tokens: got %+v", p.Tokens)
		}
	})
}

func TestParsePredicates(t *testing.T) {
	atom := func(t *testing.T, path string) *pathexpr.Atom {
		t.Helper()
		p := mustParse(t, path)
		a, ok := p.Tokens[len(p.Tokens)-1].Pred.(*pathexpr.Atom)
		if !ok {
			t.Fatalf("Predicate: got %T, want *Atom", p.Tokens[len(p.Tokens)-1].Pred)
		}
		return a
	}

	t.Run("KeyLiteral", func(t *testing.T) {
		a := atom(t, "users[?id==2]")
		if diff := cmp.Diff([]string{"id"}, a.LHS.Keys); diff != "" {
			t.Errorf("Keys (-want, +got):\n%s", diff)
		}
		if a.Op != "==" || !value.Equal(a.RHS.Lit, value.Int(2)) {
			t.Errorf("Atom: got op %q rhs %+v", a.Op, a.RHS)
		}
	})

	t.Run("DottedKeys", func(t *testing.T) {
		a := atom(t, "users[?address.city=='Oslo']")
		if diff := cmp.Diff([]string{"address", "city"}, a.LHS.Keys); diff != "" {
			t.Errorf("Keys (-want, +got):\n%s", diff)
		}
	})

	t.Run("SelfPipe", func(t *testing.T) {
		a := atom(t, "items[?.|$len>2]")
		if !a.LHS.Self || len(a.LHS.Pipe) != 1 || a.LHS.Pipe[0].Name != "len" {
			t.Errorf("LHS: got %+v", a.LHS)
		}
	})

	t.Run("PipelineOperand", func(t *testing.T) {
		a := atom(t, "nums[?.==$even]")
		if a.RHS.Pipe == nil || a.RHS.Negate {
			t.Errorf("RHS: got %+v", a.RHS)
		}
	})

	t.Run("NegatedOperand", func(t *testing.T) {
		a := atom(t, "nums[?.==!$even]")
		if a.RHS.Pipe == nil || !a.RHS.Negate {
			t.Errorf("RHS: got %+v", a.RHS)
		}
	})

	t.Run("RootRefOperand", func(t *testing.T) {
		a := atom(t, "xs[?v>=$$root.cutoff]")
		if a.RHS.RootRef != "$$root.cutoff" {
			t.Errorf("RootRef: got %q", a.RHS.RootRef)
		}
	})

	t.Run("Boolean", func(t *testing.T) {
		p := mustParse(t, "xs[?(a==1||b==2)&&!c==3]")
		and, ok := p.Tokens[1].Pred.(*pathexpr.AndExpr)
		if !ok {
			t.Fatalf("Pred: got %T, want *AndExpr", p.Tokens[1].Pred)
		}
		if _, ok := and.L.(*pathexpr.OrExpr); !ok {
			t.Errorf("Left: got %T, want *OrExpr", and.L)
		}
		if _, ok := and.R.(*pathexpr.NotExpr); !ok {
			t.Errorf("Right: got %T, want *NotExpr", and.R)
		}
	})
}

func TestParseDeterminism(t *testing.T) {
	paths := []string{
		"a.b[0].c[1:3]|$sum",
		"users[?age>=18&&name!='x'].id[]",
		"a.**.id",
	}
	for _, path := range paths {
		first := mustParse(t, path)
		second := mustParse(t, path)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("Parse %q not deterministic (-first, +second):\n%s", path, diff)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"Empty", ""},
		{"EmptyKey", "a..b"},
		{"UnterminatedBracket", "a[1"},
		{"UnterminatedQuote", "a[?name=='x]"},
		{"BadSlice", "a[1:b]"},
		{"ZeroStep", "a[::0]"},
		{"TooManySliceParts", "a[1:2:3:4]"},
		{"BadBracket", "a[wat]"},
		{"BareBracket", "[0]"},
		{"NoOperator", "a[?name]"},
		{"LHSFilterSyntax", "a[?$len>3]"},
		{"EmptyPipeline", "a|$"},
		{"BadStage", "a|$2x"},
		{"UnbalancedParens", "a[?(x==1]"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if p, err := pathexpr.Parse(test.path); err == nil {
				t.Errorf("Parse %q: got %+v, want error", test.path, p)
			}
		})
	}
}

func TestParsePipeline(t *testing.T) {
	pipe, err := pathexpr.ParsePipeline(`$replace('a', 'b')|$upper`)
	if err != nil {
		t.Fatalf("ParsePipeline: unexpected error: %v", err)
	}
	if len(pipe) != 2 || pipe[0].Name != "replace" || len(pipe[0].Args) != 2 {
		t.Errorf("Pipeline: got %+v", pipe)
	}

	t.Run("ListLiteral", func(t *testing.T) {
		pipe, err := pathexpr.ParsePipeline(`$in([1, 2, 'three'])`)
		if err != nil {
			t.Fatalf("ParsePipeline: unexpected error: %v", err)
		}
		arr, ok := pipe[0].Args[0].Lit.(*value.Array)
		if !ok || arr.Len() != 3 {
			t.Fatalf("List arg: got %+v", pipe[0].Args[0])
		}
		if !value.Equal(arr.Values[2], value.String("three")) {
			t.Errorf("Element 2: got %v", arr.Values[2])
		}
	})

	t.Run("RootRefArg", func(t *testing.T) {
		pipe, err := pathexpr.ParsePipeline(`$default($$root.fallback)`)
		if err != nil {
			t.Fatalf("ParsePipeline: unexpected error: %v", err)
		}
		if pipe[0].Args[0].RootRef != "$$root.fallback" {
			t.Errorf("Arg: got %+v", pipe[0].Args[0])
		}
	})
}
