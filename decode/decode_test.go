// Copyright (C) 2025 M. Felden. All Rights Reserved.

package decode_test

import (
	"testing"

	"github.com/mfelden/treewalk/decode"
	"github.com/mfelden/treewalk/value"
)

func TestJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Scalar", `42`, `42`},
		{"Float", `2.5`, `2.5`},
		{"BigInt", `9007199254740993`, `9007199254740993`},
		{"String", `"hi"`, `"hi"`},
		{"Null", `null`, `null`},
		{"Array", `[1, [2, 3], null]`, `[1,[2,3],null]`},
		{"ObjectOrder", `{"z": 1, "a": 2, "m": 3}`, `{"z":1,"a":2,"m":3}`},
		{"Nested", `{"a": {"b": [true, false]}}`, `{"a":{"b":[true,false]}}`},
		{"Comments", "{\n  // leading comment\n  \"a\": 1, /* inline */ \"b\": 2,\n}", `{"a":1,"b":2}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v, err := decode.JSON([]byte(test.input))
			if err != nil {
				t.Fatalf("JSON: unexpected error: %v", err)
			}
			if got := v.JSON(); got != test.want {
				t.Errorf("Result: got %#q, want %#q", got, test.want)
			}
		})
	}

	t.Run("Invalid", func(t *testing.T) {
		if v, err := decode.JSON([]byte(`{"a":`)); err == nil {
			t.Errorf("JSON: got %v, want error", v)
		}
	})
}

func TestYAML(t *testing.T) {
	const input = `
z: 1
a:
  - name: first
    ok: true
  - name: second
    ratio: 0.5
m: null
`
	v, err := decode.YAML([]byte(input))
	if err != nil {
		t.Fatalf("YAML: unexpected error: %v", err)
	}
	obj, ok := v.(*value.Object)
	if !ok {
		t.Fatalf("Result: got %T, want object", v)
	}

	want := []string{"z", "a", "m"}
	got := obj.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys[%d]: got %q, want %q", i, got[i], want[i])
		}
	}

	const wantJSON = `{"z":1,"a":[{"name":"first","ok":true},{"name":"second","ratio":0.5}],"m":null}`
	if got := v.JSON(); got != wantJSON {
		t.Errorf("Result: got %#q, want %#q", got, wantJSON)
	}
}
