// Copyright (C) 2025 M. Felden. All Rights Reserved.

package pathexpr

import (
	"regexp"
	"strconv"
	"strings"

	"go4.org/mem"

	"github.com/mfelden/treewalk/internal/escape"
	"github.com/mfelden/treewalk/value"
)

// A Pipeline is an ordered sequence of filter stages. Stages execute
// left to right; the output of each stage is the input of the next.
type Pipeline []FilterCall

// A FilterCall is one "$name(args)" stage of a pipeline. MapOver records
// a trailing "[]", which applies the stage to each element of a sequence
// input instead of the sequence as a whole.
type FilterCall struct {
	Name    string
	Args    []Arg
	MapOver bool
	Raw     string
}

// An Arg is one literal argument of a filter call. A "$$root..."
// reference is kept as text for the engine to resolve against the root
// document at evaluation time.
type Arg struct {
	Lit     value.Value
	RootRef string
}

var stageRE = regexp.MustCompile(`^\$([a-zA-Z_]\w*)(?:\((.*)\))?(\[\])?$`)

// ParsePipeline parses a standalone filter pipeline expression such as
// "$round(2)|$string".
func ParsePipeline(s string) (Pipeline, error) { return parsePipeline(s) }

// parsePipeline parses a "$name|$name(...)|..." filter pipeline.
func parsePipeline(s string) (Pipeline, error) {
	var out Pipeline
	for _, stage := range splitStages(s) {
		m := stageRE.FindStringSubmatch(stage)
		if m == nil {
			return nil, syntaxErrf("", stage, "invalid filter stage %q", stage)
		}
		call := FilterCall{Name: m[1], MapOver: m[3] != "", Raw: stage}
		if m[2] != "" {
			args, err := splitArgs(m[2])
			if err != nil {
				return nil, syntaxErrf("", stage, "%v", err)
			}
			for _, argText := range args {
				arg, err := parseArg(argText)
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, arg)
			}
		}
		out = append(out, call)
	}
	if len(out) == 0 {
		return nil, syntaxErrf("", s, "empty filter pipeline")
	}
	return out, nil
}

// splitStages splits a pipeline at "|" outside quotes and parentheses.
func splitStages(s string) []string {
	var stages []string
	depth, start := 0, 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '|':
			if depth == 0 {
				stages = append(stages, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(stages, strings.TrimSpace(s[start:]))
}

// splitArgs splits a filter argument list at commas outside quotes,
// parentheses, brackets, and braces.
func splitArgs(s string) ([]string, error) {
	var out []string
	var current strings.Builder
	var quote byte
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			current.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				current.WriteByte(s[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
			current.WriteByte(c)
		case '(', '[', '{':
			depth++
			current.WriteByte(c)
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return nil, syntaxErrf("", s, "unbalanced delimiters in filter arguments")
			}
			current.WriteByte(c)
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(current.String()))
				current.Reset()
			} else {
				current.WriteByte(c)
			}
		default:
			current.WriteByte(c)
		}
	}
	if quote != 0 || depth != 0 {
		return nil, syntaxErrf("", s, "unbalanced delimiters in filter arguments")
	}
	last := strings.TrimSpace(current.String())
	if last != "" {
		out = append(out, last)
	} else if len(out) > 0 {
		return nil, syntaxErrf("", s, "trailing comma in filter arguments")
	}
	return out, nil
}

func parseArg(s string) (Arg, error) {
	if strings.HasPrefix(s, "$$root") {
		return Arg{RootRef: s}, nil
	}
	lit, err := parseLiteral(s)
	if err != nil {
		return Arg{}, err
	}
	return Arg{Lit: lit}, nil
}

// parseLiteral interprets a literal token: a number, a quoted string, a
// bracketed list, true/false/null, or a bare identifier (which reads as
// a string).
func parseLiteral(s string) (value.Value, error) {
	switch s {
	case "":
		return nil, syntaxErrf("", s, "empty literal")
	case "true":
		return value.Bool(true), nil
	case "false":
		return value.Bool(false), nil
	case "null":
		return value.Null, nil
	}
	if s[0] == '\'' || s[0] == '"' {
		if len(s) < 2 || s[len(s)-1] != s[0] {
			return nil, syntaxErrf("", s, "unterminated string literal")
		}
		body, err := escape.Unquote(mem.S(s[1 : len(s)-1]))
		if err != nil {
			return nil, syntaxErrf("", s, "%v", err)
		}
		return value.String(body), nil
	}
	if s[0] == '[' {
		if s[len(s)-1] != ']' {
			return nil, syntaxErrf("", s, "unterminated list literal")
		}
		body := strings.TrimSpace(s[1 : len(s)-1])
		out := value.NewArray()
		if body == "" {
			return out, nil
		}
		parts, err := splitArgs(body)
		if err != nil {
			return nil, err
		}
		for _, part := range parts {
			elt, err := parseLiteral(part)
			if err != nil {
				return nil, err
			}
			out.Append(elt)
		}
		return out, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(n), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Float(f), nil
	}
	if bareWordRE.MatchString(s) {
		return value.String(s), nil
	}
	return nil, syntaxErrf("", s, "invalid literal %q", s)
}

var bareWordRE = regexp.MustCompile(`^[a-zA-Z_][\w.@/-]*$`)
