// Copyright (C) 2025 M. Felden. All Rights Reserved.

// Package treewalk implements a path-expression engine over dynamically
// typed tree values.
//
// A path expression combines dotted key traversal, list indexing,
// slicing, mapping, predicate filters with boolean composition, single-
// and multi-level wildcards, root back-references, and pipelined value
// transforms:
//
//	servers[?region=='eu'].hosts[].name|$unique|$sorted
//
// Four operations execute a path against a tree: Get reads a value or
// projection, Exists resolves a path to a predicate, Set writes in place
// (creating intermediate scaffolding by default), and Unset removes in
// place. Set and Unset mutate the caller's tree and return the same
// reference.
//
// Without Strict, a path that fails to resolve is not an error: Get
// returns its default, Exists reports false, Set and Unset do nothing.
// With Strict the same failures surface as *ResolutionError. Malformed
// paths (*ParseError) and unknown filters (*OperatorError) are always
// errors.
package treewalk

import (
	"errors"
	"strings"
	"sync"

	"github.com/mfelden/treewalk/filter"
	"github.com/mfelden/treewalk/pathexpr"
	"github.com/mfelden/treewalk/value"
)

// An Option adjusts the behavior of a single call. Each operation
// consults the options that apply to it and ignores the rest.
type Option func(*options)

type options struct {
	strict                bool
	def                   value.Value
	createMissing         bool
	createFilterMatch     bool
	overwriteIncompatible bool
}

func newOptions(opts []Option) options {
	o := options{
		def:                   value.Null,
		createMissing:         true,
		createFilterMatch:     true,
		overwriteIncompatible: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Strict makes resolution failures surface as *ResolutionError instead
// of the operation's absent outcome.
func Strict() Option { return func(o *options) { o.strict = true } }

// Default sets the value Get returns when the path does not resolve.
// The default is null.
func Default(v value.Value) Option {
	return func(o *options) {
		if v == nil {
			v = value.Null
		}
		o.def = v
	}
}

// CreateMissing controls whether Set creates missing intermediate
// containers (default true). When disabled, a missing step silently
// aborts the write unless Strict is also set.
func CreateMissing(create bool) Option {
	return func(o *options) { o.createMissing = create }
}

// CreateFilterMatch controls whether a filter step of a Set path with no
// matching element appends a new element seeded from the filter's
// equality atoms (default true).
func CreateFilterMatch(create bool) Option {
	return func(o *options) { o.createFilterMatch = create }
}

// OverwriteIncompatible controls whether Set replaces a value that
// blocks the path (a scalar, or a container of the wrong shape) with a
// fresh container (default true). When disabled, the write aborts at the
// incompatible value.
func OverwriteIncompatible(overwrite bool) Option {
	return func(o *options) { o.overwriteIncompatible = overwrite }
}

// A step is one executable unit of a compiled path: the parsed token
// plus its compiled matcher when the token is a filter.
type step struct {
	tok     pathexpr.Token
	matcher *filter.Matcher
}

// A program is a fully compiled path: reusable and safe for concurrent
// use.
type program struct {
	path   string
	steps  []step
	output *filter.Pipeline
}

// programs caches compiled paths. Compiled programs are immutable, so a
// single copy is shared by all goroutines.
var programs sync.Map // string → *program

func compile(path string) (*program, error) {
	if cached, ok := programs.Load(path); ok {
		return cached.(*program), nil
	}
	parsed, err := pathexpr.Parse(path)
	if err != nil {
		return nil, toEngineError(err, path)
	}
	prog := &program{path: path, steps: make([]step, 0, len(parsed.Tokens))}
	for _, tok := range parsed.Tokens {
		st := step{tok: tok}
		if tok.Kind == pathexpr.Filter {
			m, err := filter.CompileMatcher(tok.Pred)
			if err != nil {
				return nil, toEngineError(err, path)
			}
			st.matcher = m
		}
		prog.steps = append(prog.steps, st)
	}
	if parsed.Output != nil {
		pipe, err := filter.CompilePipeline(parsed.Output)
		if err != nil {
			return nil, toEngineError(err, path)
		}
		prog.output = pipe
	}
	programs.Store(path, prog)
	return prog, nil
}

// toEngineError maps subpackage errors onto the API error kinds.
func toEngineError(err error, path string) error {
	var syn *pathexpr.SyntaxError
	if errors.As(err, &syn) {
		p := syn.Input
		if p == "" {
			p = path
		}
		return &ParseError{Path: p, Token: syn.Token, Msg: syn.Msg}
	}
	var call *filter.CallError
	if errors.As(err, &call) {
		return &OperatorError{Name: call.Name, Msg: call.Msg}
	}
	return err
}

func (p *program) hasRootToken() bool {
	for _, st := range p.steps {
		if st.tok.Kind == pathexpr.Root {
			return true
		}
	}
	return false
}

// env builds the filter evaluation environment for one call: root
// references inside predicates and pipelines resolve through a strict
// Get against the call's root document.
func env(root value.Value) *filter.Env {
	return &filter.Env{
		Root: root,
		Resolve: func(expr string) (value.Value, error) {
			return resolveRootExpr(root, expr)
		},
	}
}

// resolveRootExpr evaluates a "$$root", "$$root.<path>", or
// "$$root|$filter" value expression against the root document.
func resolveRootExpr(root value.Value, expr string) (value.Value, error) {
	var sub string
	switch {
	case expr == "$$root":
		sub = "."
	case strings.HasPrefix(expr, "$$root."):
		sub = expr[len("$$root."):]
	case strings.HasPrefix(expr, "$$root|"):
		sub = "." + expr[len("$$root"):]
	default:
		return nil, &ParseError{Path: expr, Token: expr,
			Msg: "invalid '$$root' value expression; expected '$$root', '$$root.<path>', or '$$root|$filter'"}
	}
	return Get(root, sub, Strict())
}

// Get resolves path against data and returns the value it names. A path
// that projects (mapping, wildcards, slices, filters) returns a new
// sequence; everything else returns the value stored in the tree. When
// the path does not resolve, Get returns the Default option's value, or
// a *ResolutionError under Strict.
func Get(data value.Value, path string, opts ...Option) (value.Value, error) {
	o := newOptions(opts)
	prog, err := compile(path)
	if err != nil {
		return nil, err
	}

	w := &walker{prog: prog, root: data, env: env(data)}
	cur, _, err := w.eval(data, prog.steps)
	if err != nil {
		return nil, toEngineError(err, path)
	}
	if value.IsUndefined(cur) {
		if o.strict {
			return nil, &ResolutionError{Path: path, Token: w.failed, Msg: "path did not resolve"}
		}
		return o.def, nil
	}
	if prog.output != nil {
		out, err := prog.output.Apply(w.env, cur)
		if err != nil {
			return nil, toEngineError(err, path)
		}
		cur = out
	}
	return cur, nil
}

// Exists reports whether path resolves to a value. A projection counts
// as existing only when it is non-empty.
func Exists(data value.Value, path string, opts ...Option) (bool, error) {
	o := newOptions(opts)
	prog, err := compile(path)
	if err != nil {
		return false, err
	}

	w := &walker{prog: prog, root: data, env: env(data)}
	cur, projected, err := w.eval(data, prog.steps)
	if err != nil {
		return false, toEngineError(err, path)
	}
	if value.IsUndefined(cur) {
		if o.strict {
			return false, &ResolutionError{Path: path, Token: w.failed, Msg: "path did not resolve"}
		}
		return false, nil
	}
	if arr, ok := cur.(*value.Array); ok && projected {
		return len(arr.Values) > 0, nil
	}
	return true, nil
}

// Set writes newValue at path, mutating data in place and returning the
// same reference. Intermediate containers are created, incompatible
// values overwritten, and unmatched filters satisfied with a new element
// unless the corresponding options disable it.
//
// newValue may be a value.Value or any Go value value.FromAny accepts.
// Two string forms are special: "$name..." pipelines apply to the value
// being overwritten, and "$$root..." references resolve against the
// root document before writing.
func Set(data value.Value, path string, newValue any, opts ...Option) (value.Value, error) {
	o := newOptions(opts)
	prog, err := compile(path)
	if err != nil {
		return nil, err
	}
	if prog.hasRootToken() {
		return nil, &ParseError{Path: path, Token: "$$root", Msg: "the '$$root' token is only supported in read paths"}
	}

	if o.strict && len(prog.steps) > 0 {
		if err := ensureResolves(data, prog, len(prog.steps)-1); err != nil {
			return nil, err
		}
	}

	w := &setWalker{prog: prog, root: data, env: env(data), opts: o, newValue: newValue}
	if _, err := w.set(data, prog.steps); err != nil {
		return nil, toEngineError(err, path)
	}
	return data, nil
}

// Unset removes the value at path, mutating data in place and returning
// the same reference. Missing targets are skipped unless Strict is set.
func Unset(data value.Value, path string, opts ...Option) (value.Value, error) {
	o := newOptions(opts)
	prog, err := compile(path)
	if err != nil {
		return nil, err
	}
	if prog.hasRootToken() {
		return nil, &ParseError{Path: path, Token: "$$root", Msg: "the '$$root' token is only supported in read paths"}
	}

	if o.strict {
		if err := ensureResolves(data, prog, len(prog.steps)); err != nil {
			return nil, err
		}
	}

	w := &unsetWalker{prog: prog, root: data, env: env(data)}
	if err := w.unset(data, prog.steps); err != nil {
		return nil, toEngineError(err, path)
	}
	return data, nil
}

// ensureResolves verifies that the first n steps of prog resolve against
// data, for strict writes.
func ensureResolves(data value.Value, prog *program, n int) error {
	w := &walker{prog: prog, root: data, env: env(data)}
	cur, _, err := w.eval(data, prog.steps[:n])
	if err != nil {
		return toEngineError(err, prog.path)
	}
	if value.IsUndefined(cur) {
		return &ResolutionError{Path: prog.path, Token: w.failed, Msg: "path did not resolve"}
	}
	return nil
}

// RunFilterFunction applies a filter pipeline expression such as
// "$round(2)|$string" to v, outside of any path traversal.
func RunFilterFunction(expr string, v value.Value) (value.Value, error) {
	pipe, err := filter.ParseAndCompile(expr)
	if err != nil {
		return nil, toEngineError(err, expr)
	}
	out, err := pipe.Apply(env(v), v)
	if err != nil {
		return nil, toEngineError(err, expr)
	}
	return out, nil
}
