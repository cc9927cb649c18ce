// Copyright (C) 2025 M. Felden. All Rights Reserved.

// Package filter compiles and applies value-transform pipelines and
// predicate matchers for the treewalk engine.
//
// A pipeline is a sequence of named built-in transforms ("$double",
// "$round(2)", ...). Compilation resolves each name against the built-in
// registry once; the compiled objects are immutable and reusable. The
// registry is closed: unknown names are rejected, and user-supplied
// transforms are not accepted.
package filter

import (
	"fmt"

	"github.com/mfelden/treewalk/pathexpr"
	"github.com/mfelden/treewalk/value"
)

// An Env carries the evaluation context of a pipeline or matcher: the
// root document and a resolver for "$$root..." reference expressions.
// The resolver is supplied by the traversal engine; a nil Resolve makes
// root references fail.
type Env struct {
	Root    value.Value
	Resolve func(rootExpr string) (value.Value, error)
}

func (e *Env) resolveRef(expr string) (value.Value, error) {
	if e == nil || e.Resolve == nil {
		return nil, &CallError{Name: expr, Msg: "root references are not available here"}
	}
	return e.Resolve(expr)
}

// A CallError reports an unknown filter name or invalid filter
// arguments.
type CallError struct {
	Name string
	Msg  string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("filter %q: %s", e.Name, e.Msg)
}

// A builtin describes one registry entry: the acceptable argument
// counts and the implementation. Args arrive already materialized
// (root references resolved).
type builtin struct {
	minArgs, maxArgs int // maxArgs < 0 means variadic
	fn               func(env *Env, v value.Value, args []value.Value) (value.Value, error)
}

// A Step is one compiled stage of a pipeline.
type Step struct {
	name    string
	mapOver bool
	args    []pathexpr.Arg
	impl    *builtin
}

// A Pipeline is a compiled, reusable transform chain.
type Pipeline struct {
	steps []Step
}

// CompilePipeline resolves the stages of a syntactic pipeline against
// the built-in registry.
func CompilePipeline(p pathexpr.Pipeline) (*Pipeline, error) {
	out := &Pipeline{steps: make([]Step, 0, len(p))}
	for _, call := range p {
		impl, ok := registry[call.Name]
		if !ok {
			return nil, &CallError{Name: call.Name, Msg: "unknown filter"}
		}
		n := len(call.Args)
		if n < impl.minArgs || (impl.maxArgs >= 0 && n > impl.maxArgs) {
			return nil, &CallError{Name: call.Name, Msg: fmt.Sprintf("wrong number of arguments (%d)", n)}
		}
		out.steps = append(out.steps, Step{
			name:    call.Name,
			mapOver: call.MapOver,
			args:    call.Args,
			impl:    impl,
		})
	}
	return out, nil
}

// materialize resolves the arguments of a step, looking up root
// references through the environment.
func (s *Step) materialize(env *Env) ([]value.Value, error) {
	if len(s.args) == 0 {
		return nil, nil
	}
	out := make([]value.Value, len(s.args))
	for i, arg := range s.args {
		if arg.RootRef != "" {
			v, err := env.resolveRef(arg.RootRef)
			if err != nil {
				return nil, err
			}
			out[i] = v
			continue
		}
		out[i] = arg.Lit
	}
	return out, nil
}

func (s *Step) apply(env *Env, v value.Value) (value.Value, error) {
	args, err := s.materialize(env)
	if err != nil {
		return nil, err
	}
	out, err := s.impl.fn(env, v, args)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = value.Null
	}
	return out, nil
}

// Apply runs the pipeline over v. Consecutive stages marked with "[]"
// fuse into a single per-element pass when the input is a sequence, so
// "$inc[]|$double[]" transforms each element through both stages before
// moving to the next element.
func (p *Pipeline) Apply(env *Env, v value.Value) (value.Value, error) {
	cur := v
	i := 0
	for i < len(p.steps) {
		step := &p.steps[i]
		if arr, ok := cur.(*value.Array); ok && step.mapOver {
			end := i + 1
			for end < len(p.steps) && p.steps[end].mapOver {
				end++
			}
			mapped := &value.Array{Values: make([]value.Value, len(arr.Values))}
			for j, elt := range arr.Values {
				item := elt
				for k := i; k < end; k++ {
					next, err := p.steps[k].apply(env, item)
					if err != nil {
						return nil, err
					}
					item = next
				}
				mapped.Values[j] = item
			}
			cur = mapped
			i = end
			continue
		}
		next, err := step.apply(env, cur)
		if err != nil {
			return nil, err
		}
		cur = next
		i++
	}
	return cur, nil
}

// ParseAndCompile parses and compiles a standalone pipeline expression
// such as "$round(2)|$string".
func ParseAndCompile(expr string) (*Pipeline, error) {
	syn, err := pathexpr.ParsePipeline(expr)
	if err != nil {
		return nil, err
	}
	return CompilePipeline(syn)
}

// Call applies the single named built-in to v with the given arguments.
// It is the registry's introspection point.
func Call(name string, v value.Value, args ...value.Value) (value.Value, error) {
	impl, ok := registry[name]
	if !ok {
		return nil, &CallError{Name: name, Msg: "unknown filter"}
	}
	n := len(args)
	if n < impl.minArgs || (impl.maxArgs >= 0 && n > impl.maxArgs) {
		return nil, &CallError{Name: name, Msg: fmt.Sprintf("wrong number of arguments (%d)", n)}
	}
	out, err := impl.fn(nil, v, args)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = value.Null
	}
	return out, nil
}

// Names returns the names of all registered built-ins, unordered.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}
