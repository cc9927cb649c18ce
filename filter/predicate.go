// Copyright (C) 2025 M. Felden. All Rights Reserved.

package filter

import (
	"fmt"

	"github.com/mfelden/treewalk/pathexpr"
	"github.com/mfelden/treewalk/value"
)

// A Matcher is a compiled predicate expression, evaluated against one
// sequence element at a time.
type Matcher struct {
	expr matchExpr
}

type matchExpr interface {
	eval(env *Env, elt value.Value) (bool, error)
}

// CompileMatcher compiles a syntactic predicate into a reusable Matcher.
func CompileMatcher(p pathexpr.Predicate) (*Matcher, error) {
	expr, err := compilePred(p)
	if err != nil {
		return nil, err
	}
	return &Matcher{expr: expr}, nil
}

// Match reports whether the compiled predicate holds for elt.
func (m *Matcher) Match(env *Env, elt value.Value) (bool, error) {
	return m.expr.eval(env, elt)
}

func compilePred(p pathexpr.Predicate) (matchExpr, error) {
	switch t := p.(type) {
	case *pathexpr.AndExpr:
		l, err := compilePred(t.L)
		if err != nil {
			return nil, err
		}
		r, err := compilePred(t.R)
		if err != nil {
			return nil, err
		}
		return andExpr{l, r}, nil
	case *pathexpr.OrExpr:
		l, err := compilePred(t.L)
		if err != nil {
			return nil, err
		}
		r, err := compilePred(t.R)
		if err != nil {
			return nil, err
		}
		return orExpr{l, r}, nil
	case *pathexpr.NotExpr:
		x, err := compilePred(t.X)
		if err != nil {
			return nil, err
		}
		return notExpr{x}, nil
	case *pathexpr.Atom:
		return compileAtom(t)
	}
	return nil, fmt.Errorf("unknown predicate node %T", p)
}

type andExpr struct{ l, r matchExpr }

func (e andExpr) eval(env *Env, elt value.Value) (bool, error) {
	ok, err := e.l.eval(env, elt)
	if err != nil || !ok {
		return false, err
	}
	return e.r.eval(env, elt)
}

type orExpr struct{ l, r matchExpr }

func (e orExpr) eval(env *Env, elt value.Value) (bool, error) {
	ok, err := e.l.eval(env, elt)
	if err != nil || ok {
		return ok, err
	}
	return e.r.eval(env, elt)
}

type notExpr struct{ x matchExpr }

func (e notExpr) eval(env *Env, elt value.Value) (bool, error) {
	ok, err := e.x.eval(env, elt)
	return !ok, err
}

// An atomExpr is one compiled comparison.
type atomExpr struct {
	subject subjectFn
	op      string
	operand operandFn
}

// A subjectFn resolves the left-hand value of a comparison from the
// element. A missing key path yields Undefined.
type subjectFn func(env *Env, elt value.Value) (value.Value, error)

type operandKind int

const (
	operandLiteral operandKind = iota
	operandRootRef
	operandPipeline
)

type operandFn struct {
	kind    operandKind
	lit     value.Value
	rootRef string
	pipe    *Pipeline
	negate  bool
}

func compileAtom(a *pathexpr.Atom) (matchExpr, error) {
	subject, err := compileSubject(a.LHS)
	if err != nil {
		return nil, err
	}
	operand, err := compileOperand(a.RHS)
	if err != nil {
		return nil, err
	}
	if operand.kind == operandPipeline && a.Op != "==" && a.Op != "!=" {
		return nil, &CallError{Name: a.Raw, Msg: fmt.Sprintf("operator %q is not supported with filter operands", a.Op)}
	}
	return &atomExpr{subject: subject, op: a.Op, operand: operand}, nil
}

func compileSubject(lhs pathexpr.LHS) (subjectFn, error) {
	var pipe *Pipeline
	if lhs.Pipe != nil {
		p, err := CompilePipeline(lhs.Pipe)
		if err != nil {
			return nil, err
		}
		pipe = p
	}
	keys := lhs.Keys
	return func(env *Env, elt value.Value) (value.Value, error) {
		cur := elt
		for _, key := range keys {
			obj, ok := cur.(*value.Object)
			if !ok {
				return value.Undefined, nil
			}
			m := obj.Find(key)
			if m == nil {
				return value.Undefined, nil
			}
			cur = m.Value
		}
		if pipe != nil {
			if value.IsUndefined(cur) {
				return value.Undefined, nil
			}
			return pipe.Apply(env, cur)
		}
		return cur, nil
	}, nil
}

func compileOperand(rhs pathexpr.RHS) (operandFn, error) {
	if rhs.RootRef != "" {
		return operandFn{kind: operandRootRef, rootRef: rhs.RootRef}, nil
	}
	if rhs.Pipe != nil {
		p, err := CompilePipeline(rhs.Pipe)
		if err != nil {
			return operandFn{}, err
		}
		return operandFn{kind: operandPipeline, pipe: p, negate: rhs.Negate}, nil
	}
	return operandFn{kind: operandLiteral, lit: rhs.Lit}, nil
}

func (e *atomExpr) eval(env *Env, elt value.Value) (bool, error) {
	subject, err := e.subject(env, elt)
	if err != nil {
		return false, err
	}

	// A pipeline operand tests the subject for truthiness: "==" holds
	// when the transformed subject is truthy, "!=" when it is not.
	if e.operand.kind == operandPipeline {
		if value.IsUndefined(subject) {
			return e.op == "!=", nil
		}
		out, err := e.operand.pipe.Apply(env, subject)
		if err != nil {
			return false, err
		}
		truthy := value.Truthy(out)
		if e.operand.negate {
			truthy = !truthy
		}
		if e.op == "==" {
			return truthy, nil
		}
		return !truthy, nil
	}

	expected := e.operand.lit
	if e.operand.kind == operandRootRef {
		resolved, err := env.resolveRef(e.operand.rootRef)
		if err != nil {
			return false, err
		}
		expected = resolved
	}

	// Comparisons against a missing subject are false, except that a
	// concrete value is by definition not equal to an absent one.
	if value.IsUndefined(subject) {
		return e.op == "!=", nil
	}

	switch e.op {
	case "==":
		return value.Equal(subject, expected), nil
	case "!=":
		return !value.Equal(subject, expected), nil
	}
	c, ok := value.Compare(subject, expected)
	if !ok {
		return false, nil
	}
	switch e.op {
	case ">":
		return c > 0, nil
	case "<":
		return c < 0, nil
	case ">=":
		return c >= 0, nil
	case "<=":
		return c <= 0, nil
	}
	return false, &CallError{Name: e.op, Msg: "unsupported comparison operator"}
}
