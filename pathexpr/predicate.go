// Copyright (C) 2025 M. Felden. All Rights Reserved.

package pathexpr

import (
	"strings"

	"github.com/mfelden/treewalk/value"
)

// A Predicate is the syntax tree of a filter expression over one sequence
// element.
// It is one of *Atom, *AndExpr, *OrExpr, or *NotExpr.
type Predicate interface{ predNode() }

// An AndExpr is the conjunction of two predicates.
type AndExpr struct{ L, R Predicate }

// An OrExpr is the disjunction of two predicates.
type OrExpr struct{ L, R Predicate }

// A NotExpr negates a predicate.
type NotExpr struct{ X Predicate }

// An Atom is a single comparison: a subject expression, a comparison
// operator, and an operand.
type Atom struct {
	LHS LHS
	Op  string // one of == != > < >= <=
	RHS RHS
	Raw string // the atom text, for error messages
}

func (*AndExpr) predNode() {}
func (*OrExpr) predNode()  {}
func (*NotExpr) predNode() {}
func (*Atom) predNode()    {}

// An LHS names the subject of a comparison: the element itself (Self),
// or a dotted key path relative to it, optionally piped through a
// transform.
type LHS struct {
	Self bool
	Keys []string
	Pipe Pipeline
}

// An RHS is a comparison operand: a literal, a "$$root..." reference
// resolved by the engine, or a pipeline applied to the subject value
// (optionally negated with a "!" prefix).
type RHS struct {
	Lit     value.Value
	RootRef string
	Pipe    Pipeline
	Negate  bool
	Raw     string
}

var cmpOps = []string{"<=", ">=", "==", "!=", "<", ">"}

// parsePredicate parses the text of a [?...] filter body.
func parsePredicate(s string) (Predicate, error) {
	p := &predParser{s: s}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.i != len(p.s) {
		return nil, syntaxErrf("", p.s[p.i:], "unexpected text in predicate")
	}
	return expr, nil
}

type predParser struct {
	s string
	i int
}

func (p *predParser) skipSpace() {
	for p.i < len(p.s) && (p.s[p.i] == ' ' || p.s[p.i] == '\t') {
		p.i++
	}
}

func (p *predParser) lookingAt(tok string) bool {
	p.skipSpace()
	return strings.HasPrefix(p.s[p.i:], tok)
}

func (p *predParser) parseOr() (Predicate, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.lookingAt("||") {
		p.i += 2
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &OrExpr{L: left, R: right}
	}
	return left, nil
}

func (p *predParser) parseAnd() (Predicate, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.lookingAt("&&") {
		p.i += 2
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &AndExpr{L: left, R: right}
	}
	return left, nil
}

func (p *predParser) parseNot() (Predicate, error) {
	if p.lookingAt("!") && !p.lookingAt("!=") {
		p.i++
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &NotExpr{X: inner}, nil
	}
	return p.parsePrimary()
}

func (p *predParser) parsePrimary() (Predicate, error) {
	if p.lookingAt("(") {
		p.i++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.lookingAt(")") {
			return nil, syntaxErrf("", p.s, "missing close parenthesis in predicate")
		}
		p.i++
		return inner, nil
	}
	return p.parseAtom()
}

// parseAtom consumes one comparison atom: everything up to the next
// top-level "&&", "||", or ")".
func (p *predParser) parseAtom() (Predicate, error) {
	p.skipSpace()
	start := p.i
	depth := 0
	var quote byte
scan:
	for p.i < len(p.s) {
		c := p.s[p.i]
		if quote != 0 {
			if c == '\\' {
				p.i++
			} else if c == quote {
				quote = 0
			}
			p.i++
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			if depth == 0 {
				break scan
			}
			depth--
		case '&', '|':
			if depth == 0 && p.i+1 < len(p.s) && p.s[p.i+1] == c {
				break scan
			}
		}
		p.i++
	}
	if quote != 0 {
		return nil, syntaxErrf("", p.s[start:], "unterminated quote in predicate")
	}

	raw := strings.TrimSpace(p.s[start:p.i])
	if raw == "" {
		return nil, syntaxErrf("", p.s, "empty predicate expression")
	}
	return parseAtomText(raw)
}

func parseAtomText(raw string) (*Atom, error) {
	opAt, opLen := findCmpOp(raw)
	if opAt < 0 {
		return nil, syntaxErrf("", raw, "predicate atom has no comparison operator")
	}
	lhsText := strings.TrimSpace(raw[:opAt])
	rhsText := strings.TrimSpace(raw[opAt+opLen:])
	if lhsText == "" || rhsText == "" {
		return nil, syntaxErrf("", raw, "incomplete comparison in predicate")
	}

	lhs, err := parseLHS(lhsText)
	if err != nil {
		return nil, err
	}
	rhs, err := parseRHS(rhsText)
	if err != nil {
		return nil, err
	}
	return &Atom{LHS: lhs, Op: raw[opAt : opAt+opLen], RHS: rhs, Raw: raw}, nil
}

// findCmpOp locates the first comparison operator outside quotes,
// parentheses, and brackets.
func findCmpOp(s string) (at, n int) {
	depth := 0
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
			continue
		case '(', '[':
			depth++
			continue
		case ')', ']':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		for _, op := range cmpOps {
			if strings.HasPrefix(s[i:], op) {
				return i, len(op)
			}
		}
	}
	return -1, 0
}

func parseLHS(s string) (LHS, error) {
	if s == "." {
		return LHS{Self: true}, nil
	}
	var out LHS
	if rest, ok := strings.CutPrefix(s, ".|"); ok {
		pipe, err := parsePipeline(rest)
		if err != nil {
			return LHS{}, err
		}
		return LHS{Self: true, Pipe: pipe}, nil
	}
	if s == "" || s[0] == '$' {
		return LHS{}, syntaxErrf("", s, "predicate subject must be '.' or a key path (write '.|$name' to transform the element)")
	}

	keyText := s
	if at := indexOutsideQuotes(s, '|'); at >= 0 {
		pipe, err := parsePipeline(s[at+1:])
		if err != nil {
			return LHS{}, err
		}
		out.Pipe = pipe
		keyText = strings.TrimSpace(s[:at])
	}
	for _, key := range strings.Split(keyText, ".") {
		if key == "" {
			return LHS{}, syntaxErrf("", s, "empty key in predicate subject")
		}
		out.Keys = append(out.Keys, key)
	}
	return out, nil
}

func parseRHS(s string) (RHS, error) {
	if strings.HasPrefix(s, "$$root") {
		return RHS{RootRef: s, Raw: s}, nil
	}
	text, negate := strings.CutPrefix(s, "!")
	if strings.HasPrefix(text, "$") {
		pipe, err := parsePipeline(text)
		if err != nil {
			return RHS{}, err
		}
		return RHS{Pipe: pipe, Negate: negate, Raw: s}, nil
	}
	if negate {
		return RHS{}, syntaxErrf("", s, "'!' prefix requires a '$name' filter operand")
	}
	lit, err := parseLiteral(s)
	if err != nil {
		return RHS{}, err
	}
	return RHS{Lit: lit, Raw: s}, nil
}
