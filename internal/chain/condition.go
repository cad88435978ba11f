package chain

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
)

// Condition is a parsed step gate.
//
// Grammar:
//
//	expr    := and ("||" and)*
//	and     := unary ("&&" unary)*
//	unary   := "!" unary | compare
//	compare := operand (("==" | "!=") operand)?
//	operand := "(" expr ")" | ref | {{ref}} | 'string' | "string" | number | true | false | null
//
// A ref is a variable name or an output path (tasks.count). A bare ref tests
// truthiness; nil, false, "", 0 and empty collections are false. Refs that do
// not resolve evaluate to nil.
type Condition struct {
	src  string
	root condNode
}

// ParseCondition parses a condition expression. An empty expression always holds.
func ParseCondition(src string) (*Condition, error) {
	toks, err := lexCondition(src)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return &Condition{src: src}, nil
	}

	p := &condParser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		return nil, fmt.Errorf("condition %q: unexpected %q", src, p.toks[p.pos].text)
	}
	return &Condition{src: src, root: root}, nil
}

// String returns the source expression.
func (c *Condition) String() string {
	return c.src
}

// Eval reports whether the condition holds for the given bindings.
func (c *Condition) Eval(b Bindings) bool {
	if c == nil || c.root == nil {
		return true
	}
	return truthy(c.root.eval(b))
}

type condNode interface {
	eval(b Bindings) any
}

type refNode struct{ path string }
type litNode struct{ v any }
type notNode struct{ x condNode }
type andNode struct{ l, r condNode }
type orNode struct{ l, r condNode }
type cmpNode struct {
	negate bool
	l, r   condNode
}

func (n refNode) eval(b Bindings) any {
	v, _ := b.Lookup(n.path)
	return v
}

func (n litNode) eval(Bindings) any   { return n.v }
func (n notNode) eval(b Bindings) any { return !truthy(n.x.eval(b)) }
func (n andNode) eval(b Bindings) any { return truthy(n.l.eval(b)) && truthy(n.r.eval(b)) }
func (n orNode) eval(b Bindings) any  { return truthy(n.l.eval(b)) || truthy(n.r.eval(b)) }

func (n cmpNode) eval(b Bindings) any {
	eq := looseEqual(n.l.eval(b), n.r.eval(b))
	if n.negate {
		return !eq
	}
	return eq
}

// truthy implements the condition language's notion of truth.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// looseEqual compares values the way extracted variables (always strings) need:
// numbers compare numerically even when one side is a numeric string.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	if ab, ok := a.(bool); ok {
		return stringify(b) == strconv.FormatBool(ab)
	}
	if bb, ok := b.(bool); ok {
		return stringify(a) == strconv.FormatBool(bb)
	}
	return stringify(a) == stringify(b)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// Lexer

type condTokKind int

const (
	tokRef condTokKind = iota
	tokLit
	tokOp
)

type condTok struct {
	kind condTokKind
	text string
	lit  any
}

func lexCondition(src string) ([]condTok, error) {
	var toks []condTok
	rs := []rune(src)

	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++

		case strings.HasPrefix(string(rs[i:]), "{{"):
			end := strings.Index(string(rs[i:]), "}}")
			if end < 0 {
				return nil, fmt.Errorf("condition %q: unterminated {{", src)
			}
			inner := strings.TrimSpace(string(rs[i+2 : i+end]))
			if inner == "" {
				return nil, fmt.Errorf("condition %q: empty {{}}", src)
			}
			toks = append(toks, condTok{kind: tokRef, text: inner})
			i += end + 2

		case r == '=' || r == '!' || r == '&' || r == '|':
			two := ""
			if i+1 < len(rs) {
				two = string(rs[i : i+2])
			}
			switch two {
			case "==", "!=", "&&", "||":
				toks = append(toks, condTok{kind: tokOp, text: two})
				i += 2
			default:
				if r != '!' {
					return nil, fmt.Errorf("condition %q: unexpected %q", src, string(r))
				}
				toks = append(toks, condTok{kind: tokOp, text: "!"})
				i++
			}

		case r == '(' || r == ')':
			toks = append(toks, condTok{kind: tokOp, text: string(r)})
			i++

		case r == '\'' || r == '"':
			var sb strings.Builder
			j := i + 1
			for ; j < len(rs) && rs[j] != r; j++ {
				if rs[j] == '\\' && j+1 < len(rs) {
					j++
				}
				sb.WriteRune(rs[j])
			}
			if j >= len(rs) {
				return nil, fmt.Errorf("condition %q: unterminated string", src)
			}
			toks = append(toks, condTok{kind: tokLit, text: sb.String(), lit: sb.String()})
			i = j + 1

		case r == '-' || unicode.IsDigit(r):
			j := i + 1
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			text := string(rs[i:j])
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("condition %q: bad number %q", src, text)
			}
			toks = append(toks, condTok{kind: tokLit, text: text, lit: f})
			i = j

		case r == '_' || unicode.IsLetter(r):
			j := i + 1
			for j < len(rs) && (rs[j] == '_' || rs[j] == '.' || rs[j] == '-' || unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j])) {
				j++
			}
			word := string(rs[i:j])
			switch word {
			case "true":
				toks = append(toks, condTok{kind: tokLit, text: word, lit: true})
			case "false":
				toks = append(toks, condTok{kind: tokLit, text: word, lit: false})
			case "null", "nil":
				toks = append(toks, condTok{kind: tokLit, text: word, lit: nil})
			default:
				toks = append(toks, condTok{kind: tokRef, text: word})
			}
			i = j

		default:
			return nil, fmt.Errorf("condition %q: unexpected %q", src, string(r))
		}
	}
	return toks, nil
}

// Parser

type condParser struct {
	toks []condTok
	pos  int
}

func (p *condParser) peekOp(op string) bool {
	return p.pos < len(p.toks) && p.toks[p.pos].kind == tokOp && p.toks[p.pos].text == op
}

func (p *condParser) parseOr() (condNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peekOp("||") {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{l: left, r: right}
	}
	return left, nil
}

func (p *condParser) parseAnd() (condNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peekOp("&&") {
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{l: left, r: right}
	}
	return left, nil
}

func (p *condParser) parseUnary() (condNode, error) {
	if p.peekOp("!") {
		p.pos++
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{x: x}, nil
	}
	return p.parseCompare()
}

func (p *condParser) parseCompare() (condNode, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if p.peekOp("==") || p.peekOp("!=") {
		negate := p.toks[p.pos].text == "!="
		p.pos++
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return cmpNode{negate: negate, l: left, r: right}, nil
	}
	return left, nil
}

func (p *condParser) parseOperand() (condNode, error) {
	if p.pos >= len(p.toks) {
		return nil, fmt.Errorf("condition: unexpected end of expression")
	}
	t := p.toks[p.pos]
	switch t.kind {
	case tokRef:
		p.pos++
		return refNode{path: t.text}, nil
	case tokLit:
		p.pos++
		return litNode{v: t.lit}, nil
	}
	if t.text == "(" {
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.peekOp(")") {
			return nil, fmt.Errorf("condition: missing )")
		}
		p.pos++
		return inner, nil
	}
	return nil, fmt.Errorf("condition: unexpected %q", t.text)
}
