package compute

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"quantengine/pkg/graph"
	"quantengine/pkg/key"
)

// Eval parses a small Python-like expression language of statements
// `lhs = rhs` (one per line or separated by ';'), per §4.5: rhs is built
// from identifier references (resolved to full keys), numeric literals,
// the arithmetic operators + - * / **, and function calls
// `op(arg1, arg2, …)`. Each arithmetic operator maps to the
// correspondingly-named operator (add/sub/mul/div/pow); each call name is
// resolved against the operator stack. An unresolvable operator name
// fails with a TypeMismatchError (this module's NameError equivalent — Go
// has no bare-name lookup to distinguish further). Eval returns every new
// LHS key it added.
//
// Keyword arguments (`op(a, dims=[...])`) are not supported: Go's static
// Func signature has no notion of parameter names, so every operator
// call here is positional-only. This is a deliberate, documented
// narrowing of the distilled grammar (see DESIGN.md).
func (c *Computer) Eval(expr string) ([]key.Key, error) {
	var added []key.Key
	for _, stmt := range splitStatements(expr) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		lhs, rhs, ok := strings.Cut(stmt, "=")
		if !ok {
			return added, fmt.Errorf("eval: statement %q is not of the form lhs = rhs", stmt)
		}
		lhsName := strings.TrimSpace(lhs)
		if lhsName == "" {
			return added, fmt.Errorf("eval: empty left-hand side in %q", stmt)
		}
		target, err := key.Parse(lhsName)
		if err != nil {
			return added, fmt.Errorf("eval: %w", err)
		}

		p := &exprParser{c: c, src: rhs}
		arg, err := p.parseExpr()
		if err != nil {
			return added, fmt.Errorf("eval: parsing %q: %w", stmt, err)
		}
		p.skipSpace()
		if p.pos != len(p.src) {
			return added, fmt.Errorf("eval: unexpected trailing input in %q", stmt)
		}

		task := argToTask(arg)
		if _, err := c.Add(target, task, AddOptions{Strict: false}); err != nil {
			return added, fmt.Errorf("eval: adding %s: %w", target.String(), err)
		}
		added = append(added, target)
	}
	return added, nil
}

// argToTask converts a parsed Arg into the Task actually stored at a key:
// a bare key reference becomes an alias, a literal becomes a literal
// task, and a nested call becomes that call itself (rather than wrapping
// it in another layer of indirection).
func argToTask(a graph.Arg) graph.Task {
	switch {
	case a.Key != nil:
		return graph.AliasTask(*a.Key)
	case a.Literal != nil:
		return graph.LiteralTask(*a.Literal)
	case a.Nested != nil:
		return *a.Nested
	default:
		return graph.LiteralTask(graph.Value{})
	}
}

func splitStatements(expr string) []string {
	expr = strings.ReplaceAll(expr, ";", "\n")
	return strings.Split(expr, "\n")
}

// exprParser is a small recursive-descent parser over one statement's
// right-hand side: expr := term (('+'|'-') term)* ; term := power
// (('*'|'/') power)* ; power := unary ('**' power)? ; unary := '-' unary
// | atom ; atom := NUMBER | IDENT ['(' args ')'] | '(' expr ')'.
type exprParser struct {
	c   *Computer
	src string
	pos int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *exprParser) parseExpr() (graph.Arg, error) {
	left, err := p.parseTerm()
	if err != nil {
		return graph.Arg{}, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return graph.Arg{}, err
		}
		left, err = p.combine(opName(op), left, right)
		if err != nil {
			return graph.Arg{}, err
		}
	}
}

func (p *exprParser) parseTerm() (graph.Arg, error) {
	left, err := p.parsePower()
	if err != nil {
		return graph.Arg{}, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		// Don't consume a leading "*" that is actually the first char of "**".
		if op == '*' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '*' {
			return left, nil
		}
		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return graph.Arg{}, err
		}
		left, err = p.combine(opName(op), left, right)
		if err != nil {
			return graph.Arg{}, err
		}
	}
}

func (p *exprParser) parsePower() (graph.Arg, error) {
	base, err := p.parseUnary()
	if err != nil {
		return graph.Arg{}, err
	}
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], "**") {
		p.pos += 2
		exp, err := p.parsePower() // right-associative
		if err != nil {
			return graph.Arg{}, err
		}
		return p.combine("pow", base, exp)
	}
	return base, nil
}

func (p *exprParser) parseUnary() (graph.Arg, error) {
	p.skipSpace()
	if p.peek() == '-' {
		p.pos++
		inner, err := p.parseUnary()
		if err != nil {
			return graph.Arg{}, err
		}
		zero := graph.LiteralArg(graph.ScalarValue(0))
		return p.combine("sub", zero, inner)
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (graph.Arg, error) {
	p.skipSpace()
	if p.peek() == '(' {
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return graph.Arg{}, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return graph.Arg{}, fmt.Errorf("expected ')'")
		}
		p.pos++
		return inner, nil
	}
	if isDigit(p.peek()) || (p.peek() == '.' && p.pos+1 < len(p.src) && isDigit(p.src[p.pos+1])) {
		return p.parseNumber()
	}
	if isIdentStart(p.peek()) {
		return p.parseIdentOrCall()
	}
	return graph.Arg{}, fmt.Errorf("unexpected character %q at position %d", string(p.peek()), p.pos)
}

func (p *exprParser) parseNumber() (graph.Arg, error) {
	start := p.pos
	for p.pos < len(p.src) && (isDigit(p.src[p.pos]) || p.src[p.pos] == '.') {
		p.pos++
	}
	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return graph.Arg{}, fmt.Errorf("invalid number %q: %w", p.src[start:p.pos], err)
	}
	return graph.LiteralArg(graph.ScalarValue(v)), nil
}

func (p *exprParser) parseIdentOrCall() (graph.Arg, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdentChar(p.src[p.pos]) {
		p.pos++
	}
	name := p.src[start:p.pos]
	p.skipSpace()
	if p.peek() != '(' {
		return identArg(p.c, name), nil
	}
	p.pos++ // consume '('
	var args []graph.Arg
	p.skipSpace()
	if p.peek() != ')' {
		for {
			a, err := p.parseExpr()
			if err != nil {
				return graph.Arg{}, err
			}
			args = append(args, a)
			p.skipSpace()
			if p.peek() == ',' {
				p.pos++
				continue
			}
			break
		}
	}
	p.skipSpace()
	if p.peek() != ')' {
		return graph.Arg{}, fmt.Errorf("expected ')' to close call to %q", name)
	}
	p.pos++

	fn, err := p.c.resolveOperator(name)
	if err != nil {
		return graph.Arg{}, err
	}
	return graph.NestedArg(graph.CallTask(name, fn, args...)), nil
}

// combine builds a binary-operator call task over two already-parsed
// operands.
func (p *exprParser) combine(opName string, left, right graph.Arg) (graph.Arg, error) {
	fn, err := p.c.resolveOperator(opName)
	if err != nil {
		return graph.Arg{}, err
	}
	return graph.NestedArg(graph.CallTask(opName, fn, left, right)), nil
}

// identArg resolves a bare identifier to its full key if one is already
// registered, or to a same-named key with no dims otherwise (evaluation
// will raise MissingKey if it never materializes).
func identArg(c *Computer, name string) graph.Arg {
	if full, ok := c.graph.FullKey(name); ok {
		return graph.KeyArg(full)
	}
	return graph.KeyArg(key.New(name, nil, ""))
}

func opName(b byte) string {
	switch b {
	case '+':
		return "add"
	case '-':
		return "sub"
	case '*':
		return "mul"
	case '/':
		return "div"
	default:
		return ""
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentChar(b byte) bool {
	return isIdentStart(b) || isDigit(b)
}
