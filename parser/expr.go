package parser

import (
	"strconv"

	"github.com/Relatronica/sdl/domain/ast"
)

// Expression grammar, lowest precedence first:
//
//	or   → and ("or" and)*
//	and  → cmp ("and" cmp)*
//	cmp  → add (("<"|"<="|">"|">="|"=="|"!=") add)?
//	add  → mul (("+"|"-") mul)*
//	mul  → unary (("*"|"/") unary)*
//	unary→ ("-"|"not") unary | primary
func (p *parser) parseExpr() ast.Expr {
	return p.parseOr()
}

func (p *parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for p.at(OR) {
		op := p.advance()
		right := p.parseAnd()
		left = &ast.Binary{Op: "or", Left: left, Right: right, Pos: p.span(op)}
	}
	return left
}

func (p *parser) parseAnd() ast.Expr {
	left := p.parseCmp()
	for p.at(AND) {
		op := p.advance()
		right := p.parseCmp()
		left = &ast.Binary{Op: "and", Left: left, Right: right, Pos: p.span(op)}
	}
	return left
}

var cmpOps = map[TokenType]string{
	LT: "<", LTE: "<=", GT: ">", GTE: ">=", EQ: "==", NEQ: "!=",
}

func (p *parser) parseCmp() ast.Expr {
	left := p.parseAdd()
	if op, ok := cmpOps[p.cur().Type]; ok {
		t := p.advance()
		right := p.parseAdd()
		return &ast.Binary{Op: op, Left: left, Right: right, Pos: p.span(t)}
	}
	return left
}

func (p *parser) parseAdd() ast.Expr {
	left := p.parseMul()
	for p.at(PLUS) || p.at(MINUS) {
		t := p.advance()
		right := p.parseMul()
		left = &ast.Binary{Op: t.Lexeme, Left: left, Right: right, Pos: p.span(t)}
	}
	return left
}

func (p *parser) parseMul() ast.Expr {
	left := p.parseUnary()
	for p.at(STAR) || p.at(SLASH) {
		t := p.advance()
		right := p.parseUnary()
		left = &ast.Binary{Op: t.Lexeme, Left: left, Right: right, Pos: p.span(t)}
	}
	return left
}

func (p *parser) parseUnary() ast.Expr {
	switch p.cur().Type {
	case MINUS:
		t := p.advance()
		return &ast.Unary{Op: "-", X: p.parseUnary(), Pos: p.span(t)}
	case NOT:
		t := p.advance()
		return &ast.Unary{Op: "not", X: p.parseUnary(), Pos: p.span(t)}
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() ast.Expr {
	t := p.cur()
	switch t.Type {
	case NUMBER:
		p.advance()
		// A currency code directly after the number makes this a
		// currency literal: 100M USD. A bare magnitude does too.
		if p.at(IDENT) && isCurrencyCode(p.cur().Lexeme) {
			code := p.advance()
			return &ast.CurrencyLit{Value: t.Num, Magnitude: t.Mag, Code: code.Lexeme, Pos: p.span(t)}
		}
		if t.Mag != "" {
			return &ast.CurrencyLit{Value: t.Num, Magnitude: t.Mag, Pos: p.span(t)}
		}
		return &ast.NumberLit{Value: t.Num, Pos: p.span(t)}
	case PERCENT:
		p.advance()
		return &ast.PercentLit{Value: t.Num, Pos: p.span(t)}
	case STRING:
		p.advance()
		return &ast.StringLit{Value: t.Str, Pos: p.span(t)}
	case TRUE, FALSE:
		p.advance()
		return &ast.BoolLit{Value: t.Type == TRUE, Pos: p.span(t)}
	case IDENT:
		p.advance()
		if p.at(LPAREN) {
			return p.parseCallArgs(t)
		}
		return &ast.Ident{Name: t.Lexeme, Pos: p.span(t)}
	case LPAREN:
		p.advance()
		e := p.parseExpr()
		p.expect(RPAREN, "')'")
		return e
	}
	p.errorf(t, "expected expression, found %q", t.Lexeme)
	p.syncStatement()
	return &ast.NumberLit{Value: 0, Pos: p.span(t)}
}

func (p *parser) parseCallArgs(name Token) ast.Expr {
	p.advance() // '('
	call := &ast.Call{Name: name.Lexeme, Pos: p.span(name)}
	p.skipNewlines()
	for !p.at(RPAREN) && !p.at(EOF) {
		call.Args = append(call.Args, p.parseExpr())
		p.skipNewlines()
		if _, ok := p.accept(COMMA); !ok {
			break
		}
		p.skipNewlines()
	}
	p.expect(RPAREN, "')'")
	return call
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// parseDistExpr parses an uncertainty value: either the ±X% shorthand
// or a distribution call like normal(5, 2). normal(±10%) is accepted
// and means the same as the bare shorthand.
func (p *parser) parseDistExpr() *ast.DistExpr {
	t := p.cur()

	if t.Type == PLUSMIN {
		p.advance()
		pc, ok := p.expect(PERCENT, "percentage after ±")
		if !ok {
			p.syncStatement()
			return nil
		}
		return &ast.DistExpr{Kind: ast.DistNormal, Relative: true, Spread: pc.Num / 100, Pos: p.span(t)}
	}

	if t.Type != IDENT {
		p.errorf(t, "expected distribution, found %q", t.Lexeme)
		p.syncStatement()
		return nil
	}
	kind, ok := distKind(t.Lexeme)
	if !ok {
		p.errorf(t, "unknown distribution %q", t.Lexeme)
		p.syncStatement()
		return nil
	}
	p.advance()
	if _, ok := p.expect(LPAREN, "'('"); !ok {
		p.syncStatement()
		return nil
	}

	d := &ast.DistExpr{Kind: kind, Pos: p.span(t)}
	for !p.at(RPAREN) && !p.at(EOF) && !p.at(NEWLINE) {
		if p.at(PLUSMIN) {
			p.advance()
			pc, ok := p.expect(PERCENT, "percentage after ±")
			if !ok {
				break
			}
			d.Relative = true
			d.Spread = pc.Num / 100
		} else if v, ok := p.parseNumberValue(); ok {
			d.Args = append(d.Args, v)
		} else {
			break
		}
		p.accept(COMMA)
	}
	p.expect(RPAREN, "')'")
	if d.Relative && d.Kind != ast.DistNormal {
		p.errorf(t, "±%% shorthand is only valid for normal distributions")
		return nil
	}
	return d
}

func distKind(name string) (ast.DistKind, bool) {
	switch name {
	case "normal":
		return ast.DistNormal, true
	case "beta":
		return ast.DistBeta, true
	case "uniform":
		return ast.DistUniform, true
	case "triangular":
		return ast.DistTriangular, true
	case "lognormal":
		return ast.DistLogNormal, true
	}
	return "", false
}

// parseModelExpr parses an interpolation model call with named numeric
// arguments: logistic(rate: 0.8, midpoint: 2027, ceiling: 300).
// Positional arguments are accepted and keyed as arg0, arg1, ...
func (p *parser) parseModelExpr() *ast.ModelExpr {
	t := p.cur()
	if t.Type != IDENT {
		p.errorf(t, "expected model, found %q", t.Lexeme)
		p.syncStatement()
		return nil
	}
	kind, ok := modelKind(t.Lexeme)
	if !ok {
		p.errorf(t, "unknown model %q", t.Lexeme)
		p.syncStatement()
		return nil
	}
	p.advance()
	m := &ast.ModelExpr{Kind: kind, Params: map[string]float64{}, Pos: p.span(t)}
	if !p.at(LPAREN) {
		return m // bare model name, e.g. model: linear
	}
	p.advance()
	idx := 0
	for !p.at(RPAREN) && !p.at(EOF) && !p.at(NEWLINE) {
		if p.at(IDENT) && p.peekTok().Type == COLON {
			key := p.advance()
			p.advance() // ':'
			if v, ok := p.parseNumberValue(); ok {
				m.Params[key.Lexeme] = v
			}
		} else if v, ok := p.parseNumberValue(); ok {
			m.Params[positionalKey(idx)] = v
		} else {
			break
		}
		idx++
		p.accept(COMMA)
	}
	p.expect(RPAREN, "')'")
	return m
}

func positionalKey(i int) string {
	return "arg" + strconv.Itoa(i)
}

func modelKind(name string) (ast.ModelKind, bool) {
	switch name {
	case "linear":
		return ast.ModelLinear, true
	case "exponential":
		return ast.ModelExponential, true
	case "logistic":
		return ast.ModelLogistic, true
	case "spline":
		return ast.ModelSpline, true
	}
	return "", false
}
