// Package parser turns SDL source text into an AST. It never panics on
// malformed input: syntax problems become error diagnostics and only
// unrecoverable structural failures (missing scenario name, unterminated
// block) yield a nil AST.
package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/Relatronica/sdl/domain/ast"
	"github.com/Relatronica/sdl/domain/diag"
)

// Parse parses source into a scenario AST plus diagnostics.
func Parse(source string) (*ast.Scenario, []diag.Diagnostic) {
	p := &parser{toks: NewLexer(source).Tokens()}
	sc := p.parseScenario()
	if p.fatal {
		return nil, p.diags
	}
	return sc, p.diags
}

type parser struct {
	toks  []Token
	pos   int
	diags []diag.Diagnostic
	fatal bool
}

func (p *parser) cur() Token { return p.toks[p.pos] }

func (p *parser) peekTok() Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) at(tt TokenType) bool { return p.cur().Type == tt }

func (p *parser) accept(tt TokenType) (Token, bool) {
	if p.at(tt) {
		return p.advance(), true
	}
	return p.cur(), false
}

func (p *parser) expect(tt TokenType, what string) (Token, bool) {
	if p.at(tt) {
		return p.advance(), true
	}
	p.errorf(p.cur(), "expected %s, found %q", what, p.cur().Lexeme)
	return p.cur(), false
}

func (p *parser) span(t Token) diag.Span { return diag.Span{Line: t.Line, Column: t.Col} }

func (p *parser) errorf(t Token, format string, args ...interface{}) {
	s := p.span(t)
	p.diags = append(p.diags, diag.Errorf(diag.CodeSyntaxError, &s, format, args...))
}

func (p *parser) skipNewlines() {
	for p.at(NEWLINE) {
		p.advance()
	}
}

// syncStatement skips to the next statement boundary after an error.
func (p *parser) syncStatement() {
	for !p.at(NEWLINE) && !p.at(RBRACE) && !p.at(EOF) {
		p.advance()
	}
}

func (p *parser) parseScenario() *ast.Scenario {
	p.skipNewlines()
	head, ok := p.expect(SCENARIO, "'scenario'")
	if !ok {
		p.fatal = true
		return nil
	}
	name, ok := p.expect(STRING, "scenario name")
	if !ok {
		p.fatal = true
		return nil
	}
	if _, ok := p.expect(LBRACE, "'{'"); !ok {
		p.fatal = true
		return nil
	}

	sc := &ast.Scenario{Name: name.Str, Pos: p.span(head)}
	sc.Decls = p.parseBody(sc, false)
	if p.at(EOF) {
		p.errorf(p.cur(), "unterminated scenario block")
		p.fatal = true
		return nil
	}
	p.advance() // consume '}'
	return sc
}

// parseBody parses declarations (and, at top level, metadata pairs)
// until the closing brace. nested is true inside branch blocks, where
// metadata keys are not recognized.
func (p *parser) parseBody(sc *ast.Scenario, nested bool) []ast.Decl {
	var decls []ast.Decl
	for {
		p.skipNewlines()
		switch p.cur().Type {
		case RBRACE, EOF:
			return decls
		case ASSUMPTION:
			if d := p.parseAssumption(); d != nil {
				decls = append(decls, d)
			}
		case VARIABLE:
			if d := p.parseVariable(); d != nil {
				decls = append(decls, d)
			}
		case PARAMETER:
			if d := p.parseParameter(); d != nil {
				decls = append(decls, d)
			}
		case IMPACT:
			if d := p.parseImpact(); d != nil {
				decls = append(decls, d)
			}
		case BRANCH:
			if d := p.parseBranch(); d != nil {
				decls = append(decls, d)
			}
		case SIMULATE:
			if d := p.parseSimulate(); d != nil {
				decls = append(decls, d)
			}
		case WATCH:
			if d := p.parseWatch(); d != nil {
				decls = append(decls, d)
			}
		case CALIBRATE:
			if d := p.parseCalibrate(); d != nil {
				decls = append(decls, d)
			}
		case IMPORT:
			if d := p.parseImport(); d != nil {
				decls = append(decls, d)
			}
		case IDENT:
			if p.peekTok().Type == COLON {
				if nested {
					// Branch keys (when, probability) belong to the caller.
					return decls
				}
				p.parseMetadata(sc)
				continue
			}
			p.errorf(p.cur(), "unexpected %q in scenario body", p.cur().Lexeme)
			p.syncStatement()
		default:
			p.errorf(p.cur(), "unexpected %q in scenario body", p.cur().Lexeme)
			p.syncStatement()
		}
	}
}

func (p *parser) parseMetadata(sc *ast.Scenario) {
	key := p.advance()
	p.advance() // ':'
	switch key.Lexeme {
	case "timeframe":
		start, ok1 := p.parseDateToken()
		_, ok2 := p.expect(ARROW, "'->'")
		end, ok3 := p.parseDateToken()
		if ok1 && ok2 && ok3 {
			sc.Meta.TimeframeStart, sc.Meta.TimeframeEnd = start, end
			sc.Meta.HasTimeframe = true
		} else {
			p.syncStatement()
		}
	case "resolution":
		if t, ok := p.expect(IDENT, "resolution"); ok {
			sc.Meta.Resolution = t.Lexeme
		}
	case "confidence":
		if v, ok := p.parseNumberValue(); ok {
			sc.Meta.Confidence = v
			sc.Meta.HasConfidence = true
		}
	case "author":
		if t, ok := p.expect(STRING, "author string"); ok {
			sc.Meta.Author = t.Str
		}
	case "version":
		if t, ok := p.expect(STRING, "version string"); ok {
			sc.Meta.Version = t.Str
		}
	case "description":
		if t, ok := p.expect(STRING, "description string"); ok {
			sc.Meta.Description = t.Str
		}
	case "tags":
		sc.Meta.Tags = p.parseTagList()
	default:
		// Unknown keys become presentation hints, opaque to the core.
		if sc.Meta.Hints == nil {
			sc.Meta.Hints = map[string]string{}
		}
		sc.Meta.Hints[key.Lexeme] = p.rawValue()
	}
}

// rawValue consumes tokens to the end of the line and returns their text.
func (p *parser) rawValue() string {
	var parts []string
	for !p.at(NEWLINE) && !p.at(RBRACE) && !p.at(EOF) {
		parts = append(parts, p.advance().Lexeme)
	}
	return strings.Join(parts, " ")
}

func (p *parser) parseTagList() []string {
	var tags []string
	if _, ok := p.expect(LBRACKET, "'['"); !ok {
		p.syncStatement()
		return nil
	}
	for !p.at(RBRACKET) && !p.at(EOF) && !p.at(NEWLINE) {
		t := p.advance()
		if t.Type == IDENT || t.Type == STRING {
			v := t.Lexeme
			if t.Type == STRING {
				v = t.Str
			}
			tags = append(tags, v)
		}
		p.accept(COMMA)
	}
	p.expect(RBRACKET, "']'")
	return tags
}

func (p *parser) parseDateToken() (time.Time, bool) {
	t := p.cur()
	switch t.Type {
	case DATE:
		p.advance()
		d, err := parseDateLexeme(t.Lexeme)
		if err != nil {
			p.errorf(t, "invalid date %q", t.Lexeme)
			return time.Time{}, false
		}
		return d, true
	case NUMBER:
		p.advance()
		y := int(t.Num)
		if float64(y) != t.Num || y < 1000 || y > 9999 {
			p.errorf(t, "invalid year %q", t.Lexeme)
			return time.Time{}, false
		}
		return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC), true
	default:
		p.errorf(t, "expected date, found %q", t.Lexeme)
		return time.Time{}, false
	}
}

func parseDateLexeme(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-1-2", "2006-01", "2006-1"} {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func (p *parser) parseNumberValue() (float64, bool) {
	t := p.cur()
	switch t.Type {
	case NUMBER:
		p.advance()
		return t.Num * magnitudeFactor(t.Mag), true
	case PERCENT:
		p.advance()
		return t.Num / 100, true
	case MINUS:
		p.advance()
		if n, ok := p.parseNumberValue(); ok {
			return -n, true
		}
		return 0, false
	default:
		p.errorf(t, "expected number, found %q", t.Lexeme)
		return 0, false
	}
}

func magnitudeFactor(mag string) float64 {
	switch mag {
	case "K":
		return 1e3
	case "M":
		return 1e6
	case "B":
		return 1e9
	case "T":
		return 1e12
	}
	return 1
}

func (p *parser) declHeader(kind string) (Token, bool) {
	p.advance() // keyword
	name, ok := p.expect(IDENT, kind+" name")
	if !ok {
		p.syncStatement()
		return name, false
	}
	if _, ok := p.expect(LBRACE, "'{'"); !ok {
		p.syncStatement()
		return name, false
	}
	return name, true
}

func (p *parser) parseAssumption() ast.Decl {
	name, ok := p.declHeader("assumption")
	if !ok {
		return nil
	}
	d := &ast.Assumption{Name: name.Lexeme, Pos: p.span(name)}
	p.parseBlock(func(key Token) {
		switch key.Lexeme {
		case "value":
			d.Value = p.parseExpr()
		case "uncertainty":
			d.Uncertainty = p.parseDistExpr()
		case "source":
			if t, ok := p.expect(STRING, "source string"); ok {
				d.Source = t.Str
			}
		case "bind":
			if t, ok := p.expect(STRING, "bind locator"); ok {
				d.Bind = t.Str
			}
		default:
			p.errorf(key, "unknown assumption key %q", key.Lexeme)
			p.syncStatement()
		}
	}, nil)
	return d
}

func (p *parser) parseVariable() ast.Decl {
	name, ok := p.declHeader("variable")
	if !ok {
		return nil
	}
	d := &ast.Variable{Name: name.Lexeme, Pos: p.span(name)}
	p.parseBlock(func(key Token) {
		switch key.Lexeme {
		case "unit":
			d.Unit = p.rawValue()
		case "model":
			d.Model = p.parseModelExpr()
		case "uncertainty":
			d.Uncertainty = p.parseDistExpr()
		case "depends_on":
			d.DependsOn = p.parseRefList()
		case "bind":
			if t, ok := p.expect(STRING, "bind locator"); ok {
				d.Bind = t.Str
			}
		default:
			p.errorf(key, "unknown variable key %q", key.Lexeme)
			p.syncStatement()
		}
	}, func(date Token) {
		when, ok := p.dateFromToken(date)
		if !ok {
			p.syncStatement()
			return
		}
		if _, ok := p.expect(COLON, "':'"); !ok {
			p.syncStatement()
			return
		}
		d.Series = append(d.Series, ast.TimePoint{Date: when, Value: p.parseExpr(), Pos: p.span(date)})
	})
	return d
}

func (p *parser) parseParameter() ast.Decl {
	name, ok := p.declHeader("parameter")
	if !ok {
		return nil
	}
	d := &ast.Parameter{Name: name.Lexeme, Pos: p.span(name)}
	p.parseBlock(func(key Token) {
		switch key.Lexeme {
		case "default", "value":
			d.Default = p.parseExpr()
		case "min":
			d.Min = p.parseExpr()
		case "max":
			d.Max = p.parseExpr()
		case "interactive":
			t := p.advance()
			d.Interactive = t.Type == TRUE
		case "uncertainty":
			d.Uncertainty = p.parseDistExpr()
		default:
			p.errorf(key, "unknown parameter key %q", key.Lexeme)
			p.syncStatement()
		}
	}, nil)
	return d
}

func (p *parser) parseImpact() ast.Decl {
	name, ok := p.declHeader("impact")
	if !ok {
		return nil
	}
	d := &ast.Impact{Name: name.Lexeme, Pos: p.span(name)}
	p.parseBlock(func(key Token) {
		switch key.Lexeme {
		case "formula":
			d.Formula = p.parseExpr()
		case "derives_from":
			d.DerivesFrom = p.parseRefList()
		case "unit":
			d.Unit = p.rawValue()
		default:
			p.errorf(key, "unknown impact key %q", key.Lexeme)
			p.syncStatement()
		}
	}, nil)
	return d
}

func (p *parser) parseBranch() ast.Decl {
	p.advance() // 'branch'
	name, ok := p.expect(IDENT, "branch name")
	if !ok {
		p.syncStatement()
		return nil
	}
	d := &ast.Branch{Name: name.Lexeme, Probability: 1, Pos: p.span(name)}

	// Header condition: branch <name> when <expr> { ... }
	if _, ok := p.accept(WHEN); ok {
		d.When = p.parseExpr()
	}
	if _, ok := p.expect(LBRACE, "'{'"); !ok {
		p.syncStatement()
		return nil
	}
	for {
		p.skipNewlines()
		switch p.cur().Type {
		case RBRACE:
			p.advance()
			return d
		case EOF:
			p.errorf(p.cur(), "unterminated branch block")
			p.fatal = true
			return nil
		case IDENT:
			key := p.advance()
			if _, ok := p.expect(COLON, "':'"); !ok {
				p.syncStatement()
				continue
			}
			switch key.Lexeme {
			case "when":
				d.When = p.parseExpr()
			case "probability":
				if v, ok := p.parseNumberValue(); ok {
					d.Probability = v
				}
			default:
				p.errorf(key, "unknown branch key %q", key.Lexeme)
				p.syncStatement()
			}
		case VARIABLE, ASSUMPTION, PARAMETER, IMPACT:
			// parseBody stops at the closing brace or at the next
			// branch key; the loop handles both.
			d.Decls = append(d.Decls, p.parseBody(&ast.Scenario{}, true)...)
		default:
			p.errorf(p.cur(), "unexpected %q in branch block", p.cur().Lexeme)
			p.syncStatement()
		}
	}
}

func (p *parser) parseSimulate() ast.Decl {
	head := p.advance() // 'simulate'
	if _, ok := p.expect(LBRACE, "'{'"); !ok {
		p.syncStatement()
		return nil
	}
	d := &ast.Simulate{Pos: p.span(head)}
	p.parseBlock(func(key Token) {
		switch key.Lexeme {
		case "runs":
			if v, ok := p.parseNumberValue(); ok {
				d.Runs = int(v)
				d.HasRuns = true
			}
		case "percentiles":
			d.Percentiles = p.parseNumberList()
		case "convergence":
			if v, ok := p.parseNumberValue(); ok {
				d.Convergence = v
			}
		default:
			p.errorf(key, "unknown simulate key %q", key.Lexeme)
			p.syncStatement()
		}
	}, nil)
	return d
}

func (p *parser) parseWatch() ast.Decl {
	p.advance() // 'watch'
	target, ok := p.expect(IDENT, "watch target")
	if !ok {
		p.syncStatement()
		return nil
	}
	if _, ok := p.expect(LBRACE, "'{'"); !ok {
		p.syncStatement()
		return nil
	}
	d := &ast.Watch{Target: target.Lexeme, Pos: p.span(target)}
	for {
		p.skipNewlines()
		switch {
		case p.at(RBRACE):
			p.advance()
			return d
		case p.at(EOF):
			p.errorf(p.cur(), "unterminated watch block")
			p.fatal = true
			return nil
		case p.at(IDENT) && (p.cur().Lexeme == "warn" || p.cur().Lexeme == "error"):
			sev := p.advance()
			if _, ok := p.expect(WHEN, "'when'"); !ok {
				p.syncStatement()
				continue
			}
			if _, ok := p.expect(COLON, "':'"); !ok {
				p.syncStatement()
				continue
			}
			d.Rules = append(d.Rules, ast.WatchRule{Severity: sev.Lexeme, Cond: p.parseExpr(), Pos: p.span(sev)})
		default:
			p.errorf(p.cur(), "expected 'warn when:' or 'error when:' rule, found %q", p.cur().Lexeme)
			p.syncStatement()
		}
	}
}

func (p *parser) parseCalibrate() ast.Decl {
	p.advance() // 'calibrate'
	target, ok := p.expect(IDENT, "calibrate target")
	if !ok {
		p.syncStatement()
		return nil
	}
	d := &ast.Calibrate{Target: target.Lexeme, Method: "bayesian", Pos: p.span(target)}
	if _, ok := p.expect(LBRACE, "'{'"); !ok {
		p.syncStatement()
		return nil
	}
	p.parseBlock(func(key Token) {
		switch key.Lexeme {
		case "method":
			t := p.advance()
			if t.Type == IDENT || t.Type == STRING {
				if t.Type == STRING {
					d.Method = t.Str
				} else {
					d.Method = t.Lexeme
				}
			} else {
				p.errorf(t, "expected method name")
			}
		case "window":
			start, ok1 := p.parseDateToken()
			_, ok2 := p.expect(ARROW, "'->'")
			end, ok3 := p.parseDateToken()
			if ok1 && ok2 && ok3 {
				d.WindowStart, d.WindowEnd = start, end
				d.HasWindow = true
			} else {
				p.syncStatement()
			}
		case "source":
			if t, ok := p.expect(STRING, "source locator"); ok {
				d.Source = t.Str
			}
		default:
			p.errorf(key, "unknown calibrate key %q", key.Lexeme)
			p.syncStatement()
		}
	}, nil)
	return d
}

func (p *parser) parseImport() ast.Decl {
	head := p.advance() // 'import'
	path, ok := p.expect(STRING, "import path")
	if !ok {
		p.syncStatement()
		return nil
	}
	if _, ok := p.expect(AS, "'as'"); !ok {
		p.syncStatement()
		return nil
	}
	alias, ok := p.expect(IDENT, "import alias")
	if !ok {
		p.syncStatement()
		return nil
	}
	return &ast.Import{Path: path.Str, Alias: alias.Lexeme, Pos: p.span(head)}
}

// parseBlock drives a declaration body: `key: value` entries go to
// onKey, date anchors (when onDate is non-nil) go to onDate. The
// closing brace is consumed.
func (p *parser) parseBlock(onKey func(key Token), onDate func(date Token)) {
	for {
		p.skipNewlines()
		switch {
		case p.at(RBRACE):
			p.advance()
			return
		case p.at(EOF):
			p.errorf(p.cur(), "unterminated block")
			p.fatal = true
			return
		case p.at(IDENT) && p.peekTok().Type == COLON:
			key := p.advance()
			p.advance() // ':'
			onKey(key)
		case onDate != nil && (p.at(DATE) || p.at(NUMBER)):
			onDate(p.advance())
		default:
			p.errorf(p.cur(), "unexpected %q in block", p.cur().Lexeme)
			p.syncStatement()
		}
	}
}

func (p *parser) dateFromToken(t Token) (time.Time, bool) {
	if t.Type == DATE {
		d, err := parseDateLexeme(t.Lexeme)
		if err != nil {
			p.errorf(t, "invalid date %q", t.Lexeme)
			return time.Time{}, false
		}
		return d, true
	}
	y := int(t.Num)
	if float64(y) != t.Num || y < 1000 || y > 9999 {
		p.errorf(t, "invalid year %q", t.Lexeme)
		return time.Time{}, false
	}
	return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC), true
}

func (p *parser) parseRefList() []ast.Ref {
	var refs []ast.Ref
	for {
		t, ok := p.expect(IDENT, "dependency name")
		if !ok {
			p.syncStatement()
			return refs
		}
		refs = append(refs, ast.Ref{Name: t.Lexeme, Pos: p.span(t)})
		if _, ok := p.accept(COMMA); !ok {
			return refs
		}
	}
}

func (p *parser) parseNumberList() []float64 {
	var nums []float64
	if _, ok := p.expect(LBRACKET, "'['"); !ok {
		p.syncStatement()
		return nil
	}
	for !p.at(RBRACKET) && !p.at(EOF) && !p.at(NEWLINE) {
		if v, ok := p.parseNumberValue(); ok {
			nums = append(nums, v)
		} else {
			p.advance()
		}
		p.accept(COMMA)
	}
	p.expect(RBRACKET, "']'")
	return nums
}
