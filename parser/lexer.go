package parser

import (
	"strconv"
	"strings"
)

// TokenType represents the kind of token.
type TokenType int

const (
	// Special
	EOF TokenType = iota
	ILLEGAL
	NEWLINE // also emitted for ';'

	// Punctuation
	LBRACE   // "{"
	RBRACE   // "}"
	LPAREN   // "("
	RPAREN   // ")"
	LBRACKET // "["
	RBRACKET // "]"
	COLON    // ":"
	COMMA    // ","
	ARROW    // "->"
	PLUSMIN  // "±" or "+-"

	// Operators
	PLUS
	MINUS
	STAR
	SLASH
	LT
	LTE
	GT
	GTE
	EQ  // "=="
	NEQ // "!="

	// Literals & identifiers
	IDENT
	NUMBER
	PERCENT // number immediately followed by '%'
	STRING
	DATE // YYYY-MM or YYYY-MM-DD

	// Keywords
	SCENARIO
	ASSUMPTION
	VARIABLE
	PARAMETER
	IMPACT
	BRANCH
	SIMULATE
	WATCH
	CALIBRATE
	IMPORT
	AS
	WHEN
	TRUE
	FALSE
	AND
	OR
	NOT
)

var keywords = map[string]TokenType{
	"scenario":   SCENARIO,
	"assumption": ASSUMPTION,
	"variable":   VARIABLE,
	"parameter":  PARAMETER,
	"impact":     IMPACT,
	"branch":     BRANCH,
	"simulate":   SIMULATE,
	"watch":      WATCH,
	"calibrate":  CALIBRATE,
	"import":     IMPORT,
	"as":         AS,
	"when":       WHEN,
	"true":       TRUE,
	"false":      FALSE,
	"and":        AND,
	"or":         OR,
	"not":        NOT,
}

// Token is a lexical token with position and decoded literal values.
type Token struct {
	Type   TokenType
	Lexeme string
	Num    float64 // NUMBER, PERCENT, DATE-less numeric payloads
	Str    string  // STRING payload
	Mag    string  // magnitude suffix on NUMBER: K, M, B, T
	Line   int
	Col    int
}

// Lexer scans SDL source into tokens. It never fails hard: unknown
// characters become ILLEGAL tokens the parser reports as diagnostics.
type Lexer struct {
	src  string
	cur  int
	line int
	col  int
}

// NewLexer creates a lexer over src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src, line: 1, col: 1}
}

// Tokens scans the whole input.
func (l *Lexer) Tokens() []Token {
	var toks []Token
	for {
		t := l.next()
		// Collapse runs of newlines into one.
		if t.Type == NEWLINE && len(toks) > 0 && toks[len(toks)-1].Type == NEWLINE {
			continue
		}
		toks = append(toks, t)
		if t.Type == EOF {
			return toks
		}
	}
}

func (l *Lexer) next() Token {
	l.skipBlanks()
	line, col := l.line, l.col
	if l.cur >= len(l.src) {
		return Token{Type: EOF, Line: line, Col: col}
	}
	c := l.src[l.cur]

	switch {
	case c == '\n' || c == ';':
		l.advance()
		return Token{Type: NEWLINE, Lexeme: string(c), Line: line, Col: col}
	case c == '"':
		return l.scanString(line, col)
	case c >= '0' && c <= '9':
		return l.scanNumber(line, col)
	case isIdentStart(c):
		return l.scanIdent(line, col)
	}

	// Multi-byte ± (U+00B1, 0xC2 0xB1 in UTF-8).
	if c == 0xC2 && l.cur+1 < len(l.src) && l.src[l.cur+1] == 0xB1 {
		l.advance()
		l.advance()
		return Token{Type: PLUSMIN, Lexeme: "±", Line: line, Col: col}
	}

	l.advance()
	switch c {
	case '{':
		return Token{Type: LBRACE, Lexeme: "{", Line: line, Col: col}
	case '}':
		return Token{Type: RBRACE, Lexeme: "}", Line: line, Col: col}
	case '(':
		return Token{Type: LPAREN, Lexeme: "(", Line: line, Col: col}
	case ')':
		return Token{Type: RPAREN, Lexeme: ")", Line: line, Col: col}
	case '[':
		return Token{Type: LBRACKET, Lexeme: "[", Line: line, Col: col}
	case ']':
		return Token{Type: RBRACKET, Lexeme: "]", Line: line, Col: col}
	case ':':
		return Token{Type: COLON, Lexeme: ":", Line: line, Col: col}
	case ',':
		return Token{Type: COMMA, Lexeme: ",", Line: line, Col: col}
	case '+':
		if l.peek() == '-' {
			l.advance()
			return Token{Type: PLUSMIN, Lexeme: "+-", Line: line, Col: col}
		}
		return Token{Type: PLUS, Lexeme: "+", Line: line, Col: col}
	case '-':
		if l.peek() == '>' {
			l.advance()
			return Token{Type: ARROW, Lexeme: "->", Line: line, Col: col}
		}
		return Token{Type: MINUS, Lexeme: "-", Line: line, Col: col}
	case '*':
		return Token{Type: STAR, Lexeme: "*", Line: line, Col: col}
	case '/':
		return Token{Type: SLASH, Lexeme: "/", Line: line, Col: col}
	case '<':
		if l.peek() == '=' {
			l.advance()
			return Token{Type: LTE, Lexeme: "<=", Line: line, Col: col}
		}
		return Token{Type: LT, Lexeme: "<", Line: line, Col: col}
	case '>':
		if l.peek() == '=' {
			l.advance()
			return Token{Type: GTE, Lexeme: ">=", Line: line, Col: col}
		}
		return Token{Type: GT, Lexeme: ">", Line: line, Col: col}
	case '=':
		if l.peek() == '=' {
			l.advance()
			return Token{Type: EQ, Lexeme: "==", Line: line, Col: col}
		}
		return Token{Type: ILLEGAL, Lexeme: "=", Line: line, Col: col}
	case '!':
		if l.peek() == '=' {
			l.advance()
			return Token{Type: NEQ, Lexeme: "!=", Line: line, Col: col}
		}
		return Token{Type: ILLEGAL, Lexeme: "!", Line: line, Col: col}
	}
	return Token{Type: ILLEGAL, Lexeme: string(c), Line: line, Col: col}
}

// skipBlanks consumes spaces, tabs, carriage returns and comments.
// Newlines are significant and left for next().
func (l *Lexer) skipBlanks() {
	for l.cur < len(l.src) {
		c := l.src[l.cur]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			l.advance()
		case c == '#':
			l.skipLine()
		case c == '/' && l.cur+1 < len(l.src) && l.src[l.cur+1] == '/':
			l.skipLine()
		default:
			return
		}
	}
}

func (l *Lexer) skipLine() {
	for l.cur < len(l.src) && l.src[l.cur] != '\n' {
		l.advance()
	}
}

func (l *Lexer) scanString(line, col int) Token {
	l.advance() // opening quote
	var sb strings.Builder
	for l.cur < len(l.src) && l.src[l.cur] != '"' && l.src[l.cur] != '\n' {
		if l.src[l.cur] == '\\' && l.cur+1 < len(l.src) {
			l.advance()
			switch l.src[l.cur] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(l.src[l.cur])
			}
			l.advance()
			continue
		}
		sb.WriteByte(l.src[l.cur])
		l.advance()
	}
	if l.cur >= len(l.src) || l.src[l.cur] != '"' {
		return Token{Type: ILLEGAL, Lexeme: sb.String(), Str: "unterminated string", Line: line, Col: col}
	}
	l.advance() // closing quote
	return Token{Type: STRING, Lexeme: sb.String(), Str: sb.String(), Line: line, Col: col}
}

// scanNumber handles plain numbers, YYYY-MM[-DD] dates, magnitude
// suffixes (100M) and percent literals (12.5%).
func (l *Lexer) scanNumber(line, col int) Token {
	start := l.cur
	for l.cur < len(l.src) && isDigit(l.src[l.cur]) {
		l.advance()
	}

	// Date shape: exactly four digits followed by -digit.
	if l.cur-start == 4 && l.peekAt(0) == '-' && isDigit(l.peekAt(1)) {
		return l.scanDate(start, line, col)
	}

	if l.cur < len(l.src) && l.src[l.cur] == '.' && isDigit(l.peekAt(1)) {
		l.advance()
		for l.cur < len(l.src) && isDigit(l.src[l.cur]) {
			l.advance()
		}
	}
	lexeme := l.src[start:l.cur]
	num, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		return Token{Type: ILLEGAL, Lexeme: lexeme, Line: line, Col: col}
	}

	// Magnitude suffix: K/M/B/T not followed by another ident char.
	mag := ""
	if l.cur < len(l.src) {
		c := l.src[l.cur]
		if (c == 'K' || c == 'M' || c == 'B' || c == 'T') && !isIdentChar(l.peekAt(1)) {
			mag = string(c)
			l.advance()
		}
	}

	if l.cur < len(l.src) && l.src[l.cur] == '%' {
		l.advance()
		return Token{Type: PERCENT, Lexeme: lexeme + "%", Num: num, Line: line, Col: col}
	}
	return Token{Type: NUMBER, Lexeme: lexeme + mag, Num: num, Mag: mag, Line: line, Col: col}
}

func (l *Lexer) scanDate(start, line, col int) Token {
	// Already consumed YYYY; consume -MM and optional -DD.
	l.advance() // '-'
	for l.cur < len(l.src) && isDigit(l.src[l.cur]) {
		l.advance()
	}
	if l.peekAt(0) == '-' && isDigit(l.peekAt(1)) {
		l.advance()
		for l.cur < len(l.src) && isDigit(l.src[l.cur]) {
			l.advance()
		}
	}
	return Token{Type: DATE, Lexeme: l.src[start:l.cur], Line: line, Col: col}
}

func (l *Lexer) scanIdent(line, col int) Token {
	start := l.cur
	for l.cur < len(l.src) && isIdentChar(l.src[l.cur]) {
		l.advance()
	}
	lexeme := l.src[start:l.cur]
	if t, ok := keywords[lexeme]; ok {
		return Token{Type: t, Lexeme: lexeme, Line: line, Col: col}
	}
	return Token{Type: IDENT, Lexeme: lexeme, Line: line, Col: col}
}

func (l *Lexer) advance() {
	if l.cur < len(l.src) {
		if l.src[l.cur] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.cur++
	}
}

func (l *Lexer) peek() byte {
	if l.cur < len(l.src) {
		return l.src[l.cur]
	}
	return 0
}

func (l *Lexer) peekAt(off int) byte {
	if l.cur+off < len(l.src) {
		return l.src[l.cur+off]
	}
	return 0
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentChar(c byte) bool  { return isIdentStart(c) || isDigit(c) }
