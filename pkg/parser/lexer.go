// Package parser parses NONMEM control streams into typed records while
// preserving the raw text of every record, so that an unmodified model
// writes back byte-identical.
package parser

import (
	"strings"

	"github.com/pharmgo/pharmgo/pkg/token"
)

// Lexer tokenizes the body of a single control stream record.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)
}

// NewLexer creates a new Lexer for the given record body. The line offset
// positions tokens relative to the whole control stream.
func NewLexer(input string, startLine int) *Lexer {
	l := &Lexer{
		input: input,
		line:  startLine,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) currentPos() token.Position {
	return token.Position{Line: l.line, Column: l.col, Offset: l.pos}
}

// NextToken returns the next token. Newlines are reported since several
// records treat line breaks as value separators.
func (l *Lexer) NextToken() token.Token {
	l.skipBlanks()

	pos := l.currentPos()

	switch l.ch {
	case 0:
		return token.Token{Type: token.EOF, Pos: pos}
	case '\n':
		l.readChar()
		return token.Token{Type: token.NEWLINE, Literal: "\n", Pos: pos}
	case '&':
		// Fortran continuation joins the next line
		l.readChar()
		for l.ch == '\n' || l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
			l.readChar()
		}
		return l.NextToken()
	case ';':
		return l.readComment(pos)
	case '\'', '"':
		return l.readString(pos)
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.OpEqSign, Literal: "==", Pos: pos}
		}
		l.readChar()
		return token.Token{Type: token.EQ, Literal: "=", Pos: pos}
	case '(':
		l.readChar()
		return token.Token{Type: token.LPAREN, Literal: "(", Pos: pos}
	case ')':
		l.readChar()
		return token.Token{Type: token.RPAREN, Literal: ")", Pos: pos}
	case ',':
		l.readChar()
		return token.Token{Type: token.COMMA, Literal: ",", Pos: pos}
	case '*':
		l.readChar()
		return token.Token{Type: token.STAR, Literal: "*", Pos: pos}
	case '+':
		l.readChar()
		return token.Token{Type: token.PLUS, Literal: "+", Pos: pos}
	case '-':
		l.readChar()
		return token.Token{Type: token.MINUS, Literal: "-", Pos: pos}
	case '/':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.OpNeSign, Literal: "/=", Pos: pos}
		}
		l.readChar()
		return token.Token{Type: token.SLASH, Literal: "/", Pos: pos}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.OpLeSign, Literal: "<=", Pos: pos}
		}
		l.readChar()
		return token.Token{Type: token.OpLtSign, Literal: "<", Pos: pos}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.OpGeSign, Literal: ">=", Pos: pos}
		}
		l.readChar()
		return token.Token{Type: token.OpGtSign, Literal: ">", Pos: pos}
	case '.':
		if isLetter(l.peekChar()) {
			return l.readFortranOp(pos)
		}
		if isDigit(l.peekChar()) {
			return l.readNumber(pos)
		}
	}

	if isDigit(l.ch) {
		return l.readNumber(pos)
	}
	if isLetter(l.ch) || l.ch == '_' || l.ch == '@' || l.ch == '#' {
		return l.readIdent(pos)
	}

	ill := token.Token{Type: token.ILLEGAL, Literal: string(l.ch), Pos: pos}
	l.readChar()
	return ill
}

// skipBlanks skips spaces, tabs and carriage returns but not newlines.
func (l *Lexer) skipBlanks() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) readComment(pos token.Position) token.Token {
	start := l.pos
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
	return token.Token{Type: token.COMMENT, Literal: l.input[start:l.pos], Pos: pos}
}

func (l *Lexer) readString(pos token.Position) token.Token {
	quote := l.ch
	start := l.pos
	l.readChar()
	for l.ch != quote && l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
	if l.ch == quote {
		l.readChar()
	}
	return token.Token{Type: token.STRING, Literal: l.input[start:l.pos], Pos: pos}
}

// readFortranOp reads operators of the form .EQ. / .EQN. / .LT. etc.
// A dot run that is not a known operator falls back to an identifier so
// filenames like a.b survive.
func (l *Lexer) readFortranOp(pos token.Position) token.Token {
	start := l.pos
	l.readChar() // consume '.'
	for isLetter(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		l.readChar()
		lit := l.input[start:l.pos]
		if t, ok := fortranOps[strings.ToUpper(lit)]; ok {
			return token.Token{Type: t, Literal: lit, Pos: pos}
		}
	}
	// Not an operator: keep consuming as bare text
	for !isSeparator(l.ch) {
		l.readChar()
	}
	return token.Token{Type: token.IDENT, Literal: l.input[start:l.pos], Pos: pos}
}

var fortranOps = map[string]token.Type{
	".EQ.":  token.OpStrEq,
	".NE.":  token.OpStrNe,
	".EQN.": token.OpEq,
	".NEN.": token.OpNe,
	".LT.":  token.OpLt,
	".GT.":  token.OpGt,
	".LE.":  token.OpLe,
	".GE.":  token.OpGe,
}

func (l *Lexer) readNumber(pos token.Position) token.Token {
	start := l.pos
	for isDigit(l.ch) || l.ch == '.' {
		l.readChar()
	}
	// exponent: E, e, D, d followed by optional sign and digits
	if l.ch == 'E' || l.ch == 'e' || l.ch == 'D' || l.ch == 'd' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return token.Token{Type: token.NUMBER, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdent reads an identifier or bare text run. NM-TRAN identifiers may
// contain digits and a few path characters (for unquoted filenames). A dot
// that starts a Fortran comparison operator ends the identifier, so that
// ID.EQN.2 splits while pheno.dta stays whole.
func (l *Lexer) readIdent(pos token.Position) token.Token {
	start := l.pos
	for !isSeparator(l.ch) {
		if l.ch == '.' && l.fortranOpAhead() {
			break
		}
		l.readChar()
	}
	return token.Token{Type: token.IDENT, Literal: l.input[start:l.pos], Pos: pos}
}

// fortranOpAhead reports whether the input at the current position spells
// a known .XX. operator.
func (l *Lexer) fortranOpAhead() bool {
	end := l.pos + 1
	for end < len(l.input) && isLetter(l.input[end]) {
		end++
	}
	if end >= len(l.input) || l.input[end] != '.' {
		return false
	}
	_, ok := fortranOps[strings.ToUpper(l.input[l.pos:end+1])]
	return ok
}

// isSeparator reports characters that always end a bare token.
func isSeparator(ch byte) bool {
	switch ch {
	case 0, ' ', '\t', '\r', '\n', '=', '(', ')', ',', ';', '\'', '"', '<', '>':
		return true
	}
	return false
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// Tokens runs the lexer to completion, dropping comments.
func Tokens(body string, startLine int) []token.Token {
	l := NewLexer(body, startLine)
	var out []token.Token
	for {
		t := l.NextToken()
		if t.Type == token.COMMENT {
			continue
		}
		out = append(out, t)
		if t.Type == token.EOF {
			return out
		}
	}
}
