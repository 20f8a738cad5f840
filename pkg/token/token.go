// Package token defines the token types for NM-TRAN control stream parsing.
package token

import "fmt"

// Type represents the type of a lexical token.
type Type int32

const (
	// Special tokens
	EOF Type = iota
	ILLEGAL
	NEWLINE // significant inside records ($THETA values may be line separated)

	// Literals
	RECORD  // $THETA, $EST, ...
	IDENT   // CL, WGT, DEFDOSE, ...
	NUMBER  // 123, 45.67, 1E-3, .25
	STRING  // 'quoted' or "quoted"
	TEXT    // raw text run (free-text records such as $PROBLEM)
	COMMENT // ; to end of line

	// Operators and punctuation
	EQ     // =
	LPAREN // (
	RPAREN // )
	COMMA  // ,
	STAR   // *
	PLUS   // +
	MINUS  // -
	SLASH  // /

	// Fortran comparison operators (used in IGNORE/ACCEPT filters)
	OpStrEq  // .EQ.
	OpStrNe  // .NE.
	OpEq     // .EQN.
	OpNe     // .NEN.
	OpLt     // .LT.
	OpGt     // .GT.
	OpLe     // .LE.
	OpGe     // .GE.
	OpLtSign // <
	OpGtSign // >
	OpLeSign // <=
	OpGeSign // >=
	OpEqSign // ==
	OpNeSign // /=
)

var names = map[Type]string{
	EOF:      "EOF",
	ILLEGAL:  "ILLEGAL",
	NEWLINE:  "NEWLINE",
	RECORD:   "RECORD",
	IDENT:    "IDENT",
	NUMBER:   "NUMBER",
	STRING:   "STRING",
	TEXT:     "TEXT",
	COMMENT:  "COMMENT",
	EQ:       "=",
	LPAREN:   "(",
	RPAREN:   ")",
	COMMA:    ",",
	STAR:     "*",
	PLUS:     "+",
	MINUS:    "-",
	SLASH:    "/",
	OpStrEq:  ".EQ.",
	OpStrNe:  ".NE.",
	OpEq:     ".EQN.",
	OpNe:     ".NEN.",
	OpLt:     ".LT.",
	OpGt:     ".GT.",
	OpLe:     ".LE.",
	OpGe:     ".GE.",
	OpLtSign: "<",
	OpGtSign: ">",
	OpLeSign: "<=",
	OpGeSign: ">=",
	OpEqSign: "==",
	OpNeSign: "/=",
}

// String returns the name of the token type.
func (t Type) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", int32(t))
}

// Token is a lexical token with its literal text and source position.
type Token struct {
	Type    Type
	Literal string
	Pos     Position
}

// IsComparison reports whether the token is a filter comparison operator.
func (t Token) IsComparison() bool {
	switch t.Type {
	case OpStrEq, OpStrNe, OpEq, OpNe, OpLt, OpGt, OpLe, OpGe,
		OpLtSign, OpGtSign, OpLeSign, OpGeSign, OpEqSign, OpNeSign:
		return true
	}
	return false
}
