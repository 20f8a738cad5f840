package parser

import (
	"fmt"

	"github.com/pharmgo/pharmgo/pkg/token"
)

// ParseError represents a record parsing error with position information.
type ParseError struct {
	Record  string
	Pos     token.Position
	Message string
}

func (e *ParseError) Error() string {
	if e.Record != "" {
		return fmt.Sprintf("parse error in $%s at line %d, column %d: %s",
			e.Record, e.Pos.Line, e.Pos.Column, e.Message)
	}
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// LexError represents a lexical analysis error.
type LexError struct {
	Pos     token.Position
	Message string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lexer error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// UnknownRecordError is returned for record names that cannot be resolved
// to a known NM-TRAN record.
type UnknownRecordError struct {
	Name string
}

func (e *UnknownRecordError) Error() string {
	return fmt.Sprintf("unknown record $%s", e.Name)
}

// AmbiguousRecordError is returned when an abbreviated record name matches
// more than one known record.
type AmbiguousRecordError struct {
	Name    string
	Matches []string
}

func (e *AmbiguousRecordError) Error() string {
	return fmt.Sprintf("ambiguous record $%s: matches %v", e.Name, e.Matches)
}
