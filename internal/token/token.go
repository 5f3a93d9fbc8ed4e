// Package token defines the lexical categories produced by internal/lexer
// and consumed by internal/parser.
package token

import "github.com/gorse-io/csubc/internal/source"

// Category is the coarse lexical class of a Token.
type Category int

const (
	EOF Category = iota
	Ident
	Keyword
	IntLit
	CharLit
	StringLit
	Punct
)

// Token is one lexical unit with its source coordinate.
type Token struct {
	Category Category
	Value    string // raw spelling for Ident/Keyword/Punct
	IntValue uint64 // decoded value for IntLit/CharLit
	StrValue string // decoded bytes for StringLit
	Unsigned bool   // IntLit: would not fit signed long
	IsLong   bool   // IntLit: does not fit int
	Pos      source.Pos
}

// Is reports whether the token is punctuation or a keyword matching s.
func (t Token) Is(s string) bool {
	return (t.Category == Punct || t.Category == Keyword) && t.Value == s
}

var keywords = map[string]bool{
	"_Bool": true, "sizeof": true, "typedef": true, "const": true,
	"static": true, "extern": true, "auto": true, "register": true,
	"signed": true, "unsigned": true, "struct": true, "union": true,
	"return": true, "if": true, "else": true, "while": true, "for": true,
	"break": true, "continue": true, "void": true, "char": true,
	"short": true, "int": true, "long": true, "goto": true,
}

// IsKeyword reports whether s is a reserved word of the language.
func IsKeyword(s string) bool { return keywords[s] }
