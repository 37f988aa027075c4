package asm

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF     TokenType = iota // sentinel: end of input
	NEWLINE                  // statement separator, never discarded

	// Literals and names
	IDENTIFIER // label / macro / constant name
	NUMBER     // numeric literal in any base, or a character literal
	STRING     // string literal "..."
	KEYWORD    // reserved word; Token.Keyword holds the table entry
	ARG        // macro argument placeholder @k; lexeme is the index digits

	// Punctuation
	COLON  // :
	COMMA  // ,
	LPAREN // (
	RPAREN // )

	// Arithmetic operators
	PLUS    // +
	MINUS   // -
	STAR    // *
	SLASH   // /
	PERCENT // %
	AMP     // &
	PIPE    // |
	CARET   // ^
	TILDE   // ~
	SHL     // <<
	SHR     // >>

	// Logical operators
	AND_LOGICAL // &&
	OR_LOGICAL  // ||
	NOT         // !

	// Comparison  (order matters: ASSIGN before EQUALS)
	ASSIGN     // =
	EQUALS     // ==
	NOT_EQ     // !=
	LESS       // <
	LESS_EQ    // <=
	GREATER    // >
	GREATER_EQ // >=

	// Compound assignment
	PLUS_ASSIGN    // +=
	MINUS_ASSIGN   // -=
	STAR_ASSIGN    // *=
	SLASH_ASSIGN   // /=
	PERCENT_ASSIGN // %=
	AND_ASSIGN     // &=
	OR_ASSIGN      // |=
	XOR_ASSIGN     // ^=
	SHL_ASSIGN     // <<=
	SHR_ASSIGN     // >>=
)

// tokenNames is indexed by TokenType.
var tokenNames = [...]string{
	EOF:            "EOF",
	NEWLINE:        "NEWLINE",
	IDENTIFIER:     "IDENTIFIER",
	NUMBER:         "NUMBER",
	STRING:         "STRING",
	KEYWORD:        "KEYWORD",
	ARG:            "ARG",
	COLON:          "COLON",
	COMMA:          "COMMA",
	LPAREN:         "LPAREN",
	RPAREN:         "RPAREN",
	PLUS:           "PLUS",
	MINUS:          "MINUS",
	STAR:           "STAR",
	SLASH:          "SLASH",
	PERCENT:        "PERCENT",
	AMP:            "AMP",
	PIPE:           "PIPE",
	CARET:          "CARET",
	TILDE:          "TILDE",
	SHL:            "SHL",
	SHR:            "SHR",
	AND_LOGICAL:    "AND_LOGICAL",
	OR_LOGICAL:     "OR_LOGICAL",
	NOT:            "NOT",
	ASSIGN:         "ASSIGN",
	EQUALS:         "EQUALS",
	NOT_EQ:         "NOT_EQ",
	LESS:           "LESS",
	LESS_EQ:        "LESS_EQ",
	GREATER:        "GREATER",
	GREATER_EQ:     "GREATER_EQ",
	PLUS_ASSIGN:    "PLUS_ASSIGN",
	MINUS_ASSIGN:   "MINUS_ASSIGN",
	STAR_ASSIGN:    "STAR_ASSIGN",
	SLASH_ASSIGN:   "SLASH_ASSIGN",
	PERCENT_ASSIGN: "PERCENT_ASSIGN",
	AND_ASSIGN:     "AND_ASSIGN",
	OR_ASSIGN:      "OR_ASSIGN",
	XOR_ASSIGN:     "XOR_ASSIGN",
	SHL_ASSIGN:     "SHL_ASSIGN",
	SHR_ASSIGN:     "SHR_ASSIGN",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type    TokenType
	Lexeme  string   // the exact source text that was matched
	Keyword *Keyword // non-nil only when Type == KEYWORD
	File    string   // originating source file
	Line    int      // 1-based source line
	Col     int      // 1-based source column
}

// Pos formats the token's source position for diagnostics.
func (t Token) Pos() string {
	return fmt.Sprintf("%s:%d:%d", t.File, t.Line, t.Col)
}

func (t Token) String() string {
	if t.Type == KEYWORD && t.Keyword != nil {
		return fmt.Sprintf("%-10s %-14q  %s", t.Keyword.Type, t.Lexeme, t.Pos())
	}
	return fmt.Sprintf("%-10s %-14q  %s", t.Type, t.Lexeme, t.Pos())
}
