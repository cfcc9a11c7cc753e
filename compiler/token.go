package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	TokenEOF TokenType = iota

	// Delimiters and operators
	TokenLParen      // (
	TokenRParen      // )
	TokenPlus        // +
	TokenMinus       // -
	TokenAsterisk    // *
	TokenSlash       // /
	TokenEqual       // = or ==
	TokenLessThan    // <
	TokenGreaterThan // >
	TokenExclaim     // !
	TokenDoubleColon // ::
	TokenColon       // :
	TokenLBracket    // [
	TokenRBracket    // ]
	TokenLBrace      // {
	TokenRBrace      // }

	// Literals and names; Text carries the lexeme
	TokenString  // "hola"
	TokenIdent   // square
	TokenDouble  // 3.1415
	TokenInteger // 25

	// Keywords
	TokenTrue
	TokenFalse
	TokenLet
	TokenFn
	TokenMatch
	TokenStd
	TokenFor
)

var tokenNames = map[TokenType]string{
	TokenEOF:         "EOF",
	TokenLParen:      "(",
	TokenRParen:      ")",
	TokenPlus:        "+",
	TokenMinus:       "-",
	TokenAsterisk:    "*",
	TokenSlash:       "/",
	TokenEqual:       "=",
	TokenLessThan:    "<",
	TokenGreaterThan: ">",
	TokenExclaim:     "!",
	TokenDoubleColon: "::",
	TokenColon:       ":",
	TokenLBracket:    "[",
	TokenRBracket:    "]",
	TokenLBrace:      "{",
	TokenRBrace:      "}",
	TokenString:      "STRING",
	TokenIdent:       "IDENT",
	TokenDouble:      "DOUBLE",
	TokenInteger:     "INTEGER",
	TokenTrue:        "true",
	TokenFalse:       "false",
	TokenLet:         "let",
	TokenFn:          "fn",
	TokenMatch:       "match",
	TokenStd:         "std",
	TokenFor:         "for",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token is a lexical token. Line and Col are 1-based and point at the first
// byte of the lexeme.
type Token struct {
	Type TokenType
	Text string // lexeme for String, Ident, Double, Integer and Equal
	Line int
	Col  int
}

func (t Token) String() string {
	switch t.Type {
	case TokenString, TokenIdent, TokenDouble, TokenInteger:
		return fmt.Sprintf("%s(%q)", t.Type, t.Text)
	}
	return t.Type.String()
}

// Len returns the width of the token in diagnostics. Text-carrying tokens span
// their lexeme; keywords span their spelling; every other token spans one
// column, == included.
func (t Token) Len() int {
	switch t.Type {
	case TokenString, TokenIdent, TokenDouble, TokenInteger:
		return len(t.Text)
	case TokenTrue:
		return 4
	case TokenFalse, TokenMatch:
		return 5
	case TokenLet, TokenStd, TokenFor:
		return 3
	case TokenFn, TokenDoubleColon:
		return 2
	}
	return 1
}

var keywords = map[string]TokenType{
	"true":  TokenTrue,
	"false": TokenFalse,
	"let":   TokenLet,
	"fn":    TokenFn,
	"match": TokenMatch,
	"std":   TokenStd,
	"for":   TokenFor,
}

// endsValue reports whether a token of type t can end an operand, in which
// case a following '-' is an operator rather than a sign.
func endsValue(t TokenType) bool {
	switch t {
	case TokenString, TokenIdent, TokenDouble, TokenInteger, TokenTrue, TokenFalse,
		TokenRParen, TokenRBracket, TokenRBrace:
		return true
	}
	return false
}
