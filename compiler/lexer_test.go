package compiler

import (
	"errors"
	"testing"
)

func TestLexerTokens(t *testing.T) {
	input := `( ) [ ] { } + * / < > ! :: : = == let fn match std for true false`
	want := []TokenType{
		TokenLParen, TokenRParen, TokenLBracket, TokenRBracket, TokenLBrace, TokenRBrace,
		TokenPlus, TokenAsterisk, TokenSlash, TokenLessThan, TokenGreaterThan, TokenExclaim,
		TokenDoubleColon, TokenColon, TokenEqual, TokenEqual,
		TokenLet, TokenFn, TokenMatch, TokenStd, TokenFor, TokenTrue, TokenFalse,
		TokenEOF,
	}

	tokens, err := Tokenize(input)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i, tt := range want {
		if tokens[i].Type != tt {
			t.Errorf("token %d = %s, want %s", i, tokens[i].Type, tt)
		}
	}
	if tokens[14].Text != "=" || tokens[15].Text != "==" {
		t.Errorf("equal texts = %q, %q", tokens[14].Text, tokens[15].Text)
	}
}

func TestLexerLiterals(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		text  string
	}{
		{`25`, TokenInteger, "25"},
		{`-7`, TokenInteger, "-7"},
		{`3.1415`, TokenDouble, "3.1415"},
		{`-0.5`, TokenDouble, "-0.5"},
		{`"hola"`, TokenString, "hola"},
		{`""`, TokenString, ""},
		{`square`, TokenIdent, "square"},
		{`_x1`, TokenIdent, "_x1"},
		{`café`, TokenIdent, "café"},
	}

	for _, tt := range tests {
		tokens, err := Tokenize(tt.input)
		if err != nil {
			t.Errorf("Tokenize(%q): %v", tt.input, err)
			continue
		}
		if tokens[0].Type != tt.typ || tokens[0].Text != tt.text {
			t.Errorf("Tokenize(%q) = %v, want %s(%q)", tt.input, tokens[0], tt.typ, tt.text)
		}
	}
}

func TestLexerMinus(t *testing.T) {
	tests := []struct {
		input string
		want  []TokenType
	}{
		{"a - 1", []TokenType{TokenIdent, TokenMinus, TokenInteger, TokenEOF}},
		{"a -1", []TokenType{TokenIdent, TokenInteger, TokenEOF}},
		{"a-1", []TokenType{TokenIdent, TokenMinus, TokenInteger, TokenEOF}},
		{"[1 -2]", []TokenType{TokenLBracket, TokenInteger, TokenInteger, TokenRBracket, TokenEOF}},
		{"f(1 -2)", []TokenType{TokenIdent, TokenLParen, TokenInteger, TokenInteger, TokenRParen, TokenEOF}},
		{"(1)-2", []TokenType{TokenLParen, TokenInteger, TokenRParen, TokenMinus, TokenInteger, TokenEOF}},
		{"[-1]", []TokenType{TokenLBracket, TokenInteger, TokenRBracket, TokenEOF}},
		{"= -1", []TokenType{TokenEqual, TokenInteger, TokenEOF}},
	}

	for _, tt := range tests {
		tokens, err := Tokenize(tt.input)
		if err != nil {
			t.Fatalf("Tokenize(%q): %v", tt.input, err)
		}
		if len(tokens) != len(tt.want) {
			t.Errorf("Tokenize(%q) = %v", tt.input, tokens)
			continue
		}
		for i := range tt.want {
			if tokens[i].Type != tt.want[i] {
				t.Errorf("Tokenize(%q)[%d] = %s, want %s", tt.input, i, tokens[i].Type, tt.want[i])
			}
		}
	}
}

func TestLexerPositions(t *testing.T) {
	tokens, err := Tokenize("let a = 1\n  // comment\n  fn")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []struct{ line, col int }{
		{1, 1}, {1, 5}, {1, 7}, {1, 9}, {3, 3},
	}
	for i, w := range want {
		if tokens[i].Line != w.line || tokens[i].Col != w.col {
			t.Errorf("token %d (%s) at %d:%d, want %d:%d",
				i, tokens[i], tokens[i].Line, tokens[i].Col, w.line, w.col)
		}
	}
}

func TestTokenLen(t *testing.T) {
	tests := []struct {
		tok  Token
		want int
	}{
		{Token{Type: TokenString, Text: "hola"}, 4},
		{Token{Type: TokenIdent, Text: "square"}, 6},
		{Token{Type: TokenDouble, Text: "3.14"}, 4},
		{Token{Type: TokenInteger, Text: "25"}, 2},
		{Token{Type: TokenTrue}, 4},
		{Token{Type: TokenFalse}, 5},
		{Token{Type: TokenMatch}, 5},
		{Token{Type: TokenLet}, 3},
		{Token{Type: TokenStd}, 3},
		{Token{Type: TokenFor}, 3},
		{Token{Type: TokenFn}, 2},
		{Token{Type: TokenDoubleColon}, 2},
		{Token{Type: TokenEqual, Text: "=="}, 1},
		{Token{Type: TokenPlus}, 1},
		{Token{Type: TokenLBrace}, 1},
	}
	for _, tt := range tests {
		if got := tt.tok.Len(); got != tt.want {
			t.Errorf("%s.Len() = %d, want %d", tt.tok, got, tt.want)
		}
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"open`, "err: unterminated string at l:1:1-5"},
		{"a\n  @", "err: unexpected character '@' at l:2:3-4"},
	}
	for _, tt := range tests {
		_, err := Tokenize(tt.input)
		var cerr *Error
		if !errors.As(err, &cerr) {
			t.Fatalf("Tokenize(%q) err = %v, want *Error", tt.input, err)
		}
		if cerr.Error() != tt.want {
			t.Errorf("Tokenize(%q) = %q, want %q", tt.input, cerr.Error(), tt.want)
		}
	}
}
