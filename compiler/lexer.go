package compiler

import (
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for garden source
// ---------------------------------------------------------------------------

// Lexer tokenizes source text. Token texts are slices of the input, so the
// input must outlive every node built from it.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	line      int  // current line (1-based)
	lineStart int  // offset of current line start
	last      TokenType
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		last:  TokenEOF,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// spaceBefore reports whether whitespace precedes the current character.
func (l *Lexer) spaceBefore() bool {
	if l.pos == 0 {
		return false
	}
	switch l.input[l.pos-1] {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) token(t TokenType, line, col int, text string) Token {
	l.last = t
	return Token{Type: t, Text: text, Line: line, Col: col}
}

// NextToken returns the next token, or an *Error for input that cannot be
// tokenized.
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespaceAndComments()

	line, col := l.line, l.pos-l.lineStart+1
	single := func(t TokenType) (Token, error) {
		l.readChar()
		return l.token(t, line, col, ""), nil
	}

	switch {
	case l.ch == 0:
		return l.token(TokenEOF, line, col, ""), nil
	case l.ch == '(':
		return single(TokenLParen)
	case l.ch == ')':
		return single(TokenRParen)
	case l.ch == '[':
		return single(TokenLBracket)
	case l.ch == ']':
		return single(TokenRBracket)
	case l.ch == '{':
		return single(TokenLBrace)
	case l.ch == '}':
		return single(TokenRBrace)
	case l.ch == '+':
		return single(TokenPlus)
	case l.ch == '*':
		return single(TokenAsterisk)
	case l.ch == '/':
		return single(TokenSlash)
	case l.ch == '<':
		return single(TokenLessThan)
	case l.ch == '>':
		return single(TokenGreaterThan)
	case l.ch == '!':
		return single(TokenExclaim)

	case l.ch == '=':
		start := l.pos
		l.readChar()
		if l.ch == '=' {
			l.readChar()
		}
		return l.token(TokenEqual, line, col, l.input[start:l.pos]), nil

	case l.ch == ':':
		l.readChar()
		if l.ch == ':' {
			l.readChar()
			return l.token(TokenDoubleColon, line, col, ""), nil
		}
		return l.token(TokenColon, line, col, ""), nil

	case l.ch == '-':
		// In whitespace-separated lists "1 -2" is two operands; "1 - 2" and
		// "1-2" subtract.
		if isDigit(l.peekChar()) && (!endsValue(l.last) || l.spaceBefore()) {
			return l.readNumber(line, col), nil
		}
		return single(TokenMinus)

	case l.ch == '"':
		return l.readString(line, col)

	case isDigit(l.ch):
		return l.readNumber(line, col), nil

	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(line, col), nil

	default:
		ch := l.ch
		l.readChar()
		tok := Token{Line: line, Col: col}
		return tok, errorAt(tok, "unexpected character %q", ch)
	}
}

// skipWhitespaceAndComments skips whitespace and // line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		break
	}
}

// readString reads a double-quoted string literal. The token text is the
// content between the quotes; there are no escape sequences.
func (l *Lexer) readString(line, col int) (Token, error) {
	l.readChar() // consume opening "
	start := l.pos
	for l.ch != '"' && l.ch != 0 {
		l.readChar()
	}
	if l.ch != '"' {
		tok := Token{Type: TokenString, Text: l.input[start:l.pos], Line: line, Col: col}
		return tok, errorAt(tok, "unterminated string")
	}
	text := l.input[start:l.pos]
	l.readChar() // consume closing "
	return l.token(TokenString, line, col, text), nil
}

// readNumber reads an integer or double literal, with an optional sign.
func (l *Lexer) readNumber(line, col int) Token {
	start := l.pos
	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // consume .
		for isDigit(l.ch) {
			l.readChar()
		}
		return l.token(TokenDouble, line, col, l.input[start:l.pos])
	}
	return l.token(TokenInteger, line, col, l.input[start:l.pos])
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier(line, col int) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	text := l.input[start:l.pos]
	if t, ok := keywords[text]; ok {
		// std keeps its text so a path can name its root
		if t != TokenStd {
			text = ""
		}
		return l.token(t, line, col, text)
	}
	return l.token(TokenIdent, line, col, text)
}

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize returns all tokens of input, ending with TokenEOF.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}
