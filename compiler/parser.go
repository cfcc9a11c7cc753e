package compiler

// ---------------------------------------------------------------------------
// Parser: recursive descent parser for garden source
// ---------------------------------------------------------------------------

// Parser parses source text into a sequence of top-level nodes. Parsing
// stops at the first error.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	err       *Error
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses source into top-level nodes.
func Parse(input string) ([]Node, error) {
	return NewParser(input).ParseProgram()
}

// nextToken advances to the next token. A lexer error ends the token stream.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	if p.peekToken.Type == TokenEOF && p.peekToken.Line != 0 {
		return
	}
	tok, err := p.lexer.NextToken()
	if err != nil {
		if e, ok := err.(*Error); ok && p.err == nil {
			p.err = e
		}
		tok = Token{Type: TokenEOF, Line: tok.Line, Col: tok.Col}
	}
	p.peekToken = tok
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf(p.curToken, "expected %s, got %s", t, p.curToken)
	return false
}

// errorf records the first parse error.
func (p *Parser) errorf(tok Token, format string, args ...any) {
	if p.err == nil {
		p.err = errorAt(tok, format, args...)
	}
}

func (p *Parser) failed() bool {
	return p.err != nil
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ParseProgram parses statements until EOF.
func (p *Parser) ParseProgram() ([]Node, error) {
	nodes := p.parseStatements(TokenEOF)
	if p.err != nil {
		return nil, p.err
	}
	return nodes, nil
}

// parseStatements parses statements until the closing token, which is left
// as the current token.
func (p *Parser) parseStatements(closing TokenType) []Node {
	var nodes []Node
	for !p.curTokenIs(closing) && !p.curTokenIs(TokenEOF) && !p.failed() {
		n := p.parseStatement()
		if n == nil {
			break
		}
		nodes = append(nodes, n)
	}
	return nodes
}

func (p *Parser) parseStatement() Node {
	switch p.curToken.Type {
	case TokenLet:
		return p.parseLet()
	case TokenFn:
		return p.parseFn()
	case TokenFor:
		p.errorf(p.curToken, "for loops are not supported")
		return nil
	}
	return p.parseExpression(precLowest)
}

// let name = rhs
func (p *Parser) parseLet() Node {
	p.nextToken() // consume let
	name := p.curToken
	if !p.expect(TokenIdent) {
		return nil
	}
	if !p.curTokenIs(TokenEqual) || p.curToken.Text != "=" {
		p.errorf(p.curToken, "expected = after let %s", name.Text)
		return nil
	}
	p.nextToken()
	rhs := p.parseExpression(precLowest)
	if rhs == nil {
		return nil
	}
	return &Let{Tok: name, Rhs: rhs}
}

// fn name(args) { body }
func (p *Parser) parseFn() Node {
	p.nextToken() // consume fn
	name := p.curToken
	if !p.expect(TokenIdent) || !p.expect(TokenLParen) {
		return nil
	}
	var args []*Ident
	for p.curTokenIs(TokenIdent) {
		args = append(args, &Ident{Tok: p.curToken})
		p.nextToken()
	}
	if !p.expect(TokenRParen) || !p.expect(TokenLBrace) {
		return nil
	}
	body := p.parseStatements(TokenRBrace)
	if !p.expect(TokenRBrace) {
		return nil
	}
	return &Fn{Tok: name, Args: args, Body: body}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

const (
	precLowest = iota
	precCompare
	precSum
	precProduct
)

func precedence(t TokenType) int {
	switch t {
	case TokenEqual, TokenLessThan, TokenGreaterThan:
		return precCompare
	case TokenPlus, TokenMinus:
		return precSum
	case TokenAsterisk, TokenSlash:
		return precProduct
	}
	return precLowest
}

// parseExpression parses a left-associative binary expression whose
// operators bind tighter than min.
func (p *Parser) parseExpression(min int) Node {
	lhs := p.parsePrimary()
	for lhs != nil && !p.failed() {
		op := p.curToken
		prec := precedence(op.Type)
		if prec <= min {
			break
		}
		if op.Type == TokenEqual && op.Text != "==" {
			p.errorf(op, "unexpected = in expression")
			return nil
		}
		p.nextToken()
		rhs := p.parseExpression(prec)
		if rhs == nil {
			return nil
		}
		lhs = &Bin{Tok: op, Lhs: lhs, Rhs: rhs}
	}
	return lhs
}

func (p *Parser) parsePrimary() Node {
	tok := p.curToken
	switch tok.Type {
	case TokenInteger, TokenDouble, TokenString, TokenTrue, TokenFalse:
		p.nextToken()
		return &Atom{Tok: tok}
	case TokenIdent:
		if p.peekTokenIs(TokenLParen) {
			return p.parseCall()
		}
		p.nextToken()
		return &Ident{Tok: tok}
	case TokenStd:
		return p.parsePath()
	case TokenLBracket:
		return p.parseArray()
	case TokenLBrace:
		return p.parseObject()
	case TokenLParen:
		p.nextToken()
		inner := p.parseExpression(precLowest)
		if inner == nil || !p.expect(TokenRParen) {
			return nil
		}
		return inner
	case TokenMatch:
		return p.parseMatch()
	case TokenEOF:
		p.errorf(tok, "unexpected end of input")
		return nil
	}
	p.errorf(tok, "unexpected %s", tok)
	return nil
}

// name(args)
func (p *Parser) parseCall() *Call {
	call := &Call{Tok: p.curToken}
	p.nextToken() // consume name
	p.nextToken() // consume (
	call.Args = p.parseExpressions(TokenRParen)
	if !p.expect(TokenRParen) {
		return nil
	}
	return call
}

// std::a::b::leaf(args)
func (p *Parser) parsePath() Node {
	path := &Path{Tok: p.curToken}
	p.nextToken() // consume std
	for {
		if !p.expect(TokenDoubleColon) {
			return nil
		}
		if !p.curTokenIs(TokenIdent) {
			p.errorf(p.curToken, "expected path segment, got %s", p.curToken)
			return nil
		}
		if p.peekTokenIs(TokenLParen) {
			path.Leaf = p.parseCall()
			if path.Leaf == nil {
				return nil
			}
			return path
		}
		path.Members = append(path.Members, &Ident{Tok: p.curToken})
		p.nextToken()
	}
}

// [members]
func (p *Parser) parseArray() Node {
	arr := &Array{Tok: p.curToken}
	p.nextToken() // consume [
	arr.Members = p.parseExpressions(TokenRBracket)
	if !p.expect(TokenRBracket) {
		return nil
	}
	return arr
}

// { key: value ... }
func (p *Parser) parseObject() Node {
	obj := &Object{Tok: p.curToken}
	p.nextToken() // consume {
	for !p.curTokenIs(TokenRBrace) && !p.failed() {
		key := p.parseExpression(precLowest)
		if key == nil || !p.expect(TokenColon) {
			return nil
		}
		value := p.parseExpression(precLowest)
		if value == nil {
			return nil
		}
		obj.Pairs = append(obj.Pairs, Pair{Key: key, Value: value})
	}
	if !p.expect(TokenRBrace) {
		return nil
	}
	return obj
}

// match { cond { body } ... { default } }
func (p *Parser) parseMatch() Node {
	m := &Match{Tok: p.curToken}
	p.nextToken() // consume match
	if !p.expect(TokenLBrace) {
		return nil
	}
	for !p.curTokenIs(TokenRBrace) && !p.failed() {
		if p.curTokenIs(TokenLBrace) {
			if m.Default != nil {
				p.errorf(p.curToken, "match has more than one default arm")
				return nil
			}
			m.Default = p.parseArm()
			if m.Default == nil {
				return nil
			}
			continue
		}
		if m.Default != nil {
			p.errorf(p.curToken, "default arm must be the last arm of a match")
			return nil
		}
		cond := p.parseExpression(precLowest)
		if cond == nil {
			return nil
		}
		body := p.parseArm()
		if body == nil {
			return nil
		}
		m.Cases = append(m.Cases, Case{Cond: cond, Body: body})
	}
	if !p.expect(TokenRBrace) {
		return nil
	}
	return m
}

// { statement }
func (p *Parser) parseArm() Node {
	if !p.expect(TokenLBrace) {
		return nil
	}
	body := p.parseStatement()
	if body == nil || !p.expect(TokenRBrace) {
		return nil
	}
	return body
}

// parseExpressions parses whitespace-separated expressions up to closing.
func (p *Parser) parseExpressions(closing TokenType) []Node {
	var nodes []Node
	for !p.curTokenIs(closing) && !p.curTokenIs(TokenEOF) && !p.failed() {
		n := p.parseExpression(precLowest)
		if n == nil {
			break
		}
		nodes = append(nodes, n)
	}
	return nodes
}
