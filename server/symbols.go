package server

import (
	"github.com/chazu/purplegarden/compiler"
)

type symbolKind int

const (
	symbolFn symbolKind = iota
	symbolLet
	symbolParam
)

// symbol is a name introduced by a document.
type symbol struct {
	name   string
	kind   symbolKind
	tok    compiler.Token
	params []string // fn only
}

// indexSymbols scans the document's tokens for fn and let definitions. It
// works on the token stream instead of the AST so that a document with a
// parse error still yields the definitions before it.
func indexSymbols(text string) []symbol {
	toks, _ := compiler.Tokenize(text)
	var syms []symbol
	for i := 0; i+1 < len(toks); i++ {
		name := toks[i+1]
		if name.Type != compiler.TokenIdent {
			continue
		}
		switch toks[i].Type {
		case compiler.TokenLet:
			syms = append(syms, symbol{name: name.Text, kind: symbolLet, tok: name})
		case compiler.TokenFn:
			fn := symbol{name: name.Text, kind: symbolFn, tok: name}
			var params []symbol
			if j := i + 2; j < len(toks) && toks[j].Type == compiler.TokenLParen {
				for j++; j < len(toks) && toks[j].Type == compiler.TokenIdent; j++ {
					fn.params = append(fn.params, toks[j].Text)
					params = append(params, symbol{name: toks[j].Text, kind: symbolParam, tok: toks[j]})
				}
			}
			syms = append(syms, fn)
			syms = append(syms, params...)
		}
	}
	return syms
}

// lookupSymbol returns the first definition of name.
func lookupSymbol(text, name string) (symbol, bool) {
	for _, sym := range indexSymbols(text) {
		if sym.name == name {
			return sym, true
		}
	}
	return symbol{}, false
}

// identTokens returns every identifier token named name.
func identTokens(text, name string) []compiler.Token {
	toks, _ := compiler.Tokenize(text)
	var out []compiler.Token
	for _, t := range toks {
		if t.Type == compiler.TokenIdent && t.Text == name {
			out = append(out, t)
		}
	}
	return out
}
