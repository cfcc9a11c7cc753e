package compiler

import (
	"testing"

	"github.com/chazu/purplegarden/vm"
)

var fuzzSeeds = []string{
	// Tokens
	`( ) [ ] { } + - * / < > ! :: : = ==`,
	`42`, `-5`, `3.14`, `-0.5`, `"hola"`, `""`, `"unterminated`,
	`true`, `false`, `let`, `fn`, `match`, `std`, `for`,
	// Expressions
	`a + b * c`, `(1 + 2) * 3`, `a == b`, `[1 2 [3]]`, `{ "k": 1 }`,
	`square(25 5)`, `std::println("x")`, `std::runtime::gc::cycle()`,
	// Statements
	`let x = 1`, "fn f(a) { a }\nf(1)", `match { a { 1 } { 2 } }`,
	// Comments and whitespace
	"// comment\n1", "   ", "\t\n\r",
	// Edge cases
	``, `(`, `)`, `[`, `{`, `}`, `::`, `std::`, `fn`, `let x`, `match {`,
	`f(`, `1 +`, `{ 1 }`, `café`, `@`,
}

// ---------------------------------------------------------------------------
// FuzzLexer: ensure the lexer never panics on arbitrary input.
// ---------------------------------------------------------------------------

func FuzzLexer(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		l := NewLexer(data)
		for i := 0; i < len(data)+10; i++ {
			tok, err := l.NextToken()
			if err != nil || tok.Type == TokenEOF {
				return
			}
		}
		t.Fatalf("lexer did not reach EOF on %q", data)
	})
}

// ---------------------------------------------------------------------------
// FuzzCompile: parse and compile arbitrary input. Errors are acceptable;
// panics are not, and a successful compile must not leak registers.
// ---------------------------------------------------------------------------

func FuzzCompile(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		nodes, err := Parse(data)
		if err != nil {
			return
		}
		c := NewCompiler(nil)
		for _, n := range nodes {
			if err := c.Compile(n); err != nil {
				return
			}
		}
		if c.regs.Outstanding() != 0 {
			t.Fatalf("%d registers outstanding after compiling %q", c.regs.Outstanding(), data)
		}
		img, err := c.Finalize()
		if err != nil {
			return
		}
		_ = vm.Disassemble(img, nil)
	})
}
