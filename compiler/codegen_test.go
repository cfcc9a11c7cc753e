package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/purplegarden/compiler/hash"
	"github.com/chazu/purplegarden/vm"
)

func tok(t TokenType, text string) Token {
	return Token{Type: t, Text: text, Line: 1, Col: 1}
}

func intAtom(s string) *Atom { return &Atom{Tok: tok(TokenInteger, s)} }
func strAtom(s string) *Atom { return &Atom{Tok: tok(TokenString, s)} }
func ident(s string) *Ident  { return &Ident{Tok: tok(TokenIdent, s)} }

func compileNodes(t *testing.T, nodes ...Node) *vm.Image {
	t.Helper()
	img, err := CompileProgram(nodes)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return img
}

func compileSource(t *testing.T, src string) *vm.Image {
	t.Helper()
	img, err := CompileSource(src)
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	return img
}

func assertCode(t *testing.T, got []vm.Op, want []vm.Op) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d instructions, want %d:\n%s", len(got), len(want),
			vm.Disassemble(&vm.Image{Code: got}, nil))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("op %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func compileError(t *testing.T, err error) *Error {
	t.Helper()
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *compiler.Error", err)
	}
	return cerr
}

// ---------------------------------------------------------------------------
// Atoms
// ---------------------------------------------------------------------------

func TestCompileInteger(t *testing.T) {
	img := compileNodes(t, intAtom("25"))
	assertCode(t, img.Code, []vm.Op{{Code: vm.OpLoadI, Dst: 0, Imm: 25}})
	if len(img.Globals) != 2 {
		t.Errorf("globals = %v, want only false/true", img.Globals)
	}
}

func TestCompileIntegerInvalid(t *testing.T) {
	for _, text := range []string{"abc", "99999999999999999999"} {
		_, err := CompileProgram([]Node{&Atom{Tok: Token{Type: TokenInteger, Text: text, Line: 2, Col: 4}}})
		cerr := compileError(t, err)
		if cerr.Line != 2 || cerr.Start != 4 || cerr.End != 4+len(text) {
			t.Errorf("%q: located at %d:%d-%d", text, cerr.Line, cerr.Start, cerr.End)
		}
	}
}

func TestCompileBooleans(t *testing.T) {
	img := compileNodes(t, &Atom{Tok: tok(TokenTrue, "")}, &Atom{Tok: tok(TokenFalse, "")})
	assertCode(t, img.Code, []vm.Op{
		{Code: vm.OpLoadGlobal, Dst: 0, Idx: 1},
		{Code: vm.OpLoadGlobal, Dst: 0, Idx: 0},
	})
	if len(img.Globals) != 2 {
		t.Errorf("booleans were re-interned: %v", img.Globals)
	}
}

func TestCompileStringInternedOnce(t *testing.T) {
	img := compileNodes(t, strAtom("hola"), strAtom("hola"))
	assertCode(t, img.Code, []vm.Op{
		{Code: vm.OpLoadGlobal, Dst: 0, Idx: 2},
		{Code: vm.OpLoadGlobal, Dst: 0, Idx: 2},
	})
	if len(img.Globals) != 3 || img.Globals[2] != vm.FromStr("hola") {
		t.Errorf("globals = %v", img.Globals)
	}
}

func TestCompileDouble(t *testing.T) {
	img := compileNodes(t, &Atom{Tok: tok(TokenDouble, "3.1415")})
	assertCode(t, img.Code, []vm.Op{{Code: vm.OpLoadGlobal, Dst: 0, Idx: 2}})
	if img.Globals[2] != vm.FromDouble(3.1415) {
		t.Errorf("global[2] = %v", img.Globals[2])
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func TestCompileBinary(t *testing.T) {
	c := NewCompiler(nil)
	if err := c.Compile(&Bin{Tok: tok(TokenPlus, ""), Lhs: ident("a"), Rhs: ident("b")}); err != nil {
		t.Fatal(err)
	}
	if !c.regs.IsFree(0) || !c.regs.IsFree(1) {
		t.Error("operand registers not freed")
	}
	img, err := c.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	assertCode(t, img.Code, []vm.Op{
		{Code: vm.OpLoadByHash, Dst: 0, Hash: hash.Name("a")},
		{Code: vm.OpLoadByHash, Dst: 1, Hash: hash.Name("b")},
		{Code: vm.OpAdd, Dst: 2, Lhs: 0, Rhs: 1},
	})
	if img.Names[hash.Name("a")] != "a" || img.Names[hash.Name("b")] != "b" {
		t.Errorf("Names = %v", img.Names)
	}
}

func TestCompileBinaryOperators(t *testing.T) {
	ops := map[TokenType]vm.Opcode{
		TokenPlus:        vm.OpAdd,
		TokenMinus:       vm.OpSub,
		TokenAsterisk:    vm.OpMul,
		TokenSlash:       vm.OpDiv,
		TokenEqual:       vm.OpEq,
		TokenLessThan:    vm.OpLt,
		TokenGreaterThan: vm.OpGt,
	}
	for tt, want := range ops {
		img := compileNodes(t, &Bin{Tok: tok(tt, ""), Lhs: intAtom("1"), Rhs: intAtom("2")})
		if got := img.Code[2].Code; got != want {
			t.Errorf("%s compiled to %s, want %s", tt, got, want)
		}
	}
}

func TestCompileBinaryUnsupported(t *testing.T) {
	_, err := CompileProgram([]Node{&Bin{Tok: Token{Type: TokenExclaim, Line: 3, Col: 7}, Lhs: intAtom("1"), Rhs: intAtom("2")}})
	cerr := compileError(t, err)
	if cerr.Error() != "err: unsupported binary operator ! at l:3:7-8" {
		t.Errorf("err = %q", cerr.Error())
	}
}

func TestCompileStatementOperand(t *testing.T) {
	_, err := CompileProgram([]Node{
		&Bin{Tok: tok(TokenPlus, ""), Lhs: &Let{Tok: tok(TokenIdent, "x"), Rhs: intAtom("1")}, Rhs: intAtom("2")},
	})
	if cerr := compileError(t, err); !strings.Contains(cerr.Msg, "does not produce a value") {
		t.Errorf("err = %q", cerr.Msg)
	}
}

func TestCompileArray(t *testing.T) {
	img := compileNodes(t, &Array{Tok: tok(TokenLBracket, ""), Members: []Node{intAtom("1"), strAtom("x")}})
	assertCode(t, img.Code, []vm.Op{
		{Code: vm.OpNew, Dst: 0, Size: 2, Kind: vm.NewArray},
		{Code: vm.OpLoadI, Dst: 1, Imm: 1},
		{Code: vm.OpAppend, Dst: 0, Src: 1},
		{Code: vm.OpLoadGlobal, Dst: 1, Idx: 2},
		{Code: vm.OpAppend, Dst: 0, Src: 1},
	})
}

func TestCompileObject(t *testing.T) {
	img := compileNodes(t, &Object{Tok: tok(TokenLBrace, ""), Pairs: []Pair{{Key: strAtom("k"), Value: intAtom("9")}}})
	assertCode(t, img.Code, []vm.Op{
		{Code: vm.OpNew, Dst: 0, Size: 1, Kind: vm.NewObject},
		{Code: vm.OpLoadGlobal, Dst: 1, Idx: 2},
		{Code: vm.OpLoadI, Dst: 2, Imm: 9},
		{Code: vm.OpAppend, Dst: 0, Src: 1},
		{Code: vm.OpAppend, Dst: 0, Src: 2},
	})
}

func TestCompileLet(t *testing.T) {
	c := NewCompiler(nil)
	if err := c.Compile(&Let{Tok: tok(TokenIdent, "x"), Rhs: intAtom("5")}); err != nil {
		t.Fatal(err)
	}
	if c.regs.Outstanding() != 0 {
		t.Errorf("Outstanding = %d after let", c.regs.Outstanding())
	}
	img, err := c.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	assertCode(t, img.Code, []vm.Op{
		{Code: vm.OpLoadI, Dst: 0, Imm: 5},
		{Code: vm.OpLet, Hash: hash.Name("x"), Src: 0},
	})
}

// ---------------------------------------------------------------------------
// Control flow and calls
// ---------------------------------------------------------------------------

func TestCompileFn(t *testing.T) {
	img := compileSource(t, "fn square(a) { a * a }\nsquare(5)")
	ha := hash.Name("a")
	assertCode(t, img.Code, []vm.Op{
		{Code: vm.OpJmp, Target: 7},
		{Code: vm.OpLet, Hash: ha, Src: 0},
		{Code: vm.OpLoadByHash, Dst: 0, Hash: ha},
		{Code: vm.OpLoadByHash, Dst: 1, Hash: ha},
		{Code: vm.OpMul, Dst: 2, Lhs: 0, Rhs: 1},
		{Code: vm.OpMov, Dst: 0, Src: 2},
		{Code: vm.OpRet, Times: 1},
		{Code: vm.OpLoadI, Dst: 1, Imm: 5},
		{Code: vm.OpMov, Dst: 2, Src: 1},
		{Code: vm.OpCall, Target: 1, ArgsStart: 2, ArgsLen: 1},
	})
}

func TestCompileFnEmptyBody(t *testing.T) {
	img := compileSource(t, "fn nothing() { let x = 1 }")
	assertCode(t, img.Code, []vm.Op{
		{Code: vm.OpJmp, Target: 5},
		{Code: vm.OpLoadI, Dst: 0, Imm: 1},
		{Code: vm.OpLet, Hash: hash.Name("x"), Src: 0},
		{Code: vm.OpLoadGlobal, Dst: 0, Idx: 0},
		{Code: vm.OpRet, Times: 1},
	})
}

func TestCompileForwardCall(t *testing.T) {
	img := compileSource(t, "later()\nfn later() { 1 }")
	if img.Code[0].Code != vm.OpCall || img.Code[0].Target != 2 {
		t.Errorf("forward call = %s, want CALL 0002", img.Code[0])
	}
}

func TestCompileCallErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"missing(1)", "err: unknown function missing at l:1:1-8"},
		{"fn f(a b) { a }\nf(1)", "err: f takes 2 arguments, got 1 at l:2:1-2"},
		{"fn f() { 1 }\nfn f() { 2 }", "err: function f already defined at l:1 at l:2:4-5"},
		{"std::nope()", "err: unknown builtin std::nope at l:1:6-10"},
		{"std::len(1 2)", "err: std::len takes 1 arguments, got 2 at l:1:6-9"},
	}
	for _, tt := range tests {
		_, err := CompileSource(tt.src)
		if got := compileError(t, err).Error(); got != tt.want {
			t.Errorf("%q: %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestCompileCallWindow(t *testing.T) {
	img := compileSource(t, "fn add(a b) { a + b }\nlet y = 2\nlet z = add(1 y)")
	var call vm.Op
	for _, op := range img.Code {
		if op.Code == vm.OpCall {
			call = op
		}
	}
	if call.ArgsLen != 2 || call.ArgsStart != 0 {
		t.Errorf("CALL = %s, want window r0, 2", call)
	}
	last := img.Code[len(img.Code)-1]
	if last.Code != vm.OpLet || last.Src != call.ArgsStart {
		t.Errorf("result not taken from window start: %s", last)
	}
}

func TestCompilePath(t *testing.T) {
	reg := vm.StdBuiltins()
	pl, _ := reg.Resolve("std::println")
	c := NewCompiler(reg)
	nodes, err := Parse(`std::println("a" 1)`)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Compile(nodes[0]); err != nil {
		t.Fatal(err)
	}
	img, err := c.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	assertCode(t, img.Code, []vm.Op{
		{Code: vm.OpLoadGlobal, Dst: 2, Idx: 2},
		{Code: vm.OpMov, Dst: 0, Src: 2},
		{Code: vm.OpLoadI, Dst: 2, Imm: 1},
		{Code: vm.OpMov, Dst: 1, Src: 2},
		{Code: vm.OpSys, Builtin: pl.ID, ArgsStart: 0, ArgsLen: 2},
	})
}

func TestCompileMatch(t *testing.T) {
	img := compileSource(t, `match { x { 1 } { 2 } }`)
	assertCode(t, img.Code, []vm.Op{
		{Code: vm.OpLoadByHash, Dst: 1, Hash: hash.Name("x")},
		{Code: vm.OpJmpIfFalse, Src: 1, Target: 5},
		{Code: vm.OpLoadI, Dst: 1, Imm: 1},
		{Code: vm.OpMov, Dst: 0, Src: 1},
		{Code: vm.OpJmp, Target: 7},
		{Code: vm.OpLoadI, Dst: 1, Imm: 2},
		{Code: vm.OpMov, Dst: 0, Src: 1},
	})
}

func TestCompileMatchNoDefault(t *testing.T) {
	img := compileSource(t, `match { x { 1 } }`)
	last := img.Code[len(img.Code)-1]
	if last != (vm.Op{Code: vm.OpLoadGlobal, Dst: 0, Idx: 0}) {
		t.Errorf("fallthrough = %s, want LOADG r0, global[0]", last)
	}
}

// ---------------------------------------------------------------------------
// Compiler lifecycle
// ---------------------------------------------------------------------------

func TestCompilerPoisoned(t *testing.T) {
	c := NewCompiler(nil)
	first := c.Compile(&Atom{Tok: tok(TokenInteger, "x")})
	if first == nil {
		t.Fatal("expected error")
	}
	if err := c.Compile(intAtom("1")); err != first {
		t.Errorf("Compile after error = %v, want %v", err, first)
	}
	if img, err := c.Finalize(); img != nil || err != first {
		t.Errorf("Finalize = %v, %v; want nil, %v", img, err, first)
	}
}

func TestFinalizeTwice(t *testing.T) {
	c := NewCompiler(nil)
	if _, err := c.Finalize(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Finalize(); !errors.Is(err, ErrFinalized) {
		t.Errorf("second Finalize = %v, want ErrFinalized", err)
	}
	if err := c.Compile(intAtom("1")); !errors.Is(err, ErrFinalized) {
		t.Errorf("Compile after Finalize = %v, want ErrFinalized", err)
	}
}

func TestRegisterExhaustionIsInternalError(t *testing.T) {
	var n Node = intAtom("1")
	for i := 0; i < vm.RegisterCount; i++ {
		n = &Bin{Tok: tok(TokenPlus, ""), Lhs: intAtom("1"), Rhs: n}
	}
	c := NewCompiler(nil)
	err := c.Compile(n)
	var ierr *InternalError
	if !errors.As(err, &ierr) {
		t.Fatalf("err = %v, want *InternalError", err)
	}
	if _, ferr := c.Finalize(); ferr != err {
		t.Errorf("Finalize = %v, want %v", ferr, err)
	}
}

func TestHashCollisionDetected(t *testing.T) {
	c := NewCompiler(nil)
	c.hashName = func(string) uint64 { return 42 }
	if err := c.Compile(&Let{Tok: tok(TokenIdent, "a"), Rhs: intAtom("1")}); err != nil {
		t.Fatal(err)
	}
	if err := c.Compile(&Let{Tok: tok(TokenIdent, "a"), Rhs: intAtom("2")}); err != nil {
		t.Fatalf("same name twice: %v", err)
	}
	err := c.Compile(ident("b"))
	cerr := compileError(t, err)
	if !strings.Contains(cerr.Msg, `"b" collides with "a"`) {
		t.Errorf("err = %q", cerr.Msg)
	}
}
