package compiler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tliron/commonlog"

	"github.com/chazu/purplegarden/compiler/hash"
	"github.com/chazu/purplegarden/vm"
)

var log = commonlog.GetLogger("purplegarden.compiler")

// ErrFinalized is returned by Compile and Finalize once Finalize has run.
var ErrFinalized = errors.New("compiler: already finalized")

// ---------------------------------------------------------------------------
// Codegen: lower AST nodes to register bytecode
// ---------------------------------------------------------------------------

// Compiler lowers AST nodes into a single image. The first error poisons the
// compiler: every later Compile and Finalize returns it.
type Compiler struct {
	builder  *vm.Builder
	pool     *Pool
	regs     *RegisterAllocator
	builtins *vm.Registry

	funcs map[uint64]function
	calls []pendingCall
	names map[uint64]string

	hashName  func(string) uint64
	err       error
	finalized bool
}

// function is an entry of the function table.
type function struct {
	tok   Token
	entry int
	arity int
}

// pendingCall is a CALL whose target is patched at Finalize.
type pendingCall struct {
	pc    int
	tok   Token
	hash  uint64
	arity int
}

// NewCompiler creates a compiler resolving std paths through builtins; nil
// selects vm.StdBuiltins().
func NewCompiler(builtins *vm.Registry) *Compiler {
	if builtins == nil {
		builtins = vm.StdBuiltins()
	}
	return &Compiler{
		builder:  vm.NewBuilder(),
		pool:     NewPool(),
		regs:     NewRegisterAllocator(),
		builtins: builtins,
		funcs:    make(map[uint64]function),
		names:    make(map[uint64]string),
		hashName: hash.Name,
	}
}

// CompileProgram compiles nodes in order into an image using the standard
// builtins.
func CompileProgram(nodes []Node) (*vm.Image, error) {
	c := NewCompiler(nil)
	for _, n := range nodes {
		if err := c.Compile(n); err != nil {
			return nil, err
		}
	}
	return c.Finalize()
}

// CompileSource parses and compiles src using the standard builtins.
func CompileSource(src string) (*vm.Image, error) {
	nodes, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return CompileProgram(nodes)
}

// Compile lowers one top-level node. A value the node produces is discarded.
func (c *Compiler) Compile(n Node) (err error) {
	if c.finalized {
		return ErrFinalized
	}
	if c.err != nil {
		return c.err
	}
	defer func() {
		if r := recover(); r != nil {
			ierr, ok := r.(*InternalError)
			if !ok {
				panic(r)
			}
			c.err = ierr
			err = ierr
		}
	}()

	r, ok, err := c.lower(n)
	if err != nil {
		c.err = err
		return err
	}
	if ok {
		c.regs.Free(r)
	}
	return nil
}

// Finalize resolves calls, checks the register allocator and freezes the
// constant pool into the image's global table. It may only be called once.
func (c *Compiler) Finalize() (*vm.Image, error) {
	if c.finalized {
		return nil, ErrFinalized
	}
	c.finalized = true
	if c.err != nil {
		return nil, c.err
	}

	for _, call := range c.calls {
		f, ok := c.funcs[call.hash]
		if !ok {
			c.err = errorAt(call.tok, "unknown function %s", call.tok.Text)
			return nil, c.err
		}
		if f.arity != call.arity {
			c.err = errorAt(call.tok, "%s takes %d arguments, got %d", call.tok.Text, f.arity, call.arity)
			return nil, c.err
		}
		c.builder.SetTarget(call.pc, f.entry)
	}

	if err := c.regs.Close(); err != nil {
		if debugChecks {
			panic(err)
		}
		log.Warningf("%v", err)
	}

	img := &vm.Image{
		Code:    c.builder.Code(),
		Globals: c.pool.Finalize(),
		Names:   c.names,
	}
	log.Debugf("compiled %d instructions, %d globals, %d names",
		len(img.Code), len(img.Globals), len(img.Names))
	return img, nil
}

// name hashes an identifier, recording it for diagnostics. Two different
// names with the same digest cannot be told apart by the VM and are
// rejected.
func (c *Compiler) name(tok Token) (uint64, error) {
	h := c.hashName(tok.Text)
	if prev, ok := c.names[h]; ok && prev != tok.Text {
		return 0, errorAt(tok, "name %q collides with %q (hash 0x%016x)", tok.Text, prev, h)
	}
	c.names[h] = tok.Text
	return h, nil
}

// ---------------------------------------------------------------------------
// Node dispatch
// ---------------------------------------------------------------------------

// lower emits code for n. When ok is true the value is in reg, which the
// caller owns and must free.
func (c *Compiler) lower(n Node) (reg uint8, ok bool, err error) {
	switch n := n.(type) {
	case *Atom:
		return c.lowerAtom(n)
	case *Ident:
		h, err := c.name(n.Tok)
		if err != nil {
			return 0, false, err
		}
		r := c.regs.Alloc()
		c.builder.LoadByHash(r, h)
		return r, true, nil
	case *Bin:
		return c.lowerBin(n)
	case *Array:
		return c.lowerArray(n)
	case *Object:
		return c.lowerObject(n)
	case *Let:
		return 0, false, c.lowerLet(n)
	case *Fn:
		return 0, false, c.lowerFn(n)
	case *Match:
		return c.lowerMatch(n)
	case *Call:
		return c.lowerCall(n)
	case *Path:
		return c.lowerPath(n)
	case nil:
		return 0, false, &InternalError{Msg: "nil node"}
	}
	return 0, false, &InternalError{Msg: fmt.Sprintf("unknown node type %T", n)}
}

// value lowers n and requires it to produce a value.
func (c *Compiler) value(n Node, what string) (uint8, error) {
	r, ok, err := c.lower(n)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errorAt(n.Token(), "%s does not produce a value", what)
	}
	return r, nil
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

func (c *Compiler) lowerAtom(n *Atom) (uint8, bool, error) {
	switch n.Tok.Type {
	case TokenInteger:
		v, err := strconv.ParseInt(n.Tok.Text, 10, 64)
		if err != nil {
			return 0, false, errorAt(n.Tok, "invalid integer literal %q", n.Tok.Text)
		}
		r := c.regs.Alloc()
		c.builder.LoadImmediate(r, v)
		return r, true, nil

	case TokenDouble:
		f, err := strconv.ParseFloat(n.Tok.Text, 64)
		if err != nil {
			return 0, false, errorAt(n.Tok, "invalid double literal %q", n.Tok.Text)
		}
		return c.loadGlobal(c.pool.Intern(Double(f))), true, nil

	case TokenString:
		return c.loadGlobal(c.pool.Intern(Str(n.Tok.Text))), true, nil

	case TokenTrue:
		return c.loadGlobal(TrueIndex), true, nil

	case TokenFalse:
		return c.loadGlobal(FalseIndex), true, nil
	}
	return 0, false, errorAt(n.Tok, "unexpected %s in atom", n.Tok.Type)
}

func (c *Compiler) loadGlobal(idx uint32) uint8 {
	r := c.regs.Alloc()
	c.builder.LoadGlobal(r, idx)
	return r
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binOps = map[TokenType]vm.Opcode{
	TokenPlus:        vm.OpAdd,
	TokenMinus:       vm.OpSub,
	TokenAsterisk:    vm.OpMul,
	TokenSlash:       vm.OpDiv,
	TokenEqual:       vm.OpEq,
	TokenLessThan:    vm.OpLt,
	TokenGreaterThan: vm.OpGt,
}

func (c *Compiler) lowerBin(n *Bin) (uint8, bool, error) {
	op, ok := binOps[n.Tok.Type]
	if !ok {
		return 0, false, errorAt(n.Tok, "unsupported binary operator %s", n.Tok.Type)
	}
	lhs, err := c.value(n.Lhs, "left operand")
	if err != nil {
		return 0, false, err
	}
	rhs, err := c.value(n.Rhs, "right operand")
	if err != nil {
		return 0, false, err
	}
	dst := c.regs.Alloc()
	c.builder.Arith(op, dst, lhs, rhs)
	c.regs.Free(lhs)
	c.regs.Free(rhs)
	return dst, true, nil
}

func (c *Compiler) lowerArray(n *Array) (uint8, bool, error) {
	dst := c.regs.Alloc()
	c.builder.New(dst, uint32(len(n.Members)), vm.NewArray)
	for _, m := range n.Members {
		r, err := c.value(m, "array member")
		if err != nil {
			return 0, false, err
		}
		c.builder.Append(dst, r)
		c.regs.Free(r)
	}
	return dst, true, nil
}

func (c *Compiler) lowerObject(n *Object) (uint8, bool, error) {
	dst := c.regs.Alloc()
	c.builder.New(dst, uint32(len(n.Pairs)), vm.NewObject)
	for _, p := range n.Pairs {
		k, err := c.value(p.Key, "object key")
		if err != nil {
			return 0, false, err
		}
		v, err := c.value(p.Value, "object value")
		if err != nil {
			return 0, false, err
		}
		c.builder.Append(dst, k)
		c.builder.Append(dst, v)
		c.regs.Free(k)
		c.regs.Free(v)
	}
	return dst, true, nil
}

func (c *Compiler) lowerLet(n *Let) error {
	h, err := c.name(n.Tok)
	if err != nil {
		return err
	}
	r, err := c.value(n.Rhs, "right-hand side of let")
	if err != nil {
		return err
	}
	c.builder.Let(h, r)
	c.regs.Free(r)
	return nil
}
