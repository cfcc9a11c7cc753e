package compiler

import (
	"github.com/chazu/purplegarden/vm"
)

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// lowerFn emits the function body out of line:
//
//	    JMP end
//	entry:
//	    LET arg_i, r_i      ; arguments arrive in r0..
//	    ...body...
//	    MOV r0, <last value>
//	    RET 1
//	end:
func (c *Compiler) lowerFn(n *Fn) error {
	h, err := c.name(n.Tok)
	if err != nil {
		return err
	}
	if prev, ok := c.funcs[h]; ok {
		return errorAt(n.Tok, "function %s already defined at l:%d", n.Tok.Text, prev.tok.Line)
	}
	if len(n.Args) > vm.RegisterCount {
		return errorAt(n.Tok, "function %s has %d parameters, at most %d are supported",
			n.Tok.Text, len(n.Args), vm.RegisterCount)
	}

	end := c.builder.NewLabel()
	c.builder.Jmp(end)
	c.funcs[h] = function{tok: n.Tok, entry: c.builder.PC(), arity: len(n.Args)}

	for i, arg := range n.Args {
		ah, err := c.name(arg.Tok)
		if err != nil {
			return err
		}
		c.builder.Let(ah, uint8(i))
	}

	produced := false
	for i, stmt := range n.Body {
		r, ok, err := c.lower(stmt)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if i == len(n.Body)-1 {
			if r != 0 {
				c.builder.Mov(0, r)
			}
			produced = true
		}
		c.regs.Free(r)
	}
	if !produced {
		c.builder.LoadGlobal(0, FalseIndex)
	}
	c.builder.Ret(1)
	c.builder.Mark(end)
	return nil
}

// ---------------------------------------------------------------------------
// Match
// ---------------------------------------------------------------------------

// lowerMatch tests each case in order; the first condition that is not
// false selects its body. Without a matching case the default arm, or false,
// is the result.
func (c *Compiler) lowerMatch(n *Match) (uint8, bool, error) {
	dst := c.regs.Alloc()
	end := c.builder.NewLabel()

	for _, cs := range n.Cases {
		cond, err := c.value(cs.Cond, "match condition")
		if err != nil {
			return 0, false, err
		}
		next := c.builder.NewLabel()
		c.builder.JmpIfFalse(cond, next)
		c.regs.Free(cond)
		if err := c.lowerArm(dst, cs.Body); err != nil {
			return 0, false, err
		}
		c.builder.Jmp(end)
		c.builder.Mark(next)
	}

	if err := c.lowerArm(dst, n.Default); err != nil {
		return 0, false, err
	}
	c.builder.Mark(end)
	return dst, true, nil
}

// lowerArm evaluates body into dst; a missing or statement-like body yields
// false.
func (c *Compiler) lowerArm(dst uint8, body Node) error {
	if body == nil {
		c.builder.LoadGlobal(dst, FalseIndex)
		return nil
	}
	r, ok, err := c.lower(body)
	if err != nil {
		return err
	}
	if !ok {
		c.builder.LoadGlobal(dst, FalseIndex)
		return nil
	}
	c.builder.Mov(dst, r)
	c.regs.Free(r)
	return nil
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// args reserves a contiguous window and moves each argument into it. The
// window is at least one register wide since the result is written to its
// first register. Only the first register stays allocated on return.
func (c *Compiler) args(args []Node, tok Token) (start uint8, err error) {
	if len(args) > vm.RegisterCount {
		return 0, errorAt(tok, "%d arguments, at most %d are supported", len(args), vm.RegisterCount)
	}
	width := max(1, len(args))
	start = c.regs.AllocRange(width)
	for i, a := range args {
		r, err := c.value(a, "argument")
		if err != nil {
			return 0, err
		}
		c.builder.Mov(start+uint8(i), r)
		c.regs.Free(r)
	}
	for i := width - 1; i >= 1; i-- {
		c.regs.Free(start + uint8(i))
	}
	return start, nil
}

// lowerCall emits CALL with a placeholder target resolved at Finalize, so a
// function may be called before its definition.
func (c *Compiler) lowerCall(n *Call) (uint8, bool, error) {
	h, err := c.name(n.Tok)
	if err != nil {
		return 0, false, err
	}
	w, err := c.args(n.Args, n.Tok)
	if err != nil {
		return 0, false, err
	}
	pc := c.builder.Call(0, w, uint8(len(n.Args)))
	c.calls = append(c.calls, pendingCall{pc: pc, tok: n.Tok, hash: h, arity: len(n.Args)})
	return w, true, nil
}

// lowerPath resolves a std path to a builtin and emits SYS.
func (c *Compiler) lowerPath(n *Path) (uint8, bool, error) {
	if n.Leaf == nil {
		return 0, false, errorAt(n.Tok, "path has no call")
	}
	name := n.Name()
	b, ok := c.builtins.Resolve(name)
	if !ok {
		return 0, false, errorAt(n.Leaf.Tok, "unknown builtin %s", name)
	}
	if b.Arity != vm.Variadic && b.Arity != len(n.Leaf.Args) {
		return 0, false, errorAt(n.Leaf.Tok, "%s takes %d arguments, got %d", name, b.Arity, len(n.Leaf.Args))
	}
	w, err := c.args(n.Leaf.Args, n.Leaf.Tok)
	if err != nil {
		return 0, false, err
	}
	c.builder.Sys(b.ID, w, uint8(len(n.Leaf.Args)))
	return w, true, nil
}
