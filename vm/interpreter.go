package vm

import (
	"fmt"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Main interpreter loop
// ---------------------------------------------------------------------------

// Run executes from the current pc until the program falls off the end of
// the code or a fatal condition halts it.
func (m *VM) Run() error {
	tracing := m.trace && log.AllowLevel(commonlog.Debug)
	for m.pc < len(m.code) {
		if tracing {
			log.Debugf("%04d: %s", m.pc, m.code[m.pc].format(m.names, m.builtins))
		}
		if err := m.exec(m.code[m.pc]); err != nil {
			return m.fault(err)
		}
	}
	return nil
}

// Step executes a single instruction. It reports false once the program has
// finished.
func (m *VM) Step() (bool, error) {
	if m.pc >= len(m.code) {
		return false, nil
	}
	if err := m.exec(m.code[m.pc]); err != nil {
		return false, m.fault(err)
	}
	return m.pc < len(m.code), nil
}

// fault wraps err with the current pc and instruction.
func (m *VM) fault(err error) error {
	rerr := &RuntimeError{PC: m.pc, Err: err}
	if m.pc >= 0 && m.pc < len(m.code) {
		rerr.Op = m.code[m.pc]
		switch rerr.Op.Code {
		case OpLoadByHash, OpLet:
			rerr.Name = m.names[rerr.Op.Hash]
		}
	}
	return rerr
}

// read returns the occupied register r.
func (m *VM) read(r uint8) (Value, error) {
	if int(r) >= RegisterCount {
		return Empty, ErrRegisterRange
	}
	v := m.registers[r]
	if v.IsEmpty() {
		return Empty, fmt.Errorf("%w r%d", ErrEmptyRegister, r)
	}
	return v, nil
}

func (m *VM) write(r uint8, v Value) error {
	if int(r) >= RegisterCount {
		return ErrRegisterRange
	}
	m.registers[r] = v
	return nil
}

// window validates an argument window and returns it as a view of the
// register file.
func (m *VM) window(start, n uint8) ([]Value, error) {
	if int(start)+int(n) > RegisterCount || (n == 0 && int(start) >= RegisterCount) {
		return nil, ErrRegisterRange
	}
	return m.registers[start : int(start)+int(n)], nil
}

func (m *VM) jumpTo(target int) error {
	if target < 0 || target > len(m.code) {
		return fmt.Errorf("%w: %d", ErrBadJump, target)
	}
	m.pc = target
	return nil
}

// exec executes op at m.pc and advances the pc.
func (m *VM) exec(op Op) error {
	if m.profiler != nil {
		m.profiler.recordOp(op.Code)
	}
	switch op.Code {
	case OpAdd, OpSub, OpMul, OpDiv, OpEq, OpLt, OpGt:
		lhs, err := m.read(op.Lhs)
		if err != nil {
			return err
		}
		rhs, err := m.read(op.Rhs)
		if err != nil {
			return err
		}
		res, err := arith(op.Code, lhs, rhs)
		if err != nil {
			return err
		}
		if err := m.write(op.Dst, res); err != nil {
			return err
		}

	case OpMov:
		v, err := m.read(op.Src)
		if err != nil {
			return err
		}
		if err := m.write(op.Dst, v); err != nil {
			return err
		}

	case OpLoadI:
		if err := m.write(op.Dst, FromInt(op.Imm)); err != nil {
			return err
		}

	case OpLoadGlobal:
		if int(op.Idx) >= len(m.globals) {
			return fmt.Errorf("%w: %d (len=%d)", ErrGlobalRange, op.Idx, len(m.globals))
		}
		if err := m.write(op.Dst, m.globals[op.Idx]); err != nil {
			return err
		}

	case OpLoadByHash:
		v, ok := m.Lookup(op.Hash)
		if !ok {
			return ErrUnresolvedName
		}
		if err := m.write(op.Dst, v); err != nil {
			return err
		}

	case OpLet:
		v, err := m.read(op.Src)
		if err != nil {
			return err
		}
		m.frames[len(m.frames)-1].Bind(op.Hash, v)

	case OpNew:
		if int(op.Dst) >= RegisterCount {
			return ErrRegisterRange
		}
		kind := KindArr
		if op.Kind == NewObject {
			kind = KindObj
		}
		m.registers[op.Dst] = m.alloc(kind, int(op.Size))

	case OpAppend:
		container, err := m.read(op.Dst)
		if err != nil {
			return err
		}
		v, err := m.read(op.Src)
		if err != nil {
			return err
		}
		if err := m.heap.Append(container, v); err != nil {
			return err
		}

	case OpLen:
		v, err := m.read(op.Src)
		if err != nil {
			return err
		}
		n, err := m.length(v)
		if err != nil {
			return err
		}
		if err := m.write(op.Dst, FromInt(int64(n))); err != nil {
			return err
		}

	case OpIndex:
		container, err := m.read(op.Lhs)
		if err != nil {
			return err
		}
		idx, err := m.read(op.Rhs)
		if err != nil {
			return err
		}
		v, err := m.index(container, idx)
		if err != nil {
			return err
		}
		if err := m.write(op.Dst, v); err != nil {
			return err
		}

	case OpJmp:
		return m.jumpTo(op.Target)

	case OpJmpIfFalse:
		cond, err := m.read(op.Src)
		if err != nil {
			return err
		}
		if cond.Kind() == KindFalse {
			return m.jumpTo(op.Target)
		}

	case OpCall:
		return m.call(op)

	case OpRet:
		return m.ret(op.Times)

	case OpSys:
		return m.sys(op)

	default:
		return fmt.Errorf("%w 0x%02x", ErrUnknownOpcode, byte(op.Code))
	}
	m.pc++
	return nil
}

// ---------------------------------------------------------------------------
// Call protocol
// ---------------------------------------------------------------------------

// call pushes a frame that saves the caller's registers, copies the argument
// window into r0.. and transfers control to the callee.
func (m *VM) call(op Op) error {
	args, err := m.window(op.ArgsStart, op.ArgsLen)
	if err != nil {
		return err
	}
	if op.Target < 0 || op.Target >= len(m.code) {
		return fmt.Errorf("%w: %d", ErrBadJump, op.Target)
	}
	if len(m.frames) >= m.maxFrames {
		return ErrStackOverflow
	}
	f := newFrame()
	f.returnTo = m.pc + 1
	f.resultReg = op.ArgsStart
	f.saved = m.registers
	m.frames = append(m.frames, f)
	if m.profiler != nil {
		m.profiler.recordCall(op.Target)
	}

	var tmp [RegisterCount]Value
	n := copy(tmp[:], args)
	copy(m.registers[:n], tmp[:n])
	m.pc = op.Target
	return nil
}

// ret pops times frames. The callee's r0 is the result; each popped frame
// restores its caller's registers and delivers the result into the register
// that opened its argument window.
func (m *VM) ret(times uint8) error {
	if times == 0 {
		m.pc++
		return nil
	}
	if int(times) >= len(m.frames) {
		return fmt.Errorf("%w: ret %d with depth %d", ErrStackUnderflow, times, len(m.frames))
	}
	result := m.registers[0]
	if result.IsEmpty() {
		result = False
	}
	for i := uint8(0); i < times; i++ {
		f := m.frames[len(m.frames)-1]
		m.frames[len(m.frames)-1] = nil
		m.frames = m.frames[:len(m.frames)-1]
		m.registers = f.saved
		m.registers[f.resultReg] = result
		m.pc = f.returnTo
	}
	return nil
}

// sys runs a builtin synchronously over the argument window.
func (m *VM) sys(op Op) error {
	b, ok := m.builtins.Lookup(op.Builtin)
	if !ok {
		return fmt.Errorf("%w 0x%x", ErrUnknownBuiltin, uint16(op.Builtin))
	}
	if b.Arity != Variadic && int(op.ArgsLen) != b.Arity {
		return fmt.Errorf("%w: %s takes %d, got %d", ErrArity, b.Name, b.Arity, op.ArgsLen)
	}
	args, err := m.window(op.ArgsStart, op.ArgsLen)
	if err != nil {
		return err
	}
	for i, a := range args {
		if a.IsEmpty() {
			return fmt.Errorf("%w r%d", ErrEmptyRegister, int(op.ArgsStart)+i)
		}
	}
	res, err := b.Fn(m, args)
	if err != nil {
		return fmt.Errorf("%s: %w", b.Name, err)
	}
	if res.IsEmpty() {
		res = False
	}
	m.registers[op.ArgsStart] = res
	m.pc++
	return nil
}
