package vm

import (
	"errors"
	"fmt"
)

// Fatal conditions. Each one means the bytecode image is malformed or the
// program did something the instruction set cannot express; none are retried.
var (
	ErrUnresolvedName = errors.New("vm: unresolved name")
	ErrRegisterRange  = errors.New("vm: register out of range")
	ErrGlobalRange    = errors.New("vm: global index out of range")
	ErrEmptyRegister  = errors.New("vm: read of empty register")
	ErrStackUnderflow = errors.New("vm: call stack underflow")
	ErrStackOverflow  = errors.New("vm: call stack overflow")
	ErrBadJump        = errors.New("vm: jump target out of range")
	ErrUnknownBuiltin = errors.New("vm: unknown builtin")
	ErrArity          = errors.New("vm: wrong number of arguments")
	ErrUnknownOpcode  = errors.New("vm: unknown opcode")
	ErrType           = errors.New("vm: type error")
	ErrDivideByZero   = errors.New("vm: integer division by zero")
	ErrIndexRange     = errors.New("vm: index out of range")
	ErrDanglingHandle = errors.New("vm: dangling heap handle")
	ErrAssertion      = errors.New("vm: assertion failed")
)

// RuntimeError reports a fatal condition together with the program counter
// and instruction that raised it.
type RuntimeError struct {
	PC   int
	Op   Op
	Name string // debug name for hash-related failures, if known
	Err  error
}

func (e *RuntimeError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%v %q at pc %04d (%s)", e.Err, e.Name, e.PC, e.Op)
	}
	return fmt.Sprintf("%v at pc %04d (%s)", e.Err, e.PC, e.Op)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}
