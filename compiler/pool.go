package compiler

import (
	"fmt"
	"math"

	"github.com/chazu/purplegarden/vm"
)

// ConstKind tags the variant held by a Const.
type ConstKind uint8

const (
	ConstBool ConstKind = iota
	ConstInt
	ConstDouble
	ConstStr
)

// Const is a compile-time constant. Doubles are held as their bit pattern so
// that equality is bitwise: +0.0 and -0.0 are distinct, and so are NaNs with
// different payloads. Const is comparable and usable as a map key.
type Const struct {
	Kind ConstKind
	Bits uint64 // bool (0/1), int64 or float64 bits
	Str  string
}

// Bool returns the boolean constant.
func Bool(b bool) Const {
	if b {
		return Const{Kind: ConstBool, Bits: 1}
	}
	return Const{Kind: ConstBool}
}

// Int returns the integer constant.
func Int(n int64) Const { return Const{Kind: ConstInt, Bits: uint64(n)} }

// Double returns the double constant with f's exact bit pattern.
func Double(f float64) Const { return Const{Kind: ConstDouble, Bits: math.Float64bits(f)} }

// Str returns the string constant.
func Str(s string) Const { return Const{Kind: ConstStr, Str: s} }

// Value maps the constant to its runtime value.
func (c Const) Value() vm.Value {
	switch c.Kind {
	case ConstBool:
		return vm.FromBool(c.Bits != 0)
	case ConstInt:
		return vm.FromInt(int64(c.Bits))
	case ConstDouble:
		return vm.FromDoubleBits(c.Bits)
	case ConstStr:
		return vm.FromStr(c.Str)
	}
	panic(&InternalError{Msg: fmt.Sprintf("unknown constant kind %d", c.Kind)})
}

// Reserved pool indices.
const (
	FalseIndex uint32 = 0
	TrueIndex  uint32 = 1
)

// Pool deduplicates constants. Its order is the global table of the image.
type Pool struct {
	consts    []Const
	index     map[Const]uint32
	finalized bool
}

// NewPool returns a pool holding false at index 0 and true at index 1.
func NewPool() *Pool {
	p := &Pool{index: make(map[Const]uint32)}
	p.Intern(Bool(false))
	p.Intern(Bool(true))
	return p
}

// Intern returns the index of c, appending it when not yet present.
func (p *Pool) Intern(c Const) uint32 {
	if idx, ok := p.index[c]; ok {
		return idx
	}
	if p.finalized {
		panic(&InternalError{Msg: "intern into finalized constant pool"})
	}
	idx := uint32(len(p.consts))
	p.consts = append(p.consts, c)
	p.index[c] = idx
	return idx
}

// Len returns the number of distinct constants.
func (p *Pool) Len() int {
	return len(p.consts)
}

// Constants returns the constants in index order.
func (p *Pool) Constants() []Const {
	return p.consts
}

// Finalize maps the pool 1:1 to the image's global table. The pool accepts
// no new constants afterwards.
func (p *Pool) Finalize() []vm.Value {
	p.finalized = true
	globals := make([]vm.Value, len(p.consts))
	for i, c := range p.consts {
		globals[i] = c.Value()
	}
	return globals
}
