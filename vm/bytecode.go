package vm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode selects the operation of an instruction.
type Opcode byte

// Arithmetic and comparison: dst = lhs op rhs.
const (
	OpAdd Opcode = 0x00
	OpSub Opcode = 0x01
	OpMul Opcode = 0x02
	OpDiv Opcode = 0x03
	OpEq  Opcode = 0x04
	OpLt  Opcode = 0x05
	OpGt  Opcode = 0x06
)

// Moves and loads
const (
	OpMov        Opcode = 0x10 // dst = src
	OpLoadI      Opcode = 0x11 // dst = imm
	OpLoadGlobal Opcode = 0x12 // dst = globals[idx]
	OpLoadByHash Opcode = 0x13 // dst = lookup(hash)
)

// Bindings
const (
	OpLet Opcode = 0x20 // bind hash to src in the active frame
)

// Aggregates
const (
	OpNew    Opcode = 0x30 // dst = new array or object, size is a capacity hint
	OpAppend Opcode = 0x31 // append src to the container in dst
	OpLen    Opcode = 0x32 // dst = len(src)
	OpIndex  Opcode = 0x33 // dst = lhs[rhs]
)

// Control flow
const (
	OpJmp        Opcode = 0x40 // pc = target
	OpJmpIfFalse Opcode = 0x41 // if src is False: pc = target
)

// Calls
const (
	OpCall Opcode = 0x50 // push frame, pc = target
	OpRet  Opcode = 0x51 // pop `times` frames
	OpSys  Opcode = 0x52 // invoke builtin over the argument window
)

// NewKind selects what OpNew allocates.
type NewKind uint8

const (
	NewArray NewKind = iota
	NewObject
)

func (k NewKind) String() string {
	if k == NewObject {
		return "object"
	}
	return "array"
}

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name  string // mnemonic
	Jumps bool   // sets pc explicitly
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpAdd: {"ADD", false},
	OpSub: {"SUB", false},
	OpMul: {"MUL", false},
	OpDiv: {"DIV", false},
	OpEq:  {"EQ", false},
	OpLt:  {"LT", false},
	OpGt:  {"GT", false},

	OpMov:        {"MOV", false},
	OpLoadI:      {"LOADI", false},
	OpLoadGlobal: {"LOADG", false},
	OpLoadByHash: {"LOADV", false},

	OpLet: {"LET", false},

	OpNew:    {"NEW", false},
	OpAppend: {"APPEND", false},
	OpLen:    {"LEN", false},
	OpIndex:  {"IDX", false},

	OpJmp:        {"JMP", true},
	OpJmpIfFalse: {"JMPF", true},

	OpCall: {"CALL", true},
	OpRet:  {"RET", true},
	OpSys:  {"SYS", false},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Valid reports whether op belongs to the instruction set.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Info().Name
}

// IsArith reports whether op is one of the binary arithmetic/compare opcodes.
func (op Opcode) IsArith() bool {
	return op <= OpGt
}

// ---------------------------------------------------------------------------
// Op: one fixed-shape instruction
// ---------------------------------------------------------------------------

// Op is a single instruction. Every instruction carries the same typed
// operand fields; which ones are meaningful depends on Code:
//
//	ADD..GT  Dst, Lhs, Rhs
//	MOV      Dst, Src
//	LOADI    Dst, Imm
//	LOADG    Dst, Idx
//	LOADV    Dst, Hash
//	LET      Hash, Src
//	NEW      Dst, Size, Kind
//	APPEND   Dst (container), Src
//	LEN      Dst, Src
//	IDX      Dst, Lhs (container), Rhs (index)
//	JMP      Target
//	JMPF     Src (condition), Target
//	CALL     Target (function entry), ArgsStart, ArgsLen
//	RET      Times
//	SYS      Builtin, ArgsStart, ArgsLen
type Op struct {
	Code      Opcode
	Dst       uint8
	Src       uint8
	Lhs       uint8
	Rhs       uint8
	Imm       int64
	Idx       uint32
	Hash      uint64
	Size      uint32
	Kind      NewKind
	Target    int
	ArgsStart uint8
	ArgsLen   uint8
	Times     uint8
	Builtin   BuiltinID
}

// String renders the instruction without debug names.
func (op Op) String() string {
	return op.format(nil, nil)
}

// ---------------------------------------------------------------------------
// Builder: helper for constructing instruction sequences
// ---------------------------------------------------------------------------

// Builder appends instructions and resolves forward jumps.
type Builder struct {
	code []Op
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		code: make([]Op, 0, 256),
	}
}

// Code returns the constructed instruction sequence.
func (b *Builder) Code() []Op {
	return b.code
}

// PC returns the index the next emitted instruction will occupy.
func (b *Builder) PC() int {
	return len(b.code)
}

// Emit appends an instruction and returns its index.
func (b *Builder) Emit(op Op) int {
	b.code = append(b.code, op)
	return len(b.code) - 1
}

// Arith emits one of ADD, SUB, MUL, DIV, EQ, LT, GT.
func (b *Builder) Arith(code Opcode, dst, lhs, rhs uint8) int {
	if !code.IsArith() {
		panic(fmt.Sprintf("Builder.Arith: %s is not an arithmetic opcode", code))
	}
	return b.Emit(Op{Code: code, Dst: dst, Lhs: lhs, Rhs: rhs})
}

// Mov emits dst = src.
func (b *Builder) Mov(dst, src uint8) int {
	return b.Emit(Op{Code: OpMov, Dst: dst, Src: src})
}

// LoadImmediate emits dst = v.
func (b *Builder) LoadImmediate(dst uint8, v int64) int {
	return b.Emit(Op{Code: OpLoadI, Dst: dst, Imm: v})
}

// LoadGlobal emits dst = globals[idx].
func (b *Builder) LoadGlobal(dst uint8, idx uint32) int {
	return b.Emit(Op{Code: OpLoadGlobal, Dst: dst, Idx: idx})
}

// LoadByHash emits dst = lookup(hash).
func (b *Builder) LoadByHash(dst uint8, hash uint64) int {
	return b.Emit(Op{Code: OpLoadByHash, Dst: dst, Hash: hash})
}

// Let binds hash to the value in src.
func (b *Builder) Let(hash uint64, src uint8) int {
	return b.Emit(Op{Code: OpLet, Hash: hash, Src: src})
}

// New emits an array or object allocation into dst.
func (b *Builder) New(dst uint8, size uint32, kind NewKind) int {
	return b.Emit(Op{Code: OpNew, Dst: dst, Size: size, Kind: kind})
}

// Append appends src to the container held in container.
func (b *Builder) Append(container, src uint8) int {
	return b.Emit(Op{Code: OpAppend, Dst: container, Src: src})
}

// Len emits dst = len(src).
func (b *Builder) Len(dst, src uint8) int {
	return b.Emit(Op{Code: OpLen, Dst: dst, Src: src})
}

// Index emits dst = container[idx].
func (b *Builder) Index(dst, container, idx uint8) int {
	return b.Emit(Op{Code: OpIndex, Dst: dst, Lhs: container, Rhs: idx})
}

// Call emits a call to the function starting at target.
func (b *Builder) Call(target int, argsStart, argsLen uint8) int {
	return b.Emit(Op{Code: OpCall, Target: target, ArgsStart: argsStart, ArgsLen: argsLen})
}

// Ret emits a return that pops times frames.
func (b *Builder) Ret(times uint8) int {
	return b.Emit(Op{Code: OpRet, Times: times})
}

// Sys emits a builtin invocation.
func (b *Builder) Sys(id BuiltinID, argsStart, argsLen uint8) int {
	return b.Emit(Op{Code: OpSys, Builtin: id, ArgsStart: argsStart, ArgsLen: argsLen})
}

// SetTarget rewrites the target of the jump or call at pc.
func (b *Builder) SetTarget(pc, target int) {
	switch b.code[pc].Code {
	case OpJmp, OpJmpIfFalse, OpCall:
		b.code[pc].Target = target
	default:
		panic(fmt.Sprintf("Builder.SetTarget: %s at %d has no target", b.code[pc].Code, pc))
	}
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

// Label is a jump destination that may be referenced before it is placed.
type Label struct {
	resolved bool
	target   int
	refs     []int // instructions waiting for the target
}

// NewLabel creates an unresolved label.
func (b *Builder) NewLabel() *Label {
	return &Label{refs: make([]int, 0, 2)}
}

// Mark resolves a label to the current position and patches every pending
// reference to it.
func (b *Builder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.target = len(b.code)
	for _, ref := range label.refs {
		b.code[ref].Target = label.target
	}
	label.refs = nil
}

// Jmp emits an unconditional jump to label.
func (b *Builder) Jmp(label *Label) int {
	return b.jump(Op{Code: OpJmp}, label)
}

// JmpIfFalse emits a jump to label taken when cond holds False.
func (b *Builder) JmpIfFalse(cond uint8, label *Label) int {
	return b.jump(Op{Code: OpJmpIfFalse, Src: cond}, label)
}

func (b *Builder) jump(op Op, label *Label) int {
	if label.resolved {
		op.Target = label.target
		return b.Emit(op)
	}
	pc := b.Emit(op)
	label.refs = append(label.refs, pc)
	return pc
}
