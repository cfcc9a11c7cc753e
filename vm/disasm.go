package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

func reg(r uint8) string {
	return fmt.Sprintf("r%d", r)
}

func hashOperand(h uint64, names map[uint64]string) string {
	if name, ok := names[h]; ok {
		return fmt.Sprintf("0x%016x <%s>", h, name)
	}
	return fmt.Sprintf("0x%016x", h)
}

// builtinOperand renders a builtin as an offset from the registry base, the
// way a raw function pointer would read relative to a known symbol.
func builtinOperand(id BuiltinID, builtins *Registry) string {
	s := fmt.Sprintf("builtin+0x%x", uint16(id))
	if builtins != nil {
		if b, ok := builtins.Lookup(id); ok {
			s += " <" + b.Name + ">"
		}
	}
	return s
}

// format renders one instruction as "MNEMONIC operand, operand".
func (op Op) format(names map[uint64]string, builtins *Registry) string {
	name := op.Code.Info().Name
	var operands []string
	switch op.Code {
	case OpAdd, OpSub, OpMul, OpDiv, OpEq, OpLt, OpGt:
		operands = []string{reg(op.Dst), reg(op.Lhs), reg(op.Rhs)}
	case OpMov, OpLen:
		operands = []string{reg(op.Dst), reg(op.Src)}
	case OpLoadI:
		operands = []string{reg(op.Dst), fmt.Sprint(op.Imm)}
	case OpLoadGlobal:
		operands = []string{reg(op.Dst), fmt.Sprintf("global[%d]", op.Idx)}
	case OpLoadByHash:
		operands = []string{reg(op.Dst), hashOperand(op.Hash, names)}
	case OpLet:
		operands = []string{hashOperand(op.Hash, names), reg(op.Src)}
	case OpNew:
		operands = []string{reg(op.Dst), fmt.Sprint(op.Size), op.Kind.String()}
	case OpAppend:
		operands = []string{reg(op.Dst), reg(op.Src)}
	case OpIndex:
		operands = []string{reg(op.Dst), reg(op.Lhs), reg(op.Rhs)}
	case OpJmp:
		operands = []string{fmt.Sprintf("%04d", op.Target)}
	case OpJmpIfFalse:
		operands = []string{reg(op.Src), fmt.Sprintf("%04d", op.Target)}
	case OpCall:
		operands = []string{fmt.Sprintf("%04d", op.Target), reg(op.ArgsStart), fmt.Sprint(op.ArgsLen)}
	case OpRet:
		operands = []string{fmt.Sprint(op.Times)}
	case OpSys:
		operands = []string{builtinOperand(op.Builtin, builtins), reg(op.ArgsStart), fmt.Sprint(op.ArgsLen)}
	}
	if len(operands) == 0 {
		return name
	}
	return name + " " + strings.Join(operands, ", ")
}

// DisassembleInstruction renders the instruction at pc as "PPPP: MNEMONIC operands".
func DisassembleInstruction(img *Image, pc int, builtins *Registry) string {
	return fmt.Sprintf("%04d: %s", pc, img.Code[pc].format(img.Names, builtins))
}

// Disassemble returns a full listing of the image's code, one instruction per
// line. builtins may be nil, in which case SYS operands print without names.
func Disassemble(img *Image, builtins *Registry) string {
	var sb strings.Builder
	for pc := range img.Code {
		sb.WriteString(DisassembleInstruction(img, pc, builtins))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// DisassembleGlobals lists the global table, one "global[i] = value" per line.
func DisassembleGlobals(img *Image) string {
	var sb strings.Builder
	for i, g := range img.Globals {
		if g.IsText() {
			fmt.Fprintf(&sb, "global[%d] = %q\n", i, g.Text())
			continue
		}
		fmt.Fprintf(&sb, "global[%d] = %s\n", i, g)
	}
	return sb.String()
}
