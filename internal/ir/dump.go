package ir

import (
	"fmt"
	"strings"
)

// Dump renders p as one line per instruction, in the order the compiler
// driver's --dump-ir flag prints it. It exists purely for human inspection;
// internal/ilrun reads the Instr slice directly rather than this text.
func Dump(p *Program) string {
	var b strings.Builder
	for _, g := range p.Globals {
		fmt.Fprintf(&b, "global %s size=%d align=%d static=%v\n", g.Name, g.Size, g.Align, g.IsStatic)
	}
	for _, f := range p.Funcs {
		fmt.Fprintf(&b, "func %s(%d params) vregs=%d slots=%d static=%v\n", f.Name, len(f.Params), f.NumVRegs, f.NumSlots, f.IsStatic)
		for _, in := range f.Body {
			b.WriteString("  ")
			dumpInstr(&b, in)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func dumpInstr(b *strings.Builder, in Instr) {
	switch in.Op {
	case OpLabel:
		fmt.Fprintf(b, "%s:", in.Label)
	case OpJump:
		fmt.Fprintf(b, "jmp %s", in.Label)
	case OpJumpIfZero:
		fmt.Fprintf(b, "jz %s, %s", dumpValue(in.A), in.Label)
	case OpJumpIfNonzero:
		fmt.Fprintf(b, "jnz %s, %s", dumpValue(in.A), in.Label)
	case OpLoad:
		fmt.Fprintf(b, "%s = load %s", dumpValue(in.Dst), dumpValue(in.A))
	case OpStore:
		fmt.Fprintf(b, "store %s, %s", dumpValue(in.A), dumpValue(in.B))
	case OpAddrOfLocal:
		fmt.Fprintf(b, "%s = addr local[%d] %s", dumpValue(in.Dst), in.Slot, in.Sym)
	case OpAddrOfGlobal:
		fmt.Fprintf(b, "%s = addr global %s", dumpValue(in.Dst), in.Sym)
	case OpBinary:
		fmt.Fprintf(b, "%s = %s %s, %s", dumpValue(in.Dst), in.BinOp, dumpValue(in.A), dumpValue(in.B))
	case OpUnary:
		fmt.Fprintf(b, "%s = %s %s", dumpValue(in.Dst), in.UnOp, dumpValue(in.A))
	case OpConvert:
		fmt.Fprintf(b, "%s = convert(%v) %s", dumpValue(in.Dst), in.Conv, dumpValue(in.A))
	case OpCall:
		args := make([]string, len(in.Args))
		for i, a := range in.Args {
			args[i] = dumpValue(a)
		}
		if in.Dst.Type != nil {
			fmt.Fprintf(b, "%s = call %s(%s)", dumpValue(in.Dst), in.Sym, strings.Join(args, ", "))
		} else {
			fmt.Fprintf(b, "call %s(%s)", in.Sym, strings.Join(args, ", "))
		}
	case OpReturn:
		if in.A.Type != nil {
			fmt.Fprintf(b, "return %s", dumpValue(in.A))
		} else {
			b.WriteString("return")
		}
	case OpSet:
		fmt.Fprintf(b, "%s = %s", dumpValue(in.Dst), dumpValue(in.A))
	default:
		fmt.Fprintf(b, "?op(%d)", in.Op)
	}
}

func dumpValue(v Value) string {
	switch v.Kind {
	case VReg:
		return fmt.Sprintf("v%d", v.Reg)
	case Const:
		return fmt.Sprintf("%d", v.Const)
	case GlobalAddr:
		return "&" + v.Global
	case StringAddr:
		return v.Global
	default:
		return "<invalid>"
	}
}
