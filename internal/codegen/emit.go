package codegen

import (
	"fmt"
	"strings"

	"github.com/gorse-io/csubc/internal/ir"
)

// funcEmitter holds the per-function emission state: the assigned register
// or spill slot for every virtual register, the frame layout, and the
// output buffer.
type funcEmitter struct {
	f            *ir.Func
	out          *strings.Builder
	locs         []loc
	numSlots     int // named locals, from symtab allocation
	numSpill     int
	usedCallee   map[string]bool
	epilogueLbl  string
}

// paramRegs is the System V integer/pointer argument register order.
var paramRegs = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

func frameSize(numSlots, numSpill int) int {
	sz := 8 * (numSlots + numSpill)
	if sz%16 != 0 {
		sz += 16 - sz%16
	}
	return sz
}

// slotOffset returns the %rbp-relative byte offset of named-local slot i.
func (e *funcEmitter) slotOffset(i int) int { return -8 * (i + 1) }

// spillOffset returns the %rbp-relative byte offset of spill slot i,
// appended in the frame after every named local.
func (e *funcEmitter) spillOffset(i int) int { return -8 * (e.numSlots + i + 1) }

func reg32(r string) string {
	switch r {
	case "rax":
		return "eax"
	case "rcx":
		return "ecx"
	case "rdx":
		return "edx"
	case "rbx":
		return "ebx"
	case "rsi":
		return "esi"
	case "rdi":
		return "edi"
	default:
		return r + "d" // r8..r15 -> r8d..r15d
	}
}

func reg8(r string) string {
	switch r {
	case "rax":
		return "al"
	case "rcx":
		return "cl"
	case "rdx":
		return "dl"
	case "rbx":
		return "bl"
	case "rsi":
		return "sil"
	case "rdi":
		return "dil"
	default:
		return r + "b"
	}
}

func regOperand(r string, sz int) string {
	if sz == 1 {
		return "%" + reg8(r)
	}
	if sz == 4 {
		return "%" + reg32(r)
	}
	return "%" + r
}

func (e *funcEmitter) emit(format string, args ...any) {
	fmt.Fprintf(e.out, "\t"+format+"\n", args...)
}

func (e *funcEmitter) label(name string) { fmt.Fprintf(e.out, "%s:\n", name) }

// vregOperand returns an assembly operand string for a VReg value, loading
// it from its spill slot into scratch first when it was not colored to a
// physical register.
func (e *funcEmitter) vregOperand(v ir.Value, scratch string, sz int) string {
	l := e.locs[v.Reg]
	if l.reg != "" {
		return regOperand(l.reg, sz)
	}
	e.emit("mov %d(%%rbp), %%%s", e.spillOffset(l.spillSlot), scratch)
	return regOperand(scratch, sz)
}

// operand resolves any IR value (virtual register, constant, or
// global/string address) to a usable operand, emitting whatever setup
// instructions are needed (movabs for 64-bit immediates, lea for symbol
// addresses, spill reloads) and placing the result in scratch when the
// value is not already a bare register or immediate.
func (e *funcEmitter) operand(v ir.Value, scratch string) string {
	sz := 8
	if v.Type != nil {
		sz = v.Type.Size()
		if sz == 0 {
			sz = 8
		}
	}
	switch v.Kind {
	case ir.VReg:
		return e.vregOperand(v, scratch, sz)
	case ir.Const:
		if v.Const > 0x7fffffff || v.Const < -0x80000000 {
			e.emit("movabs $%d, %%%s", v.Const, scratch)
			return regOperand(scratch, sz)
		}
		return fmt.Sprintf("$%d", v.Const)
	case ir.GlobalAddr, ir.StringAddr:
		e.emit("lea %s(%%rip), %%%s", v.Global, scratch)
		return "%" + scratch
	}
	return "$0"
}

// storeToVReg writes the value currently held in register src (already
// sized correctly) into vreg dst's location.
func (e *funcEmitter) storeToVReg(dst ir.Value, src string) {
	sz := 8
	if dst.Type != nil && dst.Type.Size() > 0 {
		sz = dst.Type.Size()
	}
	l := e.locs[dst.Reg]
	if l.reg != "" {
		if l.reg != src {
			e.emit("mov %s, %s", regOperand(src, sz), regOperand(l.reg, sz))
		}
		return
	}
	e.emit("mov %s, %d(%%rbp)", regOperand(src, sz), e.spillOffset(l.spillSlot))
}

func isUnsigned(v ir.Value) bool { return v.Type != nil && v.Type.Unsigned }

var setFlagSigned = map[string]string{
	"==": "sete", "!=": "setne", "<": "setl", "<=": "setle", ">": "setg", ">=": "setge",
}
var setFlagUnsigned = map[string]string{
	"==": "sete", "!=": "setne", "<": "setb", "<=": "setbe", ">": "seta", ">=": "setae",
}

func (e *funcEmitter) compileInstr(in ir.Instr) {
	switch in.Op {
	case ir.OpLabel:
		e.label(in.Label)
	case ir.OpJump:
		e.emit("jmp %s", in.Label)
	case ir.OpJumpIfZero, ir.OpJumpIfNonzero:
		a := e.operand(in.A, scratch1)
		sz := 8
		if in.A.Type != nil && in.A.Type.Size() > 0 {
			sz = in.A.Type.Size()
		}
		if strings.HasPrefix(a, "$") {
			e.emit("mov %s, %s", a, regOperand(scratch1, sz))
			a = regOperand(scratch1, sz)
		}
		e.emit("test %s, %s", a, a)
		if in.Op == ir.OpJumpIfZero {
			e.emit("jz %s", in.Label)
		} else {
			e.emit("jnz %s", in.Label)
		}
	case ir.OpSet:
		sz := 8
		if in.Dst.Type != nil && in.Dst.Type.Size() > 0 {
			sz = in.Dst.Type.Size()
		}
		a := e.operand(in.A, scratch1)
		e.emit("mov %s, %s", a, regOperand(scratch1, sz))
		e.storeToVReg(in.Dst, scratch1)
	case ir.OpAddrOfLocal:
		e.emit("lea %d(%%rbp), %%%s", e.slotOffset(in.Slot), scratch1)
		e.storeToVReg(in.Dst, scratch1)
	case ir.OpAddrOfGlobal:
		e.emit("lea %s(%%rip), %%%s", in.Sym, scratch1)
		e.storeToVReg(in.Dst, scratch1)
	case ir.OpLoad:
		addr := e.operand(in.A, scratch1)
		sz := 8
		if in.Dst.Type != nil && in.Dst.Type.Size() > 0 {
			sz = in.Dst.Type.Size()
		}
		e.emit("mov (%s), %s", addr, regOperand(scratch2, sz))
		e.storeToVReg(in.Dst, scratch2)
	case ir.OpStore:
		addr := e.operand(in.A, scratch1)
		sz := 8
		if in.B.Type != nil && in.B.Type.Size() > 0 {
			sz = in.B.Type.Size()
		}
		val := e.operand(in.B, scratch2)
		if !strings.HasPrefix(val, "$") && val != regOperand(scratch2, sz) {
			e.emit("mov %s, %s", val, regOperand(scratch2, sz))
			val = regOperand(scratch2, sz)
		}
		e.emit("mov %s, (%s)", val, addr)
	case ir.OpBinary:
		e.compileBinary(in)
	case ir.OpUnary:
		e.compileUnary(in)
	case ir.OpConvert:
		e.compileConvert(in)
	case ir.OpCall:
		e.compileCall(in)
	case ir.OpReturn:
		if in.A.Type != nil {
			v := e.operand(in.A, scratch1)
			sz := in.A.Type.Size()
			if sz == 0 {
				sz = 8
			}
			e.emit("mov %s, %s", v, regOperand("rax", sz))
		}
		e.emit("jmp %s", e.epilogueLbl)
	}
}


func (e *funcEmitter) compileBinary(in ir.Instr) {
	sz := 8
	if in.Dst.Type != nil && in.Dst.Type.Size() > 0 {
		sz = in.Dst.Type.Size()
	}
	switch in.BinOp {
	case "+", "-", "&", "|", "^":
		a := e.operand(in.A, scratch1)
		e.emit("mov %s, %s", a, regOperand(scratch1, sz))
		b := e.operand(in.B, scratch2)
		e.emit("%s %s, %s", arithMnemonic(in.BinOp), b, regOperand(scratch1, sz))
		e.storeToVReg(in.Dst, scratch1)
	case "*":
		a := e.operand(in.A, scratch1)
		e.emit("mov %s, %s", a, regOperand(scratch1, sz))
		b := e.operand(in.B, scratch2)
		e.emit("imul %s, %s", b, regOperand(scratch1, sz))
		e.storeToVReg(in.Dst, scratch1)
	case "/", "%":
		e.compileDivMod(in, sz)
	case "<<", ">>":
		e.compileShift(in, sz)
	case "==", "!=", "<", "<=", ">", ">=":
		a := e.operand(in.A, scratch1)
		e.emit("mov %s, %s", a, regOperand(scratch1, sz))
		b := e.operand(in.B, scratch2)
		e.emit("cmp %s, %s", b, regOperand(scratch1, sz))
		setm := setFlagSigned[in.BinOp]
		if isUnsigned(in.A) || isUnsigned(in.B) {
			setm = setFlagUnsigned[in.BinOp]
		}
		e.emit("%s %%%s", setm, reg8(scratch1))
		e.emit("movzbl %%%s, %s", reg8(scratch1), reg32(scratch1))
		e.storeToVReg(in.Dst, scratch1)
	}
}

func arithMnemonic(op string) string {
	switch op {
	case "+":
		return "add"
	case "-":
		return "sub"
	case "&":
		return "and"
	case "|":
		return "or"
	case "^":
		return "xor"
	}
	return "add"
}

// compileDivMod routes the dividend through RAX/RDX as the ISA requires,
// a pre-coloring constraint honored here by inserting copies at the point
// of use rather than forcing the whole live range into those registers.
func (e *funcEmitter) compileDivMod(in ir.Instr, sz int) {
	a := e.operand(in.A, scratch1)
	e.emit("mov %s, %s", a, regOperand("rax", sz))
	signed := !isUnsigned(in.A) && !isUnsigned(in.B)
	if signed {
		if sz == 8 {
			e.emit("cqto")
		} else {
			e.emit("cltd")
		}
	} else {
		e.emit("xor %%rdx, %%rdx")
	}
	b := e.operand(in.B, scratch2)
	if strings.HasPrefix(b, "$") {
		e.emit("mov %s, %s", b, regOperand(scratch2, sz))
		b = regOperand(scratch2, sz)
	}
	if signed {
		e.emit("idiv %s", b)
	} else {
		e.emit("div %s", b)
	}
	if in.BinOp == "/" {
		e.storeToVReg(in.Dst, "rax")
	} else {
		e.storeToVReg(in.Dst, "rdx")
	}
}

// compileShift routes a non-constant shift count through CL, the other
// ABI-mandated pre-coloring constraint in §4.6.
func (e *funcEmitter) compileShift(in ir.Instr, sz int) {
	a := e.operand(in.A, scratch1)
	e.emit("mov %s, %s", a, regOperand(scratch1, sz))
	mnemonic := "shl"
	if in.BinOp == ">>" {
		if isUnsigned(in.A) {
			mnemonic = "shr"
		} else {
			mnemonic = "sar"
		}
	}
	if in.B.Kind == ir.Const {
		e.emit("%s $%d, %s", mnemonic, in.B.Const, regOperand(scratch1, sz))
	} else {
		b := e.operand(in.B, "rcx")
		if b != "%rcx" && b != "%ecx" {
			e.emit("mov %s, %%ecx", b)
		}
		e.emit("%s %%cl, %s", mnemonic, regOperand(scratch1, sz))
	}
	e.storeToVReg(in.Dst, scratch1)
}

func (e *funcEmitter) compileUnary(in ir.Instr) {
	sz := 8
	if in.Dst.Type != nil && in.Dst.Type.Size() > 0 {
		sz = in.Dst.Type.Size()
	}
	a := e.operand(in.A, scratch1)
	e.emit("mov %s, %s", a, regOperand(scratch1, sz))
	switch in.UnOp {
	case "-":
		e.emit("neg %s", regOperand(scratch1, sz))
	case "~":
		e.emit("not %s", regOperand(scratch1, sz))
	case "!":
		e.emit("test %s, %s", regOperand(scratch1, sz), regOperand(scratch1, sz))
		e.emit("sete %%%s", reg8(scratch1))
		e.emit("movzbl %%%s, %s", reg8(scratch1), reg32(scratch1))
	}
	e.storeToVReg(in.Dst, scratch1)
}

func (e *funcEmitter) compileConvert(in ir.Instr) {
	fromSz := 8
	if in.A.Type != nil && in.A.Type.Size() > 0 {
		fromSz = in.A.Type.Size()
	}
	toSz := 8
	if in.Dst.Type != nil && in.Dst.Type.Size() > 0 {
		toSz = in.Dst.Type.Size()
	}
	a := e.operand(in.A, scratch1)
	if !strings.HasPrefix(a, "%"+scratch1) {
		e.emit("mov %s, %s", a, regOperand(scratch1, fromSz))
	}
	switch {
	case toSz <= fromSz:
		// truncation: the low bytes of scratch1 already hold the result.
	case in.Conv == ir.ConvSExt:
		e.emit("movs%s %s, %s", sxSuffix(fromSz, toSz), regOperand(scratch1, fromSz), regOperand(scratch1, toSz))
	default:
		if fromSz == 4 {
			e.emit("mov %s, %s", regOperand(scratch1, 4), regOperand(scratch1, 4)) // zero-extends to 64 implicitly
		} else {
			e.emit("movz%s %s, %s", sxSuffix(fromSz, toSz), regOperand(scratch1, fromSz), regOperand(scratch1, toSz))
		}
	}
	e.storeToVReg(in.Dst, scratch1)
}

func sxSuffix(fromSz, toSz int) string {
	from := map[int]string{1: "b", 2: "w", 4: "l"}[fromSz]
	to := map[int]string{4: "l", 8: "q"}[toSz]
	return from + to
}

// compileCall shuffles every argument onto the stack in reverse order, then
// pops the first six back into the ABI argument registers. Going through
// the stack (instead of moving straight into rdi/rsi/...) avoids clobbering
// an argument value that the allocator happened to color into the very
// register an earlier argument needs to land in.
func (e *funcEmitter) compileCall(in ir.Instr) {
	for i := len(in.Args) - 1; i >= 0; i-- {
		v := e.operand64(in.Args[i], scratch1)
		e.emit("push %s", v)
	}
	for i := 0; i < len(in.Args) && i < len(paramRegs); i++ {
		e.emit("pop %%%s", paramRegs[i])
	}
	e.emit("call %s", in.Sym)
	extra := len(in.Args) - len(paramRegs)
	if extra > 0 {
		e.emit("add $%d, %%rsp", extra*8)
	}
	if in.Dst.Type != nil {
		e.storeToVReg(in.Dst, "rax")
	}
}

// operand64 is operand, but always resolved into a full 64-bit register or
// immediate form so the result is safe to push — push does not accept a
// 32-bit general-purpose register in 64-bit mode.
func (e *funcEmitter) operand64(v ir.Value, scratch string) string {
	if v.Kind == ir.VReg {
		l := e.locs[v.Reg]
		if l.reg != "" {
			return "%" + l.reg
		}
		e.emit("mov %d(%%rbp), %%%s", e.spillOffset(l.spillSlot), scratch)
		return "%" + scratch
	}
	return e.operand(v, scratch)
}
