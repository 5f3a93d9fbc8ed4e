package codegen

import (
	"fmt"
	"strings"

	"github.com/gorse-io/csubc/internal/ir"
)

// CompileProgram turns a lowered translation unit into GAS x86-64 assembly
// text targeting Linux, one function at a time, followed by the data
// sections for every file-scope object and string constant.
func CompileProgram(prog *ir.Program) string {
	var out strings.Builder
	out.WriteString("\t.text\n")
	for _, f := range prog.Funcs {
		compileFunc(&out, f)
	}
	emitGlobals(&out, prog.Globals)
	return out.String()
}

func compileFunc(out *strings.Builder, f *ir.Func) {
	locs, numSpill := allocateRegisters(f)

	used := map[string]bool{}
	for _, l := range locs {
		if l.reg != "" && calleeSaved[l.reg] {
			used[l.reg] = true
		}
	}
	var savedRegs []string
	for _, r := range physRegs {
		if used[r] {
			savedRegs = append(savedRegs, r)
		}
	}

	e := &funcEmitter{
		f: f, out: out, locs: locs,
		numSlots: f.NumSlots, numSpill: numSpill,
		epilogueLbl: f.Name + ".epilogue",
	}

	if !f.IsStatic {
		fmt.Fprintf(out, "\t.globl %s\n", f.Name)
	}
	fmt.Fprintf(out, "\t.type %s, @function\n", f.Name)
	e.label(f.Name)
	e.emit("push %%rbp")
	e.emit("mov %%rsp, %%rbp")
	size := frameSize(e.numSlots, e.numSpill)
	if size > 0 {
		e.emit("sub $%d, %%rsp", size)
	}
	for _, r := range savedRegs {
		e.emit("push %%%s", r)
	}

	// Incoming arguments arrive in ABI registers/stack slots; the lowering
	// always stores each param vreg into its named-local slot immediately,
	// so here we only need to land the incoming value into the vreg's
	// assigned location.
	for i, p := range f.Params {
		sz := 8
		if p.Type != nil && p.Type.Size() > 0 {
			sz = p.Type.Size()
		}
		if i < len(paramRegs) {
			e.storeToVReg(p, paramRegs[i])
		} else {
			off := 16 + 8*(i-len(paramRegs))
			e.emit("mov %d(%%rbp), %s", off, regOperand(scratch1, sz))
			e.storeToVReg(p, scratch1)
		}
	}

	for _, in := range f.Body {
		e.compileInstr(in)
	}

	e.label(e.epilogueLbl)
	for i := len(savedRegs) - 1; i >= 0; i-- {
		e.emit("pop %%%s", savedRegs[i])
	}
	e.emit("leave")
	e.emit("ret")
	fmt.Fprintf(out, "\t.size %s, .-%s\n", f.Name, f.Name)
}

// emitGlobals writes every file-scope object in prog.Globals, grouping
// zero-initialized objects into .bss, initialized objects into .data, and
// read-only string constants into .rodata.
func emitGlobals(out *strings.Builder, globals []ir.Global) {
	var bss, data, rodata []ir.Global
	for _, g := range globals {
		switch {
		case g.ReadOnly:
			rodata = append(rodata, g)
		case g.Init == nil:
			bss = append(bss, g)
		default:
			data = append(data, g)
		}
	}
	if len(bss) > 0 {
		out.WriteString("\t.bss\n")
		for _, g := range bss {
			emitGlobalHeader(out, g)
			fmt.Fprintf(out, "%s:\n\t.zero %d\n", g.Name, g.Size)
		}
	}
	if len(data) > 0 {
		out.WriteString("\t.data\n")
		for _, g := range data {
			emitGlobalHeader(out, g)
			fmt.Fprintf(out, "%s:\n", g.Name)
			emitBytes(out, g.Init)
		}
	}
	if len(rodata) > 0 {
		out.WriteString("\t.section .rodata\n")
		for _, g := range rodata {
			if !g.IsStatic {
				fmt.Fprintf(out, "\t.globl %s\n", g.Name)
			}
			fmt.Fprintf(out, "%s:\n", g.Name)
			if g.IsString {
				emitString(out, g.Init)
			} else {
				emitBytes(out, g.Init)
			}
		}
	}
}

func emitGlobalHeader(out *strings.Builder, g ir.Global) {
	if !g.IsStatic {
		fmt.Fprintf(out, "\t.globl %s\n", g.Name)
	}
	align := g.Align
	if align <= 0 {
		align = 8
	}
	fmt.Fprintf(out, "\t.align %d\n", align)
}

// emitString emits the initializer of a NUL-terminated string constant
// using .asciz when the payload is plain bytes with a single trailing NUL,
// falling back to a byte image otherwise.
func emitString(out *strings.Builder, b []byte) {
	if len(b) > 0 && b[len(b)-1] == 0 && !containsNul(b[:len(b)-1]) {
		fmt.Fprintf(out, "\t.asciz %q\n", string(b[:len(b)-1]))
		return
	}
	emitBytes(out, b)
}

func containsNul(b []byte) bool {
	for _, c := range b {
		if c == 0 {
			return true
		}
	}
	return false
}

func emitBytes(out *strings.Builder, b []byte) {
	for _, c := range b {
		fmt.Fprintf(out, "\t.byte %d\n", c)
	}
}
