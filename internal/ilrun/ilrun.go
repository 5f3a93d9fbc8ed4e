// Package ilrun is a test-only interpreter for internal/ir programs. It lets
// package tests assert on a compiled program's runtime behavior without
// shelling out to an assembler and linker: Run lowers straight from the IL
// the semantic analyzer produces, walking the same flat instruction stream
// the code generator would emit GAS for.
package ilrun

import (
	"encoding/binary"
	"fmt"

	"github.com/gorse-io/csubc/internal/ir"
)

// arenaSize bounds the simulated address space backing globals and call
// frames; generous enough for the scenario-sized programs this interpreter
// exercises.
const arenaSize = 1 << 20

// Machine executes an ir.Program against a single flat memory arena.
// Addresses are byte offsets into that arena, so pointer arithmetic behaves
// exactly as it would against real memory.
type Machine struct {
	mem      []byte
	nextFree int64
	symAddr  map[string]int64
	funcs    map[string]*ir.Func
	builtins map[string]func(m *Machine, args []int64) int64
	Stdout   []byte
}

// New builds a Machine with prog's globals and string constants laid out in
// the arena and every builtin from Builtins registered.
func New(prog *ir.Program) *Machine {
	m := &Machine{
		mem:      make([]byte, arenaSize),
		nextFree: 8,
		symAddr:  map[string]int64{},
		funcs:    map[string]*ir.Func{},
		builtins: Builtins(),
	}
	for _, f := range prog.Funcs {
		m.funcs[f.Name] = f
	}
	for _, g := range prog.Globals {
		addr := m.alloc(max(g.Size, 1))
		m.symAddr[g.Name] = addr
		if g.Init != nil {
			copy(m.mem[addr:], g.Init)
		}
	}
	return m
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (m *Machine) alloc(size int) int64 {
	addr := m.nextFree
	m.nextFree += int64(size)
	if int(m.nextFree) >= len(m.mem) {
		panic("ilrun: arena exhausted")
	}
	return addr
}

// Run invokes function name with args (sign-extended to int64) and returns
// its int64 result.
func (m *Machine) Run(name string, args ...int64) int64 {
	f, ok := m.funcs[name]
	if !ok {
		panic(fmt.Sprintf("ilrun: no such function %q", name))
	}
	return m.call(f, args)
}

// frame holds one activation's virtual-register file and named-local slots.
type frame struct {
	regs  []int64
	slots []int64 // addresses, one per named-local slot index
}

func (m *Machine) call(f *ir.Func, args []int64) int64 {
	fr := &frame{
		regs:  make([]int64, numVRegs(f)),
		slots: make([]int64, f.NumSlots),
	}
	for i := range fr.slots {
		fr.slots[i] = m.alloc(8)
	}
	for i, p := range f.Params {
		if i < len(args) {
			fr.regs[p.Reg] = args[i]
		}
	}

	labels := map[string]int{}
	for i, in := range f.Body {
		if in.Op == ir.OpLabel {
			labels[in.Label] = i
		}
	}

	pc := 0
	for pc < len(f.Body) {
		in := f.Body[pc]
		switch in.Op {
		case ir.OpLabel:
		case ir.OpJump:
			pc = labels[in.Label]
			continue
		case ir.OpJumpIfZero:
			if m.eval(fr, in.A) == 0 {
				pc = labels[in.Label]
				continue
			}
		case ir.OpJumpIfNonzero:
			if m.eval(fr, in.A) != 0 {
				pc = labels[in.Label]
				continue
			}
		case ir.OpSet:
			fr.regs[in.Dst.Reg] = m.eval(fr, in.A)
		case ir.OpAddrOfLocal:
			fr.regs[in.Dst.Reg] = fr.slots[in.Slot]
		case ir.OpAddrOfGlobal:
			fr.regs[in.Dst.Reg] = m.symAddr[in.Sym]
		case ir.OpLoad:
			addr := m.eval(fr, in.A)
			fr.regs[in.Dst.Reg] = m.load(addr, sizeOf(in.Dst), signedOf(in.Dst))
		case ir.OpStore:
			addr := m.eval(fr, in.A)
			m.store(addr, sizeOf(in.B), m.eval(fr, in.B))
		case ir.OpBinary:
			fr.regs[in.Dst.Reg] = m.binary(fr, in)
		case ir.OpUnary:
			fr.regs[in.Dst.Reg] = m.unary(fr, in)
		case ir.OpConvert:
			fr.regs[in.Dst.Reg] = m.convert(in, m.eval(fr, in.A))
		case ir.OpCall:
			argv := make([]int64, len(in.Args))
			for i, a := range in.Args {
				argv[i] = m.eval(fr, a)
			}
			result := m.invoke(in.Sym, argv)
			if in.Dst.Type != nil {
				fr.regs[in.Dst.Reg] = result
			}
		case ir.OpReturn:
			if in.A.Type != nil {
				return m.eval(fr, in.A)
			}
			return 0
		}
		pc++
	}
	return 0
}

func (m *Machine) invoke(name string, args []int64) int64 {
	if f, ok := m.funcs[name]; ok {
		return m.call(f, args)
	}
	if b, ok := m.builtins[name]; ok {
		return b(m, args)
	}
	panic(fmt.Sprintf("ilrun: call to undefined function %q", name))
}

func numVRegs(f *ir.Func) int {
	n := f.NumVRegs
	for _, p := range f.Params {
		if p.Reg+1 > n {
			n = p.Reg + 1
		}
	}
	return n
}

func (m *Machine) eval(fr *frame, v ir.Value) int64 {
	switch v.Kind {
	case ir.VReg:
		return fr.regs[v.Reg]
	case ir.Const:
		return v.Const
	case ir.GlobalAddr, ir.StringAddr:
		return m.symAddr[v.Global]
	}
	return 0
}

func sizeOf(v ir.Value) int {
	if v.Type != nil && v.Type.Size() > 0 {
		return v.Type.Size()
	}
	return 8
}

func signedOf(v ir.Value) bool { return v.Type == nil || !v.Type.Unsigned }

func (m *Machine) load(addr int64, size int, signed bool) int64 {
	buf := m.mem[addr : addr+int64(size)]
	switch size {
	case 1:
		if signed {
			return int64(int8(buf[0]))
		}
		return int64(buf[0])
	case 2:
		u := binary.LittleEndian.Uint16(buf)
		if signed {
			return int64(int16(u))
		}
		return int64(u)
	case 4:
		u := binary.LittleEndian.Uint32(buf)
		if signed {
			return int64(int32(u))
		}
		return int64(u)
	default:
		return int64(binary.LittleEndian.Uint64(buf))
	}
}

func (m *Machine) store(addr int64, size int, v int64) {
	buf := m.mem[addr : addr+int64(size)]
	switch size {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	default:
		binary.LittleEndian.PutUint64(buf, uint64(v))
	}
}

func (m *Machine) binary(fr *frame, in ir.Instr) int64 {
	a, b := m.eval(fr, in.A), m.eval(fr, in.B)
	unsigned := !signedOf(in.A) || !signedOf(in.B)
	switch in.BinOp {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		if unsigned {
			return int64(uint64(a) / uint64(b))
		}
		return a / b
	case "%":
		if unsigned {
			return int64(uint64(a) % uint64(b))
		}
		return a % b
	case "&":
		return a & b
	case "|":
		return a | b
	case "^":
		return a ^ b
	case "<<":
		return a << uint64(b)
	case ">>":
		if unsigned {
			return int64(uint64(a) >> uint64(b))
		}
		return a >> uint64(b)
	case "==":
		return boolInt(a == b)
	case "!=":
		return boolInt(a != b)
	case "<":
		if unsigned {
			return boolInt(uint64(a) < uint64(b))
		}
		return boolInt(a < b)
	case "<=":
		if unsigned {
			return boolInt(uint64(a) <= uint64(b))
		}
		return boolInt(a <= b)
	case ">":
		if unsigned {
			return boolInt(uint64(a) > uint64(b))
		}
		return boolInt(a > b)
	case ">=":
		if unsigned {
			return boolInt(uint64(a) >= uint64(b))
		}
		return boolInt(a >= b)
	}
	panic("ilrun: unknown binary op " + in.BinOp)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (m *Machine) unary(fr *frame, in ir.Instr) int64 {
	a := m.eval(fr, in.A)
	switch in.UnOp {
	case "-":
		return -a
	case "~":
		return ^a
	case "!":
		return boolInt(a == 0)
	}
	panic("ilrun: unknown unary op " + in.UnOp)
}

func (m *Machine) convert(in ir.Instr, v int64) int64 {
	fromSz, toSz := sizeOf(in.A), sizeOf(in.Dst)
	if toSz >= fromSz {
		if in.Conv == ir.ConvZExt {
			switch fromSz {
			case 1:
				return int64(uint8(v))
			case 2:
				return int64(uint16(v))
			case 4:
				return int64(uint32(v))
			}
		}
		return v
	}
	switch toSz {
	case 1:
		return int64(int8(v))
	case 2:
		return int64(int16(v))
	case 4:
		return int64(int32(v))
	}
	return v
}

// ReadCString reads a NUL-terminated byte string out of the arena at addr.
func (m *Machine) ReadCString(addr int64) string {
	end := addr
	for m.mem[end] != 0 {
		end++
	}
	return string(m.mem[addr:end])
}

// WriteCString writes s plus a terminating NUL into freshly allocated arena
// space and returns its address, for tests that need to hand a string into
// Run's args.
func (m *Machine) WriteCString(s string) int64 {
	addr := m.alloc(len(s) + 1)
	copy(m.mem[addr:], s)
	m.mem[addr+int64(len(s))] = 0
	return addr
}
