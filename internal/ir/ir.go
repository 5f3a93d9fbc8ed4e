// Package ir is the flat three-address intermediate language the semantic
// analyzer lowers a function body into, and the register allocator and
// code generator consume. Every instruction operates on typed virtual
// values; control flow is expressed purely through labels and conditional
// jumps, matching the "no implicit fallthrough surprises" shape described
// for the lowering component.
package ir

import "github.com/gorse-io/csubc/internal/types"

// Value is a reference to an IR-level operand: either a virtual register,
// an integer constant, or the address of a named global/string.
type Value struct {
	Kind   ValueKind
	Reg    int    // Kind == VReg
	Const  int64  // Kind == Const
	Global string // Kind == GlobalAddr / Kind == StringAddr
	Type   *types.Type
}

type ValueKind int

const (
	VReg ValueKind = iota
	Const
	GlobalAddr
	StringAddr
)

func Virtual(n int, t *types.Type) Value { return Value{Kind: VReg, Reg: n, Type: t} }
func ConstInt(v int64, t *types.Type) Value { return Value{Kind: Const, Const: v, Type: t} }
func GlobalRef(name string, t *types.Type) Value { return Value{Kind: GlobalAddr, Global: name, Type: t} }
func StringRef(label string, t *types.Type) Value { return Value{Kind: StringAddr, Global: label, Type: t} }

// Op enumerates instruction kinds.
type Op int

const (
	OpSet Op = iota
	OpLoad
	OpStore
	OpAddrOfLocal
	OpAddrOfGlobal
	OpBinary
	OpUnary
	OpConvert
	OpLabel
	OpJump
	OpJumpIfZero
	OpJumpIfNonzero
	OpCall
	OpReturn
)

// ConvKind distinguishes the three integer conversions the spec's type
// system can require.
type ConvKind int

const (
	ConvTrunc ConvKind = iota
	ConvSExt
	ConvZExt
)

// Instr is one three-address instruction. Only the fields relevant to Op
// are meaningful; unused fields are zero.
type Instr struct {
	Op   Op
	Dst  Value    // result virtual register, when the op produces one
	A, B Value    // operands
	Sym  string   // OpAddrOfLocal/OpAddrOfGlobal/OpCall: referenced name
	Label string  // OpLabel/OpJump/OpJumpIfZero/OpJumpIfNonzero: target
	BinOp string  // OpBinary: "+","-","*","/","%","&","|","^","<<",">>","==","!=","<",">","<=",">="
	UnOp  string  // OpUnary: "-","~","!"
	Conv  ConvKind
	Args  []Value // OpCall
	Slot  int     // OpAddrOfLocal: stack-slot index assigned by symtab
}

// Func is one lowered function body.
type Func struct {
	Name       string
	Params     []Value
	RetType    *types.Type
	Body       []Instr
	NumVRegs   int
	NumSlots   int // number of distinct local stack slots referenced
	IsVariadic bool
	IsStatic   bool // internal linkage: emitted as a local symbol, no .globl
}

// Builder accumulates instructions and allocates fresh virtual registers
// and labels for one function lowering.
type Builder struct {
	f        *Func
	nextVReg int
	nextLbl  int
}

func NewBuilder(name string, ret *types.Type) *Builder {
	return &Builder{f: &Func{Name: name, RetType: ret}}
}

func (b *Builder) NewVReg(t *types.Type) Value {
	v := Virtual(b.nextVReg, t)
	b.nextVReg++
	return v
}

func (b *Builder) NewLabel(prefix string) string {
	b.nextLbl++
	return prefix + "." + itoa(b.nextLbl)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (b *Builder) Emit(in Instr) { b.f.Body = append(b.f.Body, in) }

func (b *Builder) Finish() *Func {
	b.f.NumVRegs = b.nextVReg
	return b.f
}

// Global is a file-scope object: either zero-initialized (.bss), or carrying
// an initial byte image (.data), or a string constant (.rodata).
type Global struct {
	Name     string
	Type     *types.Type
	Size     int
	Align    int
	Init     []byte // nil for .bss
	IsString bool
	ReadOnly bool
	IsStatic bool // internal linkage: emitted as a local symbol, no .globl
}

// Program is the whole translation unit's lowered IL: every function plus
// every file-scope object and string constant.
type Program struct {
	Funcs   []*Func
	Globals []Global
}
