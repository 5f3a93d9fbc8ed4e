// Package codegen consumes the lowered IL (internal/ir) and produces GAS
// x86-64 assembly text, following the System V AMD64 calling convention.
// The pipeline inside one function mirrors the component design exactly:
// liveness over the linearized instruction stream, an interference graph
// over virtual values, simplify-with-spill coloring against the available
// general-purpose registers, and a final pass of small fixed instruction
// patterns.
package codegen

import "github.com/gorse-io/csubc/internal/ir"

// cfg is the control-flow graph over instruction indices, built once per
// function from its labels and jumps so liveness can do backward dataflow
// without assuming straight-line fallthrough across a jump.
type cfg struct {
	succ [][]int
}

func buildCFG(body []ir.Instr) *cfg {
	labelAt := make(map[string]int, 8)
	for i, in := range body {
		if in.Op == ir.OpLabel {
			labelAt[in.Label] = i
		}
	}
	g := &cfg{succ: make([][]int, len(body))}
	for i, in := range body {
		switch in.Op {
		case ir.OpJump:
			g.succ[i] = []int{labelAt[in.Label]}
		case ir.OpJumpIfZero, ir.OpJumpIfNonzero:
			next := i + 1
			target := labelAt[in.Label]
			if i+1 < len(body) {
				g.succ[i] = []int{next, target}
			} else {
				g.succ[i] = []int{target}
			}
		case ir.OpReturn:
			g.succ[i] = nil
		default:
			if i+1 < len(body) {
				g.succ[i] = []int{i + 1}
			}
		}
	}
	return g
}

// defUse returns the virtual registers defined and used by one instruction.
// Const/GlobalAddr/StringAddr operands never contribute to def/use since
// they never occupy a register across instruction boundaries.
func defUse(in ir.Instr) (def int, hasDef bool, uses []int) {
	addUse := func(v ir.Value) {
		if v.Type != nil && v.Kind == ir.VReg {
			uses = append(uses, v.Reg)
		}
	}
	switch in.Op {
	case ir.OpSet:
		addUse(in.A)
	case ir.OpLoad:
		addUse(in.A)
	case ir.OpStore:
		addUse(in.A)
		addUse(in.B)
	case ir.OpAddrOfLocal, ir.OpAddrOfGlobal:
	case ir.OpBinary:
		addUse(in.A)
		addUse(in.B)
	case ir.OpUnary:
		addUse(in.A)
	case ir.OpConvert:
		addUse(in.A)
	case ir.OpCall:
		for _, a := range in.Args {
			addUse(a)
		}
	case ir.OpJumpIfZero, ir.OpJumpIfNonzero:
		addUse(in.A)
	case ir.OpReturn:
		addUse(in.A)
	}
	if in.Dst.Type != nil && in.Dst.Kind == ir.VReg {
		def = in.Dst.Reg
		hasDef = true
	}
	return
}

// liveOut[i] is the set of virtual registers live immediately after
// instruction i, computed by the standard backward fixed-point iteration:
// live-out(i) = union over successors s of live-in(s), live-in(i) =
// use(i) U (live-out(i) - def(i)).
func computeLiveness(f *ir.Func) []map[int]bool {
	g := buildCFG(f.Body)
	n := len(f.Body)
	liveIn := make([]map[int]bool, n)
	liveOut := make([]map[int]bool, n)
	for i := range f.Body {
		liveIn[i] = map[int]bool{}
		liveOut[i] = map[int]bool{}
	}
	defs := make([]int, n)
	hasDefs := make([]bool, n)
	uses := make([][]int, n)
	for i, in := range f.Body {
		d, ok, u := defUse(in)
		defs[i], hasDefs[i], uses[i] = d, ok, u
	}
	changed := true
	for changed {
		changed = false
		for i := n - 1; i >= 0; i-- {
			newOut := map[int]bool{}
			for _, s := range g.succ[i] {
				for v := range liveIn[s] {
					newOut[v] = true
				}
			}
			newIn := map[int]bool{}
			for v := range newOut {
				if !(hasDefs[i] && v == defs[i]) {
					newIn[v] = true
				}
			}
			for _, v := range uses[i] {
				newIn[v] = true
			}
			if !sameSet(newIn, liveIn[i]) {
				liveIn[i] = newIn
				changed = true
			}
			if !sameSet(newOut, liveOut[i]) {
				liveOut[i] = newOut
				changed = true
			}
		}
	}
	return liveOut
}

func sameSet(a, b map[int]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
