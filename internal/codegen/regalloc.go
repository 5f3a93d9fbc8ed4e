package codegen

import "github.com/gorse-io/csubc/internal/ir"

// physRegs is the allocatable general-purpose register set: RSP and RBP are
// reserved for the frame, and R10/R11 are kept as always-available scratch
// registers for address materialization and spill traffic (§4.6 "any
// temporarily reserved register").
var physRegs = []string{
	"rax", "rcx", "rdx", "rsi", "rdi", "r8", "r9", "rbx", "r12", "r13", "r14", "r15",
}

// calleeSaved is the subset of physRegs that must be preserved across a
// call, per the System V AMD64 convention.
var calleeSaved = map[string]bool{"rbx": true, "r12": true, "r13": true, "r14": true, "r15": true}

// calleeSavedOrder is the restricted candidate list for a vreg whose live
// range spans a call instruction.
var calleeSavedOrder = []string{"rbx", "r12", "r13", "r14", "r15"}

const scratch1 = "r10"
const scratch2 = "r11"

// loc is where one virtual register lives after allocation: either a
// physical register, or a spill slot on the stack.
type loc struct {
	reg       string // "" if spilled
	spillSlot int    // valid iff reg == ""
}

// allocateRegisters runs liveness, builds the interference graph, and
// colors it with simplify-and-spill, following §4.6 steps 1-3. Returns a
// location for every virtual register 0..f.NumVRegs-1 and the number of
// spill slots it introduced (appended after the function's named-local
// slots in the frame).
func allocateRegisters(f *ir.Func) (locs []loc, numSpillSlots int) {
	liveOut := computeLiveness(f)

	n := f.NumVRegs
	interfere := make([]map[int]bool, n)
	for i := range interfere {
		interfere[i] = map[int]bool{}
	}
	addEdge := func(a, b int) {
		if a == b {
			return
		}
		interfere[a][b] = true
		interfere[b][a] = true
	}
	uses := make([]int, n) // spill-cost heuristic: number of appearances
	// callCrossing marks every vreg whose live range spans a call
	// instruction: `call` clobbers every caller-saved register per the ABI,
	// so such a vreg can only be colored into a callee-saved one.
	callCrossing := make([]bool, n)
	for i, in := range f.Body {
		d, hasDef, us := defUse(in)
		for _, u := range us {
			uses[u]++
		}
		if hasDef {
			uses[d]++
			for v := range liveOut[i] {
				addEdge(d, v)
			}
		}
		if in.Op == ir.OpCall {
			for v := range liveOut[i] {
				if !hasDef || v != d {
					callCrossing[v] = true
				}
			}
		}
	}

	k := len(physRegs)
	locs = make([]loc, n)
	colored := make([]bool, n)
	removed := make([]bool, n)
	var stack []int

	degree := func(v int) int {
		c := 0
		for u := range interfere[v] {
			if !removed[u] {
				c++
			}
		}
		return c
	}

	remaining := n
	for remaining > 0 {
		progressed := false
		for v := 0; v < n; v++ {
			if removed[v] {
				continue
			}
			if degree(v) < k {
				stack = append(stack, v)
				removed[v] = true
				remaining--
				progressed = true
			}
		}
		if !progressed && remaining > 0 {
			// No node simplifies outright: optimistically push the
			// cheapest-to-spill candidate (lowest use count) and keep going;
			// it may still color once its higher-degree neighbors are gone.
			best, bestCost := -1, -1
			for v := 0; v < n; v++ {
				if removed[v] {
					continue
				}
				if best == -1 || uses[v] < bestCost {
					best, bestCost = v, uses[v]
				}
			}
			stack = append(stack, best)
			removed[best] = true
			remaining--
		}
	}

	for i := len(stack) - 1; i >= 0; i-- {
		v := stack[i]
		used := map[string]bool{}
		for u := range interfere[v] {
			if colored[u] {
				used[locs[u].reg] = true
			}
		}
		candidates := physRegs
		if callCrossing[v] {
			candidates = calleeSavedOrder
		}
		assigned := ""
		for _, r := range candidates {
			if !used[r] {
				assigned = r
				break
			}
		}
		if assigned == "" {
			locs[v] = loc{reg: "", spillSlot: numSpillSlots}
			numSpillSlots++
		} else {
			locs[v] = loc{reg: assigned}
			colored[v] = true
		}
	}
	return locs, numSpillSlots
}
