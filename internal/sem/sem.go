// Package sem is the semantic analyzer: it walks the AST top-down over
// declarations and bottom-up over expressions, applies the usual arithmetic
// conversions, checks assignability and call argument compatibility, and
// lowers each function body into the flat IL defined by internal/ir. IL
// emission is gated on zero accumulated errors, mirroring the pipeline's
// "a poisoned expression must not cascade into bogus follow-on diagnostics"
// invariant: once an expression's type resolves to types.Error, every
// operation built on it silently propagates Error without reporting again.
package sem

import (
	"fmt"

	"github.com/gorse-io/csubc/internal/ast"
	"github.com/gorse-io/csubc/internal/diag"
	"github.com/gorse-io/csubc/internal/ir"
	"github.com/gorse-io/csubc/internal/source"
	"github.com/gorse-io/csubc/internal/symtab"
	"github.com/gorse-io/csubc/internal/types"
)

// Analyzer carries the shared state for one translation unit's analysis.
type Analyzer struct {
	diags   *diag.Bag
	syms    *symtab.Table
	interp  *types.Interner
	strings map[string]string // literal text -> assigned label
	nextStr int
	statics      []ir.Global // block-scope static locals, gathered across all functions
	nextStaticID int
}

func New(diags *diag.Bag, syms *symtab.Table, interp *types.Interner) *Analyzer {
	return &Analyzer{diags: diags, syms: syms, interp: interp, strings: make(map[string]string)}
}

// Analyze walks the whole translation unit, producing the lowered program.
// Returns nil if diagnostics contain errors, since emission must not
// proceed on an inconsistent tree.
func (a *Analyzer) Analyze(tu *ast.TranslationUnit) *ir.Program {
	prog := &ir.Program{}
	for _, d := range tu.Decls {
		switch n := d.(type) {
		case *ast.FuncDef:
			if f := a.lowerFunc(n); f != nil {
				prog.Funcs = append(prog.Funcs, f)
			}
		case *ast.VarDecl:
			a.lowerFileVar(n, prog)
		case *ast.TypedefDecl, *ast.TagDecl:
			// nothing to lower
		}
	}
	for _, sym := range a.syms.ResolveTentativeDefinitions() {
		prog.Globals = append(prog.Globals, ir.Global{Name: sym.Name, Type: sym.Type, Size: sym.Type.Size(), Align: sym.Type.Alignment(), IsStatic: sym.Linkage == symtab.InternalLinkage})
	}
	prog.Globals = append(prog.Globals, a.statics...)
	for lit, label := range a.strings {
		prog.Globals = append(prog.Globals, ir.Global{Name: label, Type: a.interp.ArrayOf(a.interp.Scalar(types.Char, false), len(lit)+1), Init: append([]byte(lit), 0), IsString: true, ReadOnly: true})
	}
	if a.diags.HasErrors() {
		return nil
	}
	return prog
}

func (a *Analyzer) lowerFileVar(v *ast.VarDecl, prog *ir.Program) {
	if v.Type.Kind == types.Function {
		return
	}
	if v.Storage != int(symtab.Extern) && v.Init == nil && v.InitList == nil &&
		(v.Type.Kind == types.Struct || v.Type.Kind == types.Union) && v.Type.IsIncomplete() {
		a.diags.Errorf(v.Pos, "variable of incomplete type declared")
	}
	g := ir.Global{Name: v.Name, Type: v.Type, Size: v.Type.Size(), Align: v.Type.Alignment(), IsStatic: v.Storage == int(symtab.Static)}
	if v.Init != nil {
		e := a.checkExpr(v.Init)
		a.checkInitConversion(v.Pos, v.Type, typeOf(e), e)
		if lit, ok := e.(*ast.IntLit); ok {
			g.Init = encodeInt(lit.Value, v.Type.Size())
		}
	} else if v.InitList != nil {
		g.Init = a.encodeInitList(v.Type, v.InitList)
	}
	prog.Globals = append(prog.Globals, g)
}

// encodeInitList lays out a brace-enclosed constant initializer list into
// its file-scope byte image; non-constant elements encode as zero, since
// only integer-literal initializers are supported at file scope.
func (a *Analyzer) encodeInitList(t *types.Type, list []ast.Expr) []byte {
	out := make([]byte, max(t.Size(), 1))
	put := func(off, size int, v uint64) {
		if off+size > len(out) {
			return
		}
		copy(out[off:off+size], encodeInt(v, size))
	}
	switch t.Kind {
	case types.Struct, types.Union:
		for i, init := range list {
			if i >= len(t.Members) {
				break
			}
			m := t.Members[i]
			if lit, ok := a.checkExpr(init).(*ast.IntLit); ok {
				put(m.Offset, m.Type.Size(), lit.Value)
			}
		}
	default:
		elemSize := t.Elem.Size()
		for i, init := range list {
			if lit, ok := a.checkExpr(init).(*ast.IntLit); ok {
				put(i*elemSize, elemSize, lit.Value)
			}
		}
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func encodeInt(v uint64, size int) []byte {
	if size <= 0 {
		size = 8
	}
	out := make([]byte, size)
	for i := 0; i < size; i++ {
		out[i] = byte(v >> (8 * i))
	}
	return out
}

// funcCtx is per-function lowering state: the IR builder, the label stack
// for break/continue targets, and the function's declared return type for
// return-statement checking.
type funcCtx struct {
	b           *ir.Builder
	retType     *types.Type
	breakLbl    []string
	continueLbl []string
	slots       map[string]int
	nextSlot    int
	funcName    string
	// staticNames maps a block-scope static local's source name to the
	// unique file-scope label its storage was given, so references to it
	// resolve to that global instead of a fresh stack slot.
	staticNames map[string]string
}

func (a *Analyzer) lowerFunc(fn *ast.FuncDef) *ir.Func {
	b := ir.NewBuilder(fn.Name, fn.Type.Ret)
	fc := &funcCtx{b: b, retType: fn.Type.Ret, slots: make(map[string]int), funcName: fn.Name, staticNames: make(map[string]string)}
	for i, pname := range fn.ParamNames {
		if pname == "" {
			continue
		}
		slot := fc.allocSlot(pname)
		v := b.NewVReg(fn.Type.Params[i])
		b.f.Params = append(b.f.Params, v)
		addr := b.NewVReg(a.interp.PointerTo(fn.Type.Params[i]))
		b.Emit(ir.Instr{Op: ir.OpAddrOfLocal, Dst: addr, Slot: slot})
		b.Emit(ir.Instr{Op: ir.OpStore, A: addr, B: v})
	}
	a.lowerBlock(fc, fn.Body)
	b.Emit(ir.Instr{Op: ir.OpReturn})
	f := b.Finish()
	f.NumSlots = fc.nextSlot
	f.IsStatic = fn.Storage == int(symtab.Static)
	return f
}

func (fc *funcCtx) allocSlot(name string) int {
	if s, ok := fc.slots[name]; ok {
		return s
	}
	s := fc.nextSlot
	fc.nextSlot++
	fc.slots[name] = s
	return s
}

func (a *Analyzer) lowerBlock(fc *funcCtx, blk *ast.Block) {
	for _, item := range blk.Items {
		if item.Decl != nil {
			a.lowerLocalDecl(fc, item.Decl)
		}
		if item.Stmt != nil {
			a.lowerStmt(fc, item.Stmt)
		}
	}
}

func (a *Analyzer) lowerLocalDecl(fc *funcCtx, d ast.Decl) {
	switch n := d.(type) {
	case *ast.VarDecl:
		if n.Type.Kind == types.Function {
			return
		}
		if n.Storage == int(symtab.Static) {
			if n.Type.IsIncomplete() {
				a.diags.Errorf(n.Pos, "variable of incomplete type declared")
			}
			a.lowerStaticLocal(fc, n)
			return
		}
		if n.Type.IsIncomplete() {
			a.diags.Errorf(n.Pos, "variable of incomplete type declared")
		}
		fc.allocSlot(n.Name)
		if n.Init != nil {
			rhs := a.checkExpr(n.Init)
			a.checkInitConversion(n.Pos, n.Type, typeOf(rhs), rhs)
			a.lowerAssignToName(fc, n.Name, n.Type, rhs)
		} else if n.InitList != nil {
			a.lowerInitList(fc, n)
		}
	case *ast.TypedefDecl, *ast.TagDecl:
	}
}

// lowerStaticLocal gives a block-scope static variable a unique file-scope
// label instead of a stack slot, so its value persists across calls to the
// enclosing function rather than being reallocated on every invocation. Its
// initializer, like a file-scope object's, is evaluated once into the
// static's initial byte image rather than re-run on each call.
func (a *Analyzer) lowerStaticLocal(fc *funcCtx, n *ast.VarDecl) {
	label := fmt.Sprintf("%s.%s.%d", fc.funcName, n.Name, a.nextStaticID)
	a.nextStaticID++
	fc.staticNames[n.Name] = label
	g := ir.Global{Name: label, Type: n.Type, Size: n.Type.Size(), Align: n.Type.Alignment(), IsStatic: true}
	if n.Init != nil {
		e := a.checkExpr(n.Init)
		a.checkInitConversion(n.Pos, n.Type, typeOf(e), e)
		if lit, ok := e.(*ast.IntLit); ok {
			g.Init = encodeInt(lit.Value, n.Type.Size())
		}
	} else if n.InitList != nil {
		g.Init = a.encodeInitList(n.Type, n.InitList)
	}
	a.statics = append(a.statics, g)
}

func (a *Analyzer) lowerAssignToName(fc *funcCtx, name string, declType *types.Type, rhs ast.Expr) {
	rv := a.lowerExpr(fc, rhs)
	addr := fc.b.NewVReg(a.interp.PointerTo(declType))
	fc.b.Emit(ir.Instr{Op: ir.OpAddrOfLocal, Dst: addr, Slot: fc.allocSlot(name)})
	fc.b.Emit(ir.Instr{Op: ir.OpStore, A: addr, B: rv})
}

// lowerInitList assigns each element of a brace-enclosed initializer in
// turn, one element per array/struct member slot; a short list leaves the
// remaining trailing elements unwritten, so they hold whatever the frame's
// memory already held (in internal/ilrun that is zero, since its frames are
// carved from fresh, zeroed arena memory).
func (a *Analyzer) lowerInitList(fc *funcCtx, n *ast.VarDecl) {
	elemType := n.Type.Ret
	if n.Type.Kind == types.Array {
		elemType = n.Type.Elem
	} else if n.Type.Kind == types.Struct || n.Type.Kind == types.Union {
		for i, init := range n.InitList {
			if i >= len(n.Type.Members) {
				break
			}
			m := n.Type.Members[i]
			rv := a.lowerExpr(fc, a.checkExpr(init))
			base := fc.b.NewVReg(a.interp.PointerTo(n.Type))
			fc.b.Emit(ir.Instr{Op: ir.OpAddrOfLocal, Dst: base, Slot: fc.allocSlot(n.Name)})
			off := ir.ConstInt(int64(m.Offset), a.interp.Scalar(types.Long, true))
			addr := fc.b.NewVReg(a.interp.PointerTo(m.Type))
			fc.b.Emit(ir.Instr{Op: ir.OpBinary, Dst: addr, A: base, B: off, BinOp: "+"})
			fc.b.Emit(ir.Instr{Op: ir.OpStore, A: addr, B: rv})
		}
		return
	}
	for i, init := range n.InitList {
		rv := a.lowerExpr(fc, a.checkExpr(init))
		base := fc.b.NewVReg(a.interp.PointerTo(n.Type))
		fc.b.Emit(ir.Instr{Op: ir.OpAddrOfLocal, Dst: base, Slot: fc.allocSlot(n.Name)})
		addr := a.lowerIndexAddr(fc, base, ir.ConstInt(int64(i), a.interp.Scalar(types.Long, true)), elemType)
		fc.b.Emit(ir.Instr{Op: ir.OpStore, A: addr, B: rv})
	}
}

func (a *Analyzer) lowerStmt(fc *funcCtx, s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Block:
		a.lowerBlock(fc, n)
	case *ast.ExprStmt:
		e := a.checkExpr(n.X)
		a.lowerExpr(fc, e)
	case *ast.IfStmt:
		a.lowerIf(fc, n)
	case *ast.WhileStmt:
		a.lowerWhile(fc, n)
	case *ast.ForStmt:
		a.lowerFor(fc, n)
	case *ast.ReturnStmt:
		if n.X != nil {
			if fc.retType.Kind == types.Void {
				a.diags.Errorf(n.Pos, "function with void return type cannot return value")
			} else if fc.retType.IsIncomplete() {
				a.diags.Errorf(n.Pos, "function returns non-void incomplete type")
			}
			e := a.checkExpr(n.X)
			a.checkInitConversion(n.Pos, fc.retType, typeOf(e), e)
			v := a.lowerExpr(fc, e)
			fc.b.Emit(ir.Instr{Op: ir.OpReturn, A: v})
		} else {
			if fc.retType.Kind != types.Void {
				a.diags.Errorf(n.Pos, "function with non-void return type must return value")
			}
			fc.b.Emit(ir.Instr{Op: ir.OpReturn})
		}
	case *ast.BreakStmt:
		if len(fc.breakLbl) == 0 {
			a.diags.Errorf(n.Pos, "'break' statement not in loop")
			return
		}
		fc.b.Emit(ir.Instr{Op: ir.OpJump, Label: fc.breakLbl[len(fc.breakLbl)-1]})
	case *ast.ContinueStmt:
		if len(fc.continueLbl) == 0 {
			a.diags.Errorf(n.Pos, "'continue' statement not in loop")
			return
		}
		fc.b.Emit(ir.Instr{Op: ir.OpJump, Label: fc.continueLbl[len(fc.continueLbl)-1]})
	case *ast.GotoStmt:
		fc.b.Emit(ir.Instr{Op: ir.OpJump, Label: "L$" + n.Label})
	case *ast.LabeledStmt:
		fc.b.Emit(ir.Instr{Op: ir.OpLabel, Label: "L$" + n.Label})
		a.lowerStmt(fc, n.Inner)
	case *ast.DeclStmt:
		a.lowerLocalDecl(fc, n.D)
	case *ast.EmptyStmt:
	}
}

func (a *Analyzer) lowerIf(fc *funcCtx, n *ast.IfStmt) {
	cond := a.lowerExpr(fc, a.checkExpr(n.Cond))
	elseLbl := fc.b.NewLabel("if.else")
	endLbl := fc.b.NewLabel("if.end")
	fc.b.Emit(ir.Instr{Op: ir.OpJumpIfZero, A: cond, Label: elseLbl})
	a.lowerStmt(fc, n.Then)
	fc.b.Emit(ir.Instr{Op: ir.OpJump, Label: endLbl})
	fc.b.Emit(ir.Instr{Op: ir.OpLabel, Label: elseLbl})
	if n.Else != nil {
		a.lowerStmt(fc, n.Else)
	}
	fc.b.Emit(ir.Instr{Op: ir.OpLabel, Label: endLbl})
}

func (a *Analyzer) lowerWhile(fc *funcCtx, n *ast.WhileStmt) {
	startLbl := fc.b.NewLabel("while.cond")
	bodyLbl := fc.b.NewLabel("while.body")
	endLbl := fc.b.NewLabel("while.end")
	fc.b.Emit(ir.Instr{Op: ir.OpLabel, Label: startLbl})
	cond := a.lowerExpr(fc, a.checkExpr(n.Cond))
	fc.b.Emit(ir.Instr{Op: ir.OpJumpIfZero, A: cond, Label: endLbl})
	fc.b.Emit(ir.Instr{Op: ir.OpLabel, Label: bodyLbl})
	fc.breakLbl = append(fc.breakLbl, endLbl)
	fc.continueLbl = append(fc.continueLbl, startLbl)
	a.lowerStmt(fc, n.Body)
	fc.breakLbl = fc.breakLbl[:len(fc.breakLbl)-1]
	fc.continueLbl = fc.continueLbl[:len(fc.continueLbl)-1]
	fc.b.Emit(ir.Instr{Op: ir.OpJump, Label: startLbl})
	fc.b.Emit(ir.Instr{Op: ir.OpLabel, Label: endLbl})
}

func (a *Analyzer) lowerFor(fc *funcCtx, n *ast.ForStmt) {
	if n.Init != nil {
		a.lowerStmt(fc, n.Init)
	}
	condLbl := fc.b.NewLabel("for.cond")
	postLbl := fc.b.NewLabel("for.post")
	endLbl := fc.b.NewLabel("for.end")
	fc.b.Emit(ir.Instr{Op: ir.OpLabel, Label: condLbl})
	if n.Cond != nil {
		cond := a.lowerExpr(fc, a.checkExpr(n.Cond))
		fc.b.Emit(ir.Instr{Op: ir.OpJumpIfZero, A: cond, Label: endLbl})
	}
	fc.breakLbl = append(fc.breakLbl, endLbl)
	fc.continueLbl = append(fc.continueLbl, postLbl)
	a.lowerStmt(fc, n.Body)
	fc.breakLbl = fc.breakLbl[:len(fc.breakLbl)-1]
	fc.continueLbl = fc.continueLbl[:len(fc.continueLbl)-1]
	fc.b.Emit(ir.Instr{Op: ir.OpLabel, Label: postLbl})
	if n.Post != nil {
		a.lowerExpr(fc, a.checkExpr(n.Post))
	}
	fc.b.Emit(ir.Instr{Op: ir.OpJump, Label: condLbl})
	fc.b.Emit(ir.Instr{Op: ir.OpLabel, Label: endLbl})
}

// checkExpr performs type resolution bottom-up, filling ResolvedType and
// IsLvalue on every node reachable from e, then returns e so callers can
// thread the now-typed tree straight into lowerExpr.
func (a *Analyzer) checkExpr(e ast.Expr) ast.Expr {
	switch n := e.(type) {
	case *ast.IntLit:
		n.ResolvedType = a.interp.Scalar(types.Int, false)
	case *ast.StringLit:
		label := a.internString(n.Value)
		n.ResolvedType = a.interp.PointerTo(a.interp.Scalar(types.Char, false))
		n.Value = label // repurposed to carry the assigned label into lowering
	case *ast.Ident:
		sym, ok := a.syms.LookupOrdinary(n.Name)
		if !ok {
			a.diags.Errorf(n.Pos, "use of undeclared identifier '%s'", n.Name)
			n.ResolvedType = a.interp.ErrorType()
			return n
		}
		n.ResolvedType = sym.Type
		// Arrays are lvalues (so &arr and *&arr round-trip per §8's pointer
		// invariants); only function designators are not. Plain assignment
		// to an array name is still rejected separately, by isAssignable's
		// explicit array check.
		n.IsLvalue = sym.Type.Kind != types.Function
	case *ast.BinaryExpr:
		a.checkExpr(n.Left)
		a.checkExpr(n.Right)
		a.resolveBinary(n)
	case *ast.UnaryExpr:
		a.checkExpr(n.X)
		a.resolveUnary(n)
	case *ast.PostfixExpr:
		a.checkExpr(n.X)
		a.resolvePostfix(n)
	case *ast.CallExpr:
		if id, ok := n.Callee.(*ast.Ident); ok {
			if _, found := a.syms.LookupOrdinary(id.Name); !found {
				a.diags.Warnf(id.Pos, "implicit declaration of function '%s'", id.Name)
				id.ResolvedType = a.interp.FunctionType(a.interp.Scalar(types.Int, false), nil, false)
			} else {
				a.checkExpr(n.Callee)
			}
		} else {
			a.checkExpr(n.Callee)
		}
		for _, arg := range n.Args {
			a.checkExpr(arg)
		}
		a.resolveCall(n)
	case *ast.IndexExpr:
		a.checkExpr(n.X)
		a.checkExpr(n.Index)
		_, _, base := a.indexOperands(n)
		if xt, it := typeOf(n.X), typeOf(n.Index); (xt != nil && xt.IsError()) || (it != nil && it.IsError()) {
			n.ResolvedType = a.interp.ErrorType()
		} else if base.Kind != types.Pointer {
			a.diags.Errorf(n.Pos, "invalid operand types for array subscriping")
			n.ResolvedType = a.interp.ErrorType()
		} else if base.Elem.IsIncomplete() {
			a.diags.Errorf(n.Pos, "cannot subscript pointer to incomplete type")
			n.ResolvedType = a.interp.ErrorType()
		} else {
			n.ResolvedType = base.Elem
			n.IsLvalue = true
		}
	case *ast.MemberExpr:
		a.checkExpr(n.X)
		a.resolveMember(n)
	case *ast.CastExpr:
		a.checkExpr(n.X)
		src := typeOf(n.X)
		if !n.Target.IsScalar() && n.Target.Kind != types.Void {
			a.diags.Errorf(n.Pos, "can only cast to scalar or void type")
		} else if !src.IsScalar() && !src.IsError() {
			a.diags.Errorf(n.Pos, "can only cast from scalar type")
		}
		n.ResolvedType = n.Target
	case *ast.SizeofExpr:
		if n.X != nil {
			a.checkExpr(n.X)
		}
		n.ResolvedType = a.interp.Scalar(types.Long, true)
	case *ast.CondExpr:
		a.checkExpr(n.Cond)
		a.checkExpr(n.Then)
		a.checkExpr(n.Else)
		n.ResolvedType = typeOf(n.Then)
	}
	return e
}

func typeOf(e ast.Expr) *types.Type {
	switch n := e.(type) {
	case *ast.IntLit:
		return n.ResolvedType
	case *ast.StringLit:
		return n.ResolvedType
	case *ast.Ident:
		return n.ResolvedType
	case *ast.BinaryExpr:
		return n.ResolvedType
	case *ast.UnaryExpr:
		return n.ResolvedType
	case *ast.PostfixExpr:
		return n.ResolvedType
	case *ast.CallExpr:
		return n.ResolvedType
	case *ast.IndexExpr:
		return n.ResolvedType
	case *ast.MemberExpr:
		return n.ResolvedType
	case *ast.CastExpr:
		return n.ResolvedType
	case *ast.SizeofExpr:
		return n.ResolvedType
	case *ast.CondExpr:
		return n.ResolvedType
	}
	return nil
}

func (a *Analyzer) internString(s string) string {
	if label, ok := a.strings[s]; ok {
		return label
	}
	a.nextStr++
	label := fmt.Sprintf(".LC%d", a.nextStr)
	a.strings[s] = label
	return label
}

func (a *Analyzer) resolveBinary(n *ast.BinaryExpr) {
	lt, rt := typeOf(n.Left), typeOf(n.Right)
	if lt == nil || rt == nil || lt.IsError() || rt.IsError() {
		n.ResolvedType = a.interp.ErrorType()
		return
	}
	switch n.Op {
	case "=":
		if !a.isAssignable(n.Left) {
			a.diags.Errorf(n.Pos, "expression on left of '%s' is not assignable", n.Op)
			n.ResolvedType = a.interp.ErrorType()
			return
		}
		a.checkAssignConversion(n.Pos, lt, rt, n.Right)
		n.ResolvedType = lt
	case "+=", "-=", "*=", "/=", "%=":
		if !a.isAssignable(n.Left) {
			a.diags.Errorf(n.Pos, "expression on left of '%s' is not assignable", n.Op)
			n.ResolvedType = a.interp.ErrorType()
			return
		}
		if !(lt.IsArithmetic() && rt.IsArithmetic()) && !(lt.IsPointer() && rt.IsIntegral() && (n.Op == "+=" || n.Op == "-=")) {
			a.diags.Errorf(n.Pos, "invalid types for '%s' operator", n.Op)
		}
		n.ResolvedType = lt
	case "==", "!=":
		a.checkEqualityOperands(n.Pos, lt, rt)
		n.ResolvedType = a.interp.Scalar(types.Int, false)
	case "<", ">", "<=", ">=":
		if lt.IsPointer() && rt.IsPointer() && !types.Compatible(lt, rt) {
			a.diags.Warnf(n.Pos, "comparison between distinct pointer types")
		}
		n.ResolvedType = a.interp.Scalar(types.Int, false)
	case "&&", "||":
		if !lt.IsScalar() || !rt.IsScalar() {
			a.diags.Errorf(n.Pos, "invalid operand types for '%s'", n.Op)
		}
		n.ResolvedType = a.interp.Scalar(types.Int, false)
	case "<<", ">>":
		if !lt.IsIntegral() || !rt.IsIntegral() {
			a.diags.Errorf(n.Pos, "invalid operand types for bitwise shift")
			n.ResolvedType = a.interp.ErrorType()
			return
		}
		n.ResolvedType = a.interp.Scalar(rankKind(maxRank(lt)), lt.Unsigned)
	case "&", "|", "^":
		if !lt.IsIntegral() || !rt.IsIntegral() {
			a.diags.Errorf(n.Pos, "invalid operand types for '%s'", n.Op)
			n.ResolvedType = a.interp.ErrorType()
			return
		}
		n.ResolvedType = usualArith(a.interp, lt, rt)
	case "+", "-":
		switch {
		case lt.IsPointer() && rt.IsPointer():
			if n.Op != "-" {
				a.diags.Errorf(n.Pos, "invalid operand types for '+'")
				n.ResolvedType = a.interp.ErrorType()
				return
			}
			if lt.Elem.IsIncomplete() || rt.Elem.IsIncomplete() {
				a.diags.Errorf(n.Pos, "invalid arithmetic on pointers to incomplete types")
			}
			n.ResolvedType = a.interp.Scalar(types.Long, true)
		case lt.IsPointer():
			if lt.Elem.IsIncomplete() {
				a.diags.Errorf(n.Pos, "invalid arithmetic on pointer to incomplete type")
			}
			if !rt.IsIntegral() {
				a.diags.Errorf(n.Pos, "invalid operand types for '%s'", n.Op)
			}
			n.ResolvedType = lt
		case rt.IsPointer():
			if n.Op != "+" {
				a.diags.Errorf(n.Pos, "invalid operand types for '-'")
				n.ResolvedType = a.interp.ErrorType()
				return
			}
			if rt.Elem.IsIncomplete() {
				a.diags.Errorf(n.Pos, "invalid arithmetic on pointer to incomplete type")
			}
			if !lt.IsIntegral() {
				a.diags.Errorf(n.Pos, "invalid operand types for '%s'", n.Op)
			}
			n.ResolvedType = rt
		default:
			if !lt.IsArithmetic() || !rt.IsArithmetic() {
				a.diags.Errorf(n.Pos, "invalid operand types for '%s'", n.Op)
				n.ResolvedType = a.interp.ErrorType()
				return
			}
			n.ResolvedType = usualArith(a.interp, lt, rt)
		}
	case "*", "/", "%":
		if !lt.IsArithmetic() || !rt.IsArithmetic() {
			a.diags.Errorf(n.Pos, "invalid operand types for '%s'", n.Op)
			n.ResolvedType = a.interp.ErrorType()
			return
		}
		n.ResolvedType = usualArith(a.interp, lt, rt)
	default:
		n.ResolvedType = usualArith(a.interp, lt, rt)
	}
}

// checkEqualityOperands flags pointer comparisons between incompatible
// pointer types; comparing a pointer against an integral operand (the
// common null-constant idiom) is left unflagged.
func (a *Analyzer) checkEqualityOperands(pos source.Pos, lt, rt *types.Type) {
	if lt.IsPointer() && rt.IsPointer() && !types.Compatible(lt, rt) {
		a.diags.Warnf(pos, "comparison between distinct pointer types")
	}
}

// isNullConstant reports whether e is the literal integer 0, the one
// non-pointer value that may convert to or from any pointer type without
// a diagnostic.
func isNullConstant(e ast.Expr) bool {
	lit, ok := e.(*ast.IntLit)
	return ok && lit.Value == 0
}

// isAssignable reports whether e may appear on the left of an assignment or
// as the operand of "++"/"--": an lvalue, not of array type, not of
// incomplete type, and not const-qualified directly or through the member
// path used to name it (the qualifier already lives on e's own ResolvedType,
// since resolveMember propagates a const struct/union's constness onto
// every member it names).
func (a *Analyzer) isAssignable(e ast.Expr) bool {
	t := typeOf(e)
	if !e.IsLValue() || t == nil || t.IsError() {
		return false
	}
	if t.Kind == types.Array || t.IsIncomplete() {
		return false
	}
	return t.Qual&types.Const == 0
}

// indexOperands determines which operand of a subscript expression is the
// pointer (or array, which decays to one) being indexed and which is the
// integer index, honoring C's subscript commutativity: "a[i]" and "i[a]"
// denote the same expression, so "4[array]" must subscript just as
// "array[4]" does. baseType is the decayed type of the chosen pointer
// operand, reported even when it turns out not to be a pointer so callers
// can still produce a diagnostic against it.
func (a *Analyzer) indexOperands(n *ast.IndexExpr) (base, idx ast.Expr, baseType *types.Type) {
	xt := a.interp.Decay(typeOf(n.X))
	if xt.Kind == types.Pointer {
		return n.X, n.Index, xt
	}
	it := a.interp.Decay(typeOf(n.Index))
	if it.Kind == types.Pointer {
		return n.Index, n.X, it
	}
	return n.X, n.Index, xt
}

// checkPointerScalarMismatch flags a conversion between a pointer and a
// non-pointer scalar on either side, other than the literal-zero null
// pointer idiom; this is the general too scalar/pointer mismatch (assigning
// an address to an int, or a non-zero integer to a pointer) distinct from
// the pointer-to-incompatible-pointer-type warnings below.
func checkPointerScalarMismatch(pos source.Pos, a *Analyzer, lt, rt *types.Type, rhs ast.Expr) bool {
	if lt.IsPointer() != rt.IsPointer() && lt.IsScalar() && rt.IsScalar() {
		if lt.IsPointer() && rhs != nil && isNullConstant(rhs) {
			return false
		}
		a.diags.Errorf(pos, "invalid conversion between types")
		return true
	}
	return false
}

// checkAssignConversion flags an assignment whose right-hand side is a
// pointer to an incompatible type, or a pointer/non-pointer scalar
// mismatch; ordinary arithmetic conversions are always allowed across
// scalar types.
func (a *Analyzer) checkAssignConversion(pos source.Pos, lt, rt *types.Type, rhs ast.Expr) {
	if lt == nil || rt == nil || lt.IsError() || rt.IsError() {
		return
	}
	if checkPointerScalarMismatch(pos, a, lt, rt, rhs) {
		return
	}
	if lt.IsPointer() && rt.IsPointer() && !types.Compatible(lt, rt) {
		a.diags.Warnf(pos, "assignment from incompatible pointer type")
	}
}

// checkInitConversion is checkAssignConversion's counterpart for a
// declaration's initializer, where a function or array designator decays
// to a pointer before the compatibility check runs (so "void* f = isalpha;"
// is checked against isalpha's decayed function-pointer type).
func (a *Analyzer) checkInitConversion(pos source.Pos, declType, initType *types.Type, rhs ast.Expr) {
	if declType == nil || initType == nil || initType.IsError() {
		return
	}
	if declType.Kind == types.Array {
		a.diags.Errorf(pos, "declared variable is not of assignable type")
		return
	}
	initType = a.interp.Decay(initType)
	if checkPointerScalarMismatch(pos, a, declType, initType, rhs) {
		return
	}
	if declType.IsPointer() && initType.IsPointer() && !types.Compatible(declType, initType) {
		a.diags.Warnf(pos, "conversion from incompatible pointer type")
	}
}

// usualArith implements the usual arithmetic conversions: promote to the
// higher rank, and to unsigned on a tie in rank where either side is
// unsigned.
func usualArith(interp *types.Interner, a, b *types.Type) *types.Type {
	ra, rb := maxRank(a), maxRank(b)
	if ra > rb {
		return interp.Scalar(rankKind(ra), a.Unsigned)
	}
	if rb > ra {
		return interp.Scalar(rankKind(rb), b.Unsigned)
	}
	return interp.Scalar(rankKind(ra), a.Unsigned || b.Unsigned)
}

// intRank is the rank of int; integer promotion never lets an operand's
// effective rank fall below it.
const intRank = 3

func maxRank(t *types.Type) int {
	if r := t.Rank(); r > intRank {
		return r
	}
	return intRank
}

func rankKind(r int) types.Kind {
	switch r {
	case 0, 1, 2, 3:
		return types.Int
	default:
		return types.Long
	}
}

func (a *Analyzer) resolveUnary(n *ast.UnaryExpr) {
	xt := typeOf(n.X)
	if xt == nil || xt.IsError() {
		n.ResolvedType = a.interp.ErrorType()
		return
	}
	switch n.Op {
	case "&":
		if !n.X.IsLValue() {
			a.diags.Errorf(n.Pos, "operand of unary '&' must be lvalue")
			n.ResolvedType = a.interp.ErrorType()
			return
		}
		n.ResolvedType = a.interp.PointerTo(xt)
	case "*":
		if xt.Kind != types.Pointer {
			a.diags.Errorf(n.Pos, "operand of unary '*' must have pointer type")
			n.ResolvedType = a.interp.ErrorType()
			return
		}
		n.ResolvedType = xt.Elem
		n.IsLvalue = true
	case "!":
		if !xt.IsScalar() {
			a.diags.Errorf(n.Pos, "invalid operand types for '!'")
		}
		n.ResolvedType = a.interp.Scalar(types.Int, false)
	case "+", "-", "~":
		if !xt.IsArithmetic() {
			a.diags.Errorf(n.Pos, "invalid operand types for unary '%s'", n.Op)
		}
		n.ResolvedType = xt
	case "++", "--":
		if !xt.IsArithmetic() && !xt.IsPointer() {
			a.diags.Errorf(n.Pos, "invalid type for increment operator")
		}
		if !a.isAssignable(n.X) {
			a.diags.Errorf(n.Pos, "expression on left of '%s' is not assignable", n.Op)
		}
		n.ResolvedType = xt
	default:
		n.ResolvedType = xt
	}
}

// resolvePostfix applies the same operand and assignability rules as
// resolveUnary's "++"/"--" case to the postfix forms.
func (a *Analyzer) resolvePostfix(n *ast.PostfixExpr) {
	xt := typeOf(n.X)
	if xt == nil || xt.IsError() {
		n.ResolvedType = a.interp.ErrorType()
		return
	}
	if !xt.IsArithmetic() && !xt.IsPointer() {
		a.diags.Errorf(n.Pos, "invalid type for increment operator")
	}
	if !a.isAssignable(n.X) {
		a.diags.Errorf(n.Pos, "expression on left of '%s' is not assignable", n.Op)
	}
	n.ResolvedType = xt
}

func (a *Analyzer) resolveCall(n *ast.CallExpr) {
	ft := typeOf(n.Callee)
	if ft == nil || ft.IsError() {
		n.ResolvedType = a.interp.ErrorType()
		return
	}
	if ft.Kind == types.Pointer {
		ft = ft.Elem
	}
	if ft.Kind != types.Function {
		a.diags.Errorf(n.Pos, "called object is not a function pointer")
		n.ResolvedType = a.interp.ErrorType()
		return
	}
	if ft.HasPrototype && len(ft.Params) != len(n.Args) {
		a.diags.Errorf(n.Pos, "incorrect number of arguments for function call (expected %d, have %d)", len(ft.Params), len(n.Args))
	}
	if ft.HasPrototype {
		for i, want := range ft.Params {
			if i >= len(n.Args) {
				break
			}
			got := typeOf(n.Args[i])
			if got != nil && !got.IsError() {
				got = a.interp.Decay(got)
				if checkPointerScalarMismatch(n.Args[i].Loc(), a, want, got, n.Args[i]) {
					continue
				}
				if want.IsPointer() && got.IsPointer() && !types.Compatible(want, got) {
					a.diags.Warnf(n.Args[i].Loc(), "conversion from incompatible pointer type")
				}
			}
		}
	}
	n.ResolvedType = ft.Ret
}

func (a *Analyzer) resolveMember(n *ast.MemberExpr) {
	xt := typeOf(n.X)
	if xt == nil || xt.IsError() {
		n.ResolvedType = a.interp.ErrorType()
		return
	}
	st := xt
	if n.Arrow {
		if xt.Kind != types.Pointer {
			a.diags.Errorf(n.Pos, "first argument of '->' must have pointer type")
			n.ResolvedType = a.interp.ErrorType()
			return
		}
		st = xt.Elem
	}
	if st.Kind != types.Struct && st.Kind != types.Union {
		a.diags.Errorf(n.Pos, "request for member in something not a structure or union")
		n.ResolvedType = a.interp.ErrorType()
		return
	}
	m, ok := st.LookupMember(n.Name)
	if !ok {
		a.diags.Errorf(n.Pos, "structure or union has no member '%s'", n.Name)
		n.ResolvedType = a.interp.ErrorType()
		return
	}
	memberType := m.Type
	if st.Qual&types.Const != 0 && memberType.Qual&types.Const == 0 {
		memberType = a.interp.Qualified(memberType, memberType.Qual|types.Const)
	}
	n.ResolvedType = memberType
	n.IsLvalue = true
}

func kindWord(k types.Kind) string {
	if k == types.Union {
		return "union"
	}
	return "struct"
}

// lowerExpr emits IR for an already-checked expression, returning the
// virtual value holding its result.
func (a *Analyzer) lowerExpr(fc *funcCtx, e ast.Expr) ir.Value {
	switch n := e.(type) {
	case *ast.IntLit:
		return ir.ConstInt(int64(n.Value), n.ResolvedType)
	case *ast.StringLit:
		return ir.StringRef(n.Value, n.ResolvedType)
	case *ast.Ident:
		addr := a.identAddr(fc, n)
		if n.ResolvedType.Kind == types.Array || n.ResolvedType.Kind == types.Function {
			return addr
		}
		v := fc.b.NewVReg(n.ResolvedType)
		fc.b.Emit(ir.Instr{Op: ir.OpLoad, Dst: v, A: addr})
		return v
	case *ast.BinaryExpr:
		return a.lowerBinary(fc, n)
	case *ast.UnaryExpr:
		return a.lowerUnary(fc, n)
	case *ast.PostfixExpr:
		old := a.lowerExpr(fc, n.X)
		one := ir.ConstInt(1, n.ResolvedType)
		op := "+"
		if n.Op == "--" {
			op = "-"
		}
		nv := fc.b.NewVReg(n.ResolvedType)
		fc.b.Emit(ir.Instr{Op: ir.OpBinary, Dst: nv, A: old, B: one, BinOp: op})
		a.storeTo(fc, n.X, nv)
		return old
	case *ast.CallExpr:
		var args []ir.Value
		for _, arg := range n.Args {
			args = append(args, a.lowerExpr(fc, arg))
		}
		name := ""
		if id, ok := n.Callee.(*ast.Ident); ok {
			name = id.Name
		}
		var dst ir.Value
		if n.ResolvedType.Kind != types.Void {
			dst = fc.b.NewVReg(n.ResolvedType)
		}
		fc.b.Emit(ir.Instr{Op: ir.OpCall, Dst: dst, Sym: name, Args: args})
		return dst
	case *ast.IndexExpr:
		baseExpr, idxExpr, _ := a.indexOperands(n)
		base := a.lowerExpr(fc, baseExpr)
		idx := a.lowerExpr(fc, idxExpr)
		addr := a.lowerIndexAddr(fc, base, idx, n.ResolvedType)
		v := fc.b.NewVReg(n.ResolvedType)
		fc.b.Emit(ir.Instr{Op: ir.OpLoad, Dst: v, A: addr})
		return v
	case *ast.MemberExpr:
		addr := a.lowerMemberAddr(fc, n)
		v := fc.b.NewVReg(n.ResolvedType)
		fc.b.Emit(ir.Instr{Op: ir.OpLoad, Dst: v, A: addr})
		return v
	case *ast.CastExpr:
		x := a.lowerExpr(fc, n.X)
		return a.emitConvert(fc, x, n.Target)
	case *ast.SizeofExpr:
		var sz int
		if n.OfType != nil {
			sz = n.OfType.Size()
		} else {
			sz = typeOf(n.X).Size()
		}
		return ir.ConstInt(int64(sz), n.ResolvedType)
	case *ast.CondExpr:
		return a.lowerCond(fc, n)
	}
	return ir.Value{}
}

func (a *Analyzer) emitConvert(fc *funcCtx, v ir.Value, target *types.Type) ir.Value {
	if v.Type != nil && v.Type.Size() == target.Size() {
		dst := fc.b.NewVReg(target)
		fc.b.Emit(ir.Instr{Op: ir.OpConvert, Dst: dst, A: v, Conv: ir.ConvTrunc})
		return dst
	}
	dst := fc.b.NewVReg(target)
	conv := ir.ConvZExt
	if v.Type != nil && !v.Type.Unsigned {
		conv = ir.ConvSExt
	}
	if v.Type != nil && target.Size() < v.Type.Size() {
		conv = ir.ConvTrunc
	}
	fc.b.Emit(ir.Instr{Op: ir.OpConvert, Dst: dst, A: v, Conv: conv})
	return dst
}

func (a *Analyzer) lowerIndexAddr(fc *funcCtx, base, idx ir.Value, elemType *types.Type) ir.Value {
	scale := ir.ConstInt(int64(elemType.Size()), a.interp.Scalar(types.Long, true))
	off := fc.b.NewVReg(a.interp.Scalar(types.Long, true))
	fc.b.Emit(ir.Instr{Op: ir.OpBinary, Dst: off, A: idx, B: scale, BinOp: "*"})
	addr := fc.b.NewVReg(a.interp.PointerTo(elemType))
	fc.b.Emit(ir.Instr{Op: ir.OpBinary, Dst: addr, A: base, B: off, BinOp: "+"})
	return addr
}

func (a *Analyzer) lowerMemberAddr(fc *funcCtx, n *ast.MemberExpr) ir.Value {
	var base ir.Value
	xt := typeOf(n.X)
	st := xt
	if n.Arrow {
		base = a.lowerExpr(fc, n.X)
		st = xt.Elem
	} else {
		base = a.lowerAddr(fc, n.X)
	}
	m, _ := st.LookupMember(n.Name)
	off := ir.ConstInt(int64(m.Offset), a.interp.Scalar(types.Long, true))
	addr := fc.b.NewVReg(a.interp.PointerTo(m.Type))
	fc.b.Emit(ir.Instr{Op: ir.OpBinary, Dst: addr, A: base, B: off, BinOp: "+"})
	return addr
}

// lowerAddr computes the address of an lvalue expression without loading
// its value, used for member access on a struct-valued base and for the
// left side of an assignment.
func (a *Analyzer) lowerAddr(fc *funcCtx, e ast.Expr) ir.Value {
	switch n := e.(type) {
	case *ast.Ident:
		return a.identAddr(fc, n)
	case *ast.UnaryExpr:
		if n.Op == "*" {
			return a.lowerExpr(fc, n.X)
		}
	case *ast.IndexExpr:
		baseExpr, idxExpr, _ := a.indexOperands(n)
		base := a.lowerExpr(fc, baseExpr)
		idx := a.lowerExpr(fc, idxExpr)
		return a.lowerIndexAddr(fc, base, idx, n.ResolvedType)
	case *ast.MemberExpr:
		return a.lowerMemberAddr(fc, n)
	}
	return ir.Value{}
}

// identAddr resolves a name to its address: a file-scope or extern-declared
// symbol (anything with linkage) is referenced by its own symbol name
// instead of being allocated a stack slot, so functions can read and write
// globals declared elsewhere in the translation unit.
func (a *Analyzer) identAddr(fc *funcCtx, n *ast.Ident) ir.Value {
	ptrType := a.interp.PointerTo(n.ResolvedType)
	if label, ok := fc.staticNames[n.Name]; ok {
		return ir.GlobalRef(label, ptrType)
	}
	if sym, ok := a.syms.LookupOrdinary(n.Name); ok && sym.Linkage != symtab.NoLinkage {
		return ir.GlobalRef(n.Name, ptrType)
	}
	addr := fc.b.NewVReg(ptrType)
	fc.b.Emit(ir.Instr{Op: ir.OpAddrOfLocal, Dst: addr, Slot: fc.allocSlot(n.Name)})
	return addr
}

func (a *Analyzer) storeTo(fc *funcCtx, lhs ast.Expr, v ir.Value) {
	addr := a.lowerAddr(fc, lhs)
	fc.b.Emit(ir.Instr{Op: ir.OpStore, A: addr, B: v})
}

func (a *Analyzer) lowerBinary(fc *funcCtx, n *ast.BinaryExpr) ir.Value {
	switch n.Op {
	case "=":
		v := a.lowerExpr(fc, n.Right)
		a.storeTo(fc, n.Left, v)
		return v
	case "+=", "-=", "*=", "/=", "%=":
		cur := a.lowerExpr(fc, n.Left)
		rhs := a.lowerExpr(fc, n.Right)
		dst := fc.b.NewVReg(n.ResolvedType)
		fc.b.Emit(ir.Instr{Op: ir.OpBinary, Dst: dst, A: cur, B: rhs, BinOp: n.Op[:1]})
		a.storeTo(fc, n.Left, dst)
		return dst
	case "&&":
		return a.lowerShortCircuit(fc, n, true)
	case "||":
		return a.lowerShortCircuit(fc, n, false)
	default:
		l := a.lowerExpr(fc, n.Left)
		r := a.lowerExpr(fc, n.Right)
		dst := fc.b.NewVReg(n.ResolvedType)
		fc.b.Emit(ir.Instr{Op: ir.OpBinary, Dst: dst, A: l, B: r, BinOp: n.Op})
		return dst
	}
}

// lowerShortCircuit lowers && and || with the branch-on-first-operand
// shape: && skips the second operand (and forces zero) when the first is
// false; || skips it (and forces one) when the first is true.
func (a *Analyzer) lowerShortCircuit(fc *funcCtx, n *ast.BinaryExpr, isAnd bool) ir.Value {
	result := fc.b.NewVReg(n.ResolvedType)
	skipLbl := fc.b.NewLabel("logic.skip")
	endLbl := fc.b.NewLabel("logic.end")
	l := a.lowerExpr(fc, n.Left)
	if isAnd {
		fc.b.Emit(ir.Instr{Op: ir.OpJumpIfZero, A: l, Label: skipLbl})
	} else {
		fc.b.Emit(ir.Instr{Op: ir.OpJumpIfNonzero, A: l, Label: skipLbl})
	}
	r := a.lowerExpr(fc, n.Right)
	fc.b.Emit(ir.Instr{Op: ir.OpBinary, Dst: result, A: r, B: ir.ConstInt(0, n.ResolvedType), BinOp: "!="})
	fc.b.Emit(ir.Instr{Op: ir.OpJump, Label: endLbl})
	fc.b.Emit(ir.Instr{Op: ir.OpLabel, Label: skipLbl})
	val := int64(0)
	if !isAnd {
		val = 1
	}
	fc.b.Emit(ir.Instr{Op: ir.OpSet, Dst: result, A: ir.ConstInt(val, n.ResolvedType)})
	fc.b.Emit(ir.Instr{Op: ir.OpLabel, Label: endLbl})
	return result
}

func (a *Analyzer) lowerUnary(fc *funcCtx, n *ast.UnaryExpr) ir.Value {
	switch n.Op {
	case "&":
		return a.lowerAddr(fc, n.X)
	case "++", "--":
		old := a.lowerExpr(fc, n.X)
		op := "+"
		if n.Op == "--" {
			op = "-"
		}
		nv := fc.b.NewVReg(n.ResolvedType)
		fc.b.Emit(ir.Instr{Op: ir.OpBinary, Dst: nv, A: old, B: ir.ConstInt(1, n.ResolvedType), BinOp: op})
		a.storeTo(fc, n.X, nv)
		return nv
	default:
		x := a.lowerExpr(fc, n.X)
		dst := fc.b.NewVReg(n.ResolvedType)
		fc.b.Emit(ir.Instr{Op: ir.OpUnary, Dst: dst, A: x, UnOp: n.Op})
		return dst
	}
}

func (a *Analyzer) lowerCond(fc *funcCtx, n *ast.CondExpr) ir.Value {
	result := fc.b.NewVReg(n.ResolvedType)
	elseLbl := fc.b.NewLabel("cond.else")
	endLbl := fc.b.NewLabel("cond.end")
	cond := a.lowerExpr(fc, n.Cond)
	fc.b.Emit(ir.Instr{Op: ir.OpJumpIfZero, A: cond, Label: elseLbl})
	thenV := a.lowerExpr(fc, n.Then)
	fc.b.Emit(ir.Instr{Op: ir.OpSet, Dst: result, A: thenV})
	fc.b.Emit(ir.Instr{Op: ir.OpJump, Label: endLbl})
	fc.b.Emit(ir.Instr{Op: ir.OpLabel, Label: elseLbl})
	elseV := a.lowerExpr(fc, n.Else)
	fc.b.Emit(ir.Instr{Op: ir.OpSet, Dst: result, A: elseV})
	fc.b.Emit(ir.Instr{Op: ir.OpLabel, Label: endLbl})
	return result
}
