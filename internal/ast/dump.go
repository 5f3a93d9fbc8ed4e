package ast

import (
	"fmt"
	"strings"
)

// Dump renders tu as an indented s-expression tree, one node per line. It
// exists for the compiler driver's --dump-ast flag; the shape is meant for a
// human skimming structure, not for round-tripping.
func Dump(tu *TranslationUnit) string {
	var b strings.Builder
	for _, d := range tu.Decls {
		dumpDecl(&b, 0, d)
	}
	return b.String()
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("  ")
	}
}

func dumpDecl(b *strings.Builder, depth int, d Decl) {
	indent(b, depth)
	switch n := d.(type) {
	case *FuncDef:
		fmt.Fprintf(b, "(FuncDef %s\n", n.Name)
		dumpStmt(b, depth+1, n.Body)
		indent(b, depth)
		b.WriteString(")\n")
	case *VarDecl:
		fmt.Fprintf(b, "(VarDecl %s", n.Name)
		if n.Init != nil {
			b.WriteString("\n")
			dumpExpr(b, depth+1, n.Init)
			indent(b, depth)
		}
		b.WriteString(")\n")
	case *TypedefDecl:
		fmt.Fprintf(b, "(TypedefDecl %s)\n", n.Name)
	case *TagDecl:
		b.WriteString("(TagDecl)\n")
	default:
		b.WriteString("(?decl)\n")
	}
}

func dumpStmt(b *strings.Builder, depth int, s Stmt) {
	if s == nil {
		return
	}
	if n, ok := s.(*DeclStmt); ok {
		dumpDecl(b, depth, n.D)
		return
	}
	indent(b, depth)
	switch n := s.(type) {
	case *Block:
		b.WriteString("(Block\n")
		for _, item := range n.Items {
			if item.Decl != nil {
				dumpDecl(b, depth+1, item.Decl)
			} else {
				dumpStmt(b, depth+1, item.Stmt)
			}
		}
		indent(b, depth)
		b.WriteString(")\n")
	case *ExprStmt:
		b.WriteString("(ExprStmt\n")
		dumpExpr(b, depth+1, n.X)
		indent(b, depth)
		b.WriteString(")\n")
	case *IfStmt:
		b.WriteString("(If\n")
		dumpExpr(b, depth+1, n.Cond)
		dumpStmt(b, depth+1, n.Then)
		if n.Else != nil {
			dumpStmt(b, depth+1, n.Else)
		}
		indent(b, depth)
		b.WriteString(")\n")
	case *WhileStmt:
		b.WriteString("(While\n")
		dumpExpr(b, depth+1, n.Cond)
		dumpStmt(b, depth+1, n.Body)
		indent(b, depth)
		b.WriteString(")\n")
	case *ForStmt:
		b.WriteString("(For\n")
		dumpStmt(b, depth+1, n.Init)
		if n.Cond != nil {
			dumpExpr(b, depth+1, n.Cond)
		}
		if n.Post != nil {
			dumpExpr(b, depth+1, n.Post)
		}
		dumpStmt(b, depth+1, n.Body)
		indent(b, depth)
		b.WriteString(")\n")
	case *ReturnStmt:
		if n.X != nil {
			b.WriteString("(Return\n")
			dumpExpr(b, depth+1, n.X)
			indent(b, depth)
			b.WriteString(")\n")
		} else {
			b.WriteString("(Return)\n")
		}
	case *BreakStmt:
		b.WriteString("(Break)\n")
	case *ContinueStmt:
		b.WriteString("(Continue)\n")
	case *GotoStmt:
		fmt.Fprintf(b, "(Goto %s)\n", n.Label)
	case *LabeledStmt:
		fmt.Fprintf(b, "(Label %s\n", n.Label)
		dumpStmt(b, depth+1, n.Inner)
		indent(b, depth)
		b.WriteString(")\n")
	case *EmptyStmt:
		b.WriteString("(Empty)\n")
	default:
		b.WriteString("(?stmt)\n")
	}
}

func dumpExpr(b *strings.Builder, depth int, e Expr) {
	if e == nil {
		return
	}
	indent(b, depth)
	switch n := e.(type) {
	case *IntLit:
		fmt.Fprintf(b, "(IntLit %d)\n", n.Value)
	case *StringLit:
		fmt.Fprintf(b, "(StringLit %q)\n", n.Value)
	case *Ident:
		fmt.Fprintf(b, "(Ident %s)\n", n.Name)
	case *BinaryExpr:
		fmt.Fprintf(b, "(Binary %s\n", n.Op)
		dumpExpr(b, depth+1, n.Left)
		dumpExpr(b, depth+1, n.Right)
		indent(b, depth)
		b.WriteString(")\n")
	case *UnaryExpr:
		fmt.Fprintf(b, "(Unary %s\n", n.Op)
		dumpExpr(b, depth+1, n.X)
		indent(b, depth)
		b.WriteString(")\n")
	case *PostfixExpr:
		fmt.Fprintf(b, "(Postfix %s\n", n.Op)
		dumpExpr(b, depth+1, n.X)
		indent(b, depth)
		b.WriteString(")\n")
	case *CallExpr:
		b.WriteString("(Call\n")
		dumpExpr(b, depth+1, n.Callee)
		for _, arg := range n.Args {
			dumpExpr(b, depth+1, arg)
		}
		indent(b, depth)
		b.WriteString(")\n")
	case *IndexExpr:
		b.WriteString("(Index\n")
		dumpExpr(b, depth+1, n.X)
		dumpExpr(b, depth+1, n.Index)
		indent(b, depth)
		b.WriteString(")\n")
	case *MemberExpr:
		op := "."
		if n.Arrow {
			op = "->"
		}
		fmt.Fprintf(b, "(Member %s%s\n", op, n.Name)
		dumpExpr(b, depth+1, n.X)
		indent(b, depth)
		b.WriteString(")\n")
	case *CastExpr:
		b.WriteString("(Cast\n")
		dumpExpr(b, depth+1, n.X)
		indent(b, depth)
		b.WriteString(")\n")
	case *SizeofExpr:
		if n.X != nil {
			b.WriteString("(Sizeof\n")
			dumpExpr(b, depth+1, n.X)
			indent(b, depth)
			b.WriteString(")\n")
		} else {
			b.WriteString("(Sizeof type)\n")
		}
	case *CondExpr:
		b.WriteString("(Cond\n")
		dumpExpr(b, depth+1, n.Cond)
		dumpExpr(b, depth+1, n.Then)
		dumpExpr(b, depth+1, n.Else)
		indent(b, depth)
		b.WriteString(")\n")
	default:
		b.WriteString("(?expr)\n")
	}
}
