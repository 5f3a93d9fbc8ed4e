// Package ast defines the tree the parser builds and the semantic analyzer
// walks. Every expression node carries a ResolvedType and IsLvalue flag
// filled in during semantic analysis; the parser leaves them zero.
package ast

import (
	"github.com/gorse-io/csubc/internal/source"
	"github.com/gorse-io/csubc/internal/types"
)

// TranslationUnit is the root node: a sequence of top-level declarations,
// which may be function definitions, plain declarations, or typedefs.
type TranslationUnit struct {
	Decls []Decl
}

// Decl is any top-level or block-scope declaration.
type Decl interface{ declNode() }

// Stmt is any statement.
type Stmt interface{ stmtNode() }

// Expr is any expression.
type Expr interface {
	exprNode()
	Loc() source.Pos
	IsLValue() bool
}

// ExprBase is embedded by every expression node; the parser fills only Pos,
// semantic analysis fills ResolvedType and IsLvalue.
type ExprBase struct {
	Pos          source.Pos
	ResolvedType *types.Type
	IsLvalue     bool
}

func (e *ExprBase) exprNode()       {}
func (e *ExprBase) Loc() source.Pos { return e.Pos }
func (e *ExprBase) IsLValue() bool  { return e.IsLvalue }

// Base constructs an ExprBase at pos, for use by the parser.
func Base(pos source.Pos) ExprBase { return ExprBase{Pos: pos} }

// NewBinary constructs a BinaryExpr at pos, for use by the parser.
func NewBinary(pos source.Pos, op string, left, right Expr) *BinaryExpr {
	return &BinaryExpr{ExprBase: Base(pos), Op: op, Left: left, Right: right}
}

// FuncDef is a function definition with a body.
type FuncDef struct {
	Name       string
	Type       *types.Type // Function type, already resolved
	ParamNames []string
	Body       *Block
	Storage    int // mirrors symtab.StorageClass, avoids an import cycle
	Pos        source.Pos
}

func (*FuncDef) declNode() {}

// VarDecl declares one or more objects or a prototype; file scope or block
// scope, distinguished by where it appears in the tree.
type VarDecl struct {
	Name    string
	Type    *types.Type
	Storage int // mirrors symtab.StorageClass, avoids an import cycle
	Init    Expr
	// InitList holds a brace-enclosed initializer list for arrays/structs;
	// mutually exclusive with Init.
	InitList []Expr
	Pos      source.Pos
}

func (*VarDecl) declNode() {}

// TypedefDecl introduces a typedef name.
type TypedefDecl struct {
	Name string
	Type *types.Type
	Pos  source.Pos
}

func (*TypedefDecl) declNode() {}

// TagDecl declares or completes a struct/union without an accompanying
// variable, e.g. "struct point { int x; int y; };".
type TagDecl struct {
	Type *types.Type
	Pos  source.Pos
}

func (*TagDecl) declNode() {}

// Block is a brace-enclosed statement sequence introducing its own scope.
type Block struct {
	Items []BlockItem
	Pos   source.Pos
}

func (*Block) stmtNode() {}

// BlockItem is either a Decl or a Stmt; block scope interleaves freely.
type BlockItem struct {
	Decl Decl
	Stmt Stmt
}

// ExprStmt is an expression evaluated for effect.
type ExprStmt struct {
	X   Expr
	Pos source.Pos
}

func (*ExprStmt) stmtNode() {}

// IfStmt is "if (Cond) Then [else Else]".
type IfStmt struct {
	Cond Expr
	Then Stmt
	Else Stmt
	Pos  source.Pos
}

func (*IfStmt) stmtNode() {}

// WhileStmt is "while (Cond) Body".
type WhileStmt struct {
	Cond Expr
	Body Stmt
	Pos  source.Pos
}

func (*WhileStmt) stmtNode() {}

// ForStmt is "for (Init; Cond; Post) Body"; any clause may be nil.
type ForStmt struct {
	Init Stmt // ExprStmt or a VarDecl wrapped in a DeclStmt
	Cond Expr
	Post Expr
	Body Stmt
	Pos  source.Pos
}

func (*ForStmt) stmtNode() {}

// DeclStmt wraps a Decl appearing where a Stmt is expected (inside a block
// or a for-init-clause).
type DeclStmt struct {
	D   Decl
	Pos source.Pos
}

func (*DeclStmt) stmtNode() {}

// ReturnStmt is "return [X];".
type ReturnStmt struct {
	X   Expr // nil for bare "return;"
	Pos source.Pos
}

func (*ReturnStmt) stmtNode() {}

// BreakStmt is "break;".
type BreakStmt struct{ Pos source.Pos }

func (*BreakStmt) stmtNode() {}

// ContinueStmt is "continue;".
type ContinueStmt struct{ Pos source.Pos }

func (*ContinueStmt) stmtNode() {}

// GotoStmt is "goto Label;".
type GotoStmt struct {
	Label string
	Pos   source.Pos
}

func (*GotoStmt) stmtNode() {}

// LabeledStmt is "Label: Inner".
type LabeledStmt struct {
	Label string
	Inner Stmt
	Pos   source.Pos
}

func (*LabeledStmt) stmtNode() {}

// EmptyStmt is a bare ";".
type EmptyStmt struct{ Pos source.Pos }

func (*EmptyStmt) stmtNode() {}

// Expression nodes.

// IntLit is an integer or character-constant literal.
type IntLit struct {
	ExprBase
	Value uint64
}

// StringLit is a string literal, decaying to char* in value contexts.
type StringLit struct {
	ExprBase
	Value string
}

// Ident references a declared symbol by name; resolution fills ResolvedType
// during semantic analysis.
type Ident struct {
	ExprBase
	Name string
}

// BinaryExpr covers all binary operators: arithmetic, bitwise, comparison,
// logical, and assignment (including compound assignment).
type BinaryExpr struct {
	ExprBase
	Op    string
	Left  Expr
	Right Expr
}

// UnaryExpr covers prefix unary operators: - + ! ~ & * ++ -- (prefix form).
type UnaryExpr struct {
	ExprBase
	Op string
	X  Expr
}

// PostfixExpr covers postfix ++ / --.
type PostfixExpr struct {
	ExprBase
	Op string
	X  Expr
}

// CallExpr is a function call.
type CallExpr struct {
	ExprBase
	Callee Expr
	Args   []Expr
}

// IndexExpr is "X[Index]", always lowered to equivalent-pointer semantics
// during analysis, but kept as its own node for natural source fidelity.
type IndexExpr struct {
	ExprBase
	X     Expr
	Index Expr
}

// MemberExpr is "X.Name" or, when Arrow is true, "X->Name".
type MemberExpr struct {
	ExprBase
	X     Expr
	Name  string
	Arrow bool
}

// CastExpr is an explicit "(Type)X" cast.
type CastExpr struct {
	ExprBase
	Target *types.Type
	X      Expr
}

// SizeofExpr computes the size of either an expression (not evaluated) or a
// named type.
type SizeofExpr struct {
	ExprBase
	X          Expr        // nil if OfType is set
	OfType     *types.Type // nil if X is set
}

// CondExpr is the ternary "Cond ? Then : Else".
type CondExpr struct {
	ExprBase
	Cond Expr
	Then Expr
	Else Expr
}
