// Package parser implements a recursive-descent parser over the token
// stream produced by internal/lexer, consulting internal/symtab mid-parse
// to classify identifiers as typedef names (the one place this grammar is
// not context-free) exactly as called out by the component design: a
// declaration's declarator-suffix loop registers typedef names into the
// table as soon as they are seen, so a later "(name)" can be parsed as a
// cast instead of a call.
package parser

import (
	"github.com/gorse-io/csubc/internal/ast"
	"github.com/gorse-io/csubc/internal/diag"
	"github.com/gorse-io/csubc/internal/source"
	"github.com/gorse-io/csubc/internal/symtab"
	"github.com/gorse-io/csubc/internal/token"
	"github.com/gorse-io/csubc/internal/types"
)

// Parser consumes a flat token slice (always ending in EOF) and builds an
// ast.TranslationUnit, reporting syntax errors into diags and recovering at
// the next top-level declaration boundary so one bad declaration does not
// hide the rest of the file's errors.
type Parser struct {
	toks   []token.Token
	pos    int
	diags  *diag.Bag
	syms   *symtab.Table
	interp *types.Interner
	// lastParamNames carries parameter names out of the most recent
	// function-declarator parse, for parseExternalDecl's function-definition
	// path to bind them as locals.
	lastParamNames []string
	// lastHadParamList records whether the most recent declarator actually
	// wrote a "(...)" parameter-list production, as opposed to acquiring a
	// Function type some other way (e.g. through a typedef base type with a
	// bare identifier declarator). paramNames() alone can't tell these apart:
	// both an empty "()" and "no parens at all" leave lastParamNames nil.
	lastHadParamList bool
}

// New creates a Parser over toks, sharing syms and interp with the caller
// so semantic analysis later sees the same canonical types and symbols.
func New(toks []token.Token, diags *diag.Bag, syms *symtab.Table, interp *types.Interner) *Parser {
	return &Parser{toks: toks, diags: diags, syms: syms, interp: interp}
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) atEOF() bool       { return p.cur().Category == token.EOF }
func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) check(s string) bool { return p.cur().Is(s) }

func (p *Parser) accept(s string) bool {
	if p.check(s) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(s string) token.Token {
	if !p.check(s) {
		p.diags.Errorf(p.cur().Pos, "expected '%s'", s)
		return p.cur()
	}
	return p.advance()
}

// synchronize skips tokens until a plausible declaration boundary, used
// after a syntax error so parsing of the rest of the file can continue.
func (p *Parser) synchronize() {
	for !p.atEOF() {
		if p.check(";") {
			p.advance()
			return
		}
		if p.check("}") {
			return
		}
		p.advance()
	}
}

// Parse builds the translation unit. Still-tentative file-scope definitions
// are left for the semantic analyzer to resolve.
func Parse(toks []token.Token, diags *diag.Bag, syms *symtab.Table, interp *types.Interner) *ast.TranslationUnit {
	p := New(toks, diags, syms, interp)
	tu := &ast.TranslationUnit{}
	for !p.atEOF() {
		start := p.pos
		d := p.parseExternalDecl()
		if d != nil {
			tu.Decls = append(tu.Decls, d)
		}
		if p.pos == start {
			p.synchronize()
		}
	}
	return tu
}

// typeSpecifier keywords recognized as the start of a declaration.
var typeKeywords = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true,
	"signed": true, "unsigned": true, "_Bool": true, "struct": true, "union": true,
	"const": true, "typedef": true, "extern": true, "static": true, "auto": true, "register": true,
}

func (p *Parser) startsDecl() bool {
	t := p.cur()
	if t.Category == token.Keyword && typeKeywords[t.Value] {
		return true
	}
	if t.Category == token.Ident && p.syms.IsTypedefName(t.Value) {
		return true
	}
	return false
}

// declSpec is the parsed result of the declaration-specifier sequence.
type declSpec struct {
	base     *types.Type
	storage  symtab.StorageClass
	isTypedef bool
}

func (p *Parser) parseDeclSpecifiers() declSpec {
	var signed, unsigned bool
	var base *types.Type
	var storage symtab.StorageClass
	var isTypedef bool
	var qual types.Qualifier
	var storageSet bool
	var specKeywords []string
	var sawTag bool
	specPos := p.cur().Pos

	markStorage := func(pos source.Pos, s symtab.StorageClass) {
		if storageSet || isTypedef {
			p.diags.Errorf(pos, "too many storage classes in declaration specifiers")
			return
		}
		storage = s
		storageSet = true
	}

	for {
		t := p.cur()
		if t.Category == token.Ident && base == nil && p.syms.IsTypedefName(t.Value) {
			if sym, ok := p.syms.LookupOrdinary(t.Value); ok {
				base = sym.Type
				p.advance()
				continue
			}
		}
		if t.Category != token.Keyword {
			break
		}
		switch t.Value {
		case "typedef":
			if storageSet {
				p.diags.Errorf(t.Pos, "too many storage classes in declaration specifiers")
			}
			isTypedef = true
			p.advance()
		case "extern":
			markStorage(t.Pos, symtab.Extern)
			p.advance()
		case "static":
			markStorage(t.Pos, symtab.Static)
			p.advance()
		case "auto":
			markStorage(t.Pos, symtab.Auto)
			p.advance()
		case "register":
			markStorage(t.Pos, symtab.Register)
			p.advance()
		case "const":
			qual |= types.Const
			p.advance()
		case "signed":
			signed = true
			p.advance()
		case "unsigned":
			unsigned = true
			p.advance()
		case "void":
			base = p.interp.VoidType()
			specKeywords = append(specKeywords, "void")
			p.advance()
		case "char":
			base = p.interp.Scalar(types.Char, unsigned)
			specKeywords = append(specKeywords, "char")
			p.advance()
		case "short":
			base = p.interp.Scalar(types.Short, unsigned)
			specKeywords = append(specKeywords, "short")
			p.advance()
		case "int":
			if base == nil || (base.Kind != types.Long && base.Kind != types.Short) {
				base = p.interp.Scalar(types.Int, unsigned)
			}
			specKeywords = append(specKeywords, "int")
			p.advance()
		case "long":
			base = p.interp.Scalar(types.Long, unsigned)
			specKeywords = append(specKeywords, "long")
			p.advance()
		case "_Bool":
			base = p.interp.Scalar(types.Bool, false)
			specKeywords = append(specKeywords, "_Bool")
			p.advance()
		case "struct", "union":
			base = p.parseStructOrUnionSpecifier()
			sawTag = true
		default:
			goto done
		}
	}
done:
	if signed && unsigned {
		p.diags.Errorf(specPos, "unrecognized set of type specifiers")
	}
	if sawTag && len(specKeywords) > 0 {
		p.diags.Errorf(specPos, "unrecognized set of type specifiers")
	} else if !validSpecCombo(specKeywords) {
		p.diags.Errorf(specPos, "unrecognized set of type specifiers")
	}
	if base == nil {
		base = p.interp.Scalar(types.Int, unsigned)
	}
	if signed || unsigned {
		if base.Kind == types.Void || base.Kind == types.Struct || base.Kind == types.Union {
			// malformed combination; leave base as-is, semantic analysis
			// downstream will not see signed/unsigned applied incorrectly
		} else if unsigned != base.Unsigned {
			base = p.interp.Scalar(base.Kind, unsigned)
		}
	}
	if qual != types.None {
		base = p.interp.Qualified(base, qual)
	}
	return declSpec{base: base, storage: storage, isTypedef: isTypedef}
}

// validSpecCombo reports whether the sequence of base type-specifier
// keywords forms one of the combinations this C subset recognizes:
// nothing (implicit int), a single specifier, or "short int"/"long int"
// in either order.
func validSpecCombo(kw []string) bool {
	switch len(kw) {
	case 0, 1:
		return true
	case 2:
		has := func(s string) bool { return kw[0] == s || kw[1] == s }
		return has("int") && (has("short") || has("long"))
	default:
		return false
	}
}

func (p *Parser) parseStructOrUnionSpecifier() *types.Type {
	kind := types.Struct
	if p.cur().Value == "union" {
		kind = types.Union
	}
	p.advance()
	tag := ""
	if p.cur().Category == token.Ident {
		tag = p.advance().Value
	}
	var ty *types.Type
	if tag != "" {
		if existing, ok := p.syms.LookupTagCurrentScope(tag); ok {
			ty = existing
		} else if existing, ok := p.syms.LookupTag(tag); ok && !p.check("{") {
			ty = existing
		} else {
			ty = types.NewTag(kind, tag)
			p.syms.DeclareTag(tag, ty)
		}
		if ty.Kind != kind {
			p.diags.Errorf(p.cur().Pos, "defined as wrong kind of tag '%s %s'", kindWord(kind), tag)
		}
	} else {
		ty = types.NewTag(kind, "")
	}
	if p.accept("{") {
		if ty.Complete {
			p.diags.Errorf(p.cur().Pos, "redefinition of '%s %s'", kindWord(kind), tag)
		}
		var members []types.Member
		seen := make(map[string]bool)
		for !p.check("}") && !p.atEOF() {
			spec := p.parseDeclSpecifiers()
			if spec.storage != symtab.None || spec.isTypedef {
				p.diags.Errorf(p.cur().Pos, "cannot have storage specifier on struct member")
			}
			for {
				memPos := p.cur().Pos
				name, memType := p.parseDeclarator(spec.base)
				if name == "" {
					p.diags.Errorf(memPos, "missing name of %s member", kindWord(kind))
				} else {
					if memType.IsIncomplete() {
						p.diags.Errorf(memPos, "cannot have incomplete type as struct member")
					}
					if memType.Kind == types.Function {
						p.diags.Errorf(memPos, "cannot have function type as struct member")
					}
					if seen[name] {
						p.diags.Errorf(memPos, "duplicate member '%s'", name)
					}
					seen[name] = true
				}
				members = append(members, types.Member{Name: name, Type: memType})
				if !p.accept(",") {
					break
				}
			}
			p.expect(";")
		}
		p.expect("}")
		ty.SetBody(members)
	}
	return ty
}

func kindWord(k types.Kind) string {
	if k == types.Union {
		return "union"
	}
	return "struct"
}

// parseDeclarator parses a (possibly abstract) declarator wrapping base,
// returning the declared name (empty for abstract declarators) and the
// fully wrapped type.
func (p *Parser) parseDeclarator(base *types.Type) (string, *types.Type) {
	for p.accept("*") {
		var ptrQual types.Qualifier
		for p.check("const") {
			ptrQual |= types.Const
			p.advance()
		}
		base = p.interp.PointerTo(base)
		if ptrQual != types.None {
			base = p.interp.Qualified(base, ptrQual)
		}
	}
	return p.parseDirectDeclarator(base)
}

func (p *Parser) parseDirectDeclarator(base *types.Type) (string, *types.Type) {
	var name string
	var inner func(*types.Type) *types.Type

	if p.accept("(") {
		n, built := p.parseDeclarator(nil)
		name = n
		p.expect(")")
		inner = func(final *types.Type) *types.Type {
			return rewrap(built, final)
		}
	} else if p.cur().Category == token.Ident {
		name = p.advance().Value
	}

	ty := base
	for {
		if p.accept("[") {
			elemPos := p.cur().Pos
			length := -1
			if !p.check("]") {
				lit := p.parseConstIntExpr()
				length = int(lit)
			}
			p.expect("]")
			if ty.IsIncomplete() {
				p.diags.Errorf(elemPos, "array elements must have complete type")
			}
			ty = p.interp.ArrayOf(ty, length)
			continue
		}
		if p.accept("(") {
			var params []*types.Type
			var paramNames []string
			hasProto := true
			if p.check("void") && p.toks[p.pos+1].Is(")") {
				p.advance()
			} else if !p.check(")") {
				for {
					ppos := p.cur().Pos
					pspec := p.parseDeclSpecifiers()
					if pspec.storage != symtab.None {
						p.diags.Errorf(ppos, "storage class specified for function parameter")
					}
					pname, pty := p.parseDeclarator(pspec.base)
					if pty.Kind == types.Void {
						p.diags.Errorf(ppos, "'void' must be the only parameter")
					}
					pty = p.interp.Decay(pty)
					params = append(params, pty)
					paramNames = append(paramNames, pname)
					if !p.accept(",") {
						break
					}
				}
			} else {
				hasProto = false
			}
			p.expect(")")
			ty = p.interp.FunctionType(ty, params, hasProto)
			p.lastParamNames = paramNames
			p.lastHadParamList = true
			continue
		}
		break
	}
	if inner != nil {
		ty = inner(ty)
	}
	return name, ty
}

// rewrap re-targets a declarator built with a nil leaf type (from a
// parenthesized sub-declarator) onto final, by walking the pointer/array
// chain down to the nil leaf and substituting final there.
func rewrap(built, final *types.Type) *types.Type {
	if built == nil {
		return final
	}
	clone := *built
	switch clone.Kind {
	case types.Pointer:
		clone.Elem = rewrap(built.Elem, final)
	case types.Array:
		clone.Elem = rewrap(built.Elem, final)
	case types.Function:
		clone.Ret = rewrap(built.Ret, final)
	}
	return &clone
}

// lastParamNames smuggles out parameter names from parseDirectDeclarator
// for the benefit of parseExternalDecl's function-definition path; reading
// it through paramNames clears it.
func (p *Parser) paramNames() []string {
	names := p.lastParamNames
	p.lastParamNames = nil
	return names
}

// hadParamList reports whether the declarator just parsed wrote an explicit
// "(...)" parameter-list production, then resets the flag for the next
// declarator parse.
func (p *Parser) hadParamList() bool {
	had := p.lastHadParamList
	p.lastHadParamList = false
	return had
}

func (p *Parser) parseConstIntExpr() uint64 {
	e := p.parseConditional()
	if cast, ok := e.(*ast.CastExpr); ok {
		if lit, ok := cast.X.(*ast.IntLit); ok {
			if !cast.Target.IsIntegral() {
				p.diags.Errorf(e.Loc(), "array size must have integral type")
				return 0
			}
			return lit.Value
		}
	}
	lit, ok := e.(*ast.IntLit)
	if !ok {
		p.diags.Errorf(e.Loc(), "array size must be compile-time constant")
		return 0
	}
	if int64(lit.Value) <= 0 {
		p.diags.Errorf(e.Loc(), "array size must be positive")
	}
	return lit.Value
}

func (p *Parser) parseExternalDecl() ast.Decl {
	if p.atEOF() {
		return nil
	}
	pos := p.cur().Pos
	spec := p.parseDeclSpecifiers()
	if p.accept(";") {
		if spec.base != nil && (spec.base.Kind == types.Struct || spec.base.Kind == types.Union) {
			return &ast.TagDecl{Type: spec.base, Pos: pos}
		}
		p.diags.Errorf(pos, "missing identifier name in declaration")
		return nil
	}
	name, ty := p.parseDeclarator(spec.base)
	paramNames := p.paramNames()
	hadParamList := p.hadParamList()

	if spec.isTypedef {
		td := p.declareTypedef(name, ty, pos)
		if p.check("=") {
			p.diags.Errorf(pos, "typedef cannot have initializer")
			p.advance()
			p.parseAssignment()
		}
		if ty.Kind == types.Function && p.check("{") {
			p.diags.Errorf(pos, "function definition cannot be a typedef")
			p.parseBlock()
			return td
		}
		p.expect(";")
		return td
	}

	if p.check("{") && ty.Kind != types.Function {
		p.diags.Errorf(pos, "function definition provided for non-function type")
		p.parseBlock()
		return nil
	}

	if ty.Kind == types.Function && p.check("{") {
		if ty.Ret.Kind == types.Function {
			p.diags.Errorf(pos, "function cannot return function type")
		}
		if ty.Ret.Kind == types.Array {
			p.diags.Errorf(pos, "function cannot return array type")
		}
		if !hadParamList {
			p.diags.Errorf(pos, "function definition missing parameter list")
		}
		for _, pn := range paramNames {
			if pn == "" {
				p.diags.Errorf(pos, "function definition missing parameter name")
				break
			}
		}
		if prev, ok := p.syms.LookupOrdinaryCurrentScope(name); ok && prev.DefState == symtab.Defined {
			p.diags.Errorf(pos, "redefinition of '%s'", name)
		}
		sym := &symtab.Symbol{Name: name, Type: ty, Storage: spec.storage, Linkage: symtab.LinkageFor(spec.storage, true), DefState: symtab.Defined}
		p.syms.Declare(sym)
		p.syms.Push()
		for i, pn := range paramNames {
			if pn == "" {
				continue
			}
			p.syms.Declare(&symtab.Symbol{Name: pn, Type: ty.Params[i], Storage: symtab.Auto, IsParam: true})
		}
		body := p.parseBlock()
		p.syms.Pop()
		return &ast.FuncDef{Name: name, Type: ty, ParamNames: paramNames, Body: body, Storage: int(spec.storage), Pos: pos}
	}

	decl := p.finishVarDecl(name, ty, spec, pos)
	for p.accept(",") {
		n2, t2 := p.parseDeclarator(spec.base)
		p.finishVarDecl(n2, t2, spec, p.cur().Pos)
	}
	p.expect(";")
	return decl
}

// declareTypedef installs name as a typedef in the current scope, flagging a
// same-scope redeclaration of an ordinary (non-typedef) name as a typedef.
func (p *Parser) declareTypedef(name string, ty *types.Type, pos source.Pos) *ast.TypedefDecl {
	if prev, ok := p.syms.LookupOrdinaryCurrentScope(name); ok && prev.Storage != symtab.Typedef {
		p.diags.Errorf(pos, "'%s' redeclared as type definition in same scope", name)
	}
	p.syms.Declare(&symtab.Symbol{Name: name, Type: ty, Storage: symtab.Typedef})
	return &ast.TypedefDecl{Name: name, Type: ty, Pos: pos}
}

func (p *Parser) finishVarDecl(name string, ty *types.Type, spec declSpec, pos source.Pos) *ast.VarDecl {
	if name == "" {
		p.diags.Errorf(pos, "missing identifier name in declaration")
	}
	atFileScope := p.syms.AtFileScope()
	linkage := symtab.LinkageFor(spec.storage, atFileScope)
	if prev, ok := p.syms.LookupOrdinaryCurrentScope(name); ok && name != "" {
		if prev.Storage == symtab.Typedef {
			p.diags.Errorf(pos, "redeclared type definition '%s' as variable", name)
		} else if prev.Linkage != linkage && prev.Type.Kind != types.Function {
			p.diags.Errorf(pos, "redeclared '%s' with different linkage", name)
		} else if linkage == symtab.NoLinkage && !types.Compatible(prev.Type, ty) {
			p.diags.Errorf(pos, "'%s' redeclared as incompatible type in same scope", name)
		} else if !types.Compatible(prev.Type, ty) {
			p.diags.Errorf(pos, "redeclared '%s' with incompatible type", name)
		}
	}

	defState := symtab.NotDefined
	if ty.Kind != types.Function {
		defState = symtab.Tentative
	}
	sym := &symtab.Symbol{Name: name, Type: ty, Storage: spec.storage, Linkage: linkage, DefState: defState}
	p.syms.Declare(sym)

	vd := &ast.VarDecl{Name: name, Type: ty, Storage: int(spec.storage), Pos: pos}
	if !atFileScope && spec.storage == symtab.Extern && p.check("=") {
		p.diags.Errorf(pos, "local variable with linkage has initializer")
	}
	if p.accept("=") {
		sym.DefState = symtab.Defined
		if p.check("{") {
			vd.InitList = p.parseInitList()
		} else {
			vd.Init = p.parseAssignment()
		}
	}
	return vd
}

func (p *Parser) parseInitList() []ast.Expr {
	p.expect("{")
	var items []ast.Expr
	for !p.check("}") && !p.atEOF() {
		items = append(items, p.parseAssignment())
		if !p.accept(",") {
			break
		}
	}
	p.expect("}")
	return items
}

// Statements.

func (p *Parser) parseBlock() *ast.Block {
	pos := p.expect("{").Pos
	b := &ast.Block{Pos: pos}
	p.syms.Push()
	for !p.check("}") && !p.atEOF() {
		b.Items = append(b.Items, p.parseBlockItem())
	}
	p.syms.Pop()
	p.expect("}")
	return b
}

func (p *Parser) parseBlockItem() ast.BlockItem {
	if p.startsDecl() {
		pos := p.cur().Pos
		spec := p.parseDeclSpecifiers()
		if p.accept(";") {
			return ast.BlockItem{Decl: &ast.TagDecl{Type: spec.base, Pos: pos}}
		}
		name, ty := p.parseDeclarator(spec.base)
		var first ast.Decl
		if spec.isTypedef {
			first = p.declareTypedef(name, ty, pos)
		} else {
			first = p.finishVarDecl(name, ty, spec, pos)
		}
		for p.accept(",") {
			n2, t2 := p.parseDeclarator(spec.base)
			p2 := p.cur().Pos
			if spec.isTypedef {
				p.declareTypedef(n2, t2, p2)
			} else {
				p.finishVarDecl(n2, t2, spec, p2)
			}
		}
		p.expect(";")
		return ast.BlockItem{Decl: first}
	}
	return ast.BlockItem{Stmt: p.parseStmt()}
}

func (p *Parser) parseStmt() ast.Stmt {
	switch {
	case p.check("{"):
		return p.parseBlock()
	case p.check("if"):
		return p.parseIf()
	case p.check("while"):
		return p.parseWhile()
	case p.check("for"):
		return p.parseFor()
	case p.check("return"):
		return p.parseReturn()
	case p.check("break"):
		pos := p.advance().Pos
		p.expect(";")
		return &ast.BreakStmt{Pos: pos}
	case p.check("continue"):
		pos := p.advance().Pos
		p.expect(";")
		return &ast.ContinueStmt{Pos: pos}
	case p.check("goto"):
		pos := p.advance().Pos
		label := p.expect(p.cur().Value).Value
		p.expect(";")
		return &ast.GotoStmt{Label: label, Pos: pos}
	case p.check(";"):
		pos := p.advance().Pos
		return &ast.EmptyStmt{Pos: pos}
	case p.cur().Category == token.Ident && p.toks[p.pos+1].Is(":"):
		label := p.advance().Value
		pos := p.advance().Pos
		return &ast.LabeledStmt{Label: label, Inner: p.parseStmt(), Pos: pos}
	default:
		pos := p.cur().Pos
		e := p.parseExpr()
		p.expect(";")
		return &ast.ExprStmt{X: e, Pos: pos}
	}
}

func (p *Parser) parseIf() ast.Stmt {
	pos := p.expect("if").Pos
	p.expect("(")
	cond := p.parseExpr()
	p.expect(")")
	then := p.parseStmt()
	var els ast.Stmt
	if p.accept("else") {
		els = p.parseStmt()
	}
	return &ast.IfStmt{Cond: cond, Then: then, Else: els, Pos: pos}
}

func (p *Parser) parseWhile() ast.Stmt {
	pos := p.expect("while").Pos
	p.expect("(")
	cond := p.parseExpr()
	p.expect(")")
	body := p.parseStmt()
	return &ast.WhileStmt{Cond: cond, Body: body, Pos: pos}
}

func (p *Parser) parseFor() ast.Stmt {
	pos := p.expect("for").Pos
	p.expect("(")
	p.syms.Push()
	var init ast.Stmt
	if p.startsDecl() {
		bi := p.parseBlockItem()
		init = &ast.DeclStmt{D: bi.Decl, Pos: pos}
	} else if !p.check(";") {
		e := p.parseExpr()
		p.expect(";")
		init = &ast.ExprStmt{X: e, Pos: pos}
	} else {
		p.expect(";")
	}
	var cond ast.Expr
	if !p.check(";") {
		cond = p.parseExpr()
	}
	p.expect(";")
	var post ast.Expr
	if !p.check(")") {
		post = p.parseExpr()
	}
	p.expect(")")
	body := p.parseStmt()
	p.syms.Pop()
	return &ast.ForStmt{Init: init, Cond: cond, Post: post, Body: body, Pos: pos}
}

func (p *Parser) parseReturn() ast.Stmt {
	pos := p.expect("return").Pos
	var e ast.Expr
	if !p.check(";") {
		e = p.parseExpr()
	}
	p.expect(";")
	return &ast.ReturnStmt{X: e, Pos: pos}
}

// Expressions, precedence climbing from the comma-free assignment level up.

func (p *Parser) parseExpr() ast.Expr {
	e := p.parseAssignment()
	for p.check(",") {
		pos := p.advance().Pos
		rhs := p.parseAssignment()
		e = &ast.BinaryExpr{ExprBase: ast.Base(pos), Op: ",", Left: e, Right: rhs}
	}
	return e
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
}

func (p *Parser) parseAssignment() ast.Expr {
	lhs := p.parseConditional()
	if p.cur().Category == token.Punct && assignOps[p.cur().Value] {
		op := p.advance()
		rhs := p.parseAssignment()
		return ast.NewBinary(op.Pos, op.Value, lhs, rhs)
	}
	return lhs
}

func (p *Parser) parseConditional() ast.Expr {
	cond := p.parseLogicalOr()
	if p.accept("?") {
		then := p.parseExpr()
		p.expect(":")
		els := p.parseConditional()
		return &ast.CondExpr{ExprBase: ast.Base(cond.Loc()), Cond: cond, Then: then, Else: els}
	}
	return cond
}

func (p *Parser) binaryLevel(next func() ast.Expr, ops ...string) ast.Expr {
	e := next()
	for {
		matched := ""
		for _, op := range ops {
			if p.check(op) {
				matched = op
				break
			}
		}
		if matched == "" {
			return e
		}
		pos := p.advance().Pos
		rhs := next()
		e = ast.NewBinary(pos, matched, e, rhs)
	}
}

func (p *Parser) parseLogicalOr() ast.Expr  { return p.binaryLevel(p.parseLogicalAnd, "||") }
func (p *Parser) parseLogicalAnd() ast.Expr { return p.binaryLevel(p.parseBitOr, "&&") }
func (p *Parser) parseBitOr() ast.Expr      { return p.binaryLevel(p.parseBitXor, "|") }
func (p *Parser) parseBitXor() ast.Expr     { return p.binaryLevel(p.parseBitAnd, "^") }
func (p *Parser) parseBitAnd() ast.Expr     { return p.binaryLevel(p.parseEquality, "&") }
func (p *Parser) parseEquality() ast.Expr   { return p.binaryLevel(p.parseRelational, "==", "!=") }
func (p *Parser) parseRelational() ast.Expr {
	return p.binaryLevel(p.parseShift, "<", ">", "<=", ">=")
}
func (p *Parser) parseShift() ast.Expr    { return p.binaryLevel(p.parseAdditive, "<<", ">>") }
func (p *Parser) parseAdditive() ast.Expr { return p.binaryLevel(p.parseMultiplicative, "+", "-") }
func (p *Parser) parseMultiplicative() ast.Expr {
	return p.binaryLevel(p.parseCast, "*", "/", "%")
}

func (p *Parser) parseCast() ast.Expr {
	if p.check("(") && p.looksLikeTypeAt(p.pos+1) {
		pos := p.advance().Pos
		spec := p.parseDeclSpecifiers()
		if spec.storage != symtab.None || spec.isTypedef {
			p.diags.Errorf(pos, "storage specifier not permitted here")
		}
		name, ty := p.parseDeclarator(spec.base)
		if name != "" {
			p.diags.Errorf(pos, "expected abstract declarator, but identifier name was provided")
		}
		p.expect(")")
		x := p.parseCast()
		return &ast.CastExpr{ExprBase: ast.Base(pos), Target: ty, X: x}
	}
	return p.parseUnary()
}

// looksLikeTypeAt reports whether the token at index i begins a type name,
// the lookahead needed to tell "(int)x" (a cast) from "(x)" (a parenthesized
// expression) without backtracking.
func (p *Parser) looksLikeTypeAt(i int) bool {
	if i >= len(p.toks) {
		return false
	}
	t := p.toks[i]
	if t.Category == token.Keyword && typeKeywords[t.Value] {
		return true
	}
	if t.Category == token.Ident {
		return p.syms.IsTypedefName(t.Value)
	}
	return false
}

var unaryOps = map[string]bool{"+": true, "-": true, "!": true, "~": true, "&": true, "*": true}

func (p *Parser) parseUnary() ast.Expr {
	if p.check("sizeof") {
		pos := p.advance().Pos
		if p.check("(") && p.looksLikeTypeAt(p.pos+1) {
			p.advance()
			spec := p.parseDeclSpecifiers()
			if spec.storage != symtab.None || spec.isTypedef {
				p.diags.Errorf(pos, "storage specifier not permitted here")
			}
			name, ty := p.parseDeclarator(spec.base)
			if name != "" {
				p.diags.Errorf(pos, "expected abstract declarator, but identifier name was provided")
			}
			p.expect(")")
			return &ast.SizeofExpr{ExprBase: ast.Base(pos), OfType: ty}
		}
		x := p.parseUnary()
		return &ast.SizeofExpr{ExprBase: ast.Base(pos), X: x}
	}
	if p.check("++") || p.check("--") {
		op := p.advance()
		x := p.parseUnary()
		return &ast.UnaryExpr{ExprBase: ast.Base(op.Pos), Op: op.Value, X: x}
	}
	if p.cur().Category == token.Punct && unaryOps[p.cur().Value] {
		op := p.advance()
		x := p.parseCast()
		return &ast.UnaryExpr{ExprBase: ast.Base(op.Pos), Op: op.Value, X: x}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expr {
	e := p.parsePrimary()
	for {
		switch {
		case p.check("["):
			pos := p.advance().Pos
			idx := p.parseExpr()
			p.expect("]")
			e = &ast.IndexExpr{ExprBase: ast.Base(pos), X: e, Index: idx}
		case p.check("("):
			pos := p.advance().Pos
			var args []ast.Expr
			if !p.check(")") {
				for {
					args = append(args, p.parseAssignment())
					if !p.accept(",") {
						break
					}
				}
			}
			p.expect(")")
			e = &ast.CallExpr{ExprBase: ast.Base(pos), Callee: e, Args: args}
		case p.check("."):
			pos := p.advance().Pos
			name := p.expect(p.cur().Value).Value
			e = &ast.MemberExpr{ExprBase: ast.Base(pos), X: e, Name: name}
		case p.check("->"):
			pos := p.advance().Pos
			name := p.expect(p.cur().Value).Value
			e = &ast.MemberExpr{ExprBase: ast.Base(pos), X: e, Name: name, Arrow: true}
		case p.check("++") || p.check("--"):
			op := p.advance()
			e = &ast.PostfixExpr{ExprBase: ast.Base(op.Pos), Op: op.Value, X: e}
		default:
			return e
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	t := p.cur()
	switch t.Category {
	case token.IntLit, token.CharLit:
		p.advance()
		return &ast.IntLit{ExprBase: ast.Base(t.Pos), Value: t.IntValue}
	case token.StringLit:
		p.advance()
		return &ast.StringLit{ExprBase: ast.Base(t.Pos), Value: t.StrValue}
	case token.Ident:
		p.advance()
		return &ast.Ident{ExprBase: ast.Base(t.Pos), Name: t.Value}
	}
	if p.accept("(") {
		e := p.parseExpr()
		p.expect(")")
		return e
	}
	p.diags.Errorf(t.Pos, "expected expression")
	p.advance()
	return &ast.IntLit{ExprBase: ast.Base(t.Pos), Value: 0}
}

