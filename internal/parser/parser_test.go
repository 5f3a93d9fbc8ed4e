package parser

import (
	"testing"

	"github.com/gorse-io/csubc/internal/ast"
	"github.com/gorse-io/csubc/internal/diag"
	"github.com/gorse-io/csubc/internal/lexer"
	"github.com/gorse-io/csubc/internal/symtab"
	"github.com/gorse-io/csubc/internal/types"
)

func parseSrc(t *testing.T, src string) (*ast.TranslationUnit, *diag.Bag) {
	t.Helper()
	d := &diag.Bag{}
	toks := lexer.Lex("t.c", []byte(src), d)
	syms := symtab.New()
	interp := types.NewInterner()
	tu := Parse(toks, d, syms, interp)
	return tu, d
}

func TestParseSimpleFunctionDefinition(t *testing.T) {
	tu, d := parseSrc(t, "int main() { return 0; }")
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Sorted())
	}
	if len(tu.Decls) != 1 {
		t.Fatalf("got %d decls, want 1", len(tu.Decls))
	}
	fn, ok := tu.Decls[0].(*ast.FuncDef)
	if !ok {
		t.Fatalf("decl is %T, want *ast.FuncDef", tu.Decls[0])
	}
	if fn.Name != "main" {
		t.Errorf("function name = %q, want main", fn.Name)
	}
}

func TestFunctionPointerDeclarator(t *testing.T) {
	// (*f)(int) declares f as pointer-to-function taking int, returning int.
	tu, d := parseSrc(t, "int (*f)(int);")
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Sorted())
	}
	vd, ok := tu.Decls[0].(*ast.VarDecl)
	if !ok {
		t.Fatalf("decl is %T, want *ast.VarDecl", tu.Decls[0])
	}
	if vd.Type.Kind != types.Pointer || vd.Type.Elem.Kind != types.Function {
		t.Fatalf("f's type = %s, want pointer-to-function", vd.Type)
	}
}

func TestTypedefFeedsBackIntoParser(t *testing.T) {
	// After "typedef int myint;" the parser must recognize myint as a type
	// specifier, not an identifier, in the following declaration.
	tu, d := parseSrc(t, "typedef int myint; myint x;")
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Sorted())
	}
	if len(tu.Decls) != 2 {
		t.Fatalf("got %d decls, want 2", len(tu.Decls))
	}
	vd, ok := tu.Decls[1].(*ast.VarDecl)
	if !ok {
		t.Fatalf("second decl is %T, want *ast.VarDecl", tu.Decls[1])
	}
	if vd.Type.Kind != types.Int {
		t.Errorf("x resolved to %s, want int", vd.Type)
	}
}

func TestSizeofOperandNotEvaluatedAtParseTime(t *testing.T) {
	// sizeof must accept a bare unary expression without requiring parens,
	// and must not itself require the callee to exist/resolve at parse time.
	tu, d := parseSrc(t, "int main() { int n; n = sizeof(f()); return 0; }")
	if d.HasErrors() {
		t.Fatalf("unexpected parse errors: %v", d.Sorted())
	}
	_ = tu
}

func TestStructDeclaratorGrammar(t *testing.T) {
	tu, d := parseSrc(t, "struct point { int x; int y; }; struct point p;")
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Sorted())
	}
	if len(tu.Decls) != 2 {
		t.Fatalf("got %d decls, want 2", len(tu.Decls))
	}
}

func TestArraySubscriptCommutativity(t *testing.T) {
	// 4[array] must parse identically in shape to array[4]; both are
	// IndexExpr nodes, just with X/Index swapped.
	tu, d := parseSrc(t, "int main() { int array[5]; int a; a = array[4]; int b; b = 4[array]; return 0; }")
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Sorted())
	}
	_ = tu
}

func TestMissingIdentifierNameDiagnostic(t *testing.T) {
	_, d := parseSrc(t, "int ;")
	found := false
	for _, diagEntry := range d.Sorted() {
		if diagEntry.Message == "missing identifier name in declaration" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 'missing identifier name in declaration', got %v", d.Sorted())
	}
}

func hasParserMessage(d *diag.Bag, msg string) bool {
	for _, e := range d.Sorted() {
		if e.Message == msg {
			return true
		}
	}
	return false
}

func TestUnrecognizedTypeSpecifierCombos(t *testing.T) {
	_, d := parseSrc(t, "int main() { int int a; return 0; }")
	if !hasParserMessage(d, "unrecognized set of type specifiers") {
		t.Errorf("expected duplicate 'int' to be flagged, got %v", d.Sorted())
	}

	_, d2 := parseSrc(t, "int main() { unsigned signed int a; return 0; }")
	if !hasParserMessage(d2, "unrecognized set of type specifiers") {
		t.Errorf("expected signed+unsigned combo to be flagged, got %v", d2.Sorted())
	}
}

func TestStorageSpecifierNotPermittedInCast(t *testing.T) {
	_, d := parseSrc(t, "int main() { int a; a = (static int)a; return 0; }")
	if !hasParserMessage(d, "storage specifier not permitted here") {
		t.Errorf("expected storage-specifier-in-cast diagnostic, got %v", d.Sorted())
	}
}

func TestTypedefRedeclaredAsVariableInSameScope(t *testing.T) {
	_, d := parseSrc(t, "int main() { typedef int a; int a; return 0; }")
	if !hasParserMessage(d, "redeclared type definition 'a' as variable") {
		t.Errorf("expected typedef-redeclared-as-variable diagnostic, got %v", d.Sorted())
	}
}

func TestVariableRedeclaredAsTypedefInSameScope(t *testing.T) {
	_, d := parseSrc(t, "int main() { int variable; typedef int variable; return 0; }")
	if !hasParserMessage(d, "'variable' redeclared as type definition in same scope") {
		t.Errorf("expected variable-redeclared-as-typedef diagnostic, got %v", d.Sorted())
	}
}

func TestArraySizeMustHaveIntegralType(t *testing.T) {
	_, d := parseSrc(t, "int main() { int a[(int*)1]; return 0; }")
	if !hasParserMessage(d, "array size must have integral type") {
		t.Errorf("expected non-integral array size diagnostic, got %v", d.Sorted())
	}
}

func TestArrayElementsMustHaveCompleteType(t *testing.T) {
	_, d := parseSrc(t, "struct S; int main() { struct S a[3]; return 0; }")
	if !hasParserMessage(d, "array elements must have complete type") {
		t.Errorf("expected incomplete-element array diagnostic, got %v", d.Sorted())
	}
}

func TestFunctionDefinitionMissingParameterList(t *testing.T) {
	_, d := parseSrc(t, "typedef int F(void);\nF f { return 0; }")
	if !hasParserMessage(d, "function definition missing parameter list") {
		t.Errorf("expected missing-parameter-list diagnostic, got %v", d.Sorted())
	}
}

func TestOrdinaryFunctionDefinitionHasParameterList(t *testing.T) {
	_, d := parseSrc(t, "int main() { return 0; }")
	if hasParserMessage(d, "function definition missing parameter list") {
		t.Errorf("did not expect missing-parameter-list diagnostic, got %v", d.Sorted())
	}
}
