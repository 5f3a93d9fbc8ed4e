package sem

import (
	"testing"

	"github.com/gorse-io/csubc/internal/diag"
	"github.com/gorse-io/csubc/internal/ir"
	"github.com/gorse-io/csubc/internal/lexer"
	"github.com/gorse-io/csubc/internal/parser"
	"github.com/gorse-io/csubc/internal/symtab"
	"github.com/gorse-io/csubc/internal/types"
)

// analyze runs the full lex/parse/analyze pipeline over src and returns the
// lowered program (nil if analysis produced any errors) plus the diagnostic
// bag, the same shape cmd/csubc's driver consumes.
func analyze(t *testing.T, src string) (*ir.Program, *diag.Bag) {
	t.Helper()
	d := &diag.Bag{}
	toks := lexer.Lex("t.c", []byte(src), d)
	syms := symtab.New()
	interp := types.NewInterner()
	tu := parser.Parse(toks, d, syms, interp)
	a := New(d, syms, interp)
	prog := a.Analyze(tu)
	return prog, d
}

func hasMessage(d *diag.Bag, msg string) bool {
	for _, e := range d.Sorted() {
		if e.Message == msg {
			return true
		}
	}
	return false
}

func TestArrowOnNonPointerDiagnostic(t *testing.T) {
	_, d := analyze(t, `
struct point { int x; int y; };
int main() {
	struct point p;
	return p->x;
}`)
	if !hasMessage(d, "first argument of '->' must have pointer type") {
		t.Errorf("expected pinned '->' diagnostic, got %v", d.Sorted())
	}
}

func TestMissingMemberDiagnostic(t *testing.T) {
	_, d := analyze(t, `
struct point { int x; int y; };
int main() {
	struct point p;
	return p.z;
}`)
	if !hasMessage(d, "structure or union has no member 'z'") {
		t.Errorf("expected pinned missing-member diagnostic, got %v", d.Sorted())
	}
}

func TestMemberOnNonStructDiagnostic(t *testing.T) {
	_, d := analyze(t, `
int main() {
	int x;
	return x.y;
}`)
	if !hasMessage(d, "request for member in something not a structure or union") {
		t.Errorf("expected pinned non-struct member diagnostic, got %v", d.Sorted())
	}
}

func TestInvalidSubscriptDiagnostic(t *testing.T) {
	_, d := analyze(t, `
int main() {
	int x;
	return x[0];
}`)
	if !hasMessage(d, "invalid operand types for array subscriping") {
		t.Errorf("expected pinned subscript diagnostic, got %v", d.Sorted())
	}
}

func TestInvalidOperandTypesForBitwiseShift(t *testing.T) {
	_, d := analyze(t, `
struct s { int a; };
int main() {
	struct s x;
	int n;
	n = x << 1;
	return n;
}`)
	if !hasMessage(d, "invalid operand types for bitwise shift") {
		t.Errorf("expected bitwise-shift diagnostic, got %v", d.Sorted())
	}
}

func TestCastValidityDiagnostics(t *testing.T) {
	_, d := analyze(t, `
struct s { int a; };
int main() {
	struct s x;
	int n;
	n = (int)x;
	return 0;
}`)
	if !hasMessage(d, "can only cast from scalar type") {
		t.Errorf("expected cast-from-scalar diagnostic, got %v", d.Sorted())
	}
}

func TestDistinctPointerComparisonWarning(t *testing.T) {
	_, d := analyze(t, `
int main() {
	int *p;
	char *q;
	return p == q;
}`)
	if !hasMessage(d, "comparison between distinct pointer types") {
		t.Errorf("expected distinct-pointer comparison warning, got %v", d.Sorted())
	}
}

func TestStaticLocalPersistsAsSeparateGlobal(t *testing.T) {
	prog, d := analyze(t, `
int counter() {
	static int i;
	i = i + 1;
	return i;
}
int other() {
	static int i;
	return i;
}`)
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Sorted())
	}
	if prog == nil {
		t.Fatal("expected a lowered program")
	}
	var statics []string
	for _, g := range prog.Globals {
		statics = append(statics, g.Name)
	}
	if len(statics) != 2 {
		t.Fatalf("expected two independent static-local globals, got %v", statics)
	}
	if statics[0] == statics[1] {
		t.Errorf("each function's static local must get a distinct storage label, got %v", statics)
	}
}

func TestConversionFromIncompatiblePointerTypeOnInit(t *testing.T) {
	_, d := analyze(t, `
int main() {
	int x;
	char *a;
	int *b = (int*)&a;
	unsigned int *c;
	int *e = c;
	return 0;
}`)
	if !hasMessage(d, "conversion from incompatible pointer type") {
		t.Errorf("expected init-time incompatible pointer warning, got %v", d.Sorted())
	}
}

func TestVoidPointerInitNeverWarns(t *testing.T) {
	_, d := analyze(t, `
int main() {
	int a;
	void *v = &a;
	int *e = v;
	return 0;
}`)
	if hasMessage(d, "conversion from incompatible pointer type") {
		t.Errorf("void* conversions must never warn, got %v", d.Sorted())
	}
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Sorted())
	}
}

func TestFunctionPointerCallResolves(t *testing.T) {
	_, d := analyze(t, `
int add(int a, int b) { return a + b; }
int main() {
	int (*f)(int, int);
	f = add;
	return f(1, 2);
}`)
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Sorted())
	}
}

func TestInvalidConversionBetweenTypesOnAssignment(t *testing.T) {
	_, d := analyze(t, `
int main() {
	int a;
	int b;
	a = &b;
	return 0;
}`)
	if !hasMessage(d, "invalid conversion between types") {
		t.Errorf("expected invalid-conversion diagnostic for pointer-to-int assignment, got %v", d.Sorted())
	}
}

func TestInvalidConversionBetweenTypesOnNonZeroIntToPointer(t *testing.T) {
	_, d := analyze(t, `
int main() {
	int *c;
	c = 10;
	return 0;
}`)
	if !hasMessage(d, "invalid conversion between types") {
		t.Errorf("expected invalid-conversion diagnostic assigning a non-zero int to a pointer, got %v", d.Sorted())
	}
}

func TestNullPointerConstantAssignmentNeverWarns(t *testing.T) {
	_, d := analyze(t, `
int main() {
	int *p;
	p = 0;
	return 0;
}`)
	if hasMessage(d, "invalid conversion between types") {
		t.Errorf("assigning the literal 0 to a pointer must never be flagged, got %v", d.Sorted())
	}
}

func TestArraySubscriptOnIncompletePointerDiagnostic(t *testing.T) {
	_, d := analyze(t, `
int main() {
	void *p;
	return (int)p[4];
}`)
	if !hasMessage(d, "cannot subscript pointer to incomplete type") {
		t.Errorf("expected incomplete-pointer subscript diagnostic, got %v", d.Sorted())
	}
}

func TestImplicitFunctionDeclarationWarning(t *testing.T) {
	_, d := analyze(t, `
int main() {
	return undeclared_fn(1);
}`)
	found := false
	for _, e := range d.Sorted() {
		if e.Kind == diag.Warning && e.Message == "implicit declaration of function 'undeclared_fn'" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected implicit-declaration warning, got %v", d.Sorted())
	}
}

// TestFunctionCallDiagnosticsScenario mirrors error_function_call.c: it must
// fail with exactly these five diagnostics at these five lines, and no
// others — a non-function-pointer call and four arity mismatches against a
// prototyped and a (void) function.
func TestFunctionCallDiagnosticsScenario(t *testing.T) {
	_, d := analyze(t, `
int isalpha(int);
int isdigit(void);

int main() {
	int a;

	a();

	isalpha();

	isalpha(10, 10);

	isdigit();

	isdigit(1);

	isdigit(1, 2);

	return 0;
}`)
	if !d.HasErrors() {
		t.Fatalf("expected diagnostics, got none (code emission must be gated on these)")
	}
	want := map[int]string{
		8:  "called object is not a function pointer",
		10: "incorrect number of arguments for function call (expected 1, have 0)",
		12: "incorrect number of arguments for function call (expected 1, have 2)",
		16: "incorrect number of arguments for function call (expected 0, have 1)",
		18: "incorrect number of arguments for function call (expected 0, have 2)",
	}
	got := d.Sorted()
	if len(got) != len(want) {
		t.Fatalf("got %d diagnostics, want %d: %v", len(got), len(want), got)
	}
	for _, e := range got {
		msg, ok := want[e.Pos.Line]
		if !ok {
			t.Errorf("unexpected diagnostic at line %d: %s", e.Pos.Line, e.Message)
			continue
		}
		if e.Message != msg {
			t.Errorf("line %d: got %q, want %q", e.Pos.Line, e.Message, msg)
		}
		if e.Kind != diag.Error {
			t.Errorf("line %d: got kind %v, want error", e.Pos.Line, e.Kind)
		}
	}
}
