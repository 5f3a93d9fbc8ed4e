package ilrun

import (
	"testing"

	"github.com/gorse-io/csubc/internal/diag"
	"github.com/gorse-io/csubc/internal/ir"
	"github.com/gorse-io/csubc/internal/lexer"
	"github.com/gorse-io/csubc/internal/parser"
	"github.com/gorse-io/csubc/internal/sem"
	"github.com/gorse-io/csubc/internal/symtab"
	"github.com/gorse-io/csubc/internal/types"
)

// compile runs the full lex/parse/analyze pipeline, the same one
// cmd/csubc's driver uses ahead of code generation, and fails the test if it
// produced any errors (warnings are allowed).
func compile(t *testing.T, src string) *ir.Program {
	t.Helper()
	d := &diag.Bag{}
	toks := lexer.Lex("t.c", []byte(src), d)
	syms := symtab.New()
	interp := types.NewInterner()
	tu := parser.Parse(toks, d, syms, interp)
	prog := sem.New(d, syms, interp).Analyze(tu)
	if d.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", d.Sorted())
	}
	return prog
}

// TestAdditionScenario mirrors the corpus's addition.c: mixed 32-bit and
// 64-bit arithmetic including the imm64 constant 1099511627776, which must
// be materialized through a register rather than folded into an immediate
// operand without disturbing the liveness of the other locals.
func TestAdditionScenario(t *testing.T) {
	prog := compile(t, `
int main() {
	int a; int b;
	a = 5; b = 10;

	int c;
	c = a + b;
	if (c != 15) return 1;

	int d;
	d = c + 5;
	if (d != 20) return 2;

	long never_dead;
	never_dead = 1099511627776;

	long j;
	j = 1099511627776;
	never_dead = j + 1099511627776;
	if (never_dead != 1099511627776 + 1099511627776) return 7;

	long k;
	k = 1099511627776;
	never_dead = 1099511627776 + k;
	if (never_dead != 1099511627776 + 1099511627776) return 8;

	return 0;
}
`)
	if got := ilrunMain(t, prog); got != 0 {
		t.Errorf("exit code = %d, want 0", got)
	}
}

// TestIfScenario mirrors the corpus's if.c, whose pinned comment records an
// expected exit code of 30 from a chain of nested true/false conditions.
func TestIfScenario(t *testing.T) {
	prog := compile(t, `
int main() {
	if (0) return 1;

	int a; a = 0;
	if (a) return 2;

	int b; b = 10;
	int c; c = 11;
	if (b == c) return 3;
	if (b != b) return 4;

	if (b != c) {
		if (b * 0) return 4;
		if (3 == 4) return 5;
		if (3 != 3) return 6;

		b = 3;
		if (b != 3) return 7;

		int ret1; int ret2; int ret3;
		if (b == 3) {
			if (b != 15) {
				ret1 = 10;
				if (3 == 3) {
					ret2 = ret1 + 10;
					if (5) {
						ret3 = ret2 + 10;
						return ret3;
					}
				}
			}
		}
	}
	return 8;
}
`)
	if got := ilrunMain(t, prog); got != 30 {
		t.Errorf("exit code = %d, want 30", got)
	}
}

// TestArrayScenario exercises pointer/array decay, bare array address-of,
// subscript commutativity (both via explicit pointer arithmetic and via the
// commuted "N[array]" form), and a summing while loop, mirroring array.c's
// shape (minus the pointer-type-mismatch warnings, which are covered
// directly in internal/sem's tests).
func TestArrayScenario(t *testing.T) {
	prog := compile(t, `
int main() {
	int array[5];
	if (&array != &array) return 1;
	if (array != array) return 2;
	if (&array[0] != &array[0]) return 13;
	if (&array[3] != &array[0] + 3) return 14;

	int array2[5];
	if (&array2 != &array2) return 3;
	if (array2 != array2) return 4;
	if (&array == &array2) return 5;
	if (array == array2) return 6;

	*array = 15;
	if (*array != 15) return 11;

	*(array + 2) = 20;
	if (*(array + 2) != 20) return 12;

	if (array[0] != 15) return 16;
	if (array[2] != 20) return 17;

	array[1] = 35;
	array[3] = 10;
	4[array] = 1[array] + array[3];

	int sum;
	int i; i = 0;
	while (i != 5) {
		sum = sum + array[i];
		i = i + 1;
	}
	if (sum != 15 + 35 + 20 + 10 + 35 + 10) return 18;

	return 0;
}
`)
	if got := ilrunMain(t, prog); got != 0 {
		t.Errorf("exit code = %d, want 0", got)
	}
}

// TestFunctionCallScenario exercises calls into the builtin table (isalpha,
// div's RAX-quotient quirk, strcmp, strncpy) and the function-pointer
// round-trip from function_call.c.
func TestFunctionCallScenario(t *testing.T) {
	prog := compile(t, `
int isalpha(int);
int div(int, int);
int strcmp(char*, char*);
char* strncpy(char*, char*, long);

int main() {
	_Bool b;
	b = isalpha(65);
	if (b != 1) return 1;

	b = isalpha(52);
	if (b != 0) return 2;

	if (div(50, 5) != 10) return 3;

	char str1[5]; char str2[5];
	str1[0] = str2[0] = 100;
	str1[1] = str2[1] = 101;
	str1[2] = str2[2] = 102;
	str1[3] = str2[3] = 103;
	str1[4] = str2[4] = 0;
	if (strcmp(str1, str2)) return 4;

	str2[3] = 102;
	if (strcmp(str1, str2) != 1) return 5;

	str2[0] = 106;
	str2[1] = 107;
	str2[2] = 108;
	char* out = strncpy(str1, str2, 3);
	if (out[0] != 106) return 6;
	if (out[1] != 107) return 7;
	if (out[2] != 108) return 8;
	if (out[3] != 103) return 9;
	if (out[4] != 0) return 10;

	int (*f2)(int) = isalpha;
	if (f2(5)) return 12;

	return 0;
}
`)
	if got := ilrunMain(t, prog); got != 0 {
		t.Errorf("exit code = %d, want 0", got)
	}
}

// TestSizeofOperandNotEvaluated locks in that sizeof(f()) never calls f: the
// interpreter would otherwise append to a counter global and change the
// comparison result.
func TestSizeofOperandNotEvaluated(t *testing.T) {
	prog := compile(t, `
int calls;
int bump() { calls = calls + 1; return 0; }

int main() {
	long n;
	n = sizeof(bump());
	if (n != sizeof(int)) return 1;
	if (calls != 0) return 2;
	return 0;
}
`)
	if got := ilrunMain(t, prog); got != 0 {
		t.Errorf("exit code = %d, want 0 (calls leaked into sizeof operand evaluation)", got)
	}
}

// TestPointerArithmeticRoundTrip locks in the §8 invariant (p + n) - p == n
// and &a[i] == a + i for an array a.
func TestPointerArithmeticRoundTrip(t *testing.T) {
	prog := compile(t, `
int main() {
	int a[4];
	int* p;
	p = a;
	if ((p + 3) - p != 3) return 1;
	if (&a[2] != a + 2) return 2;
	return 0;
}
`)
	if got := ilrunMain(t, prog); got != 0 {
		t.Errorf("exit code = %d, want 0", got)
	}
}

func ilrunMain(t *testing.T, prog *ir.Program) int64 {
	t.Helper()
	m := New(prog)
	return m.Run("main")
}
