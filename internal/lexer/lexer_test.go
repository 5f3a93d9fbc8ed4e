package lexer

import (
	"testing"

	"github.com/gorse-io/csubc/internal/diag"
	"github.com/gorse-io/csubc/internal/token"
)

func lexNoErr(t *testing.T, src string) []token.Token {
	t.Helper()
	d := &diag.Bag{}
	toks := Lex("t.c", []byte(src), d)
	if d.HasErrors() {
		t.Fatalf("Lex(%q) produced errors: %v", src, d.Sorted())
	}
	return toks
}

func TestLineSplicing(t *testing.T) {
	toks := lexNoErr(t, "int a\\\n = 1;")
	var kinds []string
	for _, tok := range toks {
		if tok.Category != token.EOF {
			kinds = append(kinds, tok.Value)
		}
	}
	want := []string{"int", "a", "=", "1", ";"}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, kinds[i], want[i])
		}
	}
	// The line count must still advance across the elided newline.
	last := toks[len(toks)-2] // ';'
	if last.Pos.Line != 2 {
		t.Errorf("';' at line %d, want 2 (line count must still advance across splice)", last.Pos.Line)
	}
}

func TestCommentsBecomeSpace(t *testing.T) {
	toks := lexNoErr(t, "int/*c*/a;// trailing\nint b;")
	if toks[0].Value != "int" || toks[1].Value != "a" {
		t.Fatalf("block comment not elided: %v", toks[:2])
	}
	if toks[3].Value != "int" || toks[3].Pos.Line != 2 {
		t.Fatalf("line comment did not stop at newline: %+v", toks[3])
	}
}

func TestCharEscapes(t *testing.T) {
	cases := []struct {
		src  string
		want byte
	}{
		{`'\n'`, '\n'},
		{`'\t'`, '\t'},
		{`'\\'`, '\\'},
		{`'\''`, '\''},
		{`'\"'`, '"'},
		{`'\0'`, 0},
		{`'\101'`, 'A'},  // octal
		{`'\x41'`, 'A'},  // hex
		{`'\q'`, 'q'},    // unknown escape tolerated: literal char
	}
	for _, c := range cases {
		toks := lexNoErr(t, c.src)
		if toks[0].Category != token.CharLit {
			t.Fatalf("%s: not a char literal: %+v", c.src, toks[0])
		}
		if byte(toks[0].IntValue) != c.want {
			t.Errorf("%s: decoded to %d, want %d", c.src, toks[0].IntValue, c.want)
		}
	}
}

func TestStringLiteralDecoding(t *testing.T) {
	toks := lexNoErr(t, `"hi\n"`)
	if toks[0].Category != token.StringLit {
		t.Fatalf("not a string literal: %+v", toks[0])
	}
	if toks[0].StrValue != "hi\n" {
		t.Errorf("got %q, want %q", toks[0].StrValue, "hi\n")
	}
}

func TestIntegerLiteralSizing(t *testing.T) {
	cases := []struct {
		src      string
		wantLong bool
	}{
		{"1", false},
		{"2147483647", false},     // fits in int
		{"2147483648", true},      // does not fit in int, promotes to long
		{"1099511627776", true},   // explicitly pinned 64-bit constant
	}
	for _, c := range cases {
		toks := lexNoErr(t, c.src)
		if toks[0].IsLong != c.wantLong {
			t.Errorf("%s: IsLong = %v, want %v", c.src, toks[0].IsLong, c.wantLong)
		}
	}
}

func TestKeywordsVsIdentifiers(t *testing.T) {
	toks := lexNoErr(t, "struct foo_bar typedef")
	if toks[0].Category != token.Keyword {
		t.Errorf("struct should lex as keyword, got %v", toks[0].Category)
	}
	if toks[1].Category != token.Ident {
		t.Errorf("foo_bar should lex as identifier, got %v", toks[1].Category)
	}
	if toks[2].Category != token.Keyword {
		t.Errorf("typedef should lex as keyword, got %v", toks[2].Category)
	}
}

func TestOperatorGreedyMatch(t *testing.T) {
	toks := lexNoErr(t, "a += 1; b ++; c <= d;")
	var ops []string
	for _, tok := range toks {
		if tok.Category == token.Punct {
			ops = append(ops, tok.Value)
		}
	}
	want := []string{"+=", ";", "++", ";", "<=", ";"}
	if len(ops) != len(want) {
		t.Fatalf("got %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("op %d = %q, want %q", i, ops[i], want[i])
		}
	}
}

func TestStrayCharacterIsError(t *testing.T) {
	d := &diag.Bag{}
	Lex("t.c", []byte("int a = 1 $ 2;"), d)
	if !d.HasErrors() {
		t.Fatal("expected an error for the stray '$'")
	}
}

func TestUnterminatedStringIsError(t *testing.T) {
	d := &diag.Bag{}
	Lex("t.c", []byte(`"abc`), d)
	if !d.HasErrors() {
		t.Fatal("expected an error for the unterminated string literal")
	}
}
