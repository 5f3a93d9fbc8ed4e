package types

import "testing"

func TestScalarSizes(t *testing.T) {
	in := NewInterner()
	cases := []struct {
		kind Kind
		size int
	}{
		{Bool, 1}, {Char, 1}, {Short, 2}, {Int, 4}, {Long, 8},
	}
	for _, c := range cases {
		ty := in.Scalar(c.kind, false)
		if got := ty.Size(); got != c.size {
			t.Errorf("%s size = %d, want %d", ty, got, c.size)
		}
	}
}

func TestPointerAndArraySizes(t *testing.T) {
	in := NewInterner()
	intT := in.Scalar(Int, false)
	ptr := in.PointerTo(intT)
	if ptr.Size() != 8 {
		t.Errorf("pointer size = %d, want 8", ptr.Size())
	}
	arr := in.ArrayOf(intT, 4)
	if arr.Size() != 16 {
		t.Errorf("int[4] size = %d, want 16", arr.Size())
	}
	incomplete := in.ArrayOf(intT, -1)
	if !incomplete.IsIncomplete() {
		t.Error("array with length -1 must be incomplete")
	}
}

func TestInterningCanonicalizesShape(t *testing.T) {
	in := NewInterner()
	intT := in.Scalar(Int, false)
	p1 := in.PointerTo(intT)
	p2 := in.PointerTo(in.Scalar(Int, false))
	if p1 != p2 {
		t.Error("two requests for pointer-to-int must return the identical *Type")
	}
}

func TestIncompleteArrayCompatibleWithCompleted(t *testing.T) {
	in := NewInterner()
	intT := in.Scalar(Int, false)
	incomplete := in.ArrayOf(intT, -1)
	complete := in.ArrayOf(intT, 10)
	if !Compatible(incomplete, complete) {
		t.Error("incomplete array must be compatible with a completed array of the same element type")
	}
}

func TestVoidPointerCompatibleWithAnyObjectPointer(t *testing.T) {
	in := NewInterner()
	voidPtr := in.PointerTo(in.VoidType())
	intPtr := in.PointerTo(in.Scalar(Int, false))
	if !Compatible(voidPtr, intPtr) || !Compatible(intPtr, voidPtr) {
		t.Error("void* must be compatible with any object pointer in both directions")
	}
}

func TestDistinctPointerTypesIncompatible(t *testing.T) {
	in := NewInterner()
	intPtr := in.PointerTo(in.Scalar(Int, false))
	charPtr := in.PointerTo(in.Scalar(Char, false))
	if Compatible(intPtr, charPtr) {
		t.Error("pointers to unrelated types must not be compatible")
	}
}

func TestFunctionPointersDifferingSignaturesIncompatible(t *testing.T) {
	in := NewInterner()
	intT := in.Scalar(Int, false)
	f1 := in.FunctionType(intT, []*Type{intT}, true)
	f2 := in.FunctionType(intT, []*Type{intT, intT}, true)
	if Compatible(f1, f2) {
		t.Error("functions with differing arity must be incompatible")
	}
}

func TestStructLayoutNaturalAlignmentAndPadding(t *testing.T) {
	in := NewInterner()
	charT := in.Scalar(Char, false)
	intT := in.Scalar(Int, false)
	longT := in.Scalar(Long, false)

	st := NewTag(Struct, "S")
	st.SetBody([]Member{
		{Name: "a", Type: charT},
		{Name: "b", Type: intT},
		{Name: "c", Type: longT},
	})

	// char at 0; int must pad up to 4-byte alignment; long must pad to 8.
	want := []int{0, 4, 8}
	for i, m := range st.Members {
		if m.Offset != want[i] {
			t.Errorf("member %d offset = %d, want %d", i, m.Offset, want[i])
		}
		if m.Offset%m.Type.Alignment() != 0 {
			t.Errorf("member %d offset %d not aligned to %d", i, m.Offset, m.Type.Alignment())
		}
	}
	if st.Alignment() != 8 {
		t.Errorf("struct alignment = %d, want 8 (max member alignment)", st.Alignment())
	}
	if st.Size()%st.Alignment() != 0 {
		t.Errorf("struct size %d must be a multiple of its alignment %d", st.Size(), st.Alignment())
	}
	if st.Size() != 16 {
		t.Errorf("struct size = %d, want 16 (1 + 3 padding + 4 + 8)", st.Size())
	}
}

func TestUnionSharesOffsetZeroAndTakesMaxSize(t *testing.T) {
	in := NewInterner()
	intT := in.Scalar(Int, false)
	longT := in.Scalar(Long, false)

	u := NewTag(Union, "U")
	u.SetBody([]Member{
		{Name: "i", Type: intT},
		{Name: "l", Type: longT},
	})
	for _, m := range u.Members {
		if m.Offset != 0 {
			t.Errorf("union member %s offset = %d, want 0", m.Name, m.Offset)
		}
	}
	if u.Size() != 8 {
		t.Errorf("union size = %d, want 8 (max member size)", u.Size())
	}
	if u.Alignment() != 8 {
		t.Errorf("union alignment = %d, want 8 (max member alignment)", u.Alignment())
	}
}

func TestIncompleteStructCannotReportSize(t *testing.T) {
	st := NewTag(Struct, "Incomplete")
	if !st.IsIncomplete() {
		t.Fatal("a struct with no SetBody call must be incomplete")
	}
	if st.Size() != 0 {
		t.Errorf("incomplete struct size = %d, want 0 (unknown)", st.Size())
	}
}

func TestDecayArrayAndFunction(t *testing.T) {
	in := NewInterner()
	intT := in.Scalar(Int, false)
	arr := in.ArrayOf(intT, 3)
	decayed := in.Decay(arr)
	if decayed.Kind != Pointer || decayed.Elem != intT {
		t.Errorf("array must decay to pointer-to-element, got %s", decayed)
	}

	fn := in.FunctionType(intT, nil, true)
	decayedFn := in.Decay(fn)
	if decayedFn.Kind != Pointer || decayedFn.Elem != fn {
		t.Errorf("function must decay to pointer-to-function, got %s", decayedFn)
	}
}

func TestErrorTypeIsAlwaysCompatible(t *testing.T) {
	in := NewInterner()
	errT := in.ErrorType()
	intT := in.Scalar(Int, false)
	if !Compatible(errT, intT) || !Compatible(intT, errT) {
		t.Error("the poisoned error type must silently appear compatible with everything")
	}
}
