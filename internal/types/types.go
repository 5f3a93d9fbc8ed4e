// Package types implements the canonical, structurally-compared type model:
// arithmetic kinds, pointers, arrays, functions, structs/unions, and
// qualified wrappers. Arithmetic and pointer/array shapes are hash-consed
// through an Interner's table (one per translation unit, created by the
// caller via NewInterner) so two requests for "pointer to const int"
// return the identical *Type, per the teacher-grounded "canonicalize via a
// hash-consing table keyed by shape" design note; struct/union types are
// referenced by identity at their tag-definition site instead, so that
// completing an incomplete struct is visible through every existing
// reference — the samber/lo helpers below are used for slice transforms
// over parameter and member lists.
package types

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Kind is the top-level discriminator of a Type.
type Kind int

const (
	Void Kind = iota
	Bool
	Char
	Short
	Int
	Long
	Pointer
	Array
	Function
	Struct
	Union
	Error // poisoned type: silences cascading diagnostics
)

// Qualifier is a bitmask of type qualifiers.
type Qualifier int

const (
	None  Qualifier = 0
	Const Qualifier = 1 << iota
)

// Member is one field of a struct or union.
type Member struct {
	Name   string
	Type   *Type
	Offset int
}

// Type is the canonical representation described by DATA MODEL §3.
type Type struct {
	Kind     Kind
	Unsigned bool
	Qual     Qualifier

	Elem     *Type // Pointer/Array element type
	ArrayLen int    // Array: -1 means incomplete

	Ret          *Type // Function return type
	Params       []*Type
	HasPrototype bool

	Tag      string // Struct/Union tag, "" if anonymous
	Members  []Member
	Complete bool // Struct/Union: body has been supplied
	size     int
	align    int
}

// Interner hash-conses scalar/pointer/array shapes for one translation unit.
type Interner struct {
	cache map[string]*Type
}

// NewInterner creates a fresh interning table; call once per translation
// unit so canonicalization does not leak across independent compiles.
func NewInterner() *Interner {
	return &Interner{cache: make(map[string]*Type)}
}

func (in *Interner) intern(key string, build func() *Type) *Type {
	if t, ok := in.cache[key]; ok {
		return t
	}
	t := build()
	in.cache[key] = t
	return t
}

// Arithmetic constructors.

// Scalar returns the canonical (possibly qualified-free) arithmetic type.
func (in *Interner) Scalar(kind Kind, unsigned bool) *Type {
	key := fmt.Sprintf("scalar:%d:%v", kind, unsigned)
	return in.intern(key, func() *Type { return &Type{Kind: kind, Unsigned: unsigned} })
}

func (in *Interner) VoidType() *Type {
	return in.intern("void", func() *Type { return &Type{Kind: Void} })
}

func (in *Interner) ErrorType() *Type {
	return in.intern("error", func() *Type { return &Type{Kind: Error} })
}

// PointerTo returns the canonical pointer-to-elem type.
func (in *Interner) PointerTo(elem *Type) *Type {
	key := "ptr:" + elem.shapeKey()
	return in.intern(key, func() *Type { return &Type{Kind: Pointer, Elem: elem} })
}

// ArrayOf returns the canonical array type; length -1 denotes incomplete.
func (in *Interner) ArrayOf(elem *Type, length int) *Type {
	key := fmt.Sprintf("arr:%d:%s", length, elem.shapeKey())
	return in.intern(key, func() *Type { return &Type{Kind: Array, Elem: elem, ArrayLen: length} })
}

// FunctionType returns the canonical function type.
func (in *Interner) FunctionType(ret *Type, params []*Type, hasPrototype bool) *Type {
	parts := lo.Map(params, func(p *Type, _ int) string { return p.shapeKey() })
	key := fmt.Sprintf("fn:%v:%s:%s", hasPrototype, ret.shapeKey(), strings.Join(parts, ","))
	return in.intern(key, func() *Type {
		return &Type{Kind: Function, Ret: ret, Params: params, HasPrototype: hasPrototype}
	})
}

// Qualified returns t with qual applied (qualifiers do not affect identity
// comparisons used for compatibility, only assignability).
func (in *Interner) Qualified(t *Type, qual Qualifier) *Type {
	if t.Qual == qual {
		return t
	}
	key := fmt.Sprintf("qual:%d:%s", qual, t.shapeKey())
	return in.intern(key, func() *Type {
		clone := *t
		clone.Qual = qual
		return &clone
	})
}

// NewTag creates a fresh (initially incomplete) struct/union type for a
// newly seen tag; struct/union types are identity-based, never interned, so
// completion is visible to all existing holders of the pointer.
func NewTag(kind Kind, tag string) *Type {
	return &Type{Kind: kind, Tag: tag, ArrayLen: -1}
}

// SetBody completes a previously-incomplete struct/union in place, computing
// offsets with natural alignment and trailing padding to the struct's own
// alignment.
func (t *Type) SetBody(members []Member) {
	offset := 0
	align := 1
	for i := range members {
		m := &members[i]
		a := m.Type.Alignment()
		offset = alignUp(offset, a)
		m.Offset = offset
		if t.Kind == Union {
			offset = 0
		} else {
			offset += m.Type.Size()
		}
		if a > align {
			align = a
		}
	}
	size := offset
	if t.Kind == Union {
		size = lo.Reduce(members, func(acc int, m Member, _ int) int {
			if sz := m.Type.Size(); sz > acc {
				return sz
			}
			return acc
		}, 0)
	}
	size = alignUp(size, align)
	t.Members = members
	t.size = size
	t.align = align
	t.Complete = true
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// shapeKey produces a structural key for interning; struct/union types use
// their tag + pointer identity is implicit since they are never interned.
func (t *Type) shapeKey() string {
	if t == nil {
		return "nil"
	}
	switch t.Kind {
	case Pointer:
		return "ptr:" + t.Elem.shapeKey()
	case Array:
		return fmt.Sprintf("arr:%d:%s", t.ArrayLen, t.Elem.shapeKey())
	case Struct, Union:
		return fmt.Sprintf("tag:%d:%s:%p", t.Kind, t.Tag, t)
	case Function:
		parts := lo.Map(t.Params, func(p *Type, _ int) string { return p.shapeKey() })
		return fmt.Sprintf("fn:%s:%s", t.Ret.shapeKey(), strings.Join(parts, ","))
	default:
		return fmt.Sprintf("scalar:%d:%v:%d", t.Kind, t.Unsigned, t.Qual)
	}
}

// Size returns the type's size in bytes; 0 for incomplete/void/error/function.
func (t *Type) Size() int {
	switch t.Kind {
	case Void, Error, Function:
		return 0
	case Bool, Char:
		return 1
	case Short:
		return 2
	case Int:
		return 4
	case Long, Pointer:
		return 8
	case Array:
		if t.ArrayLen < 0 {
			return 0
		}
		return t.ArrayLen * t.Elem.Size()
	case Struct, Union:
		return t.size
	}
	return 0
}

// Alignment returns the type's required alignment in bytes.
func (t *Type) Alignment() int {
	switch t.Kind {
	case Array:
		return t.Elem.Alignment()
	case Struct, Union:
		if t.align == 0 {
			return 1
		}
		return t.align
	default:
		if sz := t.Size(); sz > 0 {
			return sz
		}
		return 1
	}
}

func (t *Type) IsIncomplete() bool {
	switch t.Kind {
	case Void:
		return true
	case Array:
		return t.ArrayLen < 0
	case Struct, Union:
		return !t.Complete
	}
	return false
}

func (t *Type) IsIntegral() bool {
	switch t.Kind {
	case Bool, Char, Short, Int, Long:
		return true
	}
	return false
}

func (t *Type) IsArithmetic() bool { return t.IsIntegral() }

func (t *Type) IsPointer() bool { return t.Kind == Pointer }

func (t *Type) IsScalar() bool { return t.IsArithmetic() || t.IsPointer() }

func (t *Type) IsError() bool { return t.Kind == Error }

// Rank orders integral kinds for the usual arithmetic conversions; larger
// rank wins, ties broken toward the unsigned variant.
func (t *Type) Rank() int {
	switch t.Kind {
	case Bool:
		return 0
	case Char:
		return 1
	case Short:
		return 2
	case Int:
		return 3
	case Long:
		return 4
	}
	return -1
}

// Decay returns the value-context type of t: arrays decay to pointer-to-
// element, functions decay to pointer-to-function; everything else is
// unchanged.
func (in *Interner) Decay(t *Type) *Type {
	switch t.Kind {
	case Array:
		return in.PointerTo(t.Elem)
	case Function:
		return in.PointerTo(t)
	default:
		return t
	}
}

// Compatible reports whether a and b are compatible types for redeclaration
// and assignment-without-warning purposes, up to qualification.
func Compatible(a, b *Type) bool {
	if a.Kind == Error || b.Kind == Error {
		return true
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Bool, Char, Short, Int, Long:
		return a.Unsigned == b.Unsigned
	case Pointer:
		if a.Elem.Kind == Void || b.Elem.Kind == Void {
			return true
		}
		return Compatible(a.Elem, b.Elem)
	case Array:
		if a.ArrayLen >= 0 && b.ArrayLen >= 0 && a.ArrayLen != b.ArrayLen {
			return false
		}
		return Compatible(a.Elem, b.Elem)
	case Function:
		if a.HasPrototype && b.HasPrototype {
			if len(a.Params) != len(b.Params) {
				return false
			}
			for i := range a.Params {
				if !Compatible(a.Params[i], b.Params[i]) {
					return false
				}
			}
		}
		return Compatible(a.Ret, b.Ret)
	case Struct, Union:
		return a == b
	default:
		return true
	}
}

// Equal is the same relation as Compatible: qualifiers are ignored, an
// incomplete array matches a completed one, and a void pointer matches any
// pointer.
func Equal(a, b *Type) bool { return Compatible(a, b) }

func (t *Type) String() string {
	switch t.Kind {
	case Void:
		return "void"
	case Bool:
		return "_Bool"
	case Char:
		return signedName("char", t.Unsigned)
	case Short:
		return signedName("short", t.Unsigned)
	case Int:
		return signedName("int", t.Unsigned)
	case Long:
		return signedName("long", t.Unsigned)
	case Pointer:
		return t.Elem.String() + "*"
	case Array:
		if t.ArrayLen < 0 {
			return t.Elem.String() + "[]"
		}
		return fmt.Sprintf("%s[%d]", t.Elem.String(), t.ArrayLen)
	case Struct:
		return "struct " + t.Tag
	case Union:
		return "union " + t.Tag
	case Function:
		return "function"
	default:
		return "<error>"
	}
}

func signedName(base string, unsigned bool) string {
	if unsigned {
		return "unsigned " + base
	}
	return base
}

// LookupMember finds a named member of a complete struct/union.
func (t *Type) LookupMember(name string) (Member, bool) {
	return lo.Find(t.Members, func(m Member) bool { return m.Name == name })
}
