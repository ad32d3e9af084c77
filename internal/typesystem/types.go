// Package typesystem models the class-based type universe the surrogate is built for:
// primitive, reference, array and void types, plus classes with their methods and fields.
package typesystem

import (
	"fmt"
	"strings"
)

// Type is the interface for all value types in the universe.
type Type interface {
	String() string
	isType()
}

// PrimKind enumerates the primitive types.
type PrimKind int

const (
	Boolean PrimKind = iota
	Byte
	Char
	Short
	Int
	Long
	Float
	Double
)

var primNames = map[PrimKind]string{
	Boolean: "boolean",
	Byte:    "byte",
	Char:    "char",
	Short:   "short",
	Int:     "int",
	Long:    "long",
	Float:   "float",
	Double:  "double",
}

// PrimType is a primitive (non-reference) type.
type PrimType struct {
	Kind PrimKind
}

func (t PrimType) String() string { return primNames[t.Kind] }
func (PrimType) isType()          {}

// VoidType is the return type of methods that produce no value.
type VoidType struct{}

func (VoidType) String() string { return "void" }
func (VoidType) isType()        {}

// RefType is a reference to a named class or interface.
type RefType struct {
	Class string
}

func (t RefType) String() string { return t.Class }
func (RefType) isType()          {}

// ArrayType is an array of Base with Dims dimensions. Base is never itself an ArrayType.
type ArrayType struct {
	Base Type
	Dims int
}

func (t ArrayType) String() string {
	return t.Base.String() + strings.Repeat("[]", t.Dims)
}
func (ArrayType) isType() {}

// Elem returns the element type (one dimension less).
func (t ArrayType) Elem() Type {
	if t.Dims == 1 {
		return t.Base
	}
	return ArrayType{Base: t.Base, Dims: t.Dims - 1}
}

// NullType is the type of the null constant.
type NullType struct{}

func (NullType) String() string { return "null_type" }
func (NullType) isType()        {}

// Convenience constructors.
func Ref(class string) RefType { return RefType{Class: class} }

func ArrayOf(elem Type, dims int) ArrayType {
	if a, ok := elem.(ArrayType); ok {
		return ArrayType{Base: a.Base, Dims: a.Dims + dims}
	}
	return ArrayType{Base: elem, Dims: dims}
}

// IsRefLike reports whether values of t are object references (classes, arrays, null).
func IsRefLike(t Type) bool {
	switch t.(type) {
	case RefType, ArrayType, NullType:
		return true
	}
	return false
}

// IsPrimitive reports whether t is a primitive type.
func IsPrimitive(t Type) bool {
	_, ok := t.(PrimType)
	return ok
}

// BaseClass returns the class name at the bottom of a reference or array type,
// or "" when the base is primitive.
func BaseClass(t Type) string {
	switch typ := t.(type) {
	case RefType:
		return typ.Class
	case ArrayType:
		return BaseClass(typ.Base)
	}
	return ""
}

// Equal compares two types structurally.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

// ParseType parses a source-level type name such as "int", "java.lang.String"
// or "java.lang.Object[][]".
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty type name")
	}
	dims := 0
	for strings.HasSuffix(s, "[]") {
		dims++
		s = strings.TrimSpace(strings.TrimSuffix(s, "[]"))
	}
	if s == "" {
		return nil, fmt.Errorf("array type without element type")
	}
	var base Type
	switch s {
	case "void":
		if dims > 0 {
			return nil, fmt.Errorf("array of void")
		}
		return VoidType{}, nil
	default:
		base = nil
		for k, name := range primNames {
			if name == s {
				base = PrimType{Kind: k}
				break
			}
		}
		if base == nil {
			if strings.ContainsAny(s, " ()<>,;") {
				return nil, fmt.Errorf("invalid type name %q", s)
			}
			base = RefType{Class: s}
		}
	}
	if dims > 0 {
		return ArrayType{Base: base, Dims: dims}, nil
	}
	return base, nil
}

// MustParseType is ParseType for constant inputs; it panics on malformed names.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}
