// Package ir is the three-address statement form of synthesized method bodies.
package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/funvibe/surrogate/internal/typesystem"
)

// Value is an operand or expression of a statement.
type Value interface {
	Type() typesystem.Type
	String() string
	isValue()
}

// Local is a method-local variable.
type Local struct {
	Name string
	T    typesystem.Type
}

func (l *Local) Type() typesystem.Type { return l.T }
func (l *Local) String() string        { return l.Name }
func (*Local) isValue()                {}

// Constant is a literal of a primitive type, a string, or null.
type Constant struct {
	T    typesystem.Type
	Text string
}

func (c Constant) Type() typesystem.Type { return c.T }
func (c Constant) String() string        { return c.Text }
func (Constant) isValue()                {}

// Null is the null reference.
var Null = Constant{T: typesystem.NullType{}, Text: "null"}

// Int returns an int constant.
func Int(v int) Constant {
	return Constant{T: typesystem.PrimType{Kind: typesystem.Int}, Text: strconv.Itoa(v)}
}

// String returns a string constant.
func String(s string) Constant {
	return Constant{T: typesystem.Ref("java.lang.String"), Text: strconv.Quote(s)}
}

// Zero returns the default value of a primitive type.
func Zero(t typesystem.PrimType) Constant {
	text := "0"
	switch t.Kind {
	case typesystem.Boolean:
		text = "false"
	case typesystem.Long:
		text = "0L"
	case typesystem.Float:
		text = "0.0F"
	case typesystem.Double:
		text = "0.0"
	}
	return Constant{T: t, Text: text}
}

// ThisRef is the implicit receiver parameter, used only in identity statements.
type ThisRef struct {
	T typesystem.RefType
}

func (r ThisRef) Type() typesystem.Type { return r.T }
func (r ThisRef) String() string        { return "@this: " + r.T.String() }
func (ThisRef) isValue()                {}

// ParamRef is a formal parameter, used only in identity statements.
type ParamRef struct {
	Index int
	T     typesystem.Type
}

func (r ParamRef) Type() typesystem.Type { return r.T }
func (r ParamRef) String() string {
	return fmt.Sprintf("@parameter%d: %s", r.Index, r.T)
}
func (ParamRef) isValue() {}

// InstanceFieldRef is base.field.
type InstanceFieldRef struct {
	Base  *Local
	Field typesystem.FieldRef
}

func (r InstanceFieldRef) Type() typesystem.Type { return r.Field.Type }
func (r InstanceFieldRef) String() string        { return r.Base.Name + "." + r.Field.String() }
func (InstanceFieldRef) isValue()                {}

// StaticFieldRef is Class.field.
type StaticFieldRef struct {
	Field typesystem.FieldRef
}

func (r StaticFieldRef) Type() typesystem.Type { return r.Field.Type }
func (r StaticFieldRef) String() string        { return r.Field.String() }
func (StaticFieldRef) isValue()                {}

// ArrayRef is base[index].
type ArrayRef struct {
	Base  *Local
	Index Value
}

func (r ArrayRef) Type() typesystem.Type {
	if a, ok := r.Base.T.(typesystem.ArrayType); ok {
		return a.Elem()
	}
	return typesystem.Ref("java.lang.Object")
}
func (r ArrayRef) String() string { return r.Base.Name + "[" + r.Index.String() + "]" }
func (ArrayRef) isValue()         {}

// NewExpr allocates an object without running a constructor.
type NewExpr struct {
	T typesystem.RefType
}

func (e NewExpr) Type() typesystem.Type { return e.T }
func (e NewExpr) String() string        { return "new " + e.T.String() }
func (NewExpr) isValue()                {}

// NewArrayExpr allocates an array with Size elements in the first dimension.
type NewArrayExpr struct {
	T    typesystem.ArrayType
	Size Value
}

func (e NewArrayExpr) Type() typesystem.Type { return e.T }
func (e NewArrayExpr) String() string {
	return fmt.Sprintf("newarray (%s)[%s]", e.T.Elem(), e.Size)
}
func (NewArrayExpr) isValue() {}

// CastExpr is a checked narrowing of Op to T.
type CastExpr struct {
	T  typesystem.Type
	Op Value
}

func (e CastExpr) Type() typesystem.Type { return e.T }
func (e CastExpr) String() string        { return "(" + e.T.String() + ") " + e.Op.String() }
func (CastExpr) isValue()                {}

// CallKind is the dispatch discipline of a call site.
type CallKind int

const (
	VirtualCall CallKind = iota
	InterfaceCall
	StaticCall
	// SpecialCall invokes constructors and super methods without dispatch.
	SpecialCall
)

func (k CallKind) String() string {
	switch k {
	case VirtualCall:
		return "virtualinvoke"
	case InterfaceCall:
		return "interfaceinvoke"
	case StaticCall:
		return "staticinvoke"
	case SpecialCall:
		return "specialinvoke"
	}
	return "invoke?"
}

// CallKindOf selects the dispatch discipline for calling m through its declaring type.
func CallKindOf(m *typesystem.Method) CallKind {
	switch {
	case m.IsStatic():
		return StaticCall
	case m.IsConstructor():
		return SpecialCall
	case m.Declaring != nil && m.Declaring.IsInterface():
		return InterfaceCall
	}
	return VirtualCall
}

// InvokeExpr is a method call. Base is nil for static calls.
type InvokeExpr struct {
	Kind   CallKind
	Base   *Local
	Method typesystem.MethodRef
	Args   []Value
}

func (e *InvokeExpr) Type() typesystem.Type { return e.Method.Return }
func (e *InvokeExpr) String() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	sb.WriteByte(' ')
	if e.Base != nil {
		sb.WriteString(e.Base.Name)
		sb.WriteByte('.')
	}
	sb.WriteString(e.Method.String())
	sb.WriteByte('(')
	for i, a := range e.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte(')')
	return sb.String()
}
func (*InvokeExpr) isValue() {}
