package typesystem

import (
	"sort"
	"strings"
)

// Modifier is a bit set of access and property flags, laid out like class-file flags.
type Modifier uint32

const (
	Public       Modifier = 0x0001
	Private      Modifier = 0x0002
	Protected    Modifier = 0x0004
	Static       Modifier = 0x0008
	Final        Modifier = 0x0010
	Synchronized Modifier = 0x0020
	Volatile     Modifier = 0x0040
	Transient    Modifier = 0x0080
	Native       Modifier = 0x0100
	Interface    Modifier = 0x0200
	Abstract     Modifier = 0x0400
)

var modifierNames = []struct {
	mod  Modifier
	name string
}{
	{Public, "public"},
	{Private, "private"},
	{Protected, "protected"},
	{Static, "static"},
	{Final, "final"},
	{Synchronized, "synchronized"},
	{Volatile, "volatile"},
	{Transient, "transient"},
	{Native, "native"},
	{Interface, "interface"},
	{Abstract, "abstract"},
}

// Has reports whether every flag in f is set.
func (m Modifier) Has(f Modifier) bool { return m&f == f }

func (m Modifier) String() string {
	var parts []string
	for _, mn := range modifierNames {
		if m.Has(mn.mod) {
			parts = append(parts, mn.name)
		}
	}
	return strings.Join(parts, " ")
}

// ParseModifier maps a keyword to its flag.
func ParseModifier(s string) (Modifier, bool) {
	for _, mn := range modifierNames {
		if mn.name == s {
			return mn.mod, true
		}
	}
	return 0, false
}

// Origin records which partition a class belongs to.
type Origin int

const (
	OriginLibrary Origin = iota
	OriginApplication
	// OriginSurrogate marks concrete stand-ins synthesized for unimplemented library types.
	OriginSurrogate
	// OriginSynthetic marks the synthesized root library classes.
	OriginSynthetic
)

func (o Origin) String() string {
	switch o {
	case OriginLibrary:
		return "library"
	case OriginApplication:
		return "application"
	case OriginSurrogate:
		return "surrogate"
	case OriginSynthetic:
		return "synthetic"
	}
	return "unknown"
}

// Well-known member names.
const (
	ConstructorName       = "<init>"
	StaticInitializerName = "<clinit>"
)

// Class is a class or interface of the universe.
type Class struct {
	Name       string
	Modifiers  Modifier
	Super      string // empty only for the root object type
	Interfaces []string
	Methods    []*Method
	Fields     []*Field
	Origin     Origin
	Phantom    bool
}

// NewClass creates an empty class.
func NewClass(name string, mods Modifier, origin Origin) *Class {
	return &Class{Name: name, Modifiers: mods, Origin: origin}
}

func (c *Class) IsInterface() bool { return c.Modifiers.Has(Interface) }

// IsAbstract is true for abstract classes; interfaces are not counted.
func (c *Class) IsAbstract() bool { return !c.IsInterface() && c.Modifiers.Has(Abstract) }

// IsConcrete is true for classes that can be instantiated.
func (c *Class) IsConcrete() bool { return !c.IsInterface() && !c.Modifiers.Has(Abstract) }

func (c *Class) IsLibrary() bool     { return c.Origin != OriginApplication }
func (c *Class) IsApplication() bool { return c.Origin == OriginApplication }

// Type returns the reference type of the class.
func (c *Class) Type() RefType { return RefType{Class: c.Name} }

// AddMethod attaches m to the class and sets its declaring class.
func (c *Class) AddMethod(m *Method) {
	m.Declaring = c
	c.Methods = append(c.Methods, m)
}

// AddField attaches f to the class and sets its declaring class.
func (c *Class) AddField(f *Field) {
	f.Declaring = c
	c.Fields = append(c.Fields, f)
}

// Method finds a declared method by sub-signature.
func (c *Class) Method(subSig string) *Method {
	for _, m := range c.Methods {
		if m.SubSignature() == subSig {
			return m
		}
	}
	return nil
}

// Field finds a declared field by name.
func (c *Class) Field(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Constructors returns the declared constructors sorted by sub-signature.
func (c *Class) Constructors() []*Method {
	var out []*Method
	for _, m := range c.Methods {
		if m.IsConstructor() {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubSignature() < out[j].SubSignature() })
	return out
}

// Method is a method or constructor declared by a class.
type Method struct {
	Name       string
	Params     []Type
	Return     Type
	Modifiers  Modifier
	Exceptions []string
	Declaring  *Class
	// Declared is false for methods only referenced (phantom) but not present in the class.
	Declared bool
}

// NewMethod creates a declared method not yet attached to a class.
func NewMethod(name string, params []Type, ret Type, mods Modifier) *Method {
	if ret == nil {
		ret = VoidType{}
	}
	return &Method{Name: name, Params: params, Return: ret, Modifiers: mods, Declared: true}
}

// NewDefaultConstructor creates a public no-argument constructor.
func NewDefaultConstructor() *Method {
	return NewMethod(ConstructorName, nil, VoidType{}, Public)
}

func (m *Method) IsStatic() bool            { return m.Modifiers.Has(Static) }
func (m *Method) IsAbstract() bool          { return m.Modifiers.Has(Abstract) }
func (m *Method) IsNative() bool            { return m.Modifiers.Has(Native) }
func (m *Method) IsConstructor() bool       { return m.Name == ConstructorName }
func (m *Method) IsStaticInitializer() bool { return m.Name == StaticInitializerName }

// IsConcrete is true when the method has (or will get) a body.
func (m *Method) IsConcrete() bool {
	if m.Declaring != nil && m.Declaring.Phantom {
		return false
	}
	return !m.IsAbstract() && !m.IsNative()
}

// SubSignature is the declaring-class-independent form "R name(P1,P2)".
func (m *Method) SubSignature() string {
	return SubSignature(m.Return, m.Name, m.Params)
}

// Signature is the fully qualified form "<C: R name(P1,P2)>".
func (m *Method) Signature() string {
	owner := ""
	if m.Declaring != nil {
		owner = m.Declaring.Name
	}
	return "<" + owner + ": " + m.SubSignature() + ">"
}

// Ref returns a reference to the method usable in call sites.
func (m *Method) Ref() MethodRef {
	owner := ""
	if m.Declaring != nil {
		owner = m.Declaring.Name
	}
	return MethodRef{Owner: owner, Name: m.Name, Params: m.Params, Return: m.Return, Static: m.IsStatic()}
}

// Copy returns a detached copy of the method with the given modifiers.
func (m *Method) Copy(mods Modifier) *Method {
	params := append([]Type(nil), m.Params...)
	exc := append([]string(nil), m.Exceptions...)
	return &Method{Name: m.Name, Params: params, Return: m.Return, Modifiers: mods, Exceptions: exc, Declared: true}
}

// Field is a field declared by a class.
type Field struct {
	Name      string
	Type      Type
	Modifiers Modifier
	Declaring *Class
}

func (f *Field) IsStatic() bool { return f.Modifiers.Has(Static) }

// Ref returns a reference to the field usable in field accesses.
func (f *Field) Ref() FieldRef {
	owner := ""
	if f.Declaring != nil {
		owner = f.Declaring.Name
	}
	return FieldRef{Owner: owner, Name: f.Name, Type: f.Type, Static: f.IsStatic()}
}

// MethodRef identifies a method at a call site.
type MethodRef struct {
	Owner  string
	Name   string
	Params []Type
	Return Type
	Static bool
}

func (r MethodRef) SubSignature() string { return SubSignature(r.Return, r.Name, r.Params) }
func (r MethodRef) String() string       { return "<" + r.Owner + ": " + r.SubSignature() + ">" }

// FieldRef identifies a field at an access site.
type FieldRef struct {
	Owner  string
	Name   string
	Type   Type
	Static bool
}

func (r FieldRef) String() string { return "<" + r.Owner + ": " + r.Type.String() + " " + r.Name + ">" }
