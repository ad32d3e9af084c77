package hierarchy

import (
	"fmt"
	"sort"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/typesystem"
)

// Array supertypes besides the root object type.
var arraySupertypes = map[string]bool{
	config.ObjectClass:     true,
	"java.lang.Cloneable":  true,
	"java.io.Serializable": true,
}

// Universe is the in-memory Index over a fully loaded set of classes.
// It is read-only once built; With returns an extended copy.
type Universe struct {
	classes       map[string]*typesystem.Class
	names         []string // sorted
	nameConstants []string
}

var _ Index = (*Universe)(nil)

// NewUniverse indexes classes and checks that every referenced supertype exists.
// nameConstants are the string constants found in the application.
func NewUniverse(classes []*typesystem.Class, nameConstants []string) (*Universe, error) {
	u := &Universe{
		classes:       make(map[string]*typesystem.Class, len(classes)),
		nameConstants: append([]string(nil), nameConstants...),
	}
	for _, c := range classes {
		if err := u.add(c); err != nil {
			return nil, err
		}
	}
	if err := u.check(); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *Universe) add(c *typesystem.Class) error {
	if c.Name == "" {
		return fmt.Errorf("class without name")
	}
	if _, dup := u.classes[c.Name]; dup {
		return fmt.Errorf("duplicate class %s", c.Name)
	}
	u.classes[c.Name] = c
	i := sort.SearchStrings(u.names, c.Name)
	u.names = append(u.names, "")
	copy(u.names[i+1:], u.names[i:])
	u.names[i] = c.Name
	return nil
}

func (u *Universe) check() error {
	for _, name := range u.names {
		c := u.classes[name]
		if c.Super == "" && c.Name != config.ObjectClass {
			return fmt.Errorf("class %s: missing superclass", c.Name)
		}
		if c.Super != "" {
			if _, ok := u.classes[c.Super]; !ok {
				return fmt.Errorf("class %s: superclass %s: %w", c.Name, c.Super, ErrNotFound)
			}
		}
		for _, i := range c.Interfaces {
			iface, ok := u.classes[i]
			if !ok {
				return fmt.Errorf("class %s: interface %s: %w", c.Name, i, ErrNotFound)
			}
			if !iface.IsInterface() {
				return fmt.Errorf("class %s: %s is not an interface", c.Name, i)
			}
		}
		if _, err := u.Superclasses(name); err != nil {
			return err
		}
	}
	return nil
}

// With returns a copy of the universe that also holds classes.
func (u *Universe) With(classes ...*typesystem.Class) (Index, error) {
	cp := &Universe{
		classes:       make(map[string]*typesystem.Class, len(u.classes)+len(classes)),
		names:         append([]string(nil), u.names...),
		nameConstants: u.nameConstants,
	}
	for k, v := range u.classes {
		cp.classes[k] = v
	}
	for _, c := range classes {
		if err := cp.add(c); err != nil {
			return nil, err
		}
	}
	if err := cp.check(); err != nil {
		return nil, err
	}
	return cp, nil
}

// Classes returns every class in name order.
func (u *Universe) Classes() []*typesystem.Class {
	out := make([]*typesystem.Class, 0, len(u.names))
	for _, n := range u.names {
		out = append(out, u.classes[n])
	}
	return out
}

func (u *Universe) Class(name string) (*typesystem.Class, bool) {
	c, ok := u.classes[name]
	return c, ok
}

func (u *Universe) lookup(name string) (*typesystem.Class, error) {
	c, ok := u.classes[name]
	if !ok {
		return nil, fmt.Errorf("class %s: %w", name, ErrNotFound)
	}
	return c, nil
}

func (u *Universe) IsInterface(name string) bool {
	c, ok := u.classes[name]
	return ok && c.IsInterface()
}

func (u *Universe) IsAbstract(name string) bool {
	c, ok := u.classes[name]
	return ok && c.IsAbstract()
}

func (u *Universe) IsApplicationClass(name string) bool {
	c, ok := u.classes[name]
	return ok && c.IsApplication()
}

func (u *Universe) IsApplicationMethod(signature string) bool {
	sig, err := typesystem.ParseSignature(signature)
	if err != nil {
		return false
	}
	c, ok := u.classes[sig.Owner]
	return ok && c.IsApplication() && c.Method(sig.SubSignature()) != nil
}

func (u *Universe) HasConcreteImplementation(name string) bool {
	target, ok := u.classes[name]
	if !ok {
		return false
	}
	if target.IsConcrete() {
		return true
	}
	for _, n := range u.names {
		c := u.classes[n]
		if n == name || !c.IsLibrary() || !c.IsConcrete() {
			continue
		}
		if u.classSubtype(n, name) {
			return true
		}
	}
	return false
}

// Superclasses returns the superclass chain of name, closest first.
func (u *Universe) Superclasses(name string) ([]*typesystem.Class, error) {
	c, err := u.lookup(name)
	if err != nil {
		return nil, err
	}
	var out []*typesystem.Class
	seen := map[string]bool{name: true}
	for c.Super != "" {
		if seen[c.Super] {
			return nil, fmt.Errorf("class %s: cyclic superclass chain through %s", name, c.Super)
		}
		seen[c.Super] = true
		c, err = u.lookup(c.Super)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// SuperinterfacesOf returns, for an interface, the interface itself followed by
// its transitive superinterfaces in breadth-first declaration order. For a class
// it returns every interface declared by the class or its superclasses.
func (u *Universe) SuperinterfacesOf(name string) ([]*typesystem.Class, error) {
	c, err := u.lookup(name)
	if err != nil {
		return nil, err
	}
	var queue []string
	if c.IsInterface() {
		queue = append(queue, name)
	} else {
		supers, err := u.Superclasses(name)
		if err != nil {
			return nil, err
		}
		queue = append(queue, c.Interfaces...)
		for _, s := range supers {
			queue = append(queue, s.Interfaces...)
		}
	}
	var out []*typesystem.Class
	seen := make(map[string]bool)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if seen[n] {
			continue
		}
		seen[n] = true
		iface, err := u.lookup(n)
		if err != nil {
			return nil, err
		}
		out = append(out, iface)
		queue = append(queue, iface.Interfaces...)
	}
	return out, nil
}

// supertypes returns the superclasses followed by all reachable interfaces.
func (u *Universe) supertypes(name string) []*typesystem.Class {
	supers, err := u.Superclasses(name)
	if err != nil {
		return nil
	}
	ifaces, err := u.SuperinterfacesOf(name)
	if err != nil {
		return supers
	}
	if c := u.classes[name]; c.IsInterface() {
		ifaces = ifaces[1:]
		if obj, ok := u.classes[config.ObjectClass]; ok && len(supers) == 0 {
			supers = append(supers, obj)
		}
	}
	return append(supers, ifaces...)
}

func (u *Universe) classSubtype(sub, sup string) bool {
	if sub == sup || sup == config.ObjectClass {
		return true
	}
	for _, s := range u.supertypes(sub) {
		if s.Name == sup {
			return true
		}
	}
	return false
}

func (u *Universe) IsSubtype(sub, sup typesystem.Type) bool {
	if typesystem.Equal(sub, sup) {
		return true
	}
	switch s := sub.(type) {
	case typesystem.NullType:
		return typesystem.IsRefLike(sup)
	case typesystem.RefType:
		r, ok := sup.(typesystem.RefType)
		return ok && u.classSubtype(s.Class, r.Class)
	case typesystem.ArrayType:
		switch p := sup.(type) {
		case typesystem.RefType:
			return arraySupertypes[p.Class]
		case typesystem.ArrayType:
			if s.Dims == p.Dims {
				return typesystem.IsRefLike(s.Base) && typesystem.IsRefLike(p.Base) && u.IsSubtype(s.Base, p.Base)
			}
			if s.Dims > p.Dims {
				r, ok := p.Base.(typesystem.RefType)
				return ok && arraySupertypes[r.Class]
			}
		}
	}
	return false
}

// ResolveMethod looks the method up in its owner, then the superclasses, then the interfaces.
func (u *Universe) ResolveMethod(signature string) (*typesystem.Method, error) {
	sig, err := typesystem.ParseSignature(signature)
	if err != nil {
		return nil, err
	}
	c, err := u.lookup(sig.Owner)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", signature, err)
	}
	sub := sig.SubSignature()
	if m := c.Method(sub); m != nil {
		return m, nil
	}
	for _, s := range u.supertypes(c.Name) {
		if m := s.Method(sub); m != nil {
			return m, nil
		}
	}
	return nil, fmt.Errorf("method %s: %w", signature, ErrNotFound)
}

func (u *Universe) DeclaredMethods(name string) ([]*typesystem.Method, error) {
	c, err := u.lookup(name)
	if err != nil {
		return nil, err
	}
	return append([]*typesystem.Method(nil), c.Methods...), nil
}

func (u *Universe) HasDefaultConstructor(name string) bool {
	c, ok := u.classes[name]
	return ok && c.Method(config.DefaultConstructorSub) != nil
}

func (u *Universe) DefaultConstructorOf(name string) (*typesystem.Method, error) {
	c, err := u.lookup(name)
	if err != nil {
		return nil, err
	}
	if m := c.Method(config.DefaultConstructorSub); m != nil {
		return m, nil
	}
	return nil, fmt.Errorf("default constructor of %s: %w", name, ErrNotFound)
}

func overridable(m *typesystem.Method) bool {
	return !m.IsStatic() && !m.IsConstructor() && !m.IsStaticInitializer() &&
		!m.Modifiers.Has(typesystem.Private)
}

func (u *Universe) LibraryOverridesOfApplicationMethods() []*typesystem.Method {
	var out []*typesystem.Method
	seen := make(map[string]bool)
	for _, n := range u.names {
		c := u.classes[n]
		if !c.IsApplication() {
			continue
		}
		supers := u.supertypes(n)
		for _, m := range c.Methods {
			if !overridable(m) {
				continue
			}
			sub := m.SubSignature()
			for _, s := range supers {
				if !s.IsLibrary() {
					continue
				}
				lm := s.Method(sub)
				if lm == nil || !overridable(lm) || seen[lm.Signature()] {
					continue
				}
				seen[lm.Signature()] = true
				out = append(out, lm)
			}
		}
	}
	return out
}

func (u *Universe) ConcreteLibraryTypes() []*typesystem.Class {
	var out []*typesystem.Class
	for _, n := range u.names {
		c := u.classes[n]
		if (c.Origin == typesystem.OriginLibrary || c.Origin == typesystem.OriginSurrogate) &&
			c.IsConcrete() && !c.Phantom {
			out = append(out, c)
		}
	}
	return out
}

func (u *Universe) ArrayTypesAccessibleToLibrary() []typesystem.ArrayType {
	seen := make(map[string]typesystem.ArrayType)
	note := func(t typesystem.Type) {
		if a, ok := t.(typesystem.ArrayType); ok {
			seen[a.String()] = a
		}
	}
	for _, n := range u.names {
		c := u.classes[n]
		if c.Origin != typesystem.OriginLibrary {
			continue
		}
		for _, m := range c.Methods {
			if m.Modifiers.Has(typesystem.Private) {
				continue
			}
			note(m.Return)
			for _, p := range m.Params {
				note(p)
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]typesystem.ArrayType, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out
}

func (u *Universe) LibraryClasses() []*typesystem.Class {
	var out []*typesystem.Class
	for _, n := range u.names {
		if c := u.classes[n]; c.Origin == typesystem.OriginLibrary {
			out = append(out, c)
		}
	}
	return out
}

// InterfacesWithoutAbstractMethods returns the library interfaces whose instance
// methods all have bodies. Surrogates of such interfaces stub nothing, which
// usually means the universe omitted the abstract modifier.
func (u *Universe) InterfacesWithoutAbstractMethods() []*typesystem.Class {
	var out []*typesystem.Class
	for _, c := range u.LibraryClasses() {
		if !c.IsInterface() || c.Phantom {
			continue
		}
		instance, abstract := 0, 0
		for _, m := range c.Methods {
			if m.IsStatic() || m.IsStaticInitializer() {
				continue
			}
			instance++
			if m.IsAbstract() {
				abstract++
			}
		}
		if instance > 0 && abstract == 0 {
			out = append(out, c)
		}
	}
	return out
}

func (u *Universe) LibraryInterfacesNotImplemented() []*typesystem.Class {
	var out []*typesystem.Class
	for _, c := range u.LibraryClasses() {
		if c.IsInterface() && !c.Phantom && !u.HasConcreteImplementation(c.Name) {
			out = append(out, c)
		}
	}
	return out
}

func (u *Universe) AbstractLibraryClassesNotImplemented() []*typesystem.Class {
	var out []*typesystem.Class
	for _, c := range u.LibraryClasses() {
		if c.IsAbstract() && !c.Phantom && !u.HasConcreteImplementation(c.Name) {
			out = append(out, c)
		}
	}
	return out
}

func (u *Universe) ApplicationClassNameConstants() []*typesystem.Class {
	var out []*typesystem.Class
	seen := make(map[string]bool)
	for _, n := range u.nameConstants {
		c, ok := u.classes[n]
		if !ok || !c.IsApplication() || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, c)
	}
	return out
}
