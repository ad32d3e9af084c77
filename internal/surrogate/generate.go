// Package surrogate synthesizes concrete stand-ins for library interfaces and
// abstract classes that have no concrete library implementation.
package surrogate

import (
	"fmt"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/hierarchy"
	"github.com/funvibe/surrogate/internal/typesystem"
)

// Counters counts generated entities for reporting.
type Counters struct {
	Classes int
	Methods int
}

// Add returns the sum of two counters.
func (c Counters) Add(o Counters) Counters {
	return Counters{Classes: c.Classes + o.Classes, Methods: c.Methods + o.Methods}
}

func (c Counters) String() string {
	return fmt.Sprintf("%d classes, %d methods", c.Classes, c.Methods)
}

// Options controls surrogate naming.
type Options struct {
	// Suffix is appended to the source type name.
	Suffix string
}

// Result is the immutable outcome of Generate.
type Result struct {
	surrogates []*typesystem.Class
	bySource   map[string]*typesystem.Class
	counters   Counters
	index      hierarchy.Index
}

// Surrogates returns the generated classes in generation order.
func (r *Result) Surrogates() []*typesystem.Class {
	return append([]*typesystem.Class(nil), r.surrogates...)
}

// For returns the surrogate generated for the named interface or abstract class.
func (r *Result) For(source string) (*typesystem.Class, bool) {
	c, ok := r.bySource[source]
	return c, ok
}

// Counters returns the generated class and method counts.
func (r *Result) Counters() Counters { return r.counters }

// Index returns the hierarchy extended with the surrogates.
func (r *Result) Index() hierarchy.Index { return r.index }

// generator carries the state of one Generate call.
type generator struct {
	idx      hierarchy.Index
	suffix   string
	counters Counters
}

// Generate builds one surrogate for every unimplemented library interface and
// abstract class of idx. Identical inputs produce identical names, members and counts.
func Generate(idx hierarchy.Index, opts Options) (*Result, error) {
	g := &generator{idx: idx, suffix: opts.Suffix}
	if g.suffix == "" {
		g.suffix = config.DefaultSurrogateSuffix
	}

	res := &Result{bySource: make(map[string]*typesystem.Class)}
	add := func(src *typesystem.Class, c *typesystem.Class) {
		res.surrogates = append(res.surrogates, c)
		res.bySource[src.Name] = c
	}

	for _, iface := range idx.LibraryInterfacesNotImplemented() {
		c, err := g.forInterface(iface)
		if err != nil {
			return nil, err
		}
		add(iface, c)
	}
	for _, abs := range idx.AbstractLibraryClassesNotImplemented() {
		c, err := g.forAbstractClass(abs)
		if err != nil {
			return nil, err
		}
		add(abs, c)
	}

	extended, err := idx.With(res.surrogates...)
	if err != nil {
		return nil, fmt.Errorf("adding surrogates: %w", err)
	}
	res.index = extended
	res.counters = g.counters
	return res, nil
}

func (g *generator) newClass(src *typesystem.Class) (*typesystem.Class, error) {
	name := src.Name + g.suffix
	if _, taken := g.idx.Class(name); taken {
		return nil, fmt.Errorf("surrogate name %s for %s is already taken", name, src.Name)
	}
	g.counters.Classes++
	return typesystem.NewClass(name, typesystem.Public, typesystem.OriginSurrogate), nil
}

// forInterface implements iface with stubs for every abstract method of it and
// its superinterfaces, collapsed by sub-signature.
func (g *generator) forInterface(iface *typesystem.Class) (*typesystem.Class, error) {
	supers, err := g.idx.SuperinterfacesOf(iface.Name)
	if err != nil {
		return nil, fmt.Errorf("surrogate for %s: %w", iface.Name, err)
	}
	c, err := g.newClass(iface)
	if err != nil {
		return nil, err
	}
	c.Super = config.ObjectClass
	c.Interfaces = []string{iface.Name}

	seen := make(map[string]bool)
	for _, s := range supers {
		for _, m := range s.Methods {
			if !stubbable(m) || seen[m.SubSignature()] {
				continue
			}
			seen[m.SubSignature()] = true
			g.addStub(c, m)
		}
	}
	g.addDefaultConstructor(c)
	return c, nil
}

// forAbstractClass extends abs with stubs for the abstract methods that no
// closer ancestor concretizes.
func (g *generator) forAbstractClass(abs *typesystem.Class) (*typesystem.Class, error) {
	chain, err := g.idx.Superclasses(abs.Name)
	if err != nil {
		return nil, fmt.Errorf("surrogate for %s: %w", abs.Name, err)
	}
	ifaces, err := g.idx.SuperinterfacesOf(abs.Name)
	if err != nil {
		return nil, fmt.Errorf("surrogate for %s: %w", abs.Name, err)
	}
	c, err := g.newClass(abs)
	if err != nil {
		return nil, err
	}
	c.Super = abs.Name

	// The closest declaration of a sub-signature decides whether it needs a stub.
	decided := make(map[string]bool)
	visit := func(owner *typesystem.Class) {
		for _, m := range owner.Methods {
			if m.IsStatic() || m.IsConstructor() || m.IsStaticInitializer() || m.Modifiers.Has(typesystem.Private) {
				continue
			}
			sub := m.SubSignature()
			if decided[sub] {
				continue
			}
			decided[sub] = true
			if m.IsAbstract() {
				g.addStub(c, m)
			}
		}
	}
	visit(abs)
	for _, s := range chain {
		visit(s)
	}
	for _, s := range ifaces {
		visit(s)
	}
	g.addDefaultConstructor(c)
	return c, nil
}

// stubbable selects the interface methods a surrogate must implement.
func stubbable(m *typesystem.Method) bool {
	return m.IsAbstract() && !m.IsStatic() && !m.IsStaticInitializer() && !m.IsConstructor()
}

func (g *generator) addStub(c *typesystem.Class, m *typesystem.Method) {
	mods := m.Modifiers &^ (typesystem.Abstract | typesystem.Native)
	c.AddMethod(m.Copy(mods))
	g.counters.Methods++
}

// addDefaultConstructor makes an existing no-argument constructor public or adds one.
func (g *generator) addDefaultConstructor(c *typesystem.Class) {
	if m := c.Method(config.DefaultConstructorSub); m != nil {
		m.Modifiers = (m.Modifiers &^ (typesystem.Private | typesystem.Protected)) | typesystem.Public
		return
	}
	c.AddMethod(typesystem.NewDefaultConstructor())
	g.counters.Methods++
}
