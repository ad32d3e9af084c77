package synth

import (
	"fmt"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/ir"
	"github.com/funvibe/surrogate/internal/typesystem"
)

// libraryUnit replaces the body of every concrete method of c.
func (s *Synthesizer) libraryUnit(c *typesystem.Class) (*ir.Unit, error) {
	u := ir.NewUnit(c)
	for _, m := range c.Methods {
		if !m.IsConcrete() {
			continue
		}
		b, err := s.libraryBody(m)
		if err != nil {
			return nil, fmt.Errorf("body of %s: %w", m.Signature(), err)
		}
		u.Add(b)
		s.stats.LibraryBodies++
	}
	return u, nil
}

// libraryBody models m conservatively: everything it receives escapes into
// LPT, it runs doItAll and returns a typed view of LPT.
func (s *Synthesizer) libraryBody(m *typesystem.Method) (*ir.Body, error) {
	b := ir.NewBody(m, s.sentinels)
	b.AddIdentities()

	switch {
	case m.IsConstructor():
		if err := s.constructorPrologue(b); err != nil {
			return nil, err
		}
	case m.IsStaticInitializer():
		if err := s.assignFields(b, nil, true); err != nil {
			return nil, err
		}
	}

	if this := b.This(); this != nil {
		b.StoreLPT(this)
	}
	for _, p := range b.Params() {
		if typesystem.IsRefLike(p.T) {
			b.StoreLPT(p)
		}
	}
	b.Invoke(&ir.InvokeExpr{
		Kind:   ir.VirtualCall,
		Base:   b.Holder(),
		Method: s.abstract.Method(doItAllSub).Ref(),
	})

	if _, void := m.Return.(typesystem.VoidType); void {
		b.Return(nil)
		return b, nil
	}
	ret, err := s.view(b, m.Return)
	if err != nil {
		return nil, err
	}
	b.Return(ret)
	return b, nil
}

// constructorPrologue chains to the superclass constructor and initializes
// the instance fields. The root object constructor records the object as finalizable.
func (s *Synthesizer) constructorPrologue(b *ir.Body) error {
	c := b.Method.Declaring
	if c.Name == config.ObjectClass {
		b.StoreFPT(b.This())
		return nil
	}
	if super, ok := s.idx.Class(c.Super); ok {
		if ctor := constructorOf(super); ctor != nil {
			args, err := s.views(b, ctor.Params)
			if err != nil {
				return err
			}
			b.Invoke(&ir.InvokeExpr{Kind: ir.SpecialCall, Base: b.This(), Method: ctor.Ref(), Args: args})
		}
	}
	return s.assignFields(b, b.This(), false)
}

// assignFields stores a typed view into every declared field of the given
// kind. base is nil for static fields.
func (s *Synthesizer) assignFields(b *ir.Body, base *ir.Local, static bool) error {
	for _, f := range b.Method.Declaring.Fields {
		if f.IsStatic() != static {
			continue
		}
		v, err := s.view(b, f.Type)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		if static {
			b.Assign(ir.StaticFieldRef{Field: f.Ref()}, v)
		} else {
			b.Assign(ir.InstanceFieldRef{Base: base, Field: f.Ref()}, v)
		}
	}
	return nil
}

// constructorOf picks the default constructor of c, or its first declared
// constructor when there is none.
func constructorOf(c *typesystem.Class) *typesystem.Method {
	if ctor := c.Method(config.DefaultConstructorSub); ctor != nil {
		return ctor
	}
	if ctors := c.Constructors(); len(ctors) > 0 {
		return ctors[0]
	}
	return nil
}
