package synth

import (
	"fmt"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/ir"
	"github.com/funvibe/surrogate/internal/typesystem"
)

// rootClasses declares the abstract library class holding the sentinels and
// the concrete library class whose single instance runs doItAll.
func (s *Synthesizer) rootClasses() (abstract, library *typesystem.Class) {
	object := typesystem.Ref(config.ObjectClass)
	void := typesystem.VoidType{}

	abstract = typesystem.NewClass(s.opts.AbstractLibraryClass, typesystem.Public|typesystem.Abstract, typesystem.OriginSynthetic)
	abstract.Super = config.ObjectClass
	abstract.AddField(&typesystem.Field{Name: config.LibraryPointsToField, Type: object, Modifiers: typesystem.Public})
	abstract.AddField(&typesystem.Field{Name: config.FinalizePointsToField, Type: object, Modifiers: typesystem.Public})
	abstract.AddField(&typesystem.Field{Name: config.InstanceField, Type: abstract.Type(), Modifiers: typesystem.Public | typesystem.Static})
	abstract.AddMethod(typesystem.NewDefaultConstructor())
	abstract.AddMethod(typesystem.NewMethod(config.DoItAllMethod, nil, void, typesystem.Public|typesystem.Abstract))

	library = typesystem.NewClass(s.opts.LibraryClass, typesystem.Public, typesystem.OriginSynthetic)
	library.Super = abstract.Name
	library.AddMethod(typesystem.NewDefaultConstructor())
	library.AddMethod(typesystem.NewMethod(typesystem.StaticInitializerName, nil, void, typesystem.Public|typesystem.Static))
	library.AddMethod(typesystem.NewMethod(config.DoItAllMethod, nil, void, typesystem.Public))
	return abstract, library
}

// rootUnits builds the units of the two root classes, the library's doItAll included.
func (s *Synthesizer) rootUnits() ([]*ir.Unit, error) {
	absUnit := ir.NewUnit(s.abstract)
	ctor, err := s.chainedConstructor(s.abstract, config.ObjectClass)
	if err != nil {
		return nil, err
	}
	absUnit.Add(ctor)

	libUnit := ir.NewUnit(s.library)
	ctor, err = s.chainedConstructor(s.library, s.abstract.Name)
	if err != nil {
		return nil, err
	}
	libUnit.Add(ctor)
	libUnit.Add(s.libraryClinit())

	doItAll, err := s.doItAll(s.library.Method(doItAllSub))
	if err != nil {
		return nil, fmt.Errorf("building %s.%s: %w", s.library.Name, config.DoItAllMethod, err)
	}
	libUnit.Add(doItAll)
	return []*ir.Unit{absUnit, libUnit}, nil
}

// chainedConstructor is a default constructor that only calls the default
// constructor of super.
func (s *Synthesizer) chainedConstructor(c *typesystem.Class, super string) (*ir.Body, error) {
	m := c.Method(config.DefaultConstructorSub)
	superInit, err := s.method("<" + super + ": " + config.DefaultConstructorSub + ">")
	if err != nil {
		return nil, fmt.Errorf("constructor of %s: %w", c.Name, err)
	}
	b := ir.NewBody(m, s.sentinels)
	b.AddIdentities()
	b.Invoke(&ir.InvokeExpr{Kind: ir.SpecialCall, Base: b.This(), Method: superInit})
	b.Return(nil)
	return b, nil
}

// libraryClinit creates the single library instance and publishes it.
func (s *Synthesizer) libraryClinit() *ir.Body {
	b := ir.NewBody(s.library.Method("void "+typesystem.StaticInitializerName+"()"), s.sentinels)
	r := b.Bind(ir.NewExpr{T: s.library.Type()})
	ctor := s.library.Method(config.DefaultConstructorSub)
	b.Invoke(&ir.InvokeExpr{Kind: ir.SpecialCall, Base: r, Method: ctor.Ref()})
	instance := s.abstract.Field(config.InstanceField)
	b.Assign(ir.StaticFieldRef{Field: instance.Ref()}, r)
	b.Return(nil)
	return b
}
