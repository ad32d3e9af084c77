package synth

import (
	"fmt"
	"sort"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/hierarchy"
	"github.com/funvibe/surrogate/internal/ir"
	"github.com/funvibe/surrogate/internal/typesystem"
)

// arrayLength is the length of every array the library allocates.
const arrayLength = 1

// doItAll builds the body that creates every object the library can create,
// calls every application callback, writes into arrays and throws.
func (s *Synthesizer) doItAll(m *typesystem.Method) (*ir.Body, error) {
	b := ir.NewBody(m, ir.Sentinels{Holder: s.abstract.Name, ViaThis: true})
	b.AddIdentities()

	stages := []struct {
		name string
		run  func(*ir.Body) error
	}{
		{"creating objects", s.createObjects},
		{"calling finalize", s.callFinalize},
		{"calling application callbacks", s.callCallbacks},
		{"writing arrays", s.writeArrays},
		{"instantiating reflectively", s.instantiateReflectively},
		{"throwing", s.throwThrowables},
	}
	for _, st := range stages {
		if err := st.run(b); err != nil {
			return nil, fmt.Errorf("%s: %w", st.name, err)
		}
	}
	return b, nil
}

// creator allocates each type at most once per body.
type creator struct {
	s       *Synthesizer
	b       *ir.Body
	created map[string]bool
	ctors   map[string]bool
}

// class creates c through constructorOf(c).
func (cr *creator) class(c *typesystem.Class) error {
	if cr.created[c.Name] {
		return nil
	}
	cr.created[c.Name] = true
	return cr.with(c, constructorOf(c))
}

// constructor creates the declaring class of ctor through ctor.
func (cr *creator) constructor(ctor *typesystem.Method) error {
	sig := ctor.Signature()
	if cr.ctors[sig] {
		return nil
	}
	cr.ctors[sig] = true
	return cr.with(ctor.Declaring, ctor)
}

func (cr *creator) with(c *typesystem.Class, ctor *typesystem.Method) error {
	obj := cr.b.Bind(ir.NewExpr{T: c.Type()})
	if ctor != nil {
		args, err := cr.s.views(cr.b, ctor.Params)
		if err != nil {
			return fmt.Errorf("constructing %s: %w", c.Name, err)
		}
		cr.b.Invoke(&ir.InvokeExpr{Kind: ir.SpecialCall, Base: obj, Method: ctor.Ref(), Args: args})
	}
	cr.b.StoreLPT(obj)
	cr.s.stats.Creations++
	return nil
}

func (cr *creator) array(t typesystem.ArrayType) {
	key := t.String()
	if cr.created[key] {
		return
	}
	cr.created[key] = true
	arr := cr.b.Bind(ir.NewArrayExpr{T: t, Size: ir.Int(arrayLength)})
	cr.b.StoreLPT(arr)
	cr.s.stats.Creations++
}

func (s *Synthesizer) createObjects(b *ir.Body) error {
	cr := &creator{s: s, b: b, created: make(map[string]bool), ctors: make(map[string]bool)}

	for _, c := range s.idx.ConcreteLibraryTypes() {
		if err := cr.class(c); err != nil {
			return err
		}
	}
	for _, c := range s.idx.ApplicationClassNameConstants() {
		if !c.IsConcrete() {
			continue
		}
		if err := cr.class(c); err != nil {
			return err
		}
	}

	if s.opts.Reflection {
		classes, err := s.reflectiveClasses(s.facts.ClassNewInstances())
		if err != nil {
			return fmt.Errorf("Class.newInstance: %w", err)
		}
		for _, c := range classes {
			if err := cr.class(c); err != nil {
				return err
			}
		}
	}
	if s.opts.Reflection && s.opts.ReflectiveConstructors {
		ctors, err := s.reflectiveConstructors()
		if err != nil {
			return fmt.Errorf("Constructor.newInstance: %w", err)
		}
		for _, ctor := range ctors {
			if err := cr.constructor(ctor); err != nil {
				return err
			}
		}
	}

	arrays, err := s.arrayTypes()
	if err != nil {
		return err
	}
	for _, t := range arrays {
		cr.array(t)
	}

	if s.opts.Reflection {
		classes, err := s.reflectiveClasses(s.facts.ClassForNames())
		if err != nil {
			return fmt.Errorf("Class.forName: %w", err)
		}
		for _, c := range classes {
			if err := cr.class(c); err != nil {
				return err
			}
		}
	}

	for _, name := range s.opts.DynamicClasses {
		c, ok := s.idx.Class(name)
		if !ok {
			return fmt.Errorf("dynamic class %s: %w", name, hierarchy.ErrNotFound)
		}
		if !c.IsConcrete() {
			return fmt.Errorf("%w: dynamic class %s is not concrete", config.ErrInvalid, name)
		}
		if err := cr.class(c); err != nil {
			return err
		}
	}
	return nil
}

// reflectiveClasses keeps the concrete application classes among names.
func (s *Synthesizer) reflectiveClasses(names []string) ([]*typesystem.Class, error) {
	var out []*typesystem.Class
	for _, name := range names {
		if _, err := typesystem.ParseType(name); err != nil {
			return nil, fmt.Errorf("class %q: %w", name, err)
		}
		if !s.idx.IsApplicationClass(name) {
			continue
		}
		c, _ := s.idx.Class(name)
		if c.IsConcrete() {
			out = append(out, c)
		}
	}
	return out, nil
}

// reflectiveConstructors resolves the application constructors of concrete classes.
func (s *Synthesizer) reflectiveConstructors() ([]*typesystem.Method, error) {
	var out []*typesystem.Method
	for _, sig := range s.facts.ConstructorNewInstances() {
		parsed, err := typesystem.ParseSignature(sig)
		if err != nil {
			return nil, err
		}
		if parsed.Name != typesystem.ConstructorName {
			return nil, fmt.Errorf("%s is not a constructor", sig)
		}
		if !s.idx.IsApplicationMethod(sig) {
			continue
		}
		c, _ := s.idx.Class(parsed.Owner)
		if !c.IsConcrete() {
			continue
		}
		out = append(out, c.Method(parsed.SubSignature()))
	}
	return out, nil
}

// arrayTypes merges the library's array types with the reflectively created
// arrays of application types, sorted by name.
func (s *Synthesizer) arrayTypes() ([]typesystem.ArrayType, error) {
	byName := make(map[string]typesystem.ArrayType)
	for _, t := range s.idx.ArrayTypesAccessibleToLibrary() {
		byName[t.String()] = t
	}
	if s.opts.Reflection {
		for _, name := range s.facts.ArrayNewInstances() {
			t, err := typesystem.ParseType(name)
			if err != nil {
				return nil, fmt.Errorf("Array.newInstance: %w", err)
			}
			arr, ok := t.(typesystem.ArrayType)
			if !ok {
				return nil, fmt.Errorf("Array.newInstance: %s is not an array type", name)
			}
			if s.idx.IsApplicationClass(typesystem.BaseClass(arr)) {
				byName[arr.String()] = arr
			}
		}
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]typesystem.ArrayType, 0, len(names))
	for _, n := range names {
		if err := s.resolvable(byName[n]); err != nil {
			return nil, err
		}
		out = append(out, byName[n])
	}
	return out, nil
}

func (s *Synthesizer) callFinalize(b *ir.Body) error {
	finalize, err := s.method(config.FinalizeSig)
	if err != nil {
		return err
	}
	b.Invoke(&ir.InvokeExpr{Kind: ir.VirtualCall, Base: b.FPT(), Method: finalize})
	return nil
}

// callbacks returns the library methods the application overrides followed by
// the application methods invoked reflectively, without duplicates.
func (s *Synthesizer) callbacks() ([]*typesystem.Method, error) {
	var out []*typesystem.Method
	seen := make(map[string]bool)
	add := func(m *typesystem.Method) {
		if seen[m.Signature()] {
			return
		}
		seen[m.Signature()] = true
		out = append(out, m)
	}
	for _, m := range s.idx.LibraryOverridesOfApplicationMethods() {
		add(m)
	}
	if s.opts.Reflection {
		for _, sig := range s.facts.MethodInvokes() {
			if _, err := typesystem.ParseSignature(sig); err != nil {
				return nil, fmt.Errorf("Method.invoke: %w", err)
			}
			if !s.idx.IsApplicationMethod(sig) {
				continue
			}
			m, err := s.idx.ResolveMethod(sig)
			if err != nil {
				return nil, fmt.Errorf("Method.invoke: %w", err)
			}
			if m.IsConstructor() || m.IsStaticInitializer() {
				continue
			}
			add(m)
		}
	}
	if !s.opts.Android {
		return out, nil
	}
	kept := out[:0]
	for _, m := range out {
		if !m.Declared || m.Declaring.Phantom {
			continue
		}
		if s.opts.IsLifecycle != nil && s.opts.IsLifecycle(m.Declaring.Name, m.SubSignature()) {
			continue
		}
		kept = append(kept, m)
	}
	return kept, nil
}

func (s *Synthesizer) callCallbacks(b *ir.Body) error {
	methods, err := s.callbacks()
	if err != nil {
		return err
	}
	var results []*ir.Local
	for _, m := range methods {
		call := &ir.InvokeExpr{Kind: ir.CallKindOf(m), Method: m.Ref()}
		if call.Kind != ir.StaticCall {
			recv, err := s.localView(b, m.Declaring.Type())
			if err != nil {
				return fmt.Errorf("%s: %w", m.Signature(), err)
			}
			call.Base = recv
		}
		args, err := s.views(b, m.Params)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Signature(), err)
		}
		call.Args = args
		if typesystem.IsRefLike(m.Return) {
			results = append(results, b.Bind(call))
		} else {
			b.Invoke(call)
		}
		s.stats.Callbacks++
	}
	for _, r := range results {
		b.StoreLPT(r)
	}
	return nil
}

func (s *Synthesizer) writeArrays(b *ir.Body) error {
	arr, err := s.localView(b, typesystem.ArrayOf(typesystem.Ref(config.ObjectClass), 1))
	if err != nil {
		return err
	}
	b.Assign(ir.ArrayRef{Base: arr, Index: ir.Int(0)}, b.LPT())
	return nil
}

func (s *Synthesizer) instantiateReflectively(b *ir.Body) error {
	if !s.opts.Reflection {
		return nil
	}
	forName, err := s.method(config.ForNameSig)
	if err != nil {
		return err
	}
	newInstance, err := s.method(config.NewInstanceSig)
	if err != nil {
		return err
	}
	name, err := s.view(b, typesystem.Ref(config.StringClass))
	if err != nil {
		return err
	}
	cls := b.Bind(&ir.InvokeExpr{Kind: ir.StaticCall, Method: forName, Args: []ir.Value{name}})
	obj := b.Bind(&ir.InvokeExpr{Kind: ir.VirtualCall, Base: cls, Method: newInstance})
	b.StoreLPT(obj)
	return nil
}

func (s *Synthesizer) throwThrowables(b *ir.Body) error {
	exc, err := s.view(b, typesystem.Ref(config.ThrowableClass))
	if err != nil {
		return err
	}
	b.Throw(exc)
	return nil
}
