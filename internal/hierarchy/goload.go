package hierarchy

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/typesystem"
)

// GoLoader builds a Universe from Go packages: named interfaces become
// interfaces, named struct types become concrete classes, and string literals
// in application packages become name constants.
type GoLoader struct {
	// Dir is the module directory the package patterns are resolved in.
	Dir string

	// Library and Application are package patterns of the two partitions.
	Library     []string
	Application []string
}

// goNamed is a named type selected for the universe.
type goNamed struct {
	named  *types.Named
	origin typesystem.Origin
}

// Load loads the packages and converts their named types.
func (l *GoLoader) Load() (*Universe, error) {
	lib, err := l.loadPackages(l.Library)
	if err != nil {
		return nil, err
	}
	var app []*packages.Package
	if len(l.Application) > 0 {
		app, err = l.loadPackages(l.Application)
		if err != nil {
			return nil, err
		}
	}

	selected := make(map[string]goNamed)
	collect := func(pkgs []*packages.Package, origin typesystem.Origin) {
		for _, pkg := range pkgs {
			scope := pkg.Types.Scope()
			for _, name := range scope.Names() {
				tn, ok := scope.Lookup(name).(*types.TypeName)
				if !ok || tn.IsAlias() {
					continue
				}
				named, ok := tn.Type().(*types.Named)
				if !ok || named.TypeParams().Len() > 0 {
					continue
				}
				switch named.Underlying().(type) {
				case *types.Interface, *types.Struct:
					key := goClassName(named)
					if _, dup := selected[key]; !dup {
						selected[key] = goNamed{named: named, origin: origin}
					}
				}
			}
		}
	}
	collect(lib, typesystem.OriginLibrary)
	collect(app, typesystem.OriginApplication)

	conv := &goConverter{selected: selected}
	names := make([]string, 0, len(selected))
	for n := range selected {
		names = append(names, n)
	}
	sort.Strings(names)

	classes := make([]*typesystem.Class, 0, len(names)+len(coreClasses))
	for _, n := range names {
		classes = append(classes, conv.class(selected[n]))
	}
	for _, core := range coreClasses {
		if _, ok := selected[core.name]; !ok {
			classes = append(classes, core.build())
		}
	}

	u, err := NewUniverse(classes, stringConstants(app))
	if err != nil {
		return nil, fmt.Errorf("go universe: %w", err)
	}
	return u, nil
}

// loadPackages loads the given patterns using go/packages.
func (l *GoLoader) loadPackages(patterns []string) ([]*packages.Package, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedTypes |
			packages.NeedTypesInfo |
			packages.NeedSyntax |
			packages.NeedImports |
			packages.NeedDeps,
		Dir: l.Dir,
		Env: append(os.Environ(), "GOWORK=off"),
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}

	var errs []string
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			errs = append(errs, fmt.Sprintf("%s: %s", pkg.PkgPath, e.Msg))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("package errors:\n  %s", strings.Join(errs, "\n  "))
	}
	return pkgs, nil
}

func goClassName(named *types.Named) string {
	obj := named.Obj()
	if obj.Pkg() == nil {
		return obj.Name()
	}
	return obj.Pkg().Path() + "." + obj.Name()
}

type goConverter struct {
	selected map[string]goNamed
}

func (c *goConverter) class(g goNamed) *typesystem.Class {
	name := goClassName(g.named)
	obj := g.named.Obj()
	var mods typesystem.Modifier
	if obj.Exported() {
		mods |= typesystem.Public
	}

	switch u := g.named.Underlying().(type) {
	case *types.Interface:
		cls := typesystem.NewClass(name, mods|typesystem.Interface|typesystem.Abstract, g.origin)
		cls.Super = config.ObjectClass
		for i := 0; i < u.NumEmbeddeds(); i++ {
			if en, ok := u.EmbeddedType(i).(*types.Named); ok {
				if _, known := c.selected[goClassName(en)]; known {
					cls.Interfaces = append(cls.Interfaces, goClassName(en))
				}
			}
		}
		for i := 0; i < u.NumExplicitMethods(); i++ {
			fn := u.ExplicitMethod(i)
			cls.AddMethod(c.method(fn, typesystem.Public|typesystem.Abstract))
		}
		return cls

	case *types.Struct:
		cls := typesystem.NewClass(name, mods, g.origin)
		cls.Super = config.ObjectClass
		for i := 0; i < u.NumFields(); i++ {
			f := u.Field(i)
			if f.Embedded() {
				if en, ok := derefNamed(f.Type()); ok {
					if sel, known := c.selected[goClassName(en)]; known {
						if _, isStruct := sel.named.Underlying().(*types.Struct); isStruct && cls.Super == config.ObjectClass {
							cls.Super = goClassName(en)
							continue
						}
					}
				}
			}
			fmods := typesystem.Private
			if f.Exported() {
				fmods = typesystem.Public
			}
			cls.AddField(&typesystem.Field{Name: f.Name(), Type: c.typeOf(f.Type()), Modifiers: fmods})
		}
		cls.Interfaces = c.implemented(g.named)
		seen := make(map[string]bool)
		for i := 0; i < g.named.NumMethods(); i++ {
			fn := g.named.Method(i)
			mmods := typesystem.Private
			if fn.Exported() {
				mmods = typesystem.Public
			}
			m := c.method(fn, mmods)
			if seen[m.SubSignature()] {
				continue
			}
			seen[m.SubSignature()] = true
			cls.AddMethod(m)
		}
		cls.AddMethod(typesystem.NewDefaultConstructor())
		return cls
	}
	panic("unreachable: selected type is neither interface nor struct")
}

// implemented lists the selected interfaces that *T implements, sorted by name.
func (c *goConverter) implemented(named *types.Named) []string {
	ptr := types.NewPointer(named)
	var out []string
	for n, sel := range c.selected {
		iface, ok := sel.named.Underlying().(*types.Interface)
		if !ok || iface.Empty() {
			continue
		}
		if types.Implements(ptr, iface) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

func (c *goConverter) method(fn *types.Func, mods typesystem.Modifier) *typesystem.Method {
	sig := fn.Type().(*types.Signature)
	var params []typesystem.Type
	for i := 0; i < sig.Params().Len(); i++ {
		t := sig.Params().At(i).Type()
		if sig.Variadic() && i == sig.Params().Len()-1 {
			if s, ok := t.(*types.Slice); ok {
				params = append(params, typesystem.ArrayOf(c.typeOf(s.Elem()), 1))
				continue
			}
		}
		params = append(params, c.typeOf(t))
	}

	var ret typesystem.Type = typesystem.VoidType{}
	var results []types.Type
	for i := 0; i < sig.Results().Len(); i++ {
		t := sig.Results().At(i).Type()
		if isErrorType(t) {
			continue
		}
		results = append(results, t)
	}
	switch len(results) {
	case 0:
	case 1:
		ret = c.typeOf(results[0])
	default:
		ret = typesystem.Ref(config.ObjectClass)
	}
	return typesystem.NewMethod(fn.Name(), params, ret, mods)
}

// typeOf maps a Go type onto the universe's type model.
func (c *goConverter) typeOf(t types.Type) typesystem.Type {
	switch t := t.(type) {
	case *types.Basic:
		return basicType(t)
	case *types.Pointer:
		return c.typeOf(t.Elem())
	case *types.Slice:
		return typesystem.ArrayOf(c.typeOf(t.Elem()), 1)
	case *types.Array:
		return typesystem.ArrayOf(c.typeOf(t.Elem()), 1)
	case *types.Named:
		if isErrorType(t) {
			return typesystem.Ref(config.ThrowableClass)
		}
		if _, ok := c.selected[goClassName(t)]; ok {
			return typesystem.Ref(goClassName(t))
		}
		if _, ok := t.Underlying().(*types.Basic); ok {
			return c.typeOf(t.Underlying())
		}
	}
	return typesystem.Ref(config.ObjectClass)
}

func basicType(t *types.Basic) typesystem.Type {
	switch t.Kind() {
	case types.Bool, types.UntypedBool:
		return typesystem.PrimType{Kind: typesystem.Boolean}
	case types.Int8, types.Uint8:
		return typesystem.PrimType{Kind: typesystem.Byte}
	case types.Int16, types.Uint16:
		return typesystem.PrimType{Kind: typesystem.Short}
	case types.Int32, types.Uint32, types.UntypedRune:
		return typesystem.PrimType{Kind: typesystem.Int}
	case types.Int, types.Int64, types.Uint, types.Uint64, types.Uintptr, types.UntypedInt:
		return typesystem.PrimType{Kind: typesystem.Long}
	case types.Float32:
		return typesystem.PrimType{Kind: typesystem.Float}
	case types.Float64, types.UntypedFloat:
		return typesystem.PrimType{Kind: typesystem.Double}
	case types.String, types.UntypedString:
		return typesystem.Ref(config.StringClass)
	}
	return typesystem.Ref(config.ObjectClass)
}

func derefNamed(t types.Type) (*types.Named, bool) {
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	n, ok := t.(*types.Named)
	return n, ok
}

// isErrorType checks if a type is the error interface.
func isErrorType(t types.Type) bool {
	named, ok := t.(*types.Named)
	if ok {
		t = named.Underlying()
	}
	iface, ok := t.(*types.Interface)
	if !ok {
		return false
	}
	return iface.NumMethods() == 1 && iface.Method(0).Name() == "Error"
}

// stringConstants collects the string literals of the application packages in source order.
func stringConstants(pkgs []*packages.Package) []string {
	var out []string
	seen := make(map[string]bool)
	for _, pkg := range pkgs {
		for _, file := range pkg.Syntax {
			ast.Inspect(file, func(n ast.Node) bool {
				lit, ok := n.(*ast.BasicLit)
				if !ok || lit.Kind != token.STRING {
					return true
				}
				s, err := strconv.Unquote(lit.Value)
				if err == nil && s != "" && !seen[s] {
					seen[s] = true
					out = append(out, s)
				}
				return true
			})
		}
	}
	return out
}
