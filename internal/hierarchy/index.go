// Package hierarchy answers read-only queries over the combined application and
// library type graph.
package hierarchy

import (
	"errors"

	"github.com/funvibe/surrogate/internal/typesystem"
)

// ErrNotFound is wrapped by every failed class or method lookup.
var ErrNotFound = errors.New("not found")

// Index is the query surface the surrogate builder consumes.
// Every list-returning query returns its results in a stable order.
type Index interface {
	// Class looks up a class or interface by name.
	Class(name string) (*typesystem.Class, bool)

	IsInterface(name string) bool
	IsAbstract(name string) bool

	// HasConcreteImplementation reports whether a concrete library class
	// implements the interface or extends the abstract class.
	HasConcreteImplementation(name string) bool

	// SuperinterfacesOf returns the interface itself followed by all of its
	// transitive superinterfaces in breadth-first declaration order.
	SuperinterfacesOf(name string) ([]*typesystem.Class, error)

	// Superclasses returns the superclass chain of name, closest first.
	Superclasses(name string) ([]*typesystem.Class, error)

	// ResolveMethod resolves "<C: R m(P)>" through C, its superclasses and its interfaces.
	ResolveMethod(signature string) (*typesystem.Method, error)

	DeclaredMethods(name string) ([]*typesystem.Method, error)
	HasDefaultConstructor(name string) bool
	DefaultConstructorOf(name string) (*typesystem.Method, error)

	// LibraryOverridesOfApplicationMethods returns the library-declared methods
	// that some application method overrides.
	LibraryOverridesOfApplicationMethods() []*typesystem.Method

	// ConcreteLibraryTypes returns the instantiable library classes, surrogates included.
	ConcreteLibraryTypes() []*typesystem.Class

	// ArrayTypesAccessibleToLibrary returns the array types used as parameter
	// or return types of library methods.
	ArrayTypesAccessibleToLibrary() []typesystem.ArrayType

	// LibraryClasses returns every class of the library partition (surrogates excluded).
	LibraryClasses() []*typesystem.Class

	LibraryInterfacesNotImplemented() []*typesystem.Class
	AbstractLibraryClassesNotImplemented() []*typesystem.Class

	// ApplicationClassNameConstants returns the application classes whose names
	// appear as string constants in the application.
	ApplicationClassNameConstants() []*typesystem.Class

	IsApplicationClass(name string) bool
	IsApplicationMethod(signature string) bool

	// IsSubtype reports whether values of sub may be assigned to sup.
	IsSubtype(sub, sup typesystem.Type) bool

	// With returns a new index that also contains classes. The receiver is unchanged.
	With(classes ...*typesystem.Class) (Index, error)
}
