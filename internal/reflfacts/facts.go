// Package reflfacts holds reflection facts: records of reflective call sites
// observed by a separate dynamic analysis (TamiFlex) and stored either as the
// raw log or in a SQLite database.
package reflfacts

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Kind names a reflective API whose uses are recorded.
type Kind string

const (
	MethodInvoke           Kind = "Method.invoke"
	ClassForName           Kind = "Class.forName"
	ClassNewInstance       Kind = "Class.newInstance"
	ConstructorNewInstance Kind = "Constructor.newInstance"
	ArrayNewInstance       Kind = "Array.newInstance"
)

// Kinds lists every recorded kind in a fixed order.
var Kinds = []Kind{MethodInvoke, ClassForName, ClassNewInstance, ConstructorNewInstance, ArrayNewInstance}

func (k Kind) valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Store enumerates the recorded reflection targets, each list in first-seen order.
type Store interface {
	// MethodInvokes returns method signatures ("<C: R m(P)>") invoked reflectively.
	MethodInvokes() []string
	// ClassForNames returns class names passed to Class.forName.
	ClassForNames() []string
	// ClassNewInstances returns class names instantiated through Class.newInstance.
	ClassNewInstances() []string
	// ConstructorNewInstances returns constructor signatures invoked reflectively.
	ConstructorNewInstances() []string
	// ArrayNewInstances returns array types ("T[]") created through Array.newInstance.
	ArrayNewInstances() []string
}

// Facts is an in-memory Store. The zero value is empty and ready to use.
type Facts struct {
	lists map[Kind][]string
	seen  map[Kind]map[string]bool
}

var _ Store = (*Facts)(nil)

// NewFacts creates an empty fact set.
func NewFacts() *Facts { return &Facts{} }

// Add records target under kind. Duplicates are ignored.
func (f *Facts) Add(kind Kind, target string) error {
	if !kind.valid() {
		return fmt.Errorf("unknown fact kind %q", kind)
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return fmt.Errorf("%s: empty target", kind)
	}
	if f.lists == nil {
		f.lists = make(map[Kind][]string)
		f.seen = make(map[Kind]map[string]bool)
	}
	if f.seen[kind] == nil {
		f.seen[kind] = make(map[string]bool)
	}
	if f.seen[kind][target] {
		return nil
	}
	f.seen[kind][target] = true
	f.lists[kind] = append(f.lists[kind], target)
	return nil
}

// List returns the targets recorded under kind.
func (f *Facts) List(kind Kind) []string {
	return append([]string(nil), f.lists[kind]...)
}

// Len returns the total number of recorded facts.
func (f *Facts) Len() int {
	n := 0
	for _, l := range f.lists {
		n += len(l)
	}
	return n
}

func (f *Facts) MethodInvokes() []string           { return f.List(MethodInvoke) }
func (f *Facts) ClassForNames() []string           { return f.List(ClassForName) }
func (f *Facts) ClassNewInstances() []string       { return f.List(ClassNewInstance) }
func (f *Facts) ConstructorNewInstances() []string { return f.List(ConstructorNewInstance) }
func (f *Facts) ArrayNewInstances() []string       { return f.List(ArrayNewInstance) }

// IsDatabase reports whether path names a facts database rather than a log.
func IsDatabase(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// Load reads facts from a TamiFlex log or a facts database, chosen by extension.
func Load(ctx context.Context, path string) (*Facts, error) {
	if !IsDatabase(path) {
		return LoadTamiFlex(path)
	}
	db, err := OpenDB(ctx, path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.Facts(ctx)
}
