package hierarchy

import (
	"bytes"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/typesystem"
)

// SupportedSchema is the range of universe document versions this loader reads.
const SupportedSchema = ">=1.0.0, <2.0.0"

// Partition names used in universe documents.
const (
	PartitionLibrary     = "library"
	PartitionApplication = "application"
)

// universeDoc is the on-disk shape of a universe document.
type universeDoc struct {
	Schema        string     `yaml:"schema"`
	Classes       []classDoc `yaml:"classes"`
	NameConstants []string   `yaml:"name_constants,omitempty"`
}

type classDoc struct {
	Name       string   `yaml:"name"`
	Partition  string   `yaml:"partition,omitempty"`
	Modifiers  []string `yaml:"modifiers,omitempty"`
	Super      string   `yaml:"super,omitempty"`
	Interfaces []string `yaml:"interfaces,omitempty"`
	Phantom    bool     `yaml:"phantom,omitempty"`
	Methods    []string `yaml:"methods,omitempty"`
	Fields     []string `yaml:"fields,omitempty"`
}

// LoadUniverse reads a universe document from path.
func LoadUniverse(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading universe %s: %w", path, err)
	}
	return ParseUniverse(data, path)
}

// ParseUniverse builds a Universe from a universe document.
// The path argument is only used in error messages.
func ParseUniverse(data []byte, path string) (*Universe, error) {
	var doc universeDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := checkSchema(doc.Schema); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	classes := make([]*typesystem.Class, 0, len(doc.Classes)+len(coreClasses))
	declared := make(map[string]bool, len(doc.Classes))
	for i, cd := range doc.Classes {
		c, err := cd.build()
		if err != nil {
			return nil, fmt.Errorf("%s: classes[%d]: %w", path, i, err)
		}
		declared[c.Name] = true
		classes = append(classes, c)
	}
	for _, core := range coreClasses {
		if !declared[core.name] {
			classes = append(classes, core.build())
		}
	}

	u, err := NewUniverse(classes, doc.NameConstants)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

func checkSchema(schema string) error {
	if schema == "" {
		return fmt.Errorf("missing schema version")
	}
	v, err := semver.NewVersion(schema)
	if err != nil {
		return fmt.Errorf("schema %q: %w", schema, err)
	}
	c, err := semver.NewConstraint(SupportedSchema)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("unsupported schema %s (want %s)", v, SupportedSchema)
	}
	return nil
}

func (cd classDoc) build() (*typesystem.Class, error) {
	if cd.Name == "" {
		return nil, fmt.Errorf("class without name")
	}
	var origin typesystem.Origin
	switch cd.Partition {
	case "", PartitionLibrary:
		origin = typesystem.OriginLibrary
	case PartitionApplication:
		origin = typesystem.OriginApplication
	default:
		return nil, fmt.Errorf("class %s: unknown partition %q", cd.Name, cd.Partition)
	}

	var mods typesystem.Modifier
	for _, s := range cd.Modifiers {
		m, ok := typesystem.ParseModifier(s)
		if !ok {
			return nil, fmt.Errorf("class %s: unknown modifier %q", cd.Name, s)
		}
		mods |= m
	}
	if mods.Has(typesystem.Interface) {
		mods |= typesystem.Abstract
	}

	c := typesystem.NewClass(cd.Name, mods, origin)
	c.Phantom = cd.Phantom
	c.Super = cd.Super
	if c.Super == "" && c.Name != config.ObjectClass {
		c.Super = config.ObjectClass
	}
	c.Interfaces = append(c.Interfaces, cd.Interfaces...)

	for _, decl := range cd.Methods {
		m, err := typesystem.ParseMethodDecl(decl)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", cd.Name, err)
		}
		if c.IsInterface() && !m.IsStatic() && !m.IsStaticInitializer() && !m.Modifiers.Has(typesystem.Private) {
			// Interface members are implicitly public.
			m.Modifiers |= typesystem.Public
		}
		if c.Method(m.SubSignature()) != nil {
			return nil, fmt.Errorf("class %s: duplicate method %s", cd.Name, m.SubSignature())
		}
		// Members of a phantom class are only referenced, never loaded.
		m.Declared = !c.Phantom
		c.AddMethod(m)
	}
	for _, decl := range cd.Fields {
		f, err := typesystem.ParseFieldDecl(decl)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", cd.Name, err)
		}
		if c.Field(f.Name) != nil {
			return nil, fmt.Errorf("class %s: duplicate field %s", cd.Name, f.Name)
		}
		c.AddField(f)
	}
	if !c.IsInterface() && !c.Phantom && len(c.Constructors()) == 0 {
		c.AddMethod(typesystem.NewDefaultConstructor())
	}
	return c, nil
}

// coreClass is a platform class the synthesized code depends on.
type coreClass struct {
	name    string
	mods    typesystem.Modifier
	methods []string
}

var coreClasses = []coreClass{
	{config.ObjectClass, typesystem.Public, []string{
		"public <init>()",
		"protected void finalize()",
	}},
	{config.ThrowableClass, typesystem.Public, []string{
		"public <init>()",
	}},
	{config.ClassClass, typesystem.Public | typesystem.Final, []string{
		"private <init>()",
		"public static java.lang.Class forName(java.lang.String)",
		"public java.lang.Object newInstance()",
	}},
	{config.StringClass, typesystem.Public | typesystem.Final, []string{
		"public <init>()",
	}},
}

func (cc coreClass) build() *typesystem.Class {
	c := typesystem.NewClass(cc.name, cc.mods, typesystem.OriginLibrary)
	if cc.name != config.ObjectClass {
		c.Super = config.ObjectClass
	}
	for _, decl := range cc.methods {
		m, err := typesystem.ParseMethodDecl(decl)
		if err != nil {
			panic(err)
		}
		c.AddMethod(m)
	}
	return c
}
