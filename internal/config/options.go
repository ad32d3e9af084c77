// Package config holds the run configuration of the surrogate builder.
//
// Options are read once, before synthesis, from surrogate.yaml:
//   - where the type universe comes from (a universe document or Go packages)
//   - which reflection facts to merge and whether reflective constructors are used
//   - dynamic class names, platform filtering and the phantom-class policy
//   - naming of the synthesized classes and the output format
package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Platform names.
const (
	PlatformJava    = "java"
	PlatformAndroid = "android"
)

// Phantom policies.
const (
	PhantomsError = "error"
	PhantomsSkip  = "skip"
)

// Output formats.
const (
	FormatListing = "listing"
	FormatBinary  = "binary"
)

// Options is the top-level surrogate.yaml configuration.
type Options struct {
	// Hierarchy tells the builder where to load the type universe from.
	Hierarchy HierarchySource `yaml:"hierarchy"`

	// Reflection controls integration of reflection facts.
	Reflection Reflection `yaml:"reflection,omitempty"`

	// DynamicClasses lists application classes the library may create by name.
	DynamicClasses DynamicClasses `yaml:"dynamic_classes,omitempty"`

	// Platform is "java" (default) or "android". Android enables callback filtering.
	Platform string `yaml:"platform,omitempty"`

	// Lifecycle is the externally supplied lifecycle classification used by the
	// android callback filter. Methods are sub-signatures ("void onCreate(android.os.Bundle)").
	Lifecycle Lifecycle `yaml:"lifecycle,omitempty"`

	// Phantoms is the policy for declared-but-unresolved library classes:
	// "error" (default) aborts the run, "skip" leaves them without bodies.
	Phantoms string `yaml:"phantoms,omitempty"`

	// Naming overrides the names of synthesized classes.
	Naming Naming `yaml:"naming,omitempty"`

	// Output configures emission.
	Output Output `yaml:"output,omitempty"`

	// dir is the directory containing the options file; relative paths resolve against it.
	dir string
}

// HierarchySource selects exactly one universe loader.
type HierarchySource struct {
	// Universe is a universe YAML document.
	Universe string `yaml:"universe,omitempty"`

	// Go loads the universe from Go packages.
	Go *GoSource `yaml:"go,omitempty"`
}

// GoSource describes a Go module whose packages form the universe.
type GoSource struct {
	// Dir is the module directory (relative to surrogate.yaml).
	Dir string `yaml:"dir"`

	// Library lists package patterns forming the library partition.
	Library []string `yaml:"library"`

	// Application lists package patterns forming the application partition.
	Application []string `yaml:"application,omitempty"`
}

// Reflection toggles reflection-fact integration.
type Reflection struct {
	Enabled bool `yaml:"enabled,omitempty"`

	// Constructors instantiates application types through the reflectively
	// invoked constructors instead of only default construction.
	Constructors bool `yaml:"constructors,omitempty"`

	// Facts is a TamiFlex log (refl.log) or a facts database (*.db).
	Facts string `yaml:"facts,omitempty"`
}

// DynamicClasses lists extra application classes to instantiate.
type DynamicClasses struct {
	Enabled bool     `yaml:"enabled,omitempty"`
	Names   []string `yaml:"names,omitempty"`
	// File holds one class name per line; blank lines and # comments are ignored.
	File string `yaml:"file,omitempty"`
}

// Lifecycle is the platform lifecycle classification.
type Lifecycle struct {
	Classes []string `yaml:"classes,omitempty"`
	Methods []string `yaml:"methods,omitempty"`
}

// Naming of synthesized classes.
type Naming struct {
	Suffix               string `yaml:"suffix,omitempty"`
	LibraryClass         string `yaml:"library_class,omitempty"`
	AbstractLibraryClass string `yaml:"abstract_library_class,omitempty"`
}

// Output configures emission.
type Output struct {
	// Dir is the output directory.
	Dir string `yaml:"dir,omitempty"`

	// Format is "listing" (text) or "binary" (.sgc protobuf artifacts).
	Format string `yaml:"format,omitempty"`

	// Parallel bounds concurrent artifact writes (0 = number of CPUs).
	Parallel int `yaml:"parallel,omitempty"`

	// Sink is a host:port of a remote artifact sink; when set artifacts are
	// sent there instead of being written to Dir.
	Sink string `yaml:"sink,omitempty"`
}

// Default returns options with every default applied and no universe source.
func Default() *Options {
	opts := &Options{}
	opts.setDefaults()
	return opts
}

// LoadOptions reads and parses a surrogate.yaml file.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading options %s: %w", path, err)
	}
	return ParseOptions(data, path)
}

// ParseOptions parses surrogate.yaml content from bytes.
// The path argument is used for error messages and to resolve relative paths.
func ParseOptions(data []byte, path string) (*Options, error) {
	var opts Options
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	opts.dir = filepath.Dir(path)
	if err := opts.validate(path); err != nil {
		return nil, err
	}
	opts.setDefaults()
	if err := opts.checkOutputDir(path); err != nil {
		return nil, err
	}
	return &opts, nil
}

// FindOptions searches for surrogate.yaml starting from dir and walking up
// to parent directories. It returns "" and a nil error when nothing is found.
func FindOptions(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	for {
		for _, name := range OptionsFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// validate checks the options for semantic errors.
func (o *Options) validate(path string) error {
	h := o.Hierarchy
	if h.Universe == "" && h.Go == nil {
		return fmt.Errorf("%w: %s: hierarchy: one of universe or go is required", ErrInvalid, path)
	}
	if h.Universe != "" && h.Go != nil {
		return fmt.Errorf("%w: %s: hierarchy: universe and go are mutually exclusive", ErrInvalid, path)
	}
	if h.Go != nil && len(h.Go.Library) == 0 {
		return fmt.Errorf("%w: %s: hierarchy.go: library packages are required", ErrInvalid, path)
	}

	if o.Reflection.Constructors && !o.Reflection.Enabled {
		return fmt.Errorf("%w: %s: reflection.constructors requires reflection.enabled", ErrInvalid, path)
	}
	if o.Reflection.Enabled && o.Reflection.Facts == "" {
		return fmt.Errorf("%w: %s: reflection.facts is required when reflection is enabled", ErrInvalid, path)
	}

	if o.DynamicClasses.Enabled && len(o.DynamicClasses.Names) == 0 && o.DynamicClasses.File == "" {
		return fmt.Errorf("%w: %s: dynamic_classes: names or file is required when enabled", ErrInvalid, path)
	}

	switch o.Platform {
	case "", PlatformJava, PlatformAndroid:
	default:
		return fmt.Errorf("%w: %s: unknown platform %q", ErrInvalid, path, o.Platform)
	}
	if o.Platform != PlatformAndroid && (len(o.Lifecycle.Classes) > 0 || len(o.Lifecycle.Methods) > 0) {
		return fmt.Errorf("%w: %s: lifecycle is only valid with platform android", ErrInvalid, path)
	}

	switch o.Phantoms {
	case "", PhantomsError, PhantomsSkip:
	default:
		return fmt.Errorf("%w: %s: unknown phantoms policy %q", ErrInvalid, path, o.Phantoms)
	}

	switch o.Output.Format {
	case "", FormatListing, FormatBinary:
	default:
		return fmt.Errorf("%w: %s: unknown output format %q", ErrInvalid, path, o.Output.Format)
	}
	if o.Output.Parallel < 0 {
		return fmt.Errorf("%w: %s: output.parallel must not be negative", ErrInvalid, path)
	}

	n := o.Naming
	if n.LibraryClass != "" && n.LibraryClass == n.AbstractLibraryClass {
		return fmt.Errorf("%w: %s: naming: library_class and abstract_library_class must differ", ErrInvalid, path)
	}
	return nil
}

// checkOutputDir rejects output directories that would swallow the options
// directory or an input file, since the build replaces the output directory.
func (o *Options) checkOutputDir(path string) error {
	if o.Output.Sink != "" {
		return nil
	}
	out, err := filepath.Abs(o.Resolve(o.Output.Dir))
	if err != nil {
		return fmt.Errorf("%w: %s: output.dir: %v", ErrInvalid, path, err)
	}
	protected := []string{o.dir, o.Hierarchy.Universe, o.Reflection.Facts, o.DynamicClasses.File}
	if o.Hierarchy.Go != nil {
		protected = append(protected, o.Hierarchy.Go.Dir)
	}
	for i, p := range protected {
		if p == "" && i > 0 {
			continue
		}
		if i > 0 {
			p = o.Resolve(p)
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("%w: %s: output.dir: %v", ErrInvalid, path, err)
		}
		if within(out, abs) {
			return fmt.Errorf("%w: %s: output.dir %s would contain %s", ErrInvalid, path, out, abs)
		}
	}
	return nil
}

// within reports whether p is dir or lies below it.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// setDefaults fills in default values for omitted fields.
func (o *Options) setDefaults() {
	if o.Platform == "" {
		o.Platform = PlatformJava
	}
	if o.Phantoms == "" {
		o.Phantoms = PhantomsError
	}
	if o.Naming.Suffix == "" {
		o.Naming.Suffix = DefaultSurrogateSuffix
	}
	if o.Naming.LibraryClass == "" {
		o.Naming.LibraryClass = DefaultLibraryClass
	}
	if o.Naming.AbstractLibraryClass == "" {
		o.Naming.AbstractLibraryClass = DefaultAbstractLibraryClass
	}
	if o.Output.Dir == "" {
		o.Output.Dir = "surrogate-out"
	}
	if o.Output.Format == "" {
		o.Output.Format = FormatListing
	}
}

// Dir returns the directory relative paths resolve against.
func (o *Options) Dir() string { return o.dir }

// Resolve makes p absolute relative to the options file directory.
func (o *Options) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(o.dir, p)
}

// IsAndroid reports whether android callback filtering applies.
func (o *Options) IsAndroid() bool { return o.Platform == PlatformAndroid }

// SkipPhantoms reports whether phantom library classes are tolerated.
func (o *Options) SkipPhantoms() bool { return o.Phantoms == PhantomsSkip }

// DynamicClassNames returns the configured dynamic class names in order,
// names from the file following the inline list. Duplicates are dropped.
func (o *Options) DynamicClassNames() ([]string, error) {
	if !o.DynamicClasses.Enabled {
		return nil, nil
	}
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, n := range o.DynamicClasses.Names {
		add(strings.TrimSpace(n))
	}
	if o.DynamicClasses.File != "" {
		path := o.Resolve(o.DynamicClasses.File)
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reading dynamic classes %s: %w", path, err)
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if strings.HasPrefix(line, "#") {
				continue
			}
			add(line)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading dynamic classes %s: %w", path, err)
		}
	}
	return names, nil
}

// IsLifecycleMethod reports whether subSig on class is a lifecycle callback.
func (o *Options) IsLifecycleMethod(class, subSig string) bool {
	classMatch := false
	for _, c := range o.Lifecycle.Classes {
		if c == class {
			classMatch = true
			break
		}
	}
	if !classMatch {
		return false
	}
	for _, m := range o.Lifecycle.Methods {
		if m == subSig {
			return true
		}
	}
	return false
}
