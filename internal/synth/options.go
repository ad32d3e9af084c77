package synth

import (
	"github.com/funvibe/surrogate/internal/config"
)

// Options collects every toggle the synthesizer reads. Each stage consults
// its own toggle once, on entry.
type Options struct {
	// Reflection enables the reflection-fact sourced creations and callbacks.
	Reflection bool

	// ReflectiveConstructors instantiates application types through the
	// constructors named by Constructor.newInstance facts. Requires Reflection.
	ReflectiveConstructors bool

	// DynamicClasses are application classes created by name; nil disables the stage.
	DynamicClasses []string

	// Android drops undeclared callback targets and lifecycle callbacks.
	Android bool

	// IsLifecycle classifies platform lifecycle callbacks by declaring class and sub-signature.
	IsLifecycle func(class, subSig string) bool

	// SkipPhantoms leaves phantom library classes out instead of failing.
	SkipPhantoms bool

	// LibraryClass and AbstractLibraryClass name the two synthesized root classes.
	LibraryClass         string
	AbstractLibraryClass string
}

// OptionsFrom derives synthesizer options from the run configuration.
// dynamic is the resolved list of dynamic class names.
func OptionsFrom(cfg *config.Options, dynamic []string) Options {
	opts := Options{
		Reflection:             cfg.Reflection.Enabled,
		ReflectiveConstructors: cfg.Reflection.Enabled && cfg.Reflection.Constructors,
		Android:                cfg.IsAndroid(),
		SkipPhantoms:           cfg.SkipPhantoms(),
		LibraryClass:           cfg.Naming.LibraryClass,
		AbstractLibraryClass:   cfg.Naming.AbstractLibraryClass,
	}
	if cfg.DynamicClasses.Enabled {
		opts.DynamicClasses = append([]string{}, dynamic...)
	}
	if opts.Android {
		opts.IsLifecycle = cfg.IsLifecycleMethod
	}
	return opts
}

func (o Options) withDefaults() Options {
	if o.LibraryClass == "" {
		o.LibraryClass = config.DefaultLibraryClass
	}
	if o.AbstractLibraryClass == "" {
		o.AbstractLibraryClass = config.DefaultAbstractLibraryClass
	}
	return o
}
