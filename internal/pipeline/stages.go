package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/emit"
	"github.com/funvibe/surrogate/internal/hierarchy"
	"github.com/funvibe/surrogate/internal/reflfacts"
	"github.com/funvibe/surrogate/internal/surrogate"
	"github.com/funvibe/surrogate/internal/synth"
)

// LoadHierarchy reads the class universe from YAML or from Go packages.
var LoadHierarchy = ProcessorFunc(func(ctx *Context) *Context {
	opts := ctx.Options
	encoded, err := yaml.Marshal(opts)
	if err != nil {
		ctx.Err = fmt.Errorf("encoding options: %w", err)
		return ctx
	}
	ctx.Inputs = append(ctx.Inputs, encoded)

	if src := opts.Hierarchy.Go; src != nil {
		loader := &hierarchy.GoLoader{Dir: opts.Resolve(src.Dir), Library: src.Library, Application: src.Application}
		ctx.Universe, err = loader.Load()
		if err != nil {
			ctx.Err = err
			return ctx
		}
		ctx.Inputs = append(ctx.Inputs, []byte(strings.Join(append(append([]string{}, src.Library...), src.Application...), "\n")))
	} else {
		path := opts.Resolve(opts.Hierarchy.Universe)
		data, err := os.ReadFile(path)
		if err != nil {
			ctx.Err = fmt.Errorf("reading universe: %w", err)
			return ctx
		}
		ctx.Universe, err = hierarchy.ParseUniverse(data, path)
		if err != nil {
			ctx.Err = err
			return ctx
		}
		ctx.Inputs = append(ctx.Inputs, data)
	}
	for _, c := range ctx.Universe.InterfacesWithoutAbstractMethods() {
		ctx.Report.Warnf("load", "interface %s declares no abstract methods; its surrogate stubs nothing", c.Name)
	}
	ctx.Report.Infof("load", "%d classes", len(ctx.Universe.Classes()))
	return ctx
})

// LoadFacts reads the reflection facts when reflection is enabled.
var LoadFacts = ProcessorFunc(func(ctx *Context) *Context {
	opts := ctx.Options
	if !opts.Reflection.Enabled {
		return ctx
	}
	path := opts.Resolve(opts.Reflection.Facts)
	facts, err := reflfacts.Load(ctx.Ctx, path)
	if err != nil {
		ctx.Err = err
		return ctx
	}
	ctx.Facts = facts
	if data, err := os.ReadFile(path); err == nil {
		ctx.Inputs = append(ctx.Inputs, data)
	}
	ctx.Report.Infof("facts", "%d reflection facts from %s", facts.Len(), path)
	return ctx
})

// ResolveDynamic reads the configured dynamic class names.
var ResolveDynamic = ProcessorFunc(func(ctx *Context) *Context {
	names, err := ctx.Options.DynamicClassNames()
	if err != nil {
		ctx.Err = err
		return ctx
	}
	ctx.Dynamic = names
	if len(names) > 0 {
		ctx.Inputs = append(ctx.Inputs, []byte(strings.Join(names, "\n")))
	}
	return ctx
})

// Generate creates the surrogates of unimplemented library types.
var Generate = ProcessorFunc(func(ctx *Context) *Context {
	res, err := surrogate.Generate(ctx.Universe, surrogate.Options{Suffix: ctx.Options.Naming.Suffix})
	if err != nil {
		ctx.Err = err
		return ctx
	}
	ctx.Surrogates = res
	ctx.Report.Infof("generate", "%d surrogates (%s)", len(res.Surrogates()), res.Counters())
	return ctx
})

// Synthesize builds every unit.
var Synthesize = ProcessorFunc(func(ctx *Context) *Context {
	var facts reflfacts.Store
	if ctx.Facts != nil {
		facts = ctx.Facts
	}
	out, err := synth.New(ctx.Surrogates, facts, synth.OptionsFrom(ctx.Options, ctx.Dynamic)).Run()
	if err != nil {
		ctx.Err = err
		return ctx
	}
	ctx.Output = out
	ctx.Report.Infof("synth", "%d units, %d creations, %d callbacks, doItAll has %d statements",
		len(out.Units), out.Stats.Creations, out.Stats.Callbacks, out.Stats.Statements)
	return ctx
})

// Emit writes the units to the configured sink or output directory.
var Emit = ProcessorFunc(func(ctx *Context) *Context {
	opts := ctx.Options
	ctx.Manifest = &emit.Manifest{
		Fingerprint: config.Fingerprint(ctx.Inputs...),
		Format:      opts.Output.Format,
		Classes:     ctx.Output.Counters.Classes,
		Methods:     ctx.Output.Counters.Methods,
	}
	if opts.Output.Sink != "" {
		ctx.Err = emitRemote(ctx)
		return ctx
	}
	ctx.Err = emitDirectory(ctx)
	return ctx
})

func emitRemote(ctx *Context) error {
	opts := ctx.Options
	remote, err := emit.Dial(opts.Output.Sink)
	if err != nil {
		return err
	}
	defer remote.Close()
	if err := emit.WriteAll(ctx.Ctx, remote, ctx.Output.Units, opts.Output.Parallel); err != nil {
		return err
	}
	ctx.Manifest.Format = config.FormatBinary
	ctx.Manifest.Artifacts = remote.Entries()
	ctx.Report.Infof("emit", "sent %d artifacts to %s", len(ctx.Manifest.Artifacts), opts.Output.Sink)
	return nil
}

// emitDirectory writes into a fresh directory next to the output directory
// and moves it into place only after every artifact was written.
func emitDirectory(ctx *Context) (err error) {
	opts := ctx.Options
	dir := opts.Resolve(opts.Output.Dir)
	if err := replaceable(dir); err != nil {
		return err
	}
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("creating output parent: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+"-*")
	if err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(tmp)
		}
	}()

	if err := os.Chmod(tmp, 0o755); err != nil {
		return err
	}

	d := &emit.Directory{Dir: tmp, Format: opts.Output.Format}
	if err := emit.WriteAll(ctx.Ctx, d, ctx.Output.Units, opts.Output.Parallel); err != nil {
		return err
	}
	ctx.Manifest.Artifacts = d.Entries()
	if err := emit.WriteManifest(tmp, ctx.Manifest); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("replacing %s: %w", dir, err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return fmt.Errorf("replacing %s: %w", dir, err)
	}
	ctx.Report.Infof("emit", "wrote %d artifacts to %s", len(ctx.Manifest.Artifacts), dir)
	return nil
}

// replaceable fails unless dir is missing, empty or a previous build output.
func replaceable(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(entries) == 0) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking output directory: %w", err)
	}
	if _, err := os.Stat(filepath.Join(dir, emit.ManifestFile)); err != nil {
		return fmt.Errorf("%w: output directory %s is not empty and has no %s", config.ErrInvalid, dir, emit.ManifestFile)
	}
	return nil
}
