// Package pipeline runs a surrogate build as a sequence of stages sharing one Context.
package pipeline

import (
	"context"
	"fmt"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/emit"
	"github.com/funvibe/surrogate/internal/hierarchy"
	"github.com/funvibe/surrogate/internal/reflfacts"
	"github.com/funvibe/surrogate/internal/report"
	"github.com/funvibe/surrogate/internal/surrogate"
	"github.com/funvibe/surrogate/internal/synth"
)

// Context carries the inputs and products of one build between stages.
type Context struct {
	Ctx     context.Context
	Options *config.Options
	Report  *report.Reporter

	Universe   *hierarchy.Universe
	Facts      *reflfacts.Facts
	Dynamic    []string
	Surrogates *surrogate.Result
	Output     *synth.Output
	Manifest   *emit.Manifest

	// Inputs are the raw bytes the fingerprint is computed over.
	Inputs [][]byte

	// Err is the first stage error; later stages do not run.
	Err error
}

// NewContext starts a build of opts.
func NewContext(ctx context.Context, opts *config.Options, rep *report.Reporter) *Context {
	return &Context{Ctx: ctx, Options: opts, Report: rep}
}

// Processor is one stage of a build.
type Processor interface {
	Process(ctx *Context) *Context
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx *Context) *Context

func (f ProcessorFunc) Process(ctx *Context) *Context { return f(ctx) }

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline, stopping at the first stage that sets Err or
// when the context is cancelled.
func (p *Pipeline) Run(initialCtx *Context) *Context {
	ctx := initialCtx
	for _, processor := range p.processors {
		if ctx.Err != nil {
			break
		}
		if err := ctx.Ctx.Err(); err != nil {
			ctx.Err = err
			break
		}
		ctx = processor.Process(ctx)
	}
	return ctx
}

// Check returns the stages that validate inputs and synthesize without writing.
func Check() *Pipeline {
	return New(LoadHierarchy, LoadFacts, ResolveDynamic, Generate, Synthesize)
}

// Build returns the full build pipeline.
func Build() *Pipeline {
	return New(LoadHierarchy, LoadFacts, ResolveDynamic, Generate, Synthesize, Emit)
}

// Run builds opts and returns the final context or the first error.
func Run(ctx context.Context, p *Pipeline, opts *config.Options, rep *report.Reporter) (*Context, error) {
	out := p.Run(NewContext(ctx, opts, rep))
	if out.Err != nil {
		return out, fmt.Errorf("build failed: %w", out.Err)
	}
	return out, nil
}
