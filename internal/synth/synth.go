// Package synth builds the surrogate library: the two root classes, the
// do-it-all procedure that models every effect the library may have on the
// application, and conservative bodies for every concrete library method.
package synth

import (
	"errors"
	"fmt"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/hierarchy"
	"github.com/funvibe/surrogate/internal/ir"
	"github.com/funvibe/surrogate/internal/reflfacts"
	"github.com/funvibe/surrogate/internal/surrogate"
	"github.com/funvibe/surrogate/internal/typesystem"
)

var doItAllSub = "void " + config.DoItAllMethod + "()"

// rootCounters counts the two root classes and their five methods.
var rootCounters = surrogate.Counters{Classes: 2, Methods: 5}

// Stats describes the generated do-it-all procedure and library bodies.
type Stats struct {
	Creations     int
	Callbacks     int
	LibraryBodies int
	Statements    int
}

// Output is the result of one synthesis run.
type Output struct {
	// Units are the artifacts to emit: the root classes, the library classes
	// sorted by name, then the surrogates in generation order.
	Units []*ir.Unit

	// Counters includes the surrogates and the root classes.
	Counters surrogate.Counters

	// Index sees the surrogates and the root classes.
	Index hierarchy.Index

	// DoItAll is the body of the library's do-it-all method.
	DoItAll *ir.Body

	Stats Stats
}

// Synthesizer holds the state of one run. It is not safe for concurrent use
// and Run may be called once.
type Synthesizer struct {
	sr    *surrogate.Result
	facts reflfacts.Store
	opts  Options

	idx       hierarchy.Index
	abstract  *typesystem.Class
	library   *typesystem.Class
	sentinels ir.Sentinels
	stats     Stats
}

// New prepares a run over the hierarchy extended by sr. facts may be nil when
// reflection is disabled.
func New(sr *surrogate.Result, facts reflfacts.Store, opts Options) *Synthesizer {
	if facts == nil {
		facts = reflfacts.NewFacts()
	}
	return &Synthesizer{sr: sr, facts: facts, opts: opts.withDefaults()}
}

// Run synthesizes every artifact. Any unresolved lookup fails the whole run
// and nothing is returned.
func (s *Synthesizer) Run() (out *Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok || !errors.Is(e, ir.ErrInvariant) {
				panic(r)
			}
			out, err = nil, fmt.Errorf("synthesizing library: %w", e)
		}
	}()

	base := s.sr.Index()
	var libClasses []*typesystem.Class
	for _, c := range base.LibraryClasses() {
		if c.Phantom {
			if !s.opts.SkipPhantoms {
				return nil, fmt.Errorf("%w: phantom library class %s (set phantoms: skip to leave it out)", config.ErrInvalid, c.Name)
			}
			continue
		}
		libClasses = append(libClasses, c)
	}

	s.abstract, s.library = s.rootClasses()
	idx, err := base.With(s.abstract, s.library)
	if err != nil {
		return nil, fmt.Errorf("adding library root classes: %w", err)
	}
	s.idx = idx
	s.sentinels = ir.Sentinels{Holder: s.abstract.Name}

	units, err := s.rootUnits()
	if err != nil {
		return nil, err
	}
	doItAll := units[1].Body(doItAllSub)

	for _, c := range libClasses {
		u, err := s.libraryUnit(c)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	for _, c := range s.sr.Surrogates() {
		u, err := s.libraryUnit(c)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}

	for _, u := range units {
		if err := u.Validate(s.idx); err != nil {
			return nil, fmt.Errorf("validating %s: %w", u.Class.Name, err)
		}
	}

	s.stats.Statements = len(doItAll.Stmts)
	return &Output{
		Units:    units,
		Counters: s.sr.Counters().Add(rootCounters),
		Index:    s.idx,
		DoItAll:  doItAll,
		Stats:    s.stats,
	}, nil
}

// view returns a typed view of LPT after checking that t names known classes.
func (s *Synthesizer) view(b *ir.Body, t typesystem.Type) (ir.Value, error) {
	if err := s.resolvable(t); err != nil {
		return nil, err
	}
	return b.View(t), nil
}

func (s *Synthesizer) resolvable(t typesystem.Type) error {
	if name := typesystem.BaseClass(t); name != "" {
		if _, ok := s.idx.Class(name); !ok {
			return fmt.Errorf("typed view of %s: class %s: %w", t, name, hierarchy.ErrNotFound)
		}
	}
	return nil
}

// views returns one typed view per parameter type.
func (s *Synthesizer) views(b *ir.Body, ts []typesystem.Type) ([]ir.Value, error) {
	out := make([]ir.Value, 0, len(ts))
	for _, t := range ts {
		v, err := s.view(b, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// localView is view for reference types, which always yields a local.
func (s *Synthesizer) localView(b *ir.Body, t typesystem.Type) (*ir.Local, error) {
	v, err := s.view(b, t)
	if err != nil {
		return nil, err
	}
	l, ok := v.(*ir.Local)
	if !ok {
		panic(fmt.Errorf("%w: view of %s is not a local", ir.ErrInvariant, t))
	}
	return l, nil
}

// method resolves a well-known signature.
func (s *Synthesizer) method(sig string) (typesystem.MethodRef, error) {
	m, err := s.idx.ResolveMethod(sig)
	if err != nil {
		return typesystem.MethodRef{}, err
	}
	return m.Ref(), nil
}
