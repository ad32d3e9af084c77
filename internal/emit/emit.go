// Package emit writes synthesized units as listing or binary artifacts, to a
// directory or to a remote artifact sink.
package emit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/ir"
	"github.com/funvibe/surrogate/internal/typesystem"
)

// Emitter receives each finished unit exactly once. Emit may be called
// concurrently for different units.
type Emitter interface {
	Emit(ctx context.Context, u *ir.Unit) error
}

// Extensions of the two artifact formats.
const (
	ListingExt = ".sgl"
	BinaryExt  = ".sgc"
)

// FileName returns the artifact file name of a class in the given format.
func FileName(class, format string) string {
	if format == config.FormatBinary {
		return class + BinaryExt
	}
	return class + ListingExt
}

// ErrBadClassName is returned for class names that cannot name an artifact file.
var ErrBadClassName = errors.New("invalid class name")

// checkClassName accepts dotted class names only, so the artifact file
// always lands directly inside its directory.
func checkClassName(class string) error {
	t, err := typesystem.ParseType(class)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrBadClassName, class, err)
	}
	if _, ok := t.(typesystem.RefType); !ok || strings.ContainsAny(class, `/\`) {
		return fmt.Errorf("%w %q", ErrBadClassName, class)
	}
	for _, part := range strings.Split(class, ".") {
		if part == "" {
			return fmt.Errorf("%w %q", ErrBadClassName, class)
		}
	}
	return nil
}

// recorder collects manifest entries from concurrent emitters.
type recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *recorder) record(u *ir.Unit, file string, size int) {
	e := Entry{
		ID:     ArtifactID(u.Class.Name).String(),
		Class:  u.Class.Name,
		Origin: u.Class.Origin.String(),
		File:   file,
		Size:   size,
	}
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

// Entries returns the recorded entries sorted by class name.
func (r *recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]Entry(nil), r.entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].Class < out[j].Class })
	return out
}

// Directory writes one file per unit into Dir.
type Directory struct {
	Dir    string
	Format string

	recorder
}

// NewDirectory creates an emitter writing into dir, creating it if needed.
func NewDirectory(dir, format string) (*Directory, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &Directory{Dir: dir, Format: format}, nil
}

func (d *Directory) Emit(ctx context.Context, u *ir.Unit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkClassName(u.Class.Name); err != nil {
		return err
	}
	var data []byte
	if d.Format == config.FormatBinary {
		var err error
		if data, err = Encode(u); err != nil {
			return err
		}
	} else {
		data = []byte(u.Listing())
	}
	name := FileName(u.Class.Name, d.Format)
	if err := os.WriteFile(filepath.Join(d.Dir, name), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	d.record(u, name, len(data))
	return nil
}

// WriteAll emits every unit with at most parallel concurrent Emit calls.
// The first error cancels the remaining work and is returned.
func WriteAll(ctx context.Context, e Emitter, units []*ir.Unit, parallel int) error {
	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for _, u := range units {
		g.Go(func() error {
			if err := e.Emit(ctx, u); err != nil {
				return fmt.Errorf("emitting %s: %w", u.Class.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
