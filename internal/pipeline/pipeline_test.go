package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/emit"
	"github.com/funvibe/surrogate/internal/report"
)

const universe = `schema: "1.0"
classes:
  - name: lib.Shape
    modifiers: [public, interface]
    methods:
      - "public abstract double area()"
  - name: lib.Canvas
    methods:
      - "public void draw(lib.Shape s)"
  - name: app.Circle
    partition: application
    interfaces: [lib.Shape]
    methods:
      - "public double area()"
name_constants: [app.Circle]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func setup(t *testing.T, extra string) *config.Options {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "universe.yaml"), universe)
	writeFile(t, filepath.Join(dir, "refl.log"), "Class.forName;app.Circle;app.Main.main;12\n")
	path := filepath.Join(dir, "surrogate.yaml")
	writeFile(t, path, "hierarchy:\n  universe: universe.yaml\n"+extra)
	opts, err := config.LoadOptions(path)
	if err != nil {
		t.Fatalf("LoadOptions: %v", err)
	}
	return opts
}

func quiet() *report.Reporter { return report.New(io.Discard, true) }

func TestBuild_WritesArtifactsAndManifest(t *testing.T) {
	opts := setup(t, "reflection:\n  enabled: true\n  facts: refl.log\noutput:\n  dir: out\n  parallel: 2\n")
	out, err := Run(context.Background(), Build(), opts, quiet())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	dir := opts.Resolve("out")
	m, err := emit.ReadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Artifacts) != len(out.Output.Units) {
		t.Errorf("manifest lists %d artifacts, built %d units", len(m.Artifacts), len(out.Output.Units))
	}
	if m.Classes != out.Output.Counters.Classes || len(m.Fingerprint) != 16 {
		t.Errorf("manifest = %+v", m)
	}
	data, err := os.ReadFile(filepath.Join(dir, "surrogate.Library"+emit.ListingExt))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<java.lang.Class: java.lang.Class forName(java.lang.String)>") {
		t.Errorf("library listing lacks the reflective instantiation:\n%s", data)
	}

	// A second build replaces the directory and keeps the fingerprint.
	again, err := Run(context.Background(), Build(), opts, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if again.Manifest.Fingerprint != m.Fingerprint {
		t.Error("fingerprint changed between identical builds")
	}
	entries, err := os.ReadDir(filepath.Dir(dir))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".out-") {
			t.Errorf("staging directory left behind: %s", e.Name())
		}
	}
}

func TestBuild_BinaryFormat(t *testing.T) {
	opts := setup(t, "output:\n  dir: bin\n  format: binary\n")
	if _, err := Run(context.Background(), Build(), opts, quiet()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(opts.Resolve("bin"), "lib.Shape$Surrogate"+emit.BinaryExt))
	if err != nil {
		t.Fatal(err)
	}
	msg, err := emit.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if emit.ClassName(msg) != "lib.Shape$Surrogate" {
		t.Errorf("class = %s", emit.ClassName(msg))
	}
}

func TestBuild_StopsAtFirstError(t *testing.T) {
	opts := setup(t, "dynamic_classes:\n  enabled: true\n  names: [app.Missing]\noutput:\n  dir: out\n")
	out, err := Run(context.Background(), Build(), opts, quiet())
	if err == nil {
		t.Fatal("expected error for unknown dynamic class")
	}
	if out.Output != nil {
		t.Error("synthesis output must not be kept after a failure")
	}
	if _, statErr := os.Stat(opts.Resolve("out")); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("output directory written despite failure: %v", statErr)
	}
}

func TestBuild_KeepsForeignOutputDirectory(t *testing.T) {
	opts := setup(t, "output:\n  dir: out\n")
	keep := filepath.Join(opts.Resolve("out"), "notes.txt")
	writeFile(t, keep, "not a build product")

	if _, err := Run(context.Background(), Build(), opts, quiet()); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}

	// A directory written by an earlier build may be replaced.
	if err := os.Remove(keep); err != nil {
		t.Fatal(err)
	}
	if _, err := Run(context.Background(), Build(), opts, quiet()); err != nil {
		t.Fatal(err)
	}
	if _, err := Run(context.Background(), Build(), opts, quiet()); err != nil {
		t.Errorf("rebuild over previous output: %v", err)
	}
}

func TestLoadOptions_OutputOverInputs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "universe.yaml"), universe)
	path := filepath.Join(dir, "surrogate.yaml")
	writeFile(t, path, "hierarchy:\n  universe: universe.yaml\noutput:\n  dir: .\n")

	if _, err := config.LoadOptions(path); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "universe.yaml")); err != nil {
		t.Errorf("universe missing: %v", err)
	}
}

func TestCheck_Phantoms(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "universe.yaml"), strings.Replace(universe,
		"name_constants:", "  - name: lib.Ghost\n    phantom: true\nname_constants:", 1))

	tests := []struct {
		policy  string
		wantErr bool
	}{
		{"error", true},
		{"skip", false},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			path := filepath.Join(dir, "surrogate-"+tt.policy+".yaml")
			writeFile(t, path, "hierarchy:\n  universe: universe.yaml\nphantoms: "+tt.policy+"\n")
			opts, err := config.LoadOptions(path)
			if err != nil {
				t.Fatal(err)
			}
			out, err := Run(context.Background(), Check(), opts, quiet())
			if tt.wantErr {
				if !errors.Is(err, config.ErrInvalid) {
					t.Fatalf("expected ErrInvalid, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if out.Manifest != nil {
				t.Error("check must not emit")
			}
		})
	}
}

func TestCheck_WarnsOnInterfaceWithoutAbstractMethods(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "universe.yaml"), strings.Replace(universe,
		`"public abstract double area()"`, `"public double area()"`, 1))
	path := filepath.Join(dir, "surrogate.yaml")
	writeFile(t, path, "hierarchy:\n  universe: universe.yaml\n")
	opts, err := config.LoadOptions(path)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := Run(context.Background(), Check(), opts, report.New(&buf, false)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "[load] warning: interface lib.Shape declares no abstract methods") {
		t.Errorf("missing warning, got %q", buf.String())
	}
}

func TestRun_Cancelled(t *testing.T) {
	opts := setup(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, Check(), opts, quiet()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
