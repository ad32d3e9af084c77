package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseOptions_Defaults(t *testing.T) {
	opts, err := ParseOptions([]byte("hierarchy:\n  universe: u.yaml\n"), "/work/surrogate.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if opts.Platform != PlatformJava || opts.Phantoms != PhantomsError || opts.Output.Format != FormatListing {
		t.Errorf("defaults not applied: %+v", opts)
	}
	if opts.Naming.Suffix != DefaultSurrogateSuffix || opts.Naming.LibraryClass != DefaultLibraryClass {
		t.Errorf("naming defaults not applied: %+v", opts.Naming)
	}
	if got := opts.Resolve("u.yaml"); got != filepath.Join("/work", "u.yaml") {
		t.Errorf("Resolve = %q", got)
	}
	if got := opts.Resolve("/abs/u.yaml"); got != "/abs/u.yaml" {
		t.Errorf("Resolve(abs) = %q", got)
	}
	if opts.IsAndroid() || opts.SkipPhantoms() {
		t.Error("android and skip must be opt-in")
	}
}

func TestParseOptions_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no hierarchy", "platform: java\n"},
		{"both sources", "hierarchy:\n  universe: u.yaml\n  go:\n    dir: .\n    library: [./lib/...]\n"},
		{"go without library", "hierarchy:\n  go:\n    dir: .\n"},
		{"constructors without reflection", "hierarchy:\n  universe: u.yaml\nreflection:\n  constructors: true\n"},
		{"reflection without facts", "hierarchy:\n  universe: u.yaml\nreflection:\n  enabled: true\n"},
		{"dynamic without names", "hierarchy:\n  universe: u.yaml\ndynamic_classes:\n  enabled: true\n"},
		{"unknown platform", "hierarchy:\n  universe: u.yaml\nplatform: ios\n"},
		{"lifecycle on java", "hierarchy:\n  universe: u.yaml\nlifecycle:\n  classes: [android.app.Activity]\n"},
		{"unknown phantom policy", "hierarchy:\n  universe: u.yaml\nphantoms: ignore\n"},
		{"unknown format", "hierarchy:\n  universe: u.yaml\noutput:\n  format: jar\n"},
		{"negative parallel", "hierarchy:\n  universe: u.yaml\noutput:\n  parallel: -1\n"},
		{"output over options dir", "hierarchy:\n  universe: u.yaml\noutput:\n  dir: .\n"},
		{"output above options dir", "hierarchy:\n  universe: u.yaml\noutput:\n  dir: ..\n"},
		{"output holds universe", "hierarchy:\n  universe: data/u.yaml\noutput:\n  dir: data\n"},
		{"output holds facts", "hierarchy:\n  universe: u.yaml\nreflection:\n  enabled: true\n  facts: logs/refl.log\noutput:\n  dir: logs\n"},
		{"same root names", "hierarchy:\n  universe: u.yaml\nnaming:\n  library_class: a.L\n  abstract_library_class: a.L\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOptions([]byte(tt.yaml), "surrogate.yaml")
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}

	for _, dir := range []string{"out", "../elsewhere", "data-out"} {
		data := "hierarchy:\n  universe: data/u.yaml\noutput:\n  dir: " + dir + "\n"
		if _, err := ParseOptions([]byte(data), "surrogate.yaml"); err != nil {
			t.Errorf("output.dir %s rejected: %v", dir, err)
		}
	}
	if _, err := ParseOptions([]byte("hierarchy:\n  universe: u.yaml\noutput:\n  dir: .\n  sink: localhost:9000\n"), "surrogate.yaml"); err != nil {
		t.Errorf("output.dir is unused with a sink: %v", err)
	}

	if _, err := ParseOptions([]byte("hierarchy:\n  universe: u.yaml\nunknown: 1\n"), "surrogate.yaml"); err == nil {
		t.Error("unknown keys must be rejected")
	}
}

func TestDynamicClassNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dynamic.txt"), []byte("# plugins\napp.PluginA\n\napp.Main\n  app.PluginB  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "surrogate.yaml")
	data := "hierarchy:\n  universe: u.yaml\ndynamic_classes:\n  enabled: true\n  names: [app.Main]\n  file: dynamic.txt\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	opts, err := LoadOptions(path)
	if err != nil {
		t.Fatal(err)
	}
	names, err := opts.DynamicClassNames()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"app.Main", "app.PluginA", "app.PluginB"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	opts.DynamicClasses.Enabled = false
	if names, _ := opts.DynamicClassNames(); names != nil {
		t.Errorf("disabled dynamic classes returned %v", names)
	}
}

func TestFindOptions(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, "surrogate.yml")
	if err := os.WriteFile(want, []byte("hierarchy:\n  universe: u.yaml\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := FindOptions(nested)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("FindOptions = %q, want %q", got, want)
	}
}

func TestIsLifecycleMethod(t *testing.T) {
	opts, err := ParseOptions([]byte(`hierarchy:
  universe: u.yaml
platform: android
lifecycle:
  classes: [android.app.Activity]
  methods: ["void onCreate(android.os.Bundle)"]
`), "surrogate.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if !opts.IsAndroid() {
		t.Fatal("platform android not applied")
	}
	if !opts.IsLifecycleMethod("android.app.Activity", "void onCreate(android.os.Bundle)") {
		t.Error("onCreate on Activity is a lifecycle method")
	}
	if opts.IsLifecycleMethod("app.Main", "void onCreate(android.os.Bundle)") {
		t.Error("lifecycle classification is per class")
	}
	if opts.IsLifecycleMethod("android.app.Activity", "void onClick()") {
		t.Error("onClick is not a lifecycle method")
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("options"), []byte("universe"))
	if len(a) != 16 {
		t.Fatalf("fingerprint length = %d", len(a))
	}
	if a != Fingerprint([]byte("options"), []byte("universe")) {
		t.Error("fingerprint is not deterministic")
	}
	if a == Fingerprint([]byte("optionsuniverse")) {
		t.Error("input boundaries must affect the fingerprint")
	}
}
