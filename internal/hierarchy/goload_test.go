package hierarchy

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestGoLoader_Module loads a small throwaway module with go/packages.
func TestGoLoader_Module(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available")
	}

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "go.mod"), "module example.com/demo\n\ngo 1.21\n")
	writeFile(t, filepath.Join(dir, "lib", "lib.go"), `package lib

type Handler interface {
	Handle(name string, n int) error
}

type Shape interface {
	Area() float64
}

type Registry struct {
	Items []Handler
}

func (r *Registry) Add(h Handler) { r.Items = append(r.Items, h) }
`)
	writeFile(t, filepath.Join(dir, "app", "app.go"), `package app

import "example.com/demo/lib"

type Printer struct{}

func (p *Printer) Handle(name string, n int) error { return nil }

func Setup(r *lib.Registry) {
	r.Add(&Printer{})
	_ = "example.com/demo/app.Printer"
}
`)

	l := &GoLoader{Dir: dir, Library: []string{"./lib"}, Application: []string{"./app"}}
	u, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	handler, ok := u.Class("example.com/demo/lib.Handler")
	if !ok || !handler.IsInterface() {
		t.Fatal("lib.Handler should be an interface")
	}
	if sub := handler.Methods[0].SubSignature(); sub != "void Handle(java.lang.String,long)" {
		t.Errorf("Handle sub-signature = %s", sub)
	}

	printer, ok := u.Class("example.com/demo/app.Printer")
	if !ok || !printer.IsApplication() {
		t.Fatal("app.Printer should be an application class")
	}
	if len(printer.Interfaces) != 1 || printer.Interfaces[0] != "example.com/demo/lib.Handler" {
		t.Errorf("Printer interfaces = %v", printer.Interfaces)
	}

	overrides := u.LibraryOverridesOfApplicationMethods()
	if len(overrides) != 1 || overrides[0].Declaring.Name != "example.com/demo/lib.Handler" {
		t.Errorf("overrides = %v", overrides)
	}
	if got := u.ApplicationClassNameConstants(); len(got) != 1 || got[0].Name != printer.Name {
		t.Errorf("name constants = %v", got)
	}
	if u.HasConcreteImplementation("example.com/demo/lib.Shape") {
		t.Error("lib.Shape has no library implementer")
	}
}
