package emit

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/ir"
	"github.com/funvibe/surrogate/internal/typesystem"
)

func testUnit(name string) *ir.Unit {
	c := typesystem.NewClass(name, typesystem.Public, typesystem.OriginLibrary)
	c.Super = "java.lang.Object"
	c.Interfaces = []string{"lib.Named"}
	c.AddField(&typesystem.Field{Name: "label", Type: typesystem.Ref("java.lang.String"), Modifiers: typesystem.Private})
	m := typesystem.NewMethod("name", nil, typesystem.Ref("java.lang.String"), typesystem.Public)
	c.AddMethod(m)

	u := ir.NewUnit(c)
	b := ir.NewBody(m, ir.Sentinels{Holder: name, ViaThis: true})
	b.AddIdentities()
	b.Return(b.View(typesystem.Ref("java.lang.String")))
	u.Add(b)
	return u
}

func TestEncodeDecode(t *testing.T) {
	u := testUnit("lib.Widget")
	data, err := Encode(u)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("SGC\x01")) {
		t.Fatalf("missing header: %q", data[:4])
	}
	msg, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ClassName(msg) != "lib.Widget" {
		t.Errorf("class = %q", ClassName(msg))
	}

	var sb strings.Builder
	if err := Dump(&sb, msg); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	for _, want := range []string{
		`class_name: "lib.Widget"`,
		`interfaces: "lib.Named"`,
		`sub_signature: "java.lang.String name()"`,
		`statements: "return r2"`,
		"fields {",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"wrong magic", []byte("XYZ\x01abc")},
		{"wrong version", []byte("SGC\x09")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); !errors.Is(err, ErrNotArtifact) {
				t.Errorf("expected ErrNotArtifact, got %v", err)
			}
		})
	}
}

func TestDirectory_WriteAllAndManifest(t *testing.T) {
	for _, format := range []string{config.FormatListing, config.FormatBinary} {
		t.Run(format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")
			d, err := NewDirectory(dir, format)
			if err != nil {
				t.Fatal(err)
			}
			units := []*ir.Unit{testUnit("lib.B"), testUnit("lib.A"), testUnit("lib.C")}
			if err := WriteAll(context.Background(), d, units, 2); err != nil {
				t.Fatalf("WriteAll: %v", err)
			}

			entries := d.Entries()
			if len(entries) != 3 || entries[0].Class != "lib.A" || entries[2].Class != "lib.C" {
				t.Fatalf("entries = %+v", entries)
			}
			for _, e := range entries {
				info, err := os.Stat(filepath.Join(dir, e.File))
				if err != nil {
					t.Fatal(err)
				}
				if int(info.Size()) != e.Size {
					t.Errorf("%s: size %d, recorded %d", e.File, info.Size(), e.Size)
				}
			}
			if format == config.FormatBinary && !strings.HasSuffix(entries[0].File, BinaryExt) {
				t.Errorf("binary file name = %s", entries[0].File)
			}

			m := &Manifest{Fingerprint: "abc", Format: format, Classes: 3, Artifacts: entries}
			if err := WriteManifest(dir, m); err != nil {
				t.Fatal(err)
			}
			got, err := ReadManifest(dir)
			if err != nil {
				t.Fatal(err)
			}
			if got.Fingerprint != "abc" || len(got.Artifacts) != 3 || got.Artifacts[1].ID != entries[1].ID {
				t.Errorf("manifest = %+v", got)
			}
		})
	}
}

type failing struct{ calls atomic.Int32 }

func (f *failing) Emit(ctx context.Context, u *ir.Unit) error {
	f.calls.Add(1)
	if u.Class.Name == "lib.Bad" {
		return errors.New("disk full")
	}
	return nil
}

func TestWriteAll_PropagatesError(t *testing.T) {
	f := &failing{}
	err := WriteAll(context.Background(), f, []*ir.Unit{testUnit("lib.Good"), testUnit("lib.Bad")}, 1)
	if err == nil || !strings.Contains(err.Error(), "emitting lib.Bad: disk full") {
		t.Fatalf("err = %v", err)
	}
}

func TestArtifactID_Stable(t *testing.T) {
	if ArtifactID("lib.A") != ArtifactID("lib.A") {
		t.Error("ids differ for the same class")
	}
	if ArtifactID("lib.A") == ArtifactID("lib.B") {
		t.Error("ids collide for different classes")
	}
	if v := ArtifactID("lib.A").Version(); v != 5 {
		t.Errorf("version = %d, want 5", v)
	}
}

func TestRemoteSink(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	if err != nil {
		t.Fatal(err)
	}
	var received atomic.Int32
	sink.Received = func(string, int) { received.Add(1) }

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	go func() { _ = sink.Serve(lis) }()
	defer sink.Stop()

	remote, err := Dial(lis.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer remote.Close()

	if err := WriteAll(context.Background(), remote, []*ir.Unit{testUnit("lib.A"), testUnit("lib.B")}, 2); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if received.Load() != 2 {
		t.Errorf("received = %d", received.Load())
	}
	data, err := os.ReadFile(filepath.Join(dir, "lib.B"+BinaryExt))
	if err != nil {
		t.Fatal(err)
	}
	msg, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if ClassName(msg) != "lib.B" {
		t.Errorf("stored class = %q", ClassName(msg))
	}
	if entries := remote.Entries(); len(entries) != 2 || entries[0].Size == 0 {
		t.Errorf("remote entries = %+v", entries)
	}
}

func TestRemoteSink_RejectsUnsafeClassNames(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "sink")
	sink, err := NewSink(dir)
	if err != nil {
		t.Fatal(err)
	}
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	go func() { _ = sink.Serve(lis) }()
	defer sink.Stop()

	remote, err := Dial(lis.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer remote.Close()

	for _, class := range []string{"../escaped", "lib/../../escaped", "..", ".hidden", "lib..A", "int", "lib.A[]"} {
		t.Run(class, func(t *testing.T) {
			err := remote.Emit(context.Background(), testUnit(class))
			if status.Code(err) != codes.InvalidArgument {
				t.Fatalf("expected InvalidArgument, got %v", err)
			}
		})
	}
	if _, err := os.Stat(filepath.Join(root, "escaped"+BinaryExt)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("artifact written outside the sink directory: %v", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("sink stored %d rejected artifacts", len(entries))
	}
}

func TestDirectory_RejectsUnsafeClassNames(t *testing.T) {
	root := t.TempDir()
	d, err := NewDirectory(filepath.Join(root, "out"), config.FormatListing)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Emit(context.Background(), testUnit("../escaped")); !errors.Is(err, ErrBadClassName) {
		t.Fatalf("expected ErrBadClassName, got %v", err)
	}
	if err := d.Emit(context.Background(), testUnit("lib.Shape$Surrogate")); err != nil {
		t.Errorf("surrogate names must be accepted: %v", err)
	}
}
