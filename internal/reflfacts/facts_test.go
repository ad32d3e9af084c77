package reflfacts

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const testLog = `Class.forName;app.Plugin;app.Main.load;12;;
Class.newInstance;app.Plugin;app.Main.load;13;;
Method.invoke;<app.Plugin: void start()>;app.Main.load;14;;
Constructor.newInstance;<app.Widget: void <init>(int)>;app.Main.make;20;;
Array.newInstance;app.Widget[];app.Main.make;21;;
Array.newInstance;[[I;app.Main.make;22;;
Field.get;<app.Widget: int size>;app.Main.make;23;;

Class.forName;app.Plugin;app.Other.load;40;;
`

func TestParseTamiFlex(t *testing.T) {
	facts, err := ParseTamiFlex(strings.NewReader(testLog))
	if err != nil {
		t.Fatalf("ParseTamiFlex: %v", err)
	}
	tests := []struct {
		name string
		got  []string
		want []string
	}{
		{"forName", facts.ClassForNames(), []string{"app.Plugin"}},
		{"newInstance", facts.ClassNewInstances(), []string{"app.Plugin"}},
		{"invoke", facts.MethodInvokes(), []string{"<app.Plugin: void start()>"}},
		{"constructor", facts.ConstructorNewInstances(), []string{"<app.Widget: void <init>(int)>"}},
		{"array", facts.ArrayNewInstances(), []string{"app.Widget[]", "int[][]"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
	if facts.Len() != 6 {
		t.Errorf("Len = %d, want 6", facts.Len())
	}
}

func TestParseTamiFlex_Malformed(t *testing.T) {
	_, err := ParseTamiFlex(strings.NewReader("Class.forName\n"))
	if err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("expected line error, got %v", err)
	}
}

func TestFacts_AddRejectsUnknownKind(t *testing.T) {
	var f Facts
	if err := f.Add("Proxy.newProxyInstance", "x"); err == nil {
		t.Error("expected error for unknown kind")
	}
	if err := f.Add(ClassForName, " "); err == nil {
		t.Error("expected error for empty target")
	}
	if len(f.ClassForNames()) != 0 {
		t.Error("rejected facts must not be stored")
	}
}

func TestDB_ImportAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "facts.db")

	facts, err := ParseTamiFlex(strings.NewReader(testLog))
	if err != nil {
		t.Fatal(err)
	}
	db, err := OpenDB(ctx, path)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	added, err := db.Import(ctx, facts)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if added != 6 {
		t.Errorf("added = %d, want 6", added)
	}
	again, err := db.Import(ctx, facts)
	if err != nil {
		t.Fatal(err)
	}
	if again != 0 {
		t.Errorf("re-import added %d, want 0", again)
	}
	counts, err := db.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[ArrayNewInstance] != 2 {
		t.Errorf("array count = %d, want 2", counts[ArrayNewInstance])
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(ctx, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, kind := range Kinds {
		if !reflect.DeepEqual(loaded.List(kind), facts.List(kind)) {
			t.Errorf("%s: got %v, want %v", kind, loaded.List(kind), facts.List(kind))
		}
	}
}

func TestLoad_TamiFlexFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refl.log")
	if err := os.WriteFile(path, []byte(testLog), 0o644); err != nil {
		t.Fatal(err)
	}
	facts, err := Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(facts.MethodInvokes()) != 1 {
		t.Errorf("method invokes = %v", facts.MethodInvokes())
	}
}
