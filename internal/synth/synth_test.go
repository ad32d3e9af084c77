package synth

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/hierarchy"
	"github.com/funvibe/surrogate/internal/ir"
	"github.com/funvibe/surrogate/internal/reflfacts"
	"github.com/funvibe/surrogate/internal/surrogate"
	"github.com/funvibe/surrogate/internal/typesystem"
)

const testUniverse = `
schema: "1.0"
classes:
  - name: lib.EventHandler
    modifiers: [public, interface]
    methods:
      - "public abstract void onEvent()"
  - name: lib.Registry
    modifiers: [public]
    fields:
      - "private lib.EventHandler handler"
      - "private static int count"
    methods:
      - "public <init>(java.lang.String name)"
      - "static <clinit>()"
      - "public void register(lib.EventHandler h)"
      - "public java.lang.String[] names()"
      - "public static int size()"
  - name: app.Listener
    partition: application
    modifiers: [public]
    interfaces: [lib.EventHandler]
    methods:
      - "public void onEvent()"
      - "public java.lang.String describe()"
  - name: app.Widget
    partition: application
    modifiers: [public]
    methods:
      - "public <init>(int size)"
  - name: app.Main
    partition: application
    modifiers: [public]
name_constants: [app.Main]
`

func generate(t *testing.T, doc string) *surrogate.Result {
	t.Helper()
	u, err := hierarchy.ParseUniverse([]byte(doc), "u.yaml")
	if err != nil {
		t.Fatalf("ParseUniverse: %v", err)
	}
	sr, err := surrogate.Generate(u, surrogate.Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return sr
}

func run(t *testing.T, facts reflfacts.Store, opts Options) *Output {
	t.Helper()
	out, err := New(generate(t, testUniverse), facts, opts).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out
}

func reflectionFacts(t *testing.T) *reflfacts.Facts {
	t.Helper()
	f := reflfacts.NewFacts()
	for _, fact := range []struct {
		kind   reflfacts.Kind
		target string
	}{
		{reflfacts.ConstructorNewInstance, "<app.Widget: void <init>(int)>"},
		{reflfacts.ClassForName, "app.Listener"},
		{reflfacts.ClassForName, "lib.Registry"},
		{reflfacts.MethodInvoke, "<app.Listener: java.lang.String describe()>"},
		{reflfacts.ArrayNewInstance, "app.Widget[]"},
	} {
		if err := f.Add(fact.kind, fact.target); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func statements(b *ir.Body) []string {
	out := make([]string, len(b.Stmts))
	for i, s := range b.Stmts {
		out[i] = s.String()
	}
	return out
}

var localName = regexp.MustCompile(`\br\d+\b`)

func normalized(b *ir.Body) []string {
	out := statements(b)
	for i, s := range out {
		out[i] = localName.ReplaceAllString(s, "r")
	}
	return out
}

func isSubsequence(sub, seq []string) bool {
	i := 0
	for _, s := range seq {
		if i < len(sub) && sub[i] == s {
			i++
		}
	}
	return i == len(sub)
}

// creations counts allocations per type name.
func creations(b *ir.Body) map[string]int {
	n := make(map[string]int)
	for _, s := range b.Stmts {
		a, ok := s.(*ir.AssignStmt)
		if !ok {
			continue
		}
		switch e := a.RHS.(type) {
		case ir.NewExpr:
			n[e.T.String()]++
		case ir.NewArrayExpr:
			n[e.T.String()]++
		}
	}
	return n
}

func findInvoke(b *ir.Body, sig string) (int, *ir.InvokeExpr) {
	for i, s := range b.Stmts {
		var e *ir.InvokeExpr
		switch s := s.(type) {
		case *ir.InvokeStmt:
			e = s.Invoke
		case *ir.AssignStmt:
			e, _ = s.RHS.(*ir.InvokeExpr)
		}
		if e != nil && e.Method.String() == sig {
			return i, e
		}
	}
	return -1, nil
}

func TestRun_DoItAll(t *testing.T) {
	out := run(t, nil, Options{})
	b := out.DoItAll

	if _, ok := b.Stmts[len(b.Stmts)-1].(*ir.ThrowStmt); !ok {
		t.Errorf("last statement = %s, want a throw", b.Stmts[len(b.Stmts)-1])
	}

	got := creations(b)
	want := map[string]int{
		"java.lang.Class":            1,
		"java.lang.Object":           1,
		"java.lang.String":           1,
		"java.lang.Throwable":        1,
		"lib.EventHandler$Surrogate": 1,
		"lib.Registry":               1,
		"app.Main":                   1,
		"java.lang.String[]":         1,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("creations = %v\nwant %v", got, want)
	}

	// The application override is reached through the library method it overrides.
	_, call := findInvoke(b, "<lib.EventHandler: void onEvent()>")
	if call == nil {
		t.Fatalf("no callback of onEvent:\n%s", strings.Join(statements(b), "\n"))
	}
	if call.Kind != ir.InterfaceCall {
		t.Errorf("onEvent dispatch = %s, want interfaceinvoke", call.Kind)
	}
	if !typesystem.Equal(call.Base.T, typesystem.Ref("lib.EventHandler")) {
		t.Errorf("onEvent receiver type = %s", call.Base.T)
	}

	if i, fin := findInvoke(b, config.FinalizeSig); fin == nil || fin.Kind != ir.VirtualCall {
		t.Error("finalize is not called")
	} else if j, _ := findInvoke(b, "<lib.EventHandler: void onEvent()>"); j < i {
		t.Error("callbacks must follow finalization")
	}

	if out.Stats.Creations != 8 || out.Stats.Callbacks != 1 {
		t.Errorf("stats = %+v", out.Stats)
	}
}

func TestRun_UnitsAndCounters(t *testing.T) {
	out := run(t, nil, Options{})
	var names []string
	for _, u := range out.Units {
		names = append(names, u.Class.Name)
	}
	want := []string{
		"surrogate.AbstractLibrary",
		"surrogate.Library",
		"java.lang.Class",
		"java.lang.Object",
		"java.lang.String",
		"java.lang.Throwable",
		"lib.EventHandler",
		"lib.Registry",
		"lib.EventHandler$Surrogate",
	}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("units = %v\nwant %v", names, want)
	}
	// One surrogate with onEvent and a constructor, plus the two root classes.
	if got := out.Counters; got != (surrogate.Counters{Classes: 3, Methods: 7}) {
		t.Errorf("counters = %+v", got)
	}
	if _, ok := out.Index.Class("surrogate.Library"); !ok {
		t.Error("output index should contain the library class")
	}
}

func TestRun_RootClasses(t *testing.T) {
	out := run(t, nil, Options{})
	lib := out.Units[1]
	if lib.Class.Super != "surrogate.AbstractLibrary" {
		t.Errorf("library super = %s", lib.Class.Super)
	}
	want := []string{
		"r0 = new surrogate.Library",
		"specialinvoke r0.<surrogate.Library: void <init>()>()",
		"<surrogate.AbstractLibrary: surrogate.AbstractLibrary instance> = r0",
		"return",
	}
	if got := statements(lib.Body("void <clinit>()")); !reflect.DeepEqual(got, want) {
		t.Errorf("<clinit> = %q", got)
	}
	abs := out.Units[0]
	if abs.Body("void doItAll()") != nil {
		t.Error("abstract doItAll must not have a body")
	}
	want = []string{
		"r0 := @this: surrogate.AbstractLibrary",
		"specialinvoke r0.<java.lang.Object: void <init>()>()",
		"return",
	}
	if got := statements(abs.Body("void <init>()")); !reflect.DeepEqual(got, want) {
		t.Errorf("abstract <init> = %q", got)
	}
}

func TestRun_LibraryBodies(t *testing.T) {
	out := run(t, nil, Options{})
	var registry, object *ir.Unit
	for _, u := range out.Units {
		switch u.Class.Name {
		case "lib.Registry":
			registry = u
		case "java.lang.Object":
			object = u
		}
	}

	lpt := "<surrogate.AbstractLibrary: java.lang.Object libraryPointsTo>"
	want := []string{
		"r0 := @this: lib.Registry",
		"r1 := @parameter0: java.lang.String",
		"specialinvoke r0.<java.lang.Object: void <init>()>()",
		"r2 = <surrogate.AbstractLibrary: surrogate.AbstractLibrary instance>",
		"r3 = r2." + lpt,
		"r4 = (lib.EventHandler) r3",
		"r0.<lib.Registry: lib.EventHandler handler> = r4",
		"r2." + lpt + " = r0",
		"r2." + lpt + " = r1",
		"virtualinvoke r2.<surrogate.AbstractLibrary: void doItAll()>()",
		"return",
	}
	if got := statements(registry.Body("void <init>(java.lang.String)")); !reflect.DeepEqual(got, want) {
		t.Errorf("constructor body:\n%s", strings.Join(got, "\n"))
	}

	clinit := statements(registry.Body("void <clinit>()"))
	if clinit[0] != "<lib.Registry: int count> = 0" {
		t.Errorf("<clinit> starts with %q", clinit[0])
	}

	names := statements(registry.Body("java.lang.String[] names()"))
	if last := names[len(names)-1]; !strings.HasPrefix(last, "return r") {
		t.Errorf("names() ends with %q", last)
	}
	size := statements(registry.Body("int size()"))
	if last := size[len(size)-1]; last != "return 0" {
		t.Errorf("size() ends with %q", last)
	}

	objInit := statements(object.Body("void <init>()"))
	if !strings.HasSuffix(objInit[2], "<surrogate.AbstractLibrary: java.lang.Object finalizePointsTo> = r0") {
		t.Errorf("Object.<init> should record the receiver as finalizable: %q", objInit)
	}
	if object.Body("void finalize()") == nil {
		t.Error("finalize should get a body")
	}
	if out.Stats.LibraryBodies == 0 {
		t.Error("no library bodies counted")
	}
}

func TestRun_ReflectiveConstructor(t *testing.T) {
	out := run(t, reflectionFacts(t), Options{Reflection: true, ReflectiveConstructors: true})
	b := out.DoItAll
	i, call := findInvoke(b, "<app.Widget: void <init>(int)>")
	if call == nil {
		t.Fatal("Widget constructor not invoked")
	}
	if call.Kind != ir.SpecialCall || len(call.Args) != 1 || call.Args[0].String() != "0" {
		t.Errorf("constructor call = %s", call)
	}
	store, ok := b.Stmts[i+1].(*ir.AssignStmt)
	if !ok || store.RHS != ir.Value(call.Base) {
		t.Fatalf("constructed object not stored: %s", b.Stmts[i+1])
	}
	if f, ok := store.LHS.(ir.InstanceFieldRef); !ok || f.Field.Name != config.LibraryPointsToField {
		t.Errorf("store target = %s", store.LHS)
	}
}

func TestRun_ReflectionOffRemovesOnlyReflectiveStatements(t *testing.T) {
	off := run(t, reflectionFacts(t), Options{})
	on := run(t, reflectionFacts(t), Options{Reflection: true, ReflectiveConstructors: true})

	offStmts, onStmts := normalized(off.DoItAll), normalized(on.DoItAll)
	if !isSubsequence(offStmts, onStmts) {
		t.Fatalf("reflection-off body is not contained in reflection-on body:\noff:\n%s\non:\n%s",
			strings.Join(offStmts, "\n"), strings.Join(onStmts, "\n"))
	}
	if len(onStmts) <= len(offStmts) {
		t.Fatal("reflection added no statements")
	}

	extra := creations(on.DoItAll)
	for typ, n := range creations(off.DoItAll) {
		extra[typ] -= n
	}
	for _, typ := range []string{"app.Widget", "app.Listener", "app.Widget[]"} {
		if extra[typ] != 1 {
			t.Errorf("extra creations of %s = %d, want 1", typ, extra[typ])
		}
	}
	if extra["lib.Registry"] != 0 {
		t.Error("forName of a library class must be ignored")
	}
	for _, sig := range []string{config.ForNameSig, config.NewInstanceSig, "<app.Listener: java.lang.String describe()>"} {
		if _, e := findInvoke(on.DoItAll, sig); e == nil {
			t.Errorf("reflection-on body does not call %s", sig)
		}
		if _, e := findInvoke(off.DoItAll, sig); e != nil {
			t.Errorf("reflection-off body calls %s", sig)
		}
	}
}

func TestRun_Deterministic(t *testing.T) {
	listing := func() string {
		out := run(t, reflectionFacts(t), Options{Reflection: true, ReflectiveConstructors: true})
		var sb strings.Builder
		for _, u := range out.Units {
			sb.WriteString(u.Listing())
		}
		return sb.String()
	}
	if a, b := listing(), listing(); a != b {
		t.Error("two runs over the same inputs differ")
	}
}

func TestRun_Phantoms(t *testing.T) {
	doc := strings.Replace(testUniverse, "name_constants:", "  - name: lib.Ghost\n    phantom: true\nname_constants:", 1)

	_, err := New(generate(t, doc), nil, Options{}).Run()
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for phantom class, got %v", err)
	}

	out, err := New(generate(t, doc), nil, Options{SkipPhantoms: true}).Run()
	if err != nil {
		t.Fatalf("Run with skip: %v", err)
	}
	for _, u := range out.Units {
		if u.Class.Name == "lib.Ghost" {
			t.Error("phantom class emitted")
		}
	}
}

func TestRun_AndroidLifecycleFilter(t *testing.T) {
	lifecycle := func(class, subSig string) bool {
		return class == "lib.EventHandler" && subSig == "void onEvent()"
	}
	out := run(t, nil, Options{Android: true, IsLifecycle: lifecycle})
	if _, call := findInvoke(out.DoItAll, "<lib.EventHandler: void onEvent()>"); call != nil {
		t.Error("lifecycle callback should be filtered on android")
	}
	out = run(t, nil, Options{IsLifecycle: lifecycle})
	if _, call := findInvoke(out.DoItAll, "<lib.EventHandler: void onEvent()>"); call == nil {
		t.Error("lifecycle filter applies only on android")
	}
}

func TestRun_AndroidSkipsPhantomCallbacks(t *testing.T) {
	doc := strings.Replace(testUniverse, "name_constants:", `  - name: lib.Ghost
    phantom: true
    modifiers: [public, interface]
    methods:
      - "public abstract void tick()"
  - name: app.Clock
    partition: application
    interfaces: [lib.Ghost]
    methods:
      - "public void tick()"
name_constants:`, 1)
	const tick = "<lib.Ghost: void tick()>"

	out, err := New(generate(t, doc), nil, Options{Android: true, SkipPhantoms: true}).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, call := findInvoke(out.DoItAll, tick); call != nil {
		t.Errorf("android kept callback into phantom class: %s", call)
	}
	if _, call := findInvoke(out.DoItAll, "<lib.EventHandler: void onEvent()>"); call == nil {
		t.Error("declared callbacks must survive the android filter")
	}

	out, err = New(generate(t, doc), nil, Options{SkipPhantoms: true}).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, call := findInvoke(out.DoItAll, tick); call == nil {
		t.Error("phantom callbacks are only filtered on android")
	}
}

func TestRun_DynamicClasses(t *testing.T) {
	out := run(t, nil, Options{DynamicClasses: []string{"app.Widget", "app.Main"}})
	if n := creations(out.DoItAll)["app.Widget"]; n != 1 {
		t.Errorf("app.Widget created %d times", n)
	}
	if n := creations(out.DoItAll)["app.Main"]; n != 1 {
		t.Errorf("app.Main created %d times, want 1", n)
	}

	_, err := New(generate(t, testUniverse), nil, Options{DynamicClasses: []string{"app.Missing"}}).Run()
	if !errors.Is(err, hierarchy.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRun_MalformedFact(t *testing.T) {
	f := reflfacts.NewFacts()
	if err := f.Add(reflfacts.MethodInvoke, "app.Listener.describe"); err != nil {
		t.Fatal(err)
	}
	_, err := New(generate(t, testUniverse), f, Options{Reflection: true}).Run()
	if err == nil || !strings.Contains(err.Error(), "Method.invoke") {
		t.Fatalf("expected Method.invoke error, got %v", err)
	}
}

func TestOptionsFrom(t *testing.T) {
	cfg := config.Default()
	cfg.Reflection.Enabled = true
	cfg.Reflection.Constructors = true
	cfg.DynamicClasses.Enabled = true
	cfg.Platform = config.PlatformAndroid
	cfg.Lifecycle.Classes = []string{"android.app.Activity"}
	cfg.Lifecycle.Methods = []string{"void onCreate()"}

	opts := OptionsFrom(cfg, []string{"app.Main"})
	if !opts.Reflection || !opts.ReflectiveConstructors || !opts.Android {
		t.Errorf("toggles not carried: %+v", opts)
	}
	if !reflect.DeepEqual(opts.DynamicClasses, []string{"app.Main"}) {
		t.Errorf("dynamic classes = %v", opts.DynamicClasses)
	}
	if opts.IsLifecycle == nil || !opts.IsLifecycle("android.app.Activity", "void onCreate()") {
		t.Error("lifecycle classification not wired")
	}
	opts = opts.withDefaults()
	if opts.LibraryClass == "" || opts.AbstractLibraryClass == "" {
		t.Error("root class names not defaulted")
	}
}
