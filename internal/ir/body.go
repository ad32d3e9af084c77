package ir

import (
	"errors"
	"fmt"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/typesystem"
)

var (
	// ErrInvariant is wrapped by every structural invariant violation. Body
	// methods panic with such errors; they indicate bugs in the synthesizer.
	ErrInvariant = errors.New("ir invariant violated")

	// ErrTerminated is raised when a statement is appended after the terminator.
	ErrTerminated = fmt.Errorf("%w: statement after terminator", ErrInvariant)
)

var objectType = typesystem.Ref(config.ObjectClass)

// Sentinels locates the two sentinel fields.
type Sentinels struct {
	// Holder is the class declaring the sentinel instance fields and the
	// static field holding the single library instance.
	Holder string

	// ViaThis reads the sentinels through the receiver instead of the static instance.
	ViaThis bool
}

func (s Sentinels) lptField() typesystem.FieldRef {
	return typesystem.FieldRef{Owner: s.Holder, Name: config.LibraryPointsToField, Type: objectType}
}

func (s Sentinels) fptField() typesystem.FieldRef {
	return typesystem.FieldRef{Owner: s.Holder, Name: config.FinalizePointsToField, Type: objectType}
}

func (s Sentinels) instanceField() typesystem.FieldRef {
	return typesystem.FieldRef{Owner: s.Holder, Name: config.InstanceField, Type: typesystem.Ref(s.Holder), Static: true}
}

// Body is the statement list of one method under construction.
type Body struct {
	Method *typesystem.Method
	Locals []*Local
	Stmts  []Stmt

	sentinels  Sentinels
	this       *Local
	params     []*Local
	holder     *Local
	lpt, fpt   *Local
	views      map[string]Value
	terminated bool
}

// NewBody starts an empty body for m.
func NewBody(m *typesystem.Method, s Sentinels) *Body {
	return &Body{Method: m, sentinels: s, views: make(map[string]Value)}
}

func invariant(format string, args ...any) {
	panic(fmt.Errorf("%w: "+format, append([]any{ErrInvariant}, args...)...))
}

// NewLocal declares a fresh local of type t.
func (b *Body) NewLocal(t typesystem.Type) *Local {
	l := &Local{Name: fmt.Sprintf("r%d", len(b.Locals)), T: t}
	b.Locals = append(b.Locals, l)
	return l
}

// Append adds s at the end of the body. It panics with ErrTerminated once a
// terminator has been appended.
func (b *Body) Append(s Stmt) {
	if b.terminated {
		panic(fmt.Errorf("%w: %s in %s", ErrTerminated, s, b.Method.Signature()))
	}
	b.Stmts = append(b.Stmts, s)
	if IsTerminator(s) {
		b.terminated = true
	}
}

// Terminated reports whether the body already ends in a terminator.
func (b *Body) Terminated() bool { return b.terminated }

// AddIdentities binds the receiver (for instance methods) and every parameter.
func (b *Body) AddIdentities() {
	if len(b.Stmts) > 0 {
		invariant("identities must open the body of %s", b.Method.Signature())
	}
	if !b.Method.IsStatic() {
		t := b.Method.Declaring.Type()
		b.this = b.NewLocal(t)
		b.Append(&IdentityStmt{Local: b.this, Ref: ThisRef{T: t}})
	}
	for i, p := range b.Method.Params {
		l := b.NewLocal(p)
		b.params = append(b.params, l)
		b.Append(&IdentityStmt{Local: l, Ref: ParamRef{Index: i, T: p}})
	}
}

// This returns the receiver local, or nil for static methods.
func (b *Body) This() *Local { return b.this }

// Params returns the parameter locals in declaration order.
func (b *Body) Params() []*Local { return b.params }

// Assign appends lhs = rhs.
func (b *Body) Assign(lhs, rhs Value) {
	b.Append(&AssignStmt{LHS: lhs, RHS: rhs})
}

// Bind stores rhs into a fresh local of rhs's type and returns it.
func (b *Body) Bind(rhs Value) *Local {
	l := b.NewLocal(rhs.Type())
	b.Assign(l, rhs)
	return l
}

// Invoke appends a call statement.
func (b *Body) Invoke(e *InvokeExpr) {
	b.Append(&InvokeStmt{Invoke: e})
}

// Throw appends the terminating throw.
func (b *Body) Throw(v Value) { b.Append(&ThrowStmt{Op: v}) }

// Return appends a return of v, or a void return when v is nil.
func (b *Body) Return(v Value) { b.Append(&ReturnStmt{Op: v}) }

func (b *Body) holderLocal() *Local {
	if b.sentinels.ViaThis {
		if b.this == nil {
			invariant("%s has no receiver to read sentinels through", b.Method.Signature())
		}
		return b.this
	}
	if b.holder == nil {
		b.holder = b.Bind(StaticFieldRef{Field: b.sentinels.instanceField()})
	}
	return b.holder
}

// Holder returns the local the sentinel fields are accessed through: the
// receiver under ViaThis, otherwise the static library instance.
func (b *Body) Holder() *Local { return b.holderLocal() }

// LPT returns a local holding the library-points-to sentinel, loading it on first use.
func (b *Body) LPT() *Local {
	if b.lpt == nil {
		b.lpt = b.Bind(InstanceFieldRef{Base: b.holderLocal(), Field: b.sentinels.lptField()})
	}
	return b.lpt
}

// FPT returns a local holding the finalize-points-to sentinel, loading it on first use.
func (b *Body) FPT() *Local {
	if b.fpt == nil {
		b.fpt = b.Bind(InstanceFieldRef{Base: b.holderLocal(), Field: b.sentinels.fptField()})
	}
	return b.fpt
}

// StoreLPT appends a write of v into the library-points-to sentinel.
func (b *Body) StoreLPT(v Value) {
	b.Assign(InstanceFieldRef{Base: b.holderLocal(), Field: b.sentinels.lptField()}, v)
}

// StoreFPT appends a write of v into the finalize-points-to sentinel.
func (b *Body) StoreFPT(v Value) {
	b.Assign(InstanceFieldRef{Base: b.holderLocal(), Field: b.sentinels.fptField()}, v)
}

// View returns a value of type t derived from LPT: the zero constant for
// primitives, LPT itself for the root object type, and otherwise a cast local
// introduced once per type.
func (b *Body) View(t typesystem.Type) Value {
	return b.view("lpt", t, b.LPT)
}

// FinalizeView is View over FPT.
func (b *Body) FinalizeView(t typesystem.Type) Value {
	return b.view("fpt", t, b.FPT)
}

func (b *Body) view(sentinel string, t typesystem.Type, load func() *Local) Value {
	switch typ := t.(type) {
	case typesystem.PrimType:
		return Zero(typ)
	case typesystem.VoidType, typesystem.NullType, nil:
		invariant("no typed view of %v", t)
	}
	if typesystem.Equal(t, objectType) {
		return load()
	}
	key := sentinel + "|" + t.String()
	if v, ok := b.views[key]; ok {
		return v
	}
	src := load()
	l := b.NewLocal(t)
	b.Assign(l, CastExpr{T: t, Op: src})
	b.views[key] = l
	return l
}

// ViewCount returns the number of cast views introduced so far.
func (b *Body) ViewCount() int { return len(b.views) }
