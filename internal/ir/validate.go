package ir

import (
	"fmt"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/typesystem"
)

// Subtyper answers assignability questions over the type universe.
type Subtyper interface {
	IsSubtype(sub, sup typesystem.Type) bool
}

// Validate checks the structural legality of the body: it ends in exactly one
// terminator, identities come first, every local is defined before use and
// every value is assignable where it is used.
func (b *Body) Validate(ts Subtyper) error {
	sig := b.Method.Signature()
	if len(b.Stmts) == 0 {
		return fmt.Errorf("%s: empty body", sig)
	}
	if !IsTerminator(b.Stmts[len(b.Stmts)-1]) {
		return fmt.Errorf("%s: body does not end in a terminator", sig)
	}

	v := &validator{ts: ts, defined: make(map[*Local]bool), method: b.Method}
	inPrologue := true
	for i, s := range b.Stmts {
		if IsTerminator(s) && i != len(b.Stmts)-1 {
			return fmt.Errorf("%s: statement %d: terminator before end of body", sig, i)
		}
		_, isIdentity := s.(*IdentityStmt)
		if isIdentity && !inPrologue {
			return fmt.Errorf("%s: statement %d: identity after prologue", sig, i)
		}
		inPrologue = inPrologue && isIdentity
		if err := v.stmt(s); err != nil {
			return fmt.Errorf("%s: statement %d (%s): %w", sig, i, s, err)
		}
	}
	return nil
}

type validator struct {
	ts      Subtyper
	defined map[*Local]bool
	method  *typesystem.Method
}

func (v *validator) assignable(val Value, to typesystem.Type) error {
	if !v.ts.IsSubtype(val.Type(), to) {
		return fmt.Errorf("%s of type %s is not assignable to %s", val, val.Type(), to)
	}
	return nil
}

func (v *validator) stmt(s Stmt) error {
	switch s := s.(type) {
	case *IdentityStmt:
		v.defined[s.Local] = true
		return v.assignable(s.Ref, s.Local.T)

	case *AssignStmt:
		if err := v.use(s.RHS); err != nil {
			return err
		}
		switch lhs := s.LHS.(type) {
		case *Local:
			v.defined[lhs] = true
		case InstanceFieldRef, StaticFieldRef, ArrayRef:
			if err := v.use(lhs); err != nil {
				return err
			}
		default:
			return fmt.Errorf("cannot assign to %s", s.LHS)
		}
		return v.assignable(s.RHS, s.LHS.Type())

	case *InvokeStmt:
		return v.use(s.Invoke)

	case *ReturnStmt:
		_, void := v.method.Return.(typesystem.VoidType)
		if s.Op == nil {
			if !void {
				return fmt.Errorf("void return from method returning %s", v.method.Return)
			}
			return nil
		}
		if void {
			return fmt.Errorf("value returned from void method")
		}
		if err := v.use(s.Op); err != nil {
			return err
		}
		return v.assignable(s.Op, v.method.Return)

	case *ThrowStmt:
		if err := v.use(s.Op); err != nil {
			return err
		}
		return v.assignable(s.Op, typesystem.Ref(config.ThrowableClass))
	}
	return fmt.Errorf("unknown statement %T", s)
}

// use checks that every local read by val is defined and that calls and
// casts are well typed.
func (v *validator) use(val Value) error {
	switch e := val.(type) {
	case *Local:
		if !v.defined[e] {
			return fmt.Errorf("local %s used before definition", e.Name)
		}
	case Constant, ThisRef, ParamRef, StaticFieldRef, NewExpr:
	case InstanceFieldRef:
		if err := v.use(e.Base); err != nil {
			return err
		}
		return v.assignable(e.Base, typesystem.Ref(e.Field.Owner))
	case ArrayRef:
		if _, ok := e.Base.T.(typesystem.ArrayType); !ok {
			return fmt.Errorf("indexing non-array %s", e.Base)
		}
		if err := v.use(e.Base); err != nil {
			return err
		}
		return v.use(e.Index)
	case NewArrayExpr:
		return v.use(e.Size)
	case CastExpr:
		if !typesystem.IsRefLike(e.T) || !typesystem.IsRefLike(e.Op.Type()) {
			return fmt.Errorf("cast of %s to %s is not a reference cast", e.Op, e.T)
		}
		return v.use(e.Op)
	case *InvokeExpr:
		return v.invoke(e)
	default:
		return fmt.Errorf("unknown value %T", val)
	}
	return nil
}

func (v *validator) invoke(e *InvokeExpr) error {
	if (e.Kind == StaticCall) != (e.Base == nil) {
		return fmt.Errorf("%s call with receiver mismatch", e.Kind)
	}
	if e.Kind == StaticCall && !e.Method.Static {
		return fmt.Errorf("static call of instance method %s", e.Method)
	}
	if e.Base != nil {
		if err := v.use(e.Base); err != nil {
			return err
		}
		if err := v.assignable(e.Base, typesystem.Ref(e.Method.Owner)); err != nil {
			return fmt.Errorf("receiver: %w", err)
		}
	}
	if len(e.Args) != len(e.Method.Params) {
		return fmt.Errorf("%s expects %d arguments, got %d", e.Method, len(e.Method.Params), len(e.Args))
	}
	for i, a := range e.Args {
		if err := v.use(a); err != nil {
			return err
		}
		if err := v.assignable(a, e.Method.Params[i]); err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return nil
}
