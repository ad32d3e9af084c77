package ir

import (
	"fmt"
	"strings"

	"github.com/funvibe/surrogate/internal/typesystem"
)

// Unit is one emitted artifact: a class together with the bodies of its concrete methods.
type Unit struct {
	Class  *typesystem.Class
	Bodies []*Body
}

// NewUnit creates a unit without bodies.
func NewUnit(c *typesystem.Class) *Unit { return &Unit{Class: c} }

// Add attaches a body. Bodies must belong to methods of the unit's class.
func (u *Unit) Add(b *Body) {
	if b.Method.Declaring != u.Class {
		invariant("body of %s added to unit %s", b.Method.Signature(), u.Class.Name)
	}
	u.Bodies = append(u.Bodies, b)
}

// Body returns the body of the method with the given sub-signature, or nil.
func (u *Unit) Body(subSig string) *Body {
	for _, b := range u.Bodies {
		if b.Method.SubSignature() == subSig {
			return b
		}
	}
	return nil
}

// Validate checks every body of the unit.
func (u *Unit) Validate(ts Subtyper) error {
	for _, b := range u.Bodies {
		if err := b.Validate(ts); err != nil {
			return fmt.Errorf("class %s: %w", u.Class.Name, err)
		}
	}
	return nil
}

// Listing renders the unit as text.
func (u *Unit) Listing() string {
	var sb strings.Builder
	c := u.Class

	sb.WriteString(fmt.Sprintf("== %s (%s) ==\n", c.Name, c.Origin))
	kind := "class"
	mods := c.Modifiers &^ (typesystem.Interface | typesystem.Abstract)
	switch {
	case c.IsInterface():
		kind = "interface"
	case c.IsAbstract():
		kind = "abstract class"
	}
	if s := mods.String(); s != "" {
		sb.WriteString(s)
		sb.WriteByte(' ')
	}
	sb.WriteString(kind + " " + c.Name)
	if c.Super != "" {
		sb.WriteString(" extends " + c.Super)
	}
	if len(c.Interfaces) > 0 {
		sb.WriteString(" implements " + strings.Join(c.Interfaces, ", "))
	}
	sb.WriteString("\n")

	for _, f := range c.Fields {
		sb.WriteString("  ")
		if s := f.Modifiers.String(); s != "" {
			sb.WriteString(s + " ")
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", f.Type, f.Name))
	}

	for _, m := range c.Methods {
		sb.WriteString("\n  ")
		if s := m.Modifiers.String(); s != "" {
			sb.WriteString(s + " ")
		}
		sb.WriteString(m.SubSignature())
		if len(m.Exceptions) > 0 {
			sb.WriteString(" throws " + strings.Join(m.Exceptions, ", "))
		}
		b := u.Body(m.SubSignature())
		if b == nil {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(" {\n")
		for i, s := range b.Stmts {
			sb.WriteString(fmt.Sprintf("  %04d    %s\n", i, s))
		}
		sb.WriteString("  }\n")
	}
	return sb.String()
}
