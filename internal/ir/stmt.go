package ir

// Stmt is a single statement of a body.
type Stmt interface {
	String() string
	isStmt()
}

// IdentityStmt binds this or a parameter to a local at method entry.
type IdentityStmt struct {
	Local *Local
	Ref   Value
}

func (s *IdentityStmt) String() string { return s.Local.Name + " := " + s.Ref.String() }
func (*IdentityStmt) isStmt()          {}

// AssignStmt stores RHS into a local, field or array element.
type AssignStmt struct {
	LHS Value
	RHS Value
}

func (s *AssignStmt) String() string { return s.LHS.String() + " = " + s.RHS.String() }
func (*AssignStmt) isStmt()          {}

// InvokeStmt is a call whose result is discarded.
type InvokeStmt struct {
	Invoke *InvokeExpr
}

func (s *InvokeStmt) String() string { return s.Invoke.String() }
func (*InvokeStmt) isStmt()          {}

// ReturnStmt returns Op; Op is nil for void returns.
type ReturnStmt struct {
	Op Value
}

func (s *ReturnStmt) String() string {
	if s.Op == nil {
		return "return"
	}
	return "return " + s.Op.String()
}
func (*ReturnStmt) isStmt() {}

// ThrowStmt raises Op.
type ThrowStmt struct {
	Op Value
}

func (s *ThrowStmt) String() string { return "throw " + s.Op.String() }
func (*ThrowStmt) isStmt()          {}

// IsTerminator reports whether control cannot fall through s.
func IsTerminator(s Stmt) bool {
	switch s.(type) {
	case *ReturnStmt, *ThrowStmt:
		return true
	}
	return false
}
