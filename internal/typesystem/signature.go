package typesystem

import (
	"fmt"
	"strings"
)

// SubSignature renders "R name(P1,P2)".
func SubSignature(ret Type, name string, params []Type) string {
	var sb strings.Builder
	if ret == nil {
		ret = VoidType{}
	}
	sb.WriteString(ret.String())
	sb.WriteByte(' ')
	sb.WriteString(name)
	sb.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// Signature is a parsed "<Owner: R name(P1,P2)>" method signature.
type Signature struct {
	Owner  string
	Name   string
	Params []Type
	Return Type
}

// SubSignature drops the owner.
func (s Signature) SubSignature() string { return SubSignature(s.Return, s.Name, s.Params) }

func (s Signature) String() string { return "<" + s.Owner + ": " + s.SubSignature() + ">" }

// ParseSignature parses a fully qualified method signature such as
// "<java.lang.Object: void finalize()>".
func ParseSignature(s string) (Signature, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "<") || !strings.HasSuffix(s, ">") {
		return Signature{}, fmt.Errorf("signature %q: missing angle brackets", s)
	}
	body := s[1 : len(s)-1]
	colon := strings.Index(body, ":")
	if colon <= 0 {
		return Signature{}, fmt.Errorf("signature %q: missing owner", s)
	}
	owner := strings.TrimSpace(body[:colon])
	ret, name, params, err := parseSubSignature(strings.TrimSpace(body[colon+1:]))
	if err != nil {
		return Signature{}, fmt.Errorf("signature %q: %w", s, err)
	}
	return Signature{Owner: owner, Name: name, Params: params, Return: ret}, nil
}

// ParseSubSignature parses "R name(P1,P2)".
func ParseSubSignature(s string) (Type, string, []Type, error) {
	return parseSubSignature(strings.TrimSpace(s))
}

func parseSubSignature(s string) (Type, string, []Type, error) {
	open := strings.Index(s, "(")
	if open < 0 || !strings.HasSuffix(s, ")") {
		return nil, "", nil, fmt.Errorf("missing parameter list")
	}
	head := strings.Fields(s[:open])
	if len(head) != 2 {
		return nil, "", nil, fmt.Errorf("expected return type and name, got %q", s[:open])
	}
	ret, err := ParseType(head[0])
	if err != nil {
		return nil, "", nil, err
	}
	params, err := parseParamList(s[open+1 : len(s)-1])
	if err != nil {
		return nil, "", nil, err
	}
	return ret, head[1], params, nil
}

func parseParamList(s string) ([]Type, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var params []Type
	for _, p := range strings.Split(s, ",") {
		fields := strings.Fields(p)
		if len(fields) == 0 {
			return nil, fmt.Errorf("empty parameter")
		}
		// Declarations may carry parameter names ("int x"); the type comes first.
		t, err := ParseType(fields[0])
		if err != nil {
			return nil, err
		}
		params = append(params, t)
	}
	return params, nil
}

// ParseMethodDecl parses a member declaration of the form
//
//	[modifiers] R name(P1, P2) [throws E1, E2]
//
// Constructors and static initializers may omit the return type:
// "public <init>(int)".
func ParseMethodDecl(s string) (*Method, error) {
	decl := strings.TrimSpace(s)
	var exceptions []string
	if idx := strings.Index(decl, " throws "); idx >= 0 {
		for _, e := range strings.Split(decl[idx+len(" throws "):], ",") {
			if e = strings.TrimSpace(e); e != "" {
				exceptions = append(exceptions, e)
			}
		}
		decl = strings.TrimSpace(decl[:idx])
	}
	open := strings.Index(decl, "(")
	if open < 0 || !strings.HasSuffix(decl, ")") {
		return nil, fmt.Errorf("method %q: missing parameter list", s)
	}
	head := strings.Fields(decl[:open])
	if len(head) == 0 {
		return nil, fmt.Errorf("method %q: missing name", s)
	}
	name := head[len(head)-1]
	head = head[:len(head)-1]

	var mods Modifier
	for len(head) > 0 {
		m, ok := ParseModifier(head[0])
		if !ok {
			break
		}
		mods |= m
		head = head[1:]
	}

	var ret Type = VoidType{}
	switch len(head) {
	case 0:
		if name != ConstructorName && name != StaticInitializerName {
			return nil, fmt.Errorf("method %q: missing return type", s)
		}
	case 1:
		t, err := ParseType(head[0])
		if err != nil {
			return nil, fmt.Errorf("method %q: %w", s, err)
		}
		ret = t
	default:
		return nil, fmt.Errorf("method %q: unexpected tokens %v", s, head)
	}
	if name == StaticInitializerName {
		mods |= Static
	}

	params, err := parseParamList(decl[open+1 : len(decl)-1])
	if err != nil {
		return nil, fmt.Errorf("method %q: %w", s, err)
	}
	m := NewMethod(name, params, ret, mods)
	m.Exceptions = exceptions
	return m, nil
}

// ParseFieldDecl parses "[modifiers] T name".
func ParseFieldDecl(s string) (*Field, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return nil, fmt.Errorf("field %q: expected type and name", s)
	}
	var mods Modifier
	i := 0
	for ; i < len(fields)-2; i++ {
		m, ok := ParseModifier(fields[i])
		if !ok {
			return nil, fmt.Errorf("field %q: unknown modifier %q", s, fields[i])
		}
		mods |= m
	}
	t, err := ParseType(fields[i])
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", s, err)
	}
	return &Field{Name: fields[i+1], Type: t, Modifiers: mods}, nil
}
