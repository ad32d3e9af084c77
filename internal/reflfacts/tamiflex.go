package reflfacts

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadTamiFlex reads a TamiFlex refl.log file.
func LoadTamiFlex(path string) (*Facts, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading facts %s: %w", path, err)
	}
	defer f.Close()
	facts, err := ParseTamiFlex(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return facts, nil
}

// ParseTamiFlex parses log lines of the form
//
//	Kind;target;caller;line;...
//
// Lines of kinds other than the five recorded ones are skipped.
func ParseTamiFlex(r io.Reader) (*Facts, error) {
	facts := NewFacts()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ";")
		if len(parts) < 2 {
			return nil, fmt.Errorf("line %d: malformed entry %q", lineNo, line)
		}
		kind := Kind(parts[0])
		if !kind.valid() {
			continue
		}
		target := parts[1]
		if kind == ArrayNewInstance {
			target = sourceArrayType(target)
		}
		if err := facts.Add(kind, target); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return facts, nil
}

var descriptorPrims = map[byte]string{
	'Z': "boolean", 'B': "byte", 'C': "char", 'S': "short",
	'I': "int", 'J': "long", 'F': "float", 'D': "double",
}

// sourceArrayType turns a descriptor such as "[[Lapp.Widget;" into "app.Widget[][]".
// Source-form names pass through unchanged.
func sourceArrayType(s string) string {
	dims := 0
	for dims < len(s) && s[dims] == '[' {
		dims++
	}
	if dims == 0 {
		return s
	}
	rest := s[dims:]
	var base string
	switch {
	case strings.HasPrefix(rest, "L") && strings.HasSuffix(rest, ";"):
		base = strings.ReplaceAll(rest[1:len(rest)-1], "/", ".")
	case len(rest) == 1 && descriptorPrims[rest[0]] != "":
		base = descriptorPrims[rest[0]]
	default:
		return s
	}
	return base + strings.Repeat("[]", dims)
}
